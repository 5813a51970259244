package migration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	apperrors "cms-instance-sync/internal/errors"
)

// Validation check names, in the order they run
const (
	CheckSourceDatabase      = "source-database"
	CheckDestinationDatabase = "destination-database"
	CheckSourcePath          = "source-path"
	CheckDestinationPath     = "destination-path"
	CheckDistinctPaths       = "distinct-paths"
	CheckSourceInstance      = "source-instance"
	CheckDestinationInstance = "destination-instance"
)

// validate runs every precondition in order and stops at the first failure
func (s *Sequencer) validate(ctx context.Context, mc Context) error {
	if err := s.checkDatabase(ctx, CheckSourceDatabase, "Source", mc.SourceDatabase); err != nil {
		return err
	}
	if err := s.checkDatabase(ctx, CheckDestinationDatabase, "Destination", mc.DestinationDatabase); err != nil {
		return err
	}
	if err := checkDirectory(CheckSourcePath, "Source", mc.SourcePath); err != nil {
		return err
	}
	if err := checkDirectory(CheckDestinationPath, "Destination", mc.DestinationPath); err != nil {
		return err
	}
	if err := checkDistinct(mc.SourcePath, mc.DestinationPath); err != nil {
		return err
	}
	if err := s.checkInstance(CheckSourceInstance, "Source", mc.SourcePath); err != nil {
		return err
	}
	return s.checkInstance(CheckDestinationInstance, "Destination", mc.DestinationPath)
}

func (s *Sequencer) checkDatabase(ctx context.Context, check, role, name string) error {
	if err := s.probe.Reachable(ctx, name); err != nil {
		s.logger.WithField("database", name).WithField("error", err.Error()).Debug("Database probe failed")
		return validationError(check, fmt.Sprintf("%s database %q does not exist or is not reachable", role, name), err).
			WithContext("database", name)
	}
	return nil
}

func checkDirectory(check, role, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return validationError(check, fmt.Sprintf("%s path %q does not exist", role, path), err).
			WithContext("path", path)
	}
	if !info.IsDir() {
		return validationError(check, fmt.Sprintf("%s path %q is not a directory", role, path), nil).
			WithContext("path", path)
	}
	return nil
}

func checkDistinct(source, destination string) error {
	src, err := canonicalPath(source)
	if err != nil {
		return validationError(CheckDistinctPaths, fmt.Sprintf("cannot resolve source path %q", source), err)
	}
	dst, err := canonicalPath(destination)
	if err != nil {
		return validationError(CheckDistinctPaths, fmt.Sprintf("cannot resolve destination path %q", destination), err)
	}
	if src == dst {
		return validationError(CheckDistinctPaths,
			fmt.Sprintf("Source and destination are the same directory (%s)", src), nil).
			WithContext("path", src)
	}
	return nil
}

// checkInstance requires the documents directory and the console marker
func (s *Sequencer) checkInstance(check, role, root string) error {
	documents := filepath.Join(root, s.toolset.Documents)
	console := filepath.Join(root, s.toolset.Console)

	info, err := os.Stat(documents)
	if err != nil || !info.IsDir() {
		return validationError(check,
			fmt.Sprintf("%s path %q is not a valid CMS instance: missing %s directory", role, root, s.toolset.Documents), err).
			WithContext("path", root)
	}
	if _, err := os.Stat(console); err != nil {
		return validationError(check,
			fmt.Sprintf("%s path %q is not a valid CMS instance: missing %s", role, root, s.toolset.Console), err).
			WithContext("path", root)
	}
	return nil
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func validationError(check, message string, cause error) *apperrors.AppError {
	appErr := apperrors.NewValidationError(check, message)
	appErr.Cause = cause
	return appErr
}
