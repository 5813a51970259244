package migration

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	apperrors "cms-instance-sync/internal/errors"
	"cms-instance-sync/internal/process"
)

// Step names
const (
	StepValidate           = "validate"
	StepDumpSource         = "dump-source-database"
	StepBackupDestDatabase = "backup-destination-database"
	StepImportDump         = "import-dump"
	StepBackupDestFiles    = "backup-destination-files"
	StepSyncFiles          = "sync-files"
	StepRegenerateSources  = "regenerate-sources"
	StepUpdateSchema       = "update-schema"
	StepClearCache         = "clear-cache"
)

// steps is the full fixed sequence
func (s *Sequencer) steps() []Step {
	return []Step{
		{Name: StepValidate, Label: "Validating source and destination", State: StateValidating, ReadOnly: true, action: s.validateStep},
		{Name: StepDumpSource, Label: "Dumping source database", State: StateDumpingSource, action: s.dumpSource},
		{Name: StepBackupDestDatabase, Label: "Backing up destination database", State: StateBackingUpDestDatabase, BackupOnly: true, action: s.backupDestinationDatabase},
		{Name: StepImportDump, Label: "Importing dump into destination database", State: StateImportingDump, action: s.importDump},
		{Name: StepBackupDestFiles, Label: "Backing up destination files", State: StateBackingUpDestFiles, BackupOnly: true, action: s.backupDestinationFiles},
		{Name: StepSyncFiles, Label: "Synchronising documents", State: StateSyncingFiles, action: s.syncFiles},
		{Name: StepRegenerateSources, Label: "Regenerating node sources", State: StateRegeneratingSources, action: s.consoleStep(func(ts Toolset) []string { return ts.RegenerateSources })},
		{Name: StepUpdateSchema, Label: "Updating database schema", State: StateUpdatingSchema, action: s.consoleStep(func(ts Toolset) []string { return ts.UpdateSchema })},
		{Name: StepClearCache, Label: "Clearing cache", State: StateClearingCache, action: s.consoleStep(func(ts Toolset) []string { return ts.ClearCache })},
	}
}

func (s *Sequencer) validateStep(ctx context.Context, r *run) error {
	return s.validate(ctx, r.mc)
}

func (s *Sequencer) dumpSource(ctx context.Context, r *run) error {
	dumpFile := filepath.Join(s.opts.TempDir, fmt.Sprintf("cms-sync-%s.sql", s.opts.NewID()))
	r.result.DumpFile = dumpFile

	_, err := s.mutating.Run(ctx, process.Command{
		Name:       "mysqldump",
		Path:       s.toolset.MysqlDump,
		Args:       append(s.conn.ClientArgs(), r.mc.SourceDatabase),
		StdoutFile: dumpFile,
	})
	if err != nil {
		return withContext(err, "dump_file", dumpFile)
	}
	return nil
}

func (s *Sequencer) backupDestinationDatabase(ctx context.Context, r *run) error {
	path := s.backups.DatabaseBackupPath(r.mc.DestinationDatabase, r.started)

	if !s.opts.DryRun {
		if err := s.backups.EnsureDirectory(); err != nil {
			return err
		}
		if err := s.backups.Reserve(path); err != nil {
			return err
		}
	}

	_, err := s.mutating.Run(ctx, process.Command{
		Name:       "mysqldump",
		Path:       s.toolset.MysqlDump,
		Args:       append(s.conn.ClientArgs(), r.mc.DestinationDatabase),
		StdoutFile: path,
	})
	if err != nil {
		return err
	}

	if s.opts.DryRun {
		s.reporter.Info(fmt.Sprintf("Destination database backup would be archived from %s", path))
		return nil
	}

	artifact, err := s.backups.Archive(ctx, path)
	if err != nil {
		return err
	}
	r.result.DatabaseBackup = artifact
	return nil
}

func (s *Sequencer) importDump(ctx context.Context, r *run) error {
	_, err := s.mutating.Run(ctx, process.Command{
		Name:      "mysql",
		Path:      s.toolset.Mysql,
		Args:      append(s.conn.ClientArgs(), r.mc.DestinationDatabase),
		StdinFile: r.result.DumpFile,
		Target:    r.mc.DestinationDatabase,
	})
	if err != nil {
		return withContext(err, "dump_file", r.result.DumpFile)
	}
	return nil
}

func (s *Sequencer) backupDestinationFiles(ctx context.Context, r *run) error {
	dir := s.backups.FilesBackupPath(r.started)
	r.result.FilesBackup = dir

	if !s.opts.DryRun {
		if err := s.backups.CreateFilesDirectory(dir); err != nil {
			return err
		}
	}

	_, err := s.mutating.Run(ctx, process.Command{
		Name:   "cp",
		Path:   s.toolset.Cp,
		Args:   []string{"-a", filepath.Join(r.mc.DestinationPath, s.toolset.Documents) + "/.", dir},
		Target: dir,
	})
	return err
}

func (s *Sequencer) syncFiles(ctx context.Context, r *run) error {
	destination := filepath.Join(r.mc.DestinationPath, s.toolset.Documents) + "/"
	_, err := s.mutating.Run(ctx, process.Command{
		Name: "rsync",
		Path: s.toolset.Rsync,
		Args: []string{
			"-avc", "--delete",
			filepath.Join(r.mc.SourcePath, s.toolset.Documents) + "/",
			destination,
		},
		Target: destination,
	})
	return err
}

// consoleStep runs a CMS console subcommand inside the destination instance
func (s *Sequencer) consoleStep(args func(Toolset) []string) func(context.Context, *run) error {
	return func(ctx context.Context, r *run) error {
		sub := args(s.toolset)
		_, err := s.mutating.Run(ctx, process.Command{
			Name:     s.toolset.Console,
			Path:     filepath.Join(r.mc.DestinationPath, s.toolset.Console),
			Verbatim: true,
			Args:     sub,
			Dir:      r.mc.DestinationPath,
			Target:   strings.Join(sub, " "),
		})
		return err
	}
}

func withContext(err error, key string, value interface{}) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		appErr.WithContext(key, value)
	}
	return err
}
