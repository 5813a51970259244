package backup

import (
	"context"
	"os"
	"path/filepath"

	apperrors "cms-instance-sync/internal/errors"
)

// LocalStorage keeps archives where they were written
type LocalStorage struct{}

// NewLocalStorage creates a local storage provider
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{}
}

// Upload verifies the archive exists and returns its absolute path
func (ls *LocalStorage) Upload(_ context.Context, localPath string) (string, error) {
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", apperrors.NewBackupError("upload", "failed to resolve backup path", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", apperrors.NewBackupError("upload", "backup file is missing", err)
	}
	return abs, nil
}

// Provider returns StorageProviderLocal
func (ls *LocalStorage) Provider() StorageProviderType {
	return StorageProviderLocal
}
