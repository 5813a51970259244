package backup

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	apperrors "cms-instance-sync/internal/errors"
)

// Storage receives archived backups
type Storage interface {
	// Upload stores the file at localPath and returns where it now lives
	Upload(ctx context.Context, localPath string) (string, error)
	// Provider names the storage backend
	Provider() StorageProviderType
}

// NewStorage creates the storage provider selected by cfg
func NewStorage(ctx context.Context, cfg StorageConfig) (Storage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case StorageProviderLocal, "":
		return NewLocalStorage(), nil
	case StorageProviderS3:
		s, err := NewS3Storage(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StorageProviderGCS:
		s, err := NewGCSStorage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StorageProviderAzure:
		s, err := NewAzureStorage(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, apperrors.NewAppError(apperrors.ErrorTypeValidation,
			fmt.Sprintf("unsupported storage provider: %s", cfg.Provider), nil)
	}
}

// objectKey joins the configured prefix with the file's base name
func objectKey(prefix, localPath string) string {
	prefix = strings.Trim(prefix, "/")
	name := filepath.Base(localPath)
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
