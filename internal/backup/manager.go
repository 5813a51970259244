package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "cms-instance-sync/internal/errors"
	"cms-instance-sync/internal/logging"
)

// TimestampFormat is used in backup file and directory names
const TimestampFormat = "20060102-150405"

// Artifact describes an archived backup
type Artifact struct {
	// LocalPath is the final file in the backup directory
	LocalPath string
	// Location is where the storage provider put it
	Location    string
	Compression CompressionType
	Encrypted   bool
	Size        int64
}

// Manager names backup targets and archives finished database backups
type Manager struct {
	config  *Config
	storage Storage
	logger  *logging.Logger
}

// NewManager creates a backup manager. A nil storage keeps archives locally.
func NewManager(cfg *Config, storage Storage, logger *logging.Logger) *Manager {
	if storage == nil {
		storage = NewLocalStorage()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Manager{config: cfg, storage: storage, logger: logger}
}

// Directory returns the backup directory
func (m *Manager) Directory() string {
	return m.config.Directory
}

// EnsureDirectory creates the backup directory if needed
func (m *Manager) EnsureDirectory() error {
	if err := os.MkdirAll(m.config.Directory, 0o755); err != nil {
		return apperrors.NewBackupError("prepare",
			fmt.Sprintf("failed to create backup directory %s", m.config.Directory), err).
			WithContext("directory", m.config.Directory)
	}
	return nil
}

// DatabaseBackupPath returns <directory>/<database>-<timestamp>.sql
func (m *Manager) DatabaseBackupPath(database string, at time.Time) string {
	return filepath.Join(m.config.Directory, fmt.Sprintf("%s-%s.sql", database, at.Format(TimestampFormat)))
}

// FilesBackupPath returns <directory>/files-<timestamp>
func (m *Manager) FilesBackupPath(at time.Time) string {
	return filepath.Join(m.config.Directory, "files-"+at.Format(TimestampFormat))
}

// Reserve creates the empty backup file at path. It fails when the file
// already exists, so two runs started in the same second never share one.
func (m *Manager) Reserve(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return existsError(path, err)
	}
	return f.Close()
}

// CreateFilesDirectory creates the files backup directory, which must not
// exist yet
func (m *Manager) CreateFilesDirectory(dir string) error {
	if err := m.EnsureDirectory(); err != nil {
		return err
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		return existsError(dir, err)
	}
	return nil
}

func existsError(path string, err error) error {
	if os.IsExist(err) {
		return apperrors.NewBackupError("prepare",
			fmt.Sprintf("backup %s already exists", path), err).
			WithContext("path", path)
	}
	return apperrors.NewBackupError("prepare",
		fmt.Sprintf("failed to create backup %s", path), err).
		WithContext("path", path)
}

// Archive compresses, encrypts and uploads a database backup, as configured
func (m *Manager) Archive(ctx context.Context, path string) (*Artifact, error) {
	done := m.logger.LogOperationStart("archive_backup", map[string]interface{}{
		"path":        path,
		"compression": string(m.config.Compression),
		"encrypted":   m.config.EncryptionPassphrase != "",
		"provider":    string(m.storage.Provider()),
	})

	artifact, err := m.archive(ctx, path)
	done(err)
	return artifact, err
}

func (m *Manager) archive(ctx context.Context, path string) (*Artifact, error) {
	artifact := &Artifact{Compression: CompressionNone}

	current, stats, err := CompressFile(path, m.config.Compression, m.config.CompressionLevel)
	if err != nil {
		return nil, err
	}
	if stats != nil {
		artifact.Compression = stats.Algorithm
		m.logger.WithFields(map[string]interface{}{
			"original_size":   stats.OriginalSize,
			"compressed_size": stats.CompressedSize,
			"ratio":           fmt.Sprintf("%.2f", stats.CompressionRatio),
		}).Debug("Backup compressed")
	}

	if m.config.EncryptionPassphrase != "" {
		if current, err = EncryptFile(current, m.config.EncryptionPassphrase); err != nil {
			return nil, err
		}
		artifact.Encrypted = true
	}

	info, err := os.Stat(current)
	if err != nil {
		return nil, apperrors.NewBackupError("archive", "archived backup is missing", err)
	}
	artifact.LocalPath = current
	artifact.Size = info.Size()

	if artifact.Location, err = m.storage.Upload(ctx, current); err != nil {
		return nil, err
	}
	return artifact, nil
}
