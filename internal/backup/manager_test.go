package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-instance-sync/internal/config"
	apperrors "cms-instance-sync/internal/errors"
)

type fakeStorage struct {
	uploaded []string
	err      error
}

func (f *fakeStorage) Upload(_ context.Context, localPath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploaded = append(f.uploaded, localPath)
	return "s3://bucket/" + filepath.Base(localPath), nil
}

func (f *fakeStorage) Provider() StorageProviderType {
	return StorageProviderS3
}

func TestManagerPaths(t *testing.T) {
	manager := NewManager(&Config{Directory: "/var/backups/cms"}, nil, nil)
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	assert.Equal(t, "/var/backups/cms/cms_prod-20240309-140507.sql", manager.DatabaseBackupPath("cms_prod", at))
	assert.Equal(t, "/var/backups/cms/files-20240309-140507", manager.FilesBackupPath(at))
	assert.Equal(t, "/var/backups/cms", manager.Directory())
}

func TestManagerEnsureDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "backups")
	manager := NewManager(&Config{Directory: dir}, nil, nil)

	require.NoError(t, manager.EnsureDirectory())
	require.NoError(t, manager.EnsureDirectory(), "creating an existing directory is not an error")
	assert.DirExists(t, dir)
}

func TestManagerReserve(t *testing.T) {
	dir := t.TempDir()
	manager := NewManager(&Config{Directory: dir}, nil, nil)
	path := manager.DatabaseBackupPath("cms_prod", time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC))

	require.NoError(t, manager.Reserve(path))
	assert.FileExists(t, path)

	err := manager.Reserve(path)
	require.Error(t, err, "a second run in the same second must not reuse the file")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeBackup))
	assert.Equal(t, path, apperrors.ContextValue(err, "path"))
}

func TestManagerCreateFilesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups")
	manager := NewManager(&Config{Directory: dir}, nil, nil)
	filesDir := manager.FilesBackupPath(time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC))

	require.NoError(t, manager.CreateFilesDirectory(filesDir))
	assert.DirExists(t, filesDir)

	err := manager.CreateFilesDirectory(filesDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestManagerArchive(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		wantSuffix string
		encrypted  bool
	}{
		{name: "plain", cfg: Config{Compression: CompressionNone}, wantSuffix: ".sql"},
		{name: "gzip", cfg: Config{Compression: CompressionGzip}, wantSuffix: ".sql.gz"},
		{name: "zstd encrypted", cfg: Config{Compression: CompressionZstd, EncryptionPassphrase: "pw"}, wantSuffix: ".sql.zst.enc", encrypted: true},
		{name: "encrypted only", cfg: Config{EncryptionPassphrase: "pw"}, wantSuffix: ".sql.enc", encrypted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.cfg.Directory = dir
			storage := &fakeStorage{}
			manager := NewManager(&tt.cfg, storage, nil)

			path := manager.DatabaseBackupPath("cms_dest", time.Now())
			require.NoError(t, os.WriteFile(path, sampleDump(), 0o600))

			artifact, err := manager.Archive(context.Background(), path)
			require.NoError(t, err)

			assert.Equal(t, tt.encrypted, artifact.Encrypted)
			assert.Equal(t, filepath.Ext(tt.wantSuffix), filepath.Ext(artifact.LocalPath))
			assert.Equal(t, path+tt.wantSuffix[len(".sql"):], artifact.LocalPath)
			assert.FileExists(t, artifact.LocalPath)
			assert.Positive(t, artifact.Size)
			assert.Equal(t, []string{artifact.LocalPath}, storage.uploaded)
			assert.Equal(t, "s3://bucket/"+filepath.Base(artifact.LocalPath), artifact.Location)
		})
	}
}

func TestManagerArchiveUploadFailure(t *testing.T) {
	dir := t.TempDir()
	storage := &fakeStorage{err: apperrors.NewBackupError("upload", "failed to upload backup to S3", errors.New("403"))}
	manager := NewManager(&Config{Directory: dir, Compression: CompressionNone}, storage, nil)

	path := manager.DatabaseBackupPath("cms_dest", time.Now())
	require.NoError(t, os.WriteFile(path, []byte("dump"), 0o600))

	_, err := manager.Archive(context.Background(), path)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeBackup))
}

func TestLoadConfig(t *testing.T) {
	resolver := config.NewResolver(func() ([]config.Document, error) {
		return []config.Document{
			config.DefaultDocument(),
			{"backup": map[string]interface{}{
				"directory":             "/srv/backups",
				"compression":           "lz4",
				"compression_level":     5,
				"encryption_passphrase": "pw",
				"storage": map[string]interface{}{
					"provider": "s3",
					"bucket":   "cms-backups",
					"region":   "eu-west-1",
					"prefix":   "instances",
				},
			}},
		}, nil
	})

	cfg, err := LoadConfig(resolver)
	require.NoError(t, err)

	assert.Equal(t, "/srv/backups", cfg.Directory)
	assert.Equal(t, CompressionLZ4, cfg.Compression)
	assert.Equal(t, 5, cfg.CompressionLevel)
	assert.Equal(t, "pw", cfg.EncryptionPassphrase)
	assert.Equal(t, StorageProviderS3, cfg.Storage.Provider)
	assert.Equal(t, "cms-backups", cfg.Storage.Bucket)
	assert.Equal(t, "instances", cfg.Storage.Prefix)
}

func TestLoadConfigDefaults(t *testing.T) {
	resolver := config.NewResolver(func() ([]config.Document, error) {
		return []config.Document{config.DefaultDocument()}, nil
	})

	cfg, err := LoadConfig(resolver)
	require.NoError(t, err)
	assert.Equal(t, "backups", cfg.Directory)
	assert.Equal(t, CompressionNone, cfg.Compression)
	assert.Equal(t, StorageProviderLocal, cfg.Storage.Provider)
	assert.Empty(t, cfg.EncryptionPassphrase)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := map[string]map[string]interface{}{
		"compression": {"compression": "rar"},
		"level":       {"compression_level": "high"},
		"provider":    {"storage": map[string]interface{}{"provider": "dropbox"}},
	}

	for name, backupDoc := range tests {
		t.Run(name, func(t *testing.T) {
			resolver := config.NewResolver(func() ([]config.Document, error) {
				return []config.Document{config.DefaultDocument(), {"backup": backupDoc}}, nil
			})
			_, err := LoadConfig(resolver)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
		})
	}
}
