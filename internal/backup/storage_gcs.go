package backup

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	apperrors "cms-instance-sync/internal/errors"
)

// GCSStorage uploads archives to Google Cloud Storage
type GCSStorage struct {
	client     *storage.Client
	bucketName string
	prefix     string
}

// NewGCSStorage creates a GCS storage provider
func NewGCSStorage(ctx context.Context, cfg StorageConfig) (*GCSStorage, error) {
	var client *storage.Client
	var err error

	if cfg.CredentialsFile != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
	} else {
		// default credentials from the environment or metadata server
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, apperrors.NewBackupError("upload", "failed to create GCS client", err)
	}

	return &GCSStorage{
		client:     client,
		bucketName: cfg.Bucket,
		prefix:     cfg.Prefix,
	}, nil
}

// Upload streams the archive to the bucket
func (g *GCSStorage) Upload(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", apperrors.NewBackupError("upload", "failed to open backup for upload", err)
	}
	defer file.Close()

	name := objectKey(g.prefix, localPath)
	writer := g.client.Bucket(g.bucketName).Object(name).NewWriter(ctx)
	writer.ContentType = "application/octet-stream"

	if _, err := io.Copy(writer, file); err != nil {
		writer.Close()
		return "", apperrors.NewBackupError("upload", "failed to write backup to GCS", err).
			WithContext("bucket", g.bucketName)
	}
	if err := writer.Close(); err != nil {
		return "", apperrors.NewBackupError("upload", "failed to upload backup to GCS", err).
			WithContext("bucket", g.bucketName)
	}

	return fmt.Sprintf("gs://%s/%s", g.bucketName, name), nil
}

// Provider returns StorageProviderGCS
func (g *GCSStorage) Provider() StorageProviderType {
	return StorageProviderGCS
}
