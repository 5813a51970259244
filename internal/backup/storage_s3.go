package backup

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	apperrors "cms-instance-sync/internal/errors"
)

// S3Storage uploads archives to Amazon S3 or an S3 compatible endpoint
type S3Storage struct {
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Storage creates an S3 storage provider. Static credentials are used
// when configured, otherwise the SDK default chain applies.
func NewS3Storage(cfg StorageConfig) (*S3Storage, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, apperrors.NewBackupError("upload", "failed to create AWS session", err)
	}

	return &S3Storage{
		uploader: s3manager.NewUploader(sess),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
	}, nil
}

// Upload streams the archive to the bucket
func (s *S3Storage) Upload(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", apperrors.NewBackupError("upload", "failed to open backup for upload", err)
	}
	defer file.Close()

	key := objectKey(s.prefix, localPath)
	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return "", apperrors.NewBackupError("upload", "failed to upload backup to S3", err).
			WithContext("bucket", s.bucket)
	}

	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// Provider returns StorageProviderS3
func (s *S3Storage) Provider() StorageProviderType {
	return StorageProviderS3
}
