package backup

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/Azure/azure-storage-blob-go/azblob"

	apperrors "cms-instance-sync/internal/errors"
)

// AzureStorage uploads archives to Azure Blob Storage
type AzureStorage struct {
	containerURL  azblob.ContainerURL
	accountName   string
	containerName string
	prefix        string
}

// NewAzureStorage creates an Azure storage provider
func NewAzureStorage(cfg StorageConfig) (*AzureStorage, error) {
	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, apperrors.NewBackupError("upload", "failed to create Azure credentials", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	}
	serviceURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, apperrors.NewBackupError("upload", "failed to parse Azure service URL", err)
	}

	return &AzureStorage{
		containerURL:  azblob.NewServiceURL(*serviceURL, pipeline).NewContainerURL(cfg.Container),
		accountName:   cfg.AccountName,
		containerName: cfg.Container,
		prefix:        cfg.Prefix,
	}, nil
}

// Upload sends the archive as a block blob
func (a *AzureStorage) Upload(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", apperrors.NewBackupError("upload", "failed to open backup for upload", err)
	}
	defer file.Close()

	name := objectKey(a.prefix, localPath)
	blobURL := a.containerURL.NewBlockBlobURL(name)

	_, err = azblob.UploadFileToBlockBlob(ctx, file, blobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024,
		Parallelism: 4,
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: "application/octet-stream",
		},
	})
	if err != nil {
		return "", apperrors.NewBackupError("upload", "failed to upload backup to Azure", err).
			WithContext("container", a.containerName)
	}

	return fmt.Sprintf("azure://%s/%s/%s", a.accountName, a.containerName, name), nil
}

// Provider returns StorageProviderAzure
func (a *AzureStorage) Provider() StorageProviderType {
	return StorageProviderAzure
}
