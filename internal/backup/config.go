package backup

import (
	"fmt"
	"strconv"

	"github.com/mitchellh/go-homedir"

	"cms-instance-sync/internal/config"
	apperrors "cms-instance-sync/internal/errors"
)

// StorageProviderType selects where archived backups end up
type StorageProviderType string

const (
	StorageProviderLocal StorageProviderType = "local"
	StorageProviderS3    StorageProviderType = "s3"
	StorageProviderGCS   StorageProviderType = "gcs"
	StorageProviderAzure StorageProviderType = "azure"
)

// Config holds the backup.* settings
type Config struct {
	Directory            string
	Compression          CompressionType
	CompressionLevel     int
	EncryptionPassphrase string
	Storage              StorageConfig
}

// StorageConfig holds the backup.storage.* settings
type StorageConfig struct {
	Provider StorageProviderType
	Bucket   string
	Prefix   string

	// S3
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string

	// GCS
	CredentialsFile string

	// Azure
	AccountName string
	AccountKey  string
	Container   string
}

// LoadConfig reads backup settings from the merged configuration
func LoadConfig(resolver *config.Resolver) (*Config, error) {
	get := func(key, fallback string) (string, error) {
		return resolver.StringOr("backup."+key, fallback)
	}

	var cfg Config
	var err error
	var raw string

	if raw, err = get("directory", "backups"); err != nil {
		return nil, err
	}
	if cfg.Directory, err = homedir.Expand(raw); err != nil {
		return nil, apperrors.NewConfigLoadError("backup.directory", err)
	}

	if raw, err = get("compression", string(CompressionNone)); err != nil {
		return nil, err
	}
	cfg.Compression = CompressionType(raw)

	if raw, err = get("compression_level", "0"); err != nil {
		return nil, err
	}
	if cfg.CompressionLevel, err = strconv.Atoi(raw); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeValidation,
			fmt.Sprintf("backup.compression_level %q is not a number", raw), err).
			WithContext("path", "backup.compression_level")
	}

	if cfg.EncryptionPassphrase, err = get("encryption_passphrase", ""); err != nil {
		return nil, err
	}

	storageFields := []struct {
		key    string
		target *string
	}{
		{"bucket", &cfg.Storage.Bucket},
		{"prefix", &cfg.Storage.Prefix},
		{"region", &cfg.Storage.Region},
		{"endpoint", &cfg.Storage.Endpoint},
		{"access_key", &cfg.Storage.AccessKey},
		{"secret_key", &cfg.Storage.SecretKey},
		{"credentials_file", &cfg.Storage.CredentialsFile},
		{"account_name", &cfg.Storage.AccountName},
		{"account_key", &cfg.Storage.AccountKey},
		{"container", &cfg.Storage.Container},
	}
	for _, f := range storageFields {
		if *f.target, err = get("storage."+f.key, ""); err != nil {
			return nil, err
		}
	}

	if raw, err = get("storage.provider", string(StorageProviderLocal)); err != nil {
		return nil, err
	}
	cfg.Storage.Provider = StorageProviderType(raw)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the backup configuration
func (c *Config) Validate() error {
	if c.Directory == "" {
		return invalidSetting("backup.directory", "backup directory is required")
	}
	if _, err := ParseCompressionType(string(c.Compression)); err != nil {
		return err
	}
	return c.Storage.Validate()
}

// Validate checks that the selected provider has what it needs
func (sc *StorageConfig) Validate() error {
	switch sc.Provider {
	case StorageProviderLocal, "":
		return nil
	case StorageProviderS3:
		if sc.Bucket == "" {
			return invalidSetting("backup.storage.bucket", "S3 bucket is required")
		}
		if sc.Region == "" {
			return invalidSetting("backup.storage.region", "S3 region is required")
		}
	case StorageProviderGCS:
		if sc.Bucket == "" {
			return invalidSetting("backup.storage.bucket", "GCS bucket is required")
		}
	case StorageProviderAzure:
		if sc.AccountName == "" || sc.AccountKey == "" {
			return invalidSetting("backup.storage.account_name", "Azure account name and key are required")
		}
		if sc.Container == "" {
			return invalidSetting("backup.storage.container", "Azure container is required")
		}
	default:
		return invalidSetting("backup.storage.provider",
			fmt.Sprintf("unsupported storage provider %q (expected local, s3, gcs or azure)", sc.Provider))
	}
	return nil
}

func invalidSetting(path, message string) error {
	return apperrors.NewAppError(apperrors.ErrorTypeValidation, message, nil).
		WithContext("path", path)
}
