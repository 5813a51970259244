// Package backup post-processes the destination database backup taken before
// a migration overwrites it.
//
// A backup file written by mysqldump goes through three optional stages:
//
//   - compression (gzip, lz4 or zstd), replacing file.sql with file.sql.gz and so on
//   - encryption with a passphrase (chunked AES-256-GCM, PBKDF2-SHA256 key), adding .enc
//   - upload to a storage provider (local, S3, Google Cloud Storage or Azure Blob Storage)
//
// Example usage:
//
//	cfg, err := backup.LoadConfig(resolver)
//	if err != nil {
//		return err
//	}
//	store, err := backup.NewStorage(ctx, cfg.Storage)
//	if err != nil {
//		return err
//	}
//	manager := backup.NewManager(cfg, store, logger)
//	artifact, err := manager.Archive(ctx, manager.DatabaseBackupPath("cms_prod", time.Now()))
package backup
