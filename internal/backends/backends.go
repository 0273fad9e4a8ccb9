// Package backends turns configuration into concrete record and storage
// implementations.
package backends

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/config"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/gauth"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/records"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/records/memory"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/records/sheets"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/records/sqldb"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/storage"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/storage/drive"
	storagemem "github.com/tomohito-hyodo01/jujo-discord-app/internal/storage/memory"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/storage/s3"
)

func credentials(cfg config.Config) gauth.Credentials {
	return gauth.Credentials{
		Path:   cfg.GoogleServiceAccountJSON,
		Base64: cfg.GoogleServiceAccountJSONBase64,
	}
}

func OpenRecords(ctx context.Context, cfg config.Config) (records.Store, error) {
	switch cfg.RecordsDriver {
	case "sheets":
		return sheets.New(ctx, credentials(cfg), cfg.SpreadsheetID, cfg.Timezone)
	case "postgres":
		return sqldb.OpenPostgres(ctx, cfg.DatabaseURL, cfg.Timezone)
	case "sqlite":
		return sqldb.OpenSQLite(ctx, cfg.SQLitePath, cfg.Timezone)
	case "memory":
		slog.Warn("records: in-memory store, nothing will be read from the record store")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown records driver: %s", cfg.RecordsDriver)
	}
}

// OpenStorage returns the backend for STORAGE_DRIVER and the root folder id
// uploads are placed under.
func OpenStorage(ctx context.Context, cfg config.Config) (storage.Backend, string, error) {
	switch cfg.StorageDriver {
	case "drive":
		b, err := drive.New(ctx, credentials(cfg))
		if err != nil {
			return nil, "", err
		}
		return b, cfg.DriveRootFolderID, nil
	case "s3":
		b, err := s3.New(ctx, s3.Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PathStyle:       cfg.S3PathStyle,
		})
		if err != nil {
			return nil, "", err
		}
		return b, "", nil
	case "memory":
		return storagemem.New(), "", nil
	default:
		return nil, "", fmt.Errorf("unknown storage driver: %s", cfg.StorageDriver)
	}
}
