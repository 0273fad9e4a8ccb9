package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr      string
	LogLevel      string
	WebhookSecret string
	Timezone      *time.Location

	RecordsDriver string
	DatabaseURL   string
	SQLitePath    string

	SpreadsheetID                  string
	GoogleServiceAccountJSON       string
	GoogleServiceAccountJSONBase64 string

	StorageDriver         string
	DriveRootFolderID     string
	StorageCategoryFolder string
	StorageCallTimeout    time.Duration
	S3Bucket              string
	S3Region              string
	S3Endpoint            string
	S3PathStyle           bool
	S3AccessKeyID         string
	S3SecretAccessKey     string

	TemplateDir string

	TelegramToken string
	AdminTGIDs    map[int64]bool
}

func FromEnv() (Config, error) {
	var c Config

	c.HTTPAddr = envOr("HTTP_ADDR", ":8080")
	c.LogLevel = envOr("LOG_LEVEL", "info")
	c.WebhookSecret = strings.TrimSpace(os.Getenv("WEBHOOK_SECRET"))

	tz := envOr("TZ_NAME", "Asia/Tokyo")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return c, fmt.Errorf("TZ_NAME %q: %w", tz, err)
	}
	c.Timezone = loc

	c.RecordsDriver = envOr("RECORDS_DRIVER", "sheets")
	c.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	c.SQLitePath = envOr("SQLITE_PATH", "data/records.db")
	c.SpreadsheetID = strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID"))
	c.GoogleServiceAccountJSON = strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	c.GoogleServiceAccountJSONBase64 = strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON_BASE64"))

	c.StorageDriver = envOr("STORAGE_DRIVER", "drive")
	c.DriveRootFolderID = strings.TrimSpace(os.Getenv("DRIVE_ROOT_FOLDER_ID"))
	c.StorageCategoryFolder = envOr("STORAGE_CATEGORY_FOLDER", "登録申請書・大会申込書")
	c.S3Bucket = strings.TrimSpace(os.Getenv("S3_BUCKET"))
	c.S3Region = envOr("S3_REGION", "ap-northeast-1")
	c.S3Endpoint = strings.TrimSpace(os.Getenv("S3_ENDPOINT"))
	c.S3PathStyle, _ = strconv.ParseBool(strings.TrimSpace(os.Getenv("S3_PATH_STYLE")))
	c.S3AccessKeyID = strings.TrimSpace(os.Getenv("S3_ACCESS_KEY_ID"))
	c.S3SecretAccessKey = strings.TrimSpace(os.Getenv("S3_SECRET_ACCESS_KEY"))

	c.StorageCallTimeout = 30 * time.Second
	if raw := strings.TrimSpace(os.Getenv("STORAGE_CALL_TIMEOUT")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return c, fmt.Errorf("STORAGE_CALL_TIMEOUT %q is not a positive duration", raw)
		}
		c.StorageCallTimeout = d
	}

	c.TemplateDir = envOr("TEMPLATE_DIR", "templates/wards")

	c.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	c.AdminTGIDs = parseAdminIDs(os.Getenv("ADMIN_TG_IDS"))

	return c, c.validate()
}

func (c Config) HasGoogleCredentials() bool {
	return c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountJSONBase64 != ""
}

func (c Config) validate() error {
	switch c.RecordsDriver {
	case "sheets":
		if c.SpreadsheetID == "" {
			return fmt.Errorf("GOOGLE_SHEETS_SPREADSHEET_ID is empty")
		}
		if !c.HasGoogleCredentials() {
			return fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_JSON is empty")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is empty")
		}
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown records driver: %s", c.RecordsDriver)
	}

	switch c.StorageDriver {
	case "drive":
		if c.DriveRootFolderID == "" {
			return fmt.Errorf("DRIVE_ROOT_FOLDER_ID is empty")
		}
		if !c.HasGoogleCredentials() {
			return fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_JSON is empty")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is empty")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage driver: %s", c.StorageDriver)
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseAdminIDs(raw string) map[int64]bool {
	m := map[int64]bool{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return m
	}
	parts := strings.Split(raw, ",")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		m[v] = true
	}
	return m
}
