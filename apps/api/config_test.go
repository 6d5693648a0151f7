package main

import (
	"strings"
	"testing"
	"time"
)

var configEnvKeys = []string{
	"APP_ENV", "HTTP_ADDR", "STORE_BACKEND", "SQLITE_PATH", "DATABASE_URL",
	"PGHOST", "POSTGRES_HOST", "PGPORT", "POSTGRES_PORT", "PGDATABASE", "POSTGRES_DB",
	"PGUSER", "POSTGRES_USER", "PGPASSWORD", "POSTGRES_PASSWORD", "PGSSLMODE", "POSTGRES_SSLMODE",
	"REDIS_ADDR", "REDIS_DB", "STORAGE_KEY", "PUBLIC_BASE_URL", "SEED_ON_EMPTY",
	"MAX_PHOTO_BYTES", "LOCATION_TIMEOUT_MS", "DISPLAY_TIMEZONE", "NOTIFY_EMAIL_TO", "NOTIFY_REPLY_TO",
	"RESEND_API_KEY", "MAILER_FROM_ADDRESS_RESEND", "MAILER_FROM_ADDRESS_LOG",
}

func setupRequiredConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
	t.Setenv("APP_SIGNING_SECRET", testSigningSecret)
}

func TestLoadConfigDefaults(t *testing.T) {
	setupRequiredConfigEnv(t)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("expected config to load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Env != "development" {
		t.Fatalf("unexpected addr/env %q %q", cfg.Addr, cfg.Env)
	}
	if cfg.StoreBackend != storeBackendSQLite || cfg.SQLitePath != "data/civic_reports.db" {
		t.Fatalf("unexpected store defaults %q %q", cfg.StoreBackend, cfg.SQLitePath)
	}
	if cfg.StorageKey != defaultStorageKey {
		t.Fatalf("unexpected storage key %q", cfg.StorageKey)
	}
	if !cfg.SeedOnEmpty {
		t.Fatal("expected seeding enabled by default")
	}
	if cfg.MaxPhotoBytes != defaultMaxPhotoBytes || cfg.LocationTimeout != defaultLocationTimeout {
		t.Fatalf("unexpected limits %d %s", cfg.MaxPhotoBytes, cfg.LocationTimeout)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("expected no database url, got %q", cfg.DatabaseURL)
	}
	if cfg.MailerFromAddresses["log"] == "" || cfg.MailerFromAddresses["resend"] == "" {
		t.Fatalf("expected default sender addresses, got %v", cfg.MailerFromAddresses)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setupRequiredConfigEnv(t)
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("STORAGE_KEY", "city_reports")
	t.Setenv("PUBLIC_BASE_URL", "https://reports.example.org/")
	t.Setenv("SEED_ON_EMPTY", "false")
	t.Setenv("MAX_PHOTO_BYTES", "1048576")
	t.Setenv("LOCATION_TIMEOUT_MS", "2500")
	t.Setenv("DISPLAY_TIMEZONE", "UTC")
	t.Setenv("NOTIFY_EMAIL_TO", "ops@example.org")
	t.Setenv("NOTIFY_REPLY_TO", " desk@example.org ")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("expected config to load: %v", err)
	}
	if cfg.StoreBackend != storeBackendRedis || cfg.RedisAddr != "cache:6379" || cfg.RedisDB != 3 {
		t.Fatalf("unexpected redis config %+v", cfg)
	}
	if cfg.StorageKey != "city_reports" {
		t.Fatalf("unexpected storage key %q", cfg.StorageKey)
	}
	if cfg.PublicBaseURL != "https://reports.example.org" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.PublicBaseURL)
	}
	if cfg.SeedOnEmpty {
		t.Fatal("expected seeding disabled")
	}
	if cfg.MaxPhotoBytes != 1<<20 {
		t.Fatalf("unexpected max photo bytes %d", cfg.MaxPhotoBytes)
	}
	if cfg.LocationTimeout != 2500*time.Millisecond {
		t.Fatalf("unexpected location timeout %s", cfg.LocationTimeout)
	}
	if cfg.NotifyEmailTo != "ops@example.org" {
		t.Fatalf("unexpected notify address %q", cfg.NotifyEmailTo)
	}
	if cfg.NotifyReplyTo != "desk@example.org" {
		t.Fatalf("unexpected reply-to address %q", cfg.NotifyReplyTo)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "short secret", key: "APP_SIGNING_SECRET", value: "short", wantErr: "APP_SIGNING_SECRET"},
		{name: "unknown backend", key: "STORE_BACKEND", value: "mongo", wantErr: "STORE_BACKEND"},
		{name: "postgres without url", key: "STORE_BACKEND", value: "postgres", wantErr: "DATABASE_URL"},
		{name: "redis db", key: "REDIS_DB", value: "-1", wantErr: "REDIS_DB"},
		{name: "seed flag", key: "SEED_ON_EMPTY", value: "maybe", wantErr: "SEED_ON_EMPTY"},
		{name: "photo bytes not numeric", key: "MAX_PHOTO_BYTES", value: "lots", wantErr: "MAX_PHOTO_BYTES"},
		{name: "photo bytes zero", key: "MAX_PHOTO_BYTES", value: "0", wantErr: "MAX_PHOTO_BYTES"},
		{name: "location timeout", key: "LOCATION_TIMEOUT_MS", value: "-5", wantErr: "LOCATION_TIMEOUT_MS"},
		{name: "time zone", key: "DISPLAY_TIMEZONE", value: "Mars/Olympus", wantErr: "DISPLAY_TIMEZONE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupRequiredConfigEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := loadConfig()
			if err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadConfigPostgresFromComponentVars(t *testing.T) {
	setupRequiredConfigEnv(t)
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_DB", "reports")
	t.Setenv("POSTGRES_USER", "civic")
	t.Setenv("POSTGRES_PASSWORD", "secret")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("expected config to load: %v", err)
	}
	want := "postgres://civic:secret@db:5432/reports?sslmode=disable"
	if cfg.DatabaseURL != want {
		t.Fatalf("expected %q, got %q", want, cfg.DatabaseURL)
	}
}

func TestDatabaseURLFromEnvPrefersDatabaseURL(t *testing.T) {
	setupRequiredConfigEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@host/db")
	t.Setenv("PGDATABASE", "ignored")
	t.Setenv("PGUSER", "ignored")

	if got := databaseURLFromEnv(); got != "postgres://u:p@host/db" {
		t.Fatalf("unexpected database url %q", got)
	}
}

func TestDatabaseURLFromEnvPGVarsTakePrecedence(t *testing.T) {
	setupRequiredConfigEnv(t)
	t.Setenv("PGHOST", "pg")
	t.Setenv("POSTGRES_HOST", "other")
	t.Setenv("PGPORT", "6543")
	t.Setenv("PGDATABASE", "reports")
	t.Setenv("PGUSER", "civic")
	t.Setenv("PGSSLMODE", "require")

	want := "postgres://civic:@pg:6543/reports?sslmode=require"
	if got := databaseURLFromEnv(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
