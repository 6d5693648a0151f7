package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"civicreports/libs/mailer"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const (
	reportIDPrefix         = "r_"
	reportIDLength         = 7
	reportIDMaxAttempts    = 5
	maxTitleLength         = 200
	maxDescriptionLength   = 4000
	defaultMaxPhotoBytes   = 5 * 1024 * 1024
	defaultLocationTimeout = 10 * time.Second
	defaultStorageKey      = "civic_reports_v1"
	confirmationTokenTTL   = 10 * time.Minute
	notificationTimeout    = 15 * time.Second
	trustedProxyLoopbackV4 = "127.0.0.1"
	trustedProxyLoopbackV6 = "::1"
)

const (
	storeBackendMemory   = "memory"
	storeBackendSQLite   = "sqlite"
	storeBackendRedis    = "redis"
	storeBackendPostgres = "postgres"
)

var (
	reportCategories  = []string{"Garbage", "Pothole", "Streetlight", "Water Leak", "Graffiti", "Other"}
	allowedPhotoTypes = map[string]struct{}{
		"image/jpeg": {},
		"image/png":  {},
		"image/webp": {},
		"image/gif":  {},
	}
	statusTransitions = map[string][]string{
		StatusOpen:     {StatusAssigned, StatusClosed},
		StatusAssigned: {StatusClosed},
		StatusClosed:   {},
	}
	storeBackends = []string{storeBackendMemory, storeBackendSQLite, storeBackendRedis, storeBackendPostgres}
)

type Config struct {
	Addr                string
	Env                 string
	StoreBackend        string
	SQLitePath          string
	DatabaseURL         string
	RedisAddr           string
	RedisDB             int
	StorageKey          string
	AppSigningSecret    string
	PublicBaseURL       string
	SeedOnEmpty         bool
	MaxPhotoBytes       int64
	LocationTimeout     time.Duration
	DisplayTimeZone     string
	NotifyEmailTo       string
	NotifyReplyTo       string
	ResendAPIKey        string
	MailerFromAddresses map[string]string
}

type App struct {
	cfg *Config
	log *slog.Logger

	reports   ReportRepository
	mailer    *mailer.Mailer
	templates *templateRenderer
	loc       *time.Location

	now         func() time.Time
	newReportID func() string
	closeStore  func() error
	background  sync.WaitGroup
}

type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string { return e.Message }

func main() {
	if err := newRootCmd(defaultAppFactory).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// defaultAppFactory builds an App from the process environment.
func defaultAppFactory(ctx context.Context) (*App, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return newApp(ctx, cfg, logger)
}

func newApp(ctx context.Context, cfg *Config, logger *slog.Logger) (*App, error) {
	repo, closeStore, err := openReportRepository(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var mailProvider mailer.Provider
	if cfg.ResendAPIKey != "" {
		mailProvider = mailer.NewResendProvider(cfg.ResendAPIKey)
	} else {
		mailProvider = mailer.NewLogProvider(logger)
	}
	logger.Info("mailer initialized", "provider", mailProvider.Name())

	loc, err := time.LoadLocation(cfg.DisplayTimeZone)
	if err != nil {
		loc = time.UTC
	}

	app := &App{
		cfg:         cfg,
		log:         logger,
		reports:     repo,
		mailer:      mailer.New(mailProvider, cfg.MailerFromAddresses[mailProvider.Name()]),
		templates:   newTemplateRenderer(cfg.Env),
		loc:         loc,
		now:         time.Now,
		newReportID: generateReportID,
		closeStore:  closeStore,
	}

	logger.Info(
		"runtime configuration",
		"env", cfg.Env,
		"addr", cfg.Addr,
		"store_backend", cfg.StoreBackend,
		"storage_key", cfg.StorageKey,
		"seed_on_empty", cfg.SeedOnEmpty,
	)
	return app, nil
}

func (a *App) Close() error {
	a.background.Wait()
	if a.closeStore == nil {
		return nil
	}
	return a.closeStore()
}

func (a *App) routes() (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies([]string{trustedProxyLoopbackV4, trustedProxyLoopbackV6}); err != nil {
		return nil, err
	}
	r.Use(gin.Recovery())
	r.Use(a.loggingMiddleware())

	staticFS, err := staticFileSystem(a.cfg.Env)
	if err != nil {
		return nil, err
	}
	r.StaticFS("/static", staticFS)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	a.registerCitizenRoutes(r)
	a.registerAdminRoutes(r)
	a.registerAPIRoutes(r)
	return r, nil
}

func (a *App) serve(ctx context.Context) error {
	if a.cfg.SeedOnEmpty {
		seeded, err := seedIfEmpty(ctx, a.reports, a.now(), a.newReportID)
		if err != nil {
			return fmt.Errorf("seed reports: %w", err)
		}
		if seeded {
			a.log.Info("seeded sample reports", "count", len(sampleReportTemplates))
		}
	}

	r, err := a.routes()
	if err != nil {
		return err
	}

	server := &http.Server{Addr: a.cfg.Addr, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("starting gin server", "addr", a.cfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.log.Info("shutting down server")
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func loadConfig() (*Config, error) {
	secret := strings.TrimSpace(os.Getenv("APP_SIGNING_SECRET"))
	if len(secret) < 16 {
		return nil, fmt.Errorf("APP_SIGNING_SECRET must be at least 16 characters")
	}

	env := valueOrDefault("APP_ENV", "development")

	backend := strings.ToLower(valueOrDefault("STORE_BACKEND", storeBackendSQLite))
	if !containsString(storeBackends, backend) {
		return nil, fmt.Errorf("STORE_BACKEND must be one of %s", strings.Join(storeBackends, ", "))
	}

	cfg := &Config{
		Addr:             valueOrDefault("HTTP_ADDR", ":8080"),
		Env:              env,
		StoreBackend:     backend,
		SQLitePath:       valueOrDefault("SQLITE_PATH", "data/civic_reports.db"),
		DatabaseURL:      databaseURLFromEnv(),
		RedisAddr:        valueOrDefault("REDIS_ADDR", "127.0.0.1:6379"),
		StorageKey:       valueOrDefault("STORAGE_KEY", defaultStorageKey),
		AppSigningSecret: secret,
		PublicBaseURL:    strings.TrimRight(valueOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		SeedOnEmpty:      true,
		MaxPhotoBytes:    defaultMaxPhotoBytes,
		LocationTimeout:  defaultLocationTimeout,
		DisplayTimeZone:  valueOrDefault("DISPLAY_TIMEZONE", "UTC"),
		NotifyEmailTo:    strings.TrimSpace(os.Getenv("NOTIFY_EMAIL_TO")),
		NotifyReplyTo:    strings.TrimSpace(os.Getenv("NOTIFY_REPLY_TO")),
		ResendAPIKey:     strings.TrimSpace(os.Getenv("RESEND_API_KEY")),
		MailerFromAddresses: map[string]string{
			"resend": valueOrDefault("MAILER_FROM_ADDRESS_RESEND", "noreply@civicreports.example"),
			"log":    valueOrDefault("MAILER_FROM_ADDRESS_LOG", "noreply@civicreports.local"),
		},
	}

	if backend == storeBackendPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or PG*/POSTGRES_* variables must be configured for the postgres store")
	}

	if raw := strings.TrimSpace(os.Getenv("REDIS_DB")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("REDIS_DB must be a non-negative integer")
		}
		cfg.RedisDB = parsed
	}

	if raw := strings.TrimSpace(os.Getenv("SEED_ON_EMPTY")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("SEED_ON_EMPTY must be a boolean")
		}
		cfg.SeedOnEmpty = parsed
	}

	if raw := strings.TrimSpace(os.Getenv("MAX_PHOTO_BYTES")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("MAX_PHOTO_BYTES must be a valid integer")
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("MAX_PHOTO_BYTES must be > 0")
		}
		cfg.MaxPhotoBytes = parsed
	}

	if raw := strings.TrimSpace(os.Getenv("LOCATION_TIMEOUT_MS")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("LOCATION_TIMEOUT_MS must be a valid integer")
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("LOCATION_TIMEOUT_MS must be > 0")
		}
		cfg.LocationTimeout = time.Duration(parsed) * time.Millisecond
	}

	if _, err := time.LoadLocation(cfg.DisplayTimeZone); err != nil {
		return nil, fmt.Errorf("DISPLAY_TIMEZONE is not a known time zone: %w", err)
	}

	return cfg, nil
}

func databaseURLFromEnv() string {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL != "" {
		return databaseURL
	}
	host := valueFromEnvKeys("PGHOST", "POSTGRES_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := valueFromEnvKeys("PGPORT", "POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	dbname := valueFromEnvKeys("PGDATABASE", "POSTGRES_DB")
	user := valueFromEnvKeys("PGUSER", "POSTGRES_USER")
	password := valueFromEnvKeys("PGPASSWORD", "POSTGRES_PASSWORD")
	sslmode := valueFromEnvKeys("PGSSLMODE", "POSTGRES_SSLMODE")
	if sslmode == "" {
		sslmode = "disable"
	}
	if dbname == "" || user == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, dbname, sslmode)
}

func valueOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func valueFromEnvKeys(keys ...string) string {
	for _, key := range keys {
		value := strings.TrimSpace(os.Getenv(key))
		if value != "" {
			return value
		}
	}
	return ""
}

func containsString(list []string, value string) bool {
	for _, entry := range list {
		if entry == value {
			return true
		}
	}
	return false
}

func (a *App) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		)
	}
}

func writeAPIError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Code, "message": apiErr.Message})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
}
