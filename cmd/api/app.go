package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"property-marketplace/internal/admin"
	"property-marketplace/internal/appointment"
	"property-marketplace/internal/approval"
	"property-marketplace/internal/auth"
	"property-marketplace/internal/cleanup"
	"property-marketplace/internal/config"
	"property-marketplace/internal/database"
	"property-marketplace/internal/directory"
	"property-marketplace/internal/handlers"
	"property-marketplace/internal/importer"
	"property-marketplace/internal/ratelimit"
	"property-marketplace/internal/search"
	"property-marketplace/internal/storage"
	"property-marketplace/internal/submission"
	"property-marketplace/internal/tokens"
)

// app holds the wired services shared by every command
type app struct {
	cfg     *config.Config
	store   database.Store
	search  *search.Service
	cleanup *cleanup.Service
	quota   *ratelimit.SubmissionQuota
	deps    handlers.Deps
	closers []func() error
}

// loadConfig reads .env, the YAML file and environment overrides, then sets up logging
func loadConfig(configPath string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	if configPath == "" {
		configPath = config.GetEnv("CONFIG_PATH", "config/config.yaml")
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Printf("Warning: Failed to load config from %s: %v. Using defaults.", configPath, err)
		cfg = config.DefaultConfig()
	} else {
		log.Printf("Loaded configuration from %s", configPath)
	}
	cfg.ApplyEnv()

	setupLogging(cfg.Logging)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.JSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	database.SetLogLevel(strings.ToLower(cfg.Level))
}

// openStore connects the configured backend and makes sure the schema exists
func openStore(cfg *config.Config) (database.Store, error) {
	switch cfg.Database.Type {
	case "mysql":
		log.Println("Using MySQL with GORM")
		mysqlCfg := cfg.Database.MySQL
		gormDB, err := database.NewGormDB(
			mysqlCfg.Host,
			strconv.Itoa(mysqlCfg.Port),
			mysqlCfg.User,
			mysqlCfg.Password,
			mysqlCfg.Database,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		if err := gormDB.InitSchema(); err != nil {
			gormDB.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		return gormDB, nil

	case "postgres":
		log.Println("Using PostgreSQL")
		pgCfg := cfg.Database.Postgres
		pg, err := database.NewPostgresDB(
			pgCfg.Host,
			strconv.Itoa(pgCfg.Port),
			pgCfg.User,
			pgCfg.Password,
			pgCfg.Database,
			pgCfg.SSLMode,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pg.InitSchema(); err != nil {
			pg.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		return pg, nil

	case "memory":
		log.Println("Using in-memory store (data is lost on exit)")
		return database.NewMemoryDB(), nil
	}
	return nil, fmt.Errorf("unsupported database type %q", cfg.Database.Type)
}

// newSearchClient returns nil when Meilisearch is disabled
func newSearchClient(cfg config.MeilisearchConfig) *search.SearchClient {
	if !cfg.Enabled {
		log.Println("Meilisearch disabled, full-text search falls back to the database")
		return nil
	}
	client := search.NewSearchClient(cfg.Host, cfg.APIKey, cfg.Index)
	if err := client.InitIndex(); err != nil {
		log.Printf("Warning: Failed to initialize search index: %v", err)
	}
	return client
}

// newResetStore prefers Redis and falls back to process memory
func newResetStore(cfg config.RedisConfig) (auth.ResetStore, func() error) {
	if cfg.Addr != "" {
		rdb, err := auth.ConnectRedis(cfg.Addr, cfg.Password, cfg.DB)
		if err == nil {
			return auth.NewRedisResetStore(rdb), rdb.Close
		}
		log.Printf("Warning: %v. Reset tokens are kept in memory.", err)
	}
	return auth.NewMemoryResetStore(), nil
}

// newImageStore uses S3 when a bucket is configured
func newImageStore(ctx context.Context, cfg config.S3Config) storage.ImageStore {
	if cfg.Bucket != "" {
		s3Store, err := storage.NewS3Store(ctx, cfg)
		if err == nil {
			log.Printf("Storing images in bucket %s", cfg.Bucket)
			return s3Store
		}
		log.Printf("Warning: Failed to set up S3 storage: %v. Images are kept in memory.", err)
	}
	base := cfg.PublicBaseURL
	if base == "" {
		base = "http://localhost/uploads"
	}
	return storage.NewMemoryStore(base, cfg.MaxUploadBytes())
}

// newApp wires every service on top of the configured backends
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, store: store, closers: []func() error{store.Close}}

	a.search = search.NewService(store, newSearchClient(cfg.Search.Meilisearch))
	resets, closeRedis := newResetStore(cfg.Redis)
	if closeRedis != nil {
		a.closers = append(a.closers, closeRedis)
	}
	images := newImageStore(ctx, cfg.Storage.S3)

	ledger := tokens.NewLedger(store)
	a.quota = ratelimit.NewSubmissionQuota(cfg.RateLimit.SubmissionsPerHour, cfg.RateLimit.SubmissionsPerDay, cfg.RateLimit.Enabled)
	log.Printf("Submission quota initialized: %d/hour, %d/day (enabled: %v)",
		cfg.RateLimit.SubmissionsPerHour, cfg.RateLimit.SubmissionsPerDay, cfg.RateLimit.Enabled)

	adminSvc := admin.NewService(store, ledger)
	a.cleanup = cleanup.NewService(store, ledger, a.search)

	a.deps = handlers.Deps{
		Config:       cfg,
		Store:        store,
		Auth:         auth.NewService(store, cfg.Auth, cfg.Admin.BootstrapEmails, resets, auth.NewSender(cfg.Mail)),
		Admin:        adminSvc,
		Submission:   submission.NewService(store, tokens.NewRewardPolicy(cfg.Tokens), a.quota, a.search),
		Approval:     approval.NewService(store, ledger, a.search, images),
		Search:       a.search,
		Ledger:       ledger,
		Quota:        a.quota,
		Appointments: appointment.NewService(store),
		Directory:    directory.NewService(store),
		Cleanup:      a.cleanup,
		Images:       images,
		Importer:     importer.NewImporter(cfg.Importer),
	}
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("Warning: close failed: %v", err)
		}
	}
}
