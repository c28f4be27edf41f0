package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Search    SearchConfig    `yaml:"search"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Tokens    TokensConfig    `yaml:"tokens"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Cleanup   CleanupConfig   `yaml:"cleanup"`
	Importer  ImporterConfig  `yaml:"importer"`
	Admin     AdminConfig     `yaml:"admin"`
	Mail      MailConfig      `yaml:"mail"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port                   string   `yaml:"port"`
	AllowOrigins           []string `yaml:"allow_origins"`
	ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Type     string         `yaml:"type"` // mysql, postgres or memory
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	APIKey  string `yaml:"api_key"`
	Index   string `yaml:"index"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig contains object storage settings
type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config contains S3 (or S3-compatible) settings
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // optional, for S3-compatible stores
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PublicBaseURL   string `yaml:"public_base_url"`
	MaxUploadMB     int    `yaml:"max_upload_mb"`
}

// AuthConfig contains session and password reset settings
type AuthConfig struct {
	JWTSecret         string `yaml:"jwt_secret"`
	TokenTTLHours     int    `yaml:"token_ttl_hours"`
	ResetTokenTTLMins int    `yaml:"reset_token_ttl_minutes"`
	ResetURLBase      string `yaml:"reset_url_base"`
	MinPasswordLength int    `yaml:"min_password_length"`
}

// TokensConfig contains the submission reward schedule
type TokensConfig struct {
	BaseReward          int `yaml:"base_reward"`
	DescriptionBonus    int `yaml:"description_bonus"`
	DescriptionMinChars int `yaml:"description_min_chars"`
	ImageBonus          int `yaml:"image_bonus"`
}

// RateLimitConfig contains rate limiting settings
type RateLimitConfig struct {
	Enabled               bool    `yaml:"enabled"`
	SubmissionsPerHour    int     `yaml:"submissions_per_hour"`
	SubmissionsPerDay     int     `yaml:"submissions_per_day"`
	AuthRequestsPerSecond float64 `yaml:"auth_requests_per_second"`
	AuthBurst             int     `yaml:"auth_burst"`
}

// SchedulerConfig contains cron settings for background jobs
type SchedulerConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ReconcileCron string `yaml:"reconcile_cron"`
	CleanupCron   string `yaml:"cleanup_cron"`
}

// CleanupConfig contains orphan cleanup settings
type CleanupConfig struct {
	OrphanGraceHours int  `yaml:"orphan_grace_hours"`
	MaxDeletionCount int  `yaml:"max_deletion_count"`
	DryRun           bool `yaml:"dry_run"`
}

// ImporterConfig contains listing import settings
type ImporterConfig struct {
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	RenderJS          bool   `yaml:"render_js"`
	ChromePath        string `yaml:"chrome_path"`
	UserAgent         string `yaml:"user_agent"`
	AllowPrivateHosts bool   `yaml:"allow_private_hosts"` // local development only
}

// MailConfig contains outgoing SMTP settings. An empty host keeps mail in the log.
type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// AdminConfig contains admin bootstrap settings
type AdminConfig struct {
	BootstrapEmails []string `yaml:"bootstrap_emails"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `yaml:"level"`
	JSON        bool   `yaml:"json"`
	LogRequests bool   `yaml:"log_requests"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                   "8084",
			AllowOrigins:           []string{"http://localhost:5173"},
			ShutdownTimeoutSeconds: 15,
		},
		Database: DatabaseConfig{
			Type: "mysql",
		},
		Search: SearchConfig{
			Meilisearch: MeilisearchConfig{
				Enabled: true,
				Index:   "properties",
			},
		},
		Storage: StorageConfig{
			S3: S3Config{
				Region:      "us-east-1",
				MaxUploadMB: 10,
			},
		},
		Auth: AuthConfig{
			TokenTTLHours:     24 * 7,
			ResetTokenTTLMins: 60,
			ResetURLBase:      "http://localhost:5173/reset-password",
			MinPasswordLength: 8,
		},
		Tokens: TokensConfig{
			BaseReward:          5,
			DescriptionBonus:    2,
			DescriptionMinChars: 50,
			ImageBonus:          3,
		},
		RateLimit: RateLimitConfig{
			Enabled:               true,
			SubmissionsPerHour:    10,
			SubmissionsPerDay:     50,
			AuthRequestsPerSecond: 1,
			AuthBurst:             5,
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			ReconcileCron: "*/15 * * * *",
			CleanupCron:   "0 3 * * *",
		},
		Cleanup: CleanupConfig{
			OrphanGraceHours: 24,
			MaxDeletionCount: 1000,
			DryRun:           false,
		},
		Importer: ImporterConfig{
			TimeoutSeconds: 20,
			RenderJS:       false,
			ChromePath:     "/usr/bin/google-chrome",
			UserAgent:      "Mozilla/5.0 (compatible; PropertyMarketplaceImporter/1.0)",
		},
		Logging: LoggingConfig{
			Level:       "info",
			JSON:        false,
			LogRequests: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	// Start with default config
	config := DefaultConfig()

	// If file doesn't exist, return default config
	if _, err := os.Stat(filepath); os.IsNotExist(err) {
		return config, nil
	}

	// Read file
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// ApplyEnv overlays secrets and connection settings from the environment.
// Values already set in the file win, matching GetEnvOrConfig.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DB_TYPE"); v != "" {
		c.Database.Type = v
	}
	c.Server.Port = GetEnv("PORT", c.Server.Port)

	c.Database.MySQL.Host = GetEnvOrConfig(c.Database.MySQL.Host, "DB_HOST", "mysql")
	c.Database.MySQL.User = GetEnvOrConfig(c.Database.MySQL.User, "DB_USER", "marketplace_user")
	c.Database.MySQL.Password = GetEnvOrConfig(c.Database.MySQL.Password, "DB_PASSWORD", "marketplace_pass")
	c.Database.MySQL.Database = GetEnvOrConfig(c.Database.MySQL.Database, "DB_NAME", "marketplace_db")
	if c.Database.MySQL.Port == 0 {
		c.Database.MySQL.Port = envInt("DB_PORT", 3306)
	}

	c.Database.Postgres.Host = GetEnvOrConfig(c.Database.Postgres.Host, "DB_HOST", "db")
	c.Database.Postgres.User = GetEnvOrConfig(c.Database.Postgres.User, "DB_USER", "marketplace_user")
	c.Database.Postgres.Password = GetEnvOrConfig(c.Database.Postgres.Password, "DB_PASSWORD", "marketplace_pass")
	c.Database.Postgres.Database = GetEnvOrConfig(c.Database.Postgres.Database, "DB_NAME", "marketplace_db")
	c.Database.Postgres.SSLMode = GetEnvOrConfig(c.Database.Postgres.SSLMode, "DB_SSLMODE", "disable")
	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = envInt("DB_PORT", 5432)
	}

	c.Search.Meilisearch.Host = GetEnvOrConfig(c.Search.Meilisearch.Host, "MEILISEARCH_HOST", "http://meilisearch:7700")
	c.Search.Meilisearch.APIKey = GetEnvOrConfig(c.Search.Meilisearch.APIKey, "MEILISEARCH_KEY", "")

	c.Redis.Addr = GetEnvOrConfig(c.Redis.Addr, "REDIS_ADDR", "redis:6379")
	c.Redis.Password = GetEnvOrConfig(c.Redis.Password, "REDIS_PASSWORD", "")

	c.Storage.S3.Bucket = GetEnvOrConfig(c.Storage.S3.Bucket, "S3_BUCKET", "property-images")
	c.Storage.S3.Endpoint = GetEnvOrConfig(c.Storage.S3.Endpoint, "S3_ENDPOINT", "")
	c.Storage.S3.AccessKeyID = GetEnvOrConfig(c.Storage.S3.AccessKeyID, "AWS_ACCESS_KEY_ID", "")
	c.Storage.S3.SecretAccessKey = GetEnvOrConfig(c.Storage.S3.SecretAccessKey, "AWS_SECRET_ACCESS_KEY", "")
	c.Storage.S3.PublicBaseURL = GetEnvOrConfig(c.Storage.S3.PublicBaseURL, "S3_PUBLIC_BASE_URL", "")

	c.Auth.JWTSecret = GetEnvOrConfig(c.Auth.JWTSecret, "JWT_SECRET", "")

	c.Mail.Host = GetEnvOrConfig(c.Mail.Host, "SMTP_HOST", "")
	c.Mail.Username = GetEnvOrConfig(c.Mail.Username, "SMTP_USERNAME", "")
	c.Mail.Password = GetEnvOrConfig(c.Mail.Password, "SMTP_PASSWORD", "")
	c.Mail.From = GetEnvOrConfig(c.Mail.From, "SMTP_FROM", "no-reply@property-marketplace.local")
	if c.Mail.Port == 0 {
		c.Mail.Port = envInt("SMTP_PORT", 587)
	}
}

// Validate checks settings the server cannot start without
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "mysql", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (or JWT_SECRET) is required")
	}
	if c.Tokens.BaseReward < 0 || c.Tokens.DescriptionBonus < 0 || c.Tokens.ImageBonus < 0 {
		return fmt.Errorf("token rewards must not be negative")
	}
	return nil
}

// GetTokenTTL returns the session lifetime as a duration
func (c *AuthConfig) GetTokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// GetResetTokenTTL returns the password reset token lifetime as a duration
func (c *AuthConfig) GetResetTokenTTL() time.Duration {
	return time.Duration(c.ResetTokenTTLMins) * time.Minute
}

// GetTimeout returns the importer fetch timeout as a duration
func (c *ImporterConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetOrphanGrace returns how long an unapproved property may exist without a submission
func (c *CleanupConfig) GetOrphanGrace() time.Duration {
	return time.Duration(c.OrphanGraceHours) * time.Hour
}

// GetShutdownTimeout returns the graceful shutdown window
func (c *ServerConfig) GetShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// MaxUploadBytes returns the upload size limit in bytes
func (c *S3Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// GetEnv returns the environment value for key or defaultValue when unset
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvOrConfig returns config value if set, otherwise falls back to environment variable, then default
func GetEnvOrConfig(configValue, envKey, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	return GetEnv(envKey, defaultValue)
}

func envInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
