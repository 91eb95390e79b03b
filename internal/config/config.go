package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds all application configuration
type Config struct {
	NodeEnv       string `env:"NODE_ENV, default=development"`
	Port          string `env:"PORT, default=3210"`
	LogLevel      string `env:"LOG_LEVEL, default=info"`
	LogPretty     bool   `env:"LOG_PRETTY, default=false"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL, default=http://localhost:3210"`
	FrontendDir   string `env:"FRONTEND_DIR"`

	JWTSecret       string        `env:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL, default=1h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL, default=2160h"`

	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Seal      SealConfig
	Bootstrap BootstrapConfig
	Workflow  WorkflowConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `env:"PG_HOST, default=localhost"`
	Port     string `env:"PG_PORT, default=5432"`
	Username string `env:"PG_USERNAME, default=postgres"`
	Password string `env:"PG_PASSWORD"`
	Database string `env:"PG_DATABASE, default=kamiops"`
	Alter    bool   `env:"DB_ALTER, default=false"`
}

// RedisConfig enables cross-instance event fan-out when Addr is set
type RedisConfig struct {
	Addr    string `env:"REDIS_ADDR"`
	DB      int    `env:"REDIS_DB, default=0"`
	Channel string `env:"REDIS_CHANNEL, default=kami:events"`
}

// StorageConfig selects where signature images and sealed PDFs live
type StorageConfig struct {
	Driver     string        `env:"STORAGE_DRIVER, default=local"` // local, s3
	Dir        string        `env:"STORAGE_DIR, default=./storage"`
	Bucket     string        `env:"S3_BUCKET"`
	Region     string        `env:"S3_REGION, default=us-east-1"`
	Prefix     string        `env:"S3_PREFIX"`
	PresignTTL time.Duration `env:"S3_PRESIGN_TTL, default=30m"`
}

// SealConfig points at the RSA key used to seal signed documents
type SealConfig struct {
	KeyPath string `env:"SEAL_KEY_PATH, default=./keys/seal.pem"`
}

// BootstrapConfig seeds the first administrator
type BootstrapConfig struct {
	AdminEmail    string `env:"ADMIN_EMAIL, default=admin@kami.local"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

// WorkflowConfig tunes background document processing
type WorkflowConfig struct {
	ExpirySweepInterval time.Duration `env:"EXPIRY_SWEEP_INTERVAL, default=1m"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Storage.Driver == "s3" && cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER=s3")
	}

	return &cfg, nil
}

// IsProduction reports whether the service runs with production defaults
func (c *Config) IsProduction() bool {
	return c.NodeEnv == "production"
}
