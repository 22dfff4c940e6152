package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds the whole application configuration.
// Populated from environment variables (optionally seeded by a .env file).
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	MinIO    MinIOConfig
	Storage  StorageConfig
	Image    ImageConfig
	Rating   RatingConfig
	Cache    CacheConfig
	Jobs     JobsConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Port        string
	Version     string
	LogLevel    string
}

// DatabaseConfig: URL (DATABASE_URL) wins over the discrete fields.
type DatabaseConfig struct {
	URL         string
	Host        string
	Port        int
	User        string
	Password    string
	Name        string
	SSLMode     string
	AutoMigrate bool

	MaxConns          int
	MinConns          int
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
}

type RedisConfig struct {
	Host     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	AccessTokenExpiry int // minutes
}

type MinIOConfig struct {
	Endpoint      string // localhost:9000
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string // overrides the URL prefix handed out to clients
}

// StorageConfig selects the blob store backing book images.
type StorageConfig struct {
	Driver        string // minio | local
	LocalDir      string
	PublicBaseURL string // used by the local driver to build /images/<key> URLs
}

type ImageConfig struct {
	MaxBytes     int64
	Optimize     bool
	MaxDimension int
	Quality      int
}

type RatingConfig struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
}

type CacheConfig struct {
	TTL time.Duration
}

type JobsConfig struct {
	OrphanSweepCron   string
	OrphanGracePeriod time.Duration
	CleanupMaxRetry   int
}

// Load reads config from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Book Review API"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:         getEnv("DATABASE_URL", ""),
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnvInt("DB_PORT", 5432),
			User:        getEnv("DB_USER", "bookreview"),
			Password:    getEnv("DB_PASSWORD", ""),
			Name:        getEnv("DB_NAME", "bookreview_dev"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),

			MaxConns:          getEnvInt("DB_MAX_CONNECTIONS", 25),
			MinConns:          getEnvInt("DB_MIN_CONNECTIONS", 2),
			MaxConnLifetime:   getEnvDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvDuration("DB_MAX_CONN_IDLE_TIME", time.Minute),
			HealthCheckPeriod: getEnvDuration("DB_HEALTH_CHECK_PERIOD", time.Minute),
			ConnectTimeout:    getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
			MaxRetries:        getEnvInt("DB_MAX_RETRIES", 5),
			RetryDelay:        getEnvDuration("DB_RETRY_DELAY", time.Second),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", defaultJWTSecret),
			AccessTokenExpiry: getEnvInt("JWT_ACCESS_EXPIRY", 24*60),
		},
		MinIO: MinIOConfig{
			Endpoint:      getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:     getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:     getEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:        getEnv("MINIO_BUCKET", "bookreview"),
			UseSSL:        getEnvBool("MINIO_USE_SSL", false),
			PublicBaseURL: getEnv("MINIO_PUBLIC_BASE_URL", ""),
		},
		Storage: StorageConfig{
			Driver:        strings.ToLower(getEnv("STORAGE_DRIVER", "local")),
			LocalDir:      getEnv("STORAGE_LOCAL_DIR", "./images"),
			PublicBaseURL: strings.TrimRight(getEnv("STORAGE_PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		},
		Image: ImageConfig{
			MaxBytes:     getEnvInt64("IMAGE_MAX_BYTES", 5*1024*1024),
			Optimize:     getEnvBool("IMAGE_OPTIMIZE", true),
			MaxDimension: getEnvInt("IMAGE_MAX_DIMENSION", 1200),
			Quality:      getEnvInt("IMAGE_JPEG_QUALITY", 85),
		},
		Rating: RatingConfig{
			MaxRetries:     getEnvInt("RATING_MAX_RETRIES", 10),
			RetryBaseDelay: getEnvDuration("RATING_RETRY_BASE_DELAY", 10*time.Millisecond),
		},
		Cache: CacheConfig{
			TTL: getEnvDuration("CACHE_TTL", 30*time.Second),
		},
		Jobs: JobsConfig{
			OrphanSweepCron:   getEnv("JOB_ORPHAN_SWEEP_CRON", "@every 1h"),
			OrphanGracePeriod: getEnvDuration("JOB_ORPHAN_GRACE_PERIOD", time.Hour),
			CleanupMaxRetry:   getEnvInt("JOB_CLEANUP_MAX_RETRY", 10),
		},
	}

	// Validate critical config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the config is usable
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "minio", "local":
	default:
		return fmt.Errorf("STORAGE_DRIVER must be one of minio, local (got %q)", c.Storage.Driver)
	}

	if c.Database.URL == "" && (c.Database.Port < 1 || c.Database.Port > 65535) {
		return fmt.Errorf("DB_PORT must be a valid port (got %d)", c.Database.Port)
	}

	if c.Database.MaxConns < 1 || c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNECTIONS/DB_MAX_CONNECTIONS out of range (%d/%d)", c.Database.MinConns, c.Database.MaxConns)
	}

	if c.Rating.MaxRetries < 1 {
		return fmt.Errorf("RATING_MAX_RETRIES must be at least 1")
	}

	if c.Image.MaxBytes <= 0 {
		return fmt.Errorf("IMAGE_MAX_BYTES must be positive")
	}

	if c.Image.Quality < 1 || c.Image.Quality > 100 {
		return fmt.Errorf("IMAGE_JPEG_QUALITY must be between 1 and 100")
	}

	// Production environment must not run with the development secrets
	if c.App.Environment == "production" {
		if c.JWT.Secret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD must be set in production")
		}
		if c.Storage.Driver == "local" {
			log.Warn().Msg("STORAGE_DRIVER=local in production - images are not replicated")
		}
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
