package container

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"bookreview-backend/internal/config"
	bookHandler "bookreview-backend/internal/domains/book/handler"
	bookRepo "bookreview-backend/internal/domains/book/repository"
	bookService "bookreview-backend/internal/domains/book/service"
	infraCache "bookreview-backend/internal/infrastructure/cache"
	"bookreview-backend/internal/infrastructure/database"
	"bookreview-backend/internal/infrastructure/queue"
	"bookreview-backend/internal/infrastructure/storage"
	"bookreview-backend/pkg/cache"
	"bookreview-backend/pkg/jwt"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container is the root of the dependency graph shared by the API and the worker.
type Container struct {
	// Infrastructure
	Config      *config.Config
	DB          *database.PostgresDB
	Redis       *infraCache.RedisClient
	Cache       cache.Cache // nil when Redis is unreachable
	Blobs       storage.BlobStore
	LocalImages *storage.LocalStorage // set only for the local driver
	Images      *storage.ImageProcessor
	Queue       *queue.Client
	JWTManager  *jwt.Manager

	// Book domain
	BookRepo    bookRepo.RepositoryInterface
	BookService bookService.ServiceInterface
	BookHandler *bookHandler.BookHandler
}

// ========================================
// CONSTRUCTOR: BUILD CONTAINER
// ========================================

// NewContainer wires everything in dependency order:
// config, infrastructure, repositories, services, handlers.
func NewContainer() (*Container, error) {
	log.Info().Msg("🔧 Initializing DI Container...")

	c := &Container{}

	// STEP 1: configuration
	log.Info().Msg("📋 Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	log.Info().Str("environment", cfg.App.Environment).Msg("✅ Config loaded")

	// STEP 2: database
	if err := c.initDatabase(); err != nil {
		return nil, err
	}

	// STEP 3: cache (non-critical)
	c.initCache()

	// STEP 4: image storage
	if err := c.initStorage(); err != nil {
		return nil, err
	}

	// STEP 5: background queue and auth
	c.Queue = queue.NewClient(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB, cfg.Jobs.CleanupMaxRetry)
	c.JWTManager = jwt.NewManager(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute)

	// STEP 6: domain layers
	log.Info().Msg("📦 Initializing book domain...")
	c.initRepositories()
	c.initServices()
	c.initHandlers()
	log.Info().Msg("✅ Book domain initialized")

	log.Info().Msg("🎉 DI Container initialized successfully")
	return c, nil
}

// ========================================
// PRIVATE INITIALIZATION METHODS
// ========================================

func (c *Container) initDatabase() error {
	log.Info().Msg("🗄️  Connecting to PostgreSQL...")

	db := database.NewPostgresDB(poolConfig(c.Config.Database))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.HealthCheck(ctx); err != nil {
		db.Close()
		return fmt.Errorf("database health check failed: %w", err)
	}

	if c.Config.Database.AutoMigrate {
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
		log.Info().Msg("✅ Schema ensured")
	}

	c.DB = db
	log.Info().Msg("✅ Database connected")
	return nil
}

func poolConfig(cfg config.DatabaseConfig) *database.DBConfig {
	return &database.DBConfig{
		URL:               cfg.URL,
		Host:              cfg.Host,
		Port:              cfg.Port,
		Username:          cfg.User,
		Password:          cfg.Password,
		DBName:            cfg.Name,
		SSLMode:           cfg.SSLMode,
		MaxConns:          int32(cfg.MaxConns),
		MinConns:          int32(cfg.MinConns),
		MaxConnLifetime:   cfg.MaxConnLifetime,
		MaxConnIdleTime:   cfg.MaxConnIdleTime,
		HealthCheckPeriod: cfg.HealthCheckPeriod,
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        cfg.RetryDelay,
		ConnectTimeout:    cfg.ConnectTimeout,
	}
}

func (c *Container) initCache() {
	log.Info().Msg("🔴 Connecting to Redis...")

	rc := infraCache.NewRedisClient(c.Config.Redis.Host, c.Config.Redis.Password, c.Config.Redis.DB)
	c.Redis = rc

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rc.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("⚠️  Redis connection failed (non-critical), caching disabled")
		return
	}

	c.Cache = rc
	log.Info().Msg("✅ Redis connected")
}

func (c *Container) initStorage() error {
	log.Info().Str("driver", c.Config.Storage.Driver).Msg("🖼️  Initializing image storage...")

	switch c.Config.Storage.Driver {
	case "minio":
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		store, err := storage.NewMinIOStorage(ctx, c.Config.MinIO)
		if err != nil {
			return fmt.Errorf("failed to init minio storage: %w", err)
		}
		c.Blobs = store
	default:
		store, err := storage.NewLocalStorage(afero.NewOsFs(), c.Config.Storage.LocalDir, c.Config.Storage.PublicBaseURL)
		if err != nil {
			return fmt.Errorf("failed to init local storage: %w", err)
		}
		c.Blobs = store
		c.LocalImages = store
	}

	c.Images = storage.NewImageProcessor(c.Config.Image)
	log.Info().Msg("✅ Image storage ready")
	return nil
}

func (c *Container) initRepositories() {
	c.BookRepo = bookRepo.NewPostgresRepository(c.DB.Pool)
}

func (c *Container) initServices() {
	c.BookService = bookService.NewBookService(
		c.BookRepo,
		c.Blobs,
		c.Images,
		c.Cache,
		c.Queue,
		bookService.Options{
			MaxRatingRetries: c.Config.Rating.MaxRetries,
			RetryBaseDelay:   c.Config.Rating.RetryBaseDelay,
			CacheTTL:         c.Config.Cache.TTL,
		},
	)
}

func (c *Container) initHandlers() {
	c.BookHandler = bookHandler.NewBookHandler(c.BookService, c.Config.Image.MaxBytes)
}

// ========================================
// CLEANUP
// ========================================

// Cleanup releases connections. Called during graceful shutdown.
func (c *Container) Cleanup() {
	log.Info().Msg("🧹 Cleaning up container resources...")

	if c.Queue != nil {
		if err := c.Queue.Close(); err != nil {
			log.Warn().Err(err).Msg("⚠️  Failed to close queue client")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("⚠️  Failed to close Redis")
		} else {
			log.Info().Msg("✅ Redis connections closed")
		}
	}

	if c.DB != nil {
		c.DB.Close()
		log.Info().Msg("✅ Database connections closed")
	}

	log.Info().Msg("✅ Container cleanup completed")
}
