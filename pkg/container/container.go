package container

import (
	"context"
	"fmt"
	"time"

	"mapvault-backend/internal/config"
	infraCache "mapvault-backend/internal/infrastructure/cache"
	"mapvault-backend/internal/infrastructure/database"
	"mapvault-backend/internal/infrastructure/storage"
	"mapvault-backend/pkg/cache"
	"mapvault-backend/pkg/jwt"
	"mapvault-backend/pkg/logger"

	mapsHandler "mapvault-backend/internal/domains/maps/handler"
	mapsRepo "mapvault-backend/internal/domains/maps/repository"
	mapsService "mapvault-backend/internal/domains/maps/service"

	"github.com/hibiken/asynq"
)

// Container holds the application dependency graph. Initialization order is
// config, infrastructure, repositories, services, handlers; everything is a
// singleton living for the process lifetime.
type Container struct {
	Config      *config.Config
	DB          *database.PostgresDB
	Cache       cache.Cache
	Files       *storage.MapFileStorage
	JWTManager  *jwt.Manager
	AsynqClient *asynq.Client

	MapRepo    mapsRepo.MapRepository
	MapService mapsService.MapService
	MapHandler *mapsHandler.Handler
}

// NewContainer builds the full dependency graph or fails fast.
func NewContainer() (*Container, error) {
	c := &Container{}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg

	logger.Init(cfg.App.Environment)

	// Database
	db := database.NewPostgresDB(cfg.Database)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DB = db

	// Redis cache
	redisCache := infraCache.NewRedisCache(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	if err := redisCache.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	c.Cache = redisCache

	// MinIO file storage
	files, err := storage.NewMapFileStorage(cfg.MinIO)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}
	c.Files = files

	// Auth + background tasks
	c.JWTManager = jwt.NewManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	c.AsynqClient = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Host,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Maps domain
	c.MapRepo = mapsRepo.NewPostgresRepository(db.Pool)
	c.MapService = mapsService.NewService(c.MapRepo, c.Files, c.Cache, c.AsynqClient, cfg.Maps.PendingLimit)
	c.MapHandler = mapsHandler.NewHandler(c.MapService, cfg.Maps.MaxUploadSize)

	logger.Info("container initialized", map[string]interface{}{
		"environment": cfg.App.Environment,
	})

	return c, nil
}

// Cleanup releases infrastructure resources. Call on shutdown.
func (c *Container) Cleanup() {
	if c.AsynqClient != nil {
		if err := c.AsynqClient.Close(); err != nil {
			logger.Warn("failed to close asynq client", err)
		}
	}
	if rc, ok := c.Cache.(*infraCache.RedisCache); ok {
		if err := rc.Close(); err != nil {
			logger.Warn("failed to close redis client", err)
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
}
