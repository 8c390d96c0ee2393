package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bankfees/internal/cache"
	applog "bankfees/internal/log"
	"bankfees/internal/metrics"
	"bankfees/internal/source"
	gsheet "bankfees/internal/source/google"
	"bankfees/internal/source/memory"
	"bankfees/internal/source/remote"
	"bankfees/internal/storage"
	"bankfees/internal/storage/postgres"
)

const cacheSweepInterval = time.Minute

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger  *applog.Logger
	metrics *metrics.Metrics
}

// NewFactory creates a new backend factory. m may be nil.
func NewFactory(logger *applog.Logger, m *metrics.Metrics) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{
		logger:  logger.WithComponent(applog.ComponentBackend),
		metrics: m,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		src     source.Source
		cleanup CleanupFunc
		err     error
	)
	switch config.Type {
	case MemoryBackend:
		src = f.createMemoryBackend(config)
	case SQLiteBackend:
		src, cleanup, err = f.createSQLiteBackend(config)
	case PostgresBackend:
		src, cleanup, err = f.createPostgresBackend(ctx, config)
	case RemoteBackend:
		src, err = f.createRemoteBackend(config)
	case SheetsBackend:
		src, err = f.createSheetsBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	result := &BackendResult{Source: src, Cleanup: cleanup}
	if !config.DisableCache {
		f.wrapWithCache(ctx, config, result)
	}
	return result, nil
}

// wrapWithCache puts the LRU and, when REDIS_ADDR is set, the shared Redis
// layer in front of the backend. Redis is best-effort: an unreachable server
// is logged and skipped.
func (f *DefaultFactory) wrapWithCache(ctx context.Context, config Config, result *BackendResult) {
	var redisLayer *cache.RedisLayer
	if config.RedisAddr != "" {
		layer, err := cache.NewRedisLayer(ctx, cache.RedisConfig{Addr: config.RedisAddr, TTL: config.CacheTTL})
		if err != nil {
			f.logger.Warn("Redis unavailable, continuing with in-process cache only",
				applog.FieldError, err,
				"addr", config.RedisAddr)
			if layer != nil {
				_ = layer.Close()
			}
		} else {
			redisLayer = layer
			f.logger.Info("Initialized Redis cache layer", "addr", config.RedisAddr)
		}
	}

	cached := cache.NewCachedSource(result.Source, cache.Options{
		TTL:     config.CacheTTL,
		Size:    config.CacheSize,
		Redis:   redisLayer,
		Logger:  f.logger,
		Metrics: f.metrics,
	})
	manager := cache.NewManager(f.logger)
	for _, c := range cached.Cleaners() {
		manager.Register(c)
	}
	manager.StartCleanup(cacheSweepInterval)

	inner := result.Cleanup
	result.Source = cached
	result.Cache = cached
	result.Manager = manager
	result.Cleanup = func() error {
		manager.Stop()
		var errs []error
		if redisLayer != nil {
			errs = append(errs, redisLayer.Close())
		}
		if inner != nil {
			errs = append(errs, inner())
		}
		return errors.Join(errs...)
	}

	f.logger.Info("Initialized bank cache",
		"ttl", config.CacheTTL.String(),
		"size", config.CacheSize,
		"redis_enabled", redisLayer != nil)
}

func (f *DefaultFactory) createMemoryBackend(config Config) source.Source {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data" // Default directory
	}

	store := memory.NewFromFiles(dataDir)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	return store
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (source.Source, CleanupFunc, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, repo.Close, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (source.Source, CleanupFunc, error) {
	pool, err := postgres.Connect(ctx, config.PostgresURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	f.logger.Info("Initialized Postgres backend")
	return postgres.NewRepository(pool, f.logger), func() error {
		pool.Close()
		return nil
	}, nil
}

func (f *DefaultFactory) createRemoteBackend(config Config) (source.Source, error) {
	client, err := remote.New(remote.Config{
		BaseURL: config.RemoteURL,
		Timeout: config.RemoteTimeout,
	}, f.logger, f.metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize remote client: %w", err)
	}

	f.logger.Info("Initialized remote backend", "url", config.RemoteURL)
	return client, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (source.Source, error) {
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "sheet", config.GoogleSheetName)
	return client, nil
}
