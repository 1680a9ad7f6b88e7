package backend

import (
	"context"
	"errors"
	"fmt"

	"bilancio/internal/adapters"
	"bilancio/internal/amqp"
	"bilancio/internal/cache"
	"bilancio/internal/log"
	"bilancio/internal/ports"
	"bilancio/internal/services"
	"bilancio/internal/storage"
	"bilancio/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// base is what a concrete backend provides before decoration.
type base struct {
	directory ports.CategoryDirectory
	store     ports.DocumentStore
	months    ports.MonthLister
	ready     func(ctx context.Context) error
	close     func() error
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		b   base
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		b, err = f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		b, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	return f.decorate(config, b), nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (base, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return base{}, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	if config.DefaultUserID != "" {
		seeds, err := memory.LoadSeeds(dataDir(config))
		if err != nil {
			repo.Close()
			return base{}, fmt.Errorf("load category seeds: %w", err)
		}
		n, err := repo.SeedCategories(ctx, config.DefaultUserID, seeds)
		if err != nil {
			repo.Close()
			return base{}, fmt.Errorf("seed categories: %w", err)
		}
		if n > 0 {
			f.logger.Info("Seeded categories", log.FieldUserID, config.DefaultUserID, "count", n)
		}
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return base{
		directory: repo,
		store:     repo,
		months:    repo,
		ready:     repo.Ping,
		close:     repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (base, error) {
	dir := dataDir(config)
	store, err := memory.NewFromFiles(dir, config.DefaultUserID)
	if err != nil {
		return base{}, fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", dir)

	return base{
		directory: store,
		store:     store,
		months:    store,
		ready:     func(context.Context) error { return nil },
	}, nil
}

// decorate adds the category cache and save publishing around b.
func (f *DefaultFactory) decorate(config Config, b base) *BackendResult {
	directory := b.directory
	var cacheManager *cache.Manager
	if config.CategoryCacheTTL > 0 {
		cached := adapters.NewCachedDirectory(b.directory, config.CategoryCacheTTL, f.logger)
		cacheManager = cache.NewManager(f.logger)
		cacheManager.Register(cached.Cache())
		cacheManager.StartCleanup(config.CategoryCacheTTL)
		directory = cached
	}

	// A nil *amqp.Client must not end up inside the Publisher interface.
	var publisher services.Publisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without publishing", log.FieldError, err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			publisher = client
		}
	}
	store := services.NewPublishingStore(b.store, publisher, f.logger)

	return &BackendResult{
		Directory: directory,
		Store:     store,
		Months:    b.months,
		Ready:     b.ready,
		Cleanup: func() error {
			var errs []error
			if cacheManager != nil {
				cacheManager.Stop()
			}
			// The publishing store closes the wrapped store when it can.
			if err := store.Close(); err != nil {
				errs = append(errs, err)
			}
			return errors.Join(errs...)
		},
	}
}

func dataDir(config Config) string {
	if config.DataDirectory == "" {
		return "data"
	}
	return config.DataDirectory
}
