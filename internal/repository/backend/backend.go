// Package backend opens the key-value store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/nutritrack/internal/config"
	"github.com/mamadbah2/nutritrack/internal/repository"
	"github.com/mamadbah2/nutritrack/internal/repository/filestore"
	"github.com/mamadbah2/nutritrack/internal/repository/memory"
	"github.com/mamadbah2/nutritrack/internal/repository/mongodb"
	"github.com/mamadbah2/nutritrack/internal/repository/redisstore"
	"github.com/mamadbah2/nutritrack/internal/repository/sqlstore"
)

// Open builds the store for cfg.Backend and verifies the connection.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (repository.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Backend {
	case config.BackendMemory:
		return memory.NewStore(), nil
	case config.BackendFile:
		store, err := filestore.NewStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendSQLite:
		store, err := sqlstore.OpenSQLite(ctx, cfg.SQLitePath, logger.Named("repo.sqlstore"))
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendPostgres:
		store, err := sqlstore.OpenPostgres(ctx, cfg.PostgresDSN, logger.Named("repo.sqlstore"))
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendRedis:
		store := redisstore.NewStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		return store, nil
	case config.BackendMongoDB:
		repo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			return nil, err
		}
		return repo.WithCollection(cfg.MongoDB.Collection), nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Backend)
	}
}

// Close releases the store's connection when it holds one.
func Close(ctx context.Context, store repository.Store) error {
	if c, ok := store.(repository.Closer); ok {
		return c.Close(ctx)
	}
	return nil
}
