// Package factory selects and constructs the single storage backend the
// process will use. Nothing outside this package branches on backend type.
package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"shortreg/config"
	"shortreg/internal/app/storage"
	"shortreg/internal/app/storage/memory"
	pgstore "shortreg/internal/app/storage/postgres"
	sqlitestore "shortreg/internal/app/storage/sqlite"
	infrapg "shortreg/internal/infra/postgres"
)

// Open constructs the backend named by cfg.Storage.Backend. The returned
// Store is shared by all requests for the process lifetime; callers own the
// Close call.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "", config.BackendMemory:
		log.Info("using in-memory storage backend")
		return memory.New(), nil

	case config.BackendSQLite:
		path := cfg.SQLite.Path
		if path == "" {
			path = "shortreg.db"
		}
		log.Info("using sqlite storage backend", zap.String("path", path))
		return sqlitestore.Open(path)

	case config.BackendPostgres:
		db, err := infrapg.NewGorm(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		pool, err := infrapg.NewPool(ctx, cfg.Postgres)
		if err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
			return nil, err
		}
		log.Info("using postgres storage backend",
			zap.String("host", cfg.Postgres.Host),
			zap.String("database", cfg.Postgres.Database))
		return pgstore.New(ctx, db, pool)

	default:
		return nil, fmt.Errorf("factory: unknown storage backend %q", cfg.Storage.Backend)
	}
}
