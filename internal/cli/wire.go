package cli

import (
	"context"
	"fmt"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/events"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/infra/cache"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/infra/storage"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/config"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/logger"
)

// openStorage returns nil for the memory driver.
func openStorage(ctx context.Context, cfg config.Storage, log *logger.Logger) (storage.Repository, func() error, error) {
	switch cfg.Driver {
	case "", "memory":
		return nil, func() error { return nil }, nil
	case "sqlite":
		log.Info("opening sqlite database", logger.Str("path", cfg.DSN))
		db, err := storage.InitSQLite(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewSQLiteRepository(db), db.Close, nil
	case "postgres":
		log.Info("connecting to postgres")
		db, err := storage.OpenPostgres(ctx, cfg.DSN, storage.PostgresOptions{
			MaxOpenConns: cfg.MaxOpenConns,
			MaxIdleConns: cfg.MaxIdleConns,
		})
		if err != nil {
			return nil, nil, err
		}
		return storage.NewPostgresRepository(db), db.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown storage driver %q", config.ErrInvalidConfig, cfg.Driver)
}

// newEventLog writes through to repo when one is configured.
func newEventLog(repo storage.Repository) *events.EventLog {
	if repo == nil {
		return events.NewEventLog(nil)
	}
	return events.NewEventLog(storage.NewEventPersister(repo, storage.DefaultWriteTimeout))
}

// openCache returns nil when the cache is disabled. A configured but
// unreachable Redis is logged and skipped; the cache is never required.
func openCache(ctx context.Context, cfg config.Cache, log *logger.Logger) (*cache.SnapshotCache, func() error) {
	noop := func() error { return nil }
	if !cfg.Enabled {
		return nil, noop
	}
	client, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		log.Warn("redis unavailable, snapshot cache disabled", logger.Str("addr", cfg.Addr), logger.Err(err))
		return nil, noop
	}
	log.Info("snapshot cache enabled", logger.Str("addr", cfg.Addr))
	return cache.NewSnapshotCache(client, cfg.TTL), client.Close
}
