package main

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/neurocare-backend/api/middleware"
	"github.com/angelmondragon/neurocare-backend/internal/cron"
	"github.com/angelmondragon/neurocare-backend/pkg/config"
	"github.com/angelmondragon/neurocare-backend/pkg/db"
	"github.com/angelmondragon/neurocare-backend/pkg/logger"
	"github.com/angelmondragon/neurocare-backend/pkg/migrate"
	"github.com/angelmondragon/neurocare-backend/pkg/redis"
	"github.com/angelmondragon/neurocare-backend/pkg/storage"
)

const sweepLockKey = "sweep-lock"

// backend is the durable medium selected by NEUROCARE_STORAGE_DRIVER.
type backend struct {
	store   storage.Store
	ready   map[string]storage.Pinger
	redis   *redis.Client
	closers []func() error
}

func openBackend(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*backend, error) {
	ctx = logg.WithField(ctx, "storage_driver", cfg.Storage.Driver)
	b := &backend{ready: map[string]storage.Pinger{}}

	switch cfg.Storage.Driver {
	case config.StorageMemory:
		mem := storage.NewMemoryStore()
		b.store = storage.Namespaced(mem, cfg.Storage.Namespace)
		b.ready["storage"] = mem
		logg.Warn(ctx, "memory storage selected; carts and orders do not survive a restart")

	case config.StorageRedis:
		client, err := redis.New(ctx, cfg.Redis, cfg.Storage.Namespace, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		store, err := storage.NewRedisStore(client)
		if err != nil {
			return nil, multierr.Append(err, b.close())
		}
		b.store = store
		b.redis = client
		b.ready["redis"] = client

	case config.StoragePostgres, config.StorageSQLite:
		var (
			client *db.Client
			err    error
		)
		if cfg.Storage.Driver == config.StoragePostgres {
			client, err = db.New(ctx, cfg.DB, logg)
		} else {
			client, err = db.NewSQLite(ctx, cfg.Storage.SQLitePath, logg)
		}
		if err != nil {
			return nil, fmt.Errorf("bootstrap database: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		if err := migrate.MaybeRun(ctx, cfg, logg, client); err != nil {
			return nil, multierr.Append(fmt.Errorf("run migrations: %w", err), b.close())
		}
		store, err := storage.NewSQLStore(client.DB())
		if err != nil {
			return nil, multierr.Append(err, b.close())
		}
		b.store = storage.Namespaced(store, cfg.Storage.Namespace)
		b.ready["database"] = client

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}

	logg.Info(ctx, "storage ready")
	return b, nil
}

// sweepLock keeps two sweeps of the same instance from overlapping. With Redis the lock outlives
// the process, so an overlapping deploy of the same instance id waits its turn.
func (b *backend) sweepLock(cfg *config.Config, instanceID string) (cron.Lock, error) {
	if b.redis == nil {
		return cron.NewLocalLock(), nil
	}
	return cron.NewRedisLock(b.redis, b.redis.Key(sweepLockKey, cfg.App.Env, instanceID), cfg.Sweep.LockTTL)
}

// idempotencyStore shares Redis with the session store when there is one; other drivers keep
// replay records in process, which matches the in-process sessions they serve.
func (b *backend) idempotencyStore() middleware.IdempotencyStore {
	if b.redis == nil {
		return middleware.NewLocalIdempotencyStore()
	}
	return b.redis
}

func (b *backend) close() error {
	var errs error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, b.closers[i]())
	}
	b.closers = nil
	return errs
}
