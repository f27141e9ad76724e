package db

import (
	"context"
	"fmt"

	"entrypass/internal/config"

	"github.com/go-redis/redis/v8"
)

// Open returns the backend selected by cfg.Backend, migrated and reachable.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", config.StoreJSON:
		return NewJSONStore(cfg.JSONPath)

	case config.StoreSQLite, config.StorePostgres:
		var (
			d   *DB
			err error
		)
		if cfg.Backend == config.StoreSQLite {
			d, err = OpenSQLite(cfg.SQLiteDSN)
		} else {
			if cfg.PostgresDSN == "" {
				return nil, fmt.Errorf("POSTGRES_DSN not set")
			}
			d, err = OpenPostgres(cfg.PostgresDSN)
		}
		if err != nil {
			return nil, err
		}
		if err := d.Migrate(ctx); err != nil {
			d.Close()
			return nil, err
		}
		return d, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis connection error: %w", err)
		}
		return NewRedisStore(client, cfg.RedisPrefix), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
