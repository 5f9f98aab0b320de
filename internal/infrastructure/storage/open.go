package storage

import (
	"context"
	"fmt"

	"FinanceFlow/internal/config"
)

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.CacheConfig) (Backend, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case config.CacheSQLite:
		var store *SQLiteStore
		if store, err = OpenSQLite(ctx, cfg.SQLitePath); err == nil {
			backend = store
		}
	case config.CachePostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres backend requires a dsn")
		}
		var store *PostgresStore
		if store, err = OpenPostgres(ctx, cfg.PostgresDSN); err == nil {
			backend = store
		}
	case config.CacheRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis backend requires a url")
		}
		var store *RedisStore
		if store, err = OpenRedis(ctx, cfg.RedisURL, cfg.RedisPrefix, cfg.RedisTTL); err == nil {
			backend = store
		}
	case config.CacheNone, "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", cfg.Backend, err)
	}
	return backend, nil
}
