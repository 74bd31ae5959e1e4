package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"harshagw/suggester/internal/config"
	"harshagw/suggester/internal/popularity"
)

// popularityStore is what the REPL needs from a backend: counts for ranking
// and a way to record searches.
type popularityStore interface {
	popularity.Store
	popularity.Recorder
}

// openPopularity opens the configured backend. The returned func releases
// it.
func openPopularity(ctx context.Context, cfg config.PopularityConfig) (popularityStore, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return popularity.NewCounts(), func() {}, nil
	case config.BackendBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, nil, err
		}
		b, err := popularity.OpenBolt(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { b.Close() }, nil
	case config.BackendRedis:
		rdb, err := popularity.DialRedis(ctx, popularity.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return nil, nil, err
		}
		r, err := popularity.NewRedis(ctx, rdb, cfg.Redis.Key)
		if err != nil {
			rdb.Close()
			return nil, nil, err
		}
		return r, func() { rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown popularity backend %q", cfg.Backend)
	}
}
