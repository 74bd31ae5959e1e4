package popularity

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the connection used by DialRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// DialRedis creates a client and verifies the connection with a PING.
func DialRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// Redis keeps counts in one redis hash shared by every process using the
// same key. Count reads the copy fetched by the last Refresh.
type Redis struct {
	rdb   *redis.Client
	key   string
	cache *Counts
}

// NewRedis loads the hash at key into memory.
func NewRedis(ctx context.Context, rdb *redis.Client, key string) (*Redis, error) {
	r := &Redis{rdb: rdb, key: key, cache: NewCounts()}
	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Redis) Count(term string) uint64 {
	return r.cache.Count(term)
}

// Refresh replaces the in-memory copy with the current hash contents.
func (r *Redis) Refresh(ctx context.Context) error {
	fields, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return fmt.Errorf("load popularity hash %s: %w", r.key, err)
	}

	counts := make(map[string]uint64, len(fields))
	for term, v := range fields {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("count of %q in %s: %w", term, r.key, err)
		}
		counts[term] = n
	}

	r.cache.mu.Lock()
	r.cache.counts = counts
	r.cache.mu.Unlock()
	return nil
}

func (r *Redis) Record(ctx context.Context, term string) error {
	n, err := r.rdb.HIncrBy(ctx, r.key, term, 1).Result()
	if err != nil {
		return fmt.Errorf("record %q: %w", term, err)
	}
	count, err := redisCount(n)
	if err != nil {
		return fmt.Errorf("count of %q in %s: %w", term, r.key, err)
	}
	r.cache.Set(term, count)
	return nil
}

// redisCount converts a HINCRBY result. Counts are never negative, so a
// negative value means the hash was written by something else.
func redisCount(n int64) (uint64, error) {
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return uint64(n), nil
}

// Len returns the number of terms in the in-memory copy.
func (r *Redis) Len() int { return r.cache.Len() }
