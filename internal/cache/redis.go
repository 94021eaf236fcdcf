package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis implements Store on a shared Redis instance. Backend errors degrade
// to cache misses so a flaky Redis never takes the gateway down with it.
type Redis struct {
	c *redis.Client
}

// NewRedis connects a Redis-backed store. The connection is verified with a
// ping so a misconfigured cache fails at startup, not on first fetch.
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Redis{c: c}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.c.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("redis get failed, treating as miss")
		}
		return nil, false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := r.c.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis set failed")
	}
}

func (r *Redis) Clear(ctx context.Context) {
	if err := r.c.FlushAll(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis flush failed")
	}
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.c.Close()
}
