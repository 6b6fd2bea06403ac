// Package redis stores records as JSON values in Redis and implements the
// crud contracts over them. The store capability is redis.Cmdable, so a
// *redis.Client or a *redis.ClusterClient can be passed.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPingTimeout = 5 * time.Second

// Store is the capability every primitive in this package runs against.
type Store = redis.Cmdable

// Options holds configuration for the Redis client.
type Options struct {
	Addr     string
	Password string
	DB       int
	// PingTimeout bounds the connection check in NewClient. Defaults to 5s.
	PingTimeout time.Duration
}

// NewClient connects to Redis and verifies the connection with a ping.
// The caller owns the returned client and must Close it.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = defaultPingTimeout
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}
