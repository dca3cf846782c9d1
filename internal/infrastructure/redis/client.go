package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tronix365/sensegrid/internal/infrastructure/config"
)

const defaultPingTimeout = 2 * time.Second

var (
	// ErrDisabled is returned by Connect when redis.enabled is false.
	ErrDisabled = errors.New("redis: disabled in configuration")

	ErrConnectionFailed = errors.New("redis: connection failed")
)

// Client wraps a go-redis client.
type Client struct {
	rdb *goredis.Client
}

// Connect opens a client and verifies it with PING.
func Connect(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &Client{rdb: rdb}, nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// Incr counts one hit against key in a window of the given length and
// returns the count so far and the time until the window resets. INCR,
// EXPIRE NX and PTTL run in one MULTI so the expiry is set exactly once
// per window.
func (c *Client) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	var (
		count *goredis.IntCmd
		ttl   *goredis.DurationCmd
	)
	_, err := c.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		count = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("incrementing %s: %w", key, err)
	}

	resetIn := ttl.Val()
	if resetIn <= 0 {
		resetIn = window
	}
	return count.Val(), resetIn, nil
}
