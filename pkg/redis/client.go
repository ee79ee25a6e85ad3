// Package redis opens the go-redis client used for realtime fan-out.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultDialTimeout = 5 * time.Second

// Options selects the Redis server. An empty Addr means Redis is not used.
type Options struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// Client is a connected go-redis client.
type Client struct {
	*redis.Client
	addr string
}

// NewClient dials Redis and pings it once, so a wrong address fails at startup rather than on
// the first vote.
func NewClient(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis: empty address")
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	logger.Info("redis connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return &Client{Client: rdb, addr: opts.Addr}, nil
}

// Check pings the server. It backs the redis entry of /health.
func (c *Client) Check(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", c.addr, err)
	}
	return nil
}
