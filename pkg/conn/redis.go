package conn

import (
	"context"

	"github.com/go-redis/redis/v8"
)

const defaultRedisAddr = "localhost:6379"

// Option defines connection options for Redis.
type Option struct {
	Addr     string
	Password string
	DB       int
}

// Client wraps a Redis connection pool.
type Client struct {
	opt Option
	rdb *redis.Client
}

// New creates a Redis client from the provided options.
func New(option Option) *Client {
	addr := option.Addr
	if addr == "" {
		addr = defaultRedisAddr
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: option.Password,
		DB:       option.DB,
	})

	return &Client{opt: option, rdb: rdb}
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Redis returns the underlying client.
func (c *Client) Redis() *redis.Client {
	if c == nil {
		return nil
	}
	return c.rdb
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
