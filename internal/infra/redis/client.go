package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for round locking and report caching.
type Client struct {
	rdb   *redis.Client
	owner string
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewFromRedis(rdb), nil
}

// NewFromRedis wraps an existing go-redis client.
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb, owner: uuid.NewString()}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func roundLockKey(chain string) string {
	return fmt.Sprintf("guildwatch:round:%s", chain)
}

func reportKey(chain, guild string) string {
	return fmt.Sprintf("guildwatch:report:%s:%s", chain, guild)
}

// AcquireRoundLock takes the per-chain round lock for this process.
func (c *Client) AcquireRoundLock(ctx context.Context, chain string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, roundLockKey(chain), c.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// ReleaseRoundLock releases the lock if this process still holds it.
func (c *Client) ReleaseRoundLock(ctx context.Context, chain string) error {
	key := roundLockKey(chain)
	owner, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get failed: %w", err)
	}
	if owner != c.owner {
		return nil
	}
	return c.rdb.Del(ctx, key).Err()
}

// PutReport caches the latest report of a guild.
func (c *Client) PutReport(ctx context.Context, chain, guild string, data []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, reportKey(chain, guild), data, ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// GetReport returns the cached report, or nil when absent.
func (c *Client) GetReport(ctx context.Context, chain, guild string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, reportKey(chain, guild)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	return data, nil
}
