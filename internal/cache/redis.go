package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrMiss is returned by GetJSON when the key does not exist
var ErrMiss = errors.New("cache miss")

// Client holds the Redis client
type Client struct {
	Redis  *redis.Client
	logger *zap.Logger
}

// Options configures the Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed connecting to redis: %w", err)
	}

	logger.Info("Redis connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))

	return &Client{Redis: client, logger: logger}, nil
}

// NewFromRedis wraps an existing go-redis client
func NewFromRedis(rdb *redis.Client, logger *zap.Logger) *Client {
	return &Client{Redis: rdb, logger: logger}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.Redis.Close()
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.Redis.Ping(ctx).Err()
}

// SetJSON marshals value and stores it with expiration
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return c.Redis.Set(ctx, key, data, expiration).Err()
}

// GetJSON loads key into dest. Returns ErrMiss when the key is absent.
func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := c.Redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}

// Delete deletes keys
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return c.Redis.Del(ctx, keys...).Err()
}

// Exists checks if a key exists
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	count, err := c.Redis.Exists(ctx, key).Result()
	return count > 0, err
}
