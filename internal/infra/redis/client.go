package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for the day-price cache.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	TTL      time.Duration `yaml:"ttl"`
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Client{rdb: rdb, ttl: ttl}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func priceKey(day string) string {
	return fmt.Sprintf("solusd:%s", day)
}

// GetPrice returns the cached SOL/USD price for a day key, reporting
// whether a value was present.
func (c *Client) GetPrice(ctx context.Context, day string) (float64, bool, error) {
	val, err := c.rdb.Get(ctx, priceKey(day)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get price failed: %w", err)
	}
	price, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse cached price: %w", err)
	}
	return price, true, nil
}

// SetPrice caches the SOL/USD price for a day key.
func (c *Client) SetPrice(ctx context.Context, day string, price float64) error {
	err := c.rdb.Set(ctx, priceKey(day), strconv.FormatFloat(price, 'f', -1, 64), c.ttl).Err()
	if err != nil {
		return fmt.Errorf("set price failed: %w", err)
	}
	return nil
}
