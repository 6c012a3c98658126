package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yourorg/bookswap/internal/reliability/circuitbreaker"
)

// Client wraps the Redis client behind a circuit breaker so a down Redis
// degrades listings to direct database reads instead of slowing every call.
type Client struct {
	rdb            *redis.Client
	logger         *slog.Logger
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewClient creates a new Redis client
func NewClient(url string, logger *slog.Logger) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	cb := circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second)
	cb.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		logger.Warn("redis circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})

	return &Client{rdb: rdb, logger: logger, circuitBreaker: cb}, nil
}

var errCircuitOpen = fmt.Errorf("redis temporarily unavailable (circuit breaker open)")

func (c *Client) do(fn func() error) error {
	if !c.circuitBreaker.AllowRequest() {
		return errCircuitOpen
	}
	if err := fn(); err != nil && err != redis.Nil {
		c.circuitBreaker.RecordFailure()
		return err
	} else if err != nil {
		return err
	}
	c.circuitBreaker.RecordSuccess()
	return nil
}

// Set stores a value with optional TTL
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.do(func() error {
		return c.rdb.Set(ctx, key, value, ttl).Err()
	})
}

// Get retrieves a value. Missing keys surface as ErrCacheMiss.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	var val string
	err := c.do(func() error {
		res, err := c.rdb.Get(ctx, key).Result()
		if err != nil {
			return err
		}
		val = res
		return nil
	})
	if err == redis.Nil {
		return "", ErrCacheMiss
	}
	return val, err
}

// ErrCacheMiss is returned by Get when the key does not exist
var ErrCacheMiss = fmt.Errorf("cache miss")

// Delete removes a key
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.do(func() error {
		return c.rdb.Del(ctx, key).Err()
	})
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
