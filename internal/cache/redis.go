package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cryptobuddy/pkg/config"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisClient owns the Redis connection shared by the market cache and the
// Redis key-value store
type RedisClient struct {
	client *redis.Client
	logger *logrus.Entry
}

// NewRedisClient creates a new Redis client and verifies the connection
func NewRedisClient(cfg *config.RedisConfig, logger *logrus.Logger) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
		MaxRetries:   2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisClient{
		client: client,
		logger: logger.WithField("component", "redis"),
	}, nil
}

// Client exposes the underlying go-redis client
func (rc *RedisClient) Client() *redis.Client {
	return rc.client
}

// Close closes the Redis connection
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

// Health checks Redis health
func (rc *RedisClient) Health(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// RedisCache stores market cache entries in Redis. Keys outlive the data
// TTL by retention so stale entries remain available as a fallback.
type RedisCache struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisCache creates a Redis-backed cache store
func NewRedisCache(client redis.UniversalClient, prefix string, retention time.Duration) *RedisCache {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisCache{
		client:    client,
		prefix:    prefix,
		retention: retention,
	}
}

func (rc *RedisCache) key(key string) string {
	return fmt.Sprintf("%s:cache:%s", rc.prefix, key)
}

// Get returns the entry stored under key
func (rc *RedisCache) Get(ctx context.Context, key string) (*Entry, bool, error) {
	data, err := rc.client.Get(ctx, rc.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	return &entry, true, nil
}

// Set stores entry under key
func (rc *RedisCache) Set(ctx context.Context, key string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	return rc.client.Set(ctx, rc.key(key), data, rc.retention).Err()
}
