// redis.go implements the redis-backed state store, for deployments where the
// user's profile roams between machines and the selection should follow it.
// Keys carry a configurable prefix so several users can share one database.
package localstate

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bandroomhq/bandroom/internal/config"
)

func init() {
	Register("redis", func(cfg *config.StateConfig) (Store, error) {
		return NewRedisStore(&cfg.Redis)
	})
}

// RedisStore implements Store on a redis database
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a redis-backed store and verifies connectivity
func NewRedisStore(cfg *config.RedisStateConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: cfg.KeyPrefix}, nil
}

// Get returns the value for key, or ErrNotFound
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get state key: %w", err)
	}
	return value, nil
}

// Set writes the value for key. State keys never expire.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set state key: %w", err)
	}
	return nil
}

// Delete removes key
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete state key: %w", err)
	}
	return nil
}

// Close releases the underlying redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
