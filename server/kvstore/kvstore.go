// Package kvstore provides the key-value persistence used for poller state, sessions and
// cached image URLs.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store is a minimal key-value store. KVGet returns nil, nil for a missing key.
type Store interface {
	KVGet(ctx context.Context, key string) ([]byte, error)
	KVSet(ctx context.Context, key string, value []byte) error
	KVSetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error
	KVDelete(ctx context.Context, key string) error
}

// Config selects the redis server backing the store.
type Config struct {
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
}

// RedisStore implements Store on top of a redis client. All keys are namespaced with a prefix
// so several dashboards can share one redis database.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redis using cfg.
func NewRedisStore(cfg Config) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStoreWithClient(client, cfg.KeyPrefix)
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Ping checks that redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// KVGet returns the value stored at key, or nil when the key does not exist.
func (s *RedisStore) KVGet(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	return data, nil
}

// KVSet stores value at key without expiry.
func (s *RedisStore) KVSet(ctx context.Context, key string, value []byte) error {
	return s.KVSetWithExpiry(ctx, key, value, 0)
}

// KVSetWithExpiry stores value at key; the key disappears after ttl. A zero ttl never expires.
func (s *RedisStore) KVSetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

// KVDelete removes key. Deleting a missing key is not an error.
func (s *RedisStore) KVDelete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}
