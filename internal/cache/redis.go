// Package cache stores token store entries in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gigearn-link/internal/config"
	"gigearn-link/internal/tokenstore"
	"gigearn-link/internal/util"
)

const keyPrefix = "gigearn-link:"

// commander is the part of *redis.Client the store uses.
type commander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type RedisStore struct {
	client commander
	cipher *util.Cipher
}

func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		MaxRetries:      5,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		PoolSize:        10,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func NewRedisStore(client *redis.Client, cipher *util.Cipher) *RedisStore {
	return &RedisStore{client: client, cipher: cipher}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", tokenstore.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	value, err := s.cipher.Decrypt(raw)
	if err != nil {
		return "", fmt.Errorf("decrypt %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key. A zero ttl keeps the key until deleted.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	encrypted, err := s.cipher.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", key, err)
	}
	return s.client.Set(ctx, keyPrefix+key, encrypted, ttl).Err()
}

func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	encrypted, err := s.cipher.Encrypt(value)
	if err != nil {
		return false, fmt.Errorf("encrypt %s: %w", key, err)
	}
	return s.client.SetNX(ctx, keyPrefix+key, encrypted, ttl).Result()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}
