package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by RedisLayer.Get for an absent key.
var ErrMiss = errors.New("cache miss")

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
	// DialTimeout bounds connection setup. Zero means 2s.
	DialTimeout time.Duration
}

// RedisLayer stores raw payloads shared by every API replica.
type RedisLayer struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisLayer connects to cfg.Addr. The ping is not fatal to callers that
// treat the layer as optional; it is reported so they can log it.
func NewRedisLayer(ctx context.Context, cfg RedisConfig) (*RedisLayer, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis: no address configured")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "bankfees:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		MaxRetries:   1,
	})
	l := &RedisLayer{client: client, prefix: cfg.KeyPrefix, ttl: cfg.TTL}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return l, fmt.Errorf("redis: failed to ping server: %w", err)
	}
	return l, nil
}

func (l *RedisLayer) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := l.client.Get(ctx, l.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return b, nil
}

func (l *RedisLayer) Set(ctx context.Context, key string, value []byte) error {
	if err := l.client.Set(ctx, l.prefix+key, value, l.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Flush deletes every key under the layer's prefix.
func (l *RedisLayer) Flush(ctx context.Context) error {
	iter := l.client.Scan(ctx, 0, l.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := l.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (l *RedisLayer) Close() error {
	return l.client.Close()
}
