package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions describes how to reach the Redis dedup store. URL wins over the
// discrete fields when set.
type RedisOptions struct {
	URL         string
	Addr        string
	Password    string
	TLS         bool
	InsecureTLS bool // hosted Redis often presents certificates we cannot verify
}

// RedisStore keeps fingerprints as plain keys with an EX expiry.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	var ro *redis.Options
	if opts.URL != "" {
		parsed, err := redis.ParseURL(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		ro = parsed
	} else {
		if opts.Addr == "" {
			return nil, fmt.Errorf("redis address is required")
		}
		ro = &redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
		}
	}

	if opts.TLS && ro.TLSConfig == nil {
		ro.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if ro.TLSConfig != nil && opts.InsecureTLS {
		ro.TLSConfig.InsecureSkipVerify = true
	}

	ro.DialTimeout = 5 * time.Second
	ro.ReadTimeout = 3 * time.Second
	ro.WriteTimeout = 3 * time.Second

	return &RedisStore{client: redis.NewClient(ro)}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) SetEX(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, key, "1", ttl).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
