package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/deusflow/coinpulse/internal/cache"
	"github.com/deusflow/coinpulse/internal/config"
	"github.com/deusflow/coinpulse/internal/dedup"
	"github.com/deusflow/coinpulse/internal/storage"
)

// StoreCloser is a dedup backend that owns a connection.
type StoreCloser interface {
	dedup.Store
	io.Closer
}

// OpenStore connects the dedup backend chosen by cfg.DedupBackend.
func OpenStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (StoreCloser, error) {
	switch cfg.DedupBackend {
	case config.BackendRedis:
		s, err := storage.NewRedisStore(storage.RedisOptions{
			URL:         cfg.RedisURL,
			Addr:        cfg.RedisAddr(),
			Password:    cfg.RedisPassword,
			TLS:         cfg.RedisTLS,
			InsecureTLS: cfg.RedisTLSInsecure,
		})
		if err != nil {
			return nil, err
		}
		// an unreachable store at startup is logged, not fatal: entries fail closed until it recovers
		if err := s.Ping(ctx); err != nil {
			log.Warn("redis not reachable at startup", "err", err)
		} else {
			log.Info("redis connected")
		}
		return s, nil

	case config.BackendPostgres:
		s, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		log.Info("postgres connected")
		return s, nil

	case config.BackendFile:
		s, err := storage.NewFileStore(cfg.DedupFilePath)
		if err != nil {
			return nil, err
		}
		log.Info("file dedup store opened", "path", cfg.DedupFilePath)
		return s, nil

	case config.BackendMemory:
		c := cache.New()
		c.StartCleanup(time.Hour)
		log.Warn("using in-memory dedup store; seen content is forgotten on restart")
		return c, nil

	default:
		return nil, fmt.Errorf("unknown dedup backend %q", cfg.DedupBackend)
	}
}

// NewDedupCache wraps store with the configured TTL and key prefix.
func NewDedupCache(store dedup.Store, cfg *config.Config) *dedup.Cache {
	opts := []dedup.Option{dedup.WithTTL(cfg.DedupTTL)}
	if cfg.DedupKeyPrefix != "" {
		opts = append(opts, dedup.WithKeyPrefix(cfg.DedupKeyPrefix))
	}
	return dedup.NewCache(store, opts...)
}
