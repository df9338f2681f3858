// Command cachecheck connects to the configured dedup store and round-trips a probe
// fingerprint, so deploy credentials can be verified without starting the bot.
package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/deusflow/coinpulse/internal/app"
	"github.com/deusflow/coinpulse/internal/config"
	"github.com/deusflow/coinpulse/internal/dedup"
	"github.com/deusflow/coinpulse/internal/logger"
)

func main() {
	// Telegram and summarizer credentials are irrelevant here.
	cfg, err := config.Load()
	if err != nil && (cfg == nil || cfg.DedupBackend == "") {
		log.Fatalf("❌ configuration error: %v", err)
	}

	lg := logger.Init(cfg.Debug)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("🔌 Testing %s dedup store...\n", cfg.DedupBackend)
	if cfg.RedisURL != "" {
		fmt.Printf("Redis URL: %s\n", maskPassword(cfg.RedisURL))
	}
	if cfg.DatabaseURL != "" {
		fmt.Printf("Database URL: %s\n", maskPassword(cfg.DatabaseURL))
	}

	store, err := app.OpenStore(ctx, cfg, lg)
	if err != nil {
		log.Fatalf("❌ Failed to open store: %v", err)
	}
	defer store.Close()

	cache := app.NewDedupCache(store, cfg)
	if err := cache.Ping(ctx); err != nil {
		fmt.Printf("❌ Ping failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ Store reachable")

	probe := dedup.Of(fmt.Sprintf("cachecheck probe %d", time.Now().UnixNano()))
	fmt.Printf("\n🧪 Probe fingerprint: %s\n", probe)

	unique, err := cache.IsUnique(ctx, probe)
	if err != nil || !unique {
		fmt.Printf("❌ Fresh probe should be unique (unique=%v, err=%v)\n", unique, err)
		os.Exit(1)
	}
	if err := cache.MarkSeen(ctx, probe); err != nil {
		fmt.Printf("❌ MarkSeen failed: %v\n", err)
		os.Exit(1)
	}
	unique, err = cache.IsUnique(ctx, probe)
	if err != nil || unique {
		fmt.Printf("❌ Probe should now be seen (unique=%v, err=%v)\n", unique, err)
		os.Exit(1)
	}
	fmt.Printf("✅ Round trip OK, records expire after %s\n", cache.TTL())
}

func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}
