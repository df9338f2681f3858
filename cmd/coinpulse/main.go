package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/deusflow/coinpulse/internal/app"
	"github.com/deusflow/coinpulse/internal/config"
	"github.com/deusflow/coinpulse/internal/gemini"
	"github.com/deusflow/coinpulse/internal/heartbeat"
	"github.com/deusflow/coinpulse/internal/logger"
	"github.com/deusflow/coinpulse/internal/market"
	"github.com/deusflow/coinpulse/internal/metrics"
	"github.com/deusflow/coinpulse/internal/openai"
	"github.com/deusflow/coinpulse/internal/ratelimit"
	"github.com/deusflow/coinpulse/internal/rss"
	"github.com/deusflow/coinpulse/internal/scraper"
	"github.com/deusflow/coinpulse/internal/server"
	"github.com/deusflow/coinpulse/internal/summary"
	"github.com/deusflow/coinpulse/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	lg := logger.Init(cfg.Debug)
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, lg *slog.Logger) error {
	m := metrics.New()

	feeds := rss.DefaultFeeds
	if cfg.FeedsConfigPath != "" {
		loaded, err := rss.LoadFeeds(cfg.FeedsConfigPath)
		if err != nil {
			return err
		}
		feeds = loaded
	}

	store, err := app.OpenStore(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer store.Close()
	cache := app.NewDedupCache(store, cfg)

	providers, closeProviders, err := buildProviders(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeProviders()

	sumOpts := []summary.Option{summary.WithTimeout(cfg.SummarizerTimeout), summary.WithLogger(lg)}
	if cfg.SummarizerDailyLimit > 0 {
		sumOpts = append(sumOpts, summary.WithLimiter(ratelimit.NewQuota(cfg.SummarizerDailyLimit)))
	}

	publisher := app.NewPublisher(
		telegram.NewClient(cfg.TelegramToken, cfg.TelegramChatID, lg),
		market.NewClient(cfg.PriceAPIURL, cfg.PriceTimeout, lg),
		lg,
	)

	pipeline := app.NewPipeline(app.Deps{
		Feeds:      feeds,
		Reader:     rss.NewReader(cfg.FeedTimeout),
		Fetcher:    scraper.NewFetcher(cfg.ArticleTimeout),
		Dedup:      cache,
		Summarizer: summary.New(providers, sumOpts...),
		Poster:     publisher,
		Metrics:    m,
		Log:        lg,
		Interval:   cfg.PollInterval,
	})

	if cfg.BaseURL != "" {
		pinger, err := heartbeat.New(cfg.BaseURL, cfg.HeartbeatInterval, m, lg)
		if err != nil {
			return err
		}
		pinger.Start()
		defer pinger.Stop()
	} else {
		lg.Warn("heartbeat disabled: BASE_URL not set")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pipeline.Run(ctx)
	}()

	srv := server.New(publisher, cache, m, lg)
	err = srv.ListenAndServe(ctx, ":"+cfg.Port)
	shuttingDown := ctx.Err() != nil
	cancel()
	wg.Wait()
	if shuttingDown {
		lg.Info("shutdown complete")
		return nil
	}
	return err
}

func buildProviders(ctx context.Context, cfg *config.Config) ([]summary.Provider, func(), error) {
	var (
		providers []summary.Provider
		closers   []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, name := range cfg.SummarizerProviders {
		switch name {
		case config.ProviderHuggingFace:
			providers = append(providers, summary.NewHuggingFace(cfg.HFAPIKey, cfg.HFModel))
		case config.ProviderGemini:
			g, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			providers = append(providers, g)
			closers = append(closers, g.Close)
		case config.ProviderOpenAI:
			o, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			providers = append(providers, o)
		}
	}
	return providers, closeAll, nil
}
