// Package config loads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendFile     = "file"

	ProviderHuggingFace = "huggingface"
	ProviderGemini      = "gemini"
	ProviderOpenAI      = "openai"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	// Telegram settings
	TelegramToken  string
	TelegramChatID string

	// Dedup store
	DedupBackend     string // redis | postgres | file | memory
	RedisURL         string
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisTLS         bool
	RedisTLSInsecure bool
	DedupKeyPrefix   string
	DatabaseURL      string
	DedupFilePath    string
	DedupTTL         time.Duration

	// Summarizer settings
	SummarizerProviders  []string
	HFAPIKey             string
	HFModel              string
	GeminiAPIKey         string
	GeminiModel          string
	OpenAIAPIKey         string
	OpenAIModel          string
	OpenAIBaseURL        string
	SummarizerDailyLimit int // per provider, 0 = unlimited
	SummarizerTimeout    time.Duration

	// Network timeouts
	ArticleTimeout time.Duration
	FeedTimeout    time.Duration
	PriceTimeout   time.Duration
	PriceAPIURL    string

	// Scheduling
	PollInterval      time.Duration
	HeartbeatInterval time.Duration

	// Service
	BaseURL         string
	Port            string
	FeedsConfigPath string
	Debug           bool
}

func Load() (*Config, error) {
	cfg := &Config{
		DedupBackend:        BackendRedis,
		DedupTTL:            7 * 24 * time.Hour,
		SummarizerProviders: []string{ProviderHuggingFace},
		HFModel:             "facebook/bart-large-cnn",
		GeminiModel:         "gemini-1.5-flash",
		OpenAIModel:         "gpt-4o-mini",
		SummarizerTimeout:   30 * time.Second,
		ArticleTimeout:      20 * time.Second,
		FeedTimeout:         20 * time.Second,
		PriceTimeout:        10 * time.Second,
		PollInterval:        15 * time.Minute,
		HeartbeatInterval:   14 * time.Minute,
		Port:                "5000",
	}

	cfg.TelegramToken = firstEnv("BOT_TOKEN", "TELEGRAM_TOKEN")
	cfg.TelegramChatID = firstEnv("CHAT_ID", "TELEGRAM_CHAT_ID")

	if v := os.Getenv("DEDUP_BACKEND"); v != "" {
		cfg.DedupBackend = strings.ToLower(strings.TrimSpace(v))
	}
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.RedisHost = os.Getenv("REDIS_HOST")
	cfg.RedisPort = getEnvOrDefault("REDIS_PORT", "6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisTLS = getEnvBool("REDIS_TLS")
	cfg.RedisTLSInsecure = getEnvBool("REDIS_TLS_INSECURE")
	cfg.DedupKeyPrefix = os.Getenv("DEDUP_KEY_PREFIX")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.DedupFilePath = getEnvOrDefault("DEDUP_FILE_PATH", "seen_fingerprints.json")

	if v := os.Getenv("SUMMARIZER_PROVIDERS"); v != "" {
		cfg.SummarizerProviders = splitList(v)
	}
	cfg.HFAPIKey = os.Getenv("HF_API_KEY")
	cfg.HFModel = getEnvOrDefault("HF_MODEL", cfg.HFModel)
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = getEnvOrDefault("GEMINI_MODEL", cfg.GeminiModel)
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIModel = getEnvOrDefault("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	cfg.PriceAPIURL = os.Getenv("PRICE_API_URL")
	cfg.FeedsConfigPath = os.Getenv("FEEDS_CONFIG_PATH")
	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.Debug = getEnvBool("DEBUG")

	if v := os.Getenv("SUMMARIZER_DAILY_LIMIT"); v != "" {
		val, err := strconv.Atoi(v)
		if err != nil || val < 0 {
			return nil, fmt.Errorf("%w: SUMMARIZER_DAILY_LIMIT must be a non-negative integer", ErrInvalid)
		}
		cfg.SummarizerDailyLimit = val
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"DEDUP_TTL", &cfg.DedupTTL},
		{"SUMMARIZER_TIMEOUT", &cfg.SummarizerTimeout},
		{"ARTICLE_TIMEOUT", &cfg.ArticleTimeout},
		{"FEED_TIMEOUT", &cfg.FeedTimeout},
		{"PRICE_TIMEOUT", &cfg.PriceTimeout},
		{"POLL_INTERVAL", &cfg.PollInterval},
		{"HEARTBEAT_INTERVAL", &cfg.HeartbeatInterval},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		val, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, d.key, err)
		}
		*d.dst = val
	}

	cfg.BaseURL = strings.TrimSuffix(os.Getenv("BASE_URL"), "/")
	if cfg.BaseURL == "" {
		if name := os.Getenv("RENDER_SERVICE_NAME"); name != "" {
			cfg.BaseURL = fmt.Sprintf("https://%s.onrender.com", name)
		}
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("%w: BOT_TOKEN is required", ErrInvalid)
	}
	if c.TelegramChatID == "" {
		return fmt.Errorf("%w: CHAT_ID is required", ErrInvalid)
	}

	switch c.DedupBackend {
	case BackendRedis:
		if c.RedisURL == "" && c.RedisHost == "" {
			return fmt.Errorf("%w: REDIS_URL or REDIS_HOST is required for the redis backend", ErrInvalid)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for the postgres backend", ErrInvalid)
		}
	case BackendMemory, BackendFile:
	default:
		return fmt.Errorf("%w: unknown DEDUP_BACKEND %q", ErrInvalid, c.DedupBackend)
	}

	for _, p := range c.SummarizerProviders {
		switch p {
		case ProviderHuggingFace:
			if c.HFAPIKey == "" {
				return fmt.Errorf("%w: HF_API_KEY is required for the huggingface provider", ErrInvalid)
			}
		case ProviderGemini:
			if c.GeminiAPIKey == "" {
				return fmt.Errorf("%w: GEMINI_API_KEY is required for the gemini provider", ErrInvalid)
			}
		case ProviderOpenAI:
			if c.OpenAIAPIKey == "" {
				return fmt.Errorf("%w: OPENAI_API_KEY is required for the openai provider", ErrInvalid)
			}
		default:
			return fmt.Errorf("%w: unknown summarizer provider %q", ErrInvalid, p)
		}
	}

	positive := map[string]time.Duration{
		"DEDUP_TTL":          c.DedupTTL,
		"SUMMARIZER_TIMEOUT": c.SummarizerTimeout,
		"ARTICLE_TIMEOUT":    c.ArticleTimeout,
		"FEED_TIMEOUT":       c.FeedTimeout,
		"PRICE_TIMEOUT":      c.PriceTimeout,
		"POLL_INTERVAL":      c.PollInterval,
		"HEARTBEAT_INTERVAL": c.HeartbeatInterval,
	}
	for key, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalid, key)
		}
	}
	return nil
}

// RedisAddr is host:port, or empty when only a URL is configured.
func (c *Config) RedisAddr() string {
	if c.RedisHost == "" {
		return ""
	}
	return c.RedisHost + ":" + c.RedisPort
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
