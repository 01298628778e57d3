package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Sources
	SourcesConfigPath string
	MaxEntriesPerFeed int

	// Storage
	StoreBackend     string // memory | file | postgres
	DatabaseURL      string
	StoreFilePath    string
	StoreRetention   time.Duration // file backend: drop older articles on load, 0 = keep all
	RedisURL         string
	CategoryCacheTTL time.Duration

	// AI provider
	AIProvider    string // auto | gemini | openai | keyword
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	MaxAIRequests int // daily budget, 0 = unlimited
	AITimeout     time.Duration

	// Fetching
	FeedTimeout        time.Duration
	FetchRetryAttempts int
	ScrapeFullArticles bool

	// Pipeline
	IngestWorkers  int
	EntryDelay     time.Duration
	SummaryLimit   int
	IngestSchedule string // cron spec, empty = run once

	// App settings
	EnableMonitoring bool
	MonitoringPort   string
	Debug            bool
	LogFormat        string
}

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"

	ProviderAuto    = "auto"
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
	ProviderKeyword = "keyword"
)

func Load() (*Config, error) {
	// A missing .env is fine; the environment wins over it either way.
	_ = godotenv.Load()

	cfg := &Config{
		// Default values
		SourcesConfigPath:  "configs/sources.yaml",
		MaxEntriesPerFeed:  10,
		StoreBackend:       BackendMemory,
		StoreFilePath:      "articles.json",
		CategoryCacheTTL:   10 * time.Minute,
		AIProvider:         ProviderAuto,
		GeminiModel:        "gemini-1.5-flash",
		OpenAIBaseURL:      "https://api.groq.com/openai/v1",
		OpenAIModel:        "llama-3.1-8b-instant",
		AITimeout:          30 * time.Second,
		FeedTimeout:        15 * time.Second,
		FetchRetryAttempts: 2,
		ScrapeFullArticles: true,
		IngestWorkers:      4,
		EntryDelay:         500 * time.Millisecond,
		SummaryLimit:       3500,
		MonitoringPort:     "8080",
		LogFormat:          "text",
	}

	cfg.SourcesConfigPath = getEnvOrDefault("SOURCES_CONFIG_PATH", cfg.SourcesConfigPath)
	cfg.MaxEntriesPerFeed = getEnvIntOrDefault("MAX_ENTRIES_PER_FEED", cfg.MaxEntriesPerFeed)

	cfg.StoreBackend = getEnvOrDefault("STORE_BACKEND", cfg.StoreBackend)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.StoreFilePath = getEnvOrDefault("STORE_FILE_PATH", cfg.StoreFilePath)
	cfg.StoreRetention = getEnvDurationOrDefault("STORE_RETENTION", cfg.StoreRetention)
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.CategoryCacheTTL = getEnvDurationOrDefault("CATEGORY_CACHE_TTL", cfg.CategoryCacheTTL)

	cfg.AIProvider = getEnvOrDefault("AI_PROVIDER", cfg.AIProvider)
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = getEnvOrDefault("GEMINI_MODEL", cfg.GeminiModel)
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIBaseURL = getEnvOrDefault("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.OpenAIModel = getEnvOrDefault("OPENAI_MODEL", cfg.OpenAIModel)
	if v := os.Getenv("MAX_AI_REQUESTS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val >= 0 {
			cfg.MaxAIRequests = val
		}
	}
	cfg.AITimeout = getEnvDurationOrDefault("AI_TIMEOUT", cfg.AITimeout)

	cfg.FeedTimeout = getEnvDurationOrDefault("FEED_TIMEOUT", cfg.FeedTimeout)
	cfg.FetchRetryAttempts = getEnvIntOrDefault("FETCH_RETRY_ATTEMPTS", cfg.FetchRetryAttempts)
	if v := os.Getenv("SCRAPE_FULL_ARTICLES"); v != "" {
		cfg.ScrapeFullArticles = v == "true"
	}

	cfg.IngestWorkers = getEnvIntOrDefault("INGEST_WORKERS", cfg.IngestWorkers)
	cfg.EntryDelay = getEnvDurationOrDefault("ENTRY_DELAY", cfg.EntryDelay)
	cfg.SummaryLimit = getEnvIntOrDefault("SUMMARY_LIMIT", cfg.SummaryLimit)
	cfg.IngestSchedule = os.Getenv("INGEST_SCHEDULE")

	cfg.EnableMonitoring = os.Getenv("ENABLE_HTTP_MONITORING") == "true"
	cfg.MonitoringPort = getEnvOrDefault("MONITORING_PORT", cfg.MonitoringPort)
	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
	}
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)

	return cfg, cfg.Validate()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendFile:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of memory, file, postgres (got %q)", c.StoreBackend)
	}
	if c.StoreRetention < 0 {
		return fmt.Errorf("STORE_RETENTION must not be negative")
	}

	switch c.AIProvider {
	case ProviderAuto, ProviderKeyword:
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for AI_PROVIDER=gemini")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for AI_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("AI_PROVIDER must be one of auto, gemini, openai, keyword (got %q)", c.AIProvider)
	}

	if c.IngestWorkers <= 0 {
		return fmt.Errorf("INGEST_WORKERS must be positive")
	}
	if c.MaxEntriesPerFeed <= 0 {
		return fmt.Errorf("MAX_ENTRIES_PER_FEED must be positive")
	}
	if c.FetchRetryAttempts <= 0 {
		return fmt.Errorf("FETCH_RETRY_ATTEMPTS must be positive")
	}
	if c.SummaryLimit < 10 {
		return fmt.Errorf("SUMMARY_LIMIT must be at least 10")
	}
	if c.AITimeout <= 0 || c.FeedTimeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT and FEED_TIMEOUT must be positive")
	}
	return nil
}
