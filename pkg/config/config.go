package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Application settings
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Facebook  FacebookConfig
	Payments  PaymentsConfig
	Sink      SinkConfig
	Ingest    IngestConfig
	Analytics AnalyticsConfig
	Cache     CacheConfig
}

// Server settings
type ServerConfig struct {
	Port           string
	RequestTimeout time.Duration
}

// Logging settings
type LoggingConfig struct {
	Level string
}

// FacebookConfig points at the Graph API. An empty AccessToken disables the
// ad-platform source.
type FacebookConfig struct {
	AccessToken   string
	APIVersion    string
	BaseURL       string
	AccountIDs    []string
	InsightsLevel string
}

// PaymentsConfig points at the backend payment store. An empty URL disables it.
type PaymentsConfig struct {
	URL        string
	Collection string
	Token      string
}

type SinkConfig struct {
	URL    string
	Secret string
}

type IngestConfig struct {
	WorkerPoolSize     int
	RateLimitPerSecond int
	PageSize           int
	RefreshSchedule    string
	LookbackDays       int
}

type AnalyticsConfig struct {
	DefaultCurrency string
	NegativeAmounts string
	Locale          string
	TopLabels       int
	LabelMaxLen     int
	ExcludedLabels  []string
}

// CacheConfig selects the view cache. An empty RedisAddr keeps it in memory.
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", "30s"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Facebook: FacebookConfig{
			AccessToken:   getEnv("FB_ACCESS_TOKEN", ""),
			APIVersion:    getEnv("FB_API_VERSION", "v21.0"),
			BaseURL:       getEnv("FB_BASE_URL", "https://graph.facebook.com"),
			AccountIDs:    getListEnv("FB_ACCOUNT_IDS", nil),
			InsightsLevel: getEnv("FB_INSIGHTS_LEVEL", "ad"),
		},
		Payments: PaymentsConfig{
			URL:        getEnv("PAYMENTS_URL", ""),
			Collection: getEnv("PAYMENTS_COLLECTION", "payment_data"),
			Token:      getEnv("PAYMENTS_TOKEN", ""),
		},
		Sink: SinkConfig{
			URL:    getEnv("SINK_URL", ""),
			Secret: getEnv("SINK_SECRET", ""),
		},
		Ingest: IngestConfig{
			WorkerPoolSize:     getIntEnv("WORKER_POOL_SIZE", 4),
			RateLimitPerSecond: getIntEnv("RATE_LIMIT_PER_SECOND", 10),
			PageSize:           getIntEnv("PAGE_SIZE", 100),
			RefreshSchedule:    getEnv("REFRESH_SCHEDULE", ""),
			LookbackDays:       getIntEnv("LOOKBACK_DAYS", 30),
		},
		Analytics: AnalyticsConfig{
			DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),
			NegativeAmounts: getEnv("NEGATIVE_AMOUNTS", "clamp"),
			Locale:          getEnv("LOCALE", "en-US"),
			TopLabels:       getIntEnv("TOP_LABELS", 5),
			LabelMaxLen:     getIntEnv("LABEL_MAX_LEN", 30),
			ExcludedLabels:  getListEnv("EXCLUDED_LABELS", []string{"test"}),
		},
		Cache: CacheConfig{
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getIntEnv("REDIS_DB", 0),
			TTL:           getDurationEnv("CACHE_TTL", "5m"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate reports every setting that cannot work, joined into one error.
func (c *Config) Validate() error {
	var errs []error

	if c.Facebook.AccessToken == "" && c.Payments.URL == "" {
		errs = append(errs, errors.New("no record source configured: set FB_ACCESS_TOKEN or PAYMENTS_URL"))
	}
	if c.Facebook.AccessToken != "" && len(c.Facebook.AccountIDs) == 0 {
		errs = append(errs, errors.New("FB_ACCOUNT_IDS is required when FB_ACCESS_TOKEN is set"))
	}
	if c.Sink.URL != "" && c.Sink.Secret == "" {
		errs = append(errs, errors.New("SINK_SECRET is required when SINK_URL is set"))
	}
	if c.Ingest.WorkerPoolSize < 1 {
		errs = append(errs, fmt.Errorf("WORKER_POOL_SIZE must be positive, got %d", c.Ingest.WorkerPoolSize))
	}
	if c.Ingest.RateLimitPerSecond < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_SECOND must be positive, got %d", c.Ingest.RateLimitPerSecond))
	}
	if c.Ingest.PageSize < 1 {
		errs = append(errs, fmt.Errorf("PAGE_SIZE must be positive, got %d", c.Ingest.PageSize))
	}
	if c.Ingest.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(c.Ingest.RefreshSchedule); err != nil {
			errs = append(errs, fmt.Errorf("REFRESH_SCHEDULE: %w", err))
		}
	}
	if c.Analytics.TopLabels < 1 {
		errs = append(errs, fmt.Errorf("TOP_LABELS must be positive, got %d", c.Analytics.TopLabels))
	}
	if c.Analytics.LabelMaxLen < 1 {
		errs = append(errs, fmt.Errorf("LABEL_MAX_LEN must be positive, got %d", c.Analytics.LabelMaxLen))
	}
	switch strings.ToLower(c.Analytics.NegativeAmounts) {
	case "clamp", "keep":
	default:
		errs = append(errs, fmt.Errorf("NEGATIVE_AMOUNTS must be clamp or keep, got %q", c.Analytics.NegativeAmounts))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

// getListEnv splits a comma-separated value, dropping blanks.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
