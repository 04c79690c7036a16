package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	// Provider settings.
	KlingAPIKey     string
	KlingBaseURL    string
	SubmitTimeout   time.Duration
	PollInterval    time.Duration
	PollMaxInterval time.Duration
	PollTimeout     time.Duration

	// Dispatch settings.
	WorkerConcurrency int
	UnlimitedCredits  bool
	ExperimentGroup   string
	StoragePath       string

	GeoIPDBPath      string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		KlingAPIKey:       os.Getenv("KLING_API_KEY"),
		KlingBaseURL:      getEnv("KLING_BASE_URL", "https://api.klingai.com"),
		SubmitTimeout:     time.Second * time.Duration(getEnvInt("SUBMIT_TIMEOUT_SECONDS", 15)),
		PollInterval:      time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 3)),
		PollMaxInterval:   time.Second * time.Duration(getEnvInt("POLL_MAX_INTERVAL_SECONDS", 10)),
		PollTimeout:       time.Second * time.Duration(getEnvInt("POLL_TIMEOUT_SECONDS", 360)),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		UnlimitedCredits:  getEnvBool("UNLIMITED_CREDITS", false),
		ExperimentGroup:   os.Getenv("EXPERIMENT_GROUP"),
		StoragePath:       os.Getenv("STORAGE_PATH"),
		GeoIPDBPath:       os.Getenv("GEOIP_DB_PATH"),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.WorkerConcurrency < 1 {
		return nil, fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
