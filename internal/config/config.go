// Package config collects all process configuration in one place.
// Values are read from the environment exactly once, in main; business
// logic only ever sees the resulting structs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// FX configures the exchange-rate API client.
type FX struct {
	// BaseURL is the API root, e.g. "https://api.apilayer.com/exchangerates_data".
	BaseURL string

	// APIKey is sent as the "apikey" header on every request.
	APIKey string

	// Timeout bounds each HTTP request to the rate API.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after the first
	// for transient failures. Permanent failures are never retried.
	MaxRetries int

	// RetryBackoff is the base delay between attempts; the actual delay
	// grows exponentially with jitter.
	RetryBackoff time.Duration
}

// Config holds the full service configuration.
type Config struct {
	// Port is the HTTP listen port for the API server.
	Port string

	// Bucket is the GCS bucket holding uploaded payment files.
	Bucket string

	// ProjectID and DatasetID locate the BigQuery payment sink.
	ProjectID string
	DatasetID string

	// QueueBuffer is the in-memory job queue capacity.
	QueueBuffer int

	// Workers is the number of concurrent job consumers. Rows within a
	// single file are always processed sequentially regardless.
	Workers int

	// LogLevel filters log output ("debug", "info", ...).
	LogLevel string

	FX FX
}

// Load reads configuration from the environment, applying defaults for
// everything except the secrets and resource names that have no sane default.
func Load() (*Config, error) {
	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		Bucket:    os.Getenv("GCS_BUCKET"),
		ProjectID: os.Getenv("BQ_PROJECT_ID"),
		DatasetID: getEnv("BQ_DATASET_ID", "payments"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		FX: FX{
			BaseURL:      getEnv("EXCHANGE_RATE_API_URL", "https://api.apilayer.com/exchangerates_data"),
			APIKey:       os.Getenv("EXCHANGE_RATE_API_KEY"),
			Timeout:      getDuration("EXCHANGE_RATE_TIMEOUT", 10*time.Second),
			MaxRetries:   getInt("EXCHANGE_RATE_MAX_RETRIES", 2),
			RetryBackoff: getDuration("EXCHANGE_RATE_RETRY_BACKOFF", 500*time.Millisecond),
		},
	}
	cfg.QueueBuffer = getInt("QUEUE_BUFFER", 100)
	cfg.Workers = getInt("QUEUE_WORKERS", 5)

	if cfg.FX.APIKey == "" {
		return nil, fmt.Errorf("config: EXCHANGE_RATE_API_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
