package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresAPIKey(t *testing.T) {
	t.Setenv("EXCHANGE_RATE_API_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load must fail without EXCHANGE_RATE_API_KEY")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EXCHANGE_RATE_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.QueueBuffer != 100 || cfg.Workers != 5 {
		t.Errorf("queue defaults = %d/%d, want 100/5", cfg.QueueBuffer, cfg.Workers)
	}
	if cfg.FX.Timeout != 10*time.Second {
		t.Errorf("FX.Timeout = %s, want 10s", cfg.FX.Timeout)
	}
	if cfg.FX.MaxRetries != 2 {
		t.Errorf("FX.MaxRetries = %d, want 2", cfg.FX.MaxRetries)
	}
	if cfg.FX.BaseURL == "" {
		t.Error("FX.BaseURL default missing")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("EXCHANGE_RATE_API_KEY", "test-key")
	t.Setenv("PORT", "9090")
	t.Setenv("GCS_BUCKET", "payments-prod")
	t.Setenv("EXCHANGE_RATE_TIMEOUT", "3s")
	t.Setenv("QUEUE_WORKERS", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.Bucket != "payments-prod" {
		t.Errorf("Bucket = %q", cfg.Bucket)
	}
	if cfg.FX.Timeout != 3*time.Second {
		t.Errorf("FX.Timeout = %s, want 3s", cfg.FX.Timeout)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Workers)
	}
}

func TestLoad_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("EXCHANGE_RATE_API_KEY", "test-key")
	t.Setenv("QUEUE_BUFFER", "lots")
	t.Setenv("EXCHANGE_RATE_RETRY_BACKOFF", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.QueueBuffer != 100 {
		t.Errorf("QueueBuffer = %d, want fallback 100", cfg.QueueBuffer)
	}
	if cfg.FX.RetryBackoff != 500*time.Millisecond {
		t.Errorf("FX.RetryBackoff = %s, want fallback 500ms", cfg.FX.RetryBackoff)
	}
}
