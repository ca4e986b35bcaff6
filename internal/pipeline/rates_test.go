package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/payment-ingest/internal/config"
)

func testFXConfig(baseURL string) config.FX {
	return config.FX{
		BaseURL:      baseURL,
		APIKey:       "test-key",
		Timeout:      2 * time.Second,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}
}

func TestAPILayerResolver_Success(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		if got := r.Header.Get("apikey"); got != "test-key" {
			t.Errorf("apikey header = %q, want test-key", got)
		}
		if got := r.URL.Query().Get("base"); got != "USD" {
			t.Errorf("base = %q, want USD", got)
		}
		if got := r.URL.Query().Get("symbols"); got != "EUR" {
			t.Errorf("symbols = %q, want EUR", got)
		}

		w.Write([]byte(`{"success":true,"base":"USD","rates":{"EUR":0.92}}`))
	}))
	defer srv.Close()

	resolver := NewAPILayerResolver(testFXConfig(srv.URL))

	rate, err := resolver.Resolve(context.Background(), "EUR")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rate.String() != "0.92" {
		t.Errorf("rate = %s, want 0.92", rate)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("API called %d times, want 1", n)
	}
}

func TestAPILayerResolver_CurrencyNotFound_NoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"success":true,"base":"USD","rates":{}}`))
	}))
	defer srv.Close()

	resolver := NewAPILayerResolver(testFXConfig(srv.URL))

	_, err := resolver.Resolve(context.Background(), "ZZZ")
	if !errors.Is(err, ErrCurrencyNotFound) {
		t.Fatalf("error = %v, want ErrCurrencyNotFound", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("API called %d times, want 1 (missing currency is permanent)", n)
	}
}

func TestAPILayerResolver_ServerErrorRetriedThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"rates":{"GBP":0.79}}`))
	}))
	defer srv.Close()

	resolver := NewAPILayerResolver(testFXConfig(srv.URL))

	rate, err := resolver.Resolve(context.Background(), "GBP")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rate.String() != "0.79" {
		t.Errorf("rate = %s, want 0.79", rate)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("API called %d times, want 3", n)
	}
}

func TestAPILayerResolver_ServerErrorExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	resolver := NewAPILayerResolver(testFXConfig(srv.URL))

	_, err := resolver.Resolve(context.Background(), "EUR")
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	// First attempt plus MaxRetries.
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("API called %d times, want 3", n)
	}
}

func TestAPILayerResolver_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	resolver := NewAPILayerResolver(testFXConfig(srv.URL))

	_, err := resolver.Resolve(context.Background(), "EUR")
	if err == nil {
		t.Fatal("Expected error for 401 response")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("API called %d times, want 1 (4xx is permanent)", n)
	}
}

func TestAPILayerResolver_MalformedBody(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	resolver := NewAPILayerResolver(testFXConfig(srv.URL))

	_, err := resolver.Resolve(context.Background(), "EUR")
	if err == nil {
		t.Fatal("Expected error for malformed body")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("API called %d times, want 1", n)
	}
}

func TestAPILayerResolver_ZeroRateTreatedAsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rates":{"EUR":0}}`))
	}))
	defer srv.Close()

	resolver := NewAPILayerResolver(testFXConfig(srv.URL))

	_, err := resolver.Resolve(context.Background(), "EUR")
	if !errors.Is(err, ErrCurrencyNotFound) {
		t.Fatalf("error = %v, want ErrCurrencyNotFound", err)
	}
}

func TestAPILayerResolver_TimeoutRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"rates":{"EUR":0.92}}`))
	}))
	defer srv.Close()

	cfg := testFXConfig(srv.URL)
	cfg.Timeout = 20 * time.Millisecond
	cfg.MaxRetries = 1
	resolver := NewAPILayerResolver(cfg)

	_, err := resolver.Resolve(context.Background(), "EUR")
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("API called %d times, want 2 (timeout is transient)", n)
	}
}

func TestAPILayerResolver_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resolver := NewAPILayerResolver(testFXConfig(srv.URL))

	_, err := resolver.Resolve(ctx, "EUR")
	if err == nil {
		t.Fatal("Expected error with cancelled context")
	}
}
