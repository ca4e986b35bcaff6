package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/dvloznov/payment-ingest/internal/config"
	"github.com/shopspring/decimal"
)

// BaseCurrency is the reference currency for all conversions. The rate
// API returns, for each requested symbol, the units of that symbol per
// one unit of the base currency.
const BaseCurrency = "USD"

// ErrCurrencyNotFound indicates the API answered successfully but without
// a usable rate for the requested currency. This is permanent for the row
// and is never retried.
var ErrCurrencyNotFound = errors.New("currency not found in rate response")

// RateResolver resolves a currency code to its rate against BaseCurrency,
// as of now. Implementations issue one call per invocation; there is no
// caching across rows.
type RateResolver interface {
	Resolve(ctx context.Context, currency string) (decimal.Decimal, error)
}

// statusError is a non-success HTTP response from the rate API.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("rate api status %d", e.code)
}

// APILayerResolver resolves rates against an apilayer-style exchange rate
// API: GET <base>/latest?base=USD&symbols=<CODE> with an "apikey" header.
//
// Every request runs under a bounded timeout. Transient failures (network
// errors, timeouts, 5xx, 429) are retried with exponential backoff and
// jitter; "currency not found" and other 4xx responses are permanent and
// fail the row immediately.
type APILayerResolver struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
}

// NewAPILayerResolver builds a resolver from explicit configuration.
// The API key and base URL come from config only; business logic never
// reads the environment.
func NewAPILayerResolver(cfg config.FX) *APILayerResolver {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &APILayerResolver{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		client:     &http.Client{Timeout: timeout},
		maxRetries: cfg.MaxRetries,
		backoff:    backoff,
	}
}

// Resolve implements RateResolver.
func (r *APILayerResolver) Resolve(ctx context.Context, currency string) (decimal.Decimal, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(r.delay(attempt)):
			case <-ctx.Done():
				return decimal.Zero, ctx.Err()
			}
		}

		rate, err := r.fetch(ctx, currency)
		if err == nil {
			return rate, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return decimal.Zero, err
		}
		if !retryable(err) {
			return decimal.Zero, err
		}
	}

	return decimal.Zero, fmt.Errorf("rate api: attempts exhausted: %w", lastErr)
}

// fetch issues a single request for the given currency.
func (r *APILayerResolver) fetch(ctx context.Context, currency string) (decimal.Decimal, error) {
	u := fmt.Sprintf("%s/latest?base=%s&symbols=%s", r.baseURL, BaseCurrency, url.QueryEscape(currency))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rate api: build request: %w", err)
	}
	req.Header.Set("apikey", r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rate api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, &statusError{code: resp.StatusCode}
	}

	// Decode rates as json.Number so the value survives as an exact
	// decimal instead of a float64 round trip.
	var body struct {
		Rates map[string]json.Number `json:"rates"`
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("rate api: malformed response: %w", err)
	}

	num, ok := body.Rates[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", currency, ErrCurrencyNotFound)
	}

	rate, err := decimal.NewFromString(num.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("rate api: malformed rate %q for %s: %w", num, currency, err)
	}
	// A zero or negative rate cannot be converted against.
	if rate.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%s: non-positive rate %s: %w", currency, rate, ErrCurrencyNotFound)
	}

	return rate, nil
}

// retryable reports whether the failure class is transient.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	if errors.Is(err, ErrCurrencyNotFound) {
		return false
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		// Timeouts and connection errors; context cancellation is
		// handled by the caller.
		return true
	}
	return false
}

// delay computes the backoff before the given attempt, with jitter so a
// large batch does not hammer a recovering API in lockstep.
func (r *APILayerResolver) delay(attempt int) time.Duration {
	d := r.backoff << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(r.backoff)))
	return d + jitter
}

// Ensure APILayerResolver implements RateResolver.
var _ RateResolver = (*APILayerResolver)(nil)
