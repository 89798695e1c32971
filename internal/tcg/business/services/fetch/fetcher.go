package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"tcgsync_api/config"
	"tcgsync_api/config/values"
	"tcgsync_api/internal/tcg/business/models"
	"tcgsync_api/metrics"
	"tcgsync_api/pkg/logger"
	"tcgsync_api/pkg/retry"
)

// Fetcher issues single provider requests with a bounded timeout and
// classifies the outcome: 2xx succeeds, 429/5xx and timeouts are transient,
// any other status is fatal and propagated without retry.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	apiKey  string
	policy  retry.Policy
	lg      logger.Logger
}

func NewFetcher(provider config.ProviderConfig, sync values.SyncValues, lg logger.Logger) *Fetcher {
	var limiter *rate.Limiter
	if provider.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(provider.RateLimit), 1)
	}
	return &Fetcher{
		client:  &http.Client{Timeout: sync.RequestTimeout},
		limiter: limiter,
		apiKey:  provider.APIKey,
		policy: retry.Policy{
			Attempts:  sync.RetryAttempts,
			BaseDelay: sync.RetryBaseDelay,
			Jitter:    true,
			Retryable: models.IsTransient,
		},
		lg: lg,
	}
}

// Fetch GETs url, retrying transient failures per the shared retry policy.
// After exhausting attempts the last transient error is returned.
func (f *Fetcher) Fetch(ctx context.Context, op, url string) ([]byte, error) {
	var body []byte
	err := f.policy.Do(ctx, f.lg, fmt.Sprintf("fetch %s", url), func() error {
		b, attemptErr := f.fetchOnce(ctx, url)
		if attemptErr != nil {
			if models.IsTransient(attemptErr) {
				metrics.RecordFetchRetry(op)
			}
			return attemptErr
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, models.Fatal(err)
	}
	req.Header.Set("Accept", "application/json, text/csv;q=0.9, */*;q=0.1")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		// Client timeouts and transport failures are worth another attempt.
		f.lg.Warn("GET %s failed after %s: %v", url, elapsed, err)
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, models.Transient(err)
	}
	defer resp.Body.Close()

	f.lg.Log("GET %s -> %d (%s)", url, resp.StatusCode, elapsed)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, models.Transient(fmt.Errorf("reading body: %w", readErr))
		}
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, models.Transient(fmt.Errorf("unexpected status code: %s", resp.Status))
	default:
		return nil, models.Fatal(fmt.Errorf("unexpected status code: %s", resp.Status))
	}
}
