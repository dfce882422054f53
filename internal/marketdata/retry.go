package marketdata

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/eddiefleurent/zero-dte-bot/internal/models"
)

// RetryConfig controls the bounded-backoff retry wrapper.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

// DefaultRetryConfig is suitable for a remote historical store.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	Timeout:        2 * time.Minute,
}

// RetryProvider wraps a Provider with retries on transient failures.
// Backoff jitter comes from an injected seeded source so replays of the
// same backtest schedule identically.
type RetryProvider struct {
	provider Provider
	logger   *log.Logger
	config   RetryConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRetryProvider creates a retrying wrapper around provider. rng must
// not be shared with other components.
func NewRetryProvider(provider Provider, logger *log.Logger, rng *rand.Rand, config ...RetryConfig) *RetryProvider {
	cfg := DefaultRetryConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	return &RetryProvider{
		provider: provider,
		logger:   logger,
		config:   cfg,
		rng:      rng,
	}
}

func retryFetch[T any](r *RetryProvider, what string, fn func(Provider) (T, error)) (T, error) {
	var zero T

	ctx, cancel := context.WithTimeout(context.Background(), r.config.Timeout)
	defer cancel()

	var lastErr error
	backoff := r.config.InitialBackoff

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%s timed out after %v: %w", what, r.config.Timeout, ctx.Err())
		default:
		}

		res, err := fn(r.provider)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !isTransientError(err) || attempt == r.config.MaxRetries {
			break
		}

		r.logger.Printf("%s attempt %d/%d failed (%v), retrying in %v",
			what, attempt+1, r.config.MaxRetries+1, err, backoff)

		select {
		case <-time.After(backoff):
			backoff = r.nextBackoff(backoff)
		case <-ctx.Done():
			return zero, fmt.Errorf("%s timed out during backoff: %w", what, ctx.Err())
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", what, r.config.MaxRetries+1, lastErr)
}

func (r *RetryProvider) nextBackoff(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * 1.5)
	if next > r.config.MaxBackoff {
		next = r.config.MaxBackoff
	}
	maxJitter := int64(next / 4)
	if maxJitter > 0 {
		r.mu.Lock()
		jitter := time.Duration(r.rng.Int63n(maxJitter))
		r.mu.Unlock()
		next += jitter
	}
	return next
}

// isTransientError reports whether an error is worth retrying. ErrNoData
// is a definitive answer, never transient.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "temporar", "connection reset", "connection refused", "unavailable", "too many requests"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// GetQuotesAt retries the underlying fetch on transient failures.
func (r *RetryProvider) GetQuotesAt(ts time.Time) ([]models.Quote, error) {
	return retryFetch(r, "quotes fetch", func(p Provider) ([]models.Quote, error) {
		return p.GetQuotesAt(ts)
	})
}

// GetSpot retries the underlying fetch on transient failures.
func (r *RetryProvider) GetSpot(ts time.Time) (float64, error) {
	return retryFetch(r, "spot fetch", func(p Provider) (float64, error) {
		return p.GetSpot(ts)
	})
}

// GetBars retries the underlying fetch on transient failures.
func (r *RetryProvider) GetBars(from, to time.Time) ([]models.Bar, error) {
	return retryFetch(r, "bars fetch", func(p Provider) ([]models.Bar, error) {
		return p.GetBars(from, to)
	})
}

// GetVolIndex retries the underlying fetch on transient failures.
func (r *RetryProvider) GetVolIndex(ts time.Time) (float64, error) {
	return retryFetch(r, "vol index fetch", func(p Provider) (float64, error) {
		return p.GetVolIndex(ts)
	})
}

// Ensure RetryProvider implements Provider
var _ Provider = (*RetryProvider)(nil)
