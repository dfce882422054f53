package marketdata

import (
	"errors"
	"log"
	"time"

	"github.com/eddiefleurent/zero-dte-bot/internal/models"
	"github.com/sony/gobreaker"
)

// CircuitBreakerProvider wraps a Provider with circuit breaker
// functionality so a flapping remote data store cannot stall the
// evaluation loop.
type CircuitBreakerProvider struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
}

// CircuitBreakerSettings configures circuit breaker behavior.
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// execBreaker is a generic helper for circuit breaker wrapper methods.
func execBreaker[T any](
	breaker *gobreaker.CircuitBreaker,
	provider Provider,
	fn func(Provider) (T, error),
) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn(provider) })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// NewCircuitBreakerProvider creates a CircuitBreakerProvider with
// sensible defaults.
func NewCircuitBreakerProvider(provider Provider) *CircuitBreakerProvider {
	return NewCircuitBreakerProviderWithSettings(provider, CircuitBreakerSettings{
		MaxRequests:  3,                // Allow 3 requests when half-open
		Interval:     60 * time.Second, // Reset counts every minute
		Timeout:      30 * time.Second, // Open circuit for 30 seconds
		MinRequests:  5,                // Minimum requests before tripping
		FailureRatio: 0.6,              // Trip if 60% failure rate
	})
}

// NewCircuitBreakerProviderWithSettings creates a CircuitBreakerProvider
// with custom settings.
func NewCircuitBreakerProviderWithSettings(provider Provider, settings CircuitBreakerSettings) *CircuitBreakerProvider {
	gbSettings := gobreaker.Settings{
		Name:        "MarketDataCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s state changed from %s to %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Empty snapshots are an expected market condition, not a
			// provider fault; don't count them against the breaker.
			return err == nil || errors.Is(err, ErrNoData)
		},
	}

	return &CircuitBreakerProvider{
		provider: provider,
		breaker:  gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// GetQuotesAt wraps the underlying provider call with the circuit breaker.
func (c *CircuitBreakerProvider) GetQuotesAt(ts time.Time) ([]models.Quote, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) ([]models.Quote, error) {
		return p.GetQuotesAt(ts)
	})
}

// GetSpot wraps the underlying provider call with the circuit breaker.
func (c *CircuitBreakerProvider) GetSpot(ts time.Time) (float64, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) (float64, error) {
		return p.GetSpot(ts)
	})
}

// GetBars wraps the underlying provider call with the circuit breaker.
func (c *CircuitBreakerProvider) GetBars(from, to time.Time) ([]models.Bar, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) ([]models.Bar, error) {
		return p.GetBars(from, to)
	})
}

// GetVolIndex wraps the underlying provider call with the circuit breaker.
func (c *CircuitBreakerProvider) GetVolIndex(ts time.Time) (float64, error) {
	return execBreaker(c.breaker, c.provider, func(p Provider) (float64, error) {
		return p.GetVolIndex(ts)
	})
}

// State exposes the breaker state for dashboards and tests.
func (c *CircuitBreakerProvider) State() gobreaker.State {
	return c.breaker.State()
}

// Ensure CircuitBreakerProvider implements Provider
var _ Provider = (*CircuitBreakerProvider)(nil)
