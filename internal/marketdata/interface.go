// Package marketdata defines the collaborator interfaces the decision
// core consumes for quotes, spot prices, and bars, along with resilience
// wrappers and a deterministic simulated provider for backtests.
package marketdata

import (
	"errors"
	"time"

	"github.com/eddiefleurent/zero-dte-bot/internal/models"
)

// ErrNoData is returned when a provider has nothing for the requested
// timestamp. Callers treat it as "no trade this tick", not a fault.
var ErrNoData = errors.New("no market data for timestamp")

// Provider is the contract for historical/simulated market data access.
//
// Implementations must be safe for concurrent use: the decision pipeline
// may evaluate multiple ticks from separate goroutines.
type Provider interface {
	// GetQuotesAt returns the option chain snapshot at the timestamp.
	GetQuotesAt(ts time.Time) ([]models.Quote, error)
	// GetSpot returns the underlying price at the timestamp.
	GetSpot(ts time.Time) (float64, error)
	// GetBars returns intraday OHLCV bars in [from, to], oldest first.
	GetBars(from, to time.Time) ([]models.Bar, error)
	// GetVolIndex returns the volatility-index level at the timestamp.
	GetVolIndex(ts time.Time) (float64, error)
}
