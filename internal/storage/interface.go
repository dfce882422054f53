// Package storage persists the risk ledger, fills, and run statistics.
package storage

import (
	"github.com/eddiefleurent/zero-dte-bot/internal/models"
)

// Interface defines the contract for risk-ledger and fill persistence.
//
// Implementations must be safe for concurrent use - callers can assume all
// methods are goroutine-safe and can safely call these methods from
// multiple goroutines.
//
// The provided JSONStorage implementation uses sync.RWMutex to serialize
// access, ensuring all Interface methods are protected for concurrent
// readers and writers.
type Interface interface {
	// Risk ledger
	GetRiskDay(date string) (*RiskDayRecord, bool)
	SetRiskDay(rec *RiskDayRecord) error
	LatestFinalizedDay(before string) (*RiskDayRecord, bool)

	// Fills and daily results
	RecordFill(fill *models.FillResult) error
	GetFills() []models.FillResult
	RecordDailyPnL(date string, pnl float64) error
	GetDailyPnL(date string) float64

	// Run analytics
	RecordOrderOutcome(approved bool)
	GetStatistics() *Statistics

	// Data persistence
	Save() error
	Load() error
}

// NewStorage creates a new storage implementation (currently JSON-based).
// In the future, this can be extended to support different storage backends.
func NewStorage(filepath string) (Interface, error) {
	return NewJSONStorage(filepath)
}

// Ensure JSONStorage implements Interface
var _ Interface = (*JSONStorage)(nil)
