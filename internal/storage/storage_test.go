package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/eddiefleurent/zero-dte-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) (*JSONStorage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.json")
	s, err := NewJSONStorage(path)
	require.NoError(t, err)
	return s, path
}

func TestRiskDayRoundTrip(t *testing.T) {
	s, path := newTestStorage(t)

	rec := &RiskDayRecord{
		Date:                "2024-03-05",
		ConsecutiveLossDays: 2,
		RealizedLossToday:   150,
		Audit: []AuditEntry{
			{ID: "a1", OrderID: "o1", Loss: 150, Timestamp: time.Now().UTC()},
		},
	}
	require.NoError(t, s.SetRiskDay(rec))

	got, ok := s.GetRiskDay("2024-03-05")
	require.True(t, ok)
	assert.Equal(t, rec.ConsecutiveLossDays, got.ConsecutiveLossDays)
	assert.Equal(t, rec.RealizedLossToday, got.RealizedLossToday)
	require.Len(t, got.Audit, 1)

	// A fresh instance must see the same ledger from disk.
	reloaded, err := NewJSONStorage(path)
	require.NoError(t, err)
	got, ok = reloaded.GetRiskDay("2024-03-05")
	require.True(t, ok)
	assert.Equal(t, 2, got.ConsecutiveLossDays)
}

func TestGetRiskDayReturnsCopy(t *testing.T) {
	s, _ := newTestStorage(t)
	require.NoError(t, s.SetRiskDay(&RiskDayRecord{Date: "2024-03-05", RealizedLossToday: 100}))

	got, ok := s.GetRiskDay("2024-03-05")
	require.True(t, ok)
	got.RealizedLossToday = 9999

	again, ok := s.GetRiskDay("2024-03-05")
	require.True(t, ok)
	assert.Equal(t, 100.0, again.RealizedLossToday, "callers must not mutate stored state")
}

func TestFinalizedDayCannotBeReopened(t *testing.T) {
	s, _ := newTestStorage(t)
	require.NoError(t, s.SetRiskDay(&RiskDayRecord{Date: "2024-03-05", Finalized: true}))

	err := s.SetRiskDay(&RiskDayRecord{Date: "2024-03-05", Finalized: false})
	assert.ErrorIs(t, err, ErrDayFinalized)
}

func TestLatestFinalizedDay(t *testing.T) {
	s, _ := newTestStorage(t)
	require.NoError(t, s.SetRiskDay(&RiskDayRecord{Date: "2024-03-01", Finalized: true, ConsecutiveLossDays: 1}))
	require.NoError(t, s.SetRiskDay(&RiskDayRecord{Date: "2024-03-04", Finalized: true, ConsecutiveLossDays: 2}))
	require.NoError(t, s.SetRiskDay(&RiskDayRecord{Date: "2024-03-05", Finalized: false}))

	rec, ok := s.LatestFinalizedDay("2024-03-05")
	require.True(t, ok)
	assert.Equal(t, "2024-03-04", rec.Date)
	assert.Equal(t, 2, rec.ConsecutiveLossDays)

	_, ok = s.LatestFinalizedDay("2024-03-01")
	assert.False(t, ok, "no finalized day exists before the first")
}

func TestRecordFillAndStatistics(t *testing.T) {
	s, _ := newTestStorage(t)

	require.NoError(t, s.RecordFill(&models.FillResult{OrderID: "o1"}))
	require.NoError(t, s.RecordFill(&models.FillResult{OrderID: "o2"}))
	assert.Len(t, s.GetFills(), 2)
	assert.Equal(t, 2, s.GetStatistics().FilledOrders)

	assert.Error(t, s.RecordFill(nil))
}

func TestRecordDailyPnLUpdatesAggregates(t *testing.T) {
	s, _ := newTestStorage(t)

	require.NoError(t, s.RecordDailyPnL("2024-03-04", 250))
	require.NoError(t, s.RecordDailyPnL("2024-03-05", -400))

	stats := s.GetStatistics()
	assert.Equal(t, 1, stats.WinningDays)
	assert.Equal(t, 1, stats.LosingDays)
	assert.InDelta(t, -150, stats.TotalPnL, 1e-9)
	assert.InDelta(t, 0.5, stats.WinRate, 1e-9)
	assert.InDelta(t, -400, stats.MaxDailyLoss, 1e-9)
	assert.InDelta(t, -400, s.GetDailyPnL("2024-03-05"), 1e-9)
}

func TestRecordOrderOutcome(t *testing.T) {
	s, _ := newTestStorage(t)

	s.RecordOrderOutcome(true)
	s.RecordOrderOutcome(false)
	s.RecordOrderOutcome(false)

	stats := s.GetStatistics()
	assert.Equal(t, 3, stats.TotalOrders)
	assert.Equal(t, 1, stats.ApprovedOrders)
	assert.Equal(t, 2, stats.RejectedOrders)
}

func TestLoadMissingFileFails(t *testing.T) {
	s := &JSONStorage{filepath: filepath.Join(t.TempDir(), "absent.json"), data: newStorageData()}
	assert.Error(t, s.Load())
}
