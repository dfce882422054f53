package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/eddiefleurent/zero-dte-bot/internal/models"
)

// MockStorage implements Interface for testing.
type MockStorage struct {
	mu            sync.Mutex
	saveError     error
	loadError     error
	setDayError   error
	riskDays      map[string]*RiskDayRecord
	fills         []models.FillResult
	dailyPnL      map[string]float64
	statistics    *Statistics
	saveCallCount int
	loadCallCount int
}

// NewMockStorage creates a new mock storage for testing.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		riskDays:   make(map[string]*RiskDayRecord),
		dailyPnL:   make(map[string]float64),
		statistics: &Statistics{},
	}
}

func (m *MockStorage) GetRiskDay(date string) (*RiskDayRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.riskDays[date]
	if !ok {
		return nil, false
	}
	return copyRiskDay(rec), true
}

func (m *MockStorage) SetRiskDay(rec *RiskDayRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.setDayError != nil {
		return m.setDayError
	}
	if rec == nil || rec.Date == "" {
		return fmt.Errorf("risk day record requires a date")
	}
	m.riskDays[rec.Date] = copyRiskDay(rec)
	return nil
}

func (m *MockStorage) LatestFinalizedDay(before string) (*RiskDayRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var dates []string
	for date, rec := range m.riskDays {
		if rec.Finalized && date < before {
			dates = append(dates, date)
		}
	}
	if len(dates) == 0 {
		return nil, false
	}
	sort.Strings(dates)
	return copyRiskDay(m.riskDays[dates[len(dates)-1]]), true
}

func (m *MockStorage) RecordFill(fill *models.FillResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fill == nil {
		return fmt.Errorf("nil fill")
	}
	m.fills = append(m.fills, *fill)
	m.statistics.FilledOrders++
	return nil
}

func (m *MockStorage) GetFills() []models.FillResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	fills := make([]models.FillResult, len(m.fills))
	copy(fills, m.fills)
	return fills
}

func (m *MockStorage) RecordDailyPnL(date string, pnl float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dailyPnL[date] = pnl
	m.statistics.TotalPnL += pnl
	return nil
}

func (m *MockStorage) GetDailyPnL(date string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyPnL[date]
}

func (m *MockStorage) RecordOrderOutcome(approved bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statistics.TotalOrders++
	if approved {
		m.statistics.ApprovedOrders++
	} else {
		m.statistics.RejectedOrders++
	}
}

func (m *MockStorage) GetStatistics() *Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := *m.statistics
	return &stats
}

func (m *MockStorage) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saveCallCount++
	return m.saveError
}

func (m *MockStorage) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loadCallCount++
	return m.loadError
}

// Mock control methods for testing

func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

func (m *MockStorage) SetSetRiskDayError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setDayError = err
}

func (m *MockStorage) GetSaveCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCallCount
}

// Ensure MockStorage implements Interface
var _ Interface = (*MockStorage)(nil)
