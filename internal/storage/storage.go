package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/eddiefleurent/zero-dte-bot/internal/models"
)

// AuditEntry records one approved order's contribution to a day's
// realized loss.
type AuditEntry struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	Loss      float64   `json:"loss"`
	Timestamp time.Time `json:"timestamp"`
}

// RiskDayRecord is one trading date's entry in the risk ledger. Dates are
// keyed as YYYY-MM-DD strings.
type RiskDayRecord struct {
	Date                string       `json:"date"`
	ConsecutiveLossDays int          `json:"consecutive_loss_days"`
	RealizedLossToday   float64      `json:"realized_loss_today"`
	RealizedPnL         float64      `json:"realized_pnl"`
	Finalized           bool         `json:"finalized"`
	Audit               []AuditEntry `json:"audit"`
}

// Statistics tracks aggregate run results for the dashboard.
type Statistics struct {
	TotalOrders    int     `json:"total_orders"`
	ApprovedOrders int     `json:"approved_orders"`
	RejectedOrders int     `json:"rejected_orders"`
	FilledOrders   int     `json:"filled_orders"`
	TotalPnL       float64 `json:"total_pnl"`
	WinningDays    int     `json:"winning_days"`
	LosingDays     int     `json:"losing_days"`
	WinRate        float64 `json:"win_rate"`
	MaxDailyLoss   float64 `json:"max_daily_loss"`
}

type storageData struct {
	RiskDays    map[string]*RiskDayRecord `json:"risk_days"`
	Fills       []models.FillResult       `json:"fills"`
	DailyPnL    map[string]float64        `json:"daily_pnl"`
	Statistics  *Statistics               `json:"statistics"`
	LastUpdated time.Time                 `json:"last_updated"`
}

// JSONStorage persists the ledger to a single JSON file with atomic
// replace-on-save semantics.
type JSONStorage struct {
	mu       sync.RWMutex
	filepath string
	data     *storageData
}

// NewJSONStorage creates a JSON-file storage, loading existing data when
// the file is already present.
func NewJSONStorage(filepath string) (*JSONStorage, error) {
	s := &JSONStorage{
		filepath: filepath,
		data:     newStorageData(),
	}

	if dir := path.Dir(filepath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}

	if _, err := os.Stat(filepath); err == nil {
		if err := s.Load(); err != nil {
			return nil, fmt.Errorf("loading storage: %w", err)
		}
	}

	return s, nil
}

func newStorageData() *storageData {
	return &storageData{
		RiskDays:   make(map[string]*RiskDayRecord),
		DailyPnL:   make(map[string]float64),
		Statistics: &Statistics{},
	}
}

// Load reads the ledger from disk, replacing in-memory state.
func (s *JSONStorage) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filepath)
	if err != nil {
		return err
	}

	loaded := newStorageData()
	if err := json.Unmarshal(data, loaded); err != nil {
		return err
	}
	if loaded.RiskDays == nil {
		loaded.RiskDays = make(map[string]*RiskDayRecord)
	}
	if loaded.DailyPnL == nil {
		loaded.DailyPnL = make(map[string]float64)
	}
	if loaded.Statistics == nil {
		loaded.Statistics = &Statistics{}
	}

	s.data = loaded
	return nil
}

// Save writes the ledger to disk. A temp file plus rename keeps a crash
// from leaving a half-written ledger behind.
func (s *JSONStorage) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *JSONStorage) saveLocked() error {
	s.data.LastUpdated = time.Now()

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	tmpFile := s.filepath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpFile, s.filepath)
}

// GetRiskDay returns a copy of the record for the date, if present.
func (s *JSONStorage) GetRiskDay(date string) (*RiskDayRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data.RiskDays[date]
	if !ok {
		return nil, false
	}
	return copyRiskDay(rec), true
}

// SetRiskDay upserts the record and persists. Overwriting a finalized day
// with a non-finalized record is rejected.
func (s *JSONStorage) SetRiskDay(rec *RiskDayRecord) error {
	if rec == nil || rec.Date == "" {
		return fmt.Errorf("risk day record requires a date")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.data.RiskDays[rec.Date]; ok && existing.Finalized && !rec.Finalized {
		return fmt.Errorf("%w: %s", ErrDayFinalized, rec.Date)
	}
	s.data.RiskDays[rec.Date] = copyRiskDay(rec)
	return s.saveLocked()
}

// LatestFinalizedDay returns the most recent finalized record strictly
// before the given date. Lexicographic order on YYYY-MM-DD keys is
// chronological order.
func (s *JSONStorage) LatestFinalizedDay(before string) (*RiskDayRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var dates []string
	for date, rec := range s.data.RiskDays {
		if rec.Finalized && date < before {
			dates = append(dates, date)
		}
	}
	if len(dates) == 0 {
		return nil, false
	}
	sort.Strings(dates)
	return copyRiskDay(s.data.RiskDays[dates[len(dates)-1]]), true
}

// RecordFill appends a fill to the run history and persists.
func (s *JSONStorage) RecordFill(fill *models.FillResult) error {
	if fill == nil {
		return fmt.Errorf("nil fill")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Fills = append(s.data.Fills, *fill)
	s.data.Statistics.FilledOrders++
	return s.saveLocked()
}

// GetFills returns a copy of the fill history.
func (s *JSONStorage) GetFills() []models.FillResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fills := make([]models.FillResult, len(s.data.Fills))
	copy(fills, s.data.Fills)
	return fills
}

// RecordDailyPnL stores a date's realized result and folds it into the
// aggregate statistics.
func (s *JSONStorage) RecordDailyPnL(date string, pnl float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.DailyPnL[date] = pnl

	stats := s.data.Statistics
	stats.TotalPnL += pnl
	if pnl > 0 {
		stats.WinningDays++
	} else if pnl < 0 {
		stats.LosingDays++
		if pnl < stats.MaxDailyLoss {
			stats.MaxDailyLoss = pnl
		}
	}
	if decided := stats.WinningDays + stats.LosingDays; decided > 0 {
		stats.WinRate = float64(stats.WinningDays) / float64(decided)
	}
	return s.saveLocked()
}

// GetDailyPnL returns the recorded result for a date, zero if absent.
func (s *JSONStorage) GetDailyPnL(date string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.DailyPnL[date]
}

// RecordOrderOutcome counts an admission decision. Persistence is left to
// the next Save; per-tick counters are not worth an fsync each.
func (s *JSONStorage) RecordOrderOutcome(approved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Statistics.TotalOrders++
	if approved {
		s.data.Statistics.ApprovedOrders++
	} else {
		s.data.Statistics.RejectedOrders++
	}
}

// GetStatistics returns a copy of the aggregate statistics.
func (s *JSONStorage) GetStatistics() *Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := *s.data.Statistics
	return &stats
}

func copyRiskDay(rec *RiskDayRecord) *RiskDayRecord {
	cp := *rec
	cp.Audit = make([]AuditEntry, len(rec.Audit))
	copy(cp.Audit, rec.Audit)
	return &cp
}
