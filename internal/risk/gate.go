// Package risk admits or rejects candidate orders against an adaptive
// daily loss budget. The budget follows a descending ladder indexed by
// consecutive losing days, so drawdowns shrink the permitted risk before
// the next order is ever built.
package risk

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/eddiefleurent/zero-dte-bot/internal/config"
	"github.com/eddiefleurent/zero-dte-bot/internal/models"
	"github.com/eddiefleurent/zero-dte-bot/internal/storage"
	"github.com/google/uuid"
)

// WorstCaseEstimator produces the pessimistic net credit the gate sizes
// worst-case losses from.
type WorstCaseEstimator interface {
	WorstCaseFill(order *models.CandidateOrder, book models.QuoteBook) (float64, error)
}

// Decision is the gate's verdict for one candidate order.
type Decision struct {
	Approved            bool    `json:"approved"`
	Reason              string  `json:"reason,omitempty"`
	ProjectedLoss       float64 `json:"projected_loss"`
	WorstCaseOrderLoss  float64 `json:"worst_case_order_loss"`
	AllowedDailyLoss    float64 `json:"allowed_daily_loss"`
	RealizedLossToday   float64 `json:"realized_loss_today"`
	ConsecutiveLossDays int     `json:"consecutive_loss_days"`
}

// DayStatus is a read-only snapshot of one date's risk state.
type DayStatus struct {
	Date                string  `json:"date"`
	ConsecutiveLossDays int     `json:"consecutive_loss_days"`
	AllowedDailyLoss    float64 `json:"allowed_daily_loss"`
	RealizedLossToday   float64 `json:"realized_loss_today"`
	Finalized           bool    `json:"finalized"`
}

type dayState struct {
	date                string
	consecutiveLossDays int
	realizedLoss        float64
	realizedPnL         float64
	finalized           bool
	audit               []storage.AuditEntry
}

// Gate is the order admission control. All methods are goroutine-safe.
type Gate struct {
	mu        sync.Mutex
	ladder    []float64
	estimator WorstCaseEstimator
	store     storage.Interface
	logger    *log.Logger
	days      map[string]*dayState
}

// NewGate creates a risk gate. store may be nil for an in-memory-only
// gate; the ledger then lives only as long as the process.
func NewGate(cfg *config.Config, estimator WorstCaseEstimator, store storage.Interface, logger *log.Logger) *Gate {
	ladder := make([]float64, len(cfg.Risk.LossLadder))
	copy(ladder, cfg.Risk.LossLadder)
	return &Gate{
		ladder:    ladder,
		estimator: estimator,
		store:     store,
		logger:    logger,
		days:      make(map[string]*dayState),
	}
}

// ValidateOrder decides whether the order may execute on the given date.
// It is a pure read of the day's risk state: calling it any number of
// times never changes a later verdict. A failing or panicking estimator
// rejects the order rather than crashing the tick loop.
func (g *Gate) ValidateOrder(order *models.CandidateOrder, book models.QuoteBook,
	contracts int, date string) (decision Decision) {
	g.mu.Lock()
	defer g.mu.Unlock()

	day := g.dayLocked(date)
	allowed := g.allowedLocked(day)
	decision = Decision{
		AllowedDailyLoss:    allowed,
		RealizedLossToday:   day.realizedLoss,
		ConsecutiveLossDays: day.consecutiveLossDays,
	}

	defer func() {
		if r := recover(); r != nil {
			decision.Approved = false
			decision.Reason = fmt.Sprintf("worst-case estimator panicked: %v", r)
			g.logf("risk gate: %s", decision.Reason)
		}
	}()

	if order == nil || order.Structure == nil || contracts <= 0 {
		decision.Reason = "invalid order"
		return decision
	}

	worstCredit, err := g.estimator.WorstCaseFill(order, book)
	if err != nil {
		decision.Reason = fmt.Sprintf("worst-case fill unavailable: %v", err)
		return decision
	}

	worstLoss := order.Structure.MaxLoss(worstCredit, contracts)
	if order.Structure.Width() <= 0 {
		// A degenerate structure must never under-price risk: assume the
		// full notional of the largest strike is at stake.
		worstLoss = fullNotionalLoss(order, contracts)
	}
	decision.WorstCaseOrderLoss = worstLoss
	decision.ProjectedLoss = day.realizedLoss + worstLoss

	if decision.ProjectedLoss > allowed {
		decision.Reason = fmt.Sprintf("projected loss $%.2f exceeds allowed daily loss $%.2f (realized $%.2f, order worst case $%.2f)",
			decision.ProjectedLoss, allowed, day.realizedLoss, worstLoss)
		return decision
	}

	decision.Approved = true
	return decision
}

// RegisterOrderExecution books an executed order's loss reservation
// against the date and appends an audit entry stamped with the caller's
// execution time, keeping replayed ledgers identical. loss is typically
// the worst-case loss reserved at fill time, later trued up at settlement.
func (g *Gate) RegisterOrderExecution(orderID string, loss float64, date string, executedAt time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	day := g.dayLocked(date)
	if day.finalized {
		return fmt.Errorf("register execution: %w: %s", storage.ErrDayFinalized, date)
	}

	day.realizedLoss += loss
	if day.realizedLoss < 0 {
		day.realizedLoss = 0
	}
	day.audit = append(day.audit, storage.AuditEntry{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Loss:      loss,
		Timestamp: executedAt.UTC(),
	})

	g.persistLocked(day)
	return nil
}

// ProcessEndOfDay finalizes the date with its realized result and rolls
// the loss-day counter: a losing day steps it up (saturating at the
// ladder's end), a flat or winning day resets it to zero. Finalizing the
// same date twice is an error.
func (g *Gate) ProcessEndOfDay(date string, pnl float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	day := g.dayLocked(date)
	if day.finalized {
		return fmt.Errorf("end of day: %w: %s", storage.ErrDayFinalized, date)
	}

	if pnl < 0 {
		day.consecutiveLossDays++
		if max := len(g.ladder) - 1; day.consecutiveLossDays > max {
			day.consecutiveLossDays = max
		}
	} else {
		day.consecutiveLossDays = 0
	}
	day.realizedPnL = pnl
	day.finalized = true

	g.persistLocked(day)
	if g.store != nil {
		if err := g.store.RecordDailyPnL(date, pnl); err != nil {
			g.logf("risk gate: recording daily pnl for %s: %v", date, err)
		}
	}

	g.logf("risk gate: %s finalized pnl=%.2f loss_streak=%d next_budget=%.2f",
		date, pnl, day.consecutiveLossDays, g.ladderAt(day.consecutiveLossDays))
	return nil
}

// Status returns a snapshot of the date's risk state.
func (g *Gate) Status(date string) DayStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	day := g.dayLocked(date)
	return DayStatus{
		Date:                day.date,
		ConsecutiveLossDays: day.consecutiveLossDays,
		AllowedDailyLoss:    g.allowedLocked(day),
		RealizedLossToday:   day.realizedLoss,
		Finalized:           day.finalized,
	}
}

// AllowedDailyLoss returns the date's loss budget.
func (g *Gate) AllowedDailyLoss(date string) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.allowedLocked(g.dayLocked(date))
}

// dayLocked returns the date's state, creating it on first touch. A new
// day inherits its loss-day counter from the most recent finalized day
// before it, preferring the persisted ledger over in-memory state.
func (g *Gate) dayLocked(date string) *dayState {
	if day, ok := g.days[date]; ok {
		return day
	}

	day := &dayState{date: date}
	if g.store != nil {
		if rec, ok := g.store.GetRiskDay(date); ok {
			day.consecutiveLossDays = rec.ConsecutiveLossDays
			day.realizedLoss = rec.RealizedLossToday
			day.realizedPnL = rec.RealizedPnL
			day.finalized = rec.Finalized
			day.audit = rec.Audit
			g.days[date] = day
			return day
		}
		if prev, ok := g.store.LatestFinalizedDay(date); ok {
			day.consecutiveLossDays = prev.ConsecutiveLossDays
			g.days[date] = day
			return day
		}
	}

	// No ledger: fall back to the most recent finalized in-memory day.
	var latest *dayState
	for d, st := range g.days {
		if st.finalized && d < date && (latest == nil || d > latest.date) {
			latest = st
		}
	}
	if latest != nil {
		day.consecutiveLossDays = latest.consecutiveLossDays
	}
	g.days[date] = day
	return day
}

// fullNotionalLoss is the most conservative loss bound available: the
// largest strike's full notional across the order size.
func fullNotionalLoss(order *models.CandidateOrder, contracts int) float64 {
	maxStrike := 0.0
	for _, leg := range order.Legs {
		if leg.Strike > maxStrike {
			maxStrike = leg.Strike
		}
	}
	return maxStrike * 100 * float64(contracts)
}

func (g *Gate) allowedLocked(day *dayState) float64 {
	return g.ladderAt(day.consecutiveLossDays)
}

func (g *Gate) ladderAt(idx int) float64 {
	if len(g.ladder) == 0 {
		return 0
	}
	if idx >= len(g.ladder) {
		idx = len(g.ladder) - 1
	}
	return g.ladder[idx]
}

// persistLocked mirrors the day into the ledger. Persistence failures are
// logged, not fatal: the in-memory state remains authoritative for the run.
func (g *Gate) persistLocked(day *dayState) {
	if g.store == nil {
		return
	}
	rec := &storage.RiskDayRecord{
		Date:                day.date,
		ConsecutiveLossDays: day.consecutiveLossDays,
		RealizedLossToday:   day.realizedLoss,
		RealizedPnL:         day.realizedPnL,
		Finalized:           day.finalized,
		Audit:               day.audit,
	}
	if err := g.store.SetRiskDay(rec); err != nil {
		g.logf("risk gate: persisting %s: %v", day.date, err)
	}
}

func (g *Gate) logf(format string, args ...any) {
	if g.logger != nil {
		g.logger.Printf(format, args...)
	}
}
