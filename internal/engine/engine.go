// Package engine wires the decision pipeline together: classify the
// regime, build a candidate spread, gate it against the daily loss
// budget, simulate the fill, and settle positions at the close.
package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/eddiefleurent/zero-dte-bot/internal/config"
	"github.com/eddiefleurent/zero-dte-bot/internal/execution"
	"github.com/eddiefleurent/zero-dte-bot/internal/marketdata"
	"github.com/eddiefleurent/zero-dte-bot/internal/metrics"
	"github.com/eddiefleurent/zero-dte-bot/internal/models"
	"github.com/eddiefleurent/zero-dte-bot/internal/regime"
	"github.com/eddiefleurent/zero-dte-bot/internal/risk"
	"github.com/eddiefleurent/zero-dte-bot/internal/spread"
	"github.com/eddiefleurent/zero-dte-bot/internal/storage"
)

const sessionOpenMinutes = 9*60 + 30

// TickResult reports what one evaluation tick did. NoData distinguishes
// a closed market from ticks that evaluated and stood aside.
type TickResult struct {
	Timestamp time.Time              `json:"timestamp"`
	Signal    regime.Signal          `json:"signal"`
	Order     *models.CandidateOrder `json:"order,omitempty"`
	Decision  *risk.Decision         `json:"decision,omitempty"`
	Fill      *models.FillResult     `json:"fill,omitempty"`
	Cost      *models.CostBreakdown  `json:"cost,omitempty"`
	Skipped   string                 `json:"skipped,omitempty"`
	NoData    bool                   `json:"no_data,omitempty"`
}

// openPosition is a filled order awaiting settlement.
type openPosition struct {
	order     *models.CandidateOrder
	fill      *models.FillResult
	cost      models.CostBreakdown
	contracts int
}

// Engine drives the backtest tick loop.
type Engine struct {
	cfg        *config.Config
	provider   marketdata.Provider
	classifier *regime.Classifier
	builder    *spread.Builder
	estimator  *execution.Estimator
	gate       *risk.Gate
	store      storage.Interface
	logger     *log.Logger
	rng        *rand.Rand
	loc        *time.Location
	events     []time.Time
	open       []openPosition
}

// NewEngine assembles the pipeline from the loaded configuration. rng
// seeds all fill randomness and must not be shared with other components.
func NewEngine(cfg *config.Config, provider marketdata.Provider, gate *risk.Gate,
	store storage.Interface, logger *log.Logger, rng *rand.Rand) *Engine {
	return &Engine{
		cfg:        cfg,
		provider:   provider,
		classifier: regime.NewClassifier(cfg),
		builder:    spread.NewBuilder(cfg, logger),
		estimator:  execution.NewEstimator(cfg),
		gate:       gate,
		store:      store,
		logger:     logger,
		rng:        rng,
		loc:        cfg.RegimeLocation(),
	}
}

// SetEvents registers scheduled macro-event timestamps. A tick inside the
// configured pre-event window of any of them runs with the event penalty
// and wider assumed spreads.
func (e *Engine) SetEvents(events []time.Time) {
	e.events = append([]time.Time(nil), events...)
}

// Run replays every trading day in the configured window, ticking at the
// configured interval and settling at each close.
func (e *Engine) Run(ctx context.Context) error {
	start, err := time.ParseInLocation("2006-01-02", e.cfg.Backtest.StartDate, e.loc)
	if err != nil {
		return fmt.Errorf("parsing start date: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02", e.cfg.Backtest.EndDate, e.loc)
	if err != nil {
		return fmt.Errorf("parsing end date: %w", err)
	}

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := e.runDay(ctx, day); err != nil {
			return err
		}
	}

	stats := e.store.GetStatistics()
	e.logger.Printf("backtest complete: orders=%d approved=%d rejected=%d fills=%d pnl=%.2f",
		stats.TotalOrders, stats.ApprovedOrders, stats.RejectedOrders, stats.FilledOrders, stats.TotalPnL)
	return nil
}

func (e *Engine) runDay(ctx context.Context, day time.Time) error {
	open := e.sessionOpen(day)
	close := e.sessionEnd(day)
	interval := e.cfg.TickInterval()

	hadData := false
	for ts := open.Add(interval); ts.Before(close); ts = ts.Add(interval) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		res := e.RunTick(ctx, ts)
		if !res.NoData {
			hadData = true
		}
	}

	if !hadData {
		// Holiday or weekend: nothing traded, nothing to finalize.
		return nil
	}
	return e.SettleDay(day)
}

// RunTick evaluates one decision tick. Unapproved or abandoned ticks
// leave the risk ledger untouched.
func (e *Engine) RunTick(ctx context.Context, ts time.Time) TickResult {
	if err := ctx.Err(); err != nil {
		return TickResult{Timestamp: ts, Skipped: "cancelled"}
	}
	metrics.TicksTotal.Inc()
	result := TickResult{Timestamp: ts}

	bars, err := e.provider.GetBars(e.sessionOpen(ts), ts)
	if err != nil {
		result.Skipped = "no market data"
		result.NoData = true
		return result
	}

	state, err := e.marketState(ts)
	if err != nil {
		result.Skipped = "no market data"
		result.NoData = true
		return result
	}

	result.Signal = e.classifier.Classify(ts, bars, state.EventActive)
	if result.Signal.Bias == models.BiasNone {
		result.Skipped = "stand aside"
		return result
	}

	order := e.builder.TryBuild(ts, result.Signal.Bias, e.provider, state)
	if order == nil {
		result.Skipped = "no viable spread"
		return result
	}
	result.Order = order
	metrics.OrdersBuiltTotal.WithLabelValues(order.Structure.Name()).Inc()

	quotes, err := e.provider.GetQuotesAt(ts)
	if err != nil {
		result.Skipped = "no market data"
		result.NoData = true
		return result
	}
	book := models.NewQuoteBook(quotes)

	date := ts.In(e.loc).Format("2006-01-02")
	contracts := e.cfg.Backtest.Contracts

	decision := e.gate.ValidateOrder(order, book, contracts, date)
	result.Decision = &decision
	e.store.RecordOrderOutcome(decision.Approved)
	if !decision.Approved {
		metrics.OrdersRejectedTotal.Inc()
		e.logger.Printf("tick %s: order %s rejected: %s", ts.Format("15:04"), order.ID, decision.Reason)
		e.updateRiskGauges(date)
		return result
	}
	metrics.OrdersApprovedTotal.Inc()

	cost, err := e.estimator.EstimateCost(order, book, contracts, state)
	if err != nil {
		e.logger.Printf("tick %s: abandoning order %s: cost estimate: %v", ts.Format("15:04"), order.ID, err)
		result.Skipped = "cost estimate failed"
		return result
	}
	result.Cost = &cost

	fill, err := e.estimator.SimulateFill(order, book, contracts, state, e.rng)
	if err != nil {
		e.logger.Printf("tick %s: abandoning order %s: %v", ts.Format("15:04"), order.ID, err)
		result.Skipped = "fill failed"
		return result
	}
	result.Fill = fill

	// Reserve the worst case against today's budget; settlement trues it
	// up when the position expires.
	worstCredit, err := e.estimator.WorstCaseFill(order, book)
	if err != nil {
		worstCredit = 0
	}
	reserve := order.Structure.MaxLoss(worstCredit, contracts)
	if err := e.gate.RegisterOrderExecution(order.ID, reserve, date, ts); err != nil {
		e.logger.Printf("tick %s: registering order %s: %v", ts.Format("15:04"), order.ID, err)
	}

	if err := e.store.RecordFill(fill); err != nil {
		e.logger.Printf("tick %s: recording fill for %s: %v", ts.Format("15:04"), order.ID, err)
	}
	metrics.FillsTotal.Inc()
	e.open = append(e.open, openPosition{order: order, fill: fill, cost: cost, contracts: contracts})

	e.logger.Printf("tick %s: filled %s %s credit=%.2f worst_case=%.2f est_cost=%.2f",
		ts.Format("15:04"), order.Structure.Name(), order.ID, fill.NetCredit(), reserve, cost.Total)
	e.updateRiskGauges(date)
	return result
}

// SettleDay expires every open position at the day's closing spot,
// finalizes the risk ledger, and resets for the next session.
func (e *Engine) SettleDay(day time.Time) error {
	close := e.sessionEnd(day)
	date := day.In(e.loc).Format("2006-01-02")

	spot, err := e.provider.GetSpot(close.Add(-time.Minute))
	if err != nil {
		return fmt.Errorf("settling %s: closing spot: %w", date, err)
	}

	pnl := 0.0
	for _, pos := range e.open {
		posPnL := e.settlePosition(pos, spot)
		pnl += posPnL
		e.logger.Printf("settle %s: %s pnl=%.2f (spot %.2f)", date, pos.order.ID, posPnL, spot)
	}
	e.open = e.open[:0]

	if err := e.gate.ProcessEndOfDay(date, pnl); err != nil {
		return fmt.Errorf("settling %s: %w", date, err)
	}
	metrics.DailyPnL.Set(pnl)
	e.updateRiskGauges(day.AddDate(0, 0, 1).Format("2006-01-02"))
	return nil
}

// settlePosition computes a position's realized dollar result at expiry:
// credit collected plus the signed intrinsic payoff of each leg, less the
// fee-side costs. Spread crossing and slippage are already embedded in
// the child-fill prices, so only the components the fills cannot carry
// (commission, assignment risk, liquidity, financing) are charged here.
func (e *Engine) settlePosition(pos openPosition, spot float64) float64 {
	perShare := pos.fill.NetCredit()
	for _, leg := range pos.order.Legs {
		perShare += float64(leg.Quantity) * intrinsic(leg, spot)
	}
	return perShare*100*float64(pos.contracts) - carryCost(pos.cost)
}

// carryCost is the part of a cost estimate not already priced into the
// simulated fills.
func carryCost(cost models.CostBreakdown) float64 {
	return cost.Commission + cost.AssignmentRisk + cost.LiquidityAdjustment + cost.Financing
}

func intrinsic(leg models.Leg, spot float64) float64 {
	if leg.Right == models.RightPut {
		return math.Max(0, leg.Strike-spot)
	}
	return math.Max(0, spot-leg.Strike)
}

// marketState assembles the friction context for a tick.
func (e *Engine) marketState(ts time.Time) (models.MarketState, error) {
	spot, err := e.provider.GetSpot(ts)
	if err != nil {
		return models.MarketState{}, err
	}
	volIndex, err := e.provider.GetVolIndex(ts)
	if err != nil {
		return models.MarketState{}, err
	}

	local := ts.In(e.loc)
	minutesSinceOpen := float64(local.Hour()*60+local.Minute()) - sessionOpenMinutes
	daysToExpiry := e.sessionEnd(ts).Sub(ts).Hours() / 24
	if daysToExpiry < 0 {
		daysToExpiry = 0
	}

	return models.MarketState{
		Timestamp:    ts,
		Spot:         spot,
		VolIndex:     volIndex,
		VolBucket:    models.VolBucketFor(volIndex),
		TimeOfDay:    models.TimeOfDayBucketFor(minutesSinceOpen),
		EventActive:  e.eventActive(ts),
		DaysToExpiry: daysToExpiry,
	}, nil
}

// eventActive reports whether ts is inside the pre-event window of any
// registered event.
func (e *Engine) eventActive(ts time.Time) bool {
	window := e.cfg.PreEventWindow()
	for _, ev := range e.events {
		if !ts.After(ev) && ts.After(ev.Add(-window)) {
			return true
		}
	}
	return false
}

func (e *Engine) updateRiskGauges(date string) {
	st := e.gate.Status(date)
	metrics.ConsecutiveLossDays.Set(float64(st.ConsecutiveLossDays))
	metrics.AllowedDailyLoss.Set(st.AllowedDailyLoss)
}

func (e *Engine) sessionOpen(ts time.Time) time.Time {
	local := ts.In(e.loc)
	return time.Date(local.Year(), local.Month(), local.Day(),
		sessionOpenMinutes/60, sessionOpenMinutes%60, 0, 0, e.loc)
}

func (e *Engine) sessionEnd(ts time.Time) time.Time {
	local := ts.In(e.loc)
	end, err := time.ParseInLocation("15:04", e.cfg.Regime.SessionEnd, e.loc)
	if err != nil {
		return time.Date(local.Year(), local.Month(), local.Day(), 16, 0, 0, 0, e.loc)
	}
	return time.Date(local.Year(), local.Month(), local.Day(),
		end.Hour(), end.Minute(), 0, 0, e.loc)
}
