// Package spread constructs credit-spread candidate orders from a
// decision bias and an option chain snapshot.
package spread

import (
	"log"
	"math"
	"sort"
	"time"

	"github.com/eddiefleurent/zero-dte-bot/internal/config"
	"github.com/eddiefleurent/zero-dte-bot/internal/marketdata"
	"github.com/eddiefleurent/zero-dte-bot/internal/models"
	"github.com/eddiefleurent/zero-dte-bot/internal/pricing"
	"github.com/google/uuid"
)

// Builder selects spread legs meeting the configured delta, width, and
// credit constraints. It is pure: no side effects, and missing or bad
// market data yields a nil order, never an error.
type Builder struct {
	cfg      config.StrategyConfig
	rate     float64
	divYield float64
	logger   *log.Logger
}

// NewBuilder creates a spread builder from the loaded configuration.
func NewBuilder(cfg *config.Config, logger *log.Logger) *Builder {
	return &Builder{
		cfg:      cfg.Strategy,
		rate:     cfg.Backtest.RiskFreeRate,
		divYield: cfg.Backtest.DividendYield,
		logger:   logger,
	}
}

// wing is one selected credit-spread side before assembly.
type wing struct {
	shortStrike float64
	longStrike  float64
}

// TryBuild attempts to construct a candidate order for the decision at
// the timestamp. A nil return means "no trade": absent quotes, bad spot,
// or no strikes satisfying the constraints are all expected conditions.
func (b *Builder) TryBuild(ts time.Time, decision models.Bias, provider marketdata.Provider,
	ms models.MarketState) *models.CandidateOrder {
	if decision == models.BiasNone || !decision.Valid() {
		return nil
	}

	quotes, err := provider.GetQuotesAt(ts)
	if err != nil || len(quotes) == 0 {
		return nil
	}
	spot, err := provider.GetSpot(ts)
	if err != nil || spot <= 0 {
		return nil
	}

	book := models.NewQuoteBook(quotes)
	vol := ms.VolIndex / 100
	tte := ms.DaysToExpiry / 365
	expiry := expiryOf(quotes)

	var structure models.SpreadStructure
	switch decision {
	case models.BiasBullish:
		w := b.buildWing(models.RightPut, b.cfg.DirectionalBand, quotes, book, spot, vol, tte)
		if w == nil {
			return nil
		}
		structure = models.PutCreditSpread{ShortStrike: w.shortStrike, LongStrike: w.longStrike, Expiry: expiry}
	case models.BiasBearish:
		w := b.buildWing(models.RightCall, b.cfg.DirectionalBand, quotes, book, spot, vol, tte)
		if w == nil {
			return nil
		}
		structure = models.CallCreditSpread{ShortStrike: w.shortStrike, LongStrike: w.longStrike, Expiry: expiry}
	case models.BiasRangeBound:
		put := b.buildWing(models.RightPut, b.cfg.RangeBoundBand, quotes, book, spot, vol, tte)
		call := b.buildWing(models.RightCall, b.cfg.RangeBoundBand, quotes, book, spot, vol, tte)
		if put == nil || call == nil {
			return nil
		}
		structure = models.IronCondor{
			Put:  models.PutCreditSpread{ShortStrike: put.shortStrike, LongStrike: put.longStrike, Expiry: expiry},
			Call: models.CallCreditSpread{ShortStrike: call.shortStrike, LongStrike: call.longStrike, Expiry: expiry},
		}
	default:
		return nil
	}

	order := &models.CandidateOrder{
		ID:        uuid.NewString(),
		Timestamp: ts,
		Structure: structure,
		Legs:      structure.BuildLegs(),
		NetCredit: b.netCredit(structure, book),
		Width:     structure.Width(),
	}

	if err := order.Validate(b.cfg.MinCreditPerWidth); err != nil {
		// Constraint slipped through wing selection; treat as no trade.
		if b.logger != nil {
			b.logger.Printf("discarding candidate: %v", err)
		}
		return nil
	}
	return order
}

// buildWing selects the short and long strikes for one credit-spread
// side, or nil when no strike pair satisfies the constraints.
func (b *Builder) buildWing(right models.OptionRight, band config.DeltaBand,
	quotes []models.Quote, book models.QuoteBook, spot, vol, tte float64) *wing {
	strikes := strikesFor(quotes, right)
	if len(strikes) < 2 {
		return nil
	}
	step := strikeStep(strikes)
	if step <= 0 {
		return nil
	}

	shortStrike, ok := b.selectShortStrike(strikes, right, band, spot, vol, tte)
	if !ok {
		return nil
	}

	shortQuote, ok := lookupStrike(book, quotes, right, shortStrike)
	if !ok {
		return nil
	}
	slip := float64(b.cfg.EntrySlippageTicks) * b.cfg.TickSize

	// Prefer the narrowest width that still clears the credit floor. The
	// long strike is always at least one step away, so it can never
	// coincide with the short strike.
	minWidth := math.Max(b.cfg.MinWidth, step)
	for width := minWidth; width <= b.cfg.MaxWidth+1e-9; width += step {
		longStrike := shortStrike - width
		if right == models.RightCall {
			longStrike = shortStrike + width
		}
		longQuote, ok := lookupStrike(book, quotes, right, longStrike)
		if !ok {
			continue
		}
		credit := shortQuote.Mid() - longQuote.Mid() - slip
		if credit/width >= b.cfg.MinCreditPerWidth {
			return &wing{shortStrike: shortStrike, longStrike: longStrike}
		}
	}
	return nil
}

// selectShortStrike picks the OTM strike whose pricer delta is inside the
// band, breaking ties deterministically: nearest |delta| to the band
// midpoint wins; at equal distance, puts take the lower strike and calls
// the higher, i.e. the further-OTM one.
func (b *Builder) selectShortStrike(strikes []float64, right models.OptionRight,
	band config.DeltaBand, spot, vol, tte float64) (float64, bool) {
	target := band.Midpoint()
	best, bestDiff := 0.0, math.MaxFloat64
	found := false

	for _, strike := range strikes {
		if right == models.RightPut && strike >= spot {
			continue
		}
		if right == models.RightCall && strike <= spot {
			continue
		}

		absDelta := math.Abs(pricing.Delta(pricing.Inputs{
			Spot:          spot,
			Strike:        strike,
			Rate:          b.rate,
			DividendYield: b.divYield,
			Vol:           vol,
			TimeToExpiry:  tte,
		}, right))
		if absDelta < band.Min || absDelta > band.Max {
			continue
		}

		diff := math.Abs(absDelta - target)
		better := diff < bestDiff-1e-12
		tied := math.Abs(diff-bestDiff) <= 1e-12
		furtherOTM := (right == models.RightPut && strike < best) ||
			(right == models.RightCall && strike > best)
		if better || (tied && furtherOTM) {
			best, bestDiff, found = strike, diff, true
		}
	}
	return best, found
}

// netCredit prices the assembled structure off quote midpoints, less the
// configured entry slippage per wing.
func (b *Builder) netCredit(structure models.SpreadStructure, book models.QuoteBook) float64 {
	slip := float64(b.cfg.EntrySlippageTicks) * b.cfg.TickSize
	credit := 0.0
	for _, leg := range structure.BuildLegs() {
		q, ok := book.Lookup(leg)
		if !ok {
			return 0
		}
		if leg.IsShort() {
			credit += q.Mid()
		} else {
			credit -= q.Mid()
		}
	}
	wings := 1.0
	if _, ok := structure.(models.IronCondor); ok {
		wings = 2.0
	}
	return credit - slip*wings
}

// strikesFor returns the sorted distinct strikes quoted for a right.
func strikesFor(quotes []models.Quote, right models.OptionRight) []float64 {
	seen := make(map[int64]bool)
	var strikes []float64
	for _, q := range quotes {
		if q.Right != right {
			continue
		}
		key := int64(math.Round(q.Strike * 1000))
		if !seen[key] {
			seen[key] = true
			strikes = append(strikes, q.Strike)
		}
	}
	sort.Float64s(strikes)
	return strikes
}

// strikeStep infers the chain's strike increment.
func strikeStep(strikes []float64) float64 {
	step := math.MaxFloat64
	for i := 1; i < len(strikes); i++ {
		if d := strikes[i] - strikes[i-1]; d > 1e-9 && d < step {
			step = d
		}
	}
	if step == math.MaxFloat64 {
		return 0
	}
	return step
}

// lookupStrike finds the quote for a strike/right, matching the chain's
// shared expiry.
func lookupStrike(book models.QuoteBook, quotes []models.Quote, right models.OptionRight,
	strike float64) (models.Quote, bool) {
	return book.Lookup(models.Leg{Expiry: expiryOf(quotes), Strike: strike, Right: right, Quantity: -1})
}

// expiryOf returns the chain's expiry. Snapshots in this system are
// single-expiry (0DTE), so the first quote's expiry is authoritative.
func expiryOf(quotes []models.Quote) time.Time {
	if len(quotes) == 0 {
		return time.Time{}
	}
	return quotes[0].Expiry
}
