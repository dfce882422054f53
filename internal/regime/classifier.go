// Package regime scores the current market-data window into a bounded
// integer and maps it to a strategy bias: range-bound, directional, or
// stand aside.
package regime

import (
	"math"
	"time"

	"github.com/eddiefleurent/zero-dte-bot/internal/config"
	"github.com/eddiefleurent/zero-dte-bot/internal/models"
)

// Score component weights. The classification thresholds below assume
// these exact magnitudes; they are not configuration.
const (
	scoreBreakout    = 2
	scorePersistHalf = 1
	scorePersistMost = 2
	scoreAlignment   = 1
	scoreCalm        = 2
	scoreExpansion   = 2
	penaltyEvent     = -2
	penaltyClose     = -3

	persistHalfFrac = 0.50
	persistMostFrac = 0.70
)

// Signal is the classifier's output for one evaluation tick.
type Signal struct {
	Score        int         `json:"score"`
	Bias         models.Bias `json:"bias"`
	BreakoutUp   bool        `json:"breakout_up"`
	BreakoutDown bool        `json:"breakout_down"`
	PersistUp    bool        `json:"persist_up"`
	PersistFrac  float64     `json:"persist_frac"`
}

// Classifier turns bar windows into trade-bias signals.
type Classifier struct {
	cfg         config.RegimeConfig
	closeWindow time.Duration
	loc         *time.Location
}

// NewClassifier creates a classifier from the loaded configuration.
func NewClassifier(cfg *config.Config) *Classifier {
	return &Classifier{
		cfg:         cfg.Regime,
		closeWindow: cfg.CloseWindow(),
		loc:         cfg.RegimeLocation(),
	}
}

// Classify scores the session so far. bars must be intraday bars for the
// current session, oldest first; eventActive means now is inside the
// configured pre-event window. Too little data to score is an expected
// condition and yields a stand-aside signal.
func (c *Classifier) Classify(now time.Time, bars []models.Bar, eventActive bool) Signal {
	minBars := c.cfg.RecentRangeBars
	if c.cfg.ATRLookbackBars+1 > minBars {
		minBars = c.cfg.ATRLookbackBars + 1
	}
	if len(bars) < minBars {
		return Signal{Bias: models.BiasNone}
	}

	sig := Signal{}

	orHigh, orLow, ok := c.openingRange(bars)
	lastClose := bars[len(bars)-1].Close
	if ok {
		if lastClose > orHigh {
			sig.Score += scoreBreakout
			sig.BreakoutUp = true
		} else if lastClose < orLow {
			sig.Score += scoreBreakout
			sig.BreakoutDown = true
		}
	}

	sig.PersistFrac, sig.PersistUp = c.vwapPersistence(bars)
	switch {
	case sig.PersistFrac >= persistMostFrac:
		sig.Score += scorePersistMost
	case sig.PersistFrac >= persistHalfFrac:
		sig.Score += scorePersistHalf
	}

	if sig.BreakoutUp || sig.BreakoutDown {
		slope := closeSlope(bars, c.cfg.VWAPLookbackBars)
		if (sig.BreakoutUp && slope > 0) || (sig.BreakoutDown && slope < 0) {
			sig.Score += scoreAlignment
		}
	}

	atr := averageTrueRange(bars, c.cfg.ATRLookbackBars)
	recent := recentRange(bars, c.cfg.RecentRangeBars)
	if atr > 0 {
		if recent <= c.cfg.CalmATRRatio*atr {
			sig.Score += scoreCalm
		} else if recent >= c.cfg.ExpansionATRRatio*atr {
			sig.Score += scoreExpansion
		}
	}

	if eventActive {
		sig.Score += penaltyEvent
	}
	if c.inCloseWindow(now) {
		sig.Score += penaltyClose
	}

	sig.Bias = c.classify(sig)
	return sig
}

func (c *Classifier) classify(sig Signal) models.Bias {
	switch {
	case sig.Score <= -1:
		return models.BiasNone
	case sig.Score <= 1:
		return models.BiasRangeBound
	case sig.BreakoutUp || (!sig.BreakoutDown && sig.PersistUp):
		return models.BiasBullish
	default:
		return models.BiasBearish
	}
}

// openingRange returns the high/low of the first OpeningRangeMinutes of
// the session covered by bars.
func (c *Classifier) openingRange(bars []models.Bar) (high, low float64, ok bool) {
	cutoff := bars[0].Timestamp.Add(time.Duration(c.cfg.OpeningRangeMinutes) * time.Minute)
	high, low = math.Inf(-1), math.Inf(1)
	n := 0
	for _, b := range bars {
		if !b.Timestamp.Before(cutoff) {
			break
		}
		high = math.Max(high, b.High)
		low = math.Min(low, b.Low)
		n++
	}
	// The range only means something once the session has moved past it.
	return high, low, n > 0 && n < len(bars)
}

// vwapPersistence returns the fraction of recent bars closing on the
// dominant side of the session VWAP, and whether that side is above.
func (c *Classifier) vwapPersistence(bars []models.Bar) (frac float64, up bool) {
	var cumPV, cumV float64
	vwaps := make([]float64, len(bars))
	for i, b := range bars {
		v := float64(b.Volume)
		cumPV += b.TypicalPrice() * v
		cumV += v
		if cumV > 0 {
			vwaps[i] = cumPV / cumV
		}
	}

	start := len(bars) - c.cfg.VWAPLookbackBars
	if start < 0 {
		start = 0
	}
	above, below := 0, 0
	for i := start; i < len(bars); i++ {
		if bars[i].Close > vwaps[i] {
			above++
		} else if bars[i].Close < vwaps[i] {
			below++
		}
	}
	total := len(bars) - start
	if total == 0 {
		return 0, false
	}
	if above >= below {
		return float64(above) / float64(total), true
	}
	return float64(below) / float64(total), false
}

// closeSlope is the least-squares slope of the last n closes.
func closeSlope(bars []models.Bar, n int) float64 {
	if n > len(bars) {
		n = len(bars)
	}
	if n < 2 {
		return 0
	}
	window := bars[len(bars)-n:]

	var sumX, sumY, sumXY, sumXX float64
	for i, b := range window {
		x := float64(i)
		sumX += x
		sumY += b.Close
		sumXY += x * b.Close
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (fn*sumXY - sumX*sumY) / denom
}

// averageTrueRange is the classic ATR over the last n bars.
func averageTrueRange(bars []models.Bar, n int) float64 {
	if n+1 > len(bars) {
		n = len(bars) - 1
	}
	if n <= 0 {
		return 0
	}
	var sum float64
	for i := len(bars) - n; i < len(bars); i++ {
		prevClose := bars[i-1].Close
		tr := math.Max(bars[i].High-bars[i].Low,
			math.Max(math.Abs(bars[i].High-prevClose), math.Abs(bars[i].Low-prevClose)))
		sum += tr
	}
	return sum / float64(n)
}

// recentRange is the high-low span of the last n bars.
func recentRange(bars []models.Bar, n int) float64 {
	if n > len(bars) {
		n = len(bars)
	}
	window := bars[len(bars)-n:]
	high, low := math.Inf(-1), math.Inf(1)
	for _, b := range window {
		high = math.Max(high, b.High)
		low = math.Min(low, b.Low)
	}
	return high - low
}

// inCloseWindow reports whether now falls inside the configured
// no-new-risk window before the session end.
func (c *Classifier) inCloseWindow(now time.Time) bool {
	local := now.In(c.loc)
	end, err := time.ParseInLocation("15:04", c.cfg.SessionEnd, c.loc)
	if err != nil {
		return false
	}
	sessionEnd := time.Date(local.Year(), local.Month(), local.Day(),
		end.Hour(), end.Minute(), 0, 0, c.loc)
	return !local.Before(sessionEnd.Add(-c.closeWindow)) && local.Before(sessionEnd)
}
