package regime

import (
	"testing"
	"time"

	"github.com/eddiefleurent/zero-dte-bot/internal/config"
	"github.com/eddiefleurent/zero-dte-bot/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Regime: config.RegimeConfig{
			OpeningRangeMinutes: 30,
			VWAPLookbackBars:    20,
			ATRLookbackBars:     14,
			RecentRangeBars:     10,
			CalmATRRatio:        0.8,
			ExpansionATRRatio:   1.0,
			PreEventWindow:      "30m",
			CloseWindow:         "45m",
			SessionEnd:          "16:00",
			Timezone:            "UTC",
		},
	}
}

// trendBars builds minute bars whose closes move linearly by drift per bar.
func trendBars(n int, start, drift float64) []models.Bar {
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	prev := start
	for i := range bars {
		close := start + drift*float64(i)
		bars[i] = models.Bar{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      prev,
			High:      maxF(prev, close) + 0.02,
			Low:       minF(prev, close) - 0.02,
			Close:     close,
			Volume:    50000,
		}
		prev = close
	}
	return bars
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func TestClassifyInsufficientBarsStandsAside(t *testing.T) {
	c := NewClassifier(testConfig())
	sig := c.Classify(time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC), trendBars(5, 100, 0), false)
	if sig.Bias != models.BiasNone {
		t.Errorf("expected no-trade bias on thin data, got %s", sig.Bias)
	}
}

func TestClassifyUptrendBreakoutIsBullish(t *testing.T) {
	c := NewClassifier(testConfig())
	bars := trendBars(60, 100, 0.05)
	now := bars[len(bars)-1].Timestamp

	sig := c.Classify(now, bars, false)
	if !sig.BreakoutUp {
		t.Error("expected upside breakout")
	}
	if sig.Score < 2 {
		t.Errorf("expected directional score, got %d", sig.Score)
	}
	if sig.Bias != models.BiasBullish {
		t.Errorf("expected bullish bias, got %s", sig.Bias)
	}
}

func TestClassifyDowntrendBreakoutIsBearish(t *testing.T) {
	c := NewClassifier(testConfig())
	bars := trendBars(60, 100, -0.05)
	now := bars[len(bars)-1].Timestamp

	sig := c.Classify(now, bars, false)
	if !sig.BreakoutDown {
		t.Error("expected downside breakout")
	}
	if sig.Bias != models.BiasBearish {
		t.Errorf("expected bearish bias, got %s", sig.Bias)
	}
}

func TestClassifyEventPenaltyLowersScore(t *testing.T) {
	c := NewClassifier(testConfig())
	bars := trendBars(60, 100, 0.05)
	now := bars[len(bars)-1].Timestamp

	base := c.Classify(now, bars, false)
	withEvent := c.Classify(now, bars, true)
	if withEvent.Score != base.Score+penaltyEvent {
		t.Errorf("event penalty: score %d -> %d, expected delta %d", base.Score, withEvent.Score, penaltyEvent)
	}
}

func TestClassifyCloseWindowPenalty(t *testing.T) {
	c := NewClassifier(testConfig())
	bars := trendBars(60, 100, 0.05)

	// Shift the evaluation clock inside the 45-minute pre-close window.
	late := time.Date(2024, 3, 5, 15, 30, 0, 0, time.UTC)
	base := c.Classify(bars[len(bars)-1].Timestamp, bars, false)
	lateSig := c.Classify(late, bars, false)
	if lateSig.Score != base.Score+penaltyClose {
		t.Errorf("close penalty: score %d -> %d, expected delta %d", base.Score, lateSig.Score, penaltyClose)
	}
}

func TestClassifyScoreMapping(t *testing.T) {
	c := NewClassifier(testConfig())
	tests := []struct {
		name string
		sig  Signal
		want models.Bias
	}{
		{name: "negative score stands aside", sig: Signal{Score: -1}, want: models.BiasNone},
		{name: "zero score is range bound", sig: Signal{Score: 0}, want: models.BiasRangeBound},
		{name: "one is range bound", sig: Signal{Score: 1}, want: models.BiasRangeBound},
		{name: "two with upside breakout", sig: Signal{Score: 2, BreakoutUp: true}, want: models.BiasBullish},
		{name: "two with upward persistence", sig: Signal{Score: 2, PersistUp: true}, want: models.BiasBullish},
		{name: "two with downside breakout", sig: Signal{Score: 3, BreakoutDown: true}, want: models.BiasBearish},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.classify(tt.sig); got != tt.want {
				t.Errorf("classify(%+v) = %s, expected %s", tt.sig, got, tt.want)
			}
		})
	}
}

func TestVWAPPersistenceTracksDominantSide(t *testing.T) {
	c := NewClassifier(testConfig())
	frac, up := c.vwapPersistence(trendBars(60, 100, 0.05))
	if !up {
		t.Error("expected upward persistence in an uptrend")
	}
	if frac < persistMostFrac {
		t.Errorf("expected strong persistence, got %.2f", frac)
	}
}

func TestAverageTrueRangePositive(t *testing.T) {
	bars := trendBars(30, 100, 0.05)
	atr := averageTrueRange(bars, 14)
	if atr <= 0 {
		t.Errorf("ATR must be positive for moving bars, got %v", atr)
	}
}

func TestCloseSlopeSign(t *testing.T) {
	if closeSlope(trendBars(30, 100, 0.1), 20) <= 0 {
		t.Error("uptrend slope must be positive")
	}
	if closeSlope(trendBars(30, 100, -0.1), 20) >= 0 {
		t.Error("downtrend slope must be negative")
	}
}
