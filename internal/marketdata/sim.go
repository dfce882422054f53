package marketdata

import (
	"math"
	"math/rand"
	"time"

	"github.com/eddiefleurent/zero-dte-bot/internal/models"
	"github.com/eddiefleurent/zero-dte-bot/internal/pricing"
	"github.com/eddiefleurent/zero-dte-bot/internal/util"
)

// SimProvider is a deterministic simulated market-data source for
// backtests. Every value is a pure function of (seed, timestamp): the
// same seed replays the same tape regardless of call order, which keeps
// multi-day backtests reproducible.
type SimProvider struct {
	symbol    string
	seed      int64
	basePrice float64
	baseVol   float64 // vol-index level, e.g. 18
	loc       *time.Location
}

const (
	simStrikeStep   = 5.0
	simStrikeRange  = 0.15 // strikes span +/- 15% of spot
	simSessionOpen  = 9*60 + 30
	simSessionClose = 16 * 60
)

// Splitmix-style odd multipliers for seed mixing. The mix runs in uint64
// so the deliberate overflow wraps instead of breaking int64 arithmetic.
const (
	dayMixer uint64 = 0x9E3779B97F4A7C15
	volMixer uint64 = 0xBF58476D1CE4E5B9
)

// mixSource folds a counter and salt into the run seed, returning an odd
// deterministic source seed.
func mixSource(seed, n int64, mult uint64, salt int64) int64 {
	return int64((uint64(seed) ^ uint64(n)*mult ^ uint64(salt)) | 1)
}

// NewSimProvider creates a simulated provider for one underlying.
func NewSimProvider(symbol string, seed int64, basePrice, baseVol float64, loc *time.Location) *SimProvider {
	if loc == nil {
		loc = time.UTC
	}
	return &SimProvider{
		symbol:    symbol,
		seed:      seed,
		basePrice: basePrice,
		baseVol:   baseVol,
		loc:       loc,
	}
}

// rngFor derives an independent deterministic source for one minute of
// the tape, decorrelated from adjacent minutes by the mixer constant.
func (p *SimProvider) rngFor(ts time.Time, salt int64) *rand.Rand {
	minute := ts.Truncate(time.Minute).Unix()
	return rand.New(rand.NewSource(mixSource(p.seed, minute, dayMixer, salt))) // #nosec G404 -- deterministic sim, not crypto
}

// spotAt is the deterministic underlying path: a slow daily drift plus
// smooth intraday oscillation plus small per-minute noise.
func (p *SimProvider) spotAt(ts time.Time) float64 {
	local := ts.In(p.loc)
	day := local.Unix() / 86400

	dayRng := rand.New(rand.NewSource(mixSource(p.seed, day, dayMixer, 0))) // #nosec G404
	dailyDrift := (dayRng.Float64() - 0.5) * 0.02                           // +/-1% per day

	minutes := float64(local.Hour()*60+local.Minute()) - simSessionOpen
	intraday := 0.003 * math.Sin(minutes/390*2*math.Pi+dayRng.Float64()*math.Pi)
	noise := (p.rngFor(ts, 0x51).Float64() - 0.5) * 0.001

	return p.basePrice * (1 + dailyDrift + intraday + noise)
}

// volIndexAt returns the simulated volatility-index level at ts.
func (p *SimProvider) volIndexAt(ts time.Time) float64 {
	local := ts.In(p.loc)
	day := local.Unix() / 86400
	dayRng := rand.New(rand.NewSource(mixSource(p.seed, day, volMixer, 0))) // #nosec G404
	return math.Max(9, p.baseVol+(dayRng.Float64()-0.4)*10)
}

func (p *SimProvider) isTradingDay(ts time.Time) bool {
	wd := ts.In(p.loc).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// sessionCloseAt returns the 0DTE expiry timestamp for ts's date.
func (p *SimProvider) sessionCloseAt(ts time.Time) time.Time {
	local := ts.In(p.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), simSessionClose/60, 0, 0, 0, p.loc)
}

// GetSpot implements Provider.
func (p *SimProvider) GetSpot(ts time.Time) (float64, error) {
	if !p.isTradingDay(ts) {
		return 0, ErrNoData
	}
	return p.spotAt(ts), nil
}

// GetQuotesAt implements Provider. It synthesizes a same-day-expiry chain
// around the current spot, priced closed-form with an OTM vol skew and
// spreads that widen away from the money.
func (p *SimProvider) GetQuotesAt(ts time.Time) ([]models.Quote, error) {
	if !p.isTradingDay(ts) {
		return nil, ErrNoData
	}

	spot := p.spotAt(ts)
	expiry := p.sessionCloseAt(ts)
	tte := math.Max(expiry.Sub(ts).Hours()/24/365, 1e-5)
	baseVol := p.volIndexAt(ts) / 100

	lowStrike := math.Floor(spot*(1-simStrikeRange)/simStrikeStep) * simStrikeStep
	highStrike := math.Ceil(spot*(1+simStrikeRange)/simStrikeStep) * simStrikeStep

	var quotes []models.Quote
	for strike := lowStrike; strike <= highStrike; strike += simStrikeStep {
		strikeRng := p.rngFor(ts, int64(strike*1000))
		moneyness := math.Abs(strike-spot) / spot
		vol := baseVol * (1 + 2.5*moneyness) // crude OTM skew

		for _, right := range []models.OptionRight{models.RightPut, models.RightCall} {
			mid := pricing.Price(pricing.Inputs{
				Spot:         spot,
				Strike:       strike,
				Rate:         0.03,
				Vol:          vol,
				TimeToExpiry: tte,
			}, right)

			// Spreads start at a nickel ATM and widen with distance.
			halfSpread := (0.05 + moneyness*1.5 + strikeRng.Float64()*0.02) / 2
			bid := util.Clamp(mid-halfSpread, 0, mid)

			quotes = append(quotes, models.Quote{
				Symbol:       p.symbol,
				Expiry:       expiry,
				Strike:       strike,
				Right:        right,
				Bid:          bid,
				Ask:          mid + halfSpread,
				BidSize:      10 + strikeRng.Int63n(200),
				AskSize:      10 + strikeRng.Int63n(200),
				OpenInterest: 100 + strikeRng.Int63n(20000),
				Timestamp:    ts,
			})
		}
	}
	return quotes, nil
}

// GetBars implements Provider. Bars are minute-resolution and derived
// from the same deterministic path as GetSpot.
func (p *SimProvider) GetBars(from, to time.Time) ([]models.Bar, error) {
	if to.Before(from) {
		return nil, ErrNoData
	}

	var bars []models.Bar
	for ts := from.Truncate(time.Minute); !ts.After(to); ts = ts.Add(time.Minute) {
		if !p.isTradingDay(ts) {
			continue
		}
		local := ts.In(p.loc)
		minutes := local.Hour()*60 + local.Minute()
		if minutes < simSessionOpen || minutes >= simSessionClose {
			continue
		}

		rng := p.rngFor(ts, 0xB2)
		closePx := p.spotAt(ts)
		openPx := p.spotAt(ts.Add(-time.Minute))
		wiggle := closePx * 0.0004 * rng.Float64()

		bars = append(bars, models.Bar{
			Timestamp: ts,
			Open:      openPx,
			High:      math.Max(openPx, closePx) + wiggle,
			Low:       math.Min(openPx, closePx) - wiggle,
			Close:     closePx,
			Volume:    10000 + rng.Int63n(90000),
		})
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return bars, nil
}

// GetVolIndex implements Provider.
func (p *SimProvider) GetVolIndex(ts time.Time) (float64, error) {
	if !p.isTradingDay(ts) {
		return 0, ErrNoData
	}
	return p.volIndexAt(ts), nil
}

// SessionClose exposes the 0DTE expiry for ts's date.
func (p *SimProvider) SessionClose(ts time.Time) time.Time {
	return p.sessionCloseAt(ts)
}

// Ensure SimProvider implements Provider
var _ Provider = (*SimProvider)(nil)
