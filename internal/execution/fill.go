package execution

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/eddiefleurent/zero-dte-bot/internal/models"
	"github.com/eddiefleurent/zero-dte-bot/internal/util"
)

// SimulateFill executes the order leg by leg against the snapshot,
// producing child fills with randomized latency and timing slippage. All
// randomness comes from the caller's rng, so a seeded source replays the
// identical fill tape.
func (e *Estimator) SimulateFill(order *models.CandidateOrder, book models.QuoteBook,
	contracts int, ms models.MarketState, rng *rand.Rand) (*models.FillResult, error) {
	if order == nil || contracts <= 0 {
		return nil, fmt.Errorf("simulate fill: invalid order or size")
	}
	if rng == nil {
		return nil, fmt.Errorf("simulate fill: rng is required")
	}

	s := e.cfg.Slippage
	widening := ms.SpreadWideningMultiplier()

	result := &models.FillResult{
		OrderID:   order.ID,
		Fills:     make([]models.ChildFill, 0, len(order.Legs)),
		Timestamp: order.Timestamp,
	}

	for i, leg := range order.Legs {
		q, ok := book.Lookup(leg)
		if !ok {
			return nil, fmt.Errorf("%w: leg %d %s %.2f", ErrMissingLegQuote, i, leg.Right, leg.Strike)
		}

		slip := models.SlippageBreakdown{
			MarketImpact: s.ImpactCoeff * math.Pow(float64(contracts), s.SizeExponent),
			Timing:       s.TimingCoeff * ms.VolIndex / 100 * rng.Float64(),
		}
		if s.VolRegimeThreshold > 0 && ms.VolIndex >= s.VolRegimeThreshold {
			slip.VolRegime = s.VolRegimeExtra
		}
		if mid := q.Mid(); mid > 0 && s.WideSpreadRatio > 0 && q.Spread()/mid >= s.WideSpreadRatio {
			slip.Liquidity = s.WideSpreadExtra
		}

		// Each leg crosses part of its spread plus the modeled slippage,
		// always adverse to the leg's side.
		adverse := q.Spread()/2*e.crossFraction()*widening + slip.Total()
		price := q.Mid() + adverse
		if leg.IsShort() {
			price = math.Max(0, q.Mid()-adverse)
		}
		price = util.RoundToTick(price, e.tickSize)

		latency := e.fillLatency(rng)
		result.Fills = append(result.Fills, models.ChildFill{
			LegIndex:  i,
			Price:     price,
			Quantity:  leg.Quantity * contracts,
			Timestamp: order.Timestamp.Add(latency),
			Latency:   latency,
			Slippage:  slip,
		})
		result.TotalExecutionCost += adverse * sharesPerContract * float64(contracts)
	}

	result.AvgPrice = result.NetCredit()
	return result, nil
}

// fillLatency draws a per-leg execution delay around the configured mean.
func (e *Estimator) fillLatency(rng *rand.Rand) time.Duration {
	s := e.cfg.Slippage
	ms := float64(s.LatencyMeanMs) + rng.NormFloat64()*float64(s.LatencyJitterMs)
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}
