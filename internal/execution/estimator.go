// Package execution models trading costs and fills for spread orders:
// what an order should cost to execute, the worst fill the risk gate
// should assume, and simulated child fills for the backtest loop.
package execution

import (
	"errors"
	"fmt"
	"math"

	"github.com/eddiefleurent/zero-dte-bot/internal/config"
	"github.com/eddiefleurent/zero-dte-bot/internal/models"
	"github.com/eddiefleurent/zero-dte-bot/internal/util"
)

// ErrMissingLegQuote indicates an order leg with no quote in the chain
// snapshot. Cost estimation refuses to price around a hole in the book.
var ErrMissingLegQuote = errors.New("no quote for order leg")

const sharesPerContract = 100.0

// Estimator prices the full execution cost of spread orders against a
// chain snapshot. It is stateless and safe for concurrent use.
type Estimator struct {
	cfg      config.CostConfig
	riskCfg  config.RiskConfig
	tickSize float64
}

// NewEstimator creates a cost estimator from the loaded configuration.
func NewEstimator(cfg *config.Config) *Estimator {
	return &Estimator{
		cfg:      cfg.Costs,
		riskCfg:  cfg.Risk,
		tickSize: cfg.Strategy.TickSize,
	}
}

// EstimateCost computes the all-in dollar cost of executing the order at
// the given size under the given market conditions. Any leg without a
// quote is an error wrapping ErrMissingLegQuote, never a silent skip.
func (e *Estimator) EstimateCost(order *models.CandidateOrder, book models.QuoteBook,
	contracts int, ms models.MarketState) (models.CostBreakdown, error) {
	if order == nil || contracts <= 0 {
		return models.CostBreakdown{}, fmt.Errorf("estimate cost: invalid order or size")
	}

	shares := float64(contracts) * sharesPerContract
	widening := ms.SpreadWideningMultiplier()
	var bd models.CostBreakdown

	for i, leg := range order.Legs {
		q, ok := book.Lookup(leg)
		if !ok {
			return models.CostBreakdown{}, fmt.Errorf("%w: leg %d %s %.2f", ErrMissingLegQuote, i, leg.Right, leg.Strike)
		}

		bd.SpreadCrossing += q.Spread() * e.crossFraction() * widening * e.moneynessMultiplier(leg.Strike, ms.Spot) * shares
		bd.Slippage += e.legSlippage(q, contracts, ms) * shares
		if leg.IsShort() {
			bd.AssignmentRisk += e.assignmentRisk(leg, ms.Spot, contracts)
		}
		bd.LiquidityAdjustment += e.liquidityPenalty(q, contracts)
	}

	bd.Commission = e.commission(contracts, len(order.Legs))
	bd.Financing = e.financing(order, contracts)

	bd.Total = bd.SpreadCrossing + bd.Commission + bd.Slippage +
		bd.AssignmentRisk + bd.LiquidityAdjustment + bd.Financing
	if notional := ms.Spot * shares; notional > 0 {
		bd.TotalPctOfNotional = bd.Total / notional
	}
	return bd, nil
}

// WorstCaseFill returns the net credit of the order assuming every leg
// fills adversely: shorts concede the configured fraction of their quoted
// spread below the bid, longs pay it above the ask, both padded by extra
// ticks. The result can be negative; the risk gate sizes losses off it.
func (e *Estimator) WorstCaseFill(order *models.CandidateOrder, book models.QuoteBook) (float64, error) {
	if order == nil {
		return 0, fmt.Errorf("worst-case fill: nil order")
	}

	pad := float64(e.riskCfg.WorstCaseExtraTicks) * e.tickSize
	frac := e.riskCfg.WorstCaseSpreadFraction

	credit := 0.0
	for i, leg := range order.Legs {
		q, ok := book.Lookup(leg)
		if !ok {
			return 0, fmt.Errorf("%w: leg %d %s %.2f", ErrMissingLegQuote, i, leg.Right, leg.Strike)
		}
		concession := frac*q.Spread() + pad
		if leg.IsShort() {
			credit += util.RoundToTick(math.Max(0, q.Bid-concession), e.tickSize)
		} else {
			credit -= util.RoundToTick(q.Ask+concession, e.tickSize)
		}
	}
	return credit, nil
}

func (e *Estimator) crossFraction() float64 {
	if e.cfg.SpreadCrossFraction > 0 {
		return e.cfg.SpreadCrossFraction
	}
	return 0.5
}

// moneynessMultiplier widens the expected crossing cost away from the
// money, where 0DTE books thin out fastest.
func (e *Estimator) moneynessMultiplier(strike, spot float64) float64 {
	if spot <= 0 {
		return 1
	}
	return 1 + math.Abs(strike-spot)/spot
}

// legSlippage is the expected per-share slippage for one leg: sub-linear
// market impact in size, a timing component scaling with the vol index,
// a flat add-on in stressed vol regimes, and another for wide markets.
func (e *Estimator) legSlippage(q models.Quote, contracts int, ms models.MarketState) float64 {
	s := e.cfg.Slippage

	perShare := s.ImpactCoeff * math.Pow(float64(contracts), s.SizeExponent)
	perShare += s.TimingCoeff * ms.VolIndex / 100
	if s.VolRegimeThreshold > 0 && ms.VolIndex >= s.VolRegimeThreshold {
		perShare += s.VolRegimeExtra
	}
	if mid := q.Mid(); mid > 0 && q.Spread()/mid >= s.WideSpreadRatio && s.WideSpreadRatio > 0 {
		perShare += s.WideSpreadExtra
	}
	return perShare
}

// commission applies the fee schedule: per-contract and per-trade fees, a
// surcharge multiplier for structures beyond two legs, the best matching
// volume-tier discount, and the broker minimum.
func (e *Estimator) commission(contracts, legs int) float64 {
	c := e.cfg.Commission

	total := c.PerContract*float64(contracts*legs) + c.PerTrade
	if legs > 2 && c.MultiLegSurcharge > 0 {
		total *= c.MultiLegSurcharge
	}

	discount := 0.0
	for _, tier := range c.VolumeTiers {
		if contracts*legs >= tier.MinContracts && tier.DiscountPct > discount {
			discount = tier.DiscountPct
		}
	}
	total *= 1 - discount

	return math.Max(total, c.Minimum)
}

// assignmentRisk prices early-assignment exposure on a short leg as the
// assignment probability times the fee plus a fraction of the exercised
// notional. ITM shorts carry the higher probability.
func (e *Estimator) assignmentRisk(leg models.Leg, spot float64, contracts int) float64 {
	a := e.cfg.Assignment

	itm := (leg.Right == models.RightPut && spot < leg.Strike) ||
		(leg.Right == models.RightCall && spot > leg.Strike)
	prob := a.OTMProbability
	if itm {
		prob = a.ITMProbability
	}

	notional := leg.Strike * sharesPerContract * float64(contracts)
	return prob * (a.FeePerAssignment + a.NotionalFraction*notional)
}

// liquidityPenalty charges for the contracts beyond the allowed fraction
// of a leg's open interest.
func (e *Estimator) liquidityPenalty(q models.Quote, contracts int) float64 {
	l := e.cfg.Liquidity
	if l.MaxParticipation <= 0 {
		return 0
	}
	capacity := l.MaxParticipation * float64(q.OpenInterest)
	excess := float64(contracts) - capacity
	if excess <= 0 {
		return 0
	}
	return excess * l.PenaltyPerContract
}

// financing prices the margin carry: the position's margin requirement
// (its defined max loss) at the daily rate over the expected hold.
func (e *Estimator) financing(order *models.CandidateOrder, contracts int) float64 {
	f := e.cfg.Financing
	holdingDays := f.AvgHoldingDays
	if holdingDays <= 0 {
		holdingDays = 1
	}
	margin := order.Structure.MaxLoss(order.NetCredit, contracts)
	return margin * f.DailyRate * holdingDays
}
