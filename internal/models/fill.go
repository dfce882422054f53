package models

import "time"

// SlippageBreakdown decomposes a child fill's slippage into its sources.
// All values are per-share dollars.
type SlippageBreakdown struct {
	MarketImpact float64 `json:"market_impact"`
	Timing       float64 `json:"timing"`
	VolRegime    float64 `json:"vol_regime"`
	Liquidity    float64 `json:"liquidity"`
}

// Total returns the summed slippage across sources.
func (s SlippageBreakdown) Total() float64 {
	return s.MarketImpact + s.Timing + s.VolRegime + s.Liquidity
}

// ChildFill is one leg's simulated execution.
type ChildFill struct {
	LegIndex  int               `json:"leg_index"`
	Price     float64           `json:"price"`
	Quantity  int               `json:"quantity"`
	Timestamp time.Time         `json:"timestamp"`
	Latency   time.Duration     `json:"latency"`
	Slippage  SlippageBreakdown `json:"slippage"`
}

// FillResult aggregates the per-leg child fills for one order.
type FillResult struct {
	OrderID            string      `json:"order_id"`
	Fills              []ChildFill `json:"fills"`
	AvgPrice           float64     `json:"avg_price"`
	TotalExecutionCost float64     `json:"total_execution_cost"`
	Timestamp          time.Time   `json:"timestamp"`
}

// NetCredit returns the signed per-share premium collected across legs:
// short legs contribute their fill price, long legs subtract theirs.
func (f *FillResult) NetCredit() float64 {
	credit := 0.0
	for _, cf := range f.Fills {
		if cf.Quantity < 0 {
			credit += cf.Price
		} else {
			credit -= cf.Price
		}
	}
	return credit
}

// CostBreakdown is the full trading-cost estimate for one order.
// All components are dollars for the whole order.
type CostBreakdown struct {
	SpreadCrossing      float64 `json:"spread_crossing"`
	Commission          float64 `json:"commission"`
	Slippage            float64 `json:"slippage"`
	AssignmentRisk      float64 `json:"assignment_risk"`
	LiquidityAdjustment float64 `json:"liquidity_adjustment"`
	Financing           float64 `json:"financing"`
	Total               float64 `json:"total"`
	TotalPctOfNotional  float64 `json:"total_pct_of_notional"`
}
