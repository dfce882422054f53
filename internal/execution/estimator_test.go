package execution

import (
	"testing"
	"time"

	"github.com/eddiefleurent/zero-dte-bot/internal/config"
	"github.com/eddiefleurent/zero-dte-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var execExpiry = time.Date(2024, 3, 5, 16, 0, 0, 0, time.UTC)

func testCostConfig() *config.Config {
	return &config.Config{
		Strategy: config.StrategyConfig{TickSize: 0.05},
		Risk: config.RiskConfig{
			LossLadder:              []float64{500, 300, 200, 100},
			WorstCaseSpreadFraction: 0.5,
			WorstCaseExtraTicks:     1,
		},
		Costs: config.CostConfig{
			SpreadCrossFraction: 0.5,
			Commission: config.CommissionConfig{
				PerContract:       0.65,
				MultiLegSurcharge: 1.1,
				Minimum:           1.0,
				VolumeTiers:       []config.VolumeTier{{MinContracts: 50, DiscountPct: 0.10}},
			},
			Slippage: config.SlippageConfig{
				ImpactCoeff:        0.01,
				SizeExponent:       0.6,
				TimingCoeff:        0.02,
				VolRegimeThreshold: 25,
				VolRegimeExtra:     0.03,
				WideSpreadRatio:    0.25,
				WideSpreadExtra:    0.02,
				LatencyMeanMs:      120,
				LatencyJitterMs:    40,
			},
			Assignment: config.AssignmentConfig{
				FeePerAssignment: 5,
				NotionalFraction: 0.0001,
				ITMProbability:   0.10,
				OTMProbability:   0.005,
			},
			Liquidity: config.LiquidityConfig{MaxParticipation: 0.02, PenaltyPerContract: 0.50},
			Financing: config.FinancingConfig{DailyRate: 0.0002, AvgHoldingDays: 1},
		},
	}
}

func putQuote(strike, bid, ask float64, oi int64) models.Quote {
	return models.Quote{
		Symbol:       "SPX",
		Expiry:       execExpiry,
		Strike:       strike,
		Right:        models.RightPut,
		Bid:          bid,
		Ask:          ask,
		BidSize:      50,
		AskSize:      50,
		OpenInterest: oi,
	}
}

func testOrder() *models.CandidateOrder {
	structure := models.PutCreditSpread{ShortStrike: 95, LongStrike: 90, Expiry: execExpiry}
	return &models.CandidateOrder{
		ID:        "order-1",
		Timestamp: time.Date(2024, 3, 5, 13, 0, 0, 0, time.UTC),
		Structure: structure,
		Legs:      structure.BuildLegs(),
		NetCredit: 0.90,
		Width:     5,
	}
}

func testBook() models.QuoteBook {
	return models.NewQuoteBook([]models.Quote{
		putQuote(95, 1.40, 1.60, 5000),
		putQuote(90, 0.55, 0.65, 5000),
	})
}

func testConditions() models.MarketState {
	return models.MarketState{
		Spot:         100,
		VolIndex:     18,
		VolBucket:    models.VolBucketFor(18),
		TimeOfDay:    models.TimeOfDayBucketFor(180),
		DaysToExpiry: 0.5,
	}
}

func TestEstimateCostComponentsAndTotal(t *testing.T) {
	e := NewEstimator(testCostConfig())

	bd, err := e.EstimateCost(testOrder(), testBook(), 2, testConditions())
	require.NoError(t, err)

	assert.Positive(t, bd.SpreadCrossing)
	assert.Positive(t, bd.Commission)
	assert.Positive(t, bd.Slippage)
	assert.Positive(t, bd.AssignmentRisk)
	assert.Positive(t, bd.Financing)
	assert.InDelta(t, bd.SpreadCrossing+bd.Commission+bd.Slippage+bd.AssignmentRisk+
		bd.LiquidityAdjustment+bd.Financing, bd.Total, 1e-9)
	assert.Positive(t, bd.TotalPctOfNotional)
}

func TestEstimateCostMissingLegQuote(t *testing.T) {
	e := NewEstimator(testCostConfig())
	book := models.NewQuoteBook([]models.Quote{putQuote(95, 1.40, 1.60, 5000)})

	_, err := e.EstimateCost(testOrder(), book, 1, testConditions())
	assert.ErrorIs(t, err, ErrMissingLegQuote)
}

func TestEstimateCostRejectsBadSize(t *testing.T) {
	e := NewEstimator(testCostConfig())
	_, err := e.EstimateCost(testOrder(), testBook(), 0, testConditions())
	assert.Error(t, err)
}

func TestCommissionSchedule(t *testing.T) {
	e := NewEstimator(testCostConfig())

	tests := []struct {
		name      string
		contracts int
		legs      int
		want      float64
	}{
		{name: "two-leg spread", contracts: 1, legs: 2, want: 1.30},
		{name: "condor surcharge", contracts: 1, legs: 4, want: 0.65 * 4 * 1.1},
		{name: "volume tier discount", contracts: 30, legs: 2, want: 0.65 * 60 * 0.9},
		{name: "minimum floor", contracts: 1, legs: 1, want: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, e.commission(tt.contracts, tt.legs), 1e-9)
		})
	}
}

func TestAssignmentRiskITMExceedsOTM(t *testing.T) {
	e := NewEstimator(testCostConfig())
	shortPut := models.Leg{Expiry: execExpiry, Strike: 95, Right: models.RightPut, Quantity: -1}

	itm := e.assignmentRisk(shortPut, 90, 1)  // spot below the short put
	otm := e.assignmentRisk(shortPut, 100, 1) // spot above it
	assert.Greater(t, itm, otm)
}

func TestLiquidityPenaltyChargesExcessOnly(t *testing.T) {
	e := NewEstimator(testCostConfig())

	thin := putQuote(95, 1.40, 1.60, 100) // capacity 2 contracts at 2% participation
	assert.InDelta(t, 8*0.50, e.liquidityPenalty(thin, 10), 1e-9)
	assert.Zero(t, e.liquidityPenalty(thin, 2))

	deep := putQuote(95, 1.40, 1.60, 100000)
	assert.Zero(t, e.liquidityPenalty(deep, 10))
}

func TestWorstCaseFillIsPessimistic(t *testing.T) {
	e := NewEstimator(testCostConfig())
	order := testOrder()

	credit, err := e.WorstCaseFill(order, testBook())
	require.NoError(t, err)

	// Short 95: bid 1.40 less half the 0.20 spread less one tick = 1.25.
	// Long 90: ask 0.65 plus half the 0.10 spread plus one tick = 0.75.
	assert.InDelta(t, 0.50, credit, 1e-9)

	midCredit := 1.50 - 0.60
	assert.Less(t, credit, midCredit, "worst case must trail the midpoint credit")
}

func TestWorstCaseFillMissingLegQuote(t *testing.T) {
	e := NewEstimator(testCostConfig())
	book := models.NewQuoteBook([]models.Quote{putQuote(90, 0.55, 0.65, 5000)})

	_, err := e.WorstCaseFill(testOrder(), book)
	assert.ErrorIs(t, err, ErrMissingLegQuote)
}
