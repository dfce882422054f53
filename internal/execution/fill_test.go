package execution

import (
	"math/rand"
	"testing"

	"github.com/eddiefleurent/zero-dte-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulateFillDeterministicPerSeed(t *testing.T) {
	e := NewEstimator(testCostConfig())
	order := testOrder()

	first, err := e.SimulateFill(order, testBook(), 2, testConditions(), rand.New(rand.NewSource(99)))
	require.NoError(t, err)
	second, err := e.SimulateFill(order, testBook(), 2, testConditions(), rand.New(rand.NewSource(99)))
	require.NoError(t, err)
	assert.Equal(t, first, second, "same seed must replay the same fills")

	other, err := e.SimulateFill(order, testBook(), 2, testConditions(), rand.New(rand.NewSource(100)))
	require.NoError(t, err)
	assert.NotEqual(t, first, other, "different seeds must produce different tapes")
}

func TestSimulateFillAdversePerSide(t *testing.T) {
	e := NewEstimator(testCostConfig())
	order := testOrder()

	result, err := e.SimulateFill(order, testBook(), 1, testConditions(), rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	require.Len(t, result.Fills, len(order.Legs))

	book := testBook()
	for _, cf := range result.Fills {
		leg := order.Legs[cf.LegIndex]
		q, ok := book.Lookup(leg)
		require.True(t, ok)

		if leg.IsShort() {
			assert.LessOrEqual(t, cf.Price, q.Mid(), "short fill must not beat the midpoint")
			assert.Negative(t, cf.Quantity)
		} else {
			assert.GreaterOrEqual(t, cf.Price, q.Mid(), "long fill must not beat the midpoint")
			assert.Positive(t, cf.Quantity)
		}
		assert.GreaterOrEqual(t, cf.Latency.Milliseconds(), int64(0))
		assert.False(t, cf.Timestamp.Before(order.Timestamp))
	}

	midCredit := 1.50 - 0.60
	assert.Less(t, result.NetCredit(), midCredit)
	assert.Positive(t, result.TotalExecutionCost)
	assert.Equal(t, order.ID, result.OrderID)
}

func TestSimulateFillMissingLegQuote(t *testing.T) {
	e := NewEstimator(testCostConfig())
	book := models.NewQuoteBook([]models.Quote{putQuote(95, 1.40, 1.60, 5000)})

	_, err := e.SimulateFill(testOrder(), book, 1, testConditions(), rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrMissingLegQuote)
}

func TestSimulateFillRequiresRNG(t *testing.T) {
	e := NewEstimator(testCostConfig())
	_, err := e.SimulateFill(testOrder(), testBook(), 1, testConditions(), nil)
	assert.Error(t, err)
}
