package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteDerivedFields(t *testing.T) {
	q := Quote{Bid: 1.40, Ask: 1.60}
	assert.InDelta(t, 1.50, q.Mid(), 1e-9)
	assert.InDelta(t, 0.20, q.Spread(), 1e-9)
	assert.InDelta(t, 0.20/1.50*10000, q.SpreadBps(), 1e-6)

	crossed := Quote{Bid: 1.60, Ask: 1.40}
	assert.Zero(t, crossed.Spread(), "crossed markets floor at zero")
}

func TestQuoteBookLookupByLeg(t *testing.T) {
	e := time.Date(2024, 3, 5, 16, 0, 0, 0, time.UTC)
	book := NewQuoteBook([]Quote{
		{Expiry: e, Strike: 95, Right: RightPut, Bid: 1.40, Ask: 1.60},
		{Expiry: e, Strike: 95, Right: RightCall, Bid: 6.00, Ask: 6.20},
	})
	require.Equal(t, 2, book.Len())

	q, ok := book.Lookup(Leg{Expiry: e, Strike: 95, Right: RightPut, Quantity: -1})
	require.True(t, ok)
	assert.InDelta(t, 1.50, q.Mid(), 1e-9)

	_, ok = book.Lookup(Leg{Expiry: e, Strike: 90, Right: RightPut, Quantity: 1})
	assert.False(t, ok)
}

func TestQuoteBookLaterDuplicateWins(t *testing.T) {
	e := time.Date(2024, 3, 5, 16, 0, 0, 0, time.UTC)
	book := NewQuoteBook([]Quote{
		{Expiry: e, Strike: 95, Right: RightPut, Bid: 1.00, Ask: 1.20},
		{Expiry: e, Strike: 95, Right: RightPut, Bid: 1.40, Ask: 1.60},
	})

	q, ok := book.Lookup(Leg{Expiry: e, Strike: 95, Right: RightPut, Quantity: -1})
	require.True(t, ok)
	assert.Equal(t, 1.40, q.Bid)
}

func TestFillResultNetCredit(t *testing.T) {
	f := FillResult{Fills: []ChildFill{
		{Price: 1.45, Quantity: -1},
		{Price: 0.60, Quantity: 1},
	}}
	assert.InDelta(t, 0.85, f.NetCredit(), 1e-9)
}

func TestVolAndTimeOfDayBuckets(t *testing.T) {
	assert.Equal(t, VolLow, VolBucketFor(12))
	assert.Equal(t, VolNormal, VolBucketFor(18))
	assert.Equal(t, VolElevated, VolBucketFor(28))
	assert.Equal(t, VolExtreme, VolBucketFor(40))

	assert.Equal(t, SessionOpen, TimeOfDayBucketFor(10))
	assert.Equal(t, SessionMidday, TimeOfDayBucketFor(120))
	assert.Equal(t, SessionClose, TimeOfDayBucketFor(350))
}

func TestSpreadWideningMultiplierBaseline(t *testing.T) {
	base := MarketState{VolBucket: VolNormal, TimeOfDay: SessionMidday}
	assert.InDelta(t, 1.0, base.SpreadWideningMultiplier(), 1e-9)

	stressed := MarketState{VolBucket: VolExtreme, TimeOfDay: SessionOpen, EventActive: true}
	assert.InDelta(t, 1.80*1.20*1.25, stressed.SpreadWideningMultiplier(), 1e-9)

	calm := MarketState{VolBucket: VolLow, TimeOfDay: SessionMidday}
	assert.Less(t, calm.SpreadWideningMultiplier(), 1.0)
}
