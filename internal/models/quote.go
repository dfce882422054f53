// Package models provides the data structures shared by the decision
// pipeline: quotes, bars, spread orders, market state, and fill results.
package models

import (
	"math"
	"time"

	"github.com/eddiefleurent/zero-dte-bot/internal/util"
)

// Quote is a single option NBBO snapshot for one contract.
type Quote struct {
	Symbol       string      `json:"symbol"`
	Expiry       time.Time   `json:"expiry"`
	Strike       float64     `json:"strike"`
	Right        OptionRight `json:"right"`
	Bid          float64     `json:"bid"`
	Ask          float64     `json:"ask"`
	BidSize      int64       `json:"bid_size"`
	AskSize      int64       `json:"ask_size"`
	OpenInterest int64       `json:"open_interest"`
	Timestamp    time.Time   `json:"timestamp"`
}

// Mid returns the quote midpoint.
func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// Spread returns the bid-ask spread, floored at zero for crossed markets.
func (q Quote) Spread() float64 {
	return math.Max(0, q.Ask-q.Bid)
}

// SpreadBps returns the bid-ask spread in basis points of the midpoint.
func (q Quote) SpreadBps() float64 {
	return util.BasisPoints(q.Spread(), q.Mid())
}

// Key returns the chain key identifying this contract.
func (q Quote) Key() LegKey {
	return legKey(q.Expiry, q.Strike, q.Right)
}

// LegKey identifies an option contract within a chain snapshot.
// Strikes are keyed in mills to avoid float map-key surprises.
type LegKey struct {
	ExpiryDay   string
	StrikeMilli int64
	Right       OptionRight
}

func legKey(expiry time.Time, strike float64, right OptionRight) LegKey {
	return LegKey{
		ExpiryDay:   expiry.UTC().Format("20060102"),
		StrikeMilli: int64(math.Round(strike * 1000)),
		Right:       right,
	}
}

// QuoteBook is an immutable chain snapshot keyed by contract.
type QuoteBook struct {
	quotes map[LegKey]Quote
}

// NewQuoteBook builds a QuoteBook from a chain snapshot. Later duplicates
// win, matching how venues re-publish the same contract within a snapshot.
func NewQuoteBook(quotes []Quote) QuoteBook {
	m := make(map[LegKey]Quote, len(quotes))
	for _, q := range quotes {
		m[q.Key()] = q
	}
	return QuoteBook{quotes: m}
}

// Lookup returns the quote for a leg's contract, if present.
func (b QuoteBook) Lookup(leg Leg) (Quote, bool) {
	q, ok := b.quotes[leg.Key()]
	return q, ok
}

// Len returns the number of distinct contracts in the book.
func (b QuoteBook) Len() int {
	return len(b.quotes)
}

// Bar is a single OHLCV bar from the underlying's intraday series.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// TypicalPrice returns (H+L+C)/3, the conventional VWAP input.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}
