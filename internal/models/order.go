package models

import (
	"fmt"
	"math"
	"time"
)

// OptionRight identifies the option type of a contract.
type OptionRight string

const (
	// RightCall is a call option.
	RightCall OptionRight = "call"
	// RightPut is a put option.
	RightPut OptionRight = "put"
)

// Valid returns true if the OptionRight is one of the defined constants.
func (r OptionRight) Valid() bool {
	switch r {
	case RightCall, RightPut:
		return true
	default:
		return false
	}
}

// Bias is the directional decision feeding spread construction.
type Bias string

const (
	// BiasNone means no trade this tick.
	BiasNone Bias = "none"
	// BiasRangeBound sells premium on both sides.
	BiasRangeBound Bias = "range_bound"
	// BiasBullish sells a put credit spread below the market.
	BiasBullish Bias = "bullish"
	// BiasBearish sells a call credit spread above the market.
	BiasBearish Bias = "bearish"
)

// Valid returns true if the Bias is one of the defined constants.
func (b Bias) Valid() bool {
	switch b {
	case BiasNone, BiasRangeBound, BiasBullish, BiasBearish:
		return true
	default:
		return false
	}
}

// Leg is a single option leg of a multi-leg order. Quantity is signed:
// negative means short (sold), positive means long (bought).
type Leg struct {
	Expiry   time.Time   `json:"expiry"`
	Strike   float64     `json:"strike"`
	Right    OptionRight `json:"right"`
	Quantity int         `json:"quantity"`
}

// IsShort returns true for sold legs.
func (l Leg) IsShort() bool {
	return l.Quantity < 0
}

// Key returns the chain key identifying this leg's contract.
func (l Leg) Key() LegKey {
	return legKey(l.Expiry, l.Strike, l.Right)
}

// CandidateOrder is a fully specified credit-spread order awaiting risk
// admission. NetCredit and Width are per spread in per-share terms.
type CandidateOrder struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Structure SpreadStructure `json:"-"`
	Legs      []Leg           `json:"legs"`
	NetCredit float64         `json:"net_credit"`
	Width     float64         `json:"width"`
}

// CreditPerWidth returns the credit captured per point of width at risk.
func (o *CandidateOrder) CreditPerWidth() float64 {
	if o.Width <= 0 {
		return 0
	}
	return o.NetCredit / o.Width
}

// Bias returns the strategy tag carried by the order's structure.
func (o *CandidateOrder) Bias() Bias {
	if o.Structure == nil {
		return BiasNone
	}
	return o.Structure.Bias()
}

// Validate checks the structural invariants every candidate order must
// satisfy before it is allowed anywhere near the risk gate.
func (o *CandidateOrder) Validate(minCreditPerWidth float64) error {
	if o.Structure == nil {
		return fmt.Errorf("order %s: missing spread structure", o.ID)
	}
	if o.Width <= 0 {
		return fmt.Errorf("order %s: width must be positive (got %.2f)", o.ID, o.Width)
	}
	if math.Abs(o.Width-o.Structure.Width()) > 1e-9 {
		return fmt.Errorf("order %s: width %.2f disagrees with structure width %.2f",
			o.ID, o.Width, o.Structure.Width())
	}
	if err := o.Structure.validate(); err != nil {
		return fmt.Errorf("order %s: %w", o.ID, err)
	}
	if o.CreditPerWidth() < minCreditPerWidth {
		return fmt.Errorf("order %s: credit/width %.3f below minimum %.3f",
			o.ID, o.CreditPerWidth(), minCreditPerWidth)
	}
	return nil
}
