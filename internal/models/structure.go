package models

import (
	"fmt"
	"math"
	"time"
)

const sharesPerContract = 100.0

// SpreadStructure is the closed set of spread layouts this system trades.
// Each variant carries its own leg layout and worst-case loss formula, so
// there is no runtime "unknown structure" case to dispatch on: the only
// implementations live in this package, enforced by the unexported method.
type SpreadStructure interface {
	// Name is a stable identifier used in logs and audit entries.
	Name() string
	// Bias returns the strategy tag implied by the layout.
	Bias() Bias
	// Width returns the strike distance at risk, per spread.
	Width() float64
	// BuildLegs materializes the leg layout with signed quantities.
	BuildLegs() []Leg
	// MaxLoss returns the worst-case dollar loss for the whole order given
	// a (possibly pessimistic) net credit per spread and a contract count.
	// Never negative.
	MaxLoss(netCredit float64, contracts int) float64

	validate() error
	sealed()
}

// PutCreditSpread sells a put and buys a further-OTM put below it.
type PutCreditSpread struct {
	ShortStrike float64   `json:"short_strike"`
	LongStrike  float64   `json:"long_strike"`
	Expiry      time.Time `json:"expiry"`
}

// Name implements SpreadStructure.
func (s PutCreditSpread) Name() string { return "put_credit_spread" }

// Bias implements SpreadStructure.
func (s PutCreditSpread) Bias() Bias { return BiasBullish }

// Width implements SpreadStructure.
func (s PutCreditSpread) Width() float64 { return s.ShortStrike - s.LongStrike }

// BuildLegs implements SpreadStructure.
func (s PutCreditSpread) BuildLegs() []Leg {
	return []Leg{
		{Expiry: s.Expiry, Strike: s.ShortStrike, Right: RightPut, Quantity: -1},
		{Expiry: s.Expiry, Strike: s.LongStrike, Right: RightPut, Quantity: 1},
	}
}

// MaxLoss implements SpreadStructure.
func (s PutCreditSpread) MaxLoss(netCredit float64, contracts int) float64 {
	return creditSpreadMaxLoss(s.Width(), netCredit, contracts)
}

func (s PutCreditSpread) validate() error {
	if s.ShortStrike <= s.LongStrike {
		return fmt.Errorf("put credit spread requires short strike %.2f > long strike %.2f",
			s.ShortStrike, s.LongStrike)
	}
	return nil
}

func (s PutCreditSpread) sealed() {}

// CallCreditSpread sells a call and buys a further-OTM call above it.
type CallCreditSpread struct {
	ShortStrike float64   `json:"short_strike"`
	LongStrike  float64   `json:"long_strike"`
	Expiry      time.Time `json:"expiry"`
}

// Name implements SpreadStructure.
func (s CallCreditSpread) Name() string { return "call_credit_spread" }

// Bias implements SpreadStructure.
func (s CallCreditSpread) Bias() Bias { return BiasBearish }

// Width implements SpreadStructure.
func (s CallCreditSpread) Width() float64 { return s.LongStrike - s.ShortStrike }

// BuildLegs implements SpreadStructure.
func (s CallCreditSpread) BuildLegs() []Leg {
	return []Leg{
		{Expiry: s.Expiry, Strike: s.ShortStrike, Right: RightCall, Quantity: -1},
		{Expiry: s.Expiry, Strike: s.LongStrike, Right: RightCall, Quantity: 1},
	}
}

// MaxLoss implements SpreadStructure.
func (s CallCreditSpread) MaxLoss(netCredit float64, contracts int) float64 {
	return creditSpreadMaxLoss(s.Width(), netCredit, contracts)
}

func (s CallCreditSpread) validate() error {
	if s.ShortStrike >= s.LongStrike {
		return fmt.Errorf("call credit spread requires short strike %.2f < long strike %.2f",
			s.ShortStrike, s.LongStrike)
	}
	return nil
}

func (s CallCreditSpread) sealed() {}

// IronCondor pairs a put credit spread with a call credit spread on the
// same expiry. Only one wing can finish in the money, so worst case is
// driven by the wider wing less the combined credit.
type IronCondor struct {
	Put  PutCreditSpread  `json:"put_wing"`
	Call CallCreditSpread `json:"call_wing"`
}

// Name implements SpreadStructure.
func (s IronCondor) Name() string { return "iron_condor" }

// Bias implements SpreadStructure.
func (s IronCondor) Bias() Bias { return BiasRangeBound }

// Width implements SpreadStructure.
func (s IronCondor) Width() float64 {
	return math.Max(s.Put.Width(), s.Call.Width())
}

// BuildLegs implements SpreadStructure.
func (s IronCondor) BuildLegs() []Leg {
	return append(s.Put.BuildLegs(), s.Call.BuildLegs()...)
}

// MaxLoss implements SpreadStructure.
func (s IronCondor) MaxLoss(netCredit float64, contracts int) float64 {
	return creditSpreadMaxLoss(s.Width(), netCredit, contracts)
}

func (s IronCondor) validate() error {
	if err := s.Put.validate(); err != nil {
		return err
	}
	if err := s.Call.validate(); err != nil {
		return err
	}
	if s.Put.ShortStrike >= s.Call.ShortStrike {
		return fmt.Errorf("iron condor requires put short strike %.2f < call short strike %.2f",
			s.Put.ShortStrike, s.Call.ShortStrike)
	}
	return nil
}

func (s IronCondor) sealed() {}

// creditSpreadMaxLoss is the shared defined-risk formula: width minus
// credit, clamped at zero, scaled to dollars.
func creditSpreadMaxLoss(width, netCredit float64, contracts int) float64 {
	loss := (width - netCredit) * sharesPerContract * float64(contracts)
	return math.Max(0, loss)
}
