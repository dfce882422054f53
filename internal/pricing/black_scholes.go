// Package pricing implements closed-form European option pricing and
// Greeks. Everything here is a pure function of its inputs: no state, no
// I/O, and no failure mode beyond domain clamping.
package pricing

import (
	"fmt"
	"math"

	"github.com/eddiefleurent/zero-dte-bot/internal/models"
)

const (
	// minVol floors volatility so sigma -> 0 degrades to discounted
	// intrinsic value instead of dividing by zero.
	minVol = 1e-8
	// minTime floors time-to-expiry (in years) so T -> 0 degrades the
	// same way. Roughly a third of a second.
	minTime = 1e-8
)

// Inputs bundles the market and contract parameters for one pricing call.
// Rate and DividendYield are continuously compounded annual rates; Vol is
// annualized; TimeToExpiry is in years.
type Inputs struct {
	Spot          float64
	Strike        float64
	Rate          float64
	DividendYield float64
	Vol           float64
	TimeToExpiry  float64
}

// clamp returns inputs with vol and time floored at their epsilons.
func (in Inputs) clamp() Inputs {
	in.Vol = math.Max(in.Vol, minVol)
	in.TimeToExpiry = math.Max(in.TimeToExpiry, minTime)
	return in
}

func d1d2(in Inputs) (float64, float64) {
	volSqrtT := in.Vol * math.Sqrt(in.TimeToExpiry)
	d1 := (math.Log(in.Spot/in.Strike) +
		(in.Rate-in.DividendYield+0.5*in.Vol*in.Vol)*in.TimeToExpiry) / volSqrtT
	return d1, d1 - volSqrtT
}

// Price returns the Black-Scholes value of a European option. The result
// is always finite and non-negative; degenerate vol or expiry collapse to
// discounted intrinsic value.
func Price(in Inputs, right models.OptionRight) float64 {
	in = in.clamp()
	if in.Spot <= 0 || in.Strike <= 0 {
		return 0
	}

	d1, d2 := d1d2(in)
	discSpot := in.Spot * math.Exp(-in.DividendYield*in.TimeToExpiry)
	discStrike := in.Strike * math.Exp(-in.Rate*in.TimeToExpiry)

	var price, floor float64
	if right == models.RightCall {
		price = discSpot*normCdf(d1) - discStrike*normCdf(d2)
		floor = discSpot - discStrike
	} else {
		price = discStrike*normCdf(-d2) - discSpot*normCdf(-d1)
		floor = discStrike - discSpot
	}

	// Guard the discounted-intrinsic lower bound against rounding in the
	// saturated tails.
	return math.Max(0, math.Max(price, floor))
}

// Delta returns the option's sensitivity to a $1 spot move: in [0,1] for
// calls, [-1,0] for puts.
func Delta(in Inputs, right models.OptionRight) float64 {
	in = in.clamp()
	if in.Spot <= 0 || in.Strike <= 0 {
		return 0
	}
	d1, _ := d1d2(in)
	divDisc := math.Exp(-in.DividendYield * in.TimeToExpiry)
	if right == models.RightCall {
		return divDisc * normCdf(d1)
	}
	return divDisc * (normCdf(d1) - 1)
}

// Gamma returns the rate of change of delta per $1 spot move. Identical
// for calls and puts.
func Gamma(in Inputs) float64 {
	in = in.clamp()
	if in.Spot <= 0 || in.Strike <= 0 {
		return 0
	}
	d1, _ := d1d2(in)
	divDisc := math.Exp(-in.DividendYield * in.TimeToExpiry)
	return divDisc * normPdf(d1) / (in.Spot * in.Vol * math.Sqrt(in.TimeToExpiry))
}

// Theta returns the per-year time decay of the option value.
func Theta(in Inputs, right models.OptionRight) float64 {
	in = in.clamp()
	if in.Spot <= 0 || in.Strike <= 0 {
		return 0
	}
	d1, d2 := d1d2(in)
	discSpot := in.Spot * math.Exp(-in.DividendYield*in.TimeToExpiry)
	discStrike := in.Strike * math.Exp(-in.Rate*in.TimeToExpiry)

	decay := -discSpot * normPdf(d1) * in.Vol / (2 * math.Sqrt(in.TimeToExpiry))
	if right == models.RightCall {
		return decay -
			in.Rate*discStrike*normCdf(d2) +
			in.DividendYield*discSpot*normCdf(d1)
	}
	return decay +
		in.Rate*discStrike*normCdf(-d2) -
		in.DividendYield*discSpot*normCdf(-d1)
}

// Vega returns the option's sensitivity to a one-point (1.00) change in
// annualized volatility. Identical for calls and puts.
func Vega(in Inputs) float64 {
	in = in.clamp()
	if in.Spot <= 0 || in.Strike <= 0 {
		return 0
	}
	d1, _ := d1d2(in)
	divDisc := math.Exp(-in.DividendYield * in.TimeToExpiry)
	return divDisc * in.Spot * math.Sqrt(in.TimeToExpiry) * normPdf(d1)
}

// ImpliedVol solves for the volatility that reproduces marketPrice using
// Newton iterations on vega, falling back to an error when the quote is
// outside the no-arbitrage band or the iteration stalls.
func ImpliedVol(in Inputs, right models.OptionRight, marketPrice float64) (float64, error) {
	if marketPrice <= 0 {
		return 0, fmt.Errorf("implied vol: market price must be positive (got %.4f)", marketPrice)
	}

	const (
		tol      = 1e-6
		maxIters = 100
	)

	sigma := 0.2 // standard initial guess
	for i := 0; i < maxIters; i++ {
		in.Vol = sigma
		diff := Price(in, right) - marketPrice
		if math.Abs(diff) < tol {
			return sigma, nil
		}
		vega := Vega(in)
		if vega < 1e-12 {
			return 0, fmt.Errorf("implied vol: vega vanished at sigma=%.4f", sigma)
		}
		sigma -= diff / vega
		if sigma <= 0 {
			sigma = tol
		}
	}
	return 0, fmt.Errorf("implied vol: no convergence after %d iterations", maxIters)
}

// StrikeFromDelta inverts the delta formula: it returns the strike at
// which an option of the given right carries the target delta. Call
// deltas must be in (0,1), put deltas in (-1,0).
func StrikeFromDelta(targetDelta, spot, rate, dividendYield, vol, timeToExpiry float64,
	right models.OptionRight) float64 {
	vol = math.Max(vol, minVol)
	timeToExpiry = math.Max(timeToExpiry, minTime)

	divDisc := math.Exp(-dividendYield * timeToExpiry)
	var d1 float64
	if right == models.RightCall {
		d1 = normInv(util01(targetDelta / divDisc))
	} else {
		d1 = normInv(util01(targetDelta/divDisc + 1))
	}

	exponent := d1*vol*math.Sqrt(timeToExpiry) -
		(rate-dividendYield+0.5*vol*vol)*timeToExpiry
	return spot * math.Exp(-exponent)
}

// util01 clamps a probability strictly inside (0,1) so normInv stays finite.
func util01(p float64) float64 {
	const eps = 1e-10
	return math.Min(1-eps, math.Max(eps, p))
}

// normCdf is the standard normal cumulative distribution function.
func normCdf(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// normPdf is the standard normal probability density function.
func normPdf(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

// normInv is the inverse standard normal CDF (Acklam's rational
// approximation, accurate to ~1e-9 over (0,1)).
func normInv(p float64) float64 {
	a := [6]float64{-3.969683028665376e+01, 2.209460984245205e+02, -2.759285104469687e+02,
		1.383577518672690e+02, -3.066479806614716e+01, 2.506628277459239e+00}
	b := [5]float64{-5.447609879822406e+01, 1.615858368580409e+02, -1.556989798598866e+02,
		6.680131188771972e+01, -1.328068155288572e+01}
	c := [6]float64{-7.784894002430293e-03, -3.223964580411365e-01, -2.400758277161838e+00,
		-2.549732539343734e+00, 4.374664141464968e+00, 2.938163982698783e+00}
	d := [4]float64{7.784695709041462e-03, 3.224671290700398e-01, 2.445134137142996e+00,
		3.754408661907416e+00}

	const pLow = 0.02425
	const pHigh = 1 - pLow

	switch {
	case p < pLow:
		q := math.Sqrt(-2 * math.Log(p))
		return (((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	case p <= pHigh:
		q := p - 0.5
		r := q * q
		return (((((a[0]*r+a[1])*r+a[2])*r+a[3])*r+a[4])*r + a[5]) * q /
			(((((b[0]*r+b[1])*r+b[2])*r+b[3])*r+b[4])*r + 1)
	default:
		q := math.Sqrt(-2 * math.Log(1-p))
		return -(((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	}
}
