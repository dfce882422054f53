package pricing

import (
	"math"
	"testing"
	"testing/quick"

	"github.com/eddiefleurent/zero-dte-bot/internal/models"
)

// Reference scenario: S=K=100, r=2%, q=0, sigma=20%, T=0.25y.
// Values computed independently from the closed-form solution.
var refInputs = Inputs{Spot: 100, Strike: 100, Rate: 0.02, DividendYield: 0, Vol: 0.20, TimeToExpiry: 0.25}

func TestPriceReferenceScenario(t *testing.T) {
	tests := []struct {
		name     string
		right    models.OptionRight
		expected float64
	}{
		{name: "atm call", right: models.RightCall, expected: 4.2322},
		{name: "atm put", right: models.RightPut, expected: 3.7334},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Price(refInputs, tt.right)
			if math.Abs(got-tt.expected) > 1e-3 {
				t.Errorf("Price(%s) = %.4f, expected %.4f", tt.right, got, tt.expected)
			}
		})
	}
}

func TestDeltaReferenceScenario(t *testing.T) {
	callDelta := Delta(refInputs, models.RightCall)
	if math.Abs(callDelta-0.5398) > 1e-3 {
		t.Errorf("call delta = %.4f, expected 0.5398", callDelta)
	}
	putDelta := Delta(refInputs, models.RightPut)
	if math.Abs(putDelta-(-0.4602)) > 1e-3 {
		t.Errorf("put delta = %.4f, expected -0.4602", putDelta)
	}
}

func TestPutCallParity(t *testing.T) {
	// |C - P - (S e^{-qT} - K e^{-rT})| < 1e-6 across the input domain,
	// including negative rates and vol beyond 100%.
	parity := func(spotSeed, strikeSeed, rateSeed, volSeed, timeSeed float64) bool {
		in := Inputs{
			Spot:          50 + math.Mod(math.Abs(spotSeed), 400),
			Strike:        50 + math.Mod(math.Abs(strikeSeed), 400),
			Rate:          -0.05 + math.Mod(math.Abs(rateSeed), 0.15),
			DividendYield: math.Mod(math.Abs(rateSeed), 0.03),
			Vol:           0.01 + math.Mod(math.Abs(volSeed), 2.0),
			TimeToExpiry:  0.001 + math.Mod(math.Abs(timeSeed), 2.0),
		}
		call := Price(in, models.RightCall)
		put := Price(in, models.RightPut)
		forward := in.Spot*math.Exp(-in.DividendYield*in.TimeToExpiry) -
			in.Strike*math.Exp(-in.Rate*in.TimeToExpiry)
		return math.Abs(call-put-forward) < 1e-6
	}
	if err := quick.Check(parity, &quick.Config{MaxCount: 500}); err != nil {
		t.Errorf("put-call parity violated: %v", err)
	}
}

func TestPriceNonNegativeAndAboveIntrinsic(t *testing.T) {
	for _, spot := range []float64{50, 90, 100, 110, 200} {
		for _, vol := range []float64{0.05, 0.2, 0.8, 1.5} {
			for _, tte := range []float64{0.001, 0.1, 1.0} {
				in := Inputs{Spot: spot, Strike: 100, Rate: 0.02, Vol: vol, TimeToExpiry: tte}

				call := Price(in, models.RightCall)
				put := Price(in, models.RightPut)
				if call < 0 || put < 0 {
					t.Fatalf("negative price: call=%.6f put=%.6f at S=%.0f vol=%.2f T=%.3f",
						call, put, spot, vol, tte)
				}
				if call < 0.99*math.Max(0, spot-100*math.Exp(-in.Rate*tte)) {
					t.Errorf("call %.4f below intrinsic floor at S=%.0f vol=%.2f T=%.3f",
						call, spot, vol, tte)
				}
			}
		}
	}
}

func TestPriceMonotonicInVol(t *testing.T) {
	prev := -1.0
	for _, vol := range []float64{0.05, 0.1, 0.2, 0.4, 0.8, 1.6} {
		in := Inputs{Spot: 100, Strike: 105, Rate: 0.02, Vol: vol, TimeToExpiry: 0.25}
		price := Price(in, models.RightCall)
		if price < prev-1e-9 {
			t.Fatalf("call price decreased in vol: %.6f -> %.6f at vol=%.2f", prev, price, vol)
		}
		prev = price
	}
}

func TestCallPriceNonIncreasingInStrike(t *testing.T) {
	prev := math.MaxFloat64
	for _, strike := range []float64{80, 90, 100, 110, 120, 140} {
		in := Inputs{Spot: 100, Strike: strike, Rate: 0.02, Vol: 0.2, TimeToExpiry: 0.25}
		price := Price(in, models.RightCall)
		if price > prev+1e-9 {
			t.Fatalf("call price increased in strike: %.6f -> %.6f at K=%.0f", prev, price, strike)
		}
		prev = price
	}
}

func TestDegenerateInputsCollapseToIntrinsic(t *testing.T) {
	tests := []struct {
		name string
		in   Inputs
	}{
		{name: "zero time", in: Inputs{Spot: 110, Strike: 100, Rate: 0.02, Vol: 0.2, TimeToExpiry: 0}},
		{name: "zero vol", in: Inputs{Spot: 110, Strike: 100, Rate: 0.02, Vol: 0, TimeToExpiry: 0.25}},
		{name: "both zero", in: Inputs{Spot: 90, Strike: 100, Rate: 0.02, Vol: 0, TimeToExpiry: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := Price(tt.in, models.RightCall)
			put := Price(tt.in, models.RightPut)
			if math.IsNaN(call) || math.IsInf(call, 0) || math.IsNaN(put) || math.IsInf(put, 0) {
				t.Fatalf("degenerate inputs produced non-finite price: call=%v put=%v", call, put)
			}

			discCallIntrinsic := math.Max(0,
				tt.in.Spot-tt.in.Strike*math.Exp(-tt.in.Rate*math.Max(tt.in.TimeToExpiry, 0)))
			if math.Abs(call-discCallIntrinsic) > 0.01 {
				t.Errorf("call %.4f did not collapse to discounted intrinsic %.4f", call, discCallIntrinsic)
			}
		})
	}
}

func TestDeltaBounds(t *testing.T) {
	for _, spot := range []float64{60, 95, 100, 105, 160} {
		in := Inputs{Spot: spot, Strike: 100, Rate: 0.02, Vol: 0.3, TimeToExpiry: 0.1}
		callDelta := Delta(in, models.RightCall)
		if callDelta < 0 || callDelta > 1 {
			t.Errorf("call delta %.4f out of [0,1] at S=%.0f", callDelta, spot)
		}
		putDelta := Delta(in, models.RightPut)
		if putDelta < -1 || putDelta > 0 {
			t.Errorf("put delta %.4f out of [-1,0] at S=%.0f", putDelta, spot)
		}
	}
}

func TestGreeksFinite(t *testing.T) {
	in := Inputs{Spot: 100, Strike: 100, Rate: -0.01, Vol: 1.8, TimeToExpiry: 0.004}
	for name, v := range map[string]float64{
		"gamma":      Gamma(in),
		"vega":       Vega(in),
		"call theta": Theta(in, models.RightCall),
		"put theta":  Theta(in, models.RightPut),
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s is non-finite: %v", name, v)
		}
	}
}

func TestImpliedVolRoundTrip(t *testing.T) {
	in := Inputs{Spot: 450, Strike: 445, Rate: 0.03, Vol: 0.35, TimeToExpiry: 1.0 / 365}
	price := Price(in, models.RightPut)

	solved, err := ImpliedVol(in, models.RightPut, price)
	if err != nil {
		t.Fatalf("ImpliedVol failed: %v", err)
	}
	if math.Abs(solved-0.35) > 1e-4 {
		t.Errorf("implied vol round trip: got %.5f, expected 0.35000", solved)
	}
}

func TestImpliedVolRejectsBadPrice(t *testing.T) {
	if _, err := ImpliedVol(refInputs, models.RightCall, -1); err == nil {
		t.Error("expected error for negative market price")
	}
}

func TestStrikeFromDeltaRoundTrip(t *testing.T) {
	const (
		spot = 450.0
		rate = 0.03
		vol  = 0.25
		tte  = 1.0 / 365
	)

	for _, target := range []float64{-0.30, -0.15, -0.08} {
		strike := StrikeFromDelta(target, spot, rate, 0, vol, tte, models.RightPut)
		got := Delta(Inputs{Spot: spot, Strike: strike, Rate: rate, Vol: vol, TimeToExpiry: tte},
			models.RightPut)
		if math.Abs(got-target) > 1e-3 {
			t.Errorf("put strike %.2f for target delta %.2f reproduces delta %.4f", strike, target, got)
		}
	}

	for _, target := range []float64{0.30, 0.15, 0.08} {
		strike := StrikeFromDelta(target, spot, rate, 0, vol, tte, models.RightCall)
		got := Delta(Inputs{Spot: spot, Strike: strike, Rate: rate, Vol: vol, TimeToExpiry: tte},
			models.RightCall)
		if math.Abs(got-target) > 1e-3 {
			t.Errorf("call strike %.2f for target delta %.2f reproduces delta %.4f", strike, target, got)
		}
	}
}
