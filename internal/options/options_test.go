package options

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
)

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f", name, got, want)
	}
}

// TestBlackScholesPrice tests pricing against known reference values
func TestBlackScholesPrice(t *testing.T) {
	// S=100, K=100, T=1y, r=5%, sigma=20%
	call, err := Price(Call, 100, 100, 1, 0.05, 0.20)
	if err != nil {
		t.Fatalf("call price: %v", err)
	}
	approx(t, "call price", call, 10.4506, 0.001)

	put, err := Price(Put, 100, 100, 1, 0.05, 0.20)
	if err != nil {
		t.Fatalf("put price: %v", err)
	}
	approx(t, "put price", put, 5.5735, 0.001)

	// Put-call parity: C - P = S - K*exp(-rT)
	parity := 100 - 100*math.Exp(-0.05)
	approx(t, "put-call parity", call-put, parity, 1e-9)

	// Expired contract prices at intrinsic
	expired, err := Price(Call, 120, 100, 0, 0.05, 0.20)
	if err != nil {
		t.Fatalf("expired price: %v", err)
	}
	approx(t, "expired intrinsic", expired, 20, 1e-9)

	if _, err := Price(Call, 0, 100, 1, 0.05, 0.20); !errors.Is(err, ErrInvalidInputs) {
		t.Error("Zero spot should be rejected")
	}
}

// TestGreeks tests the sensitivity set at the money
func TestGreeks(t *testing.T) {
	g, err := ComputeGreeks(Call, 100, 100, 1, 0.05, 0.20)
	if err != nil {
		t.Fatalf("greeks: %v", err)
	}

	approx(t, "call delta", g.Delta, 0.6368, 0.001)
	approx(t, "gamma", g.Gamma, 0.01876, 0.0005)
	approx(t, "vega", g.Vega, 0.3752, 0.001)
	if g.Theta >= 0 {
		t.Errorf("Long call theta should be negative, got %.4f", g.Theta)
	}

	p, err := ComputeGreeks(Put, 100, 100, 1, 0.05, 0.20)
	if err != nil {
		t.Fatalf("put greeks: %v", err)
	}
	approx(t, "put delta", p.Delta, g.Delta-1, 1e-9)
	approx(t, "gamma parity", p.Gamma, g.Gamma, 1e-9)
}

// TestProbabilityOfProfit tests N(d2) and the put mirror
func TestProbabilityOfProfit(t *testing.T) {
	pop, err := ProbabilityOfProfit(Call, 100, 100, 1, 0.05, 0.20)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	approx(t, "call pop", pop, 0.5596, 0.001)

	putPop, err := ProbabilityOfProfit(Put, 100, 100, 1, 0.05, 0.20)
	if err != nil {
		t.Fatalf("put pop: %v", err)
	}
	approx(t, "pop complement", pop+putPop, 1, 1e-9)

	if _, err := ProbabilityOfProfit(Call, 100, 100, 0, 0.05, 0.20); !errors.Is(err, ErrInvalidInputs) {
		t.Error("Zero time should be rejected")
	}
}

// TestImpliedVolatility tests the round trip through the bisection solver
func TestImpliedVolatility(t *testing.T) {
	target := 0.32
	price, err := Price(Call, 105, 100, 0.25, RiskFreeRate, target)
	if err != nil {
		t.Fatalf("price: %v", err)
	}

	iv, err := ImpliedVolatility(Call, 105, 100, 0.25, RiskFreeRate, price)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	approx(t, "recovered iv", iv, target, 1e-4)

	// Price at or below intrinsic has no volatility solution
	if _, err := ImpliedVolatility(Call, 120, 100, 0.25, RiskFreeRate, 19); !errors.Is(err, ErrBelowIntrinsic) {
		t.Error("Sub-intrinsic price should be rejected")
	}
	if _, err := ImpliedVolatility(Call, 100, 100, 0.25, RiskFreeRate, 0); !errors.Is(err, ErrInvalidInputs) {
		t.Error("Zero market price should be rejected")
	}
}

// TestStressScenarios tests repricing across underlying moves
func TestStressScenarios(t *testing.T) {
	entry, err := Price(Call, 100, 100, 0.25, RiskFreeRate, 0.30)
	if err != nil {
		t.Fatalf("entry price: %v", err)
	}

	rows, err := StressScenarios(Call, 100, 100, entry, 0.25, RiskFreeRate, 0.30, 2, 500, []float64{-0.05, 0, 0.05})
	if err != nil {
		t.Fatalf("scenarios: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 scenarios, got %d", len(rows))
	}
	if rows[0].PL >= 0 {
		t.Errorf("5%% drop should lose money on a long call, got %.2f", rows[0].PL)
	}
	approx(t, "flat scenario", rows[1].PL, 0, 1e-6)
	if rows[2].PL <= 0 {
		t.Errorf("5%% rally should profit, got %.2f", rows[2].PL)
	}
	approx(t, "return on risk", rows[2].ReturnOnRisk, rows[2].PL/500*100, 1e-9)
}

// TestIVRank tests percentile placement in the historical range
func TestIVRank(t *testing.T) {
	history := make([]float64, 30)
	for i := range history {
		history[i] = 0.10 + 0.01*float64(i) // 0.10 .. 0.39
	}

	rank, err := IVRank(0.245, history)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	approx(t, "mid rank", rank, 50, 0.01)

	// Clamped above the range
	rank, err = IVRank(0.80, history)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	approx(t, "clamped rank", rank, 100, 1e-9)

	// Flat history reads neutral
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 0.25
	}
	rank, err = IVRank(0.25, flat)
	if err != nil {
		t.Fatalf("flat rank: %v", err)
	}
	approx(t, "flat rank", rank, 50, 1e-9)

	if _, err := IVRank(0.25, history[:20]); !errors.Is(err, ErrInsufficientIVHistory) {
		t.Error("Short history should be rejected")
	}
}

// TestHistoricalIVs tests IV reconstruction from priced observations
func TestHistoricalIVs(t *testing.T) {
	obs := make([]IVObservation, 0, 35)
	for i := 0; i < 35; i++ {
		days := 60 - i
		spot := 100 + float64(i%5)
		price, err := Price(Call, spot, 100, DaysToYears(days), RiskFreeRate, 0.30)
		if err != nil {
			t.Fatalf("price obs %d: %v", i, err)
		}
		obs = append(obs, IVObservation{Spot: spot, OptionClose: price, DaysToExpiry: days})
	}

	ivs, err := HistoricalIVs(Call, 100, RiskFreeRate, obs)
	if err != nil {
		t.Fatalf("historical ivs: %v", err)
	}
	if len(ivs) < minIVSamples {
		t.Fatalf("Expected at least %d samples, got %d", minIVSamples, len(ivs))
	}
	for _, iv := range ivs {
		if math.Abs(iv-0.30) > 1e-3 {
			t.Fatalf("Recovered IV %.4f should be near 0.30", iv)
		}
	}

	if _, err := HistoricalIVs(Call, 100, RiskFreeRate, obs[:10]); !errors.Is(err, ErrInsufficientIVHistory) {
		t.Error("Too few observations should be rejected")
	}
}

// TestRealizedVolatility tests annualized log-return volatility
func TestRealizedVolatility(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]market.Candle, 40)
	for i := range candles {
		// Constant closes carry zero variance
		candles[i] = market.Candle{
			Timestamp: base.AddDate(0, 0, i),
			Open:      100, High: 100.5, Low: 99.5, Close: 100, Volume: 1000,
		}
	}
	s, err := market.NewSeries(candles)
	if err != nil {
		t.Fatalf("series: %v", err)
	}

	hv, err := RealizedVolatility(s, 30)
	if err != nil {
		t.Fatalf("realized vol: %v", err)
	}
	approx(t, "flat series vol", hv, 0, 1e-9)

	short, err := market.NewSeries(candles[:10])
	if err != nil {
		t.Fatalf("short series: %v", err)
	}
	if _, err := RealizedVolatility(short, 30); !errors.Is(err, ErrInsufficientCloses) {
		t.Error("Short series should be rejected")
	}
}

// TestStrikeContext tests moneyness labels
func TestStrikeContext(t *testing.T) {
	m, err := StrikeContext(Call, 110, 100)
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if !m.ITM || m.Pct != 9.1 {
		t.Errorf("Expected 9.1%% ITM call, got %+v", m)
	}
	if m.Label != "9.1% ITM call" {
		t.Errorf("Unexpected label %q", m.Label)
	}

	p, err := StrikeContext(Put, 110, 100)
	if err != nil {
		t.Fatalf("put context: %v", err)
	}
	if p.ITM || p.Label != "9.1% OTM put" {
		t.Errorf("Expected 9.1%% OTM put, got %+v", p)
	}
}

// TestPremiumDiffPct tests quote drift measurement
func TestPremiumDiffPct(t *testing.T) {
	diff, ok := PremiumDiffPct(2.00, 2.30)
	if !ok || diff != 15.0 {
		t.Errorf("Expected +15.0%%, got %.1f ok=%v", diff, ok)
	}
	if _, ok := PremiumDiffPct(0, 2.30); ok {
		t.Error("Zero quote should not produce a diff")
	}
}
