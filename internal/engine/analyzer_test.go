package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
	"github.com/Waleed-Khalil/trade-analyzer/internal/options"
	"github.com/Waleed-Khalil/trade-analyzer/internal/risk"
	"github.com/Waleed-Khalil/trade-analyzer/internal/scoring"
)

// uptrendCandles builds a rising series with enough wave structure for
// swings and zones to register.
func uptrendCandles(n int) []market.Candle {
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	candles := make([]market.Candle, 0, n)
	for i := 0; i < n; i++ {
		c := 80 + 0.3*float64(i) + 1.5*math.Sin(float64(i)/4)
		candles = append(candles, market.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      c - 0.2,
			High:      c + 0.4,
			Low:       c - 0.6,
			Close:     c,
			Volume:    1000 + 50*float64(i%7),
		})
	}
	return candles
}

func callRequest() Request {
	return Request{
		Setup: scoring.TradeSetup{
			Ticker:  "AAPL",
			Type:    options.Call,
			Strike:  105,
			Premium: 1.69,
			DTE:     30,
			Spot:    100,
		},
		Primary: market.TF1d,
		Candles: map[market.Timeframe][]market.Candle{
			market.TF1d: uptrendCandles(80),
		},
		Account: AccountState{Value: 100000},
	}
}

// TestAnalyzeFullDocument tests the happy path end to end
func TestAnalyzeFullDocument(t *testing.T) {
	a := NewAnalyzer(risk.DefaultConfig())

	doc, err := a.Analyze(context.Background(), callRequest())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if doc.ID == "" {
		t.Error("Analysis should carry an ID")
	}
	if doc.Trend == nil {
		t.Fatal("Trend should be available on 80 bars")
	}
	if doc.ATR <= 0 {
		t.Errorf("ATR should be positive, got %.4f", doc.ATR)
	}
	if doc.Volume == nil {
		t.Error("Volume state should be available")
	}
	if doc.ImpliedVol == nil {
		t.Fatal("IV should solve for a sane premium")
	}
	if *doc.ImpliedVol <= 0.01 || *doc.ImpliedVol >= 5.0 {
		t.Errorf("Solved IV %.4f outside a sane band", *doc.ImpliedVol)
	}
	if doc.Greeks == nil || doc.Greeks.Delta <= 0 {
		t.Errorf("A call should carry a positive delta, got %+v", doc.Greeks)
	}
	if doc.PoP == nil || *doc.PoP <= 0 || *doc.PoP >= 1 {
		t.Errorf("PoP should be a probability, got %+v", doc.PoP)
	}
	if doc.Moneyness == nil || doc.Moneyness.ITM {
		t.Errorf("A 105 strike over 100 spot is OTM, got %+v", doc.Moneyness)
	}

	if doc.Score.Final < 0 || doc.Score.Final > 100 {
		t.Errorf("Score %.1f outside [0, 100]", doc.Score.Final)
	}
	if doc.Score.Grade == "" || doc.Score.Recommendation == "" {
		t.Error("Score should carry grade and recommendation")
	}

	if doc.Plan == nil {
		t.Fatal("A valid setup should produce a plan")
	}
	if doc.Plan.Position.Contracts < 1 {
		t.Errorf("Plan should size at least 1 contract, got %d", doc.Plan.Position.Contracts)
	}
	if doc.Sizing == nil {
		t.Error("Account value should trigger the composite sizer")
	}
	if doc.Targets == nil {
		t.Error("A solved IV should produce target recommendations")
	}
	if doc.ExitPlan == nil || len(doc.ExitPlan.Levels) == 0 {
		t.Error("Exit ladder should have levels")
	}
	if len(doc.Scenarios) != 5 {
		t.Errorf("Expected 5 stress scenarios, got %d", len(doc.Scenarios))
	}

	if doc.Summary == "" || doc.MarketContext == "" {
		t.Error("Summary and market context should be populated")
	}
	if doc.SetupQuality != "high" && doc.SetupQuality != "medium" && doc.SetupQuality != "low" {
		t.Errorf("Unknown setup quality %q", doc.SetupQuality)
	}
	if doc.Confidence < 0 || doc.Confidence > 1 {
		t.Errorf("Confidence %.2f outside [0, 1]", doc.Confidence)
	}
}

// TestAnalyzeRequestValidation tests the fail-loud request checks
func TestAnalyzeRequestValidation(t *testing.T) {
	a := NewAnalyzer(risk.DefaultConfig())

	req := callRequest()
	req.Setup.Premium = 0
	if _, err := a.Analyze(context.Background(), req); !errors.Is(err, ErrMissingSetup) {
		t.Error("Zero premium should be rejected")
	}

	req = callRequest()
	req.Candles = nil
	if _, err := a.Analyze(context.Background(), req); !errors.Is(err, ErrNoCandles) {
		t.Error("Missing candles should be rejected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Analyze(ctx, callRequest()); !errors.Is(err, ErrContextCanceled) {
		t.Error("Canceled context should be rejected")
	}
}

// TestAnalyzeDegradesWithoutIV tests that a broken premium still yields a
// scored document.
func TestAnalyzeDegradesWithoutIV(t *testing.T) {
	a := NewAnalyzer(risk.DefaultConfig())

	req := callRequest()
	req.Setup.Type = options.Put
	req.Setup.Strike = 120
	req.Setup.Premium = 1.00 // far below the 20.00 intrinsic floor

	doc, err := a.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("analyze should degrade, not fail: %v", err)
	}
	if doc.ImpliedVol != nil || doc.Greeks != nil {
		t.Error("Sub-intrinsic premium should leave option math empty")
	}
	if doc.Plan == nil {
		t.Error("The risk plan does not depend on the IV solve")
	}
	if doc.Targets != nil {
		t.Error("Targets require a solved IV")
	}
}

func TestMomentum(t *testing.T) {
	candles := uptrendCandles(10)
	s, err := market.NewSeries(candles)
	if err != nil {
		t.Fatalf("series: %v", err)
	}

	want := (candles[9].Close - candles[4].Close) / candles[4].Close * 100
	if got := momentum(s, 5); math.Abs(got-want) > 1e-9 {
		t.Errorf("momentum = %.4f, want %.4f", got, want)
	}

	short, _ := market.NewSeries(candles[:4])
	if momentum(short, 5) != 0 {
		t.Error("Short series momentum should be 0")
	}
}

func TestAssessQuality(t *testing.T) {
	high := scoring.ScoreBreakdown{
		GreenFlags: []scoring.Flag{
			{Severity: scoring.SeverityMedium, Message: "a"},
			{Severity: scoring.SeverityMedium, Message: "b"},
		},
	}
	if q := assessQuality(high); q != "high" {
		t.Errorf("Two green flags should read high, got %s", q)
	}

	low := scoring.ScoreBreakdown{
		RedFlags: []scoring.Flag{{Severity: scoring.SeverityHigh, Message: "x"}},
	}
	if q := assessQuality(low); q != "low" {
		t.Errorf("A high-severity red flag should read low, got %s", q)
	}

	if q := assessQuality(scoring.ScoreBreakdown{}); q != "medium" {
		t.Errorf("No flags should read medium, got %s", q)
	}
}

func TestConfidence(t *testing.T) {
	goPlan := &risk.TradePlan{GoNoGo: "GO"}

	// Clean GO trade gets the capped boost
	if c := confidence(goPlan, nil); c != 0.95 {
		t.Errorf("Clean GO should be 0.95, got %.2f", c)
	}

	flags := []scoring.Flag{
		{Severity: scoring.SeverityHigh},
		{Severity: scoring.SeverityMedium},
	}
	if c := confidence(goPlan, flags); math.Abs(c-0.45) > 1e-9 {
		t.Errorf("High plus medium should land at 0.45, got %.2f", c)
	}

	// Info flags cost nothing
	if c := confidence(goPlan, []scoring.Flag{{Severity: scoring.SeverityInfo}}); c != 0.95 {
		t.Errorf("Info flags should not erode confidence, got %.2f", c)
	}

	// Confidence never goes negative
	many := make([]scoring.Flag, 5)
	for i := range many {
		many[i] = scoring.Flag{Severity: scoring.SeverityHigh}
	}
	if c := confidence(nil, many); c != 0 {
		t.Errorf("Floor is 0, got %.2f", c)
	}
}
