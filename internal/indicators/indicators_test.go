package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
)

func buildSeries(t *testing.T, candles []market.Candle) *market.Series {
	t.Helper()
	s, err := market.NewSeries(candles)
	if err != nil {
		t.Fatalf("failed to build series: %v", err)
	}
	return s
}

func flatCandles(n int, price, volume float64) []market.Candle {
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      price, High: price, Low: price, Close: price,
			Volume: volume,
		}
	}
	return out
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}

	if got := SMA(values, 5); got != 3 {
		t.Errorf("SMA(5) = %v, want 3", got)
	}
	if got := SMA(values, 2); got != 4.5 {
		t.Errorf("SMA(2) = %v, want 4.5", got)
	}
	if got := SMA(values, 6); got != 0 {
		t.Errorf("SMA with short data = %v, want 0", got)
	}
}

func TestEMAConstantSeries(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 50
	}

	if got := EMA(values, 10); math.Abs(got-50) > 1e-9 {
		t.Errorf("EMA of constant series = %v, want 50", got)
	}
	if got := EMA(values[:5], 10); got != 0 {
		t.Errorf("EMA with short data = %v, want 0", got)
	}
}

func TestRSI(t *testing.T) {
	// Monotonically rising closes have no losses
	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	if got := RSI(rising, 14); got != 100 {
		t.Errorf("RSI of rising series = %v, want 100", got)
	}

	// Falling closes should be deeply oversold
	falling := make([]float64, 20)
	for i := range falling {
		falling[i] = 100 - float64(i)
	}
	if got := RSI(falling, 14); got > 5 {
		t.Errorf("RSI of falling series = %v, want near 0", got)
	}

	// Insufficient data degrades to neutral
	if got := RSI([]float64{1, 2}, 14); got != 50 {
		t.Errorf("RSI with short data = %v, want 50", got)
	}
}

func TestMACD(t *testing.T) {
	// Uptrend: fast EMA above slow EMA, MACD positive
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
	}

	result := MACD(closes, 12, 26, 9)
	if result.MACD <= 0 {
		t.Errorf("MACD in uptrend = %v, want positive", result.MACD)
	}
	if math.Abs(result.Histogram-(result.MACD-result.Signal)) > 1e-9 {
		t.Error("histogram should equal MACD minus signal")
	}

	short := MACD(closes[:20], 12, 26, 9)
	if short.MACD != 0 || short.Signal != 0 {
		t.Error("MACD with short data should degrade to zero values")
	}
}

func TestATR(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	var candles []market.Candle
	for i := 0; i < 20; i++ {
		candles = append(candles, market.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      100, High: 102, Low: 98, Close: 100,
			Volume: 1000,
		})
	}
	s := buildSeries(t, candles)

	// Every bar has range 4 and no gaps, so ATR = 4
	if got := ATR(s, 14); math.Abs(got-4) > 1e-9 {
		t.Errorf("ATR = %v, want 4", got)
	}

	shortSeries := buildSeries(t, candles[:5])
	if got := ATR(shortSeries, 14); got != 0 {
		t.Errorf("ATR with short data = %v, want 0", got)
	}
}

func TestADXTrendingVsFlat(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

	// Strong consistent uptrend
	var trending []market.Candle
	for i := 0; i < 60; i++ {
		p := 100 + float64(i)*2
		trending = append(trending, market.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      p, High: p + 1.5, Low: p - 0.5, Close: p + 1,
			Volume: 1000,
		})
	}
	up := ADX(buildSeries(t, trending), 14)
	if up.ADX < 25 {
		t.Errorf("ADX of strong trend = %v, want >= 25", up.ADX)
	}
	if up.PlusDI <= up.MinusDI {
		t.Errorf("+DI (%v) should exceed -DI (%v) in uptrend", up.PlusDI, up.MinusDI)
	}

	// Insufficient data
	short := ADX(buildSeries(t, trending[:10]), 14)
	if short.ADX != 0 {
		t.Errorf("ADX with short data = %v, want 0", short.ADX)
	}
}

func TestBollingerBands(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100
	}

	bb := BollingerBands(closes, 20, 2.0)
	if bb.Middle != 100 || bb.Upper != 100 || bb.Lower != 100 {
		t.Errorf("flat series bands = %+v, want all 100", bb)
	}
}

func TestAverageVolume(t *testing.T) {
	candles := flatCandles(22, 100, 1000)
	// Spike on the last bar should not contaminate its own baseline
	candles[21].Volume = 9000
	s := buildSeries(t, candles)

	if got := AverageVolume(s, 20); math.Abs(got-1000) > 1e-9 {
		t.Errorf("AverageVolume = %v, want 1000", got)
	}
}

func TestFibonacciLevels(t *testing.T) {
	retr := FibonacciRetracements(280, 260)
	if len(retr) != 5 {
		t.Fatalf("expected 5 retracement levels, got %d", len(retr))
	}
	// 0.5 retracement of 260-280 is 270
	for _, l := range retr {
		if l.Ratio == 0.5 && math.Abs(l.Price-270) > 1e-9 {
			t.Errorf("0.5 retracement = %v, want 270", l.Price)
		}
	}

	ext := FibonacciExtensions(280, 260)
	// 1.618 extension from the low: 260 + 20*1.618
	for _, l := range ext {
		if l.Ratio == 1.618 && math.Abs(l.Price-292.36) > 1e-9 {
			t.Errorf("1.618 extension = %v, want 292.36", l.Price)
		}
	}
}

func TestFibonacciAnalysis(t *testing.T) {
	base := time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)
	var candles []market.Candle
	for i := 0; i < 60; i++ {
		p := 260 + float64(i%20)
		candles = append(candles, market.Candle{
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
			Open:      p, High: p + 1, Low: p - 1, Close: p,
			Volume: 1000,
		})
	}
	s := buildSeries(t, candles)

	analysis := FibonacciAnalysis(s, 300, 60)
	if analysis == nil {
		t.Fatal("expected analysis for sufficient data")
	}
	if analysis.Position != "above_swing_high" {
		t.Errorf("position = %s, want above_swing_high", analysis.Position)
	}

	if FibonacciAnalysis(s, 270, 100) != nil {
		t.Error("expected nil when lookback exceeds series length")
	}
}
