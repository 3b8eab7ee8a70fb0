package analysis

import (
	"testing"
	"time"

	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
)

func fvgCandles(bars [][3]float64) []market.Candle {
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	candles := make([]market.Candle, 0, len(bars))
	for i, b := range bars {
		open, high, low := b[0], b[1], b[2]
		candles = append(candles, market.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      open, High: high, Low: low, Close: (high + low) / 2,
			Volume: 5000,
		})
	}
	return candles
}

func TestDetectBullishFVG(t *testing.T) {
	// Candle 0 tops at 100, candle 2 bottoms at 102: a 2% gap
	s := mustSeries(t, fvgCandles([][3]float64{
		{99, 100, 98},
		{101, 103, 99},
		{103, 105, 102},
		{104, 106, 103},
	}))

	fvgs := NewFVGDetector(0.5).Detect(s)
	if len(fvgs) != 1 {
		t.Fatalf("expected 1 FVG, got %d", len(fvgs))
	}
	f := fvgs[0]
	if f.Type != FVGBullish {
		t.Errorf("expected bullish gap, got %s", f.Type)
	}
	if f.Bottom != 100 || f.Top != 102 {
		t.Errorf("expected zone [100, 102], got [%.2f, %.2f]", f.Bottom, f.Top)
	}
	if f.Filled {
		t.Error("gap should be open, price never came back")
	}
}

func TestDetectBearishFVG(t *testing.T) {
	// Candle 0 bottoms at 100, candle 2 tops at 98
	s := mustSeries(t, fvgCandles([][3]float64{
		{101, 102, 100},
		{99, 100.5, 97},
		{97, 98, 96},
		{96, 97, 95},
	}))

	fvgs := NewFVGDetector(0.5).Detect(s)
	if len(fvgs) != 1 {
		t.Fatalf("expected 1 FVG, got %d", len(fvgs))
	}
	if fvgs[0].Type != FVGBearish {
		t.Errorf("expected bearish gap, got %s", fvgs[0].Type)
	}
}

func TestFVGFilledByLaterWick(t *testing.T) {
	// Bullish gap [100, 102], then a wick down to 101 fills it
	s := mustSeries(t, fvgCandles([][3]float64{
		{99, 100, 98},
		{101, 103, 99},
		{103, 105, 102},
		{104, 106, 103},
		{103, 104, 101},
	}))

	fvgs := NewFVGDetector(0.5).Detect(s)
	if len(fvgs) != 1 {
		t.Fatalf("expected 1 FVG, got %d", len(fvgs))
	}
	if !fvgs[0].Filled {
		t.Fatal("expected the wick to 101 to fill the gap")
	}
	if fvgs[0].FilledAt == nil {
		t.Error("filled gap should carry a fill time")
	}
	if len(Unfilled(fvgs)) != 0 {
		t.Error("Unfilled should drop the filled gap")
	}
}

func TestFVGMinGapFilter(t *testing.T) {
	// Gap of 0.2% is below a 0.5% threshold
	s := mustSeries(t, fvgCandles([][3]float64{
		{99.5, 100, 99},
		{100.1, 100.3, 99.9},
		{100.3, 100.5, 100.2},
	}))

	if fvgs := NewFVGDetector(0.5).Detect(s); len(fvgs) != 0 {
		t.Errorf("expected gap below threshold to be ignored, got %d", len(fvgs))
	}
}

func TestPriceInAndNearFVG(t *testing.T) {
	fvg := FVG{Type: FVGBullish, Bottom: 100, Top: 102}

	if !PriceInFVG(101, fvg) {
		t.Error("101 should be inside [100, 102]")
	}
	if PriceInFVG(99, fvg) {
		t.Error("99 should be outside the zone")
	}
	// Zone height 2, proximity 25% => within 0.5 of an edge
	if !PriceNearFVG(102.4, fvg, 25) {
		t.Error("102.4 should be near the top edge")
	}
	if PriceNearFVG(103.5, fvg, 25) {
		t.Error("103.5 should be out of range")
	}
}
