package market

import (
	"errors"
	"testing"
	"time"
)

func candleAt(t time.Time, o, h, l, c, v float64) Candle {
	return Candle{Timestamp: t, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestNewSeriesValidation(t *testing.T) {
	base := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

	valid := []Candle{
		candleAt(base, 100, 102, 99, 101, 5000),
		candleAt(base.Add(time.Minute), 101, 103, 100, 102, 6000),
	}

	s, err := NewSeries(valid)
	if err != nil {
		t.Fatalf("valid series rejected: %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 candles, got %d", s.Len())
	}

	// Empty input
	if _, err := NewSeries(nil); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("expected ErrEmptySeries, got %v", err)
	}

	// Duplicate timestamp
	dup := []Candle{
		candleAt(base, 100, 102, 99, 101, 5000),
		candleAt(base, 101, 103, 100, 102, 6000),
	}
	if _, err := NewSeries(dup); !errors.Is(err, ErrNonMonotonicSeries) {
		t.Errorf("expected ErrNonMonotonicSeries for duplicate timestamps, got %v", err)
	}

	// Out of order
	ooo := []Candle{
		candleAt(base.Add(time.Minute), 100, 102, 99, 101, 5000),
		candleAt(base, 101, 103, 100, 102, 6000),
	}
	if _, err := NewSeries(ooo); !errors.Is(err, ErrNonMonotonicSeries) {
		t.Errorf("expected ErrNonMonotonicSeries for out-of-order timestamps, got %v", err)
	}

	// Negative volume
	negVol := []Candle{candleAt(base, 100, 102, 99, 101, -1)}
	if _, err := NewSeries(negVol); !errors.Is(err, ErrNegativeVolume) {
		t.Errorf("expected ErrNegativeVolume, got %v", err)
	}

	// High below close
	badHigh := []Candle{candleAt(base, 100, 100.5, 99, 101, 5000)}
	if _, err := NewSeries(badHigh); !errors.Is(err, ErrInconsistentCandle) {
		t.Errorf("expected ErrInconsistentCandle, got %v", err)
	}
}

func TestSeriesImmutability(t *testing.T) {
	base := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	input := []Candle{
		candleAt(base, 100, 102, 99, 101, 5000),
		candleAt(base.Add(time.Minute), 101, 103, 100, 102, 6000),
	}

	s, err := NewSeries(input)
	if err != nil {
		t.Fatal(err)
	}

	// Mutating the caller's slice must not change the series
	input[0].Close = 999
	if s.At(0).Close != 101 {
		t.Error("series shares memory with the input slice")
	}

	// Mutating the returned copy must not change the series either
	out := s.Candles()
	out[1].Close = 999
	if s.At(1).Close != 102 {
		t.Error("Candles() exposes internal storage")
	}
}

func TestSeriesTail(t *testing.T) {
	base := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	var candles []Candle
	for i := 0; i < 10; i++ {
		candles = append(candles, candleAt(base.Add(time.Duration(i)*time.Minute), 100, 102, 99, 101, 5000))
	}

	s, err := NewSeries(candles)
	if err != nil {
		t.Fatal(err)
	}

	tail, err := s.Tail(3)
	if err != nil {
		t.Fatal(err)
	}
	if tail.Len() != 3 {
		t.Errorf("expected tail of 3, got %d", tail.Len())
	}
	if !tail.At(0).Timestamp.Equal(base.Add(7 * time.Minute)) {
		t.Error("tail does not start at the right candle")
	}

	if _, err := s.Tail(11); !errors.Is(err, ErrInsufficientCandles) {
		t.Errorf("expected ErrInsufficientCandles, got %v", err)
	}
}

func TestMultiTimeframeSeries(t *testing.T) {
	base := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

	mts, err := NewMultiTimeframeSeries("SPY", map[Timeframe][]Candle{
		TF5m: {candleAt(base, 100, 102, 99, 101, 5000)},
		TF1h: {candleAt(base, 100, 104, 98, 103, 50000)},
	})
	if err != nil {
		t.Fatalf("valid multi-timeframe input rejected: %v", err)
	}
	if mts.Get(TF5m) == nil || mts.Get(TF1h) == nil {
		t.Error("expected both timeframes present")
	}
	if mts.Get(TF1d) != nil {
		t.Error("expected nil for absent timeframe")
	}

	// One bad timeframe fails the whole snapshot
	_, err = NewMultiTimeframeSeries("SPY", map[Timeframe][]Candle{
		TF5m: {candleAt(base, 100, 102, 99, 101, 5000)},
		TF1h: {candleAt(base, 100, 102, 99, 101, -5)},
	})
	if err == nil {
		t.Error("expected error for invalid timeframe data")
	}
}

func TestSeriesCache(t *testing.T) {
	base := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	s, err := NewSeries([]Candle{candleAt(base, 100, 102, 99, 101, 5000)})
	if err != nil {
		t.Fatal(err)
	}

	cache := NewSeriesCache()
	if cache.Get("SPY", TF5m) != nil {
		t.Error("expected miss on empty cache")
	}

	cache.Set("SPY", TF5m, s)
	if cache.Get("SPY", TF5m) == nil {
		t.Error("expected hit after Set")
	}
	if cache.Get("QQQ", TF5m) != nil {
		t.Error("expected miss for different symbol")
	}
}
