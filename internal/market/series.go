package market

import (
	"errors"
	"fmt"
	"time"
)

// Candle represents a single OHLCV bar
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Errors for series construction. Contract violations are returned from
// NewSeries; downstream analytics never see an invalid series.
var (
	ErrEmptySeries         = errors.New("price series is empty")
	ErrNonMonotonicSeries  = errors.New("candle timestamps must be strictly increasing")
	ErrNegativeVolume      = errors.New("candle volume must be non-negative")
	ErrInconsistentCandle  = errors.New("candle high/low inconsistent with open/close")
	ErrInsufficientCandles = errors.New("not enough candles for the requested window")
)

// Series is a validated, immutable sequence of candles ordered by time.
type Series struct {
	candles []Candle
}

// NewSeries validates the candles and returns an immutable Series.
// The input slice is copied so later mutation by the caller cannot
// corrupt the series.
func NewSeries(candles []Candle) (*Series, error) {
	if len(candles) == 0 {
		return nil, ErrEmptySeries
	}

	for i, c := range candles {
		if c.Volume < 0 {
			return nil, fmt.Errorf("candle %d: %w", i, ErrNegativeVolume)
		}
		if c.High < c.Open || c.High < c.Close || c.Low > c.Open || c.Low > c.Close {
			return nil, fmt.Errorf("candle %d: %w", i, ErrInconsistentCandle)
		}
		if i > 0 && !c.Timestamp.After(candles[i-1].Timestamp) {
			return nil, fmt.Errorf("candle %d: %w", i, ErrNonMonotonicSeries)
		}
	}

	cp := make([]Candle, len(candles))
	copy(cp, candles)

	return &Series{candles: cp}, nil
}

// Len returns the number of candles in the series
func (s *Series) Len() int {
	return len(s.candles)
}

// At returns the candle at index i (0 = oldest)
func (s *Series) At(i int) Candle {
	return s.candles[i]
}

// Last returns the most recent candle
func (s *Series) Last() Candle {
	return s.candles[len(s.candles)-1]
}

// Candles returns a copy of the underlying candles
func (s *Series) Candles() []Candle {
	cp := make([]Candle, len(s.candles))
	copy(cp, s.candles)
	return cp
}

// Tail returns a new Series containing the last n candles.
// Returns an error when fewer than n candles are available.
func (s *Series) Tail(n int) (*Series, error) {
	if n <= 0 || n > len(s.candles) {
		return nil, fmt.Errorf("tail of %d from %d candles: %w", n, len(s.candles), ErrInsufficientCandles)
	}
	return &Series{candles: s.candles[len(s.candles)-n:]}, nil
}

// Closes returns the close prices oldest-first
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.candles))
	for i, c := range s.candles {
		out[i] = c.Close
	}
	return out
}

// Highs returns the high prices oldest-first
func (s *Series) Highs() []float64 {
	out := make([]float64, len(s.candles))
	for i, c := range s.candles {
		out[i] = c.High
	}
	return out
}

// Lows returns the low prices oldest-first
func (s *Series) Lows() []float64 {
	out := make([]float64, len(s.candles))
	for i, c := range s.candles {
		out[i] = c.Low
	}
	return out
}

// Volumes returns the volumes oldest-first
func (s *Series) Volumes() []float64 {
	out := make([]float64, len(s.candles))
	for i, c := range s.candles {
		out[i] = c.Volume
	}
	return out
}

// TypicalPrice returns (high + low + close) / 3 for candle i
func (s *Series) TypicalPrice(i int) float64 {
	c := s.candles[i]
	return (c.High + c.Low + c.Close) / 3.0
}
