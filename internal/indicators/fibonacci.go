package indicators

import (
	"math"

	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
)

// ============================================================================
// FIBONACCI RETRACEMENTS & EXTENSIONS
// ============================================================================

// Standard ratios
var (
	retracementRatios = []float64{0.236, 0.382, 0.5, 0.618, 0.786}
	extensionRatios   = []float64{1.272, 1.414, 1.618, 2.618}
)

// FibLevel is a single Fibonacci level
type FibLevel struct {
	Ratio float64 `json:"ratio"`
	Price float64 `json:"price"`
}

// FibAnalysis holds retracement and extension levels for a swing
type FibAnalysis struct {
	SwingHigh    float64    `json:"swing_high"`
	SwingLow     float64    `json:"swing_low"`
	SwingRange   float64    `json:"swing_range"`
	CurrentPrice float64    `json:"current_price"`
	Position     string     `json:"position"`
	Retracements []FibLevel `json:"retracements"`
	Extensions   []FibLevel `json:"extensions"`
}

// FibonacciRetracements calculates retracement levels measured down from
// the swing high.
func FibonacciRetracements(swingHigh, swingLow float64) []FibLevel {
	swingRange := swingHigh - swingLow
	levels := make([]FibLevel, 0, len(retracementRatios))
	for _, r := range retracementRatios {
		levels = append(levels, FibLevel{Ratio: r, Price: swingHigh - swingRange*r})
	}
	return levels
}

// FibonacciExtensions calculates extension levels measured up from the
// swing low, used for targets beyond the prior swing.
func FibonacciExtensions(swingHigh, swingLow float64) []FibLevel {
	swingRange := swingHigh - swingLow
	levels := make([]FibLevel, 0, len(extensionRatios))
	for _, r := range extensionRatios {
		levels = append(levels, FibLevel{Ratio: r, Price: swingLow + swingRange*r})
	}
	return levels
}

// FibonacciAnalysis finds the swing over the lookback window and maps the
// current price onto the retracement grid. Returns nil when the series is
// shorter than the lookback.
func FibonacciAnalysis(s *market.Series, currentPrice float64, lookback int) *FibAnalysis {
	if s == nil || s.Len() < lookback {
		return nil
	}

	swingHigh := s.At(s.Len() - lookback).High
	swingLow := s.At(s.Len() - lookback).Low
	for i := s.Len() - lookback; i < s.Len(); i++ {
		if s.At(i).High > swingHigh {
			swingHigh = s.At(i).High
		}
		if s.At(i).Low < swingLow {
			swingLow = s.At(i).Low
		}
	}

	retracements := FibonacciRetracements(swingHigh, swingLow)

	position := "between_levels"
	switch {
	case currentPrice >= swingHigh:
		position = "above_swing_high"
	case currentPrice <= swingLow:
		position = "below_swing_low"
	default:
		for _, level := range retracements {
			if math.Abs(currentPrice-level.Price)/currentPrice < 0.01 {
				position = "at_fib_level"
				break
			}
		}
	}

	return &FibAnalysis{
		SwingHigh:    swingHigh,
		SwingLow:     swingLow,
		SwingRange:   swingHigh - swingLow,
		CurrentPrice: currentPrice,
		Position:     position,
		Retracements: retracements,
		Extensions:   FibonacciExtensions(swingHigh, swingLow),
	}
}
