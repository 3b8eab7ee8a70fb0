package analysis

import (
	"time"

	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
)

// SwingType identifies the kind of swing point
type SwingType string

const (
	SwingHigh SwingType = "high"
	SwingLow  SwingType = "low"
)

// SwingPoint represents a local extreme in price
type SwingPoint struct {
	Price       float64   `json:"price"`
	CandleIndex int       `json:"candle_index"`
	Timestamp   time.Time `json:"timestamp"`
	Type        SwingType `json:"type"`
}

// DefaultSwingWindow is the number of candles on each side that must not
// exceed the candidate extreme.
const DefaultSwingWindow = 5

// FindSwingHighs identifies swing highs using a centered window. A candle is
// a swing high when its high strictly exceeds every high within window
// candles on both sides.
func FindSwingHighs(s *market.Series, window int) []SwingPoint {
	if window <= 0 {
		window = DefaultSwingWindow
	}

	var swings []SwingPoint
	for i := window; i < s.Len()-window; i++ {
		h := s.At(i).High
		isSwing := true
		for j := i - window; j <= i+window; j++ {
			if j == i {
				continue
			}
			if s.At(j).High >= h {
				isSwing = false
				break
			}
		}
		if isSwing {
			swings = append(swings, SwingPoint{
				Price:       h,
				CandleIndex: i,
				Timestamp:   s.At(i).Timestamp,
				Type:        SwingHigh,
			})
		}
	}

	return swings
}

// FindSwingLows identifies swing lows using a centered window
func FindSwingLows(s *market.Series, window int) []SwingPoint {
	if window <= 0 {
		window = DefaultSwingWindow
	}

	var swings []SwingPoint
	for i := window; i < s.Len()-window; i++ {
		l := s.At(i).Low
		isSwing := true
		for j := i - window; j <= i+window; j++ {
			if j == i {
				continue
			}
			if s.At(j).Low <= l {
				isSwing = false
				break
			}
		}
		if isSwing {
			swings = append(swings, SwingPoint{
				Price:       l,
				CandleIndex: i,
				Timestamp:   s.At(i).Timestamp,
				Type:        SwingLow,
			})
		}
	}

	return swings
}
