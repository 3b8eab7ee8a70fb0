package analysis

import (
	"math"
	"time"

	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
)

// FVGType labels the direction of a fair value gap
type FVGType string

const (
	FVGBullish FVGType = "bullish"
	FVGBearish FVGType = "bearish"
)

// FVG is a three-candle price imbalance. The zone between Top and Bottom
// saw no trading; price tends to revisit it.
type FVG struct {
	Type      FVGType    `json:"type"`
	Top       float64    `json:"top"`
	Bottom    float64    `json:"bottom"`
	GapPct    float64    `json:"gap_pct"`
	CreatedAt time.Time  `json:"created_at"`
	Index     int        `json:"-"`
	Filled    bool       `json:"filled"`
	FilledAt  *time.Time `json:"filled_at,omitempty"`
}

// FVGDetector finds fair value gaps in a candle series
type FVGDetector struct {
	minGapPct float64
}

// NewFVGDetector creates a detector. Gaps smaller than minGapPct of
// price are ignored; zero falls back to 0.1%.
func NewFVGDetector(minGapPct float64) *FVGDetector {
	if minGapPct <= 0 {
		minGapPct = 0.1
	}
	return &FVGDetector{minGapPct: minGapPct}
}

// Detect scans the series for gaps and marks each one filled if any
// later candle traded back into the zone.
func (fd *FVGDetector) Detect(s *market.Series) []FVG {
	if s == nil || s.Len() < 3 {
		return nil
	}

	var fvgs []FVG
	for i := 0; i+2 < s.Len(); i++ {
		c1 := s.At(i)
		c2 := s.At(i + 1)
		c3 := s.At(i + 2)

		if c1.High < c3.Low {
			gapPct := (c3.Low - c1.High) / c1.High * 100
			if gapPct >= fd.minGapPct {
				fvgs = append(fvgs, FVG{
					Type:      FVGBullish,
					Top:       c3.Low,
					Bottom:    c1.High,
					GapPct:    gapPct,
					CreatedAt: c2.Timestamp,
					Index:     i + 1,
				})
			}
		}

		if c1.Low > c3.High {
			gapPct := (c1.Low - c3.High) / c3.High * 100
			if gapPct >= fd.minGapPct {
				fvgs = append(fvgs, FVG{
					Type:      FVGBearish,
					Top:       c1.Low,
					Bottom:    c3.High,
					GapPct:    gapPct,
					CreatedAt: c2.Timestamp,
					Index:     i + 1,
				})
			}
		}
	}

	for i := range fvgs {
		fd.markFilled(&fvgs[i], s)
	}
	return fvgs
}

// markFilled scans candles after the gap for a wick back into the zone
func (fd *FVGDetector) markFilled(fvg *FVG, s *market.Series) {
	for i := fvg.Index + 2; i < s.Len(); i++ {
		c := s.At(i)
		var fill bool
		if fvg.Type == FVGBullish {
			fill = c.Low <= fvg.Top && c.Low >= fvg.Bottom
		} else {
			fill = c.High >= fvg.Bottom && c.High <= fvg.Top
		}
		if fill {
			fvg.Filled = true
			at := c.Timestamp
			fvg.FilledAt = &at
			return
		}
	}
}

// Unfilled keeps only open gaps
func Unfilled(fvgs []FVG) []FVG {
	var open []FVG
	for _, f := range fvgs {
		if !f.Filled {
			open = append(open, f)
		}
	}
	return open
}

// PriceInFVG reports whether price sits inside the gap zone
func PriceInFVG(price float64, fvg FVG) bool {
	return price >= fvg.Bottom && price <= fvg.Top
}

// PriceNearFVG reports whether price is inside or within proximityPct of
// the gap's own height from either edge
func PriceNearFVG(price float64, fvg FVG, proximityPct float64) bool {
	if PriceInFVG(price, fvg) {
		return true
	}
	threshold := (fvg.Top - fvg.Bottom) * proximityPct / 100
	return math.Abs(price-fvg.Top) <= threshold || math.Abs(price-fvg.Bottom) <= threshold
}
