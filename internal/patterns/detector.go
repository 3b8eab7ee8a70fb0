package patterns

import (
	"math"
	"time"

	"github.com/Waleed-Khalil/trade-analyzer/internal/indicators"
	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
)

// PatternType identifies a candlestick pattern
type PatternType string

const (
	BullishEngulfing   PatternType = "bullish_engulfing"
	BearishEngulfing   PatternType = "bearish_engulfing"
	Hammer             PatternType = "hammer"
	ShootingStar       PatternType = "shooting_star"
	HangingMan         PatternType = "hanging_man"
	Doji               PatternType = "doji"
	DragonflyDoji      PatternType = "dragonfly_doji"
	GravestoneDoji     PatternType = "gravestone_doji"
	BullishHarami      PatternType = "bullish_harami"
	BearishHarami      PatternType = "bearish_harami"
	MorningStar        PatternType = "morning_star"
	EveningStar        PatternType = "evening_star"
	ThreeWhiteSoldiers PatternType = "three_white_soldiers"
	ThreeBlackCrows    PatternType = "three_black_crows"
	BullishMarubozu    PatternType = "bullish_marubozu"
	BearishMarubozu    PatternType = "bearish_marubozu"
	TweezerTop         PatternType = "tweezer_top"
	TweezerBottom      PatternType = "tweezer_bottom"
)

// Direction of the signal a pattern implies
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// DetectedPattern represents a pattern found in the series
type DetectedPattern struct {
	Type            PatternType `json:"type"`
	Direction       Direction   `json:"direction"`
	CandleIndex     int         `json:"candle_index"`
	DetectedAt      time.Time   `json:"detected_at"`
	Strength        float64     `json:"strength"` // 0-100
	VolumeConfirmed bool        `json:"volume_confirmed"`
}

// Base strengths per pattern before volume and context adjustments
var baseStrength = map[PatternType]float64{
	BullishEngulfing:   75,
	BearishEngulfing:   75,
	Hammer:             70,
	ShootingStar:       70,
	HangingMan:         65,
	Doji:               50,
	DragonflyDoji:      60,
	GravestoneDoji:     60,
	BullishHarami:      60,
	BearishHarami:      60,
	MorningStar:        80,
	EveningStar:        80,
	ThreeWhiteSoldiers: 80,
	ThreeBlackCrows:    80,
	BullishMarubozu:    65,
	BearishMarubozu:    65,
	TweezerTop:         60,
	TweezerBottom:      60,
}

// Context adjustments
const (
	volumeConfirmBonus = 10
	atZoneBonus        = 15
	trendAlignedBonus  = 10
	engulfBodyRatio    = 1.1
	volumeConfirmRatio = 1.2
)

// PatternDetector detects candlestick patterns
type PatternDetector struct {
	minBodySize  float64 // minimum body as fraction of range for "real" candles
	volumePeriod int
}

// NewPatternDetector creates a detector. A non-positive minBodySize falls
// back to 0.1.
func NewPatternDetector(minBodySize float64) *PatternDetector {
	if minBodySize <= 0 {
		minBodySize = 0.1
	}
	return &PatternDetector{minBodySize: minBodySize, volumePeriod: 20}
}

// Detect scans the whole series for patterns. Base strength is adjusted by
// volume confirmation (latest volume above 1.2x the 20-bar average) and
// clamped to [0, 100].
func (pd *PatternDetector) Detect(s *market.Series) []DetectedPattern {
	var patterns []DetectedPattern

	patterns = append(patterns, pd.detectSingle(s)...)
	patterns = append(patterns, pd.detectDouble(s)...)
	patterns = append(patterns, pd.detectTriple(s)...)

	avgVol := indicators.AverageVolume(s, pd.volumePeriod)
	for i := range patterns {
		c := s.At(patterns[i].CandleIndex)
		if avgVol > 0 && c.Volume > avgVol*volumeConfirmRatio {
			patterns[i].VolumeConfirmed = true
			patterns[i].Strength = clampStrength(patterns[i].Strength + volumeConfirmBonus)
		}
	}

	return patterns
}

// DetectLatest returns only patterns whose final candle is the most recent
// bar, which is what entry and exit decisions key on.
func (pd *PatternDetector) DetectLatest(s *market.Series) []DetectedPattern {
	all := pd.Detect(s)
	last := s.Len() - 1

	var latest []DetectedPattern
	for _, p := range all {
		if p.CandleIndex == last {
			latest = append(latest, p)
		}
	}
	return latest
}

// ApplyContext boosts a pattern's strength when it forms at a zone or in the
// direction of the prevailing trend. The result is clamped to [0, 100].
func ApplyContext(p DetectedPattern, atZone, trendAligned bool) DetectedPattern {
	if atZone {
		p.Strength = clampStrength(p.Strength + atZoneBonus)
	}
	if trendAligned {
		p.Strength = clampStrength(p.Strength + trendAlignedBonus)
	}
	return p
}

func (pd *PatternDetector) newPattern(t PatternType, dir Direction, s *market.Series, idx int) DetectedPattern {
	return DetectedPattern{
		Type:        t,
		Direction:   dir,
		CandleIndex: idx,
		DetectedAt:  s.At(idx).Timestamp,
		Strength:    baseStrength[t],
	}
}

func clampStrength(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// Candle geometry helpers

func body(c market.Candle) float64 {
	return math.Abs(c.Close - c.Open)
}

func upperWick(c market.Candle) float64 {
	return c.High - math.Max(c.Open, c.Close)
}

func lowerWick(c market.Candle) float64 {
	return math.Min(c.Open, c.Close) - c.Low
}

func candleRange(c market.Candle) float64 {
	return c.High - c.Low
}

func isBull(c market.Candle) bool {
	return c.Close > c.Open
}

func isBear(c market.Candle) bool {
	return c.Close < c.Open
}
