package patterns

import (
	"math"

	"github.com/Waleed-Khalil/trade-analyzer/internal/indicators"
	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
)

// Exit signal detection around key price levels

// ExitSignalKind distinguishes the two level interactions
type ExitSignalKind string

const (
	ExitBreakout  ExitSignalKind = "breakout"
	ExitRejection ExitSignalKind = "rejection"
)

// ExitSignal describes a level interaction on the most recent candle
type ExitSignal struct {
	Kind         ExitSignalKind `json:"kind"`
	Level        float64        `json:"level"`
	NewStop      float64        `json:"new_stop,omitempty"`      // breakout only
	ExitFraction float64        `json:"exit_fraction,omitempty"` // rejection only, 0-1
	Strength     float64        `json:"strength"`
	Pattern      PatternType    `json:"pattern,omitempty"`
	Reason       string         `json:"reason"`
}

// Breakout and rejection thresholds
const (
	breakoutLevelPct   = 0.005 // close must clear the level by 0.5%
	breakoutVolRatio   = 1.5
	breakoutStopPct    = 0.005 // new stop sits 0.5% behind the level
	rejectionNearPct   = 0.005 // extreme must reach within 0.5% of the level
	rejectionWickRatio = 0.70
)

// CheckBreakout reports whether the latest candle broke through the level
// with conviction: close beyond level by 0.5% on volume above 1.5x the
// 20-bar average. For Bullish positions the level is resistance overhead;
// for Bearish it is support below. On a breakout the protective stop moves
// to 0.5% behind the broken level.
func (pd *PatternDetector) CheckBreakout(s *market.Series, level float64, dir Direction) *ExitSignal {
	avgVol := indicators.AverageVolume(s, pd.volumePeriod)
	if avgVol == 0 {
		return nil
	}

	last := s.Last()
	if last.Volume <= avgVol*breakoutVolRatio {
		return nil
	}

	switch dir {
	case Bullish:
		if last.Close > level*(1+breakoutLevelPct) {
			return &ExitSignal{
				Kind:     ExitBreakout,
				Level:    level,
				NewStop:  level * (1 - breakoutStopPct),
				Strength: 80,
				Reason:   "volume-backed close above resistance",
			}
		}
	case Bearish:
		if last.Close < level*(1-breakoutLevelPct) {
			return &ExitSignal{
				Kind:     ExitBreakout,
				Level:    level,
				NewStop:  level * (1 + breakoutStopPct),
				Strength: 80,
				Reason:   "volume-backed close below support",
			}
		}
	}

	return nil
}

// CheckRejection reports whether the latest candles rejected the level.
// For Bullish positions, a rejection at resistance pairs the level touch
// with a bearish reversal signature: bearish engulfing exits 75% of the
// position, shooting star 60%, a long opposing wick 50%. Bearish positions
// mirror at support. Rejections outrank breakouts; callers must consult
// this before CheckBreakout.
func (pd *PatternDetector) CheckRejection(s *market.Series, level float64, dir Direction) *ExitSignal {
	if s.Len() < 2 {
		return nil
	}

	last := s.Last()
	prev := s.At(s.Len() - 2)

	switch dir {
	case Bullish:
		// The high must reach the resistance level
		if math.Abs(last.High-level)/level > rejectionNearPct {
			return nil
		}
		if pd.isBearishEngulfing(prev, last) {
			return &ExitSignal{
				Kind: ExitRejection, Level: level,
				ExitFraction: 0.75, Strength: 90,
				Pattern: BearishEngulfing,
				Reason:  "bearish engulfing at resistance",
			}
		}
		if pd.isShootingStar(last, &prev) {
			return &ExitSignal{
				Kind: ExitRejection, Level: level,
				ExitFraction: 0.60, Strength: 75,
				Pattern: ShootingStar,
				Reason:  "shooting star at resistance",
			}
		}
		if r := candleRange(last); r > 0 && upperWick(last)/r > rejectionWickRatio {
			return &ExitSignal{
				Kind: ExitRejection, Level: level,
				ExitFraction: 0.50, Strength: 65,
				Reason: "long upper wick rejection at resistance",
			}
		}
	case Bearish:
		if math.Abs(last.Low-level)/level > rejectionNearPct {
			return nil
		}
		if pd.isBullishEngulfing(prev, last) {
			return &ExitSignal{
				Kind: ExitRejection, Level: level,
				ExitFraction: 0.75, Strength: 90,
				Pattern: BullishEngulfing,
				Reason:  "bullish engulfing at support",
			}
		}
		if pd.isHammer(last, &prev) {
			return &ExitSignal{
				Kind: ExitRejection, Level: level,
				ExitFraction: 0.60, Strength: 75,
				Pattern: Hammer,
				Reason:  "hammer at support",
			}
		}
		if r := candleRange(last); r > 0 && lowerWick(last)/r > rejectionWickRatio {
			return &ExitSignal{
				Kind: ExitRejection, Level: level,
				ExitFraction: 0.50, Strength: 65,
				Reason: "long lower wick rejection at support",
			}
		}
	}

	return nil
}

// CheckLevel applies rejection precedence: a rejection at the level wins
// over a simultaneous breakout reading.
func (pd *PatternDetector) CheckLevel(s *market.Series, level float64, dir Direction) *ExitSignal {
	if sig := pd.CheckRejection(s, level, dir); sig != nil {
		return sig
	}
	return pd.CheckBreakout(s, level, dir)
}
