package patterns

import (
	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
)

// Reversal pattern predicates and scanning

// isBullishEngulfing checks for a bullish engulfing: a red candle followed
// by a green candle whose body engulfs it and exceeds it by the body ratio.
func (pd *PatternDetector) isBullishEngulfing(c1, c2 market.Candle) bool {
	if !isBear(c1) || !isBull(c2) {
		return false
	}
	// C2 body must completely engulf C1 body
	if c2.Open > c1.Close || c2.Close < c1.Open {
		return false
	}
	return body(c2) > body(c1)*engulfBodyRatio
}

// isBearishEngulfing checks for a bearish engulfing
func (pd *PatternDetector) isBearishEngulfing(c1, c2 market.Candle) bool {
	if !isBull(c1) || !isBear(c2) {
		return false
	}
	if c2.Open < c1.Close || c2.Close > c1.Open {
		return false
	}
	return body(c2) > body(c1)*engulfBodyRatio
}

// isHammer checks for a hammer: long lower wick, small upper wick, after a
// down candle.
func (pd *PatternDetector) isHammer(c market.Candle, prev *market.Candle) bool {
	b := body(c)
	if b == 0 || candleRange(c) == 0 {
		return false
	}
	if lowerWick(c) < b*2 || upperWick(c) > b*0.3 {
		return false
	}
	// Needs a preceding decline to reverse
	return prev == nil || isBear(*prev)
}

// isShootingStar checks for a shooting star: long upper wick, small lower
// wick, after an up candle.
func (pd *PatternDetector) isShootingStar(c market.Candle, prev *market.Candle) bool {
	b := body(c)
	if b == 0 || candleRange(c) == 0 {
		return false
	}
	if upperWick(c) < b*2 || lowerWick(c) > b*0.3 {
		return false
	}
	return prev == nil || isBull(*prev)
}

// isHangingMan has hammer geometry but forms after an advance
func (pd *PatternDetector) isHangingMan(c market.Candle, prev *market.Candle) bool {
	b := body(c)
	if b == 0 || candleRange(c) == 0 {
		return false
	}
	if lowerWick(c) < b*2 || upperWick(c) > b*0.3 {
		return false
	}
	return prev != nil && isBull(*prev)
}

// isDoji checks for a doji: body under 10% of range
func (pd *PatternDetector) isDoji(c market.Candle) bool {
	r := candleRange(c)
	if r == 0 {
		return false
	}
	return body(c)/r < pd.minBodySize
}

// isDragonflyDoji checks for a dragonfly doji (long lower wick)
func (pd *PatternDetector) isDragonflyDoji(c market.Candle) bool {
	if !pd.isDoji(c) {
		return false
	}
	r := candleRange(c)
	return lowerWick(c) > r*0.6 && upperWick(c) < r*0.15
}

// isGravestoneDoji checks for a gravestone doji (long upper wick)
func (pd *PatternDetector) isGravestoneDoji(c market.Candle) bool {
	if !pd.isDoji(c) {
		return false
	}
	r := candleRange(c)
	return upperWick(c) > r*0.6 && lowerWick(c) < r*0.15
}

// isBullishHarami checks for a small green candle inside a large red body
func (pd *PatternDetector) isBullishHarami(c1, c2 market.Candle) bool {
	if !isBear(c1) || !isBull(c2) {
		return false
	}
	if body(c1) < candleRange(c1)*0.6 {
		return false
	}
	if c2.Open < c1.Close || c2.Close > c1.Open {
		return false
	}
	return body(c2) <= body(c1)*0.5
}

// isBearishHarami checks for a small red candle inside a large green body
func (pd *PatternDetector) isBearishHarami(c1, c2 market.Candle) bool {
	if !isBull(c1) || !isBear(c2) {
		return false
	}
	if body(c1) < candleRange(c1)*0.6 {
		return false
	}
	if c2.Open > c1.Close || c2.Close < c1.Open {
		return false
	}
	return body(c2) <= body(c1)*0.5
}

// isMorningStar checks for the three-candle bullish reversal: big red, small
// star, big green closing past the midpoint of the first body.
func (pd *PatternDetector) isMorningStar(c1, c2, c3 market.Candle) bool {
	if !isBear(c1) || !isBull(c3) {
		return false
	}
	if body(c1) < candleRange(c1)*0.6 || body(c3) < candleRange(c3)*0.6 {
		return false
	}
	if body(c2) > body(c1)*0.4 {
		return false
	}
	midpoint := (c1.Open + c1.Close) / 2
	return c3.Close > midpoint
}

// isEveningStar is the bearish mirror of the morning star
func (pd *PatternDetector) isEveningStar(c1, c2, c3 market.Candle) bool {
	if !isBull(c1) || !isBear(c3) {
		return false
	}
	if body(c1) < candleRange(c1)*0.6 || body(c3) < candleRange(c3)*0.6 {
		return false
	}
	if body(c2) > body(c1)*0.4 {
		return false
	}
	midpoint := (c1.Open + c1.Close) / 2
	return c3.Close < midpoint
}

// isTweezerTop checks for two candles with matching highs, green then red
func (pd *PatternDetector) isTweezerTop(c1, c2 market.Candle) bool {
	if !isBull(c1) || !isBear(c2) {
		return false
	}
	if c1.High == 0 {
		return false
	}
	diff := c1.High - c2.High
	if diff < 0 {
		diff = -diff
	}
	return diff/c1.High < 0.001
}

// isTweezerBottom checks for two candles with matching lows, red then green
func (pd *PatternDetector) isTweezerBottom(c1, c2 market.Candle) bool {
	if !isBear(c1) || !isBull(c2) {
		return false
	}
	if c1.Low == 0 {
		return false
	}
	diff := c1.Low - c2.Low
	if diff < 0 {
		diff = -diff
	}
	return diff/c1.Low < 0.001
}

func (pd *PatternDetector) detectSingle(s *market.Series) []DetectedPattern {
	var patterns []DetectedPattern

	for i := 0; i < s.Len(); i++ {
		c := s.At(i)
		var prev *market.Candle
		if i > 0 {
			p := s.At(i - 1)
			prev = &p
		}

		switch {
		case pd.isDragonflyDoji(c):
			patterns = append(patterns, pd.newPattern(DragonflyDoji, Bullish, s, i))
		case pd.isGravestoneDoji(c):
			patterns = append(patterns, pd.newPattern(GravestoneDoji, Bearish, s, i))
		case pd.isDoji(c):
			patterns = append(patterns, pd.newPattern(Doji, Neutral, s, i))
		case pd.isHammer(c, prev):
			patterns = append(patterns, pd.newPattern(Hammer, Bullish, s, i))
		case pd.isShootingStar(c, prev):
			patterns = append(patterns, pd.newPattern(ShootingStar, Bearish, s, i))
		case pd.isHangingMan(c, prev):
			patterns = append(patterns, pd.newPattern(HangingMan, Bearish, s, i))
		case pd.isBullishMarubozu(c):
			patterns = append(patterns, pd.newPattern(BullishMarubozu, Bullish, s, i))
		case pd.isBearishMarubozu(c):
			patterns = append(patterns, pd.newPattern(BearishMarubozu, Bearish, s, i))
		}
	}

	return patterns
}

func (pd *PatternDetector) detectDouble(s *market.Series) []DetectedPattern {
	var patterns []DetectedPattern

	for i := 1; i < s.Len(); i++ {
		c1, c2 := s.At(i-1), s.At(i)

		if pd.isBullishEngulfing(c1, c2) {
			patterns = append(patterns, pd.newPattern(BullishEngulfing, Bullish, s, i))
		}
		if pd.isBearishEngulfing(c1, c2) {
			patterns = append(patterns, pd.newPattern(BearishEngulfing, Bearish, s, i))
		}
		if pd.isBullishHarami(c1, c2) {
			patterns = append(patterns, pd.newPattern(BullishHarami, Bullish, s, i))
		}
		if pd.isBearishHarami(c1, c2) {
			patterns = append(patterns, pd.newPattern(BearishHarami, Bearish, s, i))
		}
		if pd.isTweezerTop(c1, c2) {
			patterns = append(patterns, pd.newPattern(TweezerTop, Bearish, s, i))
		}
		if pd.isTweezerBottom(c1, c2) {
			patterns = append(patterns, pd.newPattern(TweezerBottom, Bullish, s, i))
		}
	}

	return patterns
}

func (pd *PatternDetector) detectTriple(s *market.Series) []DetectedPattern {
	var patterns []DetectedPattern

	for i := 2; i < s.Len(); i++ {
		c1, c2, c3 := s.At(i-2), s.At(i-1), s.At(i)

		if pd.isMorningStar(c1, c2, c3) {
			patterns = append(patterns, pd.newPattern(MorningStar, Bullish, s, i))
		}
		if pd.isEveningStar(c1, c2, c3) {
			patterns = append(patterns, pd.newPattern(EveningStar, Bearish, s, i))
		}
		if pd.isThreeWhiteSoldiers(c1, c2, c3) {
			patterns = append(patterns, pd.newPattern(ThreeWhiteSoldiers, Bullish, s, i))
		}
		if pd.isThreeBlackCrows(c1, c2, c3) {
			patterns = append(patterns, pd.newPattern(ThreeBlackCrows, Bearish, s, i))
		}
	}

	return patterns
}
