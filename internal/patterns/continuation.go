package patterns

import (
	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
)

// Continuation pattern predicates

// isBullishMarubozu checks for a full-bodied green candle with negligible
// wicks on both ends.
func (pd *PatternDetector) isBullishMarubozu(c market.Candle) bool {
	r := candleRange(c)
	if r == 0 || !isBull(c) {
		return false
	}
	return body(c)/r > 0.95
}

// isBearishMarubozu checks for a full-bodied red candle
func (pd *PatternDetector) isBearishMarubozu(c market.Candle) bool {
	r := candleRange(c)
	if r == 0 || !isBear(c) {
		return false
	}
	return body(c)/r > 0.95
}

// isThreeWhiteSoldiers checks for three consecutive strong green candles,
// each opening within the prior body and closing at a new high.
func (pd *PatternDetector) isThreeWhiteSoldiers(c1, c2, c3 market.Candle) bool {
	for _, c := range []market.Candle{c1, c2, c3} {
		if !isBull(c) {
			return false
		}
		if candleRange(c) == 0 || body(c) < candleRange(c)*0.6 {
			return false
		}
	}

	// Each candle opens within the previous body
	if c2.Open < c1.Open || c2.Open > c1.Close {
		return false
	}
	if c3.Open < c2.Open || c3.Open > c2.Close {
		return false
	}

	// Progressive closes
	return c2.Close > c1.Close && c3.Close > c2.Close
}

// isThreeBlackCrows checks for three consecutive strong red candles
func (pd *PatternDetector) isThreeBlackCrows(c1, c2, c3 market.Candle) bool {
	for _, c := range []market.Candle{c1, c2, c3} {
		if !isBear(c) {
			return false
		}
		if candleRange(c) == 0 || body(c) < candleRange(c)*0.6 {
			return false
		}
	}

	if c2.Open > c1.Open || c2.Open < c1.Close {
		return false
	}
	if c3.Open > c2.Open || c3.Open < c2.Close {
		return false
	}

	return c2.Close < c1.Close && c3.Close < c2.Close
}
