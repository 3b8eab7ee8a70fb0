package patterns

import (
	"testing"
	"time"

	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
)

func seriesFrom(t *testing.T, candles []market.Candle) *market.Series {
	t.Helper()
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	for i := range candles {
		candles[i].Timestamp = base.Add(time.Duration(i) * time.Hour)
	}
	s, err := market.NewSeries(candles)
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	return s
}

// TestBullishEngulfing tests Bullish Engulfing pattern detection
func TestBullishEngulfing(t *testing.T) {
	detector := NewPatternDetector(0.1)

	// Valid Bullish Engulfing
	c1 := market.Candle{Open: 100, High: 102, Low: 98, Close: 99}  // Bearish
	c2 := market.Candle{Open: 98, High: 105, Low: 97, Close: 104} // Bullish engulfing

	if !detector.isBullishEngulfing(c1, c2) {
		t.Error("Should detect valid Bullish Engulfing pattern")
	}

	// Invalid - C1 not bearish
	c1Invalid := market.Candle{Open: 99, High: 102, Low: 98, Close: 100}
	if detector.isBullishEngulfing(c1Invalid, c2) {
		t.Error("Should NOT detect pattern when C1 is not bearish")
	}

	// Invalid - C2 doesn't engulf C1
	c2Invalid := market.Candle{Open: 99.5, High: 101, Low: 99, Close: 100.5}
	if detector.isBullishEngulfing(c1, c2Invalid) {
		t.Error("Should NOT detect pattern when C2 doesn't engulf C1")
	}

	// Invalid - C2 body barely exceeds C1 body
	c2Small := market.Candle{Open: 98.9, High: 101, Low: 98.5, Close: 100.05}
	if detector.isBullishEngulfing(c1, c2Small) {
		t.Error("Should NOT detect pattern without a dominant C2 body")
	}
}

// TestBearishEngulfing tests Bearish Engulfing pattern detection
func TestBearishEngulfing(t *testing.T) {
	detector := NewPatternDetector(0.1)

	c1 := market.Candle{Open: 99, High: 102, Low: 98, Close: 100}  // Bullish
	c2 := market.Candle{Open: 101, High: 103, Low: 95, Close: 96} // Bearish engulfing

	if !detector.isBearishEngulfing(c1, c2) {
		t.Error("Should detect valid Bearish Engulfing pattern")
	}

	if detector.isBearishEngulfing(c2, c1) {
		t.Error("Should NOT detect pattern with candles reversed")
	}
}

// TestHammerAndShootingStar tests single-candle wick reversals
func TestHammerAndShootingStar(t *testing.T) {
	detector := NewPatternDetector(0.1)

	down := market.Candle{Open: 103, High: 103.5, Low: 101, Close: 101.5} // Bearish
	up := market.Candle{Open: 98, High: 100.2, Low: 97.8, Close: 100}     // Bullish

	hammer := market.Candle{Open: 100, High: 101.2, Low: 97, Close: 101}
	if !detector.isHammer(hammer, &down) {
		t.Error("Should detect Hammer after a down candle")
	}
	if detector.isHammer(hammer, &up) {
		t.Error("Should NOT detect Hammer after an up candle")
	}

	star := market.Candle{Open: 101, High: 104, Low: 100.94, Close: 100.95}
	if !detector.isShootingStar(star, &up) {
		t.Error("Should detect Shooting Star after an up candle")
	}

	// Hanging man needs an advance before it
	if !detector.isHangingMan(hammer, &up) {
		t.Error("Should detect Hanging Man after an up candle")
	}
	if detector.isHangingMan(hammer, &down) {
		t.Error("Should NOT detect Hanging Man after a down candle")
	}
}

// TestDojiFamily tests doji variants
func TestDojiFamily(t *testing.T) {
	detector := NewPatternDetector(0.1)

	doji := market.Candle{Open: 100, High: 101, Low: 99, Close: 100.05}
	if !detector.isDoji(doji) {
		t.Error("Should detect valid Doji pattern")
	}

	notDoji := market.Candle{Open: 100, High: 110, Low: 98, Close: 108}
	if detector.isDoji(notDoji) {
		t.Error("Should NOT detect Doji with large body")
	}

	dragonfly := market.Candle{Open: 100, High: 100.05, Low: 99, Close: 100.02}
	if !detector.isDragonflyDoji(dragonfly) {
		t.Error("Should detect Dragonfly Doji with dominant lower wick")
	}

	gravestone := market.Candle{Open: 100, High: 101, Low: 99.95, Close: 99.98}
	if !detector.isGravestoneDoji(gravestone) {
		t.Error("Should detect Gravestone Doji with dominant upper wick")
	}
}

// TestHarami tests harami detection
func TestHarami(t *testing.T) {
	detector := NewPatternDetector(0.1)

	big := market.Candle{Open: 105, High: 105.5, Low: 99.5, Close: 100}   // Large bearish
	inside := market.Candle{Open: 101, High: 102.5, Low: 100.8, Close: 102} // Small bullish inside

	if !detector.isBullishHarami(big, inside) {
		t.Error("Should detect Bullish Harami")
	}

	outside := market.Candle{Open: 99, High: 106.5, Low: 98.5, Close: 106}
	if detector.isBullishHarami(big, outside) {
		t.Error("Should NOT detect Harami when C2 escapes C1 body")
	}

	bigUp := market.Candle{Open: 100, High: 105.5, Low: 99.5, Close: 105}
	insideDown := market.Candle{Open: 104, High: 104.2, Low: 102.5, Close: 103}
	if !detector.isBearishHarami(bigUp, insideDown) {
		t.Error("Should detect Bearish Harami")
	}
}

// TestStarPatterns tests the three-candle star reversals
func TestStarPatterns(t *testing.T) {
	detector := NewPatternDetector(0.1)

	// Morning Star: big red, small star, big green past the midpoint
	c1 := market.Candle{Open: 110, High: 110.5, Low: 99.5, Close: 100}
	c2 := market.Candle{Open: 99, High: 100.2, Low: 98.8, Close: 100}
	c3 := market.Candle{Open: 100, High: 109.5, Low: 99.8, Close: 109}

	if !detector.isMorningStar(c1, c2, c3) {
		t.Error("Should detect Morning Star")
	}

	// Weak third candle failing the midpoint
	c3Weak := market.Candle{Open: 100, High: 103.2, Low: 99.8, Close: 103}
	if detector.isMorningStar(c1, c2, c3Weak) {
		t.Error("Should NOT detect Morning Star when C3 stops short of the midpoint")
	}

	// Evening Star mirrors
	e1 := market.Candle{Open: 100, High: 110.5, Low: 99.5, Close: 110}
	e2 := market.Candle{Open: 111, High: 112.2, Low: 110.8, Close: 112}
	e3 := market.Candle{Open: 110, High: 110.2, Low: 100.5, Close: 101}
	if !detector.isEveningStar(e1, e2, e3) {
		t.Error("Should detect Evening Star")
	}
}

// TestSoldiersAndCrows tests triple continuation patterns
func TestSoldiersAndCrows(t *testing.T) {
	detector := NewPatternDetector(0.1)

	s1 := market.Candle{Open: 100, High: 105.5, Low: 99.8, Close: 105}
	s2 := market.Candle{Open: 103, High: 108.5, Low: 102.8, Close: 108}
	s3 := market.Candle{Open: 106, High: 111.5, Low: 105.8, Close: 111}

	if !detector.isThreeWhiteSoldiers(s1, s2, s3) {
		t.Error("Should detect Three White Soldiers")
	}

	// Gap open outside the prior body breaks the pattern
	s3Gap := market.Candle{Open: 109, High: 114.5, Low: 108.8, Close: 114}
	if detector.isThreeWhiteSoldiers(s1, s2, s3Gap) {
		t.Error("Should NOT detect pattern when C3 opens outside C2 body")
	}

	b1 := market.Candle{Open: 111, High: 111.2, Low: 105.5, Close: 106}
	b2 := market.Candle{Open: 108, High: 108.2, Low: 102.5, Close: 103}
	b3 := market.Candle{Open: 105, High: 105.2, Low: 99.5, Close: 100}
	if !detector.isThreeBlackCrows(b1, b2, b3) {
		t.Error("Should detect Three Black Crows")
	}
}

// TestMarubozuAndTweezers tests full-body and matching-extreme patterns
func TestMarubozuAndTweezers(t *testing.T) {
	detector := NewPatternDetector(0.1)

	if !detector.isBullishMarubozu(market.Candle{Open: 100, High: 105.1, Low: 99.95, Close: 105}) {
		t.Error("Should detect Bullish Marubozu")
	}
	if detector.isBullishMarubozu(market.Candle{Open: 100, High: 107, Low: 99, Close: 105}) {
		t.Error("Should NOT detect Marubozu with meaningful wicks")
	}

	top1 := market.Candle{Open: 100, High: 103, Low: 99.5, Close: 102}
	top2 := market.Candle{Open: 102, High: 103, Low: 99.8, Close: 100}
	if !detector.isTweezerTop(top1, top2) {
		t.Error("Should detect Tweezer Top on matching highs")
	}

	bot1 := market.Candle{Open: 102, High: 102.5, Low: 99, Close: 100}
	bot2 := market.Candle{Open: 100, High: 102.8, Low: 99, Close: 102}
	if !detector.isTweezerBottom(bot1, bot2) {
		t.Error("Should detect Tweezer Bottom on matching lows")
	}
}

// TestDetectLatestVolumeConfirmation tests the series-level scan and the
// volume bonus on the triggering candle.
func TestDetectLatestVolumeConfirmation(t *testing.T) {
	detector := NewPatternDetector(0.1)

	candles := make([]market.Candle, 0, 23)
	for i := 0; i < 21; i++ {
		candles = append(candles, market.Candle{Open: 100, High: 100.8, Low: 99.4, Close: 100.5, Volume: 1000})
	}
	// Bearish setup candle then a bullish engulfing on heavy volume
	candles = append(candles, market.Candle{Open: 101, High: 101.5, Low: 99.8, Close: 100, Volume: 1000})
	candles = append(candles, market.Candle{Open: 99.5, High: 103.5, Low: 99.2, Close: 103, Volume: 2500})

	s := seriesFrom(t, candles)
	latest := detector.DetectLatest(s)

	var engulf *DetectedPattern
	for i := range latest {
		if latest[i].Type == BullishEngulfing {
			engulf = &latest[i]
		}
	}
	if engulf == nil {
		t.Fatal("Should detect Bullish Engulfing on the final candle")
	}
	if engulf.CandleIndex != s.Len()-1 {
		t.Errorf("Expected pattern on last candle, got index %d", engulf.CandleIndex)
	}
	if !engulf.VolumeConfirmed {
		t.Error("Pattern on 2.5x average volume should be volume confirmed")
	}
	if engulf.Strength != 85 {
		t.Errorf("Expected strength 85 after volume bonus, got %.1f", engulf.Strength)
	}
}

// TestApplyContext tests zone and trend bonuses with clamping
func TestApplyContext(t *testing.T) {
	p := DetectedPattern{Type: MorningStar, Strength: 80}

	boosted := ApplyContext(p, true, true)
	if boosted.Strength != 100 {
		t.Errorf("Expected strength clamped to 100, got %.1f", boosted.Strength)
	}

	zoneOnly := ApplyContext(DetectedPattern{Strength: 60}, true, false)
	if zoneOnly.Strength != 75 {
		t.Errorf("Expected 75 with zone bonus, got %.1f", zoneOnly.Strength)
	}
}

// TestCheckBreakout tests volume-backed level breaks
func TestCheckBreakout(t *testing.T) {
	detector := NewPatternDetector(0.1)
	level := 100.0

	candles := make([]market.Candle, 0, 22)
	for i := 0; i < 21; i++ {
		candles = append(candles, market.Candle{Open: 99, High: 99.5, Low: 98.5, Close: 99, Volume: 1000})
	}
	candles = append(candles, market.Candle{Open: 99.5, High: 101, Low: 99.4, Close: 100.8, Volume: 2000})

	s := seriesFrom(t, candles)
	sig := detector.CheckBreakout(s, level, Bullish)
	if sig == nil {
		t.Fatal("Should signal breakout on 0.8% close-through with 2x volume")
	}
	if sig.Kind != ExitBreakout {
		t.Errorf("Expected breakout kind, got %s", sig.Kind)
	}
	if sig.NewStop != level*0.995 {
		t.Errorf("Expected stop at %.2f, got %.2f", level*0.995, sig.NewStop)
	}

	// Same close on average volume is not a breakout
	weak := append([]market.Candle{}, candles...)
	weak[len(weak)-1].Volume = 1000
	if detector.CheckBreakout(seriesFrom(t, weak), level, Bullish) != nil {
		t.Error("Should NOT signal breakout without a volume surge")
	}

	// Close short of the buffer is not a breakout
	shallow := append([]market.Candle{}, candles...)
	shallow[len(shallow)-1].Close = 100.3
	if detector.CheckBreakout(seriesFrom(t, shallow), level, Bullish) != nil {
		t.Error("Should NOT signal breakout inside the 0.5% buffer")
	}
}

// TestCheckRejection tests reversal signatures at a resistance level
func TestCheckRejection(t *testing.T) {
	detector := NewPatternDetector(0.1)
	level := 100.0

	// Bearish engulfing whose high tags the level
	engulfed := seriesFrom(t, []market.Candle{
		{Open: 97, High: 99.2, Low: 96.8, Close: 99, Volume: 1000},
		{Open: 99.2, High: 99.8, Low: 96.3, Close: 96.5, Volume: 1500},
	})
	sig := detector.CheckRejection(engulfed, level, Bullish)
	if sig == nil {
		t.Fatal("Should signal rejection on bearish engulfing at resistance")
	}
	if sig.Pattern != BearishEngulfing || sig.ExitFraction != 0.75 || sig.Strength != 90 {
		t.Errorf("Expected engulfing rejection 75%%/90, got %s %.2f/%.1f",
			sig.Pattern, sig.ExitFraction, sig.Strength)
	}

	// Shooting star at the level
	star := seriesFrom(t, []market.Candle{
		{Open: 98, High: 99.3, Low: 97.8, Close: 99.2, Volume: 1000},
		{Open: 99.2, High: 99.9, Low: 99.08, Close: 99.1, Volume: 1200},
	})
	sig = detector.CheckRejection(star, level, Bullish)
	if sig == nil || sig.Pattern != ShootingStar {
		t.Fatal("Should signal shooting star rejection at resistance")
	}
	if sig.ExitFraction != 0.60 || sig.Strength != 75 {
		t.Errorf("Expected star rejection 60%%/75, got %.2f/%.1f", sig.ExitFraction, sig.Strength)
	}

	// Long upper wick without a named pattern
	wick := seriesFrom(t, []market.Candle{
		{Open: 97, High: 99.3, Low: 96.8, Close: 99, Volume: 1000},
		{Open: 99, High: 99.9, Low: 98.7, Close: 98.8, Volume: 1100},
	})
	sig = detector.CheckRejection(wick, level, Bullish)
	if sig == nil {
		t.Fatal("Should signal wick rejection at resistance")
	}
	if sig.ExitFraction != 0.50 || sig.Strength != 65 {
		t.Errorf("Expected wick rejection 50%%/65, got %.2f/%.1f", sig.ExitFraction, sig.Strength)
	}

	// High stays away from the level: no rejection
	far := seriesFrom(t, []market.Candle{
		{Open: 96, High: 97.2, Low: 95.8, Close: 97, Volume: 1000},
		{Open: 97.2, High: 97.8, Low: 94.3, Close: 94.5, Volume: 1500},
	})
	if detector.CheckRejection(far, level, Bullish) != nil {
		t.Error("Should NOT signal rejection when the high never reaches the level")
	}
}

// TestCheckLevelPrecedence tests that a rejection outranks a breakout read
func TestCheckLevelPrecedence(t *testing.T) {
	detector := NewPatternDetector(0.1)
	level := 100.0

	candles := make([]market.Candle, 0, 23)
	for i := 0; i < 21; i++ {
		candles = append(candles, market.Candle{Open: 98, High: 98.8, Low: 97.4, Close: 98.5, Volume: 1000})
	}
	candles = append(candles, market.Candle{Open: 97, High: 99.2, Low: 96.8, Close: 99, Volume: 1000})
	// Heavy-volume bearish engulfing tagging the level
	candles = append(candles, market.Candle{Open: 99.2, High: 99.8, Low: 96.3, Close: 96.5, Volume: 3000})

	sig := detector.CheckLevel(seriesFrom(t, candles), level, Bullish)
	if sig == nil {
		t.Fatal("Should produce a signal at the level")
	}
	if sig.Kind != ExitRejection {
		t.Errorf("Rejection should take precedence, got %s", sig.Kind)
	}
}
