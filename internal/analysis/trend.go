package analysis

import (
	"github.com/Waleed-Khalil/trade-analyzer/internal/indicators"
	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
)

// TrendDirection represents the direction of the market trend
type TrendDirection string

const (
	TrendUp       TrendDirection = "uptrend"
	TrendDown     TrendDirection = "downtrend"
	TrendSideways TrendDirection = "sideways"
)

// ADX thresholds separating trending from directionless tape
const (
	adxStrongTrend = 25.0
	adxNoTrend     = 20.0
)

// MarketStructure represents the current market structure derived from
// swing sequencing and directional movement.
type MarketStructure struct {
	Direction    TrendDirection `json:"direction"`
	Strength     float64        `json:"strength"` // 0-100
	ADX          float64        `json:"adx"`
	HigherHighs  int            `json:"higher_highs"`
	HigherLows   int            `json:"higher_lows"`
	LowerHighs   int            `json:"lower_highs"`
	LowerLows    int            `json:"lower_lows"`
	SwingHighs   []SwingPoint   `json:"swing_highs"`
	SwingLows    []SwingPoint   `json:"swing_lows"`
	ADXConfirmed bool           `json:"adx_confirmed"`
}

// TrendAnalyzer determines trend direction and strength
type TrendAnalyzer struct {
	swingWindow int
	adxPeriod   int
}

// NewTrendAnalyzer creates a trend analyzer. A non-positive window falls
// back to the default.
func NewTrendAnalyzer(swingWindow int) *TrendAnalyzer {
	if swingWindow <= 0 {
		swingWindow = DefaultSwingWindow
	}
	return &TrendAnalyzer{swingWindow: swingWindow, adxPeriod: 14}
}

// Analyze derives market structure from the swing sequence and blends in
// ADX. Structure alone yields strength 80 when both higher highs and higher
// lows dominate, 60 when only one does, 40 for sideways. ADX below 20
// overrides structure to sideways; ADX at or above 25 marks the trend as
// confirmed.
func (ta *TrendAnalyzer) Analyze(s *market.Series) *MarketStructure {
	highs := FindSwingHighs(s, ta.swingWindow)
	lows := FindSwingLows(s, ta.swingWindow)

	ms := &MarketStructure{
		SwingHighs: highs,
		SwingLows:  lows,
	}

	for i := 1; i < len(highs); i++ {
		if highs[i].Price > highs[i-1].Price {
			ms.HigherHighs++
		} else {
			ms.LowerHighs++
		}
	}
	for i := 1; i < len(lows); i++ {
		if lows[i].Price > lows[i-1].Price {
			ms.HigherLows++
		} else {
			ms.LowerLows++
		}
	}

	hh := ms.HigherHighs > ms.LowerHighs
	hl := ms.HigherLows > ms.LowerLows
	lh := ms.LowerHighs > ms.HigherHighs
	ll := ms.LowerLows > ms.HigherLows

	switch {
	case hh && hl:
		ms.Direction = TrendUp
		ms.Strength = 80
	case lh && ll:
		ms.Direction = TrendDown
		ms.Strength = 80
	case hh || hl:
		ms.Direction = TrendUp
		ms.Strength = 60
	case lh || ll:
		ms.Direction = TrendDown
		ms.Strength = 60
	default:
		ms.Direction = TrendSideways
		ms.Strength = 40
	}

	adx := indicators.ADX(s, ta.adxPeriod)
	ms.ADX = adx.ADX

	if adx.ADX > 0 {
		if adx.ADX < adxNoTrend {
			ms.Direction = TrendSideways
			ms.Strength = 40
		} else if adx.ADX >= adxStrongTrend {
			ms.ADXConfirmed = true
		}
	}

	return ms
}

// TimeframeAlignment summarizes agreement across timeframes
type TimeframeAlignment struct {
	Directions map[market.Timeframe]TrendDirection `json:"directions"`
	Aligned    bool                                `json:"aligned"`
	Direction  TrendDirection                      `json:"direction"`
}

// AlignTimeframes analyzes each timeframe and reports whether the trending
// timeframes agree. Alignment requires at least two trending timeframes
// pointing the same way and none pointing the other way.
func (ta *TrendAnalyzer) AlignTimeframes(mts *market.MultiTimeframeSeries) *TimeframeAlignment {
	alignment := &TimeframeAlignment{
		Directions: make(map[market.Timeframe]TrendDirection),
		Direction:  TrendSideways,
	}

	var up, down int
	for tf, series := range mts.Data {
		ms := ta.Analyze(series)
		alignment.Directions[tf] = ms.Direction
		switch ms.Direction {
		case TrendUp:
			up++
		case TrendDown:
			down++
		}
	}

	switch {
	case up >= 2 && down == 0:
		alignment.Aligned = true
		alignment.Direction = TrendUp
	case down >= 2 && up == 0:
		alignment.Aligned = true
		alignment.Direction = TrendDown
	case up > down:
		alignment.Direction = TrendUp
	case down > up:
		alignment.Direction = TrendDown
	}

	return alignment
}
