package scoring

import (
	"fmt"
	"math"

	"github.com/Waleed-Khalil/trade-analyzer/internal/analysis"
	"github.com/Waleed-Khalil/trade-analyzer/internal/options"
	"github.com/Waleed-Khalil/trade-analyzer/internal/patterns"
)

// TradeSetup is the contract under evaluation
type TradeSetup struct {
	Ticker  string             `json:"ticker"`
	Type    options.OptionType `json:"option_type"`
	Strike  float64            `json:"strike"`
	Premium float64            `json:"premium"`
	DTE     int                `json:"dte"`
	Spot    float64            `json:"spot"`
}

// SetupContext carries the upstream analysis feeding the score. Nil fields
// mean the corresponding input was unavailable; the dependent terms are
// skipped and surfaced as info flags, never errors.
type SetupContext struct {
	Trend           *analysis.MarketStructure
	Alignment       *analysis.TimeframeAlignment
	SupportZones    []analysis.Zone // nearest first
	ResistanceZones []analysis.Zone // nearest first
	TopPattern      *patterns.DetectedPattern
	Volume          *analysis.VolumeState
	Momentum5D      float64 // trailing 5-bar close change, percent
	PoP             *float64
	IVRank          *float64
}

// ScoreBreakdown names every term that produced the final score
type ScoreBreakdown struct {
	Base         float64 `json:"base"`
	RuleBonus    float64 `json:"rule_bonus"`
	GreenBonus   float64 `json:"green_bonus"`
	RedPenalty   float64 `json:"red_penalty"`
	PatternBonus float64 `json:"pattern_bonus"`
	TrendBonus   float64 `json:"trend_bonus"`
	Final        float64 `json:"final"`

	Grade          string `json:"grade"`
	Recommendation string `json:"recommendation"`
	Label          string `json:"label"`

	RedFlags   []Flag `json:"red_flags"`
	GreenFlags []Flag `json:"green_flags"`
}

// Scoring weights
const (
	scoreBase = 50.0

	ruleComplianceBonus = 5.0
	greenBonusCap       = 30.0

	otmFarPenalty      = 15.0
	otmModeratePenalty = 5.0
	itmBonus           = 10.0
	atmBonus           = 5.0
	otmFarPct          = 5.0
	otmModeratePct     = 2.0

	atZonePenalty     = 20.0
	nearZonePenalty   = 10.0
	putSupportPenalty = 15.0
	supportBonus      = 10.0

	trendAlignBonus     = 15.0
	counterTrendPenalty = 15.0
	mtfAlignBonus       = 10.0

	momentumBonus    = 10.0
	momentumPct      = 3.0
	volumeBonus      = 5.0
	lowVolumePenalty = 5.0
	lowVolumeRatio   = 0.7

	shortDTEPenalty = 10.0
	shortDTE        = 3
	goodDTEBonus    = 5.0
	goodDTE         = 7

	minPremium         = 0.50
	thinPremiumPenalty = 10.0
	richPremium        = 2.00
	richPremiumBonus   = 5.0

	conflictPatternPenalty = 10.0
	alignedPatternBonus    = 10.0

	popFloor      = 0.30
	lowPoPPenalty = 10.0
	highIVRank    = 70.0
	highIVPenalty = 5.0
	lowIVRank     = 30.0
	cheapIVBonus  = 5.0
)

// SetupScorer turns a trade and its analysis context into a 0-100 score
type SetupScorer struct {
	base float64
}

// NewSetupScorer creates a scorer starting from the neutral base
func NewSetupScorer() *SetupScorer {
	return &SetupScorer{base: scoreBase}
}

// Score evaluates the setup. Every contributing term lands in the
// breakdown, every observation becomes a flag, and the final value is
// clamped to [0, 100].
func (ss *SetupScorer) Score(setup TradeSetup, ctx SetupContext) ScoreBreakdown {
	b := ScoreBreakdown{Base: ss.base}

	bullish := setup.Type != options.Put

	ss.scoreStrike(setup, bullish, &b)
	ss.scoreZones(setup, ctx, bullish, &b)
	ss.scoreTrend(ctx, bullish, &b)
	ss.scoreMomentum(ctx, bullish, &b)
	ss.scoreVolume(ctx, &b)
	ss.scoreTime(setup, &b)
	ss.scorePremium(setup, &b)
	ss.scorePattern(ctx, bullish, &b)
	ss.scoreOptionContext(ctx, &b)

	// Structural rule compliance: a workable premium and a strike the
	// underlying can plausibly reach
	if setup.Premium >= minPremium && otmDistancePct(setup, bullish) <= otmFarPct {
		b.RuleBonus = ruleComplianceBonus
	}

	if b.GreenBonus > greenBonusCap {
		b.GreenBonus = greenBonusCap
	}

	SortFlags(b.RedFlags)
	SortFlags(b.GreenFlags)

	b.Final = clampScore(b.Base + b.RuleBonus + b.GreenBonus - b.RedPenalty + b.PatternBonus + b.TrendBonus)
	b.Grade = scoreToGrade(b.Final)
	b.Recommendation, b.Label = scoreToRecommendation(b.Final)

	return b
}

func (ss *SetupScorer) scoreStrike(setup TradeSetup, bullish bool, b *ScoreBreakdown) {
	dist := otmDistancePct(setup, bullish)

	switch {
	case dist > otmFarPct:
		b.RedPenalty += otmFarPenalty
		b.RedFlags = append(b.RedFlags, Flag{SeverityHigh, "strike",
			fmt.Sprintf("Strike $%.0f is %.1f%% OTM, needs an outsized move", setup.Strike, dist)})
	case dist > otmModeratePct:
		b.RedPenalty += otmModeratePenalty
		b.RedFlags = append(b.RedFlags, Flag{SeverityMedium, "strike",
			fmt.Sprintf("Strike %.1f%% OTM, moderate barrier", dist)})
	case dist < 0:
		b.GreenBonus += itmBonus
		b.GreenFlags = append(b.GreenFlags, Flag{SeverityInfo, "strike",
			fmt.Sprintf("Strike $%.0f is %.1f%% in the money", setup.Strike, -dist)})
	default:
		b.GreenBonus += atmBonus
		b.GreenFlags = append(b.GreenFlags, Flag{SeverityInfo, "strike", "Strike near current price"})
	}
}

func (ss *SetupScorer) scoreZones(setup TradeSetup, ctx SetupContext, bullish bool, b *ScoreBreakdown) {
	if bullish {
		if len(ctx.ResistanceZones) == 0 {
			b.GreenFlags = append(b.GreenFlags, Flag{SeverityInfo, "zones", "No resistance zones found overhead"})
		} else {
			r := ctx.ResistanceZones[0]
			dist := (r.Price - setup.Spot) / setup.Spot * 100
			switch {
			case dist >= 0 && dist < 1:
				b.RedPenalty += atZonePenalty
				b.RedFlags = append(b.RedFlags, Flag{SeverityHigh, "zones",
					fmt.Sprintf("At resistance $%.0f (strength %.0f), rejection likely", r.Price, r.Strength)})
			case dist >= 0 && dist < 2:
				b.RedPenalty += nearZonePenalty
				b.RedFlags = append(b.RedFlags, Flag{SeverityMedium, "zones",
					fmt.Sprintf("Near resistance $%.0f, overhead supply", r.Price)})
			}
		}
		if len(ctx.SupportZones) > 0 {
			s := ctx.SupportZones[0]
			dist := (setup.Spot - s.Price) / setup.Spot * 100
			if dist >= 0 && dist < 2 {
				b.GreenBonus += supportBonus
				b.GreenFlags = append(b.GreenFlags, Flag{SeverityInfo, "zones",
					fmt.Sprintf("Support at $%.0f (strength %.0f) just below", s.Price, s.Strength)})
			}
		}
		return
	}

	if len(ctx.SupportZones) == 0 {
		b.GreenFlags = append(b.GreenFlags, Flag{SeverityInfo, "zones", "No support zones found below"})
		return
	}
	s := ctx.SupportZones[0]
	dist := (setup.Spot - s.Price) / setup.Spot * 100
	if dist >= 0 && dist < 1 {
		b.RedPenalty += putSupportPenalty
		b.RedFlags = append(b.RedFlags, Flag{SeverityHigh, "zones",
			fmt.Sprintf("At support $%.0f, underlying may bounce", s.Price)})
	}
}

func (ss *SetupScorer) scoreTrend(ctx SetupContext, bullish bool, b *ScoreBreakdown) {
	if ctx.Trend == nil {
		b.GreenFlags = append(b.GreenFlags, Flag{SeverityInfo, "trend", "Trend unavailable, insufficient history"})
		return
	}

	counter := false
	switch ctx.Trend.Direction {
	case analysis.TrendUp:
		if bullish {
			b.TrendBonus = trendAlignBonus
			b.GreenFlags = append(b.GreenFlags, Flag{SeverityInfo, "trend", "With the trend (uptrend)"})
		} else {
			counter = true
		}
	case analysis.TrendDown:
		if bullish {
			counter = true
		} else {
			b.TrendBonus = trendAlignBonus
			b.GreenFlags = append(b.GreenFlags, Flag{SeverityInfo, "trend", "With the trend (downtrend)"})
		}
	}

	if counter {
		b.TrendBonus = -counterTrendPenalty
		b.RedFlags = append(b.RedFlags, Flag{SeverityHigh, "trend", "Counter-trend trade"})
	}

	// Multi-timeframe agreement only helps a with-trend setup
	if !counter && ctx.Alignment != nil && ctx.Alignment.Aligned {
		b.GreenBonus += mtfAlignBonus
		b.GreenFlags = append(b.GreenFlags, Flag{SeverityInfo, "trend", "Timeframes aligned"})
	}
}

func (ss *SetupScorer) scoreMomentum(ctx SetupContext, bullish bool, b *ScoreBreakdown) {
	m := ctx.Momentum5D
	if !bullish {
		m = -m
	}
	switch {
	case m > momentumPct:
		b.GreenBonus += momentumBonus
		b.GreenFlags = append(b.GreenFlags, Flag{SeverityInfo, "momentum",
			fmt.Sprintf("Favorable 5-day momentum: %+.1f%%", ctx.Momentum5D)})
	case m < -momentumPct:
		b.RedPenalty += momentumBonus
		b.RedFlags = append(b.RedFlags, Flag{SeverityMedium, "momentum",
			fmt.Sprintf("Momentum against the trade: %+.1f%% (5d)", ctx.Momentum5D)})
	}
}

func (ss *SetupScorer) scoreVolume(ctx SetupContext, b *ScoreBreakdown) {
	if ctx.Volume == nil {
		return
	}
	switch {
	case ctx.Volume.Ratio > 1.5:
		b.GreenBonus += volumeBonus
		b.GreenFlags = append(b.GreenFlags, Flag{SeverityInfo, "volume",
			fmt.Sprintf("High volume: %.1fx average", ctx.Volume.Ratio)})
	case ctx.Volume.Ratio < lowVolumeRatio:
		b.RedPenalty += lowVolumePenalty
		b.RedFlags = append(b.RedFlags, Flag{SeverityMedium, "volume",
			fmt.Sprintf("Low volume: %.1fx average", ctx.Volume.Ratio)})
	}
}

func (ss *SetupScorer) scoreTime(setup TradeSetup, b *ScoreBreakdown) {
	switch {
	case setup.DTE <= shortDTE:
		b.RedPenalty += shortDTEPenalty
		b.RedFlags = append(b.RedFlags, Flag{SeverityMedium, "time",
			fmt.Sprintf("Short DTE (%dd), high theta decay risk", setup.DTE)})
	case setup.DTE >= goodDTE:
		b.GreenBonus += goodDTEBonus
		b.GreenFlags = append(b.GreenFlags, Flag{SeverityInfo, "time",
			fmt.Sprintf("Good time buffer (%dd)", setup.DTE)})
	}
}

func (ss *SetupScorer) scorePremium(setup TradeSetup, b *ScoreBreakdown) {
	switch {
	case setup.Premium < minPremium:
		b.RedPenalty += thinPremiumPenalty
		b.RedFlags = append(b.RedFlags, Flag{SeverityMedium, "premium",
			"Thin premium, poor room for stops"})
	case setup.Premium > richPremium:
		b.GreenBonus += richPremiumBonus
		b.GreenFlags = append(b.GreenFlags, Flag{SeverityInfo, "premium",
			"Adequate premium for risk management"})
	}
}

func (ss *SetupScorer) scorePattern(ctx SetupContext, bullish bool, b *ScoreBreakdown) {
	p := ctx.TopPattern
	if p == nil || p.Direction == patterns.Neutral {
		return
	}

	aligned := (bullish && p.Direction == patterns.Bullish) || (!bullish && p.Direction == patterns.Bearish)
	if aligned {
		b.PatternBonus = alignedPatternBonus
		b.GreenFlags = append(b.GreenFlags, Flag{SeverityInfo, "pattern",
			fmt.Sprintf("%s supports the trade (strength %.0f)", p.Type, p.Strength)})
		return
	}

	b.RedPenalty += conflictPatternPenalty
	b.RedFlags = append(b.RedFlags, Flag{SeverityMedium, "pattern",
		fmt.Sprintf("%s conflicts with the trade direction", p.Type)})
}

func (ss *SetupScorer) scoreOptionContext(ctx SetupContext, b *ScoreBreakdown) {
	if ctx.PoP != nil && *ctx.PoP < popFloor {
		b.RedPenalty += lowPoPPenalty
		b.RedFlags = append(b.RedFlags, Flag{SeverityMedium, "options",
			fmt.Sprintf("Probability of profit %.0f%% below floor", *ctx.PoP*100)})
	}

	if ctx.IVRank == nil {
		b.GreenFlags = append(b.GreenFlags, Flag{SeverityInfo, "options", "IV Rank: N/A"})
		return
	}
	switch {
	case *ctx.IVRank > highIVRank:
		b.RedPenalty += highIVPenalty
		b.RedFlags = append(b.RedFlags, Flag{SeverityMedium, "options",
			fmt.Sprintf("IV rank %.0f, premium is expensive", *ctx.IVRank)})
	case *ctx.IVRank < lowIVRank:
		b.GreenBonus += cheapIVBonus
		b.GreenFlags = append(b.GreenFlags, Flag{SeverityInfo, "options",
			fmt.Sprintf("IV rank %.0f, premium is cheap", *ctx.IVRank)})
	}
}

// otmDistancePct is positive when the strike is out of the money
func otmDistancePct(setup TradeSetup, bullish bool) float64 {
	if setup.Spot <= 0 {
		return 0
	}
	if bullish {
		return (setup.Strike - setup.Spot) / setup.Spot * 100
	}
	return (setup.Spot - setup.Strike) / setup.Spot * 100
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func scoreToGrade(score float64) string {
	switch {
	case score >= 90:
		return "A+"
	case score >= 85:
		return "A"
	case score >= 75:
		return "B+"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C"
	case score >= 50:
		return "D"
	}
	return "F"
}

func scoreToRecommendation(score float64) (string, string) {
	switch {
	case score >= 70:
		return "YES", "TAKE THE TRADE"
	case score >= 50:
		return "MARGINAL", "CAUTIOUS / SMALL SIZE"
	case score >= 30:
		return "LEAN_NO", "LIKELY PASS"
	}
	return "NO", "PASS"
}
