package risk

import (
	"fmt"
	"math"
	"strings"
)

// Composite position sizing: Kelly, IV rank, setup quality, equity curve,
// and drawdown protection stacked onto a 2% base risk.

// ClosedTrade is one realized trade from the journal
type ClosedTrade struct {
	PnL       float64 `json:"pnl"`
	RMultiple float64 `json:"r_multiple"`
}

// Sizer limits
const (
	baseRiskPct    = 0.02
	minRiskPct     = 0.005
	maxRiskPct     = 0.05
	maxPositionPct = 0.25

	kellyMinTrades  = 30
	fractionalKelly = 0.25
	kellyFloor      = 0.001
	kellyCap        = 0.10

	lowIVThreshold  = 30.0
	highIVThreshold = 70.0
	ivMinMult       = 0.5
	ivMaxMult       = 1.5

	equityLookback = 10
	equityMinMult  = 0.5
	equityMaxMult  = 1.3
)

// SizeResult is the contract count plus the multiplier trail that
// produced it.
type SizeResult struct {
	Contracts     int     `json:"contracts"`
	RiskPct       float64 `json:"risk_pct"`
	RiskDollars   float64 `json:"risk_dollars"`
	PositionValue float64 `json:"position_value"`
	PositionPct   float64 `json:"position_pct"`

	KellyMult    float64 `json:"kelly_multiplier"`
	IVMult       float64 `json:"iv_multiplier"`
	QualityMult  float64 `json:"quality_multiplier"`
	EquityMult   float64 `json:"equity_multiplier"`
	DrawdownMult float64 `json:"drawdown_multiplier"`

	Reasoning string `json:"reasoning"`
}

// Sizer computes composite position sizes
type Sizer struct{}

// NewSizer creates a composite sizer
func NewSizer() *Sizer {
	return &Sizer{}
}

// Size computes the contract count for a setup. ivRank may be nil when no
// IV history exists; history may be short; each absent input leaves its
// multiplier at 1.
func (sz *Sizer) Size(accountValue, entryPrice, stopLoss float64, setupScore float64, history []ClosedTrade, ivRank *float64, drawdownPct float64) SizeResult {
	riskPerContract := math.Abs(entryPrice-stopLoss) * 100

	res := SizeResult{
		KellyMult:    1.0,
		IVMult:       1.0,
		QualityMult:  qualityMultiplier(setupScore),
		EquityMult:   1.0,
		DrawdownMult: drawdownMultiplier(drawdownPct),
	}

	if kellyPct, ok := kellyPct(history); ok {
		res.KellyMult = kellyPct / baseRiskPct
	}
	if ivRank != nil {
		res.IVMult = ivMultiplier(*ivRank)
	}
	if len(history) >= equityLookback {
		res.EquityMult = equityMultiplier(history)
	}

	riskPct := baseRiskPct * res.KellyMult * res.IVMult * res.QualityMult * res.EquityMult * res.DrawdownMult
	riskPct = math.Max(minRiskPct, math.Min(maxRiskPct, riskPct))

	riskDollars := accountValue * riskPct
	contracts := 1
	if riskPerContract > 0 {
		contracts = int(riskDollars / riskPerContract)
		if contracts < 1 {
			contracts = 1
		}
	}

	// Position value cap regardless of risk math
	if float64(contracts)*entryPrice*100 > accountValue*maxPositionPct {
		contracts = int(accountValue * maxPositionPct / (entryPrice * 100))
		if contracts < 1 {
			contracts = 1
		}
	}

	res.Contracts = contracts
	res.RiskDollars = round2(float64(contracts) * riskPerContract)
	res.RiskPct = round2(res.RiskDollars / accountValue * 100)
	res.PositionValue = round2(float64(contracts) * entryPrice * 100)
	res.PositionPct = round2(res.PositionValue / accountValue * 100)
	res.Reasoning = sizingReasoning(res, setupScore)

	return res
}

// kellyPct derives a fractional-Kelly risk percentage from realized trades
func kellyPct(history []ClosedTrade) (float64, bool) {
	if len(history) < kellyMinTrades {
		return 0, false
	}

	var wins, losses []ClosedTrade
	for _, t := range history {
		if t.PnL > 0 {
			wins = append(wins, t)
		} else if t.PnL < 0 {
			losses = append(losses, t)
		}
	}
	if len(wins) == 0 || len(losses) == 0 {
		return 0, false
	}

	winRate := float64(len(wins)) / float64(len(history))

	avgWinR := 0.0
	for _, t := range wins {
		avgWinR += t.RMultiple
	}
	avgWinR /= float64(len(wins))

	avgLossR := 0.0
	for _, t := range losses {
		avgLossR += t.RMultiple
	}
	avgLossR = math.Abs(avgLossR / float64(len(losses)))
	if avgLossR == 0 {
		return 0, false
	}

	b := avgWinR / avgLossR
	kelly := (winRate*b - (1 - winRate)) / b
	kelly *= fractionalKelly

	return math.Max(kellyFloor, math.Min(kellyCap, kelly)), true
}

// ivMultiplier sizes down into expensive volatility and up into cheap
func ivMultiplier(ivRank float64) float64 {
	switch {
	case ivRank >= highIVThreshold:
		return ivMinMult
	case ivRank <= lowIVThreshold:
		return ivMaxMult
	}
	normalized := (ivRank - lowIVThreshold) / (highIVThreshold - lowIVThreshold)
	return ivMaxMult - normalized*(ivMaxMult-ivMinMult)
}

func qualityMultiplier(score float64) float64 {
	switch {
	case score >= 90:
		return 1.5
	case score >= 80:
		return 1.25
	case score >= 70:
		return 1.0
	case score >= 60:
		return 0.75
	}
	return 0.5
}

// equityMultiplier scales with the recent win rate and average R
func equityMultiplier(history []ClosedTrade) float64 {
	recent := history[len(history)-equityLookback:]

	wins := 0
	avgR := 0.0
	for _, t := range recent {
		if t.PnL > 0 {
			wins++
		}
		avgR += t.RMultiple
	}
	winRate := float64(wins) / float64(len(recent))
	avgR /= float64(len(recent))

	switch {
	case winRate >= 0.7 && avgR > 1.0:
		return equityMaxMult
	case winRate <= 0.3 || avgR < 0:
		return equityMinMult
	}
	normalized := (winRate - 0.3) / 0.4
	return equityMinMult + normalized*(equityMaxMult-equityMinMult)
}

func drawdownMultiplier(drawdownPct float64) float64 {
	switch {
	case drawdownPct < 5:
		return 1.0
	case drawdownPct < 10:
		return 0.75
	case drawdownPct < 15:
		return 0.5
	}
	return 0.25
}

func sizingReasoning(res SizeResult, score float64) string {
	parts := []string{fmt.Sprintf("base %.1f%%", baseRiskPct*100)}
	if res.KellyMult != 1.0 {
		parts = append(parts, fmt.Sprintf("kelly x%.2f", res.KellyMult))
	}
	if res.IVMult != 1.0 {
		parts = append(parts, fmt.Sprintf("iv x%.2f", res.IVMult))
	}
	parts = append(parts, fmt.Sprintf("quality(%d) x%.2f", int(score), res.QualityMult))
	if res.EquityMult != 1.0 {
		parts = append(parts, fmt.Sprintf("equity x%.2f", res.EquityMult))
	}
	if res.DrawdownMult != 1.0 {
		parts = append(parts, fmt.Sprintf("drawdown x%.2f", res.DrawdownMult))
	}
	return strings.Join(parts, ", ")
}
