package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/Waleed-Khalil/trade-analyzer/internal/analysis"
	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
	"github.com/Waleed-Khalil/trade-analyzer/internal/options"
	"github.com/Waleed-Khalil/trade-analyzer/internal/patterns"
)

// Deterministic risk management. Every number in a plan is rule-based.

var (
	ErrInvalidPremium = errors.New("risk: premium must be positive")
	ErrInvalidStrike  = errors.New("risk: strike must be positive")
)

// Trade is the contract a plan is built for
type Trade struct {
	Ticker  string             `json:"ticker"`
	Type    options.OptionType `json:"option_type"`
	Strike  float64            `json:"strike"`
	Premium float64            `json:"premium"`
	DTE     int                `json:"dte"`
}

// Config holds the account and rule parameters
type Config struct {
	TotalCapital       float64 `json:"total_capital"`
	MaxRiskPerTrade    float64 `json:"max_risk_per_trade"`
	MaxOpenPositions   int     `json:"max_open_positions"`
	MinPremium         float64 `json:"min_premium"`
	MaxCapitalPct      float64 `json:"max_capital_pct"`
	StopPct            float64 `json:"stop_pct"`
	ZeroDTEStopPct     float64 `json:"zero_dte_stop_pct"`
	MaxLossPerContract float64 `json:"max_loss_per_contract"`
	ATRStopMultiplier  float64 `json:"atr_stop_multiplier"`
	ZeroDTEATRMult     float64 `json:"zero_dte_atr_multiplier"`
	ProfitTargetR      float64 `json:"profit_target_r"`
	RunnerTargetR      float64 `json:"runner_target_r"`
	RunnerRemainingPct float64 `json:"runner_remaining_pct"`
}

// DefaultConfig returns the standard rule set
func DefaultConfig() Config {
	return Config{
		TotalCapital:       100000,
		MaxRiskPerTrade:    0.02,
		MaxOpenPositions:   5,
		MinPremium:         0.50,
		MaxCapitalPct:      0.25,
		StopPct:            0.50,
		ZeroDTEStopPct:     0.35,
		MaxLossPerContract: 500,
		ATRStopMultiplier:  2.0,
		ZeroDTEATRMult:     1.0,
		ProfitTargetR:      2.0,
		RunnerTargetR:      5.0,
		RunnerRemainingPct: 0.50,
	}
}

// PositionSize is the contract count and its dollar footprint
type PositionSize struct {
	Contracts       int     `json:"contracts"`
	TotalPremium    float64 `json:"total_premium"`
	MaxRiskDollars  float64 `json:"max_risk_dollars"`
	RiskPerContract float64 `json:"risk_per_contract"`
	CapitalUsed     float64 `json:"capital_used"`
	RiskPct         float64 `json:"risk_pct"`
	Reasoning       string  `json:"reasoning"`
}

// StopPlan is the protective stop and what it costs if hit
type StopPlan struct {
	StopLoss       float64 `json:"stop_loss"`
	RiskPct        float64 `json:"risk_pct"`
	MaxLossDollars float64 `json:"max_loss_dollars"`
	Reasoning      string  `json:"reasoning"`
}

// TradePlan is the complete execution plan
type TradePlan struct {
	Trade           Trade        `json:"trade"`
	Position        PositionSize `json:"position"`
	EntryZone       string       `json:"entry_zone"`
	StopLoss        float64      `json:"stop_loss"`
	StopRiskPct     float64      `json:"stop_risk_pct"`
	Target1         float64      `json:"target_1"`
	Target1R        float64      `json:"target_1_r"`
	RunnerContracts int          `json:"runner_contracts"`
	RunnerTarget    float64      `json:"runner_target"`
	RunnerTargetR   float64      `json:"runner_target_r"`
	MaxLossDollars  float64      `json:"max_loss_dollars"`
	MaxGainDollars  float64      `json:"max_gain_dollars"`
	GoNoGo          string       `json:"go_no_go"`
	GoNoGoReasons   []string     `json:"go_no_go_reasons"`
}

// Engine builds rule-based trade plans
type Engine struct {
	cfg Config
}

// NewEngine creates an engine. A zero-capital config falls back to the
// defaults.
func NewEngine(cfg Config) *Engine {
	if cfg.TotalCapital <= 0 {
		cfg = DefaultConfig()
	}
	return &Engine{cfg: cfg}
}

// CalculatePosition sizes the position from the per-trade risk budget
func (e *Engine) CalculatePosition(t Trade) PositionSize {
	maxRiskDollars := e.cfg.TotalCapital * e.cfg.MaxRiskPerTrade
	riskPerContract := t.Premium * 100

	contracts := 1
	reasoning := "Could not calculate risk, using minimum size"
	if riskPerContract > 0 {
		raw := maxRiskDollars / riskPerContract
		contracts = int(raw)
		if contracts < 1 {
			contracts = 1
		}
		if contracts > e.cfg.MaxOpenPositions {
			contracts = e.cfg.MaxOpenPositions
			reasoning = fmt.Sprintf("Capped at %d contracts (position limit)", e.cfg.MaxOpenPositions)
		} else {
			reasoning = fmt.Sprintf("$%.0f risk / $%.0f per contract = %.1f contracts", maxRiskDollars, riskPerContract, raw)
		}
	}

	return PositionSize{
		Contracts:       contracts,
		TotalPremium:    float64(contracts) * riskPerContract,
		MaxRiskDollars:  float64(contracts) * riskPerContract,
		RiskPerContract: riskPerContract,
		CapitalUsed:     float64(contracts) * riskPerContract,
		RiskPct:         float64(contracts) * riskPerContract / e.cfg.TotalCapital,
		Reasoning:       reasoning,
	}
}

// CalculateStops sets the protective stop. The stop is the tightest of a
// premium percentage, a per-contract dollar cap, and an ATR-derived floor
// mapped through delta so underlying volatility translates to a premium
// move. Same-day expirations use the tighter 0DTE parameter set.
func (e *Engine) CalculateStops(t Trade, pos PositionSize, atr, delta float64) StopPlan {
	stopPct := e.cfg.StopPct
	atrMult := e.cfg.ATRStopMultiplier
	if t.DTE == 0 {
		stopPct = e.cfg.ZeroDTEStopPct
		atrMult = e.cfg.ZeroDTEATRMult
	}

	premiumStop := t.Premium * (1 - stopPct)
	dollarStop := t.Premium - e.cfg.MaxLossPerContract/100

	stop := math.Max(premiumStop, dollarStop)
	if atr > 0 && delta != 0 {
		atrStop := t.Premium - atrMult*atr*math.Abs(delta)
		stop = math.Max(stop, atrStop)
	}
	if stop < 0 {
		stop = 0
	}

	riskPct := 0.0
	if t.Premium > 0 {
		riskPct = (t.Premium - stop) / t.Premium * 100
	}

	return StopPlan{
		StopLoss:       round2(stop),
		RiskPct:        math.Round(riskPct*10) / 10,
		MaxLossDollars: round2(float64(pos.Contracts) * (t.Premium - stop) * 100),
		Reasoning:      fmt.Sprintf("Stop at $%.2f (%.1f%% of premium)", stop, riskPct),
	}
}

// CreateTradePlan runs sizing, stops, targets, and the go/no-go gate.
// Contract violations in the trade itself fail loudly.
func (e *Engine) CreateTradePlan(t Trade, atr, delta float64) (*TradePlan, error) {
	if t.Premium <= 0 {
		return nil, ErrInvalidPremium
	}
	if t.Strike <= 0 {
		return nil, ErrInvalidStrike
	}

	pos := e.CalculatePosition(t)
	stops := e.CalculateStops(t, pos, atr, delta)

	riskPerShare := t.Premium - stops.StopLoss
	target1 := t.Premium + riskPerShare*e.cfg.ProfitTargetR
	runnerTarget := t.Premium + riskPerShare*e.cfg.RunnerTargetR
	runnerContracts := int(float64(pos.Contracts) * e.cfg.RunnerRemainingPct)

	decision, reasons := e.checkGoNoGo(t, pos)

	return &TradePlan{
		Trade:           t,
		Position:        pos,
		EntryZone:       fmt.Sprintf("$%.2f - $%.2f", t.Premium-0.05, t.Premium+0.05),
		StopLoss:        stops.StopLoss,
		StopRiskPct:     stops.RiskPct,
		Target1:         round2(target1),
		Target1R:        e.cfg.ProfitTargetR,
		RunnerContracts: runnerContracts,
		RunnerTarget:    round2(runnerTarget),
		RunnerTargetR:   e.cfg.RunnerTargetR,
		MaxLossDollars:  stops.MaxLossDollars,
		MaxGainDollars:  round2(float64(pos.Contracts) * (target1 - t.Premium) * 100),
		GoNoGo:          decision,
		GoNoGoReasons:   reasons,
	}, nil
}

// checkGoNoGo gates the plan. Any failed rule flips the decision to NO-GO
// with every failed reason listed; it never defaults to GO.
func (e *Engine) checkGoNoGo(t Trade, pos PositionSize) (string, []string) {
	var reasons []string

	if pos.RiskPct > e.cfg.MaxRiskPerTrade {
		reasons = append(reasons, fmt.Sprintf("Risk %.2f%% exceeds max %.2f%%", pos.RiskPct*100, e.cfg.MaxRiskPerTrade*100))
	}
	if t.Premium < e.cfg.MinPremium {
		reasons = append(reasons, fmt.Sprintf("Premium $%.2f below minimum $%.2f", t.Premium, e.cfg.MinPremium))
	}
	if pos.Contracts < 1 {
		reasons = append(reasons, "Position size resulted in less than 1 contract")
	}
	if pos.CapitalUsed > e.cfg.TotalCapital*e.cfg.MaxCapitalPct {
		reasons = append(reasons, fmt.Sprintf("Position $%.0f exceeds %.0f%% of capital", pos.CapitalUsed, e.cfg.MaxCapitalPct*100))
	}

	if len(reasons) > 0 {
		return "NO-GO", reasons
	}
	return "GO", nil
}

// ExitAction names the dynamic exit adjustment
type ExitAction string

const (
	ExitNone              ExitAction = "none"
	ExitAdjustForBreakout ExitAction = "adjust_for_breakout"
	ExitOnRejection       ExitAction = "exit_on_rejection"
)

// ExitAdjustment is the recommendation from one exit check. Each check is
// stateless; the caller tracks what was already applied.
type ExitAdjustment struct {
	Action          ExitAction           `json:"action"`
	NewStop         float64              `json:"new_stop,omitempty"`
	NewRunnerTarget float64              `json:"new_runner_target,omitempty"`
	ExitContracts   int                  `json:"exit_contracts,omitempty"`
	Pattern         patterns.PatternType `json:"pattern,omitempty"`
	Reason          string               `json:"reason"`
}

// OpenPosition is the live state an exit check evaluates against
type OpenPosition struct {
	Trade              Trade
	ContractsRemaining int
	EntryPremium       float64
	CurrentPremium     float64
}

// Exit checks only engage once the position has meaningful open profit
const exitCheckMinProfitPct = 0.20

// CheckExitAdjustment evaluates the level nearest the underlying for a
// breakout or rejection. A rejection wins when both read in one snapshot:
// protecting realized profit outranks extending a runner. Positions below
// 20% open profit are left alone.
func (e *Engine) CheckExitAdjustment(pos OpenPosition, s *market.Series, zones []analysis.Zone, detector *patterns.PatternDetector) ExitAdjustment {
	none := ExitAdjustment{Action: ExitNone, Reason: "No adjustment, original plan stands"}

	if pos.EntryPremium <= 0 || pos.ContractsRemaining <= 0 {
		return none
	}
	profitPct := (pos.CurrentPremium - pos.EntryPremium) / pos.EntryPremium
	if profitPct < exitCheckMinProfitPct {
		return none
	}
	if len(zones) == 0 || s == nil || s.Len() == 0 {
		return none
	}

	dir := patterns.Bullish
	if pos.Trade.Type == options.Put {
		dir = patterns.Bearish
	}

	level := nearestLevel(zones, s.Last().Close, dir)
	if level == nil {
		return none
	}

	if sig := detector.CheckRejection(s, level.Price, dir); sig != nil {
		exitContracts := int(math.Ceil(float64(pos.ContractsRemaining) * sig.ExitFraction))
		return ExitAdjustment{
			Action:        ExitOnRejection,
			ExitContracts: exitContracts,
			Pattern:       sig.Pattern,
			Reason:        fmt.Sprintf("%s, exit %d of %d contracts and tighten the stop", sig.Reason, exitContracts, pos.ContractsRemaining),
		}
	}

	if sig := detector.CheckBreakout(s, level.Price, dir); sig != nil {
		adj := ExitAdjustment{
			Action:  ExitAdjustForBreakout,
			NewStop: round2(sig.NewStop),
			Reason:  fmt.Sprintf("%s, trail the stop to $%.2f and hold for the next level", sig.Reason, sig.NewStop),
		}
		if next := nextLevel(zones, level.Price, dir); next != nil {
			adj.NewRunnerTarget = next.Price
		}
		return adj
	}

	return none
}

// nearestLevel picks the closest zone on the profit side of the position
func nearestLevel(zones []analysis.Zone, price float64, dir patterns.Direction) *analysis.Zone {
	var best *analysis.Zone
	bestDist := math.MaxFloat64
	for i := range zones {
		z := zones[i]
		if dir == patterns.Bullish && z.Type != analysis.ZoneResistance {
			continue
		}
		if dir == patterns.Bearish && z.Type != analysis.ZoneSupport {
			continue
		}
		d := math.Abs(z.Price - price)
		if d < bestDist {
			best, bestDist = &zones[i], d
		}
	}
	return best
}

// nextLevel finds the zone beyond the one just broken
func nextLevel(zones []analysis.Zone, broken float64, dir patterns.Direction) *analysis.Zone {
	var best *analysis.Zone
	for i := range zones {
		z := zones[i]
		if dir == patterns.Bullish {
			if z.Type != analysis.ZoneResistance || z.Price <= broken {
				continue
			}
			if best == nil || z.Price < best.Price {
				best = &zones[i]
			}
		} else {
			if z.Type != analysis.ZoneSupport || z.Price >= broken {
				continue
			}
			if best == nil || z.Price > best.Price {
				best = &zones[i]
			}
		}
	}
	return best
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
