package risk

import (
	"fmt"
	"math"

	"github.com/Waleed-Khalil/trade-analyzer/internal/analysis"
	"github.com/Waleed-Khalil/trade-analyzer/internal/options"
)

// Multi-level profit taking with 40/30/30 scaling

// ScalingMethod selects how exit levels are placed
type ScalingMethod string

const (
	ScaleTechnicalWeighted ScalingMethod = "technical_weighted"
	ScalePercentage        ScalingMethod = "percentage"
	ScaleRBased            ScalingMethod = "r_based"
	ScaleEqualThirds       ScalingMethod = "equal_thirds"
)

// TriggerType labels what placed an exit level
type TriggerType string

const (
	TriggerTechnical  TriggerType = "technical"
	TriggerRBased     TriggerType = "r_based"
	TriggerPercentage TriggerType = "percentage"
	TriggerEqual      TriggerType = "equal"
)

// ExitLevel is one rung of the exit ladder
type ExitLevel struct {
	Level        int         `json:"level"`
	Price        float64     `json:"price"`
	Contracts    int         `json:"contracts"`
	ContractsPct float64     `json:"contracts_pct"`
	RMultiple    float64     `json:"r_multiple"`
	Trigger      TriggerType `json:"trigger_type"`
	Reason       string      `json:"reason"`
	Cumulative   int         `json:"cumulative_contracts"`
}

// ExitPlan is the full ladder plus its blended R expectation
type ExitPlan struct {
	TotalContracts int           `json:"total_contracts"`
	Levels         []ExitLevel   `json:"exit_levels"`
	Method         ScalingMethod `json:"scaling_method"`
	ExpectedTotalR float64       `json:"expected_total_r"`
}

// Exit ladder weights
const (
	t1ContractsPct     = 0.40
	t2ContractsPct     = 0.30
	runnerContractsPct = 0.30

	pctTargetStep = 0.20 // +20% premium, runner at +40%
)

type exitRung struct {
	price   float64
	pct     float64
	r       float64
	trigger TriggerType
	reason  string
}

// ExitManager builds partial exit ladders
type ExitManager struct {
	method ScalingMethod
}

// NewExitManager creates a manager. An empty method defaults to
// technical-weighted scaling.
func NewExitManager(method ScalingMethod) *ExitManager {
	if method == "" {
		method = ScaleTechnicalWeighted
	}
	return &ExitManager{method: method}
}

// Plan builds the exit ladder. Technical weighting needs zones on the
// profit side; with fewer than two it falls back to R-based rungs. The
// last level always absorbs the integer remainder.
func (em *ExitManager) Plan(typ options.OptionType, entry, stopLoss float64, totalContracts int, zones []analysis.Zone) ExitPlan {
	risk := math.Abs(entry - stopLoss)

	var rungs []exitRung
	method := em.method

	switch em.method {
	case ScalePercentage:
		rungs = percentageRungs(entry, risk)
	case ScaleTechnicalWeighted:
		rungs = technicalRungs(typ, entry, risk, zones)
		if rungs == nil {
			rungs = rBasedRungs(typ, entry, risk)
			method = ScaleRBased
		}
	case ScaleEqualThirds:
		rungs = equalThirdsRungs(typ, entry, risk)
	default:
		rungs = rBasedRungs(typ, entry, risk)
	}

	return buildPlan(rungs, totalContracts, method)
}

// technicalRungs maps profit-side zones onto the ladder. Three or more
// zones get 40/30/30; exactly two get 50/50; fewer return nil.
func technicalRungs(typ options.OptionType, entry, risk float64, zones []analysis.Zone) []exitRung {
	var levels []analysis.Zone
	for _, z := range zones {
		if typ == options.Put {
			if z.Type == analysis.ZoneSupport && z.Price < entry {
				levels = append(levels, z)
			}
		} else {
			if z.Type == analysis.ZoneResistance && z.Price > entry {
				levels = append(levels, z)
			}
		}
	}
	// Nearest level first
	for i := 0; i < len(levels); i++ {
		for j := i + 1; j < len(levels); j++ {
			di := math.Abs(levels[i].Price - entry)
			dj := math.Abs(levels[j].Price - entry)
			if dj < di {
				levels[i], levels[j] = levels[j], levels[i]
			}
		}
	}

	rAt := func(z analysis.Zone) float64 {
		if risk <= 0 {
			return 0
		}
		return math.Abs(z.Price-entry) / risk
	}

	switch {
	case len(levels) >= 3:
		return []exitRung{
			{levels[0].Price, t1ContractsPct, rAt(levels[0]), TriggerTechnical,
				fmt.Sprintf("First level at $%.2f (strength %.0f)", levels[0].Price, levels[0].Strength)},
			{levels[1].Price, t2ContractsPct, rAt(levels[1]), TriggerTechnical,
				fmt.Sprintf("Second level at $%.2f (strength %.0f)", levels[1].Price, levels[1].Strength)},
			{levels[2].Price, runnerContractsPct, rAt(levels[2]), TriggerTechnical,
				fmt.Sprintf("Runner at $%.2f (major level, strength %.0f)", levels[2].Price, levels[2].Strength)},
		}
	case len(levels) == 2:
		return []exitRung{
			{levels[0].Price, 0.50, rAt(levels[0]), TriggerTechnical,
				fmt.Sprintf("First level at $%.2f", levels[0].Price)},
			{levels[1].Price, 0.50, rAt(levels[1]), TriggerTechnical,
				fmt.Sprintf("Second level at $%.2f", levels[1].Price)},
		}
	}
	return nil
}

func rBasedRungs(typ options.OptionType, entry, risk float64) []exitRung {
	dir := 1.0
	if typ == options.Put {
		dir = -1.0
	}
	return []exitRung{
		{entry + dir*2*risk, t1ContractsPct, 2.0, TriggerRBased, fmt.Sprintf("T1 at 2R ($%.2f)", entry+dir*2*risk)},
		{entry + dir*3*risk, t2ContractsPct, 3.0, TriggerRBased, fmt.Sprintf("T2 at 3R ($%.2f)", entry+dir*3*risk)},
		{entry + dir*5*risk, runnerContractsPct, 5.0, TriggerRBased, fmt.Sprintf("Runner at 5R ($%.2f)", entry+dir*5*risk)},
	}
}

func percentageRungs(entry, risk float64) []exitRung {
	t1 := entry * (1 + pctTargetStep)
	runner := entry * (1 + 2*pctTargetStep)
	rOf := func(p float64) float64 {
		if risk <= 0 {
			return 0
		}
		return (p - entry) / risk
	}
	return []exitRung{
		{t1, 0.50, rOf(t1), TriggerPercentage,
			fmt.Sprintf("T1 at +%.0f%% premium ($%.2f), move stop to breakeven", pctTargetStep*100, t1)},
		{runner, 0.50, rOf(runner), TriggerPercentage,
			fmt.Sprintf("Runner at +%.0f%% premium ($%.2f), trail with breakeven stop", 2*pctTargetStep*100, runner)},
	}
}

func equalThirdsRungs(typ options.OptionType, entry, risk float64) []exitRung {
	dir := 1.0
	if typ == options.Put {
		dir = -1.0
	}
	return []exitRung{
		{entry + dir*2*risk, 0.333, 2.0, TriggerEqual, fmt.Sprintf("1/3 at T1 ($%.2f)", entry+dir*2*risk)},
		{entry + dir*3*risk, 0.333, 3.0, TriggerEqual, fmt.Sprintf("1/3 at T2 ($%.2f)", entry+dir*3*risk)},
		{entry + dir*5*risk, 0.334, 5.0, TriggerEqual, fmt.Sprintf("1/3 runner ($%.2f)", entry+dir*5*risk)},
	}
}

func buildPlan(rungs []exitRung, totalContracts int, method ScalingMethod) ExitPlan {
	plan := ExitPlan{TotalContracts: totalContracts, Method: method}
	if totalContracts <= 0 {
		return plan
	}

	remaining := totalContracts
	weightedR := 0.0

	for i, r := range rungs {
		contracts := int(float64(totalContracts) * r.pct)
		if i == len(rungs)-1 {
			contracts = remaining
		}
		remaining -= contracts

		plan.Levels = append(plan.Levels, ExitLevel{
			Level:        i + 1,
			Price:        round2(r.price),
			Contracts:    contracts,
			ContractsPct: math.Round(float64(contracts)/float64(totalContracts)*1000) / 10,
			RMultiple:    math.Round(r.r*10) / 10,
			Trigger:      r.trigger,
			Reason:       r.reason,
			Cumulative:   totalContracts - remaining,
		})

		weightedR += r.r * float64(contracts) / float64(totalContracts)
	}

	plan.ExpectedTotalR = math.Round(weightedR*10) / 10
	return plan
}

// NextExit returns the next ladder level still holding contracts, or nil
// once the position is fully exited.
func (em *ExitManager) NextExit(plan ExitPlan, contractsRemaining int) *ExitLevel {
	if contractsRemaining <= 0 {
		return nil
	}
	exited := plan.TotalContracts - contractsRemaining
	for i := range plan.Levels {
		if plan.Levels[i].Contracts > 0 && exited < plan.Levels[i].Cumulative {
			return &plan.Levels[i]
		}
	}
	return nil
}
