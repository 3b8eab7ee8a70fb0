package risk

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Waleed-Khalil/trade-analyzer/internal/analysis"
	"github.com/Waleed-Khalil/trade-analyzer/internal/options"
)

// Technically grounded profit targets: reprice the contract at each level
// the underlying could reach instead of quoting raw R multiples.

// Target is one candidate exit priced from an underlying level
type Target struct {
	Level     float64 `json:"level"`
	Premium   float64 `json:"premium"`
	RMultiple float64 `json:"r_multiple"`
	Source    string  `json:"type"` // "resistance", "support", "strike", "r_multiple"
}

// TargetRecommendation is the conservative/moderate/aggressive ladder
type TargetRecommendation struct {
	Conservative *Target `json:"conservative_target"`
	Moderate     *Target `json:"moderate_target"`
	Aggressive   *Target `json:"aggressive_target"`
	Reasoning    string  `json:"reasoning"`
}

// RecommendTargets builds the ladder by Black-Scholes repricing the
// contract at each zone on the profit side, plus the strike itself for
// OTM contracts. Levels that do not beat the entry premium are dropped.
// Without usable levels it falls back to premium R multiples.
func RecommendTargets(t Trade, spot, entryPremium, stopPremium, iv float64, zones []analysis.Zone) TargetRecommendation {
	risk := entryPremium - stopPremium
	timeYears := options.DaysToYears(t.DTE)
	if timeYears <= 0 {
		timeYears = 1.0 / options.DaysPerYear
	}

	var candidates []Target
	addLevel := func(level float64, source string) {
		premium, err := options.Price(t.Type, level, t.Strike, timeYears, options.RiskFreeRate, iv)
		if err != nil || premium <= entryPremium {
			return
		}
		r := 0.0
		if risk > 0 {
			r = math.Round((premium-entryPremium)/risk*10) / 10
		}
		candidates = append(candidates, Target{
			Level:     level,
			Premium:   round2(premium),
			RMultiple: r,
			Source:    source,
		})
	}

	if t.Type == options.Put {
		for _, z := range zones {
			if z.Type == analysis.ZoneSupport && z.Price < spot {
				addLevel(z.Price, "support")
			}
		}
		if t.Strike < spot {
			addLevel(t.Strike, "strike")
		}
	} else {
		for _, z := range zones {
			if z.Type == analysis.ZoneResistance && z.Price > spot {
				addLevel(z.Price, "resistance")
			}
		}
		if t.Strike > spot {
			addLevel(t.Strike, "strike")
		}
	}

	if len(candidates) == 0 {
		return fallbackTargets(t, spot, entryPremium)
	}

	// Conservative targets come first
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].RMultiple < candidates[j].RMultiple
	})

	rec := TargetRecommendation{Conservative: &candidates[0]}
	if len(candidates) >= 2 {
		rec.Moderate = &candidates[1]
	}
	if len(candidates) >= 3 {
		rec.Aggressive = &candidates[2]
	}

	var levels []string
	for i, c := range candidates {
		if i >= 3 {
			break
		}
		levels = append(levels, fmt.Sprintf("$%.0f", c.Level))
	}
	rec.Reasoning = fmt.Sprintf("Technical targets based on %s. Conservative: %.1fR ($%.2f)",
		strings.Join(levels, ", "), rec.Conservative.RMultiple, rec.Conservative.Premium)

	return rec
}

// fallbackTargets returns premium-multiple targets when no technical
// level is reachable. Same-day expirations use the tighter 1.5R first
// target.
func fallbackTargets(t Trade, spot, entryPremium float64) TargetRecommendation {
	t1R := 2.0
	if t.DTE == 0 {
		t1R = 1.5
	}
	dir := 1.0
	if t.Type == options.Put {
		dir = -1.0
	}

	return TargetRecommendation{
		Conservative: &Target{
			Level:     round2(spot * (1 + dir*0.02)),
			Premium:   round2(entryPremium * t1R),
			RMultiple: t1R,
			Source:    "r_multiple",
		},
		Moderate: &Target{
			Level:     round2(spot * (1 + dir*0.03)),
			Premium:   round2(entryPremium * 2.0),
			RMultiple: 2.0,
			Source:    "r_multiple",
		},
		Reasoning: fmt.Sprintf("Fallback to R-based targets (%.1fR-2.0R)", t1R),
	}
}
