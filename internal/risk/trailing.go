package risk

import (
	"fmt"
	"math"
	"sort"

	"github.com/Waleed-Khalil/trade-analyzer/internal/analysis"
	"github.com/Waleed-Khalil/trade-analyzer/internal/options"
)

// Dynamic trailing stops: ATR, technical levels, and breakeven candidates
// compete on priority; the stop only ever tightens.

// StopKind labels where a trailing candidate came from
type StopKind string

const (
	StopInitial   StopKind = "initial"
	StopATR       StopKind = "atr"
	StopTechnical StopKind = "technical"
	StopBreakeven StopKind = "breakeven"
)

// stopCandidate competes for the active stop; lower priority wins
type stopCandidate struct {
	price    float64
	kind     StopKind
	reason   string
	priority int
}

// TrailingStop is the selected stop for the current snapshot
type TrailingStop struct {
	Price   float64  `json:"trailing_stop"`
	Kind    StopKind `json:"type"`
	Reason  string   `json:"reason"`
	Active  bool     `json:"active"`
	ProfitR float64  `json:"profit_r"`
}

// ATR multipliers loosen as profit accumulates so winners get room
const (
	atrInitialMult = 1.5
	atrMidMult     = 2.0
	atrHighMult    = 2.5

	midProfitR  = 2.0
	highProfitR = 4.0

	breakevenTriggerR = 2.0

	// Technical stops must clear the entry by this percentage
	techMinDistancePct = 0.5
)

// TrailingManager computes per-snapshot trailing stops
type TrailingManager struct{}

// NewTrailingManager creates a trailing stop manager
func NewTrailingManager() *TrailingManager {
	return &TrailingManager{}
}

// Calculate picks the best trailing stop for the snapshot. Candidates are
// ordered technical first, then ATR, then breakeven; the result never
// loosens past the initial stop.
func (tm *TrailingManager) Calculate(typ options.OptionType, entry, current, initialStop, atr, profitR float64, zones []analysis.Zone) TrailingStop {
	var candidates []stopCandidate

	if atr > 0 {
		if c := tm.atrCandidate(typ, entry, current, initialStop, atr, profitR); c != nil {
			candidates = append(candidates, *c)
		}
	}
	if c := tm.technicalCandidate(typ, entry, current, zones); c != nil {
		candidates = append(candidates, *c)
	}
	if profitR >= breakevenTriggerR {
		candidates = append(candidates, stopCandidate{
			price:    entry,
			kind:     StopBreakeven,
			reason:   fmt.Sprintf("Breakeven stop at %.1fR (triggered at %.1fR)", profitR, breakevenTriggerR),
			priority: 3,
		})
	}

	if len(candidates) == 0 {
		return TrailingStop{Price: initialStop, Kind: StopInitial, Reason: "Using initial stop loss", ProfitR: profitR}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].priority < candidates[j].priority
	})
	best := candidates[0]

	// Risk only ever shrinks
	price := best.price
	if typ == options.Put {
		price = math.Min(price, initialStop)
	} else {
		price = math.Max(price, initialStop)
	}

	return TrailingStop{
		Price:   round2(price),
		Kind:    best.kind,
		Reason:  best.reason,
		Active:  true,
		ProfitR: profitR,
	}
}

func (tm *TrailingManager) atrCandidate(typ options.OptionType, entry, current, initialStop, atr, profitR float64) *stopCandidate {
	mult := atrInitialMult
	phase := "initial"
	switch {
	case profitR >= highProfitR:
		mult, phase = atrHighMult, "high profit"
	case profitR >= midProfitR:
		mult, phase = atrMidMult, "mid profit"
	}

	var stop float64
	if typ == options.Put {
		profit := entry - current
		stop = entry - profit + mult*atr
		if stop >= initialStop {
			return nil
		}
	} else {
		profit := current - entry
		stop = entry + profit - mult*atr
		if stop <= initialStop {
			return nil
		}
	}

	return &stopCandidate{
		price:    stop,
		kind:     StopATR,
		reason:   fmt.Sprintf("ATR trailing (%s): %.1fx ATR behind price", phase, mult),
		priority: 2,
	}
}

// technicalCandidate trails to the best zone between entry and price
func (tm *TrailingManager) technicalCandidate(typ options.OptionType, entry, current float64, zones []analysis.Zone) *stopCandidate {
	var best *analysis.Zone

	if typ == options.Put {
		floor := entry * (1 - techMinDistancePct/100)
		for i := range zones {
			z := zones[i]
			if z.Type != analysis.ZoneResistance || z.Price >= floor || z.Price <= current {
				continue
			}
			if best == nil || z.Price < best.Price {
				best = &zones[i]
			}
		}
	} else {
		floor := entry * (1 + techMinDistancePct/100)
		for i := range zones {
			z := zones[i]
			if z.Type != analysis.ZoneSupport || z.Price <= floor || z.Price >= current {
				continue
			}
			if best == nil || z.Price > best.Price {
				best = &zones[i]
			}
		}
	}

	if best == nil {
		return nil
	}
	return &stopCandidate{
		price:    best.Price,
		kind:     StopTechnical,
		reason:   fmt.Sprintf("Technical level at $%.2f (strength %.0f)", best.Price, best.Strength),
		priority: 1,
	}
}

// ShouldExit reports whether the price has crossed the trailing stop
func (tm *TrailingManager) ShouldExit(typ options.OptionType, current, trailingStop float64) bool {
	if typ == options.Put {
		return current >= trailingStop
	}
	return current <= trailingStop
}
