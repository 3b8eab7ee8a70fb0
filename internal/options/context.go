package options

import (
	"fmt"
	"math"
)

// Strike and premium context helpers

// Moneyness describes where the strike sits relative to spot. Pct is
// positive when the contract carries intrinsic value.
type Moneyness struct {
	Pct   float64 `json:"itm_otm_pct"`
	ITM   bool    `json:"itm"`
	Label string  `json:"label"`
}

// StrikeContext computes moneyness for a contract. Calls are in the money
// below spot, puts above it.
func StrikeContext(typ OptionType, spot, strike float64) (Moneyness, error) {
	if spot <= 0 || strike <= 0 {
		return Moneyness{}, ErrInvalidInputs
	}

	var pct float64
	if typ == Put {
		pct = (strike - spot) / spot * 100
	} else {
		pct = (spot - strike) / spot * 100
	}

	m := Moneyness{Pct: round1(pct), ITM: pct >= 0}
	side := "ITM"
	if !m.ITM {
		side = "OTM"
	}
	m.Label = fmt.Sprintf("%.1f%% %s %s", math.Abs(pct), side, typ)
	return m, nil
}

// PremiumDiffPct compares a quoted premium against the live mark as a
// percentage of the quote. A zero quote has no meaningful comparison.
func PremiumDiffPct(quoted, live float64) (float64, bool) {
	if quoted == 0 {
		return 0, false
	}
	return round1((live - quoted) / quoted * 100), true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
