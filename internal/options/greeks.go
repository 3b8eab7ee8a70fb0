package options

import (
	"errors"
	"math"
)

// Black-Scholes pricing, greeks, and implied volatility

// OptionType is the contract side
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// Pricing constants
const (
	RiskFreeRate = 0.05
	DaysPerYear  = 365.0

	ivLow     = 0.001
	ivHigh    = 5.0
	ivTol     = 1e-6
	ivMaxIter = 100
)

var (
	ErrInvalidInputs   = errors.New("options: invalid pricing inputs")
	ErrBelowIntrinsic  = errors.New("options: market price at or below intrinsic value")
	ErrNoConvergence   = errors.New("options: implied volatility solver did not converge")
	ErrOutOfSolverBand = errors.New("options: implied volatility outside solver bounds")
)

// Greeks holds per-share sensitivities. Theta is per calendar day and Vega
// is per volatility point.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

func d1d2(spot, strike, timeYears, rate, iv float64) (float64, float64) {
	d1 := (math.Log(spot/strike) + (rate+0.5*iv*iv)*timeYears) / (iv * math.Sqrt(timeYears))
	return d1, d1 - iv*math.Sqrt(timeYears)
}

// DaysToYears converts days to expiration into Black-Scholes time
func DaysToYears(days int) float64 {
	if days < 0 {
		return 0
	}
	return float64(days) / DaysPerYear
}

// Price returns the Black-Scholes price. At or past expiry it returns the
// intrinsic value.
func Price(typ OptionType, spot, strike, timeYears, rate, iv float64) (float64, error) {
	if spot <= 0 || strike <= 0 || iv <= 0 {
		return 0, ErrInvalidInputs
	}
	if timeYears <= 0 {
		return intrinsic(typ, spot, strike), nil
	}

	d1, d2 := d1d2(spot, strike, timeYears, rate, iv)
	disc := strike * math.Exp(-rate*timeYears)

	if typ == Put {
		return disc*normCDF(-d2) - spot*normCDF(-d1), nil
	}
	return spot*normCDF(d1) - disc*normCDF(d2), nil
}

// ComputeGreeks returns the full sensitivity set for a contract
func ComputeGreeks(typ OptionType, spot, strike, timeYears, rate, iv float64) (Greeks, error) {
	if spot <= 0 || strike <= 0 || iv <= 0 || timeYears <= 0 {
		return Greeks{}, ErrInvalidInputs
	}

	d1, d2 := d1d2(spot, strike, timeYears, rate, iv)
	sqrtT := math.Sqrt(timeYears)
	disc := strike * math.Exp(-rate*timeYears)
	pdf := normPDF(d1)

	g := Greeks{
		Gamma: pdf / (spot * iv * sqrtT),
		Vega:  spot * pdf * sqrtT / 100, // per 1 vol point
	}

	if typ == Put {
		g.Delta = normCDF(d1) - 1
		g.Theta = (-spot*pdf*iv/(2*sqrtT) + rate*disc*normCDF(-d2)) / DaysPerYear
		g.Rho = -disc * timeYears * normCDF(-d2) / 100
	} else {
		g.Delta = normCDF(d1)
		g.Theta = (-spot*pdf*iv/(2*sqrtT) - rate*disc*normCDF(d2)) / DaysPerYear
		g.Rho = disc * timeYears * normCDF(d2) / 100
	}

	return g, nil
}

// ProbabilityOfProfit is the risk-neutral probability the contract expires
// in the money: N(d2) for calls, N(-d2) for puts.
func ProbabilityOfProfit(typ OptionType, spot, strike, timeYears, rate, iv float64) (float64, error) {
	if spot <= 0 || strike <= 0 || iv <= 0 || timeYears <= 0 {
		return 0, ErrInvalidInputs
	}
	_, d2 := d1d2(spot, strike, timeYears, rate, iv)
	if typ == Put {
		return normCDF(-d2), nil
	}
	return normCDF(d2), nil
}

// ImpliedVolatility inverts Black-Scholes by bisection over [0.001, 5.0].
// Market prices at or below intrinsic value have no solution and are
// rejected.
func ImpliedVolatility(typ OptionType, spot, strike, timeYears, rate, marketPrice float64) (float64, error) {
	if spot <= 0 || strike <= 0 || timeYears <= 0 || marketPrice <= 0 {
		return 0, ErrInvalidInputs
	}
	if marketPrice <= intrinsic(typ, spot, strike) {
		return 0, ErrBelowIntrinsic
	}

	objective := func(iv float64) float64 {
		p, _ := Price(typ, spot, strike, timeYears, rate, iv)
		return p - marketPrice
	}

	lo, hi := ivLow, ivHigh
	fLo, fHi := objective(lo), objective(hi)
	if fLo*fHi > 0 {
		return 0, ErrOutOfSolverBand
	}

	for i := 0; i < ivMaxIter; i++ {
		mid := (lo + hi) / 2
		fMid := objective(mid)
		if math.Abs(fMid) < ivTol || (hi-lo)/2 < ivTol {
			return mid, nil
		}
		if fLo*fMid < 0 {
			hi = mid
		} else {
			lo, fLo = mid, fMid
		}
	}

	return 0, ErrNoConvergence
}

// EstimatePL reprices the contract at newSpot and returns the dollar P/L
// for the position.
func EstimatePL(typ OptionType, strike, entryPremium, newSpot, timeYears, rate, iv float64, contracts int) (float64, error) {
	newPremium, err := Price(typ, newSpot, strike, timeYears, rate, iv)
	if err != nil {
		return 0, err
	}
	return (newPremium - entryPremium) * float64(contracts) * 100, nil
}

// Scenario is one row of a stress test
type Scenario struct {
	PctChange    float64 `json:"pct_change"`
	PL           float64 `json:"pl"`
	ReturnOnRisk float64 `json:"return_on_risk_pct"`
}

// StressScenarios reprices the position across underlying moves and scales
// each P/L against the planned risk dollars.
func StressScenarios(typ OptionType, spot, strike, entryPremium, timeYears, rate, iv float64, contracts int, riskDollars float64, pctChanges []float64) ([]Scenario, error) {
	if riskDollars <= 0 {
		riskDollars = 1
	}

	out := make([]Scenario, 0, len(pctChanges))
	for _, pct := range pctChanges {
		pl, err := EstimatePL(typ, strike, entryPremium, spot*(1+pct), timeYears, rate, iv, contracts)
		if err != nil {
			return nil, err
		}
		out = append(out, Scenario{
			PctChange:    pct,
			PL:           pl,
			ReturnOnRisk: pl / riskDollars * 100,
		})
	}
	return out, nil
}

// HighThetaDecay flags contracts losing premium quickly to time decay
func HighThetaDecay(theta float64) bool {
	return theta < -0.05
}

// HighVegaRisk flags contracts highly sensitive to IV moves
func HighVegaRisk(vega float64) bool {
	return vega > 0.20
}

func intrinsic(typ OptionType, spot, strike float64) float64 {
	if typ == Put {
		return math.Max(strike-spot, 0)
	}
	return math.Max(spot-strike, 0)
}
