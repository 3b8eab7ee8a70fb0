package options

import (
	"errors"
	"math"

	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
)

// Implied and realized volatility context

const (
	// IV rank needs a meaningful history before the percentile reads true
	minIVSamples = 30

	// Historical IV reconstruction caps its lookback near six months of
	// trading days
	MaxIVLookbackDays = 126

	tradingDaysPerYear = 252
)

var (
	ErrInsufficientIVHistory = errors.New("options: not enough historical IV samples")
	ErrInsufficientCloses    = errors.New("options: not enough closes for realized volatility")
)

// IVRank places the current IV inside its historical range:
// (current - min) / (max - min) * 100, clamped to [0, 100]. A flat history
// reads as 50.
func IVRank(currentIV float64, history []float64) (float64, error) {
	if len(history) < minIVSamples {
		return 0, ErrInsufficientIVHistory
	}

	minIV, maxIV := history[0], history[0]
	for _, iv := range history[1:] {
		minIV = math.Min(minIV, iv)
		maxIV = math.Max(maxIV, iv)
	}
	if maxIV <= minIV {
		return 50.0, nil
	}

	rank := (currentIV - minIV) / (maxIV - minIV) * 100
	return math.Max(0, math.Min(100, rank)), nil
}

// IVObservation is one historical option close paired with the underlying
// close and the days remaining to expiration on that date.
type IVObservation struct {
	Spot         float64
	OptionClose  float64
	DaysToExpiry int
}

// HistoricalIVs reconstructs an IV series by inverting Black-Scholes on
// each observation. Observations that fail to solve are skipped; fewer than
// 30 solved samples is an error.
func HistoricalIVs(typ OptionType, strike, rate float64, obs []IVObservation) ([]float64, error) {
	if len(obs) > MaxIVLookbackDays {
		obs = obs[len(obs)-MaxIVLookbackDays:]
	}

	ivs := make([]float64, 0, len(obs))
	for _, o := range obs {
		if o.Spot <= 0 || o.OptionClose <= 0 || o.DaysToExpiry <= 0 {
			continue
		}
		iv, err := ImpliedVolatility(typ, o.Spot, strike, DaysToYears(o.DaysToExpiry), rate, o.OptionClose)
		if err != nil {
			continue
		}
		ivs = append(ivs, iv)
	}

	if len(ivs) < minIVSamples {
		return nil, ErrInsufficientIVHistory
	}
	return ivs, nil
}

// RealizedVolatility is the annualized standard deviation of log returns
// over the trailing window.
func RealizedVolatility(s *market.Series, window int) (float64, error) {
	closes := s.Closes()
	if window < 2 || len(closes) < window+1 {
		return 0, ErrInsufficientCloses
	}

	rets := make([]float64, 0, window)
	for i := len(closes) - window; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			return 0, ErrInsufficientCloses
		}
		rets = append(rets, math.Log(closes[i]/closes[i-1]))
	}

	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))

	variance := 0.0
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(rets) - 1)

	return math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear), nil
}

// HVRank ranks the current realized vol against a rolling realized-vol
// history built from the series, as a fallback when option IV history is
// not available.
func HVRank(s *market.Series, currentHV float64, rollingWindow, period int) (float64, error) {
	closes := s.Closes()
	if rollingWindow < 2 || len(closes) < rollingWindow+2 {
		return 0, ErrInsufficientCloses
	}

	var history []float64
	for end := rollingWindow + 1; end <= len(closes); end++ {
		sub, err := market.NewSeries(s.Candles()[:end])
		if err != nil {
			return 0, err
		}
		hv, err := RealizedVolatility(sub, rollingWindow)
		if err != nil {
			continue
		}
		history = append(history, hv)
	}
	if len(history) > period {
		history = history[len(history)-period:]
	}
	if len(history) < 2 {
		return 0, ErrInsufficientCloses
	}

	low, high := history[0], history[0]
	for _, hv := range history[1:] {
		low = math.Min(low, hv)
		high = math.Max(high, hv)
	}
	if high <= low {
		return 50.0, nil
	}

	rank := (currentHV - low) / (high - low) * 100
	return math.Max(0, math.Min(100, rank)), nil
}
