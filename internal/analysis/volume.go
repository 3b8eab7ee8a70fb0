package analysis

import (
	"math"

	"github.com/Waleed-Khalil/trade-analyzer/internal/indicators"
	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
)

// VolumeAnalyzer analyzes volume behavior around price
type VolumeAnalyzer struct {
	avgPeriod    int
	profileBins  int
	spikeRatio   float64
	confirmRatio float64
}

// NewVolumeAnalyzer creates a volume analyzer. A non-positive average
// period falls back to 20 bars.
func NewVolumeAnalyzer(avgPeriod int) *VolumeAnalyzer {
	if avgPeriod <= 0 {
		avgPeriod = 20
	}
	return &VolumeAnalyzer{
		avgPeriod:    avgPeriod,
		profileBins:  50,
		spikeRatio:   2.0,
		confirmRatio: 1.2,
	}
}

// VWAP calculates the volume-weighted average price over the last window
// candles using the typical price (H+L+C)/3. A non-positive window uses the
// whole series. Returns 0 when total volume is zero.
func (va *VolumeAnalyzer) VWAP(s *market.Series, window int) float64 {
	if window <= 0 || window > s.Len() {
		window = s.Len()
	}

	var pvSum, vSum float64
	for i := s.Len() - window; i < s.Len(); i++ {
		pvSum += s.TypicalPrice(i) * s.At(i).Volume
		vSum += s.At(i).Volume
	}

	if vSum == 0 {
		return 0
	}
	return pvSum / vSum
}

// ProfileBin is one price bucket of the volume profile
type ProfileBin struct {
	PriceLow  float64 `json:"price_low"`
	PriceHigh float64 `json:"price_high"`
	Volume    float64 `json:"volume"`
}

// VolumeProfile is a histogram of traded volume by price
type VolumeProfile struct {
	Bins          []ProfileBin `json:"bins"`
	POC           float64      `json:"poc"` // price of the highest-volume bin
	ValueAreaLow  float64      `json:"value_area_low"`
	ValueAreaHigh float64      `json:"value_area_high"`
}

// Profile builds a volume-by-price histogram across [min low, max high].
// Each candle's volume is assigned to the bin containing its typical price.
// The value area covers 70% of total volume, expanding from the POC toward
// whichever neighbor bin carries more volume. Returns nil for a degenerate
// price range.
func (va *VolumeAnalyzer) Profile(s *market.Series) *VolumeProfile {
	lo := s.At(0).Low
	hi := s.At(0).High
	for i := 1; i < s.Len(); i++ {
		if s.At(i).Low < lo {
			lo = s.At(i).Low
		}
		if s.At(i).High > hi {
			hi = s.At(i).High
		}
	}

	if hi <= lo {
		return nil
	}

	binSize := (hi - lo) / float64(va.profileBins)
	bins := make([]ProfileBin, va.profileBins)
	for i := range bins {
		bins[i].PriceLow = lo + binSize*float64(i)
		bins[i].PriceHigh = bins[i].PriceLow + binSize
	}

	var totalVolume float64
	for i := 0; i < s.Len(); i++ {
		idx := int((s.TypicalPrice(i) - lo) / binSize)
		if idx >= va.profileBins {
			idx = va.profileBins - 1
		}
		if idx < 0 {
			idx = 0
		}
		bins[idx].Volume += s.At(i).Volume
		totalVolume += s.At(i).Volume
	}

	pocIdx := 0
	for i := range bins {
		if bins[i].Volume > bins[pocIdx].Volume {
			pocIdx = i
		}
	}

	// Expand the value area outward from the POC, always absorbing the
	// larger-volume neighbor first.
	covered := bins[pocIdx].Volume
	loIdx, hiIdx := pocIdx, pocIdx
	target := totalVolume * 0.70

	for covered < target && (loIdx > 0 || hiIdx < va.profileBins-1) {
		var below, above float64 = -1, -1
		if loIdx > 0 {
			below = bins[loIdx-1].Volume
		}
		if hiIdx < va.profileBins-1 {
			above = bins[hiIdx+1].Volume
		}

		if above > below {
			hiIdx++
			covered += above
		} else {
			loIdx--
			covered += below
		}
	}

	return &VolumeProfile{
		Bins:          bins,
		POC:           (bins[pocIdx].PriceLow + bins[pocIdx].PriceHigh) / 2,
		ValueAreaLow:  bins[loIdx].PriceLow,
		ValueAreaHigh: bins[hiIdx].PriceHigh,
	}
}

// VolumeAnomaly describes unusual volume on the latest candle
type VolumeAnomaly string

const (
	VolumeNormal VolumeAnomaly = "normal"
	VolumeSpike  VolumeAnomaly = "spike"
	VolumeDryUp  VolumeAnomaly = "dry_up"
)

// VolumeState summarizes the latest candle against its baseline
type VolumeState struct {
	CurrentVolume float64       `json:"current_volume"`
	AverageVolume float64       `json:"average_volume"`
	Ratio         float64       `json:"ratio"`
	Anomaly       VolumeAnomaly `json:"anomaly"`
	Confirmation  bool          `json:"confirmation"` // ratio above 1.2
}

// State compares the most recent candle's volume to the trailing average.
// A ratio at or above 2.0 is a spike; at or below 0.5 is a dry-up. A nil
// result means the baseline could not be established.
func (va *VolumeAnalyzer) State(s *market.Series) *VolumeState {
	avg := indicators.AverageVolume(s, va.avgPeriod)
	if avg == 0 {
		return nil
	}

	current := s.Last().Volume
	ratio := current / avg

	state := &VolumeState{
		CurrentVolume: current,
		AverageVolume: avg,
		Ratio:         ratio,
		Anomaly:       VolumeNormal,
		Confirmation:  ratio > va.confirmRatio,
	}

	switch {
	case ratio >= va.spikeRatio:
		state.Anomaly = VolumeSpike
	case ratio <= 1.0/va.spikeRatio:
		state.Anomaly = VolumeDryUp
	}

	return state
}

// OBV calculates On-Balance Volume across the whole series
func (va *VolumeAnalyzer) OBV(s *market.Series) float64 {
	var obv float64
	for i := 1; i < s.Len(); i++ {
		switch {
		case s.At(i).Close > s.At(i-1).Close:
			obv += s.At(i).Volume
		case s.At(i).Close < s.At(i-1).Close:
			obv -= s.At(i).Volume
		}
	}
	return obv
}

// DistanceFromVWAP returns the percent distance of price from the VWAP
func (va *VolumeAnalyzer) DistanceFromVWAP(s *market.Series, window int, price float64) float64 {
	vwap := va.VWAP(s, window)
	if vwap == 0 {
		return 0
	}
	return math.Abs(price-vwap) / vwap * 100
}
