package indicators

import (
	"math"

	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
)

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// SMA calculates the Simple Moving Average over the last period values.
// Returns 0 when there is not enough data.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}

	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}

	return sum / float64(period)
}

// EMASeries calculates the full Exponential Moving Average series.
// The first period-1 entries are 0; entry period-1 seeds with the SMA.
func EMASeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out[period-1] = ema

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		ema = (values[i] * multiplier) + (ema * (1 - multiplier))
		out[i] = ema
	}

	return out
}

// EMA calculates the latest Exponential Moving Average value
func EMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	series := EMASeries(values, period)
	return series[len(series)-1]
}

// ============================================================================
// RSI (Relative Strength Index)
// ============================================================================

// RSI calculates the Relative Strength Index with Wilder smoothing.
// Returns the neutral 50 when there is not enough data.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50.0
	}

	gains := 0.0
	losses := 0.0
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ============================================================================
// MACD (Moving Average Convergence Divergence)
// ============================================================================

// MACDResult holds MACD indicator values
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD calculates the MACD line, signal line, and histogram. The signal line
// is a true EMA of the MACD line, so at least slow+signal closes are needed.
func MACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int) *MACDResult {
	if len(closes) < slowPeriod+signalPeriod {
		return &MACDResult{}
	}

	fastEMA := EMASeries(closes, fastPeriod)
	slowEMA := EMASeries(closes, slowPeriod)

	// MACD line only exists once the slow EMA is seeded
	macdLine := make([]float64, 0, len(closes)-slowPeriod+1)
	for i := slowPeriod - 1; i < len(closes); i++ {
		macdLine = append(macdLine, fastEMA[i]-slowEMA[i])
	}

	signalSeries := EMASeries(macdLine, signalPeriod)

	macd := macdLine[len(macdLine)-1]
	signal := signalSeries[len(signalSeries)-1]

	return &MACDResult{
		MACD:      macd,
		Signal:    signal,
		Histogram: macd - signal,
	}
}

// ============================================================================
// BOLLINGER BANDS
// ============================================================================

// BollingerResult holds Bollinger Bands values
type BollingerResult struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// BollingerBands calculates Bollinger Bands from the last period closes
func BollingerBands(closes []float64, period int, stdDevMultiplier float64) *BollingerResult {
	if period <= 0 || len(closes) < period {
		return &BollingerResult{}
	}

	middle := SMA(closes, period)

	variance := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		diff := closes[i] - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	return &BollingerResult{
		Upper:  middle + stdDev*stdDevMultiplier,
		Middle: middle,
		Lower:  middle - stdDev*stdDevMultiplier,
	}
}

// ============================================================================
// ATR (Average True Range)
// ============================================================================

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|)
func TrueRange(high, low, prevClose float64) float64 {
	return math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
}

// ATR calculates the Average True Range over the last period candles.
// Returns 0 when there is not enough data.
func ATR(s *market.Series, period int) float64 {
	if s == nil || period <= 0 || s.Len() < period+1 {
		return 0
	}

	trSum := 0.0
	for i := s.Len() - period; i < s.Len(); i++ {
		trSum += TrueRange(s.At(i).High, s.At(i).Low, s.At(i-1).Close)
	}

	return trSum / float64(period)
}

// ============================================================================
// ADX (Average Directional Index)
// ============================================================================

// ADXResult holds directional movement values
type ADXResult struct {
	ADX     float64
	PlusDI  float64
	MinusDI float64
}

// ADX calculates the Average Directional Index with Wilder smoothing of
// +DM, -DM, and TR. Needs at least 2*period candles; returns zero values
// otherwise.
func ADX(s *market.Series, period int) *ADXResult {
	if s == nil || period <= 0 || s.Len() < 2*period+1 {
		return &ADXResult{}
	}

	n := s.Len()
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)

	for i := 1; i < n; i++ {
		upMove := s.At(i).High - s.At(i-1).High
		downMove := s.At(i-1).Low - s.At(i).Low
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
		tr[i] = TrueRange(s.At(i).High, s.At(i).Low, s.At(i-1).Close)
	}

	// Wilder smoothed sums seeded over the first period
	smPlus, smMinus, smTR := 0.0, 0.0, 0.0
	for i := 1; i <= period; i++ {
		smPlus += plusDM[i]
		smMinus += minusDM[i]
		smTR += tr[i]
	}

	var dxSum float64
	var dxCount int
	var adx, plusDI, minusDI float64

	for i := period + 1; i < n; i++ {
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		smTR = smTR - smTR/float64(period) + tr[i]

		if smTR == 0 {
			continue
		}
		plusDI = 100 * smPlus / smTR
		minusDI = 100 * smMinus / smTR

		diSum := plusDI + minusDI
		if diSum == 0 {
			continue
		}
		dx := 100 * math.Abs(plusDI-minusDI) / diSum

		dxCount++
		if dxCount < period {
			dxSum += dx
		} else if dxCount == period {
			dxSum += dx
			adx = dxSum / float64(period)
		} else {
			adx = (adx*float64(period-1) + dx) / float64(period)
		}
	}

	return &ADXResult{ADX: adx, PlusDI: plusDI, MinusDI: minusDI}
}

// ============================================================================
// VOLUME
// ============================================================================

// AverageVolume calculates the average volume over the last period candles,
// excluding the most recent candle so the current bar can be compared
// against its own baseline.
func AverageVolume(s *market.Series, period int) float64 {
	if s == nil || period <= 0 || s.Len() < period+1 {
		return 0
	}

	sum := 0.0
	for i := s.Len() - period - 1; i < s.Len()-1; i++ {
		sum += s.At(i).Volume
	}

	return sum / float64(period)
}
