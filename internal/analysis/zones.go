package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/Waleed-Khalil/trade-analyzer/internal/indicators"
	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
)

// ZoneType identifies whether a zone acts as support or resistance
type ZoneType string

const (
	ZoneSupport    ZoneType = "support"
	ZoneResistance ZoneType = "resistance"
)

// Zone is a clustered support or resistance level
type Zone struct {
	Price     float64   `json:"price"`
	Type      ZoneType  `json:"type"`
	Touches   int       `json:"touches"`
	AvgVolume float64   `json:"avg_volume"`
	LastTouch time.Time `json:"last_touch"`
	Strength  float64   `json:"strength"` // 0-100
}

// DefaultMinTouches is how often a level must be tested before it counts
// as a zone
const DefaultMinTouches = 2

// DefaultMaxLevels bounds each side of the zone ledger
const DefaultMaxLevels = 5

// ZoneDetector clusters swing points into zones and scores them
type ZoneDetector struct {
	swingWindow int
	atrPeriod   int
	minTouches  int
	clusterPct  float64
	atZonePct   float64
}

// NewZoneDetector creates a detector with sane defaults when zero values
// are passed.
func NewZoneDetector(swingWindow int) *ZoneDetector {
	if swingWindow <= 0 {
		swingWindow = DefaultSwingWindow
	}
	return &ZoneDetector{
		swingWindow: swingWindow,
		atrPeriod:   14,
		minTouches:  DefaultMinTouches,
		clusterPct:  0.005,
		atZonePct:   0.005,
	}
}

// DetectZones clusters swing highs into resistance zones and swing lows into
// support zones. Two swings belong to the same cluster when their prices are
// within max(0.5% of price, 0.5*ATR) of each other. Levels tested fewer than
// minTouches times are discarded; a chart with no qualifying zones returns an
// empty slice, not an error.
func (zd *ZoneDetector) DetectZones(s *market.Series) []Zone {
	atr := indicators.ATR(s, zd.atrPeriod)

	highs := FindSwingHighs(s, zd.swingWindow)
	lows := FindSwingLows(s, zd.swingWindow)

	clustered := zd.cluster(s, highs, ZoneResistance, atr)
	clustered = append(clustered, zd.cluster(s, lows, ZoneSupport, atr)...)

	zones := clustered[:0]
	for _, z := range clustered {
		if z.Touches >= zd.minTouches {
			zones = append(zones, z)
		}
	}

	sort.Slice(zones, func(i, j int) bool { return zones[i].Strength > zones[j].Strength })
	return zones
}

// SelectZones splits zones by their side of the current price and keeps the
// strongest maxLevels on each side, ordered nearest first. A support zone
// at or above the price, or a resistance zone at or below it, has been
// broken and is dropped rather than reassigned.
func SelectZones(zones []Zone, current float64, maxLevels int) (support, resistance []Zone) {
	if maxLevels <= 0 {
		maxLevels = DefaultMaxLevels
	}

	for _, z := range zones {
		switch {
		case z.Type == ZoneSupport && z.Price < current:
			support = append(support, z)
		case z.Type == ZoneResistance && z.Price > current:
			resistance = append(resistance, z)
		}
	}

	trim := func(zs []Zone) []Zone {
		sort.SliceStable(zs, func(i, j int) bool { return zs[i].Strength > zs[j].Strength })
		if len(zs) > maxLevels {
			zs = zs[:maxLevels]
		}
		sort.SliceStable(zs, func(i, j int) bool {
			return math.Abs(zs[i].Price-current) < math.Abs(zs[j].Price-current)
		})
		return zs
	}
	return trim(support), trim(resistance)
}

func (zd *ZoneDetector) cluster(s *market.Series, swings []SwingPoint, zoneType ZoneType, atr float64) []Zone {
	if len(swings) == 0 {
		return nil
	}

	sorted := make([]SwingPoint, len(swings))
	copy(sorted, swings)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	now := s.Last().Timestamp

	var zones []Zone
	current := []SwingPoint{sorted[0]}

	flush := func() {
		zones = append(zones, zd.buildZone(s, current, zoneType, now))
	}

	for _, sp := range sorted[1:] {
		anchor := current[0].Price
		tolerance := math.Max(anchor*zd.clusterPct, 0.5*atr)
		if sp.Price-anchor <= tolerance {
			current = append(current, sp)
		} else {
			flush()
			current = []SwingPoint{sp}
		}
	}
	flush()

	return zones
}

func (zd *ZoneDetector) buildZone(s *market.Series, members []SwingPoint, zoneType ZoneType, now time.Time) Zone {
	var priceSum, volSum float64
	var lastTouch time.Time

	for _, sp := range members {
		priceSum += sp.Price
		volSum += s.At(sp.CandleIndex).Volume
		if sp.Timestamp.After(lastTouch) {
			lastTouch = sp.Timestamp
		}
	}

	avgVolume := volSum / float64(len(members))

	zone := Zone{
		Price:     priceSum / float64(len(members)),
		Type:      zoneType,
		Touches:   len(members),
		AvgVolume: avgVolume,
		LastTouch: lastTouch,
	}
	zone.Strength = zoneStrength(zone.Touches, avgVolume, now.Sub(lastTouch))

	return zone
}

// zoneStrength scores a zone 0-100: touches contribute up to 40, volume up
// to 30, and recency the remainder.
func zoneStrength(touches int, avgVolume float64, sinceTouch time.Duration) float64 {
	touchScore := math.Min(float64(touches)*10, 40)
	volumeScore := math.Min(math.Log10(avgVolume+1)*5, 30)

	days := sinceTouch.Hours() / 24
	var recencyScore float64
	switch {
	case days < 7:
		recencyScore = 30
	case days < 30:
		recencyScore = 20
	case days < 60:
		recencyScore = 10
	default:
		recencyScore = 5
	}

	return math.Min(touchScore+volumeScore+recencyScore, 100)
}

// AtZone reports whether the price sits within tolerance of the zone.
// A non-positive tolerance uses the default 0.5%.
func (zd *ZoneDetector) AtZone(price float64, zone Zone, tolerancePct float64) bool {
	if tolerancePct <= 0 {
		tolerancePct = zd.atZonePct
	}
	return math.Abs(price-zone.Price)/zone.Price <= tolerancePct
}

// NearestZone returns the closest zone of the given type, nil when none exist
func NearestZone(zones []Zone, price float64, zoneType ZoneType) *Zone {
	var best *Zone
	bestDist := math.MaxFloat64

	for i := range zones {
		if zones[i].Type != zoneType {
			continue
		}
		dist := math.Abs(zones[i].Price - price)
		if dist < bestDist {
			bestDist = dist
			best = &zones[i]
		}
	}

	return best
}
