package risk

import (
	"errors"
	"sync"
	"time"

	"github.com/Waleed-Khalil/trade-analyzer/internal/analysis"
	"github.com/Waleed-Khalil/trade-analyzer/internal/options"
)

var ErrPositionNotTracked = errors.New("risk: position is not tracked")

// MonitoredPosition is one open position under live stop management.
// Prices are in underlying space; the trailing math follows the zones
// and ATR captured when tracking began.
type MonitoredPosition struct {
	ID          string             `json:"id"`
	Ticker      string             `json:"ticker"`
	Type        options.OptionType `json:"option_type"`
	EntryPrice  float64            `json:"entry_price"`
	InitialStop float64            `json:"initial_stop"`
	CurrentStop float64            `json:"current_stop"`
	StopKind    StopKind           `json:"stop_kind"`
	HighWater   float64            `json:"high_water"`
	LowWater    float64            `json:"low_water"`
	ATR         float64            `json:"atr"`
	Zones       []analysis.Zone    `json:"-"`
	LastUpdate  time.Time          `json:"last_update"`
}

// StopUpdate reports the outcome of one price tick for a monitored
// position
type StopUpdate struct {
	ID        string   `json:"id"`
	Ticker    string   `json:"ticker"`
	OldStop   float64  `json:"old_stop"`
	NewStop   float64  `json:"new_stop"`
	Kind      StopKind `json:"kind"`
	Reason    string   `json:"reason,omitempty"`
	Moved     bool     `json:"moved"`
	Triggered bool     `json:"triggered"`
	Price     float64  `json:"price"`
	ProfitR   float64  `json:"profit_r"`
}

// PositionMonitor ratchets trailing stops for open positions as prices
// tick in. Stops only ever tighten; a crossed stop reports Triggered and
// the position stays tracked until the caller removes it.
type PositionMonitor struct {
	mu        sync.RWMutex
	positions map[string]*MonitoredPosition
	trailing  *TrailingManager
}

// NewPositionMonitor creates an empty monitor
func NewPositionMonitor() *PositionMonitor {
	return &PositionMonitor{
		positions: make(map[string]*MonitoredPosition),
		trailing:  NewTrailingManager(),
	}
}

// Track registers a position for stop management
func (pm *PositionMonitor) Track(pos MonitoredPosition) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pos.CurrentStop == 0 {
		pos.CurrentStop = pos.InitialStop
	}
	pos.StopKind = StopInitial
	pos.HighWater = pos.EntryPrice
	pos.LowWater = pos.EntryPrice
	pos.LastUpdate = time.Now()
	pm.positions[pos.ID] = &pos
}

// Untrack removes a position from monitoring
func (pm *PositionMonitor) Untrack(id string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.positions, id)
}

// UpdatePrice processes one underlying tick. The returned update reports
// a stop move or a trigger; a nil-op tick still refreshes water marks.
func (pm *PositionMonitor) UpdatePrice(id string, price float64) (StopUpdate, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pos, ok := pm.positions[id]
	if !ok {
		return StopUpdate{}, ErrPositionNotTracked
	}

	if price > pos.HighWater {
		pos.HighWater = price
	}
	if price < pos.LowWater {
		pos.LowWater = price
	}
	pos.LastUpdate = time.Now()

	update := StopUpdate{
		ID:      pos.ID,
		Ticker:  pos.Ticker,
		OldStop: pos.CurrentStop,
		NewStop: pos.CurrentStop,
		Kind:    pos.StopKind,
		Price:   price,
		ProfitR: ProfitInR(pos.Type, pos.EntryPrice, price, pos.InitialStop),
	}

	if pm.trailing.ShouldExit(pos.Type, price, pos.CurrentStop) {
		update.Triggered = true
		update.Reason = "Trailing stop crossed"
		return update, nil
	}

	ts := pm.trailing.Calculate(pos.Type, pos.EntryPrice, price, pos.InitialStop, pos.ATR, update.ProfitR, pos.Zones)
	if !ts.Active {
		return update, nil
	}

	// Ratchet: calls only raise the stop, puts only lower it
	tighter := ts.Price > pos.CurrentStop
	if pos.Type == options.Put {
		tighter = ts.Price < pos.CurrentStop
	}
	if tighter {
		pos.CurrentStop = ts.Price
		pos.StopKind = ts.Kind
		update.NewStop = ts.Price
		update.Kind = ts.Kind
		update.Reason = ts.Reason
		update.Moved = true
	}

	return update, nil
}

// Position returns a copy of one tracked position
func (pm *PositionMonitor) Position(id string) (MonitoredPosition, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	pos, ok := pm.positions[id]
	if !ok {
		return MonitoredPosition{}, false
	}
	return *pos, true
}

// Positions returns copies of all tracked positions
func (pm *PositionMonitor) Positions() []MonitoredPosition {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	out := make([]MonitoredPosition, 0, len(pm.positions))
	for _, pos := range pm.positions {
		out = append(out, *pos)
	}
	return out
}

// ProfitInR converts a price move into multiples of the initial risk
func ProfitInR(typ options.OptionType, entry, current, initialStop float64) float64 {
	var riskDist, profit float64
	if typ == options.Put {
		riskDist = initialStop - entry
		profit = entry - current
	} else {
		riskDist = entry - initialStop
		profit = current - entry
	}
	if riskDist <= 0 {
		return 0
	}
	return profit / riskDist
}
