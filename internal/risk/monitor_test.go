package risk

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/Waleed-Khalil/trade-analyzer/internal/options"
)

// TestPortfolioPositionLimit tests the concurrent position gate
func TestPortfolioPositionLimit(t *testing.T) {
	pt := NewPortfolioTracker(50000, 2, 0.06)

	pt.RegisterOpen()
	pt.RegisterOpen()

	ok, reason := pt.CanOpenPosition()
	if ok {
		t.Fatal("Third position should be blocked at a limit of 2")
	}
	if !strings.Contains(reason, "max open positions") {
		t.Errorf("Reason should name the position limit, got %q", reason)
	}

	pt.RegisterClose(150)
	if ok, _ := pt.CanOpenPosition(); !ok {
		t.Error("Closing a position should free a slot")
	}
}

// TestPortfolioDailyLossLimit tests the daily loss circuit
func TestPortfolioDailyLossLimit(t *testing.T) {
	pt := NewPortfolioTracker(100000, 5, 0.06)

	pt.RegisterOpen()
	pt.RegisterClose(-7000)

	ok, reason := pt.CanOpenPosition()
	if ok {
		t.Fatal("A 7% daily loss should trip the 6% circuit")
	}
	if !strings.Contains(reason, "daily loss limit") {
		t.Errorf("Reason should name the loss limit, got %q", reason)
	}

	m := pt.Metrics()
	if m.CanTrade {
		t.Error("Metrics should report trading halted")
	}
	if math.Abs(m.DailyLossPct-0.07) > 1e-9 {
		t.Errorf("Expected 7%% daily loss, got %.4f", m.DailyLossPct)
	}

	// Winners claw the day back above the circuit
	pt.RegisterOpen()
	pt.RegisterClose(3000)
	if ok, _ := pt.CanOpenPosition(); !ok {
		t.Error("Loss back under the limit should reopen trading")
	}
}

// TestPortfolioDefaults tests the zero-value fallbacks
func TestPortfolioDefaults(t *testing.T) {
	pt := NewPortfolioTracker(25000, 0, 0)

	m := pt.Metrics()
	if m.MaxPositions != 5 {
		t.Errorf("Expected default of 5 positions, got %d", m.MaxPositions)
	}
	if m.MaxDailyLoss != 0.06 {
		t.Errorf("Expected default 6%% loss limit, got %.2f", m.MaxDailyLoss)
	}
	if !m.CanTrade {
		t.Error("Fresh tracker should allow trading")
	}
}

// TestMonitorTrackDefaults tests stop seeding on registration
func TestMonitorTrackDefaults(t *testing.T) {
	pm := NewPositionMonitor()
	pm.Track(MonitoredPosition{
		ID:          "p1",
		Ticker:      "AAPL",
		Type:        options.Call,
		EntryPrice:  100,
		InitialStop: 98,
		ATR:         1.0,
	})

	pos, ok := pm.Position("p1")
	if !ok {
		t.Fatal("Tracked position should be retrievable")
	}
	if pos.CurrentStop != 98 {
		t.Errorf("Current stop should seed from the initial stop, got %.2f", pos.CurrentStop)
	}
	if pos.StopKind != StopInitial {
		t.Errorf("Expected initial stop kind, got %s", pos.StopKind)
	}
	if pos.HighWater != 100 || pos.LowWater != 100 {
		t.Error("Water marks should start at entry")
	}
}

// TestMonitorRatchetCall tests that call stops only ever rise
func TestMonitorRatchetCall(t *testing.T) {
	pm := NewPositionMonitor()
	pm.Track(MonitoredPosition{
		ID:          "c1",
		Ticker:      "NVDA",
		Type:        options.Call,
		EntryPrice:  100,
		InitialStop: 98,
		ATR:         1.0,
	})

	// At 105 the trade is at 2.5R; mid-profit ATR trail is 100+5-2.0 = 103
	up, err := pm.UpdatePrice("c1", 105)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !up.Moved || up.NewStop != 103 {
		t.Fatalf("Expected stop raised to 103, got moved=%v stop=%.2f", up.Moved, up.NewStop)
	}
	if up.Kind != StopATR {
		t.Errorf("Expected ATR stop, got %s", up.Kind)
	}

	pos, _ := pm.Position("c1")
	if pos.HighWater != 105 {
		t.Errorf("High water should track the peak, got %.2f", pos.HighWater)
	}

	// Pullback to 103.5 recomputes a looser 102 trail; the stop holds
	hold, err := pm.UpdatePrice("c1", 103.5)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if hold.Moved {
		t.Error("Stop should never loosen on a pullback")
	}
	if hold.NewStop != 103 {
		t.Errorf("Stop should hold at 103, got %.2f", hold.NewStop)
	}

	// Crossing the stop reports a trigger and leaves the stop in place
	trig, err := pm.UpdatePrice("c1", 102.5)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !trig.Triggered {
		t.Fatal("Price through the stop should trigger an exit")
	}
	if trig.Reason == "" {
		t.Error("Trigger should carry a reason")
	}
}

// TestMonitorRatchetPut tests that put stops only ever fall
func TestMonitorRatchetPut(t *testing.T) {
	pm := NewPositionMonitor()
	pm.Track(MonitoredPosition{
		ID:          "p1",
		Ticker:      "SPY",
		Type:        options.Put,
		EntryPrice:  100,
		InitialStop: 102,
		ATR:         1.0,
	})

	// At 95 the trade is at 2.5R; mid-profit ATR trail is 100-5+2.0 = 97
	down, err := pm.UpdatePrice("p1", 95)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !down.Moved || down.NewStop != 97 {
		t.Fatalf("Expected stop lowered to 97, got moved=%v stop=%.2f", down.Moved, down.NewStop)
	}

	// Puts trigger when price rallies back through the stop
	trig, err := pm.UpdatePrice("p1", 97.5)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !trig.Triggered {
		t.Error("Rally through a put stop should trigger an exit")
	}
}

// TestMonitorUnknownPosition tests lookup failures and removal
func TestMonitorUnknownPosition(t *testing.T) {
	pm := NewPositionMonitor()

	if _, err := pm.UpdatePrice("ghost", 100); !errors.Is(err, ErrPositionNotTracked) {
		t.Errorf("Expected ErrPositionNotTracked, got %v", err)
	}

	pm.Track(MonitoredPosition{ID: "x", Type: options.Call, EntryPrice: 50, InitialStop: 48})
	pm.Untrack("x")
	if _, ok := pm.Position("x"); ok {
		t.Error("Untracked position should be gone")
	}
	if len(pm.Positions()) != 0 {
		t.Error("Positions should be empty after untrack")
	}
}

// TestProfitInR tests the R-multiple conversion for both directions
func TestProfitInR(t *testing.T) {
	if r := ProfitInR(options.Call, 100, 104, 98); r != 2.0 {
		t.Errorf("Call at +4 over 2 risk should be 2R, got %.2f", r)
	}
	if r := ProfitInR(options.Put, 100, 97, 102); r != 1.5 {
		t.Errorf("Put at -3 over 2 risk should be 1.5R, got %.2f", r)
	}
	// Inverted stop means no defined risk distance
	if r := ProfitInR(options.Call, 100, 105, 101); r != 0 {
		t.Errorf("Invalid risk distance should yield 0R, got %.2f", r)
	}
}
