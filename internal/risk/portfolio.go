package risk

import (
	"fmt"
	"sync"
	"time"
)

// PortfolioTracker gates new trades on portfolio-level limits: concurrent
// open positions and a daily loss circuit. Individual plan math stays in
// the Engine; the tracker only answers "may another trade open right now".
type PortfolioTracker struct {
	mu              sync.RWMutex
	capital         float64
	maxOpen         int
	maxDailyLossPct float64
	openPositions   int
	dailyPnL        float64
	dailyReset      time.Time
}

// PortfolioMetrics is a snapshot of the tracker state
type PortfolioMetrics struct {
	Capital       float64 `json:"capital"`
	OpenPositions int     `json:"open_positions"`
	MaxPositions  int     `json:"max_positions"`
	DailyPnL      float64 `json:"daily_pnl"`
	DailyLossPct  float64 `json:"daily_loss_pct"`
	MaxDailyLoss  float64 `json:"max_daily_loss_pct"`
	CanTrade      bool    `json:"can_trade"`
}

// NewPortfolioTracker creates a tracker. Zero limits fall back to five
// concurrent positions and a 6% daily loss stop.
func NewPortfolioTracker(capital float64, maxOpen int, maxDailyLossPct float64) *PortfolioTracker {
	if maxOpen <= 0 {
		maxOpen = 5
	}
	if maxDailyLossPct <= 0 {
		maxDailyLossPct = 0.06
	}
	return &PortfolioTracker{
		capital:         capital,
		maxOpen:         maxOpen,
		maxDailyLossPct: maxDailyLossPct,
		dailyReset:      time.Now().Truncate(24 * time.Hour),
	}
}

// SetCapital updates the account value the daily loss limit is measured
// against
func (pt *PortfolioTracker) SetCapital(capital float64) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.capital = capital
}

// CanOpenPosition reports whether a new position may open, with the
// blocking reason when it may not
func (pt *PortfolioTracker) CanOpenPosition() (bool, string) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.checkDailyReset()

	if pt.openPositions >= pt.maxOpen {
		return false, fmt.Sprintf("max open positions reached (%d/%d)", pt.openPositions, pt.maxOpen)
	}
	if pt.capital > 0 {
		lossPct := -pt.dailyPnL / pt.capital
		if pt.dailyPnL < 0 && lossPct >= pt.maxDailyLossPct {
			return false, fmt.Sprintf("daily loss limit reached (%.1f%% of capital)", lossPct*100)
		}
	}
	return true, ""
}

// RegisterOpen records one position opening
func (pt *PortfolioTracker) RegisterOpen() {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.openPositions++
}

// RegisterClose records one position closing with its realized P&L
func (pt *PortfolioTracker) RegisterClose(pnl float64) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.openPositions--
	if pt.openPositions < 0 {
		pt.openPositions = 0
	}

	pt.checkDailyReset()
	pt.dailyPnL += pnl
}

// Metrics returns the current portfolio state
func (pt *PortfolioTracker) Metrics() PortfolioMetrics {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.checkDailyReset()

	lossPct := 0.0
	if pt.capital > 0 && pt.dailyPnL < 0 {
		lossPct = -pt.dailyPnL / pt.capital
	}
	return PortfolioMetrics{
		Capital:       pt.capital,
		OpenPositions: pt.openPositions,
		MaxPositions:  pt.maxOpen,
		DailyPnL:      pt.dailyPnL,
		DailyLossPct:  lossPct,
		MaxDailyLoss:  pt.maxDailyLossPct,
		CanTrade:      pt.openPositions < pt.maxOpen && lossPct < pt.maxDailyLossPct,
	}
}

func (pt *PortfolioTracker) checkDailyReset() {
	today := time.Now().Truncate(24 * time.Hour)
	if today.After(pt.dailyReset) {
		pt.dailyPnL = 0
		pt.dailyReset = today
	}
}
