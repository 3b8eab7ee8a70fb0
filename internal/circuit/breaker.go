package circuit

import (
	"fmt"
	"sync"
	"time"
)

// BreakerState represents the circuit breaker state
type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // Normal operation
	StateOpen     BreakerState = "open"      // Backend bypassed
	StateHalfOpen BreakerState = "half_open" // Testing recovery
)

// Config holds circuit breaker configuration
type Config struct {
	Enabled        bool          `json:"enabled"`
	MaxFailures    int           `json:"max_failures"`     // Consecutive failures before opening
	Cooldown       time.Duration `json:"cooldown"`         // Time open before probing
	HalfOpenProbes int           `json:"half_open_probes"` // Successes required to close
	FailureWindow  time.Duration `json:"failure_window"`   // Failures older than this are forgotten
}

// DefaultConfig returns safe defaults for a cache or store backend
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		MaxFailures:    3,
		Cooldown:       30 * time.Second,
		HalfOpenProbes: 1,
		FailureWindow:  time.Minute,
	}
}

// Breaker guards an unreliable backend. Callers ask Allow before each
// attempt and report the outcome; once failures pile up the breaker opens
// and requests skip the backend until a probe succeeds.
type Breaker struct {
	config *Config

	state        BreakerState
	failures     int
	successes    int
	lastFailure  time.Time
	lastTripTime time.Time
	tripReason   string

	onTrip  func(reason string)
	onReset func()

	mu sync.RWMutex
}

// NewBreaker creates a breaker. A nil config uses the defaults.
func NewBreaker(config *Config) *Breaker {
	if config == nil {
		config = DefaultConfig()
	}
	return &Breaker{config: config, state: StateClosed}
}

// OnTrip sets the callback for when the breaker opens
func (b *Breaker) OnTrip(handler func(reason string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTrip = handler
}

// OnReset sets the callback for when the breaker closes again
func (b *Breaker) OnReset(handler func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onReset = handler
}

// Allow reports whether the backend should be tried right now
func (b *Breaker) Allow() bool {
	if !b.config.Enabled {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.lastTripTime) < b.config.Cooldown {
			return false
		}
		b.state = StateHalfOpen
		b.successes = 0
		return true
	default:
		return true
	}
}

// RecordSuccess reports a successful backend call
func (b *Breaker) RecordSuccess() {
	if !b.config.Enabled {
		return
	}

	b.mu.Lock()
	b.failures = 0

	var recovered bool
	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.config.HalfOpenProbes {
			b.state = StateClosed
			b.tripReason = ""
			recovered = true
		}
	}
	onReset := b.onReset
	b.mu.Unlock()

	if recovered && onReset != nil {
		go onReset()
	}
}

// RecordFailure reports a failed backend call. A failure while half-open
// reopens immediately.
func (b *Breaker) RecordFailure(err error) {
	if !b.config.Enabled {
		return
	}

	b.mu.Lock()
	now := time.Now()
	if b.config.FailureWindow > 0 && now.Sub(b.lastFailure) > b.config.FailureWindow {
		b.failures = 0
	}
	b.lastFailure = now
	b.failures++

	var tripped bool
	var reason string
	switch {
	case b.state == StateHalfOpen:
		reason = fmt.Sprintf("probe failed: %v", err)
		tripped = true
	case b.failures >= b.config.MaxFailures:
		reason = fmt.Sprintf("%d consecutive failures, last: %v", b.failures, err)
		tripped = true
	}
	if tripped {
		b.state = StateOpen
		b.lastTripTime = now
		b.tripReason = reason
	}
	onTrip := b.onTrip
	b.mu.Unlock()

	if tripped && onTrip != nil {
		go onTrip(reason)
	}
}

// ForceReset manually closes the breaker
func (b *Breaker) ForceReset() {
	b.mu.Lock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.tripReason = ""
	onReset := b.onReset
	b.mu.Unlock()

	if onReset != nil {
		go onReset()
	}
}

// State returns the current breaker state
func (b *Breaker) State() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// BreakerStats is a snapshot of the breaker's internal counters
type BreakerStats struct {
	State        BreakerState `json:"state"`
	Failures     int          `json:"failures"`
	TripReason   string       `json:"trip_reason,omitempty"`
	LastTripTime time.Time    `json:"last_trip_time,omitempty"`
}

// Stats returns current statistics
func (b *Breaker) Stats() BreakerStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return BreakerStats{
		State:        b.state,
		Failures:     b.failures,
		TripReason:   b.tripReason,
		LastTripTime: b.lastTripTime,
	}
}
