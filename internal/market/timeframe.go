package market

import (
	"fmt"
	"sync"
	"time"
)

// Timeframe represents different chart timeframes
type Timeframe string

const (
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// MultiTimeframeSeries holds validated series across timeframes for one symbol
type MultiTimeframeSeries struct {
	Symbol    string
	Timestamp time.Time
	Data      map[Timeframe]*Series
}

// NewMultiTimeframeSeries validates every timeframe's candles up front so a
// contract violation on any timeframe fails the whole snapshot.
func NewMultiTimeframeSeries(symbol string, candles map[Timeframe][]Candle) (*MultiTimeframeSeries, error) {
	mts := &MultiTimeframeSeries{
		Symbol:    symbol,
		Timestamp: time.Now(),
		Data:      make(map[Timeframe]*Series, len(candles)),
	}

	for tf, cs := range candles {
		series, err := NewSeries(cs)
		if err != nil {
			return nil, fmt.Errorf("timeframe %s: %w", tf, err)
		}
		mts.Data[tf] = series
	}

	return mts, nil
}

// Get returns the series for a timeframe, nil when absent
func (m *MultiTimeframeSeries) Get(tf Timeframe) *Series {
	return m.Data[tf]
}

// SeriesCache provides TTL caching for validated series, keyed by
// symbol and timeframe.
type SeriesCache struct {
	data map[string]*cacheEntry
	mu   sync.RWMutex
}

type cacheEntry struct {
	series    *Series
	expiresAt time.Time
}

// NewSeriesCache creates a new series cache
func NewSeriesCache() *SeriesCache {
	return &SeriesCache{
		data: make(map[string]*cacheEntry),
	}
}

func cacheKey(symbol string, tf Timeframe) string {
	return fmt.Sprintf("%s:%s", symbol, tf)
}

// Get retrieves a cached series if not expired
func (c *SeriesCache) Get(symbol string, tf Timeframe) *Series {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.data[cacheKey(symbol, tf)]
	if !exists {
		return nil
	}

	if time.Now().After(entry.expiresAt) {
		return nil
	}

	return entry.series
}

// Set stores a series with a TTL appropriate for the timeframe
func (c *SeriesCache) Set(symbol string, tf Timeframe, series *Series) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[cacheKey(symbol, tf)] = &cacheEntry{
		series:    series,
		expiresAt: time.Now().Add(ttlFor(tf)),
	}
}

// Clear removes expired entries from the cache
func (c *SeriesCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if now.After(entry.expiresAt) {
			delete(c.data, key)
		}
	}
}

func ttlFor(tf Timeframe) time.Duration {
	switch tf {
	case TF5m:
		return 2 * time.Minute
	case TF15m:
		return 5 * time.Minute
	case TF1h:
		return 30 * time.Minute
	case TF4h:
		return 2 * time.Hour
	case TF1d:
		return 12 * time.Hour
	default:
		return 1 * time.Minute
	}
}
