// Package cache provides Redis-based caching for analysis documents with
// graceful degradation. When Redis is unavailable, operations return errors
// that callers should handle by recomputing the analysis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Waleed-Khalil/trade-analyzer/config"
	"github.com/Waleed-Khalil/trade-analyzer/internal/circuit"
)

// Key prefixes for different cache types
const (
	PrefixAnalysis   = "analysis:%s:%s" // ticker, timeframe
	PrefixQuickCheck = "quickcheck:%s"  // ticker
	PrefixIVHistory  = "ivhistory:%s"   // ticker
	PrefixSeries     = "series:%s:%s"   // ticker, timeframe
)

// Default TTLs
const (
	DefaultAnalysisTTL  = 5 * time.Minute
	DefaultIVHistoryTTL = 1 * time.Hour
	DefaultSeriesTTL    = 1 * time.Minute
)

// CacheService wraps a Redis client behind a failure breaker. Operations
// short-circuit while the breaker is open instead of piling timeouts onto a
// dead backend.
type CacheService struct {
	client  *redis.Client
	config  config.RedisConfig
	breaker *circuit.Breaker
	log     zerolog.Logger
}

// NewCacheService creates a new CacheService with the provided configuration.
// A failed initial ping returns the service in degraded mode, not an error.
func NewCacheService(cfg config.RedisConfig, log zerolog.Logger) (*CacheService, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	cs := &CacheService{
		client:  client,
		config:  cfg,
		breaker: circuit.NewBreaker(circuit.DefaultConfig()),
		log:     log.With().Str("component", "cache").Logger(),
	}

	cs.breaker.OnTrip(func(reason string) {
		cs.log.Warn().Str("reason", reason).Msg("Redis marked unhealthy")
	})
	cs.breaker.OnReset(func() {
		cs.log.Info().Msg("Redis recovered")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		cs.log.Warn().Err(err).Msg("Initial Redis connection failed, starting degraded")
		cs.breaker.RecordFailure(err)
		return cs, nil
	}

	cs.breaker.RecordSuccess()
	cs.log.Info().Str("address", cfg.Address).Msg("Redis connected")

	return cs, nil
}

// IsHealthy returns whether Redis is currently available.
func (cs *CacheService) IsHealthy() bool {
	return cs.breaker.State() == circuit.StateClosed
}

var errUnavailable = fmt.Errorf("redis unavailable (circuit breaker open)")

// IsUnavailable reports whether an error means the breaker refused the call.
func IsUnavailable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "circuit breaker open")
}

// IsMiss reports whether an error is a cache miss rather than a failure.
func IsMiss(err error) bool {
	return err == redis.Nil
}

// Get retrieves a value from cache.
func (cs *CacheService) Get(ctx context.Context, key string) (string, error) {
	if !cs.breaker.Allow() {
		return "", errUnavailable
	}

	result, err := cs.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			cs.breaker.RecordSuccess()
			return "", err // Cache miss, not a failure
		}
		cs.breaker.RecordFailure(err)
		return "", fmt.Errorf("redis get failed: %w", err)
	}

	cs.breaker.RecordSuccess()
	return result, nil
}

// Set stores a value in cache with TTL.
func (cs *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !cs.breaker.Allow() {
		return errUnavailable
	}

	var data string
	switch v := value.(type) {
	case string:
		data = v
	case []byte:
		data = string(v)
	default:
		jsonData, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
		data = string(jsonData)
	}

	if err := cs.client.Set(ctx, key, data, ttl).Err(); err != nil {
		cs.breaker.RecordFailure(err)
		return fmt.Errorf("redis set failed: %w", err)
	}

	cs.breaker.RecordSuccess()
	return nil
}

// Delete removes a key from cache.
func (cs *CacheService) Delete(ctx context.Context, key string) error {
	if !cs.breaker.Allow() {
		return errUnavailable
	}

	if err := cs.client.Del(ctx, key).Err(); err != nil {
		cs.breaker.RecordFailure(err)
		return fmt.Errorf("redis delete failed: %w", err)
	}

	cs.breaker.RecordSuccess()
	return nil
}

// DeletePattern deletes all keys matching a pattern. Used to invalidate every
// cached timeframe for a ticker after a journal update.
func (cs *CacheService) DeletePattern(ctx context.Context, pattern string) error {
	if !cs.breaker.Allow() {
		return errUnavailable
	}

	iter := cs.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := cs.client.Del(ctx, iter.Val()).Err(); err != nil {
			cs.breaker.RecordFailure(err)
			return fmt.Errorf("redis delete pattern failed: %w", err)
		}
	}

	if err := iter.Err(); err != nil {
		cs.breaker.RecordFailure(err)
		return fmt.Errorf("redis scan failed: %w", err)
	}

	cs.breaker.RecordSuccess()
	return nil
}

// GetJSON retrieves and unmarshals a JSON value from cache.
func (cs *CacheService) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := cs.Get(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return nil
}

// SetJSON marshals and stores a JSON value in cache.
func (cs *CacheService) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return cs.Set(ctx, key, value, ttl)
}

// Close closes the Redis connection.
func (cs *CacheService) Close() error {
	if cs.client != nil {
		return cs.client.Close()
	}
	return nil
}

// Ping checks Redis connectivity.
func (cs *CacheService) Ping(ctx context.Context) error {
	if err := cs.client.Ping(ctx).Err(); err != nil {
		cs.breaker.RecordFailure(err)
		return err
	}
	cs.breaker.RecordSuccess()
	return nil
}

// Stats returns cache statistics for monitoring.
type Stats struct {
	Healthy      bool   `json:"healthy"`
	State        string `json:"state"`
	FailureCount int    `json:"failure_count"`
	Address      string `json:"address"`
	PoolSize     int    `json:"pool_size"`
}

// GetStats returns current cache statistics.
func (cs *CacheService) GetStats() Stats {
	bs := cs.breaker.Stats()
	return Stats{
		Healthy:      bs.State == circuit.StateClosed,
		State:        string(bs.State),
		FailureCount: bs.Failures,
		Address:      cs.config.Address,
		PoolSize:     cs.config.PoolSize,
	}
}

// AnalysisKey generates a cache key for a full analysis document.
func AnalysisKey(ticker, timeframe string) string {
	return fmt.Sprintf(PrefixAnalysis, strings.ToUpper(ticker), timeframe)
}

// AnalysisIDKey generates a cache key for an analysis document by id.
func AnalysisIDKey(id string) string {
	return "analysis:id:" + id
}

// QuickCheckKey generates a cache key for a quick-check result.
func QuickCheckKey(ticker string) string {
	return fmt.Sprintf(PrefixQuickCheck, strings.ToUpper(ticker))
}

// IVHistoryKey generates a cache key for an implied volatility series.
func IVHistoryKey(ticker string) string {
	return fmt.Sprintf(PrefixIVHistory, strings.ToUpper(ticker))
}

// SeriesKey generates a cache key for a candle series.
func SeriesKey(ticker, timeframe string) string {
	return fmt.Sprintf(PrefixSeries, strings.ToUpper(ticker), timeframe)
}
