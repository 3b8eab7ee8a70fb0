// Package journal persists analysis documents and trade journal entries in
// PostgreSQL. Closed entries feed the composite sizer's trade history.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Waleed-Khalil/trade-analyzer/config"
	"github.com/Waleed-Khalil/trade-analyzer/internal/engine"
)

// Store wraps the PostgreSQL connection pool
type Store struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewStore creates a new journal store and verifies connectivity
func NewStore(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.PoolSize)
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	s := &Store{
		Pool: pool,
		log:  log.With().Str("component", "journal").Logger(),
	}
	s.log.Info().Str("database", cfg.Name).Msg("Connected to PostgreSQL")

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
		s.log.Info().Msg("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (s *Store) RunMigrations(ctx context.Context) error {
	s.log.Info().Msg("Running database migrations")

	migrations := []string{
		// Full analysis documents, kept as JSONB for replay and audit
		`CREATE TABLE IF NOT EXISTS analyses (
			id UUID PRIMARY KEY,
			ticker VARCHAR(12) NOT NULL,
			option_type VARCHAR(4) NOT NULL,
			strike DECIMAL(12, 2) NOT NULL,
			score DECIMAL(5, 2) NOT NULL,
			grade VARCHAR(2),
			recommendation VARCHAR(12),
			document JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_ticker ON analyses(ticker)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at DESC)`,

		// Trade journal entries
		`CREATE TABLE IF NOT EXISTS journal_entries (
			id UUID PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			ticker VARCHAR(12) NOT NULL,
			option_type VARCHAR(4) NOT NULL,
			strike DECIMAL(12, 2) NOT NULL,
			entry_premium DECIMAL(10, 2) NOT NULL,
			live_premium DECIMAL(10, 2),
			dte INT,
			pop DECIMAL(6, 4),
			iv_rank DECIMAL(5, 1),
			atr DECIMAL(10, 2),
			stop_premium DECIMAL(10, 2),
			target_premium DECIMAL(10, 2),
			score DECIMAL(5, 2),
			risk_dollars DECIMAL(12, 2),
			contracts INT NOT NULL DEFAULT 1,
			exit_premium DECIMAL(10, 2),
			exit_reason TEXT,
			pnl DECIMAL(12, 2),
			r_multiple DECIMAL(8, 2),
			notes TEXT,
			closed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_entries_ticker ON journal_entries(ticker)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_entries_created_at ON journal_entries(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_entries_closed_at ON journal_entries(closed_at)`,
	}

	for i, migration := range migrations {
		if _, err := s.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	s.log.Info().Msg("Database migrations completed")
	return nil
}

// HealthCheck performs a database health check
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

// SaveAnalysis persists a full analysis document
func (s *Store) SaveAnalysis(ctx context.Context, a *engine.TradeAnalysis) error {
	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	_, err = s.Pool.Exec(ctx,
		`INSERT INTO analyses (id, ticker, option_type, strike, score, grade, recommendation, document, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Setup.Ticker, string(a.Setup.Type), a.Setup.Strike,
		a.Score.Final, a.Score.Grade, a.Score.Recommendation, doc, a.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

// GetAnalysis retrieves a previously saved analysis document by id
func (s *Store) GetAnalysis(ctx context.Context, id string) (*engine.TradeAnalysis, error) {
	var doc []byte
	err := s.Pool.QueryRow(ctx,
		`SELECT document FROM analyses WHERE id = $1`, id,
	).Scan(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis %s: %w", id, err)
	}

	var a engine.TradeAnalysis
	if err := json.Unmarshal(doc, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis %s: %w", id, err)
	}
	return &a, nil
}

// ListAnalyses returns recent analysis documents for a ticker, newest first.
// An empty ticker returns across all tickers.
func (s *Store) ListAnalyses(ctx context.Context, ticker string, limit int) ([]*engine.TradeAnalysis, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT document FROM analyses ORDER BY created_at DESC LIMIT $1`
	args := []interface{}{limit}
	if ticker != "" {
		query = `SELECT document FROM analyses WHERE ticker = $1 ORDER BY created_at DESC LIMIT $2`
		args = []interface{}{ticker, limit}
	}

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var out []*engine.TradeAnalysis
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan analysis row: %w", err)
		}
		var a engine.TradeAnalysis
		if err := json.Unmarshal(doc, &a); err != nil {
			s.log.Warn().Err(err).Msg("Skipping unreadable analysis document")
			continue
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
