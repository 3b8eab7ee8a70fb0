package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Waleed-Khalil/trade-analyzer/internal/engine"
	"github.com/Waleed-Khalil/trade-analyzer/internal/risk"
)

var (
	ErrEntryNotFound  = errors.New("journal entry not found")
	ErrAlreadyClosed  = errors.New("journal entry already closed")
	ErrUnknownPeriod  = errors.New("unknown summary period")
	ErrNotLoggable    = errors.New("analysis does not qualify for the journal")
	ErrInvalidPremium = errors.New("exit premium must be positive")
)

// Summary periods
const (
	PeriodAll    = "all"
	PeriodLast30 = "last_30d"
	PeriodLast90 = "last_90d"
)

// Entry is one journaled trade. Exit fields are nil until the trade closes.
type Entry struct {
	ID            string     `json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	Ticker        string     `json:"ticker"`
	OptionType    string     `json:"option_type"`
	Strike        float64    `json:"strike"`
	EntryPremium  float64    `json:"entry_premium"`
	LivePremium   *float64   `json:"live_premium,omitempty"`
	DTE           *int       `json:"dte,omitempty"`
	PoP           *float64   `json:"pop,omitempty"`
	IVRank        *float64   `json:"iv_rank,omitempty"`
	ATR           *float64   `json:"atr,omitempty"`
	StopPremium   *float64   `json:"stop_premium,omitempty"`
	TargetPremium *float64   `json:"target_premium,omitempty"`
	Score         *float64   `json:"score,omitempty"`
	RiskDollars   *float64   `json:"risk_dollars,omitempty"`
	Contracts     int        `json:"contracts"`
	ExitPremium   *float64   `json:"exit_premium,omitempty"`
	ExitReason    *string    `json:"exit_reason,omitempty"`
	PnL           *float64   `json:"pnl,omitempty"`
	RMultiple     *float64   `json:"r_multiple,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
}

const entryColumns = `id, created_at, ticker, option_type, strike, entry_premium,
	live_premium, dte, pop, iv_rank, atr, stop_premium, target_premium, score,
	risk_dollars, contracts, exit_premium, exit_reason, pnl, r_multiple, notes, closed_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.CreatedAt, &e.Ticker, &e.OptionType, &e.Strike, &e.EntryPremium,
		&e.LivePremium, &e.DTE, &e.PoP, &e.IVRank, &e.ATR, &e.StopPremium,
		&e.TargetPremium, &e.Score, &e.RiskDollars, &e.Contracts, &e.ExitPremium,
		&e.ExitReason, &e.PnL, &e.RMultiple, &e.Notes, &e.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// LogSignal journals a GO analysis whose score clears minScore. Analyses that
// do not qualify return ErrNotLoggable rather than an entry.
func (s *Store) LogSignal(ctx context.Context, a *engine.TradeAnalysis, minScore float64) (*Entry, error) {
	if a.Plan == nil || a.Plan.GoNoGo != "GO" {
		return nil, ErrNotLoggable
	}
	if minScore > 0 && a.Score.Final < minScore {
		return nil, ErrNotLoggable
	}

	e := &Entry{
		ID:           uuid.New().String(),
		CreatedAt:    time.Now().UTC(),
		Ticker:       strings.ToUpper(a.Setup.Ticker),
		OptionType:   strings.ToUpper(string(a.Setup.Type)),
		Strike:       a.Setup.Strike,
		EntryPremium: a.Setup.Premium,
		Contracts:    a.Plan.Position.Contracts,
	}
	dte := a.Setup.DTE
	e.DTE = &dte
	e.PoP = a.PoP
	e.IVRank = a.IVRank
	if a.ATR > 0 {
		atr := a.ATR
		e.ATR = &atr
	}
	stop := a.Plan.StopLoss
	e.StopPremium = &stop
	target := a.Plan.Target1
	e.TargetPremium = &target
	score := a.Score.Final
	e.Score = &score
	riskDollars := a.Plan.Position.MaxRiskDollars
	e.RiskDollars = &riskDollars

	_, err := s.Pool.Exec(ctx,
		`INSERT INTO journal_entries (id, created_at, ticker, option_type, strike,
			entry_premium, dte, pop, iv_rank, atr, stop_premium, target_premium,
			score, risk_dollars, contracts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		e.ID, e.CreatedAt, e.Ticker, e.OptionType, e.Strike,
		e.EntryPremium, e.DTE, e.PoP, e.IVRank, e.ATR, e.StopPremium, e.TargetPremium,
		e.Score, e.RiskDollars, e.Contracts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert journal entry: %w", err)
	}

	s.log.Info().
		Str("id", e.ID).
		Str("ticker", e.Ticker).
		Int("contracts", e.Contracts).
		Msg("Journaled trade signal")

	return e, nil
}

// GetEntry loads a single journal entry by id
func (s *Store) GetEntry(ctx context.Context, id string) (*Entry, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM journal_entries WHERE id = $1`, id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to load journal entry: %w", err)
	}
	return e, nil
}

// CloseEntry records the exit for an open entry and computes P/L and the
// realized R multiple against the journaled stop.
func (s *Store) CloseEntry(ctx context.Context, id string, exitPremium float64, reason, notes string) (*Entry, error) {
	if exitPremium <= 0 {
		return nil, ErrInvalidPremium
	}

	e, err := s.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.ClosedAt != nil {
		return nil, ErrAlreadyClosed
	}

	pnl := (exitPremium - e.EntryPremium) * 100 * float64(e.Contracts)

	var rMultiple float64
	if e.StopPremium != nil {
		if riskPer := e.EntryPremium - *e.StopPremium; riskPer > 0 {
			rMultiple = (exitPremium - e.EntryPremium) / riskPer
		}
	}

	now := time.Now().UTC()
	_, err = s.Pool.Exec(ctx,
		`UPDATE journal_entries
		 SET exit_premium = $2, exit_reason = $3, pnl = $4, r_multiple = $5,
		     notes = NULLIF($6, ''), closed_at = $7
		 WHERE id = $1`,
		id, exitPremium, reason, pnl, rMultiple, notes, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to close journal entry: %w", err)
	}

	e.ExitPremium = &exitPremium
	e.ExitReason = &reason
	e.PnL = &pnl
	e.RMultiple = &rMultiple
	if notes != "" {
		e.Notes = &notes
	}
	e.ClosedAt = &now

	s.log.Info().
		Str("id", e.ID).
		Str("ticker", e.Ticker).
		Float64("pnl", pnl).
		Float64("r_multiple", rMultiple).
		Msg("Closed journal entry")

	return e, nil
}

// ListEntries returns entries newest first, optionally filtered by ticker and
// open/closed state.
func (s *Store) ListEntries(ctx context.Context, ticker string, openOnly bool, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + entryColumns + ` FROM journal_entries WHERE 1=1`)
	args := []interface{}{}
	if ticker != "" {
		args = append(args, strings.ToUpper(ticker))
		fmt.Fprintf(&sb, " AND ticker = $%d", len(args))
	}
	if openOnly {
		sb.WriteString(" AND closed_at IS NULL")
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.Pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecentClosedTrades returns the latest closed trades in chronological order,
// shaped for the composite sizer's history input.
func (s *Store) RecentClosedTrades(ctx context.Context, limit int) ([]risk.ClosedTrade, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.Pool.Query(ctx,
		`SELECT pnl, r_multiple FROM journal_entries
		 WHERE closed_at IS NOT NULL
		 ORDER BY closed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load closed trades: %w", err)
	}
	defer rows.Close()

	var trades []risk.ClosedTrade
	for rows.Next() {
		var t risk.ClosedTrade
		if err := rows.Scan(&t.PnL, &t.RMultiple); err != nil {
			return nil, fmt.Errorf("failed to scan closed trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query, oldest-first for the sizer
	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}
	return trades, nil
}

// TickerStats aggregates closed trades for one ticker
type TickerStats struct {
	Trades   int     `json:"trades"`
	TotalPnL float64 `json:"total_pnl"`
}

// SummaryStats summarizes closed trades over a period
type SummaryStats struct {
	Period               string                 `json:"period"`
	ClosedTrades         int                    `json:"closed_trades"`
	Wins                 int                    `json:"wins"`
	Losses               int                    `json:"losses"`
	WinRate              float64                `json:"win_rate"`
	AvgWin               float64                `json:"avg_win"`
	AvgLoss              float64                `json:"avg_loss"`
	Expectancy           float64                `json:"expectancy"`
	TotalPnL             float64                `json:"total_pnl"`
	AvgRMultiple         float64                `json:"avg_r_multiple"`
	MaxConsecutiveLosses int                    `json:"max_consecutive_losses"`
	ByTicker             map[string]TickerStats `json:"by_ticker,omitempty"`
}

// Summary computes win rate, expectancy, and streaks over closed trades.
// Period is one of "all", "last_30d", "last_90d".
func (s *Store) Summary(ctx context.Context, period string) (*SummaryStats, error) {
	var cutoff time.Time
	switch period {
	case "", PeriodAll:
		period = PeriodAll
	case PeriodLast30:
		cutoff = time.Now().UTC().AddDate(0, 0, -30)
	case PeriodLast90:
		cutoff = time.Now().UTC().AddDate(0, 0, -90)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}

	query := `SELECT ticker, pnl, r_multiple FROM journal_entries
		 WHERE closed_at IS NOT NULL`
	args := []interface{}{}
	if !cutoff.IsZero() {
		args = append(args, cutoff)
		query += ` AND closed_at >= $1`
	}
	query += ` ORDER BY closed_at ASC`

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load summary rows: %w", err)
	}
	defer rows.Close()

	stats := &SummaryStats{Period: period, ByTicker: map[string]TickerStats{}}
	var sumWins, sumLosses, sumR float64
	var streak int
	for rows.Next() {
		var ticker string
		var pnl, rMultiple float64
		if err := rows.Scan(&ticker, &pnl, &rMultiple); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}

		stats.ClosedTrades++
		stats.TotalPnL += pnl
		sumR += rMultiple
		if pnl > 0 {
			stats.Wins++
			sumWins += pnl
			streak = 0
		} else {
			stats.Losses++
			sumLosses += pnl
			streak++
			if streak > stats.MaxConsecutiveLosses {
				stats.MaxConsecutiveLosses = streak
			}
		}

		ts := stats.ByTicker[ticker]
		ts.Trades++
		ts.TotalPnL += pnl
		stats.ByTicker[ticker] = ts
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.ClosedTrades == 0 {
		return stats, nil
	}

	stats.WinRate = float64(stats.Wins) / float64(stats.ClosedTrades) * 100
	if stats.Wins > 0 {
		stats.AvgWin = sumWins / float64(stats.Wins)
	}
	if stats.Losses > 0 {
		stats.AvgLoss = sumLosses / float64(stats.Losses)
	}
	winFrac := stats.WinRate / 100
	stats.Expectancy = winFrac*stats.AvgWin + (1-winFrac)*stats.AvgLoss
	stats.AvgRMultiple = sumR / float64(stats.ClosedTrades)

	return stats, nil
}
