package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type contextKey string

const (
	loggerKey  contextKey = "logger"
	traceIDKey contextKey = "trace_id"
)

// GenerateTraceID generates a new trace ID
func GenerateTraceID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// FromContext retrieves the logger from context, falling back to the default
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return Default()
}

// NewContext creates a new context carrying the logger
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// TraceIDFromContext returns the trace id stored in the context, if any
func TraceIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}

// WithTraceContext adds a trace ID to the context and returns a logger with it
func WithTraceContext(ctx context.Context) (context.Context, *Logger) {
	traceID := GenerateTraceID()
	l := Default().WithTraceID(traceID)
	newCtx := context.WithValue(ctx, traceIDKey, traceID)
	newCtx = context.WithValue(newCtx, loggerKey, l)
	return newCtx, l
}

// AnalysisContext creates a logger for one analysis run
func AnalysisContext(ticker, timeframe string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"ticker":    ticker,
		"timeframe": timeframe,
	}).WithComponent("analysis")
}

// JournalContext creates a logger for journal operations
func JournalContext(entryID, ticker string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"entry_id": entryID,
		"ticker":   ticker,
	}).WithComponent("journal")
}

// PlanContext creates a logger for risk plan operations
func PlanContext(ticker string, contracts int, riskDollars float64) *Logger {
	return Default().WithFields(map[string]interface{}{
		"ticker":       ticker,
		"contracts":    contracts,
		"risk_dollars": riskDollars,
	}).WithComponent("risk")
}
