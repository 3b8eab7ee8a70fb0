package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Waleed-Khalil/trade-analyzer/config"
	"github.com/Waleed-Khalil/trade-analyzer/internal/engine"
	"github.com/Waleed-Khalil/trade-analyzer/internal/events"
	"github.com/Waleed-Khalil/trade-analyzer/internal/risk"
)

func testServer() *Server {
	cfg := config.Config{}
	cfg.ServerConfig.AllowedOrigins = "*"
	cfg.ServerConfig.RateLimitPerMin = 1000
	cfg.AnalysisConfig.PrimaryTimeframe = "1d"
	cfg.RiskConfig.TotalCapital = 100000
	cfg.RiskConfig.MaxOpenPositions = 5
	cfg.RiskConfig.MaxDailyLossPct = 0.06

	analyzer := engine.NewAnalyzer(risk.DefaultConfig())
	riskEngine := risk.NewEngine(risk.DefaultConfig())
	return NewServer(cfg, analyzer, riskEngine, nil, nil, events.NewEventBus(), nil, zerolog.Nop())
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v (%s)", err, w.Body.String())
	}
	if !resp.Success {
		t.Fatalf("expected success envelope, got %s", w.Body.String())
	}
	return resp.Data
}

// TestRateLimiterWindow tests the sliding window cutoff
func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(3, 50*time.Millisecond)

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("Request %d should pass", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Error("Fourth request inside the window should be rejected")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("Another client should have its own budget")
	}

	time.Sleep(60 * time.Millisecond)
	if !rl.Allow("1.2.3.4") {
		t.Error("Requests should pass again after the window slides")
	}
}

// TestHealthEndpoint tests the degraded-free happy path
func TestHealthEndpoint(t *testing.T) {
	s := testServer()
	w := doJSON(t, s, http.MethodGet, "/health", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var health map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health["status"] != "ok" {
		t.Errorf("Expected ok status, got %v", health["status"])
	}
}

// TestQuickCheckEndpoint tests scoring without candles
func TestQuickCheckEndpoint(t *testing.T) {
	s := testServer()
	w := doJSON(t, s, http.MethodPost, "/api/quick-check", map[string]interface{}{
		"ticker":      "aapl",
		"option_type": "call",
		"strike":      215.0,
		"premium":     3.50,
		"dte":         7,
		"spot":        212.0,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	setup, ok := data["setup"].(map[string]interface{})
	if !ok {
		t.Fatal("Response should echo the setup")
	}
	if setup["ticker"] != "AAPL" {
		t.Errorf("Ticker should be uppercased, got %v", setup["ticker"])
	}
	if _, ok := data["score"]; !ok {
		t.Error("Response should carry a score breakdown")
	}
	if _, ok := data["implied_vol"]; !ok {
		t.Error("A solvable quote should report implied vol")
	}
}

// TestQuickCheckValidation tests request binding failures
func TestQuickCheckValidation(t *testing.T) {
	s := testServer()

	w := doJSON(t, s, http.MethodPost, "/api/quick-check", map[string]interface{}{
		"ticker": "AAPL",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Missing fields should 400, got %d", w.Code)
	}

	w = doJSON(t, s, http.MethodPost, "/api/quick-check", map[string]interface{}{
		"ticker":      "AAPL",
		"option_type": "straddle",
		"strike":      215.0,
		"premium":     3.50,
		"spot":        212.0,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Bad option type should 400, got %d", w.Code)
	}
}

// TestRiskPlanEndpoint tests a standard plan over HTTP
func TestRiskPlanEndpoint(t *testing.T) {
	s := testServer()
	w := doJSON(t, s, http.MethodPost, "/api/risk-plan", map[string]interface{}{
		"ticker":      "AAPL",
		"option_type": "call",
		"strike":      215.0,
		"premium":     3.50,
		"dte":         7,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	if data["go_no_go"] != "GO" {
		t.Errorf("Standard setup should be GO, got %v", data["go_no_go"])
	}
	if data["stop_loss"] != 1.75 {
		t.Errorf("Expected stop 1.75, got %v", data["stop_loss"])
	}
}

// TestRiskPlanPortfolioGate tests that portfolio limits override GO
func TestRiskPlanPortfolioGate(t *testing.T) {
	s := testServer()
	for i := 0; i < 5; i++ {
		s.portfolio.RegisterOpen()
	}

	w := doJSON(t, s, http.MethodPost, "/api/risk-plan", map[string]interface{}{
		"ticker":      "AAPL",
		"option_type": "call",
		"strike":      215.0,
		"premium":     3.50,
		"dte":         7,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	data := decodeData(t, w)
	if data["go_no_go"] != "NO-GO" {
		t.Errorf("Full portfolio should force NO-GO, got %v", data["go_no_go"])
	}
}

// TestTrailingStopEndpoint tests the snapshot stop calculation
func TestTrailingStopEndpoint(t *testing.T) {
	s := testServer()
	w := doJSON(t, s, http.MethodPost, "/api/trailing-stop", map[string]interface{}{
		"ticker":        "NVDA",
		"option_type":   "call",
		"entry_price":   100.0,
		"current_price": 105.0,
		"initial_stop":  98.0,
		"atr":           1.0,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	if data["trailing_stop"] != 103.0 {
		t.Errorf("Expected ATR trail at 103, got %v", data["trailing_stop"])
	}
	if data["type"] != "atr" {
		t.Errorf("Expected atr stop kind, got %v", data["type"])
	}
}

// TestPositionLifecycle tests track, tick, and untrack over HTTP
func TestPositionLifecycle(t *testing.T) {
	s := testServer()

	w := doJSON(t, s, http.MethodPost, "/api/positions", map[string]interface{}{
		"id":           "pos-1",
		"ticker":       "NVDA",
		"option_type":  "call",
		"entry_price":  100.0,
		"initial_stop": 98.0,
		"atr":          1.0,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Track failed: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, s, http.MethodPost, "/api/positions/pos-1/price", map[string]interface{}{
		"price": 105.0,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Price update failed: %d %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	if data["moved"] != true {
		t.Errorf("Stop should have moved, got %v", data["moved"])
	}
	if data["new_stop"] != 103.0 {
		t.Errorf("Expected new stop 103, got %v", data["new_stop"])
	}

	w = doJSON(t, s, http.MethodDelete, "/api/positions/pos-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Untrack failed: %d", w.Code)
	}

	w = doJSON(t, s, http.MethodPost, "/api/positions/pos-1/price", map[string]interface{}{
		"price": 106.0,
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("Untracked position should 404, got %d", w.Code)
	}
}

// TestPortfolioEndpoint tests the metrics snapshot
func TestPortfolioEndpoint(t *testing.T) {
	s := testServer()
	w := doJSON(t, s, http.MethodGet, "/api/portfolio", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	data := decodeData(t, w)
	if data["capital"] != 100000.0 {
		t.Errorf("Expected capital in metrics, got %v", data["capital"])
	}
	if data["can_trade"] != true {
		t.Errorf("Fresh portfolio should allow trading, got %v", data["can_trade"])
	}
}

// TestJournalWithoutStore tests degraded mode responses
func TestJournalWithoutStore(t *testing.T) {
	s := testServer()
	w := doJSON(t, s, http.MethodGet, "/api/journal", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Journal without a store should 503, got %d", w.Code)
	}
}

// TestRateLimitMiddleware tests the 429 response
func TestRateLimitMiddleware(t *testing.T) {
	s := testServer()
	s.rateLimiter = NewRateLimiter(2, time.Minute)

	doJSON(t, s, http.MethodGet, "/health", nil)
	doJSON(t, s, http.MethodGet, "/health", nil)
	w := doJSON(t, s, http.MethodGet, "/health", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 after the limit, got %d", w.Code)
	}
}
