package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Waleed-Khalil/trade-analyzer/internal/analysis"
	"github.com/Waleed-Khalil/trade-analyzer/internal/cache"
	"github.com/Waleed-Khalil/trade-analyzer/internal/engine"
	"github.com/Waleed-Khalil/trade-analyzer/internal/events"
	"github.com/Waleed-Khalil/trade-analyzer/internal/journal"
	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
	"github.com/Waleed-Khalil/trade-analyzer/internal/options"
	"github.com/Waleed-Khalil/trade-analyzer/internal/patterns"
	"github.com/Waleed-Khalil/trade-analyzer/internal/risk"
	"github.com/Waleed-Khalil/trade-analyzer/internal/scoring"
)

var validTimeframes = map[string]market.Timeframe{
	"5m":  market.TF5m,
	"15m": market.TF15m,
	"1h":  market.TF1h,
	"4h":  market.TF4h,
	"1d":  market.TF1d,
}

func parseTimeframe(v string) (market.Timeframe, bool) {
	tf, ok := validTimeframes[strings.ToLower(v)]
	return tf, ok
}

func parseOptionType(v string) (options.OptionType, bool) {
	switch strings.ToLower(v) {
	case "call":
		return options.Call, true
	case "put":
		return options.Put, true
	}
	return "", false
}

type accountStateRequest struct {
	Value       float64 `json:"value"`
	DrawdownPct float64 `json:"drawdown_pct"`
}

type analyzeRequest struct {
	Ticker     string                     `json:"ticker" binding:"required"`
	OptionType string                     `json:"option_type" binding:"required"`
	Strike     float64                    `json:"strike" binding:"required,gt=0"`
	Premium    float64                    `json:"premium" binding:"required,gt=0"`
	DTE        int                        `json:"dte" binding:"gte=0"`
	Spot       float64                    `json:"spot" binding:"required,gt=0"`
	Timeframe  string                     `json:"timeframe"`
	Candles    map[string][]market.Candle `json:"candles" binding:"required"`
	IVHistory  []float64                  `json:"iv_history"`
	Account    *accountStateRequest       `json:"account"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	optType, ok := parseOptionType(req.OptionType)
	if !ok {
		errorResponse(c, http.StatusBadRequest, "option_type must be 'call' or 'put'")
		return
	}

	tfName := req.Timeframe
	if tfName == "" {
		tfName = s.config.AnalysisConfig.PrimaryTimeframe
	}
	primary, ok := parseTimeframe(tfName)
	if !ok {
		errorResponse(c, http.StatusBadRequest, "Unknown timeframe: "+tfName)
		return
	}

	candles := make(map[market.Timeframe][]market.Candle, len(req.Candles))
	for name, bars := range req.Candles {
		tf, ok := parseTimeframe(name)
		if !ok {
			errorResponse(c, http.StatusBadRequest, "Unknown timeframe in candles: "+name)
			return
		}
		candles[tf] = bars
	}
	if _, ok := candles[primary]; !ok {
		errorResponse(c, http.StatusBadRequest, "Candles for the primary timeframe are required")
		return
	}

	engineReq := engine.Request{
		Setup: scoring.TradeSetup{
			Ticker:  strings.ToUpper(req.Ticker),
			Type:    optType,
			Strike:  req.Strike,
			Premium: req.Premium,
			DTE:     req.DTE,
			Spot:    req.Spot,
		},
		Primary:   primary,
		Candles:   candles,
		IVHistory: req.IVHistory,
	}

	if req.Account != nil {
		engineReq.Account = engine.AccountState{
			Value:       req.Account.Value,
			DrawdownPct: req.Account.DrawdownPct,
		}
		if s.store != nil {
			history, err := s.store.RecentClosedTrades(c.Request.Context(), 30)
			if err != nil {
				s.log.Warn().Err(err).Msg("Trade history unavailable, sizing without it")
			} else {
				engineReq.Account.History = history
			}
		}
	}

	doc, err := s.analyzer.Analyze(c.Request.Context(), engineReq)
	if err != nil {
		errorResponse(c, http.StatusUnprocessableEntity, "Analysis failed: "+err.Error())
		return
	}

	if s.store != nil {
		if err := s.store.SaveAnalysis(c.Request.Context(), doc); err != nil {
			s.log.Warn().Err(err).Str("id", doc.ID).Msg("Failed to persist analysis")
		}
		if s.config.JournalConfig.Enabled {
			entry, err := s.store.LogSignal(c.Request.Context(), doc, s.config.JournalConfig.MinScoreToLog)
			if err != nil && !errors.Is(err, journal.ErrNotLoggable) {
				s.log.Warn().Err(err).Str("id", doc.ID).Msg("Failed to journal signal")
			} else if entry != nil {
				s.portfolio.RegisterOpen()
			}
			if entry != nil && s.eventBus != nil {
				s.eventBus.Publish(events.Event{
					Type:      events.EventJournalUpdated,
					Timestamp: time.Now(),
					Data: map[string]interface{}{
						"entry_id": entry.ID,
						"ticker":   entry.Ticker,
						"action":   "logged",
					},
				})
			}
		}
	}

	if s.cache != nil {
		ttl := time.Duration(s.config.AnalysisConfig.CacheTTLSeconds) * time.Second
		if ttl <= 0 {
			ttl = cache.DefaultAnalysisTTL
		}
		ctx := c.Request.Context()
		if err := s.cache.SetJSON(ctx, cache.AnalysisIDKey(doc.ID), doc, ttl); err != nil && !cache.IsUnavailable(err) {
			s.log.Warn().Err(err).Msg("Failed to cache analysis")
		}
		_ = s.cache.SetJSON(ctx, cache.AnalysisKey(doc.Setup.Ticker, string(primary)), doc, ttl)
	}

	if s.eventBus != nil {
		s.eventBus.PublishAnalysisCompleted(doc.ID, doc.Setup.Ticker, doc.Score.Final, doc.Score.Grade, doc.Score.Recommendation)
	}

	successResponse(c, doc)
}

type quickCheckRequest struct {
	Ticker     string    `json:"ticker" binding:"required"`
	OptionType string    `json:"option_type" binding:"required"`
	Strike     float64   `json:"strike" binding:"required,gt=0"`
	Premium    float64   `json:"premium" binding:"required,gt=0"`
	DTE        int       `json:"dte" binding:"gte=0"`
	Spot       float64   `json:"spot" binding:"required,gt=0"`
	PoP        *float64  `json:"pop"`
	IVRank     *float64  `json:"iv_rank"`
	IVHistory  []float64 `json:"iv_history"`
}

// handleQuickCheck scores a setup without candles. Greeks and probability
// come from the option quote alone, so the verdict is a screen, not a plan.
func (s *Server) handleQuickCheck(c *gin.Context) {
	var req quickCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	optType, ok := parseOptionType(req.OptionType)
	if !ok {
		errorResponse(c, http.StatusBadRequest, "option_type must be 'call' or 'put'")
		return
	}

	setup := scoring.TradeSetup{
		Ticker:  strings.ToUpper(req.Ticker),
		Type:    optType,
		Strike:  req.Strike,
		Premium: req.Premium,
		DTE:     req.DTE,
		Spot:    req.Spot,
	}

	sctx := scoring.SetupContext{PoP: req.PoP, IVRank: req.IVRank}

	timeYears := options.DaysToYears(req.DTE)
	if timeYears <= 0 {
		timeYears = 1.0 / options.DaysPerYear
	}
	iv, ivErr := options.ImpliedVolatility(optType, req.Spot, req.Strike, timeYears, options.RiskFreeRate, req.Premium)
	response := gin.H{}
	if ivErr == nil {
		response["implied_vol"] = iv
		if sctx.PoP == nil {
			if pop, err := options.ProbabilityOfProfit(optType, req.Spot, req.Strike, timeYears, options.RiskFreeRate, iv); err == nil {
				sctx.PoP = &pop
				response["pop"] = pop
			}
		}
		if sctx.IVRank == nil && len(req.IVHistory) > 0 {
			if rank, err := options.IVRank(iv, req.IVHistory); err == nil {
				sctx.IVRank = &rank
				response["iv_rank"] = rank
			}
		}
		if m, err := options.StrikeContext(optType, req.Spot, req.Strike); err == nil {
			response["moneyness"] = m
		}
	}

	score := scoring.NewSetupScorer().Score(setup, sctx)
	response["setup"] = setup
	response["score"] = score

	if s.eventBus != nil {
		s.eventBus.Publish(events.Event{
			Type:      events.EventQuickCheck,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"ticker": setup.Ticker,
				"score":  score.Final,
				"grade":  score.Grade,
			},
		})
	}

	successResponse(c, response)
}

type riskPlanRequest struct {
	Ticker     string  `json:"ticker" binding:"required"`
	OptionType string  `json:"option_type" binding:"required"`
	Strike     float64 `json:"strike" binding:"required,gt=0"`
	Premium    float64 `json:"premium" binding:"required,gt=0"`
	DTE        int     `json:"dte" binding:"gte=0"`
	ATR        float64 `json:"atr"`
	Delta      float64 `json:"delta"`
}

func (s *Server) handleRiskPlan(c *gin.Context) {
	var req riskPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	optType, ok := parseOptionType(req.OptionType)
	if !ok {
		errorResponse(c, http.StatusBadRequest, "option_type must be 'call' or 'put'")
		return
	}

	trade := risk.Trade{
		Ticker:  strings.ToUpper(req.Ticker),
		Type:    optType,
		Strike:  req.Strike,
		Premium: req.Premium,
		DTE:     req.DTE,
	}

	plan, err := s.riskEngine.CreateTradePlan(trade, req.ATR, req.Delta)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "Plan rejected: "+err.Error())
		return
	}

	// Portfolio limits override a per-trade GO
	if ok, reason := s.portfolio.CanOpenPosition(); !ok {
		plan.GoNoGo = "NO-GO"
		plan.GoNoGoReasons = append(plan.GoNoGoReasons, "Portfolio limit: "+reason)
	}

	if s.eventBus != nil {
		s.eventBus.PublishPlanCreated(trade.Ticker, plan.GoNoGo, plan.Position.Contracts, plan.StopLoss, plan.Target1)
	}

	successResponse(c, plan)
}

type exitCheckRequest struct {
	Ticker             string          `json:"ticker" binding:"required"`
	OptionType         string          `json:"option_type" binding:"required"`
	Strike             float64         `json:"strike" binding:"required,gt=0"`
	DTE                int             `json:"dte" binding:"gte=0"`
	EntryPremium       float64         `json:"entry_premium" binding:"required,gt=0"`
	CurrentPremium     float64         `json:"current_premium" binding:"required,gt=0"`
	ContractsRemaining int             `json:"contracts_remaining" binding:"required,gt=0"`
	Candles            []market.Candle `json:"candles" binding:"required"`
}

// handleExitCheck rereads the chart around an open position and reports
// whether the stop or runner target should move.
func (s *Server) handleExitCheck(c *gin.Context) {
	var req exitCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	optType, ok := parseOptionType(req.OptionType)
	if !ok {
		errorResponse(c, http.StatusBadRequest, "option_type must be 'call' or 'put'")
		return
	}

	series, err := market.NewSeries(req.Candles)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid candles: "+err.Error())
		return
	}

	swing := s.config.AnalysisConfig.SwingWindow
	if swing <= 0 {
		swing = 5
	}
	minBody := s.config.AnalysisConfig.MinBodySize
	if minBody <= 0 {
		minBody = 0.1
	}

	zones := analysis.NewZoneDetector(swing).DetectZones(series)
	detector := patterns.NewPatternDetector(minBody)

	pos := risk.OpenPosition{
		Trade: risk.Trade{
			Ticker:  strings.ToUpper(req.Ticker),
			Type:    optType,
			Strike:  req.Strike,
			Premium: req.EntryPremium,
			DTE:     req.DTE,
		},
		ContractsRemaining: req.ContractsRemaining,
		EntryPremium:       req.EntryPremium,
		CurrentPremium:     req.CurrentPremium,
	}

	adj := s.riskEngine.CheckExitAdjustment(pos, series, zones, detector)

	if s.eventBus != nil {
		s.eventBus.PublishExitAdjustment(pos.Trade.Ticker, string(adj.Action), adj.Reason, adj.ExitContracts)
	}

	successResponse(c, adj)
}

type trailingStopRequest struct {
	Ticker       string          `json:"ticker" binding:"required"`
	OptionType   string          `json:"option_type" binding:"required"`
	EntryPrice   float64         `json:"entry_price" binding:"required,gt=0"`
	CurrentPrice float64         `json:"current_price" binding:"required,gt=0"`
	InitialStop  float64         `json:"initial_stop" binding:"required,gt=0"`
	ATR          float64         `json:"atr"`
	ProfitR      float64         `json:"profit_r"`
	Zones        []analysis.Zone `json:"zones"`
}

// handleTrailingStop recomputes the stop for one snapshot of the
// underlying. Prices and zones are in underlying space.
func (s *Server) handleTrailingStop(c *gin.Context) {
	var req trailingStopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	optType, ok := parseOptionType(req.OptionType)
	if !ok {
		errorResponse(c, http.StatusBadRequest, "option_type must be 'call' or 'put'")
		return
	}

	profitR := req.ProfitR
	if profitR == 0 {
		profitR = risk.ProfitInR(optType, req.EntryPrice, req.CurrentPrice, req.InitialStop)
	}

	ts := risk.NewTrailingManager().Calculate(optType, req.EntryPrice, req.CurrentPrice, req.InitialStop, req.ATR, profitR, req.Zones)

	if s.eventBus != nil && ts.Active {
		s.eventBus.PublishStopUpdate(strings.ToUpper(req.Ticker), string(ts.Kind), ts.Price, ts.ProfitR)
	}

	successResponse(c, ts)
}

func (s *Server) requireStore(c *gin.Context) bool {
	if s.store == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Journal storage is not configured")
		return false
	}
	return true
}

func (s *Server) handleListAnalyses(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	ticker := strings.ToUpper(c.Query("ticker"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	docs, err := s.store.ListAnalyses(c.Request.Context(), ticker, limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to list analyses")
		return
	}
	successResponse(c, docs)
}

func (s *Server) handleGetAnalysis(c *gin.Context) {
	id := c.Param("id")

	if s.cache != nil {
		var doc engine.TradeAnalysis
		if err := s.cache.GetJSON(c.Request.Context(), cache.AnalysisIDKey(id), &doc); err == nil {
			successResponse(c, &doc)
			return
		}
	}

	if !s.requireStore(c) {
		return
	}

	doc, err := s.store.GetAnalysis(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, http.StatusNotFound, "Analysis not found")
		return
	}

	if s.cache != nil {
		ttl := time.Duration(s.config.AnalysisConfig.CacheTTLSeconds) * time.Second
		if ttl <= 0 {
			ttl = cache.DefaultAnalysisTTL
		}
		_ = s.cache.SetJSON(c.Request.Context(), cache.AnalysisIDKey(id), doc, ttl)
	}

	successResponse(c, doc)
}

func (s *Server) handleListJournal(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	ticker := strings.ToUpper(c.Query("ticker"))
	openOnly := c.Query("open") == "true"
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := s.store.ListEntries(c.Request.Context(), ticker, openOnly, limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to list journal entries")
		return
	}
	successResponse(c, entries)
}

func (s *Server) handleGetJournalEntry(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	entry, err := s.store.GetEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, journal.ErrEntryNotFound) {
			errorResponse(c, http.StatusNotFound, "Journal entry not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "Failed to load journal entry")
		return
	}
	successResponse(c, entry)
}

type closeEntryRequest struct {
	ExitPremium float64 `json:"exit_premium" binding:"required,gt=0"`
	Reason      string  `json:"reason" binding:"required"`
	Notes       string  `json:"notes"`
}

func (s *Server) handleCloseJournalEntry(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	var req closeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	entry, err := s.store.CloseEntry(c.Request.Context(), c.Param("id"), req.ExitPremium, req.Reason, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, journal.ErrEntryNotFound):
			errorResponse(c, http.StatusNotFound, "Journal entry not found")
		case errors.Is(err, journal.ErrAlreadyClosed):
			errorResponse(c, http.StatusConflict, "Journal entry is already closed")
		case errors.Is(err, journal.ErrInvalidPremium):
			errorResponse(c, http.StatusBadRequest, "Exit premium must be positive")
		default:
			errorResponse(c, http.StatusInternalServerError, "Failed to close journal entry")
		}
		return
	}

	if entry.PnL != nil {
		s.portfolio.RegisterClose(*entry.PnL)
	}

	if s.eventBus != nil {
		data := map[string]interface{}{
			"entry_id": entry.ID,
			"ticker":   entry.Ticker,
			"action":   "closed",
		}
		if entry.PnL != nil {
			data["pnl"] = *entry.PnL
		}
		if entry.RMultiple != nil {
			data["r_multiple"] = *entry.RMultiple
		}
		s.eventBus.Publish(events.Event{
			Type:      events.EventJournalUpdated,
			Timestamp: time.Now(),
			Data:      data,
		})
	}

	successResponse(c, entry)
}

func (s *Server) handleJournalSummary(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	period := c.DefaultQuery("period", journal.PeriodAll)

	stats, err := s.store.Summary(c.Request.Context(), period)
	if err != nil {
		if errors.Is(err, journal.ErrUnknownPeriod) {
			errorResponse(c, http.StatusBadRequest, "Unknown period, use all, last_30d or last_90d")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "Failed to compute journal summary")
		return
	}
	successResponse(c, stats)
}
