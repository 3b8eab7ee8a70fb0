package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Waleed-Khalil/trade-analyzer/config"
	"github.com/Waleed-Khalil/trade-analyzer/internal/auth"
	"github.com/Waleed-Khalil/trade-analyzer/internal/cache"
	"github.com/Waleed-Khalil/trade-analyzer/internal/engine"
	"github.com/Waleed-Khalil/trade-analyzer/internal/events"
	"github.com/Waleed-Khalil/trade-analyzer/internal/journal"
	"github.com/Waleed-Khalil/trade-analyzer/internal/risk"
)

// RateLimiter is a sliding-window limiter keyed by client IP
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow reports whether the key may make another request now
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	valid := rl.requests[key][:0]
	for _, t := range rl.requests[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)
	return true
}

// Server is the HTTP API over the analysis engine and trade journal
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	analyzer    *engine.Analyzer
	riskEngine  *risk.Engine
	store       *journal.Store
	cache       *cache.CacheService
	eventBus    *events.EventBus
	authService *auth.Service
	portfolio   *risk.PortfolioTracker
	monitor     *risk.PositionMonitor
	hub         *WSHub
	config      config.Config
	rateLimiter *RateLimiter
	log         zerolog.Logger
	startedAt   time.Time
}

// NewServer wires the API. store, cache and authService may be nil when the
// corresponding subsystem is disabled; handlers degrade accordingly.
func NewServer(cfg config.Config, analyzer *engine.Analyzer, riskEngine *risk.Engine, store *journal.Store, cacheService *cache.CacheService, eventBus *events.EventBus, authService *auth.Service, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		analyzer:    analyzer,
		riskEngine:  riskEngine,
		store:       store,
		cache:       cacheService,
		eventBus:    eventBus,
		authService: authService,
		portfolio:   risk.NewPortfolioTracker(cfg.RiskConfig.TotalCapital, cfg.RiskConfig.MaxOpenPositions, cfg.RiskConfig.MaxDailyLossPct),
		monitor:     risk.NewPositionMonitor(),
		config:      cfg,
		rateLimiter: NewRateLimiter(cfg.ServerConfig.RateLimitPerMin, time.Minute),
		log:         log.With().Str("component", "api").Logger(),
		startedAt:   time.Now(),
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestLogger())
	s.router.Use(s.corsMiddleware())
	s.router.Use(s.rateLimitMiddleware())

	s.hub = NewWSHub(s.log)
	go s.hub.Run()
	if eventBus != nil {
		eventBus.SubscribeAll(s.hub.BroadcastEvent)
	}

	s.setupRoutes()
	return s
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	origins := strings.Split(s.config.ServerConfig.AllowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	if len(origins) == 1 && origins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	return cors.New(corsConfig)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client", c.ClientIP()).
			Msg("Request handled")
	}
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.rateLimiter.Allow(c.ClientIP()) {
			errorResponse(c, http.StatusTooManyRequests, "Rate limit exceeded, try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	api := s.router.Group("/api")

	if s.authService != nil {
		authHandlers := auth.NewHandlers(s.authService)
		authHandlers.RegisterRoutes(api.Group("/auth"))
		api.Use(auth.Middleware(s.authService.GetJWTManager()))
	}

	api.POST("/analyze", s.handleAnalyze)
	api.POST("/quick-check", s.handleQuickCheck)
	api.POST("/risk-plan", s.handleRiskPlan)
	api.POST("/exit-check", s.handleExitCheck)
	api.POST("/trailing-stop", s.handleTrailingStop)

	api.GET("/portfolio", s.handlePortfolio)
	api.GET("/positions", s.handleListPositions)
	api.POST("/positions", s.handleTrackPosition)
	api.DELETE("/positions/:id", s.handleUntrackPosition)
	api.POST("/positions/:id/price", s.handlePositionPrice)

	api.GET("/analyses", s.handleListAnalyses)
	api.GET("/analyses/:id", s.handleGetAnalysis)

	api.GET("/journal", s.handleListJournal)
	api.GET("/journal/summary", s.handleJournalSummary)
	api.GET("/journal/:id", s.handleGetJournalEntry)
	api.POST("/journal/:id/close", s.handleCloseJournalEntry)
}

// Start runs the HTTP server until it fails or Shutdown is called
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.ServerConfig.Host, s.config.ServerConfig.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ServerConfig.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.ServerConfig.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Str("addr", addr).Msg("API server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("API server shutting down")
	s.hub.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{
		"status":    "ok",
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
		"timestamp": time.Now().UTC(),
	}

	if s.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.HealthCheck(ctx); err != nil {
			health["status"] = "degraded"
			health["database"] = "unreachable"
		} else {
			health["database"] = "ok"
		}
	}

	if s.cache != nil {
		stats := s.cache.GetStats()
		if stats.Healthy {
			health["cache"] = "ok"
		} else {
			health["cache"] = fmt.Sprintf("degraded (%s)", stats.State)
		}
	}

	status := http.StatusOK
	if health["status"] == "degraded" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}

func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": true, "message": message})
}

func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}
