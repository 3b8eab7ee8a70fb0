package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Waleed-Khalil/trade-analyzer/internal/analysis"
	"github.com/Waleed-Khalil/trade-analyzer/internal/risk"
)

func (s *Server) handlePortfolio(c *gin.Context) {
	successResponse(c, s.portfolio.Metrics())
}

type trackPositionRequest struct {
	ID          string          `json:"id"`
	Ticker      string          `json:"ticker" binding:"required"`
	OptionType  string          `json:"option_type" binding:"required"`
	EntryPrice  float64         `json:"entry_price" binding:"required,gt=0"`
	InitialStop float64         `json:"initial_stop" binding:"required,gt=0"`
	ATR         float64         `json:"atr"`
	Zones       []analysis.Zone `json:"zones"`
}

func (s *Server) handleTrackPosition(c *gin.Context) {
	var req trackPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	optType, ok := parseOptionType(req.OptionType)
	if !ok {
		errorResponse(c, http.StatusBadRequest, "option_type must be 'call' or 'put'")
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	s.monitor.Track(risk.MonitoredPosition{
		ID:          id,
		Ticker:      strings.ToUpper(req.Ticker),
		Type:        optType,
		EntryPrice:  req.EntryPrice,
		InitialStop: req.InitialStop,
		ATR:         req.ATR,
		Zones:       req.Zones,
	})

	pos, _ := s.monitor.Position(id)
	successResponse(c, pos)
}

func (s *Server) handleListPositions(c *gin.Context) {
	successResponse(c, s.monitor.Positions())
}

func (s *Server) handleUntrackPosition(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.monitor.Position(id); !ok {
		errorResponse(c, http.StatusNotFound, "Position is not tracked")
		return
	}
	s.monitor.Untrack(id)
	successResponse(c, gin.H{"id": id, "untracked": true})
}

type positionPriceRequest struct {
	Price float64 `json:"price" binding:"required,gt=0"`
}

// handlePositionPrice feeds one underlying tick to the monitor. Stop
// moves and triggers stream out on the event bus as well.
func (s *Server) handlePositionPrice(c *gin.Context) {
	var req positionPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	update, err := s.monitor.UpdatePrice(c.Param("id"), req.Price)
	if err != nil {
		if errors.Is(err, risk.ErrPositionNotTracked) {
			errorResponse(c, http.StatusNotFound, "Position is not tracked")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "Failed to update position")
		return
	}

	if s.eventBus != nil {
		if update.Triggered {
			s.eventBus.PublishExitAdjustment(update.Ticker, "stop_triggered", update.Reason, 0)
		} else if update.Moved {
			s.eventBus.PublishStopUpdate(update.Ticker, string(update.Kind), update.NewStop, update.ProfitR)
		}
	}

	successResponse(c, update)
}
