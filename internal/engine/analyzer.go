package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Waleed-Khalil/trade-analyzer/internal/analysis"
	"github.com/Waleed-Khalil/trade-analyzer/internal/indicators"
	"github.com/Waleed-Khalil/trade-analyzer/internal/logging"
	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
	"github.com/Waleed-Khalil/trade-analyzer/internal/options"
	"github.com/Waleed-Khalil/trade-analyzer/internal/patterns"
	"github.com/Waleed-Khalil/trade-analyzer/internal/risk"
	"github.com/Waleed-Khalil/trade-analyzer/internal/scoring"
)

var (
	ErrNoCandles       = errors.New("engine: no candles for primary timeframe")
	ErrMissingSetup    = errors.New("engine: setup requires ticker, strike, premium and spot")
	ErrContextCanceled = errors.New("engine: analysis canceled")
)

// Defaults for the analysis pipeline
const (
	atrPeriod     = 14
	swingWindow   = 5
	volumePeriod  = 20
	momentumBars  = 5
	minBodySize   = 0.1
	minGapPct     = 0.1
	stressStepPct = 2.0
)

// AccountState feeds position sizing. A zero Value disables the sizer.
type AccountState struct {
	Value       float64            `json:"value"`
	DrawdownPct float64            `json:"drawdown_pct"`
	History     []risk.ClosedTrade `json:"-"`
}

// Request is one full analysis ask: the option under consideration plus
// the market snapshot to judge it against. Candles for the primary
// timeframe are required; extra timeframes feed alignment.
type Request struct {
	Setup     scoring.TradeSetup
	Primary   market.Timeframe
	Candles   map[market.Timeframe][]market.Candle
	IVHistory []float64
	Account   AccountState
}

// TradeAnalysis is the complete document produced for one request
type TradeAnalysis struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`

	Setup scoring.TradeSetup     `json:"setup"`
	Score scoring.ScoreBreakdown `json:"score"`

	Trend           *analysis.MarketStructure    `json:"trend,omitempty"`
	Alignment       *analysis.TimeframeAlignment `json:"alignment,omitempty"`
	SupportZones    []analysis.Zone              `json:"support_zones"`
	ResistanceZones []analysis.Zone              `json:"resistance_zones"`
	Volume          *analysis.VolumeState        `json:"volume,omitempty"`
	Patterns        []patterns.DetectedPattern   `json:"patterns,omitempty"`
	Fibonacci       *indicators.FibAnalysis      `json:"fibonacci,omitempty"`
	FairValueGaps   []analysis.FVG               `json:"fair_value_gaps,omitempty"`
	ATR             float64                      `json:"atr"`

	ImpliedVol *float64           `json:"implied_vol,omitempty"`
	IVRank     *float64           `json:"iv_rank,omitempty"`
	Greeks     *options.Greeks    `json:"greeks,omitempty"`
	PoP        *float64           `json:"pop,omitempty"`
	Moneyness  *options.Moneyness `json:"moneyness,omitempty"`
	Scenarios  []options.Scenario `json:"scenarios,omitempty"`

	Plan     *risk.TradePlan            `json:"plan,omitempty"`
	Sizing   *risk.SizeResult           `json:"sizing,omitempty"`
	Targets  *risk.TargetRecommendation `json:"targets,omitempty"`
	ExitPlan *risk.ExitPlan             `json:"exit_plan,omitempty"`

	Summary       string  `json:"summary"`
	MarketContext string  `json:"market_context"`
	SetupQuality  string  `json:"setup_quality"` // "high", "medium", "low"
	Confidence    float64 `json:"confidence"`    // 0.0 to 1.0
}

// Analyzer wires the full pipeline behind one call
type Analyzer struct {
	zones    *analysis.ZoneDetector
	trend    *analysis.TrendAnalyzer
	volume   *analysis.VolumeAnalyzer
	fvg      *analysis.FVGDetector
	patterns *patterns.PatternDetector
	scorer   *scoring.SetupScorer
	risk     *risk.Engine
	sizer    *risk.Sizer
	exits    *risk.ExitManager
	log      *logging.Logger
}

// NewAnalyzer creates an analyzer with the given risk configuration. A
// zero-value config falls back to the engine defaults.
func NewAnalyzer(riskCfg risk.Config) *Analyzer {
	return NewAnalyzerWithScaling(riskCfg, risk.ScaleTechnicalWeighted)
}

// NewAnalyzerWithScaling additionally selects the exit ladder method
func NewAnalyzerWithScaling(riskCfg risk.Config, method risk.ScalingMethod) *Analyzer {
	return &Analyzer{
		zones:    analysis.NewZoneDetector(swingWindow),
		trend:    analysis.NewTrendAnalyzer(swingWindow),
		volume:   analysis.NewVolumeAnalyzer(volumePeriod),
		fvg:      analysis.NewFVGDetector(minGapPct),
		patterns: patterns.NewPatternDetector(minBodySize),
		scorer:   scoring.NewSetupScorer(),
		risk:     risk.NewEngine(riskCfg),
		sizer:    risk.NewSizer(),
		exits:    risk.NewExitManager(method),
		log:      logging.Default().WithComponent("engine"),
	}
}

// Analyze runs the whole pipeline: structure, volume, patterns, option
// math, scoring, and the risk plan, folded into one TradeAnalysis.
// Unavailable upstream data degrades the document rather than failing it;
// only an unusable request is an error.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*TradeAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextCanceled, err)
	}
	setup := req.Setup
	if setup.Ticker == "" || setup.Strike <= 0 || setup.Premium <= 0 || setup.Spot <= 0 {
		return nil, ErrMissingSetup
	}
	primary, ok := req.Candles[req.Primary]
	if !ok || len(primary) == 0 {
		return nil, ErrNoCandles
	}
	s, err := market.NewSeries(primary)
	if err != nil {
		return nil, fmt.Errorf("engine: primary series: %w", err)
	}

	log := a.log.WithField("ticker", setup.Ticker)

	doc := &TradeAnalysis{
		ID:          uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
		Setup:       setup,
	}

	// Market structure
	doc.ATR = indicators.ATR(s, atrPeriod)
	doc.Trend = a.trend.Analyze(s)
	doc.Volume = a.volume.State(s)
	doc.Fibonacci = indicators.FibonacciAnalysis(s, setup.Spot, 60)

	allZones := a.zones.DetectZones(s)
	doc.SupportZones, doc.ResistanceZones = analysis.SelectZones(allZones, setup.Spot, analysis.DefaultMaxLevels)

	if len(req.Candles) > 1 {
		if mts, err := market.NewMultiTimeframeSeries(setup.Ticker, req.Candles); err == nil {
			doc.Alignment = a.trend.AlignTimeframes(mts)
		} else {
			log.Warn("timeframe alignment skipped: %v", err)
		}
	}

	doc.Patterns = a.detectPatterns(s, doc, setup.Spot)
	doc.FairValueGaps = analysis.Unfilled(a.fvg.Detect(s))

	// Option math. A failed IV solve leaves the greeks empty and the
	// scorer treats them as unavailable.
	timeYears := options.DaysToYears(setup.DTE)
	if timeYears <= 0 {
		timeYears = 1.0 / options.DaysPerYear
	}
	iv, ivErr := options.ImpliedVolatility(setup.Type, setup.Spot, setup.Strike, timeYears, options.RiskFreeRate, setup.Premium)
	if ivErr != nil {
		log.Warn("implied vol solve failed: %v", ivErr)
	} else {
		doc.ImpliedVol = &iv
		if g, err := options.ComputeGreeks(setup.Type, setup.Spot, setup.Strike, timeYears, options.RiskFreeRate, iv); err == nil {
			doc.Greeks = &g
		}
		if pop, err := options.ProbabilityOfProfit(setup.Type, setup.Spot, setup.Strike, timeYears, options.RiskFreeRate, iv); err == nil {
			doc.PoP = &pop
		}
		if rank, err := options.IVRank(iv, req.IVHistory); err == nil {
			doc.IVRank = &rank
		}
	}
	if m, err := options.StrikeContext(setup.Type, setup.Spot, setup.Strike); err == nil {
		doc.Moneyness = &m
	}

	doc.Score = a.scorer.Score(setup, scoring.SetupContext{
		Trend:           doc.Trend,
		Alignment:       doc.Alignment,
		SupportZones:    doc.SupportZones,
		ResistanceZones: doc.ResistanceZones,
		TopPattern:      topPattern(doc.Patterns),
		Volume:          doc.Volume,
		Momentum5D:      momentum(s, momentumBars),
		PoP:             doc.PoP,
		IVRank:          doc.IVRank,
	})

	a.buildPlan(doc, req, iv, ivErr == nil)

	doc.Summary = summarize(setup, doc.Plan)
	doc.MarketContext = marketContext(setup.Ticker, doc.Trend, doc.Volume)
	doc.SetupQuality = assessQuality(doc.Score)
	doc.Confidence = confidence(doc.Plan, doc.Score.RedFlags)

	log.WithFields(map[string]interface{}{
		"score":      doc.Score.Final,
		"grade":      doc.Score.Grade,
		"quality":    doc.SetupQuality,
		"confidence": doc.Confidence,
	}).Info("analysis complete")

	return doc, nil
}

// detectPatterns returns the latest-bar patterns with zone and trend
// context applied, strongest first.
func (a *Analyzer) detectPatterns(s *market.Series, doc *TradeAnalysis, spot float64) []patterns.DetectedPattern {
	found := a.patterns.DetectLatest(s)
	if len(found) == 0 {
		return nil
	}

	atZone := false
	for _, z := range append(append([]analysis.Zone{}, doc.SupportZones...), doc.ResistanceZones...) {
		if a.zones.AtZone(spot, z, 0) {
			atZone = true
			break
		}
	}

	for i, p := range found {
		aligned := doc.Trend != nil &&
			((p.Direction == patterns.Bullish && doc.Trend.Direction == analysis.TrendUp) ||
				(p.Direction == patterns.Bearish && doc.Trend.Direction == analysis.TrendDown))
		found[i] = patterns.ApplyContext(p, atZone, aligned)
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Strength > found[j].Strength
	})
	return found
}

// buildPlan attaches the risk plan, sizing, targets, and the exit ladder
func (a *Analyzer) buildPlan(doc *TradeAnalysis, req Request, iv float64, ivOK bool) {
	setup := req.Setup
	trade := risk.Trade{
		Ticker:  setup.Ticker,
		Type:    setup.Type,
		Strike:  setup.Strike,
		Premium: setup.Premium,
		DTE:     setup.DTE,
	}

	delta := 0.0
	if doc.Greeks != nil {
		delta = doc.Greeks.Delta
	}
	plan, err := a.risk.CreateTradePlan(trade, doc.ATR, delta)
	if err != nil {
		a.log.WithError(err).Error("trade plan failed for %s", setup.Ticker)
		return
	}
	doc.Plan = plan

	if req.Account.Value > 0 {
		sized := a.sizer.Size(req.Account.Value, setup.Premium, plan.StopLoss,
			doc.Score.Final, req.Account.History, doc.IVRank, req.Account.DrawdownPct)
		doc.Sizing = &sized
	}

	if ivOK {
		zones := append(append([]analysis.Zone{}, doc.SupportZones...), doc.ResistanceZones...)
		rec := risk.RecommendTargets(trade, setup.Spot, setup.Premium, plan.StopLoss, iv, zones)
		doc.Targets = &rec

		// Scale out across the repriced premiums. The ladder always
		// climbs in premium space regardless of option type.
		ladder := a.exits.Plan(options.Call, setup.Premium, plan.StopLoss,
			plan.Position.Contracts, premiumZones(rec))
		doc.ExitPlan = &ladder

		if doc.Greeks != nil {
			riskDollars := (setup.Premium - plan.StopLoss) * 100 * float64(plan.Position.Contracts)
			timeYears := options.DaysToYears(setup.DTE)
			if timeYears <= 0 {
				timeYears = 1.0 / options.DaysPerYear
			}
			if sc, err := options.StressScenarios(setup.Type, setup.Spot, setup.Strike, setup.Premium,
				timeYears, options.RiskFreeRate, iv, plan.Position.Contracts, riskDollars,
				[]float64{-2 * stressStepPct, -stressStepPct, 0, stressStepPct, 2 * stressStepPct}); err == nil {
				doc.Scenarios = sc
			}
		}
	}
}

// premiumZones converts target premiums into levels the exit ladder can
// scale against. A fallback recommendation yields none, which drops the
// ladder to its R-based rungs.
func premiumZones(rec risk.TargetRecommendation) []analysis.Zone {
	var zones []analysis.Zone
	for _, t := range []*risk.Target{rec.Conservative, rec.Moderate, rec.Aggressive} {
		if t == nil || t.Source == "r_multiple" {
			continue
		}
		zones = append(zones, analysis.Zone{Price: t.Premium, Type: analysis.ZoneResistance, Strength: 50})
	}
	return zones
}

func topPattern(ps []patterns.DetectedPattern) *patterns.DetectedPattern {
	if len(ps) == 0 {
		return nil
	}
	return &ps[0]
}

// momentum is the trailing close-to-close change in percent
func momentum(s *market.Series, bars int) float64 {
	if s.Len() < bars+1 {
		return 0
	}
	prev := s.At(s.Len() - 1 - bars).Close
	if prev == 0 {
		return 0
	}
	return (s.Last().Close - prev) / prev * 100
}

func summarize(setup scoring.TradeSetup, plan *risk.TradePlan) string {
	head := fmt.Sprintf("%s %s $%.0f @ $%.2f.", setup.Type, setup.Ticker, setup.Strike, setup.Premium)
	if plan == nil {
		return head + " No executable plan."
	}
	return fmt.Sprintf("%s Plan: %d contracts, stop $%.2f, target $%.2f (%.1fR), runner %d @ $%.2f.",
		head, plan.Position.Contracts, plan.StopLoss, plan.Target1, plan.Target1R,
		plan.RunnerContracts, plan.RunnerTarget)
}

func marketContext(ticker string, trend *analysis.MarketStructure, vol *analysis.VolumeState) string {
	if trend == nil {
		return fmt.Sprintf("No market structure available for %s", ticker)
	}
	ctx := fmt.Sprintf("%s is in a %s (strength %.0f, ADX %.1f)", ticker, trend.Direction, trend.Strength, trend.ADX)
	if vol != nil {
		ctx += fmt.Sprintf(", volume %.1fx average", vol.Ratio)
	}
	return ctx
}

// assessQuality maps the scoring flags onto a coarse quality tier
func assessQuality(score scoring.ScoreBreakdown) string {
	reds := 0
	for _, f := range score.RedFlags {
		if f.Severity == scoring.SeverityHigh {
			return "low"
		}
		if f.Severity != scoring.SeverityInfo {
			reds++
		}
	}
	greens := 0
	for _, f := range score.GreenFlags {
		if f.Severity != scoring.SeverityInfo {
			greens++
		}
	}
	switch {
	case reds > 2:
		return "medium"
	case greens >= 2:
		return "high"
	}
	return "medium"
}

// confidence starts high and erodes with each red flag. A clean GO plan
// earns a small boost, capped below certainty.
func confidence(plan *risk.TradePlan, redFlags []scoring.Flag) float64 {
	base := 0.9
	actionable := 0
	for _, f := range redFlags {
		switch f.Severity {
		case scoring.SeverityHigh:
			base -= 0.3
			actionable++
		case scoring.SeverityMedium:
			base -= 0.15
			actionable++
		}
	}
	if plan != nil && plan.GoNoGo == "GO" && actionable == 0 {
		base = math.Min(base+0.1, 0.95)
	}
	return math.Max(0.0, math.Min(base, 1.0))
}
