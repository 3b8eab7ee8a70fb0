package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Waleed-Khalil/trade-analyzer/config"
	"github.com/Waleed-Khalil/trade-analyzer/internal/engine"
	"github.com/Waleed-Khalil/trade-analyzer/internal/logging"
	"github.com/Waleed-Khalil/trade-analyzer/internal/market"
	"github.com/Waleed-Khalil/trade-analyzer/internal/options"
	"github.com/Waleed-Khalil/trade-analyzer/internal/risk"
	"github.com/Waleed-Khalil/trade-analyzer/internal/scoring"
)

// marketFile is the JSON document holding the market snapshot for one run
type marketFile struct {
	Candles   map[string][]market.Candle `json:"candles"`
	IVHistory []float64                  `json:"iv_history"`
	Account   *struct {
		Value       float64 `json:"value"`
		DrawdownPct float64 `json:"drawdown_pct"`
	} `json:"account"`
}

func main() {
	var (
		input      = flag.String("input", "", "Path to a JSON file with candles, iv history and account state")
		ticker     = flag.String("ticker", "", "Underlying ticker, e.g. SPY")
		optionType = flag.String("type", "call", "Option type: call or put")
		strike     = flag.Float64("strike", 0, "Strike price")
		premium    = flag.Float64("premium", 0, "Quoted premium per share")
		dte        = flag.Int("dte", 0, "Days to expiration")
		spot       = flag.Float64("spot", 0, "Current underlying price")
		timeframe  = flag.String("timeframe", "", "Primary timeframe (default from config)")
		jsonOut    = flag.Bool("json", false, "Print the full analysis document as JSON")
	)
	flag.Parse()

	godotenv.Load()

	if *input == "" || *ticker == "" || *strike <= 0 || *premium <= 0 || *spot <= 0 {
		fmt.Fprintln(os.Stderr, "Usage: analyze -input market.json -ticker SPY -type call -strike 500 -premium 2.50 -dte 7 -spot 498")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fatalf("Failed to load configuration: %v", err)
	}

	// Keep log noise off the report unless asked for
	logging.SetDefault(logging.New(&logging.Config{Level: "ERROR", Output: "stderr"}))

	data, err := os.ReadFile(*input)
	if err != nil {
		fatalf("Failed to read %s: %v", *input, err)
	}
	var mf marketFile
	if err := json.Unmarshal(data, &mf); err != nil {
		fatalf("Failed to parse %s: %v", *input, err)
	}

	var optType options.OptionType
	switch strings.ToLower(*optionType) {
	case "call":
		optType = options.Call
	case "put":
		optType = options.Put
	default:
		fatalf("Unknown option type %q, use call or put", *optionType)
	}

	tfName := *timeframe
	if tfName == "" {
		tfName = cfg.AnalysisConfig.PrimaryTimeframe
	}
	candles := make(map[market.Timeframe][]market.Candle, len(mf.Candles))
	for name, bars := range mf.Candles {
		candles[market.Timeframe(name)] = bars
	}

	req := engine.Request{
		Setup: scoring.TradeSetup{
			Ticker:  strings.ToUpper(*ticker),
			Type:    optType,
			Strike:  *strike,
			Premium: *premium,
			DTE:     *dte,
			Spot:    *spot,
		},
		Primary:   market.Timeframe(tfName),
		Candles:   candles,
		IVHistory: mf.IVHistory,
	}
	if mf.Account != nil {
		req.Account = engine.AccountState{
			Value:       mf.Account.Value,
			DrawdownPct: mf.Account.DrawdownPct,
		}
	}

	riskCfg := risk.Config{
		TotalCapital:       cfg.RiskConfig.TotalCapital,
		MaxRiskPerTrade:    cfg.RiskConfig.MaxRiskPerTrade,
		MaxOpenPositions:   cfg.RiskConfig.MaxOpenPositions,
		MinPremium:         cfg.RiskConfig.MinPremium,
		MaxCapitalPct:      cfg.RiskConfig.MaxCapitalPct,
		StopPct:            cfg.RiskConfig.StopPct,
		ZeroDTEStopPct:     cfg.RiskConfig.ZeroDTEStopPct,
		MaxLossPerContract: cfg.RiskConfig.MaxLossPerContract,
		ATRStopMultiplier:  cfg.RiskConfig.ATRStopMultiplier,
		ZeroDTEATRMult:     cfg.RiskConfig.ZeroDTEATRMult,
		ProfitTargetR:      cfg.RiskConfig.ProfitTargetR,
		RunnerTargetR:      cfg.RiskConfig.RunnerTargetR,
		RunnerRemainingPct: cfg.RiskConfig.RunnerRemainingPct,
	}

	analyzer := engine.NewAnalyzerWithScaling(riskCfg, risk.ScalingMethod(cfg.SizingConfig.ScalingMethod))
	doc, err := analyzer.Analyze(context.Background(), req)
	if err != nil {
		fatalf("Analysis failed: %v", err)
	}

	if *jsonOut {
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			fatalf("Failed to marshal analysis: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	printReport(doc)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printReport(doc *engine.TradeAnalysis) {
	rule := strings.Repeat("=", 64)

	fmt.Println(rule)
	fmt.Printf("TRADE ANALYSIS  %s %s $%.2f  (%d DTE, premium $%.2f)\n",
		doc.Setup.Ticker, strings.ToUpper(string(doc.Setup.Type)), doc.Setup.Strike, doc.Setup.DTE, doc.Setup.Premium)
	fmt.Println(rule)

	fmt.Printf("\nScore: %.0f (%s)  Recommendation: %s\n", doc.Score.Final, doc.Score.Grade, doc.Score.Recommendation)
	fmt.Printf("Quality: %s  Confidence: %.0f%%\n", doc.SetupQuality, doc.Confidence*100)

	if len(doc.Score.GreenFlags) > 0 {
		fmt.Println("\nGreen flags:")
		for _, f := range doc.Score.GreenFlags {
			fmt.Printf("  + %s\n", f.Message)
		}
	}
	if len(doc.Score.RedFlags) > 0 {
		fmt.Println("\nRed flags:")
		for _, f := range doc.Score.RedFlags {
			fmt.Printf("  - [%s] %s\n", f.Severity, f.Message)
		}
	}

	if doc.Trend != nil {
		fmt.Printf("\nTrend: %s (strength %.0f)  ATR: %.2f\n", doc.Trend.Direction, doc.Trend.Strength, doc.ATR)
	}
	if doc.ImpliedVol != nil {
		fmt.Printf("Implied vol: %.1f%%", *doc.ImpliedVol*100)
		if doc.IVRank != nil {
			fmt.Printf("  IV rank: %.0f", *doc.IVRank)
		}
		if doc.PoP != nil {
			fmt.Printf("  PoP: %.0f%%", *doc.PoP*100)
		}
		fmt.Println()
	}

	if len(doc.SupportZones) > 0 {
		fmt.Println("\nSupport zones:")
		for _, z := range doc.SupportZones {
			fmt.Printf("  %.2f (strength %.0f, %d touches)\n", z.Price, z.Strength, z.Touches)
		}
	}
	if len(doc.ResistanceZones) > 0 {
		fmt.Println("Resistance zones:")
		for _, z := range doc.ResistanceZones {
			fmt.Printf("  %.2f (strength %.0f, %d touches)\n", z.Price, z.Strength, z.Touches)
		}
	}

	if doc.Plan != nil {
		p := doc.Plan
		fmt.Println("\n" + rule)
		fmt.Printf("TRADE PLAN  [%s]\n", p.GoNoGo)
		fmt.Println(rule)
		for _, r := range p.GoNoGoReasons {
			fmt.Printf("  %s\n", r)
		}
		fmt.Printf("\nContracts: %d  Capital: $%.2f  Max risk: $%.2f (%.1f%%)\n",
			p.Position.Contracts, p.Position.CapitalUsed, p.Position.MaxRiskDollars, p.Position.RiskPct*100)
		fmt.Printf("Entry: %s\n", p.EntryZone)
		fmt.Printf("Stop: $%.2f (%.0f%% of premium)\n", p.StopLoss, p.StopRiskPct*100)
		fmt.Printf("Target 1: $%.2f (%.1fR)\n", p.Target1, p.Target1R)
		if p.RunnerContracts > 0 {
			fmt.Printf("Runner: %d contracts to $%.2f (%.1fR)\n", p.RunnerContracts, p.RunnerTarget, p.RunnerTargetR)
		}
		fmt.Printf("Max loss: $%.2f  Max gain at runner: $%.2f\n", p.MaxLossDollars, p.MaxGainDollars)
	}

	if doc.Summary != "" {
		fmt.Println("\n" + doc.Summary)
	}
	if doc.MarketContext != "" {
		fmt.Println(doc.MarketContext)
	}
	fmt.Println()
}
