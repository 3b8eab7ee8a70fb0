package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Waleed-Khalil/trade-analyzer/config"
	"github.com/Waleed-Khalil/trade-analyzer/internal/api"
	"github.com/Waleed-Khalil/trade-analyzer/internal/auth"
	"github.com/Waleed-Khalil/trade-analyzer/internal/cache"
	"github.com/Waleed-Khalil/trade-analyzer/internal/engine"
	"github.com/Waleed-Khalil/trade-analyzer/internal/events"
	"github.com/Waleed-Khalil/trade-analyzer/internal/journal"
	"github.com/Waleed-Khalil/trade-analyzer/internal/logging"
	"github.com/Waleed-Khalil/trade-analyzer/internal/risk"
	"github.com/Waleed-Khalil/trade-analyzer/internal/vault"
)

func main() {
	sampleConfig := flag.String("sample-config", "", "Write a sample config file to the given path and exit")
	flag.Parse()

	if *sampleConfig != "" {
		if err := config.GenerateSampleConfig(*sampleConfig); err != nil {
			log.Fatalf("Failed to write sample config: %v", err)
		}
		fmt.Printf("Sample configuration written to %s\n", *sampleConfig)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
	})
	logging.SetDefault(logger)
	zl := logger.Zerolog()
	logger.Info("Structured logging initialized", "level", cfg.LoggingConfig.Level)

	ctx := context.Background()

	// Secrets from Vault override file and environment values
	if cfg.VaultConfig.Enabled {
		vaultClient, err := vault.NewClient(cfg.VaultConfig)
		if err != nil {
			log.Fatalf("Failed to connect to Vault: %v", err)
		}
		if creds, err := vaultClient.GetDatabaseCredentials(ctx); err != nil {
			logger.Warn("Database credentials not found in Vault, using configured values", "error", err)
		} else {
			cfg.DatabaseConfig.User = creds.User
			cfg.DatabaseConfig.Password = creds.Password
			logger.Info("Database credentials loaded from Vault")
		}
		if secret, err := vaultClient.GetJWTSecret(ctx); err != nil {
			logger.Warn("JWT secret not found in Vault, using configured value", "error", err)
		} else {
			cfg.AuthConfig.JWTSecret = secret
			logger.Info("JWT secret loaded from Vault")
		}
	}

	eventBus := events.NewEventBus()

	var store *journal.Store
	if cfg.JournalConfig.Enabled {
		store, err = journal.NewStore(ctx, cfg.DatabaseConfig, zl)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer store.Close()

		if err := store.RunMigrations(ctx); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		logger.Info("Trade journal store ready")
	}

	var authService *auth.Service
	if cfg.AuthConfig.Enabled {
		if store == nil {
			log.Fatal("Authentication requires the journal database to be enabled")
		}
		authRepo := auth.NewRepository(store.Pool)
		if err := authRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("Failed to run auth migrations: %v", err)
		}
		authService, err = auth.NewService(authRepo, auth.Config{
			JWTSecret:            cfg.AuthConfig.JWTSecret,
			AccessTokenDuration:  cfg.AuthConfig.AccessTokenDuration,
			RefreshTokenDuration: cfg.AuthConfig.RefreshTokenDuration,
			MinPasswordLength:    cfg.AuthConfig.MinPasswordLength,
		}, zl)
		if err != nil {
			log.Fatalf("Failed to initialize authentication: %v", err)
		}
		logger.Info("Authentication enabled")
	}

	var cacheService *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cacheService, err = cache.NewCacheService(cfg.RedisConfig, zl)
		if err != nil {
			logger.Warn("Cache disabled", "error", err)
		} else {
			defer cacheService.Close()
			logger.Info("Analysis cache ready", "address", cfg.RedisConfig.Address)
		}
	}

	riskCfg := buildRiskConfig(cfg.RiskConfig)
	analyzer := engine.NewAnalyzerWithScaling(riskCfg, risk.ScalingMethod(cfg.SizingConfig.ScalingMethod))
	riskEngine := risk.NewEngine(riskCfg)

	server := api.NewServer(*cfg, analyzer, riskEngine, store, cacheService, eventBus, authService, zl)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
	logger.Info("Shutdown complete")
}

// buildRiskConfig maps configuration onto the risk engine's parameters
func buildRiskConfig(rc config.RiskConfig) risk.Config {
	return risk.Config{
		TotalCapital:       rc.TotalCapital,
		MaxRiskPerTrade:    rc.MaxRiskPerTrade,
		MaxOpenPositions:   rc.MaxOpenPositions,
		MinPremium:         rc.MinPremium,
		MaxCapitalPct:      rc.MaxCapitalPct,
		StopPct:            rc.StopPct,
		ZeroDTEStopPct:     rc.ZeroDTEStopPct,
		MaxLossPerContract: rc.MaxLossPerContract,
		ATRStopMultiplier:  rc.ATRStopMultiplier,
		ZeroDTEATRMult:     rc.ZeroDTEATRMult,
		ProfitTargetR:      rc.ProfitTargetR,
		RunnerTargetR:      rc.RunnerTargetR,
		RunnerRemainingPct: rc.RunnerRemainingPct,
	}
}
