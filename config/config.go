package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AnalysisConfig AnalysisConfig `json:"analysis"`
	RiskConfig     RiskConfig     `json:"risk"`
	SizingConfig   SizingConfig   `json:"sizing"`
	JournalConfig  JournalConfig  `json:"journal"`
	LoggingConfig  LoggingConfig  `json:"logging"`
	ServerConfig   ServerConfig   `json:"server"`
	AuthConfig     AuthConfig     `json:"auth"`
	VaultConfig    VaultConfig    `json:"vault"`
	RedisConfig    RedisConfig    `json:"redis"`
	DatabaseConfig DatabaseConfig `json:"database"`
}

// AnalysisConfig tunes the analysis pipeline
type AnalysisConfig struct {
	SwingWindow      int      `json:"swing_window"`      // Bars each side of a swing point
	ATRPeriod        int      `json:"atr_period"`
	VolumePeriod     int      `json:"volume_period"`     // Baseline for volume ratios
	MinBodySize      float64  `json:"min_body_size"`     // Pattern body threshold, fraction of range
	PrimaryTimeframe string   `json:"primary_timeframe"` // e.g. "1d", "1h"
	AlignTimeframes  []string `json:"align_timeframes"`  // Extra timeframes for alignment
	CacheTTLSeconds  int      `json:"cache_ttl_seconds"` // Analysis result cache TTL
}

// RiskConfig mirrors the risk engine's plan parameters
type RiskConfig struct {
	TotalCapital       float64 `json:"total_capital"`
	MaxRiskPerTrade    float64 `json:"max_risk_per_trade"` // Fraction, e.g. 0.02
	MaxOpenPositions   int     `json:"max_open_positions"`
	MinPremium         float64 `json:"min_premium"`
	MaxCapitalPct      float64 `json:"max_capital_pct"`
	StopPct            float64 `json:"stop_pct"`
	ZeroDTEStopPct     float64 `json:"zero_dte_stop_pct"`
	MaxLossPerContract float64 `json:"max_loss_per_contract"`
	ATRStopMultiplier  float64 `json:"atr_stop_multiplier"`
	ZeroDTEATRMult     float64 `json:"zero_dte_atr_multiplier"`
	ProfitTargetR      float64 `json:"profit_target_r"`
	RunnerTargetR      float64 `json:"runner_target_r"`
	RunnerRemainingPct float64 `json:"runner_remaining_pct"`
	MaxDailyLossPct    float64 `json:"max_daily_loss_pct"` // Daily loss circuit, fraction of capital
}

// SizingConfig selects the composite sizer's scaling method
type SizingConfig struct {
	ScalingMethod string `json:"scaling_method"` // technical_weighted, percentage, r_based, equal_thirds
}

// JournalConfig controls the trade journal store
type JournalConfig struct {
	Enabled       bool    `json:"enabled"`
	MinScoreToLog float64 `json:"min_score_to_log"` // Analyses below this score are not journaled
}

// DatabaseConfig holds Postgres connection settings. Credentials may come
// from Vault instead; see VaultConfig.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Name     string `json:"name"`
	User     string `json:"user"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl_mode"`
	PoolSize int    `json:"pool_size"`
}

// DSN builds a pgx-compatible connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // CORS allowed origins
	ReadTimeout     int    `json:"read_timeout"`    // Seconds
	WriteTimeout    int    `json:"write_timeout"`   // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
	RateLimitPerMin int    `json:"rate_limit_per_min"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Enabled              bool          `json:"enabled"`
	JWTSecret            string        `json:"jwt_secret"`
	AccessTokenDuration  time.Duration `json:"access_token_duration"`
	RefreshTokenDuration time.Duration `json:"refresh_token_duration"`
	MinPasswordLength    int           `json:"min_password_length"`
}

// VaultConfig holds HashiCorp Vault configuration
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`  // KV secrets engine mount path
	SecretPath string `json:"secret_path"` // Path prefix for analyzer secrets
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// RedisConfig holds Redis configuration for the analysis cache
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

func Load() (*Config, error) {
	// A .env file is optional; real environment variables win
	godotenv.Load()

	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	// Analysis config
	cfg.AnalysisConfig.SwingWindow = getEnvIntOrDefault("ANALYSIS_SWING_WINDOW", defaultInt(cfg.AnalysisConfig.SwingWindow, 5))
	cfg.AnalysisConfig.ATRPeriod = getEnvIntOrDefault("ANALYSIS_ATR_PERIOD", defaultInt(cfg.AnalysisConfig.ATRPeriod, 14))
	cfg.AnalysisConfig.VolumePeriod = getEnvIntOrDefault("ANALYSIS_VOLUME_PERIOD", defaultInt(cfg.AnalysisConfig.VolumePeriod, 20))
	cfg.AnalysisConfig.MinBodySize = getEnvFloatOrDefault("ANALYSIS_MIN_BODY_SIZE", defaultFloat(cfg.AnalysisConfig.MinBodySize, 0.1))
	cfg.AnalysisConfig.PrimaryTimeframe = getEnvOrDefault("ANALYSIS_PRIMARY_TIMEFRAME", defaultStr(cfg.AnalysisConfig.PrimaryTimeframe, "1d"))
	cfg.AnalysisConfig.CacheTTLSeconds = getEnvIntOrDefault("ANALYSIS_CACHE_TTL", defaultInt(cfg.AnalysisConfig.CacheTTLSeconds, 300))

	// Risk config
	cfg.RiskConfig.TotalCapital = getEnvFloatOrDefault("RISK_TOTAL_CAPITAL", defaultFloat(cfg.RiskConfig.TotalCapital, 100000))
	cfg.RiskConfig.MaxRiskPerTrade = getEnvFloatOrDefault("RISK_MAX_PER_TRADE", defaultFloat(cfg.RiskConfig.MaxRiskPerTrade, 0.02))
	cfg.RiskConfig.MaxOpenPositions = getEnvIntOrDefault("RISK_MAX_OPEN_POSITIONS", defaultInt(cfg.RiskConfig.MaxOpenPositions, 5))
	cfg.RiskConfig.MinPremium = getEnvFloatOrDefault("RISK_MIN_PREMIUM", defaultFloat(cfg.RiskConfig.MinPremium, 0.50))
	cfg.RiskConfig.MaxCapitalPct = getEnvFloatOrDefault("RISK_MAX_CAPITAL_PCT", defaultFloat(cfg.RiskConfig.MaxCapitalPct, 0.25))
	cfg.RiskConfig.StopPct = getEnvFloatOrDefault("RISK_STOP_PCT", defaultFloat(cfg.RiskConfig.StopPct, 0.50))
	cfg.RiskConfig.ZeroDTEStopPct = getEnvFloatOrDefault("RISK_ZERO_DTE_STOP_PCT", defaultFloat(cfg.RiskConfig.ZeroDTEStopPct, 0.35))
	cfg.RiskConfig.MaxLossPerContract = getEnvFloatOrDefault("RISK_MAX_LOSS_PER_CONTRACT", defaultFloat(cfg.RiskConfig.MaxLossPerContract, 500))
	cfg.RiskConfig.ATRStopMultiplier = getEnvFloatOrDefault("RISK_ATR_STOP_MULT", defaultFloat(cfg.RiskConfig.ATRStopMultiplier, 2.0))
	cfg.RiskConfig.ZeroDTEATRMult = getEnvFloatOrDefault("RISK_ZERO_DTE_ATR_MULT", defaultFloat(cfg.RiskConfig.ZeroDTEATRMult, 1.0))
	cfg.RiskConfig.ProfitTargetR = getEnvFloatOrDefault("RISK_PROFIT_TARGET_R", defaultFloat(cfg.RiskConfig.ProfitTargetR, 2.0))
	cfg.RiskConfig.RunnerTargetR = getEnvFloatOrDefault("RISK_RUNNER_TARGET_R", defaultFloat(cfg.RiskConfig.RunnerTargetR, 5.0))
	cfg.RiskConfig.RunnerRemainingPct = getEnvFloatOrDefault("RISK_RUNNER_REMAINING_PCT", defaultFloat(cfg.RiskConfig.RunnerRemainingPct, 0.50))
	cfg.RiskConfig.MaxDailyLossPct = getEnvFloatOrDefault("RISK_MAX_DAILY_LOSS_PCT", defaultFloat(cfg.RiskConfig.MaxDailyLossPct, 0.06))

	// Sizing config
	cfg.SizingConfig.ScalingMethod = getEnvOrDefault("SIZING_SCALING_METHOD", defaultStr(cfg.SizingConfig.ScalingMethod, "technical_weighted"))

	// Journal config
	cfg.JournalConfig.Enabled = getEnvOrDefault("JOURNAL_ENABLED", "true") == "true"
	cfg.JournalConfig.MinScoreToLog = getEnvFloatOrDefault("JOURNAL_MIN_SCORE", defaultFloat(cfg.JournalConfig.MinScoreToLog, 75))

	// Database config
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", defaultStr(cfg.DatabaseConfig.Host, "localhost"))
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", defaultInt(cfg.DatabaseConfig.Port, 5432))
	cfg.DatabaseConfig.Name = getEnvOrDefault("DB_NAME", defaultStr(cfg.DatabaseConfig.Name, "trade_analyzer"))
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", defaultStr(cfg.DatabaseConfig.User, "postgres"))
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", defaultStr(cfg.DatabaseConfig.SSLMode, "disable"))
	cfg.DatabaseConfig.PoolSize = getEnvIntOrDefault("DB_POOL_SIZE", defaultInt(cfg.DatabaseConfig.PoolSize, 10))

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "INFO")
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.LoggingConfig.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true"

	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8080)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", "*")
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", 30)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", 30)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)
	cfg.ServerConfig.RateLimitPerMin = getEnvIntOrDefault("SERVER_RATE_LIMIT_PER_MIN", 60)

	// Auth config - ALWAYS apply from environment
	cfg.AuthConfig.Enabled = getEnvOrDefault("AUTH_ENABLED", "false") == "true"
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", 15*time.Minute)
	cfg.AuthConfig.RefreshTokenDuration = getEnvDurationOrDefault("AUTH_REFRESH_TOKEN_DURATION", 7*24*time.Hour)
	cfg.AuthConfig.MinPasswordLength = getEnvIntOrDefault("AUTH_MIN_PASSWORD_LENGTH", 8)

	// Vault config
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", "http://localhost:8200")
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", "secret")
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", "trade-analyzer")

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", defaultStr(cfg.RedisConfig.Address, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", defaultInt(cfg.RedisConfig.PoolSize, 10))
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func defaultStr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func defaultInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

func defaultFloat(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	return v
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	config := Config{
		AnalysisConfig: AnalysisConfig{
			SwingWindow:      5,
			ATRPeriod:        14,
			VolumePeriod:     20,
			MinBodySize:      0.1,
			PrimaryTimeframe: "1d",
			AlignTimeframes:  []string{"1h", "4h", "1d"},
			CacheTTLSeconds:  300,
		},
		RiskConfig: RiskConfig{
			TotalCapital:       100000,
			MaxRiskPerTrade:    0.02,
			MaxOpenPositions:   5,
			MinPremium:         0.50,
			MaxCapitalPct:      0.25,
			StopPct:            0.50,
			ZeroDTEStopPct:     0.35,
			MaxLossPerContract: 500,
			ATRStopMultiplier:  2.0,
			ZeroDTEATRMult:     1.0,
			ProfitTargetR:      2.0,
			RunnerTargetR:      5.0,
			RunnerRemainingPct: 0.50,
			MaxDailyLossPct:    0.06,
		},
		SizingConfig: SizingConfig{
			ScalingMethod: "technical_weighted",
		},
		JournalConfig: JournalConfig{
			Enabled:       true,
			MinScoreToLog: 75,
		},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Name:     "trade_analyzer",
			User:     "postgres",
			Password: "",
			SSLMode:  "disable",
			PoolSize: 10,
		},
		LoggingConfig: LoggingConfig{
			Level:       "INFO",
			Output:      "stdout",
			JSONFormat:  true,
			IncludeFile: false,
		},
		ServerConfig: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			AllowedOrigins:  "*",
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
			RateLimitPerMin: 60,
		},
		AuthConfig: AuthConfig{
			Enabled:              false,
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 7 * 24 * time.Hour,
			MinPasswordLength:    8,
		},
		VaultConfig: VaultConfig{
			Enabled:    false,
			Address:    "http://localhost:8200",
			MountPath:  "secret",
			SecretPath: "trade-analyzer",
		},
		RedisConfig: RedisConfig{
			Enabled:  false,
			Address:  "localhost:6379",
			DB:       0,
			PoolSize: 10,
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling sample config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("error writing sample config: %w", err)
	}

	return nil
}
