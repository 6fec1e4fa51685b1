// Package config handles service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration.
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Ownership & admin
	OwnerAddress string // engine owner, the only identity allowed to mutate settings
	AdminSecret  string // X-Admin-Secret header value for admin routes

	// Fee policy
	FeeRateBps   uint16 // protocol fee in basis points (denominator 10000)
	FeeRecipient string

	// Wager bounds (base units)
	MinBet  uint64
	MaxBet  uint64
	SpinFee uint64 // flat participation fee for wheel spins

	// Refund windows
	WagerRefundDelay time.Duration // player-vs-house games
	DrawRefundDelay  time.Duration // raffle and wheel draws

	// Oracle
	OracleSigner  string   // address whose signature authenticates callbacks
	OracleCallers []string // addresses allowed to deliver callbacks

	// Tracing
	OTLPEndpoint string
}

// Defaults
const (
	DefaultPort             = "8080"
	DefaultEnv              = "development"
	DefaultLogLevel         = "info"
	DefaultFeeRateBps       = 100 // 1%
	DefaultMinBet           = 1_000_000
	DefaultMaxBet           = 100_000_000_000
	DefaultSpinFee          = 10_000_000
	DefaultWagerRefundDelay = 6 * time.Hour
	DefaultDrawRefundDelay  = 24 * time.Hour
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", DefaultPort),
		Env:              getEnv("ENV", DefaultEnv),
		LogLevel:         getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		OwnerAddress:     os.Getenv("OWNER_ADDRESS"),
		AdminSecret:      os.Getenv("ADMIN_SECRET"),
		FeeRateBps:       uint16(getEnvUint64("FEE_RATE_BPS", DefaultFeeRateBps)),
		FeeRecipient:     os.Getenv("FEE_RECIPIENT"),
		MinBet:           getEnvUint64("MIN_BET", DefaultMinBet),
		MaxBet:           getEnvUint64("MAX_BET", DefaultMaxBet),
		SpinFee:          getEnvUint64("SPIN_FEE", DefaultSpinFee),
		WagerRefundDelay: getEnvDuration("WAGER_REFUND_DELAY", DefaultWagerRefundDelay),
		DrawRefundDelay:  getEnvDuration("DRAW_REFUND_DELAY", DefaultDrawRefundDelay),
		OracleSigner:     os.Getenv("ORACLE_SIGNER"),
		OracleCallers:    splitList(os.Getenv("ORACLE_CALLERS")),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is coherent.
func (c *Config) Validate() error {
	if c.OwnerAddress == "" {
		return fmt.Errorf("OWNER_ADDRESS is required")
	}
	if c.FeeRecipient == "" {
		return fmt.Errorf("FEE_RECIPIENT is required")
	}
	if c.FeeRateBps > 10000 {
		return fmt.Errorf("FEE_RATE_BPS must not exceed 10000 (got %d)", c.FeeRateBps)
	}
	if c.MinBet == 0 || c.MinBet > c.MaxBet {
		return fmt.Errorf("MIN_BET must be positive and not exceed MAX_BET")
	}
	if c.WagerRefundDelay <= 0 || c.DrawRefundDelay <= 0 {
		return fmt.Errorf("refund delays must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseUint(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
