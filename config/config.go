// Package config loads engine configuration from the environment, with
// .env support for local/paper runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config collects every environment-sourced setting the engine needs at
// construction time. Nothing in this struct is reloaded at runtime; the
// operator restarts the process to change it.
type Config struct {
	// AlertPort is the TCP port the Alert Service listens on.
	AlertPort int
	// AdminPort is the TCP port the admin/status API listens on.
	AdminPort int

	// AlpacaKeyID / AlpacaSecretKey authenticate the broker client.
	AlpacaKeyID     string
	AlpacaSecretKey string
	// AlpacaPaper selects the paper-trading base URL when true.
	AlpacaPaper bool

	// QuoteVendorKeyURL / QuoteVendorWSURL locate the quote feed's key
	// exchange and websocket endpoints.
	QuoteVendorKeyURL string
	QuoteVendorWSURL  string
	// SubscriptionCap is S_max, the vendor's concurrent-subscription limit.
	SubscriptionCap int

	// DatabasePath is the sqlite file backing the persistence layer.
	DatabasePath string

	// ReconcileInterval is how often the engine diffs its view of
	// positions against the broker.
	ReconcileInterval time.Duration

	// AdminAPIKeyHash is the bcrypt hash of the operator's admin API key.
	AdminAPIKeyHash string
	// AdminJWTSecret signs bearer tokens issued after a successful admin
	// key check.
	AdminJWTSecret string
	// LiveTradingTOTPSecret gates the paper->live switch behind a TOTP
	// code, independent of the admin API key.
	LiveTradingTOTPSecret string

	// LogLevel is passed straight to logger.New.
	LogLevel string
}

// Load reads a .env file if present (missing is not an error) and then
// populates Config from the environment, applying defaults for anything
// unset.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		AlertPort:             envInt("ALERT_PORT", 8765),
		AdminPort:             envInt("ADMIN_PORT", 8766),
		AlpacaKeyID:           os.Getenv("ALPACA_KEY_ID"),
		AlpacaSecretKey:       os.Getenv("ALPACA_SECRET_KEY"),
		AlpacaPaper:           envBool("ALPACA_PAPER", true),
		QuoteVendorKeyURL:     envStr("QUOTE_KEY_URL", "https://realtime.insightsentry.com/get_access_key"),
		QuoteVendorWSURL:      envStr("QUOTE_WS_URL", "wss://realtime.insightsentry.com/live"),
		SubscriptionCap:       envInt("SUBSCRIPTION_CAP", 30),
		DatabasePath:          envStr("DATABASE_PATH", "momentum.db"),
		ReconcileInterval:     envDuration("RECONCILE_INTERVAL", 30*time.Second),
		AdminAPIKeyHash:       os.Getenv("ADMIN_API_KEY_HASH"),
		AdminJWTSecret:        envStr("ADMIN_JWT_SECRET", "change-me"),
		LiveTradingTOTPSecret: os.Getenv("LIVE_TRADING_TOTP_SECRET"),
		LogLevel:              envStr("LOG_LEVEL", "info"),
	}
	return cfg, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
