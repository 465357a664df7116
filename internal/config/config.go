// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "json" or "text"

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Risk scoring
	RiskConfigPath string // JSON rule file (optional, compiled-in defaults if not set)

	// Chain RPC settings
	PolkadotEndpoints []string
	KusamaEndpoints   []string
	WestendEndpoints  []string
	RPCTimeout        time.Duration // per-endpoint attempt timeout

	// Notification channels
	NotificationDryRun bool
	DiscordWebhookURL  string
	GenericWebhookURL  string
	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPassword       string

	// Security
	CORSOrigins []string

	// IPFS proxy
	MaxUploadMB int

	// Tracing (OTLP gRPC collector endpoint; tracing disabled when empty)
	OTLPEndpoint string
}

// Defaults
const (
	DefaultPort       = "8080"
	DefaultEnv        = "development"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	DefaultRPCTimeout = 10 * time.Second
	DefaultSMTPPort   = 587
	DefaultUploadMB   = 10
)

// Default public RPC endpoints, in failover order.
var (
	DefaultPolkadotEndpoints = []string{
		"https://rpc.polkadot.io",
		"https://polkadot-rpc.dwellir.com",
		"https://polkadot.api.onfinality.io/public",
	}
	DefaultKusamaEndpoints = []string{
		"https://kusama-rpc.polkadot.io",
		"https://kusama-rpc.dwellir.com",
		"https://kusama.api.onfinality.io/public",
	}
	DefaultWestendEndpoints = []string{
		"https://westend-rpc.polkadot.io",
		"https://westend-rpc.dwellir.com",
	}
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", DefaultPort),
		Env:                getEnv("ENV", DefaultEnv),
		LogLevel:           getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:          getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:        os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		RiskConfigPath:     os.Getenv("RISK_CONFIG_PATH"),
		PolkadotEndpoints:  getEnvList("POLKADOT_RPC_ENDPOINTS", DefaultPolkadotEndpoints),
		KusamaEndpoints:    getEnvList("KUSAMA_RPC_ENDPOINTS", DefaultKusamaEndpoints),
		WestendEndpoints:   getEnvList("WESTEND_RPC_ENDPOINTS", DefaultWestendEndpoints),
		RPCTimeout:         getEnvDuration("RPC_TIMEOUT", DefaultRPCTimeout),
		NotificationDryRun: getEnvBool("NOTIFICATION_DRY_RUN", true),
		DiscordWebhookURL:  os.Getenv("DISCORD_WEBHOOK_URL"),
		GenericWebhookURL:  os.Getenv("GENERIC_WEBHOOK_URL"),
		SMTPHost:           os.Getenv("SMTP_HOST"),
		SMTPPort:           int(getEnvInt64("SMTP_PORT", DefaultSMTPPort)),
		SMTPUser:           os.Getenv("SMTP_USER"),
		SMTPPassword:       os.Getenv("SMTP_PASSWORD"),
		CORSOrigins:        getEnvList("CORS_ORIGINS", []string{"*"}),
		MaxUploadMB:        int(getEnvInt64("MAX_FILE_SIZE_MB", DefaultUploadMB)),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is coherent
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug/info/warn/error, got %q", c.LogLevel)
	}

	if c.RPCTimeout <= 0 {
		return fmt.Errorf("RPC_TIMEOUT must be positive, got %s", c.RPCTimeout)
	}

	if len(c.PolkadotEndpoints) == 0 || len(c.KusamaEndpoints) == 0 || len(c.WestendEndpoints) == 0 {
		return fmt.Errorf("every chain needs at least one RPC endpoint")
	}

	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		return fmt.Errorf("SMTP_PORT out of range: %d", c.SMTPPort)
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
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

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return b
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

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
