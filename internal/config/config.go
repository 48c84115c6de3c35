// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes the bot settings
// (token, operator identity, server list), the receive-loop retry policy,
// storage, logging, the ops HTTP server and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// TelegramConfig holds the chat transport settings.
type TelegramConfig struct {
	Token       string        // BOT_TOKEN
	APIEndpoint string        // TELEGRAM_API_ENDPOINT, printf format "…/bot%s/%s"
	PollTimeout time.Duration // POLL_TIMEOUT (long-poll hold time)
	SendRPS     float64       // SEND_RPS, outbound messages per second
	SendBurst   int           // SEND_BURST
}

// RetryConfig bounds the receive loop's reconnection policy.
type RetryConfig struct {
	MaxRestarts       int           // MAX_RESTARTS
	NetworkRetryDelay time.Duration // NETWORK_RETRY_DELAY (short)
	ErrorRetryDelay   time.Duration // ERROR_RETRY_DELAY (long)
}

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "bindbot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Bot
	AdminID    int64    // operator identity
	ChannelURL string   // external channel reference
	Servers    []string // enumerated server names, matched exactly

	Telegram TelegramConfig
	Retry    RetryConfig

	// Storage
	DBPath string // SQLite path

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev
	LogFile   string // optional log file (tee)

	// Ops HTTP
	HTTPAddr    string // empty disables the ops server
	GinMode     string // debug|release|test
	APIBasePath string // base path for API routes
	RateRPS     float64
	RateBurst   int
	CORS        CORSConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		AdminID:    getint64("ADMIN_ID", 0),
		ChannelURL: getenv("CHANNEL_URL", "https://t.me/your_channel"),
		Servers:    splitCSV(getenv("SERVERS", "")),

		Telegram: TelegramConfig{
			Token:       strings.TrimSpace(getenv("BOT_TOKEN", "")),
			APIEndpoint: getenv("TELEGRAM_API_ENDPOINT", ""),
			PollTimeout: getdur("POLL_TIMEOUT", 60*time.Second),
			SendRPS:     getfloat("SEND_RPS", 25),
			SendBurst:   getint("SEND_BURST", 5),
		},
		Retry: RetryConfig{
			MaxRestarts:       getint("MAX_RESTARTS", 10),
			NetworkRetryDelay: getdur("NETWORK_RETRY_DELAY", 10*time.Second),
			ErrorRetryDelay:   getdur("ERROR_RETRY_DELAY", 30*time.Second),
		},

		DBPath: getenv("DB_PATH", "bot_database.db"),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),
		LogFile:   getenv("LOG_FILE", "bot.log"),

		HTTPAddr:    strings.TrimSpace(os.Getenv("HTTP_ADDR")),
		GinMode:     strings.ToLower(getenv("GIN_MODE", "release")),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),
		RateRPS:     getfloat("RATE_RPS", 5.0),
		RateBurst:   getint("RATE_BURST", 10),
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "bindbot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}
	if _, set := os.LookupEnv("HTTP_ADDR"); !set {
		cfg.HTTPAddr = ":8080"
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if len(cfg.Servers) == 0 {
		cfg.Servers = DefaultServers()
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if cfg.Telegram.Token == "" {
		return cfg, errors.New("BOT_TOKEN must not be empty")
	}
	if cfg.AdminID <= 0 {
		return cfg, errors.New("ADMIN_ID must be a positive chat id")
	}
	if cfg.Telegram.PollTimeout < time.Second {
		return cfg, errors.New("POLL_TIMEOUT must be at least 1s")
	}
	if cfg.Telegram.SendRPS <= 0 {
		return cfg, errors.New("SEND_RPS must be > 0")
	}
	if cfg.Telegram.SendBurst < 1 {
		return cfg, errors.New("SEND_BURST must be >= 1")
	}
	if cfg.Retry.MaxRestarts < 1 {
		return cfg, errors.New("MAX_RESTARTS must be >= 1")
	}
	if cfg.Retry.NetworkRetryDelay < 0 || cfg.Retry.ErrorRetryDelay < 0 {
		return cfg, errors.New("retry delays must not be negative")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
