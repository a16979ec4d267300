// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, payment processor
// credentials, fee policy defaults, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/reclaimhq/go-reclaim-backend/internal/sysutil"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-reclaim-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// ProcessorConfig defines the external payment processor connection and the
// shared secret used to verify settlement webhooks.
type ProcessorConfig struct {
	BaseURL       string // PROCESSOR_BASE_URL
	APIKey        string // PROCESSOR_API_KEY
	WebhookSecret string // PROCESSOR_WEBHOOK_SECRET
	Currency      string // PROCESSOR_CURRENCY (ISO 4217, lowercase)
}

// ShippingConfig defines the system-wide fallback fee policy, used when
// neither a claim nor an item owner has stored their own.
type ShippingConfig struct {
	DefaultFeeCents int64 // SHIPPING_DEFAULT_FEE_CENTS
	MinFeeCents     int64 // SHIPPING_MIN_FEE_CENTS
	MaxFeeCents     int64 // SHIPPING_MAX_FEE_CENTS
	AllowCustomFee  bool  // SHIPPING_ALLOW_CUSTOM_FEE
	AllowTipping    bool  // SHIPPING_ALLOW_TIPPING
}

// RealtimeConfig tunes the in-process messaging channel and the polling
// fallback clients use when realtime degrades.
type RealtimeConfig struct {
	SubscriberBuffer int           // REALTIME_BUFFER, events per subscriber
	AckTimeout       time.Duration // REALTIME_ACK_TIMEOUT, subscribe-ack window
	UnreadPollEvery  time.Duration // UNREAD_POLL_INTERVAL, advertised to clients
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath string // SQLite path

	// Payments
	Processor ProcessorConfig
	Shipping  ShippingConfig

	// Realtime / unread
	Realtime RealtimeConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

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
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "app.db"),

		// Payments
		Processor: ProcessorConfig{
			BaseURL:       getenv("PROCESSOR_BASE_URL", "https://api.processor.local"),
			APIKey:        getenv("PROCESSOR_API_KEY", ""),
			WebhookSecret: getenv("PROCESSOR_WEBHOOK_SECRET", ""),
			Currency:      strings.ToLower(getenv("PROCESSOR_CURRENCY", "usd")),
		},
		Shipping: ShippingConfig{
			DefaultFeeCents: getint64("SHIPPING_DEFAULT_FEE_CENTS", 1500),
			MinFeeCents:     getint64("SHIPPING_MIN_FEE_CENTS", 500),
			MaxFeeCents:     getint64("SHIPPING_MAX_FEE_CENTS", 10000),
			AllowCustomFee:  getbool("SHIPPING_ALLOW_CUSTOM_FEE", true),
			AllowTipping:    getbool("SHIPPING_ALLOW_TIPPING", true),
		},

		// Realtime / unread
		Realtime: RealtimeConfig{
			SubscriberBuffer: getint("REALTIME_BUFFER", 32),
			AckTimeout:       getdur("REALTIME_ACK_TIMEOUT", 5*time.Second),
			UnreadPollEvery:  getdur("UNREAD_POLL_INTERVAL", 30*time.Second),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled: getbool("OTEL_ENABLED", false),
			// The signal-specific endpoint wins over the generic one,
			// per the OTLP exporter env convention.
			Endpoint: sysutil.FirstNonEmpty(
				os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"),
				getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-reclaim-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
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

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.Processor.BaseURL) == "" {
		return cfg, errors.New("PROCESSOR_BASE_URL must not be empty")
	}
	if len(cfg.Processor.Currency) != 3 {
		return cfg, errors.New("PROCESSOR_CURRENCY must be a 3-letter ISO 4217 code")
	}
	if cfg.Shipping.MinFeeCents < 0 ||
		cfg.Shipping.DefaultFeeCents < cfg.Shipping.MinFeeCents ||
		cfg.Shipping.MaxFeeCents < cfg.Shipping.DefaultFeeCents {
		return cfg, errors.New("shipping fees must satisfy 0 <= min <= default <= max")
	}
	if cfg.Realtime.SubscriberBuffer < 1 {
		return cfg, errors.New("REALTIME_BUFFER must be >= 1")
	}
	if cfg.Realtime.AckTimeout <= 0 || cfg.Realtime.UnreadPollEvery <= 0 {
		return cfg, errors.New("realtime timeouts must be positive durations")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers ----

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
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if sysutil.IsTruthy(v) {
			return true
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
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
