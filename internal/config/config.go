// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Security   SecurityConfig
	Logging    LoggingConfig
	Pipeline   PipelineConfig
	Pricing    PricingConfig
	Inclusions InclusionsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// MaxUploadSize caps workbook and CSV uploads in bytes (default: 20MB)
	MaxUploadSize int64 `env:"SERVER_MAX_UPLOAD_SIZE" default:"20971520"`
}

// StoreConfig selects and configures the mapping template store.
type StoreConfig struct {
	// Kind is memory, file, postgres, sqlite or redis (default: memory)
	Kind string `env:"TEMPLATE_STORE" default:"memory"`

	// Path is the JSON file or SQLite database for the file and sqlite stores
	Path string `env:"TEMPLATE_STORE_PATH"`

	// DatabaseURL is the PostgreSQL connection string for the postgres store
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	DatabaseURL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// RedisAddr is host:port of the redis store
	RedisAddr string `env:"REDIS_ADDR"`

	// RedisPassword authenticates to redis
	RedisPassword string `env:"REDIS_PASSWORD"`

	// RedisDB selects the redis database (default: 0)
	RedisDB int `env:"REDIS_DB" default:"0"`

	// RedisPrefix namespaces every redis key (default: sheetimport:)
	RedisPrefix string `env:"REDIS_PREFIX" default:"sheetimport:"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// APIKeys is a comma-separated list of accepted X-API-Key values
	APIKeys []string `env:"API_KEYS"`

	// RequireAPIKey rejects API requests without a valid key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// TrustedProxies lists proxy CIDRs whose X-Real-IP / X-Forwarded-For are honoured
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// PipelineConfig tunes layout detection and analysis concurrency.
type PipelineConfig struct {
	// ScanRows is how many rows are examined for headers (default: 20)
	ScanRows int `env:"PIPELINE_SCAN_ROWS" default:"20"`

	// ScanCols is how many columns are examined for headers (default: 20)
	ScanCols int `env:"PIPELINE_SCAN_COLS" default:"20"`

	// BlankRunLimit is the run of blank rows that ends a block (default: 3)
	BlankRunLimit int `env:"PIPELINE_BLANK_RUN_LIMIT" default:"3"`

	// MinSecondary is the lowest confidence reported as a secondary layout (default: 0.3)
	MinSecondary float64 `env:"PIPELINE_MIN_SECONDARY" default:"0.3"`

	// DictionaryPath is an optional YAML file overriding the built-in dictionaries
	DictionaryPath string `env:"PIPELINE_DICTIONARY_PATH"`

	// MaxConcurrent is the number of analyses run in parallel (default: 4)
	MaxConcurrent int `env:"PIPELINE_MAX_CONCURRENT" default:"4"`

	// MaxWait is how long an analysis waits for a slot (default: 30s)
	MaxWait time.Duration `env:"PIPELINE_MAX_WAIT" default:"30s"`
}

// PricingConfig configures normalization and price validation.
type PricingConfig struct {
	// MissingPolicy is mark-unavailable, skip or error (default: mark-unavailable)
	MissingPolicy string `env:"PRICING_MISSING_POLICY" default:"mark-unavailable"`

	// PreserveSpecialPeriods keeps special-period columns (default: true)
	PreserveSpecialPeriods bool `env:"PRICING_PRESERVE_SPECIAL_PERIODS" default:"true"`

	// RoundingEnabled rounds fixed prices half-up (default: true)
	RoundingEnabled bool `env:"PRICING_ROUNDING_ENABLED" default:"true"`

	// RoundingPrecision is the number of decimals kept (default: 2)
	RoundingPrecision int `env:"PRICING_ROUNDING_PRECISION" default:"2"`

	// ConvertFrom limits conversion to matrices quoted in this currency
	ConvertFrom string `env:"PRICING_CONVERT_FROM"`

	// ConvertTo enables currency conversion into this currency
	ConvertTo string `env:"PRICING_CONVERT_TO"`

	// ConvertRate multiplies every converted price (default: 1)
	ConvertRate float64 `env:"PRICING_CONVERT_RATE" default:"1"`

	// AllowZeroPrices silences the zero-price warning (default: false)
	AllowZeroPrices bool `env:"PRICING_ALLOW_ZERO" default:"false"`

	// ExpectedCurrency flags prices quoted in any other currency
	ExpectedCurrency string `env:"PRICING_EXPECTED_CURRENCY"`

	// MinPerNight is the lowest reasonable price per person per night (default: 10)
	MinPerNight float64 `env:"PRICING_MIN_PER_NIGHT" default:"10"`

	// MaxPerNight is the highest reasonable price per person per night (default: 2000)
	MaxPerNight float64 `env:"PRICING_MAX_PER_NIGHT" default:"2000"`
}

// InclusionsConfig configures inclusion detection and cleaning.
type InclusionsConfig struct {
	// MinLength is the shortest valid cleaned inclusion (default: 3)
	MinLength int `env:"INCLUSIONS_MIN_LENGTH" default:"3"`

	// MaxLength is the length at which text reads as a description (default: 300)
	MaxLength int `env:"INCLUSIONS_MAX_LENGTH" default:"300"`

	// TargetWords is the word count with the best length score (default: 5)
	TargetWords int `env:"INCLUSIONS_TARGET_WORDS" default:"5"`

	// MinLineLength drops shorter lines from detected sections (default: 3)
	MinLineLength int `env:"INCLUSIONS_MIN_LINE_LENGTH" default:"3"`

	// MinPatternRun is the marker lines needed without a header (default: 3)
	MinPatternRun int `env:"INCLUSIONS_MIN_PATTERN_RUN" default:"3"`

	// DedupeDistance collapses same-header sections this close (default: 3)
	DedupeDistance int `env:"INCLUSIONS_DEDUPE_DISTANCE" default:"3"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
