package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		// Get tags
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		// Apply default if not set
		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.MaxUploadSize <= 0 {
		errs = append(errs, "SERVER_MAX_UPLOAD_SIZE must be positive")
	}

	// Store validation
	switch strings.ToLower(c.Store.Kind) {
	case "memory":
	case "file", "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, fmt.Sprintf("TEMPLATE_STORE_PATH is required for TEMPLATE_STORE=%s", c.Store.Kind))
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required for TEMPLATE_STORE=postgres")
		}
		if c.Store.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			errs = append(errs, "REDIS_ADDR is required for TEMPLATE_STORE=redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("TEMPLATE_STORE (%q) must be one of: memory, file, postgres, sqlite, redis", c.Store.Kind))
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	// Pipeline validation
	if c.Pipeline.ScanRows <= 0 || c.Pipeline.ScanCols <= 0 {
		errs = append(errs, "PIPELINE_SCAN_ROWS and PIPELINE_SCAN_COLS must be positive")
	}
	if c.Pipeline.BlankRunLimit <= 0 {
		errs = append(errs, "PIPELINE_BLANK_RUN_LIMIT must be positive")
	}
	if c.Pipeline.MinSecondary < 0 || c.Pipeline.MinSecondary > 1 {
		errs = append(errs, fmt.Sprintf("PIPELINE_MIN_SECONDARY (%v) must be between 0 and 1", c.Pipeline.MinSecondary))
	}
	if c.Pipeline.MaxConcurrent <= 0 {
		errs = append(errs, "PIPELINE_MAX_CONCURRENT must be positive")
	}
	if c.Pipeline.MaxWait <= 0 {
		errs = append(errs, "PIPELINE_MAX_WAIT must be positive")
	}

	// Pricing validation
	validPolicies := map[string]bool{"mark-unavailable": true, "skip": true, "error": true}
	if !validPolicies[c.Pricing.MissingPolicy] {
		errs = append(errs, fmt.Sprintf("PRICING_MISSING_POLICY (%q) must be one of: mark-unavailable, skip, error", c.Pricing.MissingPolicy))
	}
	if c.Pricing.RoundingPrecision < 0 {
		errs = append(errs, "PRICING_ROUNDING_PRECISION must be non-negative")
	}
	if c.Pricing.ConvertTo != "" && c.Pricing.ConvertRate <= 0 {
		errs = append(errs, "PRICING_CONVERT_RATE must be positive when PRICING_CONVERT_TO is set")
	}
	if c.Pricing.MinPerNight < 0 || c.Pricing.MaxPerNight <= c.Pricing.MinPerNight {
		errs = append(errs, fmt.Sprintf("PRICING_MAX_PER_NIGHT (%v) must exceed PRICING_MIN_PER_NIGHT (%v)",
			c.Pricing.MaxPerNight, c.Pricing.MinPerNight))
	}

	// Inclusions validation
	if c.Inclusions.MinLength <= 0 || c.Inclusions.MaxLength <= c.Inclusions.MinLength {
		errs = append(errs, fmt.Sprintf("INCLUSIONS_MAX_LENGTH (%d) must exceed INCLUSIONS_MIN_LENGTH (%d)",
			c.Inclusions.MaxLength, c.Inclusions.MinLength))
	}
	if c.Inclusions.TargetWords <= 0 {
		errs = append(errs, "INCLUSIONS_TARGET_WORDS must be positive")
	}
	if c.Inclusions.MinPatternRun <= 0 {
		errs = append(errs, "INCLUSIONS_MIN_PATTERN_RUN must be positive")
	}
	if c.Inclusions.DedupeDistance < 0 {
		errs = append(errs, "INCLUSIONS_DEDUPE_DISTANCE must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Connection strings, passwords and API keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Store: {Kind: %q, Path: %q, DatabaseURL: %s, RedisAddr: %q}, ",
		c.Store.Kind, c.Store.Path, mask(c.Store.DatabaseURL), c.Store.RedisAddr))
	b.WriteString(fmt.Sprintf("Security: {APIKeys: %d, RequireAPIKey: %v}, ",
		len(c.Security.APIKeys), c.Security.RequireAPIKey))
	b.WriteString(fmt.Sprintf("Pipeline: {MaxConcurrent: %d, DictionaryPath: %q}, ",
		c.Pipeline.MaxConcurrent, c.Pipeline.DictionaryPath))
	b.WriteString(fmt.Sprintf("Pricing: {MissingPolicy: %q}, ", c.Pricing.MissingPolicy))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

func mask(secret string) string {
	if secret == "" {
		return `""`
	}
	return "[MASKED]"
}
