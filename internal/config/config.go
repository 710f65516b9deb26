package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Source   SourceConfig
	Output   OutputConfig
	Analysis AnalysisConfig
	Store    StoreConfig
	Cache    CacheConfig
	Logger   LoggerConfig
	Security SecurityConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	LoadTimeout     time.Duration
}

// SourceConfig selects where the eight order tables are read from.
//
//	csv      <Dir>/<table>.csv read directly
//	duckdb   DSN is a DuckDB database file; with Dir set, CSVs are scanned by DuckDB
//	postgres DSN is a Postgres URL
type SourceConfig struct {
	Kind string
	Dir  string
	DSN  string
}

type OutputConfig struct {
	Dir    string
	Charts bool
	JSON   bool
}

type AnalysisConfig struct {
	Binning string
	TopN    int
	// ReferenceDate overrides the latest purchase as the recency anchor.
	ReferenceDate string
}

type StoreConfig struct {
	Enabled bool
	DSN     string
	Schema  string
	Tag     string
}

type CacheConfig struct {
	Enabled bool
	Dir     string
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

const (
	SourceCSV      = "csv"
	SourceDuckDB   = "duckdb"
	SourcePostgres = "postgres"
)

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "localhost"),
			Port:            getEnvInt("SERVER_PORT", 8084),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			LoadTimeout:     getEnvDuration("SERVER_LOAD_TIMEOUT", 2*time.Minute),
		},
		Source: SourceConfig{
			Kind: getEnvString("SOURCE_KIND", SourceCSV),
			Dir:  getEnvString("SOURCE_DIR", "data"),
			DSN:  getEnvString("SOURCE_DSN", ""),
		},
		Output: OutputConfig{
			Dir:    getEnvString("OUTPUT_DIR", "reports"),
			Charts: getEnvBool("OUTPUT_CHARTS", true),
			JSON:   getEnvBool("OUTPUT_JSON", false),
		},
		Analysis: AnalysisConfig{
			Binning:       getEnvString("RFM_BINNING", "rank-first"),
			TopN:          getEnvInt("ANALYSIS_TOP_N", 10),
			ReferenceDate: getEnvString("RFM_REFERENCE_DATE", ""),
		},
		Store: StoreConfig{
			Enabled: getEnvBool("STORE_ENABLED", false),
			DSN:     getEnvString("STORE_DSN", os.Getenv("DATABASE_URL")),
			Schema:  getEnvString("STORE_SCHEMA", "order_analytics"),
			Tag:     getEnvString("STORE_TAG", ""),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("CACHE_ENABLED", true),
			Dir:     getEnvString("CACHE_DIR", ".cache"),
		},
		Logger: LoggerConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			EnableRateLimit: getEnvBool("SECURITY_RATE_LIMIT_ENABLED", true),
			RateLimitRPS:    getEnvInt("SECURITY_RATE_LIMIT_RPS", 100),
			RateLimitBurst:  getEnvInt("SECURITY_RATE_LIMIT_BURST", 10),
			AllowedOrigins:  getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", []string{"http://localhost:8084"}),
			TrustedProxies:  getEnvStringSlice("SECURITY_TRUSTED_PROXIES", []string{"127.0.0.1"}),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if err := c.Source.validate(); err != nil {
		return err
	}

	validBinnings := []string{"rank-first", "strict"}
	if !contains(validBinnings, strings.ToLower(c.Analysis.Binning)) {
		return fmt.Errorf("invalid RFM binning %q, must be one of: %s", c.Analysis.Binning, strings.Join(validBinnings, ", "))
	}

	if c.Analysis.TopN <= 0 {
		return fmt.Errorf("top N must be positive")
	}

	if c.Analysis.ReferenceDate != "" {
		if _, err := time.Parse("2006-01-02", c.Analysis.ReferenceDate); err != nil {
			return fmt.Errorf("invalid RFM reference date %q, expected YYYY-MM-DD", c.Analysis.ReferenceDate)
		}
	}

	if c.Store.Enabled && c.Store.DSN == "" {
		return fmt.Errorf("store enabled but STORE_DSN (or DATABASE_URL) is empty")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text", "pretty"}
	if !contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	return nil
}

func (s SourceConfig) validate() error {
	switch s.Kind {
	case SourceCSV:
		if s.Dir == "" {
			return fmt.Errorf("csv source needs SOURCE_DIR")
		}
	case SourceDuckDB:
		if s.Dir == "" && s.DSN == "" {
			return fmt.Errorf("duckdb source needs SOURCE_DSN or SOURCE_DIR")
		}
	case SourcePostgres:
		if s.DSN == "" {
			return fmt.Errorf("postgres source needs SOURCE_DSN")
		}
	default:
		return fmt.Errorf("invalid source kind %q, must be one of: csv, duckdb, postgres", s.Kind)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
