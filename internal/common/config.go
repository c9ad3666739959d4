// Package common provides shared utilities for holdwise
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for holdwise
type Config struct {
	Environment string          `toml:"environment"`
	Run         RunConfig       `toml:"run"`
	Managers    []ManagerConfig `toml:"managers"`
	Resolver    ResolverConfig  `toml:"resolver"`
	Clients     ClientsConfig   `toml:"clients"`
	Cache       CacheConfig     `toml:"cache"`
	Storage     StorageConfig   `toml:"storage"`
	Metrics     MetricsConfig   `toml:"metrics"`
	Logging     LoggingConfig   `toml:"logging"`
}

// RunConfig holds settings for a fetch run.
type RunConfig struct {
	Workers              int     `toml:"workers"`
	TopN                 int     `toml:"top_n"`
	QuarterEnd           string  `toml:"quarter_end"` // YYYY-MM-DD; empty means the last completed quarter
	MaterialityThreshold float64 `toml:"materiality_threshold"`
	FilingsDir           string  `toml:"filings_dir"`
	Label                string  `toml:"label"`
}

// GetQuarterEnd parses the configured quarter end, falling back to the
// most recent quarter end on or before now.
func (c *RunConfig) GetQuarterEnd(now time.Time) time.Time {
	if c.QuarterEnd != "" {
		if t, err := time.Parse("2006-01-02", c.QuarterEnd); err == nil {
			return t
		}
	}
	return LastQuarterEnd(now)
}

// ManagerConfig identifies a manager and its optional allocation weight.
type ManagerConfig struct {
	Name   string   `toml:"name"`
	CIK    string   `toml:"cik"`
	Weight *float64 `toml:"weight"`
}

// ResolverConfig holds identifier resolution settings.
type ResolverConfig struct {
	BatchSize         int    `toml:"batch_size"`
	Attempts          int    `toml:"attempts"`
	RetryDelay        string `toml:"retry_delay"`
	CallTimeout       string `toml:"call_timeout"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

// GetRetryDelay parses and returns the delay between batch attempts
func (c *ResolverConfig) GetRetryDelay() time.Duration {
	d, err := time.ParseDuration(c.RetryDelay)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetCallTimeout parses and returns the per-batch timeout
func (c *ResolverConfig) GetCallTimeout() time.Duration {
	d, err := time.ParseDuration(c.CallTimeout)
	if err != nil {
		return 20 * time.Second
	}
	return d
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	OpenFIGI OpenFIGIConfig `toml:"openfigi"`
	SEC      SECConfig      `toml:"sec"`
	EODHD    EODHDConfig    `toml:"eodhd"`
	Gemini   GeminiConfig   `toml:"gemini"`
}

// OpenFIGIConfig holds OpenFIGI mapping API configuration
type OpenFIGIConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// SECConfig holds the SEC company index configuration
type SECConfig struct {
	TickersURL string `toml:"tickers_url"`
	UserAgent  string `toml:"user_agent"`
	Timeout    string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *SECConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	Exchange  string `toml:"exchange"` // suffix for plain tickers, e.g. "US"
	Calendar  string `toml:"calendar"` // exchange MIC for trading days, e.g. "xnys"
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// CacheConfig selects the shared cache backend.
type CacheConfig struct {
	Backend       string `toml:"backend"` // "memory" or "redis"
	RedisAddr     string `toml:"redis_addr"`
	RedisDB       int    `toml:"redis_db"`
	EnrichmentTTL string `toml:"enrichment_ttl"`
}

// GetEnrichmentTTL parses and returns the enrichment cache TTL
func (c *CacheConfig) GetEnrichmentTTL() time.Duration {
	d, err := time.ParseDuration(c.EnrichmentTTL)
	if err != nil {
		return FreshnessEnrichment
	}
	return d
}

// StorageConfig selects and configures the snapshot store.
type StorageConfig struct {
	Backend    string          `toml:"backend"` // "sqlite", "surrealdb" or "memory"
	SQLitePath string          `toml:"sqlite_path"`
	SurrealDB  SurrealDBConfig `toml:"surrealdb"`
}

// SurrealDBConfig holds SurrealDB connection settings
type SurrealDBConfig struct {
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// MetricsConfig holds the Prometheus listener address. Empty disables it.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Format   string   `toml:"format"`
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Run: RunConfig{
			Workers:              4,
			TopN:                 20,
			MaterialityThreshold: 0.5,
			FilingsDir:           "data/filings",
		},
		Resolver: ResolverConfig{
			BatchSize:         50,
			Attempts:          2,
			RetryDelay:        "5s",
			CallTimeout:       "20s",
			RequestsPerMinute: 20,
		},
		Clients: ClientsConfig{
			OpenFIGI: OpenFIGIConfig{
				BaseURL: "https://api.openfigi.com/v3",
			},
			SEC: SECConfig{
				TickersURL: "https://www.sec.gov/files/company_tickers.json",
				UserAgent:  "holdwise research@example.com",
				Timeout:    "15s",
			},
			EODHD: EODHDConfig{
				BaseURL:   "https://eodhd.com/api",
				Exchange:  "US",
				Calendar:  "xnys",
				RateLimit: 10,
				Timeout:   "30s",
			},
			Gemini: GeminiConfig{
				Model: "gemini-2.0-flash",
			},
		},
		Cache: CacheConfig{
			Backend:       "memory",
			RedisAddr:     "localhost:6379",
			EnrichmentTTL: "6h",
		},
		Storage: StorageConfig{
			Backend:    "sqlite",
			SQLitePath: "data/holdwise.db",
			SurrealDB: SurrealDBConfig{
				Address:   "ws://localhost:8000/rpc",
				Namespace: "holdwise",
				Database:  "holdwise",
				Username:  "root",
				Password:  "root",
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "console",
			Outputs:  []string{"console"},
			FilePath: "./logs/holdwise.log",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("HOLDWISE_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("HOLDWISE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if v := os.Getenv("HOLDWISE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Run.Workers = n
		}
	}
	if v := os.Getenv("HOLDWISE_TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Run.TopN = n
		}
	}
	if v := os.Getenv("HOLDWISE_QUARTER_END"); v != "" {
		config.Run.QuarterEnd = v
	}
	if v := os.Getenv("HOLDWISE_FILINGS_DIR"); v != "" {
		config.Run.FilingsDir = v
	}

	if v := os.Getenv("HOLDWISE_STORAGE_BACKEND"); v != "" {
		config.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("HOLDWISE_SQLITE_PATH"); v != "" {
		config.Storage.SQLitePath = v
	}
	if v := os.Getenv("HOLDWISE_SURREALDB_ADDRESS"); v != "" {
		config.Storage.SurrealDB.Address = v
	}

	if v := os.Getenv("HOLDWISE_CACHE_BACKEND"); v != "" {
		config.Cache.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("HOLDWISE_REDIS_ADDR"); v != "" {
		config.Cache.RedisAddr = v
	}

	if v := os.Getenv("HOLDWISE_METRICS_ADDR"); v != "" {
		config.Metrics.Addr = v
	}

	// API keys accept the provider's conventional variable as well
	if v := firstEnv("EODHD_API_KEY", "HOLDWISE_EODHD_API_KEY"); v != "" {
		config.Clients.EODHD.APIKey = v
	}
	if v := firstEnv("OPENFIGI_API_KEY", "HOLDWISE_OPENFIGI_API_KEY"); v != "" {
		config.Clients.OpenFIGI.APIKey = v
	}
	if v := firstEnv("GEMINI_API_KEY", "HOLDWISE_GEMINI_API_KEY", "GOOGLE_API_KEY"); v != "" {
		config.Clients.Gemini.APIKey = v
	}
	if v := os.Getenv("HOLDWISE_SEC_USER_AGENT"); v != "" {
		config.Clients.SEC.UserAgent = v
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// Validate rejects settings no run can proceed with.
func (c *Config) Validate() error {
	if c.Run.Workers < 1 {
		return &ConfigError{Field: "run.workers", Err: fmt.Errorf("must be at least 1, got %d", c.Run.Workers)}
	}
	if c.Run.MaterialityThreshold < 0 {
		return &ConfigError{Field: "run.materiality_threshold", Err: fmt.Errorf("must not be negative")}
	}
	if c.Run.QuarterEnd != "" {
		if _, err := time.Parse("2006-01-02", c.Run.QuarterEnd); err != nil {
			return &ConfigError{Field: "run.quarter_end", Err: err}
		}
	}
	for _, m := range c.Managers {
		if strings.TrimSpace(m.Name) == "" {
			return &ConfigError{Field: "managers.name", Err: fmt.Errorf("manager name is required")}
		}
		if m.Weight != nil && (*m.Weight < 0 || *m.Weight > 100) {
			return &ConfigError{Field: "managers.weight", Err: fmt.Errorf("weight for %s must be within 0-100", m.Name)}
		}
	}
	switch c.Storage.Backend {
	case "sqlite", "surrealdb", "memory":
	default:
		return &ConfigError{Field: "storage.backend", Err: fmt.Errorf("unknown backend %q", c.Storage.Backend)}
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return &ConfigError{Field: "cache.backend", Err: fmt.Errorf("unknown backend %q", c.Cache.Backend)}
	}
	return nil
}

// ManagerWeights returns the explicit weights keyed by manager name.
func (c *Config) ManagerWeights() map[string]float64 {
	weights := make(map[string]float64)
	for _, m := range c.Managers {
		if m.Weight != nil {
			weights[m.Name] = *m.Weight
		}
	}
	return weights
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
