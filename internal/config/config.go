// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration. Values come from an optional
// YAML file, overridden by environment variables (a .env file is loaded
// first if present).
type Config struct {
	ServiceName string `yaml:"service_name"`
	LogLevel    string `yaml:"log_level"`

	HTTP     HTTPConfig     `yaml:"http"`
	Resolver ResolverConfig `yaml:"resolver"`
	Cache    CacheConfig    `yaml:"cache"`
	Store    StoreConfig    `yaml:"store"`
	AI       AIConfig       `yaml:"ai"`
	Browser  BrowserConfig  `yaml:"browser"`
}

// HTTPConfig configures the serving surface.
type HTTPConfig struct {
	ListenAddress   string        `yaml:"listen_address"`
	MetricsPath     string        `yaml:"metrics_path"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ResolverConfig configures the bypass pipeline.
type ResolverConfig struct {
	RequestTimeout      time.Duration `yaml:"request_timeout"`       // per outbound fetch
	MethodTimeout       time.Duration `yaml:"method_timeout"`        // per extraction method
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`  // learned pattern cut-off (percent)
	MaxRedirectHops     int           `yaml:"max_redirect_hops"`
	CountdownCapSeconds int           `yaml:"countdown_cap_seconds"`
	RateLimitPerSecond  float64       `yaml:"rate_limit_per_second"` // outbound fetch rate
	RateBurst           int           `yaml:"rate_burst"`
	UserAgents          []string      `yaml:"user_agents,omitempty"`
}

// CacheConfig configures the resolved-link cache.
type CacheConfig struct {
	Backend string        `yaml:"backend"` // "store" or "redis"
	TTL     time.Duration `yaml:"ttl"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// StoreConfig configures the persistence collaborator.
type StoreConfig struct {
	Backend  string        `yaml:"backend"` // "mongo" or "memory"
	URI      string        `yaml:"uri"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
}

// AIConfig configures the analysis adapter. An empty APIKey disables AI
// assistance; the pipeline then reports exhaustion after the fixed methods.
type AIConfig struct {
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	// ExecuteStrategies enables running synthesized strategies through the
	// contained interpreter. Synthesis stays advisory-only when false.
	ExecuteStrategies bool `yaml:"execute_strategies"`
}

// BrowserConfig configures the chromedp automation fallback.
type BrowserConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Headless bool          `yaml:"headless"`
	Timeout  time.Duration `yaml:"timeout"`
	PoolSize int           `yaml:"pool_size"`
}

// Load reads configuration from the given YAML file (path may be empty),
// then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	// Best effort; absence of a .env file is not an error.
	_ = godotenv.Load()

	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides file values from the environment.
func (c *Config) applyEnv() {
	setString(&c.ServiceName, "SERVICE_NAME")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.HTTP.ListenAddress, "LISTEN_ADDRESS")

	setString(&c.Store.URI, "MONGO_URI")
	setString(&c.Store.Database, "MONGO_DATABASE")
	setString(&c.Store.Backend, "STORE_BACKEND")

	setString(&c.Cache.Backend, "CACHE_BACKEND")
	setString(&c.Cache.RedisAddr, "REDIS_ADDR")
	setString(&c.Cache.RedisPassword, "REDIS_PASSWORD")
	setInt(&c.Cache.RedisDB, "REDIS_DB")
	setDuration(&c.Cache.TTL, "CACHE_TTL")

	setString(&c.AI.APIKey, "AI_API_KEY")
	setString(&c.AI.BaseURL, "AI_BASE_URL")
	setString(&c.AI.Model, "AI_MODEL")
	setBool(&c.AI.ExecuteStrategies, "AI_EXECUTE_STRATEGIES")

	setBool(&c.Browser.Enabled, "BROWSER_ENABLED")
	setBool(&c.Browser.Headless, "BROWSER_HEADLESS")
	setDuration(&c.Browser.Timeout, "BROWSER_TIMEOUT")
}

// applyDefaults fills unset values.
func (c *Config) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "nova-bypasser"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.HTTP.ListenAddress == "" {
		c.HTTP.ListenAddress = ":8080"
	}
	if c.HTTP.MetricsPath == "" {
		c.HTTP.MetricsPath = "/metrics"
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}

	if c.Resolver.RequestTimeout <= 0 {
		c.Resolver.RequestTimeout = 30 * time.Second
	}
	if c.Resolver.MethodTimeout <= 0 {
		c.Resolver.MethodTimeout = 45 * time.Second
	}
	if c.Resolver.ConfidenceThreshold <= 0 {
		c.Resolver.ConfidenceThreshold = 50
	}
	if c.Resolver.MaxRedirectHops <= 0 {
		c.Resolver.MaxRedirectHops = 10
	}
	if c.Resolver.CountdownCapSeconds <= 0 {
		c.Resolver.CountdownCapSeconds = 10
	}
	if c.Resolver.RateLimitPerSecond <= 0 {
		c.Resolver.RateLimitPerSecond = 2.0
	}
	if c.Resolver.RateBurst <= 0 {
		c.Resolver.RateBurst = 5
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = "store"
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 24 * time.Hour
	}
	if c.Cache.RedisAddr == "" {
		c.Cache.RedisAddr = "localhost:6379"
	}

	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Store.Database == "" {
		c.Store.Database = "nova_bypasser"
	}
	if c.Store.Timeout <= 0 {
		c.Store.Timeout = 10 * time.Second
	}

	if c.AI.BaseURL == "" {
		c.AI.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	}
	if c.AI.Model == "" {
		c.AI.Model = "gemini-1.5-flash"
	}
	if c.AI.RequestTimeout <= 0 {
		c.AI.RequestTimeout = 60 * time.Second
	}
	if c.AI.MaxOutputTokens <= 0 {
		c.AI.MaxOutputTokens = 2000
	}

	if c.Browser.Timeout <= 0 {
		c.Browser.Timeout = 45 * time.Second
	}
	if c.Browser.PoolSize <= 0 {
		c.Browser.PoolSize = 2
	}
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "store", "redis":
	default:
		return fmt.Errorf("invalid cache backend: %q", c.Cache.Backend)
	}

	switch c.Store.Backend {
	case "mongo", "memory":
	default:
		return fmt.Errorf("invalid store backend: %q", c.Store.Backend)
	}

	if c.Store.Backend == "mongo" && c.Store.URI == "" {
		return fmt.Errorf("store backend %q requires a connection URI", c.Store.Backend)
	}

	if c.Resolver.ConfidenceThreshold > 100 {
		return fmt.Errorf("confidence threshold must be at most 100, got %v", c.Resolver.ConfidenceThreshold)
	}

	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = strings.EqualFold(strings.TrimSpace(v), "true") || v == "1"
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			*dst = d
		}
	}
}
