// Package config provides configuration management for the scholar service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the scholar service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// SemanticScholar contains upstream Semantic Scholar API settings.
	SemanticScholar SemanticScholarConfig `mapstructure:"semantic_scholar"`
	// Retry contains backoff settings for rate-limited upstream calls.
	Retry RetryConfig `mapstructure:"retry"`
	// CircuitBreaker contains circuit breaker settings for upstream calls.
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace is the metric name prefix.
	Namespace string `mapstructure:"namespace"`
}

// SemanticScholarConfig holds upstream API settings.
type SemanticScholarConfig struct {
	// APIKey is the Semantic Scholar API key (loaded from SCHOLAR_SEMANTIC_SCHOLAR_API_KEY).
	// Requests without a key fall into the public rate limit pool.
	APIKey string `mapstructure:"-"`
	// GraphBaseURL is the Graph API base URL.
	GraphBaseURL string `mapstructure:"graph_base_url"`
	// RecommendationsBaseURL is the Recommendations API base URL.
	RecommendationsBaseURL string `mapstructure:"recommendations_base_url"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// RateBurst is the token bucket burst size.
	RateBurst int `mapstructure:"rate_burst"`
	// MaxResponseBytes caps the size of upstream response bodies.
	MaxResponseBytes int64 `mapstructure:"max_response_bytes"`
}

// RetryConfig holds backoff settings for rate-limited calls.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int `mapstructure:"max_retries"`
	// BaseDelay is the first backoff delay.
	BaseDelay time.Duration `mapstructure:"base_delay"`
	// MaxDelay caps the computed backoff delay.
	MaxDelay time.Duration `mapstructure:"max_delay"`
	// ExponentialBase is the backoff multiplier per attempt.
	ExponentialBase float64 `mapstructure:"exponential_base"`
	// Jitter is the random delay fraction added to each backoff (0.0-1.0).
	Jitter float64 `mapstructure:"jitter"`
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	// FailureThreshold is consecutive failures before the circuit opens.
	FailureThreshold int `mapstructure:"failure_threshold"`
	// RecoveryTimeout is how long the circuit stays open before probing.
	RecoveryTimeout time.Duration `mapstructure:"recovery_timeout"`
	// HalfOpenMaxCalls is the number of probe calls admitted while half-open.
	HalfOpenMaxCalls int `mapstructure:"half_open_max_calls"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("SCHOLAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/scholar-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The API key is a secret and loads exclusively from the environment;
	// its field uses mapstructure:"-" to keep it out of config files.
	cfg.SemanticScholar.APIKey = os.Getenv("SCHOLAR_SEMANTIC_SCHOLAR_API_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "scholar")

	// Upstream API defaults
	v.SetDefault("semantic_scholar.graph_base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("semantic_scholar.recommendations_base_url", "https://api.semanticscholar.org/recommendations/v1")
	v.SetDefault("semantic_scholar.timeout", "30s")
	v.SetDefault("semantic_scholar.rate_limit", 10.0)
	v.SetDefault("semantic_scholar.rate_burst", 10)
	v.SetDefault("semantic_scholar.max_response_bytes", 10*1024*1024)

	// Retry defaults
	v.SetDefault("retry.max_retries", 5)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.max_delay", "60s")
	v.SetDefault("retry.exponential_base", 2.0)
	v.SetDefault("retry.jitter", 0.1)

	// Circuit breaker defaults
	v.SetDefault("circuit_breaker.failure_threshold", 5)
	v.SetDefault("circuit_breaker.recovery_timeout", "30s")
	v.SetDefault("circuit_breaker.half_open_max_calls", 1)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.SemanticScholar.GraphBaseURL == "" {
		return fmt.Errorf("semantic_scholar graph_base_url is required")
	}
	if c.SemanticScholar.RecommendationsBaseURL == "" {
		return fmt.Errorf("semantic_scholar recommendations_base_url is required")
	}
	if c.SemanticScholar.RateLimit <= 0 {
		return fmt.Errorf("semantic_scholar rate_limit must be positive")
	}
	if c.SemanticScholar.RateBurst <= 0 {
		return fmt.Errorf("semantic_scholar rate_burst must be positive")
	}
	if c.SemanticScholar.MaxResponseBytes <= 0 {
		return fmt.Errorf("semantic_scholar max_response_bytes must be positive")
	}

	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry max_retries must not be negative")
	}
	if c.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry base_delay must be positive")
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry max_delay (%s) must be >= base_delay (%s)", c.Retry.MaxDelay, c.Retry.BaseDelay)
	}
	if c.Retry.ExponentialBase <= 1 {
		return fmt.Errorf("retry exponential_base must be greater than 1")
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return fmt.Errorf("retry jitter must be between 0 and 1")
	}

	if c.CircuitBreaker.FailureThreshold <= 0 {
		return fmt.Errorf("circuit_breaker failure_threshold must be positive")
	}
	if c.CircuitBreaker.RecoveryTimeout <= 0 {
		return fmt.Errorf("circuit_breaker recovery_timeout must be positive")
	}
	if c.CircuitBreaker.HalfOpenMaxCalls <= 0 {
		return fmt.Errorf("circuit_breaker half_open_max_calls must be positive")
	}

	return nil
}
