// Package config provides configuration management for the evidence search service.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "EVIDENCE"

// Config holds all configuration for the evidence search service.
type Config struct {
	// Server contains HTTP/gRPC server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// CORS contains cross-origin settings for the browser frontend.
	CORS CORSConfig `mapstructure:"cors"`
	// LLM contains summarizer settings.
	LLM LLMConfig `mapstructure:"llm"`
	// Spellcheck contains query correction settings.
	Spellcheck SpellcheckConfig `mapstructure:"spellcheck"`
	// PaperSources contains evidence source API configurations.
	PaperSources PaperSourcesConfig `mapstructure:"paper_sources"`
	// Resilience contains circuit breaker settings.
	Resilience ResilienceConfig `mapstructure:"resilience"`
	// Pipeline contains per-search settings.
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// GRPCPort is the gRPC health server port (default: 9090).
	GRPCPort int `mapstructure:"grpc_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
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
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// CORSConfig holds cross-origin configuration.
type CORSConfig struct {
	// FrontendURL is the deployed frontend origin. Optional.
	FrontendURL string `mapstructure:"frontend_url"`
	// AllowedOrigins are always allowed in addition to FrontendURL.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Origins returns the configured origins with FrontendURL first and duplicates removed.
func (c *CORSConfig) Origins() []string {
	candidates := append([]string{strings.TrimRight(c.FrontendURL, "/")}, c.AllowedOrigins...)

	seen := make(map[string]bool, len(candidates))
	origins := make([]string, 0, len(candidates))
	for _, o := range candidates {
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		origins = append(origins, o)
	}
	return origins
}

// LLMConfig holds summarizer configuration.
type LLMConfig struct {
	// Timeout bounds a single completion call.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxTokens bounds the completion length.
	MaxTokens int `mapstructure:"max_tokens"`
	// Temperature is the sampling temperature.
	Temperature float64 `mapstructure:"temperature"`
	// MaxStudies is the number of studies included in the prompt.
	MaxStudies int `mapstructure:"max_studies"`
	// SnippetLength is the number of abstract characters per study.
	SnippetLength int `mapstructure:"snippet_length"`
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// OpenAIConfig holds OpenAI-specific settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (loaded from EVIDENCE_LLM_OPENAI_API_KEY or OPENAI_API_KEY).
	APIKey string `mapstructure:"-"`
	// Model is the OpenAI model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the OpenAI API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// SpellcheckConfig holds query correction settings. The NCBI API key and
// rate limit are shared with the PubMed source.
type SpellcheckConfig struct {
	// Enabled controls whether queries are corrected before searching.
	Enabled bool `mapstructure:"enabled"`
	// BaseURL is the E-utilities base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout bounds a single suggestion call.
	Timeout time.Duration `mapstructure:"timeout"`
}

// PaperSourcesConfig holds configuration for all evidence source APIs.
type PaperSourcesConfig struct {
	// PubMed contains PubMed E-utilities settings.
	PubMed PaperSourceConfig `mapstructure:"pubmed"`
	// ClinicalTrials contains ClinicalTrials.gov settings.
	ClinicalTrials PaperSourceConfig `mapstructure:"clinical_trials"`
	// EuropePMC contains Europe PMC settings.
	EuropePMC PaperSourceConfig `mapstructure:"europe_pmc"`
	// OpenAlex contains OpenAlex API settings.
	OpenAlex PaperSourceConfig `mapstructure:"openalex"`
}

// PaperSourceConfig holds configuration for a single evidence source API.
type PaperSourceConfig struct {
	// Enabled controls whether this source is used.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the API key (loaded from environment variables only).
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Email is the polite-pool contact address (OpenAlex only).
	Email string `mapstructure:"email"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// MaxResults is used when a search does not specify a cap.
	MaxResults int `mapstructure:"max_results"`
}

// ResilienceConfig holds circuit breaker settings shared by all sources and the summarizer.
type ResilienceConfig struct {
	// Enabled wraps outbound calls in circuit breakers.
	Enabled bool `mapstructure:"enabled"`
	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32 `mapstructure:"max_requests"`
	// Interval clears closed-state counts periodically.
	Interval time.Duration `mapstructure:"interval"`
	// OpenTimeout is how long a breaker stays open before probing.
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
	// FailureThreshold is the failure ratio (0.0-1.0) that opens a breaker.
	FailureThreshold float64 `mapstructure:"failure_threshold"`
	// MinRequests is the number of requests before the ratio is evaluated.
	MinRequests uint32 `mapstructure:"min_requests"`
}

// PipelineConfig holds per-search settings.
type PipelineConfig struct {
	// RequestTimeout bounds one search end to end. Zero disables the bound.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// GRPCAddress returns the gRPC server address.
func (c *ServerConfig) GRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from a .env file, environment variables and config files.
func Load() (*Config, error) {
	return LoadWithEnvFile(".env")
}

// LoadWithEnvFile is Load with an explicit dotenv path. A missing file is ignored.
// Variables already present in the environment take precedence over the file.
func LoadWithEnvFile(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/evidence-search-service")

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

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// The prefixed name wins over the conventional unprefixed one.
func loadSecrets(cfg *Config) {
	cfg.LLM.OpenAI.APIKey = firstEnv(EnvPrefix+"_LLM_OPENAI_API_KEY", "OPENAI_API_KEY")
	cfg.PaperSources.PubMed.APIKey = firstEnv(EnvPrefix+"_PAPER_SOURCES_PUBMED_API_KEY", "NCBI_API_KEY")
	cfg.PaperSources.OpenAlex.APIKey = firstEnv(EnvPrefix+"_PAPER_SOURCES_OPENALEX_API_KEY", "OPENALEX_API_KEY")
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "evidence")

	// CORS defaults
	v.SetDefault("cors.frontend_url", "")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})

	// LLM defaults
	// The API key is loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.max_tokens", 300)
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_studies", 15)
	v.SetDefault("llm.snippet_length", 500)
	v.SetDefault("llm.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")

	// Spellcheck defaults
	v.SetDefault("spellcheck.enabled", true)
	v.SetDefault("spellcheck.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("spellcheck.timeout", "10s")

	// Paper sources defaults - PubMed
	v.SetDefault("paper_sources.pubmed.enabled", true)
	v.SetDefault("paper_sources.pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("paper_sources.pubmed.timeout", "30s")
	v.SetDefault("paper_sources.pubmed.rate_limit", 3.0) // NCBI allows 3 req/sec without an API key
	v.SetDefault("paper_sources.pubmed.max_results", 10)

	// Paper sources defaults - ClinicalTrials.gov
	v.SetDefault("paper_sources.clinical_trials.enabled", true)
	v.SetDefault("paper_sources.clinical_trials.base_url", "https://clinicaltrials.gov/api/v2")
	v.SetDefault("paper_sources.clinical_trials.timeout", "30s")
	v.SetDefault("paper_sources.clinical_trials.rate_limit", 5.0)
	v.SetDefault("paper_sources.clinical_trials.max_results", 10)

	// Paper sources defaults - Europe PMC
	v.SetDefault("paper_sources.europe_pmc.enabled", true)
	v.SetDefault("paper_sources.europe_pmc.base_url", "https://www.ebi.ac.uk/europepmc/webservices/rest")
	v.SetDefault("paper_sources.europe_pmc.timeout", "30s")
	v.SetDefault("paper_sources.europe_pmc.rate_limit", 10.0)
	v.SetDefault("paper_sources.europe_pmc.max_results", 10)

	// Paper sources defaults - OpenAlex
	v.SetDefault("paper_sources.openalex.enabled", true)
	v.SetDefault("paper_sources.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("paper_sources.openalex.email", "openevidence@example.com")
	v.SetDefault("paper_sources.openalex.timeout", "30s")
	v.SetDefault("paper_sources.openalex.rate_limit", 10.0)
	v.SetDefault("paper_sources.openalex.max_results", 10)

	// Resilience defaults
	v.SetDefault("resilience.enabled", false)
	v.SetDefault("resilience.max_requests", 3)
	v.SetDefault("resilience.interval", "60s")
	v.SetDefault("resilience.open_timeout", "60s")
	v.SetDefault("resilience.failure_threshold", 0.6)
	v.SetDefault("resilience.min_requests", 5)

	// Pipeline defaults
	v.SetDefault("pipeline.request_timeout", "60s")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.GRPCPort <= 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.Server.GRPCPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.CORS.FrontendURL != "" {
		if u, err := url.Parse(c.CORS.FrontendURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid cors frontend_url: %q", c.CORS.FrontendURL)
		}
	}

	// Validate summarizer bounds
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM max_tokens must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("LLM temperature must be between 0 and 2")
	}
	if c.LLM.MaxStudies <= 0 {
		return fmt.Errorf("LLM max_studies must be positive")
	}
	if c.LLM.SnippetLength <= 0 {
		return fmt.Errorf("LLM snippet_length must be positive")
	}

	// Validate enabled sources
	sources := map[string]PaperSourceConfig{
		"pubmed":          c.PaperSources.PubMed,
		"clinical_trials": c.PaperSources.ClinicalTrials,
		"europe_pmc":      c.PaperSources.EuropePMC,
		"openalex":        c.PaperSources.OpenAlex,
	}
	for name, src := range sources {
		if !src.Enabled {
			continue
		}
		if src.RateLimit <= 0 {
			return fmt.Errorf("paper source %s rate_limit must be positive", name)
		}
		if src.MaxResults < 0 {
			return fmt.Errorf("paper source %s max_results must not be negative", name)
		}
	}

	if c.Resilience.Enabled {
		if c.Resilience.FailureThreshold <= 0 || c.Resilience.FailureThreshold > 1 {
			return fmt.Errorf("resilience failure_threshold must be in (0, 1]")
		}
		if c.Resilience.OpenTimeout <= 0 {
			return fmt.Errorf("resilience open_timeout must be positive")
		}
	}

	if c.Pipeline.RequestTimeout < 0 {
		return fmt.Errorf("pipeline request_timeout must not be negative")
	}

	return nil
}
