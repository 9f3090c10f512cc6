package model

import "time"

// Config is the complete claimcheck configuration
type Config struct {
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Embedding    EmbeddingConfig    `yaml:"embedding" mapstructure:"embedding"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Breaker      BreakerConfig      `yaml:"breaker" mapstructure:"breaker"`
	Resolver     ResolverConfig     `yaml:"resolver" mapstructure:"resolver"`
	Telemetry    TelemetryConfig    `yaml:"telemetry" mapstructure:"telemetry"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// LLMConfig configures the analysis service
type LLMConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, gemini
	Model      string `yaml:"model" mapstructure:"model"`
	APIKey     string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL    string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout    int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens  int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// EmbeddingConfig configures the embedding service
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"` // openai, ollama, gemini
	Model      string `yaml:"model" mapstructure:"model"`
	APIKey     string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL    string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Dimensions int    `yaml:"dimensions,omitempty" mapstructure:"dimensions"`
	Timeout    int    `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// StoreConfig selects and configures the evidence store backend
type StoreConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"` // sqlite, postgres, mongo
	DSN      string `yaml:"dsn" mapstructure:"dsn"`
	Database string `yaml:"database,omitempty" mapstructure:"database"` // mongo only

	// Atlas index names, mongo only
	VectorIndex string `yaml:"vector_index,omitempty" mapstructure:"vector_index"`
	TextIndex   string `yaml:"text_index,omitempty" mapstructure:"text_index"`
}

// CacheConfig configures the embedding cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskDir   string        `yaml:"disk_dir,omitempty" mapstructure:"disk_dir"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
	RedisURL  string        `yaml:"redis_url,omitempty" mapstructure:"redis_url"`
}

// ConcurrencyConfig bounds batch parallelism and per-policy throughput
type ConcurrencyConfig struct {
	Workers     int                `yaml:"workers" mapstructure:"workers"`
	PolicyRate  float64            `yaml:"policy_rate" mapstructure:"policy_rate"` // checks/sec per policy, 0 = unlimited
	PolicyBurst int                `yaml:"policy_burst" mapstructure:"policy_burst"`
	PolicyRates map[string]float64 `yaml:"policy_rates,omitempty" mapstructure:"policy_rates"` // per-policy overrides
}

// RateLimitingConfig throttles calls to the analysis service
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// BreakerConfig configures the analysis service circuit breaker
type BreakerConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxRequests  uint32        `yaml:"max_requests" mapstructure:"max_requests"`
	Interval     time.Duration `yaml:"interval" mapstructure:"interval"`
	OpenTimeout  time.Duration `yaml:"open_timeout" mapstructure:"open_timeout"`
	MinRequests  uint32        `yaml:"min_requests" mapstructure:"min_requests"`
	FailureRatio float64       `yaml:"failure_ratio" mapstructure:"failure_ratio"`
}

// InsurerMatchMode selects how uploaded insurers are matched to catalog records
type InsurerMatchMode string

const (
	MatchSubstring  InsurerMatchMode = "substring"
	MatchExactFirst InsurerMatchMode = "exact_first"
)

// ResolverConfig configures policy identity resolution
type ResolverConfig struct {
	InsurerMatch InsurerMatchMode `yaml:"insurer_match" mapstructure:"insurer_match"`
}

// TelemetryConfig configures OpenTelemetry export
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" mapstructure:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" mapstructure:"otlp_endpoint"`
	Insecure     bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate   float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// LogConfig configures slog output
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text, json
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	ShowBreakdown bool `yaml:"show_breakdown" mapstructure:"show_breakdown"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			Timeout:   60,
			MaxTokens: 1200,
		},
		Embedding: EmbeddingConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
			Timeout:  30,
		},
		Store: StoreConfig{
			Driver:      "sqlite",
			DSN:         "claimcheck.db",
			Database:    "claimcheck",
			VectorIndex: "policy_chunks_vector",
			TextIndex:   "policy_chunks_text",
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 1 * time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:     4,
			PolicyBurst: 1,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2.0,
			BurstSize:         4,
		},
		Breaker: BreakerConfig{
			Enabled:      true,
			MaxRequests:  3,
			Interval:     30 * time.Second,
			OpenTimeout:  60 * time.Second,
			MinRequests:  3,
			FailureRatio: 0.6,
		},
		Resolver: ResolverConfig{
			InsurerMatch: MatchSubstring,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			Insecure:     true,
			SampleRate:   1.0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Output: OutputConfig{
			ShowBreakdown: true,
		},
	}
}
