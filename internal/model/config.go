package model

import "time"

// Config is the full runtime configuration, assembled by the CLI from
// flags, QUOTIENT_* environment variables, config file, and defaults.
type Config struct {
	LLM          LLMConfig       `yaml:"llm" json:"llm"`
	Discovery    DiscoveryConfig `yaml:"discovery" json:"discovery"`
	Apply        ApplyConfig     `yaml:"apply" json:"apply"`
	Cache        CacheConfig     `yaml:"cache" json:"cache"`
	RateLimiting RateLimitConfig `yaml:"rate_limiting" json:"rate_limiting"`
	Graph        GraphConfig     `yaml:"graph" json:"graph"`
	Output       OutputConfig    `yaml:"output" json:"output"`
}

// LLMConfig configures the structured-extraction backend
type LLMConfig struct {
	Provider   string `yaml:"provider" json:"provider"` // openai, anthropic, ollama
	Model      string `yaml:"model" json:"model"`
	APIKey     string `yaml:"-" json:"-"` // Never persisted; env only
	BaseURL    string `yaml:"base_url" json:"base_url,omitempty"`
	Timeout    int    `yaml:"timeout" json:"timeout"` // Seconds per call
	MaxTokens  int    `yaml:"max_tokens" json:"max_tokens"`
	MaxRetries int    `yaml:"max_retries" json:"max_retries"`
	HTTPProxy  string `yaml:"http_proxy" json:"http_proxy,omitempty"`
	HTTPSProxy string `yaml:"https_proxy" json:"https_proxy,omitempty"`
	NoProxy    string `yaml:"no_proxy" json:"no_proxy,omitempty"`
}

// DiscoveryMode selects how a discovery phase obtains its schema
type DiscoveryMode string

const (
	ModeOpen   DiscoveryMode = "open"   // Discover entirely from data
	ModeClosed DiscoveryMode = "closed" // Use the supplied seed schema; no discovery call
	ModeMixed  DiscoveryMode = "mixed"  // Seed with supplied schema, discover additions
)

// DiscoveryConfig configures Phases 1-3
type DiscoveryConfig struct {
	Question string `yaml:"question" json:"question"` // Analytic question guiding discovery

	TaxonomyMode DiscoveryMode `yaml:"taxonomy_mode" json:"taxonomy_mode"`
	SpeakerMode  DiscoveryMode `yaml:"speaker_mode" json:"speaker_mode"`
	EntityMode   DiscoveryMode `yaml:"entity_mode" json:"entity_mode"`

	// Seed schema files (YAML) for closed/mixed modes
	TaxonomySeed string `yaml:"taxonomy_seed" json:"taxonomy_seed,omitempty"`
	SpeakerSeed  string `yaml:"speaker_seed" json:"speaker_seed,omitempty"`
	EntitySeed   string `yaml:"entity_seed" json:"entity_seed,omitempty"`

	MaxDepth int `yaml:"max_depth" json:"max_depth"` // Taxonomy hierarchy depth bound

	// Sequential forces the three discovery phases to run one after
	// another instead of concurrently, for rate-limit-sensitive backends.
	Sequential bool `yaml:"sequential" json:"sequential"`
}

// InvalidCodePolicy decides what to do with a returned code id that is not
// in the taxonomy
type InvalidCodePolicy string

const (
	InvalidCodeDrop  InvalidCodePolicy = "drop"  // Drop the id, warn
	InvalidCodeFuzzy InvalidCodePolicy = "fuzzy" // Fuzzy-match to the nearest taxonomy id, else drop
)

// ApplyConfig configures the Phase 4 application engine
type ApplyConfig struct {
	Concurrency     int               `yaml:"concurrency" json:"concurrency"`           // Bounded worker pool size
	DocumentTimeout time.Duration     `yaml:"document_timeout" json:"document_timeout"` // Per-document job timeout
	InvalidCodes    InvalidCodePolicy `yaml:"invalid_codes" json:"invalid_codes"`
	FuzzyThreshold  float64           `yaml:"fuzzy_threshold" json:"fuzzy_threshold"` // Min similarity for fuzzy matching
}

// CacheConfig configures the extraction response cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	Dir       string        `yaml:"dir" json:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" json:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" json:"disk_ttl"`
}

// RateLimitConfig bounds the request rate against the extraction backend
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" json:"burst_size"`
}

// GraphConfig configures the graph store
type GraphConfig struct {
	Path string `yaml:"path" json:"path"` // SQLite database path
}

// OutputConfig configures artifact output
type OutputConfig struct {
	Dir     string `yaml:"dir" json:"dir"` // Artifact directory
	Verbose bool   `yaml:"verbose" json:"verbose"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:   "openai",
			Timeout:    120,
			MaxTokens:  8192,
			MaxRetries: 3,
		},
		Discovery: DiscoveryConfig{
			TaxonomyMode: ModeOpen,
			SpeakerMode:  ModeOpen,
			EntityMode:   ModeOpen,
			MaxDepth:     3,
		},
		Apply: ApplyConfig{
			Concurrency:     3,
			DocumentTimeout: 5 * time.Minute,
			InvalidCodes:    InvalidCodeDrop,
			FuzzyThreshold:  0.8,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".quotient-cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 1.0,
			BurstSize:         3,
		},
		Graph: GraphConfig{
			Path: "quotient.db",
		},
		Output: OutputConfig{
			Dir: "./quotient-out",
		},
	}
}
