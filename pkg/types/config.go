package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP client timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "biosearch/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// Email is the contact address sent to APIs that offer a polite pool
	// (OpenAlex mailto, Unpaywall email, NCBI email).
	Email string `json:"email,omitempty" yaml:"email,omitempty" mapstructure:"email"`
}

// DedupConfig tunes the deduplicator.
type DedupConfig struct {
	// TitleSimilarity is the minimum similarity in [0,1] for two
	// weakly-identified publications to be clustered (default 0.92).
	TitleSimilarity float64 `json:"title_similarity" yaml:"title_similarity" mapstructure:"title_similarity"`
}

// Weights is one type-specific weight set for the ranker.
type Weights struct {
	Title   float64 `json:"title" yaml:"title" mapstructure:"title"`
	Text    float64 `json:"text" yaml:"text" mapstructure:"text"`
	Recency float64 `json:"recency" yaml:"recency" mapstructure:"recency"`
	Volume  float64 `json:"volume" yaml:"volume" mapstructure:"volume"`
}

// Total returns the sum of the weights.
func (w Weights) Total() float64 {
	return w.Title + w.Text + w.Recency + w.Volume
}

// RankingConfig tunes the ranker.
type RankingConfig struct {
	Dataset     Weights `json:"dataset" yaml:"dataset" mapstructure:"dataset"`
	Publication Weights `json:"publication" yaml:"publication" mapstructure:"publication"`

	// RecencyHalfLife is the age in years at which the recency factor halves.
	RecencyHalfLife float64 `json:"recency_half_life" yaml:"recency_half_life" mapstructure:"recency_half_life"`

	// SampleCountCap and CitationCountCap are the volumes that score 1.0 on
	// the log-damped volume factor.
	SampleCountCap   int `json:"sample_count_cap" yaml:"sample_count_cap" mapstructure:"sample_count_cap"`
	CitationCountCap int `json:"citation_count_cap" yaml:"citation_count_cap" mapstructure:"citation_count_cap"`
}

// SearchConfig holds settings for the search stage.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// MaxResults is the per-source result cap passed to every backend.
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// SourceTimeout bounds each backend call.
	SourceTimeout time.Duration `json:"source_timeout" yaml:"source_timeout" mapstructure:"source_timeout"`

	// CacheTTL is how long a SearchResult stays cached.
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl" mapstructure:"cache_ttl"`

	EnableGEO             bool `json:"enable_geo" yaml:"enable_geo" mapstructure:"enable_geo"`
	EnableEuropePMC       bool `json:"enable_europepmc" yaml:"enable_europepmc" mapstructure:"enable_europepmc"`
	EnableOpenAlex        bool `json:"enable_openalex" yaml:"enable_openalex" mapstructure:"enable_openalex"`
	EnableSemanticScholar bool `json:"enable_semantic_scholar" yaml:"enable_semantic_scholar" mapstructure:"enable_semantic_scholar"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty" mapstructure:"semantic_scholar_api_key"`

	// NCBIAPIKey raises the E-utilities limit from 3 to 10 requests per second.
	NCBIAPIKey string `json:"ncbi_api_key,omitempty" yaml:"ncbi_api_key,omitempty" mapstructure:"ncbi_api_key"`

	// BreakerFailures opens a source's circuit after that many consecutive
	// failures. Zero disables circuit breaking.
	BreakerFailures int `json:"breaker_failures" yaml:"breaker_failures" mapstructure:"breaker_failures"`

	// BreakerCooldown is how long an open circuit stays open.
	BreakerCooldown time.Duration `json:"breaker_cooldown" yaml:"breaker_cooldown" mapstructure:"breaker_cooldown"`

	Dedup   DedupConfig   `json:"dedup" yaml:"dedup" mapstructure:"dedup"`
	Ranking RankingConfig `json:"ranking" yaml:"ranking" mapstructure:"ranking"`
}

// RateLimit configures one source's limiter: one token every Every, up to Burst.
type RateLimit struct {
	Every time.Duration `json:"every" yaml:"every" mapstructure:"every"`
	Burst int           `json:"burst" yaml:"burst" mapstructure:"burst"`
}

// FullTextConfig holds settings for the full-text waterfall.
type FullTextConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Sources is the fixed waterfall priority order, most preferred first.
	Sources []string `json:"sources" yaml:"sources" mapstructure:"sources"`

	// MaxAttempts bounds tries per source per request, counting the first (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`

	// RetryBaseDelay is the first backoff interval between tries; it doubles.
	RetryBaseDelay time.Duration `json:"retry_base_delay" yaml:"retry_base_delay" mapstructure:"retry_base_delay"`

	// AttemptTimeout bounds each locate and each fetch call.
	AttemptTimeout time.Duration `json:"attempt_timeout" yaml:"attempt_timeout" mapstructure:"attempt_timeout"`

	// MaxConcurrent bounds simultaneous resolutions in a batch (default 5).
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent" mapstructure:"max_concurrent"`

	// MaxBytes caps a single download.
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes" mapstructure:"max_bytes"`

	// RateLimits maps source name to its limiter settings.
	RateLimits map[string]RateLimit `json:"rate_limits" yaml:"rate_limits" mapstructure:"rate_limits"`

	LocationTTL time.Duration `json:"location_ttl" yaml:"location_ttl" mapstructure:"location_ttl"`
	RawTTL      time.Duration `json:"raw_ttl" yaml:"raw_ttl" mapstructure:"raw_ttl"`
	ParsedTTL   time.Duration `json:"parsed_ttl" yaml:"parsed_ttl" mapstructure:"parsed_ttl"`

	// PDFExtractor selects how PDFs become text: "markitdown" or "none".
	PDFExtractor string `json:"pdf_extractor" yaml:"pdf_extractor" mapstructure:"pdf_extractor"`

	// ContainerRuntime pins the extractor to "docker" or "podman". Empty
	// tries docker, then podman.
	ContainerRuntime string `json:"container_runtime,omitempty" yaml:"container_runtime,omitempty" mapstructure:"container_runtime"`

	// ExtractorMemory caps the extractor container's memory (e.g. "1g").
	ExtractorMemory string `json:"extractor_memory,omitempty" yaml:"extractor_memory,omitempty" mapstructure:"extractor_memory"`
}

// CacheBackend selects the key-value store behind the cache tiers.
type CacheBackend string

const (
	CacheMemory CacheBackend = "memory"
	CacheSQLite CacheBackend = "sqlite"
	CacheRedis  CacheBackend = "redis"
	CacheBadger CacheBackend = "badger"
)

// CacheConfig holds settings for the cache tiers.
type CacheConfig struct {
	Backend CacheBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Dir is the directory for on-disk backends (sqlite, badger).
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// Namespace prefixes every key, so several deployments can share a store.
	Namespace string `json:"namespace" yaml:"namespace" mapstructure:"namespace"`

	// MaxEntries bounds the memory backend; zero means unbounded.
	MaxEntries int `json:"max_entries" yaml:"max_entries" mapstructure:"max_entries"`

	RedisAddr     string `json:"redis_addr" yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `json:"redis_password,omitempty" yaml:"redis_password,omitempty" mapstructure:"redis_password"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db" mapstructure:"redis_db"`

	// DistributedLock enables the Redis lock around full-text fetches so
	// several processes coalesce on the same document.
	DistributedLock bool `json:"distributed_lock" yaml:"distributed_lock" mapstructure:"distributed_lock"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is "json" or "console".
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// OutputDir, when set, also writes logs to OutputDir/biosearch.log.
	OutputDir string `json:"output_dir,omitempty" yaml:"output_dir,omitempty" mapstructure:"output_dir"`
}

// Config groups all stage configurations.
type Config struct {
	Search   SearchConfig   `json:"search" yaml:"search" mapstructure:"search"`
	FullText FullTextConfig `json:"fulltext" yaml:"fulltext" mapstructure:"fulltext"`
	Cache    CacheConfig    `json:"cache" yaml:"cache" mapstructure:"cache"`
	Log      LogConfig      `json:"log" yaml:"log" mapstructure:"log"`
}

const defaultUserAgent = "biosearch/0.1"

// DefaultConfig returns the configuration used when no file or flag overrides it.
func DefaultConfig() Config {
	return Config{
		Search: SearchConfig{
			HTTPConfig:      HTTPConfig{Timeout: 30 * time.Second, UserAgent: defaultUserAgent},
			MaxResults:      50,
			SourceTimeout:   15 * time.Second,
			CacheTTL:        time.Hour,
			EnableGEO:       true,
			EnableEuropePMC: true,
			EnableOpenAlex:  true,
			BreakerCooldown: time.Minute,
			Dedup:           DedupConfig{TitleSimilarity: 0.92},
			Ranking:         DefaultRankingConfig(),
		},
		FullText: FullTextConfig{
			HTTPConfig:     HTTPConfig{Timeout: 60 * time.Second, UserAgent: defaultUserAgent},
			Sources:        []string{"europepmc", "unpaywall", "openalex", "doi"},
			MaxAttempts:    3,
			RetryBaseDelay: 500 * time.Millisecond,
			AttemptTimeout: 30 * time.Second,
			MaxConcurrent:  5,
			MaxBytes:       50 << 20,
			RateLimits: map[string]RateLimit{
				"europepmc": {Every: 100 * time.Millisecond, Burst: 5},
				"unpaywall": {Every: 100 * time.Millisecond, Burst: 5},
				"openalex":  {Every: 100 * time.Millisecond, Burst: 10},
				"doi":       {Every: time.Second, Burst: 1},
			},
			LocationTTL:     30 * 24 * time.Hour,
			RawTTL:          30 * 24 * time.Hour,
			ParsedTTL:       30 * 24 * time.Hour,
			PDFExtractor:    "markitdown",
			ExtractorMemory: "1g",
		},
		Cache: CacheConfig{
			Backend:   CacheSQLite,
			Dir:       ".biosearch",
			Namespace: "biosearch",
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// DefaultRankingConfig returns the built-in ranking weights. Title overlap
// carries the highest weight for both record kinds.
func DefaultRankingConfig() RankingConfig {
	return RankingConfig{
		Dataset:          Weights{Title: 0.45, Text: 0.25, Recency: 0.15, Volume: 0.15},
		Publication:      Weights{Title: 0.45, Text: 0.25, Recency: 0.2, Volume: 0.1},
		RecencyHalfLife:  5,
		SampleCountCap:   1000,
		CitationCountCap: 10000,
	}
}
