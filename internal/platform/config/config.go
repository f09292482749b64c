// Package config loads runtime configuration from an optional winefeed.yaml file and
// WINEFEED_* environment variables. Every tuning constant of the matching engine and
// the verification cache has a default here and can be overridden per deployment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "WINEFEED"

// Config is the root configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Circuit   CircuitConfig   `mapstructure:"circuit"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}

// RegistryConfig points at the external GTIN registry.
type RegistryConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Token     string        `mapstructure:"token"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// CacheConfig selects the verification cache backend and its TTL policy.
type CacheConfig struct {
	Backend        string        `mapstructure:"backend"` // "memory", "postgres" or "redis"
	VerifiedTTL    time.Duration `mapstructure:"verified_ttl"`
	NotFoundTTL    time.Duration `mapstructure:"not_found_ttl"`
	StaleRetention time.Duration `mapstructure:"stale_retention"`
	MemorySize     int           `mapstructure:"memory_size"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type CircuitConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
}

type BatchConfig struct {
	VerifyChunkSize  int           `mapstructure:"verify_chunk_size"`
	VerifyChunkDelay time.Duration `mapstructure:"verify_chunk_delay"`
	MatchConcurrency int           `mapstructure:"match_concurrency"`
}

// MatchingConfig carries the scoring weights and thresholds. The values are
// tuning constants and are expected to be retuned against real supplier data.
type MatchingConfig struct {
	ProducerExactPoints int     `mapstructure:"producer_exact_points"`
	ProducerFuzzyPoints int     `mapstructure:"producer_fuzzy_points"`
	ProductExactPoints  int     `mapstructure:"product_exact_points"`
	ProductFuzzyPoints  int     `mapstructure:"product_fuzzy_points"`
	VintagePoints       int     `mapstructure:"vintage_points"`
	VolumePoints        int     `mapstructure:"volume_points"`
	PackPoints          int     `mapstructure:"pack_points"`
	ABVPoints           int     `mapstructure:"abv_points"`
	CountryPoints       int     `mapstructure:"country_points"`
	RegionPoints        int     `mapstructure:"region_points"`
	GrapePoints         int     `mapstructure:"grape_points"`
	GTINBasePoints      int     `mapstructure:"gtin_base_points"`
	BarcodeVolumePoints int     `mapstructure:"barcode_volume_points"`
	BarcodePackPoints   int     `mapstructure:"barcode_pack_points"`
	ProducerSimilarity  float64 `mapstructure:"producer_similarity"`
	ProductSimilarity   float64 `mapstructure:"product_similarity"`
	ABVTolerance        float64 `mapstructure:"abv_tolerance"`
	MinCandidateScore   int     `mapstructure:"min_candidate_score"`
	MappingConfidence   int     `mapstructure:"mapping_confidence"`
	AutoMatchThreshold  int     `mapstructure:"auto_match_threshold"`
	SamplingThreshold   int     `mapstructure:"sampling_threshold"`
	ReviewThreshold     int     `mapstructure:"review_threshold"`
	MaxReviewCandidates int     `mapstructure:"max_review_candidates"`
}

type PostgresConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxConns    int32  `mapstructure:"max_conns"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// RedisConfig mirrors the go-redis options we override.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// KafkaConfig enables the decision audit feed when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Load reads winefeed.yaml from the working directory or any of the extra paths,
// then applies WINEFEED_* environment overrides (nested keys joined with "_", e.g.
// WINEFEED_REGISTRY_BASE_URL). A missing file is not an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("winefeed")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("registry.base_url", "")
	v.SetDefault("registry.token", "")
	v.SetDefault("registry.timeout", "5s")
	v.SetDefault("registry.user_agent", "winefeed-matcher/1.0")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.verified_ttl", "720h")
	v.SetDefault("cache.not_found_ttl", "168h")
	v.SetDefault("cache.stale_retention", "720h")
	v.SetDefault("cache.memory_size", 50000)

	v.SetDefault("ratelimit.requests", 60)
	v.SetDefault("ratelimit.window", "60s")

	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.cooldown", "60s")

	v.SetDefault("batch.verify_chunk_size", 10)
	v.SetDefault("batch.verify_chunk_delay", "1s")
	v.SetDefault("batch.match_concurrency", 4)

	v.SetDefault("matching.producer_exact_points", 15)
	v.SetDefault("matching.producer_fuzzy_points", 10)
	v.SetDefault("matching.product_exact_points", 15)
	v.SetDefault("matching.product_fuzzy_points", 10)
	v.SetDefault("matching.vintage_points", 10)
	v.SetDefault("matching.volume_points", 10)
	v.SetDefault("matching.pack_points", 10)
	v.SetDefault("matching.abv_points", 5)
	v.SetDefault("matching.country_points", 3)
	v.SetDefault("matching.region_points", 3)
	v.SetDefault("matching.grape_points", 2)
	v.SetDefault("matching.gtin_base_points", 70)
	v.SetDefault("matching.barcode_volume_points", 5)
	v.SetDefault("matching.barcode_pack_points", 5)
	v.SetDefault("matching.producer_similarity", 0.90)
	v.SetDefault("matching.product_similarity", 0.92)
	v.SetDefault("matching.abv_tolerance", 0.5)
	v.SetDefault("matching.min_candidate_score", 50)
	v.SetDefault("matching.mapping_confidence", 90)
	v.SetDefault("matching.auto_match_threshold", 90)
	v.SetDefault("matching.sampling_threshold", 80)
	v.SetDefault("matching.review_threshold", 60)
	v.SetDefault("matching.max_review_candidates", 3)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.auto_migrate", false)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "winefeed.match-decisions")
}

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Cache.Backend {
	case "memory":
	case "postgres":
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres cache backend"))
		}
	case "redis":
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis cache backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of memory, postgres, redis", c.Cache.Backend))
	}

	if c.Cache.VerifiedTTL <= 0 || c.Cache.NotFoundTTL <= 0 {
		errs = append(errs, errors.New("cache TTLs must be positive"))
	}
	if c.Cache.NotFoundTTL >= c.Cache.VerifiedTTL {
		errs = append(errs, errors.New("cache.not_found_ttl must be shorter than cache.verified_ttl"))
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("ratelimit.requests and ratelimit.window must be positive"))
	}
	if c.Circuit.FailureThreshold <= 0 || c.Circuit.Cooldown <= 0 {
		errs = append(errs, errors.New("circuit.failure_threshold and circuit.cooldown must be positive"))
	}
	if c.Batch.VerifyChunkSize <= 0 || c.Batch.MatchConcurrency <= 0 {
		errs = append(errs, errors.New("batch sizes must be positive"))
	}

	m := c.Matching
	if !(m.ReviewThreshold < m.SamplingThreshold && m.SamplingThreshold < m.AutoMatchThreshold && m.AutoMatchThreshold <= 100) {
		errs = append(errs, errors.New("matching thresholds must satisfy review < sampling < auto <= 100"))
	}
	if m.ProducerSimilarity <= 0 || m.ProducerSimilarity > 1 || m.ProductSimilarity <= 0 || m.ProductSimilarity > 1 {
		errs = append(errs, errors.New("matching similarity thresholds must be in (0,1]"))
	}
	if m.ABVTolerance < 0 {
		errs = append(errs, errors.New("matching.abv_tolerance must not be negative"))
	}

	return errors.Join(errs...)
}
