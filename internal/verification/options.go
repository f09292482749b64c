package verification

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"winefeed/internal/verification/metrics"
)

const (
	DefaultVerifiedTTL = 30 * 24 * time.Hour
	DefaultNotFoundTTL = 7 * 24 * time.Hour
	DefaultChunkSize   = 10
	DefaultChunkDelay  = time.Second
	DefaultBreakerName = "gtin-registry"
)

// Config holds the cache TTL policy and the limits applied to live registry calls.
// Positive results are kept longer than negative ones: a GTIN that was not
// registered yesterday may be registered today.
type Config struct {
	VerifiedTTL      time.Duration
	NotFoundTTL      time.Duration
	RateLimit        int
	RateWindow       time.Duration
	FailureThreshold int
	Cooldown         time.Duration
	ChunkSize        int
	ChunkDelay       time.Duration
}

func DefaultConfig() Config {
	return Config{
		VerifiedTTL:      DefaultVerifiedTTL,
		NotFoundTTL:      DefaultNotFoundTTL,
		RateLimit:        60,
		RateWindow:       time.Minute,
		FailureThreshold: 5,
		Cooldown:         time.Minute,
		ChunkSize:        DefaultChunkSize,
		ChunkDelay:       DefaultChunkDelay,
	}
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithConfig overrides the defaults. Zero fields keep their default value.
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		d := &s.config
		if cfg.VerifiedTTL > 0 {
			d.VerifiedTTL = cfg.VerifiedTTL
		}
		if cfg.NotFoundTTL > 0 {
			d.NotFoundTTL = cfg.NotFoundTTL
		}
		if cfg.RateLimit > 0 {
			d.RateLimit = cfg.RateLimit
		}
		if cfg.RateWindow > 0 {
			d.RateWindow = cfg.RateWindow
		}
		if cfg.FailureThreshold > 0 {
			d.FailureThreshold = cfg.FailureThreshold
		}
		if cfg.Cooldown > 0 {
			d.Cooldown = cfg.Cooldown
		}
		if cfg.ChunkSize > 0 {
			d.ChunkSize = cfg.ChunkSize
		}
		if cfg.ChunkDelay > 0 {
			d.ChunkDelay = cfg.ChunkDelay
		}
	}
}

// WithClock injects the time source used for expiry, the rate limiter and the
// circuit breaker.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// VerifyOption tunes a single Verify call.
type VerifyOption func(*verifyOptions)

type verifyOptions struct {
	forceFresh bool
	allowStale bool
}

// WithForceFresh skips the cache read and always calls the registry.
func WithForceFresh() VerifyOption {
	return func(o *verifyOptions) {
		o.forceFresh = true
	}
}

// WithoutStale disables serving an expired record when the live call fails.
func WithoutStale() VerifyOption {
	return func(o *verifyOptions) {
		o.allowStale = false
	}
}

func resolveVerifyOptions(opts []VerifyOption) verifyOptions {
	o := verifyOptions{allowStale: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
