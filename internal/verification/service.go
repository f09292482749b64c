// Package verification authenticates GTINs against the external registry through a
// persistent cache.
//
// A live registry call passes, in order, the circuit breaker, the outbound rate
// limiter and the registry itself. Verified results are cached for VerifiedTTL and
// not-found results for the shorter NotFoundTTL. When a live call fails and an
// expired record exists, the expired record is served as cache_stale instead of
// the error unless the caller opts out with WithoutStale.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"winefeed/internal/verification/metrics"
	"winefeed/internal/verification/models"
	"winefeed/internal/verification/ports"
	"winefeed/internal/verification/ratelimit"
	"winefeed/internal/verification/registry"
	"winefeed/pkg/platform/circuit"
	"winefeed/pkg/platform/sentinel"
)

const hitCountTimeout = 2 * time.Second

type Service struct {
	store   ports.CacheStore
	client  registry.Client
	config  Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time

	breaker *circuit.Breaker
	limiter *ratelimit.Window

	// background tracks best-effort hit-count writes.
	background sync.WaitGroup
}

// Health is a point-in-time view of the live-call safeguards.
type Health struct {
	CircuitState        string
	ConsecutiveFailures int
	RemainingQuota      int
	QuotaLimit          int
}

func New(store ports.CacheStore, client registry.Client, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("cache store is required")
	}
	if client == nil {
		return nil, errors.New("registry client is required")
	}

	s := &Service{
		store:  store,
		client: client,
		config: DefaultConfig(),
		logger: slog.Default(),
		tracer: otel.Tracer("winefeed/verification"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.breaker = circuit.New(DefaultBreakerName,
		circuit.WithFailureThreshold(s.config.FailureThreshold),
		circuit.WithCooldown(s.config.Cooldown),
		circuit.WithClock(s.now),
		circuit.WithOnStateChange(s.onCircuitChange),
	)
	s.limiter = ratelimit.New(
		ratelimit.WithLimit(s.config.RateLimit),
		ratelimit.WithWindow(s.config.RateWindow),
		ratelimit.WithClock(s.now),
	)
	s.metrics.SetRemainingQuota(s.limiter.Remaining())
	return s, nil
}

// Verify returns the verification outcome for an already normalised GTIN.
func (s *Service) Verify(ctx context.Context, gtin GTIN, opts ...VerifyOption) (*models.Result, error) {
	o := resolveVerifyOptions(opts)

	var cached *models.CacheRecord
	if !o.forceFresh {
		cached = s.readCache(ctx, gtin)
		if cached != nil && !cached.IsExpired(s.now()) {
			s.metrics.CacheLookup("hit")
			s.recordHit(ctx, gtin)
			return cached.Result(models.SourceCache), nil
		}
		if cached == nil {
			s.metrics.CacheLookup("miss")
		}
	}

	result, err := s.live(ctx, gtin)
	if err == nil {
		return result, nil
	}

	if cached != nil && o.allowStale {
		s.metrics.CacheLookup("stale")
		s.logger.WarnContext(ctx, "serving stale gtin verification",
			"gtin", gtin,
			"expired_at", cached.ExpiresAt,
			"error", err,
		)
		return cached.Result(models.SourceCacheStale), nil
	}
	return nil, err
}

// Health reports breaker state and remaining outbound quota.
func (s *Service) Health() Health {
	return Health{
		CircuitState:        s.breaker.State().String(),
		ConsecutiveFailures: s.breaker.Failures(),
		RemainingQuota:      s.limiter.Remaining(),
		QuotaLimit:          s.limiter.Limit(),
	}
}

// Close waits for in-flight hit-count writes.
func (s *Service) Close() error {
	s.background.Wait()
	return nil
}

func (s *Service) readCache(ctx context.Context, gtin GTIN) *models.CacheRecord {
	record, err := s.store.Get(ctx, gtin.String())
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "verification cache read failed, treating as miss",
				"gtin", gtin,
				"error", err,
			)
		}
		return nil
	}
	return record
}

func (s *Service) recordHit(ctx context.Context, gtin GTIN) {
	s.background.Go(func() {
		hitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hitCountTimeout)
		defer cancel()
		if err := s.store.IncrementHitCount(hitCtx, gtin.String()); err != nil {
			s.logger.DebugContext(hitCtx, "failed to increment verification hit count",
				"gtin", gtin,
				"error", err,
			)
		}
	})
}

func (s *Service) live(ctx context.Context, gtin GTIN) (*models.Result, error) {
	ctx, span := s.tracer.Start(ctx, "verification.live",
		trace.WithAttributes(attribute.String("gtin", gtin.String())),
	)
	defer span.End()

	result, err := s.callRegistry(ctx, gtin)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Bool("verified", result.Verified))
	return result, nil
}

func (s *Service) callRegistry(ctx context.Context, gtin GTIN) (*models.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if ok, retryAt := s.breaker.Allow(); !ok {
		s.metrics.Rejected("circuit_open")
		return nil, &CircuitOpenError{Name: s.breaker.Name(), RetryAt: retryAt}
	}

	decision := s.limiter.Allow()
	s.metrics.SetRemainingQuota(decision.Remaining)
	if !decision.Allowed {
		s.metrics.Rejected("rate_limited")
		s.logger.WarnContext(ctx, "gtin registry rate limit reached",
			"limit", decision.Limit,
			"reset_at", decision.ResetAt,
		)
		return nil, &RateLimitExceededError{Limit: decision.Limit, ResetAt: decision.ResetAt}
	}

	start := time.Now()
	lookup, err := s.client.Lookup(ctx, gtin.String())
	elapsed := time.Since(start).Seconds()
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("registry lookup: %w", ctx.Err())
		}
		s.breaker.RecordFailure()
		s.metrics.RegistryRequest("error", elapsed)
		s.logger.WarnContext(ctx, "gtin registry lookup failed",
			"gtin", gtin,
			"category", registry.GetCategory(err),
			"error", err,
		)
		return nil, &ExternalServiceError{StatusCode: registry.StatusCode(err), Err: err}
	}
	s.breaker.RecordSuccess()

	now := s.now()
	record := models.CacheRecord{
		GTIN:     gtin.String(),
		Verified: lookup.Found,
		Payload:  lookup.Payload,
		CachedAt: now,
	}
	if lookup.Found {
		record.ExpiresAt = now.Add(s.config.VerifiedTTL)
		s.metrics.RegistryRequest("verified", elapsed)
	} else {
		record.ExpiresAt = now.Add(s.config.NotFoundTTL)
		s.metrics.RegistryRequest("not_found", elapsed)
	}

	if err := s.store.Upsert(ctx, record); err != nil {
		s.logger.WarnContext(ctx, "failed to cache gtin verification",
			"gtin", gtin,
			"error", err,
		)
	}
	return record.Result(models.SourceLive), nil
}

func (s *Service) onCircuitChange(name string, to circuit.State) {
	s.metrics.SetCircuitOpen(to == circuit.StateOpen)
	if to == circuit.StateOpen {
		s.logger.Warn("circuit breaker opened", "circuit", name, "cooldown", s.config.Cooldown)
		return
	}
	s.logger.Info("circuit breaker closed", "circuit", name)
}
