// Package bootstrap is the composition root of the matching subsystem. The import
// pipeline and the review-queue service embed it: New builds every dependency from
// configuration and App.Close releases them in reverse order.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	catalogmemory "winefeed/internal/catalog/store/memory"
	catalogpostgres "winefeed/internal/catalog/store/postgres"
	"winefeed/internal/matching"
	"winefeed/internal/matching/adapters"
	matchingmetrics "winefeed/internal/matching/metrics"
	"winefeed/internal/matching/ports"
	"winefeed/internal/platform/config"
	"winefeed/internal/platform/database"
	"winefeed/internal/platform/kafka"
	"winefeed/internal/platform/logger"
	platformredis "winefeed/internal/platform/redis"
	"winefeed/internal/verification"
	verificationmetrics "winefeed/internal/verification/metrics"
	verificationports "winefeed/internal/verification/ports"
	"winefeed/internal/verification/registry"
	cachememory "winefeed/internal/verification/store/memory"
	cachepostgres "winefeed/internal/verification/store/postgres"
	cacheredis "winefeed/internal/verification/store/redis"
	"winefeed/pkg/platform/audit/publisher"
	auditkafka "winefeed/pkg/platform/audit/store/kafka"
)

const (
	auditBufferSize  = 1024
	auditPartitions  = 6
	auditReplication = 1
)

// CatalogStore is the read side of the catalog the matching engine consults:
// confirmed supplier mappings and catalog lookups.
type CatalogStore interface {
	ports.MappingStore
	ports.CatalogStore
}

type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Catalog      CatalogStore
	Verification *verification.Service
	Matching     *matching.Service

	closers []func() error
}

type Option func(*options)

type options struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
}

// WithLogger replaces the logger built from cfg.Log.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRegisterer sets where metrics are registered. Defaults to the global registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// New wires the stores selected by cfg, the registry client and both services.
// On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.New(cfg.Log.Level, cfg.Log.Format)
	}

	app := &App{Config: cfg, Logger: o.logger}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	if cfg.Postgres.DSN != "" && cfg.Postgres.AutoMigrate {
		if err := database.Migrate(cfg.Postgres.DSN, o.logger); err != nil {
			return nil, err
		}
	}

	app.Catalog, err = app.catalogStore(ctx)
	if err != nil {
		return nil, err
	}

	cache, err := app.cacheStore(ctx)
	if err != nil {
		return nil, err
	}

	client, err := registry.New(cfg.Registry.BaseURL, cfg.Registry.Token,
		registry.WithTimeout(cfg.Registry.Timeout),
		registry.WithUserAgent(cfg.Registry.UserAgent),
	)
	if err != nil {
		return nil, fmt.Errorf("build registry client: %w", err)
	}

	app.Verification, err = verification.New(cache, client,
		verification.WithLogger(o.logger),
		verification.WithMetrics(verificationmetrics.New(o.registerer)),
		verification.WithConfig(VerificationConfig(cfg)),
	)
	if err != nil {
		return nil, fmt.Errorf("build verification service: %w", err)
	}
	app.closers = append(app.closers, app.Verification.Close)

	matchingOpts := []matching.Option{
		matching.WithLogger(o.logger),
		matching.WithMetrics(matchingmetrics.New(o.registerer)),
		matching.WithConfig(MatchingConfig(cfg)),
	}
	pub, err := app.auditPublisher(ctx, o.registerer)
	if err != nil {
		return nil, err
	}
	if pub != nil {
		matchingOpts = append(matchingOpts, matching.WithAuditPublisher(pub))
	}

	app.Matching, err = matching.New(app.Catalog, app.Catalog,
		adapters.NewVerificationAdapter(app.Verification), matchingOpts...)
	if err != nil {
		return nil, fmt.Errorf("build matching service: %w", err)
	}

	o.logger.InfoContext(ctx, "matching subsystem ready",
		"cache_backend", cfg.Cache.Backend,
		"catalog_backend", catalogBackend(cfg),
		"audit_feed", pub != nil,
	)
	return app, nil
}

// Close releases resources in reverse order of acquisition and reports every
// failure.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) catalogStore(ctx context.Context) (CatalogStore, error) {
	if a.Config.Postgres.DSN == "" {
		return catalogmemory.New(), nil
	}
	pool, err := database.Connect(ctx, a.Config.Postgres, a.Logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	return catalogpostgres.New(pool, a.Logger), nil
}

func (a *App) cacheStore(ctx context.Context) (verificationports.CacheStore, error) {
	cfg := a.Config
	switch cfg.Cache.Backend {
	case "postgres":
		db, err := database.OpenSQL(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return cachepostgres.New(db), nil
	case "redis":
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		if client == nil {
			return nil, errors.New("redis.url is required for the redis cache backend")
		}
		a.closers = append(a.closers, client.Close)
		return cacheredis.New(client.Client, cacheredis.WithStaleRetention(cfg.Cache.StaleRetention)), nil
	default:
		store, err := cachememory.New(cfg.Cache.MemorySize)
		if err != nil {
			return nil, fmt.Errorf("build memory cache: %w", err)
		}
		return store, nil
	}
}

// auditPublisher returns nil when no Kafka brokers are configured.
func (a *App) auditPublisher(ctx context.Context, reg prometheus.Registerer) (*publisher.Publisher, error) {
	producer, err := kafka.NewProducer(ctx, a.Config.Kafka, a.Logger)
	if err != nil {
		return nil, err
	}
	if producer == nil {
		return nil, nil
	}
	a.closers = append(a.closers, func() error {
		producer.Close()
		return nil
	})

	if err := producer.EnsureTopic(ctx, auditPartitions, auditReplication); err != nil {
		return nil, err
	}

	pub := publisher.NewPublisher(auditkafka.New(producer),
		publisher.WithLogger(a.Logger),
		publisher.WithMetrics(publisher.NewMetrics(reg)),
		publisher.WithAsyncBuffer(auditBufferSize),
	)
	a.closers = append(a.closers, pub.Close)
	return pub, nil
}

// VerificationConfig maps the cache, rate limit, circuit and batch sections onto
// the verification service configuration.
func VerificationConfig(cfg *config.Config) verification.Config {
	return verification.Config{
		VerifiedTTL:      cfg.Cache.VerifiedTTL,
		NotFoundTTL:      cfg.Cache.NotFoundTTL,
		RateLimit:        cfg.RateLimit.Requests,
		RateWindow:       cfg.RateLimit.Window,
		FailureThreshold: cfg.Circuit.FailureThreshold,
		Cooldown:         cfg.Circuit.Cooldown,
		ChunkSize:        cfg.Batch.VerifyChunkSize,
		ChunkDelay:       cfg.Batch.VerifyChunkDelay,
	}
}

// MatchingConfig maps the matching section onto the engine configuration.
func MatchingConfig(cfg *config.Config) matching.Config {
	m := cfg.Matching
	return matching.Config{
		Weights: matching.Weights{
			ProducerExact: m.ProducerExactPoints,
			ProducerFuzzy: m.ProducerFuzzyPoints,
			ProductExact:  m.ProductExactPoints,
			ProductFuzzy:  m.ProductFuzzyPoints,
			Vintage:       m.VintagePoints,
			Volume:        m.VolumePoints,
			Pack:          m.PackPoints,
			ABV:           m.ABVPoints,
			Country:       m.CountryPoints,
			Region:        m.RegionPoints,
			Grape:         m.GrapePoints,
			GTINBase:      m.GTINBasePoints,
			BarcodeVolume: m.BarcodeVolumePoints,
			BarcodePack:   m.BarcodePackPoints,
		},
		ProducerSimilarity:  m.ProducerSimilarity,
		ProductSimilarity:   m.ProductSimilarity,
		ABVTolerance:        m.ABVTolerance,
		MinCandidateScore:   m.MinCandidateScore,
		MappingConfidence:   m.MappingConfidence,
		AutoMatchThreshold:  m.AutoMatchThreshold,
		SamplingThreshold:   m.SamplingThreshold,
		ReviewThreshold:     m.ReviewThreshold,
		MaxReviewCandidates: m.MaxReviewCandidates,
		BatchConcurrency:    cfg.Batch.MatchConcurrency,
	}
}

func catalogBackend(cfg *config.Config) string {
	if cfg.Postgres.DSN == "" {
		return "memory"
	}
	return "postgres"
}
