// Package matching decides whether a supplier's product record is a canonical
// catalog product.
//
// Resolution runs in three stages and stops at the first that yields a decision:
//
//  1. an existing supplier SKU mapping
//  2. a verified barcode linked to a catalog product
//  3. weighted fuzzy scoring over the products sharing the input's volume and pack
//
// Every candidate that decides an outcome passes the guardrails and the vintage
// policy first. A guardrail failure is always NO_MATCH and a vintage failure is
// always REVIEW_QUEUE, whatever the score. Both are results, not errors.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	catalog "winefeed/internal/catalog/models"
	"winefeed/internal/matching/metrics"
	"winefeed/internal/matching/models"
	"winefeed/internal/matching/ports"
	"winefeed/pkg/platform/audit"
	"winefeed/pkg/platform/sentinel"
	"winefeed/pkg/requestcontext"
)

type Service struct {
	mappings ports.MappingStore
	catalog  ports.CatalogStore
	verifier ports.VerificationPort
	audit    ports.AuditPublisher

	config  Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
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

// WithConfig replaces the default configuration. New rejects an invalid one.
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithAuditPublisher sends one event per decision to p. Emission is best-effort.
func WithAuditPublisher(p ports.AuditPublisher) Option {
	return func(s *Service) {
		s.audit = p
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

func New(mappings ports.MappingStore, catalogStore ports.CatalogStore, verifier ports.VerificationPort, opts ...Option) (*Service, error) {
	if mappings == nil {
		return nil, errors.New("mapping store is required")
	}
	if catalogStore == nil {
		return nil, errors.New("catalog store is required")
	}
	if verifier == nil {
		return nil, errors.New("verification port is required")
	}

	s := &Service{
		mappings: mappings,
		catalog:  catalogStore,
		verifier: verifier,
		config:   DefaultConfig(),
		logger:   slog.Default(),
		tracer:   otel.Tracer("winefeed/matching"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching config: %w", err)
	}
	return s, nil
}

// MatchProduct resolves one supplier record. Errors are reserved for input that
// cannot be evaluated (invalid fields, malformed barcode) and store failures; every
// evaluated record yields a MatchResult, including NO_MATCH.
func (s *Service) MatchProduct(ctx context.Context, supplierID string, in models.SupplierProductInput) (*models.MatchResult, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveMatchLatency(time.Since(start))
	}()

	ctx, span := s.tracer.Start(ctx, "matching.MatchProduct",
		trace.WithAttributes(
			attribute.String("supplier.id", supplierID),
			attribute.String("product.sku", in.SKU),
		),
	)
	defer span.End()

	if err := in.Validate(); err != nil {
		err = fmt.Errorf("%w: %w", models.ErrInvalidInput, err)
		span.SetStatus(codes.Error, "invalid input")
		return nil, err
	}

	result, err := s.resolve(ctx, supplierID, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "match failed")
		return nil, err
	}
	result.SKU = in.SKU
	result.DecidedAt = requestcontext.Now(ctx)

	span.SetAttributes(
		attribute.String("match.decision", string(result.Decision)),
		attribute.String("match.stage", string(result.Stage)),
		attribute.Int("match.confidence", result.Confidence),
	)
	s.metrics.IncrementDecision(string(result.Decision), string(result.Stage))
	for _, f := range result.GuardrailFailures {
		s.metrics.IncrementGuardrailFailure(string(f.Code))
	}
	s.logger.DebugContext(ctx, "product matched",
		"supplier_id", supplierID,
		"sku", in.SKU,
		"decision", result.Decision,
		"confidence", result.Confidence,
		"stage", result.Stage,
		"reasons", result.Reasons,
	)

	s.emit(ctx, supplierID, result)
	return result, nil
}

func (s *Service) resolve(ctx context.Context, supplierID string, in models.SupplierProductInput) (*models.MatchResult, error) {
	productID, err := s.mappings.Get(ctx, supplierID, in.SKU)
	switch {
	case err == nil:
		return &models.MatchResult{
			Decision:   models.DecisionAutoMatch,
			Confidence: s.config.MappingConfidence,
			ProductID:  productID,
			Reasons:    []models.Reason{models.ReasonSKUMappingFound},
			Stage:      models.StageMapping,
		}, nil
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, fmt.Errorf("lookup supplier mapping: %w", err)
	}

	var carried []models.Reason
	if raw := in.Barcode(); raw != "" {
		result, fallThrough, err := s.matchBarcode(ctx, in, raw)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
		carried = append(carried, fallThrough)
	}

	return s.matchFuzzy(ctx, in, carried)
}

// matchBarcode returns a result when the barcode resolves to a catalog product,
// otherwise the reason the engine falls through to fuzzy matching.
func (s *Service) matchBarcode(ctx context.Context, in models.SupplierProductInput, raw string) (*models.MatchResult, models.Reason, error) {
	outcome, err := s.verifier.Verify(ctx, raw)
	if err != nil {
		if errors.Is(err, ports.ErrVerificationUnavailable) {
			s.metrics.IncrementVerification("unavailable")
			s.logger.WarnContext(ctx, "barcode verification unavailable, falling back to fuzzy match",
				"sku", in.SKU,
				"error", err,
			)
			return nil, models.ReasonGTINUnavailable, nil
		}
		return nil, "", fmt.Errorf("verify barcode: %w", err)
	}
	if !outcome.Verified {
		s.metrics.IncrementVerification("not_verified")
		return nil, models.ReasonGTINNotVerified, nil
	}

	entry, err := s.catalog.FindByGTIN(ctx, outcome.GTIN)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrInvalidRecord) {
			s.metrics.IncrementVerification("not_in_catalog")
			return nil, models.ReasonGTINNotInCatalog, nil
		}
		return nil, "", fmt.Errorf("lookup gtin in catalog: %w", err)
	}
	s.metrics.IncrementVerification("verified")

	candidate := ScoreBarcodeCandidate(in, *entry, s.config)
	candidate.GuardrailFailures = CheckGuardrails(in, entry.Product, s.config.ABVTolerance)
	return s.decide(in, models.StageBarcode, []models.Candidate{candidate}, nil), "", nil
}

func (s *Service) matchFuzzy(ctx context.Context, in models.SupplierProductInput, carried []models.Reason) (*models.MatchResult, error) {
	entries, err := s.catalog.FindByVolumeAndPack(ctx, in.VolumeML, in.PackType)
	if err != nil {
		return nil, fmt.Errorf("find catalog candidates: %w", err)
	}

	ranked := s.rank(in, entries)
	if len(ranked) == 0 {
		return &models.MatchResult{
			Decision: models.DecisionNoMatch,
			Reasons:  append(carried, models.ReasonNoCandidates),
			Stage:    models.StageNone,
		}, nil
	}

	passing := make([]models.Candidate, 0, len(ranked))
	for i := range ranked {
		ranked[i].GuardrailFailures = CheckGuardrails(in, ranked[i].Entry.Product, s.config.ABVTolerance)
		if len(ranked[i].GuardrailFailures) == 0 {
			passing = append(passing, ranked[i])
		}
	}
	if len(passing) == 0 {
		// Every candidate is blocked; the best one explains why.
		return s.decide(in, models.StageFuzzy, ranked, carried), nil
	}
	return s.decide(in, models.StageFuzzy, passing, carried), nil
}

// rank scores entries, drops those under the candidate floor, and orders the rest
// by score descending with ties broken by product id.
func (s *Service) rank(in models.SupplierProductInput, entries []catalog.CatalogEntry) []models.Candidate {
	ranked := make([]models.Candidate, 0, len(entries))
	for _, entry := range entries {
		c := ScoreCandidate(in, entry, s.config)
		if c.Score < s.config.MinCandidateScore {
			continue
		}
		ranked = append(ranked, c)
	}
	slices.SortFunc(ranked, func(a, b models.Candidate) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		return strings.Compare(a.ProductID.String(), b.ProductID.String())
	})
	return ranked
}

// decide turns ranked candidates into a result. The first candidate is decisive.
func (s *Service) decide(in models.SupplierProductInput, stage models.Stage, ranked []models.Candidate, carried []models.Reason) *models.MatchResult {
	top := ranked[0]
	vintage := CheckVintage(in.Vintage, top.Entry.Product.Vintage)
	decision := Decide(top, vintage, s.config)

	reasons := append(slices.Clone(carried), top.Reasons...)
	switch {
	case len(top.GuardrailFailures) > 0:
		reasons = append(reasons, models.ReasonGuardrailFailed)
	case vintage != "":
		reasons = append(reasons, vintage)
	case decision == models.DecisionNoMatch:
		reasons = append(reasons, models.ReasonBelowThreshold)
	}

	result := &models.MatchResult{
		Decision:          decision,
		Confidence:        top.Score,
		Reasons:           reasons,
		GuardrailFailures: top.GuardrailFailures,
		Stage:             stage,
	}
	if decision.IsAutomatic() {
		result.ProductID = top.ProductID
	} else {
		result.Candidates = ranked[:min(len(ranked), s.config.MaxReviewCandidates)]
	}
	return result
}

func (s *Service) emit(ctx context.Context, supplierID string, result *models.MatchResult) {
	if s.audit == nil {
		return
	}

	event := audit.DecisionEvent{
		Timestamp:  result.DecidedAt,
		RequestID:  requestcontext.RequestID(ctx),
		SupplierID: supplierID,
		SKU:        result.SKU,
		Stage:      string(result.Stage),
		Decision:   string(result.Decision),
		Confidence: result.Confidence,
		Reasons:    make([]string, 0, len(result.Reasons)),
	}
	if batchID := requestcontext.BatchID(ctx); batchID != uuid.Nil {
		event.BatchID = batchID.String()
	}
	if result.ProductID != uuid.Nil {
		event.ProductID = result.ProductID.String()
	}
	for _, r := range result.Reasons {
		event.Reasons = append(event.Reasons, string(r))
	}
	for _, c := range result.Candidates {
		event.CandidateIDs = append(event.CandidateIDs, c.ProductID.String())
	}

	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit match decision",
			"supplier_id", supplierID,
			"sku", result.SKU,
			"error", err,
		)
	}
}
