package matching

//go:generate mockgen -source=ports/ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	catalog "winefeed/internal/catalog/models"
	"winefeed/internal/matching/metrics"
	"winefeed/internal/matching/mocks"
	"winefeed/internal/matching/models"
	"winefeed/internal/matching/ports"
	"winefeed/internal/verification"
	"winefeed/pkg/optional"
	"winefeed/pkg/platform/audit"
	"winefeed/pkg/platform/sentinel"
	"winefeed/pkg/requestcontext"
)

const supplierID = "supplier-42"

type ServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	mappings *mocks.MockMappingStore
	catalog  *mocks.MockCatalogStore
	verifier *mocks.MockVerificationPort
	audit    *mocks.MockAuditPublisher
	metrics  *metrics.Metrics
	service  *Service
	ctx      context.Context
	now      time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mappings = mocks.NewMockMappingStore(s.ctrl)
	s.catalog = mocks.NewMockCatalogStore(s.ctrl)
	s.verifier = mocks.NewMockVerificationPort(s.ctrl)
	s.audit = mocks.NewMockAuditPublisher(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())

	svc, err := New(s.mappings, s.catalog, s.verifier,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithAuditPublisher(s.audit),
	)
	s.Require().NoError(err)
	s.service = svc

	s.now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) expectNoMapping() {
	s.mappings.EXPECT().Get(gomock.Any(), supplierID, gomock.Any()).Return(uuid.Nil, sentinel.ErrNotFound)
}

func (s *ServiceSuite) expectAudit() *gomock.Call {
	return s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
}

func (s *ServiceSuite) TestNew() {
	s.Run("nil mapping store", func() {
		_, err := New(nil, s.catalog, s.verifier)
		s.Require().ErrorContains(err, "mapping store is required")
	})

	s.Run("nil catalog store", func() {
		_, err := New(s.mappings, nil, s.verifier)
		s.Require().ErrorContains(err, "catalog store is required")
	})

	s.Run("nil verification port", func() {
		_, err := New(s.mappings, s.catalog, nil)
		s.Require().ErrorContains(err, "verification port is required")
	})

	s.Run("invalid config", func() {
		cfg := DefaultConfig()
		cfg.AutoMatchThreshold = 70
		_, err := New(s.mappings, s.catalog, s.verifier, WithConfig(cfg))
		s.Require().ErrorContains(err, "invalid matching config")
	})
}

func (s *ServiceSuite) TestMatchProduct_InvalidInput() {
	in := fixtureInput()
	in.VolumeML = 0

	_, err := s.service.MatchProduct(s.ctx, supplierID, in)

	s.Require().ErrorIs(err, models.ErrInvalidInput)
}

func (s *ServiceSuite) TestMatchProduct_ExistingMapping() {
	productID := uuid.New()
	s.mappings.EXPECT().Get(gomock.Any(), supplierID, "VT-LACRAU-19").Return(productID, nil)

	var event audit.DecisionEvent
	s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.DecisionEvent) error {
		event = e
		return nil
	})

	result, err := s.service.MatchProduct(s.ctx, supplierID, fixtureInput())
	s.Require().NoError(err)

	s.Equal(models.DecisionAutoMatch, result.Decision)
	s.Equal(90, result.Confidence)
	s.Equal(productID, result.ProductID)
	s.Equal(models.StageMapping, result.Stage)
	s.Equal([]models.Reason{models.ReasonSKUMappingFound}, result.Reasons)
	s.Equal(s.now, result.DecidedAt)

	s.Equal(supplierID, event.SupplierID)
	s.Equal("VT-LACRAU-19", event.SKU)
	s.Equal("AUTO_MATCH", event.Decision)
	s.Equal(productID.String(), event.ProductID)
	s.Equal(s.now, event.Timestamp)
}

func (s *ServiceSuite) TestMatchProduct_MappingStoreFailure() {
	s.mappings.EXPECT().Get(gomock.Any(), supplierID, gomock.Any()).Return(uuid.Nil, sentinel.ErrUnavailable)

	_, err := s.service.MatchProduct(s.ctx, supplierID, fixtureInput())

	s.Require().ErrorIs(err, sentinel.ErrUnavailable)
}

func (s *ServiceSuite) TestMatchProduct_BarcodeAutoMatch() {
	in := fixtureInput()
	in.UnitGTIN = "7312040017355"
	entry := fixtureEntry()

	s.expectNoMapping()
	s.verifier.EXPECT().Verify(gomock.Any(), "7312040017355").
		Return(&ports.VerificationOutcome{GTIN: "07312040017355", Verified: true}, nil)
	s.catalog.EXPECT().FindByGTIN(gomock.Any(), "07312040017355").Return(&entry, nil)
	s.expectAudit()

	result, err := s.service.MatchProduct(s.ctx, supplierID, in)
	s.Require().NoError(err)

	s.Equal(models.DecisionAutoMatch, result.Decision)
	s.Equal(100, result.Confidence)
	s.Equal(entry.Product.ID, result.ProductID)
	s.Equal(models.StageBarcode, result.Stage)
	s.True(result.HasReason(models.ReasonGTINExact))
	s.Empty(result.Candidates)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Verifications.WithLabelValues("verified")))
}

func (s *ServiceSuite) TestMatchProduct_BarcodeGuardrailFailure() {
	in := fixtureInput()
	in.UnitGTIN = "7312040017355"
	in.VolumeML = 1500
	entry := fixtureEntry()

	s.expectNoMapping()
	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
		Return(&ports.VerificationOutcome{GTIN: "07312040017355", Verified: true}, nil)
	s.catalog.EXPECT().FindByGTIN(gomock.Any(), gomock.Any()).Return(&entry, nil)
	s.expectAudit()

	result, err := s.service.MatchProduct(s.ctx, supplierID, in)
	s.Require().NoError(err)

	s.Equal(models.DecisionNoMatch, result.Decision)
	s.Equal(uuid.Nil, result.ProductID)
	s.Require().Len(result.GuardrailFailures, 1)
	s.Equal(models.GuardrailVolumeMismatch, result.GuardrailFailures[0].Code)
	s.True(result.HasReason(models.ReasonGuardrailFailed))
	s.Len(result.Candidates, 1)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.GuardrailFailures.WithLabelValues("VOLUME_MISMATCH")))
}

func (s *ServiceSuite) TestMatchProduct_InvalidBarcodeIsReturned() {
	in := fixtureInput()
	in.UnitGTIN = "123"

	s.expectNoMapping()
	s.verifier.EXPECT().Verify(gomock.Any(), "123").
		Return(nil, &verification.InvalidGTINError{Raw: "123", Digits: 3})

	_, err := s.service.MatchProduct(s.ctx, supplierID, in)

	var invalid *verification.InvalidGTINError
	s.Require().ErrorAs(err, &invalid)
}

func (s *ServiceSuite) TestMatchProduct_BarcodeFallThrough() {
	cases := []struct {
		name   string
		setup  func()
		reason models.Reason
	}{
		{
			name: "verification unavailable",
			setup: func() {
				s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
					Return(nil, errors.Join(ports.ErrVerificationUnavailable, errors.New("circuit open")))
			},
			reason: models.ReasonGTINUnavailable,
		},
		{
			name: "not verified",
			setup: func() {
				s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
					Return(&ports.VerificationOutcome{GTIN: "07312040017355"}, nil)
			},
			reason: models.ReasonGTINNotVerified,
		},
		{
			name: "verified but not in catalog",
			setup: func() {
				s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
					Return(&ports.VerificationOutcome{GTIN: "07312040017355", Verified: true}, nil)
				s.catalog.EXPECT().FindByGTIN(gomock.Any(), "07312040017355").Return(nil, sentinel.ErrNotFound)
			},
			reason: models.ReasonGTINNotInCatalog,
		},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			in := fixtureInput()
			in.Region = "Châteauneuf-du-Pape"
			in.UnitGTIN = "7312040017355"
			entry := fixtureEntry()

			s.expectNoMapping()
			tc.setup()
			s.catalog.EXPECT().FindByVolumeAndPack(gomock.Any(), 750, catalog.PackBottle).
				Return([]catalog.CatalogEntry{entry}, nil)
			s.expectAudit()

			result, err := s.service.MatchProduct(s.ctx, supplierID, in)
			s.Require().NoError(err)

			s.Equal(models.StageFuzzy, result.Stage)
			s.Equal(tc.reason, result.Reasons[0])
			s.Equal(73, result.Confidence)
			s.Equal(models.DecisionReviewQueue, result.Decision)
		})
	}
}

func (s *ServiceSuite) TestMatchProduct_CatalogFailureOnBarcode() {
	in := fixtureInput()
	in.UnitGTIN = "7312040017355"

	s.expectNoMapping()
	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
		Return(&ports.VerificationOutcome{GTIN: "07312040017355", Verified: true}, nil)
	s.catalog.EXPECT().FindByGTIN(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrUnavailable)

	_, err := s.service.MatchProduct(s.ctx, supplierID, in)

	s.Require().ErrorIs(err, sentinel.ErrUnavailable)
}

func (s *ServiceSuite) TestMatchProduct_FuzzyRanking() {
	in := fixtureInput()
	best := fixtureEntry()

	runnerUp := fixtureEntry()
	runnerUp.Product.ID = uuid.MustParse("00000000-0000-4000-8000-000000000002")
	runnerUp.Product.Vintage = optional.Of(2018)

	tied := fixtureEntry()
	tied.Product.ID = uuid.MustParse("00000000-0000-4000-8000-000000000001")
	tied.Product.Vintage = optional.Of(2017)

	weak := fixtureEntry()
	weak.Product.ID = uuid.New()
	weak.Family.Producer = "Château Margaux"
	weak.Family.WineName = "Pavillon Rouge"

	s.expectNoMapping()
	s.catalog.EXPECT().FindByVolumeAndPack(gomock.Any(), 750, catalog.PackBottle).
		Return([]catalog.CatalogEntry{weak, runnerUp, best, tied}, nil)

	var event audit.DecisionEvent
	s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.DecisionEvent) error {
		event = e
		return nil
	})

	result, err := s.service.MatchProduct(s.ctx, supplierID, in)
	s.Require().NoError(err)

	s.Equal(models.DecisionReviewQueue, result.Decision)
	s.Equal(70, result.Confidence)
	s.Equal(uuid.Nil, result.ProductID)
	s.Require().Len(result.Candidates, 3)
	s.Equal(best.Product.ID, result.Candidates[0].ProductID)
	s.Equal(tied.Product.ID, result.Candidates[1].ProductID, "ties break on product id")
	s.Equal(runnerUp.Product.ID, result.Candidates[2].ProductID)
	s.Equal([]string{
		best.Product.ID.String(),
		tied.Product.ID.String(),
		runnerUp.Product.ID.String(),
	}, event.CandidateIDs)
	s.True(event.NeedsReview())
}

func (s *ServiceSuite) TestMatchProduct_FuzzyGuardrailFiltering() {
	in := fixtureInput()
	in.ABV = optional.Of(13.0)

	blocked := fixtureEntry()
	allowed := fixtureEntry()
	allowed.Product.ID = uuid.New()
	allowed.Product.ABV = optional.None[float64]()

	s.Run("blocked candidates are filtered out", func() {
		s.expectNoMapping()
		s.catalog.EXPECT().FindByVolumeAndPack(gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]catalog.CatalogEntry{blocked, allowed}, nil)
		s.expectAudit()

		result, err := s.service.MatchProduct(s.ctx, supplierID, in)
		s.Require().NoError(err)

		s.Empty(result.GuardrailFailures)
		s.Require().NotEmpty(result.Candidates)
		s.Equal(allowed.Product.ID, result.Candidates[0].ProductID)
	})

	s.Run("all candidates blocked is no match", func() {
		s.expectNoMapping()
		s.catalog.EXPECT().FindByVolumeAndPack(gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]catalog.CatalogEntry{blocked}, nil)
		s.expectAudit()

		result, err := s.service.MatchProduct(s.ctx, supplierID, in)
		s.Require().NoError(err)

		s.Equal(models.DecisionNoMatch, result.Decision)
		s.Require().Len(result.GuardrailFailures, 1)
		s.Equal(models.GuardrailABVOutOfTolerance, result.GuardrailFailures[0].Code)
		s.True(result.HasReason(models.ReasonGuardrailFailed))
	})
}

func (s *ServiceSuite) TestMatchProduct_NoCandidates() {
	weak := fixtureEntry()
	weak.Family.Producer = "Château Margaux"
	weak.Family.WineName = "Pavillon Rouge"
	weak.Product.Vintage = optional.Of(2001)

	s.Run("empty pre-filter", func() {
		s.expectNoMapping()
		s.catalog.EXPECT().FindByVolumeAndPack(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
		s.expectAudit()

		result, err := s.service.MatchProduct(s.ctx, supplierID, fixtureInput())
		s.Require().NoError(err)

		s.Equal(models.DecisionNoMatch, result.Decision)
		s.Equal(models.StageNone, result.Stage)
		s.Equal([]models.Reason{models.ReasonNoCandidates}, result.Reasons)
	})

	s.Run("every candidate under the floor", func() {
		s.expectNoMapping()
		s.catalog.EXPECT().FindByVolumeAndPack(gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]catalog.CatalogEntry{weak}, nil)
		s.expectAudit()

		result, err := s.service.MatchProduct(s.ctx, supplierID, fixtureInput())
		s.Require().NoError(err)

		s.Equal(models.DecisionNoMatch, result.Decision)
		s.True(result.HasReason(models.ReasonNoCandidates))
		s.Empty(result.Candidates)
	})
}

func (s *ServiceSuite) TestMatchProduct_AuditFailureDoesNotFailMatch() {
	s.mappings.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(uuid.New(), nil)
	s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	result, err := s.service.MatchProduct(s.ctx, supplierID, fixtureInput())

	s.Require().NoError(err)
	s.Equal(models.DecisionAutoMatch, result.Decision)
}

func (s *ServiceSuite) TestMatchBatch() {
	s.Run("failures are isolated and duplicates rejected", func() {
		good := fixtureInput()
		good.SKU = "A"
		dup := good
		invalid := fixtureInput()
		invalid.SKU = "B"
		invalid.PackType = "pallet"
		broken := fixtureInput()
		broken.SKU = "C"

		productID := uuid.New()
		s.mappings.EXPECT().Get(gomock.Any(), supplierID, "A").Return(productID, nil)
		s.mappings.EXPECT().Get(gomock.Any(), supplierID, "C").Return(uuid.Nil, sentinel.ErrUnavailable)

		batchID := uuid.New()
		s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.DecisionEvent) error {
			s.Equal(batchID.String(), e.BatchID)
			return nil
		})

		ctx := requestcontext.WithBatchID(s.ctx, batchID)
		out := s.service.MatchBatch(ctx, supplierID, []models.SupplierProductInput{good, invalid, dup, broken})

		s.Require().Len(out.Results, 1)
		s.Equal(productID, out.Results["A"].ProductID)
		s.ErrorIs(out.Failures["A"], models.ErrDuplicateSKU)
		s.ErrorIs(out.Failures["B"], models.ErrInvalidInput)
		s.ErrorIs(out.Failures["C"], sentinel.ErrUnavailable)
		s.Equal(3.0, testutil.ToFloat64(s.metrics.BatchFailures))
	})

	s.Run("cancelled context schedules nothing", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()

		a, b := fixtureInput(), fixtureInput()
		a.SKU, b.SKU = "A", "B"
		out := s.service.MatchBatch(ctx, supplierID, []models.SupplierProductInput{a, b})

		s.Empty(out.Results)
		s.ErrorIs(out.Failures["A"], context.Canceled)
		s.ErrorIs(out.Failures["B"], context.Canceled)
	})

	s.Run("one decision time for the whole batch", func() {
		a, b := fixtureInput(), fixtureInput()
		a.SKU, b.SKU = "A", "B"
		s.mappings.EXPECT().Get(gomock.Any(), supplierID, gomock.Any()).Return(uuid.New(), nil).Times(2)
		s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).Times(2)

		out := s.service.MatchBatch(context.Background(), supplierID, []models.SupplierProductInput{a, b})

		s.Require().Len(out.Results, 2)
		s.Equal(out.Results["A"].DecidedAt, out.Results["B"].DecidedAt)
	})

	s.Run("items in flight never exceed the concurrency limit", func() {
		const limit = 2
		cfg := DefaultConfig()
		cfg.BatchConcurrency = limit
		svc, err := New(s.mappings, s.catalog, s.verifier,
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			WithConfig(cfg),
		)
		s.Require().NoError(err)

		var (
			mu             sync.Mutex
			inFlight, peak int
		)
		s.mappings.EXPECT().Get(gomock.Any(), supplierID, gomock.Any()).
			DoAndReturn(func(context.Context, string, string) (uuid.UUID, error) {
				mu.Lock()
				inFlight++
				peak = max(peak, inFlight)
				mu.Unlock()

				time.Sleep(20 * time.Millisecond)

				mu.Lock()
				inFlight--
				mu.Unlock()
				return uuid.New(), nil
			}).Times(6)

		inputs := make([]models.SupplierProductInput, 6)
		for i := range inputs {
			inputs[i] = fixtureInput()
			inputs[i].SKU = fmt.Sprintf("SKU-%d", i)
		}
		out := svc.MatchBatch(s.ctx, supplierID, inputs)

		s.Len(out.Results, len(inputs))
		s.Empty(out.Failures)
		s.LessOrEqual(peak, limit)
		s.Greater(peak, 1, "items run concurrently")
	})
}
