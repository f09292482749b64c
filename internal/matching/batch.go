package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"winefeed/internal/matching/models"
	"winefeed/pkg/requestcontext"
)

// MatchBatch matches a supplier feed with at most BatchConcurrency items in flight.
// A failing item never affects the others. Once ctx is done no further items are
// started and each unstarted SKU is recorded as failed with the context error.
// Repeated SKUs are matched once; later occurrences fail with ErrDuplicateSKU.
//
// Every item of the batch shares one batch id and one decision time.
func (s *Service) MatchBatch(ctx context.Context, supplierID string, inputs []models.SupplierProductInput) *models.BatchResult {
	batchID := requestcontext.BatchID(ctx)
	if batchID == uuid.Nil {
		batchID = uuid.New()
		ctx = requestcontext.WithBatchID(ctx, batchID)
	}
	ctx = requestcontext.WithTime(ctx, requestcontext.Now(ctx))

	out := &models.BatchResult{
		Results:  make(map[string]*models.MatchResult, len(inputs)),
		Failures: make(map[string]error),
	}

	var mu sync.Mutex
	fail := func(sku string, err error) {
		mu.Lock()
		defer mu.Unlock()
		s.metrics.IncrementBatchFailure()
		if prev, ok := out.Failures[sku]; ok {
			err = errors.Join(prev, err)
		}
		out.Failures[sku] = err
	}

	var g errgroup.Group
	g.SetLimit(s.config.BatchConcurrency)

	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		if _, dup := seen[in.SKU]; dup {
			fail(in.SKU, fmt.Errorf("%w: %q", models.ErrDuplicateSKU, in.SKU))
			continue
		}
		seen[in.SKU] = struct{}{}

		if err := ctx.Err(); err != nil {
			fail(in.SKU, fmt.Errorf("batch cancelled before item started: %w", err))
			continue
		}

		g.Go(func() error {
			result, err := s.MatchProduct(ctx, supplierID, in)
			if err != nil {
				fail(in.SKU, err)
				return nil
			}
			mu.Lock()
			out.Results[in.SKU] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.logger.InfoContext(ctx, "supplier batch matched",
		"supplier_id", supplierID,
		"batch_id", batchID,
		"request_id", requestcontext.RequestID(ctx),
		"items", len(inputs),
		"matched", len(out.Results),
		"failed", len(out.Failures),
	)
	return out
}
