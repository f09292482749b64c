package verification

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"winefeed/internal/verification/models"
)

// VerifyBatch verifies raw barcodes in chunks of ChunkSize, each chunk running
// concurrently, with a pause of ChunkDelay between chunks. Every input gets an
// entry holding either its result or its error; inputs that normalise to the same
// GTIN share one verification. Cancelling ctx fails the unprocessed inputs with
// ctx.Err().
func (s *Service) VerifyBatch(ctx context.Context, gtins []string, opts ...VerifyOption) map[string]models.BatchItem {
	out := make(map[string]models.BatchItem, len(gtins))
	normalized := make(map[string]GTIN, len(gtins))

	var unique []GTIN
	seen := make(map[GTIN]struct{}, len(gtins))
	for _, raw := range gtins {
		if _, done := out[raw]; done {
			continue
		}
		if _, done := normalized[raw]; done {
			continue
		}
		g, err := Normalize(raw)
		if err != nil {
			out[raw] = models.BatchItem{Err: err}
			continue
		}
		normalized[raw] = g
		if _, dup := seen[g]; !dup {
			seen[g] = struct{}{}
			unique = append(unique, g)
		}
	}

	results := s.verifyChunks(ctx, unique, opts)
	for raw, g := range normalized {
		out[raw] = results[g]
	}

	s.logger.DebugContext(ctx, "gtin batch verified",
		"inputs", len(gtins),
		"unique", len(unique),
		"chunk_size", s.config.ChunkSize,
	)
	return out
}

func (s *Service) verifyChunks(ctx context.Context, gtins []GTIN, opts []VerifyOption) map[GTIN]models.BatchItem {
	var mu sync.Mutex
	results := make(map[GTIN]models.BatchItem, len(gtins))
	set := func(g GTIN, item models.BatchItem) {
		mu.Lock()
		results[g] = item
		mu.Unlock()
	}

	size := s.config.ChunkSize
	for start := 0; start < len(gtins); start += size {
		chunk := gtins[start:min(start+size, len(gtins))]

		if start > 0 {
			if err := sleepContext(ctx, s.config.ChunkDelay); err != nil {
				for _, g := range gtins[start:] {
					set(g, models.BatchItem{Err: err})
				}
				break
			}
		}

		var group errgroup.Group
		group.SetLimit(size)
		for _, g := range chunk {
			group.Go(func() error {
				result, err := s.Verify(ctx, g, opts...)
				set(g, models.BatchItem{Result: result, Err: err})
				return nil
			})
		}
		_ = group.Wait()
	}
	return results
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
