package verification

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"winefeed/internal/verification/models"
	"winefeed/internal/verification/registry"
)

func (s *ServiceSuite) TestVerifyBatch() {
	s.seed("00000000000017", true, s.clock.Now().Add(time.Hour))

	inputs := []string{
		"4006381333931",    // registered, 13 digits
		"04006381333931",   // same GTIN, already padded
		"036000291452",     // unknown
		"96385074",         // unknown, 8 digits
		"not-a-barcode",    // invalid
		"00000000000017",   // cached
		"4006-3813-3393-1", // same GTIN again, formatted
		"123",              // invalid
		"00000000000024",   // unknown
		"00000000000031",   // unknown
		"00000000000048",   // unknown
		"00000000000055",   // unknown, forces a second chunk
	}

	svc := s.newService(Config{ChunkSize: 4, ChunkDelay: time.Millisecond})
	defer svc.Close()

	results := svc.VerifyBatch(s.ctx, inputs)
	s.Len(results, len(inputs))

	s.Run("duplicates are verified once", func() {
		s.Equal(1, s.registry.callCount("04006381333931"))
		for _, raw := range []string{"4006381333931", "04006381333931", "4006-3813-3393-1"} {
			item := results[raw]
			s.Require().NoError(item.Err, raw)
			s.True(item.Result.Verified, raw)
		}
	})

	s.Run("invalid inputs carry their own error", func() {
		for _, raw := range []string{"not-a-barcode", "123"} {
			var invalid *InvalidGTINError
			s.ErrorAs(results[raw].Err, &invalid, raw)
			s.Nil(results[raw].Result)
		}
	})

	s.Run("cached inputs skip the registry", func() {
		s.Equal(models.SourceCache, results["00000000000017"].Result.Source)
		s.Zero(s.registry.callCount("00000000000017"))
	})

	s.Run("unknown gtins are negative, not errors", func() {
		item := results["036000291452"]
		s.Require().NoError(item.Err)
		s.False(item.Result.Verified)
	})
}

func (s *ServiceSuite) TestVerifyBatch_PerItemFailuresAreIsolated() {
	svc := s.newService(Config{ChunkSize: 10, RateLimit: 2, ChunkDelay: time.Millisecond})
	defer svc.Close()

	results := svc.VerifyBatch(s.ctx, []string{"00000000000017", "00000000000024", "00000000000031"})

	var succeeded, limited int
	for _, item := range results {
		switch {
		case item.Err == nil:
			succeeded++
		case IsUnavailable(item.Err):
			limited++
		}
	}
	s.Equal(2, succeeded)
	s.Equal(1, limited)
}

func (s *ServiceSuite) TestVerifyBatch_CancelledBetweenChunks() {
	svc := s.newService(Config{ChunkSize: 1, ChunkDelay: time.Hour})
	defer svc.Close()

	ctx, cancel := context.WithCancel(s.ctx)
	go func() {
		for s.registry.totalCalls() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	results := svc.VerifyBatch(ctx, []string{"00000000000017", "00000000000024", "00000000000031"})

	s.NoError(results["00000000000017"].Err)
	s.ErrorIs(results["00000000000024"].Err, context.Canceled)
	s.ErrorIs(results["00000000000031"].Err, context.Canceled)
	s.Equal(1, s.registry.totalCalls())
}

func (s *ServiceSuite) TestVerifyBatch_Empty() {
	s.Empty(s.service.VerifyBatch(s.ctx, nil))
}

// slowRegistry holds every lookup for a fixed time and records the highest
// number of lookups in flight at once.
type slowRegistry struct {
	delay time.Duration

	mu       sync.Mutex
	inFlight int
	peak     int
}

func (r *slowRegistry) Lookup(ctx context.Context, gtin string) (*registry.LookupResult, error) {
	r.mu.Lock()
	r.inFlight++
	r.peak = max(r.peak, r.inFlight)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inFlight--
		r.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(r.delay):
	}
	return &registry.LookupResult{GTIN: gtin, Found: false, StatusCode: 404}, nil
}

func (r *slowRegistry) peakInFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peak
}

func (s *ServiceSuite) TestVerifyBatch_ChunksAreBoundedAndPaced() {
	const (
		chunkSize  = 3
		chunkDelay = 50 * time.Millisecond
	)
	slow := &slowRegistry{delay: 20 * time.Millisecond}
	svc, err := New(s.store, slow,
		WithConfig(Config{ChunkSize: chunkSize, ChunkDelay: chunkDelay}),
		WithClock(s.clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	defer svc.Close()

	inputs := []string{
		"00000000000017", "00000000000024", "00000000000031", "00000000000048",
		"00000000000055", "00000000000062", "00000000000079",
	}
	chunks := (len(inputs) + chunkSize - 1) / chunkSize

	started := time.Now()
	results := svc.VerifyBatch(s.ctx, inputs)
	elapsed := time.Since(started)

	s.Len(results, len(inputs))
	for raw, item := range results {
		s.NoError(item.Err, raw)
	}
	s.LessOrEqual(slow.peakInFlight(), chunkSize, "lookups in flight must not exceed the chunk size")
	s.Greater(slow.peakInFlight(), 1, "lookups within a chunk run concurrently")
	s.GreaterOrEqual(elapsed, time.Duration(chunks-1)*chunkDelay, "every chunk after the first waits for the delay")
}
