package adapters

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"winefeed/internal/matching/ports"
	"winefeed/internal/verification"
	"winefeed/internal/verification/registry/registrytest"
	"winefeed/internal/verification/store/memory"
)

func newAdapter(t *testing.T, stub *registrytest.Stub, cfg verification.Config) ports.VerificationPort {
	t.Helper()
	store, err := memory.New(100)
	require.NoError(t, err)
	svc, err := verification.New(store, stub,
		verification.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		verification.WithConfig(cfg),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return NewVerificationAdapter(svc)
}

func TestVerificationAdapter(t *testing.T) {
	ctx := context.Background()

	t.Run("verified barcode is normalised to 14 digits", func(t *testing.T) {
		stub := registrytest.NewStub("07312040017355")
		adapter := newAdapter(t, stub, verification.Config{})

		outcome, err := adapter.Verify(ctx, "7312040017355")
		require.NoError(t, err)
		assert.Equal(t, "07312040017355", outcome.GTIN)
		assert.True(t, outcome.Verified)
	})

	t.Run("unregistered barcode is not verified", func(t *testing.T) {
		adapter := newAdapter(t, registrytest.NewStub(), verification.Config{})

		outcome, err := adapter.Verify(ctx, "12345670")
		require.NoError(t, err)
		assert.False(t, outcome.Verified)
	})

	t.Run("malformed barcode passes through as InvalidGTINError", func(t *testing.T) {
		stub := registrytest.NewStub()
		adapter := newAdapter(t, stub, verification.Config{})

		_, err := adapter.Verify(ctx, "12345")
		var invalid *verification.InvalidGTINError
		require.ErrorAs(t, err, &invalid)
		assert.NotErrorIs(t, err, ports.ErrVerificationUnavailable)
		assert.Zero(t, stub.Calls())
	})

	t.Run("registry outage is reported as unavailable", func(t *testing.T) {
		stub := registrytest.NewStub()
		stub.SetFailing(true)
		adapter := newAdapter(t, stub, verification.Config{})

		_, err := adapter.Verify(ctx, "7312040017355")
		require.ErrorIs(t, err, ports.ErrVerificationUnavailable)
		var external *verification.ExternalServiceError
		assert.ErrorAs(t, err, &external)
	})

	t.Run("exhausted quota is reported as unavailable", func(t *testing.T) {
		stub := registrytest.NewStub()
		adapter := newAdapter(t, stub, verification.Config{RateLimit: 1, RateWindow: time.Hour})

		_, err := adapter.Verify(ctx, "12345670")
		require.NoError(t, err)
		_, err = adapter.Verify(ctx, "7312040017355")
		require.ErrorIs(t, err, ports.ErrVerificationUnavailable)
		var rate *verification.RateLimitExceededError
		assert.ErrorAs(t, err, &rate)
	})
}
