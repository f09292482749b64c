package adapters

import (
	"context"
	"fmt"

	"winefeed/internal/matching/ports"
	"winefeed/internal/verification"
)

// VerificationAdapter is an in-process adapter that implements
// ports.VerificationPort on top of the verification service. Transient registry
// failures are folded into ports.ErrVerificationUnavailable so the engine never
// depends on the verification error taxonomy; malformed barcodes are passed
// through as *verification.InvalidGTINError.
type VerificationAdapter struct {
	service *verification.Service
	opts    []verification.VerifyOption
}

// NewVerificationAdapter creates a new in-process verification adapter. opts are
// applied to every Verify call.
func NewVerificationAdapter(service *verification.Service, opts ...verification.VerifyOption) ports.VerificationPort {
	return &VerificationAdapter{
		service: service,
		opts:    opts,
	}
}

// Verify normalises raw and checks it against the registry through the cache.
func (a *VerificationAdapter) Verify(ctx context.Context, raw string) (*ports.VerificationOutcome, error) {
	gtin, err := verification.Normalize(raw)
	if err != nil {
		return nil, err
	}

	result, err := a.service.Verify(ctx, gtin, a.opts...)
	if err != nil {
		if verification.IsUnavailable(err) {
			return nil, fmt.Errorf("%w: %w", ports.ErrVerificationUnavailable, err)
		}
		return nil, err
	}

	return &ports.VerificationOutcome{
		GTIN:     result.GTIN,
		Verified: result.Verified,
	}, nil
}
