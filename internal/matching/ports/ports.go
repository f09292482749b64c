// Package ports defines the interfaces the matching engine depends on.
// Implementations live in internal/catalog (stores) and in ../adapters
// (verification).
package ports

import (
	"context"
	"errors"

	"github.com/google/uuid"

	catalog "winefeed/internal/catalog/models"
	"winefeed/pkg/platform/audit"
)

// ErrVerificationUnavailable is returned by a VerificationPort when the registry
// could not be consulted (open circuit, exhausted quota, registry failure) and no
// cached answer exists. The engine treats it as "no barcode evidence".
var ErrVerificationUnavailable = errors.New("gtin verification unavailable")

// MappingStore looks up SKUs a supplier has already had mapped to a product.
type MappingStore interface {
	// Get returns sentinel.ErrNotFound when the SKU has no mapping.
	Get(ctx context.Context, supplierID, sku string) (uuid.UUID, error)
}

// CatalogStore is the read side of the canonical catalog.
type CatalogStore interface {
	// FindByGTIN returns sentinel.ErrNotFound when no product carries the GTIN.
	FindByGTIN(ctx context.Context, gtin string) (*catalog.CatalogEntry, error)
	FindByVolumeAndPack(ctx context.Context, volumeML int, pack catalog.PackType) ([]catalog.CatalogEntry, error)
}

// VerificationOutcome is the engine's view of a verified barcode. GTIN is the
// normalised 14-digit form used for catalog lookups.
type VerificationOutcome struct {
	GTIN     string
	Verified bool
}

// VerificationPort authenticates a raw barcode from a supplier feed.
type VerificationPort interface {
	Verify(ctx context.Context, rawGTIN string) (*VerificationOutcome, error)
}

// AuditPublisher receives one event per match decision.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.DecisionEvent) error
}
