package ports

import (
	"context"

	"winefeed/internal/verification/models"
)

// CacheStore persists verification outcomes keyed by 14-digit GTIN.
//
// Get returns sentinel.ErrNotFound on a miss. Expired records are still returned:
// whether an expired record may be served stale is the service's decision.
// Upsert replaces any existing record for the GTIN in a single write.
// IncrementHitCount is best-effort bookkeeping and may be a no-op for a missing GTIN.
type CacheStore interface {
	Get(ctx context.Context, gtin string) (*models.CacheRecord, error)
	Upsert(ctx context.Context, record models.CacheRecord) error
	IncrementHitCount(ctx context.Context, gtin string) error
}
