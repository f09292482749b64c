// Package postgres persists verification outcomes in the gtin_verification_cache
// table through database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"winefeed/internal/verification/models"
	"winefeed/pkg/platform/sentinel"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, gtin string) (*models.CacheRecord, error) {
	var (
		r       models.CacheRecord
		payload []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT gtin, verified, payload, cached_at, expires_at, hit_count
		FROM gtin_verification_cache
		WHERE gtin = $1`,
		gtin,
	).Scan(&r.GTIN, &r.Verified, &payload, &r.CachedAt, &r.ExpiresAt, &r.HitCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get verification cache: %w", err)
	}
	if len(payload) > 0 {
		r.Payload = json.RawMessage(payload)
	}
	return &r, nil
}

// Upsert writes the record in one statement; the hit count survives refreshes.
func (s *Store) Upsert(ctx context.Context, r models.CacheRecord) error {
	// lib/pq sends []byte as bytea, which jsonb rejects, so pass text.
	var payload sql.NullString
	if len(r.Payload) > 0 {
		payload = sql.NullString{String: string(r.Payload), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gtin_verification_cache (gtin, verified, payload, cached_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (gtin) DO UPDATE SET
			verified = EXCLUDED.verified,
			payload = EXCLUDED.payload,
			cached_at = EXCLUDED.cached_at,
			expires_at = EXCLUDED.expires_at`,
		r.GTIN, r.Verified, payload, r.CachedAt, r.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert verification cache: %w", err)
	}
	return nil
}

func (s *Store) IncrementHitCount(ctx context.Context, gtin string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE gtin_verification_cache
		SET hit_count = hit_count + 1
		WHERE gtin = $1`,
		gtin,
	)
	if err != nil {
		return fmt.Errorf("increment verification hit count: %w", err)
	}
	return nil
}
