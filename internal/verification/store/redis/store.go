// Package redis keeps verification outcomes as one hash per GTIN. The key outlives
// the record's expiry by the stale retention period so an expired record can still
// be served when the registry is down.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"winefeed/internal/verification/models"
	"winefeed/pkg/platform/sentinel"
)

const (
	keyPrefix             = "gtin:verification:"
	DefaultStaleRetention = 30 * 24 * time.Hour
)

// incrementIfExists avoids HINCRBY creating a TTL-less key for an evicted GTIN.
var incrementIfExists = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return redis.call("HINCRBY", KEYS[1], "hit_count", 1)
end
return 0
`)

type Store struct {
	client         redis.UniversalClient
	staleRetention time.Duration
	now            func() time.Time
}

type Option func(*Store)

func WithStaleRetention(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.staleRetention = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:         client,
		staleRetention: DefaultStaleRetention,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func key(gtin string) string {
	return keyPrefix + gtin
}

func (s *Store) Get(ctx context.Context, gtin string) (*models.CacheRecord, error) {
	fields, err := s.client.HGetAll(ctx, key(gtin)).Result()
	if err != nil {
		return nil, fmt.Errorf("get verification cache: %w", err)
	}
	if len(fields) == 0 {
		return nil, sentinel.ErrNotFound
	}
	record, err := decode(gtin, fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sentinel.ErrInvalidRecord, err)
	}
	return record, nil
}

func (s *Store) Upsert(ctx context.Context, r models.CacheRecord) error {
	ttl := max(r.ExpiresAt.Sub(s.now())+s.staleRetention, time.Second)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key(r.GTIN),
			"verified", strconv.FormatBool(r.Verified),
			"payload", string(r.Payload),
			"cached_at", r.CachedAt.UTC().Format(time.RFC3339Nano),
			"expires_at", r.ExpiresAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, key(r.GTIN), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert verification cache: %w", err)
	}
	return nil
}

func (s *Store) IncrementHitCount(ctx context.Context, gtin string) error {
	if err := incrementIfExists.Run(ctx, s.client, []string{key(gtin)}).Err(); err != nil {
		return fmt.Errorf("increment verification hit count: %w", err)
	}
	return nil
}

func decode(gtin string, fields map[string]string) (*models.CacheRecord, error) {
	verified, err := strconv.ParseBool(fields["verified"])
	if err != nil {
		return nil, fmt.Errorf("verified: %w", err)
	}
	cachedAt, err := time.Parse(time.RFC3339Nano, fields["cached_at"])
	if err != nil {
		return nil, fmt.Errorf("cached_at: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("expires_at: %w", err)
	}

	r := &models.CacheRecord{
		GTIN:      gtin,
		Verified:  verified,
		CachedAt:  cachedAt,
		ExpiresAt: expiresAt,
	}
	if p := fields["payload"]; p != "" {
		if !json.Valid([]byte(p)) {
			return nil, errors.New("payload is not JSON")
		}
		r.Payload = json.RawMessage(p)
	}
	if hits, ok := fields["hit_count"]; ok {
		if r.HitCount, err = strconv.ParseInt(hits, 10, 64); err != nil {
			return nil, fmt.Errorf("hit_count: %w", err)
		}
	}
	return r, nil
}
