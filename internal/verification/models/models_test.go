package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheRecord_IsExpired(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	r := CacheRecord{ExpiresAt: now}

	assert.False(t, r.IsExpired(now.Add(-time.Second)))
	assert.True(t, r.IsExpired(now), "expiry instant is already expired")
	assert.True(t, r.IsExpired(now.Add(time.Second)))
}

func TestCacheRecord_Result(t *testing.T) {
	cachedAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	r := CacheRecord{
		GTIN:      "00036000291452",
		Verified:  true,
		Payload:   []byte(`{"brand":"x"}`),
		CachedAt:  cachedAt,
		ExpiresAt: cachedAt.Add(time.Hour),
		HitCount:  4,
	}

	res := r.Result(SourceCacheStale)
	assert.Equal(t, "00036000291452", res.GTIN)
	assert.True(t, res.Verified)
	assert.Equal(t, SourceCacheStale, res.Source)
	assert.Equal(t, cachedAt, res.CheckedAt)
	assert.JSONEq(t, `{"brand":"x"}`, string(res.Payload))
}
