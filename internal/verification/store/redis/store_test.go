package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"winefeed/pkg/platform/sentinel"
)

func TestDecode(t *testing.T) {
	fields := map[string]string{
		"verified":   "true",
		"payload":    `{"brand":"x"}`,
		"cached_at":  "2026-05-01T10:00:00Z",
		"expires_at": "2026-05-31T10:00:00Z",
		"hit_count":  "7",
	}

	r, err := decode("04006381333931", fields)
	require.NoError(t, err)
	assert.Equal(t, "04006381333931", r.GTIN)
	assert.True(t, r.Verified)
	assert.EqualValues(t, 7, r.HitCount)
	assert.Equal(t, time.Date(2026, 5, 31, 10, 0, 0, 0, time.UTC), r.ExpiresAt)
	assert.JSONEq(t, `{"brand":"x"}`, string(r.Payload))
}

func TestDecode_MissingHitCountAndPayload(t *testing.T) {
	r, err := decode("g", map[string]string{
		"verified":   "false",
		"payload":    "",
		"cached_at":  "2026-05-01T10:00:00Z",
		"expires_at": "2026-05-08T10:00:00Z",
	})
	require.NoError(t, err)
	assert.False(t, r.Verified)
	assert.Zero(t, r.HitCount)
	assert.Nil(t, r.Payload)
}

func TestDecode_RejectsCorruptFields(t *testing.T) {
	_, err := decode("g", map[string]string{"verified": "maybe"})
	assert.Error(t, err)

	_, err = decode("g", map[string]string{
		"verified":   "true",
		"payload":    "{not json",
		"cached_at":  "2026-05-01T10:00:00Z",
		"expires_at": "2026-05-08T10:00:00Z",
	})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, sentinel.ErrNotFound)
}
