// Package models defines the verification cache record and the result returned to
// callers.
package models

import (
	"encoding/json"
	"time"
)

// Source says where a verification result came from.
type Source string

const (
	SourceCache      Source = "cache"
	SourceCacheStale Source = "cache_stale"
	SourceLive       Source = "live"
)

// CacheRecord is one stored registry outcome. Verified=false records are negative
// results (the registry answered 404) and are cached for a shorter period.
type CacheRecord struct {
	GTIN      string
	Verified  bool
	Payload   json.RawMessage
	CachedAt  time.Time
	ExpiresAt time.Time
	HitCount  int64
}

// IsExpired reports whether the record is past its expiry at now.
func (r CacheRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Result converts the record into a caller-facing result.
func (r CacheRecord) Result(source Source) *Result {
	return &Result{
		GTIN:      r.GTIN,
		Verified:  r.Verified,
		Source:    source,
		Payload:   r.Payload,
		CheckedAt: r.CachedAt,
		ExpiresAt: r.ExpiresAt,
	}
}

// Result is the outcome of verifying one GTIN. CheckedAt is when the registry was
// last consulted for it.
type Result struct {
	GTIN      string
	Verified  bool
	Source    Source
	Payload   json.RawMessage
	CheckedAt time.Time
	ExpiresAt time.Time
}

// BatchItem holds the outcome for one raw input of a batch: a result or an error.
type BatchItem struct {
	Result *Result
	Err    error
}
