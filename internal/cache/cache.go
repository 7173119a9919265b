package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Entry is a cached payload together with the time it was fetched.
// Freshness is decided by the reader against its own TTL so that an
// expired entry can still be served as a stale fallback.
type Entry struct {
	Value     json.RawMessage `json:"value"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Fresh reports whether the entry is younger than ttl at now
func (e *Entry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}

// Store is a concurrency-safe keyed cache
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
}
