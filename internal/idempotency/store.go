package idempotency

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by GetResponse when no cached response exists
// for the fingerprint.
var ErrCacheMiss = errors.New("idempotency cache miss")

// CachedResponse is the opaque replay payload of a completed request:
// status code, a small header subset, and the exact body bytes. A replayed
// response is byte-identical in status and body to the original.
type CachedResponse struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       []byte            `json:"body"`
}

// Envelope wraps a cached response with its cache metadata. Keeping the
// metadata out of the payload means replay never has to re-parse or strip
// bookkeeping fields from the body.
type Envelope struct {
	CachedAt time.Time      `json:"cached_at"`
	Response CachedResponse `json:"response"`
}

// Store is the cache/lock backend for the coordinator. Implementations
// must provide an atomic set-if-absent-with-expiry for AcquireLock; at most
// one caller can hold the lock for a fingerprint at any instant.
type Store interface {
	// AcquireLock attempts to take the in-flight lock for the fingerprint.
	// Returns false without blocking if another execution holds it.
	// The lock expires on its own after ttl as a crash safety net.
	AcquireLock(ctx context.Context, userID, fingerprint string, ttl time.Duration) (bool, error)

	// ReleaseLock releases the in-flight lock. Releasing an expired or
	// missing lock is not an error.
	ReleaseLock(ctx context.Context, userID, fingerprint string) error

	// GetResponse retrieves the cached response for the fingerprint.
	// Returns ErrCacheMiss if none exists.
	GetResponse(ctx context.Context, userID, fingerprint string) (*CachedResponse, error)

	// SetResponse caches a completed response for the fingerprint with the
	// given TTL. A cached response is immutable until its TTL expires.
	SetResponse(
		ctx context.Context,
		userID, fingerprint string,
		resp *CachedResponse,
		ttl time.Duration,
	) error

	// DeleteResponse removes a cached response. Used to purge partial
	// writes during error cleanup; deleting a missing entry is not an error.
	DeleteResponse(ctx context.Context, userID, fingerprint string) error
}
