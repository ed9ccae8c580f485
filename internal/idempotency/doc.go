// Package idempotency implements payload-based request deduplication for
// mutating endpoints. No client-supplied idempotency key is required: a
// fingerprint is computed server-side from the authenticated user, the
// method and path, and the request body. Completed 2xx responses are cached
// and replayed to duplicates; concurrent duplicates are rejected with 409
// while a short-TTL lock is held by the in-flight request.
//
// The backing store is treated as an availability-first dependency: if it
// is unreachable, requests pass through without deduplication rather than
// being rejected.
package idempotency
