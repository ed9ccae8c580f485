package idempotency

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/careerdock/docflow-api/internal/api/shared"
)

// Response header names exposed by the coordinator.
const (
	KeyHeader    = "X-Idempotency-Key"
	StatusHeader = "X-Idempotency-Status"
)

// Header values for StatusHeader.
const (
	statusHit  = "hit"
	statusMiss = "miss"
)

// cachedHeaders is the subset of response headers preserved for replay.
var cachedHeaders = []string{"Content-Type", "Location"}

// maxBodyBytes caps how much of a request body is buffered for
// fingerprinting: the largest accepted upload plus multipart framing.
// Anything bigger is rejected here, before the handler runs, so an
// oversized request is never held in memory in full.
const maxBodyBytes = 10<<20 + 1024

// conflictResponse is the 409 body returned for concurrent duplicates.
type conflictResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// Coordinator wraps mutating endpoints with fingerprint-based
// deduplication. It runs synchronously inside the request cycle; lock
// acquisition is fail-fast and never waits.
type Coordinator struct {
	store    Store
	lockTTL  time.Duration
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewCoordinator creates a Coordinator backed by the given store.
// If logger is nil, a default logger is used.
func NewCoordinator(store Store, lockTTL, cacheTTL time.Duration, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		store:    store,
		lockTTL:  lockTTL,
		cacheTTL: cacheTTL,
		logger:   logger.With("component", "idempotency_coordinator"),
	}
}

// Middleware applies deduplication to POST, PUT and PATCH requests.
// Other methods, and requests without an authenticated user, pass through
// untouched. Every store failure degrades to pass-through with a warning:
// availability is prioritized over strict dedup.
func (c *Coordinator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			next.ServeHTTP(w, r)
			return
		}

		userID := shared.GetUserID(r.Context())
		if userID == "" {
			c.logger.Warn("no authenticated user in context, skipping idempotency",
				"path", r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				shared.RespondWithError(w, r, http.StatusRequestEntityTooLarge,
					"Request body exceeds the maximum allowed size")
				return
			}
			shared.RespondWithError(w, r, http.StatusBadRequest, "Failed to read request body")
			return
		}
		// The inner handler needs to read the body again.
		r.Body = io.NopCloser(bytes.NewReader(body))

		fingerprint := Fingerprint(userID, r.Method, r.URL.Path, body)
		log := c.logger.With("fingerprint", fingerprint[:8], "path", r.URL.Path)

		cached, err := c.store.GetResponse(r.Context(), userID, fingerprint)
		if err == nil {
			log.Info("idempotency cache hit, replaying response")
			c.replay(w, cached, fingerprint)
			return
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.Warn("idempotency lookup failed, continuing without dedup", "error", err)
		}

		acquired, err := c.store.AcquireLock(r.Context(), userID, fingerprint, c.lockTTL)
		if err != nil {
			// Store unreachable: let the request through rather than fail it.
			log.Warn("lock acquisition failed, continuing without dedup", "error", err)
			acquired = true
		} else if !acquired {
			log.Warn("concurrent duplicate request rejected")
			c.conflict(w, r, fingerprint)
			return
		}

		// Release runs last among the deferred cleanups, after any purge,
		// so no fault path can leave the fingerprint wedged. The lock TTL
		// remains the safety net if the process dies outright.
		defer func() {
			if err := c.store.ReleaseLock(r.Context(), userID, fingerprint); err != nil {
				log.Warn("failed to release idempotency lock", "error", err)
			}
		}()
		defer func() {
			if p := recover(); p != nil {
				// A fault mid-flight may have left a partial cached
				// response behind; purge it so a retried duplicate
				// re-executes cleanly instead of replaying garbage.
				if err := c.store.DeleteResponse(r.Context(), userID, fingerprint); err != nil {
					log.Warn("failed to purge cached response after fault", "error", err)
				}
				panic(p)
			}
		}()

		w.Header().Set(KeyHeader, fingerprint)
		w.Header().Set(StatusHeader, statusMiss)

		capture := newResponseCapture(w)
		next.ServeHTTP(capture, r)

		if capture.status >= 200 && capture.status < 300 {
			resp := &CachedResponse{
				StatusCode: capture.status,
				Headers:    captureHeaders(capture.Header()),
				Body:       capture.body.Bytes(),
			}
			if err := c.store.SetResponse(r.Context(), userID, fingerprint, resp, c.cacheTTL); err != nil {
				log.Warn("failed to cache response", "error", err)
			}
		}
	})
}

// replay writes a cached response verbatim, marked as a hit.
func (c *Coordinator) replay(w http.ResponseWriter, cached *CachedResponse, fingerprint string) {
	for name, value := range cached.Headers {
		w.Header().Set(name, value)
	}
	w.Header().Set(KeyHeader, fingerprint)
	w.Header().Set(StatusHeader, statusHit)
	w.WriteHeader(cached.StatusCode)

	if _, err := w.Write(cached.Body); err != nil {
		c.logger.Error("failed to write replayed response", "error", err)
	}
}

// conflict rejects a concurrent duplicate with 409 and a retry hint equal
// to the lock TTL.
func (c *Coordinator) conflict(w http.ResponseWriter, r *http.Request, fingerprint string) {
	retryAfter := int(c.lockTTL.Seconds())
	w.Header().Set(KeyHeader, fingerprint)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	shared.RespondWithJSON(w, r, http.StatusConflict, conflictResponse{
		Error:      "duplicate_request_in_progress",
		Message:    "A request with the same payload is currently being processed. Please retry after a short delay.",
		RetryAfter: retryAfter,
	})
}

// captureHeaders extracts the replay-relevant header subset.
func captureHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(cachedHeaders))
	for _, name := range cachedHeaders {
		if v := h.Get(name); v != "" {
			out[name] = v
		}
	}
	return out
}

// responseCapture tees the handler's response to the client while keeping
// a copy of the status and body for caching.
type responseCapture struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func newResponseCapture(w http.ResponseWriter) *responseCapture {
	return &responseCapture{ResponseWriter: w, status: http.StatusOK}
}

func (rc *responseCapture) WriteHeader(status int) {
	if !rc.wroteHeader {
		rc.status = status
		rc.wroteHeader = true
	}
	rc.ResponseWriter.WriteHeader(status)
}

func (rc *responseCapture) Write(p []byte) (int, error) {
	rc.wroteHeader = true
	rc.body.Write(p)
	return rc.ResponseWriter.Write(p)
}
