package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careerdock/docflow-api/internal/api/shared"
)

// fakeStore is an in-memory Store with optional fault injection.
type fakeStore struct {
	mu        sync.Mutex
	locks     map[string]bool
	responses map[string]*CachedResponse

	failGet    error
	failLock   error
	failSet    error
	failDelete error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		locks:     make(map[string]bool),
		responses: make(map[string]*CachedResponse),
	}
}

func (s *fakeStore) key(userID, fingerprint string) string {
	return userID + ":" + fingerprint
}

func (s *fakeStore) AcquireLock(_ context.Context, userID, fingerprint string, _ time.Duration) (bool, error) {
	if s.failLock != nil {
		return false, s.failLock
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.key(userID, fingerprint)
	if s.locks[k] {
		return false, nil
	}
	s.locks[k] = true
	return true, nil
}

func (s *fakeStore) ReleaseLock(_ context.Context, userID, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, s.key(userID, fingerprint))
	return nil
}

func (s *fakeStore) GetResponse(_ context.Context, userID, fingerprint string) (*CachedResponse, error) {
	if s.failGet != nil {
		return nil, s.failGet
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.responses[s.key(userID, fingerprint)]
	if !ok {
		return nil, ErrCacheMiss
	}
	return resp, nil
}

func (s *fakeStore) SetResponse(_ context.Context, userID, fingerprint string, resp *CachedResponse, _ time.Duration) error {
	if s.failSet != nil {
		return s.failSet
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[s.key(userID, fingerprint)] = resp
	return nil
}

func (s *fakeStore) DeleteResponse(_ context.Context, userID, fingerprint string) error {
	if s.failDelete != nil {
		return s.failDelete
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.responses, s.key(userID, fingerprint))
	return nil
}

func (s *fakeStore) cachedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}

func (s *fakeStore) lockedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

// Ensure fakeStore implements Store
var _ Store = (*fakeStore)(nil)

func newTestRequest(method, body, userID string) *http.Request {
	req := httptest.NewRequest(method, "/api/v1/documents/upload", strings.NewReader(body))
	if userID != "" {
		req = req.WithContext(shared.SetUserID(req.Context(), userID))
	}
	return req
}

func TestCoordinatorMiddleware_FirstRequestExecutesAndCaches(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	coord := NewCoordinator(store, 10*time.Second, 300*time.Second, nil)

	var calls atomic.Int32
	handler := coord.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(body), "inner handler must see the original body")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newTestRequest(http.MethodPost, "payload", "user-1"))

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "miss", rec.Header().Get(StatusHeader))
	assert.Len(t, rec.Header().Get(KeyHeader), FingerprintLength)
	assert.Equal(t, 1, store.cachedCount())
	assert.Equal(t, 0, store.lockedCount(), "lock must be released after completion")
}

func TestCoordinatorMiddleware_DuplicateReplaysCachedResponse(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	coord := NewCoordinator(store, 10*time.Second, 300*time.Second, nil)

	var calls atomic.Int32
	handler := coord.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"abc","status":"pending"}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, newTestRequest(http.MethodPost, "payload", "user-1"))

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, newTestRequest(http.MethodPost, "payload", "user-1"))

	assert.Equal(t, int32(1), calls.Load(), "duplicate must not re-execute the handler")
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String(), "replay must be byte-identical")
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, "hit", second.Header().Get(StatusHeader))
	assert.Equal(t, first.Header().Get(KeyHeader), second.Header().Get(KeyHeader))
}

func TestCoordinatorMiddleware_DifferentPayloadsExecuteIndependently(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	coord := NewCoordinator(store, 10*time.Second, 300*time.Second, nil)

	var calls atomic.Int32
	handler := coord.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), newTestRequest(http.MethodPost, "payload-a", "user-1"))
	handler.ServeHTTP(httptest.NewRecorder(), newTestRequest(http.MethodPost, "payload-b", "user-1"))
	handler.ServeHTTP(httptest.NewRecorder(), newTestRequest(http.MethodPost, "payload-a", "user-2"))

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, store.cachedCount())
}

func TestCoordinatorMiddleware_ConcurrentDuplicateConflicts(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	coord := NewCoordinator(store, 10*time.Second, 300*time.Second, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32
	handler := coord.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		close(started)
		<-release
		w.WriteHeader(http.StatusCreated)
	}))

	firstDone := make(chan *httptest.ResponseRecorder)
	go func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newTestRequest(http.MethodPost, "payload", "user-1"))
		firstDone <- rec
	}()

	<-started

	// Second identical request while the first is still in flight.
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, newTestRequest(http.MethodPost, "payload", "user-1"))

	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, "10", second.Header().Get("Retry-After"))
	assert.Equal(t, int32(1), calls.Load(), "at most one execution per fingerprint")

	var conflict conflictResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &conflict))
	assert.Equal(t, "duplicate_request_in_progress", conflict.Error)
	assert.Equal(t, 10, conflict.RetryAfter)

	close(release)
	first := <-firstDone
	assert.Equal(t, http.StatusCreated, first.Code)
}

func TestCoordinatorMiddleware_NonMutatingMethodsPassThrough(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	coord := NewCoordinator(store, 10*time.Second, 300*time.Second, nil)

	var calls atomic.Int32
	handler := coord.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))

	for _, method := range []string{http.MethodGet, http.MethodDelete, http.MethodHead} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newTestRequest(method, "", "user-1"))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get(StatusHeader))
	}

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 0, store.cachedCount())
}

func TestCoordinatorMiddleware_NoUserSkipsDedup(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	coord := NewCoordinator(store, 10*time.Second, 300*time.Second, nil)

	var calls atomic.Int32
	handler := coord.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newTestRequest(http.MethodPost, "payload", ""))

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 0, store.cachedCount())
}

func TestCoordinatorMiddleware_ErrorResponsesAreNotCached(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	coord := NewCoordinator(store, 10*time.Second, 300*time.Second, nil)

	var calls atomic.Int32
	handler := coord.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), newTestRequest(http.MethodPost, "payload", "user-1"))
	handler.ServeHTTP(httptest.NewRecorder(), newTestRequest(http.MethodPost, "payload", "user-1"))

	assert.Equal(t, int32(2), calls.Load(), "failed requests must be retryable")
	assert.Equal(t, 0, store.cachedCount())
}

func TestCoordinatorMiddleware_StoreFailuresDegradeToPassThrough(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.failGet = errors.New("redis unreachable")
	store.failLock = errors.New("redis unreachable")
	store.failSet = errors.New("redis unreachable")
	coord := NewCoordinator(store, 10*time.Second, 300*time.Second, nil)

	var calls atomic.Int32
	handler := coord.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newTestRequest(http.MethodPost, "payload", "user-1"))

	assert.Equal(t, int32(1), calls.Load(), "unreachable store must not block requests")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCoordinatorMiddleware_PanicPurgesCacheAndReleasesLock(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	coord := NewCoordinator(store, 10*time.Second, 300*time.Second, nil)

	handler := coord.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("partial"))
		panic("handler blew up")
	}))

	assert.Panics(t, func() {
		handler.ServeHTTP(httptest.NewRecorder(), newTestRequest(http.MethodPost, "payload", "user-1"))
	})

	assert.Equal(t, 0, store.cachedCount(), "partial response must be purged")
	assert.Equal(t, 0, store.lockedCount(), "lock must be released on panic")

	// A retried duplicate executes cleanly instead of replaying garbage.
	var calls atomic.Int32
	retry := coord.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	rec := httptest.NewRecorder()
	retry.ServeHTTP(rec, newTestRequest(http.MethodPost, "payload", "user-1"))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCoordinatorMiddleware_OversizedBodyRejected(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	coord := NewCoordinator(store, 10*time.Second, 300*time.Second, nil)

	var calls atomic.Int32
	handler := coord.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newTestRequest(http.MethodPost, strings.Repeat("a", maxBodyBytes+1), "user-1"))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, int32(0), calls.Load(), "oversized requests must never reach the handler")
	assert.Equal(t, 0, store.lockedCount())
	assert.Equal(t, 0, store.cachedCount())
}
