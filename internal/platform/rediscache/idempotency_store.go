// Package rediscache provides the Redis-backed implementation of the
// idempotency lock and response cache.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/careerdock/docflow-api/internal/config"
	"github.com/careerdock/docflow-api/internal/idempotency"
)

const keyPrefix = "idempotency"

// IdempotencyStore implements idempotency.Store on top of a Redis client.
// Locks use SET NX with expiry, which gives the atomic
// set-if-absent-with-expiry the coordinator requires.
type IdempotencyStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewClient creates a Redis client from configuration and verifies
// connectivity with a ping.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return client, nil
}

// NewIdempotencyStore creates a Redis-backed idempotency store.
// If logger is nil, a default logger is used.
func NewIdempotencyStore(client *redis.Client, logger *slog.Logger) *IdempotencyStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &IdempotencyStore{
		client: client,
		logger: logger.With(slog.String("component", "idempotency_store")),
	}
}

// Ensure IdempotencyStore implements idempotency.Store
var _ idempotency.Store = (*IdempotencyStore)(nil)

func cacheKey(userID, fingerprint string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, userID, fingerprint)
}

func lockKey(userID, fingerprint string) string {
	return fmt.Sprintf("%s:lock:%s:%s", keyPrefix, userID, fingerprint)
}

// AcquireLock implements idempotency.Store.AcquireLock using SET NX.
func (s *IdempotencyStore) AcquireLock(
	ctx context.Context,
	userID, fingerprint string,
	ttl time.Duration,
) (bool, error) {
	acquired, err := s.client.SetNX(ctx, lockKey(userID, fingerprint), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire idempotency lock: %w", err)
	}

	s.logger.Debug("lock acquisition attempted",
		slog.String("fingerprint", fingerprint[:8]),
		slog.Bool("acquired", acquired))
	return acquired, nil
}

// ReleaseLock implements idempotency.Store.ReleaseLock.
// Deleting a missing key is not an error.
func (s *IdempotencyStore) ReleaseLock(ctx context.Context, userID, fingerprint string) error {
	if err := s.client.Del(ctx, lockKey(userID, fingerprint)).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency lock: %w", err)
	}
	return nil
}

// GetResponse implements idempotency.Store.GetResponse.
func (s *IdempotencyStore) GetResponse(
	ctx context.Context,
	userID, fingerprint string,
) (*idempotency.CachedResponse, error) {
	data, err := s.client.Get(ctx, cacheKey(userID, fingerprint)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, idempotency.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to look up cached response: %w", err)
	}

	var envelope idempotency.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		// A corrupt entry is unusable; treat it as a miss so the request
		// executes normally and overwrites it.
		s.logger.Warn("discarding corrupt cached response",
			slog.String("fingerprint", fingerprint[:8]),
			slog.String("error", err.Error()))
		return nil, idempotency.ErrCacheMiss
	}

	return &envelope.Response, nil
}

// SetResponse implements idempotency.Store.SetResponse.
func (s *IdempotencyStore) SetResponse(
	ctx context.Context,
	userID, fingerprint string,
	resp *idempotency.CachedResponse,
	ttl time.Duration,
) error {
	envelope := idempotency.Envelope{
		CachedAt: time.Now().UTC(),
		Response: *resp,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal cached response: %w", err)
	}

	if err := s.client.Set(ctx, cacheKey(userID, fingerprint), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache response: %w", err)
	}

	s.logger.Debug("cached response",
		slog.String("fingerprint", fingerprint[:8]),
		slog.Duration("ttl", ttl))
	return nil
}

// DeleteResponse implements idempotency.Store.DeleteResponse.
func (s *IdempotencyStore) DeleteResponse(ctx context.Context, userID, fingerprint string) error {
	if err := s.client.Del(ctx, cacheKey(userID, fingerprint)).Err(); err != nil {
		return fmt.Errorf("failed to delete cached response: %w", err)
	}
	return nil
}
