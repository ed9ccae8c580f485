package rediscache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyLayout(t *testing.T) {
	t.Parallel()

	t.Run("cache and lock keys never collide", func(t *testing.T) {
		t.Parallel()

		assert.NotEqual(t,
			cacheKey("user-1", "abc123"),
			lockKey("user-1", "abc123"))
	})

	t.Run("keys are scoped per user", func(t *testing.T) {
		t.Parallel()

		assert.NotEqual(t,
			cacheKey("user-1", "abc123"),
			cacheKey("user-2", "abc123"))
		assert.NotEqual(t,
			lockKey("user-1", "abc123"),
			lockKey("user-2", "abc123"))
	})

	t.Run("keys live under the idempotency prefix", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "idempotency:user-1:abc123", cacheKey("user-1", "abc123"))
		assert.Equal(t, "idempotency:lock:user-1:abc123", lockKey("user-1", "abc123"))
	})
}
