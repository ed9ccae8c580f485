package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	t.Parallel()

	t.Run("returns the stored logger", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		stored := slog.New(slog.NewJSONHandler(&buf, nil))
		ctx := WithLogger(context.Background(), stored)

		assert.Same(t, stored, FromContext(ctx))
	})

	t.Run("falls back to the default logger", func(t *testing.T) {
		t.Parallel()

		assert.Same(t, slog.Default(), FromContext(context.Background()))
	})
}

func TestFromContextOrDefault(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	componentLogger := slog.New(slog.NewJSONHandler(&buf, nil))

	t.Run("context logger wins", func(t *testing.T) {
		t.Parallel()

		requestLogger := slog.New(slog.NewJSONHandler(&buf, nil))
		ctx := WithLogger(context.Background(), requestLogger)

		assert.Same(t, requestLogger, FromContextOrDefault(ctx, componentLogger))
	})

	t.Run("falls back to the component logger", func(t *testing.T) {
		t.Parallel()

		assert.Same(t, componentLogger, FromContextOrDefault(context.Background(), componentLogger))
	})

	t.Run("falls back to the global default when both are missing", func(t *testing.T) {
		t.Parallel()

		assert.Same(t, slog.Default(), FromContextOrDefault(context.Background(), nil))
	})
}
