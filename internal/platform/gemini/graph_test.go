package gemini

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/careerdock/docflow-api/internal/config"
	"github.com/careerdock/docflow-api/internal/domain"
)

type nopGraphWriter struct{}

func (nopGraphWriter) Put(context.Context, string, []byte, string) error { return nil }

func TestNewGraphExtractor_Validation(t *testing.T) {
	t.Parallel()

	cfg := config.LLMConfig{ModelName: "gemini-2.0-flash"}

	t.Run("rejects nil client", func(t *testing.T) {
		t.Parallel()

		g, err := NewGraphExtractor(nil, cfg, nopGraphWriter{}, slog.Default())
		assert.Nil(t, g)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestGraphExtractor_Convert_EmptyInput(t *testing.T) {
	t.Parallel()

	g := &GraphExtractor{model: "gemini-2.0-flash", writer: nopGraphWriter{}, logger: slog.Default()}
	ref, err := g.Convert(context.Background(), uuid.New(), "", domain.DocumentTypeResume, "user-1")
	assert.Nil(t, ref)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestGraphKey(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("0b9fba9a-64ba-4dd4-a6aa-12f59ced2f3f")
	assert.Equal(t, "graphs/user-1/0b9fba9a-64ba-4dd4-a6aa-12f59ced2f3f.json", GraphKey("user-1", id))
}
