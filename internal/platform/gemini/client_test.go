package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careerdock/docflow-api/internal/config"
)

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()

	t.Run("rejects empty API key", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(context.Background(), config.LLMConfig{ModelName: "gemini-2.0-flash"})
		assert.Nil(t, client)
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.Contains(t, err.Error(), "API key")
	})

	t.Run("rejects empty model name", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(context.Background(), config.LLMConfig{GeminiAPIKey: "test-key"})
		assert.Nil(t, client)
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.Contains(t, err.Error(), "model name")
	})
}

func TestDecodeJSONResponse(t *testing.T) {
	t.Parallel()

	type verdict struct {
		DocumentType string  `json:"document_type"`
		Confidence   float64 `json:"confidence"`
	}

	tests := []struct {
		name    string
		input   string
		wantErr bool
		want    verdict
	}{
		{
			name:  "plain JSON",
			input: `{"document_type":"resume","confidence":0.9}`,
			want:  verdict{DocumentType: "resume", Confidence: 0.9},
		},
		{
			name:  "json markdown fence",
			input: "```json\n{\"document_type\":\"resume\",\"confidence\":0.9}\n```",
			want:  verdict{DocumentType: "resume", Confidence: 0.9},
		},
		{
			name:  "bare markdown fence",
			input: "```\n{\"document_type\":\"cover_letter\",\"confidence\":0.7}\n```",
			want:  verdict{DocumentType: "cover_letter", Confidence: 0.7},
		},
		{
			name:  "surrounding whitespace",
			input: "  \n{\"document_type\":\"other\",\"confidence\":0.1}\n  ",
			want:  verdict{DocumentType: "other", Confidence: 0.1},
		},
		{
			name:    "prose instead of JSON",
			input:   "This document appears to be a resume.",
			wantErr: true,
		},
		{
			name:    "empty response",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got verdict
			err := decodeJSONResponse(tt.input, &got)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
