package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/careerdock/docflow-api/internal/config"
	"github.com/careerdock/docflow-api/internal/domain"
	"github.com/careerdock/docflow-api/internal/task"
)

// classificationPrompt asks the model for a strict-JSON verdict on a
// document excerpt. The category list mirrors domain.DocumentType.
const classificationPrompt = `You are a document classifier for a career platform.
Classify the document excerpt below into exactly one category:

- "resume": a CV or resume describing a person's work history and skills
- "job_description": a job posting or vacancy description
- "cover_letter": a letter applying for a specific position
- "other": anything else, or content too ambiguous to classify

When in doubt, prefer "other" with low confidence over guessing.

Respond with JSON only, no prose, in this exact shape:
{"document_type": "<category>", "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}

Filename: %s

Document excerpt:
---
%s
---`

// Classifier determines a document's type from a text excerpt using the
// Gemini API. Ambiguous content yields an "other" classification with low
// confidence rather than an error; errors signal infrastructure failure.
type Classifier struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewClassifier creates a Gemini-backed document classifier.
func NewClassifier(client *genai.Client, cfg config.LLMConfig, logger *slog.Logger) (*Classifier, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: client cannot be nil", ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Classifier{
		client: client,
		model:  cfg.ModelName,
		logger: logger.With(slog.String("component", "classifier")),
	}, nil
}

// Ensure Classifier implements task.Classifier
var _ task.Classifier = (*Classifier)(nil)

// classificationResponse mirrors the JSON shape requested in the prompt.
type classificationResponse struct {
	DocumentType string  `json:"document_type"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
}

// Classify implements task.Classifier.
func (c *Classifier) Classify(
	ctx context.Context,
	text, filename, userID string,
) (*task.Classification, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}

	prompt := fmt.Sprintf(classificationPrompt, filename, text)

	raw, err := generateText(ctx, c.client, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("classification request failed: %w", err)
	}

	var parsed classificationResponse
	if err := decodeJSONResponse(raw, &parsed); err != nil {
		return nil, err
	}

	result := &task.Classification{
		DocumentType: normalizeDocumentType(parsed.DocumentType),
		Confidence:   clampConfidence(parsed.Confidence),
		Reasoning:    parsed.Reasoning,
	}

	c.logger.Debug("document classified",
		slog.String("document_type", string(result.DocumentType)),
		slog.Float64("confidence", result.Confidence),
		slog.String("user_id", userID))

	return result, nil
}

// normalizeDocumentType maps the model's answer onto a known document
// type. Anything unrecognized becomes "other" so an off-script model
// answer degrades to a rejection instead of an error.
func normalizeDocumentType(raw string) domain.DocumentType {
	switch domain.DocumentType(raw) {
	case domain.DocumentTypeResume,
		domain.DocumentTypeJobDescription,
		domain.DocumentTypeCoverLetter,
		domain.DocumentTypeOther:
		return domain.DocumentType(raw)
	default:
		return domain.DocumentTypeOther
	}
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
