package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/careerdock/docflow-api/internal/config"
	"github.com/careerdock/docflow-api/internal/domain"
	"github.com/careerdock/docflow-api/internal/task"
)

// OntologyVersion identifies the entity/relation schema the extractor
// asks the model for. Bump it when the prompt's schema changes.
const OntologyVersion = "career-ontology-v1"

// graphPrompt asks the model for a strict-JSON entity/relation graph.
const graphPrompt = `Extract a knowledge graph from the %s document below.

Identify entities (people, organizations, job titles, skills, locations,
education, certifications) and the relations between them.

Respond with JSON only, no prose, in this exact shape:
{"entities": [{"id": "<short-id>", "type": "<entity-type>", "name": "<name>"}],
 "relations": [{"from": "<entity-id>", "to": "<entity-id>", "type": "<relation-type>"}]}

Document:
---
%s
---`

// GraphWriter persists an extracted graph document. Implemented by the
// object store.
type GraphWriter interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
}

// GraphExtractor derives a knowledge graph from parsed document text via
// the Gemini API and persists it as a JSON artifact. The pipeline treats
// graph extraction as best-effort, so every failure here is safe to
// surface as an error.
type GraphExtractor struct {
	client *genai.Client
	model  string
	writer GraphWriter
	logger *slog.Logger
}

// NewGraphExtractor creates a Gemini-backed graph extractor that stores
// extracted graphs through writer.
func NewGraphExtractor(
	client *genai.Client,
	cfg config.LLMConfig,
	writer GraphWriter,
	logger *slog.Logger,
) (*GraphExtractor, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: client cannot be nil", ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}
	if writer == nil {
		return nil, fmt.Errorf("%w: graph writer cannot be nil", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &GraphExtractor{
		client: client,
		model:  cfg.ModelName,
		writer: writer,
		logger: logger.With(slog.String("component", "graph_extractor")),
	}, nil
}

// Ensure GraphExtractor implements task.GraphConverter
var _ task.GraphConverter = (*GraphExtractor)(nil)

// graphEntity and graphRelation mirror the JSON shape requested in the prompt.
type graphEntity struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

type graphRelation struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

type graphResponse struct {
	Entities  []graphEntity   `json:"entities"`
	Relations []graphRelation `json:"relations"`
}

// graphDocument is the persisted artifact: the extracted graph plus the
// provenance needed to rebuild or re-index it later.
type graphDocument struct {
	DocumentID      uuid.UUID       `json:"document_id"`
	UserID          string          `json:"user_id"`
	DocumentType    string          `json:"document_type"`
	OntologyVersion string          `json:"ontology_version"`
	ExtractedAt     time.Time       `json:"extracted_at"`
	Entities        []graphEntity   `json:"entities"`
	Relations       []graphRelation `json:"relations"`
}

// Convert implements task.GraphConverter.
func (g *GraphExtractor) Convert(
	ctx context.Context,
	documentID uuid.UUID,
	text string,
	docType domain.DocumentType,
	userID string,
) (*task.GraphRef, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}

	prompt := fmt.Sprintf(graphPrompt, docType, text)

	raw, err := generateText(ctx, g.client, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("graph extraction request failed: %w", err)
	}

	var parsed graphResponse
	if err := decodeJSONResponse(raw, &parsed); err != nil {
		return nil, err
	}

	if len(parsed.Entities) == 0 {
		return nil, fmt.Errorf("%w: no entities extracted", ErrInvalidResponse)
	}

	artifact := graphDocument{
		DocumentID:      documentID,
		UserID:          userID,
		DocumentType:    string(docType),
		OntologyVersion: OntologyVersion,
		ExtractedAt:     time.Now().UTC(),
		Entities:        parsed.Entities,
		Relations:       parsed.Relations,
	}

	data, err := json.Marshal(artifact)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph document: %w", err)
	}

	key := GraphKey(userID, documentID)
	if err := g.writer.Put(ctx, key, data, "application/json"); err != nil {
		return nil, fmt.Errorf("failed to store graph document: %w", err)
	}

	g.logger.Info("knowledge graph extracted",
		slog.String("document_id", documentID.String()),
		slog.Int("entity_count", len(parsed.Entities)),
		slog.Int("relation_count", len(parsed.Relations)))

	return &task.GraphRef{
		NodeID:          "document:" + documentID.String(),
		OntologyVersion: OntologyVersion,
	}, nil
}

// GraphKey returns the object storage key for a document's graph artifact.
func GraphKey(userID string, documentID uuid.UUID) string {
	return fmt.Sprintf("graphs/%s/%s.json", userID, documentID)
}
