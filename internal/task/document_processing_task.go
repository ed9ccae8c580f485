package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/careerdock/docflow-api/internal/domain"
)

// previewLength bounds the text excerpt handed to the classifier.
const previewLength = 5000

// Common errors
var (
	ErrNilDocumentService = errors.New("document service cannot be nil")
	ErrNilStorage         = errors.New("storage cannot be nil")
	ErrNilClassifier      = errors.New("classifier cannot be nil")
	ErrNilParser          = errors.New("parser cannot be nil")
	ErrNilLogger          = errors.New("logger cannot be nil")
	ErrEmptyDocumentID    = errors.New("document ID cannot be empty")
)

// DocumentService defines the document operations the pipeline needs.
type DocumentService interface {
	// GetDocument retrieves a document by its ID
	GetDocument(ctx context.Context, documentID uuid.UUID) (*domain.Document, error)

	// UpdateDocument persists changes made to a document
	UpdateDocument(ctx context.Context, doc *domain.Document) error
}

// ArtifactStore fetches stored document artifacts.
type ArtifactStore interface {
	// Get downloads the artifact stored under the given key
	Get(ctx context.Context, key string) ([]byte, error)
}

// Classification is the result of classifying a document's content.
type Classification struct {
	DocumentType domain.DocumentType
	Confidence   float64
	Reasoning    string
}

// Classifier determines the document type from a bounded text preview.
// Implementations return a low-confidence or "other" classification for
// ambiguous content; an error indicates an infrastructure failure only.
type Classifier interface {
	Classify(ctx context.Context, text, filename, userID string) (*Classification, error)
}

// Parser converts a stored artifact into normalized markdown text.
type Parser interface {
	Parse(ctx context.Context, content []byte, filename string, fileType domain.FileType) (string, error)
}

// GraphRef identifies a document's node in the knowledge graph.
type GraphRef struct {
	NodeID          string
	OntologyVersion string
}

// GraphConverter extracts a knowledge graph from parsed document text.
// The pipeline treats it as best-effort: failures are logged and swallowed.
type GraphConverter interface {
	Convert(
		ctx context.Context,
		documentID uuid.UUID,
		text string,
		docType domain.DocumentType,
		userID string,
	) (*GraphRef, error)
}

// documentProcessingPayload represents the serialized data stored in the task
type documentProcessingPayload struct {
	DocumentID uuid.UUID `json:"document_id"`
	UserID     string    `json:"user_id"`
}

// DocumentProcessingTask implements the Task interface. It drives one
// document from its stored artifact to a terminal status. A run is safely
// re-executable from scratch: a retry overwrites rather than appends
// results, and exactly one run is active per document at a time.
type DocumentProcessingTask struct {
	id         uuid.UUID
	documentID uuid.UUID
	userID     string
	documents  DocumentService
	artifacts  ArtifactStore
	classifier Classifier
	parser     Parser
	graph      GraphConverter
	logger     *slog.Logger
	status     TaskStatus
}

// NewDocumentProcessingTask creates a new document processing task.
// The graph converter may be nil, in which case the graph stage is skipped.
func NewDocumentProcessingTask(
	documentID uuid.UUID,
	userID string,
	documents DocumentService,
	artifacts ArtifactStore,
	classifier Classifier,
	parser Parser,
	graph GraphConverter,
	logger *slog.Logger,
) (*DocumentProcessingTask, error) {
	if documents == nil {
		return nil, ErrNilDocumentService
	}
	if artifacts == nil {
		return nil, ErrNilStorage
	}
	if classifier == nil {
		return nil, ErrNilClassifier
	}
	if parser == nil {
		return nil, ErrNilParser
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if documentID == uuid.Nil {
		return nil, ErrEmptyDocumentID
	}

	return &DocumentProcessingTask{
		id:         uuid.New(),
		documentID: documentID,
		userID:     userID,
		documents:  documents,
		artifacts:  artifacts,
		classifier: classifier,
		parser:     parser,
		graph:      graph,
		logger:     logger.With("task_type", TaskTypeDocumentProcessing, "document_id", documentID),
		status:     TaskStatusPending,
	}, nil
}

// ID returns the task's unique identifier
func (t *DocumentProcessingTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *DocumentProcessingTask) Type() string {
	return TaskTypeDocumentProcessing
}

// Payload returns the task data as a byte slice
func (t *DocumentProcessingTask) Payload() []byte {
	payload := documentProcessingPayload{
		DocumentID: t.documentID,
		UserID:     t.userID,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.logger.Error("failed to marshal task payload", "error", err)
		return []byte{}
	}

	return data
}

// Status returns the current task status
func (t *DocumentProcessingTask) Status() TaskStatus {
	return t.status
}

// Execute runs the document processing pipeline:
//
//  1. transition to validating and fetch the stored artifact
//  2. classify a bounded text preview
//  3. unsupported type: mark invalid and stop (terminal business outcome)
//  4. transition to parsing, produce normalized text
//  5. best-effort graph conversion
//  6. mark completed
//
// Any infrastructure error from steps 1-4 marks the document failed with a
// truncated error message and is returned, so the runner's bounded retry
// policy restarts the whole pipeline from step 1.
func (t *DocumentProcessingTask) Execute(ctx context.Context) error {
	t.status = TaskStatusProcessing
	t.logger.Info("starting document processing")

	if err := ctx.Err(); err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("task cancelled by context: %w", err)
	}

	doc, err := t.documents.GetDocument(ctx, t.documentID)
	if err != nil {
		t.status = TaskStatusFailed
		t.logger.Error("failed to retrieve document", "error", err)
		return fmt.Errorf("failed to retrieve document: %w", err)
	}

	if err := t.runPipeline(ctx, doc); err != nil {
		t.markFailed(ctx, doc, err)
		t.status = TaskStatusFailed
		return err
	}

	t.status = TaskStatusCompleted
	return nil
}

// runPipeline performs the processing stages on a fetched document.
// A nil return means the document reached a terminal business state
// (completed or invalid); an error means a retryable infrastructure failure.
func (t *DocumentProcessingTask) runPipeline(ctx context.Context, doc *domain.Document) error {
	if err := t.transition(ctx, doc, domain.DocumentStatusValidating); err != nil {
		return err
	}

	content, err := t.artifacts.Get(ctx, doc.StorageKey)
	if err != nil {
		return fmt.Errorf("failed to fetch artifact %q: %w", doc.StorageKey, err)
	}

	// Text-like formats decode directly; binary formats go through the
	// parser once, and the full result is reused after classification so
	// the artifact is never converted twice in one run.
	var fullText string
	if domain.IsTextFileType(doc.FileType) {
		fullText = decodeText(content)
	} else {
		fullText, err = t.parser.Parse(ctx, content, doc.Filename, doc.FileType)
		if err != nil {
			return fmt.Errorf("failed to parse document: %w", err)
		}
	}

	classification, err := t.classifier.Classify(ctx, preview(fullText), doc.Filename, doc.UserID)
	if err != nil {
		return fmt.Errorf("failed to classify document: %w", err)
	}

	t.logger.Info("document classified",
		"document_type", classification.DocumentType,
		"confidence", classification.Confidence)

	doc.DocumentType = classification.DocumentType
	doc.ClassificationConfidence = classification.Confidence

	if !domain.IsAcceptedDocumentType(classification.DocumentType) {
		doc.SetError(fmt.Sprintf(
			"document type %q is not supported; only resumes, job descriptions and cover letters are accepted",
			classification.DocumentType))
		if err := t.transition(ctx, doc, domain.DocumentStatusInvalid); err != nil {
			return err
		}
		t.logger.Info("document rejected as unsupported type",
			"document_type", classification.DocumentType)
		return nil
	}

	if err := t.transition(ctx, doc, domain.DocumentStatusParsing); err != nil {
		return err
	}

	doc.Content = fullText

	// Graph conversion is best-effort: any failure is logged and swallowed,
	// and the document still completes.
	if t.graph != nil {
		if ref, graphErr := t.convertGraph(ctx, doc); graphErr != nil {
			t.logger.Warn("graph conversion failed, continuing without graph reference",
				"error", graphErr)
		} else if ref != nil {
			doc.GraphNodeID = ref.NodeID
			doc.OntologyVersion = ref.OntologyVersion
		}
	}

	if err := t.transition(ctx, doc, domain.DocumentStatusCompleted); err != nil {
		return err
	}

	t.logger.Info("document processing completed",
		"document_type", doc.DocumentType,
		"content_length", len(doc.Content))
	return nil
}

// convertGraph calls the graph converter, turning panics into errors so a
// misbehaving converter can never take the pipeline down.
func (t *DocumentProcessingTask) convertGraph(
	ctx context.Context,
	doc *domain.Document,
) (ref *GraphRef, err error) {
	defer func() {
		if p := recover(); p != nil {
			ref = nil
			err = fmt.Errorf("graph converter panicked: %v", p)
		}
	}()

	return t.graph.Convert(ctx, doc.ID, doc.Content, doc.DocumentType, doc.UserID)
}

// transition moves the document to the target status and persists it.
func (t *DocumentProcessingTask) transition(
	ctx context.Context,
	doc *domain.Document,
	status domain.DocumentStatus,
) error {
	if err := doc.TransitionTo(status); err != nil {
		return fmt.Errorf("cannot transition document from %s to %s: %w", doc.Status, status, err)
	}

	if err := t.documents.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to persist document status %s: %w", status, err)
	}

	t.logger.Debug("document status updated", "status", status)
	return nil
}

// markFailed records the failure on the document record. Errors here are
// logged but not returned; the original pipeline error matters more.
func (t *DocumentProcessingTask) markFailed(ctx context.Context, doc *domain.Document, cause error) {
	doc.SetError(cause.Error())

	if err := doc.TransitionTo(domain.DocumentStatusFailed); err != nil {
		t.logger.Error("cannot mark document failed",
			"current_status", doc.Status,
			"error", err)
		return
	}

	if err := t.documents.UpdateDocument(ctx, doc); err != nil {
		t.logger.Error("failed to persist failed document status", "error", err)
	}
}

// preview returns the leading slice of text handed to the classifier.
func preview(text string) string {
	if len(text) <= previewLength {
		return text
	}

	// Avoid cutting a multi-byte rune in half.
	cut := previewLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// decodeText converts raw bytes to a string, replacing invalid UTF-8
// sequences rather than failing.
func decodeText(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}

	return string([]rune(string(content)))
}
