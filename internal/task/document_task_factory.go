package task

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// DocumentProcessingTaskFactory creates DocumentProcessingTask instances
// with their collaborator dependencies pre-wired.
type DocumentProcessingTaskFactory struct {
	documents  DocumentService
	artifacts  ArtifactStore
	classifier Classifier
	parser     Parser
	graph      GraphConverter
	logger     *slog.Logger
}

// NewDocumentProcessingTaskFactory creates a new factory for document
// processing tasks.
func NewDocumentProcessingTaskFactory(
	documents DocumentService,
	artifacts ArtifactStore,
	classifier Classifier,
	parser Parser,
	graph GraphConverter,
	logger *slog.Logger,
) *DocumentProcessingTaskFactory {
	return &DocumentProcessingTaskFactory{
		documents:  documents,
		artifacts:  artifacts,
		classifier: classifier,
		parser:     parser,
		graph:      graph,
		logger:     logger,
	}
}

// CreateTask creates a new DocumentProcessingTask for the given document.
func (f *DocumentProcessingTaskFactory) CreateTask(documentID uuid.UUID, userID string) (Task, error) {
	return NewDocumentProcessingTask(
		documentID,
		userID,
		f.documents,
		f.artifacts,
		f.classifier,
		f.parser,
		f.graph,
		f.logger,
	)
}

// Reconstruct rebuilds an executable task from a persisted row. It is
// installed on the runner so crash recovery can requeue interrupted
// document processing tasks.
func (f *DocumentProcessingTaskFactory) Reconstruct(
	taskType string,
	taskID uuid.UUID,
	payload []byte,
) (Task, error) {
	if taskType != TaskTypeDocumentProcessing {
		return nil, fmt.Errorf("unsupported task type %q", taskType)
	}

	var p documentProcessingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	t, err := NewDocumentProcessingTask(
		p.DocumentID,
		p.UserID,
		f.documents,
		f.artifacts,
		f.classifier,
		f.parser,
		f.graph,
		f.logger,
	)
	if err != nil {
		return nil, err
	}

	// Keep the persisted identity so status updates hit the original row.
	t.id = taskID
	return t, nil
}
