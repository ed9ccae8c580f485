package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/careerdock/docflow-api/internal/domain"
	"github.com/careerdock/docflow-api/internal/store"
	"github.com/careerdock/docflow-api/internal/task"
)

// DocumentRepository defines the repository interface for the service layer.
// It is aligned with store.DocumentStore, plus access to the underlying
// database handle for transactions.
type DocumentRepository interface {
	// Create saves a new document to the store
	Create(ctx context.Context, doc *domain.Document) error

	// GetByID retrieves a document by its unique ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)

	// GetByIDForUser retrieves a document by ID, scoped to its owning user
	GetByIDForUser(ctx context.Context, id uuid.UUID, userID string) (*domain.Document, error)

	// Update saves changes to an existing document
	Update(ctx context.Context, doc *domain.Document) error

	// ListByUser retrieves a user's documents with optional status filter
	ListByUser(
		ctx context.Context,
		userID string,
		status *domain.DocumentStatus,
		limit, offset int,
	) ([]*domain.Document, error)

	// Delete removes a document record
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new repository instance that uses the provided transaction
	WithTx(tx *sql.Tx) DocumentRepository

	// DB returns the underlying database connection
	DB() *sql.DB
}

// TaskRunner defines the interface for submitting background tasks
type TaskRunner interface {
	// Submit adds a task to the processing queue
	Submit(ctx context.Context, task task.Task) error
}

// DocumentTaskFactory creates processing tasks for uploaded documents
type DocumentTaskFactory interface {
	// CreateTask creates a new processing task for the specified document
	CreateTask(documentID uuid.UUID, userID string) (task.Task, error)
}

// ArtifactStore is the object storage surface the service needs: uploads
// on create, removal on delete.
type ArtifactStore interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// DocumentService provides document-related operations
type DocumentService interface {
	// CreateDocumentAndEnqueueTask stores the uploaded artifact, persists the
	// document record and enqueues a processing task.
	CreateDocumentAndEnqueueTask(
		ctx context.Context,
		userID, filename string,
		fileType domain.FileType,
		content []byte,
	) (*domain.Document, error)

	// GetDocument retrieves a document by its ID without ownership checks.
	// Used by the background pipeline, which already knows the owner.
	GetDocument(ctx context.Context, documentID uuid.UUID) (*domain.Document, error)

	// GetDocumentForUser retrieves a document scoped to its owning user
	GetDocumentForUser(ctx context.Context, documentID uuid.UUID, userID string) (*domain.Document, error)

	// UpdateDocument persists changes made to a document
	UpdateDocument(ctx context.Context, doc *domain.Document) error

	// ListDocuments retrieves a user's documents, newest first
	ListDocuments(
		ctx context.Context,
		userID string,
		status *domain.DocumentStatus,
		limit, offset int,
	) ([]*domain.Document, error)

	// DeleteDocument removes a user's document record and its stored artifact
	DeleteDocument(ctx context.Context, documentID uuid.UUID, userID string) error
}

// StorageKey returns the object storage key for a document's artifact.
func StorageKey(userID string, documentID uuid.UUID, filename string) string {
	return fmt.Sprintf("users/%s/documents/%s/%s", userID, documentID, filename)
}

// documentServiceImpl implements the DocumentService interface
type documentServiceImpl struct {
	documentRepo DocumentRepository
	taskRunner   TaskRunner
	taskFactory  DocumentTaskFactory
	artifacts    ArtifactStore
	logger       *slog.Logger
}

// NewDocumentService creates a new DocumentService.
// It returns an error if any of the required dependencies are nil.
func NewDocumentService(
	documentRepo DocumentRepository,
	taskRunner TaskRunner,
	taskFactory DocumentTaskFactory,
	artifacts ArtifactStore,
	logger *slog.Logger,
) (DocumentService, error) {
	if documentRepo == nil {
		return nil, &DocumentServiceError{
			Operation: "create_service",
			Message:   "documentRepo cannot be nil",
		}
	}
	if taskRunner == nil {
		return nil, &DocumentServiceError{
			Operation: "create_service",
			Message:   "taskRunner cannot be nil",
		}
	}
	if taskFactory == nil {
		return nil, &DocumentServiceError{
			Operation: "create_service",
			Message:   "taskFactory cannot be nil",
		}
	}
	if artifacts == nil {
		return nil, &DocumentServiceError{
			Operation: "create_service",
			Message:   "artifacts cannot be nil",
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &documentServiceImpl{
		documentRepo: documentRepo,
		taskRunner:   taskRunner,
		taskFactory:  taskFactory,
		artifacts:    artifacts,
		logger:       logger.With("component", "document_service"),
	}, nil
}

// Ensure the service satisfies the pipeline's view of document operations.
var _ task.DocumentService = (DocumentService)(nil)

// CreateDocumentAndEnqueueTask drives the upload sequence:
//
//  1. create the document record with pending status
//  2. transition to uploading and store the artifact
//  3. persist the record in a transaction
//  4. enqueue the processing task
//
// If the artifact upload fails the document is never persisted; if task
// submission fails the stored artifact is removed again so no orphaned
// object remains.
func (s *documentServiceImpl) CreateDocumentAndEnqueueTask(
	ctx context.Context,
	userID, filename string,
	fileType domain.FileType,
	content []byte,
) (*domain.Document, error) {
	doc, err := domain.NewDocument(userID, filename, fileType, int64(len(content)))
	if err != nil {
		s.logger.Error("failed to create document object",
			"error", err,
			"user_id", userID)
		return nil, NewDocumentServiceError("create_document", "failed to create document object", err)
	}

	doc.StorageKey = StorageKey(userID, doc.ID, filename)

	if err := doc.TransitionTo(domain.DocumentStatusUploading); err != nil {
		return nil, NewDocumentServiceError("create_document", "failed to start upload", err)
	}

	if err := s.artifacts.Put(ctx, doc.StorageKey, content, fileType.ContentType()); err != nil {
		s.logger.Error("failed to store document artifact",
			"error", err,
			"document_id", doc.ID,
			"user_id", userID)
		return nil, NewDocumentServiceError("create_document", "failed to store artifact", err)
	}

	processingTask, err := s.taskFactory.CreateTask(doc.ID, userID)
	if err != nil {
		s.cleanupArtifact(ctx, doc)
		return nil, NewDocumentServiceError("create_document", "failed to create processing task", err)
	}
	doc.TaskID = processingTask.ID().String()

	err = store.RunInTransaction(ctx, s.documentRepo.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txRepo := s.documentRepo.WithTx(tx)

		if err := txRepo.Create(ctx, doc); err != nil {
			s.logger.Error("failed to create document in transaction",
				"error", err,
				"document_id", doc.ID,
				"user_id", userID)
			return NewDocumentServiceError("create_document", "failed to save document to database", err)
		}
		return nil
	})
	if err != nil {
		s.cleanupArtifact(ctx, doc)
		return nil, err
	}

	if err := s.taskRunner.Submit(ctx, processingTask); err != nil {
		s.logger.Error("failed to submit processing task",
			"error", err,
			"document_id", doc.ID,
			"task_id", doc.TaskID)
		return nil, NewDocumentServiceError("create_document", "failed to enqueue processing task", err)
	}

	s.logger.Info("document created and processing task enqueued",
		"document_id", doc.ID,
		"user_id", userID,
		"task_id", doc.TaskID,
		"size_bytes", doc.SizeBytes)

	return doc, nil
}

// GetDocument retrieves a document by its ID
func (s *documentServiceImpl) GetDocument(
	ctx context.Context,
	documentID uuid.UUID,
) (*domain.Document, error) {
	doc, err := s.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrDocumentNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, NewDocumentServiceError("get_document", "failed to retrieve document", err)
	}

	return doc, nil
}

// GetDocumentForUser retrieves a document scoped to its owning user
func (s *documentServiceImpl) GetDocumentForUser(
	ctx context.Context,
	documentID uuid.UUID,
	userID string,
) (*domain.Document, error) {
	doc, err := s.documentRepo.GetByIDForUser(ctx, documentID, userID)
	if err != nil {
		if errors.Is(err, store.ErrDocumentNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, NewDocumentServiceError("get_document", "failed to retrieve document", err)
	}

	return doc, nil
}

// UpdateDocument persists changes made to a document
func (s *documentServiceImpl) UpdateDocument(ctx context.Context, doc *domain.Document) error {
	if err := s.documentRepo.Update(ctx, doc); err != nil {
		if errors.Is(err, store.ErrDocumentNotFound) {
			return ErrDocumentNotFound
		}
		return NewDocumentServiceError("update_document", "failed to update document", err)
	}

	return nil
}

// ListDocuments retrieves a user's documents, newest first
func (s *documentServiceImpl) ListDocuments(
	ctx context.Context,
	userID string,
	status *domain.DocumentStatus,
	limit, offset int,
) ([]*domain.Document, error) {
	docs, err := s.documentRepo.ListByUser(ctx, userID, status, limit, offset)
	if err != nil {
		return nil, NewDocumentServiceError("list_documents", "failed to list documents", err)
	}

	return docs, nil
}

// DeleteDocument removes a user's document record and its stored artifact.
// Documents still moving through the pipeline cannot be deleted; callers
// get ErrDocumentNotDeletable and should retry once processing settles.
func (s *documentServiceImpl) DeleteDocument(
	ctx context.Context,
	documentID uuid.UUID,
	userID string,
) error {
	doc, err := s.GetDocumentForUser(ctx, documentID, userID)
	if err != nil {
		return err
	}

	switch doc.Status {
	case domain.DocumentStatusUploading, domain.DocumentStatusValidating, domain.DocumentStatusParsing:
		return ErrDocumentNotDeletable
	}

	err = store.RunInTransaction(ctx, s.documentRepo.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txRepo := s.documentRepo.WithTx(tx)

		if err := txRepo.Delete(ctx, documentID); err != nil {
			if errors.Is(err, store.ErrDocumentNotFound) {
				return ErrDocumentNotFound
			}
			return NewDocumentServiceError("delete_document", "failed to delete document record", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// The record is authoritative; a leftover artifact is only storage
	// garbage, so removal failures are logged rather than surfaced.
	if doc.StorageKey != "" {
		if err := s.artifacts.Delete(ctx, doc.StorageKey); err != nil {
			s.logger.Warn("failed to delete document artifact",
				"error", err,
				"document_id", documentID,
				"storage_key", doc.StorageKey)
		}
	}

	s.logger.Info("document deleted",
		"document_id", documentID,
		"user_id", userID)
	return nil
}

// cleanupArtifact removes a stored artifact after a failed create, logging
// rather than surfacing any error.
func (s *documentServiceImpl) cleanupArtifact(ctx context.Context, doc *domain.Document) {
	if err := s.artifacts.Delete(ctx, doc.StorageKey); err != nil {
		s.logger.Warn("failed to clean up artifact after aborted create",
			"error", err,
			"document_id", doc.ID,
			"storage_key", doc.StorageKey)
	}
}
