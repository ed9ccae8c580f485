package service

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/careerdock/docflow-api/internal/domain"
	"github.com/careerdock/docflow-api/internal/store"
	"github.com/careerdock/docflow-api/internal/task"
)

// DocumentRepositoryAdapter adapts a store.DocumentStore to the service's
// DocumentRepository interface, adding access to the database handle the
// service needs for transactions.
type DocumentRepositoryAdapter struct {
	store.DocumentStore
	db *sql.DB
}

// NewDocumentRepositoryAdapter creates a new adapter that implements
// DocumentRepository by delegating to a store.DocumentStore implementation.
func NewDocumentRepositoryAdapter(
	documentStore store.DocumentStore,
	db *sql.DB,
) *DocumentRepositoryAdapter {
	return &DocumentRepositoryAdapter{
		DocumentStore: documentStore,
		db:            db,
	}
}

// Ensure DocumentRepositoryAdapter implements service.DocumentRepository
var _ DocumentRepository = (*DocumentRepositoryAdapter)(nil)

// WithTx returns a new repository bound to the given transaction.
func (a *DocumentRepositoryAdapter) WithTx(tx *sql.Tx) DocumentRepository {
	return &DocumentRepositoryAdapter{
		DocumentStore: a.DocumentStore.WithTx(tx),
		db:            a.db,
	}
}

// DB returns the underlying database connection.
func (a *DocumentRepositoryAdapter) DB() *sql.DB {
	return a.db
}

// DocumentPipelineAdapter exposes a DocumentRepository under the narrow
// document interface the processing pipeline consumes. It lets the task
// factory be wired straight to the store, without a dependency cycle
// through the full document service.
type DocumentPipelineAdapter struct {
	repo DocumentRepository
}

// NewDocumentPipelineAdapter creates an adapter implementing
// task.DocumentService on top of a DocumentRepository.
func NewDocumentPipelineAdapter(repo DocumentRepository) *DocumentPipelineAdapter {
	return &DocumentPipelineAdapter{repo: repo}
}

// Ensure DocumentPipelineAdapter implements task.DocumentService
var _ task.DocumentService = (*DocumentPipelineAdapter)(nil)

// GetDocument retrieves a document by its ID.
func (a *DocumentPipelineAdapter) GetDocument(
	ctx context.Context,
	documentID uuid.UUID,
) (*domain.Document, error) {
	return a.repo.GetByID(ctx, documentID)
}

// UpdateDocument persists changes made to a document.
func (a *DocumentPipelineAdapter) UpdateDocument(ctx context.Context, doc *domain.Document) error {
	return a.repo.Update(ctx, doc)
}
