package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/careerdock/docflow-api/internal/domain"
)

// DocumentStore defines the interface for document data persistence.
type DocumentStore interface {
	// Create saves a new document to the store.
	// It handles domain validation internally.
	// Returns validation errors from the domain Document if data is invalid.
	Create(ctx context.Context, doc *domain.Document) error

	// GetByID retrieves a document by its unique ID.
	// Returns ErrDocumentNotFound if the document does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)

	// GetByIDForUser retrieves a document by ID, scoped to its owning user.
	// Returns ErrDocumentNotFound if the document does not exist or belongs
	// to a different user.
	GetByIDForUser(ctx context.Context, id uuid.UUID, userID string) (*domain.Document, error)

	// Update saves changes to an existing document.
	// Returns ErrDocumentNotFound if the document does not exist.
	// Returns validation errors if the document data is invalid.
	Update(ctx context.Context, doc *domain.Document) error

	// ListByUser retrieves a user's documents ordered by creation time
	// descending, with optional status filter and limit/offset pagination.
	// Returns an empty slice if no documents match.
	ListByUser(
		ctx context.Context,
		userID string,
		status *domain.DocumentStatus,
		limit, offset int,
	) ([]*domain.Document, error)

	// Delete removes a document record.
	// Returns ErrDocumentNotFound if the document does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new DocumentStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller
	// (typically a service).
	WithTx(tx *sql.Tx) DocumentStore
}
