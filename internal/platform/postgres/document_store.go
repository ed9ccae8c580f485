package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/careerdock/docflow-api/internal/domain"
	"github.com/careerdock/docflow-api/internal/platform/logger"
	"github.com/careerdock/docflow-api/internal/store"
)

// documentColumns is the column list shared by every SELECT on documents.
const documentColumns = `
	id, user_id, filename, file_type, size_bytes, storage_key, status,
	document_type, classification_confidence, content,
	graph_node_id, ontology_version, error_message, task_id,
	created_at, updated_at, processed_at
`

// PostgresDocumentStore implements the store.DocumentStore interface
// using a PostgreSQL database as the storage backend.
type PostgresDocumentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresDocumentStore creates a new PostgreSQL implementation of the
// DocumentStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresDocumentStore(db store.DBTX, logger *slog.Logger) *PostgresDocumentStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresDocumentStore{
		db:     db,
		logger: logger.With(slog.String("component", "document_store")),
	}
}

// Ensure PostgresDocumentStore implements store.DocumentStore interface
var _ store.DocumentStore = (*PostgresDocumentStore)(nil)

// WithTx implements store.DocumentStore.WithTx
func (s *PostgresDocumentStore) WithTx(tx *sql.Tx) store.DocumentStore {
	return &PostgresDocumentStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.DocumentStore.Create
// It saves a new document to the database, handling domain validation.
// Returns validation errors from the domain Document if data is invalid.
func (s *PostgresDocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := doc.Validate(); err != nil {
		log.Warn("document validation failed during create",
			slog.String("error", err.Error()),
			slog.String("document_id", doc.ID.String()))
		return err
	}

	query := `
		INSERT INTO documents (
			id, user_id, filename, file_type, size_bytes, storage_key, status,
			document_type, classification_confidence, content,
			graph_node_id, ontology_version, error_message, task_id,
			created_at, updated_at, processed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.UserID,
		doc.Filename,
		doc.FileType,
		doc.SizeBytes,
		doc.StorageKey,
		doc.Status,
		doc.DocumentType,
		doc.ClassificationConfidence,
		doc.Content,
		doc.GraphNodeID,
		doc.OntologyVersion,
		doc.ErrorMessage,
		doc.TaskID,
		doc.CreatedAt,
		doc.UpdatedAt,
		doc.ProcessedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			log.Warn("duplicate document id during creation",
				slog.String("document_id", doc.ID.String()))
			return fmt.Errorf("%w: document with ID %s already exists",
				store.ErrDuplicate, doc.ID)
		}

		log.Error("failed to create document",
			slog.String("error", err.Error()),
			slog.String("document_id", doc.ID.String()),
			slog.String("user_id", doc.UserID))
		return MapError(err)
	}

	log.Info("document created successfully",
		slog.String("document_id", doc.ID.String()),
		slog.String("user_id", doc.UserID),
		slog.String("status", string(doc.Status)))
	return nil
}

// GetByID implements store.DocumentStore.GetByID
// Returns store.ErrDocumentNotFound if the document does not exist.
func (s *PostgresDocumentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return s.getOne(ctx, query, id)
}

// GetByIDForUser implements store.DocumentStore.GetByIDForUser
// Returns store.ErrDocumentNotFound if the document does not exist or
// belongs to a different user. Ownership is enforced in the query, so a
// foreign document is indistinguishable from a missing one.
func (s *PostgresDocumentStore) GetByIDForUser(
	ctx context.Context,
	id uuid.UUID,
	userID string,
) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND user_id = $2`
	return s.getOne(ctx, query, id, userID)
}

func (s *PostgresDocumentStore) getOne(
	ctx context.Context,
	query string,
	args ...any,
) (*domain.Document, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx, query, args...)
	doc, err := scanDocument(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrDocumentNotFound
		}
		log.Error("failed to get document", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return doc, nil
}

// Update implements store.DocumentStore.Update
// Returns store.ErrDocumentNotFound if the document does not exist.
// Returns validation errors if the document data is invalid.
func (s *PostgresDocumentStore) Update(ctx context.Context, doc *domain.Document) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := doc.Validate(); err != nil {
		log.Warn("document validation failed during update",
			slog.String("error", err.Error()),
			slog.String("document_id", doc.ID.String()))
		return err
	}

	doc.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE documents
		SET status = $1, document_type = $2, classification_confidence = $3,
			content = $4, graph_node_id = $5, ontology_version = $6,
			error_message = $7, task_id = $8, storage_key = $9,
			updated_at = $10, processed_at = $11
		WHERE id = $12
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		doc.Status,
		doc.DocumentType,
		doc.ClassificationConfidence,
		doc.Content,
		doc.GraphNodeID,
		doc.OntologyVersion,
		doc.ErrorMessage,
		doc.TaskID,
		doc.StorageKey,
		doc.UpdatedAt,
		doc.ProcessedAt,
		doc.ID,
	)
	if err != nil {
		log.Error("failed to update document",
			slog.String("error", err.Error()),
			slog.String("document_id", doc.ID.String()),
			slog.String("status", string(doc.Status)))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "document"); err != nil {
		return store.ErrDocumentNotFound
	}

	log.Debug("document updated successfully",
		slog.String("document_id", doc.ID.String()),
		slog.String("status", string(doc.Status)))
	return nil
}

// ListByUser implements store.DocumentStore.ListByUser
// Returns an empty slice if no documents match the criteria.
func (s *PostgresDocumentStore) ListByUser(
	ctx context.Context,
	userID string,
	status *domain.DocumentStatus,
	limit, offset int,
) ([]*domain.Document, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 20 // Default limit
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + documentColumns + `
		FROM documents
		WHERE user_id = $1
	`
	args := []any{userID}

	if status != nil {
		query += ` AND status = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`
		args = append(args, *status, limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query documents by user",
			slog.String("error", err.Error()),
			slog.String("user_id", userID))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			log.Error("failed to scan document row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	if docs == nil {
		docs = []*domain.Document{}
	}

	log.Debug("found documents by user",
		slog.String("user_id", userID),
		slog.Int("count", len(docs)))
	return docs, nil
}

// Delete implements store.DocumentStore.Delete
// Returns store.ErrDocumentNotFound if the document does not exist.
func (s *PostgresDocumentStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete document",
			slog.String("error", err.Error()),
			slog.String("document_id", id.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "document"); err != nil {
		return store.ErrDocumentNotFound
	}

	log.Info("document deleted", slog.String("document_id", id.String()))
	return nil
}

// scanDocument reads one documents row through the given scan function.
// Works for both *sql.Row and *sql.Rows.
func scanDocument(scan func(dest ...any) error) (*domain.Document, error) {
	var doc domain.Document
	var status, docType, fileType string

	err := scan(
		&doc.ID,
		&doc.UserID,
		&doc.Filename,
		&fileType,
		&doc.SizeBytes,
		&doc.StorageKey,
		&status,
		&docType,
		&doc.ClassificationConfidence,
		&doc.Content,
		&doc.GraphNodeID,
		&doc.OntologyVersion,
		&doc.ErrorMessage,
		&doc.TaskID,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&doc.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.FileType = domain.FileType(fileType)
	doc.Status = domain.DocumentStatus(status)
	doc.DocumentType = domain.DocumentType(docType)
	return &doc, nil
}
