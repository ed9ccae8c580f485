package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/careerdock/docflow-api/internal/api/shared"
	"github.com/careerdock/docflow-api/internal/domain"
	"github.com/careerdock/docflow-api/internal/platform/logger"
	"github.com/careerdock/docflow-api/internal/service"
)

// MaxUploadBytes caps the accepted document size at 10 MiB.
const MaxUploadBytes = 10 << 20

// uploadFormField is the multipart form field carrying the document.
const uploadFormField = "file"

// DocumentHandler handles document-related HTTP requests.
type DocumentHandler struct {
	documentService service.DocumentService
	logger          *slog.Logger
}

// NewDocumentHandler creates a new DocumentHandler with the given dependencies.
func NewDocumentHandler(documentService service.DocumentService, logger *slog.Logger) *DocumentHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &DocumentHandler{
		documentService: documentService,
		logger:          logger.With(slog.String("component", "document_handler")),
	}
}

// UploadDocument handles POST /documents/upload.
// It accepts a multipart upload, validates the file, and enqueues
// background processing. Responds 202 Accepted: processing is
// asynchronous and the client polls the status endpoint.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := getUserIDFromContext(r)
	if !ok {
		log.Warn("user ID not found in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "User ID not found or invalid")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+1024)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		log.Debug("failed to parse multipart form", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusRequestEntityTooLarge,
			"Upload exceeds the 10MB size limit or is not valid multipart data")
		return
	}

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing file field in upload")
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Warn("failed to close uploaded file", slog.String("error", err.Error()))
		}
	}()

	fileType, err := domain.FileTypeFromFilename(header.Filename)
	if err != nil {
		log.Debug("rejected upload with unsupported extension",
			slog.String("filename", header.Filename))
		HandleAPIError(w, r, err, "")
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		log.Error("failed to read uploaded file", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}
	if len(content) == 0 {
		HandleAPIError(w, r, domain.ErrEmptyContent, "")
		return
	}

	doc, err := h.documentService.CreateDocumentAndEnqueueTask(
		r.Context(), userID, header.Filename, fileType, content)
	if err != nil {
		log.Error("failed to create document",
			slog.String("error", err.Error()),
			slog.String("user_id", userID))
		HandleAPIError(w, r, err, "")
		return
	}

	// The processing task may already be running; report the initial
	// status so clients always see the same shape for a fresh upload.
	shared.RespondWithJSON(w, r, http.StatusAccepted, UploadResponse{
		ID:       doc.ID,
		Filename: doc.Filename,
		Status:   string(domain.DocumentStatusPending),
		TaskID:   doc.TaskID,
		Message:  "Document accepted for processing",
	})
}

// GetDocument handles GET /documents/{id}.
// It returns the document's metadata and processing state, scoped to the
// authenticated user.
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, docID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	doc, err := h.documentService.GetDocumentForUser(r.Context(), docID, userID)
	if err != nil {
		if !errors.Is(err, service.ErrDocumentNotFound) {
			log.Error("failed to retrieve document",
				slog.String("error", err.Error()),
				slog.String("document_id", docID.String()))
		}
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newDocumentResponse(doc))
}

// GetDocumentStatus handles GET /documents/{id}/status.
// A lightweight polling endpoint: same lookup as GetDocument but the
// response carries only processing state, not content metadata.
func (h *DocumentHandler) GetDocumentStatus(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, docID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	doc, err := h.documentService.GetDocumentForUser(r.Context(), docID, userID)
	if err != nil {
		if !errors.Is(err, service.ErrDocumentNotFound) {
			log.Error("failed to retrieve document status",
				slog.String("error", err.Error()),
				slog.String("document_id", docID.String()))
		}
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newStatusResponse(doc))
}

// ListDocuments handles GET /documents.
// Supports optional ?status= filtering and limit/offset pagination.
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := getUserIDFromContext(r)
	if !ok {
		log.Warn("user ID not found in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "User ID not found or invalid")
		return
	}

	var statusFilter *domain.DocumentStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.DocumentStatus(raw)
		if !domain.IsValidDocumentStatus(status) {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid status filter")
			return
		}
		statusFilter = &status
	}

	limit, offset := shared.ParsePagination(r)

	docs, err := h.documentService.ListDocuments(r.Context(), userID, statusFilter, limit, offset)
	if err != nil {
		log.Error("failed to list documents",
			slog.String("error", err.Error()),
			slog.String("user_id", userID))
		HandleAPIError(w, r, err, "")
		return
	}

	resp := DocumentListResponse{
		Documents: make([]DocumentResponse, 0, len(docs)),
		Limit:     limit,
		Offset:    offset,
	}
	for _, doc := range docs {
		resp.Documents = append(resp.Documents, newDocumentResponse(doc))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// DeleteDocument handles DELETE /documents/{id}.
// It removes the document record and its stored artifact.
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, docID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	if err := h.documentService.DeleteDocument(r.Context(), docID, userID); err != nil {
		if !errors.Is(err, service.ErrDocumentNotFound) &&
			!errors.Is(err, service.ErrDocumentNotDeletable) {
			log.Error("failed to delete document",
				slog.String("error", err.Error()),
				slog.String("document_id", docID.String()))
		}
		HandleAPIError(w, r, err, "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
