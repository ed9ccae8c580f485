package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careerdock/docflow-api/internal/api/shared"
	"github.com/careerdock/docflow-api/internal/domain"
	"github.com/careerdock/docflow-api/internal/service"
)

// fakeDocumentService is an in-memory service.DocumentService.
type fakeDocumentService struct {
	docs      map[uuid.UUID]*domain.Document
	createErr error
	deleteErr error
}

func newFakeDocumentService() *fakeDocumentService {
	return &fakeDocumentService{docs: make(map[uuid.UUID]*domain.Document)}
}

func (s *fakeDocumentService) CreateDocumentAndEnqueueTask(
	_ context.Context,
	userID, filename string,
	fileType domain.FileType,
	content []byte,
) (*domain.Document, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	doc, err := domain.NewDocument(userID, filename, fileType, int64(len(content)))
	if err != nil {
		return nil, err
	}
	doc.TaskID = uuid.NewString()
	s.docs[doc.ID] = doc
	return doc, nil
}

func (s *fakeDocumentService) GetDocument(_ context.Context, documentID uuid.UUID) (*domain.Document, error) {
	doc, ok := s.docs[documentID]
	if !ok {
		return nil, service.ErrDocumentNotFound
	}
	return doc, nil
}

func (s *fakeDocumentService) GetDocumentForUser(
	_ context.Context,
	documentID uuid.UUID,
	userID string,
) (*domain.Document, error) {
	doc, ok := s.docs[documentID]
	if !ok || doc.UserID != userID {
		return nil, service.ErrDocumentNotFound
	}
	return doc, nil
}

func (s *fakeDocumentService) UpdateDocument(_ context.Context, doc *domain.Document) error {
	s.docs[doc.ID] = doc
	return nil
}

func (s *fakeDocumentService) ListDocuments(
	_ context.Context,
	userID string,
	status *domain.DocumentStatus,
	_, _ int,
) ([]*domain.Document, error) {
	out := []*domain.Document{}
	for _, doc := range s.docs {
		if doc.UserID != userID {
			continue
		}
		if status != nil && doc.Status != *status {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

func (s *fakeDocumentService) DeleteDocument(_ context.Context, documentID uuid.UUID, userID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	doc, ok := s.docs[documentID]
	if !ok || doc.UserID != userID {
		return service.ErrDocumentNotFound
	}
	delete(s.docs, documentID)
	return nil
}

// Ensure fakeDocumentService implements service.DocumentService
var _ service.DocumentService = (*fakeDocumentService)(nil)

// newTestRouter wires the handler behind chi routing with a stub auth
// middleware that injects userID into the context.
func newTestRouter(svc service.DocumentService, userID string) http.Handler {
	handler := NewDocumentHandler(svc, nil)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if userID != "" {
				req = req.WithContext(shared.SetUserID(req.Context(), userID))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/documents/upload", handler.UploadDocument)
	r.Get("/documents", handler.ListDocuments)
	r.Get("/documents/{id}", handler.GetDocument)
	r.Get("/documents/{id}/status", handler.GetDocumentStatus)
	r.Delete("/documents/{id}", handler.DeleteDocument)
	return r
}

// multipartBody builds a multipart form with a single file field.
func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(uploadFormField, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestUploadDocument(t *testing.T) {
	t.Parallel()

	t.Run("accepts a valid upload", func(t *testing.T) {
		t.Parallel()

		svc := newFakeDocumentService()
		router := newTestRouter(svc, "user-1")

		body, contentType := multipartBody(t, "resume.pdf", []byte("%PDF-1.4 content"))
		req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
		req.Header.Set("Content-Type", contentType)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)

		var resp UploadResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEqual(t, uuid.Nil, resp.ID)
		assert.Equal(t, "resume.pdf", resp.Filename)
		assert.Equal(t, "pending", resp.Status)
		assert.NotEmpty(t, resp.TaskID)
		assert.Contains(t, svc.docs, resp.ID)
	})

	t.Run("requires authentication", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(newFakeDocumentService(), "")

		body, contentType := multipartBody(t, "resume.pdf", []byte("content"))
		req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
		req.Header.Set("Content-Type", contentType)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects unsupported extensions", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(newFakeDocumentService(), "user-1")

		body, contentType := multipartBody(t, "archive.zip", []byte("content"))
		req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
		req.Header.Set("Content-Type", contentType)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Unsupported file type")
	})

	t.Run("rejects empty files", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(newFakeDocumentService(), "user-1")

		body, contentType := multipartBody(t, "resume.pdf", nil)
		req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
		req.Header.Set("Content-Type", contentType)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "empty")
	})

	t.Run("rejects missing file field", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(newFakeDocumentService(), "user-1")

		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		require.NoError(t, writer.WriteField("note", "no file here"))
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/documents/upload", &buf)
		req.Header.Set("Content-Type", writer.FormDataContentType())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects oversized uploads", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(newFakeDocumentService(), "user-1")

		body, contentType := multipartBody(t, "resume.pdf", bytes.Repeat([]byte("a"), MaxUploadBytes+2048))
		req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
		req.Header.Set("Content-Type", contentType)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("maps service failures to 500", func(t *testing.T) {
		t.Parallel()

		svc := newFakeDocumentService()
		svc.createErr = errors.New("database down")
		router := newTestRouter(svc, "user-1")

		body, contentType := multipartBody(t, "resume.pdf", []byte("content"))
		req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
		req.Header.Set("Content-Type", contentType)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "database down", "internal details must not leak")
	})
}

func seedDocument(t *testing.T, svc *fakeDocumentService, userID string) *domain.Document {
	t.Helper()

	doc, err := domain.NewDocument(userID, "resume.pdf", domain.FileTypePDF, 1024)
	require.NoError(t, err)
	svc.docs[doc.ID] = doc
	return doc
}

func TestGetDocument(t *testing.T) {
	t.Parallel()

	t.Run("returns the document", func(t *testing.T) {
		t.Parallel()

		svc := newFakeDocumentService()
		doc := seedDocument(t, svc, "user-1")
		router := newTestRouter(svc, "user-1")

		req := httptest.NewRequest(http.MethodGet, "/documents/"+doc.ID.String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp DocumentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, doc.ID, resp.ID)
		assert.Equal(t, "pending", resp.Status)
		assert.Equal(t, "pdf", resp.FileType)
	})

	t.Run("hides other users' documents", func(t *testing.T) {
		t.Parallel()

		svc := newFakeDocumentService()
		doc := seedDocument(t, svc, "user-1")
		router := newTestRouter(svc, "user-2")

		req := httptest.NewRequest(http.MethodGet, "/documents/"+doc.ID.String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("rejects malformed IDs", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(newFakeDocumentService(), "user-1")

		req := httptest.NewRequest(http.MethodGet, "/documents/not-a-uuid", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("does not expose parsed content", func(t *testing.T) {
		t.Parallel()

		svc := newFakeDocumentService()
		doc := seedDocument(t, svc, "user-1")
		doc.Content = "SENSITIVE PARSED TEXT"
		router := newTestRouter(svc, "user-1")

		req := httptest.NewRequest(http.MethodGet, "/documents/"+doc.ID.String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "SENSITIVE PARSED TEXT")
	})
}

func TestGetDocumentStatus(t *testing.T) {
	t.Parallel()

	t.Run("returns only processing state", func(t *testing.T) {
		t.Parallel()

		svc := newFakeDocumentService()
		doc := seedDocument(t, svc, "user-1")
		doc.Filename = "resume.pdf"
		router := newTestRouter(svc, "user-1")

		req := httptest.NewRequest(http.MethodGet, "/documents/"+doc.ID.String()+"/status", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp StatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, doc.ID, resp.ID)
		assert.Equal(t, "pending", resp.Status)

		// The polling payload carries no file metadata.
		assert.NotContains(t, rec.Body.String(), "resume.pdf")
	})

	t.Run("hides other users' documents", func(t *testing.T) {
		t.Parallel()

		svc := newFakeDocumentService()
		doc := seedDocument(t, svc, "user-1")
		router := newTestRouter(svc, "user-2")

		req := httptest.NewRequest(http.MethodGet, "/documents/"+doc.ID.String()+"/status", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListDocuments(t *testing.T) {
	t.Parallel()

	t.Run("lists the user's documents", func(t *testing.T) {
		t.Parallel()

		svc := newFakeDocumentService()
		seedDocument(t, svc, "user-1")
		seedDocument(t, svc, "user-1")
		seedDocument(t, svc, "user-2")
		router := newTestRouter(svc, "user-1")

		req := httptest.NewRequest(http.MethodGet, "/documents", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp DocumentListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Documents, 2)
		assert.Equal(t, shared.DefaultPageLimit, resp.Limit)
		assert.Equal(t, 0, resp.Offset)
	})

	t.Run("filters by status", func(t *testing.T) {
		t.Parallel()

		svc := newFakeDocumentService()
		doc := seedDocument(t, svc, "user-1")
		doc.Status = domain.DocumentStatusCompleted
		seedDocument(t, svc, "user-1")
		router := newTestRouter(svc, "user-1")

		req := httptest.NewRequest(http.MethodGet, "/documents?status=completed", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp DocumentListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Documents, 1)
		assert.Equal(t, doc.ID, resp.Documents[0].ID)
	})

	t.Run("rejects unknown status filters", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(newFakeDocumentService(), "user-1")

		req := httptest.NewRequest(http.MethodGet, "/documents?status=bogus", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns an empty list rather than null", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(newFakeDocumentService(), "user-1")

		req := httptest.NewRequest(http.MethodGet, "/documents", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"documents":[]`)
	})
}

func TestDeleteDocument(t *testing.T) {
	t.Parallel()

	t.Run("deletes the document", func(t *testing.T) {
		t.Parallel()

		svc := newFakeDocumentService()
		doc := seedDocument(t, svc, "user-1")
		router := newTestRouter(svc, "user-1")

		req := httptest.NewRequest(http.MethodDelete, "/documents/"+doc.ID.String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.NotContains(t, svc.docs, doc.ID)
	})

	t.Run("conflicts while processing", func(t *testing.T) {
		t.Parallel()

		svc := newFakeDocumentService()
		doc := seedDocument(t, svc, "user-1")
		svc.deleteErr = service.ErrDocumentNotDeletable
		router := newTestRouter(svc, "user-1")

		req := httptest.NewRequest(http.MethodDelete, "/documents/"+doc.ID.String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "still being processed")
	})

	t.Run("missing document", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(newFakeDocumentService(), "user-1")

		req := httptest.NewRequest(http.MethodDelete, "/documents/"+uuid.NewString(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized},
		{"document not found", service.ErrDocumentNotFound, http.StatusNotFound},
		{"not deletable", service.ErrDocumentNotDeletable, http.StatusConflict},
		{"validation", domain.ErrValidation, http.StatusBadRequest},
		{"invalid id", domain.ErrInvalidID, http.StatusBadRequest},
		{"invalid file type", domain.ErrInvalidFileType, http.StatusBadRequest},
		{"empty content", domain.ErrEmptyContent, http.StatusBadRequest},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped service error", service.NewDocumentServiceError("op", "msg", io.ErrUnexpectedEOF), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err))
		})
	}
}
