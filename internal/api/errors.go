package api

import (
	"errors"
	"net/http"

	"github.com/careerdock/docflow-api/internal/domain"
	"github.com/careerdock/docflow-api/internal/service"
	"github.com/careerdock/docflow-api/internal/store"

	"github.com/careerdock/docflow-api/internal/api/shared"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authorization errors
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, service.ErrDocumentNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, service.ErrDocumentNotDeletable):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidFileType),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "Authentication required"

	case errors.Is(err, service.ErrDocumentNotFound),
		errors.Is(err, store.ErrNotFound):
		return "Document not found"

	case errors.Is(err, service.ErrDocumentNotDeletable):
		return "Document is still being processed and cannot be deleted"

	case errors.Is(err, domain.ErrInvalidFileType):
		return "Unsupported file type; accepted types are pdf, docx, txt and md"

	case errors.Is(err, domain.ErrEmptyContent):
		return "Uploaded file is empty"

	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid document ID"

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			return vErr.Error()
		}
		return "Invalid request"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes an error response using the error's mapped status
// code and a safe client-facing message. The overrideMessage, when
// non-empty, replaces the derived message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, overrideMessage string) {
	status := MapErrorToStatusCode(err)

	message := overrideMessage
	if message == "" {
		message = GetSafeErrorMessage(err)
	}

	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
