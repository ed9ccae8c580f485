// Package service provides application-level services for managing
// documents and their processing lifecycle.
package service

import (
	"errors"
	"fmt"
)

// Common service errors - sentinel errors used across service implementations.
// Callers check for these with errors.Is(); the API layer maps them to HTTP
// status codes.
var (
	// ErrDocumentNotFound indicates that the document does not exist or is
	// not visible to the requesting user. API layer maps this to 404.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrDocumentNotDeletable indicates the document is mid-pipeline and
	// cannot be deleted until it reaches a terminal status. Maps to 409.
	ErrDocumentNotDeletable = errors.New("document is still being processed")
)

// DocumentServiceError wraps errors from the document service with context.
type DocumentServiceError struct {
	// Operation is the operation that failed (e.g., "create_document")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for DocumentServiceError.
func (e *DocumentServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("document service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("document service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *DocumentServiceError) Unwrap() error {
	return e.Err
}

// NewDocumentServiceError creates a new DocumentServiceError.
// It returns known sentinel errors directly without wrapping.
func NewDocumentServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrDocumentNotFound) || errors.Is(err, ErrDocumentNotDeletable) {
		return err
	}

	return &DocumentServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
