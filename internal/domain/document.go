package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DocumentStatus represents the processing state of an uploaded document.
type DocumentStatus string

// Possible document status values
const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusUploading  DocumentStatus = "uploading"
	DocumentStatusValidating DocumentStatus = "validating"
	DocumentStatusParsing    DocumentStatus = "parsing"
	DocumentStatusInvalid    DocumentStatus = "invalid"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// DocumentType is the classification assigned to a document's content.
type DocumentType string

// Possible document type values
const (
	DocumentTypeResume         DocumentType = "resume"
	DocumentTypeJobDescription DocumentType = "job_description"
	DocumentTypeCoverLetter    DocumentType = "cover_letter"
	DocumentTypeOther          DocumentType = "other"
	DocumentTypeUnknown        DocumentType = "unknown"
)

// FileType identifies the upload file format.
type FileType string

// Supported file types for upload
const (
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
	FileTypeTXT  FileType = "txt"
	FileTypeMD   FileType = "md"
)

// MaxErrorMessageLength bounds the persisted error message for
// INVALID/FAILED documents so provider stack traces never bloat the record.
const MaxErrorMessageLength = 1000

// Common validation errors for Document
var (
	ErrEmptyDocumentID       = errors.New("document ID cannot be empty")
	ErrEmptyDocumentUserID   = errors.New("document user ID cannot be empty")
	ErrEmptyDocumentFilename = errors.New("document filename cannot be empty")
	ErrInvalidFileType       = errors.New("invalid file type")
	ErrInvalidDocumentStatus = errors.New("invalid document status")
	ErrInvalidTransition     = errors.New("invalid document status transition")
)

// statusTransitions defines the legal edges of the processing state machine:
//
//	pending -> uploading -> validating -> {invalid | parsing}
//	parsing -> {completed | failed}
//
// invalid, completed and failed are terminal for a given attempt. Failed is
// reachable from any in-flight stage because the orchestrator marks the
// document failed at its boundary regardless of which stage threw. A retried
// pipeline run restarts at validating, which is why validating is reachable
// from failed (the task runtime re-dispatches the whole pipeline).
var statusTransitions = map[DocumentStatus][]DocumentStatus{
	DocumentStatusPending:    {DocumentStatusUploading},
	DocumentStatusUploading:  {DocumentStatusValidating, DocumentStatusFailed},
	DocumentStatusValidating: {DocumentStatusInvalid, DocumentStatusParsing, DocumentStatusFailed},
	DocumentStatusParsing:    {DocumentStatusCompleted, DocumentStatusFailed},
	DocumentStatusFailed:     {DocumentStatusValidating},
}

// Document represents an uploaded file and its processing state. It tracks
// file metadata, the object storage reference, classification results, the
// parsed content, and an optional knowledge graph reference.
type Document struct {
	ID         uuid.UUID      `json:"id"`
	UserID     string         `json:"user_id"`
	Filename   string         `json:"filename"`
	FileType   FileType       `json:"file_type"`
	SizeBytes  int64          `json:"size_bytes"`
	StorageKey string         `json:"storage_key,omitempty"`
	Status     DocumentStatus `json:"status"`

	DocumentType             DocumentType `json:"document_type"`
	ClassificationConfidence float64      `json:"classification_confidence,omitempty"`
	Content                  string       `json:"content,omitempty"`

	GraphNodeID     string `json:"graph_node_id,omitempty"`
	OntologyVersion string `json:"ontology_version,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`
	TaskID       string `json:"task_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// NewDocument creates a new Document with pending status for the given
// user and file metadata. Returns an error if validation fails.
func NewDocument(userID, filename string, fileType FileType, sizeBytes int64) (*Document, error) {
	now := time.Now().UTC()
	doc := &Document{
		ID:           uuid.New(),
		UserID:       userID,
		Filename:     filename,
		FileType:     fileType,
		SizeBytes:    sizeBytes,
		Status:       DocumentStatusPending,
		DocumentType: DocumentTypeUnknown,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}

	return doc, nil
}

// Validate checks if the Document has valid data.
// Returns an error if any field fails validation.
func (d *Document) Validate() error {
	if d.ID == uuid.Nil {
		return ErrEmptyDocumentID
	}

	if d.UserID == "" {
		return ErrEmptyDocumentUserID
	}

	if d.Filename == "" {
		return ErrEmptyDocumentFilename
	}

	if !IsValidFileType(d.FileType) {
		return ErrInvalidFileType
	}

	if !IsValidDocumentStatus(d.Status) {
		return ErrInvalidDocumentStatus
	}

	return nil
}

// CanTransitionTo reports whether moving from the current status to the
// target status is a legal state machine edge.
func (d *Document) CanTransitionTo(status DocumentStatus) bool {
	for _, next := range statusTransitions[d.Status] {
		if next == status {
			return true
		}
	}
	return false
}

// TransitionTo moves the document to the target status, enforcing the
// state machine edges, and updates the UpdatedAt timestamp.
// ProcessedAt is set exactly when the document reaches completed.
// Returns ErrInvalidTransition if the edge is not defined.
func (d *Document) TransitionTo(status DocumentStatus) error {
	if !IsValidDocumentStatus(status) {
		return ErrInvalidDocumentStatus
	}

	if !d.CanTransitionTo(status) {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	d.Status = status
	d.UpdatedAt = now

	// A fresh validation pass supersedes any earlier failure; the stored
	// message would otherwise outlive a successful retry.
	if status == DocumentStatusValidating {
		d.ErrorMessage = ""
	}

	if status == DocumentStatusCompleted {
		d.ProcessedAt = &now
	}

	return nil
}

// IsTerminal reports whether the document's status is terminal for the
// current processing attempt. No further automatic pipeline action occurs
// from a terminal state (failed may still be retried by the task runtime).
func (d *Document) IsTerminal() bool {
	switch d.Status {
	case DocumentStatusInvalid, DocumentStatusCompleted, DocumentStatusFailed:
		return true
	default:
		return false
	}
}

// SetError records a truncated, non-sensitive error message on the document.
func (d *Document) SetError(msg string) {
	if len(msg) > MaxErrorMessageLength {
		msg = msg[:MaxErrorMessageLength]
	}
	d.ErrorMessage = msg
	d.UpdatedAt = time.Now().UTC()
}

// FileTypeFromFilename derives the file type from a filename's extension.
// Returns ErrInvalidFileType for unsupported or missing extensions.
func FileTypeFromFilename(filename string) (FileType, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	ft := FileType(ext)
	if !IsValidFileType(ft) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileType, ext)
	}
	return ft, nil
}

// IsValidFileType checks if the given file type is supported for upload.
func IsValidFileType(ft FileType) bool {
	switch ft {
	case FileTypePDF, FileTypeDOCX, FileTypeTXT, FileTypeMD:
		return true
	default:
		return false
	}
}

// IsTextFileType reports whether the file type can be decoded directly as
// text, without a conversion step.
func IsTextFileType(ft FileType) bool {
	return ft == FileTypeTXT || ft == FileTypeMD
}

// IsAcceptedDocumentType reports whether the classified type is one the
// system processes. Anything else sends the document to the invalid state.
func IsAcceptedDocumentType(dt DocumentType) bool {
	switch dt {
	case DocumentTypeResume, DocumentTypeJobDescription, DocumentTypeCoverLetter:
		return true
	default:
		return false
	}
}

// ContentType returns the MIME type to store alongside the artifact.
func (ft FileType) ContentType() string {
	switch ft {
	case FileTypePDF:
		return "application/pdf"
	case FileTypeDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FileTypeTXT:
		return "text/plain"
	case FileTypeMD:
		return "text/markdown"
	default:
		return "application/octet-stream"
	}
}

// IsValidDocumentStatus checks if the given status is a valid DocumentStatus.
func IsValidDocumentStatus(status DocumentStatus) bool {
	switch status {
	case DocumentStatusPending, DocumentStatusUploading, DocumentStatusValidating,
		DocumentStatusParsing, DocumentStatusInvalid, DocumentStatusCompleted,
		DocumentStatusFailed:
		return true
	default:
		return false
	}
}
