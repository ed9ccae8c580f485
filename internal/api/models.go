package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/careerdock/docflow-api/internal/domain"
)

// Common request/response structures

// UploadResponse defines the 202 Accepted payload returned for a new
// document upload.
type UploadResponse struct {
	// ID is the unique identifier of the created document
	ID uuid.UUID `json:"id"`

	// Filename echoes the uploaded file's name
	Filename string `json:"filename"`

	// Status is the document's processing status at response time
	Status string `json:"status"`

	// TaskID identifies the background processing task
	TaskID string `json:"task_id,omitempty"`

	// Message is a human-readable confirmation
	Message string `json:"message"`
}

// DocumentResponse is the full document representation returned by the
// status and detail endpoints.
type DocumentResponse struct {
	ID                       uuid.UUID  `json:"id"`
	Filename                 string     `json:"filename"`
	FileType                 string     `json:"file_type"`
	SizeBytes                int64      `json:"size_bytes"`
	Status                   string     `json:"status"`
	DocumentType             string     `json:"document_type,omitempty"`
	ClassificationConfidence float64    `json:"classification_confidence,omitempty"`
	GraphNodeID              string     `json:"graph_node_id,omitempty"`
	OntologyVersion          string     `json:"ontology_version,omitempty"`
	ErrorMessage             string     `json:"error_message,omitempty"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
	ProcessedAt              *time.Time `json:"processed_at,omitempty"`
}

// StatusResponse is the lightweight polling payload returned by the
// status endpoint while a document moves through the pipeline.
type StatusResponse struct {
	ID                       uuid.UUID  `json:"id"`
	Status                   string     `json:"status"`
	DocumentType             string     `json:"document_type,omitempty"`
	ClassificationConfidence float64    `json:"classification_confidence,omitempty"`
	ErrorMessage             string     `json:"error_message,omitempty"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
	ProcessedAt              *time.Time `json:"processed_at,omitempty"`
}

// DocumentListResponse wraps a page of documents.
type DocumentListResponse struct {
	Documents []DocumentResponse `json:"documents"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

// newStatusResponse projects the polling view of a document.
func newStatusResponse(doc *domain.Document) StatusResponse {
	return StatusResponse{
		ID:                       doc.ID,
		Status:                   string(doc.Status),
		DocumentType:             string(doc.DocumentType),
		ClassificationConfidence: doc.ClassificationConfidence,
		ErrorMessage:             doc.ErrorMessage,
		CreatedAt:                doc.CreatedAt,
		UpdatedAt:                doc.UpdatedAt,
		ProcessedAt:              doc.ProcessedAt,
	}
}

// newDocumentResponse converts a domain document to its API representation.
// Parsed content is deliberately omitted; it can be large and the status
// surface is metadata only.
func newDocumentResponse(doc *domain.Document) DocumentResponse {
	return DocumentResponse{
		ID:                       doc.ID,
		Filename:                 doc.Filename,
		FileType:                 string(doc.FileType),
		SizeBytes:                doc.SizeBytes,
		Status:                   string(doc.Status),
		DocumentType:             string(doc.DocumentType),
		ClassificationConfidence: doc.ClassificationConfidence,
		GraphNodeID:              doc.GraphNodeID,
		OntologyVersion:          doc.OntologyVersion,
		ErrorMessage:             doc.ErrorMessage,
		CreatedAt:                doc.CreatedAt,
		UpdatedAt:                doc.UpdatedAt,
		ProcessedAt:              doc.ProcessedAt,
	}
}
