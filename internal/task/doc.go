// Package task implements the background task runtime and the document
// processing pipeline that runs on it.
//
// The runtime consists of a persisted task store, a buffered in-memory
// queue, a worker pool with crash recovery and stuck-task detection, and a
// bounded retry policy. The document processing task drives one document
// through classification, parsing and best-effort graph conversion,
// updating the document record as it goes.
package task
