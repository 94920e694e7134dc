package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrTimeout indicates an external call exceeded its deadline. It is retryable.
	ErrTimeout = errors.New("external call timed out")

	// ErrStaleBatch indicates a chunk batch was prepared before the last reset.
	ErrStaleBatch = errors.New("chunk batch predates knowledge base reset")

	// ErrQueueFull indicates the ingestion queue cannot accept more jobs.
	ErrQueueFull = errors.New("ingestion queue is full")

	ErrQueueClosed = errors.New("ingestion queue is closed")

	// ErrNoFiles indicates a request carried no usable files.
	ErrNoFiles = errors.New("no valid files to process")

	// ErrNotInitialized indicates the knowledge base holds no monographs yet.
	ErrNotInitialized = errors.New("knowledge base not initialized")

	// ErrEmbeddingMismatch indicates vectors from a different embedding model or dimension.
	ErrEmbeddingMismatch = errors.New("embedding model mismatch")

	// ErrReasonerUnavailable indicates no reasoning credential was configured.
	ErrReasonerUnavailable = errors.New("reasoning service unavailable")
)

// ExtractionError reports an unreadable, corrupted or empty document. It is not retried.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Err)
	}
	return "extraction failed: " + e.Reason
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingError reports an embedding capability failure after retries.
type EmbeddingError struct {
	Attempts int
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// ReasoningError reports malformed structured output or a reasoning capability failure.
type ReasoningError struct {
	Attempts int
	Err      error
}

func (e *ReasoningError) Error() string {
	return fmt.Sprintf("reasoning failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ReasoningError) Unwrap() error { return e.Err }

// ConfigurationError reports a missing or invalid setting discovered at startup.
type ConfigurationError struct {
	Setting string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Setting, e.Message)
}
