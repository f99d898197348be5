package types

import (
	"errors"
	"fmt"
)

// detailLimit bounds how much of a remote response body we keep in an
// error. Raw model output is for logs, not end users.
const detailLimit = 200

// ErrNoContext means the scope holds zero chunks. Surfaced to the
// caller as guidance, not as a server fault.
var ErrNoContext = errors.New("no documents indexed for this session, upload documents first")

// ErrEmptyResult means the model answered with syntactically valid but
// unusable output: zero flashcards or questions survived validation.
var ErrEmptyResult = errors.New("AI returned no usable entries")

type EmbeddingServiceError struct {
	Status int
	Detail string
}

func NewEmbeddingServiceError(status int, detail string) *EmbeddingServiceError {
	return &EmbeddingServiceError{Status: status, Detail: Truncate(detail, detailLimit)}
}

func (e *EmbeddingServiceError) Error() string {
	return fmt.Sprintf("embedding service error: status %d: %s", e.Status, e.Detail)
}

type GenerationServiceError struct {
	Status int
	Detail string
}

func NewGenerationServiceError(status int, detail string) *GenerationServiceError {
	return &GenerationServiceError{Status: status, Detail: Truncate(detail, detailLimit)}
}

func (e *GenerationServiceError) Error() string {
	return fmt.Sprintf("generation service error: status %d: %s", e.Status, e.Detail)
}

// ParseError means the extractor exhausted every recovery strategy.
type ParseError struct {
	Detail string
}

func NewParseError(raw string) *ParseError {
	return &ParseError{Detail: Truncate(raw, detailLimit)}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse AI output: %s", e.Detail)
}

func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
