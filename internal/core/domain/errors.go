package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Domain errors represent pipeline failures by category.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEncoding indicates the sparse encoder was unreachable or returned a
	// malformed response. Recoverable per chunk during ingestion, fatal for
	// a query.
	ErrEncoding = errors.New("encoding failed")

	// ErrStore indicates a search store operation failed.
	ErrStore = errors.New("search store error")

	// ErrGeneration indicates the language model was unreachable or failed.
	// Recovered at the answer boundary.
	ErrGeneration = errors.New("generation failed")
)

// EncodingError wraps a failed encoder call.
type EncodingError struct {
	// Op names the call, e.g. "encode". May be empty.
	Op    string
	Cause error
}

func (e *EncodingError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("encoding failed: %v", e.Cause)
	}
	return fmt.Sprintf("encoding failed: %s: %v", e.Op, e.Cause)
}

func (e *EncodingError) Unwrap() error { return e.Cause }

// Is matches ErrEncoding.
func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// StoreError wraps a failed search store operation.
type StoreError struct {
	// Op names the operation, e.g. "create index", "bulk", "search".
	Op    string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("search store %s: %v", e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error { return e.Cause }

// Is matches ErrStore.
func (e *StoreError) Is(target error) bool { return target == ErrStore }

// GenerationError wraps a failed language model call.
type GenerationError struct {
	// Op names the call, e.g. "generate", "stream", "ping". May be empty.
	Op    string
	Cause error
}

func (e *GenerationError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("generation failed: %v", e.Cause)
	}
	return fmt.Sprintf("generation failed: %s: %v", e.Op, e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

// Is matches ErrGeneration.
func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// Excerpt returns s cut to at most n runes, with "..." appended when cut.
// Invalid UTF-8 is replaced so the result is always safe to put in JSON.
func Excerpt(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
