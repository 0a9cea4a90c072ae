package extraction

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModelUnavailable means the model collaborator never loaded
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrExtractionFailed means the model returned a non-success status
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrValidationFailed means a normalized field failed validation
	ErrValidationFailed = errors.New("validation failed")
)

// ExtractionError carries the model's diagnostics for a failed call
type ExtractionError struct {
	Message   string
	RawOutput string
}

func (e *ExtractionError) Error() string {
	if e.Message == "" {
		return "extraction failed"
	}
	return fmt.Sprintf("extraction failed: %s", e.Message)
}

func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtractionFailed
}

// FieldError describes one field that failed validation
type FieldError struct {
	Field  string `json:"field"`
	Value  any    `json:"value"`
	Reason string `json:"reason"`
}

// ValidationError lists every field that failed validation
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s %s (got %#v)", f.Field, f.Reason, f.Value))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
