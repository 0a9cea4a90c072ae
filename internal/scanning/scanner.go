package scanning

import (
	"context"
	"image"
)

// RawExtraction is the nested key/value tree a model produced for one document.
// Numeric leaves are json.Number so their original text is kept.
type RawExtraction map[string]any

// Status reports whether a model call produced usable data
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the outcome of a single model call
type Result struct {
	Status    Status        `json:"status"`
	Data      RawExtraction `json:"data,omitempty"`
	Message   string        `json:"message,omitempty"`
	RawOutput string        `json:"raw_output,omitempty"`
}

// Success wraps extracted data in a successful Result
func Success(data RawExtraction) Result {
	return Result{Status: StatusSuccess, Data: data}
}

// Failure builds an error Result. rawOutput may be empty.
func Failure(message, rawOutput string) Result {
	return Result{Status: StatusError, Message: message, RawOutput: rawOutput}
}

// Analyzer defines the interface for document-understanding models
type Analyzer interface {
	// Analyze reads the image and returns the model's raw structured description of it
	Analyze(ctx context.Context, img image.Image, taskPrompt string) Result
	// Close closes the analyzer and releases resources
	Close() error
}
