package scanning

import (
	"context"
	"errors"
	"image"
	"log/slog"
)

const modelNotLoaded = "model is not loaded"

// Handle owns the process-wide model. It is loaded exactly once; a failed load
// leaves the handle permanently unavailable.
type Handle struct {
	analyzer Analyzer
	err      error
}

// Load runs loader once and returns the resulting handle. Load never fails:
// callers check Available or Err.
func Load(loader func() (Analyzer, error)) *Handle {
	analyzer, err := loader()
	if err == nil && analyzer == nil {
		err = errors.New("loader returned no model")
	}
	if err != nil {
		slog.Error("Failed to load model", "error", err)
		return &Handle{err: err}
	}
	slog.Info("Model loaded")
	return &Handle{analyzer: analyzer}
}

// Available reports whether the model loaded successfully
func (h *Handle) Available() bool {
	return h != nil && h.analyzer != nil
}

// Err returns the load error, if any
func (h *Handle) Err() error {
	if h == nil {
		return errors.New(modelNotLoaded)
	}
	return h.err
}

// Analyze forwards to the loaded model, or fails when none is loaded
func (h *Handle) Analyze(ctx context.Context, img image.Image, taskPrompt string) Result {
	if !h.Available() {
		return Failure(modelNotLoaded, "")
	}
	return h.analyzer.Analyze(ctx, img, taskPrompt)
}

// Close releases the model, if one was loaded
func (h *Handle) Close() error {
	if !h.Available() {
		return nil
	}
	return h.analyzer.Close()
}
