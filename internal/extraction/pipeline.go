package extraction

import (
	"context"
	"image"
	"log/slog"

	"github.com/zombor/receipt-tracker/internal/scanning"
)

// Model is the document model collaborator
type Model interface {
	Available() bool
	Analyze(ctx context.Context, img image.Image, taskPrompt string) scanning.Result
}

// Result is the outcome of one successful extraction
type Result struct {
	Receipt    CanonicalReceipt
	Candidates Candidates
	Warnings   []Warning
}

// Config configures a Pipeline. Zero values select the defaults.
type Config struct {
	TaskPrompt      string
	DefaultCategory string // Empty means no category
	Resolver        FieldResolver
	TimeSource      TimeSource
}

// Pipeline runs model output through resolution, normalization and validation
type Pipeline struct {
	taskPrompt      string
	defaultCategory string
	resolver        FieldResolver
	normalizer      *Normalizer
}

// NewPipeline creates a Pipeline
func NewPipeline(cfg Config) *Pipeline {
	if cfg.TaskPrompt == "" {
		cfg.TaskPrompt = scanning.DefaultTaskPrompt
	}
	if cfg.Resolver == nil {
		cfg.Resolver = NewResolver()
	}
	return &Pipeline{
		taskPrompt:      cfg.TaskPrompt,
		defaultCategory: cfg.DefaultCategory,
		resolver:        cfg.Resolver,
		normalizer:      NewNormalizer(cfg.TimeSource),
	}
}

// Ready returns ErrModelUnavailable unless the model can take requests
func (p *Pipeline) Ready(model Model) error {
	if model == nil || !model.Available() {
		return ErrModelUnavailable
	}
	return nil
}

// Run asks the model to analyze img and turns its output into a receipt.
// A non-success model status ends the run before any field is resolved.
func (p *Pipeline) Run(ctx context.Context, model Model, img image.Image) (Result, error) {
	if err := p.Ready(model); err != nil {
		return Result{}, err
	}

	res := model.Analyze(ctx, img, p.taskPrompt)
	if res.Status != scanning.StatusSuccess {
		slog.Warn("model extraction failed", "message", res.Message)
		return Result{}, &ExtractionError{Message: res.Message, RawOutput: res.RawOutput}
	}
	if res.Data == nil {
		return Result{}, &ExtractionError{Message: "model returned no data", RawOutput: res.RawOutput}
	}

	return p.Extract(res.Data)
}

// Extract resolves, normalizes and validates a raw extraction
func (p *Pipeline) Extract(raw scanning.RawExtraction) (Result, error) {
	candidates := p.resolver.Resolve(raw)

	vendor := p.normalizer.Vendor(candidates.Vendor)
	amount := p.normalizer.Amount(candidates.Amount)
	date := p.normalizer.Date(candidates.Date)

	var warnings []Warning
	if w, ok := vendor.warning("vendor"); ok {
		warnings = append(warnings, w)
	}
	if w, ok := amount.warning("amount"); ok {
		warnings = append(warnings, w)
	}
	if w, ok := date.warning("transaction_date"); ok {
		warnings = append(warnings, w)
	}

	var category any
	if p.defaultCategory != "" {
		category = p.defaultCategory
	}

	receipt, err := Validate(Fields{
		Vendor:          vendor.Value,
		TransactionDate: date.Value,
		Amount:          amount.Value,
		Category:        category,
	})
	if err != nil {
		return Result{}, err
	}

	slog.Debug("receipt extracted",
		"vendor", receipt.Vendor,
		"amount", receipt.Amount,
		"date", receipt.TransactionDate.Format("2006-01-02"),
		"fallbacks", len(warnings))

	return Result{Receipt: receipt, Candidates: candidates, Warnings: warnings}, nil
}
