package receipt

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-tracker/internal/analytics"
	"github.com/zombor/receipt-tracker/internal/extraction"
)

var (
	// ErrUnsupportedFileType is returned for uploads outside the allowed extensions
	ErrUnsupportedFileType = errors.New("file type not allowed")
	// ErrUnreadableDocument is returned when an upload cannot be decoded to an image
	ErrUnreadableDocument = errors.New("unreadable document")
)

// AllowedExtensions lists the upload extensions the service accepts
var AllowedExtensions = []string{"png", "jpg", "jpeg", "pdf", "heic", "heif"}

// DefaultModelTimeout bounds a single model call
const DefaultModelTimeout = 2 * time.Minute

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Decoder turns an uploaded document into an image
type Decoder interface {
	Decode(data []byte, fileName string, contentType string) (image.Image, error)
}

// Extractor turns an image into a validated receipt using a model
type Extractor interface {
	Ready(model extraction.Model) error
	Run(ctx context.Context, model extraction.Model, img image.Image) (extraction.Result, error)
}

// Model is the model collaborator as seen by the service
type Model interface {
	extraction.Model
	Err() error
}

// ModelStatus reports whether the model can take requests
type ModelStatus struct {
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// Service handles receipt operations
type Service struct {
	db           DB
	storage      Storage
	model        Model
	decoder      Decoder
	extractor    Extractor
	idGenerator  IDGenerator
	timeSource   TimeSource
	modelTimeout time.Duration
}

// NewService creates a new Service with UUID IDs and the system clock
func NewService(db DB, storage Storage, model Model, decoder Decoder, extractor Extractor) *Service {
	return NewServiceWithDeps(db, storage, model, decoder, extractor, uuidGenerator{}, defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, model Model, decoder Decoder, extractor Extractor, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:           db,
		storage:      storage,
		model:        model,
		decoder:      decoder,
		extractor:    extractor,
		idGenerator:  idGen,
		timeSource:   timeSrc,
		modelTimeout: DefaultModelTimeout,
	}
}

// SetModelTimeout bounds each model call; zero or less disables the bound
func (s *Service) SetModelTimeout(d time.Duration) {
	s.modelTimeout = d
}

// AllowedFile reports whether filename has an accepted extension
func AllowedFile(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	return ext != "" && slices.Contains(AllowedExtensions, ext)
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// sanitizeFilename keeps letters, digits, spaces, hyphens and underscores in
// the base name, truncates it, and lowercases the extension
func sanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = unsafeChars.ReplaceAllString(base, "")
	base = whitespace.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	const maxLen = 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "receipt"
	}

	return base + strings.ToLower(ext)
}

// ProcessReceipt stores an uploaded document, extracts a receipt from it and
// saves the record. Nothing is left behind when any step fails.
func (s *Service) ProcessReceipt(ctx context.Context, filename string, data []byte, contentType string) (*Upload, error) {
	if !AllowedFile(filename) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, filepath.Ext(filename))
	}
	if err := s.extractor.Ready(s.model); err != nil {
		return nil, err
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()
	cleanFilename := sanitizeFilename(filename)

	storagePath, err := s.storage.Save(ctx, fmt.Sprintf("%s_%s", id, cleanFilename), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}
	cleanup := func() {
		if err := s.storage.Delete(context.WithoutCancel(ctx), storagePath); err != nil {
			slog.Warn("Failed to remove stored file", "path", storagePath, "error", err)
		}
	}

	img, err := s.decoder.Decode(data, cleanFilename, contentType)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	runCtx := ctx
	if s.modelTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.modelTimeout)
		defer cancel()
	}

	result, err := s.extractor.Run(runCtx, s.model, img)
	if err != nil {
		slog.Error("Failed to extract receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		cleanup()
		return nil, fmt.Errorf("extracting receipt: %w", err)
	}

	for _, w := range result.Warnings {
		slog.Warn("Field fell back to default", "id", id, "field", w.Field, "raw", w.Raw, "reason", w.Reason)
	}

	receipt := &Receipt{
		ID:               id,
		CanonicalReceipt: result.Receipt,
		FileName:         cleanFilename,
		StoragePath:      storagePath,
		ContentType:      contentType,
		UploadedAt:       now,
	}

	if err := s.db.SaveReceipt(receipt); err != nil {
		cleanup()
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	slog.Info("Receipt processed", "id", id, "vendor", receipt.Vendor, "amount", receipt.Amount)
	return &Upload{Receipt: receipt, Warnings: result.Warnings}, nil
}

// Sort keys accepted by ListOptions.SortBy
const (
	SortByTransactionDate = "transaction_date"
	SortByVendor          = "vendor"
	SortByAmount          = "amount"
)

// ListOptions filters and orders a receipt listing
type ListOptions struct {
	Query  string // Case-insensitive substring of vendor or category
	SortBy string // SortByVendor, SortByAmount, or SortByTransactionDate (default)
	Order  string // "asc" or "desc" (default)
}

func (o ListOptions) matches(r *Receipt) bool {
	q := strings.ToLower(strings.TrimSpace(o.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Vendor), q) ||
		strings.Contains(strings.ToLower(r.CategoryOrEmpty()), q)
}

func (o ListOptions) compare(a, b *Receipt) int {
	var c int
	switch o.SortBy {
	case SortByVendor:
		c = cmp.Compare(a.Vendor, b.Vendor)
	case SortByAmount:
		c = cmp.Compare(a.Amount, b.Amount)
	default:
		c = a.TransactionDate.Compare(b.TransactionDate)
	}
	if c == 0 {
		c = cmp.Compare(a.ID, b.ID)
	}
	if strings.EqualFold(o.Order, "asc") {
		return c
	}
	return -c
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns the receipts matching opts, sorted as opts asks
func (s *Service) ListReceipts(opts ListOptions) ([]*Receipt, error) {
	all, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	receipts := make([]*Receipt, 0, len(all))
	for _, r := range all {
		if opts.matches(r) {
			receipts = append(receipts, r)
		}
	}
	slices.SortFunc(receipts, opts.compare)
	return receipts, nil
}

// Analytics summarizes the receipts matching opts
func (s *Service) Analytics(opts ListOptions) (analytics.Snapshot, error) {
	receipts, err := s.ListReceipts(opts)
	if err != nil {
		return analytics.Snapshot{}, err
	}

	canonical := make([]extraction.CanonicalReceipt, len(receipts))
	for i, r := range receipts {
		canonical[i] = r.CanonicalReceipt
	}
	return analytics.Aggregate(canonical), nil
}

// ExportReceipts returns every receipt, newest transaction first
func (s *Service) ExportReceipts() ([]*Receipt, error) {
	return s.ListReceipts(ListOptions{SortBy: SortByTransactionDate, Order: "desc"})
}

// DeleteReceipt removes a receipt and its file
func (s *Service) DeleteReceipt(ctx context.Context, id string) error {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	if err := s.storage.Delete(ctx, receipt.StoragePath); err != nil {
		// The record goes even if the file is already gone
		slog.Warn("Failed to delete file", "path", receipt.StoragePath, "error", err)
	}

	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// GetReceiptFile retrieves the file data for a receipt
func (s *Service) GetReceiptFile(ctx context.Context, id string) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}

	data, err := s.storage.Get(ctx, receipt.StoragePath)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}

	return data, receipt.ContentType, nil
}

// ModelStatus reports whether uploads can be processed
func (s *Service) ModelStatus() ModelStatus {
	if s.model == nil {
		return ModelStatus{Error: extraction.ErrModelUnavailable.Error()}
	}
	if err := s.extractor.Ready(s.model); err != nil {
		status := ModelStatus{Error: err.Error()}
		if loadErr := s.model.Err(); loadErr != nil {
			status.Error = loadErr.Error()
		}
		return status
	}
	return ModelStatus{Available: true}
}
