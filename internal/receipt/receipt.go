package receipt

import (
	"time"

	"github.com/zombor/receipt-tracker/internal/extraction"
)

// Receipt is a stored receipt: the validated fields plus upload metadata.
// It is written once per successful upload and never updated.
type Receipt struct {
	ID string `json:"id"`
	extraction.CanonicalReceipt
	FileName    string    `json:"file_name"`    // Sanitized name of the uploaded file
	StoragePath string    `json:"storage_path"` // Key of the file in Storage
	ContentType string    `json:"content_type"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Upload is the result of processing one uploaded file
type Upload struct {
	Receipt  *Receipt             `json:"receipt"`
	Warnings []extraction.Warning `json:"warnings"`
}
