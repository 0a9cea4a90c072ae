package receipt

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
)

// CSVFilename is the attachment name of a CSV export
const CSVFilename = "receipts_export.csv"

const exportDateLayout = "2006-01-02"

// csvRow is one line of the CSV export. Category is written as stored, with
// no placeholder for receipts that have none.
type csvRow struct {
	ID         string `csv:"ID"`
	Vendor     string `csv:"Vendor"`
	Date       string `csv:"Date"`
	Amount     string `csv:"Amount"`
	Category   string `csv:"Category"`
	UploadedAt string `csv:"Uploaded At"`
}

// WriteCSV writes receipts as CSV with a header row, in the given order
func WriteCSV(w io.Writer, receipts []*Receipt) error {
	rows := make([]*csvRow, 0, len(receipts))
	for _, r := range receipts {
		rows = append(rows, &csvRow{
			ID:         r.ID,
			Vendor:     r.Vendor,
			Date:       r.TransactionDate.Format(exportDateLayout),
			Amount:     formatAmount(r.Amount),
			Category:   r.CategoryOrEmpty(),
			UploadedAt: r.UploadedAt.Format(time.RFC3339Nano),
		})
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

// FlatReceipt is the JSON export form of a receipt
type FlatReceipt struct {
	ID              string  `json:"id"`
	Vendor          string  `json:"vendor"`
	TransactionDate string  `json:"transaction_date"`
	Amount          float64 `json:"amount"`
	Category        *string `json:"category"`
	FileName        string  `json:"file_name"`
	UploadedAt      string  `json:"uploaded_at"`
}

// ToFlatObjects converts receipts to their JSON export form, in the given order
func ToFlatObjects(receipts []*Receipt) []FlatReceipt {
	out := make([]FlatReceipt, 0, len(receipts))
	for _, r := range receipts {
		out = append(out, FlatReceipt{
			ID:              r.ID,
			Vendor:          r.Vendor,
			TransactionDate: r.TransactionDate.Format(exportDateLayout),
			Amount:          r.Amount,
			Category:        r.Category,
			FileName:        r.FileName,
			UploadedAt:      r.UploadedAt.Format(time.RFC3339Nano),
		})
	}
	return out
}

// formatAmount writes the shortest text that parses back to the same float
func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
