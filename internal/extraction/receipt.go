// Package extraction turns the loosely shaped output of a document model into
// a validated receipt record.
package extraction

import "time"

// CanonicalReceipt is a validated receipt record
type CanonicalReceipt struct {
	Vendor          string    `json:"vendor"`
	TransactionDate time.Time `json:"transaction_date"` // Calendar date at UTC midnight
	Amount          float64   `json:"amount"`
	Category        *string   `json:"category"`
}

// CategoryOrEmpty returns the category text, or "" when none is set
func (r CanonicalReceipt) CategoryOrEmpty() string {
	if r.Category == nil {
		return ""
	}
	return *r.Category
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type systemTimeSource struct{}

func (systemTimeSource) Now() time.Time {
	return time.Now()
}

// calendarDate drops the clock part of t, keeping its local year, month and day
func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
