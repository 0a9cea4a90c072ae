package extraction

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// Fields are the normalized values of one document, before validation
type Fields struct {
	Vendor          any
	TransactionDate any
	Amount          any
	Category        any
}

// Validate checks normalized fields and builds a CanonicalReceipt from them.
// All failing fields are reported together in a *ValidationError.
func Validate(f Fields) (CanonicalReceipt, error) {
	var (
		out  CanonicalReceipt
		errs []FieldError
	)
	reject := func(field string, value any, reason string) {
		errs = append(errs, FieldError{Field: field, Value: value, Reason: reason})
	}

	switch v := f.Vendor.(type) {
	case string:
		switch {
		case !utf8.ValidString(v):
			reject("vendor", v, "must be valid text")
		case strings.TrimSpace(v) == "":
			reject("vendor", v, "must not be blank")
		default:
			out.Vendor = v
		}
	default:
		reject("vendor", f.Vendor, "must be text")
	}

	switch v := f.TransactionDate.(type) {
	case time.Time:
		if v.IsZero() {
			reject("transaction_date", v, "must be set")
		} else {
			out.TransactionDate = calendarDate(v)
		}
	default:
		reject("transaction_date", f.TransactionDate, "must be a date")
	}

	if amount, ok := toFloat(f.Amount); !ok {
		reject("amount", f.Amount, "must be a number")
	} else if math.IsNaN(amount) || math.IsInf(amount, 0) {
		reject("amount", f.Amount, "must be finite")
	} else if amount < 0 {
		reject("amount", f.Amount, "must not be negative")
	} else {
		out.Amount = amount
	}

	switch v := f.Category.(type) {
	case nil:
	case string:
		out.Category = &v
	case *string:
		if v != nil {
			c := *v
			out.Category = &c
		}
	default:
		reject("category", f.Category, "must be text or empty")
	}

	if len(errs) > 0 {
		return CanonicalReceipt{}, &ValidationError{Fields: errs}
	}
	return out, nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
