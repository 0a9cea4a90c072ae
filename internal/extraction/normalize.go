package extraction

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// VendorFallback is used when no vendor-like entry is found
const VendorFallback = "N/A"

// DateLayouts are tried in order; the first that parses wins.
// YYYY-MM-DD first, then MM/DD/YYYY. Zero padding is optional.
var DateLayouts = []string{
	"2006-1-2",
	"1/2/2006",
}

// Fallback reasons
const (
	ReasonMissing     = "missing"
	ReasonNoDigits    = "no digits"
	ReasonMalformed   = "malformed number"
	ReasonNotText     = "not text"
	ReasonUnknownDate = "unrecognized date format"
)

// Normalized is a typed field value together with the candidate it came from.
// Fallback is set when Value is a default rather than the candidate's content.
type Normalized[T any] struct {
	Value     T
	Candidate Candidate
	Fallback  bool
	Reason    string
}

// Warning describes a field that fell back to its default value
type Warning struct {
	Field  string `json:"field"`
	Raw    any    `json:"raw"`
	Reason string `json:"reason"`
}

// Normalizer converts candidates into typed values. It never fails: parse
// problems produce the documented defaults with Fallback set.
type Normalizer struct {
	timeSource TimeSource
}

// NewNormalizer creates a Normalizer; today's date comes from timeSource
func NewNormalizer(timeSource TimeSource) *Normalizer {
	if timeSource == nil {
		timeSource = systemTimeSource{}
	}
	return &Normalizer{timeSource: timeSource}
}

// Vendor passes a present candidate through unchanged, else VendorFallback
func (n *Normalizer) Vendor(c Candidate) Normalized[any] {
	if !c.Present {
		return Normalized[any]{Value: VendorFallback, Candidate: c, Fallback: true, Reason: ReasonMissing}
	}
	return Normalized[any]{Value: c.Value, Candidate: c}
}

// Amount keeps only digits and decimal points and parses the rest. Signs are
// dropped, so the result is never negative.
func (n *Normalizer) Amount(c Candidate) Normalized[float64] {
	out := Normalized[float64]{Candidate: c}
	fallback := func(reason string) Normalized[float64] {
		out.Value, out.Fallback, out.Reason = 0, true, reason
		return out
	}

	if !c.Present {
		return fallback(ReasonMissing)
	}
	text, ok := scalarText(c.Value)
	if !ok {
		return fallback(ReasonMalformed)
	}
	cleaned := stripNonNumeric(text)
	if cleaned == "" {
		return fallback(ReasonNoDigits)
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return fallback(ReasonMalformed)
	}
	value := d.InexactFloat64()
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return fallback(ReasonMalformed)
	}

	out.Value = value
	return out
}

// Date parses the candidate with DateLayouts, falling back to today's date
func (n *Normalizer) Date(c Candidate) Normalized[time.Time] {
	out := Normalized[time.Time]{Candidate: c}
	fallback := func(reason string) Normalized[time.Time] {
		out.Value, out.Fallback, out.Reason = n.Today(), true, reason
		return out
	}

	if !c.Present {
		return fallback(ReasonMissing)
	}
	text, ok := c.Value.(string)
	if !ok {
		return fallback(ReasonNotText)
	}
	text = strings.TrimSpace(text)

	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			out.Value = t
			return out
		}
	}
	return fallback(ReasonUnknownDate)
}

// Today returns the processing date
func (n *Normalizer) Today() time.Time {
	return calendarDate(n.timeSource.Now())
}

// warning returns the Warning for a fallback, or false when the value was used as is
func (v Normalized[T]) warning(field string) (Warning, bool) {
	if !v.Fallback {
		return Warning{}, false
	}
	return Warning{Field: field, Raw: v.Candidate.Value, Reason: v.Reason}, true
}

// scalarText renders a scalar candidate as text. Floats are written without
// exponents so that stripping keeps every digit.
func scalarText(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		if strings.ContainsAny(v.String(), "eE") {
			if f, err := v.Float64(); err == nil {
				return strconv.FormatFloat(f, 'f', -1, 64), true
			}
		}
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	}
	return "", false
}

func stripNonNumeric(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, s)
}
