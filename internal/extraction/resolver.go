package extraction

import (
	"strings"

	"github.com/zombor/receipt-tracker/internal/scanning"
)

// Candidate is a raw value found in a model extraction. The zero value means
// nothing was found.
type Candidate struct {
	Value   any    `json:"value"`
	Present bool   `json:"present"`
	Source  string `json:"source,omitempty"` // Name of the rule that matched
}

// Candidates holds the raw values resolved for one document
type Candidates struct {
	Vendor Candidate `json:"vendor"`
	Amount Candidate `json:"amount"`
	Date   Candidate `json:"date"`
}

// Rule extracts one candidate value from a raw extraction.
// Extract reports false when the value is not there.
type Rule struct {
	Name    string
	Extract func(raw scanning.RawExtraction) (any, bool)
}

// FieldResolver finds candidate field values in a raw extraction
type FieldResolver interface {
	Resolve(raw scanning.RawExtraction) Candidates
}

// Resolver tries each field's rules in order; the first match wins
type Resolver struct {
	VendorRules []Rule
	AmountRules []Rule
	DateRules   []Rule
}

// NewResolver creates a Resolver for the CORD receipt layout
func NewResolver() *Resolver {
	return &Resolver{
		VendorRules: []Rule{MenuHeader("menu", "nm", "price", "cnt")},
		AmountRules: []Rule{
			Path("total", "total_price"),
			Path("paymentinfo", "price"),
		},
		DateRules: []Rule{Path("meta", "date")},
	}
}

// Resolve returns the first matching candidate for each field
func (r *Resolver) Resolve(raw scanning.RawExtraction) Candidates {
	return Candidates{
		Vendor: firstMatch(r.VendorRules, raw),
		Amount: firstMatch(r.AmountRules, raw),
		Date:   firstMatch(r.DateRules, raw),
	}
}

func firstMatch(rules []Rule, raw scanning.RawExtraction) Candidate {
	for _, rule := range rules {
		if value, ok := rule.Extract(raw); ok {
			return Candidate{Value: value, Present: true, Source: rule.Name}
		}
	}
	return Candidate{}
}

// Path returns a rule reading the leaf under the given keys. Every node on the
// way must be a mapping; a null leaf counts as missing.
func Path(keys ...string) Rule {
	return Rule{
		Name: strings.Join(keys, "."),
		Extract: func(raw scanning.RawExtraction) (any, bool) {
			var node any = map[string]any(raw)
			for _, key := range keys {
				m, ok := asMap(node)
				if !ok {
					return nil, false
				}
				if node, ok = m[key]; !ok {
					return nil, false
				}
			}
			return node, node != nil
		},
	}
}

// MenuHeader returns a rule picking the name of the first line item that has a
// name but neither a price nor a count. Such a row is the merchant header
// rather than a purchased item. A lone mapping is treated as a one-item list.
func MenuHeader(group, nameKey string, itemKeys ...string) Rule {
	return Rule{
		Name: group + "[]." + nameKey,
		Extract: func(raw scanning.RawExtraction) (any, bool) {
			var items []any
			switch node := raw[group].(type) {
			case []any:
				items = node
			case map[string]any:
				items = []any{node}
			default:
				return nil, false
			}

		next:
			for _, item := range items {
				entry, ok := asMap(item)
				if !ok {
					continue
				}
				name, ok := entry[nameKey]
				if !ok || name == nil {
					continue
				}
				for _, key := range itemKeys {
					if _, found := entry[key]; found {
						continue next
					}
				}
				return name, true
			}
			return nil, false
		},
	}
}

func asMap(node any) (map[string]any, bool) {
	switch m := node.(type) {
	case map[string]any:
		return m, true
	case scanning.RawExtraction:
		return m, true
	}
	return nil, false
}
