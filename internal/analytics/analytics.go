// Package analytics computes spend summaries over validated receipts.
package analytics

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-tracker/internal/extraction"
)

// Uncategorized is the category key used for receipts without a category
const Uncategorized = "Uncategorized"

// MonthLayout formats spend_over_time keys
const MonthLayout = "2006-01"

// Bucket is the total spend for one key
type Bucket struct {
	Key   string
	Total float64
}

// Breakdown is an ordered list of buckets. It marshals to a JSON object whose
// keys keep the slice order.
type Breakdown []Bucket

// MarshalJSON writes the buckets as a JSON object in slice order
func (b Breakdown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, bucket := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(bucket.Key)
		if err != nil {
			return nil, err
		}
		total, err := json.Marshal(bucket.Total)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(total)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Map returns the buckets keyed by Key
func (b Breakdown) Map() map[string]float64 {
	m := make(map[string]float64, len(b))
	for _, bucket := range b {
		m[bucket.Key] = bucket.Total
	}
	return m
}

// Keys returns the bucket keys in order
func (b Breakdown) Keys() []string {
	keys := make([]string, len(b))
	for i, bucket := range b {
		keys[i] = bucket.Key
	}
	return keys
}

// Snapshot is a summary of a set of receipts. It is derived on demand and
// never stored.
type Snapshot struct {
	TotalSpend      float64   `json:"total_spend"`
	AvgSpend        float64   `json:"avg_spend"`
	ReceiptCount    int       `json:"receipt_count"`
	SpendByCategory Breakdown `json:"spend_by_category"`
	SpendOverTime   Breakdown `json:"spend_over_time"`
}

// Aggregate summarizes receipts. Categories appear in order of first
// encounter; months are sorted ascending.
func Aggregate(receipts []extraction.CanonicalReceipt) Snapshot {
	snap := Snapshot{
		ReceiptCount:    len(receipts),
		SpendByCategory: Breakdown{},
		SpendOverTime:   Breakdown{},
	}
	if len(receipts) == 0 {
		return snap
	}

	total := decimal.Zero
	byCategory := newAccumulator()
	byMonth := newAccumulator()

	for _, r := range receipts {
		amount := decimal.NewFromFloat(r.Amount)
		total = total.Add(amount)

		category := r.CategoryOrEmpty()
		if category == "" {
			category = Uncategorized
		}
		byCategory.add(category, amount)

		if !r.TransactionDate.IsZero() {
			byMonth.add(r.TransactionDate.Format(MonthLayout), amount)
		}
	}

	snap.TotalSpend = total.InexactFloat64()
	snap.AvgSpend = total.Div(decimal.NewFromInt(int64(len(receipts)))).InexactFloat64()
	snap.SpendByCategory = byCategory.breakdown()
	snap.SpendOverTime = byMonth.breakdown()
	slices.SortStableFunc(snap.SpendOverTime, func(a, b Bucket) int {
		return strings.Compare(a.Key, b.Key)
	})

	return snap
}

type accumulator struct {
	keys   []string
	totals map[string]decimal.Decimal
}

func newAccumulator() *accumulator {
	return &accumulator{totals: make(map[string]decimal.Decimal)}
}

func (a *accumulator) add(key string, amount decimal.Decimal) {
	current, ok := a.totals[key]
	if !ok {
		a.keys = append(a.keys, key)
	}
	a.totals[key] = current.Add(amount)
}

func (a *accumulator) breakdown() Breakdown {
	out := make(Breakdown, 0, len(a.keys))
	for _, key := range a.keys {
		out = append(out, Bucket{Key: key, Total: a.totals[key].InexactFloat64()})
	}
	return out
}
