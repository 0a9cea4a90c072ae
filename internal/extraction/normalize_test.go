package extraction

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

var _ = Describe("Normalizer", func() {
	var (
		normalizer *Normalizer
		today      time.Time
	)

	BeforeEach(func() {
		normalizer = NewNormalizer(fixedClock{now: time.Date(2024, 6, 1, 15, 30, 0, 0, time.UTC)})
		today = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	})

	present := func(v any) Candidate {
		return Candidate{Value: v, Present: true}
	}

	Describe("Vendor", func() {
		It("should pass a found value through unchanged", func() {
			v := normalizer.Vendor(present("  Cafe Luna  "))
			Expect(v.Value).To(Equal("  Cafe Luna  "))
			Expect(v.Fallback).To(BeFalse())
		})

		It("should fall back to N/A", func() {
			v := normalizer.Vendor(Candidate{})
			Expect(v.Value).To(Equal(VendorFallback))
			Expect(v.Fallback).To(BeTrue())
			Expect(v.Reason).To(Equal(ReasonMissing))
		})
	})

	DescribeTable("Amount",
		func(c Candidate, expected float64, fallback bool) {
			v := normalizer.Amount(c)
			Expect(v.Value).To(Equal(expected))
			Expect(v.Fallback).To(Equal(fallback))
		},
		Entry("currency text", present("$1,234.56"), 1234.56, false),
		Entry("plain text", present("12.50"), 12.5, false),
		Entry("leading zeros", present("007.50"), 7.5, false),
		Entry("json number", present(json.Number("19.99")), 19.99, false),
		Entry("json number with exponent", present(json.Number("1.5e2")), 150.0, false),
		Entry("float", present(42.25), 42.25, false),
		Entry("int", present(3), 3.0, false),
		Entry("negative sign dropped", present("-5.00"), 5.0, false),
		Entry("european separators", present("1.234,56"), 1.23456, false),
		Entry("missing", Candidate{}, 0.0, true),
		Entry("no digits", present("N/A"), 0.0, true),
		Entry("two decimal points", present("1.2.3"), 0.0, true),
		Entry("lone decimal point", present("."), 0.0, true),
		Entry("not a scalar", present(map[string]any{"x": 1}), 0.0, true),
	)

	It("should report why the amount fell back", func() {
		Expect(normalizer.Amount(present("free")).Reason).To(Equal(ReasonNoDigits))
		Expect(normalizer.Amount(present("1.2.3")).Reason).To(Equal(ReasonMalformed))
	})

	DescribeTable("Date",
		func(c Candidate, expected time.Time, fallback bool) {
			v := normalizer.Date(c)
			Expect(v.Value).To(Equal(expected))
			Expect(v.Fallback).To(Equal(fallback))
		},
		Entry("ISO date", present("2024-03-15"), time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), false),
		Entry("US date", present("03/15/2024"), time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), false),
		Entry("unpadded US date", present("3/5/2024"), time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), false),
		Entry("surrounding spaces", present(" 2024-03-15 "), time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), false),
	)

	It("should fall back to today for an unrecognized date", func() {
		v := normalizer.Date(present("15 March 2024"))
		Expect(v.Value).To(Equal(today))
		Expect(v.Fallback).To(BeTrue())
		Expect(v.Reason).To(Equal(ReasonUnknownDate))
	})

	It("should fall back to today for an impossible date", func() {
		Expect(normalizer.Date(present("2024-02-30")).Value).To(Equal(today))
	})

	It("should fall back to today for a missing date", func() {
		Expect(normalizer.Date(Candidate{}).Value).To(Equal(today))
	})

	It("should fall back to today for a non-text date", func() {
		v := normalizer.Date(present(json.Number("20240315")))
		Expect(v.Value).To(Equal(today))
		Expect(v.Reason).To(Equal(ReasonNotText))
	})

	It("should give the same answer every time", func() {
		c := present("$1,234.56")
		Expect(normalizer.Amount(c)).To(Equal(normalizer.Amount(c)))
		d := present("03/15/2024")
		Expect(normalizer.Date(d)).To(Equal(normalizer.Date(d)))
	})
})
