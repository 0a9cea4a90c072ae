package extraction

import (
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Validate", func() {
	var (
		fields  Fields
		receipt CanonicalReceipt
		err     error
	)

	BeforeEach(func() {
		fields = Fields{
			Vendor:          "Cafe Luna",
			TransactionDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			Amount:          12.5,
		}
	})

	JustBeforeEach(func() {
		receipt, err = Validate(fields)
	})

	When("every field is valid", func() {
		It("should build the receipt", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.Vendor).To(Equal("Cafe Luna"))
			Expect(receipt.Amount).To(Equal(12.5))
			Expect(receipt.TransactionDate).To(Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))
			Expect(receipt.Category).To(BeNil())
		})
	})

	When("the date carries a clock time", func() {
		BeforeEach(func() {
			fields.TransactionDate = time.Date(2024, 3, 15, 18, 45, 0, 0, time.FixedZone("PST", -8*3600))
		})

		It("should keep only the calendar date", func() {
			Expect(receipt.TransactionDate).To(Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))
		})
	})

	When("a category is given", func() {
		BeforeEach(func() {
			fields.Category = "Dining"
		})

		It("should set it", func() {
			Expect(receipt.CategoryOrEmpty()).To(Equal("Dining"))
		})
	})

	When("the category is a nil pointer", func() {
		BeforeEach(func() {
			var none *string
			fields.Category = none
		})

		It("should leave it unset", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.Category).To(BeNil())
		})
	})

	When("the amount is an int", func() {
		BeforeEach(func() {
			fields.Amount = 20
		})

		It("should accept it", func() {
			Expect(receipt.Amount).To(Equal(20.0))
		})
	})

	When("the vendor is not text", func() {
		BeforeEach(func() {
			fields.Vendor = 42
		})

		It("should reject the vendor", func() {
			Expect(err).To(MatchError(ErrValidationFailed))
			var verr *ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Fields).To(ConsistOf(HaveField("Field", "vendor")))
		})
	})

	When("the vendor is blank", func() {
		BeforeEach(func() {
			fields.Vendor = "   "
		})

		It("should reject the vendor", func() {
			Expect(err).To(MatchError(ContainSubstring("vendor must not be blank")))
		})
	})

	When("the date is missing", func() {
		BeforeEach(func() {
			fields.TransactionDate = nil
		})

		It("should reject the date", func() {
			Expect(err).To(MatchError(ContainSubstring("transaction_date must be a date")))
		})
	})

	When("the amount is negative", func() {
		BeforeEach(func() {
			fields.Amount = -1.0
		})

		It("should reject the amount", func() {
			Expect(err).To(MatchError(ContainSubstring("amount must not be negative")))
		})
	})

	When("the amount is not finite", func() {
		BeforeEach(func() {
			fields.Amount = math.Inf(1)
		})

		It("should reject the amount", func() {
			Expect(err).To(MatchError(ContainSubstring("amount must be finite")))
		})
	})

	When("several fields are invalid", func() {
		BeforeEach(func() {
			fields = Fields{Vendor: nil, TransactionDate: "2024-03-15", Amount: "12.50", Category: 7}
		})

		It("should report all of them", func() {
			var verr *ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Fields).To(HaveLen(4))
			Expect(receipt).To(Equal(CanonicalReceipt{}))
		})
	})
})
