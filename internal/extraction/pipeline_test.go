package extraction

import (
	"context"
	"errors"
	"image"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-tracker/internal/scanning"
)

type mockModel struct {
	available bool
	result    scanning.Result
	calls     int
	prompt    string
}

func (m *mockModel) Available() bool {
	return m.available
}

func (m *mockModel) Analyze(_ context.Context, _ image.Image, taskPrompt string) scanning.Result {
	m.calls++
	m.prompt = taskPrompt
	return m.result
}

type spyResolver struct {
	calls int
}

func (s *spyResolver) Resolve(raw scanning.RawExtraction) Candidates {
	s.calls++
	return NewResolver().Resolve(raw)
}

var _ = Describe("Pipeline", func() {
	var (
		pipeline *Pipeline
		model    *mockModel
		resolver *spyResolver
		cfg      Config
		result   Result
		err      error
		img      image.Image
	)

	BeforeEach(func() {
		resolver = &spyResolver{}
		model = &mockModel{available: true}
		cfg = Config{
			DefaultCategory: "Dining",
			Resolver:        resolver,
			TimeSource:      fixedClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)},
		}
		img = image.NewRGBA(image.Rect(0, 0, 1, 1))
	})

	JustBeforeEach(func() {
		pipeline = NewPipeline(cfg)
		result, err = pipeline.Run(context.Background(), model, img)
	})

	When("the model extracts a full receipt", func() {
		BeforeEach(func() {
			model.result = scanning.Success(scanning.RawExtraction{
				"menu":  []any{map[string]any{"nm": "Cafe Luna"}},
				"total": map[string]any{"total_price": "$1,234.56"},
				"meta":  map[string]any{"date": "03/15/2024"},
			})
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should build the canonical receipt", func() {
			Expect(result.Receipt.Vendor).To(Equal("Cafe Luna"))
			Expect(result.Receipt.Amount).To(Equal(1234.56))
			Expect(result.Receipt.TransactionDate).To(Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))
			Expect(result.Receipt.CategoryOrEmpty()).To(Equal("Dining"))
		})

		It("should send the default task prompt", func() {
			Expect(model.prompt).To(Equal(scanning.DefaultTaskPrompt))
		})

		It("should not warn", func() {
			Expect(result.Warnings).To(BeEmpty())
		})
	})

	When("the model extracts nothing useful", func() {
		BeforeEach(func() {
			model.result = scanning.Success(scanning.RawExtraction{"menu": []any{}})
		})

		It("should use every default", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Receipt.Vendor).To(Equal(VendorFallback))
			Expect(result.Receipt.Amount).To(Equal(0.0))
			Expect(result.Receipt.TransactionDate).To(Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
		})

		It("should warn about each default", func() {
			Expect(result.Warnings).To(ConsistOf(
				HaveField("Field", "vendor"),
				HaveField("Field", "amount"),
				HaveField("Field", "transaction_date"),
			))
		})
	})

	When("the date is unparseable", func() {
		BeforeEach(func() {
			model.result = scanning.Success(scanning.RawExtraction{
				"menu":  []any{map[string]any{"nm": "Cafe Luna"}},
				"total": map[string]any{"total_price": "5"},
				"meta":  map[string]any{"date": "sometime in March"},
			})
		})

		It("should keep the raw value in the warning", func() {
			Expect(result.Warnings).To(ConsistOf(Warning{
				Field:  "transaction_date",
				Raw:    "sometime in March",
				Reason: ReasonUnknownDate,
			}))
		})
	})

	When("the vendor is not text", func() {
		BeforeEach(func() {
			model.result = scanning.Success(scanning.RawExtraction{
				"menu": []any{map[string]any{"nm": 12}},
			})
		})

		It("should fail validation", func() {
			Expect(err).To(MatchError(ErrValidationFailed))
		})
	})

	When("the model reports an error", func() {
		BeforeEach(func() {
			model.result = scanning.Failure("failed to parse model output", "not json")
		})

		It("should return an extraction error", func() {
			Expect(err).To(MatchError(ErrExtractionFailed))
			var xerr *ExtractionError
			Expect(errors.As(err, &xerr)).To(BeTrue())
			Expect(xerr.RawOutput).To(Equal("not json"))
		})

		It("should never resolve fields", func() {
			Expect(resolver.calls).To(BeZero())
		})
	})

	When("the model reports success without data", func() {
		BeforeEach(func() {
			model.result = scanning.Result{Status: scanning.StatusSuccess}
		})

		It("should return an extraction error", func() {
			Expect(err).To(MatchError(ErrExtractionFailed))
			Expect(resolver.calls).To(BeZero())
		})
	})

	When("the model is not available", func() {
		BeforeEach(func() {
			model.available = false
		})

		It("should return ErrModelUnavailable", func() {
			Expect(err).To(MatchError(ErrModelUnavailable))
		})

		It("should not call the model", func() {
			Expect(model.calls).To(BeZero())
		})
	})

	When("no default category is configured", func() {
		BeforeEach(func() {
			cfg.DefaultCategory = ""
			model.result = scanning.Success(scanning.RawExtraction{})
		})

		It("should leave the category unset", func() {
			Expect(result.Receipt.Category).To(BeNil())
		})
	})

	When("a custom prompt is configured", func() {
		BeforeEach(func() {
			cfg.TaskPrompt = "describe the receipt"
			model.result = scanning.Success(scanning.RawExtraction{})
		})

		It("should send it", func() {
			Expect(model.prompt).To(Equal("describe the receipt"))
		})
	})

	Describe("Extract", func() {
		It("should be idempotent", func() {
			raw := scanning.RawExtraction{
				"menu":  []any{map[string]any{"nm": "Cafe Luna"}},
				"total": map[string]any{"total_price": "$1,234.56"},
				"meta":  map[string]any{"date": "2024-03-15"},
			}
			first, err := pipeline.Extract(raw)
			Expect(err).NotTo(HaveOccurred())
			second, err := pipeline.Extract(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
		})
	})
})
