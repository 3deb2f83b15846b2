package scanning

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/expensomatic/internal/expense"
)

var _ = Describe("parseReceiptJSON", func() {
	var (
		jsonInput string
		data      *ReceiptData
		err       error
	)

	JustBeforeEach(func() {
		data, err = parseReceiptJSON(jsonInput)
	})

	When("parsing valid JSON", func() {
		BeforeEach(func() {
			jsonInput = `{"amount": 12.50, "currency": "GBP", "category": "Lunch", "description": "Pret - sandwich", "date": "2024-09-30"}`
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps the amount as written", func() {
			Expect(data.Amount).To(Equal("12.50"))
		})

		It("should parse the remaining fields", func() {
			Expect(data.Currency).To(Equal("GBP"))
			Expect(data.Category).To(Equal("Lunch"))
			Expect(data.Date).To(Equal("2024-09-30"))
			Expect(data.Description).To(Equal("Pret - sandwich"))
		})
	})

	When("parsing JSON with markdown code blocks", func() {
		BeforeEach(func() {
			jsonInput = "```json\n{\"amount\": 10.5, \"currency\": \"EUR\", \"category\": \"Taxi\", \"date\": \"2024-01-15\"}\n```"
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should parse the date correctly", func() {
			Expect(data.Date).To(Equal("2024-01-15"))
		})
	})

	When("the amount is a string", func() {
		BeforeEach(func() {
			jsonInput = `{"amount": "£1,234.00", "currency": "GBP", "category": "Flights", "date": "2024-01-15"}`
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(data.Amount).To(Equal("£1,234.00"))
		})
	})

	DescribeTable("rejects incomplete answers as malformed",
		func(input string) {
			_, err := parseReceiptJSON(input)
			Expect(err).To(MatchError(ErrMalformed))
		},
		Entry("missing currency", `{"amount": 12.50, "category": "Lunch", "date": "2024-09-30"}`),
		Entry("missing amount", `{"currency": "GBP", "category": "Lunch", "date": "2024-09-30"}`),
		Entry("missing date", `{"amount": 12.50, "currency": "GBP", "category": "Lunch"}`),
		Entry("null date", `{"amount": 12.50, "currency": "GBP", "category": "Lunch", "date": null}`),
		Entry("empty currency", `{"amount": 12.50, "currency": "", "category": "Lunch", "date": "2024-09-30"}`),
		Entry("amount of the wrong type", `{"amount": true, "currency": "GBP", "category": "Lunch", "date": "2024-09-30"}`),
		Entry("not JSON", `invalid json`),
		Entry("truncated JSON", `{"amount": 12.50, "currency": "GBP"`),
	)

	When("the model reports it cannot read the receipt", func() {
		BeforeEach(func() {
			jsonInput = `{"error": "unreadable"}`
		})

		It("returns a refusal", func() {
			Expect(err).To(MatchError(ErrRefused))
		})
	})
})

var _ = Describe("toSuccess", func() {
	var (
		data    *ReceiptData
		success expense.Success
		known   bool
		err     error
	)

	BeforeEach(func() {
		data = &ReceiptData{
			Amount:      "42.10",
			Currency:    "eur",
			Category:    "Transport: Flights",
			Date:        "2024-04-17",
			Description: "Flight to Lisbon",
		}
	})

	JustBeforeEach(func() {
		success, known, err = toSuccess(data)
	})

	It("converts every field", func() {
		Expect(err).NotTo(HaveOccurred())
		Expect(success.Amount.StringFixed(2)).To(Equal("42.10"))
		Expect(success.Currency).To(Equal(expense.EUR))
		Expect(success.Category).To(Equal(expense.Flights))
		Expect(known).To(BeTrue())
		Expect(success.Date).To(Equal(time.Date(2024, 4, 17, 0, 0, 0, 0, time.UTC)))
		Expect(success.RawDescription).To(Equal("Flight to Lisbon"))
	})

	When("the category is unknown", func() {
		BeforeEach(func() {
			data.Category = "Spaceship"
		})

		It("falls back to Other", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(success.Category).To(Equal(expense.Other))
			Expect(known).To(BeFalse())
		})
	})

	When("the currency is unsupported", func() {
		BeforeEach(func() {
			data.Currency = "JPY"
		})

		It("is malformed", func() {
			Expect(err).To(MatchError(ErrMalformed))
		})
	})

	When("the amount carries a symbol and separators", func() {
		BeforeEach(func() {
			data.Amount = "€ 1,050.5"
		})

		It("strips them", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(success.Amount.StringFixed(2)).To(Equal("1050.50"))
		})
	})

	When("the amount is negative", func() {
		BeforeEach(func() {
			data.Amount = "-3.00"
		})

		It("is malformed", func() {
			Expect(err).To(MatchError(ErrMalformed))
		})
	})

	DescribeTable("date formats",
		func(input string, want time.Time) {
			data.Date = input
			s, _, err := toSuccess(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Date).To(Equal(want))
		},
		Entry("ISO", "2024-09-30", time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC)),
		Entry("slashes year first", "2024/09/30", time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC)),
		Entry("day first", "03/04/2024", time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC)),
		Entry("written", "30 September 2024", time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC)),
	)

	When("the date cannot be parsed", func() {
		BeforeEach(func() {
			data.Date = "yesterday"
		})

		It("is malformed rather than defaulted", func() {
			Expect(err).To(MatchError(ErrMalformed))
		})
	})
})

var _ = Describe("buildPrompt", func() {
	It("lists every category and currency", func() {
		prompt := buildPrompt()
		for _, name := range expense.CategoryNames() {
			Expect(prompt).To(ContainSubstring(name))
		}
		Expect(prompt).To(ContainSubstring(strings.Join(expense.SupportedCurrencies(), ", ")))
	})
})
