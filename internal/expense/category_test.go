package expense

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("CanonicalizeCategory", func() {
	DescribeTable("mapping model output",
		func(input string, want Category, known bool) {
			got, ok := CanonicalizeCategory(input)
			Expect(got).To(Equal(want))
			Expect(ok).To(Equal(known))
		},
		Entry("exact name", "Lunch", Lunch, true),
		Entry("different case", "office supplies", OfficeSupplies, true),
		Entry("legacy transport label", "Transport: Flights", Flights, true),
		Entry("synonym", "Uber", Taxi, true),
		Entry("unknown", "Spa day", Other, false),
		Entry("empty", "  ", Other, false),
	)

	It("only accepts enum members as valid", func() {
		Expect(ClientMeal.IsValid()).To(BeTrue())
		Expect(Category("Hotel").IsValid()).To(BeFalse())
	})
})

var _ = Describe("ParseCurrency", func() {
	It("upper-cases supported codes", func() {
		c, err := ParseCurrency(" eur ")
		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(Equal(EUR))
		Expect(c.Symbol()).To(Equal("€"))
	})

	It("rejects unsupported codes", func() {
		_, err := ParseCurrency("JPY")
		Expect(err).To(MatchError(ContainSubstring("unsupported currency")))
	})
})
