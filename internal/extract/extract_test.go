package extract

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestExtract(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Extract Suite")
}

var _ = Describe("Extract", func() {
	var (
		text   string
		fields Fields
	)

	JustBeforeEach(func() {
		fields = Extract(text)
	})

	When("the text has no date or amount", func() {
		BeforeEach(func() {
			text = "Meeting notes\nDiscuss roadmap"
		})

		It("should leave both fields empty", func() {
			Expect(fields).To(Equal(Fields{}))
			Expect(fields.HasDate()).To(BeFalse())
			Expect(fields.HasTotal()).To(BeFalse())
		})
	})

	When("the text has both an ISO and a day-first date", func() {
		BeforeEach(func() {
			text = "Printed 06/11/2025\nDue 2025-11-06"
		})

		It("should prefer the ISO date", func() {
			Expect(fields.Date).To(Equal("2025-11-06"))
		})
	})

	When("the text has only a day-first date", func() {
		BeforeEach(func() {
			text = "Invoice date 24-12-2024"
		})

		It("should extract it", func() {
			Expect(fields.Date).To(Equal("24-12-2024"))
		})
	})

	When("the text has a written date", func() {
		BeforeEach(func() {
			text = "Issued on Mar 5, 2024 in Berlin"
		})

		It("should extract it", func() {
			Expect(fields.Date).To(Equal("Mar 5, 2024"))
		})
	})

	When("the text has a labeled grand total", func() {
		BeforeEach(func() {
			text = "Grand Total: $1,234.56 thank you"
		})

		It("should extract the amount with its currency", func() {
			Expect(fields.Total).To(Equal("$1,234.56"))
		})
	})

	When("the text has a subtotal and a labeled total", func() {
		BeforeEach(func() {
			text = "Subtotal £10.00\nTOTAL £12.00"
		})

		It("should extract the labeled total", func() {
			Expect(fields.Total).To(Equal("£12.00"))
		})
	})

	When("the label is followed by an unprefixed number", func() {
		BeforeEach(func() {
			text = "Amount due 12.00\nPaid €15.50"
		})

		It("should fall back to the first currency amount", func() {
			Expect(fields.Total).To(Equal("€15.50"))
		})
	})

	When("a label without an amount precedes the labeled total", func() {
		BeforeEach(func() {
			text = "Total items: 3\nMilk $4.00\nBread $3.00\nTotal: $7.00"
		})

		It("should extract the amount after the later label", func() {
			Expect(fields.Total).To(Equal("$7.00"))
		})
	})

	When("an amount label precedes a currency line and the grand total", func() {
		BeforeEach(func() {
			text = "Amount of items 2\nCash $20.00\nGrand Total: $12.00"
		})

		It("should extract the grand total", func() {
			Expect(fields.Total).To(Equal("$12.00"))
		})
	})

	When("the text has only a bare amount", func() {
		BeforeEach(func() {
			text = "Coffee €42.00"
		})

		It("should extract the bare amount", func() {
			Expect(fields.Total).To(Equal("€42.00"))
		})
	})

	When("called twice with the same text", func() {
		BeforeEach(func() {
			text = "Receipt 2024-01-15 Total $9.99"
		})

		It("should return identical fields", func() {
			Expect(Extract(text)).To(Equal(fields))
		})
	})
})

var _ = Describe("Summarize", func() {
	It("should join the first five non-empty lines", func() {
		text := "one\n\n two \nthree\nfour\nfive\nsix"
		Expect(Summarize(text, Fields{})).To(Equal("one · two · three · four · five"))
	})

	It("should prefix a header when fields are present", func() {
		summary := Summarize("ACME Store\nThanks", Fields{Date: "2024-01-15", Total: "$9.99"})
		Expect(summary).To(Equal("Date: 2024-01-15 | Total: $9.99\nACME Store · Thanks"))
	})

	It("should return only the header when the text is blank", func() {
		Expect(Summarize("  \n", Fields{Total: "$1.00"})).To(Equal("Total: $1.00"))
	})

	It("should return an empty string when nothing is available", func() {
		Expect(Summarize("", Fields{})).To(BeEmpty())
	})
})
