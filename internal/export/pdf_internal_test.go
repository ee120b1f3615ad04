package export

import (
	"bytes"

	"github.com/go-pdf/fpdf"
	"github.com/ledongthuc/pdf"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("registerJPEG", func() {
	var doc *fpdf.Fpdf

	BeforeEach(func() {
		doc = fpdf.New("P", "pt", "A4", "")
		doc.AddPage()
	})

	It("should reject data fpdf cannot parse and leave the document usable", func() {
		Expect(registerJPEG(doc, "garbage", []byte("not an image"))).NotTo(Succeed())
		Expect(doc.Error()).NotTo(HaveOccurred())

		doc.SetFont("Helvetica", "", pdfFontSize)
		doc.MultiCell(200, pdfLineHeight, "Meeting notes", "", "L", false)

		var buf bytes.Buffer
		Expect(doc.Output(&buf)).To(Succeed())

		r, err := pdf.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		Expect(err).NotTo(HaveOccurred())
		Expect(r.NumPage()).To(Equal(1))
		text, err := r.Page(1).GetPlainText(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(ContainSubstring("Meeting"))
	})
})
