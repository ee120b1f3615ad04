package export

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/go-pdf/fpdf"

	"github.com/zombor/docscan/internal/document"
	"github.com/zombor/docscan/internal/imageproc"
)

// Page layout in points on A4
const (
	pdfMargin        = 36.0
	pdfImageFraction = 0.6 // share of the printable height reserved for the image
	pdfTextGap       = 12.0
	pdfLineHeight    = 14.0
	pdfFontSize      = 11.0
	pdfMaxTextRunes  = 300
)

// truncateRunes cuts s to at most n runes
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// fitRect scales a w x h image into the box, keeping the aspect ratio, and
// centres it
func fitRect(w, h, boxX, boxY, boxW, boxH float64) (x, y, fw, fh float64) {
	scale := boxW / w
	if s := boxH / h; s < scale {
		scale = s
	}
	fw, fh = w*scale, h*scale
	return boxX + (boxW-fw)/2, boxY + (boxH-fh)/2, fw, fh
}

func exportPDF(docs []*document.Document) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, pageH := pdf.GetPageSize()
	boxW := pageW - 2*pdfMargin
	boxH := (pageH - 2*pdfMargin) * pdfImageFraction

	for _, doc := range docs {
		pdf.AddPage()
		textY := pdfMargin

		if doc.HasImage() {
			bottom, err := placeImage(pdf, doc, boxW, boxH)
			if err != nil {
				slog.Warn("Skipping document image in PDF export", "id", doc.ID, "error", err)
			} else {
				textY = bottom + pdfTextGap
			}
		}

		pdf.SetFont("Helvetica", "", pdfFontSize)
		pdf.SetXY(pdfMargin, textY)
		pdf.MultiCell(boxW, pdfLineHeight, tr(truncateRunes(doc.Text, pdfMaxTextRunes)), "", "L", false)

		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("rendering page for %s: %w", doc.ID, err)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// placeImage draws the document image in the upper box and returns its
// bottom edge
func placeImage(pdf *fpdf.Fpdf, doc *document.Document, boxW, boxH float64) (float64, error) {
	img, err := imageproc.Decode(doc.Image, "")
	if err != nil {
		return 0, err
	}
	data, err := imageproc.EncodeJPEG(img)
	if err != nil {
		return 0, err
	}

	if err := registerJPEG(pdf, doc.ID, data); err != nil {
		return 0, err
	}

	bounds := img.Bounds()
	x, y, w, h := fitRect(float64(bounds.Dx()), float64(bounds.Dy()), pdfMargin, pdfMargin, boxW, boxH)
	pdf.ImageOptions(doc.ID, x, y, w, h, false, jpegOptions, 0, "")
	return y + h, nil
}

var jpegOptions = fpdf.ImageOptions{ImageType: "JPG"}

// registerJPEG adds data to the image catalog under name. fpdf keeps the
// first error it sees and stops drawing, so a rejected image clears it
// to leave the rest of the document renderable.
func registerJPEG(pdf *fpdf.Fpdf, name string, data []byte) error {
	pdf.RegisterImageOptionsReader(name, jpegOptions, bytes.NewReader(data))
	if err := pdf.Error(); err != nil {
		pdf.ClearError()
		return err
	}
	return nil
}
