package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zombor/docscan/internal/document"
)

type jsonDocument struct {
	ID        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	Text      string  `json:"text"`
	Date      *string `json:"date"`
	Amount    *string `json:"amount"`
	Summary   string  `json:"summary"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func exportJSON(docs []*document.Document) ([]byte, error) {
	out := make([]jsonDocument, 0, len(docs))
	for _, doc := range docs {
		out = append(out, jsonDocument{
			ID:        doc.ID,
			Timestamp: timestamp(doc),
			Text:      doc.Text,
			Date:      optional(doc.Fields.Date),
			Amount:    optional(doc.Fields.Total),
			Summary:   doc.Summary,
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding json: %w", err)
	}
	return data, nil
}

const textSeparator = "----------------------------------------"

func exportText(docs []*document.Document) []byte {
	var b strings.Builder
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n" + textSeparator + "\n\n")
		}
		fmt.Fprintf(&b, "ID: %s\n", doc.ID)
		fmt.Fprintf(&b, "Scanned: %s\n", timestamp(doc))
		if doc.Fields.HasDate() {
			fmt.Fprintf(&b, "Date: %s\n", doc.Fields.Date)
		}
		if doc.Fields.HasTotal() {
			fmt.Fprintf(&b, "Total: %s\n", doc.Fields.Total)
		}
		b.WriteString("\n")
		b.WriteString(doc.Text)
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// codeFence returns a backtick fence longer than any run inside text
func codeFence(text string) string {
	fence := "```"
	for strings.Contains(text, fence) {
		fence += "`"
	}
	return fence
}

func exportMarkdown(docs []*document.Document) []byte {
	var b strings.Builder
	b.WriteString("# Scanned Documents\n")
	for _, doc := range docs {
		fmt.Fprintf(&b, "\n## %s\n\n", doc.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Fprintf(&b, "- **ID:** %s\n", doc.ID)
		if doc.Fields.HasDate() {
			fmt.Fprintf(&b, "- **Date:** %s\n", doc.Fields.Date)
		}
		if doc.Fields.HasTotal() {
			fmt.Fprintf(&b, "- **Total:** %s\n", doc.Fields.Total)
		}
		if len(doc.Tags) > 0 {
			fmt.Fprintf(&b, "- **Tags:** %s\n", strings.Join(doc.Tags, ", "))
		}
		if doc.Text != "" {
			fence := codeFence(doc.Text)
			fmt.Fprintf(&b, "\n%s\n%s\n%s\n", fence, doc.Text, fence)
		}
	}
	return []byte(b.String())
}

var csvHeader = []string{"id", "timestamp", "text", "date", "amount", "summary"}

// quoteCSV always quotes the field and doubles embedded quotes
func quoteCSV(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

func writeCSVRow(b *strings.Builder, fields []string) {
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quoteCSV(field))
	}
	b.WriteByte('\n')
}

func exportCSV(docs []*document.Document) []byte {
	var b strings.Builder
	writeCSVRow(&b, csvHeader)
	for _, doc := range docs {
		writeCSVRow(&b, []string{
			doc.ID,
			timestamp(doc),
			doc.Text,
			doc.Fields.Date,
			doc.Fields.Total,
			doc.Summary,
		})
	}
	return []byte(b.String())
}
