// Package extract pulls structured fields out of recognized document text.
package extract

import (
	"regexp"
	"strings"
)

// Fields holds the structured values found in a document's text.
// An empty string means the value was not found.
type Fields struct {
	Date  string `json:"date,omitempty"`
	Total string `json:"total,omitempty"`
}

// HasDate reports whether a date was extracted
func (f Fields) HasDate() bool { return f.Date != "" }

// HasTotal reports whether a total amount was extracted
func (f Fields) HasTotal() bool { return f.Total != "" }

const amountNumber = `\d{1,3}(?:[, ]\d{3})*(?:\.\d{2})?`

// datePatterns are tried in order; the first pattern with a match wins.
var datePatterns = []*regexp.Regexp{
	// ISO YYYY-MM-DD
	regexp.MustCompile(`\b\d{4}[-/.](?:0?[1-9]|1[0-2])[-/.](?:0?[1-9]|[12]\d|3[01])\b`),
	// DD-MM-YYYY
	regexp.MustCompile(`\b(?:0?[1-9]|[12]\d|3[01])[-/.](?:0?[1-9]|1[0-2])[-/.]\d{4}\b`),
	// MM-DD-YYYY
	regexp.MustCompile(`\b(?:0?[1-9]|1[0-2])[-/.](?:0?[1-9]|[12]\d|3[01])[-/.]\d{4}\b`),
	// Mon D, YYYY
	regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+\d{1,2},\s*\d{4}\b`),
}

var (
	labeledTotal = regexp.MustCompile(`(?i)\b(?:grand\s+total|total|amount|balance\s+due)\b[^\n€$£\d]{0,24}([€$£]\s?` + amountNumber + `)`)
	bareAmount   = regexp.MustCompile(`[€$£]\s?` + amountNumber)
)

// Extract finds the first date and the total amount in text. It is pure:
// the same text always yields the same Fields.
func Extract(text string) Fields {
	return Fields{
		Date:  findDate(text),
		Total: findTotal(text),
	}
}

func findDate(text string) string {
	for _, pattern := range datePatterns {
		if match := pattern.FindString(text); match != "" {
			return match
		}
	}
	return ""
}

func findTotal(text string) string {
	if groups := labeledTotal.FindStringSubmatch(text); groups != nil {
		return groups[1]
	}
	return bareAmount.FindString(text)
}

const (
	summaryLines     = 5
	summarySeparator = " · "
	headerSeparator  = " | "
)

// Summarize composes a short description from the first non-empty lines of
// text, prefixed by a header naming the extracted date and total if any.
func Summarize(text string, fields Fields) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == summaryLines {
			break
		}
	}
	head := strings.Join(lines, summarySeparator)

	var header []string
	if fields.HasDate() {
		header = append(header, "Date: "+fields.Date)
	}
	if fields.HasTotal() {
		header = append(header, "Total: "+fields.Total)
	}
	top := strings.Join(header, headerSeparator)

	switch {
	case top != "" && head != "":
		return top + "\n" + head
	case top != "":
		return top
	default:
		return head
	}
}
