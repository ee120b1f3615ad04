// Package export serialises documents for sharing.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zombor/docscan/internal/document"
)

// Format names an export representation
type Format string

const (
	FormatJSON     Format = "json"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatPDF      Format = "pdf"
	FormatXLSX     Format = "xlsx"
)

// Formats lists every supported Format
var Formats = []Format{FormatJSON, FormatText, FormatMarkdown, FormatCSV, FormatPDF, FormatXLSX}

// ErrUnsupportedFormat is returned for unknown format names
var ErrUnsupportedFormat = errors.New("unsupported export format")

var formatAliases = map[string]Format{
	"txt": FormatText,
	"md":  FormatMarkdown,
}

// ParseFormat converts a name or file extension into a Format
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "."))
	if f, ok := formatAliases[name]; ok {
		return f, nil
	}
	for _, f := range Formats {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the file extension of the format, without a dot
func (f Format) Extension() string {
	switch f {
	case FormatText:
		return "txt"
	case FormatMarkdown:
		return "md"
	default:
		return string(f)
	}
}

// Filename returns a download name for an export created at t
func (f Format) Filename(t time.Time) string {
	return fmt.Sprintf("scans-%s.%s", t.Format("20060102-150405"), f.Extension())
}

// Export renders docs in the given format. It does not modify docs.
func Export(docs []*document.Document, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return exportJSON(docs)
	case FormatText:
		return exportText(docs), nil
	case FormatMarkdown:
		return exportMarkdown(docs), nil
	case FormatCSV:
		return exportCSV(docs), nil
	case FormatPDF:
		return exportPDF(docs)
	case FormatXLSX:
		return exportXLSX(docs)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func timestamp(doc *document.Document) string {
	return doc.CreatedAt.Format(time.RFC3339)
}
