// Package remote backs up documents to a scan store and merges them back.
package remote

import (
	"context"
	"errors"
	"time"

	"github.com/zombor/docscan/internal/document"
	"github.com/zombor/docscan/internal/extract"
)

var (
	// ErrRemoteUnavailable is returned when the scan store cannot be reached
	ErrRemoteUnavailable = errors.New("remote scan store unavailable")
	// ErrRemoteOperationFailed is returned when the scan store rejects an operation
	ErrRemoteOperationFailed = errors.New("remote operation failed")
)

// ScanStore is a remote home for documents
type ScanStore interface {
	UploadScan(ctx context.Context, doc *document.Document) error
	FetchScans(ctx context.Context) ([]*document.Document, error)
}

// Record is a document as held by a scan store. RecordID belongs to the
// store and is unrelated to DocumentID.
type Record struct {
	RecordID   string         `json:"record_id"`
	DocumentID string         `json:"document_id"`
	CreatedAt  time.Time      `json:"created_at"`
	Text       string         `json:"text"`
	Fields     extract.Fields `json:"fields"`
	Summary    string         `json:"summary"`
	Tags       []string       `json:"tags"`
	Language   string         `json:"language"`
	Image      []byte         `json:"image,omitempty"`
	ImageFile  string         `json:"image_file,omitempty"`
}

// NewRecord copies doc into a record without a record id
func NewRecord(doc *document.Document) Record {
	return Record{
		DocumentID: doc.ID,
		CreatedAt:  doc.CreatedAt,
		Text:       doc.Text,
		Fields:     doc.Fields,
		Summary:    doc.Summary,
		Tags:       append([]string(nil), doc.Tags...),
		Language:   doc.Language,
		Image:      doc.Image,
	}
}

// Document rebuilds the document held by the record
func (r Record) Document() *document.Document {
	doc := document.New(r.DocumentID, r.CreatedAt, r.Image, r.Text, r.Fields, r.Summary)
	doc.AddTags(r.Tags...)
	doc.SetLanguage(r.Language)
	return doc
}

func documents(records []Record) []*document.Document {
	docs := make([]*document.Document, 0, len(records))
	for _, rec := range records {
		docs = append(docs, rec.Document())
	}
	return docs
}
