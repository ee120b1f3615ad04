package document

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/zombor/docscan/internal/extract"
	"github.com/zombor/docscan/internal/imageproc"
)

// DefaultLanguage is used until language detection has run
const DefaultLanguage = "en"

// Document is one processed scan
type Document struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Image     []byte         `json:"-"` // encoded image, nil for entries restored without image data
	Text      string         `json:"text"`
	Fields    extract.Fields `json:"fields"`
	Summary   string         `json:"summary"`
	Tags      []string       `json:"tags"`
	Language  string         `json:"language"`

	mu        sync.Mutex
	thumbnail []byte
}

// New creates a document with the default language and no tags
func New(id string, createdAt time.Time, image []byte, text string, fields extract.Fields, summary string) *Document {
	return &Document{
		ID:        id,
		CreatedAt: createdAt,
		Image:     image,
		Text:      text,
		Fields:    fields,
		Summary:   summary,
		Tags:      []string{},
		Language:  DefaultLanguage,
	}
}

// AddTags appends tags that are not already present, keeping insertion order.
// Tags are only extended before the document is shared.
func (d *Document) AddTags(tags ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || slices.Contains(d.Tags, tag) {
			continue
		}
		d.Tags = append(d.Tags, tag)
	}
}

// SetLanguage back-fills the detected language code
func (d *Document) SetLanguage(code string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if code == "" {
		code = DefaultLanguage
	}
	d.Language = code
}

// HasImage reports whether the document carries image data
func (d *Document) HasImage() bool {
	return len(d.Image) > 0
}

// Thumbnail returns the cached thumbnail, or nil if it has not been computed
func (d *Document) Thumbnail() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.thumbnail
}

// EnsureThumbnail computes the thumbnail once. It does nothing when a
// thumbnail already exists or when there is no source image.
func (d *Document) EnsureThumbnail(maxSide int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.thumbnail != nil || len(d.Image) == 0 {
		return nil
	}
	thumb, err := imageproc.Thumbnail(d.Image, maxSide)
	if err != nil {
		return fmt.Errorf("creating thumbnail for %s: %w", d.ID, err)
	}
	d.thumbnail = thumb
	return nil
}

// containsFold reports whether s contains substr, ignoring case
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// MatchesQuery reports whether the text, summary or extracted date contain
// query, ignoring case. An empty query matches every document.
func (d *Document) MatchesQuery(query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return true
	}
	return containsFold(d.Text, query) ||
		containsFold(d.Summary, query) ||
		containsFold(d.Fields.Date, query)
}
