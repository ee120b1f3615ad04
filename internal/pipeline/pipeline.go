// Package pipeline turns an image into a fully enriched document and hands
// it to the document store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/docscan/internal/capture"
	"github.com/zombor/docscan/internal/document"
	"github.com/zombor/docscan/internal/extract"
	"github.com/zombor/docscan/internal/imageproc"
	"github.com/zombor/docscan/internal/nlp"
	"github.com/zombor/docscan/internal/scanning"
	"github.com/zombor/docscan/internal/settings"
)

// DefaultThumbnailSize bounds the longest side of document thumbnails
const DefaultThumbnailSize = 300

// ErrNilImage is returned by Process when there is no image to process
var ErrNilImage = errors.New("no image to process")

// Config holds the settings a run reads when it starts
type Config struct {
	EdgeDetection bool
	CloudSync     bool
	Languages     []string
	ThumbnailSize int
}

// DefaultConfig enables edge detection and leaves cloud sync off
func DefaultConfig() Config {
	return Config{
		EdgeDetection: true,
		CloudSync:     false,
		Languages:     slices.Clone(scanning.DefaultLanguages),
		ThumbnailSize: DefaultThumbnailSize,
	}
}

// IDGenerator generates unique IDs for documents
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Uploader sends a finished document to the remote scan store
type Uploader interface {
	Upload(ctx context.Context, doc *document.Document) error
}

// FolderSource lists the user's smart folders
type FolderSource interface {
	SmartFolders() []document.SmartFolder
}

// PhotoSource takes a photo. *capture.Device implements it.
type PhotoSource interface {
	CapturePhoto(ctx context.Context) (*capture.Photo, error)
}

// Pipeline runs the processing stages in order. Runs may overlap; each
// inserts its document when it completes.
type Pipeline struct {
	store       *document.Store
	recognizer  scanning.Recognizer
	detector    nlp.LanguageDetector
	tagger      *nlp.Tagger
	idGenerator IDGenerator
	timeSource  TimeSource

	mu       sync.RWMutex
	config   Config
	uploader Uploader
	folders  FolderSource
	metrics  *Metrics
}

// New creates a Pipeline with UUID document ids and the wall clock
func New(store *document.Store, recognizer scanning.Recognizer, detector nlp.LanguageDetector, tagger *nlp.Tagger) *Pipeline {
	return NewWithDeps(store, recognizer, detector, tagger, uuidGenerator{}, defaultTimeSource{})
}

// NewWithDeps creates a Pipeline with custom dependencies for testing
func NewWithDeps(store *document.Store, recognizer scanning.Recognizer, detector nlp.LanguageDetector, tagger *nlp.Tagger, idGen IDGenerator, timeSrc TimeSource) *Pipeline {
	return &Pipeline{
		store:       store,
		recognizer:  recognizer,
		detector:    detector,
		tagger:      tagger,
		idGenerator: idGen,
		timeSource:  timeSrc,
		config:      DefaultConfig(),
	}
}

// Config returns the current settings
func (p *Pipeline) Config() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cfg := p.config
	cfg.Languages = slices.Clone(cfg.Languages)
	return cfg
}

// SetConfig replaces the settings used by runs that start afterwards
func (p *Pipeline) SetConfig(cfg Config) {
	if cfg.ThumbnailSize <= 0 {
		cfg.ThumbnailSize = DefaultThumbnailSize
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = slices.Clone(scanning.DefaultLanguages)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.config = cfg
}

// ApplySettings switches edge detection and cloud sync to the user's
// preferences, keeping the other values
func (p *Pipeline) ApplySettings(s settings.Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.config.EdgeDetection = s.EdgeDetection
	p.config.CloudSync = s.CloudSync
}

// SetUploader configures the remote store used when cloud sync is enabled
func (p *Pipeline) SetUploader(u Uploader) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploader = u
}

// SetFolders configures the smart folders consulted after ingestion
func (p *Pipeline) SetFolders(f FolderSource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.folders = f
}

// SetMetrics configures where stage timings and outcomes are recorded
func (p *Pipeline) SetMetrics(m *Metrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = m
}

func (p *Pipeline) collaborators() (Uploader, FolderSource, *Metrics) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.uploader, p.folders, p.metrics
}

// Process runs every stage on img, inserts the resulting document into the
// store and returns it. Stage failures fall back to the stage input, so
// the only error is a nil image.
func (p *Pipeline) Process(ctx context.Context, img image.Image) (*document.Document, error) {
	return p.process(ctx, img, "process")
}

// ProcessFile decodes a picked file and processes it
func (p *Pipeline) ProcessFile(ctx context.Context, data []byte, contentType string) (*document.Document, error) {
	img, err := imageproc.Decode(data, contentType)
	if err != nil {
		slog.Error("Failed to decode picked file",
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("decoding file: %w", err)
	}
	return p.process(ctx, img, "file")
}

// CaptureAndProcess takes a photo from source and processes it. Capture
// errors are returned unchanged.
func (p *Pipeline) CaptureAndProcess(ctx context.Context, source PhotoSource) (*document.Document, error) {
	_, _, metrics := p.collaborators()
	photo, err := source.CapturePhoto(ctx)
	metrics.captureFinished(err)
	if err != nil {
		return nil, err
	}
	return p.process(ctx, photo.Image, "camera")
}

func (p *Pipeline) process(ctx context.Context, img image.Image, source string) (*document.Document, error) {
	if img == nil {
		return nil, ErrNilImage
	}
	cfg := p.Config()
	uploader, folders, metrics := p.collaborators()

	timed := func(stage string, fn func()) {
		start := time.Now()
		fn()
		metrics.observeStage(stage, time.Since(start))
	}

	if cfg.EdgeDetection {
		timed("crop", func() { img = cropImage(img) })
		timed("enhance", func() { img = enhanceImage(img) })
	}

	var (
		text     string
		language string
		fields   extract.Fields
		tags     []string
		summary  string
	)
	timed("recognize", func() { text = p.recognize(ctx, img, cfg.Languages) })
	timed("language", func() { language = p.detector.DetectLanguage(text) })
	timed("extract", func() { fields = extract.Extract(text) })
	timed("tags", func() { tags = p.tagger.Tags(text) })
	timed("summary", func() { summary = extract.Summarize(text, fields) })

	var doc *document.Document
	timed("construct", func() {
		doc = p.construct(img, text, fields, summary, tags, language, cfg.ThumbnailSize)
		p.store.Insert(doc)
	})
	metrics.documentProduced(source)

	slog.Info("Document processed",
		"id", doc.ID,
		"source", source,
		"language", doc.Language,
		"tags", doc.Tags,
		"has_date", fields.HasDate(),
		"has_total", fields.HasTotal(),
	)

	if cfg.CloudSync && uploader != nil {
		timed("upload", func() {
			err := uploader.Upload(ctx, doc)
			metrics.uploadFinished(err)
			if err != nil {
				slog.Warn("Failed to upload document", "id", doc.ID, "error", err)
			}
		})
	}

	if folders != nil {
		categorize(doc, folders.SmartFolders())
	}

	return doc, nil
}

func cropImage(img image.Image) image.Image {
	cropped, ok := imageproc.Crop(img)
	if !ok {
		slog.Debug("No document outline found, keeping original image")
	}
	return cropped
}

func enhanceImage(img image.Image) image.Image {
	enhanced, err := imageproc.Enhance(img)
	if err != nil {
		slog.Warn("Failed to enhance image", "error", err)
		return img
	}
	return enhanced
}

func (p *Pipeline) recognize(ctx context.Context, img image.Image, languages []string) string {
	opts := scanning.Options{
		Level:              scanning.LevelAccurate,
		LanguageCorrection: true,
		Languages:          languages,
	}
	text, err := p.recognizer.RecognizeText(ctx, img, opts)
	if err != nil {
		slog.Error("Failed to recognize text", "error", err)
		return ""
	}
	return text
}

func (p *Pipeline) construct(img image.Image, text string, fields extract.Fields, summary string, tags []string, language string, thumbnailSize int) *document.Document {
	encoded, err := imageproc.EncodeJPEG(img)
	if err != nil {
		slog.Error("Failed to encode document image", "error", err)
	}

	doc := document.New(p.idGenerator.Generate(), p.timeSource.Now(), encoded, text, fields, summary)
	doc.AddTags(tags...)
	doc.SetLanguage(language)
	if err := doc.EnsureThumbnail(thumbnailSize); err != nil {
		slog.Warn("Failed to create thumbnail", "id", doc.ID, "error", err)
	}
	return doc
}

// categorize logs the folders doc belongs to. Membership itself is
// evaluated on every folder query.
func categorize(doc *document.Document, folders []document.SmartFolder) {
	for _, folder := range document.MatchingFolders(folders, doc) {
		slog.Info("Document matches smart folder", "id", doc.ID, "folder", folder.Name, "folder_id", folder.ID)
	}
}
