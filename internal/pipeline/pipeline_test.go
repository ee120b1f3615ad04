package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/docscan/internal/capture"
	"github.com/zombor/docscan/internal/document"
	"github.com/zombor/docscan/internal/nlp"
	"github.com/zombor/docscan/internal/scanning"
	"github.com/zombor/docscan/internal/settings"
)

func TestPipeline(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	RegisterFailHandler(Fail)
	RunSpecs(t, "Pipeline Suite")
}

type mockRecognizer struct {
	text string
	err  error

	mu    sync.Mutex
	calls int
	img   image.Image
	opts  scanning.Options
}

func (m *mockRecognizer) RecognizeText(_ context.Context, img image.Image, opts scanning.Options) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.img = img
	m.opts = opts
	return m.text, m.err
}

func (m *mockRecognizer) Close() error { return nil }

type mockDetector struct {
	code string
	seen []string
}

func (m *mockDetector) DetectLanguage(text string) string {
	m.seen = append(m.seen, text)
	return m.code
}

type mockEntities struct {
	entities []string
}

func (m *mockEntities) Entities(string) ([]string, error) {
	return m.entities, nil
}

type sequenceIDGenerator struct {
	next int
}

func (g *sequenceIDGenerator) Generate() string {
	g.next++
	return fmt.Sprintf("doc-%d", g.next)
}

type fixedTimeSource struct {
	now time.Time
}

func (t fixedTimeSource) Now() time.Time {
	return t.now
}

type mockUploader struct {
	err      error
	uploaded []string
}

func (m *mockUploader) Upload(_ context.Context, doc *document.Document) error {
	m.uploaded = append(m.uploaded, doc.ID)
	return m.err
}

type staticFolders []document.SmartFolder

func (f staticFolders) SmartFolders() []document.SmartFolder {
	return f
}

type mockPhotoSource struct {
	photo *capture.Photo
	err   error
}

func (m *mockPhotoSource) CapturePhoto(context.Context) (*capture.Photo, error) {
	return m.photo, m.err
}

func solidImage(c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func isGray(img image.Image) bool {
	r, g, b, _ := img.At(10, 10).RGBA()
	return r == g && g == b
}

const receiptText = "ACME Market\nReceipt\n2024-03-15\nTOTAL $12.50"

var _ = Describe("Pipeline", func() {
	var (
		ctx        context.Context
		store      *document.Store
		recognizer *mockRecognizer
		detector   *mockDetector
		entities   *mockEntities
		now        time.Time
		p          *Pipeline
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = document.NewStore()
		recognizer = &mockRecognizer{text: receiptText}
		detector = &mockDetector{code: "en"}
		entities = &mockEntities{entities: []string{"ACME Market"}}
		now = time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)
		p = NewWithDeps(store, recognizer, detector, nlp.NewTagger(entities), &sequenceIDGenerator{}, fixedTimeSource{now: now})
	})

	Describe("Process", func() {
		It("should reject a nil image", func() {
			_, err := p.Process(ctx, nil)
			Expect(err).To(MatchError(ErrNilImage))
			Expect(store.Len()).To(Equal(0))
			Expect(recognizer.calls).To(Equal(0))
		})

		It("should build and store a document from every stage", func() {
			doc, err := p.Process(ctx, solidImage(color.White))
			Expect(err).NotTo(HaveOccurred())

			Expect(doc.ID).To(Equal("doc-1"))
			Expect(doc.CreatedAt).To(Equal(now))
			Expect(doc.Text).To(Equal(receiptText))
			Expect(doc.Fields.Date).To(Equal("2024-03-15"))
			Expect(doc.Fields.Total).To(Equal("$12.50"))
			Expect(doc.Summary).To(HavePrefix("Date: 2024-03-15 | Total: $12.50\n"))
			Expect(doc.Tags).To(Equal([]string{"receipt", "acme market"}))
			Expect(doc.Language).To(Equal("en"))
			Expect(doc.HasImage()).To(BeTrue())
			Expect(doc.Thumbnail()).NotTo(BeEmpty())

			stored, ok := store.Get("doc-1")
			Expect(ok).To(BeTrue())
			Expect(stored).To(BeIdenticalTo(doc))
		})

		It("should insert later documents first", func() {
			_, err := p.Process(ctx, solidImage(color.White))
			Expect(err).NotTo(HaveOccurred())
			_, err = p.Process(ctx, solidImage(color.White))
			Expect(err).NotTo(HaveOccurred())

			docs := store.Documents()
			Expect(docs[0].ID).To(Equal("doc-2"))
			Expect(docs[1].ID).To(Equal("doc-1"))
		})

		It("should ask for accurate recognition with language correction", func() {
			p.SetConfig(Config{EdgeDetection: true, Languages: []string{"de-DE"}})
			_, err := p.Process(ctx, solidImage(color.White))
			Expect(err).NotTo(HaveOccurred())

			Expect(recognizer.opts.Level).To(Equal(scanning.LevelAccurate))
			Expect(recognizer.opts.LanguageCorrection).To(BeTrue())
			Expect(recognizer.opts.Languages).To(Equal([]string{"de-DE"}))
		})

		It("should continue with empty text when recognition fails", func() {
			recognizer.err = errors.New("model unavailable")
			detector.code = nlp.UnknownLanguage

			doc, err := p.Process(ctx, solidImage(color.White))
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Text).To(BeEmpty())
			Expect(doc.Fields.HasDate()).To(BeFalse())
			Expect(doc.Summary).To(BeEmpty())
			Expect(doc.Language).To(Equal(nlp.UnknownLanguage))
			Expect(detector.seen).To(Equal([]string{""}))
			Expect(store.Len()).To(Equal(1))
		})

		It("should enhance the image when edge detection is enabled", func() {
			_, err := p.Process(ctx, solidImage(color.RGBA{R: 200, G: 30, B: 30, A: 255}))
			Expect(err).NotTo(HaveOccurred())
			Expect(isGray(recognizer.img)).To(BeTrue())
		})

		It("should pass the original image through when edge detection is disabled", func() {
			cfg := p.Config()
			cfg.EdgeDetection = false
			p.SetConfig(cfg)

			original := solidImage(color.RGBA{R: 200, G: 30, B: 30, A: 255})
			_, err := p.Process(ctx, original)
			Expect(err).NotTo(HaveOccurred())
			Expect(recognizer.img).To(BeIdenticalTo(original))
		})

		Describe("cloud sync", func() {
			var uploader *mockUploader

			BeforeEach(func() {
				uploader = &mockUploader{}
				p.SetUploader(uploader)
			})

			It("should not upload while sync is disabled", func() {
				_, err := p.Process(ctx, solidImage(color.White))
				Expect(err).NotTo(HaveOccurred())
				Expect(uploader.uploaded).To(BeEmpty())
			})

			It("should upload when sync is enabled", func() {
				cfg := p.Config()
				cfg.CloudSync = true
				p.SetConfig(cfg)

				doc, err := p.Process(ctx, solidImage(color.White))
				Expect(err).NotTo(HaveOccurred())
				Expect(uploader.uploaded).To(Equal([]string{doc.ID}))
			})

			It("should keep the document when the upload fails", func() {
				cfg := p.Config()
				cfg.CloudSync = true
				p.SetConfig(cfg)
				uploader.err = errors.New("remote unavailable")

				_, err := p.Process(ctx, solidImage(color.White))
				Expect(err).NotTo(HaveOccurred())
				Expect(store.Len()).To(Equal(1))
			})
		})

		It("should leave folder membership to queries", func() {
			folder := document.SmartFolder{ID: "f", Name: "Receipts", Rules: []document.FilterRule{document.Contains("receipt")}}
			p.SetFolders(staticFolders{folder})

			doc, err := p.Process(ctx, solidImage(color.White))
			Expect(err).NotTo(HaveOccurred())
			Expect(store.FolderContents(&folder)).To(ConsistOf(doc))
		})
	})

	Describe("ProcessFile", func() {
		It("should decode and process a picked image", func() {
			var buf bytes.Buffer
			Expect(png.Encode(&buf, solidImage(color.White))).To(Succeed())

			doc, err := p.ProcessFile(ctx, buf.Bytes(), "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Text).To(Equal(receiptText))
		})

		It("should reject undecodable data", func() {
			_, err := p.ProcessFile(ctx, []byte("not an image"), "image/png")
			Expect(err).To(HaveOccurred())
			Expect(store.Len()).To(Equal(0))
		})
	})

	Describe("CaptureAndProcess", func() {
		It("should process the captured photo", func() {
			source := &mockPhotoSource{photo: &capture.Photo{Image: solidImage(color.White)}}
			doc, err := p.CaptureAndProcess(ctx, source)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.ID).To(Equal("doc-1"))
		})

		It("should surface capture errors", func() {
			source := &mockPhotoSource{err: capture.ErrCaptureInProgress}
			_, err := p.CaptureAndProcess(ctx, source)
			Expect(err).To(MatchError(capture.ErrCaptureInProgress))
			Expect(store.Len()).To(Equal(0))
		})
	})

	Describe("Config", func() {
		It("should default to edge detection without sync", func() {
			cfg := p.Config()
			Expect(cfg.EdgeDetection).To(BeTrue())
			Expect(cfg.CloudSync).To(BeFalse())
			Expect(cfg.ThumbnailSize).To(Equal(DefaultThumbnailSize))
			Expect(cfg.Languages).To(Equal(scanning.DefaultLanguages))
		})

		It("should fill in missing values", func() {
			p.SetConfig(Config{CloudSync: true})
			cfg := p.Config()
			Expect(cfg.CloudSync).To(BeTrue())
			Expect(cfg.EdgeDetection).To(BeFalse())
			Expect(cfg.ThumbnailSize).To(Equal(DefaultThumbnailSize))
			Expect(cfg.Languages).NotTo(BeEmpty())
		})

		It("should apply user settings and keep the rest", func() {
			p.SetConfig(Config{EdgeDetection: true, Languages: []string{"fr-FR"}, ThumbnailSize: 120})
			p.ApplySettings(settings.Settings{CloudSync: true, EdgeDetection: false})
			cfg := p.Config()
			Expect(cfg.CloudSync).To(BeTrue())
			Expect(cfg.EdgeDetection).To(BeFalse())
			Expect(cfg.Languages).To(Equal([]string{"fr-FR"}))
			Expect(cfg.ThumbnailSize).To(Equal(120))
		})
	})

	Describe("Metrics", func() {
		var metrics *Metrics

		scrape := func() string {
			rec := httptest.NewRecorder()
			metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			return rec.Body.String()
		}

		BeforeEach(func() {
			metrics = NewMetrics()
			p.SetMetrics(metrics)
		})

		It("should time every stage and count documents", func() {
			_, err := p.Process(ctx, solidImage(color.White))
			Expect(err).NotTo(HaveOccurred())

			body := scrape()
			for _, stage := range []string{"crop", "enhance", "recognize", "language", "extract", "tags", "summary", "construct"} {
				Expect(body).To(ContainSubstring(`docscan_pipeline_stage_duration_seconds_count{stage="%s"} 1`, stage))
			}
			Expect(body).To(ContainSubstring(`docscan_pipeline_documents_total{source="process"} 1`))
		})

		It("should count capture outcomes", func() {
			_, _ = p.CaptureAndProcess(ctx, &mockPhotoSource{err: capture.ErrCaptureInProgress})
			_, _ = p.CaptureAndProcess(ctx, &mockPhotoSource{err: fmt.Errorf("%w: sensor", capture.ErrCaptureFailed)})

			body := scrape()
			Expect(body).To(ContainSubstring(`docscan_capture_photos_total{outcome="in_progress"} 1`))
			Expect(body).To(ContainSubstring(`docscan_capture_photos_total{outcome="failed"} 1`))
		})
	})
})
