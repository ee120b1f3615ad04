package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"regexp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/docscan/internal/document"
	"github.com/zombor/docscan/internal/nlp"
	"github.com/zombor/docscan/internal/pipeline"
	"github.com/zombor/docscan/internal/remote"
	"github.com/zombor/docscan/internal/scanning"
	"github.com/zombor/docscan/internal/server"
	"github.com/zombor/docscan/internal/settings"
)

type staticRecognizer string

func (s staticRecognizer) RecognizeText(context.Context, image.Image, scanning.Options) (string, error) {
	return string(s), nil
}

func (staticRecognizer) Close() error { return nil }

// instance is one running docscan server backed by real bolt databases
type instance struct {
	store    *document.Store
	pipeline *pipeline.Pipeline
	settings *settings.Manager
	repo     *settings.BoltRepository
	host     *remote.BoltStore
	ghttp    *ghttp.Server
}

func (i *instance) close() {
	i.ghttp.Close()
	i.repo.Close()
	if i.host != nil {
		i.host.Close()
	}
}

func serve(handler http.HandlerFunc) *ghttp.Server {
	gs := ghttp.NewServer()
	for _, method := range []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"} {
		gs.RouteToHandler(method, regexp.MustCompile(`.*`), handler)
	}
	return gs
}

// startInstance starts a server. A host keeps a scan store for others; a
// client syncs with the scan store at remoteURL.
func startInstance(dir, text string, host bool, remoteURL string) *instance {
	var err error
	inst := &instance{store: document.NewStore()}
	inst.pipeline = pipeline.New(inst.store, staticRecognizer(text), nlp.NewWhatlangDetector(), nlp.NewTagger(nil))

	inst.repo, err = settings.NewBoltRepository(filepath.Join(dir, "settings.db"))
	Expect(err).NotTo(HaveOccurred())
	inst.settings, err = settings.NewManager(inst.repo)
	Expect(err).NotTo(HaveOccurred())
	inst.pipeline.ApplySettings(inst.settings.Current())
	inst.settings.OnChange(inst.pipeline.ApplySettings)
	inst.pipeline.SetFolders(inst.settings)

	opts := server.Options{
		Store:     inst.store,
		Pipeline:  inst.pipeline,
		Settings:  inst.settings,
		BasicAuth: server.BasicAuth{Username: "sync", Password: "secret"},
	}

	if host {
		storage, err := remote.NewLocalStorage(filepath.Join(dir, "images"))
		Expect(err).NotTo(HaveOccurred())
		inst.host, err = remote.NewBoltStore(filepath.Join(dir, "remote.db"), storage)
		Expect(err).NotTo(HaveOccurred())
		opts.ScanHost = inst.host
	}
	if remoteURL != "" {
		client, err := remote.NewHTTPStore(remoteURL, "sync", "secret")
		Expect(err).NotTo(HaveOccurred())
		syncer := remote.NewSyncer(remote.NewResilient(client, remote.DefaultPolicy()), inst.store)
		inst.pipeline.SetUploader(syncer)
		opts.Syncer = syncer
	}

	srv := server.NewServer(opts)
	inst.ghttp = serve(srv.ServeHTTP)
	return inst
}

func (i *instance) do(method, path string, body []byte, contentType string) (*http.Response, []byte) {
	req, err := http.NewRequest(method, i.ghttp.URL()+path, bytes.NewReader(body))
	Expect(err).NotTo(HaveOccurred())
	req.SetBasicAuth("sync", "secret")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, data
}

func (i *instance) enableSync() {
	resp, _ := i.do("PUT", "/api/settings", []byte(`{"cloud_sync":true}`), "application/json")
	Expect(resp.StatusCode).To(Equal(http.StatusOK))
}

func (i *instance) upload(filename string, data []byte) map[string]any {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())

	resp, respBody := i.do("POST", "/api/scans", body.Bytes(), writer.FormDataContentType())
	Expect(resp.StatusCode).To(Equal(http.StatusCreated))
	var doc map[string]any
	Expect(json.Unmarshal(respBody, &doc)).To(Succeed())
	return doc
}

func samplePNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 120, 90))
	for y := 0; y < 90; y++ {
		for x := 0; x < 120; x++ {
			img.Set(x, y, color.RGBA{R: 240, G: 240, B: 235, A: 255})
		}
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

const invoiceText = "Invoice 1042\nDue 2024-04-01\nAmount due $300.00\nThank you for your business."

var _ = Describe("Integration", func() {
	var (
		hub    *instance
		phone  *instance
		tablet *instance
	)

	BeforeEach(func() {
		hub = startInstance(GinkgoT().TempDir(), "", true, "")
		phone = startInstance(GinkgoT().TempDir(), invoiceText, false, hub.ghttp.URL())
		tablet = startInstance(GinkgoT().TempDir(), "", false, hub.ghttp.URL())
	})

	AfterEach(func() {
		phone.close()
		tablet.close()
		hub.close()
	})

	It("should scan on one instance and pull it on another through the hub", func() {
		phone.enableSync()
		doc := phone.upload("invoice.png", samplePNG())
		Expect(doc["text"]).To(Equal(invoiceText))
		Expect(doc["tags"]).To(ContainElement("invoice"))

		records, err := hub.host.Records(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[0].DocumentID).To(Equal(doc["id"]))
		Expect(records[0].Image).NotTo(BeEmpty())

		tablet.enableSync()
		resp, data := tablet.do("POST", "/api/sync/pull", nil, "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(data)).To(MatchJSON(`{"added":1}`))

		pulled, ok := tablet.store.Get(doc["id"].(string))
		Expect(ok).To(BeTrue())
		Expect(pulled.Text).To(Equal(invoiceText))
		Expect(pulled.Fields.Total).To(Equal(records[0].Fields.Total))
		Expect(pulled.HasImage()).To(BeTrue())

		resp, _ = tablet.do("POST", "/api/sync/pull", nil, "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(tablet.store.Len()).To(Equal(1))
	})

	It("should not upload while cloud sync is off", func() {
		phone.upload("invoice.png", samplePNG())

		records, err := hub.host.Records(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(BeEmpty())
	})

	It("should push existing documents once sync is turned on", func() {
		phone.upload("invoice.png", samplePNG())
		phone.enableSync()

		resp, data := phone.do("POST", "/api/sync/push", nil, "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(data)).To(MatchJSON(`{"pushed":1}`))

		records, err := hub.host.Records(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
	})

	It("should keep settings across restarts", func() {
		dir := GinkgoT().TempDir()
		first := startInstance(dir, "", false, "")
		first.enableSync()
		resp, _ := first.do("POST", "/api/folders", []byte(`{"name":"Invoices","rules":[{"kind":"contains","value":"invoice"}]}`), "application/json")
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		first.close()

		second := startInstance(dir, "", false, "")
		defer second.close()
		Expect(second.settings.Current().CloudSync).To(BeTrue())
		Expect(second.pipeline.Config().CloudSync).To(BeTrue())
		Expect(second.settings.SmartFolders()).To(HaveLen(1))
		Expect(second.settings.SmartFolders()[0].Name).To(Equal("Invoices"))
	})

	It("should report an unreachable hub as unavailable", func() {
		hubURL := hub.ghttp.URL()
		hub.ghttp.Close()
		lonely := startInstance(GinkgoT().TempDir(), "", false, hubURL)
		defer lonely.close()
		lonely.enableSync()

		resp, _ := lonely.do("POST", "/api/sync/pull", nil, "")
		Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
	})
})
