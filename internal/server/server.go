// Package server exposes the document pipeline over HTTP.
package server

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zombor/docscan/internal/capture"
	"github.com/zombor/docscan/internal/document"
	"github.com/zombor/docscan/internal/pipeline"
	"github.com/zombor/docscan/internal/remote"
	"github.com/zombor/docscan/internal/settings"
)

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// Camera is the capture device as seen by the API
type Camera interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Flip(ctx context.Context) error
	SetTorch(ctx context.Context, on bool) error
	CapturePhoto(ctx context.Context) (*capture.Photo, error)
	Position(ctx context.Context) capture.Position
	Running(ctx context.Context) bool
}

// RecordStore is the scan store this server hosts for other instances
type RecordStore interface {
	PutRecord(ctx context.Context, rec remote.Record) (remote.Record, error)
	Records(ctx context.Context) ([]remote.Record, error)
}

// Options wires the server's collaborators. Camera, Syncer, ScanHost and
// Metrics are optional; their endpoints report that they are unavailable.
type Options struct {
	Store         *document.Store
	Pipeline      *pipeline.Pipeline
	Settings      *settings.Manager
	Camera        Camera
	Syncer        *remote.Syncer
	ScanHost      RecordStore
	Metrics       http.Handler
	BasicAuth     BasicAuth
	ThumbnailSize int
}

// Server handles HTTP requests for documents
type Server struct {
	store         *document.Store
	pipeline      *pipeline.Pipeline
	settings      *settings.Manager
	camera        Camera
	syncer        *remote.Syncer
	scanHost      RecordStore
	metrics       http.Handler
	basicAuth     BasicAuth
	thumbnailSize int
	mux           *http.ServeMux

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer creates a new Server with default mux
func NewServer(opts Options) *Server {
	return NewServerWithMux(opts, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(opts Options, mux *http.ServeMux) *Server {
	if opts.ThumbnailSize <= 0 {
		opts.ThumbnailSize = pipeline.DefaultThumbnailSize
	}
	s := &Server{
		store:         opts.Store,
		pipeline:      opts.Pipeline,
		settings:      opts.Settings,
		camera:        opts.Camera,
		syncer:        opts.Syncer,
		scanHost:      opts.ScanHost,
		metrics:       opts.Metrics,
		basicAuth:     opts.BasicAuth,
		thumbnailSize: opts.ThumbnailSize,
		mux:           mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers to responses and answers preflight requests
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="docscan"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	// Scans
	s.mux.HandleFunc("POST /api/scans", s.requireAuth(s.handleUploadScan))

	// Camera
	s.mux.HandleFunc("GET /api/camera", s.requireAuth(s.handleCameraStatus))
	s.mux.HandleFunc("POST /api/camera/capture", s.requireAuth(s.handleCapture))
	s.mux.HandleFunc("POST /api/camera/start", s.requireAuth(s.handleCameraStart))
	s.mux.HandleFunc("POST /api/camera/stop", s.requireAuth(s.handleCameraStop))
	s.mux.HandleFunc("POST /api/camera/flip", s.requireAuth(s.handleCameraFlip))
	s.mux.HandleFunc("POST /api/camera/torch", s.requireAuth(s.handleCameraTorch))

	// Documents (most specific paths first)
	s.mux.HandleFunc("GET /api/documents/{id}/image", s.requireAuth(s.handleGetDocumentImage))
	s.mux.HandleFunc("GET /api/documents/{id}/thumbnail", s.requireAuth(s.handleGetDocumentThumbnail))
	s.mux.HandleFunc("GET /api/documents/{id}", s.requireAuth(s.handleGetDocument))
	s.mux.HandleFunc("DELETE /api/documents/{id}", s.requireAuth(s.handleDeleteDocument))
	s.mux.HandleFunc("POST /api/documents/delete", s.requireAuth(s.handleDeleteDocuments))
	s.mux.HandleFunc("GET /api/documents", s.requireAuth(s.handleListDocuments))
	s.mux.HandleFunc("DELETE /api/documents", s.requireAuth(s.handleClearDocuments))

	// Selection
	s.mux.HandleFunc("POST /api/selection/all", s.requireAuth(s.handleSelectAll))
	s.mux.HandleFunc("POST /api/selection/{id}", s.requireAuth(s.handleToggleSelection))
	s.mux.HandleFunc("GET /api/selection", s.requireAuth(s.handleListSelection))
	s.mux.HandleFunc("DELETE /api/selection", s.requireAuth(s.handleClearSelection))
	s.mux.HandleFunc("DELETE /api/selection/documents", s.requireAuth(s.handleDeleteSelection))

	// Smart folders
	s.mux.HandleFunc("GET /api/folders/{id}/documents", s.requireAuth(s.handleFolderDocuments))
	s.mux.HandleFunc("DELETE /api/folders/{id}", s.requireAuth(s.handleDeleteFolder))
	s.mux.HandleFunc("GET /api/folders", s.requireAuth(s.handleListFolders))
	s.mux.HandleFunc("POST /api/folders", s.requireAuth(s.handleCreateFolder))

	// Export, settings and sync
	s.mux.HandleFunc("GET /api/export", s.requireAuth(s.handleExport))
	s.mux.HandleFunc("GET /api/settings", s.requireAuth(s.handleGetSettings))
	s.mux.HandleFunc("PUT /api/settings", s.requireAuth(s.handleUpdateSettings))
	s.mux.HandleFunc("POST /api/sync/pull", s.requireAuth(s.handleSyncPull))
	s.mux.HandleFunc("POST /api/sync/push", s.requireAuth(s.handleSyncPush))

	// Scan store hosted for other instances
	s.mux.HandleFunc("GET "+remote.ScansPath, s.requireAuth(s.handleListRecords))
	s.mux.HandleFunc("POST "+remote.ScansPath, s.requireAuth(s.handlePutRecord))

	s.mux.HandleFunc("GET /metrics", s.requireAuth(s.handleMetrics))
}

// Handler returns the mux wrapped with the CORS middleware
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.mux)
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = httpServer
	s.mu.Unlock()
	return httpServer.ListenAndServe()
}

// Shutdown stops accepting requests and waits for active ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()
	if httpServer == nil {
		return nil
	}
	if err := httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}
