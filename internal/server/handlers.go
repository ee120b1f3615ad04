package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/docscan/internal/document"
)

// maxUploadSize bounds picked files; phone photos can be large
const maxUploadSize = int64(50 << 20)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes v with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// jsonError writes an error response with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	writeJSON(w, code, map[string]string{"error": message})
}

// documentView is a document as listed by the API
type documentView struct {
	*document.Document
	HasImage bool `json:"has_image"`
	Selected bool `json:"selected"`
}

func (s *Server) view(doc *document.Document) documentView {
	return documentView{
		Document: doc,
		HasImage: doc.HasImage(),
		Selected: s.store.IsSelected(doc.ID),
	}
}

func (s *Server) views(docs []*document.Document) []documentView {
	out := make([]documentView, 0, len(docs))
	for _, doc := range docs {
		out = append(out, s.view(doc))
	}
	return out
}

// viewParams reads the filter and q query parameters
func viewParams(r *http.Request) (document.ScanFilter, string, error) {
	filter, err := document.ParseScanFilter(r.URL.Query().Get("filter"))
	if err != nil {
		return "", "", err
	}
	return filter, r.URL.Query().Get("q"), nil
}

// detectContentType falls back to the file extension when the part has no type
func detectContentType(contentType, filename string) string {
	if contentType == "" {
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".jpg", ".jpeg":
			contentType = "image/jpeg"
		case ".png":
			contentType = "image/png"
		case ".gif":
			contentType = "image/gif"
		case ".pdf":
			contentType = "application/pdf"
		case ".heic":
			contentType = "image/heic"
		case ".heif":
			contentType = "image/heif"
		default:
			contentType = "application/octet-stream"
		}
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// handleUploadScan processes a picked file
func (s *Server) handleUploadScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		jsonError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := detectContentType(header.Header.Get("Content-Type"), header.Filename)
	doc, err := s.pipeline.ProcessFile(r.Context(), data, contentType)
	if err != nil {
		slog.Error("Error processing scan", "filename", header.Filename, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, s.view(doc))
}

// handleListDocuments returns the filtered and searched documents
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	filter, query, err := viewParams(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.views(s.store.View(filter, query)))
}

// lookup resolves the {id} path value, writing a 404 when it is unknown
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*document.Document, bool) {
	doc, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		jsonError(w, "Document not found", http.StatusNotFound)
		return nil, false
	}
	return doc, true
}

// handleGetDocument returns a single document
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.view(doc))
}

// handleGetDocumentImage returns the processed image
func (s *Server) handleGetDocumentImage(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if !doc.HasImage() {
		jsonError(w, "Document has no image", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(doc.Image)
}

// handleGetDocumentThumbnail returns the thumbnail, computing it on first use
func (s *Server) handleGetDocumentThumbnail(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := doc.EnsureThumbnail(s.thumbnailSize); err != nil {
		slog.Error("Error creating thumbnail", "id", doc.ID, "error", err)
		jsonError(w, "Error creating thumbnail", http.StatusInternalServerError)
		return
	}
	thumb := doc.Thumbnail()
	if thumb == nil {
		jsonError(w, "Document has no image", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(thumb)
}

// handleDeleteDocument deletes one document
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if s.store.Delete(r.PathValue("id")) == 0 {
		jsonError(w, "Document not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteDocuments deletes a batch of documents by id
func (s *Server) handleDeleteDocuments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": s.store.Delete(req.IDs...)})
}

// handleClearDocuments removes every document
func (s *Server) handleClearDocuments(w http.ResponseWriter, r *http.Request) {
	s.store.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// handleToggleSelection flips the selection of one document
func (s *Server) handleToggleSelection(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	selected := s.store.ToggleSelection(doc.ID)
	writeJSON(w, http.StatusOK, map[string]any{"id": doc.ID, "selected": selected})
}

// handleSelectAll selects the current filtered view
func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	filter, query, err := viewParams(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"selected": s.store.SelectAll(filter, query)})
}

// handleListSelection returns the selected documents
func (s *Server) handleListSelection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.views(s.store.Selected()))
}

// handleClearSelection empties the selection
func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	s.store.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteSelection deletes the selected documents
func (s *Server) handleDeleteSelection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"deleted": s.store.DeleteSelected()})
}
