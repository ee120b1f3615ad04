package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/zombor/docscan/internal/export"
	"github.com/zombor/docscan/internal/remote"
	"github.com/zombor/docscan/internal/settings"
)

// settingsView is the settings payload; smart folders have their own endpoints
type settingsView struct {
	CloudSync     bool `json:"cloud_sync"`
	EdgeDetection bool `json:"edge_detection"`
}

type updateSettingsRequest struct {
	CloudSync     *bool `json:"cloud_sync"`
	EdgeDetection *bool `json:"edge_detection"`
}

func newSettingsView(cur settings.Settings) settingsView {
	return settingsView{CloudSync: cur.CloudSync, EdgeDetection: cur.EdgeDetection}
}

// handleExport renders the selection, or the filtered view, in the requested format
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	docs := s.store.Selected()
	if selected, _ := strconv.ParseBool(r.URL.Query().Get("selected")); !selected {
		filter, query, err := viewParams(r)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		docs = s.store.View(filter, query)
	}

	data, err := export.Export(docs, format)
	if err != nil {
		slog.Error("Error exporting documents", "format", format, "error", err)
		jsonError(w, "Error exporting documents", http.StatusInternalServerError)
		return
	}

	slog.Info("Documents exported", "format", format, "count", len(docs))
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(time.Now())))
	w.Write(data)
}

// handleGetSettings returns the current preferences
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSettingsView(s.settings.Current()))
}

// handleUpdateSettings changes the fields present in the body
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := s.settings.Update(func(cur *settings.Settings) error {
		if req.CloudSync != nil {
			cur.CloudSync = *req.CloudSync
		}
		if req.EdgeDetection != nil {
			cur.EdgeDetection = *req.EdgeDetection
		}
		return nil
	})
	if err != nil {
		slog.Error("Error updating settings", "error", err)
		jsonError(w, "Error updating settings", http.StatusInternalServerError)
		return
	}

	slog.Info("Settings updated", "cloud_sync", updated.CloudSync, "edge_detection", updated.EdgeDetection)
	writeJSON(w, http.StatusOK, newSettingsView(updated))
}

// remoteStatus maps scan store errors onto HTTP status codes
func remoteStatus(err error) int {
	switch {
	case errors.Is(err, remote.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, remote.ErrRemoteOperationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// requireSync checks that a syncer exists and cloud sync is turned on
func (s *Server) requireSync(w http.ResponseWriter) bool {
	if s.syncer == nil {
		jsonError(w, "No scan store configured", http.StatusServiceUnavailable)
		return false
	}
	if !s.settings.Current().CloudSync {
		jsonError(w, "Cloud sync is disabled", http.StatusConflict)
		return false
	}
	return true
}

// handleSyncPull merges remote documents into the local store
func (s *Server) handleSyncPull(w http.ResponseWriter, r *http.Request) {
	if !s.requireSync(w) {
		return
	}
	added, err := s.syncer.Pull(r.Context())
	if err != nil {
		slog.Error("Error pulling documents", "error", err)
		jsonError(w, err.Error(), remoteStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

// handleSyncPush uploads every local document
func (s *Server) handleSyncPush(w http.ResponseWriter, r *http.Request) {
	if !s.requireSync(w) {
		return
	}
	pushed, err := s.syncer.Push(r.Context(), s.store.Documents())
	if err != nil {
		slog.Error("Error pushing documents", "pushed", pushed, "error", err)
		jsonError(w, err.Error(), remoteStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pushed": pushed})
}

// handleListRecords returns the records hosted for other instances
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	if s.scanHost == nil {
		jsonError(w, "Scan store not hosted", http.StatusNotFound)
		return
	}
	records, err := s.scanHost.Records(r.Context())
	if err != nil {
		slog.Error("Error listing records", "error", err)
		jsonError(w, "Error listing records", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []remote.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handlePutRecord stores a record uploaded by another instance
func (s *Server) handlePutRecord(w http.ResponseWriter, r *http.Request) {
	if s.scanHost == nil {
		jsonError(w, "Scan store not hosted", http.StatusNotFound)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	var rec remote.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if rec.DocumentID == "" {
		jsonError(w, "document_id is required", http.StatusBadRequest)
		return
	}

	stored, err := s.scanHost.PutRecord(r.Context(), rec)
	if err != nil {
		slog.Error("Error storing record", "document_id", rec.DocumentID, "error", err)
		jsonError(w, "Error storing record", http.StatusInternalServerError)
		return
	}
	stored.Image = nil
	writeJSON(w, http.StatusCreated, stored)
}

// handleMetrics serves the pipeline metrics when configured
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		http.NotFound(w, r)
		return
	}
	s.metrics.ServeHTTP(w, r)
}
