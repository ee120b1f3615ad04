package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zombor/docscan/internal/document"
	"github.com/zombor/docscan/internal/settings"
)

type folderView struct {
	document.SmartFolder
	Count int `json:"count"`
}

type createFolderRequest struct {
	Name  string                `json:"name"`
	Icon  string                `json:"icon"`
	Color string                `json:"color"`
	Rules []document.FilterRule `json:"rules"`
}

// handleListFolders returns the smart folders with their document counts
func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	folders := s.settings.SmartFolders()
	out := make([]folderView, 0, len(folders))
	for i := range folders {
		out = append(out, folderView{
			SmartFolder: folders[i],
			Count:       len(s.store.FolderContents(&folders[i])),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCreateFolder validates and persists a new smart folder
func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	folder, err := document.NewSmartFolder(req.Name, req.Icon, req.Color, req.Rules...)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.settings.AddFolder(*folder); err != nil {
		slog.Error("Error saving folder", "name", folder.Name, "error", err)
		jsonError(w, "Error saving folder", http.StatusInternalServerError)
		return
	}

	slog.Info("Smart folder created", "id", folder.ID, "name", folder.Name)
	writeJSON(w, http.StatusCreated, folderView{SmartFolder: *folder, Count: len(s.store.FolderContents(folder))})
}

// handleDeleteFolder removes a smart folder; documents are untouched
func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.settings.DeleteFolder(id); err != nil {
		if errors.Is(err, settings.ErrFolderNotFound) {
			jsonError(w, "Folder not found", http.StatusNotFound)
			return
		}
		slog.Error("Error deleting folder", "id", id, "error", err)
		jsonError(w, "Error deleting folder", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFolderDocuments returns the documents matching a folder's rules
func (s *Server) handleFolderDocuments(w http.ResponseWriter, r *http.Request) {
	folder, ok := s.settings.Folder(r.PathValue("id"))
	if !ok {
		jsonError(w, "Folder not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.views(s.store.FolderContents(&folder)))
}
