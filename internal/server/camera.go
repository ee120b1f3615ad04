package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zombor/docscan/internal/capture"
)

// captureStatus maps capture errors onto HTTP status codes
func captureStatus(err error) int {
	switch {
	case errors.Is(err, capture.ErrCaptureInProgress):
		return http.StatusConflict
	case errors.Is(err, capture.ErrNoDeviceAvailable),
		errors.Is(err, capture.ErrInputCreationFailed),
		errors.Is(err, capture.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, capture.ErrCaptureFailed), errors.Is(err, capture.ErrNoImageData):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// requireCamera writes a 503 when no camera is configured
func (s *Server) requireCamera(w http.ResponseWriter) bool {
	if s.camera == nil {
		jsonError(w, "No camera configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *Server) cameraError(w http.ResponseWriter, operation string, err error) {
	slog.Error("Camera operation failed", "operation", operation, "error", err)
	jsonError(w, err.Error(), captureStatus(err))
}

// handleCameraStatus reports whether the session runs and which camera is active
func (s *Server) handleCameraStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireCamera(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"running":  s.camera.Running(r.Context()),
		"position": s.camera.Position(r.Context()).String(),
	})
}

// handleCapture takes a photo and processes it into a document
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if !s.requireCamera(w) {
		return
	}
	doc, err := s.pipeline.CaptureAndProcess(r.Context(), s.camera)
	if err != nil {
		s.cameraError(w, "capture", err)
		return
	}
	writeJSON(w, http.StatusCreated, s.view(doc))
}

// cameraAction runs a camera operation that has no response body
func (s *Server) cameraAction(operation string, action func(cam Camera, ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.requireCamera(w) {
			return
		}
		if err := action(s.camera, r.Context()); err != nil {
			s.cameraError(w, operation, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleCameraStart(w http.ResponseWriter, r *http.Request) {
	s.cameraAction("start", Camera.Start)(w, r)
}

func (s *Server) handleCameraStop(w http.ResponseWriter, r *http.Request) {
	s.cameraAction("stop", Camera.Stop)(w, r)
}

func (s *Server) handleCameraFlip(w http.ResponseWriter, r *http.Request) {
	s.cameraAction("flip", Camera.Flip)(w, r)
}

// handleCameraTorch turns the torch on or off
func (s *Server) handleCameraTorch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		On bool `json:"on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	s.cameraAction("torch", func(cam Camera, ctx context.Context) error {
		return cam.SetTorch(ctx, req.On)
	})(w, r)
}
