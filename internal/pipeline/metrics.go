package pipeline

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zombor/docscan/internal/capture"
)

// Metrics records pipeline and capture activity in a private registry.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	documents     *prometheus.CounterVec
	captures      *prometheus.CounterVec
	uploads       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docscan",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each processing stage in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)
	documents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docscan",
			Subsystem: "pipeline",
			Name:      "documents_total",
			Help:      "Documents produced by source.",
		},
		[]string{"source"},
	)
	captures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docscan",
			Subsystem: "capture",
			Name:      "photos_total",
			Help:      "Photo capture attempts by outcome.",
		},
		[]string{"outcome"},
	)
	uploads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docscan",
			Subsystem: "remote",
			Name:      "uploads_total",
			Help:      "Remote uploads by status.",
		},
		[]string{"status"},
	)

	registry.MustRegister(stageDuration, documents, captures, uploads)

	return &Metrics{
		registry:      registry,
		stageDuration: stageDuration,
		documents:     documents,
		captures:      captures,
		uploads:       uploads,
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry so other components can add collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) documentProduced(source string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(source).Inc()
}

func (m *Metrics) captureFinished(err error) {
	if m == nil {
		return
	}
	m.captures.WithLabelValues(captureOutcome(err)).Inc()
}

func (m *Metrics) uploadFinished(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.uploads.WithLabelValues(status).Inc()
}

func captureOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, capture.ErrCaptureInProgress):
		return "in_progress"
	case errors.Is(err, capture.ErrNoImageData):
		return "no_image"
	case errors.Is(err, capture.ErrNoDeviceAvailable), errors.Is(err, capture.ErrInputCreationFailed):
		return "unavailable"
	case errors.Is(err, capture.ErrCaptureFailed):
		return "failed"
	default:
		return "error"
	}
}
