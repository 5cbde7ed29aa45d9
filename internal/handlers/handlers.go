package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-optimizer/internal/capability"
	"media-optimizer/internal/dispatch"
	"media-optimizer/internal/engine"
	"media-optimizer/internal/store"
)

// Prober reports encoder capabilities, normally the capability.Detector.
type Prober interface {
	Probe(ctx context.Context) capability.Map
}

// Handlers carries the dependencies of the HTTP API.
type Handlers struct {
	engine   *engine.Engine
	store    *store.Store
	queue    *dispatch.Queue
	detector Prober
	started  time.Time
}

// New creates the API handlers.
func New(eng *engine.Engine, s *store.Store, queue *dispatch.Queue, detector Prober) *Handlers {
	return &Handlers{
		engine:   eng,
		store:    s,
		queue:    queue,
		detector: detector,
		started:  time.Now(),
	}
}

// Register attaches every route to the router.
func (h *Handlers) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/assets/{id}/convert", h.Convert).Methods(http.MethodPost)
	api.HandleFunc("/assets/{id}/variants", h.GetVariants).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}/variants", h.DeleteVariants).Methods(http.MethodDelete)
	api.HandleFunc("/assets/{id}/select", h.Select).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}/sources", h.Sources).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}/responsive", h.Responsive).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}/conversion", h.SetConversion).Methods(http.MethodPut)
	api.HandleFunc("/assets/{id}/formats/{format}", h.SetFormat).Methods(http.MethodPut)
	api.HandleFunc("/convert/batch", h.ConvertBatch).Methods(http.MethodPost)
	api.HandleFunc("/capabilities", h.Capabilities).Methods(http.MethodGet)
	api.HandleFunc("/stats/savings", h.Savings).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
}
