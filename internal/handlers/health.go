package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-optimizer/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Encoder availability from a fresh probe.
	Encoders map[string]bool `json:"encoders"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports service health. The service is degraded, not down,
// when no encoder is installed: selection still works, conversion does
// not.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	caps := h.detector.Probe(r.Context())

	encoders := make(map[string]bool, len(caps))
	anyAvailable := false
	for name, c := range caps {
		encoders[name] = c.Available
		if c.Available {
			anyAvailable = true
		}
	}

	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		Encoders:     encoders,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if !anyAvailable {
		response.Status = statusDegraded
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, response)
}

// LivenessCheck always returns 200 while the process is serving.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, map[string]string{"status": "alive"})
}

// ReadinessCheck returns 200 only when the variant store answers.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, map[string]string{"status": "ready"})
}
