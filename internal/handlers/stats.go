package handlers

import (
	"net/http"
)

// Savings returns the aggregate conversion statistics: file counts,
// original versus converted bytes, and the per-format breakdown.
func (h *Handlers) Savings(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.Savings(r.Context())
	if err != nil {
		writeJSONError(w, "failed to load savings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, summary)
}

// Capabilities reports which encoders are installed and which formats
// each can produce. The probe runs fresh on every call; encoder
// availability can change between deployments.
func (h *Handlers) Capabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.detector.Probe(r.Context()))
}
