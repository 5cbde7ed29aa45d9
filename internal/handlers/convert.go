package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"media-optimizer/internal/dispatch"
	"media-optimizer/internal/formats"
)

// ConvertResponse is returned by the conversion trigger endpoints.
type ConvertResponse struct {
	AssetID string `json:"assetId"`
	JobID   string `json:"jobId,omitempty"`
	Status  string `json:"status"`
}

// Convert triggers a conversion pass for one asset. The default is
// asynchronous: the pass is enqueued and the request returns 202. With
// ?mode=sync the pass runs inline and the full result comes back.
func (h *Handlers) Convert(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["id"]

	if r.URL.Query().Get("mode") == "sync" {
		result := h.engine.Orchestrate(r.Context(), assetID)
		if !result.Success && len(result.Errors) > 0 {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}
		writeJSON(w, result)
		return
	}

	jobID, ok := h.queue.Enqueue(r.Context(), assetID)
	if !ok {
		// Either a job is already in flight or the queue is saturated;
		// both mean "try again later", not an error worth surfacing.
		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, ConvertResponse{AssetID: assetID, Status: "pending"})
		return
	}

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, ConvertResponse{AssetID: assetID, JobID: jobID, Status: "queued"})
}

// BatchRequest names the assets of one coalesced conversion batch.
type BatchRequest struct {
	AssetIDs []string `json:"assetIds"`
}

// ConvertBatch coalesces a burst of conversion triggers into one
// enqueued job per distinct asset, mirroring the end-of-request flush a
// host performs after a multi-file upload. The passes run on the
// background workers; assets with a job already in flight are skipped.
func (h *Handlers) ConvertBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.AssetIDs) == 0 {
		writeJSONError(w, "assetIds is required", http.StatusBadRequest)
		return
	}

	batch := dispatch.NewBatch()
	for _, id := range req.AssetIDs {
		batch.Mark(id)
	}
	distinct := batch.Len()
	queued := batch.Flush(r.Context(), h.queue)

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]int{"requested": distinct, "queued": queued})
}

// SetConversionRequest toggles per-asset conversion.
type SetConversionRequest struct {
	Enabled bool `json:"enabled"`
}

// SetConversion enables or disables conversion for an asset. Disabling
// also removes every stored variant.
func (h *Handlers) SetConversion(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["id"]

	var req SetConversionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.engine.SetConversionEnabled(r.Context(), assetID, req.Enabled); err != nil {
		writeJSONError(w, "failed to update conversion state", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{"assetId": assetID, "enabled": req.Enabled})
}

// SetFormatRequest toggles one format for one asset.
type SetFormatRequest struct {
	Enabled bool `json:"enabled"`
}

// SetFormat enables or disables a single target format for an asset.
// Disabled formats are skipped by future passes, which also remove any
// artifacts the format left behind.
func (h *Handlers) SetFormat(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	assetID := vars["id"]

	f, err := formats.Parse(vars["format"])
	if err != nil {
		writeJSONError(w, "unknown format", http.StatusBadRequest)
		return
	}

	var req SetFormatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.engine.SetFormatEnabled(r.Context(), assetID, f, req.Enabled); err != nil {
		writeJSONError(w, "failed to update format state", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{"assetId": assetID, "format": string(f), "enabled": req.Enabled})
}

// DeleteVariants removes every variant of an asset, files included.
func (h *Handlers) DeleteVariants(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["id"]

	if err := h.engine.DeleteAllVariants(r.Context(), assetID); err != nil {
		writeJSONError(w, "failed to delete variants", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]string{"assetId": assetID, "status": "deleted"})
}
