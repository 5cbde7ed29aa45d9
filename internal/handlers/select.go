package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"media-optimizer/internal/selector"
	"media-optimizer/internal/sizes"
)

// GetVariants returns the stored variants for an asset at a size,
// falling back to the "full" size when the exact size has none.
func (h *Handlers) GetVariants(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["id"]
	size := sizeParam(r)

	writeJSON(w, h.store.GetVariants(r.Context(), assetID, size))
}

// SelectResponse carries the single best delivery location.
type SelectResponse struct {
	AssetID  string `json:"assetId"`
	Size     string `json:"size"`
	Location string `json:"location"`
}

// Select returns the best available location for an asset at a size.
// With ?redirect=1 it answers with a temporary redirect instead, so the
// endpoint can sit directly behind an <img> src.
func (h *Handlers) Select(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["id"]
	size := sizeParam(r)

	location := h.engine.Select(r.Context(), assetID, size)
	if location == "" {
		writeJSONError(w, "asset not found", http.StatusNotFound)
		return
	}

	if r.URL.Query().Get("redirect") == "1" {
		http.Redirect(w, r, location, http.StatusTemporaryRedirect)
		return
	}

	writeJSON(w, SelectResponse{AssetID: assetID, Size: size, Location: location})
}

// SourcesResponse is the multi-source fallback chain for hybrid
// rendering.
type SourcesResponse struct {
	AssetID string            `json:"assetId"`
	Size    string            `json:"size"`
	Sources []selector.Source `json:"sources"`
}

// Sources returns every available format in priority order plus the
// original as terminal fallback.
func (h *Handlers) Sources(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["id"]
	size := sizeParam(r)

	writeJSON(w, SourcesResponse{
		AssetID: assetID,
		Size:    size,
		Sources: h.engine.FallbackChain(r.Context(), assetID, size),
	})
}

// ResponsiveResponse is a width-ascending source set in one format.
type ResponsiveResponse struct {
	AssetID string                     `json:"assetId"`
	Entries []selector.ResponsiveEntry `json:"entries"`
}

// Responsive returns the responsive source set for an asset.
func (h *Handlers) Responsive(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["id"]

	writeJSON(w, ResponsiveResponse{
		AssetID: assetID,
		Entries: h.engine.ResponsiveSet(r.Context(), assetID),
	})
}

func sizeParam(r *http.Request) string {
	if size := r.URL.Query().Get("size"); size != "" {
		return size
	}
	return sizes.Full
}
