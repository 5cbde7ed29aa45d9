package selector

import (
	"context"
	"sort"

	"media-optimizer/internal/formats"
	"media-optimizer/internal/logging"
	"media-optimizer/internal/metrics"
	"media-optimizer/internal/sizes"
	"media-optimizer/internal/store"
)

// Source is one entry of a multi-source fallback chain.
type Source struct {
	Mime     string `json:"mime"`
	Location string `json:"location"`
}

// ResponsiveEntry pairs a variant location with its pixel width for
// width-descriptor markup.
type ResponsiveEntry struct {
	Location string `json:"location"`
	Width    int    `json:"width"`
}

// Selector reads stored variants and applies the fixed delivery
// priority: AVIF over WebP over the original, independently per size.
type Selector struct {
	store    *store.Store
	registry sizes.Registry
}

// New creates a Selector over the given store and size registry.
func New(s *store.Store, registry sizes.Registry) *Selector {
	return &Selector{store: s, registry: registry}
}

// priority is the fixed selection order across both media kinds. It is
// deliberately not configurable per call.
var priority = []formats.Format{
	formats.FormatAVIF,
	formats.FormatWebP,
	formats.FormatAV1,
	formats.FormatWebM,
}

// Select returns the single best location for an asset at a size. The
// lookup falls back from the exact size to "full", and finally to the
// caller-supplied original location; it never returns an empty value
// when originalLocation is non-empty.
func (s *Selector) Select(ctx context.Context, assetID, size, originalLocation string) string {
	fm := s.store.GetVariants(ctx, assetID, size)
	for _, f := range priority {
		if v, ok := fm[f]; ok && v.Location != "" {
			metrics.SelectionsTotal.WithLabelValues(string(f)).Inc()
			return v.Location
		}
	}
	metrics.SelectionsTotal.WithLabelValues(string(formats.FormatOriginal)).Inc()
	return originalLocation
}

// FallbackChain returns every available modern format at a size in
// priority order, terminated by the original. Used for multi-source
// markup where the client picks the first format it can decode.
func (s *Selector) FallbackChain(ctx context.Context, assetID, size, originalLocation, originalMime string) []Source {
	fm := s.store.GetVariants(ctx, assetID, size)

	var chain []Source
	for _, f := range priority {
		if v, ok := fm[f]; ok && v.Location != "" {
			chain = append(chain, Source{Mime: f.MimeType(), Location: v.Location})
		}
	}
	return append(chain, Source{Mime: originalMime, Location: originalLocation})
}

// ResponsiveSet builds a width-ascending source set in one preferred
// format. The format is chosen once, by variant coverage across sizes
// with the selection priority as tie-break, so the whole set renders
// uniformly. Sizes without a resolvable pixel width are skipped; widths
// are never fabricated.
func (s *Selector) ResponsiveSet(ctx context.Context, assetID string) []ResponsiveEntry {
	set, err := s.store.VariantSet(ctx, assetID)
	if err != nil {
		logging.Warn("loading variants for responsive set of %s: %v", assetID, err)
		return nil
	}

	preferred, ok := preferredFormat(set)
	if !ok {
		return nil
	}

	dims, err := s.registry.Dimensions(ctx, assetID)
	if err != nil {
		logging.Warn("loading size dimensions for %s: %v", assetID, err)
		return nil
	}

	var out []ResponsiveEntry
	for size, fm := range set {
		v, ok := fm[preferred]
		if !ok || v.Location == "" {
			continue
		}
		width, ok := sizes.ResolveWidth(size, dims)
		if !ok {
			continue
		}
		out = append(out, ResponsiveEntry{Location: v.Location, Width: width})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Width < out[j].Width })
	return out
}

// preferredFormat picks the image format with variants at the most
// sizes. Ties resolve by selection priority.
func preferredFormat(set store.VariantSet) (formats.Format, bool) {
	coverage := make(map[formats.Format]int)
	for _, fm := range set {
		for f := range fm {
			if f.Kind() == formats.KindImage && f.Convertible() {
				coverage[f]++
			}
		}
	}

	best := formats.FormatOriginal
	bestCount := 0
	for _, f := range formats.ImageFormats {
		if coverage[f] > bestCount {
			best = f
			bestCount = coverage[f]
		}
	}
	return best, bestCount > 0
}
