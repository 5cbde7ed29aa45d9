package store

import (
	"encoding/json"
	"fmt"
	"time"

	"media-optimizer/internal/formats"
	"media-optimizer/internal/sizes"
)

// Metadata keys under which conversion state is persisted per asset.
const (
	keyFiles           = "converted_files_by_size"
	keyFormats         = "converted_formats"
	keyDate            = "conversion_date"
	keyDisabled        = "conversion_disabled"
	keyDisabledFormats = "disabled_formats"
)

// Variant is one stored encoding of an asset at one size in one format.
type Variant struct {
	Location  string `json:"url"`
	Bytes     int64  `json:"filesize"`
	UpdatedAt int64  `json:"updated,omitempty"`
}

// FormatMap maps formats to their stored variants for a single size.
type FormatMap map[formats.Format]Variant

// VariantSet is the nested size -> format -> variant map for one asset.
type VariantSet map[string]FormatMap

// ConversionState is the per-asset conversion bookkeeping. When Disabled
// is set the orchestrator refuses new conversions until re-enabled.
type ConversionState struct {
	Disabled        bool
	LastConvertedAt time.Time
}

// JobState tracks asynchronous conversion dispatch per asset.
type JobState string

const (
	JobStateNone       JobState = "none"
	JobStateQueued     JobState = "queued"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
)

// Pending reports whether a job is in flight and new dispatch must be
// suppressed.
func (s JobState) Pending() bool {
	return s == JobStateQueued || s == JobStateProcessing
}

// Formats returns the formats present anywhere in the set, excluding the
// "original" pseudo-format, in selection priority order.
func (v VariantSet) Formats() []formats.Format {
	seen := make(map[formats.Format]bool)
	for _, fm := range v {
		for f := range fm {
			if f != formats.FormatOriginal {
				seen[f] = true
			}
		}
	}
	var out []formats.Format
	for _, f := range formats.ImageFormats {
		if seen[f] {
			out = append(out, f)
		}
	}
	for _, f := range formats.VideoFormats {
		if seen[f] {
			out = append(out, f)
		}
	}
	return out
}

// Has reports whether at least one real variant (any size, any
// convertible format) exists in the set.
func (v VariantSet) Has() bool {
	for _, fm := range v {
		for f := range fm {
			if f != formats.FormatOriginal {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy of the set.
func (v VariantSet) Clone() VariantSet {
	out := make(VariantSet, len(v))
	for size, fm := range v {
		copied := make(FormatMap, len(fm))
		for f, variant := range fm {
			copied[f] = variant
		}
		out[size] = copied
	}
	return out
}

// decodeVariantSet normalizes the persisted JSON into a VariantSet.
//
// Two shapes are supported: the current nested size -> format -> variant
// map, and the legacy flat {format: location} map which predates the size
// dimension and is folded into the "full" size once at load time.
func decodeVariantSet(raw []byte) (VariantSet, error) {
	if len(raw) == 0 {
		return VariantSet{}, nil
	}

	var nested map[string]map[formats.Format]Variant
	if err := json.Unmarshal(raw, &nested); err == nil {
		set := make(VariantSet, len(nested))
		for size, fm := range nested {
			set[size] = FormatMap(fm)
		}
		return set, nil
	}

	var legacy map[formats.Format]string
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("unrecognized variant metadata shape: %w", err)
	}

	fm := make(FormatMap, len(legacy))
	for f, location := range legacy {
		fm[f] = Variant{Location: location}
	}
	return VariantSet{sizes.Full: fm}, nil
}

// encodeVariantSet serializes the set in the current nested shape.
func encodeVariantSet(set VariantSet) ([]byte, error) {
	return json.Marshal(set)
}
