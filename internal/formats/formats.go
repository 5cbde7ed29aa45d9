package formats

import (
	"fmt"
	"strings"
)

// Kind represents the class of media an asset belongs to.
type Kind string

const (
	// KindImage represents still or animated image assets.
	KindImage Kind = "image"
	// KindVideo represents video assets.
	KindVideo Kind = "video"
)

// Format represents a target encoding for a media asset.
type Format string

const (
	// FormatWebP is the WebP image format.
	FormatWebP Format = "webp"
	// FormatAVIF is the AVIF image format.
	FormatAVIF Format = "avif"
	// FormatAV1 is AV1 video in an MP4 container.
	FormatAV1 Format = "av1"
	// FormatWebM is VP9 video in a WebM container.
	FormatWebM Format = "webm"
	// FormatOriginal is the pseudo-format recording the unconverted
	// rendering's location and size for savings computation. It is never
	// a conversion target.
	FormatOriginal Format = "original"
)

// ImageFormats lists the convertible image formats in selection priority
// order (most preferred first).
var ImageFormats = []Format{FormatAVIF, FormatWebP}

// VideoFormats lists the convertible video formats in selection priority
// order (most preferred first).
var VideoFormats = []Format{FormatAV1, FormatWebM}

var mimeTypes = map[Format]string{
	FormatWebP: "image/webp",
	FormatAVIF: "image/avif",
	FormatAV1:  "video/mp4",
	FormatWebM: "video/webm",
}

var extensions = map[Format]string{
	FormatWebP: ".webp",
	FormatAVIF: ".avif",
	FormatAV1:  ".mp4",
	FormatWebM: ".webm",
}

// Parse returns the Format for a configuration token.
// The pseudo-format "original" is not parseable; it is never configured.
func Parse(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatWebP:
		return FormatWebP, nil
	case FormatAVIF:
		return FormatAVIF, nil
	case FormatAV1:
		return FormatAV1, nil
	case FormatWebM:
		return FormatWebM, nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// ParseList parses a comma-separated list of formats, all of which must
// belong to the given kind. Order is preserved and duplicates removed.
func ParseList(s string, kind Kind) ([]Format, error) {
	var out []Format
	seen := make(map[Format]bool)
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		f, err := Parse(tok)
		if err != nil {
			return nil, err
		}
		if f.Kind() != kind {
			return nil, fmt.Errorf("format %q is not a %s format", f, kind)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// Kind returns the media kind a format applies to.
// FormatOriginal has no kind of its own and reports KindImage.
func (f Format) Kind() Kind {
	switch f {
	case FormatAV1, FormatWebM:
		return KindVideo
	default:
		return KindImage
	}
}

// MimeType returns the MIME type of the format, or an empty string for
// the pseudo-format "original" (whose MIME type is the source's own).
func (f Format) MimeType() string {
	return mimeTypes[f]
}

// Extension returns the file extension for the format including the
// leading dot, or an empty string for the pseudo-format "original".
func (f Format) Extension() string {
	return extensions[f]
}

// Convertible reports whether the format is a real conversion target
// rather than the "original" pseudo-format.
func (f Format) Convertible() bool {
	_, ok := extensions[f]
	return ok
}

// String implements fmt.Stringer.
func (f Format) String() string {
	return string(f)
}

// Priority returns the fixed selection priority order for a media kind,
// most preferred first. The order is not configurable.
func Priority(kind Kind) []Format {
	if kind == KindVideo {
		return VideoFormats
	}
	return ImageFormats
}

// ClampQuality clamps a quality-style parameter to the 1-100 domain.
// Out-of-range input is silently clamped, never rejected.
func ClampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}

// ClampCRF clamps a CRF-style rate parameter to the 0-63 domain used by
// the AV1 and VP9 encoders.
func ClampCRF(v int) int {
	if v < 0 {
		return 0
	}
	if v > 63 {
		return 63
	}
	return v
}

// ClampSpeed clamps a speed/cpu-effort parameter to the 0-max domain of
// the target encoder.
func ClampSpeed(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
