package capability

import (
	"media-optimizer/internal/formats"
	"media-optimizer/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
)

// probeVips checks whether the linked libvips build can save WebP and
// AVIF by exporting a 1x1 probe image. Support depends on how libvips was
// compiled (AVIF needs libheif with an AV1 encoder), so the only reliable
// check is attempting the export. Errors are a normal outcome: the format
// is reported as unsupported.
func probeVips() Capabilities {
	caps := Capabilities{Supports: make(map[formats.Format]bool)}

	img, err := vips.Black(1, 1)
	if err != nil {
		logging.Debug("vips probe image creation failed: %v", err)
		return caps
	}
	defer img.Close()

	caps.Available = true

	if _, _, err := img.ExportWebp(vips.NewWebpExportParams()); err == nil {
		caps.Supports[formats.FormatWebP] = true
	} else {
		logging.Debug("vips webp probe: %v", err)
	}

	if _, _, err := img.ExportAvif(vips.NewAvifExportParams()); err == nil {
		caps.Supports[formats.FormatAVIF] = true
	} else {
		logging.Debug("vips avif probe: %v", err)
	}

	return caps
}
