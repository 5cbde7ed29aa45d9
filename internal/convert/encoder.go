package convert

import (
	"context"

	"media-optimizer/internal/formats"
)

// Request describes one encode: source file, destination file, target
// format, and encoder parameters. All numeric parameters arrive already
// clamped to the encoder's valid domain.
type Request struct {
	Source string
	Dest   string
	Format formats.Format

	// Resize hints. Zero keeps the source dimensions. Used when an
	// animated original stands in for a derived size's static raster.
	Width  int
	Height int

	Quality int // 1-100, webp/avif
	CRF     int // 0-63, av1/webm
	Speed   int // 0-N cpu effort

	Animated bool
}

// Encoder produces one variant file from a source file.
type Encoder interface {
	// Name returns the encoder identifier matching the capability map.
	Name() string

	// Encode writes the variant to req.Dest and returns its byte size.
	// Cancellation and timeouts arrive through ctx; a timeout is treated
	// by the caller identically to an encode failure.
	Encode(ctx context.Context, req Request) (int64, error)
}
