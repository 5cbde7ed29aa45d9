package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"media-optimizer/internal/capability"
	"media-optimizer/internal/formats"
	"media-optimizer/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// InitVips initializes the libvips library.
// This should be called once at startup.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Configure vips logging BEFORE Startup() to respect the LOG_LEVEL
	// environment variable.
	var vipsLogLevel vips.LogLevel
	switch logging.GetLevel() {
	case logging.LevelDebug:
		vipsLogLevel = vips.LogLevelInfo
	case logging.LevelWarn, logging.LevelError:
		vipsLogLevel = vips.LogLevelError
	default:
		vipsLogLevel = vips.LogLevelWarning
	}

	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}, vipsLogLevel)

	// Conservative memory settings: encodes run one at a time per worker
	// and libvips cache growth is not useful for one-shot conversions.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available.
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// VipsEncoder encodes still images to WebP and AVIF through libvips,
// with decode-time shrinking when resize hints are present.
type VipsEncoder struct{}

// NewVipsEncoder creates the libvips-backed image encoder.
func NewVipsEncoder() *VipsEncoder {
	return &VipsEncoder{}
}

// Name implements Encoder.
func (e *VipsEncoder) Name() string {
	return capability.EncoderVips
}

// Encode implements Encoder for still WebP and AVIF targets. Animated
// sources are rejected; the orchestrator routes those through ffmpeg.
func (e *VipsEncoder) Encode(ctx context.Context, req Request) (int64, error) {
	if !IsVipsAvailable() {
		return 0, fmt.Errorf("libvips not available")
	}
	if req.Animated {
		return 0, fmt.Errorf("vips encoder does not handle animated sources")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	logging.Debug("vips encoding %s -> %s (%s, q=%d)",
		filepath.Base(req.Source), filepath.Base(req.Dest), req.Format, req.Quality)

	ref, err := vips.LoadImageFromFile(req.Source, vips.NewImportParams())
	if err != nil {
		return 0, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	// Shrink only; the encoder never upscales a source.
	if req.Width > 0 && req.Height > 0 && req.Width < ref.Width() {
		if err := ref.Thumbnail(req.Width, req.Height, vips.InterestingNone); err != nil {
			return 0, fmt.Errorf("vips resize failed: %w", err)
		}
	}

	var buf []byte
	switch req.Format {
	case formats.FormatWebP:
		params := vips.NewWebpExportParams()
		params.Quality = req.Quality
		params.ReductionEffort = req.Speed
		params.StripMetadata = true
		buf, _, err = ref.ExportWebp(params)
	case formats.FormatAVIF:
		params := vips.NewAvifExportParams()
		params.Quality = req.Quality
		params.Effort = req.Speed
		params.StripMetadata = true
		buf, _, err = ref.ExportAvif(params)
	default:
		return 0, fmt.Errorf("vips encoder does not produce %s", req.Format)
	}
	if err != nil {
		return 0, fmt.Errorf("vips export failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(req.Dest), 0o755); err != nil {
		return 0, fmt.Errorf("creating variant directory: %w", err)
	}
	if err := os.WriteFile(req.Dest, buf, 0o644); err != nil {
		return 0, fmt.Errorf("writing variant: %w", err)
	}

	return int64(len(buf)), nil
}
