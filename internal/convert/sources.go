package convert

import (
	"bytes"
	"context"
	"fmt"
	"image/gif"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"media-optimizer/internal/filesystem"
	"media-optimizer/internal/logging"
	"media-optimizer/internal/sizes"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/webp" // webp decoding for source probing
)

// SourceFile describes one resolved conversion source.
type SourceFile struct {
	Path     string
	Bytes    int64
	Animated bool
}

// Sources resolves the file to convert for each required size of an
// asset. It is a host collaborator; DirSources is the directory-layout
// implementation used by the daemon.
type Sources interface {
	// Original resolves the full-size source of an asset.
	Original(ctx context.Context, assetID string) (SourceFile, error)

	// ForSize resolves the source rendition for one named size. The
	// dimension is the registered size of that rendition or zero when
	// unknown.
	ForSize(ctx context.Context, assetID, size string, dim sizes.Dimension) (SourceFile, error)
}

var sourceExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".mp4", ".mkv", ".mov", ".avi"}

// DirSources resolves sources from a per-asset directory layout:
// root/<asset>/original.<ext> for the full-size source and
// root/<asset>/<size>.<ext> for size renditions.
//
// With RenderMissing set, absent size renditions of still images are
// derived on the fly from the original with Lanczos resampling, matching
// hosts that register sizes without materializing every rendition.
type DirSources struct {
	Root          string
	RenderMissing bool
}

// Original implements Sources.
func (d DirSources) Original(_ context.Context, assetID string) (SourceFile, error) {
	return d.find(assetID, "original")
}

// ForSize implements Sources. The "full" size always resolves to the
// original.
func (d DirSources) ForSize(ctx context.Context, assetID, size string, dim sizes.Dimension) (SourceFile, error) {
	if size == sizes.Full {
		return d.Original(ctx, assetID)
	}

	src, err := d.find(assetID, size)
	if err == nil {
		return src, nil
	}

	if !d.RenderMissing || dim.Width <= 0 || dim.Height <= 0 {
		return SourceFile{}, err
	}

	original, origErr := d.Original(ctx, assetID)
	if origErr != nil || original.Animated {
		return SourceFile{}, err
	}
	return d.render(original, assetID, size, dim)
}

// find locates the single source file with the given stem in the asset
// directory.
func (d DirSources) find(assetID, stem string) (SourceFile, error) {
	dir := filepath.Join(d.Root, assetID)
	for _, ext := range sourceExtensions {
		path := filepath.Join(dir, stem+ext)
		info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
		if err != nil {
			continue
		}
		return SourceFile{
			Path:     path,
			Bytes:    info.Size(),
			Animated: isAnimated(path),
		}, nil
	}
	return SourceFile{}, fmt.Errorf("no source named %q for asset %s", stem, assetID)
}

// render derives a missing size rendition from the original.
func (d DirSources) render(original SourceFile, assetID, size string, dim sizes.Dimension) (SourceFile, error) {
	img, err := imaging.Open(original.Path, imaging.AutoOrientation(true))
	if err != nil {
		return SourceFile{}, fmt.Errorf("rendering %s/%s: %w", assetID, size, err)
	}

	resized := imaging.Fit(img, dim.Width, dim.Height, imaging.Lanczos)
	path := filepath.Join(d.Root, assetID, size+".jpg")

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
		return SourceFile{}, fmt.Errorf("encoding rendition %s/%s: %w", assetID, size, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return SourceFile{}, fmt.Errorf("writing rendition %s/%s: %w", assetID, size, err)
	}

	logging.Debug("Rendered missing %s rendition for asset %s (%dx%d)", size, assetID, dim.Width, dim.Height)
	return SourceFile{Path: path, Bytes: int64(buf.Len())}, nil
}

// isAnimated reports whether an image file is multi-frame. GIFs are
// inspected frame by frame; WebP containers are checked for an ANIM
// chunk in the leading bytes. Anything unreadable counts as static.
func isAnimated(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gif":
		f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
		if err != nil {
			return false
		}
		defer func() {
			if err := f.Close(); err != nil {
				logging.Warn("failed to close %s: %v", path, err)
			}
		}()
		g, err := gif.DecodeAll(f)
		return err == nil && len(g.Image) > 1
	case ".webp":
		f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
		if err != nil {
			return false
		}
		defer func() {
			if err := f.Close(); err != nil {
				logging.Warn("failed to close %s: %v", path, err)
			}
		}()
		// The ANIM chunk sits directly after the VP8X header when
		// present.
		header := make([]byte, 64)
		n, _ := f.Read(header)
		return bytes.Contains(header[:n], []byte("ANIM"))
	default:
		return false
	}
}
