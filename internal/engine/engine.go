package engine

import (
	"context"
	"fmt"
	"os"
	"strings"

	"media-optimizer/internal/convert"
	"media-optimizer/internal/filesystem"
	"media-optimizer/internal/formats"
	"media-optimizer/internal/logging"
	"media-optimizer/internal/mediatypes"
	"media-optimizer/internal/selector"
	"media-optimizer/internal/store"
	"media-optimizer/internal/tracker"
)

// Engine ties the conversion orchestrator, the selector, and the
// variant store together behind the operations collaborators call.
type Engine struct {
	store    *store.Store
	orch     *convert.Orchestrator
	selector *selector.Selector
	tracker  *tracker.Tracker
	sources  convert.Sources
}

// New creates an Engine.
func New(s *store.Store, orch *convert.Orchestrator, sel *selector.Selector, tr *tracker.Tracker, sources convert.Sources) *Engine {
	return &Engine{
		store:    s,
		orch:     orch,
		selector: sel,
		tracker:  tr,
		sources:  sources,
	}
}

// Orchestrate runs one conversion pass for an asset, routed by the
// media kind of its original source.
func (e *Engine) Orchestrate(ctx context.Context, assetID string) convert.Result {
	src, err := e.sources.Original(ctx, assetID)
	if err != nil {
		return convert.Result{Errors: []string{fmt.Sprintf("resolving original: %v", err)}}
	}

	kind, ok := mediatypes.KindFor(src.Path)
	if !ok {
		return convert.Result{Errors: []string{fmt.Sprintf("unsupported source type: %s", src.Path)}}
	}

	if kind == formats.KindVideo {
		return e.orch.ConvertVideo(ctx, assetID)
	}
	return e.orch.ConvertImage(ctx, assetID)
}

// Convert adapts Orchestrate to the dispatch Runner contract. A pass
// that neither produced variants nor cleaned anything up reports its
// accumulated errors as one failure.
func (e *Engine) Convert(ctx context.Context, assetID string) error {
	result := e.Orchestrate(ctx, assetID)
	if result.Success || len(result.Errors) == 0 {
		return nil
	}
	return fmt.Errorf("conversion pass for %s: %s", assetID, strings.Join(result.Errors, "; "))
}

// Select returns the single best delivery location for an asset at a
// size. Missing data degrades to the original source's location; only an
// asset without any resolvable original yields an empty string.
func (e *Engine) Select(ctx context.Context, assetID, size string) string {
	original := ""
	if src, err := e.sources.Original(ctx, assetID); err == nil {
		original = e.store.Resolver().Resolve(src.Path)
	}
	return e.selector.Select(ctx, assetID, size, original)
}

// FallbackChain returns the multi-source chain for hybrid rendering.
func (e *Engine) FallbackChain(ctx context.Context, assetID, size string) []selector.Source {
	original, mime := "", ""
	if src, err := e.sources.Original(ctx, assetID); err == nil {
		original = e.store.Resolver().Resolve(src.Path)
		mime = mediatypes.MimeFor(src.Path)
	}
	return e.selector.FallbackChain(ctx, assetID, size, original, mime)
}

// ResponsiveSet returns the width-ascending source set for an asset.
func (e *Engine) ResponsiveSet(ctx context.Context, assetID string) []selector.ResponsiveEntry {
	return e.selector.ResponsiveSet(ctx, assetID)
}

// Savings returns the aggregate conversion statistics.
func (e *Engine) Savings(ctx context.Context) (tracker.Summary, error) {
	return e.tracker.Savings(ctx)
}

// SetConversionEnabled toggles the per-asset disabled flag. Disabling
// also removes every stored variant, matching the lifecycle rule that a
// disabled asset holds no derived artifacts.
func (e *Engine) SetConversionEnabled(ctx context.Context, assetID string, enabled bool) error {
	if enabled {
		return e.store.SetConversionDisabled(ctx, assetID, false)
	}
	// Deletion wipes all metadata for the asset, so the flag goes last.
	if err := e.DeleteAllVariants(ctx, assetID); err != nil {
		return err
	}
	return e.store.SetConversionDisabled(ctx, assetID, true)
}

// SetFormatEnabled includes or excludes one format from conversion
// passes of an asset. Disabling does not remove artifacts inline; the
// next pass deletes the format's variants, files, and savings records
// through the same cleanup that handles de-configured formats.
func (e *Engine) SetFormatEnabled(ctx context.Context, assetID string, f formats.Format, enabled bool) error {
	return e.store.SetFormatEnabled(ctx, assetID, f, enabled)
}

// DeleteAllVariants removes every variant of an asset: local files
// first, then the stored metadata and the conversion records behind the
// savings statistics. External locations are left alone.
func (e *Engine) DeleteAllVariants(ctx context.Context, assetID string) error {
	set, err := e.store.VariantSet(ctx, assetID)
	if err != nil {
		return fmt.Errorf("loading variants: %w", err)
	}

	resolver := e.store.Resolver()
	removed := 0
	for size, fm := range set {
		for f, v := range fm {
			if f == formats.FormatOriginal || resolver.IsExternal(v.Location) {
				continue
			}
			path := resolver.PathFor(v.Location)
			if path == "" {
				continue
			}
			if err := filesystem.RemoveWithRetry(path, filesystem.DefaultRetryConfig()); err != nil {
				if !os.IsNotExist(err) {
					logging.Warn("failed to remove variant file %s (%s/%s): %v", path, size, f, err)
				}
				continue
			}
			removed++
		}
	}

	present := set.Formats()
	if err := e.store.DeleteAll(ctx, assetID); err != nil {
		return fmt.Errorf("deleting variant metadata: %w", err)
	}
	if len(present) > 0 {
		if _, err := e.tracker.Forget(ctx, assetID, present); err != nil {
			logging.Warn("forgetting records for %s: %v", assetID, err)
		}
	}

	logging.Info("Deleted all variants for asset %s (%d files removed)", assetID, removed)
	return nil
}
