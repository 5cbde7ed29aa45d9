package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"media-optimizer/internal/capability"
	"media-optimizer/internal/filesystem"
	"media-optimizer/internal/formats"
	"media-optimizer/internal/logging"
	"media-optimizer/internal/metrics"
	"media-optimizer/internal/sizes"
	"media-optimizer/internal/store"
	"media-optimizer/internal/tracker"
)

// Prober supplies encoder capabilities for a conversion pass. Probing is
// repeated per pass; binaries can disappear between runs.
type Prober interface {
	Probe(ctx context.Context) capability.Map
}

// Result is the outcome of one conversion pass.
type Result struct {
	Success            bool                      `json:"success"`
	ConvertedFormats   []formats.Format          `json:"convertedFormats"`
	ConvertedLocations map[formats.Format]string `json:"convertedLocations,omitempty"`
	Errors             []string                  `json:"errors,omitempty"`

	// storeFailed marks a metadata write failure mid-pass. It forces the
	// pass to report failure even when earlier formats landed, since
	// inconsistent metadata is worse than partial conversion.
	storeFailed bool
}

// Orchestrator computes and performs the delta of conversion work for an
// asset, updating the variant store and notifying the tracker.
type Orchestrator struct {
	store    *store.Store
	tracker  *tracker.Tracker
	prober   Prober
	registry sizes.Registry
	sources  Sources
	encoders map[string]Encoder
	opts     Options
	outRoot  string
}

// New creates an Orchestrator. Every encoder is indexed by its
// capability-map name; the prober decides which one serves each format.
func New(s *store.Store, tr *tracker.Tracker, prober Prober, registry sizes.Registry, src Sources, outRoot string, opts Options, encoders ...Encoder) *Orchestrator {
	index := make(map[string]Encoder, len(encoders))
	for _, enc := range encoders {
		index[enc.Name()] = enc
	}
	return &Orchestrator{
		store:    s,
		tracker:  tr,
		prober:   prober,
		registry: registry,
		sources:  src,
		encoders: index,
		opts:     opts,
		outRoot:  outRoot,
	}
}

// ConvertImage runs one conversion pass over every registered size of an
// image asset.
func (o *Orchestrator) ConvertImage(ctx context.Context, assetID string) Result {
	return o.convert(ctx, assetID, formats.KindImage)
}

// ConvertVideo runs one conversion pass for a video asset. Video has no
// size dimension; everything else matches the image pass.
func (o *Orchestrator) ConvertVideo(ctx context.Context, assetID string) Result {
	return o.convert(ctx, assetID, formats.KindVideo)
}

func (o *Orchestrator) convert(ctx context.Context, assetID string, kind formats.Kind) Result {
	start := time.Now()
	plog := logging.Pass(assetID)

	state, err := o.store.ConversionState(ctx, assetID)
	if err != nil {
		return o.fail(kind, Result{}, fmt.Sprintf("loading conversion state: %v", err))
	}
	if state.Disabled {
		// A deliberate skip, not a failure: no errors accumulate.
		plog.Debug("Conversion disabled, skipping pass")
		metrics.ConversionPassesTotal.WithLabelValues(string(kind), "skipped").Inc()
		return Result{}
	}

	assetDisabled, err := o.store.DisabledFormats(ctx, assetID)
	if err != nil {
		return o.fail(kind, Result{}, fmt.Sprintf("loading disabled formats: %v", err))
	}

	set, err := o.store.VariantSet(ctx, assetID)
	if err != nil {
		return o.fail(kind, Result{}, fmt.Sprintf("loading variants: %v", err))
	}

	validNames, err := o.registry.Names(ctx)
	if err != nil {
		return o.fail(kind, Result{}, fmt.Sprintf("loading registered sizes: %v", err))
	}

	removed, err := o.store.PruneUnregisteredSizes(ctx, assetID, validNames)
	if err != nil {
		return o.fail(kind, Result{}, fmt.Sprintf("pruning stale sizes: %v", err))
	}
	if len(removed) > 0 {
		plog.Info("Pruned %d unregistered sizes: %v", len(removed), removed)
	}

	cleanupHappened, err := o.cleanupDisabledFormats(ctx, assetID, set, kind, assetDisabled)
	if err != nil {
		return o.fail(kind, Result{}, err.Error())
	}

	// Reload after prune/cleanup so skip decisions see current state.
	set, err = o.store.VariantSet(ctx, assetID)
	if err != nil {
		return o.fail(kind, Result{}, fmt.Sprintf("reloading variants: %v", err))
	}

	caps := o.prober.Probe(ctx)
	feasible := caps.Feasible(excludeFormats(o.opts.FormatsFor(kind), assetDisabled))

	var result Result
	if kind == formats.KindImage {
		result = o.convertImageSizes(ctx, assetID, set, validNames, caps, feasible)
	} else {
		result = o.convertVideoFormats(ctx, assetID, set, caps, feasible)
	}

	if result.storeFailed {
		metrics.ConversionPassesTotal.WithLabelValues(string(kind), "failed").Inc()
		plog.Error("Pass aborted on store failure: %v", result.Errors)
		return result
	}

	finalSet, err := o.store.VariantSet(ctx, assetID)
	if err != nil {
		return o.fail(kind, result, fmt.Sprintf("reloading variants: %v", err))
	}

	// A pass succeeds when at least one variant now exists, or when a
	// cleanup-only pass actually removed something.
	if !finalSet.Has() && !cleanupHappened {
		metrics.ConversionPassesTotal.WithLabelValues(string(kind), "failed").Inc()
		return result
	}

	if err := o.store.SetLastConverted(ctx, assetID, time.Now()); err != nil {
		return o.fail(kind, result, fmt.Sprintf("updating conversion state: %v", err))
	}
	// Advertise only formats with at least one persisted variant, never
	// the configured list: a format that failed everywhere must not be
	// reported as converted.
	if err := o.store.SetConvertedFormats(ctx, assetID, finalSet.Formats()); err != nil {
		return o.fail(kind, result, fmt.Sprintf("updating converted formats: %v", err))
	}

	result.Success = true
	result.ConvertedFormats = finalSet.Formats()
	result.ConvertedLocations = locationsByFormat(finalSet)

	metrics.ConversionPassesTotal.WithLabelValues(string(kind), "success").Inc()
	metrics.ConversionLastPassTimestamp.Set(float64(time.Now().Unix()))
	plog.Info("Conversion pass finished in %s (formats: %v, errors: %d)",
		time.Since(start).Round(time.Millisecond), result.ConvertedFormats, len(result.Errors))
	return result
}

// convertImageSizes walks every registered size, "full" always first,
// and attempts each feasible format. Partial failure within a size does
// not abort other sizes or formats.
func (o *Orchestrator) convertImageSizes(ctx context.Context, assetID string, set store.VariantSet, validNames []string, caps capability.Map, feasible []formats.Format) Result {
	var result Result

	original, origErr := o.sources.Original(ctx, assetID)
	animated := origErr == nil && original.Animated

	dims, err := o.registry.Dimensions(ctx, assetID)
	if err != nil {
		logging.Warn("loading size dimensions for %s: %v", assetID, err)
		dims = map[string]sizes.Dimension{}
	}

	for _, size := range orderedSizes(validNames) {
		src := original
		srcErr := origErr
		hints := sizes.Dimension{}

		if size != sizes.Full {
			if animated {
				// Down-scaling a multi-frame source frame by frame loses
				// the animation, so every derived size converts from the
				// full-size source with resize hints instead.
				hints = dims[size]
			} else {
				src, srcErr = o.sources.ForSize(ctx, assetID, size, dims[size])
			}
		}
		if srcErr != nil {
			logging.Warn("Source missing for asset %s size %s: %v", assetID, size, srcErr)
			continue
		}

		sizeSucceeded := false
		for _, f := range feasible {
			if o.upToDate(set, size, f, src) {
				logging.Debug("Variant %s/%s/%s up to date, skipping", assetID, size, f)
				continue
			}

			bytes, encErr := o.encode(ctx, caps, f, src, o.destPath(assetID, size, f), hints)
			if encErr != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s (%s): %v", f, size, encErr))
				continue
			}

			if !sizeSucceeded {
				if err := o.store.SetVariant(ctx, assetID, size, formats.FormatOriginal, src.Path, src.Bytes); err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("storing original entry for %s: %v", size, err))
					result.storeFailed = true
					return result
				}
				sizeSucceeded = true
			}
			if err := o.persist(ctx, assetID, size, f, src, bytes); err != nil {
				result.Errors = append(result.Errors, err.Error())
				result.storeFailed = true
				return result
			}
		}
	}

	return result
}

// convertVideoFormats is the image pass minus the size loop: one source,
// every feasible video format.
func (o *Orchestrator) convertVideoFormats(ctx context.Context, assetID string, set store.VariantSet, caps capability.Map, feasible []formats.Format) Result {
	var result Result

	src, err := o.sources.Original(ctx, assetID)
	if err != nil {
		logging.Warn("Source missing for video asset %s: %v", assetID, err)
		return result
	}

	succeeded := false
	for _, f := range feasible {
		if o.upToDate(set, sizes.Full, f, src) {
			logging.Debug("Variant %s/%s up to date, skipping", assetID, f)
			continue
		}

		bytes, encErr := o.encode(ctx, caps, f, src, o.destPath(assetID, sizes.Full, f), sizes.Dimension{})
		if encErr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s (full): %v", f, encErr))
			continue
		}

		if !succeeded {
			if err := o.store.SetVariant(ctx, assetID, sizes.Full, formats.FormatOriginal, src.Path, src.Bytes); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("storing original entry: %v", err))
				result.storeFailed = true
				return result
			}
			succeeded = true
		}
		if err := o.persist(ctx, assetID, sizes.Full, f, src, bytes); err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.storeFailed = true
			return result
		}
	}

	return result
}

// encode runs one encode through the best encoder for the format.
func (o *Orchestrator) encode(ctx context.Context, caps capability.Map, f formats.Format, src SourceFile, dest string, hints sizes.Dimension) (int64, error) {
	name, ok := caps.Best(f)
	if !ok {
		// Feasibility was checked up front; reaching here means the
		// capability map changed mid-pass.
		return 0, fmt.Errorf("no encoder supports %s", f)
	}
	if src.Animated && name == capability.EncoderVips {
		// vips handles stills only; animation falls through to ffmpeg.
		if !caps[capability.EncoderFFmpeg].Supports[f] {
			return 0, fmt.Errorf("no encoder supports animated %s", f)
		}
		name = capability.EncoderFFmpeg
	}

	enc, ok := o.encoders[name]
	if !ok {
		return 0, fmt.Errorf("encoder %s not wired", name)
	}

	req := o.opts.request(f)
	req.Source = src.Path
	req.Dest = dest
	req.Width = hints.Width
	req.Height = hints.Height
	req.Animated = src.Animated

	start := time.Now()
	bytes, err := enc.Encode(ctx, req)
	metrics.ConversionDuration.WithLabelValues(string(f)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ConversionsTotal.WithLabelValues(string(f), "error").Inc()
		return 0, err
	}
	metrics.ConversionsTotal.WithLabelValues(string(f), "success").Inc()
	return bytes, nil
}

// persist stores the produced variant and notifies the tracker. A store
// failure here is fatal to the pass; a tracker failure is not.
func (o *Orchestrator) persist(ctx context.Context, assetID, size string, f formats.Format, src SourceFile, bytes int64) error {
	dest := o.destPath(assetID, size, f)
	if err := o.store.SetVariant(ctx, assetID, size, f, dest, bytes); err != nil {
		return fmt.Errorf("storing variant %s/%s/%s: %v", assetID, size, f, err)
	}

	rec := store.ConversionRecord{
		AssetID:        assetID,
		Format:         f,
		Size:           size,
		OriginalBytes:  src.Bytes,
		ConvertedBytes: bytes,
	}
	if err := o.tracker.Record(ctx, rec); err != nil {
		logging.Warn("tracker record failed for %s/%s/%s: %v", assetID, size, f, err)
	}
	return nil
}

// cleanupDisabledFormats removes variants of formats that are present in
// the store but no longer eligible for this asset and kind, whether
// de-configured globally or disabled per asset: files first (unless the
// location is external), then variant entries, then the conversion
// records behind the savings statistics.
func (o *Orchestrator) cleanupDisabledFormats(ctx context.Context, assetID string, set store.VariantSet, kind formats.Kind, assetDisabled []formats.Format) (bool, error) {
	configured := make(map[formats.Format]bool)
	for _, f := range o.opts.FormatsFor(kind) {
		configured[f] = true
	}
	for _, f := range assetDisabled {
		delete(configured, f)
	}

	var disabled []formats.Format
	for _, f := range set.Formats() {
		if f.Kind() == kind && !configured[f] {
			disabled = append(disabled, f)
		}
	}
	if len(disabled) == 0 {
		return false, nil
	}

	resolver := o.store.Resolver()
	for _, fm := range set {
		for _, f := range disabled {
			v, ok := fm[f]
			if !ok || resolver.IsExternal(v.Location) {
				continue
			}
			path := resolver.PathFor(v.Location)
			if path == "" {
				continue
			}
			if err := filesystem.RemoveWithRetry(path, filesystem.DefaultRetryConfig()); err != nil && !os.IsNotExist(err) {
				logging.Warn("failed to remove variant file %s: %v", path, err)
			}
		}
	}

	deleted, err := o.store.DeleteVariantsForFormats(ctx, assetID, disabled)
	if err != nil {
		return false, fmt.Errorf("deleting disabled formats: %v", err)
	}
	if _, err := o.tracker.Forget(ctx, assetID, disabled); err != nil {
		logging.Warn("forgetting records for %s: %v", assetID, err)
	}

	for _, f := range disabled {
		metrics.VariantsDeleted.WithLabelValues(string(f)).Inc()
	}
	logging.Info("Removed %d variants of disabled formats %v for asset %s", deleted, disabled, assetID)
	return deleted > 0, nil
}

// upToDate reports whether the stored variant can be kept: it exists and
// the recorded original entry matches the current source size.
func (o *Orchestrator) upToDate(set store.VariantSet, size string, f formats.Format, src SourceFile) bool {
	fm, ok := set[size]
	if !ok {
		return false
	}
	v, ok := fm[f]
	if !ok || v.Location == "" {
		return false
	}
	orig, ok := fm[formats.FormatOriginal]
	return ok && orig.Bytes == src.Bytes
}

func (o *Orchestrator) destPath(assetID, size string, f formats.Format) string {
	stem := size
	if f.Kind() == formats.KindVideo {
		stem = "video"
	}
	return filepath.Join(o.outRoot, assetID, stem+f.Extension())
}

func (o *Orchestrator) fail(kind formats.Kind, result Result, msg string) Result {
	result.Success = false
	result.Errors = append(result.Errors, msg)
	metrics.ConversionPassesTotal.WithLabelValues(string(kind), "failed").Inc()
	logging.Error("Conversion pass failed: %s", msg)
	return result
}

// excludeFormats drops per-asset disabled formats from the configured
// list, preserving configuration order.
func excludeFormats(configured, disabled []formats.Format) []formats.Format {
	if len(disabled) == 0 {
		return configured
	}
	skip := make(map[formats.Format]bool, len(disabled))
	for _, f := range disabled {
		skip[f] = true
	}
	var out []formats.Format
	for _, f := range configured {
		if !skip[f] {
			out = append(out, f)
		}
	}
	return out
}

// orderedSizes returns the sizes to process: "full" always first, then
// the registered names in registration order.
func orderedSizes(validNames []string) []string {
	out := []string{sizes.Full}
	for _, name := range validNames {
		if name != sizes.Full {
			out = append(out, name)
		}
	}
	return out
}

// locationsByFormat picks one representative location per format,
// preferring the "full" size.
func locationsByFormat(set store.VariantSet) map[formats.Format]string {
	out := make(map[formats.Format]string)
	if fm, ok := set[sizes.Full]; ok {
		for f, v := range fm {
			if f != formats.FormatOriginal {
				out[f] = v.Location
			}
		}
	}
	for _, fm := range set {
		for f, v := range fm {
			if f == formats.FormatOriginal {
				continue
			}
			if _, ok := out[f]; !ok {
				out[f] = v.Location
			}
		}
	}
	return out
}
