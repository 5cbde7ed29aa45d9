package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"media-optimizer/internal/formats"
	"media-optimizer/internal/logging"
	"media-optimizer/internal/sizes"
)

// VariantSet loads the full size -> format -> variant map for an asset,
// normalizing the legacy flat shape to the "full" size. A missing record
// yields an empty set.
func (s *Store) VariantSet(ctx context.Context, assetID string) (VariantSet, error) {
	raw, err := s.GetMetadata(ctx, assetID, keyFiles)
	if errors.Is(err, ErrNotFound) {
		return VariantSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading variants for %s: %w", assetID, err)
	}

	set, err := decodeVariantSet([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding variants for %s: %w", assetID, err)
	}
	return set, nil
}

// SaveVariantSet persists the full variant map for an asset,
// last-write-wins.
func (s *Store) SaveVariantSet(ctx context.Context, assetID string, set VariantSet) error {
	raw, err := encodeVariantSet(set)
	if err != nil {
		return fmt.Errorf("encoding variants for %s: %w", assetID, err)
	}
	return s.SetMetadata(ctx, assetID, keyFiles, string(raw))
}

// GetVariants returns the variants stored for one size of an asset.
// If the size has no entries it falls back to "full"; if still empty it
// returns an empty map. It never returns an error: store failures degrade
// to empty with a logged warning, since selection must not break serving.
func (s *Store) GetVariants(ctx context.Context, assetID, size string) FormatMap {
	start := time.Now()
	defer func() { recordQuery("get_variants", start, nil) }()

	set, err := s.VariantSet(ctx, assetID)
	if err != nil {
		logging.Warn("GetVariants(%s, %s): %v", assetID, size, err)
		return FormatMap{}
	}

	if fm, ok := set[size]; ok && len(fm) > 0 {
		return fm
	}
	if fm, ok := set[sizes.Full]; ok && len(fm) > 0 {
		return fm
	}
	return FormatMap{}
}

// SetVariant upserts one variant. When location is an internal storage
// path the public location is derived from the configured base path/URL
// pair before persisting.
func (s *Store) SetVariant(ctx context.Context, assetID, size string, format formats.Format, location string, bytes int64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_variant", start, err) }()

	var set VariantSet
	set, err = s.VariantSet(ctx, assetID)
	if err != nil {
		return err
	}

	fm := set[size]
	if fm == nil {
		fm = FormatMap{}
		set[size] = fm
	}
	fm[format] = Variant{
		Location:  s.resolver.Resolve(location),
		Bytes:     bytes,
		UpdatedAt: time.Now().Unix(),
	}

	err = s.SaveVariantSet(ctx, assetID, set)
	return err
}

// PruneUnregisteredSizes removes any size key not in the host's currently
// registered size names, handling sizes and themes changing over time.
// The "full" size is always retained. Returns the removed size names.
func (s *Store) PruneUnregisteredSizes(ctx context.Context, assetID string, validNames []string) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("prune_sizes", start, err) }()

	var set VariantSet
	set, err = s.VariantSet(ctx, assetID)
	if err != nil {
		return nil, err
	}

	valid := make(map[string]bool, len(validNames)+1)
	valid[sizes.Full] = true
	for _, name := range validNames {
		valid[name] = true
	}

	var removed []string
	for size := range set {
		if !valid[size] {
			removed = append(removed, size)
			delete(set, size)
		}
	}

	if len(removed) == 0 {
		return nil, nil
	}

	err = s.SaveVariantSet(ctx, assetID, set)
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// DeleteVariantsForFormats deletes matching variants across all sizes and
// returns the number deleted. Used to drive cleanup logging and
// conversion record cleanup when formats are disabled.
func (s *Store) DeleteVariantsForFormats(ctx context.Context, assetID string, fs []formats.Format) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_formats", start, err) }()

	var set VariantSet
	set, err = s.VariantSet(ctx, assetID)
	if err != nil {
		return 0, err
	}

	doomed := make(map[formats.Format]bool, len(fs))
	for _, f := range fs {
		doomed[f] = true
	}

	deleted := 0
	for size, fm := range set {
		for f := range fm {
			if doomed[f] {
				delete(fm, f)
				deleted++
			}
		}
		if len(fm) == 0 {
			delete(set, size)
		}
	}

	if deleted == 0 {
		return 0, nil
	}

	err = s.SaveVariantSet(ctx, assetID, set)
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// DeleteAll removes every variant, conversion state, and job row for an
// asset. Used on asset deletion.
func (s *Store) DeleteAll(ctx context.Context, assetID string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_all", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err = s.db.ExecContext(ctx, "DELETE FROM asset_metadata WHERE asset_id = ?", assetID); err != nil {
		return fmt.Errorf("deleting metadata for %s: %w", assetID, err)
	}
	if _, err = s.db.ExecContext(ctx, "DELETE FROM conversion_jobs WHERE asset_id = ?", assetID); err != nil {
		return fmt.Errorf("deleting job state for %s: %w", assetID, err)
	}
	return nil
}

// ConversionState returns the per-asset conversion bookkeeping. A missing
// record yields the zero state (enabled, never converted).
func (s *Store) ConversionState(ctx context.Context, assetID string) (ConversionState, error) {
	var state ConversionState

	disabled, err := s.GetMetadata(ctx, assetID, keyDisabled)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return state, err
	}
	state.Disabled = disabled == "1"

	date, err := s.GetMetadata(ctx, assetID, keyDate)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return state, err
	}
	if date != "" {
		t, parseErr := time.Parse(time.RFC3339, date)
		if parseErr != nil {
			logging.Warn("invalid conversion_date for %s: %v", assetID, parseErr)
		} else {
			state.LastConvertedAt = t
		}
	}

	return state, nil
}

// SetConversionDisabled marks an asset as excluded from (or re-eligible
// for) conversion.
func (s *Store) SetConversionDisabled(ctx context.Context, assetID string, disabled bool) error {
	value := "0"
	if disabled {
		value = "1"
	}
	return s.SetMetadata(ctx, assetID, keyDisabled, value)
}

// SetLastConverted records the completion time of a successful pass.
func (s *Store) SetLastConverted(ctx context.Context, assetID string, t time.Time) error {
	return s.SetMetadata(ctx, assetID, keyDate, t.Format(time.RFC3339))
}

// ConvertedFormats returns the formats advertised as converted for an
// asset. This is maintained as the union of formats that actually have at
// least one persisted variant, not the configured list.
func (s *Store) ConvertedFormats(ctx context.Context, assetID string) ([]formats.Format, error) {
	raw, err := s.GetMetadata(ctx, assetID, keyFormats)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []formats.Format
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decoding converted formats for %s: %w", assetID, err)
	}
	return out, nil
}

// SetConvertedFormats persists the advertised format list.
func (s *Store) SetConvertedFormats(ctx context.Context, assetID string, fs []formats.Format) error {
	if fs == nil {
		fs = []formats.Format{}
	}
	raw, err := json.Marshal(fs)
	if err != nil {
		return err
	}
	return s.SetMetadata(ctx, assetID, keyFormats, string(raw))
}

// DisabledFormats returns the formats excluded from conversion for one
// asset. A missing record means nothing is excluded.
func (s *Store) DisabledFormats(ctx context.Context, assetID string) ([]formats.Format, error) {
	raw, err := s.GetMetadata(ctx, assetID, keyDisabledFormats)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []formats.Format
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decoding disabled formats for %s: %w", assetID, err)
	}
	return out, nil
}

// SetFormatEnabled includes or excludes a single format from conversion
// passes of one asset. Toggling is idempotent; the exclusion list keeps
// its first-disabled order.
func (s *Store) SetFormatEnabled(ctx context.Context, assetID string, f formats.Format, enabled bool) error {
	current, err := s.DisabledFormats(ctx, assetID)
	if err != nil {
		return err
	}

	var next []formats.Format
	for _, d := range current {
		if d != f {
			next = append(next, d)
		}
	}
	if !enabled {
		next = append(next, f)
	}
	if next == nil {
		next = []formats.Format{}
	}

	raw, err := json.Marshal(next)
	if err != nil {
		return err
	}
	return s.SetMetadata(ctx, assetID, keyDisabledFormats, string(raw))
}
