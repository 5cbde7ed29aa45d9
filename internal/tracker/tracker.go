package tracker

import (
	"context"
	"fmt"

	"media-optimizer/internal/formats"
	"media-optimizer/internal/logging"
	"media-optimizer/internal/metrics"
	"media-optimizer/internal/store"
)

// Tracker aggregates conversion savings. Facts are persisted as
// append-only records; Prometheus counters mirror them for scraping.
type Tracker struct {
	store *store.Store
}

// Summary is the overall savings report.
type Summary struct {
	Files          int64                 `json:"files"`
	OriginalBytes  int64                 `json:"originalBytes"`
	ConvertedBytes int64                 `json:"convertedBytes"`
	SavedBytes     int64                 `json:"savedBytes"`
	Percent        float64               `json:"percent"`
	ByFormat       []store.FormatSavings `json:"byFormat"`
}

// New creates a Tracker backed by the given store.
func New(s *store.Store) *Tracker {
	return &Tracker{store: s}
}

// Record persists one conversion fact and updates the savings counters.
// A record whose converted size exceeds the original still counts; the
// saved-bytes counter only advances for genuine savings.
func (t *Tracker) Record(ctx context.Context, rec store.ConversionRecord) error {
	if err := t.store.InsertRecord(ctx, rec); err != nil {
		return fmt.Errorf("recording conversion for %s: %w", rec.AssetID, err)
	}

	if saved := rec.OriginalBytes - rec.ConvertedBytes; saved > 0 {
		metrics.ConversionSavedBytes.WithLabelValues(string(rec.Format)).Add(float64(saved))
	}

	logging.Debug("Tracked conversion: asset=%s size=%s format=%s %d -> %d bytes",
		rec.AssetID, rec.Size, rec.Format, rec.OriginalBytes, rec.ConvertedBytes)
	return nil
}

// Forget bulk-deletes the records of an asset, optionally restricted to
// the given formats. Used when an asset is deleted or a format is
// disabled for it.
func (t *Tracker) Forget(ctx context.Context, assetID string, fs []formats.Format) (int64, error) {
	deleted, err := t.store.DeleteRecords(ctx, assetID, fs)
	if err != nil {
		return 0, fmt.Errorf("forgetting records for %s: %w", assetID, err)
	}
	if deleted > 0 {
		logging.Debug("Forgot %d conversion records for asset %s", deleted, assetID)
	}
	return deleted, nil
}

// Savings aggregates all recorded conversions into an overall summary
// plus a per-format breakdown.
func (t *Tracker) Savings(ctx context.Context) (Summary, error) {
	byFormat, err := t.store.Savings(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("aggregating savings: %w", err)
	}

	summary := Summary{ByFormat: byFormat}
	for _, fs := range byFormat {
		summary.Files += fs.Files
		summary.OriginalBytes += fs.OriginalBytes
		summary.ConvertedBytes += fs.ConvertedBytes
	}
	summary.SavedBytes = summary.OriginalBytes - summary.ConvertedBytes
	if summary.OriginalBytes > 0 {
		summary.Percent = float64(summary.SavedBytes) / float64(summary.OriginalBytes) * 100
	}
	return summary, nil
}
