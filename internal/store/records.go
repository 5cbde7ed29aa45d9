package store

import (
	"context"
	"strings"
	"time"

	"media-optimizer/internal/formats"
)

// ConversionRecord is one immutable conversion fact used for statistics.
// Records are only inserted, or deleted in bulk when an asset or a
// format-for-asset is removed.
type ConversionRecord struct {
	AssetID        string         `json:"assetId"`
	Format         formats.Format `json:"format"`
	Size           string         `json:"size"`
	OriginalBytes  int64          `json:"originalBytes"`
	ConvertedBytes int64          `json:"convertedBytes"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// FormatSavings aggregates conversion records for one format.
type FormatSavings struct {
	Format         formats.Format `json:"format"`
	Files          int64          `json:"files"`
	OriginalBytes  int64          `json:"originalBytes"`
	ConvertedBytes int64          `json:"convertedBytes"`
	SavedBytes     int64          `json:"savedBytes"`
	Percent        float64        `json:"percent"`
}

// InsertRecord appends one conversion fact.
func (s *Store) InsertRecord(ctx context.Context, rec ConversionRecord) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("insert_record", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversion_records (asset_id, format, size, original_bytes, converted_bytes)
		VALUES (?, ?, ?, ?, ?)
	`, rec.AssetID, string(rec.Format), rec.Size, rec.OriginalBytes, rec.ConvertedBytes)
	return err
}

// DeleteRecords bulk-deletes records for an asset, optionally restricted
// to a set of formats (empty means all). Returns the number deleted.
func (s *Store) DeleteRecords(ctx context.Context, assetID string, fs []formats.Format) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_records", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := "DELETE FROM conversion_records WHERE asset_id = ?"
	args := []interface{}{assetID}

	if len(fs) > 0 {
		placeholders := make([]string, len(fs))
		for i, f := range fs {
			placeholders[i] = "?"
			args = append(args, string(f))
		}
		query += " AND format IN (" + strings.Join(placeholders, ", ") + ")"
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Savings aggregates all conversion records per format.
func (s *Store) Savings(ctx context.Context) ([]FormatSavings, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("savings", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT format, COUNT(*), SUM(original_bytes), SUM(converted_bytes)
		FROM conversion_records
		GROUP BY format
		ORDER BY format
	`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	var out []FormatSavings
	for rows.Next() {
		var fs FormatSavings
		var format string
		if err = rows.Scan(&format, &fs.Files, &fs.OriginalBytes, &fs.ConvertedBytes); err != nil {
			return nil, err
		}
		fs.Format = formats.Format(format)
		fs.SavedBytes = fs.OriginalBytes - fs.ConvertedBytes
		if fs.OriginalBytes > 0 {
			fs.Percent = float64(fs.SavedBytes) / float64(fs.OriginalBytes) * 100
		}
		out = append(out, fs)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return out, nil
}
