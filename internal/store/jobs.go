package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// JobState returns the dispatch state for an asset. A missing row means
// no job was ever dispatched.
func (s *Store) JobState(ctx context.Context, assetID string) (JobState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var state string
	err := s.db.QueryRowContext(ctx,
		"SELECT state FROM conversion_jobs WHERE asset_id = ?", assetID,
	).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return JobStateNone, nil
	}
	if err != nil {
		return JobStateNone, err
	}
	return JobState(state), nil
}

// SetJobState records the dispatch state for an asset.
func (s *Store) SetJobState(ctx context.Context, assetID string, state JobState) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_job_state", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversion_jobs (asset_id, state) VALUES (?, ?)
		ON CONFLICT(asset_id) DO UPDATE SET
			state = excluded.state,
			updated_at = strftime('%s', 'now')
	`, assetID, string(state))
	return err
}

// ClaimJob atomically transitions an asset to "queued" if and only if no
// job is currently pending for it. Returns true when the claim succeeded.
//
// The conditional upsert is a single statement, so the check and the set
// cannot interleave with a concurrent claim for the same asset.
func (s *Store) ClaimJob(ctx context.Context, assetID, jobID string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("claim_job", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = s.db.ExecContext(ctx, `
		INSERT INTO conversion_jobs (asset_id, state, job_id) VALUES (?, 'queued', ?)
		ON CONFLICT(asset_id) DO UPDATE SET
			state = 'queued',
			job_id = excluded.job_id,
			updated_at = strftime('%s', 'now')
		WHERE conversion_jobs.state NOT IN ('queued', 'processing')
	`, assetID, jobID)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
