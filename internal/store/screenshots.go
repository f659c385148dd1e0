package store

import (
	"context"
	"fmt"
	"strings"
)

// SetLoading flips the loading flag of a page/device entry, creating the entry
// when the pair was never registered. Starting a run clears any previous error.
func (s *Store) SetLoading(ctx context.Context, pageID int64, device string, loading bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO screenshots (page_id, device, loading, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (page_id, device) DO UPDATE SET
             loading = excluded.loading,
             error_message = CASE WHEN excluded.loading = 1 THEN NULL ELSE screenshots.error_message END,
             updated_at = excluded.updated_at`,
		pageID, device, boolToInt(loading), timestamp(),
	)
	if err != nil {
		return s.entryError(ctx, pageID, "set loading", err)
	}
	return nil
}

// SetDeviceScreenshots stores a completed comparison. All refs, the verdict, and
// loading=false land in a single statement so observers never see a partial update.
func (s *Store) SetDeviceScreenshots(ctx context.Context, pageID int64, device string, result Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO screenshots (
             page_id, device, loading, failing, baseline_ref, comparison_ref,
             diff_ref, percentage_diff, error_message, updated_at
         ) VALUES (?, ?, 0, ?, ?, ?, ?, ?, NULL, ?)
         ON CONFLICT (page_id, device) DO UPDATE SET
             loading = 0,
             failing = excluded.failing,
             baseline_ref = excluded.baseline_ref,
             comparison_ref = excluded.comparison_ref,
             diff_ref = excluded.diff_ref,
             percentage_diff = excluded.percentage_diff,
             error_message = NULL,
             updated_at = excluded.updated_at`,
		pageID,
		device,
		boolToInt(result.Failing),
		nullableString(result.BaselineScreenshot),
		nullableString(result.ComparisonScreenshot),
		nullableString(result.DiffImage),
		result.PercentageDiff,
		timestamp(),
	)
	if err != nil {
		return s.entryError(ctx, pageID, "set device screenshots", err)
	}
	return nil
}

// SetErrored ends a run that could not complete. Loading is cleared and the
// message recorded; refs from the last successful run stay untouched.
func (s *Store) SetErrored(ctx context.Context, pageID int64, device, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "comparison failed"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO screenshots (page_id, device, loading, error_message, updated_at)
         VALUES (?, ?, 0, ?, ?)
         ON CONFLICT (page_id, device) DO UPDATE SET
             loading = 0,
             error_message = excluded.error_message,
             updated_at = excluded.updated_at`,
		pageID, device, message, timestamp(),
	)
	if err != nil {
		return s.entryError(ctx, pageID, "set errored", err)
	}
	return nil
}

// entryError turns a foreign key failure on an unknown page into ErrNotFound.
func (s *Store) entryError(ctx context.Context, pageID int64, op string, err error) error {
	var count int
	if qErr := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM pages WHERE id = ?`, pageID).Scan(&count); qErr == nil && count == 0 {
		return fmt.Errorf("%s: page %d: %w", op, pageID, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
