package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AddPage registers a route for a site and creates an empty screenshot entry
// for every device of that site.
func (s *Store) AddPage(ctx context.Context, sitePath, route string) (*Page, error) {
	route = NormalizeRoute(route)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin page tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.siteExists(ctx, tx, sitePath); err != nil {
		return nil, err
	}

	now := timestamp()
	res, err := tx.ExecContext(ctx, `INSERT INTO pages (site_path, route, created_at) VALUES (?, ?, ?)`, sitePath, route, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("page %q: %w", route, ErrConflict)
		}
		return nil, fmt.Errorf("insert page: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO screenshots (page_id, device, updated_at)
         SELECT ?, name, ? FROM devices WHERE site_path = ?`,
		id, now, sitePath,
	); err != nil {
		return nil, fmt.Errorf("seed page entries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit page: %w", err)
	}
	return s.GetPage(ctx, id)
}

// DeletePage removes a page of a site together with its screenshot entries.
func (s *Store) DeletePage(ctx context.Context, sitePath string, pageID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE id = ? AND site_path = ?`, pageID, sitePath)
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("page %d: %w", pageID, ErrNotFound)
	}
	return nil
}

// GetPage fetches one page with its device entries.
func (s *Store) GetPage(ctx context.Context, pageID int64) (*Page, error) {
	var (
		page    Page
		created string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, site_path, route, created_at FROM pages WHERE id = ?`, pageID).
		Scan(&page.ID, &page.SitePath, &page.Route, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %d: %w", pageID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	page.CreatedAt = parseTime(created)

	pages, err := s.queryPages(ctx, `WHERE p.id = ?`, pageID)
	if err != nil {
		return nil, err
	}
	if len(pages) == 1 {
		return pages[0], nil
	}
	page.Screenshots = map[string]Entry{}
	return &page, nil
}

// GetPages returns every page of a site ordered by route, each with its
// device to entry mapping. This is the snapshot sent to observers.
func (s *Store) GetPages(ctx context.Context, sitePath string) ([]*Page, error) {
	pages, err := s.queryPages(ctx, `WHERE p.site_path = ?`, sitePath)
	if err != nil {
		return nil, err
	}
	if pages == nil {
		pages = []*Page{}
	}
	return pages, nil
}

func (s *Store) queryPages(ctx context.Context, where string, args ...any) ([]*Page, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.site_path, p.route, p.created_at,
                sc.device, sc.loading, sc.failing, sc.baseline_ref, sc.comparison_ref,
                sc.diff_ref, sc.percentage_diff, sc.error_message, sc.updated_at
         FROM pages p
         LEFT JOIN screenshots sc ON sc.page_id = p.id
         `+where+`
         ORDER BY p.route, p.id, sc.device`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()

	var (
		pages []*Page
		index = map[int64]*Page{}
	)
	for rows.Next() {
		var (
			id                         int64
			site, route, created       string
			device                     sql.NullString
			loading, failing           sql.NullInt64
			baseline, comparison, diff sql.NullString
			pct                        sql.NullFloat64
			errMsg, updated            sql.NullString
		)
		if err := rows.Scan(&id, &site, &route, &created, &device, &loading, &failing,
			&baseline, &comparison, &diff, &pct, &errMsg, &updated); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		page, ok := index[id]
		if !ok {
			page = &Page{
				ID:          id,
				SitePath:    site,
				Route:       route,
				CreatedAt:   parseTime(created),
				Screenshots: map[string]Entry{},
			}
			index[id] = page
			pages = append(pages, page)
		}
		if !device.Valid {
			continue
		}
		page.Screenshots[device.String] = Entry{
			Loading:              loading.Int64 != 0,
			Failing:              failing.Int64 != 0,
			BaselineScreenshot:   baseline.String,
			ComparisonScreenshot: comparison.String,
			DiffImage:            diff.String,
			PercentageDiff:       pct.Float64,
			Error:                errMsg.String,
			UpdatedAt:            parseTime(updated.String),
		}
	}
	return pages, rows.Err()
}
