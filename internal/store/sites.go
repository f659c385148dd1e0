package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const siteColumns = "path, name, baseline_url, comparison_url, cookie_data, failing_threshold, created_at"

func scanSite(scanner interface{ Scan(dest ...any) error }) (*Site, error) {
	var (
		site      Site
		cookies   sql.NullString
		threshold sql.NullFloat64
		created   string
	)
	if err := scanner.Scan(&site.Path, &site.Name, &site.BaselineURL, &site.ComparisonURL, &cookies, &threshold, &created); err != nil {
		return nil, err
	}
	site.CookieData = cookies.String
	site.FailingThreshold = floatPtr(threshold)
	site.CreatedAt = parseTime(created)
	return &site, nil
}

// CreateSite registers a new site. The site path must be unique.
func (s *Store) CreateSite(ctx context.Context, site Site) (*Site, error) {
	site.Path = strings.TrimSpace(site.Path)
	if site.Path == "" {
		return nil, fmt.Errorf("site path is required: %w", ErrInvalid)
	}
	if strings.TrimSpace(site.BaselineURL) == "" || strings.TrimSpace(site.ComparisonURL) == "" {
		return nil, fmt.Errorf("baseline and comparison urls are required: %w", ErrInvalid)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sites (`+siteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		site.Path,
		site.Name,
		site.BaselineURL,
		site.ComparisonURL,
		nullableString(site.CookieData),
		nullableFloat(site.FailingThreshold),
		timestamp(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("site %q: %w", site.Path, ErrConflict)
		}
		return nil, fmt.Errorf("insert site: %w", err)
	}
	return s.GetSite(ctx, site.Path)
}

// GetSite fetches a site by path. Missing sites yield ErrNotFound.
func (s *Store) GetSite(ctx context.Context, sitePath string) (*Site, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE path = ?`, sitePath)
	site, err := scanSite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("site %q: %w", sitePath, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}
	return site, nil
}

// ListSites returns every site ordered by path.
func (s *Store) ListSites(ctx context.Context) ([]*Site, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+siteColumns+` FROM sites ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var sites []*Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// DeleteSite removes a site with its devices, pages, and screenshot entries.
// Files on disk are left alone.
func (s *Store) DeleteSite(ctx context.Context, sitePath string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE path = ?`, sitePath)
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("site %q: %w", sitePath, ErrNotFound)
	}
	return nil
}

// SetFailingThreshold stores the site's failing percentage. A nil value clears it
// so the configured default applies again.
func (s *Store) SetFailingThreshold(ctx context.Context, sitePath string, threshold *float64) error {
	if threshold != nil && (*threshold < 0 || *threshold > 100) {
		return fmt.Errorf("failing threshold %v out of range [0,100]: %w", *threshold, ErrInvalid)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE sites SET failing_threshold = ? WHERE path = ?`, nullableFloat(threshold), sitePath)
	if err != nil {
		return fmt.Errorf("update failing threshold: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("site %q: %w", sitePath, ErrNotFound)
	}
	return nil
}

// GetFailingThreshold returns the site's threshold, or nil when none is stored.
func (s *Store) GetFailingThreshold(ctx context.Context, sitePath string) (*float64, error) {
	var threshold sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT failing_threshold FROM sites WHERE path = ?`, sitePath).Scan(&threshold)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("site %q: %w", sitePath, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get failing threshold: %w", err)
	}
	return floatPtr(threshold), nil
}

func (s *Store) siteExists(ctx context.Context, q querier, sitePath string) error {
	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(1) FROM sites WHERE path = ?`, sitePath).Scan(&count); err != nil {
		return fmt.Errorf("check site: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("site %q: %w", sitePath, ErrNotFound)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
