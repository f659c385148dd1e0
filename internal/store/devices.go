package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const deviceColumns = "id, site_path, name, width, height, user_agent, login_username, login_password"

func scanDevice(scanner interface{ Scan(dest ...any) error }) (*Device, error) {
	var (
		device   Device
		username sql.NullString
		password sql.NullString
	)
	if err := scanner.Scan(&device.ID, &device.SitePath, &device.Name, &device.Width, &device.Height, &device.UserAgent, &username, &password); err != nil {
		return nil, err
	}
	if username.Valid || password.Valid {
		device.Login = &Login{Username: username.String, Password: password.String}
	}
	return &device, nil
}

// AddDevice registers a device for a site and creates an empty screenshot entry
// for every existing page of that site.
func (s *Store) AddDevice(ctx context.Context, device Device) (*Device, error) {
	device.Name = strings.TrimSpace(device.Name)
	if device.Name == "" {
		return nil, fmt.Errorf("device name is required: %w", ErrInvalid)
	}
	if strings.ContainsAny(device.Name, `/\`) || device.Name == "." || device.Name == ".." {
		return nil, fmt.Errorf("device %q: name must not contain path separators: %w", device.Name, ErrInvalid)
	}
	if device.Width <= 0 || device.Height <= 0 {
		return nil, fmt.Errorf("device %q: resolution must be positive: %w", device.Name, ErrInvalid)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin device tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.siteExists(ctx, tx, device.SitePath); err != nil {
		return nil, err
	}

	var username, password any
	if device.Login != nil {
		username, password = device.Login.Username, device.Login.Password
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO devices (site_path, name, width, height, user_agent, login_username, login_password)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		device.SitePath, device.Name, device.Width, device.Height, device.UserAgent, username, password,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("device %q: %w", device.Name, ErrConflict)
		}
		return nil, fmt.Errorf("insert device: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO screenshots (page_id, device, updated_at)
         SELECT id, ?, ? FROM pages WHERE site_path = ?`,
		device.Name, timestamp(), device.SitePath,
	); err != nil {
		return nil, fmt.Errorf("seed device entries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit device: %w", err)
	}
	device.ID = id
	return &device, nil
}

// ListDevices returns the devices registered for a site ordered by name.
func (s *Store) ListDevices(ctx context.Context, sitePath string) ([]*Device, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE site_path = ? ORDER BY name`, sitePath)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}
