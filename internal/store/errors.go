package store

import (
	"fmt"

	"snapdiff/internal/services"
)

// ErrNotFound is returned when a site, page, or device does not exist.
// It matches services.ErrNotFound under errors.Is.
var ErrNotFound = fmt.Errorf("store: %w", services.ErrNotFound)

// ErrConflict is returned when a site, page route, or device name already exists.
var ErrConflict = fmt.Errorf("store: already exists: %w", services.ErrValidation)

// ErrInvalid is returned for input the store refuses to persist.
var ErrInvalid = fmt.Errorf("store: invalid input: %w", services.ErrValidation)
