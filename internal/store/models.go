package store

import "time"

// Site is a tracked website identified by a filesystem-safe path segment.
type Site struct {
	Path          string `json:"sitePath"`
	Name          string `json:"name"`
	BaselineURL   string `json:"baselineUrl"`
	ComparisonURL string `json:"comparisonUrl"`
	CookieData    string `json:"cookieData,omitempty"`
	// FailingThreshold is nil when the site relies on the configured default.
	FailingThreshold *float64  `json:"failingThreshold,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Login holds optional HTTP basic-auth credentials.
type Login struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Device is a named capture configuration for every page of a site.
type Device struct {
	ID        int64  `json:"id"`
	SitePath  string `json:"sitePath"`
	Name      string `json:"name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	UserAgent string `json:"userAgent"`
	Login     *Login `json:"login,omitempty"`
}

// Entry is the per-device screenshot state of a page.
//
// An entry is stable (Loading false, refs from the last completed run),
// loading (Loading true, refs possibly stale), or errored (Loading false,
// Error set, refs from the last successful run).
type Entry struct {
	Loading              bool      `json:"loading"`
	Failing              bool      `json:"failing"`
	BaselineScreenshot   string    `json:"baselineScreenshot,omitempty"`
	ComparisonScreenshot string    `json:"comparisonScreenshot,omitempty"`
	DiffImage            string    `json:"diffImage,omitempty"`
	PercentageDiff       float64   `json:"percentageDiff"`
	Error                string    `json:"error,omitempty"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Errored reports whether the last run for this entry ended in an orchestration failure.
func (e Entry) Errored() bool {
	return !e.Loading && e.Error != ""
}

// Page is one route of a site together with its device to entry mapping.
type Page struct {
	ID          int64            `json:"id"`
	SitePath    string           `json:"sitePath"`
	Route       string           `json:"route"`
	Screenshots map[string]Entry `json:"screenshots"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// Result is the outcome of one completed comparison for a page/device.
type Result struct {
	BaselineScreenshot   string
	ComparisonScreenshot string
	DiffImage            string
	PercentageDiff       float64
	Failing              bool
}
