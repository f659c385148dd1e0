package api

import (
	"snapdiff/internal/comparison"
	"snapdiff/internal/notify"
	"snapdiff/internal/store"
)

// Site describes a tracked site.
type Site struct {
	Path               string   `json:"sitePath"`
	Name               string   `json:"name"`
	BaselineURL        string   `json:"baselineUrl"`
	ComparisonURL      string   `json:"comparisonUrl"`
	HasCookies         bool     `json:"hasCookies"`
	FailingThreshold   *float64 `json:"failingThreshold,omitempty"`
	EffectiveThreshold float64  `json:"effectiveThreshold"`
	CreatedAt          string   `json:"createdAt,omitempty"`
}

// Device describes a capture configuration without its password.
type Device struct {
	Name          string `json:"name"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	UserAgent     string `json:"userAgent,omitempty"`
	LoginUsername string `json:"loginUsername,omitempty"`
}

// SiteDetail is a site with its devices and pages.
type SiteDetail struct {
	Site    Site          `json:"site"`
	Devices []Device      `json:"devices"`
	Pages   []*store.Page `json:"pages"`
}

// SiteListResponse wraps the tracked sites.
type SiteListResponse struct {
	Sites []Site `json:"sites"`
}

// CreateSiteRequest registers a site.
type CreateSiteRequest struct {
	SitePath         string   `json:"sitePath"`
	Name             string   `json:"name"`
	BaselineURL      string   `json:"baselineUrl"`
	ComparisonURL    string   `json:"comparisonUrl"`
	CookieData       string   `json:"cookieData,omitempty"`
	FailingThreshold *float64 `json:"failingThreshold,omitempty"`
}

// GetSiteRequest selects a site by path.
type GetSiteRequest struct {
	SitePath string `json:"sitePath"`
}

// ThresholdRequest sets or, when null, clears a site's failing threshold.
type ThresholdRequest struct {
	FailingThreshold *float64 `json:"failingThreshold"`
}

// AddPageRequest registers a route.
type AddPageRequest struct {
	Route string `json:"route"`
}

// Login carries basic-auth credentials for a device.
type Login struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AddDeviceRequest registers a device.
type AddDeviceRequest struct {
	Name      string `json:"name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	UserAgent string `json:"userAgent,omitempty"`
	Login     *Login `json:"login,omitempty"`
}

// RunComparisonRequest is the batch comparison payload.
type RunComparisonRequest struct {
	Pages             []comparison.Job `json:"pages"`
	GenerateBaselines bool             `json:"generateBaselines"`
}

// CompareSiteRequest starts comparisons from stored site data. Empty filters
// select every page and device.
type CompareSiteRequest struct {
	GenerateBaselines bool     `json:"generateBaselines"`
	Routes            []string `json:"routes,omitempty"`
	Devices           []string `json:"devices,omitempty"`
}

// EventsResponse is the long-poll form of the site event stream.
type EventsResponse struct {
	Events []notify.Event `json:"events"`
	Next   uint64         `json:"next"`
}

// PoolStats mirrors capture pool counters.
type PoolStats struct {
	Workers   int   `json:"workers"`
	InFlight  int64 `json:"inFlight"`
	Queued    int64 `json:"queued"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// DependencyStatus captures the result of one preflight check.
type DependencyStatus struct {
	Name      string `json:"name"`
	Optional  bool   `json:"optional"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information.
type DaemonStatus struct {
	Running        bool               `json:"running"`
	PID            int                `json:"pid"`
	DatabasePath   string             `json:"databasePath"`
	LockFilePath   string             `json:"lockFilePath"`
	ScreenshotsDir string             `json:"screenshotsDir"`
	Pool           PoolStats          `json:"pool"`
	Dependencies   []DependencyStatus `json:"dependencies"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}
