// Package apiclient talks to a running snapdiff daemon over its HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"snapdiff/internal/api"
	"snapdiff/internal/capture"
	"snapdiff/internal/comparison"
	"snapdiff/internal/config"
	"snapdiff/internal/services"
	"snapdiff/internal/store"
)

const defaultHTTPTimeout = 30 * time.Second

// Config describes how to reach the daemon.
type Config struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// Client wraps the daemon's REST API.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
}

// APIError is a non-2xx answer from the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("snapdiff api: %s", http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("snapdiff api: %s (%d)", e.Message, e.StatusCode)
}

// Is maps HTTP statuses back onto the services markers.
func (e *APIError) Is(target error) bool {
	switch target {
	case services.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case services.ErrValidation:
		return e.StatusCode == http.StatusBadRequest
	case services.ErrExternalTool:
		return e.StatusCode == http.StatusBadGateway
	}
	return false
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("apiclient: base url is required")
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("apiclient: parse base url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{baseURL: baseURL, token: strings.TrimSpace(cfg.Token), http: client}, nil
}

// NewFromConfig targets the daemon described by cfg's api_bind and api_token.
// Wildcard bind addresses are dialled on loopback.
func NewFromConfig(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("apiclient: config is required")
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	switch {
	case strings.HasPrefix(bind, "0.0.0.0:"):
		bind = "127.0.0.1:" + strings.TrimPrefix(bind, "0.0.0.0:")
	case strings.HasPrefix(bind, ":"):
		bind = "127.0.0.1" + bind
	}
	return New(Config{BaseURL: bind, Token: cfg.Paths.APIToken})
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var out api.DaemonStatus
	err := c.doJSON(ctx, http.MethodGet, "api/status", nil, &out)
	return out, err
}

// ListSites returns every tracked site.
func (c *Client) ListSites(ctx context.Context) ([]api.Site, error) {
	var out api.SiteListResponse
	if err := c.doJSON(ctx, http.MethodGet, "api/sites", nil, &out); err != nil {
		return nil, err
	}
	return out.Sites, nil
}

// CreateSite registers a site.
func (c *Client) CreateSite(ctx context.Context, req api.CreateSiteRequest) (api.Site, error) {
	var out api.Site
	err := c.doJSON(ctx, http.MethodPost, "api/sites", req, &out)
	return out, err
}

// Site returns a site with its devices and pages.
func (c *Client) Site(ctx context.Context, sitePath string) (api.SiteDetail, error) {
	var out api.SiteDetail
	err := c.doJSON(ctx, http.MethodGet, sitePathURL(sitePath), nil, &out)
	return out, err
}

// DeleteSite removes a site and everything recorded for it.
func (c *Client) DeleteSite(ctx context.Context, sitePath string) error {
	return c.doJSON(ctx, http.MethodDelete, sitePathURL(sitePath), nil, nil)
}

// SetThreshold sets the site's failing threshold; nil restores the default.
func (c *Client) SetThreshold(ctx context.Context, sitePath string, threshold *float64) (api.Site, error) {
	var out api.Site
	err := c.doJSON(ctx, http.MethodPut, sitePathURL(sitePath, "threshold"), api.ThresholdRequest{FailingThreshold: threshold}, &out)
	return out, err
}

// AddPage registers a route.
func (c *Client) AddPage(ctx context.Context, sitePath, route string) (*store.Page, error) {
	var out store.Page
	if err := c.doJSON(ctx, http.MethodPost, sitePathURL(sitePath, "pages"), api.AddPageRequest{Route: route}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePage removes a page by id.
func (c *Client) DeletePage(ctx context.Context, sitePath string, pageID int64) error {
	return c.doJSON(ctx, http.MethodDelete, sitePathURL(sitePath, "pages", strconv.FormatInt(pageID, 10)), nil, nil)
}

// ListDevices returns a site's devices.
func (c *Client) ListDevices(ctx context.Context, sitePath string) ([]api.Device, error) {
	var out []api.Device
	err := c.doJSON(ctx, http.MethodGet, sitePathURL(sitePath, "devices"), nil, &out)
	return out, err
}

// AddDevice registers a device.
func (c *Client) AddDevice(ctx context.Context, sitePath string, req api.AddDeviceRequest) (api.Device, error) {
	var out api.Device
	err := c.doJSON(ctx, http.MethodPost, sitePathURL(sitePath, "devices"), req, &out)
	return out, err
}

// CompareSite starts comparisons built from stored site data.
func (c *Client) CompareSite(ctx context.Context, sitePath string, req api.CompareSiteRequest) (string, error) {
	return c.doText(ctx, http.MethodPost, sitePathURL(sitePath, "compare"), req)
}

// RunComparison submits an explicit batch of jobs.
func (c *Client) RunComparison(ctx context.Context, jobs []comparison.Job, generateBaselines bool) (string, error) {
	return c.doText(ctx, http.MethodPost, "api/run-comparison", api.RunComparisonRequest{Pages: jobs, GenerateBaselines: generateBaselines})
}

// TakeScreenshot captures one URL through the daemon's pool and returns the
// PNG bytes. degraded reports that navigation did not finish first.
func (c *Client) TakeScreenshot(ctx context.Context, req capture.Request) (png []byte, degraded bool, err error) {
	resp, err := c.do(ctx, http.MethodPost, "api/take-screenshot", nil, req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()
	png, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("apiclient: read screenshot: %w", err)
	}
	return png, resp.Header.Get("X-Snapdiff-Degraded") == "true", nil
}

// Events long-polls a site's notifications newer than since.
func (c *Client) Events(ctx context.Context, sitePath string, since uint64, follow bool) (api.EventsResponse, error) {
	query := url.Values{}
	query.Set("since", strconv.FormatUint(since, 10))
	query.Set("follow", strconv.FormatBool(follow))
	var out api.EventsResponse
	resp, err := c.do(ctx, http.MethodGet, sitePathURL(sitePath, "events"), query, nil)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("apiclient: decode events: %w", err)
	}
	return out, nil
}

func sitePathURL(sitePath string, rest ...string) string {
	parts := append([]string{"api", "sites", sitePath}, rest...)
	return strings.Join(parts, "/")
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, nil, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("apiclient: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) doText(ctx context.Context, method, path string, body any) (string, error) {
	resp, err := c.do(ctx, method, path, nil, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("apiclient: read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// do sends the request and converts non-2xx answers into *APIError. The
// caller owns the returned body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	endpoint := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("apiclient: encode %s: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build %s: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var payload api.ErrorResponse
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return nil, apiErr
	}
	return resp, nil
}
