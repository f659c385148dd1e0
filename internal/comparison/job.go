package comparison

import (
	"errors"
	"fmt"
	"strings"

	"snapdiff/internal/capture"
	"snapdiff/internal/store"
)

// Job is one page/device comparison. It only lives for the duration of a run.
type Job struct {
	BaselineURL       string             `json:"baselineUrl"`
	ComparisonURL     string             `json:"comparisonUrl"`
	CookieData        string             `json:"cookieData,omitempty"`
	Resolution        capture.Resolution `json:"resolution"`
	UserAgent         string             `json:"userAgent,omitempty"`
	SitePath          string             `json:"sitePath"`
	Device            string             `json:"device"`
	SiteLogin         *capture.Login     `json:"siteLogin,omitempty"`
	PageRoute         string             `json:"pageRoute"`
	ID                int64              `json:"id"`
	GenerateBaselines bool               `json:"generateBaselines,omitempty"`
	// BaselineName and ComparisonName override the default
	// "<device>-baseline" and "<device>-comparison" file names.
	BaselineName   string `json:"baselineName,omitempty"`
	ComparisonName string `json:"comparisonName,omitempty"`
}

// Validate reports jobs that cannot be run.
func (j Job) Validate() error {
	switch {
	case strings.TrimSpace(j.SitePath) == "":
		return errors.New("job: sitePath is required")
	case strings.TrimSpace(j.Device) == "":
		return errors.New("job: device is required")
	case j.ID <= 0:
		return errors.New("job: page id is required")
	case strings.TrimSpace(j.BaselineURL) == "":
		return errors.New("job: baselineUrl is required")
	case strings.TrimSpace(j.ComparisonURL) == "":
		return errors.New("job: comparisonUrl is required")
	}
	for field, name := range map[string]string{
		"device":         j.Device,
		"baselineName":   j.BaselineName,
		"comparisonName": j.ComparisonName,
	} {
		if !safeStem(name) {
			return fmt.Errorf("job: %s %q must be a plain file name", field, name)
		}
	}
	return nil
}

// safeStem reports whether name can be used as a file name inside a page
// directory. Empty names are allowed; they select the default.
func safeStem(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return true
	}
	return !strings.ContainsAny(name, "/\\\x00") && name != "." && name != ".."
}

func (j Job) baselineName() string {
	if name := strings.TrimSpace(j.BaselineName); name != "" {
		return name
	}
	return j.Device + "-baseline"
}

func (j Job) comparisonName() string {
	if name := strings.TrimSpace(j.ComparisonName); name != "" {
		return name
	}
	return j.Device + "-comparison"
}

func (j Job) request(url, path string) capture.Request {
	return capture.Request{
		URL:        url,
		FilePath:   path,
		CookieData: j.CookieData,
		Resolution: j.Resolution,
		UserAgent:  j.UserAgent,
		Login:      j.SiteLogin,
	}
}

// BuildJobs derives one job per page and device from stored site data.
func BuildJobs(site *store.Site, devices []*store.Device, pages []*store.Page) []Job {
	jobs := make([]Job, 0, len(devices)*len(pages))
	for _, page := range pages {
		for _, device := range devices {
			job := Job{
				BaselineURL:   joinURL(site.BaselineURL, page.Route),
				ComparisonURL: joinURL(site.ComparisonURL, page.Route),
				CookieData:    site.CookieData,
				Resolution:    capture.Resolution{Width: device.Width, Height: device.Height},
				UserAgent:     device.UserAgent,
				SitePath:      site.Path,
				Device:        device.Name,
				PageRoute:     page.Route,
				ID:            page.ID,
			}
			if device.Login != nil && device.Login.Username != "" {
				job.SiteLogin = &capture.Login{Username: device.Login.Username, Password: device.Login.Password}
			}
			jobs = append(jobs, job)
		}
	}
	return jobs
}

func joinURL(base, route string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + store.NormalizeRoute(route)
}
