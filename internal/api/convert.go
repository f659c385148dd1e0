package api

import (
	"snapdiff/internal/capture"
	"snapdiff/internal/preflight"
	"snapdiff/internal/store"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FromSite converts a stored site. defaultThreshold applies when the site has
// no override.
func FromSite(site *store.Site, defaultThreshold float64) Site {
	if site == nil {
		return Site{}
	}
	out := Site{
		Path:               site.Path,
		Name:               site.Name,
		BaselineURL:        site.BaselineURL,
		ComparisonURL:      site.ComparisonURL,
		HasCookies:         site.CookieData != "",
		FailingThreshold:   site.FailingThreshold,
		EffectiveThreshold: defaultThreshold,
	}
	if site.FailingThreshold != nil {
		out.EffectiveThreshold = *site.FailingThreshold
	}
	if !site.CreatedAt.IsZero() {
		out.CreatedAt = site.CreatedAt.UTC().Format(dateTimeFormat)
	}
	return out
}

// FromSites converts a list of sites.
func FromSites(sites []*store.Site, defaultThreshold float64) []Site {
	out := make([]Site, 0, len(sites))
	for _, site := range sites {
		out = append(out, FromSite(site, defaultThreshold))
	}
	return out
}

// FromDevice converts a stored device, dropping the password.
func FromDevice(device *store.Device) Device {
	if device == nil {
		return Device{}
	}
	out := Device{
		Name:      device.Name,
		Width:     device.Width,
		Height:    device.Height,
		UserAgent: device.UserAgent,
	}
	if device.Login != nil {
		out.LoginUsername = device.Login.Username
	}
	return out
}

// FromDevices converts a list of devices.
func FromDevices(devices []*store.Device) []Device {
	out := make([]Device, 0, len(devices))
	for _, device := range devices {
		out = append(out, FromDevice(device))
	}
	return out
}

// FromPoolStats converts capture pool counters.
func FromPoolStats(stats capture.Stats) PoolStats {
	return PoolStats(stats)
}

// ToStoreDevice converts an add-device request for persistence.
func (r AddDeviceRequest) ToStoreDevice(sitePath string) store.Device {
	device := store.Device{
		SitePath:  sitePath,
		Name:      r.Name,
		Width:     r.Width,
		Height:    r.Height,
		UserAgent: r.UserAgent,
	}
	if r.Login != nil && r.Login.Username != "" {
		device.Login = &store.Login{Username: r.Login.Username, Password: r.Login.Password}
	}
	return device
}

// ToStoreSite converts a create-site request for persistence.
func (r CreateSiteRequest) ToStoreSite() store.Site {
	return store.Site{
		Path:             r.SitePath,
		Name:             r.Name,
		BaselineURL:      r.BaselineURL,
		ComparisonURL:    r.ComparisonURL,
		CookieData:       r.CookieData,
		FailingThreshold: r.FailingThreshold,
	}
}

// FromPreflight converts preflight check results.
func FromPreflight(results []preflight.Result) []DependencyStatus {
	deps := make([]DependencyStatus, len(results))
	for i, r := range results {
		deps[i] = DependencyStatus{
			Name:      r.Name,
			Optional:  r.Optional,
			Available: r.Passed,
			Detail:    r.Detail,
		}
	}
	return deps
}
