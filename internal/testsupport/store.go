package testsupport

import (
	"context"
	"testing"

	"snapdiff/internal/config"
	"snapdiff/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// MustCreateSite registers a site whose baseline and comparison hosts are
// derived from sitePath.
func MustCreateSite(t testing.TB, st *store.Store, sitePath string) *store.Site {
	t.Helper()

	site, err := st.CreateSite(context.Background(), store.Site{
		Path:          sitePath,
		Name:          sitePath,
		BaselineURL:   "https://" + sitePath + ".example",
		ComparisonURL: "https://staging." + sitePath + ".example",
	})
	if err != nil {
		t.Fatalf("store.CreateSite: %v", err)
	}
	return site
}

// MustAddDevice registers a device with the given resolution.
func MustAddDevice(t testing.TB, st *store.Store, sitePath, name string, width, height int) *store.Device {
	t.Helper()

	device, err := st.AddDevice(context.Background(), store.Device{
		SitePath:  sitePath,
		Name:      name,
		Width:     width,
		Height:    height,
		UserAgent: "snapdiff-test",
	})
	if err != nil {
		t.Fatalf("store.AddDevice: %v", err)
	}
	return device
}

// MustAddPage registers a page route.
func MustAddPage(t testing.TB, st *store.Store, sitePath, route string) *store.Page {
	t.Helper()

	page, err := st.AddPage(context.Background(), sitePath, route)
	if err != nil {
		t.Fatalf("store.AddPage: %v", err)
	}
	return page
}
