package main

import (
	"strings"
	"testing"

	"snapdiff/internal/api"
	"snapdiff/internal/store"
)

func TestEntryState(t *testing.T) {
	tests := []struct {
		name  string
		entry store.Entry
		ok    bool
		want  string
	}{
		{"missing", store.Entry{}, false, entryPending},
		{"loading", store.Entry{Loading: true, Error: "stale"}, true, entryLoading},
		{"errored", store.Entry{Error: "capture failed"}, true, entryErrored},
		{"baseline only", store.Entry{BaselineScreenshot: "/screenshots/a.webp"}, true, entryBaseline},
		{"empty", store.Entry{}, true, entryPending},
		{"failing", store.Entry{ComparisonScreenshot: "/c.webp", Failing: true}, true, entryFailing},
		{"passing", store.Entry{ComparisonScreenshot: "/c.webp"}, true, entryPassing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entryState(tt.entry, tt.ok); got != tt.want {
				t.Fatalf("entryState = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderSiteDetailShowsDiffPerDevice(t *testing.T) {
	threshold := 1.0
	detail := api.SiteDetail{
		Site: api.Site{
			Path:               "acme",
			BaselineURL:        "https://acme.example",
			ComparisonURL:      "https://staging.acme.example",
			FailingThreshold:   &threshold,
			EffectiveThreshold: threshold,
		},
		Devices: []api.Device{{Name: "desktop"}, {Name: "mobile"}},
		Pages: []*store.Page{{
			ID:    3,
			Route: "/pricing",
			Screenshots: map[string]store.Entry{
				"desktop": {ComparisonScreenshot: "/c.webp", PercentageDiff: 12.5, Failing: true},
			},
		}},
	}
	out := renderSiteDetail(detail, false)
	for _, want := range []string{"Threshold:   1%", "/pricing", "failing", "12.50%", "mobile", entryPending} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "(default)") {
		t.Fatalf("explicit threshold should not be marked default:\n%s", out)
	}
}

func TestParseResolution(t *testing.T) {
	w, h, err := parseResolution("1280x800")
	if err != nil || w != 1280 || h != 800 {
		t.Fatalf("parseResolution = %d, %d, %v", w, h, err)
	}
	for _, bad := range []string{"1280", "0x800", "axb", "1280x-1"} {
		if _, _, err := parseResolution(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseThreshold(t *testing.T) {
	got, err := parseThreshold("2.5%")
	if err != nil || got == nil || *got != 2.5 {
		t.Fatalf("parseThreshold(2.5%%) = %v, %v", got, err)
	}
	got, err = parseThreshold("default")
	if err != nil || got != nil {
		t.Fatalf("parseThreshold(default) = %v, %v", got, err)
	}
	if _, err := parseThreshold("lots"); err == nil {
		t.Fatal("expected error for non-numeric threshold")
	}
}
