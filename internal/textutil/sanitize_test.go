package textutil_test

import (
	"testing"

	"snapdiff/internal/textutil"
)

func TestSanitizeToken(t *testing.T) {
	cases := map[string]string{
		"About Us":        "about-us",
		"Café/Menu":       "cafe-menu",
		"  --weird__id ":  "weird__id",
		"query?x=1&y=2":   "query-x-1-y-2",
		"":                "",
		"///":             "",
		"Résumé 2024!!":   "resume-2024",
	}
	for in, want := range cases {
		if got := textutil.SanitizeToken(in); got != want {
			t.Fatalf("SanitizeToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := textutil.SanitizeFileName(` iPhone 12: "Pro"/Max `); got != "iPhone 12- Pro-Max" {
		t.Fatalf("unexpected file name %q", got)
	}
	if got := textutil.SanitizeFileName("   "); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

func TestFold(t *testing.T) {
	if got := textutil.Fold("naïve façade"); got != "naive facade" {
		t.Fatalf("Fold = %q", got)
	}
}
