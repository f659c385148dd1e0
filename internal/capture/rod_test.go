package capture_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"snapdiff/internal/capture"
)

func TestResolveRemoteURLPassesWebSocketThrough(t *testing.T) {
	const ws = "ws://127.0.0.1:9222/devtools/browser/abc"
	got, err := capture.ResolveRemoteURL(context.Background(), ws)
	if err != nil || got != ws {
		t.Fatalf("expected passthrough, got %q (%v)", got, err)
	}
}

func TestResolveRemoteURLQueriesDevTools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json/version" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"webSocketDebuggerUrl":"ws://localhost:9222/devtools/browser/xyz"}`))
	}))
	defer srv.Close()

	got, err := capture.ResolveRemoteURL(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("ResolveRemoteURL: %v", err)
	}
	host := strings.TrimPrefix(srv.URL, "http://")
	if got != "ws://"+host+"/devtools/browser/xyz" {
		t.Fatalf("unexpected websocket url %q", got)
	}
}
