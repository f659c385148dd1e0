package capture_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"snapdiff/internal/capture"
	"snapdiff/internal/config"
	"snapdiff/internal/logging"
)

func TestNewPoolFromConfigUsesCaptureSection(t *testing.T) {
	cfg := config.Default()
	cfg.Capture.MaxConcurrency = 2
	factory := &fakeFactory{}

	pool := capture.NewPoolFromConfig(&cfg, factory, logging.NewNop())
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(pool.Close)

	if got := pool.Stats().Workers; got != 2 {
		t.Fatalf("expected 2 workers, got %d", got)
	}
	if got := len(factory.contexts()); got != 2 {
		t.Fatalf("expected 2 execution contexts, got %d", got)
	}

	target := filepath.Join(t.TempDir(), "shot.png")
	result, err := pool.Submit(context.Background(), capture.Request{URL: "https://acme.example", FilePath: target})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Path != target {
		t.Fatalf("unexpected path %q", result.Path)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected screenshot on disk: %v", err)
	}
}
