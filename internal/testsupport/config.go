package testsupport

import (
	"path/filepath"
	"testing"

	"snapdiff/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.ScreenshotsDir = filepath.Join(base, "screenshots")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Paths.APIToken = ""
	cfg.Notifications.AMQPURL = ""

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithConcurrency overrides the capture pool size.
func WithConcurrency(n int) ConfigOption {
	return func(c *config.Config) {
		c.Capture.MaxConcurrency = n
	}
}

// WithDefaultThreshold overrides the fallback failing threshold.
func WithDefaultThreshold(pct float64) ConfigOption {
	return func(c *config.Config) {
		c.Comparison.DefaultFailingThreshold = pct
	}
}

// WithAPIToken enables bearer authentication on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(c *config.Config) {
		c.Paths.APIToken = token
	}
}
