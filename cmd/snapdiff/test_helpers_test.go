package main

import (
	"bytes"
	"context"
	"image/color"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"snapdiff/internal/api"
	"snapdiff/internal/capture"
	"snapdiff/internal/comparison"
	"snapdiff/internal/config"
	"snapdiff/internal/notify"
	"snapdiff/internal/server"
	"snapdiff/internal/store"
	"snapdiff/internal/testsupport"
)

type stubCapturer struct {
	png []byte
}

func (s *stubCapturer) Submit(_ context.Context, req capture.Request) (capture.Result, error) {
	if err := os.WriteFile(req.FilePath, s.png, 0o644); err != nil {
		return capture.Result{}, err
	}
	return capture.Result{Path: req.FilePath, Attempts: 1}, nil
}

type stubBatch struct {
	mu        sync.Mutex
	jobs      []comparison.Job
	baselines bool
}

func (s *stubBatch) RunBatch(_ context.Context, jobs []comparison.Job, generateBaselines bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, jobs...)
	s.baselines = generateBaselines
	return "batch-1", nil
}

func (s *stubBatch) snapshot() ([]comparison.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]comparison.Job(nil), s.jobs...), s.baselines
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	batch      *stubBatch
	serverURL  string
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("SNAPDIFF_API_TOKEN", "")
	t.Setenv("SNAPDIFF_AMQP_URL", "")

	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	batch := &stubBatch{}

	srv, err := server.New(server.Options{
		Config:   cfg,
		Store:    st,
		Capturer: &stubCapturer{png: testsupport.EncodePNG(t, 4, 4, color.White)},
		Batch:    batch,
		Events:   notify.NewHub(16),
		Status: func(context.Context) api.DaemonStatus {
			return api.DaemonStatus{
				Running:      true,
				PID:          42,
				DatabasePath: st.Path(),
				Pool:         api.PoolStats{Workers: 4, Completed: 7},
				Dependencies: []api.DependencyStatus{{Name: "Chrome", Available: true}},
			}
		},
	})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	configPath := filepath.Join(homeDir, ".config", "snapdiff", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      st,
		batch:      batch,
		serverURL:  ts.URL,
		configPath: configPath,
		baseDir:    base,
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := runCLI(t, args, e.serverURL, e.configPath)
	return stdout, err
}

func runCLI(t *testing.T, args []string, serverURL, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if serverURL != "" {
		flags = append(flags, "--server", serverURL)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	payload := map[string]any{
		"paths": map[string]any{
			"data_dir":        cfg.Paths.DataDir,
			"screenshots_dir": cfg.Paths.ScreenshotsDir,
			"log_dir":         cfg.Paths.LogDir,
			"api_bind":        cfg.Paths.APIBind,
			"api_token":       cfg.Paths.APIToken,
		},
		"comparison": map[string]any{
			"default_failing_threshold": cfg.Comparison.DefaultFailingThreshold,
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\noutput:\n%s", needle, haystack)
	}
}
