package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"snapdiff/internal/api"
	"snapdiff/internal/services"
	"snapdiff/internal/testsupport"
)

func TestSiteLifecycleCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "site", "add", "acme", "https://acme.example", "https://staging.acme.example", "--name", "Acme", "--threshold", "2.5")
	if err != nil {
		t.Fatalf("site add: %v", err)
	}
	requireContains(t, out, "Registered site acme (threshold 2.5%)")

	out, err = env.run(t, "site", "list")
	if err != nil {
		t.Fatalf("site list: %v", err)
	}
	requireContains(t, out, "acme")
	requireContains(t, out, "https://staging.acme.example")

	out, err = env.run(t, "device", "add", "acme", "desktop", "1280x800", "--username", "bob", "--password", "hunter2")
	if err != nil {
		t.Fatalf("device add: %v", err)
	}
	requireContains(t, out, "Added device desktop (1280x800)")

	out, err = env.run(t, "device", "list", "acme")
	if err != nil {
		t.Fatalf("device list: %v", err)
	}
	requireContains(t, out, "1280x800")
	requireContains(t, out, "bob")

	out, err = env.run(t, "page", "add", "acme", "pricing")
	if err != nil {
		t.Fatalf("page add: %v", err)
	}
	requireContains(t, out, "/pricing")

	out, err = env.run(t, "site", "show", "acme")
	if err != nil {
		t.Fatalf("site show: %v", err)
	}
	requireContains(t, out, "Threshold:   2.5%")
	requireContains(t, out, "/pricing")
	requireContains(t, out, entryPending)

	out, err = env.run(t, "site", "threshold", "acme", "default")
	if err != nil {
		t.Fatalf("site threshold: %v", err)
	}
	requireContains(t, out, "(default)")

	pages, err := env.store.GetPages(context.Background(), "acme")
	if err != nil || len(pages) != 1 {
		t.Fatalf("expected one stored page, got %d (err=%v)", len(pages), err)
	}
	id := strconv.FormatInt(pages[0].ID, 10)
	if _, err := env.run(t, "page", "remove", "acme", id); err != nil {
		t.Fatalf("page remove: %v", err)
	}

	if _, err := env.run(t, "site", "remove", "acme"); err != nil {
		t.Fatalf("site remove: %v", err)
	}
	_, err = env.run(t, "site", "show", "acme")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found after removal, got %v", err)
	}
}

func TestSiteShowJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.MustCreateSite(t, env.store, "acme")
	testsupport.MustAddDevice(t, env.store, "acme", "mobile", 375, 667)

	out, err := env.run(t, "site", "show", "acme", "--json")
	if err != nil {
		t.Fatalf("site show --json: %v", err)
	}
	var detail api.SiteDetail
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if detail.Site.Path != "acme" || len(detail.Devices) != 1 || detail.Devices[0].Name != "mobile" {
		t.Fatalf("unexpected detail: %+v", detail)
	}
}

func TestCompareCommandFiltersAndWaits(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.MustCreateSite(t, env.store, "acme")
	testsupport.MustAddDevice(t, env.store, "acme", "desktop", 1280, 800)
	testsupport.MustAddDevice(t, env.store, "acme", "mobile", 375, 667)
	testsupport.MustAddPage(t, env.store, "acme", "/")
	testsupport.MustAddPage(t, env.store, "acme", "/pricing")

	out, err := env.run(t, "compare", "acme", "--baselines", "--route", "/pricing", "--device", "mobile", "--wait")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	requireContains(t, out, "Comparison running for acme")
	requireContains(t, out, "Site:        acme")

	jobs, baselines := env.batch.snapshot()
	if !baselines {
		t.Fatal("expected baselines flag to reach the batch")
	}
	if len(jobs) != 1 || jobs[0].PageRoute != "/pricing" || jobs[0].Device != "mobile" {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
}

func TestCompareUnknownSite(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := env.run(t, "compare", "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "System Status")
	requireContains(t, out, "running (pid 42)")
	requireContains(t, out, "4 workers")
	requireContains(t, out, "Chrome")

	out, err = env.run(t, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Running || status.Pool.Completed != 7 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestStatusFallsBackToPreflightWhenDaemonDown(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, "http://127.0.0.1:1", env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "not running")
	requireContains(t, out, "Data directory")
}

func TestAuthTokenFromConfig(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAPIToken("s3cret"))

	if _, err := env.run(t, "site", "list"); err != nil {
		t.Fatalf("site list with configured token: %v", err)
	}

	wrong := *env.cfg
	wrong.Paths.APIToken = "wrong"
	writeTestConfig(t, env.configPath, &wrong)
	if _, err := env.run(t, "site", "list"); err == nil {
		t.Fatal("expected wrong token to be rejected")
	}
}

func TestCaptureViaDaemonWritesPNG(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "shots", "home.png")

	out, err := env.run(t, "capture", "https://acme.example", "--via-daemon", "--out", target, "--resolution", "800x600")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	requireContains(t, out, "Saved "+target)
	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("expected screenshot at %s: %v", target, err)
	}
	if info.Size() == 0 {
		t.Fatal("expected non-empty screenshot")
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	target := filepath.Join(home, "snapdiff.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, "", ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, "", target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+target)
	requireContains(t, out, "Configuration valid")
}
