package capture_test

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"snapdiff/internal/capture"
	"snapdiff/internal/imaging"
	"snapdiff/internal/logging"
	"snapdiff/internal/testsupport"
)

func newTask(enc capture.Encoder) *capture.Task {
	return capture.NewTask(time.Second, enc, logging.NewNop())
}

func newRequest(t *testing.T) capture.Request {
	t.Helper()
	return capture.Request{
		URL:        "https://example.com/about",
		FilePath:   filepath.Join(t.TempDir(), "about", "desktop-comparison.png"),
		CookieData: `[{"name":"consent","value":"yes"}]`,
		Resolution: capture.Resolution{Width: 1280, Height: 800},
		UserAgent:  "snapdiff-test",
		Login:      &capture.Login{Username: "admin", Password: "hunter2"},
	}
}

func TestTaskRunsStepsInOrder(t *testing.T) {
	tab := &fakeTab{png: testsupport.EncodePNG(t, 4, 4, color.White)}
	ec := &fakeContext{tab: tab}
	enc := &fakeEncoder{}
	req := newRequest(t)

	result, err := newTask(enc).Run(context.Background(), ec, req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"viewport", "auth", "user_agent", "cookies", "navigate", "screenshot"}
	if got := tab.callList(); !slices.Equal(got, want) {
		t.Fatalf("unexpected step order: got %v want %v", got, want)
	}
	if tab.viewport != req.Resolution {
		t.Fatalf("unexpected viewport: %+v", tab.viewport)
	}
	if tab.login == nil || tab.login.Username != "admin" {
		t.Fatalf("expected login applied, got %+v", tab.login)
	}
	if len(tab.cookies) != 1 || tab.cookieURL != req.URL {
		t.Fatalf("expected cookie scoped to target url, got %v for %q", tab.cookies, tab.cookieURL)
	}
	if !tab.closed {
		t.Fatal("expected tab to be closed")
	}
	if result.Path != req.FilePath || result.Degraded {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.WebPPath != imaging.WebPPath(req.FilePath) {
		t.Fatalf("unexpected webp path: %q", result.WebPPath)
	}
	if _, err := os.Stat(req.FilePath); err != nil {
		t.Fatalf("expected png on disk: %v", err)
	}
}

func TestTaskToleratesSetupAndNavigationFailures(t *testing.T) {
	tab := &fakeTab{
		png: testsupport.EncodePNG(t, 4, 4, color.White),
		failOn: map[string]error{
			"viewport":   errors.New("emulation unsupported"),
			"auth":       errors.New("headers rejected"),
			"user_agent": errors.New("override rejected"),
			"cookies":    errors.New("bad cookie"),
			"navigate":   errors.New("net::ERR_NAME_NOT_RESOLVED"),
		},
	}
	req := newRequest(t)

	result, err := newTask(&fakeEncoder{}).Run(context.Background(), &fakeContext{tab: tab}, req)
	if err != nil {
		t.Fatalf("expected degraded success, got %v", err)
	}
	if !result.Degraded {
		t.Fatal("expected degraded result after navigation failure")
	}
	if _, err := os.Stat(req.FilePath); err != nil {
		t.Fatalf("expected usable output file: %v", err)
	}
}

func TestTaskNavigationTimeoutIsTolerated(t *testing.T) {
	tab := &fakeTab{
		png: testsupport.EncodePNG(t, 4, 4, color.White),
		navigateFn: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	task := capture.NewTask(20*time.Millisecond, nil, logging.NewNop())

	result, err := task.Run(context.Background(), &fakeContext{tab: tab}, newRequest(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Degraded {
		t.Fatal("expected degraded capture")
	}
	if result.WebPPath != "" {
		t.Fatalf("expected no webp without encoder, got %q", result.WebPPath)
	}
}

func TestTaskScreenshotFailureIsFatal(t *testing.T) {
	tab := &fakeTab{failOn: map[string]error{"screenshot": errors.New("target crashed")}}
	req := newRequest(t)

	_, err := newTask(&fakeEncoder{}).Run(context.Background(), &fakeContext{tab: tab}, req)
	if err == nil {
		t.Fatal("expected screenshot failure to be returned")
	}
	if !tab.closed {
		t.Fatal("expected tab to be released after failure")
	}
	if _, statErr := os.Stat(req.FilePath); !os.IsNotExist(statErr) {
		t.Fatalf("expected no output file, stat err = %v", statErr)
	}
}

func TestTaskEncodeFailureKeepsPNG(t *testing.T) {
	tab := &fakeTab{png: testsupport.EncodePNG(t, 4, 4, color.White)}
	enc := &fakeEncoder{err: errors.New("encoder exploded")}
	req := newRequest(t)

	result, err := newTask(enc).Run(context.Background(), &fakeContext{tab: tab}, req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.WebPPath != "" {
		t.Fatalf("expected empty webp path, got %q", result.WebPPath)
	}
	if enc.calls.Load() != 1 {
		t.Fatalf("expected one encode attempt, got %d", enc.calls.Load())
	}
	if _, err := os.Stat(result.Path); err != nil {
		t.Fatalf("expected png to remain: %v", err)
	}
}

func TestTaskSkipsOptionalSteps(t *testing.T) {
	tab := &fakeTab{png: testsupport.EncodePNG(t, 4, 4, color.White)}
	req := newRequest(t)
	req.Login = nil
	req.UserAgent = ""
	req.CookieData = ""

	if _, err := newTask(nil).Run(context.Background(), &fakeContext{tab: tab}, req); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"viewport", "navigate", "screenshot"}
	if got := tab.callList(); !slices.Equal(got, want) {
		t.Fatalf("unexpected steps: got %v want %v", got, want)
	}
}

func TestTaskTabFailure(t *testing.T) {
	ec := &fakeContext{tabErr: errors.New("context disposed")}
	if _, err := newTask(nil).Run(context.Background(), ec, newRequest(t)); err == nil {
		t.Fatal("expected tab creation error")
	}
}
