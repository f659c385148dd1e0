package comparison_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"snapdiff/internal/capture"
	"snapdiff/internal/comparison"
	"snapdiff/internal/imaging"
	"snapdiff/internal/logging"
	"snapdiff/internal/notify"
	"snapdiff/internal/store"
	"snapdiff/internal/testsupport"
)

func TestPercentageDiffAndClassify(t *testing.T) {
	tests := []struct {
		name      string
		diff      int
		w, h      int
		threshold float64
		wantPct   float64
		failing   bool
	}{
		{"small change passes", 1000, 1000, 1000, 5, 0.1, false},
		{"large change fails", 60000, 1000, 1000, 5, 6, true},
		{"equal to threshold passes", 50, 10, 100, 5, 5, false},
		{"identical", 0, 10, 10, 0, 0, false},
		{"empty image", 0, 0, 0, 5, 0, false},
		{"everything differs", 100, 10, 10, 99.9, 100, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pct := comparison.PercentageDiff(tt.diff, tt.w, tt.h)
			if pct != tt.wantPct {
				t.Fatalf("PercentageDiff = %v, want %v", pct, tt.wantPct)
			}
			if pct < 0 || pct > 100 {
				t.Fatalf("percentage out of range: %v", pct)
			}
			if got := comparison.Classify(pct, tt.threshold); got != tt.failing {
				t.Fatalf("Classify(%v, %v) = %v, want %v", pct, tt.threshold, got, tt.failing)
			}
		})
	}
}

func TestPageSegment(t *testing.T) {
	tests := map[string]string{
		"/":       "-",
		"":        "-",
		"/about":  "about",
		"pricing": "pricing",
		"/a_b-c":  "a_b-c",
	}
	for route, want := range tests {
		if got := comparison.PageSegment(route); got != want {
			t.Fatalf("PageSegment(%q) = %q, want %q", route, got, want)
		}
	}
}

func TestPageSegmentKeepsDistinctRoutesApart(t *testing.T) {
	pairs := [][2]string{
		{"/About", "/about"},
		{"/blog/post", "/blog-post"},
		{"/%%%", "/"},
		{"/about/", "/about"},
		{"/café/menu", "/cafe/menu"},
	}
	for _, pair := range pairs {
		a, b := comparison.PageSegment(pair[0]), comparison.PageSegment(pair[1])
		if a == b {
			t.Fatalf("routes %q and %q share segment %q", pair[0], pair[1], a)
		}
		if strings.ContainsAny(a, "/\\") || strings.ContainsAny(b, "/\\") {
			t.Fatalf("segment contains a separator: %q / %q", a, b)
		}
	}
	if got := comparison.PageSegment("/blog/Post 1/"); !strings.HasPrefix(got, "blog-post-1-") {
		t.Fatalf("expected readable prefix, got %q", got)
	}
	if comparison.PageSegment("/blog/post") != comparison.PageSegment("/blog/post") {
		t.Fatal("segment must be deterministic")
	}
}

func TestPageDirRejectsUnusableSite(t *testing.T) {
	if _, err := comparison.PageDir("/shots", "///", "/"); err == nil {
		t.Fatal("expected error for site without safe characters")
	}
	dir, err := comparison.PageDir("/shots", "Acme", "/about")
	if err != nil {
		t.Fatalf("PageDir: %v", err)
	}
	if dir != filepath.Join("/shots", "acme", "about") {
		t.Fatalf("unexpected dir %q", dir)
	}
}

func TestBuildJobs(t *testing.T) {
	site := &store.Site{
		Path:          "acme",
		BaselineURL:   "https://acme.example/",
		ComparisonURL: "https://staging.acme.example",
		CookieData:    `[{"name":"consent","value":"yes"}]`,
	}
	devices := []*store.Device{
		{Name: "desktop", Width: 1280, Height: 800, UserAgent: "desk"},
		{Name: "phone", Width: 390, Height: 844, UserAgent: "phone", Login: &store.Login{Username: "u", Password: "p"}},
	}
	pages := []*store.Page{{ID: 7, Route: "/"}, {ID: 8, Route: "/pricing"}}

	jobs := comparison.BuildJobs(site, devices, pages)
	if len(jobs) != 4 {
		t.Fatalf("expected 4 jobs, got %d", len(jobs))
	}
	last := jobs[3]
	if last.BaselineURL != "https://acme.example/pricing" || last.ComparisonURL != "https://staging.acme.example/pricing" {
		t.Fatalf("unexpected urls: %+v", last)
	}
	if last.ID != 8 || last.Device != "phone" || last.SiteLogin == nil || last.SiteLogin.Username != "u" {
		t.Fatalf("unexpected job: %+v", last)
	}
	if jobs[0].Resolution != (capture.Resolution{Width: 1280, Height: 800}) || jobs[0].SiteLogin != nil {
		t.Fatalf("unexpected first job: %+v", jobs[0])
	}
	if jobs[0].BaselineURL != "https://acme.example/" {
		t.Fatalf("unexpected root url %q", jobs[0].BaselineURL)
	}
	for _, job := range jobs {
		if err := job.Validate(); err != nil {
			t.Fatalf("built job invalid: %v", err)
		}
	}
}

func TestOrchestratorCapturesMissingBaseline(t *testing.T) {
	h := newHarness(t)
	job := h.job(t, "/about")
	h.capturer.changed[job.ComparisonURL] = 600 // 6% of 100x100

	h.orch.Run(context.Background(), job)

	if got := h.capturer.count(baselineHost); got != 1 {
		t.Fatalf("expected 1 baseline capture, got %d", got)
	}
	if got := h.capturer.count(comparisonHost); got != 1 {
		t.Fatalf("expected 1 comparison capture, got %d", got)
	}

	entry := h.entry(t, job.ID)
	if entry.Loading || !entry.Failing || entry.Error != "" {
		t.Fatalf("unexpected entry state: %+v", entry)
	}
	if entry.PercentageDiff != 6 {
		t.Fatalf("expected 6%% diff, got %v", entry.PercentageDiff)
	}
	if entry.BaselineScreenshot != "/screenshots/acme/about/desktop-baseline.png" {
		t.Fatalf("unexpected baseline ref %q", entry.BaselineScreenshot)
	}
	if entry.ComparisonScreenshot != "/screenshots/acme/about/desktop-comparison.png" {
		t.Fatalf("unexpected comparison ref %q", entry.ComparisonScreenshot)
	}
	if entry.DiffImage != "/screenshots/acme/about/desktop-baseline-diff.webp" {
		t.Fatalf("unexpected diff ref %q", entry.DiffImage)
	}

	events := h.rec.Events()
	if len(events) != 1 || events[0].Name != notify.EventUpdateScreenshots || events[0].Scope != "acme" {
		t.Fatalf("expected one update for acme, got %+v", events)
	}
	var pages []store.Page
	if err := json.Unmarshal(events[0].Payload, &pages); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(pages) != 1 || !pages[0].Screenshots["desktop"].Failing {
		t.Fatalf("payload should carry the full updated page list: %+v", pages)
	}
}

func TestOrchestratorReusesExistingBaseline(t *testing.T) {
	h := newHarness(t)
	job := h.job(t, "/about")

	baseline := filepath.Join(h.cfg.Paths.ScreenshotsDir, "acme", "about", "desktop-baseline.png")
	testsupport.WritePNG(t, baseline, shotSize, shotSize, color.White, 0, color.White)
	before, err := os.ReadFile(baseline)
	if err != nil {
		t.Fatalf("read baseline: %v", err)
	}

	h.orch.Run(context.Background(), job)

	if got := h.capturer.count(baselineHost); got != 0 {
		t.Fatalf("existing baseline must not be re-requested, got %d captures", got)
	}
	after, err := os.ReadFile(baseline)
	if err != nil {
		t.Fatalf("read baseline: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("baseline file was overwritten")
	}
	entry := h.entry(t, job.ID)
	if entry.Loading || entry.Failing || entry.PercentageDiff != 0 {
		t.Fatalf("expected identical pass, got %+v", entry)
	}
}

func TestOrchestratorRegeneratesBaselineOnRequest(t *testing.T) {
	h := newHarness(t)
	job := h.job(t, "/about")
	baseline := filepath.Join(h.cfg.Paths.ScreenshotsDir, "acme", "about", "desktop-baseline.png")
	testsupport.WritePNG(t, baseline, shotSize, shotSize, color.Black, 0, color.Black)

	job.GenerateBaselines = true
	h.orch.Run(context.Background(), job)

	if got := h.capturer.count(baselineHost); got != 1 {
		t.Fatalf("expected baseline recapture, got %d", got)
	}
	if entry := h.entry(t, job.ID); entry.Failing || entry.PercentageDiff != 0 {
		t.Fatalf("expected fresh baseline to match comparison, got %+v", entry)
	}
}

func TestOrchestratorUsesSiteThreshold(t *testing.T) {
	h := newHarness(t)
	job := h.job(t, "/about")
	threshold := 6.0
	if err := h.store.SetFailingThreshold(context.Background(), "acme", &threshold); err != nil {
		t.Fatalf("SetFailingThreshold: %v", err)
	}
	h.capturer.changed[job.ComparisonURL] = 600

	h.orch.Run(context.Background(), job)

	entry := h.entry(t, job.ID)
	if entry.PercentageDiff != 6 || entry.Failing {
		t.Fatalf("diff equal to threshold must pass, got %+v", entry)
	}
}

func TestOrchestratorRecordsErroredState(t *testing.T) {
	h := newHarness(t)
	job := h.job(t, "/about")
	ctx := context.Background()
	if err := h.store.SetLoading(ctx, job.ID, job.Device, true); err != nil {
		t.Fatalf("SetLoading: %v", err)
	}
	h.capturer.fail[job.ComparisonURL] = errors.New("net::ERR_CONNECTION_REFUSED")

	h.orch.Run(ctx, job)

	entry := h.entry(t, job.ID)
	if entry.Loading || !entry.Errored() {
		t.Fatalf("expected errored entry, got %+v", entry)
	}
	if entry.DiffImage != "" {
		t.Fatalf("refs should stay untouched, got %+v", entry)
	}
	if got := len(h.rec.Events()); got != 1 {
		t.Fatalf("expected errored state to be broadcast, got %d events", got)
	}
}

func TestBatchMarksLoadingBeforeResults(t *testing.T) {
	h := newHarness(t)
	withBaseline := h.job(t, "/about")
	withoutBaseline := h.job(t, "/pricing")
	testsupport.WritePNG(t,
		filepath.Join(h.cfg.Paths.ScreenshotsDir, "acme", "about", "desktop-baseline.png"),
		shotSize, shotSize, color.White, 0, color.White)

	batch := comparison.NewBatch(h.store, h.rec, h.orch, 4, logging.NewNop())
	if err := batch.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(batch.Stop)
	signal := h.rec.Signal()

	status, err := batch.RunBatch(context.Background(), []comparison.Job{withBaseline, withoutBaseline}, false)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if status != comparison.StatusRunning {
		t.Fatalf("expected %q, got %q", comparison.StatusRunning, status)
	}

	deadline := time.After(10 * time.Second)
	for len(h.rec.Events()) < 3 {
		select {
		case <-signal:
		case <-deadline:
			t.Fatalf("timed out waiting for results, have %d events", len(h.rec.Events()))
		}
	}

	events := h.rec.Events()
	var loading []store.Page
	if err := json.Unmarshal(events[0].Payload, &loading); err != nil {
		t.Fatalf("decode loading payload: %v", err)
	}
	if len(loading) != 2 {
		t.Fatalf("expected both pages in loading payload, got %d", len(loading))
	}
	for _, page := range loading {
		if !page.Screenshots["desktop"].Loading {
			t.Fatalf("page %s not loading in first notification", page.Route)
		}
	}

	if got := h.capturer.count(baselineHost); got != 1 {
		t.Fatalf("expected exactly one baseline capture, got %d", got)
	}
	if got := h.capturer.count(comparisonHost); got != 2 {
		t.Fatalf("expected exactly two comparison captures, got %d", got)
	}
	for _, id := range []int64{withBaseline.ID, withoutBaseline.ID} {
		if entry := h.entry(t, id); entry.Loading {
			t.Fatalf("page %d still loading after completion", id)
		}
	}
}

func TestBatchRejectsWhenStopped(t *testing.T) {
	h := newHarness(t)
	batch := comparison.NewBatch(h.store, h.rec, h.orch, 1, logging.NewNop())
	if _, err := batch.RunBatch(context.Background(), nil, false); !errors.Is(err, comparison.ErrBatchClosed) {
		t.Fatalf("expected ErrBatchClosed, got %v", err)
	}
}

func TestBatchValidatesJobs(t *testing.T) {
	h := newHarness(t)
	batch := comparison.NewBatch(h.store, h.rec, h.orch, 1, logging.NewNop())
	if err := batch.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(batch.Stop)

	_, err := batch.RunBatch(context.Background(), []comparison.Job{{SitePath: "acme"}}, false)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(h.rec.Events()) != 0 {
		t.Fatal("invalid batch must not notify")
	}
}

func TestBatchSkipsUnknownPages(t *testing.T) {
	h := newHarness(t)
	job := h.job(t, "/about")
	job.ID = 9999

	batch := comparison.NewBatch(h.store, h.rec, h.orch, 1, logging.NewNop())
	if err := batch.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(batch.Stop)

	status, err := batch.RunBatch(context.Background(), []comparison.Job{job}, false)
	if err != nil || status != comparison.StatusRunning {
		t.Fatalf("unexpected result %q, %v", status, err)
	}
	if got := h.capturer.count(""); got != 0 {
		t.Fatalf("skipped job must not capture, got %d", got)
	}
}

func TestJobValidateRejectsPathLikeNames(t *testing.T) {
	base := comparison.Job{
		BaselineURL:   baselineHost,
		ComparisonURL: comparisonHost,
		SitePath:      "acme",
		Device:        "desktop",
		ID:            1,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid job rejected: %v", err)
	}
	tests := map[string]func(*comparison.Job){
		"device traversal":  func(j *comparison.Job) { j.Device = "../../escaped" },
		"device dotdot":     func(j *comparison.Job) { j.Device = ".." },
		"baseline slash":    func(j *comparison.Job) { j.BaselineName = "nested/baseline" },
		"comparison escape": func(j *comparison.Job) { j.ComparisonName = `..\\evil` },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			job := base
			mutate(&job)
			if err := job.Validate(); err == nil {
				t.Fatalf("expected %+v to be rejected", job)
			}
		})
	}
}

func TestOrchestratorNeverWritesOutsideScreenshotsRoot(t *testing.T) {
	h := newHarness(t)
	job := h.job(t, "/about")
	outside := filepath.Dir(h.cfg.Paths.ScreenshotsDir)

	escaping := job
	escaping.Device = "../../../escaped"
	h.orch.Run(context.Background(), escaping)

	renamed := job
	renamed.BaselineName = "../../../escaped"
	h.orch.Run(context.Background(), renamed)

	if got := h.capturer.count(""); got != 0 {
		t.Fatalf("expected no captures for unsafe names, got %d", got)
	}
	matches, err := filepath.Glob(filepath.Join(outside, "escaped*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("files written outside the screenshots root: %v", matches)
	}
	if entry := h.entry(t, job.ID); !entry.Errored() {
		t.Fatalf("expected the page entry to record the rejected job, got %+v", entry)
	}
}

func TestOrchestratorDiffRefMatchesCurrentRun(t *testing.T) {
	h := newHarness(t)
	job := h.job(t, "/about")
	diffWebP := filepath.Join(h.cfg.Paths.ScreenshotsDir, "acme", "about", "desktop-baseline-diff.webp")

	h.orch.Run(context.Background(), job)
	if entry := h.entry(t, job.ID); entry.DiffImage != "/screenshots/acme/about/desktop-baseline-diff.webp" {
		t.Fatalf("first run should serve the webp diff, got %q", entry.DiffImage)
	}

	broken := comparison.NewOrchestrator(h.cfg, h.capturer, h.store, h.rec, logging.NewNop(),
		comparison.WithDiffer(&imaging.PixelDiffer{Threshold: 0.1, IncludeAntiAlias: true}),
		comparison.WithEncoder(failingEncoder{}),
	)
	h.capturer.changed[job.ComparisonURL] = 5000
	broken.Run(context.Background(), job)

	entry := h.entry(t, job.ID)
	if !entry.Failing || entry.PercentageDiff != 50 {
		t.Fatalf("expected the second run's verdict, got %+v", entry)
	}
	if entry.DiffImage != "/screenshots/acme/about/desktop-baseline-diff.png" {
		t.Fatalf("diff ref must point at this run's png, got %q", entry.DiffImage)
	}
	if _, err := os.Stat(diffWebP); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("stale diff webp should be removed, stat err = %v", err)
	}
}

func TestOrchestratorCaptureRefsFollowRenditions(t *testing.T) {
	h := newHarness(t)
	job := h.job(t, "/about")
	dir := filepath.Join(h.cfg.Paths.ScreenshotsDir, "acme", "about")

	h.capturer.setEncode(true)
	h.orch.Run(context.Background(), job)
	entry := h.entry(t, job.ID)
	if entry.BaselineScreenshot != "/screenshots/acme/about/desktop-baseline.webp" ||
		entry.ComparisonScreenshot != "/screenshots/acme/about/desktop-comparison.webp" {
		t.Fatalf("expected webp refs, got %+v", entry)
	}

	h.capturer.setEncode(false)
	job.GenerateBaselines = true
	h.orch.Run(context.Background(), job)
	entry = h.entry(t, job.ID)
	if entry.BaselineScreenshot != "/screenshots/acme/about/desktop-baseline.png" ||
		entry.ComparisonScreenshot != "/screenshots/acme/about/desktop-comparison.png" {
		t.Fatalf("expected png refs once encoding stopped, got %+v", entry)
	}
	for _, name := range []string{"desktop-baseline.webp", "desktop-comparison.webp"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("stale %s should be removed, stat err = %v", name, err)
		}
	}
}
