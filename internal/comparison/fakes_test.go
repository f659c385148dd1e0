package comparison_test

import (
	"context"
	"errors"
	"image/color"
	"strings"
	"sync"
	"testing"

	"snapdiff/internal/capture"
	"snapdiff/internal/comparison"
	"snapdiff/internal/config"
	"snapdiff/internal/imaging"
	"snapdiff/internal/logging"
	"snapdiff/internal/store"
	"snapdiff/internal/testsupport"
)

const shotSize = 100

// fakeCapturer writes a shotSize square PNG per request. changed[url] pixels
// are painted red so the diff count is known in advance.
type fakeCapturer struct {
	mu       sync.Mutex
	requests []capture.Request
	changed  map[string]int
	fail     map[string]error
	// encode makes every capture also write a WebP sibling.
	encode bool
}

func newFakeCapturer() *fakeCapturer {
	return &fakeCapturer{changed: map[string]int{}, fail: map[string]error{}}
}

func (f *fakeCapturer) Submit(_ context.Context, req capture.Request) (capture.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	changed := f.changed[req.URL]
	failure := f.fail[req.URL]
	encode := f.encode
	f.mu.Unlock()

	if failure != nil {
		return capture.Result{}, &capture.Failure{URL: req.URL, Attempts: 2, Err: failure}
	}
	img := testsupport.SolidImage(shotSize, shotSize, color.White)
	for i := 0; i < changed; i++ {
		img.Set(i%shotSize, i/shotSize, color.RGBA{R: 255, A: 255})
	}
	if err := imaging.WritePNG(req.FilePath, img); err != nil {
		return capture.Result{}, err
	}
	result := capture.Result{Path: req.FilePath, Attempts: 1}
	if encode {
		webp := imaging.WebPPath(req.FilePath)
		if err := imaging.WriteFile(webp, []byte("RIFF")); err != nil {
			return capture.Result{}, err
		}
		result.WebPPath = webp
	}
	return result, nil
}

func (f *fakeCapturer) setEncode(on bool) {
	f.mu.Lock()
	f.encode = on
	f.mu.Unlock()
}

type failingEncoder struct{}

func (failingEncoder) EncodeFile(string, string) error {
	return errors.New("libwebp: out of memory")
}

func (f *fakeCapturer) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, req := range f.requests {
		if strings.HasPrefix(req.URL, prefix) {
			n++
		}
	}
	return n
}

type harness struct {
	cfg      *config.Config
	store    *store.Store
	rec      *testsupport.Recorder
	capturer *fakeCapturer
	orch     *comparison.Orchestrator
	site     *store.Site
	device   *store.Device
}

const (
	baselineHost   = "https://acme.example"
	comparisonHost = "https://staging.acme.example"
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithDefaultThreshold(5))
	st := testsupport.MustOpenStore(t, cfg)
	site := testsupport.MustCreateSite(t, st, "acme")
	device := testsupport.MustAddDevice(t, st, "acme", "desktop", shotSize, shotSize)
	rec := &testsupport.Recorder{}
	capturer := newFakeCapturer()
	orch := comparison.NewOrchestrator(cfg, capturer, st, rec, logging.NewNop(),
		comparison.WithDiffer(&imaging.PixelDiffer{Threshold: 0.1, IncludeAntiAlias: true}),
	)
	return &harness{cfg: cfg, store: st, rec: rec, capturer: capturer, orch: orch, site: site, device: device}
}

func (h *harness) job(t *testing.T, route string) comparison.Job {
	t.Helper()
	page := testsupport.MustAddPage(t, h.store, "acme", route)
	jobs := comparison.BuildJobs(h.site, []*store.Device{h.device}, []*store.Page{page})
	if len(jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(jobs))
	}
	return jobs[0]
}

func (h *harness) entry(t *testing.T, pageID int64) store.Entry {
	t.Helper()
	page, err := h.store.GetPage(context.Background(), pageID)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	entry, ok := page.Screenshots[h.device.Name]
	if !ok {
		t.Fatalf("no entry for device %q", h.device.Name)
	}
	return entry
}
