package comparison

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"snapdiff/internal/capture"
	"snapdiff/internal/config"
	"snapdiff/internal/imaging"
	"snapdiff/internal/logging"
	"snapdiff/internal/notify"
	"snapdiff/internal/services"
	"snapdiff/internal/store"
)

// Capturer submits capture requests; *capture.Pool satisfies it.
type Capturer interface {
	Submit(ctx context.Context, req capture.Request) (capture.Result, error)
}

// Differ compares two PNG files and writes a diff image.
type Differ interface {
	Diff(baselinePath, comparisonPath, diffPath string) (imaging.DiffResult, error)
}

// Encoder re-encodes a PNG as WebP.
type Encoder interface {
	EncodeFile(src, dst string) error
}

// Store is the persistence the pipeline consumes; *store.Store satisfies it.
type Store interface {
	GetFailingThreshold(ctx context.Context, sitePath string) (*float64, error)
	SetDeviceScreenshots(ctx context.Context, pageID int64, device string, result store.Result) error
	SetLoading(ctx context.Context, pageID int64, device string, loading bool) error
	SetErrored(ctx context.Context, pageID int64, device, message string) error
	GetPages(ctx context.Context, sitePath string) ([]*store.Page, error)
}

// Orchestrator runs single page/device comparisons.
type Orchestrator struct {
	capturer         Capturer
	store            Store
	broadcaster      notify.Broadcaster
	differ           Differ
	encoder          Encoder
	root             string
	defaultThreshold float64
	logger           *slog.Logger
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithDiffer replaces the pixel differ built from configuration.
func WithDiffer(d Differ) OrchestratorOption {
	return func(o *Orchestrator) { o.differ = d }
}

// WithEncoder replaces the WebP encoder built from configuration.
func WithEncoder(e Encoder) OrchestratorOption {
	return func(o *Orchestrator) { o.encoder = e }
}

// NewOrchestrator wires an orchestrator to the shared capture pool.
func NewOrchestrator(cfg *config.Config, capturer Capturer, st Store, broadcaster notify.Broadcaster, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	if broadcaster == nil {
		broadcaster = notify.Noop()
	}
	o := &Orchestrator{
		capturer:         capturer,
		store:            st,
		broadcaster:      broadcaster,
		differ:           imaging.NewPixelDiffer(cfg.Comparison.PixelThreshold),
		encoder:          imaging.NewWebPEncoder(cfg.Capture.WebPQuality),
		root:             cfg.Paths.ScreenshotsDir,
		defaultThreshold: cfg.Comparison.DefaultFailingThreshold,
		logger:           logging.NewComponentLogger(logger, "comparison"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one comparison. Failures are logged and recorded as an errored
// entry; nothing is returned to the caller.
func (o *Orchestrator) Run(ctx context.Context, job Job) {
	ctx = services.WithSitePath(ctx, job.SitePath)
	ctx = services.WithRoute(ctx, job.PageRoute)
	ctx = services.WithDevice(ctx, job.Device)
	logger := logging.WithContext(ctx, o.logger)

	started := time.Now()
	result, err := o.run(ctx, logger, job)
	if err != nil {
		logging.ErrorWithContext(logger, "comparison failed", "comparison_failed",
			logging.Error(err),
			logging.Int64("page_id", job.ID),
			logging.String(logging.FieldErrorHint, "check capture and screenshot directory logs above"),
		)
		o.markErrored(ctx, logger, job, err)
		return
	}
	logger.Info("comparison complete",
		logging.Float64("percentage_diff", result.PercentageDiff),
		logging.Bool("failing", result.Failing),
		logging.Duration("elapsed", time.Since(started)),
	)
}

func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger, job Job) (store.Result, error) {
	if err := job.Validate(); err != nil {
		return store.Result{}, services.Wrap(services.ErrValidation, "comparison", "validate job", "invalid job", err)
	}
	dir, err := PageDir(o.root, job.SitePath, job.PageRoute)
	if err != nil {
		return store.Result{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return store.Result{}, fmt.Errorf("ensure page directory: %w", err)
	}

	baselinePath := filepath.Join(dir, job.baselineName()+".png")
	comparisonPath := filepath.Join(dir, job.comparisonName()+".png")
	diffPath := imaging.DiffPath(baselinePath)
	for _, p := range []string{baselinePath, comparisonPath, diffPath} {
		if err := within(o.root, p); err != nil {
			return store.Result{}, services.Wrap(services.ErrValidation, "comparison", "resolve paths", "unsafe file name", err)
		}
	}

	needBaseline := job.GenerateBaselines || !fileExists(baselinePath)
	baseline, comparison, err := o.captureAll(ctx, logger, job, needBaseline, baselinePath, comparisonPath)
	if err != nil {
		return store.Result{}, err
	}
	if baseline != nil && baseline.WebPPath == "" {
		o.dropStaleWebP(logger, baselinePath)
	}
	if comparison.WebPPath == "" {
		o.dropStaleWebP(logger, comparisonPath)
	}

	diff, err := o.differ.Diff(baselinePath, comparisonPath, diffPath)
	if err != nil {
		return store.Result{}, fmt.Errorf("diff screenshots: %w", err)
	}
	pct := PercentageDiff(diff.DiffCount, diff.Width, diff.Height)

	diffWebP := imaging.WebPPath(diffPath)
	if err := o.encoder.EncodeFile(diffPath, diffWebP); err != nil {
		logging.WarnWithContext(logger, "diff webp encode failed; serving png", "diff_encode_failed",
			logging.Error(err),
			logging.String("path", diffPath),
			logging.String(logging.FieldImpact, "dashboard shows the larger png diff"),
		)
		diffWebP = ""
		o.dropStaleWebP(logger, diffPath)
	}

	threshold, err := o.threshold(ctx, job.SitePath)
	if err != nil {
		return store.Result{}, err
	}

	result := store.Result{PercentageDiff: pct, Failing: Classify(pct, threshold)}
	if baseline != nil {
		result.BaselineScreenshot, err = producedRef(o.root, baselinePath, baseline.WebPPath)
	} else {
		result.BaselineScreenshot, err = webRef(o.root, baselinePath)
	}
	if err != nil {
		return store.Result{}, err
	}
	if result.ComparisonScreenshot, err = producedRef(o.root, comparisonPath, comparison.WebPPath); err != nil {
		return store.Result{}, err
	}
	if result.DiffImage, err = producedRef(o.root, diffPath, diffWebP); err != nil {
		return store.Result{}, err
	}

	if err := o.store.SetDeviceScreenshots(ctx, job.ID, job.Device, result); err != nil {
		return store.Result{}, fmt.Errorf("persist result: %w", err)
	}
	o.broadcastPages(ctx, logger, job.SitePath)
	return result, nil
}

// captureAll submits the comparison capture and, when needed, the baseline
// capture concurrently, and returns only after both have finished. The
// baseline result is nil when the existing baseline was kept.
func (o *Orchestrator) captureAll(ctx context.Context, logger *slog.Logger, job Job, needBaseline bool, baselinePath, comparisonPath string) (*capture.Result, capture.Result, error) {
	var (
		wg          sync.WaitGroup
		baseline    *capture.Result
		baselineErr error
	)
	if needBaseline {
		logger.Debug("capturing baseline", logging.Bool("requested", job.GenerateBaselines))
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.capturer.Submit(ctx, job.request(job.BaselineURL, baselinePath))
			baseline, baselineErr = &res, err
		}()
	}
	comparison, comparisonErr := o.capturer.Submit(ctx, job.request(job.ComparisonURL, comparisonPath))
	wg.Wait()

	if comparison.Degraded {
		logging.WarnWithContext(logger, "comparison captured after failed navigation", "capture_degraded",
			logging.String(logging.FieldURL, job.ComparisonURL),
			logging.String(logging.FieldImpact, "diff may reflect an incomplete page load"),
		)
	}

	var errs []error
	if baselineErr != nil {
		errs = append(errs, fmt.Errorf("baseline capture: %w", baselineErr))
	}
	if comparisonErr != nil {
		errs = append(errs, fmt.Errorf("comparison capture: %w", comparisonErr))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, capture.Result{}, err
	}
	return baseline, comparison, nil
}

func (o *Orchestrator) dropStaleWebP(logger *slog.Logger, png string) {
	if err := dropStaleWebP(png); err != nil {
		logging.WarnWithContext(logger, "stale webp not removed", "stale_webp_remove_failed",
			logging.Error(err),
			logging.String("path", png),
			logging.String(logging.FieldImpact, "dashboard may show an earlier rendition until the next run"),
		)
	}
}

func (o *Orchestrator) threshold(ctx context.Context, sitePath string) (float64, error) {
	value, err := o.store.GetFailingThreshold(ctx, sitePath)
	if err != nil {
		return 0, fmt.Errorf("load failing threshold: %w", err)
	}
	if value == nil {
		return o.defaultThreshold, nil
	}
	return *value, nil
}

// markErrored leaves the entry distinguishable from one still in progress.
func (o *Orchestrator) markErrored(ctx context.Context, logger *slog.Logger, job Job, cause error) {
	if job.ID <= 0 || job.Device == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := o.store.SetErrored(ctx, job.ID, job.Device, cause.Error()); err != nil {
		logging.ErrorWithContext(logger, "could not record comparison failure", "errored_state_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "entry stays loading until the next run"),
		)
		return
	}
	o.broadcastPages(ctx, logger, job.SitePath)
}

func (o *Orchestrator) broadcastPages(ctx context.Context, logger *slog.Logger, sitePath string) {
	if err := broadcastPages(ctx, o.store, o.broadcaster, sitePath); err != nil {
		logging.WarnWithContext(logger, "screenshot update not broadcast", "broadcast_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "dashboards refresh on the next update"),
		)
	}
}

func broadcastPages(ctx context.Context, st Store, broadcaster notify.Broadcaster, sitePath string) error {
	pages, err := st.GetPages(ctx, sitePath)
	if err != nil {
		return fmt.Errorf("load pages: %w", err)
	}
	return broadcaster.Broadcast(ctx, notify.EventUpdateScreenshots, pages, sitePath)
}
