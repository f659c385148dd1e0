package comparison

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"snapdiff/internal/logging"
	"snapdiff/internal/notify"
	"snapdiff/internal/services"
)

// StatusRunning is the acknowledgement returned once a batch is accepted.
const StatusRunning = "running"

const defaultQueueSize = 64

// ErrBatchClosed is returned when the dispatcher is not running.
var ErrBatchClosed = errors.New("comparison dispatcher is not running")

// JobRunner runs one comparison; *Orchestrator satisfies it.
type JobRunner interface {
	Run(ctx context.Context, job Job)
}

type dispatch struct {
	id   string
	jobs []Job
}

// Batch accepts comparison batches and runs them in the background.
type Batch struct {
	store       Store
	broadcaster notify.Broadcaster
	runner      JobRunner
	queueSize   int
	logger      *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	queue   chan dispatch
	done    <-chan struct{}
	wg      sync.WaitGroup
}

// NewBatch constructs a batch controller. queueSize bounds how many accepted
// batches may wait for the dispatcher.
func NewBatch(st Store, broadcaster notify.Broadcaster, runner JobRunner, queueSize int, logger *slog.Logger) *Batch {
	if broadcaster == nil {
		broadcaster = notify.Noop()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Batch{
		store:       st,
		broadcaster: broadcaster,
		runner:      runner,
		queueSize:   queueSize,
		logger:      logging.NewComponentLogger(logger, "batch"),
	}
}

// Start launches the dispatcher. Jobs run under ctx until Stop.
func (b *Batch) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return errors.New("comparison dispatcher already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.queue = make(chan dispatch, b.queueSize)
	b.done = runCtx.Done()
	b.running = true

	b.wg.Add(1)
	go b.dispatchLoop(runCtx, b.queue)
	return nil
}

// Stop cancels in-flight comparisons and waits for them to return.
func (b *Batch) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	cancel := b.cancel
	b.running = false
	b.cancel = nil
	b.mu.Unlock()

	cancel()
	b.wg.Wait()
}

// RunBatch marks every job loading, broadcasts each affected site once, and
// hands the jobs to the dispatcher. It returns StatusRunning without waiting
// for any comparison to finish.
func (b *Batch) RunBatch(ctx context.Context, jobs []Job, generateBaselines bool) (string, error) {
	b.mu.Lock()
	running, queue, done := b.running, b.queue, b.done
	b.mu.Unlock()
	if !running {
		return "", ErrBatchClosed
	}
	for i, job := range jobs {
		if err := job.Validate(); err != nil {
			return "", services.Wrap(services.ErrValidation, "batch", "validate", fmt.Sprintf("job %d", i), err)
		}
	}

	id := uuid.NewString()
	ctx = services.WithBatchID(ctx, id)
	logger := logging.WithContext(ctx, b.logger)

	accepted := make([]Job, 0, len(jobs))
	sites := make([]string, 0, 1)
	seen := make(map[string]bool)
	for _, job := range jobs {
		job.GenerateBaselines = job.GenerateBaselines || generateBaselines
		if err := b.store.SetLoading(ctx, job.ID, job.Device, true); err != nil {
			logging.WarnWithContext(logger, "job skipped; could not mark loading", "batch_job_skipped",
				logging.Error(err),
				logging.String(logging.FieldSitePath, job.SitePath),
				logging.String(logging.FieldRoute, job.PageRoute),
				logging.String(logging.FieldDevice, job.Device),
				logging.String(logging.FieldImpact, "this page/device is not compared"),
			)
			continue
		}
		accepted = append(accepted, job)
		if !seen[job.SitePath] {
			seen[job.SitePath] = true
			sites = append(sites, job.SitePath)
		}
	}

	for _, site := range sites {
		if err := broadcastPages(ctx, b.store, b.broadcaster, site); err != nil {
			logging.WarnWithContext(logger, "loading update not broadcast", "broadcast_failed",
				logging.Error(err),
				logging.String(logging.FieldSitePath, site),
				logging.String(logging.FieldImpact, "dashboards show loading state on the next update"),
			)
		}
	}

	if len(accepted) == 0 {
		return StatusRunning, nil
	}
	select {
	case queue <- dispatch{id: id, jobs: accepted}:
	case <-done:
		b.abandon(ctx, logger, accepted, ErrBatchClosed)
		return "", ErrBatchClosed
	case <-ctx.Done():
		b.abandon(ctx, logger, accepted, ctx.Err())
		return "", ctx.Err()
	}
	logger.Info("comparison batch accepted",
		logging.Int("jobs", len(accepted)),
		logging.Int("sites", len(sites)),
		logging.Bool("generate_baselines", generateBaselines),
	)
	return StatusRunning, nil
}

func (b *Batch) dispatchLoop(ctx context.Context, queue <-chan dispatch) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			b.drain(ctx, queue)
			return
		case d := <-queue:
			jobCtx := services.WithBatchID(ctx, d.id)
			for _, job := range d.jobs {
				b.wg.Add(1)
				go func(job Job) {
					defer b.wg.Done()
					b.runner.Run(jobCtx, job)
				}(job)
			}
		}
	}
}

// drain releases batches accepted but never dispatched before shutdown.
func (b *Batch) drain(ctx context.Context, queue <-chan dispatch) {
	for {
		select {
		case d := <-queue:
			dctx := services.WithBatchID(ctx, d.id)
			b.abandon(dctx, logging.WithContext(dctx, b.logger), d.jobs, ErrBatchClosed)
		default:
			return
		}
	}
}

// abandon records jobs that were marked loading but never dispatched.
func (b *Batch) abandon(ctx context.Context, logger *slog.Logger, jobs []Job, cause error) {
	ctx = context.WithoutCancel(ctx)
	sites := make(map[string]bool)
	for _, job := range jobs {
		if err := b.store.SetErrored(ctx, job.ID, job.Device, "comparison not started: "+cause.Error()); err != nil {
			logger.Warn("could not clear loading state",
				logging.Error(err),
				logging.String(logging.FieldEventType, "batch_abandon_failed"),
				logging.String(logging.FieldErrorHint, "entry stays loading until the next run"),
			)
		}
		sites[job.SitePath] = true
	}
	for site := range sites {
		_ = broadcastPages(ctx, b.store, b.broadcaster, site)
	}
}
