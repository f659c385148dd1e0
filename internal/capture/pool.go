package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"snapdiff/internal/logging"
)

const (
	defaultMaxConcurrency = 4
	defaultTaskTimeout    = 500 * time.Second
	defaultRecycleGrace   = 5 * time.Second
)

// Options tune a Pool.
type Options struct {
	MaxConcurrency int
	RetryLimit     int
	TaskTimeout    time.Duration
	// RecycleGrace is how long a worker waits for a timed-out attempt to
	// return before it closes the execution context and creates a new one.
	// The worker still waits for the closed attempt to return, so at most
	// MaxConcurrency runners are ever live.
	RecycleGrace time.Duration
	Logger       *slog.Logger
}

// Stats is a point-in-time view of pool activity.
type Stats struct {
	Workers   int   `json:"workers"`
	InFlight  int64 `json:"inFlight"`
	Queued    int64 `json:"queued"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

type job struct {
	ctx   context.Context
	req   Request
	reply chan outcome
}

type outcome struct {
	result Result
	err    error
}

type worker struct {
	id     int
	ec     ExecutionContext
	logger *slog.Logger
}

// Pool owns a fixed set of execution contexts and runs one capture at a time
// on each. It has an explicit lifetime: NewPool, Start, then Close.
type Pool struct {
	factory ContextFactory
	runner  Runner
	opts    Options
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    <-chan struct{}
	jobs    chan job
	wg      sync.WaitGroup

	inFlight  atomic.Int64
	queued    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// NewPool constructs a pool. Zero option values fall back to defaults.
func NewPool(factory ContextFactory, runner Runner, opts Options) *Pool {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultMaxConcurrency
	}
	if opts.RetryLimit < 0 {
		opts.RetryLimit = 0
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = defaultTaskTimeout
	}
	if opts.RecycleGrace <= 0 {
		opts.RecycleGrace = defaultRecycleGrace
	}
	return &Pool{
		factory: factory,
		runner:  runner,
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "capture-pool"),
	}
}

// Start creates every execution context and launches the workers. If any
// context cannot be created the ones already created are closed.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("capture pool already running")
	}
	if p.factory == nil || p.runner == nil {
		return errors.New("capture pool requires a context factory and runner")
	}

	contexts := make([]ExecutionContext, 0, p.opts.MaxConcurrency)
	for i := 0; i < p.opts.MaxConcurrency; i++ {
		ec, err := p.factory.NewContext(ctx)
		if err != nil {
			for _, created := range contexts {
				_ = created.Close()
			}
			return fmt.Errorf("create execution context %d: %w", i+1, err)
		}
		contexts = append(contexts, ec)
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = runCtx.Done()
	p.jobs = make(chan job)
	p.running = true

	p.wg.Add(len(contexts))
	for i, ec := range contexts {
		w := &worker{
			id:     i + 1,
			ec:     ec,
			logger: p.logger.With(logging.Int("worker", i+1)),
		}
		go p.work(runCtx, w, p.jobs)
	}
	p.logger.Info("capture pool started",
		logging.Int("workers", len(contexts)),
		logging.Int("retry_limit", p.opts.RetryLimit),
		logging.Duration("task_timeout", p.opts.TaskTimeout),
	)
	return nil
}

// Close stops the workers, waits for in-progress captures, and releases every
// execution context. Pending submissions receive ErrPoolClosed.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	p.logger.Info("capture pool stopped")
}

// Submit hands req to the next free worker and waits for its result. A
// request whose ctx ends before a worker picks it up is never run. Every
// capture failure is reported as a *Failure.
func (p *Pool) Submit(ctx context.Context, req Request) (Result, error) {
	p.mu.Lock()
	running, jobs, done := p.running, p.jobs, p.done
	p.mu.Unlock()
	if !running {
		return Result{}, ErrPoolClosed
	}

	j := job{ctx: ctx, req: req, reply: make(chan outcome, 1)}
	p.queued.Add(1)
	select {
	case jobs <- j:
	case <-ctx.Done():
		p.queued.Add(-1)
		p.failed.Add(1)
		return Result{}, &Failure{URL: req.URL, Err: ctx.Err()}
	case <-done:
		p.queued.Add(-1)
		return Result{}, ErrPoolClosed
	}

	out := <-j.reply
	return out.result, out.err
}

// Stats reports current counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	workers := 0
	if p.running {
		workers = p.opts.MaxConcurrency
	}
	p.mu.Unlock()
	return Stats{
		Workers:   workers,
		InFlight:  p.inFlight.Load(),
		Queued:    p.queued.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

func (p *Pool) work(ctx context.Context, w *worker, jobs <-chan job) {
	defer p.wg.Done()
	defer func() {
		if w.ec == nil {
			return
		}
		if err := w.ec.Close(); err != nil {
			w.logger.Warn("execution context close failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "context_close_failed"),
				logging.String(logging.FieldErrorHint, "a browser context may be leaked until the browser exits"),
			)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case j := <-jobs:
			p.queued.Add(-1)
			j.reply <- p.execute(ctx, w, j)
		}
	}
}

func (p *Pool) execute(base context.Context, w *worker, j job) outcome {
	if err := j.req.Validate(); err != nil {
		p.failed.Add(1)
		return outcome{err: &Failure{URL: j.req.URL, Err: err}}
	}

	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	logger := logging.WithContext(j.ctx, w.logger).With(logging.String(logging.FieldURL, j.req.URL))
	maxAttempts := p.opts.RetryLimit + 1
	attempts := 0
	var lastErr error
	for attempts < maxAttempts {
		attempts++
		result, err := p.attempt(base, w, j)
		if err == nil {
			result.Attempts = attempts
			p.completed.Add(1)
			return outcome{result: result}
		}
		lastErr = err
		if j.ctx.Err() != nil || base.Err() != nil {
			break
		}
		if attempts < maxAttempts {
			logging.WarnWithContext(logger, "capture attempt failed; retrying", "capture_retry",
				logging.Error(err),
				logging.Int("attempt", attempts),
				logging.Int("max_attempts", maxAttempts),
				logging.String(logging.FieldImpact, "capture delayed by a retry"),
			)
		}
	}

	p.failed.Add(1)
	logging.ErrorWithContext(logger, "capture failed", "capture_failed",
		logging.Error(lastErr),
		logging.Int("attempts", attempts),
		logging.String(logging.FieldErrorHint, "check the target URL is reachable from the browser host"),
	)
	return outcome{err: &Failure{URL: j.req.URL, Attempts: attempts, Err: lastErr}}
}

// attempt runs the capture once under the task timeout. A runner that ignores
// cancellation past the grace period costs the worker its execution context.
func (p *Pool) attempt(base context.Context, w *worker, j job) (Result, error) {
	if w.ec == nil {
		if err := p.replaceContext(base, w); err != nil {
			return Result{}, err
		}
	}

	attemptCtx, cancel := context.WithTimeout(j.ctx, p.opts.TaskTimeout)
	defer cancel()
	stop := context.AfterFunc(base, cancel)
	defer stop()

	ec := w.ec
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("capture panicked: %v", r)}
			}
		}()
		result, err := p.runner.Run(attemptCtx, ec, j.req)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-attemptCtx.Done():
	}

	timeoutErr := fmt.Errorf("capture attempt aborted after %s: %w", p.opts.TaskTimeout, attemptCtx.Err())
	grace := time.NewTimer(p.opts.RecycleGrace)
	defer grace.Stop()
	select {
	case <-done:
		return Result{}, timeoutErr
	case <-grace.C:
	}

	logging.WarnWithContext(w.logger, "capture did not stop after timeout; recycling execution context", "context_recycled",
		logging.String(logging.FieldURL, j.req.URL),
		logging.Duration("grace", p.opts.RecycleGrace),
		logging.String(logging.FieldImpact, "the worker takes no new capture until the abandoned attempt returns"),
	)
	abandoned := w.ec
	w.ec = nil
	if err := abandoned.Close(); err != nil {
		logging.WarnWithContext(w.logger, "failed to close abandoned execution context", "context_close_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "browser resources may leak until the daemon exits"),
		)
	}
	select {
	case <-done:
	case <-base.Done():
		return Result{}, errors.Join(timeoutErr, base.Err())
	}
	if err := p.replaceContext(base, w); err != nil {
		return Result{}, errors.Join(timeoutErr, err)
	}
	return Result{}, timeoutErr
}

func (p *Pool) replaceContext(ctx context.Context, w *worker) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	ec, err := p.factory.NewContext(ctx)
	if err != nil {
		return fmt.Errorf("recreate execution context: %w", err)
	}
	w.ec = ec
	return nil
}
