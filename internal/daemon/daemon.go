package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"snapdiff/internal/api"
	"snapdiff/internal/capture"
	"snapdiff/internal/config"
	"snapdiff/internal/logging"
	"snapdiff/internal/notify"
	"snapdiff/internal/preflight"
	"snapdiff/internal/server"
	"snapdiff/internal/store"
)

// CapturePool is the capture worker pool as seen by the daemon.
type CapturePool interface {
	server.Capturer
	Start(ctx context.Context) error
	Close()
	Stats() capture.Stats
}

// Dispatcher is the comparison batch controller as seen by the daemon.
type Dispatcher interface {
	server.BatchRunner
	Start(ctx context.Context) error
	Stop()
}

// Deps are the components whose lifetime the daemon owns. Store is closed by
// Close.
type Deps struct {
	Store *store.Store
	Pool  CapturePool
	Batch Dispatcher
	Hub   *notify.Hub
}

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   Deps
	server *server.Server

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc

	resultsMu sync.RWMutex
	preflight []preflight.Result
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || deps.Store == nil || deps.Pool == nil || deps.Batch == nil {
		return nil, errors.New("daemon requires config, store, capture pool, and dispatcher")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		deps:     deps,
		lockPath: filepath.Join(cfg.Paths.DataDir, "snapdiff.lock"),
	}
	d.lock = flock.New(d.lockPath)

	opts := server.Options{
		Config:   cfg,
		Store:    deps.Store,
		Capturer: deps.Pool,
		Batch:    deps.Batch,
		Status:   d.Status,
		Logger:   logger,
	}
	if deps.Hub != nil {
		opts.Events = deps.Hub
	}
	srv, err := server.New(opts)
	if err != nil {
		return nil, fmt.Errorf("build api server: %w", err)
	}
	d.server = srv
	return d, nil
}

// Start acquires the daemon lock and brings up the pool, the dispatcher, and
// the API server in that order.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another snapdiff daemon instance is already running")
	}

	results := preflight.RunAll(ctx, d.cfg)
	d.resultsMu.Lock()
	d.preflight = results
	d.resultsMu.Unlock()
	for _, result := range results {
		if result.Passed {
			continue
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.Bool("optional", result.Optional),
			logging.String(logging.FieldErrorHint, "run snapdiff status for details"),
			logging.String(logging.FieldImpact, "captures or notifications may fail"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.deps.Pool.Start(runCtx); err != nil {
		cancel()
		d.unlock()
		return fmt.Errorf("start capture pool: %w", err)
	}
	if err := d.deps.Batch.Start(runCtx); err != nil {
		d.deps.Pool.Close()
		cancel()
		d.unlock()
		return fmt.Errorf("start comparison dispatcher: %w", err)
	}
	if err := d.server.Start(runCtx); err != nil {
		d.deps.Batch.Stop()
		d.deps.Pool.Close()
		cancel()
		d.unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("snapdiff daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.server.Addr()),
		logging.Int("workers", d.cfg.Capture.MaxConcurrency),
	)
	return nil
}

// Stop shuts the API server, the dispatcher, and the pool down and releases
// the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.server.Stop()
	d.deps.Batch.Stop()
	d.deps.Pool.Close()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.unlock()
	d.running.Store(false)
	d.logger.Info("snapdiff daemon stopped")
}

func (d *Daemon) unlock() {
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.deps.Store != nil {
		return d.deps.Store.Close()
	}
	return nil
}

// Addr reports the API server's bound address while running.
func (d *Daemon) Addr() string {
	return d.server.Addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) api.DaemonStatus {
	d.resultsMu.RLock()
	results := append([]preflight.Result(nil), d.preflight...)
	d.resultsMu.RUnlock()

	return api.DaemonStatus{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		DatabasePath:   d.deps.Store.Path(),
		LockFilePath:   d.lockPath,
		ScreenshotsDir: d.cfg.Paths.ScreenshotsDir,
		Pool:           api.FromPoolStats(d.deps.Pool.Stats()),
		Dependencies:   api.FromPreflight(results),
	}
}
