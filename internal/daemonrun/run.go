// Package daemonrun wires configuration, logging, storage, the browser, and
// the daemon into one foreground process.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"snapdiff/internal/capture"
	"snapdiff/internal/comparison"
	"snapdiff/internal/config"
	"snapdiff/internal/daemon"
	"snapdiff/internal/logging"
	"snapdiff/internal/notify"
	"snapdiff/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the snapdiff daemon and blocks until SIGINT, SIGTERM, or
// cmdCtx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("snapdiff-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout"},
		JSONFile:    logPath,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update snapdiff.log link: %v\n", err)
	}
	if removed := logging.PruneRunLogs(logger, cfg.Paths.LogDir, "snapdiff-*.log", cfg.Logging.RetentionDays, logPath); removed > 0 {
		logger.Info("pruned old run logs", logging.Int("removed", removed))
	}
	logConfigSnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.DataDir, "snapdiff.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}

	hub := notify.NewHub(cfg.Notifications.HubCapacity)
	broadcaster, closeBroadcaster := notify.NewBroadcaster(cfg, hub, logger)
	defer func() {
		if err := closeBroadcaster(); err != nil {
			logger.Debug("close broker connection", logging.Error(err))
		}
	}()

	browser, err := capture.LaunchBrowser(signalCtx, capture.BrowserOptionsFromConfig(cfg, logger))
	if err != nil {
		_ = st.Close()
		logging.ErrorWithContext(logger, "chrome unavailable", "browser_launch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "install chromium, set capture.chrome_bin, or point capture.remote_url at a running chrome"),
		)
		return fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			logger.Debug("close browser", logging.Error(err))
		}
	}()

	pool := capture.NewPoolFromConfig(cfg, browser, logger)
	orchestrator := comparison.NewOrchestrator(cfg, pool, st, broadcaster, logger)
	batch := comparison.NewBatch(st, broadcaster, orchestrator, cfg.Comparison.BatchQueueSize, logger)

	d, err := daemon.New(cfg, daemon.Deps{Store: st, Pool: pool, Batch: batch, Hub: hub}, logger)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api_bind is free and no other snapdiff daemon uses "+cfg.Paths.DataDir),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("snapdiff daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "snapdiff.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("screenshots_dir", cfg.Paths.ScreenshotsDir),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_present", cfg.Paths.APIToken != ""),
		logging.Int("max_concurrency", cfg.Capture.MaxConcurrency),
		logging.Int("retry_limit", cfg.Capture.RetryLimit),
		logging.Bool("remote_chrome", cfg.Capture.RemoteURL != ""),
		logging.Bool("stealth", cfg.Capture.Stealth),
		logging.Float64("default_failing_threshold", cfg.Comparison.DefaultFailingThreshold),
		logging.Bool("amqp_enabled", cfg.Notifications.AMQPURL != ""),
	)
}
