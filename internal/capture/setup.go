package capture

import (
	"log/slog"

	"snapdiff/internal/config"
	"snapdiff/internal/imaging"
)

// NewPoolFromConfig builds a pool whose workers run Task against contexts
// from factory, sized and timed by the [capture] section.
func NewPoolFromConfig(cfg *config.Config, factory ContextFactory, logger *slog.Logger) *Pool {
	task := NewTask(cfg.NavigationTimeout(), imaging.NewWebPEncoder(cfg.Capture.WebPQuality), logger)
	return NewPool(factory, task, Options{
		MaxConcurrency: cfg.Capture.MaxConcurrency,
		RetryLimit:     cfg.Capture.RetryLimit,
		TaskTimeout:    cfg.TaskTimeout(),
		Logger:         logger,
	})
}
