package preflight

import (
	"context"

	"snapdiff/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Screenshots directory", cfg.Paths.ScreenshotsDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckBrowser(ctx, cfg.Capture.RemoteURL, cfg.Capture.ChromeBin),
	}

	if cfg.Notifications.AMQPURL != "" {
		result := CheckAMQP(ctx, cfg.Notifications.AMQPURL)
		result.Optional = true
		results = append(results, result)
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			out = append(out, r)
		}
	}
	return out
}
