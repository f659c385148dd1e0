// Package logging assembles structured slog loggers and formatting helpers used
// across snapdiff.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so capture and comparison code
// tag log lines with site paths, routes, devices, and batch identifiers. The
// package also provides a no-op logger for tests and log retention pruning for
// the daemon's per-run log files.
package logging
