package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"snapdiff/internal/api"
	"snapdiff/internal/apiclient"
	"snapdiff/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				var apiErr *apiclient.APIError
				if errors.As(err, &apiErr) {
					return err
				}
				// Daemon unreachable; report what this host can offer instead.
				cfg, cfgErr := ctx.ensureConfig()
				if cfgErr != nil {
					return cfgErr
				}
				status = api.DaemonStatus{
					ScreenshotsDir: cfg.Paths.ScreenshotsDir,
					DatabasePath:   cfg.DatabasePath(),
					Dependencies:   api.FromPreflight(preflight.RunAll(cmd.Context(), cfg)),
				}
			}
			if asJSON {
				return writeJSON(cmd, status)
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderDaemonStatus(status, shouldColorize(out)))
			return nil
		},
	}

	addJSONFlag(cmd, &asJSON, "text")
	return cmd
}

func renderDaemonStatus(status api.DaemonStatus, colorize bool) string {
	var lines []string
	lines = append(lines, renderSectionHeader("System Status", colorize)...)
	if status.Running {
		lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", status.PID), colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "not running", colorize))
	}
	if status.DatabasePath != "" {
		lines = append(lines, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	}
	if status.ScreenshotsDir != "" {
		lines = append(lines, renderStatusLine("Screenshots", statusInfo, status.ScreenshotsDir, colorize))
	}
	if status.Running {
		pool := status.Pool
		lines = append(lines, renderStatusLine("Capture pool", statusInfo,
			fmt.Sprintf("%d workers, %d in flight, %d queued, %d completed, %d failed",
				pool.Workers, pool.InFlight, pool.Queued, pool.Completed, pool.Failed), colorize))
	}
	if len(status.Dependencies) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
		lines = append(lines, dependencyLines(status.Dependencies, colorize)...)
	}
	return strings.Join(lines, "\n") + "\n"
}
