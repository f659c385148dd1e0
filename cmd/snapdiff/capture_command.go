package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"snapdiff/internal/apiclient"
	"snapdiff/internal/capture"
	"snapdiff/internal/config"
	"snapdiff/internal/imaging"
	"snapdiff/internal/logging"
)

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	var (
		resolution  string
		userAgent   string
		cookiesFile string
		username    string
		password    string
		outPath     string
		viaDaemon   bool
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "capture <url>",
		Short: "Take a single screenshot",
		Long: "Take a single screenshot with a private browser, or with the running " +
			"daemon's capture pool when --via-daemon is set.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			width, height, err := parseResolution(resolution)
			if err != nil {
				return err
			}
			target, err := filepath.Abs(strings.TrimSpace(outPath))
			if err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}
			req := capture.Request{
				URL:        strings.TrimSpace(args[0]),
				FilePath:   target,
				Resolution: capture.Resolution{Width: width, Height: height},
				UserAgent:  strings.TrimSpace(userAgent),
			}
			if cookiesFile != "" {
				data, err := os.ReadFile(cookiesFile)
				if err != nil {
					return fmt.Errorf("read cookies file: %w", err)
				}
				req.CookieData = string(data)
			}
			if username != "" {
				req.Login = &capture.Login{Username: username, Password: password}
			}

			out := cmd.OutOrStdout()
			if viaDaemon {
				return ctx.withClient(func(client *apiclient.Client) error {
					png, degraded, err := client.TakeScreenshot(cmd.Context(), req)
					if err != nil {
						return err
					}
					if err := imaging.WriteFile(target, png); err != nil {
						return fmt.Errorf("write screenshot: %w", err)
					}
					reportCapture(out, target, "", degraded)
					return nil
				})
			}

			level := logLevel
			if level == "" {
				level = "warn"
			}
			logger, err := logging.New(logging.Options{
				Level:       level,
				Format:      "console",
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			result, err := captureLocally(cmd.Context(), cfg, req, logger)
			if err != nil {
				return err
			}
			reportCapture(out, result.Path, result.WebPPath, result.Degraded)
			return nil
		},
	}

	cmd.Flags().StringVarP(&resolution, "resolution", "r", "1280x800", "Viewport as WIDTHxHEIGHT")
	cmd.Flags().StringVar(&userAgent, "user-agent", "", "User agent override")
	cmd.Flags().StringVar(&cookiesFile, "cookies-file", "", "JSON cookie export to apply before navigation")
	cmd.Flags().StringVar(&username, "username", "", "Basic-auth username")
	cmd.Flags().StringVar(&password, "password", "", "Basic-auth password")
	cmd.Flags().StringVarP(&outPath, "out", "o", "screenshot.png", "Destination PNG")
	cmd.Flags().BoolVar(&viaDaemon, "via-daemon", false, "Use the running daemon instead of a private browser")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level for the private browser (default warn)")
	return cmd
}

// captureLocally runs req on a single-worker pool backed by its own browser.
func captureLocally(ctx context.Context, cfg *config.Config, req capture.Request, logger *slog.Logger) (capture.Result, error) {
	local := *cfg
	local.Capture.MaxConcurrency = 1

	browser, err := capture.LaunchBrowser(ctx, capture.BrowserOptionsFromConfig(&local, logger))
	if err != nil {
		return capture.Result{}, err
	}
	defer func() {
		if err := browser.Close(); err != nil {
			logger.Warn("browser close failed", logging.Error(err))
		}
	}()

	pool := capture.NewPoolFromConfig(&local, browser, logger)
	if err := pool.Start(ctx); err != nil {
		return capture.Result{}, fmt.Errorf("start capture pool: %w", err)
	}
	defer pool.Close()

	return pool.Submit(ctx, req)
}

func reportCapture(out io.Writer, pngPath, webpPath string, degraded bool) {
	fmt.Fprintf(out, "Saved %s\n", pngPath)
	if webpPath != "" {
		fmt.Fprintf(out, "Saved %s\n", webpPath)
	}
	if degraded {
		fmt.Fprintln(out, "Warning: navigation did not finish; the screenshot shows the page as it was when the timeout hit")
	}
}
