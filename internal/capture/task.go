package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"snapdiff/internal/imaging"
	"snapdiff/internal/logging"
)

// Encoder re-encodes a PNG into a compressed sibling file.
type Encoder interface {
	EncodeFile(src, dst string) error
}

// Task runs the capture procedure inside an execution context.
type Task struct {
	NavigationTimeout time.Duration
	Encoder           Encoder
	Logger            *slog.Logger
}

// NewTask builds a Task with the given navigation timeout and encoder.
func NewTask(navigationTimeout time.Duration, encoder Encoder, logger *slog.Logger) *Task {
	return &Task{
		NavigationTimeout: navigationTimeout,
		Encoder:           encoder,
		Logger:            logging.NewComponentLogger(logger, "capture"),
	}
}

// Run opens a tab, captures req.URL to req.FilePath, and writes the WebP
// rendition. Only tab creation and the screenshot itself are fatal.
func (t *Task) Run(ctx context.Context, ec ExecutionContext, req Request) (Result, error) {
	logger := logging.WithContext(ctx, t.Logger).With(logging.String(logging.FieldURL, req.URL))

	tab, err := ec.NewTab(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("open tab: %w", err)
	}
	defer func() {
		if err := tab.Close(); err != nil {
			logger.Debug("tab close failed", logging.Error(err))
		}
	}()

	if err := tab.SetViewport(ctx, req.Resolution); err != nil {
		logging.WarnWithContext(logger, "viewport not applied; capturing with browser default", "viewport_failed",
			logging.Error(err),
			logging.Int("width", req.Resolution.Width),
			logging.Int("height", req.Resolution.Height),
			logging.String(logging.FieldImpact, "screenshot may not match the device resolution"),
		)
	}

	if req.Login != nil && req.Login.Username != "" {
		if err := tab.Authenticate(ctx, *req.Login); err != nil {
			logging.WarnWithContext(logger, "credentials not applied", "auth_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "page may render a login prompt"),
			)
		}
	}

	if ua := strings.TrimSpace(req.UserAgent); ua != "" {
		if err := tab.SetUserAgent(ctx, ua); err != nil {
			logging.WarnWithContext(logger, "user agent not applied", "user_agent_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "page may serve the desktop layout"),
			)
		}
	}

	if strings.TrimSpace(req.CookieData) != "" {
		if err := applyCookies(ctx, tab, req); err != nil {
			logging.WarnWithContext(logger, "cookies not applied", "cookies_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the site's cookie data is a JSON array of {name,value,domain}"),
				logging.String(logging.FieldImpact, "page may show consent banners or logged-out state"),
			)
		}
	}

	degraded := false
	if err := t.navigate(ctx, tab, req.URL); err != nil {
		degraded = true
		logging.WarnWithContext(logger, "navigation incomplete; capturing anyway", "navigation_failed",
			logging.Error(err),
			logging.Duration("timeout", t.NavigationTimeout),
			logging.String(logging.FieldImpact, "screenshot may be blank or partially loaded"),
		)
	}

	png, err := tab.Screenshot(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("screenshot: %w", err)
	}
	if err := imaging.WriteFile(req.FilePath, png); err != nil {
		return Result{}, fmt.Errorf("write screenshot: %w", err)
	}
	result := Result{Path: req.FilePath, Degraded: degraded}

	if t.Encoder != nil {
		webpPath := imaging.WebPPath(req.FilePath)
		if err := t.Encoder.EncodeFile(req.FilePath, webpPath); err != nil {
			logging.WarnWithContext(logger, "webp encode failed; png kept", "webp_encode_failed",
				logging.Error(err),
				logging.String("path", req.FilePath),
				logging.String(logging.FieldImpact, "dashboard thumbnail is stale or missing"),
			)
		} else {
			result.WebPPath = webpPath
		}
	}

	logger.Debug("capture complete",
		logging.String("path", req.FilePath),
		logging.Int("bytes", len(png)),
		logging.Bool("degraded", degraded),
	)
	return result, nil
}

func (t *Task) navigate(ctx context.Context, tab Tab, url string) error {
	navCtx := ctx
	if t.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, t.NavigationTimeout)
		defer cancel()
	}
	return tab.Navigate(navCtx, url)
}

func applyCookies(ctx context.Context, tab Tab, req Request) error {
	cookies, err := ParseCookies(req.CookieData)
	if err != nil {
		return err
	}
	if len(cookies) == 0 {
		return nil
	}
	return tab.SetCookies(ctx, req.URL, cookies)
}
