package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"snapdiff/internal/config"
	"snapdiff/internal/logging"
)

const closeTimeout = 10 * time.Second

// BrowserOptions describe how the shared Chrome instance is obtained.
type BrowserOptions struct {
	// RemoteURL points at an existing Chrome: a DevTools WebSocket URL or
	// an HTTP debugging endpoint such as "host:9222". Empty launches a local one.
	RemoteURL     string
	ChromeBin     string
	Headless      bool
	NoSandbox     bool
	SingleProcess bool
	Stealth       bool
	Logger        *slog.Logger
}

// BrowserOptionsFromConfig maps the [capture] section onto BrowserOptions.
func BrowserOptionsFromConfig(cfg *config.Config, logger *slog.Logger) BrowserOptions {
	return BrowserOptions{
		RemoteURL:     cfg.Capture.RemoteURL,
		ChromeBin:     cfg.Capture.ChromeBin,
		Headless:      cfg.Capture.Headless,
		NoSandbox:     cfg.Capture.NoSandbox,
		SingleProcess: cfg.Capture.SingleProcess,
		Stealth:       cfg.Capture.Stealth,
		Logger:        logger,
	}
}

// Browser is a connected Chrome shared by every execution context. Each
// context is an incognito browser context so cookies and auth never leak
// between workers.
type Browser struct {
	opts    BrowserOptions
	logger  *slog.Logger
	browser *rod.Browser
	lnch    *launcher.Launcher

	mu     sync.Mutex
	closed bool
}

// LaunchBrowser starts Chrome (or connects to RemoteURL) and returns a
// ContextFactory backed by it.
func LaunchBrowser(ctx context.Context, opts BrowserOptions) (*Browser, error) {
	logger := logging.NewComponentLogger(opts.Logger, "browser")

	var (
		wsURL string
		lnch  *launcher.Launcher
	)
	if opts.RemoteURL != "" {
		resolveCtx, cancel := context.WithTimeout(ctx, closeTimeout)
		u, err := ResolveRemoteURL(resolveCtx, opts.RemoteURL)
		cancel()
		if err != nil {
			return nil, err
		}
		wsURL = u
		logger.Info("connecting to remote chrome", logging.String(logging.FieldURL, wsURL))
	} else {
		lnch = launcher.New().Context(ctx).Headless(opts.Headless).NoSandbox(opts.NoSandbox)
		if opts.ChromeBin != "" {
			lnch = lnch.Bin(opts.ChromeBin)
		}
		lnch = lnch.Set("disable-blink-features", "AutomationControlled").
			Set("hide-scrollbars")
		if opts.SingleProcess {
			lnch = lnch.Set("single-process")
		}
		u, err := lnch.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		wsURL = u
		logger.Info("launched local chrome",
			logging.String(logging.FieldURL, wsURL),
			logging.Bool("headless", opts.Headless),
			logging.Bool("stealth", opts.Stealth),
		)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if lnch != nil {
			lnch.Kill()
			lnch.Cleanup()
		}
		return nil, fmt.Errorf("connect chrome: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		logging.WarnWithContext(logger, "ignore cert errors failed", "cert_override_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "sites with self-signed certificates may fail to load"),
		)
	}
	return &Browser{opts: opts, logger: logger, browser: b, lnch: lnch}, nil
}

// ResolveRemoteURL turns a DevTools endpoint ("9222", "host:9222",
// "http://host:9222") into the browser's WebSocket URL. ws:// and wss:// URLs
// are returned unchanged.
func ResolveRemoteURL(ctx context.Context, remote string) (string, error) {
	remote = strings.TrimSpace(remote)
	if strings.HasPrefix(remote, "ws://") || strings.HasPrefix(remote, "wss://") {
		return remote, nil
	}
	type resolved struct {
		url string
		err error
	}
	ch := make(chan resolved, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- resolved{err: fmt.Errorf("%v", r)}
			}
		}()
		u, err := launcher.ResolveURL(remote)
		ch <- resolved{url: u, err: err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("resolve devtools endpoint %s: %w", remote, r.err)
		}
		return r.url, nil
	case <-ctx.Done():
		return "", fmt.Errorf("resolve devtools endpoint %s: %w", remote, ctx.Err())
	}
}

// NewContext opens an incognito browser context.
func (b *Browser) NewContext(ctx context.Context) (ExecutionContext, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, errors.New("browser is closed")
	}
	incognito, err := b.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("create incognito context: %w", err)
	}
	// Detach from ctx so the context can still be disposed after ctx ends.
	return &rodContext{browser: incognito.Context(context.Background()), stealth: b.opts.Stealth}, nil
}

// Close shuts Chrome down. A remote Chrome is only disconnected from.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	var err error
	if b.lnch != nil {
		err = b.browser.Close()
		b.lnch.Kill()
		b.lnch.Cleanup()
	}
	return err
}

type rodContext struct {
	browser *rod.Browser
	stealth bool
}

func (c *rodContext) NewTab(ctx context.Context) (Tab, error) {
	b := c.browser.Context(ctx)
	var (
		page *rod.Page
		err  error
	)
	if c.stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("create tab: %w", err)
	}
	return &rodTab{page: page}, nil
}

// Close disposes the incognito browser context and every tab in it.
func (c *rodContext) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return c.browser.Context(ctx).Close()
}

type rodTab struct {
	page *rod.Page

	stopAuth func()
}

// Authenticate answers HTTP auth challenges with login. Credentials are only
// sent in reply to a challenge, never attached to every request.
func (t *rodTab) Authenticate(_ context.Context, login Login) error {
	if t.stopAuth != nil {
		t.stopAuth()
	}
	authCtx, cancel := context.WithCancel(context.Background())
	page := t.page.Context(authCtx)
	restore := page.EnableDomain(&proto.FetchEnable{HandleAuthRequests: true})

	answer := newAuthResponder(login)
	wait := page.EachEvent(
		func(e *proto.FetchRequestPaused) {
			_ = proto.FetchContinueRequest{RequestID: e.RequestID}.Call(page)
		},
		func(e *proto.FetchAuthRequired) {
			_ = answer.respond(e).Call(page)
		},
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		wait()
	}()
	t.stopAuth = func() {
		restore()
		cancel()
		<-done
	}
	return nil
}

// authResponder decides how to answer Fetch.authRequired events. A request
// that is challenged again after credentials were supplied is cancelled
// instead of retried, and proxy challenges get the browser default.
type authResponder struct {
	login Login

	mu       sync.Mutex
	answered map[proto.FetchRequestID]bool
}

func newAuthResponder(login Login) *authResponder {
	return &authResponder{login: login, answered: make(map[proto.FetchRequestID]bool)}
}

func (a *authResponder) respond(e *proto.FetchAuthRequired) proto.FetchContinueWithAuth {
	reply := proto.FetchContinueWithAuth{
		RequestID: e.RequestID,
		AuthChallengeResponse: &proto.FetchAuthChallengeResponse{
			Response: proto.FetchAuthChallengeResponseResponseDefault,
		},
	}
	if e.AuthChallenge != nil && e.AuthChallenge.Source == proto.FetchAuthChallengeSourceProxy {
		return reply
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.answered[e.RequestID] {
		reply.AuthChallengeResponse.Response = proto.FetchAuthChallengeResponseResponseCancelAuth
		return reply
	}
	a.answered[e.RequestID] = true
	reply.AuthChallengeResponse.Response = proto.FetchAuthChallengeResponseResponseProvideCredentials
	reply.AuthChallengeResponse.Username = a.login.Username
	reply.AuthChallengeResponse.Password = a.login.Password
	return reply
}

func (t *rodTab) SetUserAgent(ctx context.Context, userAgent string) error {
	return t.page.Context(ctx).SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent})
}

func (t *rodTab) SetCookies(ctx context.Context, targetURL string, cookies []Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			URL:      c.URL,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: sameSite(c.SameSite),
			Expires:  proto.TimeSinceEpoch(c.Expires),
		}
		if param.URL == "" && param.Domain == "" {
			param.URL = targetURL
		}
		params = append(params, param)
	}
	return t.page.Context(ctx).SetCookies(params)
}

func (t *rodTab) Navigate(ctx context.Context, url string) error {
	page := t.page.Context(ctx)
	wait := page.WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	wait()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("wait for network idle: %w", err)
	}
	return nil
}

func (t *rodTab) Screenshot(ctx context.Context) ([]byte, error) {
	return t.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (t *rodTab) Close() error {
	if t.stopAuth != nil {
		t.stopAuth()
		t.stopAuth = nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return t.page.Context(ctx).Close()
}

func sameSite(value string) proto.NetworkCookieSameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return proto.NetworkCookieSameSiteStrict
	case "lax":
		return proto.NetworkCookieSameSiteLax
	case "none", "no_restriction":
		return proto.NetworkCookieSameSiteNone
	default:
		return ""
	}
}
