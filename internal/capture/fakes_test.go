package capture_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"snapdiff/internal/capture"
)

type fakeTab struct {
	mu         sync.Mutex
	calls      []string
	viewport   capture.Resolution
	login      *capture.Login
	userAgent  string
	cookies    []capture.Cookie
	cookieURL  string
	navigated  string
	png        []byte
	closed     bool
	failOn     map[string]error
	navigateFn func(ctx context.Context) error
}

func (t *fakeTab) record(call string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, call)
	return t.failOn[call]
}

func (t *fakeTab) SetViewport(_ context.Context, res capture.Resolution) error {
	t.viewport = res
	return t.record("viewport")
}

func (t *fakeTab) Authenticate(_ context.Context, login capture.Login) error {
	t.login = &login
	return t.record("auth")
}

func (t *fakeTab) SetUserAgent(_ context.Context, ua string) error {
	t.userAgent = ua
	return t.record("user_agent")
}

func (t *fakeTab) SetCookies(_ context.Context, targetURL string, cookies []capture.Cookie) error {
	t.cookieURL = targetURL
	t.cookies = cookies
	return t.record("cookies")
}

func (t *fakeTab) Navigate(ctx context.Context, url string) error {
	t.navigated = url
	if err := t.record("navigate"); err != nil {
		return err
	}
	if t.navigateFn != nil {
		return t.navigateFn(ctx)
	}
	return nil
}

func (t *fakeTab) Screenshot(context.Context) ([]byte, error) {
	if err := t.record("screenshot"); err != nil {
		return nil, err
	}
	return t.png, nil
}

func (t *fakeTab) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *fakeTab) callList() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

type fakeContext struct {
	tab      *fakeTab
	tabErr   error
	closed   atomic.Bool
	released chan struct{}
}

func (c *fakeContext) NewTab(context.Context) (capture.Tab, error) {
	if c.tabErr != nil {
		return nil, c.tabErr
	}
	return c.tab, nil
}

func (c *fakeContext) Close() error {
	if c.closed.CompareAndSwap(false, true) && c.released != nil {
		close(c.released)
	}
	return nil
}

type fakeFactory struct {
	mu       sync.Mutex
	created  []*fakeContext
	failFrom int
}

func (f *fakeFactory) NewContext(context.Context) (capture.ExecutionContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFrom > 0 && len(f.created)+1 >= f.failFrom {
		return nil, errors.New("chrome unavailable")
	}
	ec := &fakeContext{tab: &fakeTab{}, released: make(chan struct{})}
	f.created = append(f.created, ec)
	return ec, nil
}

func (f *fakeFactory) contexts() []*fakeContext {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeContext(nil), f.created...)
}

type fakeEncoder struct {
	err   error
	calls atomic.Int32
}

func (e *fakeEncoder) EncodeFile(src, dst string) error {
	e.calls.Add(1)
	return e.err
}
