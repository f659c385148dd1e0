package capture

import "context"

// Tab is one browser page opened inside an execution context.
type Tab interface {
	SetViewport(ctx context.Context, res Resolution) error
	Authenticate(ctx context.Context, login Login) error
	SetUserAgent(ctx context.Context, userAgent string) error
	// SetCookies applies cookies; targetURL scopes cookies that name no domain.
	SetCookies(ctx context.Context, targetURL string, cookies []Cookie) error
	// Navigate loads url and waits for network idle.
	Navigate(ctx context.Context, url string) error
	// Screenshot returns a full-page PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// ExecutionContext is an isolated browser session owned by one pool worker.
type ExecutionContext interface {
	NewTab(ctx context.Context) (Tab, error)
	Close() error
}

// ContextFactory creates execution contexts for the pool.
type ContextFactory interface {
	NewContext(ctx context.Context) (ExecutionContext, error)
}

// Runner executes one capture attempt inside an execution context.
type Runner interface {
	Run(ctx context.Context, ec ExecutionContext, req Request) (Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, ec ExecutionContext, req Request) (Result, error)

func (f RunnerFunc) Run(ctx context.Context, ec ExecutionContext, req Request) (Result, error) {
	return f(ctx, ec, req)
}
