// Package capture owns the headless-browser worker pool and the capture task
// that runs inside each browser context.
//
// A Pool holds a fixed number of long-lived execution contexts, one worker
// goroutine per context. Submit hands a Request to the next free worker and
// waits for its Result; when every context is busy requests wait their turn,
// which caps the total browser load no matter how many comparisons are in
// flight. Each attempt runs under a hard timeout and failed attempts are
// retried up to the configured limit. Whatever happens inside a task, the
// caller gets either a Result or a *Failure; the pool itself keeps serving.
//
// Task implements the capture procedure. Viewport, credentials, user agent,
// cookies, and navigation are best effort and only logged when they fail;
// the screenshot itself is the one step that must succeed. The PNG is then
// re-encoded as WebP next to the original.
package capture
