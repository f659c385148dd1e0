package capture

import (
	"errors"
	"fmt"

	"snapdiff/internal/services"
)

// Resolution is a viewport size in CSS pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Login holds HTTP basic-auth credentials applied before navigation.
type Login struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Request is the unit of work submitted to the pool.
type Request struct {
	URL        string     `json:"url"`
	FilePath   string     `json:"filePath"`
	CookieData string     `json:"cookieData,omitempty"`
	Resolution Resolution `json:"resolution"`
	UserAgent  string     `json:"userAgent,omitempty"`
	Login      *Login     `json:"siteLogin,omitempty"`
}

// Validate reports requests that can never succeed.
func (r Request) Validate() error {
	if r.URL == "" {
		return errors.New("capture request: url is required")
	}
	if r.FilePath == "" {
		return errors.New("capture request: file path is required")
	}
	return nil
}

// Result describes a finished capture.
type Result struct {
	// Path is the PNG written by the screenshot step.
	Path string
	// WebPPath is empty when WebP encoding failed.
	WebPPath string
	// Degraded is set when navigation failed but the screenshot still succeeded.
	Degraded bool
	Attempts int
}

var (
	// ErrCaptureFailed matches every *Failure returned by the pool.
	ErrCaptureFailed = errors.New("capture failed")
	// ErrPoolClosed is returned by Submit before Start or after Close.
	ErrPoolClosed = errors.New("capture pool is not running")
)

// Failure is the pool-level failure sentinel: the request exhausted its
// retries, timed out, or was cancelled before a worker picked it up.
type Failure struct {
	URL      string
	Attempts int
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("capture %s failed after %d attempt(s): %v", f.URL, f.Attempts, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Is lets errors.Is match ErrCaptureFailed and the external-tool marker.
func (f *Failure) Is(target error) bool {
	return target == ErrCaptureFailed || target == services.ErrExternalTool
}
