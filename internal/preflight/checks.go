package preflight

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sys/unix"

	"snapdiff/internal/capture"
)

const checkTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBrowser verifies that a Chrome instance can be obtained: the remote
// DevTools endpoint answers, the configured binary is executable, or rod can
// find a locally installed browser.
func CheckBrowser(ctx context.Context, remoteURL, chromeBin string) Result {
	const name = "Chrome"

	if remote := strings.TrimSpace(remoteURL); remote != "" {
		if strings.HasPrefix(remote, "ws://") || strings.HasPrefix(remote, "wss://") {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("remote %s (not probed)", remote)}
		}
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()
		ws, err := capture.ResolveRemoteURL(checkCtx, remote)
		if err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("remote %s unreachable (%v)", remote, err)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("remote %s", ws)}
	}

	if bin := strings.TrimSpace(chromeBin); bin != "" {
		info, err := os.Stat(bin)
		if err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", bin, err)}
		}
		if info.IsDir() {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", bin)}
		}
		if err := unix.Access(bin, unix.X_OK); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: not executable: %v)", bin, err)}
		}
		return Result{Name: name, Passed: true, Detail: bin}
	}

	if found, ok := launcher.LookPath(); ok {
		return Result{Name: name, Passed: true, Detail: found}
	}
	return Result{Name: name, Detail: "no chrome or chromium binary found (set capture.chrome_bin or capture.remote_url)"}
}

// CheckAMQP dials the broker and closes the connection straight away.
func CheckAMQP(ctx context.Context, amqpURL string) Result {
	const name = "AMQP broker"

	display := redactURL(amqpURL)
	type dialed struct {
		conn *amqp.Connection
		err  error
	}
	ch := make(chan dialed, 1)
	go func() {
		conn, err := amqp.DialConfig(amqpURL, amqp.Config{Dial: amqp.DefaultDial(checkTimeout)})
		ch <- dialed{conn: conn, err: err}
	}()

	select {
	case d := <-ch:
		if d.err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s unreachable (%v)", display, d.err)}
		}
		_ = d.conn.Close()
		return Result{Name: name, Passed: true, Detail: display}
	case <-ctx.Done():
		go func() {
			if d := <-ch; d.conn != nil {
				_ = d.conn.Close()
			}
		}()
		return Result{Name: name, Detail: fmt.Sprintf("%s check cancelled", display)}
	}
}

// redactURL strips credentials from a broker URL for display.
func redactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return raw
	}
	parsed.User = nil
	return parsed.String()
}
