package ytdlp

import (
	"context"
	"errors"
	"strings"
	"time"

	"reeler/internal/procrun"
	"reeler/internal/services"
)

const stageFetch = "fetch"

// maxAttempts bounds the retry loop for transient remote failures: one
// initial try plus two retries.
const maxAttempts = 3

// Process is the running child the client consumes output from.
type Process interface {
	Lines() <-chan string
	Wait() (int, error)
	Terminate()
}

// Launcher abstracts process spawning for testability.
type Launcher interface {
	Start(dir, name string, args ...string) (Process, error)
}

type procrunLauncher struct{}

func (procrunLauncher) Start(dir, name string, args ...string) (Process, error) {
	cfg := procrun.DefaultSpawnConfig()
	cfg.Dir = dir
	return procrun.Start(cfg, name, args...)
}

// CookieOptions controls browser cookie passing on every invocation.
type CookieOptions struct {
	Enabled bool
	Browser string
}

// Option configures the client.
type Option func(*Client)

// WithLauncher injects a custom process launcher (primarily for tests).
func WithLauncher(launcher Launcher) Option {
	return func(c *Client) {
		if launcher != nil {
			c.launcher = launcher
		}
	}
}

// WithCookies enables cookie passing from the given browser profile.
func WithCookies(opts CookieOptions) Option {
	return func(c *Client) {
		c.cookies = opts
	}
}

// WithThreads sets the fragment download concurrency passed via -N.
func WithThreads(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.threads = n
		}
	}
}

// WithSleepFunc replaces the backoff sleeper (primarily for tests).
func WithSleepFunc(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithClock replaces the progress throttle clock (primarily for tests).
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Client wraps yt-dlp CLI interactions.
type Client struct {
	binary   string
	timeout  time.Duration
	threads  int
	cookies  CookieOptions
	launcher Launcher
	sleep    func(context.Context, time.Duration) error
	now      func() time.Time
}

// New constructs a yt-dlp client.
func New(binary string, timeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	client := &Client{
		binary:   binary,
		timeout:  time.Duration(timeoutSeconds) * time.Second,
		threads:  1,
		cookies:  CookieOptions{Enabled: true, Browser: "chrome"},
		launcher: procrunLauncher{},
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func (c *Client) cookieArgs() []string {
	if !c.cookies.Enabled {
		return nil
	}
	browser := strings.TrimSpace(c.cookies.Browser)
	if browser == "" {
		browser = "chrome"
	}
	return []string{"--cookies-from-browser", browser}
}

// runCollect launches the binary, gathers its combined output lines, and
// enforces the provided context. Cancellation or an elapsed timeout
// terminates the whole process group.
func (c *Client) runCollect(ctx context.Context, dir string, args ...string) ([]string, int, error) {
	proc, err := c.launcher.Start(dir, c.binary, args...)
	if err != nil {
		return nil, -1, services.Wrap(services.ErrExternalTool, stageFetch, "spawn", c.binary, err)
	}

	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			proc.Terminate()
		case <-watchDone:
		}
	}()

	var lines []string
	for line := range proc.Lines() {
		lines = append(lines, line)
	}
	code, waitErr := proc.Wait()
	close(watchDone)

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return lines, code, services.Wrap(services.ErrTimeout, stageFetch, "run", c.binary, ctxErr)
		}
		return lines, code, services.Wrap(services.ErrCancelled, stageFetch, "run", c.binary, ctxErr)
	}
	if waitErr != nil {
		return lines, code, services.Wrap(services.ErrExternalTool, stageFetch, "wait", c.binary, waitErr)
	}
	return lines, code, nil
}

// withAttempts runs fn up to maxAttempts times, sleeping the class-specific
// backoff between transient failures. Permanent and lifecycle errors abort
// immediately.
func (c *Client) withAttempts(ctx context.Context, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if !services.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}
		if err := c.sleep(ctx, backoffDelay(lastErr, attempt)); err != nil {
			return services.Wrap(services.ErrCancelled, stageFetch, "backoff", "", err)
		}
	}
	return lastErr
}

// backoffDelay mirrors the per-class delays: rate limits back off hardest,
// plain network failures more gently, empty output with a short flat pause.
func backoffDelay(err error, attempt int) time.Duration {
	switch {
	case errors.Is(err, services.ErrRateLimited):
		return time.Duration(attempt) * 5 * time.Second
	case errors.Is(err, services.ErrNetwork):
		return time.Duration(attempt) * 3 * time.Second
	default:
		return 2 * time.Second
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
