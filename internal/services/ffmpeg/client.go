package ffmpeg

import (
	"context"
	"errors"
	"strings"
	"time"

	"reeler/internal/procrun"
	"reeler/internal/services"
)

const stageTranscode = "transcode"

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

// WithClock replaces the progress clock (primarily for tests).
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Settings carries the encode tuning knobs.
type Settings struct {
	// Quality is the NVENC constant-quality target.
	Quality int
	// SoftwareCRF is the libx264 CRF used when no hardware encoder works.
	SoftwareCRF int
	// AudioBitrate is the AAC bitrate, e.g. "320k".
	AudioBitrate string
	// GPUIndex selects the NVENC device.
	GPUIndex int
}

// Client wraps ffmpeg and ffprobe CLI interactions.
type Client struct {
	ffmpegBinary  string
	ffprobeBinary string
	settings      Settings
	launcher      Launcher
	now           func() time.Time
}

// New constructs an ffmpeg client.
func New(ffmpegBinary, ffprobeBinary string, settings Settings, opts ...Option) (*Client, error) {
	ffmpegBinary = strings.TrimSpace(ffmpegBinary)
	if ffmpegBinary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	ffprobeBinary = strings.TrimSpace(ffprobeBinary)
	if ffprobeBinary == "" {
		ffprobeBinary = "ffprobe"
	}
	if settings.Quality <= 0 {
		settings.Quality = 20
	}
	if settings.SoftwareCRF <= 0 {
		settings.SoftwareCRF = 22
	}
	if strings.TrimSpace(settings.AudioBitrate) == "" {
		settings.AudioBitrate = "320k"
	}
	client := &Client{
		ffmpegBinary:  ffmpegBinary,
		ffprobeBinary: ffprobeBinary,
		settings:      settings,
		launcher:      procrunLauncher{},
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// runCollect launches a binary, gathers its combined output lines, and
// enforces the provided context by terminating the process group.
func (c *Client) runCollect(ctx context.Context, binary string, args ...string) ([]string, int, error) {
	proc, err := c.launcher.Start("", binary, args...)
	if err != nil {
		return nil, -1, services.Wrap(services.ErrExternalTool, stageTranscode, "spawn", binary, err)
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
			return lines, code, services.Wrap(services.ErrTimeout, stageTranscode, "run", binary, ctxErr)
		}
		return lines, code, services.Wrap(services.ErrCancelled, stageTranscode, "run", binary, ctxErr)
	}
	if waitErr != nil {
		return lines, code, services.Wrap(services.ErrExternalTool, stageTranscode, "wait", binary, waitErr)
	}
	return lines, code, nil
}
