package procrun

import (
	"bufio"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultGracePeriod is how long Terminate waits between the graceful
// signal and the forced kill.
const DefaultGracePeriod = 3 * time.Second

// SpawnConfig carries per-invocation spawn settings. It is passed
// explicitly into Start rather than living in package-level state so tests
// and callers can vary it per process.
type SpawnConfig struct {
	// Dir is the working directory for the child. Empty means inherit.
	Dir string
	// Env replaces the child environment when non-nil.
	Env []string
	// GracePeriod overrides DefaultGracePeriod when positive.
	GracePeriod time.Duration
	// NewProcessGroup places the child in its own process group so the
	// whole descendant tree can be signalled at once. Callers should
	// leave this on unless the child must share the parent's group.
	NewProcessGroup bool
}

// DefaultSpawnConfig returns the spawn settings used by the orchestrators.
func DefaultSpawnConfig() SpawnConfig {
	return SpawnConfig{NewProcessGroup: true}
}

// Handle tracks a running child process and its output stream.
type Handle struct {
	cmd   *exec.Cmd
	lines chan string
	grace time.Duration
	group bool

	discardOnce sync.Once
	discard     chan struct{}

	scanWG  sync.WaitGroup
	scanErr error
	scanMu  sync.Mutex

	waitOnce sync.Once
	waitCode int
	waitErr  error
	exited   chan struct{}

	termMu     sync.Mutex
	terminated bool
}

// Start launches the command and begins streaming its combined stdout and
// stderr. The returned handle must be finished with Wait.
func Start(cfg SpawnConfig, name string, args ...string) (*Handle, error) {
	cmd := exec.Command(name, args...) //nolint:gosec
	if cfg.Dir != "" {
		cmd.Dir = cfg.Dir
	}
	if cfg.Env != nil {
		cmd.Env = cfg.Env
	}
	if cfg.NewProcessGroup {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	h := &Handle{
		cmd:     cmd,
		lines:   make(chan string, 64),
		grace:   grace,
		group:   cfg.NewProcessGroup,
		discard: make(chan struct{}),
		exited:  make(chan struct{}),
	}

	h.scanWG.Add(2)
	go h.scan(stdout)
	go h.scan(stderr)
	go func() {
		h.scanWG.Wait()
		close(h.lines)
	}()

	return h, nil
}

func (h *Handle) scan(r interface{ Read([]byte) (int, error) }) {
	defer h.scanWG.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(splitByNewlineOrCR)
	for scanner.Scan() {
		select {
		case h.lines <- scanner.Text():
		case <-h.discard:
		}
	}
	if err := scanner.Err(); err != nil {
		h.scanMu.Lock()
		if h.scanErr == nil {
			h.scanErr = err
		}
		h.scanMu.Unlock()
	}
}

// Lines returns the combined output stream. The channel is closed once the
// process stops producing output; it is finite and not restartable.
func (h *Handle) Lines() <-chan string {
	return h.lines
}

// StopReading tells the handle the caller will not consume further lines,
// unblocking the scanner goroutines. Wait calls it implicitly.
func (h *Handle) StopReading() {
	h.discardOnce.Do(func() { close(h.discard) })
}

// PID returns the child process id.
func (h *Handle) PID() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Wait blocks until the process exits and returns its exit code. The error
// reports infrastructure failures (output scanning, wait itself), not a
// non-zero exit: callers inspect the code for that.
func (h *Handle) Wait() (int, error) {
	h.waitOnce.Do(func() {
		h.StopReading()
		h.scanWG.Wait()

		err := h.cmd.Wait()
		close(h.exited)

		var exitErr *exec.ExitError
		switch {
		case err == nil:
			h.waitCode = 0
		case errors.As(err, &exitErr):
			h.waitCode = exitErr.ExitCode()
		default:
			h.waitCode = -1
			h.waitErr = err
		}

		h.scanMu.Lock()
		if h.waitErr == nil && h.scanErr != nil {
			h.waitErr = fmt.Errorf("scan output: %w", h.scanErr)
		}
		h.scanMu.Unlock()
	})
	return h.waitCode, h.waitErr
}

// Terminate requests a graceful stop of the process and its descendant
// tree, escalating to a forced kill after the grace period. It is safe to
// call repeatedly and after natural exit.
func (h *Handle) Terminate() {
	h.termMu.Lock()
	if h.terminated {
		h.termMu.Unlock()
		return
	}
	h.terminated = true
	h.termMu.Unlock()

	select {
	case <-h.exited:
		return
	default:
	}

	pid := h.PID()
	if pid <= 0 {
		return
	}

	h.signal(pid, unix.SIGTERM)

	timer := time.NewTimer(h.grace)
	defer timer.Stop()
	select {
	case <-h.exited:
		return
	case <-timer.C:
	}

	h.signal(pid, unix.SIGKILL)
}

// signal delivers sig to the whole process group when one was created,
// falling back to the direct PID when group signalling fails.
func (h *Handle) signal(pid int, sig unix.Signal) {
	if h.group {
		if err := unix.Kill(-pid, sig); err == nil {
			return
		}
	}
	_ = unix.Kill(pid, sig)
}

// splitByNewlineOrCR tokenizes on both \n and \r so carriage-return
// progress rewrites from the fetch and transcode tools arrive as lines.
func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
