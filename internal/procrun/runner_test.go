package procrun_test

import (
	"testing"
	"time"

	"reeler/internal/procrun"
)

func collect(t *testing.T, h *procrun.Handle) []string {
	t.Helper()
	var lines []string
	for line := range h.Lines() {
		lines = append(lines, line)
	}
	return lines
}

func TestStartStreamsCombinedOutput(t *testing.T) {
	h, err := procrun.Start(procrun.DefaultSpawnConfig(), "/bin/sh", "-c", "echo one; echo two 1>&2; echo three")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	lines := collect(t, h)
	code, err := h.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}

	seen := map[string]bool{}
	for _, line := range lines {
		seen[line] = true
	}
	for _, want := range []string{"one", "two", "three"} {
		if !seen[want] {
			t.Fatalf("missing line %q in %v", want, lines)
		}
	}
}

func TestCarriageReturnProgressSplitsIntoLines(t *testing.T) {
	h, err := procrun.Start(procrun.DefaultSpawnConfig(), "/bin/sh", "-c", `printf '10%%\r20%%\r30%%\n'`)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	lines := collect(t, h)
	if _, err := h.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 tokens, got %d: %v", len(lines), lines)
	}
	if lines[0] != "10%" || lines[2] != "30%" {
		t.Fatalf("unexpected tokens: %v", lines)
	}
}

func TestWaitReportsExitCode(t *testing.T) {
	h, err := procrun.Start(procrun.DefaultSpawnConfig(), "/bin/sh", "-c", "exit 7")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	collect(t, h)
	code, err := h.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 7 {
		t.Fatalf("expected exit 7, got %d", code)
	}
}

func TestTerminateKillsProcessTreeWithinGrace(t *testing.T) {
	cfg := procrun.DefaultSpawnConfig()
	cfg.GracePeriod = time.Second
	// The child ignores SIGTERM so the escalation path is exercised, and
	// spawns its own sleeping grandchild.
	h, err := procrun.Start(cfg, "/bin/sh", "-c", "trap '' TERM; sleep 300 & wait")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		h.StopReading()
		h.Wait()
		close(done)
	}()

	start := time.Now()
	h.Terminate()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after Terminate")
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Fatalf("termination took too long: %v", elapsed)
	}

	// Repeated and post-exit calls are no-ops.
	h.Terminate()
	h.Terminate()
}

func TestTerminateAfterNaturalExitIsNoop(t *testing.T) {
	h, err := procrun.Start(procrun.DefaultSpawnConfig(), "/bin/sh", "-c", "true")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	collect(t, h)
	if _, err := h.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	h.Terminate()
}
