package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"reeler/internal/services"
)

// TranscodeRequest describes one conversion.
type TranscodeRequest struct {
	InputPath  string
	OutputPath string
	Encoder    Encoder
	// DurationSeconds scales the progress percent. Zero means probe the
	// input first.
	DurationSeconds float64
	// BitRateBPS caps the rate control. Zero means probe the input first.
	BitRateBPS int64
}

// TranscodeResult reports the finished conversion.
type TranscodeResult struct {
	OutputPath    string
	Encoder       Encoder
	FileSizeBytes int64
	FellBack      bool
}

var timeRe = regexp.MustCompile(`time=(\d+):(\d+):(\d+(?:\.\d+)?)`)

// Transcode converts the input with the requested encoder, retrying exactly
// once on the next ladder rung when a hardware session fails. Cancellation
// terminates the ffmpeg process tree and is never retried.
func (c *Client) Transcode(ctx context.Context, req TranscodeRequest, progress func(float64)) (*TranscodeResult, error) {
	if strings.TrimSpace(req.InputPath) == "" {
		return nil, services.Wrap(services.ErrValidation, stageTranscode, "transcode", "input path required", nil)
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return nil, services.Wrap(services.ErrValidation, stageTranscode, "transcode", "output path required", nil)
	}
	if req.Encoder == "" {
		req.Encoder = EncoderX264
	}

	if req.DurationSeconds <= 0 || req.BitRateBPS <= 0 {
		info, err := c.Probe(ctx, req.InputPath)
		if err != nil {
			return nil, err
		}
		if req.DurationSeconds <= 0 {
			req.DurationSeconds = info.EffectiveDuration()
		}
		if req.BitRateBPS <= 0 {
			req.BitRateBPS = info.EffectiveBitRate()
		}
	}

	// One gate for both attempts: a fallback run restarts its time counter
	// from zero, and those readings must not walk progress backwards.
	emit := newProgressGate(progress)

	result, err := c.runTranscode(ctx, req, emit)
	if err == nil {
		return result, nil
	}
	if services.IsTransient(err) || IsCancelled(err) {
		return nil, err
	}

	fallback, ok := req.Encoder.NextFallback()
	if !ok {
		return nil, err
	}
	retry := req
	retry.Encoder = fallback
	result, retryErr := c.runTranscode(ctx, retry, emit)
	if retryErr != nil {
		return nil, retryErr
	}
	result.FellBack = true
	return result, nil
}

// newProgressGate wraps a progress callback with a whole-percent high-water
// mark that survives encoder fallback, so readings never decrease. The
// terminal 100 always passes.
func newProgressGate(progress func(float64)) func(float64) {
	if progress == nil {
		return nil
	}
	lastWhole := -1
	return func(percent float64) {
		if percent >= 100 {
			progress(100)
			return
		}
		if whole := int(percent); whole > lastWhole {
			lastWhole = whole
			progress(percent)
		}
	}
}

func (c *Client) runTranscode(ctx context.Context, req TranscodeRequest, progress func(float64)) (*TranscodeResult, error) {
	args := c.transcodeArgs(req)

	proc, err := c.launcher.Start("", c.ffmpegBinary, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageTranscode, "spawn", c.ffmpegBinary, err)
	}

	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			proc.Terminate()
		case <-watchDone:
		}
	}()

	var tail outputTail
	for line := range proc.Lines() {
		tail.add(line)
		if progress == nil {
			continue
		}
		if percent, ok := parseTimeProgress(line, req.DurationSeconds); ok {
			progress(percent)
		}
	}
	code, waitErr := proc.Wait()
	close(watchDone)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, services.Wrap(services.ErrCancelled, stageTranscode, "transcode", req.InputPath, ctxErr)
	}
	if waitErr != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageTranscode, "transcode", req.InputPath, waitErr)
	}
	if code != 0 {
		detail := strings.Join(lastLines(tail.lines(), 3), "; ")
		if detail == "" {
			detail = fmt.Sprintf("exit code %d", code)
		}
		return nil, services.Wrap(services.ErrExternalTool, stageTranscode, string(req.Encoder), detail, nil)
	}

	if progress != nil {
		progress(100)
	}
	result := &TranscodeResult{OutputPath: req.OutputPath, Encoder: req.Encoder}
	if info, statErr := os.Stat(req.OutputPath); statErr == nil {
		result.FileSizeBytes = info.Size()
	}
	return result, nil
}

func (c *Client) transcodeArgs(req TranscodeRequest) []string {
	args := []string{"-y", "-hide_banner", "-i", req.InputPath}

	if req.Encoder.IsHardware() {
		args = append(args,
			"-c:v", string(req.Encoder),
			"-preset", "p7",
			"-tune", "uhq",
			"-rc", "vbr",
			"-cq", strconv.Itoa(c.settings.Quality),
			"-rc-lookahead", "32",
			"-spatial-aq", "1",
			"-temporal-aq", "1",
			"-aq-strength", "8",
			"-gpu", strconv.Itoa(c.settings.GPUIndex),
		)
	} else {
		args = append(args,
			"-c:v", string(req.Encoder),
			"-preset", "slow",
			"-crf", strconv.Itoa(c.settings.SoftwareCRF),
		)
	}

	if req.BitRateBPS > 0 {
		args = append(args,
			"-maxrate", strconv.FormatInt(req.BitRateBPS, 10),
			"-bufsize", strconv.FormatInt(2*req.BitRateBPS, 10),
		)
	}

	args = append(args,
		"-c:a", "aac",
		"-b:a", c.settings.AudioBitrate,
		req.OutputPath,
	)
	return args
}

// parseTimeProgress converts an ffmpeg stats line into a percent of the
// known duration. In-flight readings are clamped below 100 so only a
// successful exit reports completion.
func parseTimeProgress(line string, durationSeconds float64) (float64, bool) {
	if durationSeconds <= 0 {
		return 0, false
	}
	m := timeRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	hours, _ := strconv.ParseFloat(m[1], 64)
	minutes, _ := strconv.ParseFloat(m[2], 64)
	seconds, _ := strconv.ParseFloat(m[3], 64)
	elapsed := hours*3600 + minutes*60 + seconds

	percent := elapsed / durationSeconds * 100
	if percent < 0 {
		percent = 0
	}
	if percent > 99 {
		percent = 99
	}
	return percent, true
}

// errorTailLines bounds how much process output is kept for failure
// reporting. An encode can run for hours; only the tail matters.
const errorTailLines = 40

type outputTail struct {
	buf []string
}

func (t *outputTail) add(line string) {
	t.buf = append(t.buf, line)
	if len(t.buf) > 2*errorTailLines {
		t.buf = append(t.buf[:0], t.buf[len(t.buf)-errorTailLines:]...)
	}
}

func (t *outputTail) lines() []string {
	if len(t.buf) > errorTailLines {
		return t.buf[len(t.buf)-errorTailLines:]
	}
	return t.buf
}

// IsCancelled reports whether the error chain includes the cancelled marker.
func IsCancelled(err error) bool {
	return errors.Is(err, services.ErrCancelled)
}
