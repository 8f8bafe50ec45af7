package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"reeler/internal/services"
)

// outputTemplate names downloads after the source title. Paths in the tool
// output are relative to the download directory.
const outputTemplate = "%(title)s.%(ext)s"

// DownloadRequest describes one media download.
type DownloadRequest struct {
	URL         string
	OutputDir   string
	Title       string
	VideoFormat string
	AudioFormat string
	// Resume asks the tool to continue a partial file left by an earlier
	// attempt instead of starting over.
	Resume bool
}

// DownloadResult reports where the finished media landed.
type DownloadResult struct {
	OutputPath    string
	FileSizeBytes int64
	Merged        bool
}

// Download fetches the media for a URL, streaming progress through the
// callback. Transient failures are retried with backoff; cancellation of the
// context terminates the yt-dlp process tree and surfaces ErrCancelled.
func (c *Client) Download(ctx context.Context, req DownloadRequest, progress func(ProgressUpdate)) (*DownloadResult, error) {
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return nil, services.Wrap(services.ErrValidation, stageFetch, "download", "url required", nil)
	}
	if req.OutputDir == "" {
		return nil, services.Wrap(services.ErrValidation, stageFetch, "download", "output directory required", nil)
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrValidation, stageFetch, "download", "create output directory", err)
	}

	args := c.downloadArgs(req)
	tracker := newProgressTracker(progress, c.now)

	var result *DownloadResult
	err := c.withAttempts(ctx, func(attempt int) error {
		res, runErr := c.runDownload(ctx, req, args, tracker)
		if runErr != nil {
			return runErr
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	tracker.finish()
	return result, nil
}

func (c *Client) downloadArgs(req DownloadRequest) []string {
	args := []string{"--newline", "--no-mtime", "-o", outputTemplate}
	if req.Resume {
		args = append(args, "-c")
	}
	if c.threads > 1 {
		args = append(args, "-N", strconv.Itoa(c.threads))
	}
	if c.timeout > 0 {
		args = append(args, "--socket-timeout", strconv.Itoa(int(c.timeout.Seconds())))
	}
	switch {
	case req.VideoFormat != "" && req.AudioFormat != "":
		args = append(args, "-f", req.VideoFormat+"+"+req.AudioFormat)
	case req.VideoFormat != "":
		args = append(args, "-f", req.VideoFormat)
	case req.AudioFormat != "":
		args = append(args, "-f", req.AudioFormat)
	}
	args = append(args, c.cookieArgs()...)
	args = append(args, req.URL)
	return args
}

func (c *Client) runDownload(ctx context.Context, req DownloadRequest, args []string, tracker *progressTracker) (*DownloadResult, error) {
	proc, err := c.launcher.Start(req.OutputDir, c.binary, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageFetch, "spawn", c.binary, err)
	}

	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			proc.Terminate()
		case <-watchDone:
		}
	}()

	var (
		tail       outputTail
		mergerDest string
		lastDest   string
		already    string
	)
	for line := range proc.Lines() {
		tail.add(line)
		tracker.observe(line)
		if m := mergerRe.FindStringSubmatch(line); m != nil {
			mergerDest = strings.TrimSpace(m[1])
		}
		if m := destinationRe.FindStringSubmatch(line); m != nil {
			lastDest = strings.TrimSpace(m[1])
		}
		if m := alreadyRe.FindStringSubmatch(line); m != nil {
			already = strings.TrimSpace(m[1])
		}
	}
	code, waitErr := proc.Wait()
	close(watchDone)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, services.Wrap(services.ErrCancelled, stageFetch, "download", req.URL, ctxErr)
	}
	if waitErr != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageFetch, "download", req.URL, waitErr)
	}
	if code != 0 {
		return nil, classifyFailure("download", code, tail.lines())
	}

	outputPath := resolveOutput(req.OutputDir, req.Title, mergerDest, lastDest, already)

	result := &DownloadResult{OutputPath: outputPath, Merged: mergerDest != ""}
	if info, statErr := os.Stat(outputPath); statErr == nil {
		result.FileSizeBytes = info.Size()
	}
	return result, nil
}

// resolveOutput determines the finished file. The merger destination is
// authoritative when present; otherwise the last Destination line, then the
// already-downloaded notice, then a directory scan keyed on the title. A
// zero-exit download with no resolvable file degrades to an empty path
// rather than failing the stage.
func resolveOutput(dir, title, mergerDest, lastDest, already string) string {
	for _, candidate := range []string{mergerDest, lastDest, already} {
		if candidate == "" {
			continue
		}
		path := candidate
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return globOutput(dir, title)
}

// globOutput scans the download directory for the finished media file,
// preferring mp4, then webm, then the newest remaining candidate.
func globOutput(dir, title string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	type candidate struct {
		path    string
		ext     string
		modTime int64
	}
	var candidates []candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
		if ext == "part" || ext == "ytdl" || ext == "" {
			continue
		}
		if title != "" {
			base := strings.TrimSuffix(name, filepath.Ext(name))
			if base != title {
				continue
			}
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(dir, name),
			ext:     ext,
			modTime: info.ModTime().UnixNano(),
		})
	}
	if len(candidates) == 0 && title != "" {
		// The title may have been sanitized by the tool; fall back to any file.
		return globOutput(dir, "")
	}
	if len(candidates) == 0 {
		return ""
	}

	for _, preferred := range []string{"mp4", "webm"} {
		for _, cand := range candidates {
			if cand.ext == preferred {
				return cand.path
			}
		}
	}
	newest := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.modTime > newest.modTime {
			newest = cand
		}
	}
	return newest.path
}

// IsCancelled reports whether the error chain includes the cancelled marker,
// used by callers distinguishing operator aborts from failures.
func IsCancelled(err error) bool {
	return errors.Is(err, services.ErrCancelled)
}
