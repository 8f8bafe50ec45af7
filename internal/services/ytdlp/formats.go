package ytdlp

import (
	"context"
	"strings"

	"reeler/internal/services"
)

// ListFormats returns the raw format table for a URL as yt-dlp prints it.
// This is a single-attempt probe for interactive display.
func (c *Client) ListFormats(ctx context.Context, url string) ([]string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, services.Wrap(services.ErrValidation, stageFetch, "formats", "url required", nil)
	}

	args := []string{"-F", "--no-playlist"}
	args = append(args, c.cookieArgs()...)
	args = append(args, url)

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, 2*c.timeout)
		defer cancel()
	}

	lines, code, err := c.runCollect(runCtx, "", args...)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, classifyFailure("formats", code, lines)
	}
	if len(lines) == 0 {
		return nil, services.Wrap(services.ErrEmptyOutput, stageFetch, "formats", "no format table in output", nil)
	}
	return lines, nil
}

// Version reports the installed yt-dlp version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	lines, code, err := c.runCollect(ctx, "", "--version")
	if err != nil {
		return "", err
	}
	if code != 0 || len(lines) == 0 {
		return "", services.Wrap(services.ErrExternalTool, stageFetch, "version", "no version in output", nil)
	}
	return strings.TrimSpace(lines[len(lines)-1]), nil
}
