package ytdlp

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"reeler/internal/services"
)

// DownloadSubtitles fetches the requested subtitle languages as SRT sidecar
// files without touching the media itself. It returns the written paths.
func (c *Client) DownloadSubtitles(ctx context.Context, url, outputDir string, langs []string) ([]string, error) {
	url = strings.TrimSpace(url)
	if url == "" || len(langs) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrValidation, stageFetch, "subtitles", "create output directory", err)
	}

	args := []string{
		"--skip-download",
		"--write-subs",
		"--sub-langs", strings.Join(langs, ","),
		"--convert-subs", "srt",
		"-o", outputTemplate,
	}
	args = append(args, c.cookieArgs()...)
	args = append(args, url)

	lines, code, err := c.runCollect(ctx, outputDir, args...)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, classifyFailure("subtitles", code, lines)
	}

	var paths []string
	for _, line := range lines {
		if m := subtitleRe.FindStringSubmatch(line); m != nil {
			path := strings.TrimSpace(m[1])
			if !filepath.IsAbs(path) {
				path = filepath.Join(outputDir, path)
			}
			paths = append(paths, path)
		}
	}
	if len(paths) == 0 {
		paths = globSidecars(outputDir, ".srt")
	}
	return paths, nil
}

// DownloadThumbnail fetches the source thumbnail as a JPEG sidecar and
// returns its path, or empty when the source offers none.
func (c *Client) DownloadThumbnail(ctx context.Context, url, outputDir string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrValidation, stageFetch, "thumbnail", "create output directory", err)
	}

	args := []string{
		"--skip-download",
		"--write-thumbnail",
		"--convert-thumbnails", "jpg",
		"-o", outputTemplate,
	}
	args = append(args, c.cookieArgs()...)
	args = append(args, url)

	lines, code, err := c.runCollect(ctx, outputDir, args...)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", classifyFailure("thumbnail", code, lines)
	}

	for _, line := range lines {
		if m := thumbnailRe.FindStringSubmatch(line); m != nil {
			path := strings.TrimSpace(m[1])
			if !filepath.IsAbs(path) {
				path = filepath.Join(outputDir, path)
			}
			return path, nil
		}
	}
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".webp"} {
		if found := globSidecars(outputDir, ext); len(found) > 0 {
			return found[len(found)-1], nil
		}
	}
	return "", nil
}

func globSidecars(dir, ext string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths
}
