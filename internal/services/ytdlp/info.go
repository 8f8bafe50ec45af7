package ytdlp

import (
	"context"
	"encoding/json"
	"strings"

	"reeler/internal/services"
)

// VideoInfo is the subset of yt-dlp's JSON metadata the orchestrator needs.
type VideoInfo struct {
	ID          string                     `json:"id"`
	Title       string                     `json:"title"`
	WebpageURL  string                     `json:"webpage_url"`
	Duration    float64                    `json:"duration"`
	Thumbnail   string                     `json:"thumbnail"`
	Uploader    string                     `json:"uploader"`
	UploadDate  string                     `json:"upload_date"`
	Ext         string                     `json:"ext"`
	FilesizeEst int64                      `json:"filesize_approx"`
	Formats     []Format                   `json:"formats"`
	Subtitles   map[string][]SubtitleTrack `json:"subtitles"`
}

// Format is one selectable stream variant.
type Format struct {
	FormatID   string  `json:"format_id"`
	Ext        string  `json:"ext"`
	Resolution string  `json:"resolution"`
	FPS        float64 `json:"fps"`
	VCodec     string  `json:"vcodec"`
	ACodec     string  `json:"acodec"`
	Filesize   int64   `json:"filesize"`
	TBR        float64 `json:"tbr"`
	FormatNote string  `json:"format_note"`
}

// SubtitleTrack is one downloadable subtitle rendition.
type SubtitleTrack struct {
	Ext  string `json:"ext"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// SubtitleLanguages returns the sorted-insertion list of available subtitle
// language codes.
func (v *VideoInfo) SubtitleLanguages() []string {
	if len(v.Subtitles) == 0 {
		return nil
	}
	langs := make([]string, 0, len(v.Subtitles))
	for lang := range v.Subtitles {
		langs = append(langs, lang)
	}
	return langs
}

// FetchInfo probes the source URL for metadata via --dump-json. Transient
// failures are retried with backoff; permanent remote conditions surface on
// the first attempt.
func (c *Client) FetchInfo(ctx context.Context, url string) (*VideoInfo, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, services.Wrap(services.ErrValidation, stageFetch, "probe", "url required", nil)
	}

	args := []string{"-q", "--dump-json", "--no-playlist"}
	args = append(args, c.cookieArgs()...)
	args = append(args, url)

	var info *VideoInfo
	err := c.withAttempts(ctx, func(attempt int) error {
		probeCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			probeCtx, cancel = context.WithTimeout(ctx, 2*c.timeout)
			defer cancel()
		}

		lines, code, runErr := c.runCollect(probeCtx, "", args...)
		if runErr != nil {
			return runErr
		}
		if code != 0 {
			return classifyFailure("probe", code, lines)
		}

		parsed, parseErr := parseInfoJSON(lines)
		if parseErr != nil {
			return parseErr
		}
		info = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// parseInfoJSON finds and decodes the metadata object in the tool output.
// yt-dlp emits the JSON as one long line; warnings may precede it.
func parseInfoJSON(lines []string) (*VideoInfo, error) {
	for i := len(lines) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(trimmed, "{") {
			continue
		}
		var info VideoInfo
		if err := json.Unmarshal([]byte(trimmed), &info); err != nil {
			return nil, services.Wrap(services.ErrEmptyOutput, stageFetch, "probe", "malformed metadata json", err)
		}
		if info.Title == "" {
			return nil, services.Wrap(services.ErrEmptyOutput, stageFetch, "probe", "metadata missing title", nil)
		}
		return &info, nil
	}
	return nil, services.Wrap(services.ErrEmptyOutput, stageFetch, "probe", "no metadata in output", nil)
}
