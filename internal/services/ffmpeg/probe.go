package ffmpeg

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"reeler/internal/services"
)

// Probe fallbacks. Container metadata is frequently missing or nonsense on
// freshly downloaded files, so the caller-facing accessors substitute values
// that keep the rate-control math sane.
const (
	defaultDurationSeconds = 300.0
	minCredibleBitRate     = 100_000
	defaultBitRate         = 5_000_000
)

// MediaInfo is the probed shape of an input file.
type MediaInfo struct {
	Container       string
	DurationSeconds float64
	BitRateBPS      int64
	SizeBytes       int64
	Width           int
	Height          int
	VideoCodec      string
	AudioCodec      string
}

// EffectiveDuration returns the probed duration, or the default when the
// container did not report one.
func (m MediaInfo) EffectiveDuration() float64 {
	if m.DurationSeconds <= 0 {
		return defaultDurationSeconds
	}
	return m.DurationSeconds
}

// EffectiveBitRate returns the probed bitrate, substituting the default when
// the reported figure is implausibly low.
func (m MediaInfo) EffectiveBitRate() int64 {
	if m.BitRateBPS < minCredibleBitRate {
		return defaultBitRate
	}
	return m.BitRateBPS
}

type probePayload struct {
	Streams []struct {
		CodecName string `json:"codec_name"`
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

// Probe inspects a media file with ffprobe.
func (c *Client) Probe(ctx context.Context, path string) (MediaInfo, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return MediaInfo{}, services.Wrap(services.ErrValidation, stageTranscode, "probe", "path required", nil)
	}

	args := []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path}
	lines, code, err := c.runCollect(ctx, c.ffprobeBinary, args...)
	if err != nil {
		return MediaInfo{}, err
	}
	if code != 0 {
		return MediaInfo{}, services.Wrap(services.ErrExternalTool, stageTranscode, "probe", strings.Join(lastLines(lines, 3), "; "), nil)
	}
	return parseProbeOutput(strings.Join(lines, "\n"))
}

func parseProbeOutput(output string) (MediaInfo, error) {
	var payload probePayload
	if err := json.Unmarshal([]byte(output), &payload); err != nil {
		return MediaInfo{}, services.Wrap(services.ErrEmptyOutput, stageTranscode, "probe", "malformed ffprobe json", err)
	}

	info := MediaInfo{
		Container:       payload.Format.FormatName,
		DurationSeconds: parseProbeFloat(payload.Format.Duration),
		BitRateBPS:      int64(parseProbeFloat(payload.Format.BitRate)),
		SizeBytes:       int64(parseProbeFloat(payload.Format.Size)),
	}
	for _, stream := range payload.Streams {
		switch strings.ToLower(stream.CodecType) {
		case "video":
			if info.VideoCodec == "" {
				info.VideoCodec = stream.CodecName
				info.Width = stream.Width
				info.Height = stream.Height
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = stream.CodecName
			}
		}
	}
	return info, nil
}

func parseProbeFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

func lastLines(lines []string, n int) []string {
	var kept []string
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			kept = append([]string{trimmed}, kept...)
		}
	}
	return kept
}
