package ytdlp

import (
	"fmt"
	"strings"

	"reeler/internal/services"
)

// errorPatterns maps yt-dlp output substrings to sentinel errors. Order
// matters: the first match wins, and permanent conditions are listed before
// the broader transient ones.
var errorPatterns = []struct {
	substring string
	marker    error
}{
	{"This video is unavailable", services.ErrUnavailable},
	{"Video unavailable", services.ErrUnavailable},
	{"Private video", services.ErrPrivate},
	{"Sign in to confirm your age", services.ErrAgeRestricted},
	{"is not a valid URL", services.ErrBadURL},
	{"Unsupported URL", services.ErrUnsupportedURL},
	{"HTTP Error 429", services.ErrRateLimited},
	{"Too Many Requests", services.ErrRateLimited},
	{"Unable to download webpage", services.ErrNetwork},
	{"Unable to download video data", services.ErrNetwork},
	{"Connection reset by peer", services.ErrNetwork},
	{"Temporary failure in name resolution", services.ErrNetwork},
	{"timed out", services.ErrNetwork},
}

// classifyLine returns the sentinel for a single output line, or nil when
// the line carries no recognized failure.
func classifyLine(line string) error {
	for _, pattern := range errorPatterns {
		if strings.Contains(line, pattern.substring) {
			return pattern.marker
		}
	}
	return nil
}

// classifyFailure turns a failed invocation into a taxonomy error. The scan
// walks output backwards so the final error line wins when yt-dlp reported
// several.
func classifyFailure(operation string, exitCode int, lines []string) error {
	for i := len(lines) - 1; i >= 0; i-- {
		if marker := classifyLine(lines[i]); marker != nil {
			return services.Wrap(marker, stageFetch, operation, lastErrorLine(lines), nil)
		}
	}
	return services.Wrap(services.ErrExternalTool, stageFetch, operation, fmt.Sprintf("exit code %d", exitCode), nil)
}

// errorTailLines bounds how much process output is kept for failure
// classification. A download can emit progress lines for hours; the error
// lines that matter arrive at the end.
const errorTailLines = 64

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

// lastErrorLine picks the most useful line for the error message: the last
// ERROR-prefixed line if present, otherwise the last non-blank line.
func lastErrorLine(lines []string) string {
	var lastNonBlank string
	for i := len(lines) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "ERROR:") {
			return trimmed
		}
		if lastNonBlank == "" {
			lastNonBlank = trimmed
		}
	}
	return lastNonBlank
}
