package services

import (
	"errors"
	"fmt"
	"strings"
)

// Transient-remote failures. These consume retry budget inside the fetch
// orchestrator before being surfaced.
var (
	ErrRateLimited = errors.New("rate limited")
	ErrNetwork     = errors.New("network failure")
	ErrEmptyOutput = errors.New("empty or malformed tool output")
)

// Permanent-remote failures. Surfaced immediately, never retried.
var (
	ErrUnavailable    = errors.New("video unavailable")
	ErrPrivate        = errors.New("private video")
	ErrAgeRestricted  = errors.New("age-restricted video")
	ErrBadURL         = errors.New("invalid url")
	ErrUnsupportedURL = errors.New("unsupported url")
)

// Process-infrastructure and lifecycle failures.
var (
	ErrExternalTool = errors.New("external tool error")
	ErrTimeout      = errors.New("timeout")
	ErrCancelled    = errors.New("cancelled")
	ErrValidation   = errors.New("validation error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether an error belongs to the transient-remote class
// and is therefore eligible for retry with backoff.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrEmptyOutput) ||
		errors.Is(err, ErrTimeout)
}

// IsPermanentRemote reports whether an error identifies a remote condition
// that no amount of retrying will fix.
func IsPermanentRemote(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrPrivate) ||
		errors.Is(err, ErrAgeRestricted) ||
		errors.Is(err, ErrBadURL) ||
		errors.Is(err, ErrUnsupportedURL)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
