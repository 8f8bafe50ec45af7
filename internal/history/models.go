package history

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job record.
type Status string

const (
	StatusInProgress            Status = "in_progress"
	StatusCompleted             Status = "completed"
	StatusFailed                Status = "failed"
	StatusCancelled             Status = "cancelled"
	StatusConversionInterrupted Status = "conversion_interrupted"
	StatusConversionCompleted   Status = "conversion_completed"
)

var allStatuses = []Status{
	StatusInProgress,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
	StatusConversionInterrupted,
	StatusConversionCompleted,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether the status ends a job's lifecycle. Terminal
// records may only re-enter in_progress through the explicit resume path.
func (s Status) IsTerminal() bool {
	return s != StatusInProgress && s != ""
}

// Record is a job record persisted in SQLite. Field semantics follow the
// download-attempt lifecycle: StartedAt is set at creation, EndedAt and
// DurationSeconds only once a terminal status is applied.
type Record struct {
	ID              int64
	SourceID        string
	Title           string
	SourceURL       string
	ThumbnailURL    string
	VideoFormat     string
	AudioFormat     string
	SubtitleLangs   []string
	OutputPath      string
	FileSizeBytes   int64
	Status          Status
	StartedAt       time.Time
	EndedAt         *time.Time
	DurationSeconds *int64
	ErrorMessage    string
}

// NewRecord carries the fields captured when a job attempt begins.
type NewRecord struct {
	SourceID      string
	Title         string
	SourceURL     string
	ThumbnailURL  string
	VideoFormat   string
	AudioFormat   string
	SubtitleLangs []string
	OutputPath    string
}

// StatusUpdate describes a status transition. Optional fields are applied
// only when non-zero so repeated updates never erase previously resolved
// values.
type StatusUpdate struct {
	Status       Status
	OutputPath   string
	FileSize     int64
	ErrorMessage string
}

// ListFilter narrows and pages List results.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

// Stats aggregates the store for diagnostic display.
type Stats struct {
	Total          int
	ByStatus       map[Status]int
	TotalSizeBytes int64
}

func joinLangs(langs []string) string {
	cleaned := make([]string, 0, len(langs))
	for _, lang := range langs {
		lang = strings.TrimSpace(lang)
		if lang != "" {
			cleaned = append(cleaned, lang)
		}
	}
	return strings.Join(cleaned, ",")
}

func splitLangs(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	langs := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			langs = append(langs, part)
		}
	}
	return langs
}
