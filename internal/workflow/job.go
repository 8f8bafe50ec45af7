package workflow

import (
	"context"
	"sync"

	"reeler/internal/history"
)

// JobRequest describes one acquisition job.
type JobRequest struct {
	URL           string
	OutputDir     string
	VideoFormat   string
	AudioFormat   string
	SubtitleLangs []string
	// Thumbnail requests the thumbnail sidecar in addition to the media.
	Thumbnail bool
	// SkipConversion leaves the downloaded container as-is regardless of
	// the configured target format.
	SkipConversion bool
	// Resume asks the fetch tool to continue a partial file from an
	// earlier attempt.
	Resume bool
	// OnProgress receives throttled progress events from both stages.
	OnProgress func(ProgressEvent)
}

// ProgressEvent is one progress report surfaced to the caller.
type ProgressEvent struct {
	Stage   string
	Percent float64
	ETA     string
	Rate    string
}

// Job tracks one running acquisition from record creation to its terminal
// status.
type Job struct {
	RecordID      int64
	CorrelationID string

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	record *history.Record
	err    error
}

// Done is closed once the job has reached a terminal status.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Cancel requests cooperative cancellation. The running stage terminates its
// process tree and the record moves to the matching terminal status.
func (j *Job) Cancel() {
	j.cancel()
}

// Result returns the final record and error after Done is closed.
func (j *Job) Result() (*history.Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.record, j.err
}

func (j *Job) finish(rec *history.Record, err error) {
	j.mu.Lock()
	j.record = rec
	j.err = err
	j.mu.Unlock()
	close(j.done)
}
