package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"reeler/internal/config"
	"reeler/internal/history"
	"reeler/internal/logging"
	"reeler/internal/services/ffmpeg"
	"reeler/internal/services/ytdlp"
)

// Fetcher is the slice of the yt-dlp client the coordinator drives.
type Fetcher interface {
	FetchInfo(ctx context.Context, url string) (*ytdlp.VideoInfo, error)
	Download(ctx context.Context, req ytdlp.DownloadRequest, progress func(ytdlp.ProgressUpdate)) (*ytdlp.DownloadResult, error)
	DownloadSubtitles(ctx context.Context, url, outputDir string, langs []string) ([]string, error)
	DownloadThumbnail(ctx context.Context, url, outputDir string) (string, error)
}

// Converter is the slice of the ffmpeg client the coordinator drives.
type Converter interface {
	Probe(ctx context.Context, path string) (ffmpeg.MediaInfo, error)
	DetectEncoders(ctx context.Context, gpuPresent bool) ([]ffmpeg.Encoder, error)
	GPUPresent(ctx context.Context, nvidiaSMIBinary string) bool
	Transcode(ctx context.Context, req ffmpeg.TranscodeRequest, progress func(float64)) (*ffmpeg.TranscodeResult, error)
}

// Manager owns the running jobs and the single-instance lock.
type Manager struct {
	cfg       *config.Config
	store     *history.Store
	fetcher   Fetcher
	converter Converter
	logger    *slog.Logger

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	started bool
	jobs    map[int64]*Job
	wg      sync.WaitGroup
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *history.Store, fetcher Fetcher, converter Converter, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "reeler.lock")
	return &Manager{
		cfg:       cfg,
		store:     store,
		fetcher:   fetcher,
		converter: converter,
		logger:    logging.NewComponentLogger(logger, "workflow"),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
}

// Start acquires the instance lock. Only one writer may own the job store at
// a time; a second instance fails here instead of corrupting shared state.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return errors.New("workflow manager already started")
	}

	ok, err := m.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another instance holds %s", m.lockPath)
	}

	if err := m.recoverStale(ctx); err != nil {
		_ = m.lock.Unlock()
		return err
	}

	m.started = true
	m.jobs = make(map[int64]*Job)
	m.logger.Info("workflow manager started", logging.String("lock", m.lockPath))
	return nil
}

// Stop cancels every running job, waits for them to unwind, and releases the
// instance lock.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	m.mu.Unlock()

	for _, job := range jobs {
		job.Cancel()
	}
	m.wg.Wait()

	m.mu.Lock()
	m.started = false
	if err := m.lock.Unlock(); err != nil {
		m.logger.Warn("release instance lock", logging.Error(err))
	}
	m.mu.Unlock()
	m.logger.Info("workflow manager stopped")
}

// Job returns a tracked job by record ID.
func (m *Manager) Job(id int64) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	return job, ok
}

// CancelJob cancels a running job and reports whether it was tracked.
func (m *Manager) CancelJob(id int64) bool {
	job, ok := m.Job(id)
	if !ok {
		return false
	}
	job.Cancel()
	return true
}

// Wait blocks until every started job has reached a terminal status.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// LockPath returns the instance lock file location.
func (m *Manager) LockPath() string {
	return m.lockPath
}

// recoverStale marks records left in_progress by an unclean shutdown. Their
// processes are gone, so the honest status is failed; the resume path can
// pick them up again later.
func (m *Manager) recoverStale(ctx context.Context) error {
	stale, err := m.store.InProgress(ctx)
	if err != nil {
		return fmt.Errorf("list stale jobs: %w", err)
	}
	for _, rec := range stale {
		if _, err := m.store.UpdateStatus(ctx, rec.ID, history.StatusUpdate{
			Status:       history.StatusFailed,
			ErrorMessage: "interrupted by shutdown",
		}); err != nil {
			return fmt.Errorf("mark stale job %d: %w", rec.ID, err)
		}
		m.logger.Warn("marked stale job as failed",
			logging.Int64(logging.FieldJobID, rec.ID),
			logging.String("title", rec.Title))
	}
	return nil
}

func (m *Manager) track(job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return errors.New("workflow manager not started")
	}
	m.jobs[job.RecordID] = job
	return nil
}

func (m *Manager) untrack(id int64) {
	m.mu.Lock()
	delete(m.jobs, id)
	m.mu.Unlock()
}
