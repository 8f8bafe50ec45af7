package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"reeler/internal/history"
	"reeler/internal/logging"
	"reeler/internal/services"
	"reeler/internal/services/ffmpeg"
	"reeler/internal/services/ytdlp"
)

// StartJob probes the source, creates the durable job record, and launches
// the goroutine that owns the job through to its terminal status.
func (m *Manager) StartJob(ctx context.Context, req JobRequest) (*Job, error) {
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return nil, services.Wrap(services.ErrValidation, "workflow", "start", "url required", nil)
	}
	if req.OutputDir == "" {
		req.OutputDir = m.cfg.Paths.DownloadDir
	}

	info, err := m.fetcher.FetchInfo(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	rec, err := m.store.Create(ctx, history.NewRecord{
		SourceID:      info.ID,
		Title:         info.Title,
		SourceURL:     req.URL,
		ThumbnailURL:  info.Thumbnail,
		VideoFormat:   req.VideoFormat,
		AudioFormat:   req.AudioFormat,
		SubtitleLangs: req.SubtitleLangs,
	})
	if err != nil {
		return nil, err
	}

	return m.launch(ctx, rec, req)
}

// ResumeJob returns a terminal record to in_progress and runs it again. The
// downloader picks up partial files left by the earlier attempt.
func (m *Manager) ResumeJob(ctx context.Context, id int64, onProgress func(ProgressEvent)) (*Job, error) {
	rec, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, services.Wrap(services.ErrValidation, "workflow", "resume", "no such job record", nil)
	}
	if rec.Status == history.StatusInProgress {
		return nil, services.Wrap(services.ErrValidation, "workflow", "resume", "job already in progress", nil)
	}

	rec, err = m.store.Resume(ctx, id)
	if err != nil {
		return nil, err
	}

	req := JobRequest{
		URL:           rec.SourceURL,
		OutputDir:     m.cfg.Paths.DownloadDir,
		VideoFormat:   rec.VideoFormat,
		AudioFormat:   rec.AudioFormat,
		SubtitleLangs: rec.SubtitleLangs,
		Resume:        true,
		OnProgress:    onProgress,
	}
	return m.launch(ctx, rec, req)
}

func (m *Manager) launch(ctx context.Context, rec *history.Record, req JobRequest) (*Job, error) {
	jobCtx, cancel := context.WithCancel(ctx)
	job := &Job{
		RecordID:      rec.ID,
		CorrelationID: uuid.NewString(),
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	if err := m.track(job); err != nil {
		cancel()
		return nil, err
	}

	// Tool clients and loggers downstream read these from the context.
	jobCtx = services.WithJobID(jobCtx, rec.ID)
	jobCtx = services.WithRequestID(jobCtx, job.CorrelationID)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.untrack(rec.ID)
		defer cancel()
		final, err := m.runJob(jobCtx, rec, req)
		job.finish(final, err)
	}()
	return job, nil
}

// runJob drives one job through sidecars, download, and conversion. It
// always leaves the record on a terminal status before returning.
func (m *Manager) runJob(ctx context.Context, rec *history.Record, req JobRequest) (*history.Record, error) {
	ctx = services.WithStage(ctx, "fetch")
	logger := logging.WithContext(ctx, m.logger)

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("title", rec.Title),
		logging.String("url", rec.SourceURL),
	}
	if req.VideoFormat != "" {
		attrs = append(attrs, logging.String("video_format", req.VideoFormat))
	}
	if req.AudioFormat != "" {
		attrs = append(attrs, logging.String("audio_format", req.AudioFormat))
	}
	logger.Info("job started", logging.Args(attrs...)...)

	m.fetchSidecars(ctx, logger, rec, req)

	result, err := m.fetcher.Download(ctx, ytdlp.DownloadRequest{
		URL:         rec.SourceURL,
		OutputDir:   req.OutputDir,
		Title:       sanitizeTitle(rec.Title),
		VideoFormat: req.VideoFormat,
		AudioFormat: req.AudioFormat,
		Resume:      req.Resume,
	}, func(u ytdlp.ProgressUpdate) {
		if req.OnProgress != nil {
			req.OnProgress(ProgressEvent{Stage: u.Stage, Percent: u.Percent, ETA: u.ETA, Rate: u.Rate})
		}
	})
	if err != nil {
		status := history.StatusFailed
		if errors.Is(err, services.ErrCancelled) {
			status = history.StatusCancelled
		}
		final := m.settle(ctx, logger, rec.ID, history.StatusUpdate{
			Status:       status,
			ErrorMessage: err.Error(),
		})
		logger.Warn("download did not complete",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String("status", string(status)),
			logging.Error(err))
		return final, err
	}

	if result.OutputPath == "" {
		logger.Warn("download finished but no output file could be resolved")
	} else {
		logger.Info("download finished",
			logging.String("output", result.OutputPath),
			logging.Int64("size_bytes", result.FileSizeBytes))
	}

	if req.SkipConversion || !needsConversion(result.OutputPath, m.cfg.Transcode.TargetFormat) {
		final := m.settle(ctx, logger, rec.ID, history.StatusUpdate{
			Status:     history.StatusCompleted,
			OutputPath: result.OutputPath,
			FileSize:   result.FileSizeBytes,
		})
		logger.Info("job completed", logging.String(logging.FieldEventType, "job_complete"))
		return final, nil
	}

	// The downloaded file is durable before conversion starts, so an
	// interrupted conversion still leaves a usable record behind.
	if _, err := m.store.UpdateStatus(ctx, rec.ID, history.StatusUpdate{
		Status:     history.StatusInProgress,
		OutputPath: result.OutputPath,
		FileSize:   result.FileSizeBytes,
	}); err != nil && ctx.Err() == nil {
		logger.Warn("record output update failed", logging.Error(err))
	}
	return m.convert(ctx, rec.ID, result.OutputPath, result.FileSizeBytes, req.OnProgress)
}

// convert runs the conversion stage against a finished download and settles
// the record on conversion_completed or conversion_interrupted.
func (m *Manager) convert(ctx context.Context, recordID int64, sourcePath string, sourceSize int64, onProgress func(ProgressEvent)) (*history.Record, error) {
	ctx = services.WithStage(ctx, "transcode")
	logger := logging.WithContext(ctx, m.logger)

	encoder := m.pickEncoder(ctx, logger)
	outputPath := targetPath(sourcePath, m.cfg.Transcode.TargetFormat)

	logger.Info("conversion started",
		logging.String("encoder", string(encoder)),
		logging.String("target", outputPath))

	result, err := m.converter.Transcode(ctx, ffmpeg.TranscodeRequest{
		InputPath:  sourcePath,
		OutputPath: outputPath,
		Encoder:    encoder,
	}, func(percent float64) {
		if onProgress != nil {
			onProgress(ProgressEvent{Stage: "converting", Percent: percent})
		}
	})
	if err != nil {
		// The download stays usable: keep its path on the record and
		// drop any partial conversion output.
		_ = os.Remove(outputPath)
		final := m.settle(ctx, logger, recordID, history.StatusUpdate{
			Status:       history.StatusConversionInterrupted,
			OutputPath:   sourcePath,
			FileSize:     sourceSize,
			ErrorMessage: err.Error(),
		})
		logger.Warn("conversion interrupted",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.Error(err))
		return final, err
	}

	if result.FellBack {
		logger.Warn("conversion fell back to software path", logging.String("encoder", string(result.Encoder)))
	}
	if m.cfg.Transcode.RemoveSource {
		if err := os.Remove(sourcePath); err != nil {
			logger.Warn("remove conversion source", logging.Error(err))
		}
	}

	final := m.settle(ctx, logger, recordID, history.StatusUpdate{
		Status:     history.StatusConversionCompleted,
		OutputPath: result.OutputPath,
		FileSize:   result.FileSizeBytes,
	})
	logger.Info("conversion completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("output", result.OutputPath))
	return final, nil
}

// TranscodeFile converts an existing local file as its own job record,
// synchronously. Used by the standalone conversion command.
func (m *Manager) TranscodeFile(ctx context.Context, path string, onProgress func(ProgressEvent)) (*history.Record, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrValidation, "workflow", "transcode", "path required", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "workflow", "transcode", "source file", err)
	}
	if !needsConversion(path, m.cfg.Transcode.TargetFormat) {
		return nil, services.Wrap(services.ErrValidation, "workflow", "transcode",
			"file already matches target container "+m.cfg.Transcode.TargetFormat, nil)
	}

	rec, err := m.store.Create(ctx, history.NewRecord{
		Title:      deriveTitle(path),
		SourceURL:  "file://" + path,
		OutputPath: path,
	})
	if err != nil {
		return nil, err
	}

	ctx = services.WithJobID(ctx, rec.ID)
	final, convErr := m.convert(ctx, rec.ID, path, info.Size(), onProgress)
	if convErr != nil {
		return final, convErr
	}
	return final, nil
}

// TranscodeRecord re-runs the conversion stage for an existing record's
// downloaded file, recording the conversion outcome on that record instead
// of creating a new one.
func (m *Manager) TranscodeRecord(ctx context.Context, id int64, onProgress func(ProgressEvent)) (*history.Record, error) {
	rec, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, services.Wrap(services.ErrValidation, "workflow", "transcode", "no such job record", nil)
	}
	if rec.Status == history.StatusInProgress {
		return nil, services.Wrap(services.ErrValidation, "workflow", "transcode", "job already in progress", nil)
	}
	if rec.OutputPath == "" {
		return nil, services.Wrap(services.ErrValidation, "workflow", "transcode", "record has no output file", nil)
	}
	info, err := os.Stat(rec.OutputPath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "workflow", "transcode", "source file", err)
	}
	if !needsConversion(rec.OutputPath, m.cfg.Transcode.TargetFormat) {
		return nil, services.Wrap(services.ErrValidation, "workflow", "transcode",
			"file already matches target container "+m.cfg.Transcode.TargetFormat, nil)
	}

	if _, err := m.store.Resume(ctx, id); err != nil {
		return nil, err
	}

	ctx = services.WithJobID(ctx, id)
	return m.convert(ctx, id, rec.OutputPath, info.Size(), onProgress)
}

// fetchSidecars pulls subtitles and the thumbnail. Sidecar failures never
// fail the job.
func (m *Manager) fetchSidecars(ctx context.Context, logger *slog.Logger, rec *history.Record, req JobRequest) {
	if len(req.SubtitleLangs) > 0 {
		paths, err := m.fetcher.DownloadSubtitles(ctx, rec.SourceURL, req.OutputDir, req.SubtitleLangs)
		if err != nil {
			logger.Warn("subtitle download failed", logging.Error(err))
		} else if len(paths) > 0 {
			logger.Info("subtitles downloaded", logging.Int("count", len(paths)))
		}
	}
	if req.Thumbnail || m.cfg.Fetch.DownloadThumbnail {
		path, err := m.fetcher.DownloadThumbnail(ctx, rec.SourceURL, req.OutputDir)
		if err != nil {
			logger.Warn("thumbnail download failed", logging.Error(err))
		} else if path != "" {
			logger.Info("thumbnail downloaded", logging.String("path", path))
		}
	}
}

// pickEncoder detects what this host can encode with and selects the best
// rung. Detection failures degrade to software encoding.
func (m *Manager) pickEncoder(ctx context.Context, logger *slog.Logger) ffmpeg.Encoder {
	gpu := m.converter.GPUPresent(ctx, "nvidia-smi")
	encoders, err := m.converter.DetectEncoders(ctx, gpu)
	if err != nil {
		logger.Warn("encoder detection failed, using software encoder", logging.Error(err))
		return ffmpeg.EncoderX264
	}
	return ffmpeg.SelectEncoder(encoders)
}

// settle applies a terminal status. Store failures at this point are logged
// rather than surfaced: the job outcome already happened and the caller's
// error should describe that outcome, not the bookkeeping.
func (m *Manager) settle(ctx context.Context, logger *slog.Logger, recordID int64, update history.StatusUpdate) *history.Record {
	// Use a fresh context: the job context is usually cancelled by the
	// time a cancelled job settles its record.
	writeCtx := context.WithoutCancel(ctx)
	rec, err := m.store.UpdateStatus(writeCtx, recordID, update)
	if err != nil {
		logger.Error("record status update failed",
			logging.String("status", string(update.Status)),
			logging.Error(err))
		return nil
	}
	return rec
}
