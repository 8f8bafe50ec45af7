package history

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"reeler/internal/config"
)

// Store manages job record persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "history.db")
	return OpenPath(dbPath)
}

// OpenPath opens the database at an explicit path. Useful for tooling that
// operates on a database outside the configured layout.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Create inserts a record for a job attempt that is starting now. The record
// begins in_progress with started_at stamped from the clock.
func (s *Store) Create(ctx context.Context, rec NewRecord) (*Record, error) {
	now := time.Now().Unix()

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO job_records (
            source_id, title, source_url, thumbnail_url,
            video_format, audio_format, subtitle_langs, output_path,
            file_size, status, started_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableString(rec.SourceID),
		rec.Title,
		rec.SourceURL,
		nullableString(rec.ThumbnailURL),
		nullableString(rec.VideoFormat),
		nullableString(rec.AudioFormat),
		nullableString(joinLangs(rec.SubtitleLangs)),
		nullableString(rec.OutputPath),
		0,
		StatusInProgress,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// UpdateStatus applies a status transition. Terminal statuses stamp ended_at
// and duration once; re-applying the same terminal status leaves the original
// timestamps intact. Optional fields overwrite only when set.
func (s *Store) UpdateStatus(ctx context.Context, id int64, update StatusUpdate) (*Record, error) {
	if update.Status == "" {
		return nil, fmt.Errorf("update status: empty status")
	}
	if _, ok := statusSet[update.Status]; !ok {
		return nil, fmt.Errorf("update status: unknown status %q", update.Status)
	}

	sets := []string{"status = ?"}
	args := []any{string(update.Status)}

	if update.Status.IsTerminal() {
		now := time.Now().Unix()
		sets = append(sets,
			"ended_at = COALESCE(ended_at, ?)",
			"duration = COALESCE(duration, ? - started_at)",
		)
		args = append(args, now, now)
	}
	if update.OutputPath != "" {
		sets = append(sets, "output_path = ?")
		args = append(args, update.OutputPath)
	}
	if update.FileSize > 0 {
		sets = append(sets, "file_size = ?")
		args = append(args, update.FileSize)
	}
	if update.ErrorMessage != "" {
		sets = append(sets, "error_message = ?")
		args = append(args, update.ErrorMessage)
	}

	query := "UPDATE job_records SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update job record %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, sql.ErrNoRows
	}

	return s.GetByID(ctx, id)
}

// Resume returns a terminal record to in_progress for a retry attempt,
// clearing the previous outcome fields so the new attempt starts clean.
func (s *Store) Resume(ctx context.Context, id int64) (*Record, error) {
	now := time.Now().Unix()

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE job_records SET
            status = ?, started_at = ?, ended_at = NULL,
            duration = NULL, error_message = NULL
        WHERE id = ?`,
		StatusInProgress,
		now,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("resume job record %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, sql.ErrNoRows
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a single record.
func (s *Store) GetByID(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM job_records WHERE id = ?", id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job record %d: %w", id, err)
	}
	return rec, nil
}

// List returns records newest-first, optionally filtered by status and paged.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	query := "SELECT " + recordColumns + " FROM job_records"
	args := []any{}
	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY started_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list job records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Search matches a keyword against record titles and source URLs.
func (s *Store) Search(ctx context.Context, keyword string) ([]*Record, error) {
	pattern := "%" + strings.TrimSpace(keyword) + "%"
	rows, err := s.db.QueryContext(
		ctx,
		"SELECT "+recordColumns+" FROM job_records WHERE title LIKE ? OR source_url LIKE ? ORDER BY started_at DESC, id DESC",
		pattern,
		pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("search job records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// InProgress returns the records still marked in_progress, oldest first.
// After an unclean shutdown these are the candidates for resume or cleanup.
func (s *Store) InProgress(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"SELECT "+recordColumns+" FROM job_records WHERE status = ? ORDER BY started_at ASC, id ASC",
		StatusInProgress,
	)
	if err != nil {
		return nil, fmt.Errorf("in-progress job records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Stats aggregates counts per status and the total bytes on disk across
// completed records.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByStatus: make(map[Status]int)}

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM job_records GROUP BY status")
	if err != nil {
		return Stats{}, fmt.Errorf("stats query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var statusStr string
		var count int
		if err := rows.Scan(&statusStr, &count); err != nil {
			return Stats{}, fmt.Errorf("scan stats row: %w", err)
		}
		stats.ByStatus[Status(statusStr)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("stats rows: %w", err)
	}

	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(file_size), 0) FROM job_records")
	if err := row.Scan(&stats.TotalSizeBytes); err != nil {
		return Stats{}, fmt.Errorf("scan total size: %w", err)
	}
	return stats, nil
}

// Delete removes a single record and reports whether one existed.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM job_records WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete job record %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteAll clears the history and returns the number of removed records.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM job_records")
	if err != nil {
		return 0, fmt.Errorf("clear job records: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

const recordColumns = "id, source_id, title, source_url, thumbnail_url, video_format, audio_format, subtitle_langs, output_path, file_size, status, started_at, ended_at, duration, error_message"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id           int64
		sourceID     sql.NullString
		title        string
		sourceURL    string
		thumbnailURL sql.NullString
		videoFormat  sql.NullString
		audioFormat  sql.NullString
		subLangs     sql.NullString
		outputPath   sql.NullString
		fileSize     sql.NullInt64
		statusStr    string
		startedAt    int64
		endedAt      sql.NullInt64
		duration     sql.NullInt64
		errorMessage sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourceID,
		&title,
		&sourceURL,
		&thumbnailURL,
		&videoFormat,
		&audioFormat,
		&subLangs,
		&outputPath,
		&fileSize,
		&statusStr,
		&startedAt,
		&endedAt,
		&duration,
		&errorMessage,
	); err != nil {
		return nil, err
	}

	rec := &Record{
		ID:            id,
		SourceID:      sourceID.String,
		Title:         title,
		SourceURL:     sourceURL,
		ThumbnailURL:  thumbnailURL.String,
		VideoFormat:   videoFormat.String,
		AudioFormat:   audioFormat.String,
		SubtitleLangs: splitLangs(subLangs.String),
		OutputPath:    outputPath.String,
		FileSizeBytes: fileSize.Int64,
		Status:        Status(statusStr),
		StartedAt:     time.Unix(startedAt, 0).UTC(),
		ErrorMessage:  errorMessage.String,
	}
	if endedAt.Valid {
		ended := time.Unix(endedAt.Int64, 0).UTC()
		rec.EndedAt = &ended
	}
	if duration.Valid {
		d := duration.Int64
		rec.DurationSeconds = &d
	}
	return rec, nil
}

func collectRecords(rows *sql.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job records: %w", err)
	}
	return records, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
