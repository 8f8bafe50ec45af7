package history_test

import (
	"context"
	"testing"

	"reeler/internal/history"
	"reeler/internal/testsupport"
)

func TestCreateStartsInProgress(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	rec, err := store.Create(ctx, history.NewRecord{
		SourceID:      "abc123",
		Title:         "Sample Video",
		SourceURL:     "https://example.com/watch?v=abc123",
		VideoFormat:   "bestvideo",
		AudioFormat:   "bestaudio",
		SubtitleLangs: []string{"en", "es"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if rec.Status != history.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", rec.Status)
	}
	if rec.StartedAt.IsZero() {
		t.Error("started_at not stamped")
	}
	if rec.EndedAt != nil || rec.DurationSeconds != nil {
		t.Error("new record must not carry end timestamps")
	}
	if len(rec.SubtitleLangs) != 2 || rec.SubtitleLangs[0] != "en" {
		t.Errorf("subtitle langs = %v", rec.SubtitleLangs)
	}
}

func TestUpdateStatusStampsEndOnce(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	rec := testsupport.NewJob(t, store, "Sample", "https://example.com/v")

	first, err := store.UpdateStatus(ctx, rec.ID, history.StatusUpdate{
		Status:     history.StatusCompleted,
		OutputPath: "/downloads/Sample.mp4",
		FileSize:   2048,
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if first.Status != history.StatusCompleted {
		t.Fatalf("status = %s", first.Status)
	}
	if first.EndedAt == nil || first.DurationSeconds == nil {
		t.Fatal("terminal status must stamp ended_at and duration")
	}
	if first.OutputPath != "/downloads/Sample.mp4" || first.FileSizeBytes != 2048 {
		t.Errorf("output fields not applied: %q %d", first.OutputPath, first.FileSizeBytes)
	}

	// Re-applying the terminal status must not move the timestamps.
	second, err := store.UpdateStatus(ctx, rec.ID, history.StatusUpdate{Status: history.StatusCompleted})
	if err != nil {
		t.Fatalf("second UpdateStatus: %v", err)
	}
	if !second.EndedAt.Equal(*first.EndedAt) {
		t.Errorf("ended_at moved from %v to %v", first.EndedAt, second.EndedAt)
	}
	if *second.DurationSeconds != *first.DurationSeconds {
		t.Errorf("duration moved from %d to %d", *first.DurationSeconds, *second.DurationSeconds)
	}
	if second.OutputPath != "/downloads/Sample.mp4" {
		t.Error("optional fields erased by bare status update")
	}
}

func TestUpdateStatusRejectsUnknown(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	rec := testsupport.NewJob(t, store, "Sample", "https://example.com/v")

	if _, err := store.UpdateStatus(context.Background(), rec.ID, history.StatusUpdate{Status: "downloading"}); err == nil {
		t.Fatal("expected unknown status rejection")
	}
	if _, err := store.UpdateStatus(context.Background(), rec.ID, history.StatusUpdate{}); err == nil {
		t.Fatal("expected empty status rejection")
	}
}

func TestResumeClearsOutcome(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	rec := testsupport.NewJob(t, store, "Sample", "https://example.com/v")

	if _, err := store.UpdateStatus(ctx, rec.ID, history.StatusUpdate{
		Status:       history.StatusFailed,
		ErrorMessage: "HTTP Error 429",
	}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	resumed, err := store.Resume(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.Status != history.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", resumed.Status)
	}
	if resumed.EndedAt != nil || resumed.DurationSeconds != nil {
		t.Error("resume must clear end timestamps")
	}
	if resumed.ErrorMessage != "" {
		t.Errorf("resume must clear error message, got %q", resumed.ErrorMessage)
	}
}

func TestListFiltersAndPages(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := testsupport.NewJob(t, store, "Sample", "https://example.com/v")
		if i%2 == 0 {
			if _, err := store.UpdateStatus(ctx, rec.ID, history.StatusUpdate{Status: history.StatusCompleted}); err != nil {
				t.Fatalf("UpdateStatus: %v", err)
			}
		}
	}

	all, err := store.List(ctx, history.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("len(all) = %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].ID > all[i-1].ID {
			t.Fatal("expected newest-first ordering")
		}
	}

	completed, err := store.List(ctx, history.ListFilter{Status: history.StatusCompleted})
	if err != nil {
		t.Fatalf("List completed: %v", err)
	}
	if len(completed) != 3 {
		t.Fatalf("len(completed) = %d", len(completed))
	}

	page, err := store.List(ctx, history.ListFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List paged: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("len(page) = %d", len(page))
	}
}

func TestSearchMatchesTitleAndURL(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.NewJob(t, store, "Go Concurrency Talk", "https://example.com/watch?v=one")
	testsupport.NewJob(t, store, "Cooking Show", "https://example.com/watch?v=concurrency-two")
	testsupport.NewJob(t, store, "Unrelated", "https://example.com/watch?v=three")

	matches, err := store.Search(ctx, "concurrency")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d", len(matches))
	}
}

func TestInProgressAfterRestart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stale := testsupport.NewJob(t, store, "Interrupted", "https://example.com/v1")
	done := testsupport.NewJob(t, store, "Done", "https://example.com/v2")
	if _, err := store.UpdateStatus(ctx, done.ID, history.StatusUpdate{Status: history.StatusCompleted}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	leftovers, err := reopened.InProgress(ctx)
	if err != nil {
		t.Fatalf("InProgress: %v", err)
	}
	if len(leftovers) != 1 || leftovers[0].ID != stale.ID {
		t.Fatalf("leftovers = %+v", leftovers)
	}
}

func TestStatsAndDelete(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	a := testsupport.NewJob(t, store, "A", "https://example.com/a")
	b := testsupport.NewJob(t, store, "B", "https://example.com/b")
	if _, err := store.UpdateStatus(ctx, a.ID, history.StatusUpdate{Status: history.StatusCompleted, FileSize: 100}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if _, err := store.UpdateStatus(ctx, b.ID, history.StatusUpdate{Status: history.StatusFailed, ErrorMessage: "boom"}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 2 || stats.ByStatus[history.StatusCompleted] != 1 || stats.TotalSizeBytes != 100 {
		t.Fatalf("stats = %+v", stats)
	}

	removed, err := store.Delete(ctx, b.ID)
	if err != nil || !removed {
		t.Fatalf("Delete = %v, %v", removed, err)
	}
	if removed, err = store.Delete(ctx, b.ID); err != nil || removed {
		t.Fatalf("second Delete = %v, %v", removed, err)
	}

	cleared, err := store.DeleteAll(ctx)
	if err != nil || cleared != 1 {
		t.Fatalf("DeleteAll = %d, %v", cleared, err)
	}

	missing, err := store.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil record after clear")
	}
}
