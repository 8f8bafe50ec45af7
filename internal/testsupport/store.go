package testsupport

import (
	"context"
	"testing"

	"reeler/internal/config"
	"reeler/internal/history"
)

// MustOpenStore opens a history.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates an in-progress job record for tests using the provided store.
func NewJob(t testing.TB, store *history.Store, title, url string) *history.Record {
	t.Helper()

	rec, err := store.Create(context.Background(), history.NewRecord{
		Title:     title,
		SourceURL: url,
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return rec
}
