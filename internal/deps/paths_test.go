package deps

import (
	"os"
	"path/filepath"
	"testing"

	"reeler/internal/testsupport"
)

func TestCheckPathsAllUsable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	statuses := CheckPaths(cfg)
	if len(statuses) != 2 {
		t.Fatalf("got %d path statuses, want 2", len(statuses))
	}
	for _, status := range statuses {
		if !status.Available {
			t.Errorf("%s at %s unusable: %s", status.Name, status.Path, status.Detail)
		}
	}
	if missing := MissingPaths(statuses); len(missing) != 0 {
		t.Fatalf("unexpected missing paths: %v", missing)
	}
}

func TestCheckPathsReportsMissingDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	cfg.Paths.DownloadDir = filepath.Join(cfg.Paths.DownloadDir, "does-not-exist")

	statuses := CheckPaths(cfg)
	missing := MissingPaths(statuses)
	if len(missing) != 1 {
		t.Fatalf("got %d missing paths, want 1", len(missing))
	}
	if missing[0].Name != "download dir" {
		t.Fatalf("missing path = %q", missing[0].Name)
	}
}

func TestCheckPathsRejectsFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	file := filepath.Join(filepath.Dir(cfg.Paths.LogDir), "plain-file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Paths.LogDir = file

	statuses := CheckPaths(cfg)
	for _, status := range statuses {
		if status.Name == "log dir" {
			if status.Available {
				t.Fatal("file should not pass the directory check")
			}
			if status.Detail != "not a directory" {
				t.Fatalf("detail = %q", status.Detail)
			}
		}
	}
}
