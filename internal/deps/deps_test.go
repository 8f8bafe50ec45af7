package deps

import (
	"os"
	"path/filepath"
	"testing"

	"reeler/internal/testsupport"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unconfigured", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("present binary misreported: %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("missing binary misreported: %#v", results[1])
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unconfigured binary misreported: %#v", results[2])
	}
}

func TestRequirementsTrackConfiguredBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Fetch.Binary = "/opt/tools/yt-dlp"

	reqs := Requirements(cfg)
	if len(reqs) != 4 {
		t.Fatalf("expected 4 requirements, got %d", len(reqs))
	}
	if reqs[0].Command != "/opt/tools/yt-dlp" {
		t.Errorf("fetch command = %q", reqs[0].Command)
	}
	optional := 0
	for _, req := range reqs {
		if req.Optional {
			optional++
		}
	}
	if optional != 1 {
		t.Errorf("optional requirements = %d, want only the GPU probe", optional)
	}
}

func TestMissingRequired(t *testing.T) {
	statuses := []Status{
		{Name: "A", Available: true},
		{Name: "B", Available: false, Optional: true},
		{Name: "C", Available: false},
	}
	missing := MissingRequired(statuses)
	if len(missing) != 1 || missing[0].Name != "C" {
		t.Fatalf("missing = %+v", missing)
	}
}
