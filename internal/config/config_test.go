package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reeler/internal/config"
)

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file to be reported")
	}
	if cfg.Fetch.Binary != "yt-dlp" {
		t.Fatalf("unexpected fetch binary: %q", cfg.Fetch.Binary)
	}
	if cfg.Fetch.Threads != 10 {
		t.Fatalf("unexpected thread default: %d", cfg.Fetch.Threads)
	}
	if cfg.Transcode.TargetFormat != "mp4" {
		t.Fatalf("unexpected target format: %q", cfg.Transcode.TargetFormat)
	}
	if !filepath.IsAbs(cfg.Paths.DownloadDir) {
		t.Fatalf("expected normalized absolute download dir, got %q", cfg.Paths.DownloadDir)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
download_dir = "` + filepath.Join(dir, "media") + `"

[fetch]
threads = 4
default_video_format = "137"

[cookies]
enabled = true
browser = "Firefox"

[transcode]
target_format = ".MKV"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %s to be loaded, got %s exists=%v", path, resolved, exists)
	}
	if cfg.Fetch.Threads != 4 {
		t.Fatalf("unexpected threads: %d", cfg.Fetch.Threads)
	}
	if cfg.Fetch.DefaultVideoFormat != "137" {
		t.Fatalf("unexpected default video format: %q", cfg.Fetch.DefaultVideoFormat)
	}
	if cfg.Cookies.Browser != "firefox" {
		t.Fatalf("expected browser normalized to lowercase, got %q", cfg.Cookies.Browser)
	}
	if cfg.Transcode.TargetFormat != "mkv" {
		t.Fatalf("expected target format normalized, got %q", cfg.Transcode.TargetFormat)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"threads", func(c *config.Config) { c.Fetch.Threads = 100 }, "fetch.threads"},
		{"browser", func(c *config.Config) { c.Cookies.Enabled = true; c.Cookies.Browser = "netscape" }, "cookies.browser"},
		{"target", func(c *config.Config) { c.Transcode.TargetFormat = "avi" }, "target_format"},
		{"crf", func(c *config.Config) { c.Transcode.SoftwareCRF = 90 }, "software_crf"},
		{"level", func(c *config.Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected second WriteSample to fail")
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected sample logging format: %q", cfg.Logging.Format)
	}
}
