package config

import (
	"errors"
	"fmt"
)

var knownBrowsers = map[string]struct{}{
	"chrome":   {},
	"chromium": {},
	"firefox":  {},
	"edge":     {},
	"safari":   {},
	"brave":    {},
	"opera":    {},
	"vivaldi":  {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateCookies(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DownloadDir == "" {
		return errors.New("paths.download_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.Threads < 1 || c.Fetch.Threads > 64 {
		return fmt.Errorf("fetch.threads must be between 1 and 64, got %d", c.Fetch.Threads)
	}
	if c.Fetch.TimeoutSeconds < 5 {
		return fmt.Errorf("fetch.timeout_seconds must be at least 5, got %d", c.Fetch.TimeoutSeconds)
	}
	return nil
}

func (c *Config) validateCookies() error {
	if !c.Cookies.Enabled {
		return nil
	}
	if _, ok := knownBrowsers[c.Cookies.Browser]; !ok {
		return fmt.Errorf("cookies.browser: unknown browser %q", c.Cookies.Browser)
	}
	return nil
}

func (c *Config) validateTranscode() error {
	switch c.Transcode.TargetFormat {
	case "mp4", "mkv", "webm", "mov":
	default:
		return fmt.Errorf("transcode.target_format: unsupported container %q", c.Transcode.TargetFormat)
	}
	if c.Transcode.Quality < 1 || c.Transcode.Quality > 63 {
		return fmt.Errorf("transcode.quality must be between 1 and 63, got %d", c.Transcode.Quality)
	}
	if c.Transcode.SoftwareCRF < 1 || c.Transcode.SoftwareCRF > 51 {
		return fmt.Errorf("transcode.software_crf must be between 1 and 51, got %d", c.Transcode.SoftwareCRF)
	}
	if c.Transcode.GPUIndex < 0 {
		return fmt.Errorf("transcode.gpu_index must not be negative, got %d", c.Transcode.GPUIndex)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
