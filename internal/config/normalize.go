package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFetch()
	c.normalizeCookies()
	c.normalizeTranscode()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = ExpandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFetch() {
	if strings.TrimSpace(c.Fetch.Binary) == "" {
		c.Fetch.Binary = defaultFetchBinary
	}
	if c.Fetch.Threads <= 0 {
		c.Fetch.Threads = defaultFetchThreads
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = defaultFetchTimeout
	}
}

func (c *Config) normalizeCookies() {
	c.Cookies.Browser = strings.ToLower(strings.TrimSpace(c.Cookies.Browser))
	if c.Cookies.Browser == "" {
		c.Cookies.Browser = defaultCookiesBrowser
	}
}

func (c *Config) normalizeTranscode() {
	if strings.TrimSpace(c.Transcode.FFmpegBinary) == "" {
		c.Transcode.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Transcode.FFprobeBinary) == "" {
		c.Transcode.FFprobeBinary = defaultFFprobeBinary
	}
	c.Transcode.TargetFormat = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Transcode.TargetFormat), "."))
	if c.Transcode.TargetFormat == "" {
		c.Transcode.TargetFormat = defaultTargetFormat
	}
	if c.Transcode.Quality <= 0 {
		c.Transcode.Quality = defaultQuality
	}
	if c.Transcode.SoftwareCRF <= 0 {
		c.Transcode.SoftwareCRF = defaultSoftwareCRF
	}
	if strings.TrimSpace(c.Transcode.AudioBitrate) == "" {
		c.Transcode.AudioBitrate = defaultAudioBitrate
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
