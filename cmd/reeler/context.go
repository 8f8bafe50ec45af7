package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"reeler/internal/config"
	"reeler/internal/history"
	"reeler/internal/logging"
	"reeler/internal/services/ffmpeg"
	"reeler/internal/services/ytdlp"
	"reeler/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) buildLogger(cfg *config.Config) *slog.Logger {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func (c *commandContext) buildFetcher(cfg *config.Config) (*ytdlp.Client, error) {
	return ytdlp.New(cfg.Fetch.Binary, cfg.Fetch.TimeoutSeconds,
		ytdlp.WithThreads(cfg.Fetch.Threads),
		ytdlp.WithCookies(ytdlp.CookieOptions{
			Enabled: cfg.Cookies.Enabled,
			Browser: cfg.Cookies.Browser,
		}),
	)
}

func (c *commandContext) buildConverter(cfg *config.Config) (*ffmpeg.Client, error) {
	return ffmpeg.New(cfg.Transcode.FFmpegBinary, cfg.Transcode.FFprobeBinary, ffmpeg.Settings{
		Quality:      cfg.Transcode.Quality,
		SoftwareCRF:  cfg.Transcode.SoftwareCRF,
		AudioBitrate: cfg.Transcode.AudioBitrate,
		GPUIndex:     cfg.Transcode.GPUIndex,
	})
}

// withStore opens the job record store for read-mostly commands.
func (c *commandContext) withStore(fn func(*history.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// withManager wires the full orchestration stack for commands that run jobs.
// The returned context cancels on SIGINT/SIGTERM so a keyboard interrupt
// tears down the running process tree instead of orphaning it.
func (c *commandContext) withManager(parent context.Context, fn func(context.Context, *workflow.Manager) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	store, err := history.Open(cfg)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer store.Close()

	fetcher, err := c.buildFetcher(cfg)
	if err != nil {
		return err
	}
	converter, err := c.buildConverter(cfg)
	if err != nil {
		return err
	}

	manager := workflow.NewManager(cfg, store, fetcher, converter, c.buildLogger(cfg))

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer manager.Stop()

	return fn(ctx, manager)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
