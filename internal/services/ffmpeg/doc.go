// Package ffmpeg wraps the ffmpeg and ffprobe CLIs for the conversion stage.
// It probes container metadata, detects usable hardware encoders, drives the
// transcode with progress scraped from the tool's time= counter, and falls
// back down the encoder ladder when a hardware session cannot be opened.
package ffmpeg
