// Package logging constructs slog loggers for the CLI and job pipeline.
// It provides a console handler for interactive use, a JSON handler for
// machine-readable logs, attribute helpers, and context-derived fields so
// every record carries the owning job id and stage.
package logging
