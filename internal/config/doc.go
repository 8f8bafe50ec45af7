// Package config loads, normalizes, and validates the TOML configuration
// used by the reeler CLI and job pipeline. Defaults mirror a working
// single-user setup; Load never requires a config file to exist.
package config
