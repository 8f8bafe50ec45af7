// Package services defines the shared error taxonomy and context keys used
// across orchestrator components. Errors produced at external-tool boundaries
// are wrapped with a sentinel marker so callers can classify failures with
// errors.Is without parsing message text.
package services
