// Package history persists job records in SQLite. The store is the sole
// source of truth for what happened to a job: every attempt gets a record
// at download start and the record is updated as the job moves through the
// lifecycle state machine.
package history
