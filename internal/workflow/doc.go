// Package workflow coordinates the job lifecycle: it creates the durable job
// record, drives the fetch and conversion stages through the tool clients,
// and moves the record across the state machine as each stage finishes,
// fails, or is cancelled. One goroutine owns one job from start to its
// terminal status.
package workflow
