// Package procrun launches external tool processes and exposes their
// combined output as a pull-based line stream. Termination kills the full
// process tree, not just the direct child, because the fetch tool spawns
// its own merge and post-processing helpers.
package procrun
