package deps

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"reeler/internal/config"
)

// PathStatus reports whether a pipeline directory is usable.
type PathStatus struct {
	Name      string
	Path      string
	Available bool
	Detail    string
}

// CheckPaths verifies the directories the pipeline writes into exist and are
// writable by the current user.
func CheckPaths(cfg *config.Config) []PathStatus {
	checks := []struct {
		name string
		path string
	}{
		{"download dir", cfg.Paths.DownloadDir},
		{"log dir", cfg.Paths.LogDir},
	}

	results := make([]PathStatus, 0, len(checks))
	for _, check := range checks {
		status := PathStatus{Name: check.name, Path: check.path}
		if check.path == "" {
			status.Detail = "not configured"
			results = append(results, status)
			continue
		}
		info, err := os.Stat(check.path)
		if err != nil {
			status.Detail = fmt.Sprintf("stat: %v", err)
			results = append(results, status)
			continue
		}
		if !info.IsDir() {
			status.Detail = "not a directory"
			results = append(results, status)
			continue
		}
		if err := unix.Access(check.path, unix.W_OK); err != nil {
			status.Detail = "not writable"
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingPaths returns the unusable path entries.
func MissingPaths(statuses []PathStatus) []PathStatus {
	var missing []PathStatus
	for _, status := range statuses {
		if !status.Available {
			missing = append(missing, status)
		}
	}
	return missing
}
