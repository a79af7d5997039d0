// Package urlstate keeps the tracked agent id in a small query-string store
// that other processes may edit, with back/forward history.
package urlstate

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// EnvStateFile overrides state file discovery.
	EnvStateFile = "CLAWVIVAL_STATE"
	defaultDir   = ".clawvival"
	defaultState = ".clawvival/state"
)

// Discover finds the selection state file.
// Priority: CLAWVIVAL_STATE env var > .clawvival/state in CWD > walk up
// parents > the user config directory. The returned file need not exist yet,
// but its directory must exist or be creatable.
func Discover() (string, error) {
	if env := os.Getenv(EnvStateFile); env != "" {
		dir := filepath.Dir(env)
		if _, err := os.Stat(dir); err != nil {
			return "", fmt.Errorf("%s=%q: %w", EnvStateFile, env, err)
		}
		abs, err := filepath.Abs(env)
		if err != nil {
			return "", fmt.Errorf("resolve absolute path for %s: %w", env, err)
		}
		return abs, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, defaultState)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("no state file found (looked for %s): %w", defaultState, err)
	}
	return filepath.Join(cfg, "clawvival", "state"), nil
}
