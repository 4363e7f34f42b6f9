// Package paths provides XDG-compliant path resolution for renderwatch.
//
// Resolution order:
// 1. RENDERWATCH_HOME (portable root) → $RENDERWATCH_HOME/{config,state,run}
// 2. XDG env vars → $XDG_*_HOME/renderwatch
// 3. Platform defaults → ~/.config/renderwatch, ~/.local/state/renderwatch
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const appName = "renderwatch"

func getConfigHome() string {
	if home := os.Getenv("RENDERWATCH_HOME"); home != "" {
		return filepath.Join(home, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

func getStateHome() string {
	if home := os.Getenv("RENDERWATCH_HOME"); home != "" {
		return filepath.Join(home, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// ConfigDir returns the directory of the global renderwatch.yml.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// StateDir returns the directory for logs.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// RuntimeDir holds the PID file. Without XDG_RUNTIME_DIR it is the
// temp directory.
func RuntimeDir() string {
	if home := os.Getenv("RENDERWATCH_HOME"); home != "" {
		return filepath.Join(home, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}

// GlobalConfigFile is ConfigDir()/renderwatch.yml, or "" when no home is known.
func GlobalConfigFile() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, appName+".yml")
}

// LogFile is the default file sink shared by all components.
func LogFile() string {
	dir := StateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, appName+".log")
}

// PidFilePath is the default PID file of `renderwatch watch`.
func PidFilePath() string {
	return filepath.Join(RuntimeDir(), appName+".pid")
}

// Expand expands a leading ~ and environment variables in path and makes
// it absolute.
func Expand(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not get user home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	path = os.ExpandEnv(path)

	return filepath.Abs(path)
}
