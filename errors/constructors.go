package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *RenderwatchError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *RenderwatchError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// WatchDirNotFound reports a watch target that does not exist or is not a directory
func WatchDirNotFound(dir string) *RenderwatchError {
	return New(ErrCodeWatchDirNotFound, fmt.Sprintf("directory does not exist: %s", dir)).
		WithDetail("dir", dir)
}

// WatchRegistrationFailed wraps a notification source failure for a directory
func WatchRegistrationFailed(dir string, err error) *RenderwatchError {
	return Wrap(err, ErrCodeWatchRegistrationFailed, fmt.Sprintf("error trying to watch directory: %s", dir)).
		WithDetail("dir", dir)
}

// RenderFailed wraps a failure reported by the render collaborator
func RenderFailed(op, path string, err error) *RenderwatchError {
	return Wrap(err, ErrCodeRenderFailed, fmt.Sprintf("%s failed for %s", op, path)).
		WithDetail("op", op).
		WithDetail("path", path)
}

// AlreadyRunning reports another live instance holding the pid file
func AlreadyRunning(pid int, pidfile string) *RenderwatchError {
	return New(ErrCodeAlreadyRunning, fmt.Sprintf("renderwatch already running with PID %d", pid)).
		WithDetail("pid", pid).
		WithDetail("pidfile", pidfile)
}
