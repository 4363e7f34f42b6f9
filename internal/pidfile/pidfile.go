// Package pidfile keeps a second renderwatch from watching alongside a
// running one.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/grovetools/renderwatch/errors"
	"github.com/grovetools/renderwatch/pkg/paths"
	"github.com/grovetools/renderwatch/pkg/process"
)

// DefaultPath is $XDG_RUNTIME_DIR/renderwatch.pid, falling back to the
// temp directory.
func DefaultPath() string {
	return paths.PidFilePath()
}

// freshWindow is how long an unreadable PID file is assumed to belong to a
// process that created it and has not written its PID yet.
const freshWindow = 2 * time.Second

// Acquire creates path holding the current PID. A file left by a dead process
// is replaced; a live one yields an ALREADY_RUNNING error.
func Acquire(path string) error {
	return acquire(path, os.Getpid(), process.IsProcessAlive)
}

func acquire(path string, self int, alive func(int) bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create pid directory: %w", err)
	}

	// The file is created exclusively so two watchers starting together
	// cannot both win. One retry covers removing a stale file.
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(self))
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			if werr != nil {
				_ = os.Remove(path)
				return fmt.Errorf("failed to write pid file: %w", werr)
			}
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create pid file: %w", err)
		}

		pid, rerr := Read(path)
		switch {
		case rerr == nil && pid == self:
			return nil
		case rerr == nil && alive(pid):
			return errors.AlreadyRunning(pid, path)
		case rerr != nil && !os.IsNotExist(rerr) && recentlyModified(path):
			return errors.AlreadyRunning(0, path)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale pid file: %w", err)
		}
	}
	return errors.New(errors.ErrCodeAlreadyRunning, "another renderwatch is acquiring the pid file").
		WithDetail("pidfile", path)
}

func recentlyModified(path string) bool {
	info, err := os.Stat(path)
	return err == nil && time.Since(info.ModTime()) < freshWindow
}

// Release removes path if it still names this process.
func Release(path string) error {
	pid, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if pid != os.Getpid() {
		return nil
	}
	return os.Remove(path)
}

// Read returns the PID stored in path.
func Read(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(content)))
}

// IsRunning reports whether the process named by path is alive.
func IsRunning(path string) (bool, int, error) {
	pid, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return process.IsProcessAlive(pid), pid, nil
}
