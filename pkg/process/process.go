// Package process inspects and signals other processes by PID.
package process

import (
	"os"
	"syscall"
	"time"
)

// IsProcessAlive reports whether a process with the given PID exists.
// Signal 0 probes without delivering anything; EPERM still means alive.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = p.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}

// Signal delivers sig to pid.
func Signal(pid int, sig os.Signal) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Signal(sig)
}

// WaitExit polls until pid is gone or timeout elapses. It reports whether
// the process exited.
func WaitExit(pid int, timeout, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !IsProcessAlive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(interval)
	}
}
