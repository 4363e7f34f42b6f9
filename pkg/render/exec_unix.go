//go:build !windows

package render

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// setProcessGroup puts the render in its own process group so a stop reaches
// the programs a wrapper script started, and makes context cancellation kill
// the whole group.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return signalGroup(cmd.Process, os.Kill)
	}
}

// signalGroup sends sig to the process group led by p.
func signalGroup(p *os.Process, sig os.Signal) error {
	if p == nil {
		return nil
	}
	s, ok := sig.(syscall.Signal)
	if !ok {
		return p.Signal(sig)
	}
	// Setpgid with a zero Pgid makes the group id equal to the leader's pid.
	err := syscall.Kill(-p.Pid, s)
	if errors.Is(err, syscall.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}
