package render

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/grovetools/renderwatch/errors"
)

// PathPlaceholder is replaced by the file path in each command argument.
const PathPlaceholder = "{path}"

const defaultKillTimeout = 10 * time.Second

// maxProgressLine bounds a single progress line. Longer output is drained
// without being reported.
var maxProgressLine = 1 << 20

// ExecRenderer runs an external command per render, one at a time.
// Starting a render while another is active stops the active one first.
type ExecRenderer struct {
	command    []string
	stopSignal os.Signal
	observer   Observer

	// KillTimeout is how long a stopped render may take to exit before its
	// process group is killed.
	KillTimeout time.Duration

	mu     sync.Mutex
	active *job
}

type job struct {
	path string
	cmd  *exec.Cmd
	done chan struct{}
}

// NewExecRenderer validates command and returns a renderer for it.
// stopSignal defaults to os.Interrupt.
func NewExecRenderer(command []string, stopSignal os.Signal, observer Observer) (*ExecRenderer, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "render command must not be empty")
	}
	if stopSignal == nil {
		stopSignal = os.Interrupt
	}
	return &ExecRenderer{
		command:     append([]string(nil), command...),
		stopSignal:  stopSignal,
		observer:    observer,
		KillTimeout: defaultKillTimeout,
	}, nil
}

// ParseSignal maps a config value to a signal. Empty means interrupt.
func ParseSignal(name string) (os.Signal, error) {
	switch strings.ToLower(name) {
	case "", "interrupt", "int", "sigint":
		return os.Interrupt, nil
	case "kill", "sigkill":
		return os.Kill, nil
	case "term", "sigterm":
		return syscall.SIGTERM, nil
	default:
		return nil, fmt.Errorf("unknown stop signal %q", name)
	}
}

// Args returns the command line for path.
func (r *ExecRenderer) Args(path string) []string {
	args := make([]string, len(r.command))
	for i, a := range r.command {
		args[i] = strings.ReplaceAll(a, PathPlaceholder, path)
	}
	return args
}

// StartRender launches the command for path. It returns once the process
// has started; output is streamed to the observer in the background.
func (r *ExecRenderer) StartRender(ctx context.Context, path string) error {
	r.mu.Lock()
	prev := r.active
	r.mu.Unlock()
	if prev != nil {
		r.terminate(prev)
	}

	args := r.Args(path)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	setProcessGroup(cmd)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.RenderFailed("start", path, err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return errors.RenderFailed("start", path, err)
	}

	j := &job{path: path, cmd: cmd, done: make(chan struct{})}
	r.mu.Lock()
	r.active = j
	r.mu.Unlock()

	r.notify(func(o Observer) { o.OnStarted(path) })
	go r.wait(j, stdout)
	return nil
}

// StopRender signals the render for path if it is the active one.
func (r *ExecRenderer) StopRender(_ context.Context, path string) error {
	r.mu.Lock()
	j := r.active
	r.mu.Unlock()
	if j == nil || j.path != path {
		return nil
	}
	r.terminate(j)
	return nil
}

// Active returns the path of the running render, if any.
func (r *ExecRenderer) Active() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return "", false
	}
	return r.active.path, true
}

// Wait blocks until the active render, if any, exits.
func (r *ExecRenderer) Wait() {
	r.mu.Lock()
	j := r.active
	r.mu.Unlock()
	if j != nil {
		<-j.done
	}
}

// terminate signals the render's process group and waits for it to exit,
// escalating to a kill after KillTimeout.
func (r *ExecRenderer) terminate(j *job) {
	if err := signalGroup(j.cmd.Process, r.stopSignal); err != nil && err != os.ErrProcessDone {
		r.notify(func(o Observer) { o.OnError(j.path, err) })
	}

	timeout := r.KillTimeout
	if timeout <= 0 {
		timeout = defaultKillTimeout
	}
	select {
	case <-j.done:
		return
	case <-time.After(timeout):
	}

	if err := signalGroup(j.cmd.Process, os.Kill); err != nil && err != os.ErrProcessDone {
		r.notify(func(o Observer) { o.OnError(j.path, err) })
	}
	<-j.done
}

func (r *ExecRenderer) wait(j *job, stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxProgressLine)
	scanner.Split(scanProgressLines)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			r.notify(func(o Observer) { o.OnProgress(j.path, line) })
		}
	}
	if err := scanner.Err(); err != nil {
		r.notify(func(o Observer) { o.OnError(j.path, fmt.Errorf("reading render output: %w", err)) })
		// Keep the pipe drained so the render cannot block on a full buffer.
		_, _ = io.Copy(io.Discard, stdout)
	}

	err := j.cmd.Wait()
	r.mu.Lock()
	if r.active == j {
		r.active = nil
	}
	r.mu.Unlock()

	if err != nil {
		r.notify(func(o Observer) { o.OnError(j.path, errors.RenderFailed("render", j.path, err)) })
	}
	r.notify(func(o Observer) { o.OnStopped(j.path) })
	close(j.done)
}

func (r *ExecRenderer) notify(fn func(Observer)) {
	if r.observer != nil {
		fn(r.observer)
	}
}

// scanProgressLines splits on \n, \r\n and a bare \r, so progress bars that
// redraw in place are reported once per redraw.
func scanProgressLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
			} else if !atEOF {
				// Need one more byte to tell \r\n from \r.
				return 0, nil, nil
			}
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
