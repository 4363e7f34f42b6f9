package render

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureObserver struct {
	mu       sync.Mutex
	started  []string
	progress []string
	stopped  []string
	errs     int
}

func (c *captureObserver) OnStarted(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = append(c.started, path)
}

func (c *captureObserver) OnProgress(path, line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = append(c.progress, line)
}

func (c *captureObserver) OnError(string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs++
}

func (c *captureObserver) OnStopped(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = append(c.stopped, path)
}

func (c *captureObserver) snapshot() (started, progress, stopped []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.started...), append([]string(nil), c.progress...), append([]string(nil), c.stopped...)
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestProgress(t *testing.T) {
	var p Progress
	assert.Equal(t, "", p.String())

	p.Set("a.bsz", "10%")
	p.Set("a.bsz", "20%")
	path, line := p.Get()
	assert.Equal(t, "a.bsz", path)
	assert.Equal(t, "20%", line)

	p.Reset("other.bsz")
	assert.Equal(t, "20%", p.String(), "reset for another path is ignored")
	p.Reset("a.bsz")
	assert.Equal(t, "", p.String())
}

func TestProgressConcurrentAccess(t *testing.T) {
	var p Progress
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				p.Set("a", "line")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = p.String()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, "line", p.String())
}

func TestLogObserverTracksProgress(t *testing.T) {
	p := &Progress{}
	o := &LogObserver{Logger: quietLogger(), Progress: p}

	o.OnStarted("a.bsz")
	o.OnProgress("a.bsz", "pass 1: 42%")
	assert.Equal(t, "pass 1: 42%", p.String())
	o.OnError("a.bsz", assert.AnError)
	o.OnStopped("a.bsz")
	assert.Equal(t, "", p.String())
}

func TestLogRenderer(t *testing.T) {
	r := &LogRenderer{Logger: quietLogger()}
	assert.NoError(t, r.StartRender(context.Background(), "a.bsz"))
	assert.NoError(t, r.StopRender(context.Background(), "a.bsz"))
}

func TestNewExecRendererRejectsEmptyCommand(t *testing.T) {
	_, err := NewExecRenderer(nil, nil, nil)
	assert.Error(t, err)
	_, err = NewExecRenderer([]string{""}, nil, nil)
	assert.Error(t, err)
}

func TestParseSignal(t *testing.T) {
	sig, err := ParseSignal("")
	require.NoError(t, err)
	assert.Equal(t, os.Interrupt, sig)

	sig, err = ParseSignal("kill")
	require.NoError(t, err)
	assert.Equal(t, os.Kill, sig)

	_, err = ParseSignal("hup-please")
	assert.Error(t, err)
}

func TestExecRendererArgs(t *testing.T) {
	r, err := NewExecRenderer([]string{"bella_cli", "-i:{path}", "--out={path}.png"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"bella_cli", "-i:/w/a.bsz", "--out=/w/a.bsz.png"}, r.Args("/w/a.bsz"))
}

func TestExecRendererStreamsProgress(t *testing.T) {
	requireShell(t)
	obs := &captureObserver{}
	r, err := NewExecRenderer([]string{"sh", "-c", "echo rendering {path}; echo 100%"}, nil, obs)
	require.NoError(t, err)

	require.NoError(t, r.StartRender(context.Background(), "a.bsz"))
	r.Wait()

	started, progress, stopped := obs.snapshot()
	assert.Equal(t, []string{"a.bsz"}, started)
	assert.Equal(t, []string{"rendering a.bsz", "100%"}, progress)
	assert.Equal(t, []string{"a.bsz"}, stopped)

	_, active := r.Active()
	assert.False(t, active)
}

func TestExecRendererStopAndReplace(t *testing.T) {
	requireShell(t)
	obs := &captureObserver{}
	r, err := NewExecRenderer([]string{"sh", "-c", "exec sleep 30"}, os.Kill, obs)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, r.StartRender(ctx, "a.bsz"))
	path, active := r.Active()
	require.True(t, active)
	assert.Equal(t, "a.bsz", path)

	// A stop for another path leaves the active render alone.
	require.NoError(t, r.StopRender(ctx, "other.bsz"))
	_, active = r.Active()
	assert.True(t, active)

	// Starting a new render replaces the active one.
	require.NoError(t, r.StartRender(ctx, "b.bsz"))
	path, _ = r.Active()
	assert.Equal(t, "b.bsz", path)

	done := make(chan struct{})
	go func() {
		_ = r.StopRender(ctx, "b.bsz")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("StopRender did not return")
	}

	_, _, stopped := obs.snapshot()
	assert.Equal(t, []string{"a.bsz", "b.bsz"}, stopped)
}

func (c *captureObserver) errCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errs
}

// waitOrFail runs r.Wait with a deadline.
func waitOrFail(t *testing.T, r *ExecRenderer, what string) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_, active := r.Active()
		t.Fatalf("%s did not finish (active=%v)", what, active)
	}
}

func TestScanProgressLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"newlines", "a\nb\n", []string{"a", "b"}},
		{"carriage returns", "10%\r20%\r30%\n", []string{"10%", "20%", "30%"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"trailing partial", "a\nb", []string{"a", "b"}},
		{"trailing cr", "a\r", []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := bufio.NewScanner(strings.NewReader(tt.input))
			scanner.Split(scanProgressLines)
			var got []string
			for scanner.Scan() {
				got = append(got, scanner.Text())
			}
			require.NoError(t, scanner.Err())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecRendererLongProgressLine(t *testing.T) {
	requireShell(t)
	obs := &captureObserver{}
	r, err := NewExecRenderer([]string{"sh", "-c", "head -c 200000 /dev/zero | tr '\\0' x; echo; echo done"}, nil, obs)
	require.NoError(t, err)

	require.NoError(t, r.StartRender(context.Background(), "a.bsz"))
	waitOrFail(t, r, "render with a 200KB progress line")

	_, progress, stopped := obs.snapshot()
	require.NotEmpty(t, progress)
	assert.Equal(t, "done", progress[len(progress)-1])
	assert.Equal(t, []string{"a.bsz"}, stopped)
	assert.Zero(t, obs.errCount())
}

func TestExecRendererDrainsOversizedOutput(t *testing.T) {
	requireShell(t)
	old := maxProgressLine
	maxProgressLine = 1024
	t.Cleanup(func() { maxProgressLine = old })

	obs := &captureObserver{}
	r, err := NewExecRenderer([]string{"sh", "-c", "head -c 200000 /dev/zero | tr '\\0' x; echo; echo done"}, nil, obs)
	require.NoError(t, err)

	require.NoError(t, r.StartRender(context.Background(), "a.bsz"))
	waitOrFail(t, r, "render with output over the line limit")

	_, _, stopped := obs.snapshot()
	assert.Equal(t, []string{"a.bsz"}, stopped)
	assert.Equal(t, 1, obs.errCount(), "the scan error is reported once")
}

func TestExecRendererStopsWrapperScript(t *testing.T) {
	requireShell(t)
	obs := &captureObserver{}
	r, err := NewExecRenderer([]string{"sh", "-c", "sleep 20; echo finished"}, nil, obs)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, r.StartRender(ctx, "a.bsz"))

	done := make(chan struct{})
	go func() {
		_ = r.StopRender(ctx, "a.bsz")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("StopRender did not return while the wrapped program was running")
	}

	_, progress, stopped := obs.snapshot()
	assert.NotContains(t, progress, "finished")
	assert.Equal(t, []string{"a.bsz"}, stopped)
}

func TestExecRendererKillsAfterTimeout(t *testing.T) {
	requireShell(t)
	obs := &captureObserver{}
	r, err := NewExecRenderer([]string{"sh", "-c", "trap '' INT; sleep 20"}, nil, obs)
	require.NoError(t, err)
	r.KillTimeout = 200 * time.Millisecond
	ctx := context.Background()

	require.NoError(t, r.StartRender(ctx, "a.bsz"))

	start := time.Now()
	done := make(chan struct{})
	go func() {
		_ = r.StopRender(ctx, "a.bsz")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("StopRender did not escalate to a kill")
	}
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)

	_, active := r.Active()
	assert.False(t, active)
}
