package dispatch

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/renderwatch/pkg/fifoset"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queues struct {
	render *fifoset.Set[string]
	delete *fifoset.Set[string]
}

func newQueues() *queues {
	return &queues{render: fifoset.New[string](), delete: fifoset.New[string]()}
}

func (q *queues) NextFileToRender() (string, bool) { return q.render.Pop() }
func (q *queues) NextFileToDelete() (string, bool) { return q.delete.Pop() }

type call struct {
	op   string
	path string
}

type fakeRenderer struct {
	mu       sync.Mutex
	calls    []call
	startErr error
}

func (f *fakeRenderer) StartRender(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{"start", path})
	return f.startErr
}

func (f *fakeRenderer) StopRender(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{"stop", path})
	return nil
}

func (f *fakeRenderer) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestTickStopsBeforeStarting(t *testing.T) {
	q := newQueues()
	q.render.Push("a.bsz")
	q.render.Push("b.bsz")
	q.delete.Push("x.bsz")
	q.delete.Push("y.bsz")

	r := &fakeRenderer{}
	d := New(q, r, time.Millisecond, quietLogger())

	assert.Equal(t, 3, d.Tick(context.Background()))
	assert.Equal(t, []call{{"stop", "x.bsz"}, {"stop", "y.bsz"}, {"start", "a.bsz"}}, r.snapshot())

	st := d.Status()
	assert.Equal(t, "a.bsz", st.Current)
	assert.Equal(t, 1, st.Started)
	assert.Equal(t, 2, st.Stopped)
	assert.False(t, st.LastTick.IsZero())

	assert.Equal(t, 1, d.Tick(context.Background()))
	assert.Equal(t, "b.bsz", d.Status().Current)
	assert.Equal(t, 0, d.Tick(context.Background()))
}

func TestStopClearsCurrent(t *testing.T) {
	q := newQueues()
	q.render.Push("a.bsz")
	d := New(q, &fakeRenderer{}, time.Millisecond, quietLogger())
	d.Tick(context.Background())
	require.Equal(t, "a.bsz", d.Status().Current)

	q.delete.Push("a.bsz")
	d.Tick(context.Background())
	assert.Equal(t, "", d.Status().Current)
}

func TestRendererErrorsAreCounted(t *testing.T) {
	q := newQueues()
	q.render.Push("a.bsz")
	r := &fakeRenderer{startErr: errors.New("engine unavailable")}
	d := New(q, r, time.Millisecond, quietLogger())

	d.Tick(context.Background())
	st := d.Status()
	assert.Equal(t, 1, st.Failed)
	assert.Equal(t, "engine unavailable", st.LastError)
	assert.Equal(t, "", st.Current)
}

func TestRunDrainsUntilCancelled(t *testing.T) {
	q := newQueues()
	r := &fakeRenderer{}
	d := New(q, r, 5*time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	q.render.Push("a.bsz")
	q.render.Push("b.bsz")
	require.Eventually(t, func() bool { return len(r.snapshot()) == 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTickWithCancelledContext(t *testing.T) {
	q := newQueues()
	q.render.Push("a.bsz")
	q.delete.Push("b.bsz")
	r := &fakeRenderer{}
	d := New(q, r, 0, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, d.Tick(ctx))
	assert.Empty(t, r.snapshot())
}
