// Package dispatch drains a watcher's queues and drives a render.Renderer.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/grovetools/renderwatch/pkg/metrics"
	"github.com/grovetools/renderwatch/pkg/render"
	"github.com/sirupsen/logrus"
)

const defaultInterval = 250 * time.Millisecond

// Queues is the polling side of a watcher.
type Queues interface {
	NextFileToRender() (string, bool)
	NextFileToDelete() (string, bool)
}

// Status is a point-in-time view of the dispatcher.
type Status struct {
	Current   string
	Started   int
	Stopped   int
	Failed    int
	LastError string
	LastTick  time.Time
}

// Dispatcher polls Queues on a fixed interval. Each tick it stops every path
// in the delete queue, then starts at most one render.
type Dispatcher struct {
	queues   Queues
	renderer render.Renderer
	interval time.Duration
	logger   *logrus.Entry

	mu     sync.Mutex
	status Status
}

// New returns a Dispatcher. A non-positive interval selects 250ms.
func New(queues Queues, renderer render.Renderer, interval time.Duration, logger *logrus.Entry) *Dispatcher {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Dispatcher{
		queues:   queues,
		renderer: renderer,
		interval: interval,
		logger:   logger,
	}
}

// Run ticks until ctx is cancelled. Renderer errors are logged and counted
// but never end the loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		d.Tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick performs one polling pass and returns how many paths it handed to the renderer.
func (d *Dispatcher) Tick(ctx context.Context) int {
	handled := 0

	for {
		if ctx.Err() != nil {
			return handled
		}
		path, ok := d.queues.NextFileToDelete()
		if !ok {
			break
		}
		handled++
		err := d.renderer.StopRender(ctx, path)
		metrics.RecordDispatch("stop", err)
		d.record(func(s *Status) {
			if err != nil {
				s.Failed++
				s.LastError = err.Error()
				return
			}
			s.Stopped++
			if s.Current == path {
				s.Current = ""
			}
		})
		if err != nil {
			d.logger.WithError(err).WithField("path", path).Error("Failed to stop render")
		}
	}

	if ctx.Err() == nil {
		if path, ok := d.queues.NextFileToRender(); ok {
			handled++
			err := d.renderer.StartRender(ctx, path)
			metrics.RecordDispatch("start", err)
			d.record(func(s *Status) {
				if err != nil {
					s.Failed++
					s.LastError = err.Error()
					return
				}
				s.Started++
				s.Current = path
			})
			if err != nil {
				d.logger.WithError(err).WithField("path", path).Error("Failed to start render")
			}
		}
	}

	d.record(func(s *Status) { s.LastTick = time.Now() })
	return handled
}

// Status returns a copy of the current status.
func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *Dispatcher) record(fn func(*Status)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.status)
}
