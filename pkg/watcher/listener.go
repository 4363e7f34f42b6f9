package watcher

import (
	"path/filepath"
	"sync/atomic"

	"github.com/grovetools/renderwatch/pkg/filter"
	"github.com/grovetools/renderwatch/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// Listener routes events from a Source into its Watcher's queues.
// It belongs to a single watch session and is discarded when that session stops.
type Listener struct {
	owner   *Watcher
	root    string
	logger  *logrus.Entry
	stopped atomic.Bool

	// classify defaults to the owner's current rules.
	classify func(path string, action filter.Action) filter.Decision
}

func newListener(owner *Watcher, root string, logger *logrus.Entry) *Listener {
	l := &Listener{owner: owner, root: root, logger: logger}
	l.classify = func(path string, action filter.Action) filter.Decision {
		return owner.rules(root).Classify(path, action)
	}
	return l
}

// OnPathEvent classifies path and queues it for render or stop-render.
// Once Stop has been called every event is dropped.
func (l *Listener) OnPathEvent(path string, action filter.Action) {
	if l.stopped.Load() {
		return
	}

	path = filepath.Clean(path)
	decision := l.classify(path, action)
	metrics.RecordEvent(action.String(), decision.String())

	switch decision {
	case filter.StopRender:
		// Classification and enqueue are not atomic with the stop flag.
		if l.stopped.Load() {
			return
		}
		l.owner.addToDeleteQueue(path)
		l.logger.WithField("action", action.String()).Infof("STOP RENDER: %s", path)
	case filter.Render:
		if l.stopped.Load() {
			return
		}
		l.owner.addToRenderQueue(path)
		l.logger.WithField("action", action.String()).Infof("RENDER QUEUED: %s", path)
	default:
		l.logger.Debugf("Ignored %s event for %s", action, path)
	}
}

// Stop makes all later callbacks no-ops. It is idempotent and never blocks.
func (l *Listener) Stop() {
	l.stopped.Store(true)
}

// Stopped reports whether Stop has been called.
func (l *Listener) Stopped() bool {
	return l.stopped.Load()
}
