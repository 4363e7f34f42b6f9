// Package render defines the collaborator that the dispatch loop drives once
// a path leaves a queue, plus two implementations: one that only logs and one
// that runs an external render command.
package render

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Renderer starts and stops renders for a path.
type Renderer interface {
	StartRender(ctx context.Context, path string) error
	StopRender(ctx context.Context, path string) error
}

// Observer receives render lifecycle callbacks.
type Observer interface {
	OnStarted(path string)
	OnProgress(path, line string)
	OnError(path string, err error)
	OnStopped(path string)
}

// Progress holds the latest progress line reported by the active render.
type Progress struct {
	mu   sync.Mutex
	path string
	line string
}

// Set replaces the current progress.
func (p *Progress) Set(path, line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.path = path
	p.line = line
}

// Get returns the path and line last passed to Set.
func (p *Progress) Get() (path, line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.path, p.line
}

// String returns only the progress line.
func (p *Progress) String() string {
	_, line := p.Get()
	return line
}

// Reset clears the progress if it still belongs to path.
func (p *Progress) Reset(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.path == path {
		p.path = ""
		p.line = ""
	}
}

// LogObserver logs every callback and records progress.
type LogObserver struct {
	Logger   *logrus.Entry
	Progress *Progress
}

func (o *LogObserver) OnStarted(path string) {
	o.Logger.WithField("path", path).Info("Started render")
	if o.Progress != nil {
		o.Progress.Set(path, "")
	}
}

func (o *LogObserver) OnProgress(path, line string) {
	o.Logger.WithField("path", path).Debug(line)
	if o.Progress != nil {
		o.Progress.Set(path, line)
	}
}

func (o *LogObserver) OnError(path string, err error) {
	o.Logger.WithField("path", path).WithError(err).Error("Render error")
}

func (o *LogObserver) OnStopped(path string) {
	o.Logger.WithField("path", path).Info("Stopped render")
	if o.Progress != nil {
		o.Progress.Reset(path)
	}
}

// LogRenderer only logs. It is used when no render command is configured.
type LogRenderer struct {
	Logger *logrus.Entry
}

func (r *LogRenderer) StartRender(_ context.Context, path string) error {
	r.Logger.WithField("path", path).Info("START RENDER")
	return nil
}

func (r *LogRenderer) StopRender(_ context.Context, path string) error {
	r.Logger.WithField("path", path).Info("STOP RENDER")
	return nil
}
