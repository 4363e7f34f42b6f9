package watcher

import (
	"github.com/grovetools/renderwatch/pkg/filter"
	"github.com/sirupsen/logrus"
)

// Handler receives change notifications from a Source. Sources call it from
// their own delivery goroutine, so implementations must be safe for
// concurrent use and must not block for long.
type Handler interface {
	OnPathEvent(path string, action filter.Action)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(path string, action filter.Action)

func (f HandlerFunc) OnPathEvent(path string, action filter.Action) { f(path, action) }

// WatchID identifies one AddWatch registration on a Source.
type WatchID int64

// SourceOptions configures how a Source treats symbolic links.
type SourceOptions struct {
	// FollowSymlinks makes recursive watches descend into symlinked directories.
	FollowSymlinks bool
	// AllowOutOfScopeLinks permits followed links that resolve outside the
	// watched root. Ignored unless FollowSymlinks is set.
	AllowOutOfScopeLinks bool

	Logger *logrus.Entry
}

// Source is a file-notification facility bound to one or more directories.
//
// Only the goroutine that created a Source should call Watch and Close.
type Source interface {
	// AddWatch registers dir and routes its events to h.
	AddWatch(dir string, h Handler, recursive bool) (WatchID, error)
	// Watch starts asynchronous delivery. It does not block.
	Watch()
	// Close stops delivery and releases OS resources. No handler is invoked
	// after Close returns.
	Close() error
}

// SourceFactory builds a Source. Watcher calls it once per watch session.
type SourceFactory func(opts SourceOptions) (Source, error)
