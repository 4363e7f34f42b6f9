// Package watcher monitors a directory tree and turns raw file-system events
// into two deduplicated FIFO queues: paths to render and paths to stop
// rendering. A consumer polls the queues with HasFilesToRender,
// NextFileToRender and friends.
//
// A Watcher has two states. StartWatching spawns a background goroutine that
// owns the notification Source for the session; StopWatching signals it, waits
// for it to exit and discards the session's Listener. Problems found inside the
// background goroutine (missing directory, failed registration) are logged and
// end the session early, but the Watcher stays in StateWatching until it is
// stopped.
package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/grovetools/renderwatch/errors"
	"github.com/grovetools/renderwatch/logging"
	"github.com/grovetools/renderwatch/pkg/fifoset"
	"github.com/grovetools/renderwatch/pkg/filter"
	"github.com/grovetools/renderwatch/pkg/metrics"
	"github.com/sirupsen/logrus"
)

const defaultPollInterval = 500 * time.Millisecond

var (
	// DefaultExtensions are watched when Options.Extensions is nil.
	DefaultExtensions = []string{"bsz", "zip"}
	// DefaultIgnoreDirs are skipped when Options.IgnoreDirs is nil.
	DefaultIgnoreDirs = []string{"download"}
)

// State is the lifecycle state of a Watcher.
type State int32

const (
	StateStopped State = iota
	StateWatching
)

func (s State) String() string {
	if s == StateWatching {
		return "watching"
	}
	return "stopped"
}

// Options configures a Watcher. Zero values select the defaults.
type Options struct {
	Extensions     []string
	IgnoreDirs     []string
	IgnorePatterns []string

	// PollInterval bounds how long StopWatching waits for the background
	// goroutine to notice the stop request.
	PollInterval time.Duration

	RenderQueue *fifoset.Set[string]
	DeleteQueue *fifoset.Set[string]

	NewSource SourceFactory
	Logger    *logrus.Entry
}

// Watcher owns the render and delete queues, the filter configuration and
// the background goroutine of the current watch session.
type Watcher struct {
	extMu      sync.RWMutex
	extensions filter.Set

	dirMu       sync.RWMutex
	ignoredDirs filter.Set

	patterns *filter.Patterns

	renderQueue *fifoset.Set[string]
	deleteQueue *fifoset.Set[string]

	newSource    SourceFactory
	pollInterval time.Duration
	logger       *logrus.Entry

	// lifecycle serialises StartWatching and StopWatching.
	lifecycle     sync.Mutex
	listener      *Listener
	done          chan struct{}
	state         atomic.Int32
	watchPath     atomic.Pointer[string]
	stopRequested atomic.Bool
	sourceActive  atomic.Bool
}

// New creates a stopped Watcher.
func New(opts Options) (*Watcher, error) {
	exts := opts.Extensions
	if exts == nil {
		exts = DefaultExtensions
	}
	dirs := opts.IgnoreDirs
	if dirs == nil {
		dirs = DefaultIgnoreDirs
	}

	patterns, err := filter.CompilePatterns(opts.IgnorePatterns)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid ignore pattern").
			WithDetail("patterns", opts.IgnorePatterns)
	}

	w := &Watcher{
		extensions:   make(filter.Set, len(exts)),
		ignoredDirs:  filter.NewSet(dirs...),
		patterns:     patterns,
		renderQueue:  opts.RenderQueue,
		deleteQueue:  opts.DeleteQueue,
		newSource:    opts.NewSource,
		pollInterval: opts.PollInterval,
		logger:       opts.Logger,
	}
	for _, ext := range exts {
		w.extensions[filter.NormalizeExtension(ext)] = struct{}{}
	}
	if w.renderQueue == nil {
		w.renderQueue = fifoset.New[string]()
	}
	if w.deleteQueue == nil {
		w.deleteQueue = fifoset.New[string]()
	}
	if w.newSource == nil {
		w.newSource = NewFSNotifySource
	}
	if w.pollInterval <= 0 {
		w.pollInterval = defaultPollInterval
	}
	if w.logger == nil {
		w.logger = logging.NewLogger("watcher")
	}
	return w, nil
}

// StartWatching begins a new watch session on directory, stopping the
// current one first. It returns before the directory is registered; a
// missing directory is only reported in the log.
func (w *Watcher) StartWatching(directory string) error {
	if directory == "" {
		return errors.New(errors.ErrCodeInvalidInput, "watch directory must not be empty")
	}

	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	if State(w.state.Load()) == StateWatching {
		w.stopLocked()
	}

	dir := filepath.Clean(directory)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	logger := w.logger.WithFields(logrus.Fields{
		"session": uuid.NewString(),
		"dir":     dir,
	})

	w.stopRequested.Store(false)
	w.watchPath.Store(&dir)
	w.listener = newListener(w, dir, logger)
	w.done = make(chan struct{})

	go w.run(dir, w.listener, w.done, logger)

	w.state.Store(int32(StateWatching))
	return nil
}

// StopWatching ends the current session and blocks until its background
// goroutine has exited. It is a no-op when already stopped.
//
// StopWatching must not be called from a Handler callback: the background
// goroutine waits for in-flight callbacks while closing the Source.
func (w *Watcher) StopWatching() {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()
	w.stopLocked()
}

// Close is StopWatching.
func (w *Watcher) Close() error {
	w.StopWatching()
	return nil
}

func (w *Watcher) stopLocked() {
	if State(w.state.Load()) == StateStopped {
		return
	}

	w.stopRequested.Store(true)
	if w.listener != nil {
		w.listener.Stop()
	}
	if w.done != nil {
		<-w.done
	}

	w.listener = nil
	w.done = nil
	w.state.Store(int32(StateStopped))
	w.logger.WithField("dir", w.WatchPath()).Info("Stopped watching")
}

// run is the body of the background goroutine for one session.
func (w *Watcher) run(dir string, listener *Listener, done chan struct{}, logger *logrus.Entry) {
	defer close(done)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		logger.WithError(errors.WatchDirNotFound(dir)).Errorf("Error: Directory does not exist: %s", dir)
		metrics.RecordSession("failed")
		return
	}

	source, err := w.newSource(SourceOptions{
		FollowSymlinks:       false,
		AllowOutOfScopeLinks: false,
		Logger:               logger,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to create notification source")
		metrics.RecordSession("failed")
		return
	}
	defer func() {
		if err := source.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close notification source")
		}
	}()

	id, err := source.AddWatch(dir, listener, true)
	if err != nil {
		logger.WithError(err).Errorf("Error trying to watch directory: %s", dir)
		metrics.RecordSession("failed")
		return
	}

	source.Watch()
	w.sourceActive.Store(true)
	metrics.SetSourceActive(true)
	metrics.RecordSession("started")
	defer func() {
		w.sourceActive.Store(false)
		metrics.SetSourceActive(false)
	}()
	logger.WithField("watch_id", id).Infof("Watching directory: %s", dir)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for !w.stopRequested.Load() {
		<-ticker.C
	}
}

// State returns the current lifecycle state without blocking.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

// WatchPath returns the directory of the most recent StartWatching call.
func (w *Watcher) WatchPath() string {
	if p := w.watchPath.Load(); p != nil {
		return *p
	}
	return ""
}

func (w *Watcher) HasFilesToRender() bool {
	return !w.renderQueue.IsEmpty()
}

func (w *Watcher) HasFilesToDelete() bool {
	return !w.deleteQueue.IsEmpty()
}

// NextFileToRender pops the oldest queued render path.
func (w *Watcher) NextFileToRender() (string, bool) {
	path, ok := w.renderQueue.Pop()
	if ok {
		metrics.SetQueueDepth(metrics.QueueRender, w.renderQueue.Len())
	}
	return path, ok
}

// NextFileToDelete pops the oldest queued stop-render path.
func (w *Watcher) NextFileToDelete() (string, bool) {
	path, ok := w.deleteQueue.Pop()
	if ok {
		metrics.SetQueueDepth(metrics.QueueDelete, w.deleteQueue.Len())
	}
	return path, ok
}

// PendingRender returns the render queue, oldest first.
func (w *Watcher) PendingRender() []string {
	return w.renderQueue.Keys()
}

// PendingDelete returns the delete queue, oldest first.
func (w *Watcher) PendingDelete() []string {
	return w.deleteQueue.Keys()
}

func (w *Watcher) addToRenderQueue(path string) {
	inserted := w.renderQueue.Push(path)
	metrics.RecordPush(metrics.QueueRender, inserted, w.renderQueue.Len())
}

func (w *Watcher) addToDeleteQueue(path string) {
	inserted := w.deleteQueue.Push(path)
	metrics.RecordPush(metrics.QueueDelete, inserted, w.deleteQueue.Len())
}

// AddExtension starts watching files with ext. A leading dot is ignored.
func (w *Watcher) AddExtension(ext string) {
	ext = filter.NormalizeExtension(ext)
	w.extMu.Lock()
	defer w.extMu.Unlock()
	if w.extensions.Has(ext) {
		return
	}
	w.extensions = cloneWith(w.extensions, ext)
}

// RemoveExtension stops watching files with ext.
func (w *Watcher) RemoveExtension(ext string) {
	ext = filter.NormalizeExtension(ext)
	w.extMu.Lock()
	defer w.extMu.Unlock()
	if !w.extensions.Has(ext) {
		return
	}
	w.extensions = cloneWithout(w.extensions, ext)
}

// AddIgnoreDirectory drops events from files whose parent directory is named dir.
func (w *Watcher) AddIgnoreDirectory(dir string) {
	w.dirMu.Lock()
	defer w.dirMu.Unlock()
	if w.ignoredDirs.Has(dir) {
		return
	}
	w.ignoredDirs = cloneWith(w.ignoredDirs, dir)
}

func (w *Watcher) RemoveIgnoreDirectory(dir string) {
	w.dirMu.Lock()
	defer w.dirMu.Unlock()
	if !w.ignoredDirs.Has(dir) {
		return
	}
	w.ignoredDirs = cloneWithout(w.ignoredDirs, dir)
}

// Extensions returns the watched extensions, sorted.
func (w *Watcher) Extensions() []string {
	w.extMu.RLock()
	defer w.extMu.RUnlock()
	return w.extensions.Sorted()
}

// IgnoredDirectories returns the ignored directory names, sorted.
func (w *Watcher) IgnoredDirectories() []string {
	w.dirMu.RLock()
	defer w.dirMu.RUnlock()
	return w.ignoredDirs.Sorted()
}

// rules snapshots the filter configuration. The sets are replaced rather
// than mutated, so the returned maps are never written to afterwards.
func (w *Watcher) rules(root string) filter.Rules {
	w.extMu.RLock()
	exts := w.extensions
	w.extMu.RUnlock()

	w.dirMu.RLock()
	dirs := w.ignoredDirs
	w.dirMu.RUnlock()

	return filter.Rules{
		Extensions:  exts,
		IgnoredDirs: dirs,
		Patterns:    w.patterns,
		Root:        root,
	}
}

func cloneWith(s filter.Set, item string) filter.Set {
	out := make(filter.Set, len(s)+1)
	for k := range s {
		out[k] = struct{}{}
	}
	out[item] = struct{}{}
	return out
}

func cloneWithout(s filter.Set, item string) filter.Set {
	out := make(filter.Set, len(s))
	for k := range s {
		if k != item {
			out[k] = struct{}{}
		}
	}
	return out
}
