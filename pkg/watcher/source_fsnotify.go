package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/renderwatch/errors"
	"github.com/grovetools/renderwatch/pkg/filter"
	"github.com/sirupsen/logrus"
)

type registration struct {
	id        WatchID
	root      string
	handler   Handler
	recursive bool
}

// FSNotifySource is the fsnotify binding of Source. fsnotify only watches
// single directories, so recursive registrations add a watch for every
// directory under the root and for directories created later.
type FSNotifySource struct {
	opts   SourceOptions
	fsw    *fsnotify.Watcher
	logger *logrus.Entry

	mu      sync.Mutex
	nextID  WatchID
	regs    map[WatchID]*registration
	dirs    map[string]WatchID
	started bool

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewFSNotifySource is the default SourceFactory.
func NewFSNotifySource(opts SourceOptions) (Source, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &FSNotifySource{
		opts:   opts,
		fsw:    fsw,
		logger: logger,
		regs:   make(map[WatchID]*registration),
		dirs:   make(map[string]WatchID),
		done:   make(chan struct{}),
	}, nil
}

// AddWatch registers dir. Directories are walked without following links
// unless FollowSymlinks is set.
func (s *FSNotifySource) AddWatch(dir string, h Handler, recursive bool) (WatchID, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return 0, errors.WatchRegistrationFailed(dir, err)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return 0, errors.WatchDirNotFound(dir)
	}

	s.mu.Lock()
	s.nextID++
	reg := &registration{id: s.nextID, root: root, handler: h, recursive: recursive}
	s.regs[reg.id] = reg
	s.mu.Unlock()

	if !recursive {
		if err := s.addDir(reg, root); err != nil {
			s.dropRegistration(reg.id)
			return 0, errors.WatchRegistrationFailed(dir, err)
		}
		return reg.id, nil
	}

	if _, err := s.addTree(reg, root, nil); err != nil {
		s.dropRegistration(reg.id)
		return 0, errors.WatchRegistrationFailed(dir, err)
	}
	return reg.id, nil
}

// Watch starts the delivery goroutine. Calling it more than once is a no-op.
func (s *FSNotifySource) Watch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.wg.Add(1)
	go s.deliver()
}

// Close stops delivery and waits for the delivery goroutine to exit.
func (s *FSNotifySource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.fsw.Close()
		s.wg.Wait()
	})
	return s.closeErr
}

// WatchedDirs returns the directories currently registered with fsnotify.
func (s *FSNotifySource) WatchedDirs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.dirs))
	for d := range s.dirs {
		out = append(out, d)
	}
	return out
}

func (s *FSNotifySource) deliver() {
	defer s.wg.Done()
	for {
		select {
		case event, ok := <-s.fsw.Events:
			if !ok {
				return
			}
			s.handleEvent(event)
		case err, ok := <-s.fsw.Errors:
			if !ok {
				return
			}
			s.logger.WithError(err).Warn("Notification source error")
		case <-s.done:
			return
		}
	}
}

func (s *FSNotifySource) handleEvent(event fsnotify.Event) {
	select {
	case <-s.done:
		return
	default:
	}

	path := filepath.Clean(event.Name)
	reg := s.registrationFor(path)
	if reg == nil {
		s.logger.Debugf("Dropping event for unregistered path %s", path)
		return
	}

	action := actionFor(event.Op)
	s.logger.Debugf("fsnotify event: %s op=%v action=%s", path, event.Op, action)

	var discovered []string
	switch action {
	case filter.ActionAdd:
		if reg.recursive && s.isWatchableDir(reg, path) {
			var err error
			discovered, err = s.addTree(reg, path, nil)
			if err != nil {
				s.logger.WithError(err).Warnf("Failed to watch new directory %s", path)
			}
		}
	case filter.ActionDelete, filter.ActionMoved:
		s.forgetDir(path)
	}

	reg.handler.OnPathEvent(path, action)

	// Files that landed in a new directory before its watch was in place
	// would otherwise never be reported.
	for _, f := range discovered {
		reg.handler.OnPathEvent(f, filter.ActionAdd)
	}
}

func actionFor(op fsnotify.Op) filter.Action {
	switch {
	case op.Has(fsnotify.Remove):
		return filter.ActionDelete
	case op.Has(fsnotify.Rename):
		return filter.ActionMoved
	case op.Has(fsnotify.Create):
		return filter.ActionAdd
	case op.Has(fsnotify.Write):
		return filter.ActionModified
	default:
		return filter.ActionUnknown
	}
}

func (s *FSNotifySource) registrationFor(path string) *registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.dirs[filepath.Dir(path)]; ok {
		return s.regs[id]
	}
	if id, ok := s.dirs[path]; ok {
		return s.regs[id]
	}
	return nil
}

// addTree watches root and every directory below it. It returns the regular
// files it came across so callers can report them.
func (s *FSNotifySource) addTree(reg *registration, root string, visited map[string]bool) ([]string, error) {
	if visited == nil {
		visited = make(map[string]bool)
	}
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			s.logger.WithError(err).Debugf("Skipping unreadable path %s", path)
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if s.isWatchableDir(reg, path) {
				target, err := filepath.EvalSymlinks(path)
				if err == nil && !visited[target] {
					visited[target] = true
					linked, err := s.addTree(reg, path+string(filepath.Separator), visited)
					if err != nil {
						return err
					}
					files = append(files, linked...)
				}
			}
			return nil
		}
		if !d.IsDir() {
			if path != root {
				files = append(files, path)
			}
			return nil
		}
		return s.addDir(reg, path)
	})
	return files, err
}

func (s *FSNotifySource) addDir(reg *registration, dir string) error {
	dir = filepath.Clean(dir)
	s.mu.Lock()
	if _, ok := s.dirs[dir]; ok {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	s.mu.Lock()
	s.dirs[dir] = reg.id
	s.mu.Unlock()
	return nil
}

// isWatchableDir reports whether path is a directory the registration may
// descend into, applying the symlink options.
func (s *FSNotifySource) isWatchableDir(reg *registration, path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return info.IsDir()
	}
	if !s.opts.FollowSymlinks {
		return false
	}
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false
	}
	tinfo, err := os.Stat(target)
	if err != nil || !tinfo.IsDir() {
		return false
	}
	if s.opts.AllowOutOfScopeLinks {
		return true
	}
	return withinRoot(reg.root, target)
}

func withinRoot(root, path string) bool {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		realRoot = root
	}
	rel, err := filepath.Rel(realRoot, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// forgetDir drops bookkeeping for a removed directory and everything below it.
// fsnotify removes the kernel watches on its own.
func (s *FSNotifySource) forgetDir(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := path + string(filepath.Separator)
	for d := range s.dirs {
		if d == path || strings.HasPrefix(d, prefix) {
			delete(s.dirs, d)
		}
	}
}

func (s *FSNotifySource) dropRegistration(id WatchID) {
	s.mu.Lock()
	var stale []string
	for d, owner := range s.dirs {
		if owner == id {
			stale = append(stale, d)
			delete(s.dirs, d)
		}
	}
	delete(s.regs, id)
	s.mu.Unlock()

	for _, d := range stale {
		_ = s.fsw.Remove(d)
	}
}
