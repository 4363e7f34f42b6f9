// Package reload applies edits of renderwatch.yml to a running watcher.
package reload

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/renderwatch/config"
	"github.com/grovetools/renderwatch/pkg/filter"
	"github.com/grovetools/renderwatch/pkg/watcher"
	"github.com/sirupsen/logrus"
)

const defaultDebounce = 200 * time.Millisecond

// Target is the runtime-mutable filter configuration of a watcher.
type Target interface {
	Extensions() []string
	IgnoredDirectories() []string
	AddExtension(ext string)
	RemoveExtension(ext string)
	AddIgnoreDirectory(dir string)
	RemoveIgnoreDirectory(dir string)
}

// LoadFunc produces the configuration to apply after a file changed.
type LoadFunc func() (*config.Config, error)

// Changes lists what Apply did.
type Changes struct {
	AddedExtensions   []string
	RemovedExtensions []string
	AddedDirs         []string
	RemovedDirs       []string
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c.AddedExtensions)+len(c.RemovedExtensions)+len(c.AddedDirs)+len(c.RemovedDirs) == 0
}

// Apply makes target's extensions and ignored directories equal to cfg's.
// Unset lists mean the watcher defaults.
func Apply(target Target, cfg *config.Config) Changes {
	wantExt := cfg.Watch.Extensions
	if wantExt == nil {
		wantExt = watcher.DefaultExtensions
	}
	normalized := make([]string, 0, len(wantExt))
	for _, ext := range wantExt {
		normalized = append(normalized, filter.NormalizeExtension(ext))
	}
	wantDirs := cfg.Watch.IgnoreDirs
	if wantDirs == nil {
		wantDirs = watcher.DefaultIgnoreDirs
	}

	var ch Changes
	ch.AddedExtensions, ch.RemovedExtensions = diff(target.Extensions(), normalized)
	ch.AddedDirs, ch.RemovedDirs = diff(target.IgnoredDirectories(), wantDirs)

	for _, ext := range ch.AddedExtensions {
		target.AddExtension(ext)
	}
	for _, ext := range ch.RemovedExtensions {
		target.RemoveExtension(ext)
	}
	for _, dir := range ch.AddedDirs {
		target.AddIgnoreDirectory(dir)
	}
	for _, dir := range ch.RemovedDirs {
		target.RemoveIgnoreDirectory(dir)
	}
	return ch
}

func diff(have, want []string) (added, removed []string) {
	haveSet := filter.NewSet(have...)
	wantSet := filter.NewSet(want...)
	for k := range wantSet {
		if !haveSet.Has(k) {
			added = append(added, k)
		}
	}
	for k := range haveSet {
		if !wantSet.Has(k) {
			removed = append(removed, k)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

// ConfigWatcher watches configuration files and re-applies them to a Target.
// Writes are debounced so an editor's save burst triggers a single reload.
type ConfigWatcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]struct{}
	load     LoadFunc
	target   Target
	debounce time.Duration
	logger   *logrus.Entry

	mu      sync.Mutex
	timer   *time.Timer
	pending string

	onReload func(Changes)
}

// NewConfigWatcher watches files (missing ones included, via their parent
// directory). Directories that do not exist are skipped.
func NewConfigWatcher(files []string, load LoadFunc, target Target, debounce time.Duration, logger *logrus.Entry) (*ConfigWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	w := &ConfigWatcher{
		watcher:  fw,
		files:    make(map[string]struct{}),
		load:     load,
		target:   target,
		debounce: debounce,
		logger:   logger,
	}

	watchedDirs := make(map[string]bool)
	for _, f := range files {
		if f == "" {
			continue
		}
		abs, err := filepath.Abs(f)
		if err != nil {
			continue
		}
		w.files[abs] = struct{}{}
		// Editors and symlinked dotfiles replace the file; watch the directory.
		if resolved, err := filepath.EvalSymlinks(abs); err == nil && resolved != abs {
			w.files[resolved] = struct{}{}
			if dir := filepath.Dir(resolved); !watchedDirs[dir] {
				watchedDirs[dir] = w.addDir(dir)
			}
		}
		if dir := filepath.Dir(abs); !watchedDirs[dir] {
			watchedDirs[dir] = w.addDir(dir)
		}
	}

	return w, nil
}

func (w *ConfigWatcher) addDir(dir string) bool {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return false
	}
	if err := w.watcher.Add(dir); err != nil {
		w.logger.WithError(err).Warnf("Failed to watch config directory %s", dir)
		return false
	}
	w.logger.Debugf("Watching config directory: %s", dir)
	return true
}

// OnReload registers a callback run after each applied reload.
func (w *ConfigWatcher) OnReload(fn func(Changes)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = fn
}

// Start processes events until ctx is cancelled or the watcher is closed.
func (w *ConfigWatcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if _, tracked := w.files[filepath.Clean(event.Name)]; tracked {
				w.schedule(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Config watcher error: %v", err)
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			_ = w.watcher.Close()
			return
		}
	}
}

func (w *ConfigWatcher) schedule(file string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = file
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

// reload loads and applies the configuration. A broken file keeps the
// current settings.
func (w *ConfigWatcher) reload() {
	w.mu.Lock()
	file := w.pending
	onReload := w.onReload
	w.mu.Unlock()

	cfg, err := w.load()
	if err != nil {
		w.logger.WithError(err).Warnf("Ignoring invalid configuration change in %s", filepath.Base(file))
		return
	}

	ch := Apply(w.target, cfg)
	if ch.Empty() {
		w.logger.Debugf("Config changed: %s (no watch changes)", filepath.Base(file))
	} else {
		w.logger.WithFields(logrus.Fields{
			"added_extensions":   ch.AddedExtensions,
			"removed_extensions": ch.RemovedExtensions,
			"added_dirs":         ch.AddedDirs,
			"removed_dirs":       ch.RemovedDirs,
		}).Infof("Config changed: %s", filepath.Base(file))
	}
	if onReload != nil {
		onReload(ch)
	}
}

// Close stops the watcher and releases resources.
func (w *ConfigWatcher) Close() error {
	return w.watcher.Close()
}
