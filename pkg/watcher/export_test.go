package watcher

// SourceActive is exposed to tests so they can wait for registration.
func (w *Watcher) SourceActive() bool { return w.sourceActive.Load() }
