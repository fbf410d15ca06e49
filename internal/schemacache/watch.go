package schemacache

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const WATCH_DEBOUNCE_DURATION = 100 * time.Millisecond

type watcher struct {
	fsWatcher *fsnotify.Watcher
	logger    zerolog.Logger

	lock        sync.Mutex
	watchedDirs map[string]bool
	changed     map[string]bool
	debounced   func(f func())
}

// Watch invalidates the entries of schema files that are modified, removed or renamed. The directories of cached
// schemas are watched with fsnotify and events are collapsed before the entries are invalidated. Watching stops
// when ctx is done or the cache is closed. Watch should be called at most once, before the first compilation.
func (c *Cache) Watch(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	w := &watcher{
		fsWatcher:   fsWatcher,
		logger:      c.logger,
		watchedDirs: map[string]bool{},
		changed:     map[string]bool{},
		debounced:   debounce.New(WATCH_DEBOUNCE_DURATION),
	}
	c.watcher = w

	for _, path := range c.entries.Keys() {
		w.watch(path)
	}

	c.goroutines.Add(1)
	go func() {
		defer c.goroutines.Done()
		defer fsWatcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.closed:
				return
			case event, ok := <-fsWatcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Create) {
					continue
				}
				path := filepath.Clean(event.Name)
				if !c.entries.Has(path) {
					continue
				}
				w.addChange(path, c.Invalidate)
			case err, ok := <-fsWatcher.Errors:
				if !ok {
					return
				}
				c.logger.Warn().Err(err).Msg("schema watcher error")
			}
		}
	}()

	return nil
}

func (w *watcher) watch(path string) {
	dir := filepath.Dir(path)

	w.lock.Lock()
	defer w.lock.Unlock()

	if w.watchedDirs[dir] {
		return
	}
	if err := w.fsWatcher.Add(dir); err != nil {
		w.logger.Debug().Err(err).Str("dir", dir).Msg("failed to watch schema directory")
		return
	}
	w.watchedDirs[dir] = true
}

func (w *watcher) addChange(path string, invalidate func(path string)) {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.changed[path] = true

	w.debounced(func() {
		w.lock.Lock()
		changed := w.changed
		w.changed = map[string]bool{}
		w.lock.Unlock()

		for path := range changed {
			invalidate(path)
		}
	})
}
