// Package watcher re-applies a patch set when a pack directory changes.
//
// Events are collected until the tree has been quiet for the debounce
// interval, then handed to the callback as one batch. Staging files written
// by the engine itself are ignored.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/packpatch/pkg/packpatch/fsys"
	"github.com/jamesainslie/packpatch/pkg/packpatch/logging"
)

// DefaultDebounce is used when New is given a non-positive interval.
const DefaultDebounce = 500 * time.Millisecond

// drainWindow caps how long the tree must stay quiet after a batch before
// new events count again.
const drainWindow = 100 * time.Millisecond

// Watcher watches a pack tree for changes.
type Watcher struct {
	root     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   logging.Sink

	mu     sync.Mutex
	paths  map[string]bool
	closed bool
}

// New creates a Watcher on every directory under root.
// Symlinks are not followed to avoid loops.
func New(root string, debounce time.Duration) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     absRoot,
		debounce: debounce,
		watcher:  fsw,
		logger:   logging.Get("watcher"),
		paths:    make(map[string]bool),
	}
	if err := w.addTree(absRoot); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// SetLogger replaces the component logger.
func (w *Watcher) SetLogger(l logging.Sink) {
	w.logger = l
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// addTree adds root and all directories below it.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			return nil //nolint:nilerr // Skip entries with errors
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && fsys.IsTemp(path) {
			return filepath.SkipDir
		}
		return w.addWatch(path)
	})
}

// addWatch adds a single directory to the watch list.
func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.paths[path] {
		return nil
	}
	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("failed to add watch", "path", path, "error", err)
		return err
	}
	w.paths[path] = true
	return nil
}

// removeWatch drops path and every watched directory below it.
func (w *Watcher) removeWatch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for p := range w.paths {
		if p == path || isSubPath(p, path) {
			_ = w.watcher.Remove(p)
			delete(w.paths, p)
		}
	}
}

// Run delivers batches of changed paths, relative to the root with forward
// slashes, until ctx is cancelled. onSettle runs on the Run goroutine, so
// batches never overlap. Events arriving while onSettle runs, or until the
// tree has been quiet for a short window after it returns, are discarded.
// fsnotify delivers asynchronously, so a write of onSettle's own that shows
// up later still starts one more batch.
func (w *Watcher) Run(ctx context.Context, onSettle func(changed []string)) {
	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if rel, ok := w.handleEvent(event); ok {
				pending[rel] = true
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			clear(pending)

			w.logger.Debug("pack changed", "root", w.root, "paths", len(batch))
			onSettle(batch)
			w.drain(ctx)
		}
	}
}

// handleEvent keeps directory watches current and reports whether the event
// counts as a change to the pack.
func (w *Watcher) handleEvent(event fsnotify.Event) (string, bool) {
	if fsys.IsTemp(event.Name) {
		return "", false
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			_ = w.addTree(event.Name)
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.removeWatch(event.Name)
	case event.Op&fsnotify.Chmod != 0 && event.Op&fsnotify.Write == 0:
		return "", false
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// drain discards events until none has arrived for the drain window,
// keeping directory watches current.
func (w *Watcher) drain(ctx context.Context) {
	quiet := min(w.debounce, drainWindow)
	timer := time.NewTimer(quiet)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			_, _ = w.handleEvent(event)
			timer.Reset(quiet)
		case <-timer.C:
			return
		}
	}
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	w.paths = make(map[string]bool)
	return w.watcher.Close()
}

// isSubPath checks if path is under parent directory.
func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
