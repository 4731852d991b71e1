// Package watcher watches the add-on root and reports when add-on directories
// or their manifests change.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/glorpus-work/addonctl/internal/logger"
)

// DefaultDebounce is the quiet period after the last relevant event before
// the callback runs.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches the add-on root and its top-level directories. fsnotify is
// not recursive, so deeper directories are not watched.
type Watcher struct {
	root     string
	debounce time.Duration
	onChange func(ctx context.Context) error
	fs       *fsnotify.Watcher
	watched  map[string]bool
}

// New starts watching root. onChange runs on the Run goroutine once events
// settle; its errors are logged and do not stop the watcher.
func New(root string, debounce time.Duration, onChange func(ctx context.Context) error) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch %s: not a directory", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	w := &Watcher{
		root:     root,
		debounce: debounce,
		onChange: onChange,
		fs:       fsw,
		watched:  make(map[string]bool),
	}
	if err := w.add(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("list %s: %w", root, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.add(filepath.Join(root, e.Name())); err != nil {
				_ = fsw.Close()
				return nil, err
			}
		}
	}
	return w, nil
}

func (w *Watcher) add(path string) error {
	if w.watched[path] {
		return nil
	}
	if err := w.fs.Add(path); err != nil {
		return fmt.Errorf("failed to add %s to watcher: %w", path, err)
	}
	w.watched[path] = true
	return nil
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fs.Close() }()

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.handle(event) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", logger.Fields{"error": err.Error()})

		case <-timer.C:
			logger.Debug("Addon directory changed", logger.Fields{"root": w.root})
			if err := w.onChange(ctx); err != nil {
				logger.Error("Change handler failed", logger.Fields{"error": err.Error()})
			}
		}
	}
}

// handle tracks new top-level directories and reports whether event should
// trigger the callback.
func (w *Watcher) handle(event fsnotify.Event) bool {
	parent := filepath.Dir(event.Name)
	topLevel := parent == w.root

	if topLevel && event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.add(event.Name); err != nil {
				logger.Warn("Could not watch new directory", logger.Fields{"dir": event.Name, "error": err.Error()})
			}
		}
	}
	if topLevel && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
		delete(w.watched, event.Name)
	}

	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	if topLevel {
		return true
	}
	return strings.EqualFold(filepath.Ext(event.Name), ".txt")
}
