// Package watcher watches the figures folder with fsnotify and reports new or changed images.
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
	"go.uber.org/zap"

	"github.com/hyperjump/rankpress/internal/imageio"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches a directory and invokes a callback when an image settles.
type Watcher struct {
	root        string
	extensions  []string
	recursive   bool
	onImage     func(path string)
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger // optional; when set, logs debug events
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides how long a file must stay quiet before onImage fires.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithRecursive also watches subdirectories of root.
func WithRecursive(recursive bool) WatcherOption {
	return func(w *Watcher) { w.recursive = recursive }
}

// NewWatcher creates a watcher over root. onImage is called once per created or
// written file whose extension matches; an empty extension list matches all files.
func NewWatcher(root string, extensions []string, onImage func(path string), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		root:        root,
		extensions:  extensions,
		onImage:     onImage,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts the watcher. It runs until ctx is cancelled or Stop is called.
// The root directory is created if it does not exist.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher
	if err := w.addRootLocked(); err != nil {
		_ = w.watcher.Close()
		w.watcher = nil
		return err
	}
	w.started = true
	if w.logger != nil {
		w.logger.Debug("watcher starting", zap.String("root", w.root), zap.Strings("extensions", w.extensions), zap.Bool("recursive", w.recursive))
	}
	go w.run(ctx, watcher)
	return nil
}

func (w *Watcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if w.logger != nil {
		w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	}
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if w.recursive {
				w.addDirectory(path)
			}
			return
		}
		if imageio.MatchExtension(path, w.extensions) {
			w.debounceImage(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelDebounce(path)
	}
}

func (w *Watcher) addDirectory(dir string) {
	w.mu.Lock()
	watcher := w.watcher
	w.mu.Unlock()
	if watcher == nil {
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if imageio.MatchExtension(path, w.extensions) {
				w.debounceImage(path)
			}
			return nil
		}
		if err := watcher.Add(path); err != nil && w.logger != nil {
			w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

func (w *Watcher) addRootLocked() error {
	root := filepath.Clean(w.root)
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	if !w.recursive {
		return w.watcher.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) debounceImage(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	t := time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		logger := w.logger
		w.mu.Unlock()
		if logger != nil {
			logger.Debug("watcher image settled", zap.String("path", path))
		}
		if w.onImage != nil {
			w.onImage(path)
		}
	})
	w.debounceMap[path] = t
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

// ExistingImages returns the images already under root, sorted, that match the extensions.
func (w *Watcher) ExistingImages() ([]string, error) {
	var paths []string
	root := filepath.Clean(w.root)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !w.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if imageio.MatchExtension(path, w.extensions) {
			paths = append(paths, path)
		}
		return nil
	})
	sort.Strings(paths)
	return paths, err
}

// SyncExisting invokes onImage for every image already present under root.
func (w *Watcher) SyncExisting() error {
	paths, err := w.ExistingImages()
	if err != nil {
		return err
	}
	for _, p := range paths {
		if w.onImage != nil {
			w.onImage(p)
		}
	}
	return nil
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
