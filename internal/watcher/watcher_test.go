package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type collector struct {
	mu    sync.Mutex
	paths []string
}

func (c *collector) add(path string) {
	c.mu.Lock()
	c.paths = append(c.paths, path)
	c.mu.Unlock()
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...)
}

func TestWatcher_DebounceAndExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	var got collector
	w := NewWatcher(dir, []string{".png", ".jpg"}, got.add, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	img := filepath.Join(dir, "photo.png")
	for i := 0; i < 3; i++ {
		if err := writeFile(img, strings.Repeat("x", i+1)); err != nil {
			t.Fatal(err)
		}
	}
	if err := writeFile(filepath.Join(dir, "notes.txt"), "ignored"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)

	paths := got.snapshot()
	if len(paths) != 1 || filepath.Base(paths[0]) != "photo.png" {
		t.Errorf("expected a single debounced callback for photo.png, got %v", paths)
	}
}

func TestWatcher_RemoveCancelsPendingCallback(t *testing.T) {
	dir := t.TempDir()
	var got collector
	w := NewWatcher(dir, []string{".png"}, got.add, WithDebounce(300*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	img := filepath.Join(dir, "gone.png")
	if err := writeFile(img, "x"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := os.Remove(img); err != nil {
		t.Fatal(err)
	}
	time.Sleep(500 * time.Millisecond)

	if paths := got.snapshot(); len(paths) != 0 {
		t.Errorf("removed file should not be reported, got %v", paths)
	}
}

func TestWatcher_RecursiveNewFolder(t *testing.T) {
	dir := t.TempDir()
	var got collector
	w := NewWatcher(dir, []string{".png"}, got.add, WithRecursive(true), WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	sub := filepath.Join(dir, "batch")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := writeFile(filepath.Join(sub, "a.png"), "a"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)

	paths := got.snapshot()
	found := false
	for _, p := range paths {
		if strings.HasSuffix(p, filepath.Join("batch", "a.png")) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected callback for batch/a.png, got %v", paths)
	}
}

func TestWatcher_SyncExisting(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jpg", "a.png", "readme.md"} {
		if err := writeFile(filepath.Join(dir, name), "x"); err != nil {
			t.Fatal(err)
		}
	}
	sub := filepath.Join(dir, "nested")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(sub, "c.png"), "x"); err != nil {
		t.Fatal(err)
	}

	var got collector
	w := NewWatcher(dir, []string{".png", ".jpg"}, got.add)
	if err := w.SyncExisting(); err != nil {
		t.Fatal(err)
	}
	paths := got.snapshot()
	if len(paths) != 2 || filepath.Base(paths[0]) != "a.png" || filepath.Base(paths[1]) != "b.jpg" {
		t.Errorf("non-recursive sync: got %v", paths)
	}

	recursive := NewWatcher(dir, []string{".png", ".jpg"}, nil, WithRecursive(true))
	all, err := recursive.ExistingImages()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("recursive listing: got %v", all)
	}
}

func TestWatcher_Start_createsMissingRootDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")

	w := NewWatcher(root, []string{".png"}, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
	if w.Root() != root {
		t.Errorf("Root() = %s", w.Root())
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := NewWatcher(t.TempDir(), nil, nil)
	w.Stop()
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}
