// Package watcher imports value stream map documents dropped into a directory.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"valuestream/internal/codec"
	"valuestream/internal/domain"
)

// Importer stores a map document read from disk
type Importer interface {
	ImportFile(ctx context.Context, path string) (*domain.ValueStreamMap, error)
}

// Watcher watches a directory for map documents
type Watcher struct {
	dir      string
	importer Importer
	debounce time.Duration
	logger   *slog.Logger

	wg sync.WaitGroup
}

// New creates a new directory watcher
func New(dir string, importer Importer) *Watcher {
	return &Watcher{
		dir:      dir,
		importer: importer,
		debounce: 500 * time.Millisecond,
		logger:   slog.Default(),
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// WithLogger replaces the default logger
func (w *Watcher) WithLogger(l *slog.Logger) *Watcher {
	if l != nil {
		w.logger = l
	}
	return w
}

// Watch imports every document already in the directory, then imports
// documents as they are written. It blocks until the context is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}
	w.logger.Info("watcher: watching directory", "dir", w.dir)

	w.scan(ctx)

	debounceTimers := make(map[string]*time.Timer)
	defer func() {
		for _, timer := range debounceTimers {
			if timer.Stop() {
				w.wg.Done()
			}
		}
		w.wg.Wait()
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !accept(event.Name) {
				continue
			}

			// Editors often write a file in several steps
			path := event.Name
			if timer, exists := debounceTimers[path]; exists && timer.Stop() {
				w.wg.Done()
			}
			w.wg.Add(1)
			debounceTimers[path] = time.AfterFunc(w.debounce, func() {
				defer w.wg.Done()
				w.load(ctx, path)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher: error", "err", err)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) scan(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("watcher: failed to read directory", "dir", w.dir, "err", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		if accept(path) {
			w.load(ctx, path)
		}
	}
}

func (w *Watcher) load(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	m, err := w.importer.ImportFile(ctx, path)
	if err != nil {
		w.logger.Warn("watcher: import failed", "path", path, "err", err)
		return
	}
	w.logger.Info("watcher: imported map", "path", path, "map_id", m.ID)
}

// accept skips hidden files and editor backups
func accept(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
		return false
	}
	return codec.Supported(path)
}
