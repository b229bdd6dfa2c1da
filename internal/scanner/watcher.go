package scanner

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay is how long a path must be quiet after a create/write before
// it is indexed. Copies and downloads touch the file many times; the last
// event wins.
const debounceDelay = 3 * time.Second

// Watcher follows the library roots with fsnotify and feeds changes into the
// scanner incrementally.
type Watcher struct {
	scanner *Scanner
	log     *slog.Logger

	delay time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a filesystem watcher over the scanner's roots.
func NewWatcher(scanner *Scanner, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		scanner: scanner,
		log:     log,
		delay:   debounceDelay,
		pending: make(map[string]*time.Timer),
	}
}

// Run watches until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	for _, root := range w.scanner.cfg.Library.Roots {
		if err := addRecursive(fsw, root.Path); err != nil {
			return err
		}
		w.log.Info("watching library root",
			slog.String("type", root.Type),
			slog.String("path", root.Path),
		)
	}

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	rootType, ok := w.rootTypeFor(event.Name)
	if !ok {
		return
	}

	// New directories have to be watched before files land in them.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addRecursive(fsw, event.Name); err != nil {
				w.log.Error("failed to watch new directory",
					slog.String("path", event.Name),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}

	if !w.scanner.isMediaFile(event.Name) {
		return
	}

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.cancelPath(event.Name)
		w.log.Info("file removed", slog.String("path", event.Name))
		if err := w.scanner.DeleteFile(ctx, rootType, event.Name); err != nil {
			w.log.Error("failed to delete file from catalog",
				slog.String("path", event.Name),
				slog.String("error", err.Error()),
			)
		}

	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		w.schedule(ctx, rootType, event.Name)
	}
}

// schedule arms (or re-arms) the debounce timer for a path.
func (w *Watcher) schedule(ctx context.Context, rootType, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.delay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		w.log.Info("file added or changed", slog.String("path", path))
		if err := w.scanner.SaveFile(ctx, rootType, path); err != nil {
			w.log.Error("failed to index changed file",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
	})
}

func (w *Watcher) cancelPath(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) rootTypeFor(path string) (string, bool) {
	for _, root := range w.scanner.cfg.Library.Roots {
		rel, err := filepath.Rel(root.Path, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return root.Type, true
		}
	}
	return "", false
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}
