package supervisor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/c360studio/guidance/events"
)

// excludedDirs are directory names never watched.
var excludedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
}

// Watcher translates fsnotify activity under the project root into supervisor
// filesystem events. Events are buffered by the supervisor and dispatched at
// the next tool boundary.
type Watcher struct {
	root    string
	sup     *Supervisor
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewWatcher creates a watcher rooted at the project directory.
func NewWatcher(root string, sup *Supervisor, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{root: root, sup: sup, watcher: fsw, logger: logger}, nil
}

// Start adds recursive watches and launches the translation goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addWatchesRecursive(w.root); err != nil {
		return err
	}
	go w.run(ctx)
	w.logger.Info("Filesystem watcher started", slog.String("root", w.root))
	return nil
}

// Stop closes the underlying watcher; the run goroutine exits when the event
// channel closes.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if excludedDirs[base] || (strings.HasPrefix(base, ".") && path != root) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", slog.String("error", err.Error()))
		}
	}
}

// handle maps one fsnotify event onto the bus kinds: content writes become
// FSFileContent; create/remove/rename become FSDirectory. Paths are reported
// relative to the watch root.
func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		rel = event.Name
	}
	rel = filepath.ToSlash(rel)

	switch {
	case event.Has(fsnotify.Write):
		w.sup.CollectFSEvent(events.FSFileContent, rel)
	case event.Has(fsnotify.Create):
		// New directories need their own watch for recursion.
		if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
			base := filepath.Base(event.Name)
			if !excludedDirs[base] && !strings.HasPrefix(base, ".") {
				if addErr := w.watcher.Add(event.Name); addErr != nil {
					w.logger.Warn("Failed to watch new directory",
						slog.String("path", event.Name),
						slog.String("error", addErr.Error()))
				}
			}
		}
		w.sup.CollectFSEvent(events.FSDirectory, rel)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.sup.CollectFSEvent(events.FSDirectory, rel)
	}
}
