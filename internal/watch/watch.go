// Package watch sweeps the result cache when project files change on
// disk outside the tool pipeline (editor saves, git operations in a
// mounted workspace). Changes made through write_file are already
// handled by the runtime itself.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/HathorNetwork/hathor-playground-sub001/internal/cache"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/observability"
)

// debounceWindow coalesces fsnotify event bursts (a single save often
// produces several events) into one cache sweep.
const debounceWindow = 200 * time.Millisecond

// Watcher invalidates read-tool cache entries when watched files change.
type Watcher struct {
	cache  *cache.ResultCache
	logger *observability.Logger
	fs     *fsnotify.Watcher
}

// New creates a watcher over root and all its subdirectories.
func New(root string, resultCache *cache.ResultCache, logger *observability.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{Level: "error"})
	}

	w := &Watcher{cache: resultCache, logger: logger, fs: fs}
	if err := w.addRecursive(root); err != nil {
		fs.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "node_modules" || d.Name() == ".git" {
				return filepath.SkipDir
			}
			return w.fs.Add(path)
		}
		return nil
	})
}

// Run processes filesystem events until the context is canceled.
func (w *Watcher) Run(ctx context.Context) {
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
		last    string
	)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			// New directories need watching too.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.addRecursive(event.Name)
				}
			}
			last = event.Name
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerCh = timer.C
			} else {
				timer.Reset(debounceWindow)
			}
		case <-timerCh:
			swept := w.cache.InvalidateOnFileChange(last)
			if swept > 0 {
				w.logger.Debug(ctx, "cache swept after external file change",
					"path", last, "entries", swept)
			}
			timer = nil
			timerCh = nil
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn(ctx, "file watcher error", "error", err)
		}
	}
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
