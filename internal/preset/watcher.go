package preset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/simviz"
)

// DefaultDebounce is the quiet period before a reload.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a store's user presets when files change on disk.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	debounce time.Duration

	// OnReload, when set, runs after each successful reload.
	OnReload func()
}

// NewWatcher creates a watcher over the store's root and its kind
// directories. The root is created when missing.
func NewWatcher(s *Store) (*Watcher, error) {
	if s.root == "" {
		return nil, fmt.Errorf("preset: store has no user directory")
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, fmt.Errorf("preset: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("preset: create file watcher: %w", err)
	}
	w := &Watcher{store: s, watcher: fw, debounce: DefaultDebounce}
	if err := w.addTree(); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree() error {
	return filepath.WalkDir(w.store.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(p)
		}
		return nil
	})
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	log := simviz.Logger()

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = w.watcher.Add(ev.Name)
				}
			}
			if relevant(ev) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("preset: watcher error", "err", err)
		case <-timer.C:
			if err := w.store.Reload(); err != nil {
				log.Warn("preset: reload failed", "err", err)
				continue
			}
			log.Debug("preset: reloaded user presets", "root", w.store.root)
			if w.OnReload != nil {
				w.OnReload()
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return strings.HasSuffix(ev.Name, Ext)
}
