// Package watch triggers ingestion when snapshot files appear in the input
// directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	errs "igarchive/pkg/errors"
	"igarchive/pkg/logger"
)

// DefaultDebounce is how long the directory must be quiet before a run is
// triggered, so a renderer writing a file in chunks yields one run.
const DefaultDebounce = 2 * time.Second

// Trigger starts an ingestion run
type Trigger func() error

// Watcher observes a directory for the configured snapshot file names
type Watcher struct {
	dir      string
	names    map[string]bool
	debounce time.Duration
	trigger  Trigger
	log      logger.Logger
}

// New creates a watcher for names inside dir
func New(dir string, names []string, debounce time.Duration, trigger Trigger, log logger.Logger) *Watcher {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		if n != "" {
			set[filepath.Base(n)] = true
		}
	}
	return &Watcher{
		dir:      dir,
		names:    set,
		debounce: debounce,
		trigger:  trigger,
		log:      log.WithField("component", "watch"),
	}
}

// Run watches until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	logger.LogComponentStart("watch", map[string]interface{}{"dir": w.dir, "debounce": w.debounce.String()})
	defer logger.LogComponentStop("watch", "context done")

	timer := time.NewTimer(w.debounce)
	// Snapshots present at startup are picked up after the first quiet period.
	armed := w.pending()
	if !armed {
		timer.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.log.DebugWithFields("Snapshot changed", map[string]interface{}{
				"file": filepath.Base(ev.Name),
				"op":   ev.Op.String(),
			})
			resetTimer(timer, w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("Watcher error")

		case <-timer.C:
			w.fire(timer)
		}
	}
}

func (w *Watcher) fire(timer *time.Timer) {
	if !w.pending() {
		return
	}
	err := w.trigger()
	switch {
	case err == nil:
		w.log.Info("Snapshot change triggered a run")
	case errs.Is(err, errs.ErrorTypeConflict):
		// Try again once the active run had a chance to finish.
		w.log.Debug("Run already active, deferring triggered run")
		resetTimer(timer, w.debounce)
	default:
		w.log.WithError(err).Warn("Failed to trigger run")
	}
}

// relevant reports whether ev may have produced a snapshot file
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !w.names[filepath.Base(ev.Name)] {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename)
}

// pending reports whether any watched snapshot exists
func (w *Watcher) pending() bool {
	for name := range w.names {
		if info, err := os.Stat(filepath.Join(w.dir, name)); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
