package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 5 * time.Second

// Watcher reports changes to a single file once they settle. It watches the
// parent directory so that editors which replace the file are noticed.
type Watcher struct {
	fs       *fsnotify.Watcher
	path     string
	debounce time.Duration
	events   chan<- FileEvent
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher that sends to events. A debounce <= 0 uses five
// seconds.
func NewWatcher(events chan<- FileEvent, debounce time.Duration) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{fs: fs, debounce: debounce, events: events, done: make(chan struct{})}, nil
}

// Start watches path until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context, path string) error {
	w.path = filepath.Clean(path)
	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}
	slog.Info("Watching file", "path", w.path, "debounce", w.debounce)
	go w.loop(ctx)
	return nil
}

// Stop ends the watch. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fs.Close()
	})
}

func (w *Watcher) loop(ctx context.Context) {
	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending FileEventType
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			kind, ok := w.classify(ev)
			if !ok {
				continue
			}
			slog.Debug("Watched file changed", "path", ev.Name, "op", ev.Op.String())
			pending = kind
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.emit(pending)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", "error", err)
		case <-w.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// classify maps an fsnotify event on the watched file to a FileEventType.
func (w *Watcher) classify(ev fsnotify.Event) (FileEventType, bool) {
	if filepath.Clean(ev.Name) != w.path {
		return "", false
	}
	switch {
	case ev.Has(fsnotify.Create):
		return FileCreated, true
	case ev.Has(fsnotify.Write):
		return FileModified, true
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return FileRemoved, true
	}
	return "", false
}

func (w *Watcher) emit(kind FileEventType) {
	ev := FileEvent{Path: w.path, EventType: kind, Timestamp: time.Now()}
	select {
	case w.events <- ev:
		slog.Info("File settled", "path", ev.Path, "type", ev.EventType)
	default:
		slog.Warn("Event channel full, dropping file event", "path", ev.Path)
	}
}
