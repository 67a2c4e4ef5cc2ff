package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_EmitsDebouncedEvent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artists.txt")
	if err := os.WriteFile(path, []byte("a\n"), 0644); err != nil {
		t.Fatal(err)
	}

	events := make(chan FileEvent, 4)
	w, err := NewWatcher(events, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx, path); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	// Unrelated files in the same directory are ignored.
	os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644)
	for i := 0; i < 3; i++ {
		os.WriteFile(path, []byte("a\nb\n"), 0644)
	}

	select {
	case ev := <-events:
		if ev.Path != path {
			t.Errorf("unexpected path %s", ev.Path)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("expected a debounced event")
	}

	select {
	case ev := <-events:
		t.Errorf("expected a single event, got extra %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_ReportsRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artists.txt")
	if err := os.WriteFile(path, []byte("a\n"), 0644); err != nil {
		t.Fatal(err)
	}

	events := make(chan FileEvent, 1)
	w, err := NewWatcher(events, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Start(context.Background(), path); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-events:
		if ev.EventType != FileRemoved {
			t.Errorf("expected removed event, got %s", ev.EventType)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("expected a removal event")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(make(chan FileEvent), 0)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if w.debounce != defaultDebounce {
		t.Errorf("expected default debounce, got %s", w.debounce)
	}
	if err := w.Start(context.Background(), filepath.Join(t.TempDir(), "artists.txt")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	w.Stop()
	w.Stop()
}
