package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/contre95/soulfetch/src/features/acquisition"
)

type item struct {
	entry  acquisition.InFlight
	cancel context.CancelFunc
}

// InFlightRegistry is an in-memory registry of running acquisitions keyed by
// track id. Every entry carries the cancel func of its context.
type InFlightRegistry struct {
	items sync.Map // map[string]item
}

// NewInFlightRegistry creates an empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{}
}

// Add registers a running acquisition. It fails when the track is already registered.
func (q *InFlightRegistry) Add(entry acquisition.InFlight, cancel context.CancelFunc) error {
	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now()
	}
	if _, loaded := q.items.LoadOrStore(entry.TrackID, item{entry: entry, cancel: cancel}); loaded {
		return acquisition.ErrAlreadyInFlight
	}
	return nil
}

// Remove drops a track from the registry without cancelling it.
func (q *InFlightRegistry) Remove(trackID string) {
	q.items.Delete(trackID)
}

// GetAll returns every registered entry, oldest first.
func (q *InFlightRegistry) GetAll() []acquisition.InFlight {
	var entries []acquisition.InFlight
	q.items.Range(func(key, value any) bool {
		if it, ok := value.(item); ok {
			entries = append(entries, it.entry)
		}
		return true
	})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StartedAt.Before(entries[j].StartedAt)
	})
	return entries
}

// Cancel cancels one running acquisition. It reports whether the track was found.
func (q *InFlightRegistry) Cancel(trackID string) bool {
	value, ok := q.items.Load(trackID)
	if !ok {
		return false
	}
	if it, ok := value.(item); ok && it.cancel != nil {
		it.cancel()
	}
	return true
}

// CancelAll cancels every running acquisition and returns how many there were.
func (q *InFlightRegistry) CancelAll() int {
	n := 0
	q.items.Range(func(key, value any) bool {
		if it, ok := value.(item); ok && it.cancel != nil {
			it.cancel()
		}
		n++
		return true
	})
	return n
}

// Len returns the number of registered acquisitions.
func (q *InFlightRegistry) Len() int {
	n := 0
	q.items.Range(func(key, value any) bool {
		n++
		return true
	})
	return n
}
