package acquisition

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/contre95/soulfetch/src/music"
)

// StatusObserver is told about every status written. It is called from
// concurrent goroutines.
type StatusObserver func(trackID string, status music.DownloadStatus)

// Tracker writes download status transitions to the catalog, one write per
// transition.
type Tracker struct {
	catalog  music.Catalog
	observer StatusObserver
}

// NewTracker creates a tracker. observer may be nil.
func NewTracker(catalog music.Catalog, observer StatusObserver) *Tracker {
	return &Tracker{catalog: catalog, observer: observer}
}

// Set persists status for trackID. Writing the current status again is a no-op
// for the catalog and still counts as a transition.
func (t *Tracker) Set(ctx context.Context, trackID string, status music.DownloadStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", music.ErrInvalidStatus, status)
	}
	if err := t.catalog.UpdateTrackStatus(ctx, trackID, status); err != nil {
		return fmt.Errorf("failed to set status %s for track %s: %w", status, trackID, err)
	}
	slog.Debug("Track status updated", "trackID", trackID, "status", status)
	statusTransitions.WithLabelValues(string(status)).Inc()
	if t.observer != nil {
		t.observer(trackID, status)
	}
	return nil
}
