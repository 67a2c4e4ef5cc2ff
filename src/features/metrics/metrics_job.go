package metrics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/contre95/soulfetch/src/features/jobs"
)

// JobType is the job type metrics snapshots are registered under.
const JobType = "metrics_snapshot"

// SnapshotTask implements jobs.Task for refreshing the metrics gauges.
type SnapshotTask struct {
	service *Service
}

// NewSnapshotTask creates a new snapshot task.
func NewSnapshotTask(service *Service) *SnapshotTask {
	return &SnapshotTask{service: service}
}

// MetadataKeys returns the required metadata keys (none needed).
func (t *SnapshotTask) MetadataKeys() []string {
	return []string{}
}

// Execute takes one snapshot.
func (t *SnapshotTask) Execute(ctx context.Context, job *jobs.Job, progressUpdater func(int, string)) (map[string]any, error) {
	progressUpdater(10, "Reading catalog statuses")
	overview, err := t.service.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to take metrics snapshot: %w", err)
	}
	progressUpdater(100, "Metrics snapshot completed")
	slog.Info("Metrics snapshot completed", "tracks", overview.TotalTracks, "available", overview.AvailableTracks)

	return map[string]any{
		"total_tracks":     overview.TotalTracks,
		"available_tracks": overview.AvailableTracks,
		"failed_tracks":    overview.FailedTracks,
		"ledger_records":   overview.LedgerRecords,
		"msg":              fmt.Sprintf("%d%% of %d tracks available, %d in the failure ledger", overview.Percentage(), overview.TotalTracks, overview.LedgerRecords),
	}, nil
}

// Cleanup performs cleanup after job execution.
func (t *SnapshotTask) Cleanup(job *jobs.Job) error {
	return nil
}
