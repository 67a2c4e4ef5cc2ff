package acquisition

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/contre95/soulfetch/src/features/jobs"
)

// JobType is the job type acquisition runs are registered under.
const JobType = "acquire"

// ArtistSource returns the default artist list, used when a run names none.
type ArtistSource func() ([]string, error)

// AcquireJobTask runs the pipeline as a background job.
type AcquireJobTask struct {
	service *Service
	artists ArtistSource
}

// NewAcquireJobTask creates the job task. artists may be nil.
func NewAcquireJobTask(service *Service, artists ArtistSource) *AcquireJobTask {
	return &AcquireJobTask{service: service, artists: artists}
}

// MetadataKeys returns the required metadata keys for acquire jobs
func (t *AcquireJobTask) MetadataKeys() []string {
	return []string{"artists"}
}

// Execute runs one acquisition pass and returns the run report as job stats.
func (t *AcquireJobTask) Execute(ctx context.Context, job *jobs.Job, progressUpdater func(int, string)) (map[string]any, error) {
	req := RunRequest{
		Artists:  stringList(job.Metadata["artists"]),
		TrackIDs: stringList(job.Metadata["tracks"]),
	}
	if len(req.Artists) == 0 {
		if t.artists == nil {
			return nil, fmt.Errorf("no artists given and no artists file configured")
		}
		artists, err := t.artists()
		if err != nil {
			return nil, fmt.Errorf("failed to load artists: %w", err)
		}
		req.Artists = artists
	}
	job.Logger.Info("Acquiring artists", "count", len(req.Artists), "tracks", len(req.TrackIDs))
	progressUpdater(0, fmt.Sprintf("Acquiring %d artists", len(req.Artists)))

	report, err := t.service.RunWithProgress(ctx, req, func(done, total int, artist string) {
		job.Logger.Info("Artist processed", "artist", artist, "done", done, "total", total)
		progressUpdater(done*100/total, fmt.Sprintf("Processed %s (%d/%d)", artist, done, total))
	})
	stats := map[string]any{
		"artists_processed": report.ArtistsProcessed,
		"artists_skipped":   report.ArtistsSkipped,
		"downloaded":        report.Downloaded,
		"already_present":   report.AlreadyPresent,
		"unresolved":        report.Unresolved,
		"failed":            report.Failed,
		"errored":           report.Errored,
		"msg":               Summary(report),
	}
	if err != nil {
		return stats, err
	}
	job.Logger.Info("Acquisition finished", "summary", stats["msg"])
	return stats, nil
}

// Cleanup cancels whatever the run left in flight.
func (t *AcquireJobTask) Cleanup(job *jobs.Job) error {
	if n := t.service.CancelAll(); n > 0 {
		slog.Debug("Cancelled leftover acquisitions", "jobID", job.ID, "count", n)
	}
	return nil
}

// StartAcquireJob queues an acquisition run on the job service.
func StartAcquireJob(jobService jobs.JobService, req RunRequest) (string, error) {
	name := "Acquire artists file"
	if len(req.Artists) > 0 {
		name = fmt.Sprintf("Acquire %d artists", len(req.Artists))
	}
	metadata := map[string]any{
		"artists": req.Artists,
		"tracks":  req.TrackIDs,
	}
	jobID, err := jobService.StartJob(JobType, name, metadata)
	if err != nil {
		slog.Error("Failed to start acquisition job", "error", err)
		return "", fmt.Errorf("failed to start acquisition job: %w", err)
	}
	return jobID, nil
}

// Summary renders a one-line description of a run.
func Summary(r RunReport) string {
	return fmt.Sprintf("%d downloaded, %d present, %d unresolved, %d failed, %d errored across %d artists (%d skipped) in %s",
		r.Downloaded, r.AlreadyPresent, r.Unresolved, r.Failed, r.Errored, r.ArtistsProcessed, r.ArtistsSkipped, r.Duration.Round(time.Second))
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if list != "" {
			return []string{list}
		}
	}
	return nil
}
