package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/contre95/soulfetch/src/music"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is how many tracks of an artist are acquired at once.
const DefaultConcurrency = 10

// Options tunes a pipeline run.
type Options struct {
	Concurrency  int
	SkipComplete bool
}

type outcome int

const (
	outcomeErrored outcome = iota
	outcomePresent
	outcomeDownloaded
	outcomeUnresolved
	outcomeFailed
)

func (o outcome) String() string {
	switch o {
	case outcomePresent:
		return "present"
	case outcomeDownloaded:
		return "downloaded"
	case outcomeUnresolved:
		return "unresolved"
	case outcomeFailed:
		return "failed"
	default:
		return "errored"
	}
}

// ProgressFunc reports run progress after each artist.
type ProgressFunc func(done, total int, artist string)

// Service runs the acquisition pipeline: probe, resolve, download and track
// status for every pending track of the requested artists.
type Service struct {
	catalog  music.Catalog
	ledger   music.FailureLedger
	tree     OutputTree
	prober   *Prober
	resolver *Resolver
	executor *Executor
	tracker  *Tracker
	registry Registry
	opts     Options
}

// NewService creates the pipeline service.
func NewService(catalog music.Catalog, ledger music.FailureLedger, tree OutputTree, prober *Prober, resolver *Resolver, executor *Executor, tracker *Tracker, registry Registry, opts Options) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Service{
		catalog:  catalog,
		ledger:   ledger,
		tree:     tree,
		prober:   prober,
		resolver: resolver,
		executor: executor,
		tracker:  tracker,
		registry: registry,
		opts:     opts,
	}
}

// Run processes the requested artists one after the other.
func (s *Service) Run(ctx context.Context, req RunRequest) (RunReport, error) {
	return s.RunWithProgress(ctx, req, nil)
}

// RunWithProgress is Run with a progress callback. Failures of single tracks
// never abort the run; only cancellation of ctx does.
func (s *Service) RunWithProgress(ctx context.Context, req RunRequest, progress ProgressFunc) (RunReport, error) {
	start := time.Now()
	var report RunReport
	filter := make(map[string]bool, len(req.TrackIDs))
	for _, id := range req.TrackIDs {
		if id = strings.TrimSpace(id); id != "" {
			filter[id] = true
		}
	}

	slog.Info("Starting acquisition run", "artists", len(req.Artists), "trackFilter", len(filter), "concurrency", s.opts.Concurrency)
	for i, ref := range req.Artists {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
		ref = strings.TrimSpace(ref)
		if ref != "" {
			s.runArtist(ctx, ref, filter, &report)
		}
		if progress != nil {
			progress(i+1, len(req.Artists), ref)
		}
	}

	report.Duration = time.Since(start)
	slog.Info("Acquisition run finished",
		"artists", report.ArtistsProcessed,
		"skipped", report.ArtistsSkipped,
		"downloaded", report.Downloaded,
		"present", report.AlreadyPresent,
		"unresolved", report.Unresolved,
		"failed", report.Failed,
		"errored", report.Errored,
		"duration", report.Duration)
	return report, ctx.Err()
}

func (s *Service) runArtist(ctx context.Context, ref string, filter map[string]bool, report *RunReport) {
	artist, err := s.catalog.GetArtist(ctx, ref)
	if err != nil {
		slog.Error("Failed to look up artist", "artist", ref, "error", err)
		report.ArtistsSkipped++
		return
	}
	if artist == nil {
		slog.Warn("Artist not found in catalog", "artist", ref)
		report.ArtistsSkipped++
		return
	}

	if s.opts.SkipComplete {
		progress, err := s.catalog.GetArtistProgress(ctx, artist.ID)
		if err != nil {
			slog.Warn("Could not read artist progress", "artist", artist.Name, "error", err)
		} else if progress.Complete() {
			slog.Info("Artist already complete, skipping", "artist", artist.Name, "tracks", progress.Total)
			report.ArtistsSkipped++
			return
		}
	}

	tracks, err := s.catalog.GetArtistTracks(ctx, artist.ID)
	if err != nil {
		slog.Error("Failed to load artist tracks", "artist", artist.Name, "error", err)
		report.ArtistsSkipped++
		return
	}
	report.ArtistsProcessed++

	var pending []*music.Track
	for _, track := range tracks {
		if len(filter) > 0 && !filter[track.ID] {
			continue
		}
		report.TracksSeen++
		if track.DownloadStatus == music.StatusAvailable {
			report.AlreadyPresent++
			continue
		}
		pending = append(pending, track)
	}
	slog.Info("Processing artist", "artist", artist.Name, "tracks", len(tracks), "pending", len(pending))

	for start := 0; start < len(pending); start += s.opts.Concurrency {
		if ctx.Err() != nil {
			break
		}
		group := pending[start:min(start+s.opts.Concurrency, len(pending))]
		outcomes := make([]outcome, len(group))

		var g errgroup.Group
		for i, track := range group {
			g.Go(func() error {
				outcomes[i] = s.processTrack(ctx, artist, track)
				return nil
			})
		}
		g.Wait()

		for _, o := range outcomes {
			report.add(o)
		}
	}

	if removed := s.tree.PruneEmpty(s.tree.ArtistDir(artist.Name)); removed > 0 {
		slog.Debug("Pruned empty directories", "artist", artist.Name, "removed", removed)
	}
}

// processTrack acquires one track. Errors and panics stay inside it.
func (s *Service) processTrack(ctx context.Context, artist *music.Artist, track *music.Track) (result outcome) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered from panic while acquiring track", "trackID", track.ID, "panic", r)
			result = outcomeErrored
		}
		trackOutcomes.WithLabelValues(result.String()).Inc()
		trackDuration.Observe(time.Since(started).Seconds())
	}()

	trackCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	entry := InFlight{TrackID: track.ID, TrackName: track.Name, Artist: artist.Name, StartedAt: started}
	if err := s.registry.Add(entry, cancel); err != nil {
		slog.Warn("Track is already being acquired", "trackID", track.ID, "error", err)
		return outcomeErrored
	}
	tracksInFlight.Inc()
	defer func() {
		s.registry.Remove(track.ID)
		tracksInFlight.Dec()
	}()

	result, err := s.acquire(trackCtx, artist, track)
	if err != nil {
		slog.Error("Failed to acquire track", "trackID", track.ID, "track", track.Name, "artist", artist.Name, "error", err)
		return outcomeErrored
	}
	return result
}

func (s *Service) acquire(ctx context.Context, artist *music.Artist, track *music.Track) (outcome, error) {
	probe, err := s.prober.Probe(ctx, track, artist.Name)
	if err != nil {
		return outcomeErrored, fmt.Errorf("probe failed: %w", err)
	}
	if probe.Exists {
		slog.Info("Track already on disk", "trackID", track.ID, "file", probe.File)
		if err := s.tracker.Set(ctx, track.ID, music.StatusAvailable); err != nil {
			return outcomeErrored, err
		}
		return outcomePresent, nil
	}
	if probe.NeedsStatusUpdate {
		if err := s.tracker.Set(ctx, track.ID, music.StatusNotDownloaded); err != nil {
			return outcomeErrored, err
		}
	}

	outputPath := s.tree.OutputPath(artist.Name, track)
	candidate, err := s.resolver.Resolve(ctx, SearchRequest{
		TrackID:    track.ID,
		TrackName:  track.Name,
		ArtistName: artist.Name,
		AlbumName:  track.AlbumName,
		OutputPath: outputPath,
	})
	if err != nil {
		return outcomeErrored, fmt.Errorf("search failed: %w", err)
	}
	if candidate == nil {
		return outcomeUnresolved, nil
	}

	if err := s.tracker.Set(ctx, track.ID, music.StatusDownloading); err != nil {
		return outcomeErrored, err
	}
	if err := os.MkdirAll(s.tree.TrackDir(artist.Name, track), 0755); err != nil {
		return outcomeErrored, fmt.Errorf("failed to create track directory: %w", err)
	}

	err = s.executor.Download(ctx, DownloadRequest{
		TrackID:    track.ID,
		Track:      track,
		ArtistName: artist.Name,
		RemoteID:   candidate.RemoteID,
		OutputPath: outputPath,
	})
	if errors.Is(err, ErrFormatsExhausted) {
		slog.Warn("Every download format failed", "trackID", track.ID, "remoteID", candidate.RemoteID)
		if err := s.tracker.Set(ctx, track.ID, music.StatusFailed); err != nil {
			return outcomeErrored, err
		}
		return outcomeFailed, nil
	}
	if err != nil {
		return outcomeErrored, fmt.Errorf("download failed: %w", err)
	}
	return outcomeDownloaded, nil
}

// InFlight lists the tracks being acquired right now.
func (s *Service) InFlight() []InFlight {
	return s.registry.GetAll()
}

// Cancel stops the acquisition of one track.
func (s *Service) Cancel(trackID string) bool {
	return s.registry.Cancel(trackID)
}

// CancelAll stops every running acquisition and returns how many were cancelled.
func (s *Service) CancelAll() int {
	return s.registry.CancelAll()
}

// Failures returns the tracks that need manual attention.
func (s *Service) Failures(ctx context.Context) ([]music.FailureRecord, error) {
	if s.ledger == nil {
		return nil, nil
	}
	return s.ledger.All(ctx)
}

// Failure returns the ledger record of one track, or nil when there is none.
func (s *Service) Failure(ctx context.Context, trackID string) (*music.FailureRecord, error) {
	if s.ledger == nil {
		return nil, nil
	}
	return s.ledger.Get(ctx, trackID)
}

func (r *RunReport) add(o outcome) {
	switch o {
	case outcomePresent:
		r.AlreadyPresent++
	case outcomeDownloaded:
		r.Downloaded++
	case outcomeUnresolved:
		r.Unresolved++
	case outcomeFailed:
		r.Failed++
	default:
		r.Errored++
	}
}
