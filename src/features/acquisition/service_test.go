package acquisition

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/contre95/soulfetch/src/features/jobs"
	"github.com/contre95/soulfetch/src/infra/files"
	"github.com/contre95/soulfetch/src/music"
)

// memRegistry is a minimal Registry keyed by track id.
type memRegistry struct {
	mu      sync.Mutex
	entries map[string]context.CancelFunc
}

func newMemRegistry() *memRegistry {
	return &memRegistry{entries: make(map[string]context.CancelFunc)}
}

func (r *memRegistry) Add(entry InFlight, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entry.TrackID]; ok {
		return ErrAlreadyInFlight
	}
	r.entries[entry.TrackID] = cancel
	return nil
}

func (r *memRegistry) Remove(trackID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, trackID)
}

func (r *memRegistry) GetAll() []InFlight {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []InFlight
	for id := range r.entries {
		out = append(out, InFlight{TrackID: id})
	}
	return out
}

func (r *memRegistry) Cancel(trackID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.entries[trackID]
	if ok {
		cancel()
	}
	return ok
}

func (r *memRegistry) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cancel := range r.entries {
		cancel()
	}
	return len(r.entries)
}

// panicSearcher blows up on every search.
type panicSearcher struct{ fakeSearcher }

func (p *panicSearcher) Search(ctx context.Context, query string, extra ...string) (ToolOutput, error) {
	panic("search exploded")
}

type pipeline struct {
	service    *Service
	catalog    *memCatalog
	ledger     *memLedger
	searcher   *fakeSearcher
	downloader *fakeDownloader
	registry   *memRegistry
	statuses   *statusLog
	layout     *files.Layout
}

func newPipeline(t *testing.T, searcher Searcher, opts Options) *pipeline {
	t.Helper()
	p := &pipeline{
		catalog:    newMemCatalog(),
		ledger:     &memLedger{},
		downloader: &fakeDownloader{},
		registry:   newMemRegistry(),
		statuses:   newStatusLog(),
		layout:     files.NewLayout(t.TempDir(), "mp3", false),
	}
	if fs, ok := searcher.(*fakeSearcher); ok {
		p.searcher = fs
	}
	tracker := NewTracker(p.catalog, p.statuses.observe)
	p.service = NewService(
		p.catalog,
		p.ledger,
		p.layout,
		NewProber(p.layout, nil, 0),
		NewResolver(searcher, p.ledger, 1, 0),
		NewExecutor(p.downloader, tracker, nil, "", 0),
		tracker,
		p.registry,
		opts,
	)
	return p
}

func found(id string) searchReply {
	return searchReply{out: ToolOutput{Stdout: []byte(`{"id":"` + id + `","title":"x","uploader":"y"}`)}}
}

func query(artist, track string) string {
	return SearchRequest{ArtistName: artist, TrackName: track}.Query()
}

func newTrack(id, name string) *music.Track {
	return &music.Track{ID: id, Name: name, AlbumName: "OK Computer"}
}

// allowed lists the status sequences a single run may write for one track.
var allowed = [][]music.DownloadStatus{
	{},
	{music.StatusAvailable},
	{music.StatusNotDownloaded},
	{music.StatusDownloading, music.StatusAvailable},
	{music.StatusDownloading, music.StatusFailed},
	{music.StatusNotDownloaded, music.StatusDownloading, music.StatusAvailable},
	{music.StatusNotDownloaded, music.StatusDownloading, music.StatusFailed},
}

func assertAllowedSequence(t *testing.T, trackID string, got []music.DownloadStatus) {
	t.Helper()
	for _, seq := range allowed {
		if slices.Equal(seq, got) {
			return
		}
	}
	t.Errorf("track %s wrote unexpected status sequence %v", trackID, got)
}

func TestRun_MixedOutcomes(t *testing.T) {
	searcher := &fakeSearcher{byQuery: map[string][]searchReply{
		query("Radiohead", "Let Down"):     {found("good")},
		query("Radiohead", "Karma Police"): {found("broken")},
		query("Radiohead", "Lucky"):        {{out: ToolOutput{Stdout: []byte("\n")}}},
	}}
	p := newPipeline(t, searcher, Options{Concurrency: 2})
	p.downloader.bestByURL = map[string][]string{
		p.downloader.VideoURL("good"): {"Deleting original file Let Down.webm"},
	}
	p.downloader.formats = []string{"140", "251"}

	onDisk := newTrack("t2", "Paranoid Android")
	p.catalog.addArtist(&music.Artist{ID: "ar1", Name: "Radiohead"},
		&music.Track{ID: "t1", Name: "Airbag", AlbumName: "OK Computer", DownloadStatus: music.StatusAvailable},
		onDisk,
		newTrack("t3", "Let Down"),
		newTrack("t4", "Karma Police"),
		newTrack("t5", "Lucky"),
	)
	writeFile(t, p.layout.OutputPath("Radiohead", onDisk), 4096)

	report, err := p.service.Run(context.Background(), RunRequest{Artists: []string{"ar1"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := RunReport{ArtistsProcessed: 1, TracksSeen: 5, AlreadyPresent: 2, Downloaded: 1, Unresolved: 1, Failed: 1}
	report.Duration = 0
	if report != want {
		t.Errorf("report = %+v, want %+v", report, want)
	}

	wantStatus := map[string]music.DownloadStatus{
		"t1": music.StatusAvailable,
		"t2": music.StatusAvailable,
		"t3": music.StatusAvailable,
		"t4": music.StatusFailed,
		"t5": music.StatusNotDownloaded,
	}
	for id, status := range wantStatus {
		if got := p.catalog.status(id); got != status {
			t.Errorf("track %s status = %s, want %s", id, got, status)
		}
		assertAllowedSequence(t, id, p.statuses.get(id))
	}
	if len(p.statuses.get("t1")) != 0 {
		t.Error("already available track must not be written")
	}

	records, _ := p.ledger.All(context.Background())
	if len(records) != 1 || records[0].TrackID != "t5" || records[0].Reason != music.ReasonContentUnavailable {
		t.Errorf("expected one ledger record for t5, got %+v", records)
	}
	if len(p.registry.GetAll()) != 0 {
		t.Error("expected the in-flight registry to be empty after the run")
	}
	if _, err := os.Stat(p.layout.TrackDir("Radiohead", onDisk)); err != nil {
		t.Errorf("existing track directory must survive: %v", err)
	}
	if _, err := os.Stat(p.layout.TrackDir("Radiohead", newTrack("t4", "Karma Police"))); !os.IsNotExist(err) {
		t.Errorf("expected the empty directory of the failed track to be pruned, got %v", err)
	}
}

func TestRun_SkipsArtists(t *testing.T) {
	p := newPipeline(t, &fakeSearcher{}, Options{SkipComplete: true})
	p.catalog.addArtist(&music.Artist{ID: "done", Name: "Portishead"},
		&music.Track{ID: "d1", Name: "Roads", DownloadStatus: music.StatusAvailable})
	p.catalog.addArtist(&music.Artist{ID: "empty", Name: "Nobody"})

	report, err := p.service.Run(context.Background(), RunRequest{Artists: []string{"missing", "done", "  ", "empty"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ArtistsSkipped != 2 || report.ArtistsProcessed != 1 || report.TracksSeen != 0 {
		t.Errorf("unexpected report %+v", report)
	}
	if p.searcher.callCount() != 0 || p.catalog.writeCount() != 0 {
		t.Error("skipped artists must not be searched or written")
	}
}

func TestRun_TrackFilter(t *testing.T) {
	searcher := &fakeSearcher{replies: []searchReply{{out: ToolOutput{Stdout: []byte("\n")}}}}
	p := newPipeline(t, searcher, Options{})
	p.catalog.addArtist(&music.Artist{ID: "ar1", Name: "Radiohead"}, newTrack("t1", "Airbag"), newTrack("t2", "Lucky"))

	report, _ := p.service.Run(context.Background(), RunRequest{Artists: []string{"Radio"}, TrackIDs: []string{"t2"}})
	if report.TracksSeen != 1 || report.Unresolved != 1 {
		t.Errorf("unexpected report %+v", report)
	}
	if searcher.callCount() != 1 {
		t.Errorf("expected one search, got %d", searcher.callCount())
	}
}

func TestRun_RecoversFromPanics(t *testing.T) {
	p := newPipeline(t, &panicSearcher{}, Options{})
	p.catalog.addArtist(&music.Artist{ID: "ar1", Name: "Radiohead"}, newTrack("t1", "Airbag"), newTrack("t2", "Lucky"))

	report, err := p.service.Run(context.Background(), RunRequest{Artists: []string{"ar1"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Errored != 2 {
		t.Errorf("expected two errored tracks, got %+v", report)
	}
	if len(p.registry.GetAll()) != 0 {
		t.Error("panicking tracks must leave the registry")
	}
}

func TestRun_BoundsConcurrency(t *testing.T) {
	searcher := &fakeSearcher{replies: []searchReply{found("id")}}
	p := newPipeline(t, searcher, Options{Concurrency: 3})
	p.downloader.bestLines = []string{"Deleting original file"}
	p.downloader.delay = 20 * time.Millisecond

	var tracks []*music.Track
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		tracks = append(tracks, newTrack(id, "Song "+id))
	}
	p.catalog.addArtist(&music.Artist{ID: "ar1", Name: "Radiohead"}, tracks...)

	report, _ := p.service.Run(context.Background(), RunRequest{Artists: []string{"ar1"}})
	if report.Downloaded != 7 {
		t.Errorf("expected 7 downloads, got %+v", report)
	}
	if peak := p.downloader.peak(); peak > 3 || peak < 1 {
		t.Errorf("expected at most 3 concurrent downloads, got %d", peak)
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	p := newPipeline(t, &fakeSearcher{}, Options{})
	p.catalog.addArtist(&music.Artist{ID: "ar1", Name: "Radiohead"}, newTrack("t1", "Airbag"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := p.service.Run(ctx, RunRequest{Artists: []string{"ar1"}})
	if err == nil {
		t.Error("expected the cancellation error")
	}
	if report.ArtistsProcessed != 0 || p.catalog.writeCount() != 0 {
		t.Errorf("expected no work after cancellation, got %+v", report)
	}
}

func TestRun_DuplicateInFlightIsErrored(t *testing.T) {
	p := newPipeline(t, &fakeSearcher{}, Options{})
	p.catalog.addArtist(&music.Artist{ID: "ar1", Name: "Radiohead"}, newTrack("t1", "Airbag"))
	p.registry.Add(InFlight{TrackID: "t1"}, func() {})

	report, _ := p.service.Run(context.Background(), RunRequest{Artists: []string{"ar1"}})
	if report.Errored != 1 || p.catalog.writeCount() != 0 {
		t.Errorf("expected the duplicate to be skipped, got %+v", report)
	}
}

func TestService_Failures(t *testing.T) {
	p := newPipeline(t, &fakeSearcher{}, Options{})
	ctx := context.Background()
	p.ledger.Record(ctx, music.FailureRecord{TrackID: "t9", Reason: music.ReasonSignInRequired})

	records, err := p.service.Failures(ctx)
	if err != nil || len(records) != 1 {
		t.Fatalf("Failures = %v, %v", records, err)
	}
	rec, _ := p.service.Failure(ctx, "t9")
	if rec == nil || rec.Reason != music.ReasonSignInRequired {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec, _ := p.service.Failure(ctx, "nope"); rec != nil {
		t.Errorf("expected no record, got %+v", rec)
	}
}

func TestAcquireJobTask_UsesArtistSource(t *testing.T) {
	searcher := &fakeSearcher{replies: []searchReply{{out: ToolOutput{Stdout: []byte("\n")}}}}
	p := newPipeline(t, searcher, Options{})
	p.catalog.addArtist(&music.Artist{ID: "ar1", Name: "Radiohead"}, newTrack("t1", "Airbag"))
	task := NewAcquireJobTask(p.service, func() ([]string, error) { return []string{"Radiohead"}, nil })

	job := &jobs.Job{
		ID:       "job1",
		Metadata: map[string]any{"artists": []any{}},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	var progress []int
	stats, err := task.Execute(context.Background(), job, func(pct int, _ string) { progress = append(progress, pct) })
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if stats["unresolved"] != 1 || stats["artists_processed"] != 1 {
		t.Errorf("unexpected stats %v", stats)
	}
	if msg, _ := stats["msg"].(string); !strings.HasPrefix(msg, "0 downloaded, 0 present, 1 unresolved") {
		t.Errorf("unexpected summary %q", msg)
	}
	if !slices.Equal(progress, []int{0, 100}) {
		t.Errorf("unexpected progress %v", progress)
	}
}

func TestAcquireJobTask_NoArtists(t *testing.T) {
	p := newPipeline(t, &fakeSearcher{}, Options{})
	task := NewAcquireJobTask(p.service, nil)
	job := &jobs.Job{Metadata: map[string]any{"artists": nil}, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	if _, err := task.Execute(context.Background(), job, func(int, string) {}); err == nil {
		t.Error("expected an error without artists")
	}
}
