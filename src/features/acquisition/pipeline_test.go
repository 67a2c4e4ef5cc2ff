package acquisition_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/contre95/soulfetch/src/features/acquisition"
	"github.com/contre95/soulfetch/src/infra/database"
	"github.com/contre95/soulfetch/src/infra/files"
	"github.com/contre95/soulfetch/src/infra/ledger"
	"github.com/contre95/soulfetch/src/infra/queue"
	"github.com/contre95/soulfetch/src/infra/ytdlp"
	"github.com/contre95/soulfetch/src/music"
)

// fakeTool stands in for yt-dlp. Searches for "Airbag" match, searches for
// "Lucky" hit the age gate, format listing always fails, and downloads write
// a 2 KiB file to the -o path before printing the completion marker.
const fakeTool = `#!/bin/sh
echo "$@" >> "%s"
case "$1" in
ytsearch1:*Airbag*)
	echo '{"id":"abc123","title":"Airbag (Official Audio)","uploader":"Radiohead","duration":284}'
	exit 0
	;;
ytsearch1:*Lucky*)
	echo "ERROR: [youtube] xyz: Sign in to confirm your age. This video may be inappropriate for some users." >&2
	exit 1
	;;
ytsearch1:*)
	exit 0
	;;
--list-formats)
	exit 1
	;;
esac
out=""
while [ $# -gt 0 ]; do
	if [ "$1" = "-o" ]; then
		out="$2"
	fi
	shift
done
dd if=/dev/zero of="$out" bs=2048 count=1 2>/dev/null
echo "[ExtractAudio] Destination: $out"
echo "Deleting original file $out.webm (pass -k to keep this)"
`

type env struct {
	service *acquisition.Service
	catalog *database.SqliteCatalog
	ledger  *ledger.JSONLedger
	layout  *files.Layout
	calls   string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tool is a shell script")
	}
	dir := t.TempDir()
	calls := filepath.Join(dir, "calls.log")
	tool := filepath.Join(dir, "yt-dlp")
	if err := os.WriteFile(tool, []byte(strings.Replace(fakeTool, "%s", calls, 1)), 0755); err != nil {
		t.Fatal(err)
	}

	catalog, err := database.NewSqliteCatalog(filepath.Join(dir, "catalog.sqlite"), 1)
	if err != nil {
		t.Fatalf("NewSqliteCatalog: %v", err)
	}
	t.Cleanup(func() { catalog.Close() })
	seedCatalog(t, catalog)

	failures := ledger.NewJSONLedger(filepath.Join(dir, "failed_tracks.json"))
	layout := files.NewLayout(filepath.Join(dir, "music"), "mp3", false)
	client := ytdlp.NewClient(ytdlp.Options{
		Binary:      tool,
		BaseURL:     "https://www.youtube.com/watch?v=",
		AudioFormat: "mp3",
	})
	tracker := acquisition.NewTracker(catalog, nil)
	service := acquisition.NewService(
		catalog,
		failures,
		layout,
		acquisition.NewProber(layout, nil, acquisition.DefaultMinFileSize),
		acquisition.NewResolver(client, failures, 1, 0),
		acquisition.NewExecutor(client, tracker, nil, acquisition.DefaultCompletionMarker, acquisition.DefaultMinFileSize),
		tracker,
		queue.NewInFlightRegistry(),
		acquisition.Options{Concurrency: 2},
	)
	return &env{service: service, catalog: catalog, ledger: failures, layout: layout, calls: calls}
}

func seedCatalog(t *testing.T, catalog *database.SqliteCatalog) {
	t.Helper()
	ctx := context.Background()
	if err := catalog.AddArtist(ctx, &music.Artist{ID: "ar1", Name: "Radiohead"}); err != nil {
		t.Fatal(err)
	}
	if err := catalog.AddAlbum(ctx, &music.Album{ID: "al1", Name: "OK Computer"}); err != nil {
		t.Fatal(err)
	}
	for _, tr := range []*music.Track{
		{ID: "t1", Name: "Airbag", ArtistIDs: []string{"ar1"}, AlbumID: "al1"},
		{ID: "t2", Name: "Lucky", ArtistIDs: []string{"ar1"}, AlbumID: "al1"},
	} {
		if err := catalog.AddTrack(ctx, tr); err != nil {
			t.Fatal(err)
		}
	}
}

func (e *env) status(t *testing.T, id string) music.DownloadStatus {
	t.Helper()
	track, err := e.catalog.GetTrack(context.Background(), id)
	if err != nil || track == nil {
		t.Fatalf("GetTrack(%s) = %v, %v", id, track, err)
	}
	return track.DownloadStatus
}

func (e *env) searches(t *testing.T, needle string) int {
	t.Helper()
	data, _ := os.ReadFile(e.calls)
	n := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "ytsearch1:") && strings.Contains(line, needle) {
			n++
		}
	}
	return n
}

func TestPipeline_EndToEnd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	report, err := e.service.Run(ctx, acquisition.RunRequest{Artists: []string{"Radiohead"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Downloaded != 1 || report.Unresolved != 1 || report.Errored != 0 {
		t.Errorf("unexpected report %+v", report)
	}

	airbag := &music.Track{ID: "t1", Name: "Airbag", AlbumName: "OK Computer"}
	output := e.layout.OutputPath("Radiohead", airbag)
	info, err := os.Stat(output)
	if err != nil || info.Size() <= acquisition.DefaultMinFileSize {
		t.Fatalf("expected downloaded file at %s: %v", output, err)
	}
	if got := e.status(t, "t1"); got != music.StatusAvailable {
		t.Errorf("t1 status = %s, want available", got)
	}

	if got := e.status(t, "t2"); got != music.StatusNotDownloaded {
		t.Errorf("t2 status = %s, want not_downloaded", got)
	}
	rec, err := e.ledger.Get(ctx, "t2")
	if err != nil || rec == nil {
		t.Fatalf("expected a ledger record for t2: %v", err)
	}
	if rec.Reason != music.ReasonSignInRequired || rec.Artist != "Radiohead" || rec.SearchName != "Radiohead - Lucky official audio" {
		t.Errorf("unexpected ledger record %+v", rec)
	}
	if !strings.Contains(rec.Command, "ytsearch1:Radiohead - Lucky official audio") {
		t.Errorf("expected the search command line, got %q", rec.Command)
	}
	if e.searches(t, "Lucky") != 2 {
		t.Errorf("expected both search strategies for t2, got %d", e.searches(t, "Lucky"))
	}

	// A second run finds t1 in the catalog and does not search for it again.
	before := e.searches(t, "Airbag")
	report, err = e.service.Run(ctx, acquisition.RunRequest{Artists: []string{"ar1"}})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if report.AlreadyPresent != 1 || report.Downloaded != 0 {
		t.Errorf("unexpected second report %+v", report)
	}
	if e.searches(t, "Airbag") != before {
		t.Error("available track was searched again")
	}
	records, _ := e.ledger.All(ctx)
	if len(records) != 1 {
		t.Errorf("expected the ledger to keep one record, got %+v", records)
	}
}

func TestPipeline_FileOnDiskIsNotDownloaded(t *testing.T) {
	e := newEnv(t)
	airbag := &music.Track{ID: "t1", Name: "Airbag", AlbumName: "OK Computer"}
	output := e.layout.OutputPath("Radiohead", airbag)
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(output, make([]byte, 4096), 0644); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(output+".part", []byte("x"), 0644)

	report, err := e.service.Run(context.Background(), acquisition.RunRequest{Artists: []string{"ar1"}, TrackIDs: []string{"t1"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.AlreadyPresent != 1 || report.TracksSeen != 1 {
		t.Errorf("unexpected report %+v", report)
	}
	if e.searches(t, "Airbag") != 0 {
		t.Error("track on disk must not be searched")
	}
	if got := e.status(t, "t1"); got != music.StatusAvailable {
		t.Errorf("t1 status = %s, want available", got)
	}
	if _, err := os.Stat(output + ".part"); !os.IsNotExist(err) {
		t.Error("expected leftover partial to be removed")
	}
}
