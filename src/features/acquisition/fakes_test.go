package acquisition

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/contre95/soulfetch/src/music"
)

var (
	errFormatFailed   = errors.New("exit status 1")
	errUnreadableTags = errors.New("no readable tags")
)

// memCatalog is an in-memory music.Catalog.
type memCatalog struct {
	mu       sync.Mutex
	artists  []*music.Artist
	tracks   map[string][]*music.Track
	statuses map[string]music.DownloadStatus
	writes   []string
	failOn   map[string]error
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		tracks:   make(map[string][]*music.Track),
		statuses: make(map[string]music.DownloadStatus),
		failOn:   make(map[string]error),
	}
}

func (m *memCatalog) addArtist(artist *music.Artist, tracks ...*music.Track) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artists = append(m.artists, artist)
	m.tracks[artist.ID] = append(m.tracks[artist.ID], tracks...)
	for _, t := range tracks {
		status := t.DownloadStatus
		if status == "" {
			status = music.StatusNotDownloaded
		}
		m.statuses[t.ID] = status
	}
}

func (m *memCatalog) GetArtist(ctx context.Context, ref string) (*music.Artist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["GetArtist"]; err != nil {
		return nil, err
	}
	for _, a := range m.artists {
		if a.ID == ref {
			return a, nil
		}
	}
	for _, a := range m.artists {
		if strings.Contains(a.Name, ref) {
			return a, nil
		}
	}
	return nil, nil
}

func (m *memCatalog) GetArtistTracks(ctx context.Context, artistID string) ([]*music.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*music.Track
	for _, t := range m.tracks[artistID] {
		cp := *t
		cp.DownloadStatus = m.statuses[t.ID]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memCatalog) GetArtistProgress(ctx context.Context, artistID string) (music.ArtistProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var p music.ArtistProgress
	for _, t := range m.tracks[artistID] {
		p.Total++
		if m.statuses[t.ID] == music.StatusAvailable {
			p.Available++
		}
	}
	return p, nil
}

func (m *memCatalog) GetTrack(ctx context.Context, id string) (*music.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tracks := range m.tracks {
		for _, t := range tracks {
			if t.ID == id {
				cp := *t
				cp.DownloadStatus = m.statuses[id]
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (m *memCatalog) UpdateTrackStatus(ctx context.Context, trackID string, status music.DownloadStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statuses[trackID]; !ok {
		return music.ErrTrackNotFound
	}
	m.statuses[trackID] = status
	m.writes = append(m.writes, trackID+"="+string(status))
	return nil
}

func (m *memCatalog) GetStatusDistribution(ctx context.Context) (map[music.DownloadStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dist := make(map[music.DownloadStatus]int)
	for _, s := range m.statuses {
		dist[s]++
	}
	return dist, nil
}

func (m *memCatalog) status(trackID string) music.DownloadStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[trackID]
}

func (m *memCatalog) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

// memLedger is an in-memory music.FailureLedger. The first record per track wins.
type memLedger struct {
	mu      sync.Mutex
	records []music.FailureRecord
	calls   int
}

func (l *memLedger) Record(ctx context.Context, rec music.FailureRecord) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	for _, r := range l.records {
		if r.TrackID == rec.TrackID {
			return false, nil
		}
	}
	l.records = append(l.records, rec)
	return true, nil
}

func (l *memLedger) Get(ctx context.Context, trackID string) (*music.FailureRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.records {
		if r.TrackID == trackID {
			rec := r
			return &rec, nil
		}
	}
	return nil, nil
}

func (l *memLedger) All(ctx context.Context) ([]music.FailureRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]music.FailureRecord(nil), l.records...), nil
}

// searchReply is one scripted answer of fakeSearcher.
type searchReply struct {
	out ToolOutput
	err error
}

// fakeSearcher answers searches from a script, repeating the last reply.
type fakeSearcher struct {
	mu      sync.Mutex
	replies []searchReply
	byQuery map[string][]searchReply
	calls   [][]string
	perQ    map[string]int
}

func (f *fakeSearcher) SearchArgs(query string, extra ...string) []string {
	return append([]string{"ytsearch1:" + query, "--dump-json"}, extra...)
}

func (f *fakeSearcher) Search(ctx context.Context, query string, extra ...string) (ToolOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), extra...))
	if f.perQ == nil {
		f.perQ = make(map[string]int)
	}
	n := f.perQ[query]
	f.perQ[query]++
	replies := f.replies
	if r, ok := f.byQuery[query]; ok {
		replies = r
	}
	if len(replies) == 0 {
		return ToolOutput{}, nil
	}
	if n >= len(replies) {
		n = len(replies) - 1
	}
	return replies[n].out, replies[n].err
}

func (f *fakeSearcher) CommandLine(args ...string) string {
	return "yt-dlp " + strings.Join(args, " ")
}

func (f *fakeSearcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeDownloader scripts the primary download and the per-format fallback.
type fakeDownloader struct {
	mu          sync.Mutex
	bestLines   []string
	bestByURL   map[string][]string
	bestOut     ToolOutput
	bestErr     error
	bestHook    func(url, output string)
	delay       time.Duration
	active      int
	maxActive   int
	formats     []string
	listErr     error
	okFormats   map[string]bool
	formatSize  int
	formatCalls []string
	listCalls   int
}

func (f *fakeDownloader) VideoURL(remoteID string) string {
	return "https://music.example/watch?v=" + remoteID
}

func (f *fakeDownloader) DownloadBest(ctx context.Context, url, output string, onLine func(string)) (ToolOutput, error) {
	f.mu.Lock()
	f.active++
	f.maxActive = max(f.maxActive, f.active)
	lines := f.bestLines
	if f.bestByURL != nil {
		lines = f.bestByURL[url]
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.bestHook != nil {
		f.bestHook(url, output)
	}
	for _, line := range lines {
		onLine(line)
	}
	return f.bestOut, f.bestErr
}

func (f *fakeDownloader) peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

func (f *fakeDownloader) ListFormats(ctx context.Context, url string) ([]string, ToolOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, ToolOutput{ExitCode: 1, Stderr: f.listErr.Error()}, f.listErr
	}
	return f.formats, ToolOutput{}, nil
}

func (f *fakeDownloader) DownloadFormat(ctx context.Context, url, output, format string) (ToolOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.formatCalls = append(f.formatCalls, format)
	if f.okFormats[format] {
		if f.formatSize > 0 {
			if err := os.WriteFile(output, make([]byte, f.formatSize), 0644); err != nil {
				return ToolOutput{ExitCode: 1, Stderr: err.Error()}, err
			}
		}
		return ToolOutput{ExitCode: 0}, nil
	}
	return ToolOutput{ExitCode: 1, Stderr: "ERROR: requested format is not available"}, errFormatFailed
}

// statusLog collects the statuses written per track.
type statusLog struct {
	mu  sync.Mutex
	seq map[string][]music.DownloadStatus
}

func newStatusLog() *statusLog {
	return &statusLog{seq: make(map[string][]music.DownloadStatus)}
}

func (l *statusLog) observe(trackID string, status music.DownloadStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq[trackID] = append(l.seq[trackID], status)
}

func (l *statusLog) get(trackID string) []music.DownloadStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]music.DownloadStatus(nil), l.seq[trackID]...)
}

// fakeTagWriter records retag calls.
type fakeTagWriter struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (f *fakeTagWriter) WriteFileTags(ctx context.Context, filePath string, track *music.Track, artistName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, filePath)
	return f.err
}

// fakeVerifier rejects every file listed in bad.
type fakeVerifier struct {
	bad map[string]bool
}

func (f *fakeVerifier) Verify(ctx context.Context, filePath string) error {
	if f.bad[filePath] {
		return errUnreadableTags
	}
	return nil
}
