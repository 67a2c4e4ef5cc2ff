package acquisition

import (
	"context"
	"time"

	"github.com/contre95/soulfetch/src/music"
)

// Candidate is a remote match for a track. It only lives for one attempt.
type Candidate struct {
	RemoteID string  `json:"remote_id"`
	Title    string  `json:"title"`
	Uploader string  `json:"uploader"`
	Duration float64 `json:"duration"`
	Score    float64 `json:"score"`
}

// SearchRequest holds what the resolver needs to search for a track and to
// describe a failure in the ledger.
type SearchRequest struct {
	TrackID    string
	TrackName  string
	ArtistName string
	AlbumName  string
	OutputPath string
}

// Query returns the free-text search query for the request.
func (r SearchRequest) Query() string {
	return r.ArtistName + " - " + r.TrackName + " official audio"
}

// DownloadRequest identifies what to download and where to write it.
type DownloadRequest struct {
	TrackID    string
	Track      *music.Track
	ArtistName string
	RemoteID   string
	OutputPath string
}

// ProbeResult is the outcome of inspecting a track's output directory.
type ProbeResult struct {
	Exists            bool
	NeedsStatusUpdate bool
	Dir               string
	File              string
}

// RunRequest selects what a pipeline run processes. Artists are ids or
// names. When TrackIDs is set only those tracks are considered.
type RunRequest struct {
	Artists  []string
	TrackIDs []string
}

// RunReport summarizes a pipeline run.
type RunReport struct {
	ArtistsProcessed int           `json:"artists_processed"`
	ArtistsSkipped   int           `json:"artists_skipped"`
	TracksSeen       int           `json:"tracks_seen"`
	AlreadyPresent   int           `json:"already_present"`
	Downloaded       int           `json:"downloaded"`
	Unresolved       int           `json:"unresolved"`
	Failed           int           `json:"failed"`
	Errored          int           `json:"errored"`
	Duration         time.Duration `json:"duration"`
}

// InFlight describes a track that is being acquired right now.
type InFlight struct {
	TrackID   string    `json:"track_id"`
	TrackName string    `json:"track_name"`
	Artist    string    `json:"artist"`
	StartedAt time.Time `json:"started_at"`
}

// ToolOutput is what one invocation of the external tool produced.
// ExitCode is -1 when the process could not start or was killed.
type ToolOutput struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
}

// Searcher runs metadata searches against the platform.
type Searcher interface {
	SearchArgs(query string, extra ...string) []string
	Search(ctx context.Context, query string, extra ...string) (ToolOutput, error)
	CommandLine(args ...string) string
}

// Downloader fetches and transcodes audio from the platform.
type Downloader interface {
	VideoURL(remoteID string) string
	DownloadBest(ctx context.Context, url, output string, onLine func(string)) (ToolOutput, error)
	ListFormats(ctx context.Context, url string) ([]string, ToolOutput, error)
	DownloadFormat(ctx context.Context, url, output, format string) (ToolOutput, error)
}

// OutputTree renders and maintains the on-disk layout of acquired tracks.
type OutputTree interface {
	Ext() string
	Segment(s string) string
	ArtistDir(artistName string) string
	TrackDir(artistName string, track *music.Track) string
	OutputPath(artistName string, track *music.Track) string
	IsPartial(name string) bool
	RemovePartials(dir string) int
	RemoveDir(dir string) error
	PruneEmpty(dir string) int
}

// TagVerifier checks that a finished file carries readable tags.
type TagVerifier interface {
	Verify(ctx context.Context, filePath string) error
}

// TagWriter writes catalog metadata into a finished file.
type TagWriter interface {
	WriteFileTags(ctx context.Context, filePath string, track *music.Track, artistName string) error
}

// Registry tracks running acquisitions so they can be listed and cancelled.
type Registry interface {
	Add(entry InFlight, cancel context.CancelFunc) error
	Remove(trackID string)
	GetAll() []InFlight
	Cancel(trackID string) bool
	CancelAll() int
}
