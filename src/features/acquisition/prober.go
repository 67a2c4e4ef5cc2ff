package acquisition

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/contre95/soulfetch/src/music"
)

// DefaultMinFileSize is the size a final file must exceed to count as complete.
const DefaultMinFileSize = 1024

// Prober decides whether a track's output already exists on disk and
// reconciles directories left behind by interrupted runs.
type Prober struct {
	tree        OutputTree
	verifier    TagVerifier
	minFileSize int64
}

// NewProber creates a prober. verifier may be nil.
func NewProber(tree OutputTree, verifier TagVerifier, minFileSize int64) *Prober {
	if minFileSize <= 0 {
		minFileSize = DefaultMinFileSize
	}
	return &Prober{tree: tree, verifier: verifier, minFileSize: minFileSize}
}

// Probe inspects the output directory of track. A complete directory has its
// transient files removed and reports Exists. An incomplete one is deleted
// and reports NeedsStatusUpdate. A missing one reports neither.
func (p *Prober) Probe(ctx context.Context, track *music.Track, artistName string) (ProbeResult, error) {
	if err := ctx.Err(); err != nil {
		return ProbeResult{}, err
	}

	dir := p.locate(track, artistName)
	if dir == "" {
		return ProbeResult{}, nil
	}

	expected := filepath.Base(p.tree.OutputPath(artistName, track))
	if file := p.completeFile(ctx, dir, expected); file != "" {
		if removed := p.tree.RemovePartials(dir); removed > 0 {
			slog.Debug("Removed transient files next to finished track", "trackID", track.ID, "dir", dir, "removed", removed)
		}
		return ProbeResult{Exists: true, Dir: dir, File: file}, nil
	}

	slog.Info("Removing incomplete track directory", "trackID", track.ID, "dir", dir)
	if err := p.tree.RemoveDir(dir); err != nil {
		slog.Debug("Incomplete track directory was not fully removed", "dir", dir, "error", err)
	}
	return ProbeResult{NeedsStatusUpdate: true, Dir: dir}, nil
}

// locate returns the directory of track, or "" when there is none. The
// directory the layout renders is checked first. Older trees are searched
// top-down under the artist directory for a folder named after the track id.
func (p *Prober) locate(track *music.Track, artistName string) string {
	expected := p.tree.TrackDir(artistName, track)
	if info, err := os.Stat(expected); err == nil && info.IsDir() {
		return expected
	}

	root := p.tree.ArtistDir(artistName)
	want := p.tree.Segment(track.ID)
	var found string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fs.SkipAll
			}
			return nil
		}
		if path == root || !d.IsDir() {
			return nil
		}
		if d.Name() == want {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	return found
}

// completeFile returns the finished audio file in dir, preferring the name
// the layout renders, or "" when the directory holds none.
func (p *Prober) completeFile(ctx context.Context, dir, expected string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Debug("Could not read track directory", "dir", dir, "error", err)
		}
		return ""
	}

	var candidates []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || p.tree.IsPartial(name) {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), "."+p.tree.Ext()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() <= p.minFileSize {
			continue
		}
		if name == expected {
			candidates = append([]string{name}, candidates...)
		} else {
			candidates = append(candidates, name)
		}
	}

	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if p.verifier != nil {
			if err := p.verifier.Verify(ctx, path); err != nil {
				slog.Debug("Audio file failed tag verification", "path", path, "error", err)
				continue
			}
		}
		return path
	}
	return ""
}
