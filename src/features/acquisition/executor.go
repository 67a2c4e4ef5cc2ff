package acquisition

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/contre95/soulfetch/src/music"
)

// DefaultCompletionMarker is printed by the tool once the transcoded file is
// in place and the source stream has been removed.
const DefaultCompletionMarker = "Deleting original file"

// Executor downloads a resolved candidate, falling back to each listed
// format in turn when the primary download does not complete.
type Executor struct {
	downloader Downloader
	tracker    *Tracker
	tagger      TagWriter
	marker      string
	minFileSize int64
}

// NewExecutor creates an executor. tagger may be nil, in which case the
// downloaded file keeps the platform's metadata. A fallback format only
// counts when it leaves a file larger than minFileSize at the output path.
func NewExecutor(downloader Downloader, tracker *Tracker, tagger TagWriter, marker string, minFileSize int64) *Executor {
	if marker == "" {
		marker = DefaultCompletionMarker
	}
	if minFileSize <= 0 {
		minFileSize = DefaultMinFileSize
	}
	return &Executor{downloader: downloader, tracker: tracker, tagger: tagger, marker: marker, minFileSize: minFileSize}
}

// Download fetches req into req.OutputPath and marks the track available.
// It returns an error wrapping ErrFormatsExhausted when no format produced
// the file. Files already on disk are never removed.
func (e *Executor) Download(ctx context.Context, req DownloadRequest) error {
	url := e.downloader.VideoURL(req.RemoteID)

	var (
		marked  bool
		markErr error
	)
	out, err := e.downloader.DownloadBest(ctx, url, req.OutputPath, func(line string) {
		if marked || !strings.Contains(line, e.marker) {
			return
		}
		marked = true
		markErr = e.tracker.Set(ctx, req.TrackID, music.StatusAvailable)
	})
	if marked {
		if markErr != nil {
			return markErr
		}
		if err != nil {
			slog.Debug("Download reported completion but exited with error", "trackID", req.TrackID, "error", err)
		}
		downloadPaths.WithLabelValues("primary").Inc()
		slog.Info("Track downloaded", "trackID", req.TrackID, "path", req.OutputPath)
		e.retag(ctx, req)
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err == nil {
		err = ErrNoCompletionMarker
	}
	_, reason := Classify(out.Stderr)
	slog.Warn("Primary download did not complete, trying listed formats", "trackID", req.TrackID, "reason", reason, "error", err)
	return e.fallback(ctx, req, url)
}

func (e *Executor) fallback(ctx context.Context, req DownloadRequest, url string) error {
	codes, out, err := e.downloader.ListFormats(ctx, url)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		_, reason := Classify(out.Stderr)
		slog.Warn("Could not list formats", "trackID", req.TrackID, "reason", reason, "error", err)
	}

	for _, code := range codes {
		out, err := e.downloader.DownloadFormat(ctx, url, req.OutputPath, code)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil && out.ExitCode == 0 && !e.written(req.OutputPath) {
			slog.Warn("Format exited cleanly but left no usable file", "trackID", req.TrackID, "format", code, "path", req.OutputPath)
			continue
		}
		if err == nil && out.ExitCode == 0 {
			if err := e.tracker.Set(ctx, req.TrackID, music.StatusAvailable); err != nil {
				return err
			}
			downloadPaths.WithLabelValues("fallback").Inc()
			slog.Info("Track downloaded with fallback format", "trackID", req.TrackID, "format", code, "path", req.OutputPath)
			e.retag(ctx, req)
			return nil
		}
		_, reason := Classify(out.Stderr)
		slog.Debug("Format download failed", "trackID", req.TrackID, "format", code, "reason", reason, "error", err)
	}

	return fmt.Errorf("track %s, %d formats tried: %w", req.TrackID, len(codes), ErrFormatsExhausted)
}

// written reports whether path holds a file larger than the minimum size.
func (e *Executor) written(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > e.minFileSize
}

func (e *Executor) retag(ctx context.Context, req DownloadRequest) {
	if e.tagger == nil || req.Track == nil {
		return
	}
	if err := e.tagger.WriteFileTags(ctx, req.OutputPath, req.Track, req.ArtistName); err != nil {
		slog.Warn("Failed to write catalog tags", "trackID", req.TrackID, "path", req.OutputPath, "error", err)
	}
}
