package music

import (
	"errors"
	"fmt"
	"strings"
)

// DownloadStatus is the acquisition lifecycle state of a track.
type DownloadStatus string

const (
	StatusNotDownloaded DownloadStatus = "not_downloaded"
	StatusDownloading   DownloadStatus = "downloading"
	StatusAvailable     DownloadStatus = "available"
	StatusFailed        DownloadStatus = "failed"
)

// UnknownAlbumName is used for path rendering when a track has no album.
const UnknownAlbumName = "Unknown Album"

var (
	ErrInvalidStatus = errors.New("invalid download status")
	ErrTrackNotFound = errors.New("track not found")
)

// Valid reports whether s is one of the known statuses.
func (s DownloadStatus) Valid() bool {
	switch s {
	case StatusNotDownloaded, StatusDownloading, StatusAvailable, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether s ends a run for the track. Failed tracks are
// picked up again on a later run.
func (s DownloadStatus) IsTerminal() bool {
	return s == StatusAvailable || s == StatusFailed
}

// ParseDownloadStatus maps a stored value to a status. Empty and unknown values
// are treated as not downloaded.
func ParseDownloadStatus(raw string) DownloadStatus {
	s := DownloadStatus(strings.TrimSpace(strings.ToLower(raw)))
	if !s.Valid() {
		return StatusNotDownloaded
	}
	return s
}

// Track represents a single catalog entry to acquire.
type Track struct {
	ID             string
	Name           string
	ArtistIDs      []string
	AlbumID        string
	AlbumName      string
	DownloadStatus DownloadStatus
}

// Validate validates the track fields.
func (t *Track) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("track id cannot be empty")
	}
	if len(t.ID) > 255 {
		return fmt.Errorf("track id cannot exceed 255 characters, got %d: id -> %s", len(t.ID), t.ID)
	}
	if len(t.Name) > 500 {
		return fmt.Errorf("track name cannot exceed 500 characters, got %d: name -> %s", len(t.Name), t.Name)
	}
	if t.DownloadStatus != "" && !t.DownloadStatus.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.DownloadStatus)
	}
	return nil
}

// Album returns the album name used for paths, falling back to UnknownAlbumName.
func (t *Track) Album() string {
	if strings.TrimSpace(t.AlbumName) == "" {
		return UnknownAlbumName
	}
	return t.AlbumName
}
