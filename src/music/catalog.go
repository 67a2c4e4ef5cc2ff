package music

import (
	"context"
)

// Catalog is the repository the acquisition pipeline reads tracks from and
// writes download statuses to.
type Catalog interface {
	// GetArtist returns the artist with the given id, or the first artist whose
	// name contains ref when no id matches. It returns (nil, nil) when nothing matches.
	GetArtist(ctx context.Context, ref string) (*Artist, error)
	// GetArtistTracks returns every track linked to the artist, with album names joined.
	GetArtistTracks(ctx context.Context, artistID string) ([]*Track, error)
	// GetArtistProgress counts the artist's tracks by availability.
	GetArtistProgress(ctx context.Context, artistID string) (ArtistProgress, error)
	// GetTrack returns a single track, or (nil, nil) when it does not exist.
	GetTrack(ctx context.Context, id string) (*Track, error)
	// UpdateTrackStatus sets download_status for one track.
	UpdateTrackStatus(ctx context.Context, trackID string, status DownloadStatus) error
	// GetStatusDistribution counts tracks per download status.
	GetStatusDistribution(ctx context.Context) (map[DownloadStatus]int, error)
}
