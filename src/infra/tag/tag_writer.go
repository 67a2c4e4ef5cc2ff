package tag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bogem/id3v2/v2"
	"github.com/contre95/soulfetch/src/music"
)

// TrackIDDescription is the TXXX frame holding the catalog track id.
const TrackIDDescription = "SOULFETCH_TRACK_ID"

// TagWriter rewrites the ID3 tags of downloaded MP3 files with catalog data.
type TagWriter struct{}

// NewTagWriter creates a new TagWriter
func NewTagWriter() *TagWriter {
	return &TagWriter{}
}

// WriteFileTags replaces title, artist and album with the catalog values and
// stores the track id. Frames written by the downloader, such as the
// embedded thumbnail, are kept.
func (t *TagWriter) WriteFileTags(ctx context.Context, filePath string, track *music.Track, artistName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open MP3 file for tagging: %w", err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(track.Name)
	if artistName != "" {
		tag.SetArtist(artistName)
		tag.AddTextFrame(tag.CommonID("Band/Orchestra/Accompaniment"), id3v2.EncodingUTF8, artistName)
	}
	tag.SetAlbum(track.Album())
	tag.DeleteFrames(tag.CommonID("User defined text information frame"))
	tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
		Encoding:    id3v2.EncodingUTF8,
		Description: TrackIDDescription,
		Value:       track.ID,
	})

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save MP3 tags: %w", err)
	}

	slog.Debug("Tagged MP3 file", "filePath", filePath, "title", track.Name, "trackID", track.ID)
	return nil
}
