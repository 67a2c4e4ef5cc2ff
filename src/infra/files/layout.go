package files

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/contre95/soulfetch/src/music"
	"github.com/gosimple/unidecode"
)

var (
	reservedChars  = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f\x7f]`)
	repeatedSpaces = regexp.MustCompile(`\s+`)
	windowsNames   = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[0-9]|lpt[0-9])(\..*)?$`)
)

const maxSegmentBytes = 255

// Sanitize makes s safe to use as a single path segment. Reserved
// characters become spaces, whitespace is collapsed and leading or trailing
// dots and spaces are trimmed.
func Sanitize(s string) string {
	sanitized := reservedChars.ReplaceAllString(s, " ")
	sanitized = repeatedSpaces.ReplaceAllString(sanitized, " ")
	sanitized = strings.Trim(sanitized, " .")
	if windowsNames.MatchString(sanitized) {
		sanitized = "_" + sanitized
	}
	if len(sanitized) > maxSegmentBytes {
		sanitized = truncate(sanitized, maxSegmentBytes)
	}
	if sanitized == "" {
		return "_"
	}
	return sanitized
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return strings.TrimRight(s[:cut], " .")
}

// Layout renders where a track is stored:
// <root>/<artist>/<album>/<track id>/<track name>.<ext>
type Layout struct {
	root    string
	ext     string
	asciify bool
}

// NewLayout creates a Layout. With asciify set every segment is transliterated to ASCII.
func NewLayout(root, ext string, asciify bool) *Layout {
	return &Layout{root: root, ext: strings.TrimPrefix(ext, "."), asciify: asciify}
}

// Ext returns the final file extension without the dot.
func (l *Layout) Ext() string {
	return l.ext
}

// Segment sanitizes one path segment.
func (l *Layout) Segment(s string) string {
	if l.asciify {
		s = unidecode.Unidecode(s)
	}
	return Sanitize(s)
}

// ArtistDir is the directory holding every track of an artist.
func (l *Layout) ArtistDir(artistName string) string {
	return filepath.Join(l.root, l.Segment(artistName))
}

// TrackDir is the directory owned by a single track.
func (l *Layout) TrackDir(artistName string, track *music.Track) string {
	return filepath.Join(l.ArtistDir(artistName), l.Segment(track.Album()), l.Segment(track.ID))
}

// OutputPath is the final audio file of a track.
func (l *Layout) OutputPath(artistName string, track *music.Track) string {
	return filepath.Join(l.TrackDir(artistName, track), l.fileName(track.Name))
}

// fileName shortens name so that the extension still fits in one segment.
func (l *Layout) fileName(name string) string {
	base := truncate(l.Segment(name), maxSegmentBytes-len(l.ext)-1)
	if base == "" {
		base = "_"
	}
	return base + "." + l.ext
}

// IsPartial reports whether name is an intermediate download artifact.
func (l *Layout) IsPartial(name string) bool {
	return IsPartial(name)
}

// RemovePartials deletes intermediate artifacts in dir.
func (l *Layout) RemovePartials(dir string) int {
	return RemovePartials(dir)
}

// RemoveDir deletes dir and everything in it.
func (l *Layout) RemoveDir(dir string) error {
	return RemoveDir(dir)
}

// PruneEmpty removes empty directories below dir.
func (l *Layout) PruneEmpty(dir string) int {
	return PruneEmptyDirs(dir)
}
