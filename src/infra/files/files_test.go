package files

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/contre95/soulfetch/src/music"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"AC/DC", "AC DC"},
		{`What? "Now" <live>`, "What Now live"},
		{"  trailing dots... ", "trailing dots"},
		{"tab\there", "tab here"},
		{"CON", "_CON"},
		{"nul.txt", "_nul.txt"},
		{"...", "_"},
		{"", "_"},
		{"Beyoncé", "Beyoncé"},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.input); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	long := strings.Repeat("é", 200)
	if got := Sanitize(long); len(got) > maxSegmentBytes || !strings.HasPrefix(long, got) {
		t.Errorf("expected truncation on a rune boundary, got %d bytes", len(got))
	}
}

func TestLayout(t *testing.T) {
	track := &music.Track{ID: "trk:1", Name: "Song/Part 1", AlbumName: "Album?"}

	layout := NewLayout("/music", ".mp3", false)
	if got, want := layout.TrackDir("Björk", track), filepath.Join("/music", "Björk", "Album", "trk 1"); got != want {
		t.Errorf("TrackDir() = %s, want %s", got, want)
	}
	if got, want := layout.OutputPath("Björk", track), filepath.Join("/music", "Björk", "Album", "trk 1", "Song Part 1.mp3"); got != want {
		t.Errorf("OutputPath() = %s, want %s", got, want)
	}

	noAlbum := &music.Track{ID: "t2", Name: "Loose"}
	if got := layout.TrackDir("A", noAlbum); got != filepath.Join("/music", "A", music.UnknownAlbumName, "t2") {
		t.Errorf("expected unknown album fallback, got %s", got)
	}

	ascii := NewLayout("/music", "mp3", true)
	if got := ascii.ArtistDir("Björk"); got != filepath.Join("/music", "Bjork") {
		t.Errorf("expected transliterated artist dir, got %s", got)
	}
}

func TestLayout_LongNameKeepsExtension(t *testing.T) {
	layout := NewLayout("/music", "mp3", false)
	for _, name := range []string{strings.Repeat("Long Title ", 30), strings.Repeat("日本", 50)} {
		out := layout.OutputPath("Artist", &music.Track{ID: "t1", Name: name})
		base := filepath.Base(out)
		if filepath.Ext(out) != ".mp3" {
			t.Errorf("expected .mp3 extension, got %q", base)
		}
		if len(base) > maxSegmentBytes {
			t.Errorf("file name is %d bytes, want at most %d", len(base), maxSegmentBytes)
		}
		if !utf8.ValidString(base) {
			t.Errorf("file name split a rune: %q", base)
		}
	}
}

func TestIsPartial(t *testing.T) {
	for name, want := range map[string]bool{
		"song.mp3":      false,
		"song.mp3.part": true,
		"song.webm":     true,
		"cover.WEBP":    true,
		"song.temp.mp3": false,
		"song.m4a":      true,
	} {
		if got := IsPartial(name); got != want {
			t.Errorf("IsPartial(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestRemovePartials(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"song.mp3", "song.webm", "song.mp3.part", "cover.webp"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	if removed := RemovePartials(dir); removed != 3 {
		t.Errorf("expected 3 removed files, got %d", removed)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "song.mp3" {
		t.Errorf("expected only song.mp3 to remain, got %v", entries)
	}
}

func TestRemoveDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "track")
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "a.part"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, "nested", "b"), []byte("x"), 0644)

	if err := RemoveDir(dir); err != nil {
		t.Fatalf("RemoveDir: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("expected directory to be gone, got %v", err)
	}
	if err := RemoveDir(dir); err != nil {
		t.Errorf("expected missing directory to be ignored, got %v", err)
	}
}

func TestPruneEmptyDirs(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "artist", "album", "t1")
	os.MkdirAll(keep, 0755)
	os.WriteFile(filepath.Join(keep, "song.mp3"), []byte("x"), 0644)
	os.MkdirAll(filepath.Join(root, "artist", "empty-album", "t2"), 0755)
	os.MkdirAll(filepath.Join(root, "artist", "album", "t3"), 0755)

	if removed := PruneEmptyDirs(root); removed != 3 {
		t.Errorf("expected 3 removed directories, got %d", removed)
	}
	if _, err := os.Stat(filepath.Join(root, "artist", "empty-album")); !os.IsNotExist(err) {
		t.Error("expected empty album directory to be removed")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Error("expected populated directory to stay")
	}
	if _, err := os.Stat(root); err != nil {
		t.Error("expected root to stay")
	}
}

func TestReadArtistsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artists.txt")
	content := "Radiohead\n\n  # comment\nar-42  \r\nPortishead"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := ReadArtistsFile(path)
	if err != nil {
		t.Fatalf("ReadArtistsFile: %v", err)
	}
	want := []string{"Radiohead", "ar-42", "Portishead"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadArtistsFile() = %v, want %v", got, want)
	}

	if _, err := ReadArtistsFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
