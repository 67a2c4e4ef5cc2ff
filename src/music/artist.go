package music

import (
	"fmt"
	"strings"
)

// Artist represents a music artist in the catalog.
type Artist struct {
	ID   string
	Name string
}

// Validate validates the artist fields.
func (a *Artist) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("artist id cannot be empty")
	}
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("artist name cannot be empty")
	}
	if len(a.Name) > 500 {
		return fmt.Errorf("artist name cannot exceed 500 characters")
	}
	return nil
}

// ArtistProgress holds how many of an artist's tracks are already available.
type ArtistProgress struct {
	Total     int
	Available int
}

// Percentage returns the rounded-down share of available tracks, 0 when the
// artist has no tracks.
func (p ArtistProgress) Percentage() int {
	if p.Total <= 0 {
		return 0
	}
	return p.Available * 100 / p.Total
}

// Complete reports whether every track of the artist is available.
func (p ArtistProgress) Complete() bool {
	return p.Total > 0 && p.Available >= p.Total
}
