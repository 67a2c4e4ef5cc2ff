package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/contre95/soulfetch/src/music"
)

// document is the on-disk layout of the ledger file.
type document struct {
	Tracks []music.FailureRecord `json:"tracks"`
}

// JSONLedger is a file backed music.FailureLedger. Every Record call re-reads
// the file so that manual edits between runs are respected.
type JSONLedger struct {
	path string
	mu   sync.Mutex
}

// NewJSONLedger creates a ledger stored at path. The file is created on the
// first Record.
func NewJSONLedger(path string) *JSONLedger {
	return &JSONLedger{path: path}
}

// Path returns the ledger file location.
func (l *JSONLedger) Path() string {
	return l.path
}

// Record appends rec unless the track is already in the ledger.
func (l *JSONLedger) Record(ctx context.Context, rec music.FailureRecord) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		return false, err
	}
	for _, existing := range doc.Tracks {
		if existing.TrackID == rec.TrackID {
			slog.Info("Track already present in failure ledger", "trackID", rec.TrackID, "reason", existing.Reason)
			return false, nil
		}
	}

	doc.Tracks = append(doc.Tracks, rec)
	if err := l.save(doc); err != nil {
		return false, err
	}
	slog.Info("Track added to failure ledger", "trackID", rec.TrackID, "artist", rec.Artist, "reason", rec.Reason)
	return true, nil
}

// Get returns the record for trackID or (nil, nil).
func (l *JSONLedger) Get(ctx context.Context, trackID string) (*music.FailureRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		return nil, err
	}
	for i := range doc.Tracks {
		if doc.Tracks[i].TrackID == trackID {
			rec := doc.Tracks[i]
			return &rec, nil
		}
	}
	return nil, nil
}

// All returns every record in the order they were added.
func (l *JSONLedger) All(ctx context.Context) ([]music.FailureRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		return nil, err
	}
	return doc.Tracks, nil
}

func (l *JSONLedger) load() (*document, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return &document{Tracks: []music.FailureRecord{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read failure ledger %s: %w", l.path, err)
	}
	doc := &document{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode failure ledger %s: %w", l.path, err)
	}
	return doc, nil
}

// save writes doc next to the ledger and renames it into place.
func (l *JSONLedger) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode failure ledger: %w", err)
	}
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary ledger file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write failure ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close failure ledger: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace failure ledger %s: %w", l.path, err)
	}
	return nil
}
