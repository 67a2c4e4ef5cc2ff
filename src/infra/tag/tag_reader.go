package tag

import (
	"context"
	"fmt"
	"os"

	"github.com/dhowden/tag"
)

// TagReader checks that finished audio files carry readable metadata.
type TagReader struct{}

// NewTagReader creates a new TagReader
func NewTagReader() *TagReader {
	return &TagReader{}
}

// Verify opens filePath and parses its tags. A file without a recognizable
// tag block is reported as an error.
func (r *TagReader) Verify(ctx context.Context, filePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if _, err := tag.ReadFrom(file); err != nil {
		return fmt.Errorf("failed to read tags from %s: %w", filePath, err)
	}
	return nil
}

// Title returns the title tag of filePath.
func (r *TagReader) Title(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	tags, err := tag.ReadFrom(file)
	if err != nil {
		return "", fmt.Errorf("failed to read tags: %w", err)
	}
	return tags.Title(), nil
}
