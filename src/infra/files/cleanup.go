package files

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// partialExtensions are left behind by interrupted downloads and transcodes.
var partialExtensions = map[string]bool{
	".part": true,
	".temp": true,
	".tmp":  true,
	".webm": true,
	".webp": true,
	".m4a":  true,
	".opus": true,
	".ytdl": true,
}

// IsPartial reports whether name is an intermediate download artifact.
func IsPartial(name string) bool {
	return partialExtensions[strings.ToLower(filepath.Ext(name))]
}

// RemovePartials deletes the intermediate artifacts in dir. Errors are
// logged and skipped; it returns how many files were removed.
func RemovePartials(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Debug("Could not list directory for partial cleanup", "dir", dir, "error", err)
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !IsPartial(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			slog.Debug("Could not remove partial file", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed
}

// RemoveDir deletes every entry of dir and then dir itself. Entries that
// vanish concurrently are ignored, other failures are logged and the first
// one is returned.
func RemoveDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var firstErr error
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Debug("Could not remove entry", "path", path, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Debug("Could not remove directory", "dir", dir, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PruneEmptyDirs removes empty directories below root, deepest first, and
// returns how many were removed. root itself is kept.
func PruneEmptyDirs(root string) int {
	var dirs []string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})

	removed := 0
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dirs[i]); err != nil {
			slog.Debug("Could not remove empty directory", "dir", dirs[i], "error", err)
			continue
		}
		removed++
	}
	return removed
}
