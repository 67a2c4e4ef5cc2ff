package files

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadArtistsFile reads newline separated artist ids or names. Blank lines and
// lines starting with # are skipped.
func ReadArtistsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artists file %s: %w", path, err)
	}
	defer f.Close()

	var artists []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		artists = append(artists, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read artists file %s: %w", path, err)
	}
	return artists, nil
}
