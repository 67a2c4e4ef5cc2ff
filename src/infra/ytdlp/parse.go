package ytdlp

import (
	"regexp"
	"strings"
)

var formatCodeRegex = regexp.MustCompile(`^\s*(\d+)\s+`)

// ParseFormats extracts the numeric format codes from --list-formats output,
// keeping listing order and dropping duplicates.
func ParseFormats(out string) []string {
	seen := make(map[string]bool)
	var codes []string
	for _, line := range strings.Split(out, "\n") {
		m := formatCodeRegex.FindStringSubmatch(line)
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		codes = append(codes, m[1])
	}
	return codes
}
