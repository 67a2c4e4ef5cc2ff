package acquisition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// searchRecord is the subset of a --dump-json record the pipeline reads.
type searchRecord struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Uploader string  `json:"uploader"`
	Channel  string  `json:"channel"`
	Duration float64 `json:"duration"`
}

// DecodeCandidate decodes the first JSON record of a search. It returns
// (nil, nil) when out is blank and an error when the record is malformed or
// has no id.
func DecodeCandidate(out []byte) (*Candidate, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, nil
	}
	if i := bytes.IndexByte(out, '\n'); i >= 0 {
		out = out[:i]
	}
	var rec searchRecord
	if err := json.Unmarshal(out, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode search result: %w", err)
	}
	if strings.TrimSpace(rec.ID) == "" {
		return nil, fmt.Errorf("search result has no id")
	}
	uploader := rec.Uploader
	if uploader == "" {
		uploader = rec.Channel
	}
	return &Candidate{
		RemoteID: rec.ID,
		Title:    rec.Title,
		Uploader: uploader,
		Duration: rec.Duration,
	}, nil
}
