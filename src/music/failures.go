package music

import (
	"context"
	"fmt"
	"strings"
)

// Reasons recorded in the failure ledger.
const (
	ReasonContentUnavailable = "content is not available"
	ReasonDRMProtected       = "Some tv client https formats have been skipped as they are DRM protected"
	ReasonSignInRequired     = "Sign in required"
	ReasonOther              = "Other Error"
)

// FailureRecord is one track that could not be acquired automatically and
// needs manual attention.
type FailureRecord struct {
	TrackID    string `json:"track_id"`
	Artist     string `json:"artist"`
	SearchName string `json:"search_name"`
	Path       string `json:"path"`
	Command    string `json:"command"`
	Reason     string `json:"reason"`
}

// Validate validates the record fields.
func (r *FailureRecord) Validate() error {
	if strings.TrimSpace(r.TrackID) == "" {
		return fmt.Errorf("failure record track id cannot be empty")
	}
	if strings.TrimSpace(r.Reason) == "" {
		return fmt.Errorf("failure record reason cannot be empty: track -> %s", r.TrackID)
	}
	return nil
}

// FailureLedger is an append-only, deduplicated record of unresolved tracks.
// The first record for a track wins; later ones are ignored.
type FailureLedger interface {
	// Record stores rec unless a record for the same track exists. It reports
	// whether rec was added.
	Record(ctx context.Context, rec FailureRecord) (bool, error)
	// Get returns the record for trackID, or (nil, nil) when none exists.
	Get(ctx context.Context, trackID string) (*FailureRecord, error)
	// All returns every record in insertion order.
	All(ctx context.Context) ([]FailureRecord, error)
}
