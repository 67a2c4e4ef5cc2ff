package acquisition

import (
	"errors"
	"strings"

	"github.com/contre95/soulfetch/src/music"
)

var (
	// ErrFormatsExhausted is returned by the executor when neither the
	// primary download nor any listed format produced the file.
	ErrFormatsExhausted = errors.New("all download formats failed")
	// ErrNoCompletionMarker means the primary download ended without
	// reporting a finished transcode.
	ErrNoCompletionMarker = errors.New("download ended without completion marker")
	// ErrAlreadyInFlight is returned when a track is already being acquired.
	ErrAlreadyInFlight = errors.New("track already in flight")
)

// Kind classifies why an acquisition step failed.
type Kind int

const (
	// KindNetwork is local network trouble. Never ledgered.
	KindNetwork Kind = iota + 1
	// KindUnavailable means the platform has nothing matching the track.
	KindUnavailable
	// KindRestricted covers DRM and age gated content.
	KindRestricted
	// KindTool is a process failure: spawn errors, timeouts, malformed or
	// oversized output. It triggers the next strategy.
	KindTool
	// KindPartial marks leftovers of an interrupted download.
	KindPartial
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindUnavailable:
		return "unavailable"
	case KindRestricted:
		return "restricted"
	case KindTool:
		return "tool"
	case KindPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// Error is a classified acquisition failure.
type Error struct {
	Kind    Kind
	Reason  string
	Command string
	Stderr  string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

var networkMarkers = []string{
	"getaddrinfo failed",
	"Temporary failure in name resolution",
	"Name or service not known",
	"nodename nor servname provided",
	"Network is unreachable",
}

// IsNetworkFailure reports whether stderr shows the local network is down.
func IsNetworkFailure(stderr string) bool {
	for _, marker := range networkMarkers {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}

// Classify maps the diagnostics of a failed command to a kind and the reason
// recorded in the failure ledger.
func Classify(stderr string) (Kind, string) {
	switch {
	case IsNetworkFailure(stderr):
		return KindNetwork, ""
	case strings.Contains(stderr, "Some tv client https formats"):
		return KindRestricted, music.ReasonDRMProtected
	case strings.Contains(stderr, "Sign in to confirm your age"):
		return KindRestricted, music.ReasonSignInRequired
	default:
		return KindTool, music.ReasonOther
	}
}
