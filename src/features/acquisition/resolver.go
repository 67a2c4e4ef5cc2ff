package acquisition

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/contre95/soulfetch/src/music"
	"golang.org/x/time/rate"
)

// searchStrategy is one way of invoking the search. Strategies are tried in
// order until one returns a well-formed answer.
type searchStrategy struct {
	name  string
	extra []string
}

var searchStrategies = []searchStrategy{
	{name: "default"},
	{name: "missing_pot", extra: []string{"--extractor-args", "youtube:formats=missing_pot"}},
}

// Resolver turns a catalog track into a remote candidate. Tracks that cannot
// be resolved are written to the failure ledger.
type Resolver struct {
	searcher Searcher
	ledger   music.FailureLedger
	limiter  *rate.Limiter
	attempts int
}

// NewResolver creates a resolver. retries is how many strategies are tried
// after the first one. ratePerSecond <= 0 disables search rate limiting.
func NewResolver(searcher Searcher, ledger music.FailureLedger, retries int, ratePerSecond float64) *Resolver {
	if retries < 0 {
		retries = 0
	}
	attempts := min(1+retries, len(searchStrategies))

	limiter := rate.NewLimiter(rate.Inf, 1)
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Duration(float64(time.Second)/ratePerSecond)), 1)
	}
	return &Resolver{searcher: searcher, ledger: ledger, limiter: limiter, attempts: attempts}
}

// Resolve searches for req. It returns (nil, nil) when no usable candidate
// was found; the reason, if any, is already in the ledger. Errors are only
// returned when ctx is done.
func (r *Resolver) Resolve(ctx context.Context, req SearchRequest) (*Candidate, error) {
	if strings.TrimSpace(req.TrackName) == "" && strings.TrimSpace(req.ArtistName) == "" {
		slog.Warn("Skipping search for track without name and artist", "trackID", req.TrackID)
		return nil, nil
	}
	query := req.Query()

	for i := 0; i < r.attempts; i++ {
		strategy := searchStrategies[i]
		last := i == r.attempts-1
		command := r.searcher.CommandLine(r.searcher.SearchArgs(query, strategy.extra...)...)

		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		out, err := r.searcher.Search(ctx, query, strategy.extra...)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if err != nil && out.ExitCode > 0 {
			kind, reason := Classify(out.Stderr)
			if kind == KindNetwork {
				slog.Warn("Search failed, network unavailable", "trackID", req.TrackID, "strategy", strategy.name)
				continue
			}
			slog.Warn("Search command failed", "trackID", req.TrackID, "strategy", strategy.name, "reason", reason, "exitCode", out.ExitCode)
			r.record(ctx, req, command, reason)
			continue
		}

		if err != nil {
			r.toolFailure(ctx, req, strategy, command, out, err, last)
			continue
		}

		candidate, err := DecodeCandidate(out.Stdout)
		if err != nil {
			r.toolFailure(ctx, req, strategy, command, out, err, last)
			continue
		}
		if candidate == nil {
			if IsNetworkFailure(out.Stderr) {
				slog.Warn("Search returned nothing, network unavailable", "trackID", req.TrackID)
				return nil, nil
			}
			slog.Info("No search result for track", "trackID", req.TrackID, "query", query)
			r.record(ctx, req, command, music.ReasonContentUnavailable)
			return nil, nil
		}

		candidate.Score = strutil.Similarity(
			strings.ToLower(req.ArtistName+" "+req.TrackName),
			strings.ToLower(candidate.Uploader+" "+candidate.Title),
			metrics.NewJaroWinkler(),
		)
		slog.Debug("Resolved track", "trackID", req.TrackID, "remoteID", candidate.RemoteID, "title", candidate.Title, "score", candidate.Score, "strategy", strategy.name)
		return candidate, nil
	}

	slog.Info("Search strategies exhausted", "trackID", req.TrackID, "attempts", r.attempts)
	return nil, nil
}

// toolFailure handles a search that could not run to completion or produced
// unusable output. Only the last strategy writes to the ledger.
func (r *Resolver) toolFailure(ctx context.Context, req SearchRequest, strategy searchStrategy, command string, out ToolOutput, err error, last bool) {
	failure := &Error{Kind: KindTool, Reason: music.ReasonOther, Command: command, Stderr: out.Stderr, Err: err}
	slog.Warn("Search attempt failed", "trackID", req.TrackID, "strategy", strategy.name, "error", failure)
	if last && !IsNetworkFailure(out.Stderr) {
		r.record(ctx, req, command, music.ReasonOther)
	}
}

func (r *Resolver) record(ctx context.Context, req SearchRequest, command, reason string) {
	if r.ledger == nil {
		return
	}
	rec := music.FailureRecord{
		TrackID:    req.TrackID,
		Artist:     req.ArtistName,
		SearchName: req.Query(),
		Path:       req.OutputPath,
		Command:    command,
		Reason:     reason,
	}
	if _, err := r.ledger.Record(ctx, rec); err != nil {
		slog.Error("Failed to write failure ledger", "trackID", req.TrackID, "error", err)
	}
}
