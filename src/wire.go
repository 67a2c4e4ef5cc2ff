package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/contre95/soulfetch/src/features/acquisition"
	"github.com/contre95/soulfetch/src/features/config"
	"github.com/contre95/soulfetch/src/features/jobs"
	"github.com/contre95/soulfetch/src/features/metrics"
	"github.com/contre95/soulfetch/src/infra/database"
	"github.com/contre95/soulfetch/src/infra/files"
	"github.com/contre95/soulfetch/src/infra/ledger"
	"github.com/contre95/soulfetch/src/infra/queue"
	"github.com/contre95/soulfetch/src/infra/tag"
	"github.com/contre95/soulfetch/src/infra/ytdlp"
	"golang.org/x/sync/errgroup"
)

// components holds every long-lived service built from the configuration.
type components struct {
	cfg         *config.Manager
	catalog     *database.SqliteCatalog
	ledger      *ledger.JSONLedger
	acquisition *acquisition.Service
	jobs        *jobs.Service
	metrics     *metrics.Service
}

// build wires the pipeline from cfg. The caller closes the catalog.
func build(cfg *config.Manager) (*components, error) {
	c := cfg.Get()

	catalog, err := database.NewSqliteCatalog(c.Database.Path, c.Database.Retries)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	failures := ledger.NewJSONLedger(c.Ledger.Path)

	layout := files.NewLayout(c.OutputPath, c.YtDlp.AudioFormat, c.Pipeline.Asciify)
	client := ytdlp.NewClient(ytdlp.Options{
		Binary:          c.YtDlp.Binary,
		BaseURL:         c.YtDlp.BaseURL,
		AudioFormat:     c.YtDlp.AudioFormat,
		AudioQuality:    c.YtDlp.AudioQuality,
		SearchTimeout:   c.YtDlp.SearchTimeout,
		ListTimeout:     c.YtDlp.ListTimeout,
		DownloadTimeout: c.YtDlp.DownloadTimeout,
		MaxOutputBytes:  c.YtDlp.MaxOutputBytes,
	})

	var verifier acquisition.TagVerifier
	if c.Tagging.Verify {
		verifier = tag.NewTagReader()
	}
	var tagger acquisition.TagWriter
	if c.Tagging.Retag {
		tagger = tag.NewTagWriter()
	}

	tracker := acquisition.NewTracker(catalog, nil)
	service := acquisition.NewService(
		catalog,
		failures,
		layout,
		acquisition.NewProber(layout, verifier, c.Pipeline.MinFileSize),
		acquisition.NewResolver(client, failures, c.Pipeline.SearchRetries, c.YtDlp.SearchRatePerSecond),
		acquisition.NewExecutor(client, tracker, tagger, c.YtDlp.CompletionMarker, c.Pipeline.MinFileSize),
		tracker,
		queue.NewInFlightRegistry(),
		acquisition.Options{
			Concurrency:  c.Pipeline.Concurrency,
			SkipComplete: c.Pipeline.SkipComplete,
		},
	)

	metricsService := metrics.NewService(catalog, failures)
	jobService := jobs.NewService(&c.Jobs)
	jobService.RegisterHandler(acquisition.JobType, jobs.NewBaseTaskHandler(acquisition.NewAcquireJobTask(service, artistSource(cfg))))
	jobService.RegisterHandler(metrics.JobType, jobs.NewBaseTaskHandler(metrics.NewSnapshotTask(metricsService)))

	slog.Info("Pipeline ready",
		"output", c.OutputPath,
		"database", c.Database.Path,
		"ledger", c.Ledger.Path,
		"concurrency", c.Pipeline.Concurrency,
		"verifyTags", c.Tagging.Verify,
		"retag", c.Tagging.Retag)

	return &components{
		cfg:         cfg,
		catalog:     catalog,
		ledger:      failures,
		acquisition: service,
		jobs:        jobService,
		metrics:     metricsService,
	}, nil
}

// artistSource reads the configured artists file, or returns nil when none is set.
func artistSource(cfg *config.Manager) acquisition.ArtistSource {
	if cfg.Get().ArtistsFile == "" {
		return nil
	}
	return func() ([]string, error) {
		return files.ReadArtistsFile(cfg.Get().ArtistsFile)
	}
}

// close releases the catalog after cancelling whatever is still in flight.
func (c *components) close() {
	if n := c.acquisition.CancelAll(); n > 0 {
		slog.Info("Cancelled in-flight downloads", "count", n)
	}
	if err := c.catalog.Close(); err != nil {
		slog.Error("Failed to close catalog", "error", err)
	}
}

// runServices runs fns until the first one fails or ctx is done.
func runServices(ctx context.Context, fns ...func(ctx context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		g.Go(func() error { return fn(ctx) })
	}
	return g.Wait()
}
