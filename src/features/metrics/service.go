package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/contre95/soulfetch/src/music"
)

// Service reports how far acquisition has come: tracks per download status
// and failure ledger reasons.
type Service struct {
	catalog music.Catalog
	ledger  music.FailureLedger
}

// NewService creates a new metrics service. ledger may be nil.
func NewService(catalog music.Catalog, ledger music.FailureLedger) *Service {
	return &Service{catalog: catalog, ledger: ledger}
}

// Metric represents a single metric data point.
type Metric struct {
	Type  string `json:"type"`
	Key   string `json:"key"`
	Value int    `json:"value"`
}

// Overview holds the acquisition metrics for display.
type Overview struct {
	StatusDistribution []Metric  `json:"status_distribution"`
	FailureReasons     []Metric  `json:"failure_reasons"`
	TotalTracks        int       `json:"total_tracks"`
	AvailableTracks    int       `json:"available_tracks"`
	FailedTracks       int       `json:"failed_tracks"`
	LedgerRecords      int       `json:"ledger_records"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// Percentage returns the rounded-down share of available tracks.
func (o *Overview) Percentage() int {
	return music.ArtistProgress{Total: o.TotalTracks, Available: o.AvailableTracks}.Percentage()
}

// GetOverview reads the catalog and the ledger. A ledger that cannot be read
// is logged and left out.
func (s *Service) GetOverview(ctx context.Context) (*Overview, error) {
	dist, err := s.catalog.GetStatusDistribution(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read status distribution: %w", err)
	}

	overview := &Overview{GeneratedAt: time.Now()}
	statusCounts := make(map[string]int, len(dist))
	for status, count := range dist {
		statusCounts[string(status)] = count
		overview.TotalTracks += count
	}
	overview.AvailableTracks = dist[music.StatusAvailable]
	overview.FailedTracks = dist[music.StatusFailed]
	overview.StatusDistribution = convertMapToMetrics(statusCounts, "status_distribution")

	if s.ledger != nil {
		records, err := s.ledger.All(ctx)
		if err != nil {
			slog.Warn("Failed to read failure ledger", "error", err)
		} else {
			reasons := make(map[string]int)
			for _, r := range records {
				reasons[r.Reason]++
			}
			overview.LedgerRecords = len(records)
			overview.FailureReasons = convertMapToMetrics(reasons, "failure_reasons")
		}
	}
	return overview, nil
}

// Snapshot computes the overview and publishes it to the Prometheus gauges.
func (s *Service) Snapshot(ctx context.Context) (*Overview, error) {
	overview, err := s.GetOverview(ctx)
	if err != nil {
		return nil, err
	}

	catalogTracks.Reset()
	for _, status := range []music.DownloadStatus{music.StatusNotDownloaded, music.StatusDownloading, music.StatusAvailable, music.StatusFailed} {
		catalogTracks.WithLabelValues(string(status)).Set(0)
	}
	for _, m := range overview.StatusDistribution {
		catalogTracks.WithLabelValues(m.Key).Set(float64(m.Value))
	}
	ledgerRecords.Reset()
	for _, m := range overview.FailureReasons {
		ledgerRecords.WithLabelValues(m.Key).Set(float64(m.Value))
	}
	lastSnapshot.Set(float64(overview.GeneratedAt.Unix()))

	slog.Debug("Metrics snapshot taken", "tracks", overview.TotalTracks, "available", overview.AvailableTracks, "ledger", overview.LedgerRecords)
	return overview, nil
}

// convertMapToMetrics converts a map[string]int to []Metric, largest first.
func convertMapToMetrics(data map[string]int, metricType string) []Metric {
	metrics := make([]Metric, 0, len(data))
	for key, value := range data {
		metrics = append(metrics, Metric{
			Type:  metricType,
			Key:   key,
			Value: value,
		})
	}
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Value != metrics[j].Value {
			return metrics[i].Value > metrics[j].Value
		}
		return metrics[i].Key < metrics[j].Key
	})
	return metrics
}
