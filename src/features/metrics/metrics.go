package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	catalogTracks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "soulfetch_catalog_tracks",
		Help: "Catalog tracks per download status at the last snapshot.",
	}, []string{"status"})

	ledgerRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "soulfetch_failure_ledger_records",
		Help: "Tracks in the failure ledger per reason at the last snapshot.",
	}, []string{"reason"})

	lastSnapshot = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "soulfetch_metrics_snapshot_timestamp_seconds",
		Help: "Unix time of the last catalog snapshot.",
	})
)
