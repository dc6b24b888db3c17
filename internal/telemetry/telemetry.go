package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Broadcaster metrics
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jurucore_events_published_total",
			Help: "Events published per topic",
		},
		[]string{"topic"},
	)

	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jurucore_events_dropped_total",
			Help: "Events dropped because a subscriber buffer was full",
		},
		[]string{"topic"},
	)

	Subscribers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jurucore_subscribers",
			Help: "Current subscriber count per topic",
		},
		[]string{"topic"},
	)

	// Metrics cache / poller
	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jurucore_fetches_total",
			Help: "Metrics source fetches by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	SnapshotStatus = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "jurucore_snapshot_status",
			Help: "Current snapshot status (0=loading, 1=ok, 2=error, 3=timeout)",
		},
	)

	// Notifications and feed
	ActiveNotifications = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "jurucore_active_notifications",
			Help: "Currently displayed celebration notifications",
		},
	)

	FeedEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "jurucore_feed_entries",
			Help: "Entries currently held by the live feed",
		},
	)

	// SLA engine
	ActiveAlerts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jurucore_active_alerts",
			Help: "Active SLA alerts by severity",
		},
		[]string{"severity"},
	)

	ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jurucore_scan_duration_seconds",
			Help:    "Duration of SLA scans",
			Buckets: prometheus.DefBuckets,
		},
	)

	ScanFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "jurucore_scan_entity_failures_total",
			Help: "Entities skipped during a scan because their data was unreachable",
		},
	)
)

// Register installs all collectors on the default registry.
func Register() {
	prometheus.MustRegister(
		EventsPublished,
		EventsDropped,
		Subscribers,
		FetchesTotal,
		SnapshotStatus,
		ActiveNotifications,
		FeedEntries,
		ActiveAlerts,
		ScanDuration,
		ScanFailures,
	)
}

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
