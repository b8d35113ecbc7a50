package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "soulscan"

// ScanMetrics are the Prometheus collectors describing library scans.
type ScanMetrics struct {
	Scans           *prometheus.CounterVec
	Files           *prometheus.CounterVec
	ScanErrors      prometheus.Counter
	ScanDuration    prometheus.Histogram
	ScannerState    prometheus.Gauge
	StepIndex       prometheus.Gauge
	StepProgress    prometheus.Gauge
	DuplicateGroups prometheus.Gauge
	LibraryTracks   prometheus.Gauge
	LastScanTime    prometheus.Gauge
}

// NewScanMetrics creates the collectors and registers them on reg.
func NewScanMetrics(reg prometheus.Registerer) *ScanMetrics {
	factory := promauto.With(reg)
	return &ScanMetrics{
		Scans: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Number of finished scans by result.",
		}, []string{"result"}),
		Files: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scanned_files_total",
			Help:      "Number of files handled by scans by outcome.",
		}, []string{"outcome"}),
		ScanErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_errors_total",
			Help:      "Number of per file scan errors.",
		}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of complete scans.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		ScannerState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scanner_state",
			Help:      "Scanner state: 0 not scheduled, 1 scheduled, 2 in progress.",
		}),
		StepIndex: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scan_step_index",
			Help:      "Index of the running scan step.",
		}),
		StepProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scan_step_progress_percent",
			Help:      "Progress of the running scan step.",
		}),
		DuplicateGroups: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "duplicate_groups",
			Help:      "Duplicate groups reported by the last complete scan.",
		}),
		LibraryTracks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "library_tracks",
			Help:      "Number of tracks in the library.",
		}),
		LastScanTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_complete_scan_timestamp_seconds",
			Help:      "Unix time the last complete scan finished.",
		}),
	}
}
