package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/contre95/soulscan/src/features/scanning"
	"github.com/contre95/soulscan/src/music"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service exports scanner activity as Prometheus metrics.
type Service struct {
	store    music.Store
	registry *prometheus.Registry
	metrics  *ScanMetrics
}

// NewService creates a metrics service with its own registry.
func NewService(store music.Store) *Service {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &Service{
		store:    store,
		registry: registry,
		metrics:  NewScanMetrics(registry),
	}
}

// Metrics returns the scan collectors.
func (s *Service) Metrics() *ScanMetrics {
	return s.metrics
}

// Handler serves the registry in the Prometheus exposition format.
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Subscribe updates the metrics from the scanner events.
func (s *Service) Subscribe(events *scanning.Events) {
	events.ScanScheduled.Connect(func(time.Time) {
		s.metrics.ScannerState.Set(float64(scanning.Scheduled))
	})
	events.ScanStarted.Connect(func(struct{}) {
		s.metrics.ScannerState.Set(float64(scanning.InProgress))
	})
	events.ScanInProgress.Connect(func(step scanning.ScanStepStats) {
		s.metrics.StepIndex.Set(float64(step.StepIndex))
		s.metrics.StepProgress.Set(float64(step.Progress()))
	})
	events.ScanComplete.Connect(func(stats scanning.ScanStats) {
		s.metrics.Scans.WithLabelValues("complete").Inc()
		s.observe(stats)
		s.metrics.ScanDuration.Observe(stats.Duration().Seconds())
		s.metrics.DuplicateGroups.Set(float64(len(stats.Duplicates)))
		s.metrics.LastScanTime.Set(float64(stats.StopTime.Unix()))
		s.refreshLibraryTracks()
	})
	events.ScanAborted.Connect(func(stats scanning.ScanStats) {
		s.metrics.Scans.WithLabelValues("aborted").Inc()
		s.observe(stats)
	})
}

func (s *Service) observe(stats scanning.ScanStats) {
	s.metrics.ScannerState.Set(float64(scanning.NotScheduled))
	s.metrics.StepProgress.Set(0)
	s.metrics.Files.WithLabelValues("added").Add(float64(stats.Additions))
	s.metrics.Files.WithLabelValues("updated").Add(float64(stats.Updates))
	s.metrics.Files.WithLabelValues("removed").Add(float64(stats.Deletions))
	s.metrics.Files.WithLabelValues("skipped").Add(float64(stats.Skips))
	s.metrics.Files.WithLabelValues("failed").Add(float64(stats.Failures))
	s.metrics.ScanErrors.Add(float64(stats.ErrorsCount))
}

func (s *Service) refreshLibraryTracks() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	err := s.store.Read(ctx, func(tx music.ReadTx) error {
		var err error
		count, err = tx.CountTracks()
		return err
	})
	if err != nil {
		slog.Warn("Failed to count library tracks", "error", err)
		return
	}
	s.metrics.LibraryTracks.Set(float64(count))
}
