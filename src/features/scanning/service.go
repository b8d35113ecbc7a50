package scanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/contre95/soulscan/src/features/config"
	"github.com/contre95/soulscan/src/features/logging"
	"github.com/contre95/soulscan/src/features/scanning/filescan"
	"github.com/contre95/soulscan/src/music"
	"github.com/google/uuid"
)

// ErrScanAborted is reported when a run is cancelled before its last step.
var ErrScanAborted = errors.New("scan aborted")

// State is the scheduling state of the Service.
type State int

const (
	NotScheduled State = iota
	Scheduled
	InProgress
)

func (s State) String() string {
	switch s {
	case Scheduled:
		return "scheduled"
	case InProgress:
		return "in_progress"
	default:
		return "not_scheduled"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a snapshot of the Service.
type Status struct {
	State                 State          `json:"state"`
	NextScheduledScan     time.Time      `json:"next_scheduled_scan"`
	CurrentStepStats      *ScanStepStats `json:"current_step_stats,omitempty"`
	CurrentScanStats      *ScanStats     `json:"current_scan_stats,omitempty"`
	LastCompleteScanStats *ScanStats     `json:"last_complete_scan_stats,omitempty"`
	LastScanAborted       bool           `json:"last_scan_aborted"`
}

// Service schedules and runs library scans. At most one scan runs at a
// time, on the goroutine started by Start.
type Service struct {
	store  music.Store
	parser filescan.AudioFileParser
	config *config.Manager
	events Events
	wake   chan struct{}

	mu              sync.Mutex
	settings        Settings
	state           State
	nextScan        time.Time
	pending         *ScanOptions
	reloadRequested bool
	cancelRun       context.CancelFunc
	currentStats    *ScanStats
	currentStep     *ScanStepStats
	lastComplete    *ScanStats
	lastAborted     bool

	stop context.CancelFunc
	wg   sync.WaitGroup
}

// NewService creates a scanner service reading its settings from cfg.
func NewService(store music.Store, parser filescan.AudioFileParser, cfg *config.Manager) (*Service, error) {
	settings, err := NewSettings(cfg.Get().Scanner)
	if err != nil {
		return nil, fmt.Errorf("invalid scanner settings: %w", err)
	}
	return &Service{
		store:    store,
		parser:   parser,
		config:   cfg,
		settings: settings,
		wake:     make(chan struct{}, 1),
	}, nil
}

// Events returns the signals emitted by the service.
func (s *Service) Events() *Events {
	return &s.events
}

// Start launches the scheduling loop. It returns immediately.
func (s *Service) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.stop = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
	slog.Info("Service.Start: scanner started")
}

// Stop aborts the running scan, if any, and waits for the loop to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	stop, cancelRun := s.stop, s.cancelRun
	s.mu.Unlock()

	if cancelRun != nil {
		cancelRun()
	}
	if stop != nil {
		stop()
	}
	s.wg.Wait()
	slog.Info("Service.Stop: scanner stopped")
}

// RequestImmediateScan queues a scan. A request made while a scan runs is
// started right after it; pending requests are merged.
func (s *Service) RequestImmediateScan(options ScanOptions) {
	s.mu.Lock()
	if s.pending == nil {
		s.pending = &options
	} else {
		merged := s.pending.Merge(options)
		s.pending = &merged
	}
	s.mu.Unlock()

	slog.Info("Service.RequestImmediateScan: scan requested", "full", options.FullScan, "compact", options.Compact, "optimize", options.ForceOptimize)
	s.notify()
}

// RequestReload refreshes the settings from the configuration. A running
// scan is aborted and the schedule is computed again.
func (s *Service) RequestReload() {
	s.mu.Lock()
	s.reloadRequested = true
	cancelRun := s.cancelRun
	s.mu.Unlock()

	if cancelRun != nil {
		slog.Info("Service.RequestReload: aborting current scan")
		cancelRun()
	}
	s.notify()
}

// Status returns a snapshot of the service state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		State:             s.state,
		NextScheduledScan: s.nextScan,
		LastScanAborted:   s.lastAborted,
	}
	if s.currentStep != nil {
		step := *s.currentStep
		status.CurrentStepStats = &step
	}
	if s.currentStats != nil {
		stats := s.currentStats.Clone()
		status.CurrentScanStats = &stats
	}
	if s.lastComplete != nil {
		stats := s.lastComplete.Clone()
		status.LastCompleteScanStats = &stats
	}
	return status
}

// Libraries returns the configured library roots.
func (s *Service) Libraries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	roots := make([]string, 0, len(s.settings.Libraries))
	for _, library := range s.settings.Libraries {
		roots = append(roots, library.RootPath)
	}
	return roots
}

// Handles reports whether a change to path can alter the result of a scan.
func (s *Service) Handles(path string) bool {
	s.mu.Lock()
	settings := s.settings
	s.mu.Unlock()
	if filepath.Base(path) == settings.ExcludeFile {
		return true
	}
	return settings.NewRegistry(s.parser).Select(path) != nil
}

func (s *Service) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) loop(ctx context.Context) {
	s.schedule()
	for {
		s.mu.Lock()
		next := s.nextScan
		s.mu.Unlock()

		var timer *time.Timer
		var fire <-chan time.Time
		if !next.IsZero() {
			timer = time.NewTimer(time.Until(next))
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.wake:
		case <-fire:
			slog.Info("Service.loop: scheduled scan triggered")
			s.mu.Lock()
			if s.pending == nil {
				s.pending = &ScanOptions{}
			}
			s.mu.Unlock()
		}
		if timer != nil {
			timer.Stop()
		}

		if s.takeReload() {
			s.reload()
		}
		if options, ok := s.takePending(); ok && ctx.Err() == nil {
			s.run(ctx, options)
		}
		s.schedule()
	}
}

func (s *Service) takeReload() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	requested := s.reloadRequested
	s.reloadRequested = false
	return requested
}

func (s *Service) takePending() (ScanOptions, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return ScanOptions{}, false
	}
	options := *s.pending
	s.pending = nil
	return options, true
}

func (s *Service) reload() {
	settings, err := NewSettings(s.config.Get().Scanner)
	if err != nil {
		slog.Error("Service.reload: invalid scanner settings, keeping the previous ones", "error", err)
		return
	}

	s.mu.Lock()
	changed := !s.settings.Equal(settings)
	s.settings = settings
	s.mu.Unlock()
	slog.Info("Service.reload: settings reloaded", "changed", changed, "libraries", len(settings.Libraries), "schedule", settings.Schedule)
}

// schedule computes the next scheduled scan and updates the state.
func (s *Service) schedule() {
	s.mu.Lock()
	spec := s.settings.Schedule
	s.mu.Unlock()

	next, err := nextScheduledTime(spec, time.Now())
	if err != nil {
		slog.Error("Service.schedule: invalid schedule", "schedule", spec, "error", err)
		next = time.Time{}
	}

	s.mu.Lock()
	s.nextScan = next
	if next.IsZero() {
		s.state = NotScheduled
	} else {
		s.state = Scheduled
	}
	s.mu.Unlock()

	if !next.IsZero() {
		slog.Debug("Service.schedule: next scan scheduled", "at", next)
		s.events.ScanScheduled.Emit(next)
	}
}

func (s *Service) run(ctx context.Context, options ScanOptions) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stats := &ScanStats{ID: uuid.New().String(), StartTime: time.Now()}

	s.mu.Lock()
	s.state = InProgress
	s.cancelRun = cancel
	settings := s.settings
	settings.Libraries = append([]music.MediaLibrary(nil), s.settings.Libraries...)
	previousTotal := 0
	if s.lastComplete != nil {
		previousTotal = s.lastComplete.TotalFileCount
	}
	s.mu.Unlock()

	logger, closeLog := s.runLogger(stats.ID)
	defer closeLog()

	slog.Info("Service.run: scan started", "id", stats.ID, "full", options.FullScan)
	s.events.ScanStarted.Emit(struct{}{})

	sc := &scanContext{
		ctx:           runCtx,
		store:         s.store,
		settings:      settings,
		registry:      settings.NewRegistry(s.parser),
		options:       options,
		logger:        logger,
		stats:         stats,
		previousTotal: previousTotal,
		onProgress:    s.publishProgress,
	}
	err := runPipeline(sc)
	stats.StopTime = time.Now()

	s.mu.Lock()
	s.cancelRun = nil
	s.currentStats = nil
	s.currentStep = nil
	s.lastAborted = err != nil
	if err == nil {
		completed := stats.Clone()
		s.lastComplete = &completed
	}
	s.mu.Unlock()

	if err != nil {
		stats.Aborted = true
		if errors.Is(err, ErrScanAborted) {
			slog.Warn("Service.run: scan aborted", "id", stats.ID, "duration", stats.Duration())
		} else {
			slog.Error("Service.run: scan failed", "id", stats.ID, "error", err, "duration", stats.Duration())
		}
		logger.Error("Scan aborted", "error", err)
		s.events.ScanAborted.Emit(stats.Clone())
		return
	}

	slog.Info("Service.run: scan complete",
		"id", stats.ID,
		"duration", stats.Duration(),
		"files", stats.TotalFileCount,
		"added", stats.Additions,
		"updated", stats.Updates,
		"removed", stats.Deletions,
		"errors", stats.ErrorsCount,
		"duplicates", len(stats.Duplicates),
	)
	logger.Info("Scan complete", "changes", stats.ChangesCount())
	s.events.ScanComplete.Emit(stats.Clone())
}

// runPipeline runs the steps in order and stops at the first failure.
// Panics are reported as failures.
func runPipeline(sc *scanContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during %s: %v", sc.step.CurrentStep, r)
		}
	}()

	steps := newPipeline()
	for i, step := range steps {
		if sc.ctx.Err() != nil {
			return ErrScanAborted
		}
		sc.startStep(i, len(steps), step.Step())
		sc.logger.Info("Step started", "step", step.Step(), "index", i+1, "count", len(steps))
		if err := step.Process(sc); err != nil {
			if errors.Is(err, context.Canceled) {
				return fmt.Errorf("%w during %s", ErrScanAborted, step.Step())
			}
			return fmt.Errorf("step %s failed: %w", step.Step(), err)
		}
	}
	return nil
}

func (s *Service) publishProgress(stats *ScanStats, step ScanStepStats) {
	snapshot := stats.Clone()
	s.mu.Lock()
	s.currentStats = &snapshot
	s.currentStep = &step
	s.mu.Unlock()
	s.events.ScanInProgress.Emit(step)
}

// runLogger returns the logger of one run. When scan logging is enabled the
// run gets its own log file named after its date and id.
func (s *Service) runLogger(id string) (*slog.Logger, func()) {
	cfg := s.config.Get().Scanner
	if !cfg.Log {
		return slog.Default(), func() {}
	}
	if err := os.MkdirAll(cfg.LogPath, 0755); err != nil {
		slog.Error("Service.runLogger: failed to create log directory", "path", cfg.LogPath, "error", err)
		return slog.Default(), func() {}
	}
	logName := fmt.Sprintf("%s-%s.log", time.Now().Format("2006-01-02"), id)
	logPath := filepath.Join(cfg.LogPath, logName)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		slog.Error("Service.runLogger: failed to open log file", "path", logPath, "error", err)
		return slog.Default(), func() {}
	}
	return logging.NewFileLogger(logFile), func() { logFile.Close() }
}
