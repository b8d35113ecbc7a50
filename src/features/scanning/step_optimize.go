package scanning

// optimizeThreshold is the library size below which the planner statistics
// are only refreshed on request.
const optimizeThreshold = 1000

type optimizeStep struct{}

func (optimizeStep) Step() ScanStep { return ScanStepOptimize }

func (s optimizeStep) Process(sc *scanContext) error {
	if !s.needed(sc) {
		return nil
	}
	sc.logger.Info("Optimize: analyzing database", "changes", sc.stats.ChangesCount(), "total_files", sc.stats.TotalFileCount)
	return sc.store.Analyze(sc.ctx)
}

func (optimizeStep) needed(sc *scanContext) bool {
	if sc.options.ForceOptimize {
		return true
	}
	total := sc.stats.TotalFileCount
	return total >= optimizeThreshold && sc.stats.ChangesCount() > total/5
}

type compactStep struct{}

func (compactStep) Step() ScanStep { return ScanStepCompact }

func (compactStep) Process(sc *scanContext) error {
	if !sc.options.Compact {
		return nil
	}
	sc.logger.Info("Compact: vacuuming database")
	return sc.store.Vacuum(sc.ctx)
}
