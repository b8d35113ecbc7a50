package scanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/contre95/soulscan/src/features/scanning/filescan"
	"github.com/contre95/soulscan/src/music"
)

// progressInterval throttles ScanInProgress events.
const progressInterval = 500 * time.Millisecond

// scanStep is one pass of the pipeline. Process returns an error when the
// run has to stop; per file problems are recorded in the stats instead.
type scanStep interface {
	Step() ScanStep
	Process(sc *scanContext) error
}

// newPipeline returns the steps of a run, in execution order.
func newPipeline() []scanStep {
	return []scanStep{
		scanFilesStep{},
		removedFilesStep{},
		orphansStep{},
		libraryFieldsStep{},
		duplicatesStep{},
		lyricsStep{},
		playListsStep{},
		artistInfosStep{},
		imagesStep{},
		optimizeStep{},
		compactStep{},
	}
}

// scanContext is the state shared by the steps of one run. It is only used
// from the goroutine running the pipeline.
type scanContext struct {
	ctx      context.Context
	store    music.Store
	settings Settings
	registry *filescan.Registry
	options  ScanOptions
	logger   *slog.Logger

	stats         *ScanStats
	step          ScanStepStats
	previousTotal int
	onProgress    func(stats *ScanStats, step ScanStepStats)
	lastProgress  time.Time

	excludedDirs map[string]bool
}

func (sc *scanContext) startStep(index, count int, step ScanStep) {
	sc.step = ScanStepStats{
		StartTime:   time.Now(),
		StepCount:   count,
		StepIndex:   index,
		CurrentStep: step,
	}
	sc.notifyProgress(true)
}

func (sc *scanContext) setTotal(total int) {
	sc.step.TotalElems = total
}

func (sc *scanContext) advance(n int) {
	sc.step.ProcessedElems += n
	sc.notifyProgress(false)
}

func (sc *scanContext) notifyProgress(force bool) {
	if sc.onProgress == nil {
		return
	}
	if !force && time.Since(sc.lastProgress) < progressInterval {
		return
	}
	sc.lastProgress = time.Now()
	sc.onProgress(sc.stats, sc.step)
}

func (sc *scanContext) recordError(err filescan.ScanError) {
	filescan.LogScanError(sc.logger, err)
	sc.stats.addError(err)
}

// commitOperations applies a batch of scanned operations in one write
// transaction and accounts for their results. Each operation runs in its own
// savepoint: a record refused by validation only drops that file, any other
// error aborts the batch.
func (sc *scanContext) commitOperations(ops []filescan.FileScanOperation) error {
	results := make([]filescan.OperationResult, len(ops))
	err := sc.store.Write(sc.ctx, func(tx music.WriteTx) error {
		for i, op := range ops {
			var result filescan.OperationResult
			err := tx.Savepoint(func() error {
				var err error
				result, err = op.ProcessResult(tx)
				return err
			})
			if errors.Is(err, music.ErrInvalidRecord) {
				op.Reject(err)
				result, err = filescan.Skipped, nil
			}
			if err != nil {
				return fmt.Errorf("failed to process %s: %w", op.File().Path, err)
			}
			results[i] = result
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i, op := range ops {
		sc.stats.Scans++
		sc.stats.addResult(results[i])
		errs := op.Errors()
		if len(errs) > 0 {
			sc.stats.Failures++
		}
		for _, scanErr := range errs {
			sc.recordError(scanErr)
		}
		if results[i] != filescan.Skipped {
			sc.logger.Debug("ScanFiles: file "+results[i].String(), "path", op.File().Path, "scanner", op.ScannerName())
		}
	}
	sc.notifyProgress(false)
	return nil
}

// processInBatches repeatedly looks up ids with find and hands them to
// apply, one write transaction per batch, until find returns nothing. apply
// must make the ids disappear from the next lookup.
func (sc *scanContext) processInBatches(find func(tx music.ReadTx) ([]int64, error), apply func(tx music.WriteTx, ids []int64) error) (int, error) {
	processed := 0
	for {
		if err := sc.ctx.Err(); err != nil {
			return processed, err
		}
		var count int
		err := sc.store.Write(sc.ctx, func(tx music.WriteTx) error {
			ids, err := find(tx)
			if err != nil {
				return err
			}
			count = len(ids)
			if count == 0 {
				return nil
			}
			return apply(tx, ids)
		})
		if err != nil {
			return processed, err
		}
		if count == 0 {
			return processed, nil
		}
		processed += count
		sc.advance(count)
	}
}

// isExcluded reports whether dir, or one of its parents up to the library
// root, holds the exclude marker file.
func (sc *scanContext) isExcluded(dir string) bool {
	if sc.settings.ExcludeFile == "" {
		return false
	}
	library, ok := sc.settings.libraryOf(dir)
	if !ok {
		return false
	}
	if sc.excludedDirs == nil {
		sc.excludedDirs = make(map[string]bool)
	}
	return sc.isExcludedIn(filepath.Clean(dir), library.RootPath)
}

func (sc *scanContext) isExcludedIn(dir, root string) bool {
	if excluded, ok := sc.excludedDirs[dir]; ok {
		return excluded
	}
	excluded := hasExcludeMarker(dir, sc.settings.ExcludeFile)
	if !excluded && dir != root {
		if parent := filepath.Dir(dir); parent != dir {
			excluded = sc.isExcludedIn(parent, root)
		}
	}
	sc.excludedDirs[dir] = excluded
	return excluded
}

func hasExcludeMarker(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
