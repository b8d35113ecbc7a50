package scanning

import (
	"context"
	"fmt"
	"sync"

	"github.com/contre95/soulscan/src/features/scanning/filescan"
	"golang.org/x/sync/errgroup"
)

// jobQueue runs the Scan phase of operations on a bounded pool of workers
// and hands finished operations back, in batches, to the goroutine that
// pushed them. Only that goroutine calls process, so ProcessResult is never
// run concurrently.
type jobQueue struct {
	ctx         context.Context
	group       *errgroup.Group
	done        chan filescan.FileScanOperation
	ready       []filescan.FileScanOperation
	outstanding int
	maxQueued   int
	batchSize   int
	process     func(ops []filescan.FileScanOperation) error

	mu       sync.Mutex
	panicErr error
}

func newJobQueue(ctx context.Context, workers, batchSize int, process func([]filescan.FileScanOperation) error) *jobQueue {
	workers = max(workers, 1)
	batchSize = max(batchSize, 1)
	group := &errgroup.Group{}
	group.SetLimit(workers)

	maxQueued := max(workers*2, batchSize)
	return &jobQueue{
		ctx:       ctx,
		group:     group,
		done:      make(chan filescan.FileScanOperation, maxQueued),
		maxQueued: maxQueued,
		batchSize: batchSize,
		process:   process,
	}
}

// push schedules op and commits the operations finished so far once a batch
// is complete. It blocks while too many operations are in flight.
func (q *jobQueue) push(op filescan.FileScanOperation) error {
	for q.outstanding >= q.maxQueued {
		q.collect(<-q.done)
		if err := q.flushFull(); err != nil {
			return err
		}
	}

	q.outstanding++
	ctx := q.ctx
	q.group.Go(func() error {
		defer func() { q.done <- op }()
		defer func() {
			if r := recover(); r != nil {
				q.mu.Lock()
				if q.panicErr == nil {
					q.panicErr = fmt.Errorf("panic while scanning %s: %v", op.File().Path, r)
				}
				q.mu.Unlock()
			}
		}()
		// Parsing is not preempted, but nothing new starts once cancelled
		if ctx.Err() == nil {
			op.Scan(ctx)
		}
		return nil
	})

	q.drain()
	return q.flushFull()
}

// wait blocks until every pushed operation is scanned and committed.
func (q *jobQueue) wait() error {
	q.group.Wait()
	q.drain()
	for len(q.ready) > 0 {
		if err := q.flush(min(len(q.ready), q.batchSize)); err != nil {
			return err
		}
	}
	return nil
}

// abort waits for the workers and drops their results.
func (q *jobQueue) abort() {
	q.group.Wait()
	q.drain()
	q.ready = nil
}

func (q *jobQueue) collect(op filescan.FileScanOperation) {
	q.outstanding--
	q.ready = append(q.ready, op)
}

func (q *jobQueue) drain() {
	for {
		select {
		case op := <-q.done:
			q.collect(op)
		default:
			return
		}
	}
}

func (q *jobQueue) flushFull() error {
	for len(q.ready) >= q.batchSize {
		if err := q.flush(q.batchSize); err != nil {
			return err
		}
	}
	return nil
}

func (q *jobQueue) flush(n int) error {
	if err := q.ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	err := q.panicErr
	q.mu.Unlock()
	if err != nil {
		return err
	}
	batch := q.ready[:n]
	if err := q.process(batch); err != nil {
		return err
	}
	q.ready = append(q.ready[:0], q.ready[n:]...)
	return nil
}
