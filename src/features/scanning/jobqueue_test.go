package scanning

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/contre95/soulscan/src/features/scanning/filescan"
	"github.com/contre95/soulscan/src/music"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOperation struct {
	path    string
	panics  bool
	process func(tx music.WriteTx) error
	scanned atomic.Bool
	errors  []filescan.ScanError
}

func (o *fakeOperation) File() filescan.FileToScan    { return filescan.FileToScan{Path: o.path} }
func (o *fakeOperation) ScannerName() string          { return "fake" }
func (o *fakeOperation) Errors() []filescan.ScanError { return o.errors }

func (o *fakeOperation) Reject(err error) {
	o.errors = append(o.errors, &filescan.InvalidRecordError{Path: o.path, Reason: err.Error()})
}

func (o *fakeOperation) Scan(ctx context.Context) {
	if o.panics {
		panic("corrupt file")
	}
	o.scanned.Store(true)
}

func (o *fakeOperation) ProcessResult(tx music.WriteTx) (filescan.OperationResult, error) {
	if o.process != nil {
		if err := o.process(tx); err != nil {
			return filescan.Skipped, err
		}
	}
	return filescan.Added, nil
}

type batchRecorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *batchRecorder) process(ops []filescan.FileScanOperation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	paths := make([]string, 0, len(ops))
	for _, op := range ops {
		paths = append(paths, op.File().Path)
	}
	r.batches = append(r.batches, paths)
	return nil
}

func TestJobQueue_CommitsEveryOperationInBatches(t *testing.T) {
	recorder := &batchRecorder{}
	queue := newJobQueue(context.Background(), 3, 4, recorder.process)

	ops := make([]*fakeOperation, 10)
	for i := range ops {
		ops[i] = &fakeOperation{path: string(rune('a' + i))}
		require.NoError(t, queue.push(ops[i]))
	}
	require.NoError(t, queue.wait())

	var committed []string
	for _, batch := range recorder.batches {
		assert.LessOrEqual(t, len(batch), 4)
		committed = append(committed, batch...)
	}
	assert.Len(t, committed, 10)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}, committed)
	for _, op := range ops {
		assert.True(t, op.scanned.Load())
	}
}

func TestJobQueue_PanicFailsTheBatch(t *testing.T) {
	recorder := &batchRecorder{}
	queue := newJobQueue(context.Background(), 2, 5, recorder.process)

	require.NoError(t, queue.push(&fakeOperation{path: "ok"}))
	require.NoError(t, queue.push(&fakeOperation{path: "bad", panics: true}))

	err := queue.wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic while scanning bad")
	assert.Empty(t, recorder.batches)
}

func TestJobQueue_CancelledContext(t *testing.T) {
	recorder := &batchRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	queue := newJobQueue(ctx, 1, 10, recorder.process)

	op := &fakeOperation{path: "late"}
	cancel()
	require.NoError(t, queue.push(op))

	assert.ErrorIs(t, queue.wait(), context.Canceled)
	assert.False(t, op.scanned.Load())
	assert.Empty(t, recorder.batches)
}
