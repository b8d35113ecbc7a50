package scanning

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/contre95/soulscan/src/features/scanning/filescan"
	"github.com/contre95/soulscan/src/music"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCommitContext(h *harness) *scanContext {
	return &scanContext{
		ctx:    context.Background(),
		store:  h.store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		stats:  &ScanStats{},
	}
}

func createLibrary(name, root string) func(tx music.WriteTx) error {
	return func(tx music.WriteTx) error {
		return tx.CreateMediaLibrary(&music.MediaLibrary{Name: name, RootPath: root})
	}
}

func (h *harness) libraryRoots() []string {
	h.t.Helper()
	var roots []string
	h.read(func(tx music.ReadTx) {
		libraries, err := tx.FindMediaLibraries()
		require.NoError(h.t, err)
		for _, library := range libraries {
			roots = append(roots, library.RootPath)
		}
	})
	return roots
}

func TestCommitOperations_InvalidRecordOnlySkipsItsFile(t *testing.T) {
	h := newHarness(t)
	sc := newCommitContext(h)

	invalid := &fakeOperation{path: "/music/b.flac", process: func(tx music.WriteTx) error {
		if err := createLibrary("B", "/b")(tx); err != nil {
			return err
		}
		return createLibrary("", "/c")(tx)
	}}
	ops := []filescan.FileScanOperation{
		&fakeOperation{path: "/music/a.flac", process: createLibrary("A", "/a")},
		invalid,
		&fakeOperation{path: "/music/d.flac", process: createLibrary("D", "/d")},
	}
	require.NoError(t, sc.commitOperations(ops))

	assert.Equal(t, 3, sc.stats.Scans)
	assert.Equal(t, 2, sc.stats.Additions)
	assert.Equal(t, 1, sc.stats.Failures)
	require.Len(t, sc.stats.Errors, 1)
	assert.Equal(t, "invalid_record", sc.stats.Errors[0].Kind)
	assert.Equal(t, "/music/b.flac", sc.stats.Errors[0].Path)
	require.Len(t, invalid.errors, 1)
	assert.ElementsMatch(t, []string{"/a", "/d"}, h.libraryRoots())
}

func TestCommitOperations_StoreErrorAbortsTheBatch(t *testing.T) {
	h := newHarness(t)
	sc := newCommitContext(h)

	ops := []filescan.FileScanOperation{
		&fakeOperation{path: "/music/a.flac", process: createLibrary("A", "/a")},
		&fakeOperation{path: "/music/b.flac", process: func(tx music.WriteTx) error {
			return errors.New("disk full")
		}},
	}
	err := sc.commitOperations(ops)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to process /music/b.flac")
	assert.Zero(t, sc.stats.Scans)
	assert.Empty(t, h.libraryRoots())
}
