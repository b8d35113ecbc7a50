package scanning

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/contre95/soulscan/src/features/scanning/filescan"
	"github.com/contre95/soulscan/src/music"
)

const removedFilesBatchSize = 100

type removedFilesStep struct{}

func (removedFilesStep) Step() ScanStep { return ScanStepCheckForRemovedFiles }

func (s removedFilesStep) Process(sc *scanContext) error {
	sc.setTotal(sc.stats.TotalFileCount)
	for _, kind := range music.FileKinds {
		if err := s.checkKind(sc, kind); err != nil {
			return err
		}
	}
	return nil
}

func (s removedFilesStep) checkKind(sc *scanContext, kind music.FileKind) error {
	var lastID int64
	for {
		if err := sc.ctx.Err(); err != nil {
			return err
		}

		var refs []music.FileRef
		err := sc.store.Read(sc.ctx, func(tx music.ReadTx) error {
			var err error
			refs, err = tx.FindFilesAfter(kind, lastID, removedFilesBatchSize)
			return err
		})
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			return nil
		}
		lastID = refs[len(refs)-1].ID

		var removed []music.FileRef
		for _, ref := range refs {
			if !s.isStillValid(sc, kind, ref.Path) {
				removed = append(removed, ref)
			}
		}
		sc.advance(len(refs))
		if len(removed) == 0 {
			continue
		}

		err = sc.store.Write(sc.ctx, func(tx music.WriteTx) error {
			for _, ref := range removed {
				if err := tx.RemoveFile(kind, ref.ID); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, ref := range removed {
			sc.logger.Debug("CheckForRemovedFiles: file removed", "kind", kind, "path", ref.Path)
		}
		sc.stats.Deletions += len(removed)
	}
}

// isStillValid reports whether the record at path should be kept: the file
// exists in a configured library, outside any excluded directory, and is
// still handled by an enabled scanner of the same kind.
func (s removedFilesStep) isStillValid(sc *scanContext, kind music.FileKind, path string) bool {
	if _, ok := sc.settings.libraryOf(path); !ok {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false
		}
		// Transient failures must not wipe the record
		sc.logger.Warn("CheckForRemovedFiles: cannot stat file", "path", path, "error", err)
		return true
	}
	if !info.Mode().IsRegular() {
		return false
	}
	scanner := sc.registry.Select(path)
	if scanner == nil || !filescan.Handles(scanner, kind) {
		return false
	}
	return !sc.isExcluded(filepath.Dir(path))
}
