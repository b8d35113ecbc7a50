package scanning

import (
	"errors"
	"io/fs"
	"os"

	"github.com/contre95/soulscan/src/music"
)

const orphanBatchSize = 200

type orphansStep struct{}

func (orphansStep) Step() ScanStep { return ScanStepRemoveOrphanedDbEntries }

func (s orphansStep) Process(sc *scanContext) error {
	if err := s.removeUnconfiguredLibraries(sc); err != nil {
		return err
	}
	if err := s.removeMissingDirectories(sc); err != nil {
		return err
	}

	tracks, err := sc.processInBatches(
		func(tx music.ReadTx) ([]int64, error) { return tx.FindTrackIDsWithoutDirectory(orphanBatchSize) },
		func(tx music.WriteTx, ids []int64) error {
			for _, id := range ids {
				if err := tx.RemoveFile(music.FileKindTrack, id); err != nil {
					return err
				}
			}
			return nil
		})
	if err != nil {
		return err
	}
	sc.stats.Deletions += tracks

	passes := []struct {
		name   string
		find   func(tx music.ReadTx) ([]int64, error)
		remove func(tx music.WriteTx, ids []int64) error
	}{
		{"empty directories",
			func(tx music.ReadTx) ([]int64, error) { return tx.FindEmptyDirectoryIDs(orphanBatchSize) },
			func(tx music.WriteTx, ids []int64) error { return tx.RemoveDirectories(ids) }},
		{"orphan mediums",
			func(tx music.ReadTx) ([]int64, error) { return tx.FindOrphanMediumIDs(orphanBatchSize) },
			func(tx music.WriteTx, ids []int64) error { return tx.RemoveMediums(ids) }},
		{"orphan releases",
			func(tx music.ReadTx) ([]int64, error) { return tx.FindOrphanReleaseIDs(orphanBatchSize) },
			func(tx music.WriteTx, ids []int64) error { return tx.RemoveReleases(ids) }},
		{"orphan artists",
			func(tx music.ReadTx) ([]int64, error) { return tx.FindOrphanArtistIDs(orphanBatchSize) },
			func(tx music.WriteTx, ids []int64) error { return tx.RemoveArtists(ids) }},
		{"orphan embedded lyrics",
			func(tx music.ReadTx) ([]int64, error) { return tx.FindOrphanEmbeddedLyricsIDs(orphanBatchSize) },
			func(tx music.WriteTx, ids []int64) error { return tx.RemoveTrackLyrics(ids) }},
	}
	for _, pass := range passes {
		removed, err := sc.processInBatches(pass.find, pass.remove)
		if err != nil {
			return err
		}
		if removed > 0 {
			sc.logger.Info("RemoveOrphanedDbEntries: removed "+pass.name, "count", removed)
		}
	}
	return nil
}

// removeUnconfiguredLibraries drops the libraries that are no longer in the
// configuration. Their directories are removed with the missing ones.
func (s orphansStep) removeUnconfiguredLibraries(sc *scanContext) error {
	return sc.store.Write(sc.ctx, func(tx music.WriteTx) error {
		libraries, err := tx.FindMediaLibraries()
		if err != nil {
			return err
		}
		for _, library := range libraries {
			configured := false
			for _, l := range sc.settings.Libraries {
				if l.RootPath == library.RootPath {
					configured = true
					break
				}
			}
			if configured {
				continue
			}
			if err := tx.RemoveMediaLibrary(library.ID); err != nil {
				return err
			}
			sc.logger.Info("RemoveOrphanedDbEntries: media library removed", "name", library.Name, "root", library.RootPath)
		}
		return nil
	})
}

// removeMissingDirectories drops directories that vanished, are excluded, or
// are no longer under a configured root. Removal cascades to their content.
func (s orphansStep) removeMissingDirectories(sc *scanContext) error {
	var lastID int64
	for {
		if err := sc.ctx.Err(); err != nil {
			return err
		}
		var directories []music.Directory
		err := sc.store.Read(sc.ctx, func(tx music.ReadTx) error {
			var err error
			directories, err = tx.FindDirectoriesAfter(lastID, orphanBatchSize)
			return err
		})
		if err != nil {
			return err
		}
		if len(directories) == 0 {
			return nil
		}
		lastID = directories[len(directories)-1].ID

		var ids []int64
		for _, directory := range directories {
			if !s.isStillValid(sc, directory.AbsolutePath) {
				ids = append(ids, directory.ID)
				sc.logger.Debug("RemoveOrphanedDbEntries: directory removed", "path", directory.AbsolutePath)
			}
		}
		sc.advance(len(directories))
		if len(ids) == 0 {
			continue
		}
		if err := sc.store.Write(sc.ctx, func(tx music.WriteTx) error { return tx.RemoveDirectories(ids) }); err != nil {
			return err
		}
	}
}

func (s orphansStep) isStillValid(sc *scanContext, path string) bool {
	if _, ok := sc.settings.libraryOf(path); !ok {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false
		}
		sc.logger.Warn("RemoveOrphanedDbEntries: cannot stat directory", "path", path, "error", err)
		return true
	}
	return info.IsDir() && !sc.isExcluded(path)
}
