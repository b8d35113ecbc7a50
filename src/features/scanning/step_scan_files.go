package scanning

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/contre95/soulscan/src/features/scanning/filescan"
	"github.com/contre95/soulscan/src/music"
)

// ErrMissingRoot is returned when a configured library root is not a
// readable directory. The run stops before anything is removed.
var ErrMissingRoot = errors.New("library root is missing")

type scanFilesStep struct{}

func (scanFilesStep) Step() ScanStep { return ScanStepScanFiles }

func (s scanFilesStep) Process(sc *scanContext) error {
	for _, library := range sc.settings.Libraries {
		info, err := os.Stat(library.RootPath)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("%w: %s", ErrMissingRoot, library.RootPath)
		}
	}

	if err := s.syncLibraries(sc); err != nil {
		return err
	}

	sc.setTotal(sc.previousTotal)
	for _, library := range sc.settings.Libraries {
		if err := s.scanLibrary(sc, library); err != nil {
			return err
		}
	}
	return nil
}

// syncLibraries makes sure every configured library has a row and records
// the ids in the run settings.
func (s scanFilesStep) syncLibraries(sc *scanContext) error {
	return sc.store.Write(sc.ctx, func(tx music.WriteTx) error {
		for i, library := range sc.settings.Libraries {
			existing, err := tx.FindMediaLibraryByPath(library.RootPath)
			if err != nil {
				return fmt.Errorf("failed to find media library %s: %w", library.RootPath, err)
			}
			switch {
			case existing == nil:
				if err := tx.CreateMediaLibrary(&library); err != nil {
					return err
				}
				sc.logger.Info("ScanFiles: media library created", "name", library.Name, "root", library.RootPath)
			case existing.Name != library.Name:
				library.ID = existing.ID
				if err := tx.UpdateMediaLibrary(&library); err != nil {
					return err
				}
			default:
				library.ID = existing.ID
			}
			sc.settings.Libraries[i] = library
		}
		return nil
	})
}

func (s scanFilesStep) scanLibrary(sc *scanContext, library music.MediaLibrary) error {
	err := sc.store.Read(sc.ctx, func(tx music.ReadTx) error {
		for _, scanner := range sc.registry.Scanners() {
			if loader, ok := scanner.(filescan.KnownFilesLoader); ok {
				if err := loader.LoadKnownFiles(tx, library.RootPath); err != nil {
					return fmt.Errorf("failed to load known files of %s: %w", scanner.Name(), err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	sc.logger.Info("ScanFiles: scanning library", "name", library.Name, "root", library.RootPath)
	queue := newJobQueue(sc.ctx, sc.settings.Workers, sc.settings.WriteBatchSize, sc.commitOperations)
	walkErr := filepath.WalkDir(library.RootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == library.RootPath {
				return fmt.Errorf("%w: %s: %v", ErrMissingRoot, path, err)
			}
			sc.logger.Warn("ScanFiles: skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		if err := sc.ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if sc.settings.ExcludeFile != "" && hasExcludeMarker(path, sc.settings.ExcludeFile) {
				sc.logger.Debug("ScanFiles: skipping excluded directory", "path", path)
				return fs.SkipDir
			}
			return nil
		}

		scanner := sc.registry.Select(path)
		if scanner == nil {
			return nil
		}
		file, ok := s.fileToScan(sc, path, d, library)
		if !ok {
			return nil
		}

		sc.stats.TotalFileCount++
		sc.advance(1)
		if !sc.options.FullScan && !scanner.NeedsScan(file) {
			sc.stats.Skips++
			return nil
		}
		return queue.push(scanner.CreateScanOperation(file))
	})
	if walkErr != nil {
		queue.abort()
		return walkErr
	}
	return queue.wait()
}

// fileToScan stats a walked entry. Symlinks to files are followed, symlinks
// to directories and dangling ones are skipped.
func (s scanFilesStep) fileToScan(sc *scanContext, path string, d fs.DirEntry, library music.MediaLibrary) (filescan.FileToScan, bool) {
	var info fs.FileInfo
	var err error
	switch {
	case d.Type()&fs.ModeSymlink != 0:
		info, err = os.Stat(path)
		if err != nil {
			sc.logger.Warn("ScanFiles: skipping dangling symlink", "path", path, "error", err)
			return filescan.FileToScan{}, false
		}
	case d.Type().IsRegular():
		info, err = d.Info()
		if err != nil {
			sc.logger.Warn("ScanFiles: skipping vanished file", "path", path, "error", err)
			return filescan.FileToScan{}, false
		}
	default:
		return filescan.FileToScan{}, false
	}
	if !info.Mode().IsRegular() {
		return filescan.FileToScan{}, false
	}
	return filescan.FileToScan{
		Path:          path,
		LastWriteTime: info.ModTime(),
		Size:          info.Size(),
		Library:       library,
	}, true
}
