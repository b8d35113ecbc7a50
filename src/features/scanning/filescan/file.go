package filescan

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/contre95/soulscan/src/music"
)

// FileToScan describes a file found while walking a media library.
type FileToScan struct {
	Path          string
	LastWriteTime time.Time
	Size          int64
	Library       music.MediaLibrary
}

// Stem returns the file name without its extension.
func (f FileToScan) Stem() string {
	return FileStem(f.Path)
}

// Directory returns the directory holding the file.
func (f FileToScan) Directory() string {
	return filepath.Dir(f.Path)
}

// FileStem returns the base name of path without its extension.
func FileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// fileIndex remembers the stored state of the files a scanner already knows
// so that NeedsScan is a map lookup.
type fileIndex struct {
	kind   music.FileKind
	states map[string]music.FileState
}

// LoadKnownFiles replaces the index with the files stored under rootPath.
func (i *fileIndex) LoadKnownFiles(tx music.ReadTx, rootPath string) error {
	states, err := tx.FindFileStates(i.kind, rootPath)
	if err != nil {
		return err
	}
	i.states = states
	return nil
}

// FileKind returns the kind of record the index tracks.
func (i *fileIndex) FileKind() music.FileKind {
	return i.kind
}

func (i *fileIndex) needsScan(file FileToScan) bool {
	state, ok := i.states[file.Path]
	if !ok {
		return true
	}
	return !state.Matches(file.LastWriteTime, file.Size)
}
