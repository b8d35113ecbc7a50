package filescan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/contre95/soulscan/src/music"
)

// DefaultPlayListExtensions are the playlist formats.
var DefaultPlayListExtensions = []string{".m3u", ".m3u8"}

// PlayListScanner handles playlist files.
type PlayListScanner struct {
	fileIndex
}

var _ FileScanner = (*PlayListScanner)(nil)

func NewPlayListScanner() *PlayListScanner {
	return &PlayListScanner{fileIndex: fileIndex{kind: music.FileKindPlayList}}
}

func (s *PlayListScanner) Name() string                  { return "PlayList scanner" }
func (s *PlayListScanner) SupportedFiles() []string      { return nil }
func (s *PlayListScanner) SupportedExtensions() []string { return DefaultPlayListExtensions }

func (s *PlayListScanner) NeedsScan(file FileToScan) bool {
	return s.needsScan(file)
}

func (s *PlayListScanner) CreateScanOperation(file FileToScan) FileScanOperation {
	return &playListScanOperation{operationBase: operationBase{file: file, scanner: s.Name()}}
}

type playListScanOperation struct {
	operationBase
	parsed *M3U
}

func (o *playListScanOperation) Scan(ctx context.Context) {
	f, err := os.Open(o.file.Path)
	if err != nil {
		o.addError(&IOScanError{Path: o.file.Path, Err: err})
		return
	}
	defer f.Close()

	parsed, err := ParseM3U(f)
	if err != nil {
		o.addError(&PlayListFileScanError{Path: o.file.Path, Reason: err.Error()})
		return
	}
	if parsed.Name == "" {
		parsed.Name = o.file.Stem()
	}
	// ".m3u" has no stem
	if parsed.Name == "" {
		parsed.Name = filepath.Base(o.file.Path)
	}
	o.parsed = parsed
}

func (o *playListScanOperation) ProcessResult(tx music.WriteTx) (OperationResult, error) {
	path := o.file.Path
	existing, err := tx.FindPlayListFileByPath(path)
	if err != nil {
		return Skipped, fmt.Errorf("failed to find playlist %s: %w", path, err)
	}

	if o.parsed == nil {
		if existing == nil {
			return Skipped, nil
		}
		if err := tx.RemoveFile(music.FileKindPlayList, existing.ID); err != nil {
			return Skipped, err
		}
		return Removed, nil
	}

	directory, err := GetOrCreateDirectory(tx, o.file.Directory(), o.file.Library)
	if err != nil {
		return Skipped, err
	}

	playList := &music.PlayListFile{
		AbsoluteFilePath: path,
		FileStem:         o.file.Stem(),
		LastWriteTime:    o.file.LastWriteTime,
		FileSize:         o.file.Size,
		Name:             o.parsed.Name,
		Files:            o.parsed.Entries,
		DirectoryID:      directory.ID,
		MediaLibraryID:   o.file.Library.ID,
	}
	if existing == nil {
		if err := tx.CreatePlayListFile(playList); err != nil {
			return Skipped, err
		}
		return Added, nil
	}

	playList.ID = existing.ID
	if err := tx.UpdatePlayListFile(playList); err != nil {
		return Skipped, err
	}
	return Updated, nil
}

// ResolvePlayListEntry returns the absolute path of a playlist entry. Relative
// entries are resolved against the directory of the playlist.
func ResolvePlayListEntry(playListPath, entry string) string {
	entry = filepath.FromSlash(entry)
	if filepath.IsAbs(entry) {
		return filepath.Clean(entry)
	}
	return filepath.Join(filepath.Dir(playListPath), entry)
}
