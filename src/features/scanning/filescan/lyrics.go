package filescan

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/contre95/soulscan/src/music"
)

// DefaultLyricsExtensions are the external lyrics formats.
var DefaultLyricsExtensions = []string{".lrc", ".txt"}

// LyricsScanner handles external lyrics files.
type LyricsScanner struct {
	fileIndex
}

var _ FileScanner = (*LyricsScanner)(nil)

func NewLyricsScanner() *LyricsScanner {
	return &LyricsScanner{fileIndex: fileIndex{kind: music.FileKindLyrics}}
}

func (s *LyricsScanner) Name() string                  { return "Lyrics scanner" }
func (s *LyricsScanner) SupportedFiles() []string      { return nil }
func (s *LyricsScanner) SupportedExtensions() []string { return DefaultLyricsExtensions }

func (s *LyricsScanner) NeedsScan(file FileToScan) bool {
	return s.needsScan(file)
}

func (s *LyricsScanner) CreateScanOperation(file FileToScan) FileScanOperation {
	return &lyricsScanOperation{operationBase: operationBase{file: file, scanner: s.Name()}}
}

type lyricsScanOperation struct {
	operationBase
	parsed *music.TrackLyrics
}

func (o *lyricsScanOperation) Scan(ctx context.Context) {
	f, err := os.Open(o.file.Path)
	if err != nil {
		o.addError(&IOScanError{Path: o.file.Path, Err: err})
		return
	}
	defer f.Close()

	parsed, err := ParseLyrics(f)
	if err != nil {
		var reason string
		if errors.Is(err, ErrEmptyLyrics) {
			reason = "empty lyrics"
		} else {
			reason = err.Error()
		}
		o.addError(&LyricsFileScanError{Path: o.file.Path, Reason: reason})
		return
	}
	o.parsed = parsed
}

func (o *lyricsScanOperation) ProcessResult(tx music.WriteTx) (OperationResult, error) {
	path := o.file.Path
	existing, err := tx.FindTrackLyricsByPath(path)
	if err != nil {
		return Skipped, fmt.Errorf("failed to find lyrics %s: %w", path, err)
	}

	if o.parsed == nil {
		if existing == nil {
			return Skipped, nil
		}
		if err := tx.RemoveFile(music.FileKindLyrics, existing.ID); err != nil {
			return Skipped, err
		}
		return Removed, nil
	}

	directory, err := GetOrCreateDirectory(tx, o.file.Directory(), o.file.Library)
	if err != nil {
		return Skipped, err
	}

	lyrics := o.parsed
	lyrics.AbsoluteFilePath = path
	lyrics.FileStem = o.file.Stem()
	lyrics.LastWriteTime = o.file.LastWriteTime
	lyrics.FileSize = o.file.Size
	lyrics.DirectoryID = directory.ID

	if existing == nil {
		if err := tx.CreateTrackLyrics(lyrics); err != nil {
			return Skipped, err
		}
		return Added, nil
	}

	lyrics.ID = existing.ID
	lyrics.TrackID = existing.TrackID
	if err := tx.UpdateTrackLyrics(lyrics); err != nil {
		return Skipped, err
	}
	return Updated, nil
}
