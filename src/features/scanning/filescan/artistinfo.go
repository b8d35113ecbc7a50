package filescan

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/contre95/soulscan/src/music"
)

// ArtistInfoFileName is the Kodi style artist description file.
const ArtistInfoFileName = "artist.nfo"

type artistNFO struct {
	XMLName   xml.Name `xml:"artist"`
	Name      string   `xml:"name"`
	SortName  string   `xml:"sortname"`
	MBID      string   `xml:"musicBrainzArtistID"`
	Biography string   `xml:"biography"`
}

// ArtistInfoScanner handles artist.nfo files.
type ArtistInfoScanner struct {
	fileIndex
}

var _ FileScanner = (*ArtistInfoScanner)(nil)

func NewArtistInfoScanner() *ArtistInfoScanner {
	return &ArtistInfoScanner{fileIndex: fileIndex{kind: music.FileKindArtistInfo}}
}

func (s *ArtistInfoScanner) Name() string                  { return "Artist info scanner" }
func (s *ArtistInfoScanner) SupportedFiles() []string      { return []string{ArtistInfoFileName} }
func (s *ArtistInfoScanner) SupportedExtensions() []string { return nil }

func (s *ArtistInfoScanner) NeedsScan(file FileToScan) bool {
	return s.needsScan(file)
}

func (s *ArtistInfoScanner) CreateScanOperation(file FileToScan) FileScanOperation {
	return &artistInfoScanOperation{operationBase: operationBase{file: file, scanner: s.Name()}}
}

type artistInfoScanOperation struct {
	operationBase
	parsed *artistNFO
}

func (o *artistInfoScanOperation) Scan(ctx context.Context) {
	f, err := os.Open(o.file.Path)
	if err != nil {
		o.addError(&IOScanError{Path: o.file.Path, Err: err})
		return
	}
	defer f.Close()

	var nfo artistNFO
	if err := xml.NewDecoder(f).Decode(&nfo); err != nil {
		o.addError(&ArtistInfoFileScanError{Path: o.file.Path, Reason: err.Error()})
		return
	}
	nfo.Name = strings.TrimSpace(nfo.Name)
	if nfo.Name == "" {
		o.addError(&MissingArtistNameError{Path: o.file.Path})
		return
	}
	o.parsed = &nfo
}

func (o *artistInfoScanOperation) ProcessResult(tx music.WriteTx) (OperationResult, error) {
	path := o.file.Path
	existing, err := tx.FindArtistInfoByPath(path)
	if err != nil {
		return Skipped, fmt.Errorf("failed to find artist info %s: %w", path, err)
	}

	if o.parsed == nil {
		if existing == nil {
			return Skipped, nil
		}
		if err := tx.RemoveFile(music.FileKindArtistInfo, existing.ID); err != nil {
			return Skipped, err
		}
		return Removed, nil
	}

	directory, err := GetOrCreateDirectory(tx, o.file.Directory(), o.file.Library)
	if err != nil {
		return Skipped, err
	}

	info := &music.ArtistInfo{
		AbsoluteFilePath: path,
		LastWriteTime:    o.file.LastWriteTime,
		FileSize:         o.file.Size,
		Name:             o.parsed.Name,
		SortName:         strings.TrimSpace(o.parsed.SortName),
		MBID:             strings.TrimSpace(o.parsed.MBID),
		Biography:        strings.TrimSpace(o.parsed.Biography),
		DirectoryID:      directory.ID,
	}

	artist, err := ResolveArtist(tx, info.Name, info.MBID)
	if err != nil {
		return Skipped, err
	}
	if artist != nil {
		info.ArtistID = artist.ID
	}

	if existing == nil {
		if err := tx.CreateArtistInfo(info); err != nil {
			return Skipped, err
		}
		return Added, nil
	}

	info.ID = existing.ID
	if err := tx.UpdateArtistInfo(info); err != nil {
		return Skipped, err
	}
	return Updated, nil
}

// ResolveArtist finds the artist described by an artist.nfo: by MBID first,
// then by name. It returns nil when neither matches.
func ResolveArtist(tx music.ReadTx, name, mbid string) (*music.Artist, error) {
	if mbid != "" {
		artist, err := tx.FindArtistByMBID(mbid)
		if err != nil || artist != nil {
			return artist, err
		}
	}
	if name == "" {
		return nil, nil
	}
	return tx.FindArtistByName(name)
}
