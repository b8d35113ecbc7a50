package music

import "time"

// FileState is what the store remembers about a scanned file. It is compared
// against the filesystem to decide whether the file has to be parsed again.
type FileState struct {
	LastWriteTime time.Time
	Size          int64
}

// Matches reports whether the stored state equals the observed one.
func (s FileState) Matches(lastWriteTime time.Time, size int64) bool {
	return !s.LastWriteTime.IsZero() && s.LastWriteTime.Equal(lastWriteTime) && s.Size == size
}

// FileKind names a family of file backed records.
type FileKind string

const (
	FileKindTrack      FileKind = "track"
	FileKindLyrics     FileKind = "lyrics"
	FileKindPlayList   FileKind = "playlist"
	FileKindImage      FileKind = "image"
	FileKindArtistInfo FileKind = "artist_info"
)

// FileKinds lists every kind of file backed record.
var FileKinds = []FileKind{FileKindTrack, FileKindLyrics, FileKindPlayList, FileKindImage, FileKindArtistInfo}

// FileRef identifies a file backed record.
type FileRef struct {
	ID   int64
	Path string
}

// Image is a standalone picture (cover, artist photo) found in a library.
type Image struct {
	ID               int64
	AbsoluteFilePath string
	FileStem         string
	LastWriteTime    time.Time
	FileSize         int64
	Width            int
	Height           int
	DirectoryID      int64
	ImageLinks
}

// ImageLinks are the records an image illustrates. They are resolved after
// every scan, 0 means no link.
type ImageLinks struct {
	ReleaseID int64
	MediumID  int64
	TrackID   int64
	ArtistID  int64
}

// ArtistInfo is the content of an artist.nfo file.
type ArtistInfo struct {
	ID               int64
	AbsoluteFilePath string
	LastWriteTime    time.Time
	FileSize         int64
	Name             string
	SortName         string
	MBID             string
	Biography        string
	DirectoryID      int64
	ArtistID         int64
}
