package music

import (
	"path/filepath"
	"strings"
	"time"
)

// Track is the record for one playable audio file.
type Track struct {
	ID               int64
	AbsoluteFilePath string
	FileStem         string
	FileSize         int64
	LastWriteTime    time.Time
	Duration         time.Duration
	Name             string
	TrackNumber      int
	DiscNumber       int
	Year             int
	Genre            string
	MBID             string
	DirectoryID      int64
	MediumID         int64
	ReleaseID        int64
	AddedTime        time.Time
}

// Validate validates the track fields.
func (t *Track) Validate() error {
	if strings.TrimSpace(t.AbsoluteFilePath) == "" {
		return invalidf("track path cannot be empty")
	}
	if !filepath.IsAbs(t.AbsoluteFilePath) {
		return invalidf("track path must be absolute, got %q", t.AbsoluteFilePath)
	}
	if len(t.Name) > MaxNameLength {
		return invalidf("track name cannot exceed 500 characters, got %d: name -> %s", len(t.Name), t.Name)
	}
	if t.DirectoryID == 0 {
		return invalidf("track must belong to a directory: path -> %s", t.AbsoluteFilePath)
	}
	if t.Duration < 0 {
		return invalidf("track duration cannot be negative: path -> %s", t.AbsoluteFilePath)
	}
	return nil
}

// FileState returns the stored state of the track's backing file.
func (t *Track) FileState() FileState {
	return FileState{LastWriteTime: t.LastWriteTime, Size: t.FileSize}
}

// Release groups the tracks of one album.
type Release struct {
	ID   int64
	Name string
	MBID string
}

// Medium is one disc of a release.
type Medium struct {
	ID        int64
	ReleaseID int64
	Position  int
	Name      string
}

// VariousArtistsName is the standard name for compilation releases
const VariousArtistsName = "Various Artists"

// Artist represents a music artist.
type Artist struct {
	ID       int64
	Name     string
	SortName string
	MBID     string
}

// Validate validates the artist fields.
func (a *Artist) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return invalidf("artist name cannot be empty")
	}
	if len(a.Name) > MaxNameLength {
		return invalidf("artist name cannot exceed 500 characters")
	}
	return nil
}

// TrackArtistLinkType is the role an artist plays on a track.
type TrackArtistLinkType string

const (
	TrackArtistLinkArtist        TrackArtistLinkType = "artist"
	TrackArtistLinkReleaseArtist TrackArtistLinkType = "release_artist"
	TrackArtistLinkComposer      TrackArtistLinkType = "composer"
)

// TrackArtistLink associates an artist with a track.
type TrackArtistLink struct {
	TrackID  int64
	ArtistID int64
	Type     TrackArtistLinkType
}
