package music

import (
	"strings"
	"time"
)

// PlayListFile is a playlist file found in a media library.
type PlayListFile struct {
	ID               int64
	AbsoluteFilePath string
	FileStem         string
	LastWriteTime    time.Time
	FileSize         int64
	Name             string
	Files            []string
	DirectoryID      int64
	MediaLibraryID   int64
}

// Validate validates the playlist file fields.
func (p *PlayListFile) Validate() error {
	if strings.TrimSpace(p.AbsoluteFilePath) == "" {
		return invalidf("playlist path cannot be empty")
	}
	if strings.TrimSpace(p.Name) == "" {
		return invalidf("playlist name cannot be empty: path -> %s", p.AbsoluteFilePath)
	}
	return nil
}
