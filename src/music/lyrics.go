package music

import "time"

// DefaultLyricsLanguage is used when a lyrics file does not declare one.
const DefaultLyricsLanguage = "xxx"

// LyricsLine is one line of lyrics. Timestamp is only meaningful for
// synchronized lyrics.
type LyricsLine struct {
	Timestamp time.Duration `json:"timestamp"`
	Text      string        `json:"text"`
}

// TrackLyrics holds lyrics either embedded in an audio file or read from an
// external file. External lyrics carry their own path, stem and mtime; a
// TrackID of 0 means the lyrics are not associated with any track.
type TrackLyrics struct {
	ID               int64
	TrackID          int64
	DirectoryID      int64
	AbsoluteFilePath string
	FileStem         string
	LastWriteTime    time.Time
	FileSize         int64
	Language         string
	Offset           time.Duration
	DisplayArtist    string
	DisplayTitle     string
	Synchronized     bool
	Lines            []LyricsLine
}

// IsExternal reports whether the lyrics come from a standalone file.
func (l *TrackLyrics) IsExternal() bool {
	return l.AbsoluteFilePath != ""
}
