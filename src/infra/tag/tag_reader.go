package tag

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/contre95/soulscan/src/features/scanning/filescan"
	"github.com/dhowden/tag"
)

// TagReader is an implementation of the filescan.AudioFileParser interface
// built on dhowden/tag, completed by format specific probes for FLAC and MP3.
type TagReader struct{}

// NewTagReader creates a new TagReader
func NewTagReader() filescan.AudioFileParser {
	return &TagReader{}
}

// parseArtists parses a string containing multiple artists separated by common delimiters
func parseArtists(artistString string) []filescan.ArtistTag {
	if strings.TrimSpace(artistString) == "" {
		return nil
	}

	// Common delimiters: semicolon, slash, comma, "feat.", "ft.", "&"
	delimiters := []string{";", "/", ",", " feat. ", " ft. ", " & "}

	for _, delim := range delimiters {
		if strings.Contains(artistString, delim) {
			names := strings.Split(artistString, delim)
			artists := make([]filescan.ArtistTag, 0, len(names))
			for _, name := range names {
				name = strings.TrimSpace(name)
				if name != "" {
					artists = append(artists, filescan.ArtistTag{Name: name})
				}
			}
			if len(artists) > 0 {
				return artists
			}
		}
	}

	return []filescan.ArtistTag{{Name: strings.TrimSpace(artistString)}}
}

// Parse reads tags and audio properties of a music file.
func (r *TagReader) Parse(filePath string) (*filescan.AudioFile, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	audio := &filescan.AudioFile{}
	tags, err := tag.ReadFrom(file)
	switch {
	case errors.Is(err, tag.ErrNoTagsFound):
		tags = nil
	case err != nil:
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	if tags != nil {
		r.readCommonTags(tags, audio)
	}

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".flac":
		err = readFlac(filePath, audio)
	case ".mp3":
		err = readMP3(filePath, audio)
	default:
		if tags != nil {
			readTagPicture(tags, audio)
		}
	}
	if err != nil {
		return nil, err
	}
	return audio, nil
}

// readCommonTags copies the format independent tags.
func (r *TagReader) readCommonTags(tags tag.Metadata, audio *filescan.AudioFile) {
	audio.Title = strings.TrimSpace(tags.Title())
	audio.Album = strings.TrimSpace(tags.Album())
	audio.Year = tags.Year()
	audio.Genre = strings.TrimSpace(tags.Genre())
	audio.TrackNumber, _ = tags.Track()
	audio.DiscNumber, _ = tags.Disc()
	audio.Artists = parseArtists(tags.Artist())
	audio.ReleaseArtists = parseArtists(tags.AlbumArtist())
	for _, composer := range parseArtists(tags.Composer()) {
		audio.Composers = append(audio.Composers, composer.Name)
	}
	if lyrics := strings.TrimSpace(tags.Lyrics()); lyrics != "" {
		audio.Lyrics = append(audio.Lyrics, filescan.EmbeddedLyrics{Text: lyrics})
	}

	// Vorbis style keys as exposed by ogg and m4a freeform atoms
	raw := tags.Raw()
	audio.TrackMBID = rawString(raw, "musicbrainz_trackid", "MusicBrainz Track Id")
	audio.ReleaseMBID = rawString(raw, "musicbrainz_albumid", "MusicBrainz Album Id")
	if mbid := rawString(raw, "musicbrainz_artistid", "MusicBrainz Artist Id"); mbid != "" && len(audio.Artists) == 1 {
		audio.Artists[0].MBID = mbid
	}
	if mbid := rawString(raw, "musicbrainz_albumartistid", "MusicBrainz Album Artist Id"); mbid != "" && len(audio.ReleaseArtists) == 1 {
		audio.ReleaseArtists[0].MBID = mbid
	}
	audio.DiscSubtitle = rawString(raw, "discsubtitle", "TSST")
}

// rawString returns the first non empty string found under keys.
func rawString(raw map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		switch value := raw[key].(type) {
		case string:
			if value = strings.TrimSpace(value); value != "" {
				return value
			}
		case []byte:
			if s := strings.TrimSpace(string(value)); s != "" {
				return s
			}
		}
	}
	return ""
}

// atoiPrefix parses the leading number of values such as "3/12".
func atoiPrefix(value string) int {
	value = strings.TrimSpace(value)
	if i := strings.IndexByte(value, '/'); i >= 0 {
		value = value[:i]
	}
	n, _ := strconv.Atoi(value)
	return n
}
