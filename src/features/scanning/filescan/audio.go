package filescan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/contre95/soulscan/src/music"
)

// DefaultAudioExtensions are the audio formats scanned when none are configured.
var DefaultAudioExtensions = []string{".mp3", ".flac", ".ogg", ".m4a", ".aac", ".wav", ".wma", ".opus", ".mpc", ".ape"}

// ArtistTag is an artist as read from audio tags.
type ArtistTag struct {
	Name     string
	SortName string
	MBID     string
}

// AudioProperties describe the audio stream of a file.
type AudioProperties struct {
	Duration      time.Duration
	SampleRate    int
	Channels      int
	BitsPerSample int
	Bitrate       int
}

// EmbeddedPicture is a picture stored in the tags of an audio file. Err is
// set when the picture data cannot be decoded.
type EmbeddedPicture struct {
	Index    int
	MIMEType string
	Width    int
	Height   int
	Err      error
}

// EmbeddedLyrics is raw lyrics text stored in the tags of an audio file.
type EmbeddedLyrics struct {
	Language string
	Text     string
}

// AudioFile is what an AudioFileParser extracts from an audio file.
// Properties is nil when the container format cannot be probed.
type AudioFile struct {
	Title          string
	Artists        []ArtistTag
	ReleaseArtists []ArtistTag
	Composers      []string
	Album          string
	ReleaseMBID    string
	TrackMBID      string
	TrackNumber    int
	DiscNumber     int
	DiscSubtitle   string
	Year           int
	Genre          string
	Properties     *AudioProperties
	Pictures       []EmbeddedPicture
	Lyrics         []EmbeddedLyrics
}

// AudioFileParser reads tags and stream properties of audio files. It returns
// ErrNoAudioTrack when the file has no audio stream.
type AudioFileParser interface {
	Parse(path string) (*AudioFile, error)
}

// AudioScanner handles audio files.
type AudioScanner struct {
	fileIndex
	parser     AudioFileParser
	extensions []string
}

var _ FileScanner = (*AudioScanner)(nil)

// NewAudioScanner creates an audio scanner for the given extensions, or
// DefaultAudioExtensions when empty.
func NewAudioScanner(parser AudioFileParser, extensions []string) *AudioScanner {
	if len(extensions) == 0 {
		extensions = DefaultAudioExtensions
	}
	return &AudioScanner{
		fileIndex:  fileIndex{kind: music.FileKindTrack},
		parser:     parser,
		extensions: normalizeExtensions(extensions),
	}
}

func (s *AudioScanner) Name() string                  { return "Audio scanner" }
func (s *AudioScanner) SupportedFiles() []string      { return nil }
func (s *AudioScanner) SupportedExtensions() []string { return s.extensions }

func (s *AudioScanner) NeedsScan(file FileToScan) bool {
	return s.needsScan(file)
}

func (s *AudioScanner) CreateScanOperation(file FileToScan) FileScanOperation {
	return &audioScanOperation{
		operationBase: operationBase{file: file, scanner: s.Name()},
		parser:        s.parser,
	}
}

type audioScanOperation struct {
	operationBase
	parser AudioFileParser
	parsed *AudioFile
}

func (o *audioScanOperation) Scan(ctx context.Context) {
	path := o.file.Path
	parsed, err := o.parser.Parse(path)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoAudioTrack):
			o.addError(&NoAudioTrackFoundError{Path: path})
		default:
			o.addError(&AudioFileScanError{Path: path, Reason: err.Error()})
		}
		return
	}

	for _, picture := range parsed.Pictures {
		if picture.Err != nil {
			o.addError(&EmbeddedImageScanError{Path: path, Index: picture.Index, Reason: picture.Err.Error()})
		}
	}

	if parsed.Properties != nil && parsed.Properties.Duration <= 0 {
		o.addError(&BadAudioDurationError{Path: path})
		return
	}
	o.parsed = parsed
}

func (o *audioScanOperation) ProcessResult(tx music.WriteTx) (OperationResult, error) {
	path := o.file.Path
	track, err := tx.FindTrackByPath(path)
	if err != nil {
		return Skipped, fmt.Errorf("failed to find track %s: %w", path, err)
	}

	if o.parsed == nil {
		if track == nil {
			return Skipped, nil
		}
		if err := tx.RemoveFile(music.FileKindTrack, track.ID); err != nil {
			return Skipped, err
		}
		return Removed, nil
	}

	directory, err := GetOrCreateDirectory(tx, o.file.Directory(), o.file.Library)
	if err != nil {
		return Skipped, err
	}

	added := track == nil
	if added {
		track = &music.Track{AbsoluteFilePath: path}
	}
	o.fillTrack(track, directory.ID)

	if err := o.setRelease(tx, track); err != nil {
		return Skipped, err
	}

	if added {
		err = tx.CreateTrack(track)
	} else {
		err = tx.UpdateTrack(track)
	}
	if err != nil {
		return Skipped, err
	}

	links, err := o.artistLinks(tx, track.ID)
	if err != nil {
		return Skipped, err
	}
	if err := tx.SetTrackArtistLinks(track.ID, links); err != nil {
		return Skipped, err
	}

	lyrics := make([]music.TrackLyrics, 0, len(o.parsed.Lyrics))
	for _, embedded := range o.parsed.Lyrics {
		parsed, err := ParseLyrics(strings.NewReader(embedded.Text))
		if err != nil {
			o.addError(&AudioFileScanError{Path: path, Reason: "bad embedded lyrics: " + err.Error()})
			continue
		}
		if embedded.Language != "" {
			parsed.Language = embedded.Language
		}
		parsed.DirectoryID = directory.ID
		lyrics = append(lyrics, *parsed)
	}
	if err := tx.ReplaceEmbeddedTrackLyrics(track.ID, lyrics); err != nil {
		return Skipped, err
	}

	if added {
		return Added, nil
	}
	return Updated, nil
}

func (o *audioScanOperation) fillTrack(track *music.Track, directoryID int64) {
	parsed := o.parsed
	track.FileStem = o.file.Stem()
	track.FileSize = o.file.Size
	track.LastWriteTime = o.file.LastWriteTime
	track.DirectoryID = directoryID
	track.Name = strings.TrimSpace(parsed.Title)
	if track.Name == "" {
		track.Name = track.FileStem
	}
	track.Name = music.TruncateName(track.Name)
	track.TrackNumber = parsed.TrackNumber
	track.DiscNumber = parsed.DiscNumber
	track.Year = parsed.Year
	track.Genre = parsed.Genre
	track.MBID = parsed.TrackMBID
	track.Duration = 0
	if parsed.Properties != nil {
		track.Duration = parsed.Properties.Duration
	}
}

func (o *audioScanOperation) setRelease(tx music.WriteTx, track *music.Track) error {
	track.ReleaseID = 0
	track.MediumID = 0

	name := strings.TrimSpace(o.parsed.Album)
	if name == "" {
		return nil
	}
	release, err := getOrCreateRelease(tx, name, o.parsed.ReleaseMBID)
	if err != nil {
		return err
	}
	track.ReleaseID = release.ID

	medium, err := tx.FindMedium(release.ID, o.parsed.DiscNumber)
	if err != nil {
		return err
	}
	if medium == nil {
		medium = &music.Medium{ReleaseID: release.ID, Position: o.parsed.DiscNumber, Name: o.parsed.DiscSubtitle}
		if err := tx.CreateMedium(medium); err != nil {
			return err
		}
	}
	track.MediumID = medium.ID
	return nil
}

func (o *audioScanOperation) artistLinks(tx music.WriteTx, trackID int64) ([]music.TrackArtistLink, error) {
	var links []music.TrackArtistLink
	add := func(tags []ArtistTag, linkType music.TrackArtistLinkType) error {
		for _, tag := range tags {
			if strings.TrimSpace(tag.Name) == "" {
				continue
			}
			artist, err := getOrCreateArtist(tx, tag)
			if err != nil {
				return err
			}
			links = append(links, music.TrackArtistLink{TrackID: trackID, ArtistID: artist.ID, Type: linkType})
		}
		return nil
	}

	if err := add(o.parsed.Artists, music.TrackArtistLinkArtist); err != nil {
		return nil, err
	}
	if err := add(o.parsed.ReleaseArtists, music.TrackArtistLinkReleaseArtist); err != nil {
		return nil, err
	}
	composers := make([]ArtistTag, 0, len(o.parsed.Composers))
	for _, name := range o.parsed.Composers {
		composers = append(composers, ArtistTag{Name: name})
	}
	if err := add(composers, music.TrackArtistLinkComposer); err != nil {
		return nil, err
	}
	return links, nil
}

func getOrCreateRelease(tx music.WriteTx, name, mbid string) (*music.Release, error) {
	var release *music.Release
	var err error
	if mbid != "" {
		release, err = tx.FindReleaseByMBID(mbid)
	} else {
		release, err = tx.FindReleaseByName(name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find release %s: %w", name, err)
	}
	if release != nil {
		return release, nil
	}

	release = &music.Release{Name: name, MBID: mbid}
	if err := tx.CreateRelease(release); err != nil {
		return nil, err
	}
	return release, nil
}

func getOrCreateArtist(tx music.WriteTx, tag ArtistTag) (*music.Artist, error) {
	name := music.TruncateName(strings.TrimSpace(tag.Name))
	var artist *music.Artist
	var err error
	if tag.MBID != "" {
		artist, err = tx.FindArtistByMBID(tag.MBID)
	} else {
		artist, err = tx.FindArtistByName(name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find artist %s: %w", name, err)
	}
	if artist != nil {
		return artist, nil
	}

	artist = &music.Artist{Name: name, SortName: tag.SortName, MBID: tag.MBID}
	if err := tx.CreateArtist(artist); err != nil {
		return nil, err
	}
	return artist, nil
}
