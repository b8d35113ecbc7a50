package filescan

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoAudioTrack is returned by audio parsers when a file holds no audio stream.
var ErrNoAudioTrack = errors.New("no audio track found")

// ScanError is a non fatal problem found while scanning one file. The set of
// implementations is closed.
type ScanError interface {
	error
	// FilePath returns the offending file.
	FilePath() string
	// Kind returns a stable identifier of the error variant.
	Kind() string
	isScanError()
}

type IOScanError struct {
	Path string
	Err  error
}

func (e *IOScanError) Error() string    { return fmt.Sprintf("IO error on %s: %v", e.Path, e.Err) }
func (e *IOScanError) Unwrap() error    { return e.Err }
func (e *IOScanError) FilePath() string { return e.Path }
func (e *IOScanError) Kind() string     { return "io" }
func (e *IOScanError) isScanError()     {}

type AudioFileScanError struct {
	Path   string
	Reason string
}

func (e *AudioFileScanError) Error() string {
	return fmt.Sprintf("cannot parse audio file %s: %s", e.Path, e.Reason)
}
func (e *AudioFileScanError) FilePath() string { return e.Path }
func (e *AudioFileScanError) Kind() string     { return "audio_file_scan" }
func (e *AudioFileScanError) isScanError()     {}

type EmbeddedImageScanError struct {
	Path   string
	Index  int
	Reason string
}

func (e *EmbeddedImageScanError) Error() string {
	return fmt.Sprintf("cannot read embedded image #%d of %s: %s", e.Index, e.Path, e.Reason)
}
func (e *EmbeddedImageScanError) FilePath() string { return e.Path }
func (e *EmbeddedImageScanError) Kind() string     { return "embedded_image_scan" }
func (e *EmbeddedImageScanError) isScanError()     {}

type NoAudioTrackFoundError struct {
	Path string
}

func (e *NoAudioTrackFoundError) Error() string {
	return fmt.Sprintf("no audio track found in %s", e.Path)
}
func (e *NoAudioTrackFoundError) FilePath() string { return e.Path }
func (e *NoAudioTrackFoundError) Kind() string     { return "no_audio_track_found" }
func (e *NoAudioTrackFoundError) isScanError()     {}

type BadAudioDurationError struct {
	Path string
}

func (e *BadAudioDurationError) Error() string {
	return fmt.Sprintf("bad audio duration in %s", e.Path)
}
func (e *BadAudioDurationError) FilePath() string { return e.Path }
func (e *BadAudioDurationError) Kind() string     { return "bad_audio_duration" }
func (e *BadAudioDurationError) isScanError()     {}

type ArtistInfoFileScanError struct {
	Path   string
	Reason string
}

func (e *ArtistInfoFileScanError) Error() string {
	return fmt.Sprintf("cannot parse artist info file %s: %s", e.Path, e.Reason)
}
func (e *ArtistInfoFileScanError) FilePath() string { return e.Path }
func (e *ArtistInfoFileScanError) Kind() string     { return "artist_info_file_scan" }
func (e *ArtistInfoFileScanError) isScanError()     {}

type MissingArtistNameError struct {
	Path string
}

func (e *MissingArtistNameError) Error() string {
	return fmt.Sprintf("missing artist name in %s", e.Path)
}
func (e *MissingArtistNameError) FilePath() string { return e.Path }
func (e *MissingArtistNameError) Kind() string     { return "missing_artist_name" }
func (e *MissingArtistNameError) isScanError()     {}

type ImageFileScanError struct {
	Path   string
	Reason string
}

func (e *ImageFileScanError) Error() string {
	return fmt.Sprintf("cannot read image file %s: %s", e.Path, e.Reason)
}
func (e *ImageFileScanError) FilePath() string { return e.Path }
func (e *ImageFileScanError) Kind() string     { return "image_file_scan" }
func (e *ImageFileScanError) isScanError()     {}

type LyricsFileScanError struct {
	Path   string
	Reason string
}

func (e *LyricsFileScanError) Error() string {
	return fmt.Sprintf("cannot parse lyrics file %s: %s", e.Path, e.Reason)
}
func (e *LyricsFileScanError) FilePath() string { return e.Path }
func (e *LyricsFileScanError) Kind() string     { return "lyrics_file_scan" }
func (e *LyricsFileScanError) isScanError()     {}

type PlayListFileScanError struct {
	Path   string
	Reason string
}

func (e *PlayListFileScanError) Error() string {
	return fmt.Sprintf("cannot parse playlist file %s: %s", e.Path, e.Reason)
}
func (e *PlayListFileScanError) FilePath() string { return e.Path }
func (e *PlayListFileScanError) Kind() string     { return "playlist_file_scan" }
func (e *PlayListFileScanError) isScanError()     {}

// InvalidRecordError reports a parsed file whose record was refused by the
// store. The file is skipped and the rest of the batch is committed.
type InvalidRecordError struct {
	Path   string
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("cannot store %s: %s", e.Path, e.Reason)
}
func (e *InvalidRecordError) FilePath() string { return e.Path }
func (e *InvalidRecordError) Kind() string     { return "invalid_record" }
func (e *InvalidRecordError) isScanError()     {}

// PlayListFilePathMissingError reports one playlist entry that matches no track.
type PlayListFilePathMissingError struct {
	Path  string
	Entry string
}

func (e *PlayListFilePathMissingError) Error() string {
	return fmt.Sprintf("playlist %s: entry %s not found", e.Path, e.Entry)
}
func (e *PlayListFilePathMissingError) FilePath() string { return e.Path }
func (e *PlayListFilePathMissingError) Kind() string     { return "playlist_file_path_missing" }
func (e *PlayListFilePathMissingError) isScanError()     {}

type PlayListFileAllPathesMissingError struct {
	Path string
}

func (e *PlayListFileAllPathesMissingError) Error() string {
	return fmt.Sprintf("playlist %s: no entry matches a track", e.Path)
}
func (e *PlayListFileAllPathesMissingError) FilePath() string { return e.Path }
func (e *PlayListFileAllPathesMissingError) Kind() string     { return "playlist_file_all_pathes_missing" }
func (e *PlayListFileAllPathesMissingError) isScanError()     {}

// LogScanError logs err at a level matching its gravity: single missing
// playlist entries are debug noise, unreadable files are errors.
func LogScanError(logger *slog.Logger, err ScanError) {
	attrs := []any{"path", err.FilePath(), "kind", err.Kind()}
	switch e := err.(type) {
	case *PlayListFilePathMissingError:
		logger.Debug("Scan: "+e.Error(), attrs...)
	case *IOScanError, *AudioFileScanError, *NoAudioTrackFoundError, *ImageFileScanError,
		*LyricsFileScanError, *PlayListFileScanError, *ArtistInfoFileScanError, *InvalidRecordError:
		logger.Error("Scan: "+e.Error(), attrs...)
	default:
		logger.Warn("Scan: "+e.Error(), attrs...)
	}
}
