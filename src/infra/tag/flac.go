package tag

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/contre95/soulscan/src/features/scanning/filescan"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	goflac "github.com/go-flac/go-flac"
)

const streamInfoSize = 34

var errBadStreamInfo = errors.New("malformed STREAMINFO block")

// readFlac completes audio with the FLAC stream properties, vorbis comments
// that dhowden/tag does not expose, and every embedded picture.
func readFlac(path string, audio *filescan.AudioFile) error {
	f, err := goflac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("failed to parse flac file: %w", err)
	}

	pictureIndex := 0
	for _, meta := range f.Meta {
		switch meta.Type {
		case goflac.StreamInfo:
			props, err := parseStreamInfo(meta.Data)
			if err != nil {
				return err
			}
			audio.Properties = props
		case goflac.VorbisComment:
			cmts, err := flacvorbis.ParseFromMetaDataBlock(*meta)
			if err != nil {
				return fmt.Errorf("failed to parse vorbis comments: %w", err)
			}
			readVorbisComments(cmts, audio)
		case goflac.Picture:
			pic, err := flacpicture.ParseFromMetaDataBlock(*meta)
			if err != nil {
				audio.Pictures = append(audio.Pictures, filescan.EmbeddedPicture{Index: pictureIndex, Err: err})
			} else {
				audio.Pictures = append(audio.Pictures, decodePicture(pictureIndex, pic.MIME, pic.ImageData))
			}
			pictureIndex++
		}
	}

	if audio.Properties == nil {
		return filescan.ErrNoAudioTrack
	}
	return nil
}

// parseStreamInfo decodes the fixed layout STREAMINFO block:
// 16+16+24+24 bits of block and frame sizes, then 20 bits sample rate,
// 3 bits channels-1, 5 bits bits-per-sample-1 and 36 bits total samples.
func parseStreamInfo(data []byte) (*filescan.AudioProperties, error) {
	if len(data) < streamInfoSize {
		return nil, errBadStreamInfo
	}
	packed := binary.BigEndian.Uint64(data[10:18])
	sampleRate := int(packed >> 44)
	channels := int((packed>>41)&0x7) + 1
	bitsPerSample := int((packed>>36)&0x1f) + 1
	totalSamples := packed & 0xfffffffff

	props := &filescan.AudioProperties{
		SampleRate:    sampleRate,
		Channels:      channels,
		BitsPerSample: bitsPerSample,
	}
	if sampleRate > 0 {
		props.Duration = time.Duration(totalSamples) * time.Second / time.Duration(sampleRate)
		props.Bitrate = sampleRate * channels * bitsPerSample / 1000
	}
	return props, nil
}

func readVorbisComments(cmts *flacvorbis.MetaDataBlockVorbisComment, audio *filescan.AudioFile) {
	first := func(key string) string {
		values, err := cmts.Get(key)
		if err != nil {
			return ""
		}
		for _, value := range values {
			if value = strings.TrimSpace(value); value != "" {
				return value
			}
		}
		return ""
	}

	if mbid := first("MUSICBRAINZ_TRACKID"); mbid != "" {
		audio.TrackMBID = mbid
	}
	if mbid := first("MUSICBRAINZ_ALBUMID"); mbid != "" {
		audio.ReleaseMBID = mbid
	}
	if mbid := first("MUSICBRAINZ_ARTISTID"); mbid != "" && len(audio.Artists) == 1 {
		audio.Artists[0].MBID = mbid
	}
	if mbid := first("MUSICBRAINZ_ALBUMARTISTID"); mbid != "" && len(audio.ReleaseArtists) == 1 {
		audio.ReleaseArtists[0].MBID = mbid
	}
	if sortName := first("ARTISTSORT"); sortName != "" && len(audio.Artists) == 1 {
		audio.Artists[0].SortName = sortName
	}
	if subtitle := first("DISCSUBTITLE"); subtitle != "" {
		audio.DiscSubtitle = subtitle
	}
	if audio.DiscNumber == 0 {
		audio.DiscNumber = atoiPrefix(first("DISCNUMBER"))
	}

	language := first("LANGUAGE")
	audio.Lyrics = nil
	for _, key := range []string{"LYRICS", "UNSYNCEDLYRICS"} {
		if text := first(key); text != "" {
			audio.Lyrics = append(audio.Lyrics, filescan.EmbeddedLyrics{Language: language, Text: text})
			break
		}
	}
}
