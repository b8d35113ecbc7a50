package tag

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bogem/id3v2/v2"
	"github.com/contre95/soulscan/src/features/scanning/filescan"
)

// maxSyncSearch bounds how far past the ID3 tag the first frame is searched.
const maxSyncSearch = 64 * 1024

var (
	mpeg1Layer3Bitrates = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}
	mpeg2Layer3Bitrates = [16]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0}
	mpegSampleRates     = map[byte][3]int{
		3: {44100, 48000, 32000}, // MPEG1
		2: {22050, 24000, 16000}, // MPEG2
		0: {11025, 12000, 8000},  // MPEG2.5
	}
)

// readMP3 completes audio with ID3v2 frames dhowden/tag does not expose
// and the stream properties of the first MPEG frame.
func readMP3(path string, audio *filescan.AudioFile) error {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open id3 tag: %w", err)
	}
	defer t.Close()

	readID3Frames(t, audio)

	props, err := probeMPEG(path)
	if err != nil {
		return err
	}
	if tlen := strings.TrimSpace(t.GetTextFrame("TLEN").Text); tlen != "" {
		if ms, err := strconv.Atoi(tlen); err == nil && ms > 0 {
			props.Duration = time.Duration(ms) * time.Millisecond
		}
	}
	audio.Properties = props
	return nil
}

func readID3Frames(t *id3v2.Tag, audio *filescan.AudioFile) {
	for i, frame := range t.GetFrames(t.CommonID("Attached picture")) {
		pic, ok := frame.(id3v2.PictureFrame)
		if !ok {
			continue
		}
		audio.Pictures = append(audio.Pictures, decodePicture(i, pic.MimeType, pic.Picture))
	}

	audio.Lyrics = nil
	for _, frame := range t.GetFrames(t.CommonID("Unsynchronised lyrics/text transcription")) {
		uslt, ok := frame.(id3v2.UnsynchronisedLyricsFrame)
		if !ok || strings.TrimSpace(uslt.Lyrics) == "" {
			continue
		}
		audio.Lyrics = append(audio.Lyrics, filescan.EmbeddedLyrics{Language: uslt.Language, Text: uslt.Lyrics})
	}

	for _, frame := range t.GetFrames("TXXX") {
		txxx, ok := frame.(id3v2.UserDefinedTextFrame)
		if !ok {
			continue
		}
		value := strings.TrimSpace(txxx.Value)
		switch strings.ToLower(txxx.Description) {
		case "musicbrainz release track id", "musicbrainz track id":
			if audio.TrackMBID == "" {
				audio.TrackMBID = value
			}
		case "musicbrainz album id":
			audio.ReleaseMBID = value
		case "musicbrainz artist id":
			if len(audio.Artists) == 1 {
				audio.Artists[0].MBID = value
			}
		case "musicbrainz album artist id":
			if len(audio.ReleaseArtists) == 1 {
				audio.ReleaseArtists[0].MBID = value
			}
		}
	}

	if subtitle := strings.TrimSpace(t.GetTextFrame("TSST").Text); subtitle != "" {
		audio.DiscSubtitle = subtitle
	}
	if sortName := strings.TrimSpace(t.GetTextFrame("TSOP").Text); sortName != "" && len(audio.Artists) == 1 {
		audio.Artists[0].SortName = sortName
	}
}

// probeMPEG locates the first layer III frame and estimates the duration from
// its Xing/Info header when present, or from the bitrate otherwise.
func probeMPEG(path string) (*filescan.AudioProperties, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	start, err := id3TagSize(f)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, maxSyncSearch)
	n, err := f.ReadAt(buf, start)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	buf = buf[:n]

	for i := 0; i+4 <= len(buf); i++ {
		if buf[i] != 0xff || buf[i+1]&0xe0 != 0xe0 {
			continue
		}
		frame, ok := parseFrameHeader(binary.BigEndian.Uint32(buf[i : i+4]))
		if !ok {
			continue
		}
		props := &filescan.AudioProperties{
			SampleRate:    frame.sampleRate,
			Channels:      frame.channels,
			BitsPerSample: 16,
			Bitrate:       frame.bitrate,
		}
		if frames := xingFrames(buf[i:], frame); frames > 0 {
			props.Duration = time.Duration(frames) * time.Duration(frame.samples) * time.Second / time.Duration(frame.sampleRate)
		} else {
			audioBytes := info.Size() - start - int64(i)
			props.Duration = time.Duration(float64(audioBytes*8) / float64(frame.bitrate*1000) * float64(time.Second))
		}
		return props, nil
	}
	return nil, filescan.ErrNoAudioTrack
}

type frameHeader struct {
	mpeg1      bool
	bitrate    int
	sampleRate int
	channels   int
	samples    int
}

func parseFrameHeader(h uint32) (frameHeader, bool) {
	version := byte(h>>19) & 0x3
	layer := byte(h>>17) & 0x3
	bitrateIndex := (h >> 12) & 0xf
	sampleIndex := (h >> 10) & 0x3
	channelMode := (h >> 6) & 0x3

	rates, ok := mpegSampleRates[version]
	if !ok || layer != 1 || sampleIndex == 3 {
		return frameHeader{}, false
	}
	frame := frameHeader{mpeg1: version == 3, sampleRate: rates[sampleIndex], channels: 2, samples: 576}
	if frame.mpeg1 {
		frame.bitrate = mpeg1Layer3Bitrates[bitrateIndex]
		frame.samples = 1152
	} else {
		frame.bitrate = mpeg2Layer3Bitrates[bitrateIndex]
	}
	if channelMode == 3 {
		frame.channels = 1
	}
	if frame.bitrate == 0 {
		return frameHeader{}, false
	}
	return frame, true
}

// xingFrames returns the frame count of a VBR header, or 0.
func xingFrames(data []byte, frame frameHeader) int {
	offset := 4 + 17
	switch {
	case frame.mpeg1 && frame.channels == 2:
		offset = 4 + 32
	case !frame.mpeg1 && frame.channels == 1:
		offset = 4 + 9
	}
	if len(data) < offset+12 {
		return 0
	}
	id := string(data[offset : offset+4])
	if id != "Xing" && id != "Info" {
		return 0
	}
	flags := binary.BigEndian.Uint32(data[offset+4 : offset+8])
	if flags&0x1 == 0 {
		return 0
	}
	return int(binary.BigEndian.Uint32(data[offset+8 : offset+12]))
}

// id3TagSize returns the size of a leading ID3v2 tag, footer included.
func id3TagSize(r io.ReaderAt) (int64, error) {
	header := make([]byte, 10)
	if _, err := r.ReadAt(header, 0); err != nil {
		if err == io.EOF {
			return 0, filescan.ErrNoAudioTrack
		}
		return 0, fmt.Errorf("failed to read header: %w", err)
	}
	if string(header[:3]) != "ID3" {
		return 0, nil
	}
	size := int64(header[6]&0x7f)<<21 | int64(header[7]&0x7f)<<14 | int64(header[8]&0x7f)<<7 | int64(header[9]&0x7f)
	size += 10
	if header[5]&0x10 != 0 {
		size += 10
	}
	return size, nil
}
