package filescan

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/contre95/soulscan/src/music"
)

var (
	lrcTimestamp = regexp.MustCompile(`^\[(\d+):(\d{1,2})(?:[.:](\d{1,3}))?\]`)
	lrcTag       = regexp.MustCompile(`^\[([A-Za-z#]+):(.*)\]$`)
)

// ErrEmptyLyrics is returned when a lyrics document holds no line.
var ErrEmptyLyrics = errors.New("no lyrics found")

// ParseLyrics parses LRC or plain text lyrics. Lines carrying one or more
// timestamps make the lyrics synchronized; untimed lines that follow a timed
// one are appended to it.
func ParseLyrics(r io.Reader) (*music.TrackLyrics, error) {
	lyrics := &music.TrackLyrics{Language: music.DefaultLyricsLanguage}
	var synced, unsynced []music.LyricsLine

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}

		timestamps, text := splitTimestamps(line)
		if len(timestamps) > 0 {
			for _, ts := range timestamps {
				synced = append(synced, music.LyricsLine{Timestamp: ts, Text: text})
			}
			continue
		}

		if m := lrcTag.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			applyLyricsTag(lyrics, strings.ToLower(m[1]), strings.TrimSpace(m[2]))
			continue
		}

		if len(synced) > 0 {
			if strings.TrimSpace(line) != "" {
				last := &synced[len(synced)-1]
				last.Text += "\n" + line
			}
			continue
		}
		unsynced = append(unsynced, music.LyricsLine{Text: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading lyrics: %w", err)
	}

	if len(synced) > 0 {
		sort.SliceStable(synced, func(i, j int) bool { return synced[i].Timestamp < synced[j].Timestamp })
		lyrics.Synchronized = true
		lyrics.Lines = synced
		return lyrics, nil
	}

	unsynced = trimEmptyLines(unsynced)
	if len(unsynced) == 0 {
		return nil, ErrEmptyLyrics
	}
	lyrics.Lines = unsynced
	return lyrics, nil
}

func splitTimestamps(line string) ([]time.Duration, string) {
	var timestamps []time.Duration
	rest := strings.TrimLeft(line, " \t")
	for {
		m := lrcTimestamp.FindStringSubmatch(rest)
		if m == nil {
			break
		}
		minutes, _ := strconv.Atoi(m[1])
		seconds, _ := strconv.Atoi(m[2])
		ts := time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
		if frac := m[3]; frac != "" {
			value, _ := strconv.Atoi(frac)
			switch len(frac) {
			case 1:
				ts += time.Duration(value) * 100 * time.Millisecond
			case 2:
				ts += time.Duration(value) * 10 * time.Millisecond
			default:
				ts += time.Duration(value) * time.Millisecond
			}
		}
		timestamps = append(timestamps, ts)
		rest = rest[len(m[0]):]
	}
	if len(timestamps) == 0 {
		return nil, line
	}
	return timestamps, strings.TrimSpace(rest)
}

func applyLyricsTag(lyrics *music.TrackLyrics, key, value string) {
	switch key {
	case "ar":
		lyrics.DisplayArtist = value
	case "ti":
		lyrics.DisplayTitle = value
	case "la", "lang":
		if value != "" {
			lyrics.Language = value
		}
	case "offset":
		if ms, err := strconv.Atoi(strings.TrimPrefix(value, "+")); err == nil {
			lyrics.Offset = time.Duration(ms) * time.Millisecond
		}
	}
}

func trimEmptyLines(lines []music.LyricsLine) []music.LyricsLine {
	for len(lines) > 0 && strings.TrimSpace(lines[0].Text) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1].Text) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
