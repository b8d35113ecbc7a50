package filescan

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// M3U is the content of an m3u/m3u8 playlist.
type M3U struct {
	Name    string
	Entries []string
}

// ParseM3U extracts the playlist name and the entries of an m3u document.
// Comments are skipped except the #PLAYLIST directive.
func ParseM3U(r io.Reader) (*M3U, error) {
	playList := &M3U{}
	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}

		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if name, ok := strings.CutPrefix(line, "#PLAYLIST:"); ok {
				playList.Name = strings.TrimSpace(name)
			}
			continue
		}

		if entry := entryPath(line); entry != "" {
			playList.Entries = append(playList.Entries, entry)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read playlist: %w", err)
	}
	return playList, nil
}

// entryPath unquotes an entry line and strips a file:// scheme.
func entryPath(line string) string {
	entry := strings.Trim(line, "\"'")
	return strings.TrimPrefix(entry, "file://")
}
