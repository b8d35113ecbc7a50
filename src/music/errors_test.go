package music

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateName(t *testing.T) {
	short := "Song"
	assert.Equal(t, short, TruncateName(short))

	long := strings.Repeat("a", MaxNameLength+20)
	assert.Len(t, TruncateName(long), MaxNameLength)

	// "é" is two bytes: cutting at MaxNameLength would split the last one.
	accented := "a" + strings.Repeat("é", MaxNameLength)
	truncated := TruncateName(accented)
	assert.True(t, utf8.ValidString(truncated))
	assert.Len(t, truncated, MaxNameLength-1)
}

func TestValidate_WrapsInvalidRecord(t *testing.T) {
	track := Track{AbsoluteFilePath: "/music/01.flac", DirectoryID: 1, Name: strings.Repeat("a", MaxNameLength+1)}
	assert.ErrorIs(t, track.Validate(), ErrInvalidRecord)

	track.Name = TruncateName(track.Name)
	assert.NoError(t, track.Validate())

	playList := PlayListFile{AbsoluteFilePath: "/music/.m3u"}
	assert.ErrorIs(t, playList.Validate(), ErrInvalidRecord)

	artist := Artist{Name: "  "}
	assert.ErrorIs(t, artist.Validate(), ErrInvalidRecord)
}
