package music

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrInvalidRecord is wrapped by every Validate error. A record failing
// validation concerns a single file and never the store itself.
var ErrInvalidRecord = errors.New("invalid record")

// MaxNameLength is the longest name, in bytes, a track or an artist may carry.
const MaxNameLength = 500

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, fmt.Sprintf(format, args...))
}

// TruncateName shortens name to MaxNameLength bytes without splitting a rune.
func TruncateName(name string) string {
	if len(name) <= MaxNameLength {
		return name
	}
	cut := MaxNameLength
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}
