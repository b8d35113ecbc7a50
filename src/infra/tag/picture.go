package tag

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/contre95/soulscan/src/features/scanning/filescan"
	"github.com/dhowden/tag"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var errEmptyPicture = errors.New("empty picture data")

// decodePicture probes the dimensions of an embedded picture without decoding the pixels.
func decodePicture(index int, mimeType string, data []byte) filescan.EmbeddedPicture {
	picture := filescan.EmbeddedPicture{Index: index, MIMEType: mimeType}
	if len(data) == 0 {
		picture.Err = errEmptyPicture
		return picture
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		picture.Err = err
		return picture
	}
	picture.Width = cfg.Width
	picture.Height = cfg.Height
	if picture.MIMEType == "" {
		picture.MIMEType = "image/" + format
	}
	return picture
}

// readTagPicture handles the single picture dhowden/tag exposes for the
// formats without a dedicated reader.
func readTagPicture(tags tag.Metadata, audio *filescan.AudioFile) {
	if pic := tags.Picture(); pic != nil {
		audio.Pictures = append(audio.Pictures, decodePicture(0, pic.MIMEType, pic.Data))
	}
}
