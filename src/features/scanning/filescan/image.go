package filescan

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/contre95/soulscan/src/music"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultImageExtensions are the picture formats.
var DefaultImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}

// ImageScanner handles standalone pictures such as cover.jpg.
type ImageScanner struct {
	fileIndex
}

var _ FileScanner = (*ImageScanner)(nil)

func NewImageScanner() *ImageScanner {
	return &ImageScanner{fileIndex: fileIndex{kind: music.FileKindImage}}
}

func (s *ImageScanner) Name() string                  { return "Image scanner" }
func (s *ImageScanner) SupportedFiles() []string      { return nil }
func (s *ImageScanner) SupportedExtensions() []string { return DefaultImageExtensions }

func (s *ImageScanner) NeedsScan(file FileToScan) bool {
	return s.needsScan(file)
}

func (s *ImageScanner) CreateScanOperation(file FileToScan) FileScanOperation {
	return &imageScanOperation{operationBase: operationBase{file: file, scanner: s.Name()}}
}

type imageScanOperation struct {
	operationBase
	config *image.Config
}

func (o *imageScanOperation) Scan(ctx context.Context) {
	f, err := os.Open(o.file.Path)
	if err != nil {
		o.addError(&IOScanError{Path: o.file.Path, Err: err})
		return
	}
	defer f.Close()

	config, _, err := image.DecodeConfig(f)
	if err != nil {
		o.addError(&ImageFileScanError{Path: o.file.Path, Reason: err.Error()})
		return
	}
	o.config = &config
}

func (o *imageScanOperation) ProcessResult(tx music.WriteTx) (OperationResult, error) {
	path := o.file.Path
	existing, err := tx.FindImageByPath(path)
	if err != nil {
		return Skipped, fmt.Errorf("failed to find image %s: %w", path, err)
	}

	if o.config == nil {
		if existing == nil {
			return Skipped, nil
		}
		if err := tx.RemoveFile(music.FileKindImage, existing.ID); err != nil {
			return Skipped, err
		}
		return Removed, nil
	}

	directory, err := GetOrCreateDirectory(tx, o.file.Directory(), o.file.Library)
	if err != nil {
		return Skipped, err
	}

	img := &music.Image{
		AbsoluteFilePath: path,
		FileStem:         o.file.Stem(),
		LastWriteTime:    o.file.LastWriteTime,
		FileSize:         o.file.Size,
		Width:            o.config.Width,
		Height:           o.config.Height,
		DirectoryID:      directory.ID,
	}
	if existing == nil {
		if err := tx.CreateImage(img); err != nil {
			return Skipped, err
		}
		return Added, nil
	}

	img.ID = existing.ID
	if err := tx.UpdateImage(img); err != nil {
		return Skipped, err
	}
	return Updated, nil
}
