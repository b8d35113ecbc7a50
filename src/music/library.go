package music

import (
	"path/filepath"
	"strings"
)

// MediaLibrary is a configured filesystem root tracked as one unit.
type MediaLibrary struct {
	ID       int64
	Name     string
	RootPath string
}

// Validate validates the media library fields.
func (l *MediaLibrary) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return invalidf("media library name cannot be empty")
	}
	if !filepath.IsAbs(l.RootPath) {
		return invalidf("media library root must be absolute, got %q", l.RootPath)
	}
	return nil
}

// Contains reports whether path is the library root or lies below it.
func (l *MediaLibrary) Contains(path string) bool {
	return IsPathInParent(path, l.RootPath)
}

// Directory mirrors a filesystem directory. Directories form one tree per
// media library; ParentID is 0 for a library root.
type Directory struct {
	ID             int64
	AbsolutePath   string
	Name           string
	ParentID       int64
	MediaLibraryID int64
}

// Validate validates the directory fields.
func (d *Directory) Validate() error {
	if !filepath.IsAbs(d.AbsolutePath) {
		return invalidf("directory path must be absolute, got %q", d.AbsolutePath)
	}
	if d.ParentID == d.ID && d.ID != 0 {
		return invalidf("directory %d cannot be its own parent", d.ID)
	}
	return nil
}

// IsPathInParent reports whether path equals parent or is located below it.
func IsPathInParent(path, parent string) bool {
	path = filepath.Clean(path)
	parent = filepath.Clean(parent)
	if path == parent {
		return true
	}
	rel, err := filepath.Rel(parent, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
