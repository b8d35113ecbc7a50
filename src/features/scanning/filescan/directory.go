package filescan

import (
	"fmt"
	"path/filepath"

	"github.com/contre95/soulscan/src/music"
)

// GetOrCreateDirectory returns the directory record of path, creating it and
// its missing ancestors up to the library root.
func GetOrCreateDirectory(tx music.WriteTx, path string, library music.MediaLibrary) (*music.Directory, error) {
	path = filepath.Clean(path)
	directory, err := tx.FindDirectoryByPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to find directory %s: %w", path, err)
	}
	if directory != nil {
		return directory, nil
	}

	var parentID int64
	if path != filepath.Clean(library.RootPath) && library.Contains(path) {
		parent, err := GetOrCreateDirectory(tx, filepath.Dir(path), library)
		if err != nil {
			return nil, err
		}
		parentID = parent.ID
	}

	directory = &music.Directory{
		AbsolutePath:   path,
		Name:           filepath.Base(path),
		ParentID:       parentID,
		MediaLibraryID: library.ID,
	}
	if err := tx.CreateDirectory(directory); err != nil {
		return nil, err
	}
	return directory, nil
}
