package watcher

import (
	"time"
)

// FileEventType represents the type of file system event
type FileEventType string

const (
	FileCreated  FileEventType = "created"
	FileRemoved  FileEventType = "removed"
	FileModified FileEventType = "modified"
)

// FileEvent is emitted once the library stopped changing for the debounce
// period. Path is the last changed path, Count the number of changes seen.
type FileEvent struct {
	Path      string
	EventType FileEventType
	Count     int
	Timestamp time.Time
}
