package watcher

import "time"

// FileEventType is the last kind of change seen before a file settled.
type FileEventType string

const (
	FileCreated  FileEventType = "created"
	FileModified FileEventType = "modified"
	FileRemoved  FileEventType = "removed"
)

// FileEvent is emitted once per burst of changes to the watched file.
type FileEvent struct {
	Path      string
	EventType FileEventType
	Timestamp time.Time
}
