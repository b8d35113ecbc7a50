package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DEBOUNCE_SECS = 5

// Watcher monitors the library roots and their sub directories and emits a
// single debounced event for each burst of changes.
type Watcher struct {
	watcher       *fsnotify.Watcher
	filter        func(path string) bool
	debounce      time.Duration
	debounceTimer *time.Timer
	debounceMutex sync.Mutex
	pending       FileEvent
	running       bool
	stopChan      chan struct{}
	eventChan     chan<- FileEvent
}

// NewWatcher creates a new file system watcher. filter tells which files are
// relevant to the library; directories are always relevant.
func NewWatcher(eventChan chan<- FileEvent, filter func(path string) bool) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:   watcher,
		filter:    filter,
		debounce:  time.Duration(DEBOUNCE_SECS) * time.Second,
		eventChan: eventChan,
		stopChan:  make(chan struct{}),
	}, nil
}

// Start begins watching the given roots recursively
func (w *Watcher) Start(ctx context.Context, roots []string) error {
	for _, root := range roots {
		slog.Info("Starting file watcher", "path", root)
		if err := w.addTree(root); err != nil {
			w.watcher.Close()
			return err
		}
	}

	w.running = true
	go w.watchLoop(ctx)

	slog.Info("File watcher started successfully", "roots", len(roots))
	return nil
}

// Stop stops the file watcher
func (w *Watcher) Stop() {
	if !w.running {
		return
	}

	slog.Info("Stopping file watcher")
	w.running = false
	close(w.stopChan)

	w.debounceMutex.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMutex.Unlock()

	w.watcher.Close()
}

// addTree watches root and every directory below it. Unreadable sub
// directories are skipped.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			slog.Warn("Cannot watch directory", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			if path == root {
				return err
			}
			slog.Warn("Cannot watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				slog.Warn("File watcher overflow, requesting a scan")
				w.trigger(FileEvent{EventType: FileModified})
				continue
			}
			slog.Error("File watcher error", "error", err)

		case <-w.stopChan:
			return

		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create):
		if isDir(event.Name) {
			if err := w.addTree(event.Name); err != nil {
				slog.Warn("Cannot watch new directory", "path", event.Name, "error", err)
			}
			w.trigger(FileEvent{Path: event.Name, EventType: FileCreated})
			return
		}
		if w.filter(event.Name) {
			w.trigger(FileEvent{Path: event.Name, EventType: FileCreated})
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// The removed path cannot be inspected anymore, it may have been a directory.
		w.trigger(FileEvent{Path: event.Name, EventType: FileRemoved})
	case event.Has(fsnotify.Write):
		if w.filter(event.Name) {
			w.trigger(FileEvent{Path: event.Name, EventType: FileModified})
		}
	}
}

// trigger starts or resets the debounce timer.
func (w *Watcher) trigger(event FileEvent) {
	slog.Debug("Detected library change", "path", event.Path, "type", event.EventType)

	w.debounceMutex.Lock()
	defer w.debounceMutex.Unlock()

	w.pending.Path = event.Path
	w.pending.EventType = event.EventType
	w.pending.Count++

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, w.emitDebounceEvent)
}

// emitDebounceEvent emits a file event after debounce period
func (w *Watcher) emitDebounceEvent() {
	w.debounceMutex.Lock()
	event := w.pending
	w.pending = FileEvent{}
	w.debounceMutex.Unlock()
	event.Timestamp = time.Now()

	select {
	case w.eventChan <- event:
		slog.Info("Emitted file event after debounce", "path", event.Path, "changes", event.Count)
	default:
		slog.Warn("Event channel full, dropping file event", "path", event.Path)
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
