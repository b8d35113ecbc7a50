package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, root string) <-chan FileEvent {
	t.Helper()
	events := make(chan FileEvent, 1)
	w, err := NewWatcher(events, func(path string) bool {
		return strings.HasSuffix(path, ".flac")
	})
	require.NoError(t, err)
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx, []string{root}))
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	return events
}

func waitEvent(t *testing.T, events <-chan FileEvent) FileEvent {
	t.Helper()
	select {
	case event := <-events:
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
		return FileEvent{}
	}
}

func TestWatcher_DebouncesBurst(t *testing.T) {
	root := t.TempDir()
	events := newTestWatcher(t, root)

	for _, name := range []string{"a.flac", "b.flac", "c.flac"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0644))
	}

	event := waitEvent(t, events)
	assert.GreaterOrEqual(t, event.Count, 3)
	assert.Equal(t, root, filepath.Dir(event.Path))

	select {
	case extra := <-events:
		t.Fatalf("unexpected second event %+v", extra)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_IgnoresUnsupportedFiles(t *testing.T) {
	root := t.TempDir()
	events := newTestWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644))

	select {
	case event := <-events:
		t.Fatalf("unexpected event %+v", event)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	events := newTestWatcher(t, root)

	sub := filepath.Join(root, "album")
	require.NoError(t, os.Mkdir(sub, 0755))
	waitEvent(t, events)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "track.flac"), []byte("x"), 0644))
	event := waitEvent(t, events)
	assert.Equal(t, filepath.Join(sub, "track.flac"), event.Path)
}

func TestWatcher_MissingRoot(t *testing.T) {
	events := make(chan FileEvent, 1)
	w, err := NewWatcher(events, func(string) bool { return true })
	require.NoError(t, err)
	err = w.Start(context.Background(), []string{filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}
