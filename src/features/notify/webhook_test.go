package notify

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/contre95/soulscan/src/features/config"
	"github.com/contre95/soulscan/src/features/scanning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebhook(hook config.Webhook) *Webhook {
	return NewWebhook(config.NewManager(&config.Config{Webhook: hook}))
}

func TestWebhook_Render(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	stats := scanning.ScanStats{
		ID:             "abc",
		StartTime:      start,
		StopTime:       start.Add(90 * time.Second),
		TotalFileCount: 12,
		Additions:      3,
		Deletions:      1,
		Duplicates:     []scanning.DuplicateGroup{{}, {}},
	}

	w := newWebhook(config.Webhook{
		Enabled: true,
		Command: "notify {{.Status}} {{.ID}} +{{.Added}} -{{.Removed}} {{.Files}} {{.Duplicates}} {{.Duration}}",
	})
	command, ok, err := w.Render(EventComplete, stats)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "notify complete abc +3 -1 12 2 1m30s", command)
}

func TestWebhook_RenderFilters(t *testing.T) {
	_, ok, err := newWebhook(config.Webhook{Enabled: false, Command: "true"}).Render(EventComplete, scanning.ScanStats{})
	require.NoError(t, err)
	assert.False(t, ok)

	w := newWebhook(config.Webhook{Enabled: true, Events: []string{EventAborted}, Command: "true"})
	_, ok, err = w.Render(EventComplete, scanning.ScanStats{})
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = w.Render(EventAborted, scanning.ScanStats{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWebhook_RenderBadTemplate(t *testing.T) {
	_, _, err := newWebhook(config.Webhook{Enabled: true, Command: "echo {{.Nope"}).Render(EventComplete, scanning.ScanStats{})
	assert.Error(t, err)
}

func TestWebhook_Run(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.txt")
	w := newWebhook(config.Webhook{})

	require.NoError(t, w.Run(context.Background(), "printf done > "+out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "done", string(data))

	assert.Error(t, w.Run(context.Background(), "exit 3"))
}

func TestWebhook_RunTimeout(t *testing.T) {
	w := newWebhook(config.Webhook{})
	w.timeout = 100 * time.Millisecond

	start := time.Now()
	err := w.Run(context.Background(), "sleep 5")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestWebhook_Subscribe(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.txt")
	w := newWebhook(config.Webhook{Enabled: true, Command: "printf {{.Status}} > " + out})

	var events scanning.Events
	w.Subscribe(&events)
	events.ScanAborted.Emit(scanning.ScanStats{Aborted: true})

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(out)
		return err == nil && string(data) == EventAborted
	}, 5*time.Second, 20*time.Millisecond)
}
