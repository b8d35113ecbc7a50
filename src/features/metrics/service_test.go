package metrics

import (
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/contre95/soulscan/src/features/scanning"
	"github.com/contre95/soulscan/src/infra/database"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := database.NewSqliteStore(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewService(store)
}

func TestService_ScanEvents(t *testing.T) {
	service := newTestService(t)
	var events scanning.Events
	service.Subscribe(&events)
	m := service.Metrics()

	events.ScanStarted.Emit(struct{}{})
	assert.Equal(t, float64(scanning.InProgress), testutil.ToFloat64(m.ScannerState))

	events.ScanInProgress.Emit(scanning.ScanStepStats{StepIndex: 2, TotalElems: 4, ProcessedElems: 1})
	assert.Equal(t, float64(2), testutil.ToFloat64(m.StepIndex))
	assert.Equal(t, float64(25), testutil.ToFloat64(m.StepProgress))

	start := time.Now()
	events.ScanComplete.Emit(scanning.ScanStats{
		StartTime:   start,
		StopTime:    start.Add(3 * time.Second),
		Additions:   3,
		Updates:     1,
		Skips:       7,
		ErrorsCount: 2,
		Duplicates:  []scanning.DuplicateGroup{{Reason: scanning.DuplicateSameFileSize}},
	})
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Scans.WithLabelValues("complete")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.Files.WithLabelValues("added")))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.Files.WithLabelValues("skipped")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ScanErrors))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DuplicateGroups))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.LibraryTracks))
	assert.Equal(t, float64(scanning.NotScheduled), testutil.ToFloat64(m.ScannerState))

	events.ScanAborted.Emit(scanning.ScanStats{Deletions: 4, Aborted: true})
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Scans.WithLabelValues("aborted")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.Files.WithLabelValues("removed")))
}

func TestRegisterRoutes_Metrics(t *testing.T) {
	service := newTestService(t)
	var events scanning.Events
	service.Subscribe(&events)
	events.ScanAborted.Emit(scanning.ScanStats{Aborted: true})

	app := fiber.New()
	RegisterRoutes(app, service)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `soulscan_scans_total{result="aborted"} 1`)
}
