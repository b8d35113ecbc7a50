package scanning

import (
	"testing"
	"time"

	"github.com/contre95/soulscan/src/features/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSettings_Defaults(t *testing.T) {
	settings, err := NewSettings(config.Scanner{
		Libraries: []config.Library{{Name: "Music", Path: "/srv/music/"}},
	})
	require.NoError(t, err)

	require.Len(t, settings.Libraries, 1)
	assert.Equal(t, "/srv/music", settings.Libraries[0].RootPath)
	assert.Equal(t, 1, settings.Workers)
	assert.Equal(t, config.DefaultWriteBatchSize, settings.WriteBatchSize)
	assert.Equal(t, allPlugins, settings.Plugins)
	assert.Empty(t, settings.Schedule)
}

func TestNewSettings_RejectsBadLibraries(t *testing.T) {
	tests := []struct {
		name      string
		libraries []config.Library
		want      string
	}{
		{
			name:      "duplicate",
			libraries: []config.Library{{Name: "A", Path: "/music"}, {Name: "B", Path: "/music/"}},
			want:      "configured twice",
		},
		{
			name:      "nested",
			libraries: []config.Library{{Name: "A", Path: "/music"}, {Name: "B", Path: "/music/jazz"}},
			want:      "nested",
		},
		{
			name:      "relative",
			libraries: []config.Library{{Name: "A", Path: "music"}},
			want:      "absolute",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSettings(config.Scanner{Libraries: tt.libraries})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewSettings_SiblingRootsAreNotNested(t *testing.T) {
	settings, err := NewSettings(config.Scanner{
		Libraries: []config.Library{{Name: "A", Path: "/music"}, {Name: "B", Path: "/music2"}},
	})
	require.NoError(t, err)
	assert.Len(t, settings.Libraries, 2)
}

func TestScheduleSpec(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Scanner
		want    string
		wantErr bool
	}{
		{name: "never", cfg: config.Scanner{UpdatePeriod: "never"}, want: ""},
		{name: "hourly", cfg: config.Scanner{UpdatePeriod: "hourly", StartTime: "04:15"}, want: "15 * * * *"},
		{name: "daily", cfg: config.Scanner{UpdatePeriod: "daily", StartTime: "04:15"}, want: "15 4 * * *"},
		{name: "weekly", cfg: config.Scanner{UpdatePeriod: "weekly"}, want: "0 0 * * 1"},
		{name: "monthly", cfg: config.Scanner{UpdatePeriod: "monthly", StartTime: "23:30"}, want: "30 23 1 * *"},
		{name: "explicit schedule wins", cfg: config.Scanner{UpdatePeriod: "daily", Schedule: "*/10 * * * *"}, want: "*/10 * * * *"},
		{name: "descriptor", cfg: config.Scanner{Schedule: "@daily"}, want: "@daily"},
		{name: "bad schedule", cfg: config.Scanner{Schedule: "every day"}, wantErr: true},
		{name: "bad start time", cfg: config.Scanner{UpdatePeriod: "daily", StartTime: "25:00"}, wantErr: true},
		{name: "unknown period", cfg: config.Scanner{UpdatePeriod: "yearly"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scheduleSpec(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextScheduledTime(t *testing.T) {
	now := time.Date(2024, 3, 10, 14, 20, 0, 0, time.Local)

	next, err := nextScheduledTime("", now)
	require.NoError(t, err)
	assert.True(t, next.IsZero())

	next, err = nextScheduledTime("15 4 * * *", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 11, 4, 15, 0, 0, time.Local), next)

	next, err = nextScheduledTime("30 * * * *", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 14, 30, 0, 0, time.Local), next)
}

func TestSettings_Equal(t *testing.T) {
	cfg := config.Scanner{Libraries: []config.Library{{Name: "A", Path: "/music"}}, UpdatePeriod: "daily"}
	a, err := NewSettings(cfg)
	require.NoError(t, err)
	b, err := NewSettings(cfg)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	cfg.Libraries[0].Name = "B"
	c, err := NewSettings(cfg)
	require.NoError(t, err)
	assert.False(t, a.Equal(c))
}

func TestScanOptions_Merge(t *testing.T) {
	merged := ScanOptions{FullScan: true}.Merge(ScanOptions{Compact: true})
	assert.Equal(t, ScanOptions{FullScan: true, Compact: true}, merged)
	assert.Equal(t, ScanOptions{}, ScanOptions{}.Merge(ScanOptions{}))
}

func TestScanStepStats_Progress(t *testing.T) {
	assert.Equal(t, 0, ScanStepStats{}.Progress())
	assert.Equal(t, 50, ScanStepStats{TotalElems: 10, ProcessedElems: 5}.Progress())
	assert.Equal(t, 100, ScanStepStats{TotalElems: 10, ProcessedElems: 12}.Progress())
}

func TestStripLanguageSuffix(t *testing.T) {
	tests := []struct {
		stem string
		want string
		ok   bool
	}{
		{"song.en", "song", true},
		{"song.fra", "song", true},
		{"song", "song", false},
		{"song.live2", "song.live2", false},
		{"song.e1", "song.e1", false},
		{".en", ".en", false},
	}
	for _, tt := range tests {
		got, ok := StripLanguageSuffix(tt.stem)
		assert.Equal(t, tt.want, got, tt.stem)
		assert.Equal(t, tt.ok, ok, tt.stem)
	}
}

func TestNormalizedPathKey(t *testing.T) {
	assert.Equal(t, NormalizedPathKey("/music/Björk/Jóga.flac"), NormalizedPathKey("/music/bjork/joga.mp3"))
	assert.NotEqual(t, NormalizedPathKey("/music/a/song.flac"), NormalizedPathKey("/music/b/song.flac"))
}

func TestFormatScanReport(t *testing.T) {
	start := time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC)
	stats := &ScanStats{
		StartTime:      start,
		StopTime:       start.Add(90 * time.Second),
		TotalFileCount: 12,
		Skips:          9,
		Additions:      2,
		Updates:        1,
		Duplicates:     []DuplicateGroup{{Reason: DuplicateSamePath}},
	}
	report := FormatScanReport(stats)
	assert.Contains(t, report, "Scan complete")
	assert.Contains(t, report, "Files: 12 (skipped 9)")
	assert.Contains(t, report, "Duplicate groups: 1")
	assert.Contains(t, report, "Duration: 1m30s")

	stats.Aborted = true
	assert.Contains(t, FormatScanReport(stats), "Scan aborted")
}
