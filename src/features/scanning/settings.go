package scanning

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/contre95/soulscan/src/features/config"
	"github.com/contre95/soulscan/src/features/scanning/filescan"
	"github.com/contre95/soulscan/src/music"
	"github.com/robfig/cron/v3"
)

const (
	PluginAudio      = "audio"
	PluginLyrics     = "lyrics"
	PluginPlayList   = "playlist"
	PluginImage      = "image"
	PluginArtistInfo = "artist_info"
)

var allPlugins = []string{PluginAudio, PluginLyrics, PluginPlayList, PluginImage, PluginArtistInfo}

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Settings is the part of the configuration a scan run depends on. It is
// captured when the service starts and refreshed on reload.
type Settings struct {
	Libraries       []music.MediaLibrary
	AudioExtensions []string
	Plugins         []string
	ExcludeFile     string
	Workers         int
	WriteBatchSize  int
	// Schedule is a cron expression, empty when scans are only run on request.
	Schedule string
}

// NewSettings extracts the scanner settings from the configuration.
func NewSettings(cfg config.Scanner) (Settings, error) {
	settings := Settings{
		AudioExtensions: cfg.AudioExtensions,
		Plugins:         cfg.Plugins,
		ExcludeFile:     strings.TrimSpace(cfg.ExcludeFile),
		Workers:         max(cfg.Workers, 1),
		WriteBatchSize:  cfg.WriteBatchSize,
	}
	if settings.WriteBatchSize <= 0 {
		settings.WriteBatchSize = config.DefaultWriteBatchSize
	}
	if len(settings.Plugins) == 0 {
		settings.Plugins = allPlugins
	}

	seen := make(map[string]bool)
	for _, library := range cfg.Libraries {
		root := filepath.Clean(library.Path)
		if seen[root] {
			return Settings{}, fmt.Errorf("library root %s is configured twice", root)
		}
		seen[root] = true
		lib := music.MediaLibrary{Name: library.Name, RootPath: root}
		if err := lib.Validate(); err != nil {
			return Settings{}, err
		}
		for _, other := range settings.Libraries {
			if other.Contains(root) || lib.Contains(other.RootPath) {
				return Settings{}, fmt.Errorf("library roots %s and %s are nested", other.RootPath, root)
			}
		}
		settings.Libraries = append(settings.Libraries, lib)
	}

	spec, err := scheduleSpec(cfg)
	if err != nil {
		return Settings{}, err
	}
	settings.Schedule = spec
	return settings, nil
}

// Equal reports whether two settings would produce the same scans.
func (s Settings) Equal(other Settings) bool {
	return slices.Equal(s.Libraries, other.Libraries) &&
		slices.Equal(s.AudioExtensions, other.AudioExtensions) &&
		slices.Equal(s.Plugins, other.Plugins) &&
		s.ExcludeFile == other.ExcludeFile &&
		s.Workers == other.Workers &&
		s.WriteBatchSize == other.WriteBatchSize &&
		s.Schedule == other.Schedule
}

func (s Settings) pluginEnabled(name string) bool {
	return slices.Contains(s.Plugins, name)
}

// libraryOf returns the configured library holding path.
func (s Settings) libraryOf(path string) (music.MediaLibrary, bool) {
	for _, library := range s.Libraries {
		if library.Contains(path) {
			return library, true
		}
	}
	return music.MediaLibrary{}, false
}

// NewRegistry builds the scanners enabled in the settings.
func (s Settings) NewRegistry(parser filescan.AudioFileParser) *filescan.Registry {
	registry := filescan.NewRegistry()
	if s.pluginEnabled(PluginAudio) {
		registry.Add(filescan.NewAudioScanner(parser, s.AudioExtensions))
	}
	if s.pluginEnabled(PluginLyrics) {
		registry.Add(filescan.NewLyricsScanner())
	}
	if s.pluginEnabled(PluginPlayList) {
		registry.Add(filescan.NewPlayListScanner())
	}
	if s.pluginEnabled(PluginImage) {
		registry.Add(filescan.NewImageScanner())
	}
	if s.pluginEnabled(PluginArtistInfo) {
		registry.Add(filescan.NewArtistInfoScanner())
	}
	return registry
}

// scheduleSpec converts the configured update period into a cron expression.
// An explicit schedule takes precedence.
func scheduleSpec(cfg config.Scanner) (string, error) {
	if spec := strings.TrimSpace(cfg.Schedule); spec != "" {
		if _, err := scheduleParser.Parse(spec); err != nil {
			return "", fmt.Errorf("invalid scan schedule %q: %w", spec, err)
		}
		return spec, nil
	}

	hour, minute := 0, 0
	if cfg.StartTime != "" {
		start, err := time.Parse("15:04", cfg.StartTime)
		if err != nil {
			return "", fmt.Errorf("invalid scan start time %q: %w", cfg.StartTime, err)
		}
		hour, minute = start.Hour(), start.Minute()
	}

	switch cfg.UpdatePeriod {
	case "", "never":
		return "", nil
	case "hourly":
		return fmt.Sprintf("%d * * * *", minute), nil
	case "daily":
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	case "weekly":
		return fmt.Sprintf("%d %d * * 1", minute, hour), nil
	case "monthly":
		return fmt.Sprintf("%d %d 1 * *", minute, hour), nil
	default:
		return "", fmt.Errorf("unknown update period %q", cfg.UpdatePeriod)
	}
}

// nextScheduledTime returns the next time the spec fires after now, or the
// zero time when scans are not scheduled.
func nextScheduledTime(spec string, now time.Time) (time.Time, error) {
	if spec == "" {
		return time.Time{}, nil
	}
	schedule, err := scheduleParser.Parse(spec)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(now), nil
}
