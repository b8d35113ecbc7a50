package scanning

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/contre95/soulscan/src/features/config"
	"github.com/contre95/soulscan/src/features/scanning/filescan"
	"github.com/contre95/soulscan/src/infra/database"
	"github.com/contre95/soulscan/src/music"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeParser reads the tags of a test audio file from its content: one
// "key=value" per line. A file starting with "noaudio" has no audio stream.
type fakeParser struct {
	mu    sync.Mutex
	calls int
}

func (p *fakeParser) Parse(path string) (*filescan.AudioFile, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := strings.TrimRight(string(data), "\x00")
	if strings.HasPrefix(content, "noaudio") {
		return nil, filescan.ErrNoAudioTrack
	}

	audio := &filescan.AudioFile{Properties: &filescan.AudioProperties{Duration: time.Minute}}
	for _, line := range strings.Split(content, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "title":
			audio.Title = value
		case "album":
			audio.Album = value
		case "artist":
			audio.Artists = append(audio.Artists, filescan.ArtistTag{Name: value})
		case "albumartist":
			audio.ReleaseArtists = append(audio.ReleaseArtists, filescan.ArtistTag{Name: value})
		case "disc":
			audio.DiscNumber, _ = strconv.Atoi(value)
		case "mbid":
			audio.TrackMBID = value
		}
	}
	return audio, nil
}

func (p *fakeParser) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type harness struct {
	t        *testing.T
	root     string
	store    *database.SqliteStore
	parser   *fakeParser
	settings Settings
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := database.NewSqliteStore(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := &harness{t: t, root: t.TempDir(), store: store, parser: &fakeParser{}}
	h.configure(h.root)
	return h
}

func (h *harness) configure(roots ...string) {
	h.t.Helper()
	cfg := config.Scanner{ExcludeFile: config.DefaultExcludeFile, Workers: 2, WriteBatchSize: 3}
	for i, root := range roots {
		cfg.Libraries = append(cfg.Libraries, config.Library{Name: "Library " + string(rune('A'+i)), Path: root})
	}
	settings, err := NewSettings(cfg)
	require.NoError(h.t, err)
	h.settings = settings
}

func (h *harness) write(rel, content string) string {
	h.t.Helper()
	path := filepath.Join(h.root, rel)
	require.NoError(h.t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (h *harness) run(ctx context.Context, options ScanOptions) (*ScanStats, error) {
	settings := h.settings
	settings.Libraries = append([]music.MediaLibrary(nil), h.settings.Libraries...)
	stats := &ScanStats{StartTime: time.Now()}
	sc := &scanContext{
		ctx:      ctx,
		store:    h.store,
		settings: settings,
		registry: settings.NewRegistry(h.parser),
		options:  options,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		stats:    stats,
	}
	err := runPipeline(sc)
	stats.StopTime = time.Now()
	return stats, err
}

func (h *harness) scan(options ScanOptions) *ScanStats {
	h.t.Helper()
	stats, err := h.run(context.Background(), options)
	require.NoError(h.t, err)
	return stats
}

func (h *harness) read(fn func(tx music.ReadTx)) {
	h.t.Helper()
	require.NoError(h.t, h.store.Read(context.Background(), func(tx music.ReadTx) error {
		fn(tx)
		return nil
	}))
}

func (h *harness) track(path string) *music.Track {
	h.t.Helper()
	var track *music.Track
	h.read(func(tx music.ReadTx) {
		var err error
		track, err = tx.FindTrackByPath(path)
		require.NoError(h.t, err)
	})
	return track
}

func (h *harness) lyrics(path string) *music.TrackLyrics {
	h.t.Helper()
	var lyrics *music.TrackLyrics
	h.read(func(tx music.ReadTx) {
		var err error
		lyrics, err = tx.FindTrackLyricsByPath(path)
		require.NoError(h.t, err)
	})
	return lyrics
}

func groupsWithReason(stats *ScanStats, reason DuplicateReason) []DuplicateGroup {
	var groups []DuplicateGroup
	for _, group := range stats.Duplicates {
		if group.Reason == reason {
			groups = append(groups, group)
		}
	}
	return groups
}

func TestPipeline_ScanIsIdempotent(t *testing.T) {
	h := newHarness(t)
	first := h.write("Album/01 - Intro.flac", "title=Intro\nalbum=Album\nartist=Band")
	h.write("Album/02 - Song.mp3", "title=Song\nalbum=Album\nartist=Band")
	h.write("Album/01 - Intro.lrc", "[00:01.00]hello")
	h.write("Album/notes.pdf", "ignored")

	stats := h.scan(ScanOptions{})
	assert.Equal(t, 3, stats.TotalFileCount)
	assert.Equal(t, 3, stats.Scans)
	assert.Equal(t, 3, stats.Additions)
	assert.Zero(t, stats.ErrorsCount)
	assert.Equal(t, 2, h.parser.Calls())

	track := h.track(first)
	require.NotNil(t, track)
	assert.Equal(t, "Intro", track.Name)
	assert.Equal(t, time.Minute, track.Duration)
	lyrics := h.lyrics(filepath.Join(h.root, "Album/01 - Intro.lrc"))
	require.NotNil(t, lyrics)
	assert.Equal(t, track.ID, lyrics.TrackID)

	again := h.scan(ScanOptions{})
	assert.Equal(t, 3, again.TotalFileCount)
	assert.Equal(t, 3, again.Skips)
	assert.Zero(t, again.Scans)
	assert.Zero(t, again.ChangesCount())
	assert.Equal(t, 2, h.parser.Calls())
	assert.Equal(t, track.ID, h.track(first).ID)
}

func TestPipeline_ChangedFilesAreRescanned(t *testing.T) {
	h := newHarness(t)
	first := h.write("a/01.flac", "title=One")
	h.write("a/02.flac", "title=Two")
	h.scan(ScanOptions{})

	require.NoError(t, os.WriteFile(first, []byte("title=One (remaster)"), 0644))
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(first, later, later))

	stats := h.scan(ScanOptions{})
	assert.Equal(t, 1, stats.Updates)
	assert.Equal(t, 1, stats.Skips)
	assert.Equal(t, "One (remaster)", h.track(first).Name)

	full := h.scan(ScanOptions{FullScan: true})
	assert.Equal(t, 2, full.Scans)
	assert.Equal(t, 2, full.Updates)
	assert.Zero(t, full.Skips)
}

func TestPipeline_RemovedFiles(t *testing.T) {
	h := newHarness(t)
	first := h.write("a/01.flac", "title=One")
	second := h.write("a/02.flac", "title=Two")
	lrc := h.write("a/01.lrc", "Some words")
	h.scan(ScanOptions{})
	require.NotZero(t, h.lyrics(lrc).TrackID)

	require.NoError(t, os.Remove(second))
	stats := h.scan(ScanOptions{})
	assert.Equal(t, 1, stats.Deletions)
	assert.Nil(t, h.track(second))
	assert.NotNil(t, h.track(first))

	require.NoError(t, os.Remove(first))
	h.scan(ScanOptions{})
	assert.Nil(t, h.track(first))
	lyrics := h.lyrics(lrc)
	require.NotNil(t, lyrics)
	assert.Zero(t, lyrics.TrackID)
}

func TestPipeline_OrphansAreRemoved(t *testing.T) {
	h := newHarness(t)
	h.write("Band/Album/01.flac", "title=One\nalbum=Album\nartist=Band")
	h.write("Other/01.flac", "title=Other\nalbum=Other album\nartist=Other band")
	h.scan(ScanOptions{})

	require.NoError(t, os.RemoveAll(filepath.Join(h.root, "Band")))
	h.scan(ScanOptions{})

	h.read(func(tx music.ReadTx) {
		release, err := tx.FindReleaseByName("Album")
		require.NoError(t, err)
		assert.Nil(t, release)
		artist, err := tx.FindArtistByName("Band")
		require.NoError(t, err)
		assert.Nil(t, artist)
		directory, err := tx.FindDirectoryByPath(filepath.Join(h.root, "Band"))
		require.NoError(t, err)
		assert.Nil(t, directory)

		release, err = tx.FindReleaseByName("Other album")
		require.NoError(t, err)
		assert.NotNil(t, release)
		artist, err = tx.FindArtistByName("Other band")
		require.NoError(t, err)
		assert.NotNil(t, artist)

		count, err := tx.CountTracks()
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestPipeline_ExcludeMarker(t *testing.T) {
	h := newHarness(t)
	kept := h.write("keep/01.flac", "title=Kept")
	hidden := h.write("hidden/deep/01.flac", "title=Hidden")
	h.scan(ScanOptions{})
	require.NotNil(t, h.track(hidden))

	h.write("hidden/"+config.DefaultExcludeFile, "")
	stats := h.scan(ScanOptions{})
	assert.Equal(t, 1, stats.TotalFileCount)
	assert.Nil(t, h.track(hidden))
	assert.NotNil(t, h.track(kept))
}

func TestPipeline_MissingRootKeepsLibrary(t *testing.T) {
	h := newHarness(t)
	track := h.write("a/01.flac", "title=One")
	h.scan(ScanOptions{})

	h.configure(h.root, filepath.Join(t.TempDir(), "unmounted"))
	_, err := h.run(context.Background(), ScanOptions{})
	assert.ErrorIs(t, err, ErrMissingRoot)
	assert.NotNil(t, h.track(track))
}

func TestPipeline_UnconfiguredLibraryIsRemoved(t *testing.T) {
	h := newHarness(t)
	other := t.TempDir()
	otherTrack := filepath.Join(other, "01.flac")
	require.NoError(t, os.WriteFile(otherTrack, []byte("title=Other"), 0644))
	kept := h.write("01.flac", "title=Kept")

	h.configure(h.root, other)
	h.scan(ScanOptions{})
	require.NotNil(t, h.track(otherTrack))

	h.configure(h.root)
	h.scan(ScanOptions{})
	assert.Nil(t, h.track(otherTrack))
	assert.NotNil(t, h.track(kept))
	h.read(func(tx music.ReadTx) {
		libraries, err := tx.FindMediaLibraries()
		require.NoError(t, err)
		require.Len(t, libraries, 1)
		assert.Equal(t, h.root, libraries[0].RootPath)
	})
}

func TestPipeline_DirectoryLibraryIsRepaired(t *testing.T) {
	h := newHarness(t)
	other := t.TempDir()
	track := h.write("a/01.flac", "title=One")
	h.configure(h.root, other)
	h.scan(ScanOptions{})

	dir := filepath.Join(h.root, "a")
	var libraryID int64
	require.NoError(t, h.store.Write(context.Background(), func(tx music.WriteTx) error {
		directory, err := tx.FindDirectoryByPath(dir)
		require.NoError(t, err)
		require.NotNil(t, directory)
		libraryID = directory.MediaLibraryID
		wrong, err := tx.FindMediaLibraryByPath(other)
		require.NoError(t, err)
		require.NotNil(t, wrong)
		return tx.SetDirectoryMediaLibrary(directory.ID, wrong.ID)
	}))

	h.scan(ScanOptions{})
	h.read(func(tx music.ReadTx) {
		directory, err := tx.FindDirectoryByPath(dir)
		require.NoError(t, err)
		require.NotNil(t, directory)
		assert.Equal(t, libraryID, directory.MediaLibraryID)
	})
	assert.NotNil(t, h.track(track))
}

func TestPipeline_ScanErrors(t *testing.T) {
	h := newHarness(t)
	h.write("a/broken.flac", "noaudio")
	h.write("a/empty.lrc", "   \n")

	stats := h.scan(ScanOptions{})
	assert.Equal(t, 2, stats.Failures)
	assert.Equal(t, 2, stats.ErrorsCount)
	assert.Zero(t, stats.Additions)

	kinds := make([]string, 0, len(stats.Errors))
	for _, entry := range stats.Errors {
		kinds = append(kinds, entry.Kind)
	}
	assert.ElementsMatch(t, []string{"no_audio_track_found", "lyrics_file_scan"}, kinds)
}

func TestPipeline_Duplicates(t *testing.T) {
	h := newHarness(t)
	h.write("a/Café.flac", "title=One")
	h.write("b/Song.flac", "title=Song\nmbid=abc")
	h.write("c/Song.flac", "title=Song copy\nmbid=abc")
	h.write("d/Song.mp3", "title=Song other\nmbid=abc")
	h.write("A/cafe.mp3", "title=Two")

	stats := h.scan(ScanOptions{})

	byMBID := groupsWithReason(stats, DuplicateSameTrackMBID)
	require.Len(t, byMBID, 1)
	assert.Equal(t, "abc", byMBID[0].Key)
	assert.Len(t, byMBID[0].TrackIDs, 3)

	byPath := groupsWithReason(stats, DuplicateSamePath)
	require.Len(t, byPath, 1)
	assert.ElementsMatch(t, []string{filepath.Join(h.root, "a/Café.flac"), filepath.Join(h.root, "A/cafe.mp3")}, byPath[0].Paths)
}

func TestPipeline_SameSizeDuplicates(t *testing.T) {
	h := newHarness(t)
	a := h.write("A/song.mp3", "title=A")
	b := h.write("B/song.mp3", "title=B")
	c := h.write("C/other.flac", "title=C")
	const size = 5 * 1024 * 1024
	for _, path := range []string{a, b, c} {
		require.NoError(t, os.Truncate(path, size))
	}

	stats := h.scan(ScanOptions{})
	bySize := groupsWithReason(stats, DuplicateSameFileSize)
	require.Len(t, bySize, 1)
	assert.Equal(t, "5242880", bySize[0].Key)
	assert.ElementsMatch(t, []string{a, b, c}, bySize[0].Paths)
	assert.Len(t, bySize[0].TrackIDs, 3)
	assert.Empty(t, groupsWithReason(stats, DuplicateSamePath))
}

func TestPipeline_PlayLists(t *testing.T) {
	h := newHarness(t)
	first := h.write("a/01.flac", "title=One")
	list := h.write("lists/mix.m3u", "#EXTM3U\n../a/01.flac\n../a/missing.flac\n")

	stats := h.scan(ScanOptions{})
	require.Equal(t, 1, stats.ErrorsCount)
	assert.Equal(t, "playlist_file_path_missing", stats.Errors[0].Kind)

	track := h.track(first)
	h.read(func(tx music.ReadTx) {
		playList, err := tx.FindPlayListFileByPath(list)
		require.NoError(t, err)
		require.NotNil(t, playList)
		assert.Equal(t, "mix", playList.Name)

		ids, err := tx.FindPlayListFileTrackIDs(playList.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{track.ID}, ids)
	})
}

func TestPipeline_Cancelled(t *testing.T) {
	h := newHarness(t)
	h.write("a/01.flac", "title=One")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := h.run(ctx, ScanOptions{})
	assert.ErrorIs(t, err, ErrScanAborted)
	assert.Zero(t, stats.Additions)
}

func TestOptimizeStep_Needed(t *testing.T) {
	sc := &scanContext{stats: &ScanStats{TotalFileCount: 999, Additions: 999}}
	assert.False(t, optimizeStep{}.needed(sc))

	sc.stats = &ScanStats{TotalFileCount: 1000, Additions: 200}
	assert.False(t, optimizeStep{}.needed(sc))

	sc.stats = &ScanStats{TotalFileCount: 1000, Additions: 150, Deletions: 51}
	assert.True(t, optimizeStep{}.needed(sc))

	sc.stats = &ScanStats{}
	sc.options.ForceOptimize = true
	assert.True(t, optimizeStep{}.needed(sc))
}

func TestPipeline_UnnamedPlayListDoesNotAbortTheRun(t *testing.T) {
	h := newHarness(t)
	track := h.write("a/01.flac", "title=One")
	list := h.write("a/.m3u", "01.flac\n")

	stats := h.scan(ScanOptions{})
	assert.Equal(t, 2, stats.Additions)
	assert.Zero(t, stats.ErrorsCount)
	require.NotNil(t, h.track(track))
	h.read(func(tx music.ReadTx) {
		playList, err := tx.FindPlayListFileByPath(list)
		require.NoError(t, err)
		require.NotNil(t, playList)
		assert.Equal(t, ".m3u", playList.Name)
	})
}

func TestPipeline_LongNamesAreTruncated(t *testing.T) {
	h := newHarness(t)
	long := strings.Repeat("x", music.MaxNameLength+1)
	first := h.write("a/01.flac", "title="+long+"\nartist="+long)
	second := h.write("a/02.flac", "title=Two")

	stats := h.scan(ScanOptions{})
	assert.Equal(t, 2, stats.Additions)
	assert.Zero(t, stats.ErrorsCount)

	track := h.track(first)
	require.NotNil(t, track)
	assert.Len(t, track.Name, music.MaxNameLength)
	assert.NotNil(t, h.track(second))
	h.read(func(tx music.ReadTx) {
		artist, err := tx.FindArtistByName(long[:music.MaxNameLength])
		require.NoError(t, err)
		assert.NotNil(t, artist)
	})
}

func TestPipeline_TouchedFileIsRescanned(t *testing.T) {
	h := newHarness(t)
	first := h.write("a/01.flac", "title=One")
	h.scan(ScanOptions{})
	calls := h.parser.Calls()

	later := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(first, later, later))

	stats := h.scan(ScanOptions{})
	assert.Equal(t, 1, stats.Scans)
	assert.Equal(t, 1, stats.Updates)
	assert.Equal(t, calls+1, h.parser.Calls())
	assert.True(t, h.track(first).LastWriteTime.Equal(later))
}

func TestPipeline_LyricsPreferExactStem(t *testing.T) {
	h := newHarness(t)
	english := h.write("a/song.en.flac", "title=English")
	h.write("a/song.flac", "title=Original")
	lrc := h.write("a/song.en.lrc", "[00:01.00]hello")

	h.scan(ScanOptions{})
	lyrics := h.lyrics(lrc)
	require.NotNil(t, lyrics)
	assert.Equal(t, h.track(english).ID, lyrics.TrackID)
}

func TestPipeline_LyricsFallBackToStemWithoutLanguage(t *testing.T) {
	h := newHarness(t)
	song := h.write("a/song.flac", "title=Original")
	lrc := h.write("a/song.en.lrc", "[00:01.00]hello")

	h.scan(ScanOptions{})
	lyrics := h.lyrics(lrc)
	require.NotNil(t, lyrics)
	assert.Equal(t, h.track(song).ID, lyrics.TrackID)
}

func TestPipeline_LyricsReassociationsAreCounted(t *testing.T) {
	h := newHarness(t)
	first := h.write("a/01.flac", "title=One")
	lrc := h.write("a/01.lrc", "Some words")
	h.scan(ScanOptions{})
	require.NotZero(t, h.lyrics(lrc).TrackID)

	require.NoError(t, os.Remove(first))
	stats := h.scan(ScanOptions{})
	assert.Equal(t, 1, stats.Deletions)
	assert.Equal(t, 1, stats.Updates)
	assert.Zero(t, h.lyrics(lrc).TrackID)
}
