package database

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/contre95/soulscan/src/music"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()
	store, err := NewSqliteStore(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

type fixture struct {
	library music.MediaLibrary
	root    music.Directory
	album   music.Directory
	track   music.Track
}

func seed(t *testing.T, store *SqliteStore) *fixture {
	t.Helper()
	f := &fixture{}
	err := store.Write(context.Background(), func(tx music.WriteTx) error {
		f.library = music.MediaLibrary{Name: "Music", RootPath: "/music"}
		require.NoError(t, tx.CreateMediaLibrary(&f.library))

		f.root = music.Directory{AbsolutePath: "/music", Name: "music", MediaLibraryID: f.library.ID}
		require.NoError(t, tx.CreateDirectory(&f.root))
		f.album = music.Directory{AbsolutePath: "/music/album", Name: "album", ParentID: f.root.ID, MediaLibraryID: f.library.ID}
		require.NoError(t, tx.CreateDirectory(&f.album))

		release := music.Release{Name: "Album"}
		require.NoError(t, tx.CreateRelease(&release))
		medium := music.Medium{ReleaseID: release.ID, Position: 1}
		require.NoError(t, tx.CreateMedium(&medium))
		artist := music.Artist{Name: "Artist"}
		require.NoError(t, tx.CreateArtist(&artist))

		f.track = music.Track{
			AbsoluteFilePath: "/music/album/01.flac",
			FileStem:         "01",
			FileSize:         4096,
			LastWriteTime:    time.Unix(1700000000, 123456789),
			Duration:         3500 * time.Millisecond,
			Name:             "Song",
			TrackNumber:      1,
			DiscNumber:       1,
			DirectoryID:      f.album.ID,
			MediumID:         medium.ID,
			ReleaseID:        release.ID,
		}
		require.NoError(t, tx.CreateTrack(&f.track))
		require.NoError(t, tx.SetTrackArtistLinks(f.track.ID, []music.TrackArtistLink{
			{TrackID: f.track.ID, ArtistID: artist.ID, Type: music.TrackArtistLinkArtist},
		}))
		return tx.ReplaceEmbeddedTrackLyrics(f.track.ID, []music.TrackLyrics{
			{DirectoryID: f.album.ID, Language: "eng", Lines: []music.LyricsLine{{Text: "la la"}}},
		})
	})
	require.NoError(t, err)
	return f
}

func TestSqliteStore_MissingLookupsReturnNil(t *testing.T) {
	store := newTestStore(t)
	err := store.Read(context.Background(), func(tx music.ReadTx) error {
		track, err := tx.FindTrackByPath("/nope.flac")
		assert.NoError(t, err)
		assert.Nil(t, track)

		directory, err := tx.FindDirectoryByPath("/nope")
		assert.NoError(t, err)
		assert.Nil(t, directory)

		library, err := tx.FindMediaLibraryByPath("/nope")
		assert.NoError(t, err)
		assert.Nil(t, library)

		lyrics, err := tx.FindTrackLyricsByPath("/nope.lrc")
		assert.NoError(t, err)
		assert.Nil(t, lyrics)
		return nil
	})
	require.NoError(t, err)
}

func TestSqliteStore_TrackRoundTrip(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)

	err := store.Read(context.Background(), func(tx music.ReadTx) error {
		track, err := tx.FindTrackByPath(f.track.AbsoluteFilePath)
		require.NoError(t, err)
		require.NotNil(t, track)
		assert.Equal(t, f.track.ID, track.ID)
		assert.Equal(t, 3500*time.Millisecond, track.Duration)
		assert.True(t, track.LastWriteTime.Equal(f.track.LastWriteTime))
		assert.Equal(t, f.album.ID, track.DirectoryID)

		states, err := tx.FindFileStates(music.FileKindTrack, "/music")
		require.NoError(t, err)
		require.Contains(t, states, f.track.AbsoluteFilePath)
		assert.True(t, states[f.track.AbsoluteFilePath].Matches(f.track.LastWriteTime, 4096))
		assert.False(t, states[f.track.AbsoluteFilePath].Matches(f.track.LastWriteTime, 4097))

		count, err := tx.CountTracks()
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		embedded, err := tx.FindEmbeddedTrackLyrics(f.track.ID)
		require.NoError(t, err)
		require.Len(t, embedded, 1)
		assert.Equal(t, []music.LyricsLine{{Text: "la la"}}, embedded[0].Lines)
		return nil
	})
	require.NoError(t, err)
}

func TestSqliteStore_WriteRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	boom := errors.New("boom")

	err := store.Write(context.Background(), func(tx music.WriteTx) error {
		require.NoError(t, tx.CreateMediaLibrary(&music.MediaLibrary{Name: "Music", RootPath: "/music"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = store.Read(context.Background(), func(tx music.ReadTx) error {
		libraries, err := tx.FindMediaLibraries()
		require.NoError(t, err)
		assert.Empty(t, libraries)
		return nil
	})
	require.NoError(t, err)
}

func TestSqliteStore_RemoveDirectoriesCascades(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)

	err := store.Write(context.Background(), func(tx music.WriteTx) error {
		return tx.RemoveDirectories([]int64{f.root.ID})
	})
	require.NoError(t, err)

	err = store.Read(context.Background(), func(tx music.ReadTx) error {
		count, err := tx.CountTracks()
		require.NoError(t, err)
		assert.Zero(t, count)

		directory, err := tx.FindDirectory(f.album.ID)
		require.NoError(t, err)
		assert.Nil(t, directory)

		releases, err := tx.FindOrphanReleaseIDs(10)
		require.NoError(t, err)
		assert.Len(t, releases, 1)
		mediums, err := tx.FindOrphanMediumIDs(10)
		require.NoError(t, err)
		assert.Len(t, mediums, 1)
		artists, err := tx.FindOrphanArtistIDs(10)
		require.NoError(t, err)
		assert.Len(t, artists, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestSqliteStore_RemoveTrackFile(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)

	err := store.Write(context.Background(), func(tx music.WriteTx) error {
		return tx.RemoveFile(music.FileKindTrack, f.track.ID)
	})
	require.NoError(t, err)

	err = store.Read(context.Background(), func(tx music.ReadTx) error {
		embedded, err := tx.FindEmbeddedTrackLyrics(f.track.ID)
		require.NoError(t, err)
		assert.Empty(t, embedded)

		orphans, err := tx.FindOrphanEmbeddedLyricsIDs(10)
		require.NoError(t, err)
		assert.Empty(t, orphans)

		empty, err := tx.FindEmptyDirectoryIDs(10)
		require.NoError(t, err)
		assert.Equal(t, []int64{f.album.ID}, empty)
		return nil
	})
	require.NoError(t, err)
}

func TestSqliteStore_MismatchedLibraryUsesPathPrefix(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)

	var sibling music.Directory
	err := store.Write(context.Background(), func(tx music.WriteTx) error {
		sibling = music.Directory{AbsolutePath: "/music2/other", Name: "other"}
		return tx.CreateDirectory(&sibling)
	})
	require.NoError(t, err)

	err = store.Read(context.Background(), func(tx music.ReadTx) error {
		ids, err := tx.FindDirectoryIDsWithMismatchedLibrary("/music", f.library.ID, 10)
		require.NoError(t, err)
		assert.Empty(t, ids)

		ids, err = tx.FindDirectoryIDsWithMismatchedLibrary("/music", f.library.ID+1, 10)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{f.root.ID, f.album.ID}, ids)
		return nil
	})
	require.NoError(t, err)
}

func TestSqliteStore_WriteRollbackWithMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := newSqliteStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO media_libraries").
		WithArgs("Music", "/music").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = store.Write(context.Background(), func(tx music.WriteTx) error {
		return tx.CreateMediaLibrary(&music.MediaLibrary{Name: "Music", RootPath: "/music"})
	})
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqliteStore_CommitFailureWithMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := newSqliteStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE directories SET media_library_id").
		WithArgs(int64(3), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("locked"))

	err = store.Write(context.Background(), func(tx music.WriteTx) error {
		return tx.SetDirectoryMediaLibrary(7, 3)
	})
	assert.ErrorContains(t, err, "failed to commit write transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqliteStore_SavepointRollsBackOnlyItsChanges(t *testing.T) {
	store := newTestStore(t)
	boom := errors.New("boom")

	err := store.Write(context.Background(), func(tx music.WriteTx) error {
		require.NoError(t, tx.CreateMediaLibrary(&music.MediaLibrary{Name: "Music", RootPath: "/music"}))
		err := tx.Savepoint(func() error {
			require.NoError(t, tx.CreateMediaLibrary(&music.MediaLibrary{Name: "Other", RootPath: "/other"}))
			return boom
		})
		assert.ErrorIs(t, err, boom)
		return tx.Savepoint(func() error {
			return tx.CreateMediaLibrary(&music.MediaLibrary{Name: "Podcasts", RootPath: "/podcasts"})
		})
	})
	require.NoError(t, err)

	err = store.Read(context.Background(), func(tx music.ReadTx) error {
		libraries, err := tx.FindMediaLibraries()
		require.NoError(t, err)
		var roots []string
		for _, library := range libraries {
			roots = append(roots, library.RootPath)
		}
		assert.ElementsMatch(t, []string{"/music", "/podcasts"}, roots)
		return nil
	})
	require.NoError(t, err)
}

func TestSqliteStore_ValidationErrorsAreInvalidRecords(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)

	err := store.Write(context.Background(), func(tx music.WriteTx) error {
		track := f.track
		track.ID = 0
		track.AbsoluteFilePath = "/music/album/02.flac"
		track.Name = strings.Repeat("x", music.MaxNameLength+1)
		return tx.CreateTrack(&track)
	})
	assert.ErrorIs(t, err, music.ErrInvalidRecord)

	err = store.Write(context.Background(), func(tx music.WriteTx) error {
		return tx.CreatePlayListFile(&music.PlayListFile{AbsoluteFilePath: "/music/.m3u", DirectoryID: f.album.ID})
	})
	assert.ErrorIs(t, err, music.ErrInvalidRecord)
}

func TestSqliteStore_ImageLinks(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)

	image := music.Image{AbsoluteFilePath: "/music/album/cover.jpg", FileStem: "cover", Width: 10, Height: 10, DirectoryID: f.album.ID}
	err := store.Write(context.Background(), func(tx music.WriteTx) error {
		require.NoError(t, tx.CreateImage(&image))
		require.NoError(t, tx.SetImageLinks(image.ID, music.ImageLinks{ReleaseID: f.track.ReleaseID, TrackID: f.track.ID}))
		image.Width = 20
		return tx.UpdateImage(&image)
	})
	require.NoError(t, err)

	err = store.Read(context.Background(), func(tx music.ReadTx) error {
		images, err := tx.FindImagesAfter(0, 10)
		require.NoError(t, err)
		require.Len(t, images, 1)
		assert.Equal(t, 20, images[0].Width)
		assert.Equal(t, music.ImageLinks{ReleaseID: f.track.ReleaseID, TrackID: f.track.ID}, images[0].ImageLinks)
		return nil
	})
	require.NoError(t, err)

	err = store.Write(context.Background(), func(tx music.WriteTx) error {
		return tx.RemoveFile(music.FileKindTrack, f.track.ID)
	})
	require.NoError(t, err)

	err = store.Read(context.Background(), func(tx music.ReadTx) error {
		found, err := tx.FindImageByPath(image.AbsoluteFilePath)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Zero(t, found.TrackID)
		assert.Equal(t, f.track.ReleaseID, found.ReleaseID)
		return nil
	})
	require.NoError(t, err)
}

func TestSqliteStore_ArtistInfoArtist(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)

	info := music.ArtistInfo{AbsoluteFilePath: "/music/artist.nfo", Name: "Artist", DirectoryID: f.root.ID}
	err := store.Write(context.Background(), func(tx music.WriteTx) error {
		require.NoError(t, tx.CreateArtistInfo(&info))
		artist, err := tx.FindArtistByName("Artist")
		require.NoError(t, err)
		require.NotNil(t, artist)
		return tx.SetArtistInfoArtist(info.ID, artist.ID)
	})
	require.NoError(t, err)

	err = store.Read(context.Background(), func(tx music.ReadTx) error {
		infos, err := tx.FindArtistInfosInDirectory(f.root.ID)
		require.NoError(t, err)
		require.Len(t, infos, 1)
		assert.NotZero(t, infos[0].ArtistID)

		after, err := tx.FindArtistInfosAfter(infos[0].ID, 10)
		require.NoError(t, err)
		assert.Empty(t, after)
		return nil
	})
	require.NoError(t, err)
}
