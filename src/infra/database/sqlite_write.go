package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/contre95/soulscan/src/music"
)

// Savepoint runs fn inside a nested savepoint. When fn fails, only its own
// changes are undone and the enclosing transaction stays usable.
func (t *sqliteTx) Savepoint(fn func() error) error {
	t.savepoints++
	name := fmt.Sprintf("sp_%d", t.savepoints)
	if _, err := t.exec("SAVEPOINT " + name); err != nil {
		return fmt.Errorf("failed to open savepoint %s: %w", name, err)
	}
	if err := fn(); err != nil {
		if _, rbErr := t.exec("ROLLBACK TO " + name); rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to roll back savepoint %s: %w", name, rbErr))
		}
		if _, relErr := t.exec("RELEASE " + name); relErr != nil {
			return errors.Join(err, fmt.Errorf("failed to release savepoint %s: %w", name, relErr))
		}
		return err
	}
	if _, err := t.exec("RELEASE " + name); err != nil {
		return fmt.Errorf("failed to release savepoint %s: %w", name, err)
	}
	return nil
}

func (t *sqliteTx) CreateMediaLibrary(library *music.MediaLibrary) error {
	if err := library.Validate(); err != nil {
		return err
	}
	res, err := t.exec(`INSERT INTO media_libraries (name, root_path) VALUES (?, ?)`, library.Name, library.RootPath)
	if err != nil {
		return fmt.Errorf("failed to create media library %s: %w", library.RootPath, err)
	}
	library.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) UpdateMediaLibrary(library *music.MediaLibrary) error {
	if err := library.Validate(); err != nil {
		return err
	}
	_, err := t.exec(`UPDATE media_libraries SET name = ?, root_path = ? WHERE id = ?`, library.Name, library.RootPath, library.ID)
	if err != nil {
		return fmt.Errorf("failed to update media library %d: %w", library.ID, err)
	}
	return nil
}

func (t *sqliteTx) RemoveMediaLibrary(id int64) error {
	return t.removeIDs("media_libraries", []int64{id})
}

func (t *sqliteTx) CreateDirectory(directory *music.Directory) error {
	if err := directory.Validate(); err != nil {
		return err
	}
	res, err := t.exec(`INSERT INTO directories (absolute_path, name, parent_id, media_library_id) VALUES (?, ?, ?, ?)`,
		directory.AbsolutePath, directory.Name, nullID(directory.ParentID), nullID(directory.MediaLibraryID))
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", directory.AbsolutePath, err)
	}
	directory.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) SetDirectoryMediaLibrary(id, libraryID int64) error {
	_, err := t.exec(`UPDATE directories SET media_library_id = ? WHERE id = ?`, nullID(libraryID), id)
	if err != nil {
		return fmt.Errorf("failed to update library of directory %d: %w", id, err)
	}
	return nil
}

func (t *sqliteTx) RemoveDirectories(ids []int64) error {
	return t.removeIDs("directories", ids)
}

func (t *sqliteTx) CreateTrack(track *music.Track) error {
	if err := track.Validate(); err != nil {
		slog.Error("CreateTrack: validation failed", "error", err, "path", track.AbsoluteFilePath)
		return err
	}
	if track.AddedTime.IsZero() {
		track.AddedTime = time.Now()
	}
	res, err := t.exec(`
		INSERT INTO tracks (absolute_file_path, file_stem, file_size, last_write_time, duration_ms, name,
			track_number, disc_number, year, genre, mbid, directory_id, medium_id, release_id, added_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		track.AbsoluteFilePath, track.FileStem, track.FileSize, toUnixNano(track.LastWriteTime), track.Duration.Milliseconds(), track.Name,
		track.TrackNumber, track.DiscNumber, track.Year, track.Genre, track.MBID,
		nullID(track.DirectoryID), nullID(track.MediumID), nullID(track.ReleaseID), toUnixNano(track.AddedTime))
	if err != nil {
		return fmt.Errorf("failed to create track %s: %w", track.AbsoluteFilePath, err)
	}
	track.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) UpdateTrack(track *music.Track) error {
	if err := track.Validate(); err != nil {
		slog.Error("UpdateTrack: validation failed", "error", err, "trackID", track.ID)
		return err
	}
	_, err := t.exec(`
		UPDATE tracks SET absolute_file_path = ?, file_stem = ?, file_size = ?, last_write_time = ?, duration_ms = ?, name = ?,
			track_number = ?, disc_number = ?, year = ?, genre = ?, mbid = ?, directory_id = ?, medium_id = ?, release_id = ?
		WHERE id = ?`,
		track.AbsoluteFilePath, track.FileStem, track.FileSize, toUnixNano(track.LastWriteTime), track.Duration.Milliseconds(), track.Name,
		track.TrackNumber, track.DiscNumber, track.Year, track.Genre, track.MBID,
		nullID(track.DirectoryID), nullID(track.MediumID), nullID(track.ReleaseID), track.ID)
	if err != nil {
		return fmt.Errorf("failed to update track %d: %w", track.ID, err)
	}
	return nil
}

func (t *sqliteTx) SetTrackArtistLinks(trackID int64, links []music.TrackArtistLink) error {
	if _, err := t.exec(`DELETE FROM track_artist_links WHERE track_id = ?`, trackID); err != nil {
		return fmt.Errorf("failed to clear artist links of track %d: %w", trackID, err)
	}
	for _, link := range links {
		_, err := t.exec(`INSERT OR IGNORE INTO track_artist_links (track_id, artist_id, type) VALUES (?, ?, ?)`,
			trackID, link.ArtistID, string(link.Type))
		if err != nil {
			return fmt.Errorf("failed to link artist %d to track %d: %w", link.ArtistID, trackID, err)
		}
	}
	return nil
}

func (t *sqliteTx) CreateRelease(release *music.Release) error {
	res, err := t.exec(`INSERT INTO releases (name, mbid) VALUES (?, ?)`, release.Name, release.MBID)
	if err != nil {
		return fmt.Errorf("failed to create release %s: %w", release.Name, err)
	}
	release.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) CreateMedium(medium *music.Medium) error {
	res, err := t.exec(`INSERT INTO mediums (release_id, position, name) VALUES (?, ?, ?)`, medium.ReleaseID, medium.Position, medium.Name)
	if err != nil {
		return fmt.Errorf("failed to create medium %d of release %d: %w", medium.Position, medium.ReleaseID, err)
	}
	medium.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) CreateArtist(artist *music.Artist) error {
	if err := artist.Validate(); err != nil {
		return err
	}
	res, err := t.exec(`INSERT INTO artists (name, sort_name, mbid) VALUES (?, ?, ?)`, artist.Name, artist.SortName, artist.MBID)
	if err != nil {
		return fmt.Errorf("failed to create artist %s: %w", artist.Name, err)
	}
	artist.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) RemoveReleases(ids []int64) error { return t.removeIDs("releases", ids) }

func (t *sqliteTx) RemoveMediums(ids []int64) error { return t.removeIDs("mediums", ids) }

func (t *sqliteTx) RemoveArtists(ids []int64) error { return t.removeIDs("artists", ids) }

func encodeLines(lines []music.LyricsLine) (string, error) {
	if lines == nil {
		lines = []music.LyricsLine{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return "", fmt.Errorf("failed to encode lyrics lines: %w", err)
	}
	return string(data), nil
}

func (t *sqliteTx) CreateTrackLyrics(lyrics *music.TrackLyrics) error {
	lines, err := encodeLines(lyrics.Lines)
	if err != nil {
		return err
	}
	res, err := t.exec(`
		INSERT INTO track_lyrics (track_id, directory_id, absolute_file_path, file_stem, last_write_time, file_size,
			language, offset_ms, display_artist, display_title, synchronized, lines)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullID(lyrics.TrackID), nullID(lyrics.DirectoryID), nullString(lyrics.AbsoluteFilePath), lyrics.FileStem,
		toUnixNano(lyrics.LastWriteTime), lyrics.FileSize, lyrics.Language, lyrics.Offset.Milliseconds(),
		lyrics.DisplayArtist, lyrics.DisplayTitle, lyrics.Synchronized, lines)
	if err != nil {
		return fmt.Errorf("failed to create lyrics %s: %w", lyrics.AbsoluteFilePath, err)
	}
	lyrics.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) UpdateTrackLyrics(lyrics *music.TrackLyrics) error {
	lines, err := encodeLines(lyrics.Lines)
	if err != nil {
		return err
	}
	_, err = t.exec(`
		UPDATE track_lyrics SET track_id = ?, directory_id = ?, absolute_file_path = ?, file_stem = ?, last_write_time = ?,
			file_size = ?, language = ?, offset_ms = ?, display_artist = ?, display_title = ?, synchronized = ?, lines = ?
		WHERE id = ?`,
		nullID(lyrics.TrackID), nullID(lyrics.DirectoryID), nullString(lyrics.AbsoluteFilePath), lyrics.FileStem,
		toUnixNano(lyrics.LastWriteTime), lyrics.FileSize, lyrics.Language, lyrics.Offset.Milliseconds(),
		lyrics.DisplayArtist, lyrics.DisplayTitle, lyrics.Synchronized, lines, lyrics.ID)
	if err != nil {
		return fmt.Errorf("failed to update lyrics %d: %w", lyrics.ID, err)
	}
	return nil
}

func (t *sqliteTx) RemoveTrackLyrics(ids []int64) error {
	return t.removeIDs("track_lyrics", ids)
}

func (t *sqliteTx) ReplaceEmbeddedTrackLyrics(trackID int64, lyrics []music.TrackLyrics) error {
	if _, err := t.exec(`DELETE FROM track_lyrics WHERE track_id = ? AND absolute_file_path IS NULL`, trackID); err != nil {
		return fmt.Errorf("failed to clear embedded lyrics of track %d: %w", trackID, err)
	}
	for i := range lyrics {
		lyrics[i].TrackID = trackID
		lyrics[i].AbsoluteFilePath = ""
		if err := t.CreateTrackLyrics(&lyrics[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqliteTx) SetTrackLyricsTrack(lyricsID, trackID int64) error {
	_, err := t.exec(`UPDATE track_lyrics SET track_id = ? WHERE id = ?`, nullID(trackID), lyricsID)
	if err != nil {
		return fmt.Errorf("failed to associate lyrics %d: %w", lyricsID, err)
	}
	return nil
}

func encodeFiles(files []string) (string, error) {
	if files == nil {
		files = []string{}
	}
	data, err := json.Marshal(files)
	if err != nil {
		return "", fmt.Errorf("failed to encode playlist files: %w", err)
	}
	return string(data), nil
}

func (t *sqliteTx) CreatePlayListFile(playList *music.PlayListFile) error {
	if err := playList.Validate(); err != nil {
		return err
	}
	files, err := encodeFiles(playList.Files)
	if err != nil {
		return err
	}
	res, err := t.exec(`
		INSERT INTO playlist_files (absolute_file_path, file_stem, last_write_time, file_size, name, files, directory_id, media_library_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		playList.AbsoluteFilePath, playList.FileStem, toUnixNano(playList.LastWriteTime), playList.FileSize, playList.Name, files,
		nullID(playList.DirectoryID), nullID(playList.MediaLibraryID))
	if err != nil {
		return fmt.Errorf("failed to create playlist %s: %w", playList.AbsoluteFilePath, err)
	}
	playList.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) UpdatePlayListFile(playList *music.PlayListFile) error {
	if err := playList.Validate(); err != nil {
		return err
	}
	files, err := encodeFiles(playList.Files)
	if err != nil {
		return err
	}
	_, err = t.exec(`
		UPDATE playlist_files SET absolute_file_path = ?, file_stem = ?, last_write_time = ?, file_size = ?, name = ?, files = ?,
			directory_id = ?, media_library_id = ?
		WHERE id = ?`,
		playList.AbsoluteFilePath, playList.FileStem, toUnixNano(playList.LastWriteTime), playList.FileSize, playList.Name, files,
		nullID(playList.DirectoryID), nullID(playList.MediaLibraryID), playList.ID)
	if err != nil {
		return fmt.Errorf("failed to update playlist %d: %w", playList.ID, err)
	}
	return nil
}

func (t *sqliteTx) SetPlayListFileTracks(playListFileID int64, trackIDs []int64) error {
	if _, err := t.exec(`DELETE FROM playlist_file_tracks WHERE playlist_file_id = ?`, playListFileID); err != nil {
		return fmt.Errorf("failed to clear tracks of playlist %d: %w", playListFileID, err)
	}
	for position, trackID := range trackIDs {
		_, err := t.exec(`INSERT INTO playlist_file_tracks (playlist_file_id, position, track_id) VALUES (?, ?, ?)`,
			playListFileID, position, trackID)
		if err != nil {
			return fmt.Errorf("failed to add track %d to playlist %d: %w", trackID, playListFileID, err)
		}
	}
	return nil
}

func (t *sqliteTx) CreateImage(image *music.Image) error {
	res, err := t.exec(`
		INSERT INTO images (absolute_file_path, file_stem, last_write_time, file_size, width, height, directory_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		image.AbsoluteFilePath, image.FileStem, toUnixNano(image.LastWriteTime), image.FileSize, image.Width, image.Height,
		nullID(image.DirectoryID))
	if err != nil {
		return fmt.Errorf("failed to create image %s: %w", image.AbsoluteFilePath, err)
	}
	image.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) UpdateImage(image *music.Image) error {
	_, err := t.exec(`
		UPDATE images SET absolute_file_path = ?, file_stem = ?, last_write_time = ?, file_size = ?, width = ?, height = ?, directory_id = ?
		WHERE id = ?`,
		image.AbsoluteFilePath, image.FileStem, toUnixNano(image.LastWriteTime), image.FileSize, image.Width, image.Height,
		nullID(image.DirectoryID), image.ID)
	if err != nil {
		return fmt.Errorf("failed to update image %d: %w", image.ID, err)
	}
	return nil
}

func (t *sqliteTx) SetImageLinks(imageID int64, links music.ImageLinks) error {
	_, err := t.exec(`UPDATE images SET release_id = ?, medium_id = ?, track_id = ?, artist_id = ? WHERE id = ?`,
		nullID(links.ReleaseID), nullID(links.MediumID), nullID(links.TrackID), nullID(links.ArtistID), imageID)
	if err != nil {
		return fmt.Errorf("failed to set links of image %d: %w", imageID, err)
	}
	return nil
}

func (t *sqliteTx) CreateArtistInfo(info *music.ArtistInfo) error {
	res, err := t.exec(`
		INSERT INTO artist_infos (absolute_file_path, last_write_time, file_size, name, sort_name, mbid, biography, directory_id, artist_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		info.AbsoluteFilePath, toUnixNano(info.LastWriteTime), info.FileSize, info.Name, info.SortName, info.MBID, info.Biography,
		nullID(info.DirectoryID), nullID(info.ArtistID))
	if err != nil {
		return fmt.Errorf("failed to create artist info %s: %w", info.AbsoluteFilePath, err)
	}
	info.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) UpdateArtistInfo(info *music.ArtistInfo) error {
	_, err := t.exec(`
		UPDATE artist_infos SET absolute_file_path = ?, last_write_time = ?, file_size = ?, name = ?, sort_name = ?, mbid = ?,
			biography = ?, directory_id = ?, artist_id = ?
		WHERE id = ?`,
		info.AbsoluteFilePath, toUnixNano(info.LastWriteTime), info.FileSize, info.Name, info.SortName, info.MBID, info.Biography,
		nullID(info.DirectoryID), nullID(info.ArtistID), info.ID)
	if err != nil {
		return fmt.Errorf("failed to update artist info %d: %w", info.ID, err)
	}
	return nil
}

func (t *sqliteTx) SetArtistInfoArtist(infoID, artistID int64) error {
	if _, err := t.exec(`UPDATE artist_infos SET artist_id = ? WHERE id = ?`, nullID(artistID), infoID); err != nil {
		return fmt.Errorf("failed to set artist of artist info %d: %w", infoID, err)
	}
	return nil
}

func (t *sqliteTx) RemoveFile(kind music.FileKind, id int64) error {
	table, err := fileTable(kind)
	if err != nil {
		return err
	}
	if kind == music.FileKindTrack {
		if _, err := t.exec(`DELETE FROM track_lyrics WHERE track_id = ? AND absolute_file_path IS NULL`, id); err != nil {
			return fmt.Errorf("failed to remove embedded lyrics of track %d: %w", id, err)
		}
	}
	return t.removeIDs(table, []int64{id})
}
