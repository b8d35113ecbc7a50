package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/contre95/soulscan/src/music"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// FindMediaLibraries returns every configured media library.
func (t *sqliteTx) FindMediaLibraries() ([]music.MediaLibrary, error) {
	rows, err := t.query(`SELECT id, name, root_path FROM media_libraries ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var libraries []music.MediaLibrary
	for rows.Next() {
		var library music.MediaLibrary
		if err := rows.Scan(&library.ID, &library.Name, &library.RootPath); err != nil {
			return nil, err
		}
		libraries = append(libraries, library)
	}
	return libraries, rows.Err()
}

func (t *sqliteTx) FindMediaLibraryByPath(rootPath string) (*music.MediaLibrary, error) {
	var library music.MediaLibrary
	err := t.queryRow(`SELECT id, name, root_path FROM media_libraries WHERE root_path = ?`, rootPath).
		Scan(&library.ID, &library.Name, &library.RootPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &library, nil
}

const directoryColumns = `id, absolute_path, name, parent_id, media_library_id`

func scanDirectory(row rowScanner) (*music.Directory, error) {
	var directory music.Directory
	var parentID, libraryID sql.NullInt64
	if err := row.Scan(&directory.ID, &directory.AbsolutePath, &directory.Name, &parentID, &libraryID); err != nil {
		return nil, err
	}
	directory.ParentID = parentID.Int64
	directory.MediaLibraryID = libraryID.Int64
	return &directory, nil
}

func (t *sqliteTx) FindDirectory(id int64) (*music.Directory, error) {
	directory, err := scanDirectory(t.queryRow(`SELECT `+directoryColumns+` FROM directories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return directory, err
}

func (t *sqliteTx) FindDirectoryByPath(path string) (*music.Directory, error) {
	directory, err := scanDirectory(t.queryRow(`SELECT `+directoryColumns+` FROM directories WHERE absolute_path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return directory, err
}

func (t *sqliteTx) FindDirectoriesAfter(lastID int64, limit int) ([]music.Directory, error) {
	rows, err := t.query(`SELECT `+directoryColumns+` FROM directories WHERE id > ? ORDER BY id LIMIT ?`, lastID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var directories []music.Directory
	for rows.Next() {
		directory, err := scanDirectory(rows)
		if err != nil {
			return nil, err
		}
		directories = append(directories, *directory)
	}
	return directories, rows.Err()
}

func (t *sqliteTx) FindEmptyDirectoryIDs(limit int) ([]int64, error) {
	return t.queryIDs(`
		SELECT d.id FROM directories d
		WHERE NOT EXISTS (SELECT 1 FROM directories c WHERE c.parent_id = d.id)
		  AND NOT EXISTS (SELECT 1 FROM tracks t WHERE t.directory_id = d.id)
		  AND NOT EXISTS (SELECT 1 FROM track_lyrics l WHERE l.directory_id = d.id)
		  AND NOT EXISTS (SELECT 1 FROM playlist_files p WHERE p.directory_id = d.id)
		  AND NOT EXISTS (SELECT 1 FROM images i WHERE i.directory_id = d.id)
		  AND NOT EXISTS (SELECT 1 FROM artist_infos a WHERE a.directory_id = d.id)
		ORDER BY d.id LIMIT ?`, limit)
}

func (t *sqliteTx) FindDirectoryIDsWithMismatchedLibrary(rootPath string, libraryID int64, limit int) ([]int64, error) {
	lower, upper := pathRange(rootPath)
	return t.queryIDs(`
		SELECT id FROM directories
		WHERE (absolute_path = ? OR (absolute_path >= ? AND absolute_path < ?))
		  AND (media_library_id IS NULL OR media_library_id <> ?)
		ORDER BY id LIMIT ?`, rootPath, lower, upper, libraryID, limit)
}

func (t *sqliteTx) FindFileStates(kind music.FileKind, rootPath string) (map[string]music.FileState, error) {
	table, err := fileTable(kind)
	if err != nil {
		return nil, err
	}
	lower, upper := pathRange(rootPath)
	rows, err := t.query(fmt.Sprintf(`
		SELECT absolute_file_path, last_write_time, file_size FROM %s
		WHERE absolute_file_path >= ? AND absolute_file_path < ?`, table), lower, upper)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := make(map[string]music.FileState)
	for rows.Next() {
		var path string
		var lastWrite, size int64
		if err := rows.Scan(&path, &lastWrite, &size); err != nil {
			return nil, err
		}
		states[path] = music.FileState{LastWriteTime: fromUnixNano(lastWrite), Size: size}
	}
	return states, rows.Err()
}

func (t *sqliteTx) FindFilesAfter(kind music.FileKind, lastID int64, limit int) ([]music.FileRef, error) {
	table, err := fileTable(kind)
	if err != nil {
		return nil, err
	}
	rows, err := t.query(fmt.Sprintf(`
		SELECT id, absolute_file_path FROM %s
		WHERE id > ? AND absolute_file_path IS NOT NULL
		ORDER BY id LIMIT ?`, table), lastID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []music.FileRef
	for rows.Next() {
		var ref music.FileRef
		if err := rows.Scan(&ref.ID, &ref.Path); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

const trackColumns = `id, absolute_file_path, file_stem, file_size, last_write_time, duration_ms, name,
	track_number, disc_number, year, genre, mbid, directory_id, medium_id, release_id, added_time`

func scanTrack(row rowScanner) (*music.Track, error) {
	var track music.Track
	var lastWrite, durationMs, added int64
	var directoryID, mediumID, releaseID sql.NullInt64
	err := row.Scan(&track.ID, &track.AbsoluteFilePath, &track.FileStem, &track.FileSize, &lastWrite, &durationMs, &track.Name,
		&track.TrackNumber, &track.DiscNumber, &track.Year, &track.Genre, &track.MBID, &directoryID, &mediumID, &releaseID, &added)
	if err != nil {
		return nil, err
	}
	track.LastWriteTime = fromUnixNano(lastWrite)
	track.Duration = time.Duration(durationMs) * time.Millisecond
	track.AddedTime = fromUnixNano(added)
	track.DirectoryID = directoryID.Int64
	track.MediumID = mediumID.Int64
	track.ReleaseID = releaseID.Int64
	return &track, nil
}

func (t *sqliteTx) findTracks(query string, args ...any) ([]music.Track, error) {
	rows, err := t.query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []music.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *track)
	}
	return tracks, rows.Err()
}

func (t *sqliteTx) FindTrack(id int64) (*music.Track, error) {
	track, err := scanTrack(t.queryRow(`SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return track, err
}

func (t *sqliteTx) FindTrackByPath(path string) (*music.Track, error) {
	track, err := scanTrack(t.queryRow(`SELECT `+trackColumns+` FROM tracks WHERE absolute_file_path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return track, err
}

func (t *sqliteTx) FindTracksAfter(lastID int64, limit int) ([]music.Track, error) {
	return t.findTracks(`SELECT `+trackColumns+` FROM tracks WHERE id > ? ORDER BY id LIMIT ?`, lastID, limit)
}

func (t *sqliteTx) FindTracksInDirectory(directoryID int64) ([]music.Track, error) {
	return t.findTracks(`SELECT `+trackColumns+` FROM tracks WHERE directory_id = ? ORDER BY id`, directoryID)
}

func (t *sqliteTx) FindTrackArtistLinks(trackID int64) ([]music.TrackArtistLink, error) {
	rows, err := t.query(`SELECT track_id, artist_id, type FROM track_artist_links WHERE track_id = ? ORDER BY rowid`, trackID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []music.TrackArtistLink
	for rows.Next() {
		var link music.TrackArtistLink
		if err := rows.Scan(&link.TrackID, &link.ArtistID, &link.Type); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (t *sqliteTx) FindTrackIDsWithoutDirectory(limit int) ([]int64, error) {
	return t.queryIDs(`
		SELECT t.id FROM tracks t
		WHERE t.directory_id IS NULL
		   OR NOT EXISTS (SELECT 1 FROM directories d WHERE d.id = t.directory_id)
		ORDER BY t.id LIMIT ?`, limit)
}

func (t *sqliteTx) CountTracks() (int, error) {
	var count int
	err := t.queryRow(`SELECT COUNT(*) FROM tracks`).Scan(&count)
	return count, err
}

func (t *sqliteTx) findRelease(query string, arg any) (*music.Release, error) {
	var release music.Release
	err := t.queryRow(query, arg).Scan(&release.ID, &release.Name, &release.MBID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &release, nil
}

func (t *sqliteTx) FindReleaseByMBID(mbid string) (*music.Release, error) {
	return t.findRelease(`SELECT id, name, mbid FROM releases WHERE mbid = ? LIMIT 1`, mbid)
}

func (t *sqliteTx) FindReleaseByName(name string) (*music.Release, error) {
	return t.findRelease(`SELECT id, name, mbid FROM releases WHERE name = ? AND mbid = '' LIMIT 1`, name)
}

func (t *sqliteTx) FindMedium(releaseID int64, position int) (*music.Medium, error) {
	var medium music.Medium
	err := t.queryRow(`SELECT id, release_id, position, name FROM mediums WHERE release_id = ? AND position = ? LIMIT 1`, releaseID, position).
		Scan(&medium.ID, &medium.ReleaseID, &medium.Position, &medium.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &medium, nil
}

func (t *sqliteTx) findArtist(query string, arg any) (*music.Artist, error) {
	var artist music.Artist
	err := t.queryRow(query, arg).Scan(&artist.ID, &artist.Name, &artist.SortName, &artist.MBID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &artist, nil
}

func (t *sqliteTx) FindArtistByMBID(mbid string) (*music.Artist, error) {
	return t.findArtist(`SELECT id, name, sort_name, mbid FROM artists WHERE mbid = ? LIMIT 1`, mbid)
}

func (t *sqliteTx) FindArtistByName(name string) (*music.Artist, error) {
	return t.findArtist(`SELECT id, name, sort_name, mbid FROM artists WHERE name = ? AND mbid = '' LIMIT 1`, name)
}

func (t *sqliteTx) FindOrphanReleaseIDs(limit int) ([]int64, error) {
	return t.queryIDs(`
		SELECT r.id FROM releases r
		WHERE NOT EXISTS (SELECT 1 FROM tracks t WHERE t.release_id = r.id)
		ORDER BY r.id LIMIT ?`, limit)
}

func (t *sqliteTx) FindOrphanMediumIDs(limit int) ([]int64, error) {
	return t.queryIDs(`
		SELECT m.id FROM mediums m
		WHERE NOT EXISTS (SELECT 1 FROM tracks t WHERE t.medium_id = m.id)
		ORDER BY m.id LIMIT ?`, limit)
}

func (t *sqliteTx) FindOrphanArtistIDs(limit int) ([]int64, error) {
	return t.queryIDs(`
		SELECT a.id FROM artists a
		WHERE NOT EXISTS (SELECT 1 FROM track_artist_links l WHERE l.artist_id = a.id)
		ORDER BY a.id LIMIT ?`, limit)
}

const lyricsColumns = `id, track_id, directory_id, absolute_file_path, file_stem, last_write_time, file_size,
	language, offset_ms, display_artist, display_title, synchronized, lines`

func scanTrackLyrics(row rowScanner) (*music.TrackLyrics, error) {
	var lyrics music.TrackLyrics
	var trackID, directoryID sql.NullInt64
	var path sql.NullString
	var lastWrite, offsetMs int64
	var lines string
	err := row.Scan(&lyrics.ID, &trackID, &directoryID, &path, &lyrics.FileStem, &lastWrite, &lyrics.FileSize,
		&lyrics.Language, &offsetMs, &lyrics.DisplayArtist, &lyrics.DisplayTitle, &lyrics.Synchronized, &lines)
	if err != nil {
		return nil, err
	}
	lyrics.TrackID = trackID.Int64
	lyrics.DirectoryID = directoryID.Int64
	lyrics.AbsoluteFilePath = path.String
	lyrics.LastWriteTime = fromUnixNano(lastWrite)
	lyrics.Offset = time.Duration(offsetMs) * time.Millisecond
	if err := json.Unmarshal([]byte(lines), &lyrics.Lines); err != nil {
		return nil, fmt.Errorf("failed to decode lyrics lines %d: %w", lyrics.ID, err)
	}
	return &lyrics, nil
}

func (t *sqliteTx) findTrackLyrics(query string, args ...any) ([]music.TrackLyrics, error) {
	rows, err := t.query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []music.TrackLyrics
	for rows.Next() {
		lyrics, err := scanTrackLyrics(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *lyrics)
	}
	return result, rows.Err()
}

func (t *sqliteTx) FindTrackLyricsByPath(path string) (*music.TrackLyrics, error) {
	lyrics, err := scanTrackLyrics(t.queryRow(`SELECT `+lyricsColumns+` FROM track_lyrics WHERE absolute_file_path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return lyrics, err
}

func (t *sqliteTx) FindExternalTrackLyricsAfter(lastID int64, limit int) ([]music.TrackLyrics, error) {
	return t.findTrackLyrics(`SELECT `+lyricsColumns+` FROM track_lyrics
		WHERE id > ? AND absolute_file_path IS NOT NULL ORDER BY id LIMIT ?`, lastID, limit)
}

func (t *sqliteTx) FindEmbeddedTrackLyrics(trackID int64) ([]music.TrackLyrics, error) {
	return t.findTrackLyrics(`SELECT `+lyricsColumns+` FROM track_lyrics
		WHERE track_id = ? AND absolute_file_path IS NULL ORDER BY id`, trackID)
}

func (t *sqliteTx) FindOrphanEmbeddedLyricsIDs(limit int) ([]int64, error) {
	return t.queryIDs(`
		SELECT l.id FROM track_lyrics l
		WHERE l.absolute_file_path IS NULL
		  AND (l.track_id IS NULL OR NOT EXISTS (SELECT 1 FROM tracks t WHERE t.id = l.track_id))
		ORDER BY l.id LIMIT ?`, limit)
}

const playListColumns = `id, absolute_file_path, file_stem, last_write_time, file_size, name, files, directory_id, media_library_id`

func scanPlayListFile(row rowScanner) (*music.PlayListFile, error) {
	var playList music.PlayListFile
	var lastWrite int64
	var files string
	var directoryID, libraryID sql.NullInt64
	err := row.Scan(&playList.ID, &playList.AbsoluteFilePath, &playList.FileStem, &lastWrite, &playList.FileSize,
		&playList.Name, &files, &directoryID, &libraryID)
	if err != nil {
		return nil, err
	}
	playList.LastWriteTime = fromUnixNano(lastWrite)
	playList.DirectoryID = directoryID.Int64
	playList.MediaLibraryID = libraryID.Int64
	if err := json.Unmarshal([]byte(files), &playList.Files); err != nil {
		return nil, fmt.Errorf("failed to decode playlist files %d: %w", playList.ID, err)
	}
	return &playList, nil
}

func (t *sqliteTx) FindPlayListFileByPath(path string) (*music.PlayListFile, error) {
	playList, err := scanPlayListFile(t.queryRow(`SELECT `+playListColumns+` FROM playlist_files WHERE absolute_file_path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return playList, err
}

func (t *sqliteTx) FindPlayListFilesAfter(lastID int64, limit int) ([]music.PlayListFile, error) {
	rows, err := t.query(`SELECT `+playListColumns+` FROM playlist_files WHERE id > ? ORDER BY id LIMIT ?`, lastID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var playLists []music.PlayListFile
	for rows.Next() {
		playList, err := scanPlayListFile(rows)
		if err != nil {
			return nil, err
		}
		playLists = append(playLists, *playList)
	}
	return playLists, rows.Err()
}

func (t *sqliteTx) FindPlayListFileTrackIDs(playListFileID int64) ([]int64, error) {
	return t.queryIDs(`SELECT track_id FROM playlist_file_tracks WHERE playlist_file_id = ? ORDER BY position`, playListFileID)
}

const imageColumns = `id, absolute_file_path, file_stem, last_write_time, file_size, width, height, directory_id,
	release_id, medium_id, track_id, artist_id`

func scanImage(row rowScanner) (*music.Image, error) {
	var image music.Image
	var lastWrite int64
	var directoryID, releaseID, mediumID, trackID, artistID sql.NullInt64
	err := row.Scan(&image.ID, &image.AbsoluteFilePath, &image.FileStem, &lastWrite, &image.FileSize, &image.Width, &image.Height,
		&directoryID, &releaseID, &mediumID, &trackID, &artistID)
	if err != nil {
		return nil, err
	}
	image.LastWriteTime = fromUnixNano(lastWrite)
	image.DirectoryID = directoryID.Int64
	image.ReleaseID = releaseID.Int64
	image.MediumID = mediumID.Int64
	image.TrackID = trackID.Int64
	image.ArtistID = artistID.Int64
	return &image, nil
}

func (t *sqliteTx) FindImageByPath(path string) (*music.Image, error) {
	image, err := scanImage(t.queryRow(`SELECT `+imageColumns+` FROM images WHERE absolute_file_path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return image, err
}

func (t *sqliteTx) FindImagesAfter(lastID int64, limit int) ([]music.Image, error) {
	rows, err := t.query(`SELECT `+imageColumns+` FROM images WHERE id > ? ORDER BY id LIMIT ?`, lastID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []music.Image
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, *image)
	}
	return images, rows.Err()
}

const artistInfoColumns = `id, absolute_file_path, last_write_time, file_size, name, sort_name, mbid, biography, directory_id, artist_id`

func scanArtistInfo(row rowScanner) (*music.ArtistInfo, error) {
	var info music.ArtistInfo
	var lastWrite int64
	var directoryID, artistID sql.NullInt64
	err := row.Scan(&info.ID, &info.AbsoluteFilePath, &lastWrite, &info.FileSize, &info.Name, &info.SortName, &info.MBID,
		&info.Biography, &directoryID, &artistID)
	if err != nil {
		return nil, err
	}
	info.LastWriteTime = fromUnixNano(lastWrite)
	info.DirectoryID = directoryID.Int64
	info.ArtistID = artistID.Int64
	return &info, nil
}

func (t *sqliteTx) findArtistInfos(query string, args ...any) ([]music.ArtistInfo, error) {
	rows, err := t.query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []music.ArtistInfo
	for rows.Next() {
		info, err := scanArtistInfo(rows)
		if err != nil {
			return nil, err
		}
		infos = append(infos, *info)
	}
	return infos, rows.Err()
}

func (t *sqliteTx) FindArtistInfoByPath(path string) (*music.ArtistInfo, error) {
	info, err := scanArtistInfo(t.queryRow(`SELECT `+artistInfoColumns+` FROM artist_infos WHERE absolute_file_path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return info, err
}

func (t *sqliteTx) FindArtistInfosAfter(lastID int64, limit int) ([]music.ArtistInfo, error) {
	return t.findArtistInfos(`SELECT `+artistInfoColumns+` FROM artist_infos WHERE id > ? ORDER BY id LIMIT ?`, lastID, limit)
}

func (t *sqliteTx) FindArtistInfosInDirectory(directoryID int64) ([]music.ArtistInfo, error) {
	return t.findArtistInfos(`SELECT `+artistInfoColumns+` FROM artist_infos WHERE directory_id = ? ORDER BY id`, directoryID)
}

func (t *sqliteTx) CountMediums(releaseID int64) (int, error) {
	var count int
	err := t.queryRow(`SELECT COUNT(*) FROM mediums WHERE release_id = ?`, releaseID).Scan(&count)
	return count, err
}
