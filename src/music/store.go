package music

import "context"

// Store is the repository for the library domain. Reads run inside a read
// transaction; writes are serialized and run inside a write transaction that
// is committed when fn returns nil and rolled back otherwise.
// Lookups return nil, nil when the record does not exist.
type Store interface {
	Read(ctx context.Context, fn func(tx ReadTx) error) error
	Write(ctx context.Context, fn func(tx WriteTx) error) error
	// Analyze refreshes the query planner statistics.
	Analyze(ctx context.Context) error
	// Vacuum rebuilds the database file to reclaim free pages.
	Vacuum(ctx context.Context) error
}

// ReadTx exposes the queries available inside any transaction.
type ReadTx interface {
	FindMediaLibraries() ([]MediaLibrary, error)
	FindMediaLibraryByPath(rootPath string) (*MediaLibrary, error)

	FindDirectory(id int64) (*Directory, error)
	FindDirectoryByPath(path string) (*Directory, error)
	FindDirectoriesAfter(lastID int64, limit int) ([]Directory, error)
	// FindEmptyDirectoryIDs returns directories holding no file backed record
	// and no child directory.
	FindEmptyDirectoryIDs(limit int) ([]int64, error)
	// FindDirectoryIDsWithMismatchedLibrary returns directories located under
	// rootPath that do not reference libraryID.
	FindDirectoryIDsWithMismatchedLibrary(rootPath string, libraryID int64, limit int) ([]int64, error)

	// FindFileStates returns the stored state of every file of the given kind
	// located under rootPath, keyed by absolute path.
	FindFileStates(kind FileKind, rootPath string) (map[string]FileState, error)
	FindFilesAfter(kind FileKind, lastID int64, limit int) ([]FileRef, error)

	FindTrack(id int64) (*Track, error)
	FindTrackByPath(path string) (*Track, error)
	FindTracksAfter(lastID int64, limit int) ([]Track, error)
	FindTracksInDirectory(directoryID int64) ([]Track, error)
	FindTrackArtistLinks(trackID int64) ([]TrackArtistLink, error)
	// FindTrackIDsWithoutDirectory returns tracks whose directory reference is
	// missing or dangling.
	FindTrackIDsWithoutDirectory(limit int) ([]int64, error)
	CountTracks() (int, error)

	FindReleaseByMBID(mbid string) (*Release, error)
	FindReleaseByName(name string) (*Release, error)
	FindMedium(releaseID int64, position int) (*Medium, error)
	FindArtistByMBID(mbid string) (*Artist, error)
	FindArtistByName(name string) (*Artist, error)
	FindOrphanReleaseIDs(limit int) ([]int64, error)
	FindOrphanMediumIDs(limit int) ([]int64, error)
	FindOrphanArtistIDs(limit int) ([]int64, error)

	FindTrackLyricsByPath(path string) (*TrackLyrics, error)
	FindExternalTrackLyricsAfter(lastID int64, limit int) ([]TrackLyrics, error)
	FindEmbeddedTrackLyrics(trackID int64) ([]TrackLyrics, error)
	// FindOrphanEmbeddedLyricsIDs returns embedded lyrics whose track is gone.
	FindOrphanEmbeddedLyricsIDs(limit int) ([]int64, error)

	FindPlayListFileByPath(path string) (*PlayListFile, error)
	FindPlayListFilesAfter(lastID int64, limit int) ([]PlayListFile, error)
	FindPlayListFileTrackIDs(playListFileID int64) ([]int64, error)

	FindImageByPath(path string) (*Image, error)
	FindImagesAfter(lastID int64, limit int) ([]Image, error)
	FindArtistInfoByPath(path string) (*ArtistInfo, error)
	FindArtistInfosAfter(lastID int64, limit int) ([]ArtistInfo, error)
	FindArtistInfosInDirectory(directoryID int64) ([]ArtistInfo, error)
	// CountMediums returns the number of mediums of a release.
	CountMediums(releaseID int64) (int, error)
}

// WriteTx adds the mutations available inside a write transaction. Create
// calls set the ID of the given record.
type WriteTx interface {
	ReadTx

	// Savepoint runs fn so that a failure rolls back only the changes fn
	// made. The returned error still matches the error of fn.
	Savepoint(fn func() error) error

	CreateMediaLibrary(library *MediaLibrary) error
	UpdateMediaLibrary(library *MediaLibrary) error
	RemoveMediaLibrary(id int64) error

	CreateDirectory(directory *Directory) error
	SetDirectoryMediaLibrary(id, libraryID int64) error
	// RemoveDirectories removes the directories and everything below them.
	RemoveDirectories(ids []int64) error

	CreateTrack(track *Track) error
	UpdateTrack(track *Track) error
	SetTrackArtistLinks(trackID int64, links []TrackArtistLink) error

	CreateRelease(release *Release) error
	CreateMedium(medium *Medium) error
	CreateArtist(artist *Artist) error
	RemoveReleases(ids []int64) error
	RemoveMediums(ids []int64) error
	RemoveArtists(ids []int64) error

	CreateTrackLyrics(lyrics *TrackLyrics) error
	UpdateTrackLyrics(lyrics *TrackLyrics) error
	RemoveTrackLyrics(ids []int64) error
	ReplaceEmbeddedTrackLyrics(trackID int64, lyrics []TrackLyrics) error
	// SetTrackLyricsTrack associates lyrics with a track, 0 clears it.
	SetTrackLyricsTrack(lyricsID, trackID int64) error

	CreatePlayListFile(playList *PlayListFile) error
	UpdatePlayListFile(playList *PlayListFile) error
	SetPlayListFileTracks(playListFileID int64, trackIDs []int64) error

	// CreateImage and UpdateImage leave the links of the image untouched.
	CreateImage(image *Image) error
	UpdateImage(image *Image) error
	SetImageLinks(imageID int64, links ImageLinks) error
	CreateArtistInfo(info *ArtistInfo) error
	UpdateArtistInfo(info *ArtistInfo) error
	// SetArtistInfoArtist associates artist info with an artist, 0 clears it.
	SetArtistInfoArtist(infoID, artistID int64) error

	// RemoveFile removes a file backed record. Removing a track also removes
	// its artist links and embedded lyrics.
	RemoveFile(kind FileKind, id int64) error
}
