package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/contre95/soulscan/src/music"
	_ "github.com/mattn/go-sqlite3"
)

// SqliteStore is a SQLite implementation of the music.Store interface.
// Writers are serialized; readers run concurrently thanks to WAL mode.
type SqliteStore struct {
	db      *sql.DB
	writeMu sync.Mutex
}

var _ music.Store = (*SqliteStore)(nil)

// NewSqliteStore opens (or creates) the database at path and migrates it.
func NewSqliteStore(path string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("Database ready", "path", path)
	return newSqliteStore(db), nil
}

func newSqliteStore(db *sql.DB) *SqliteStore {
	return &SqliteStore{db: db}
}

func dsn(path string) string {
	params := "_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS media_libraries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			root_path TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS directories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			absolute_path TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			parent_id INTEGER REFERENCES directories(id) ON DELETE CASCADE,
			media_library_id INTEGER REFERENCES media_libraries(id) ON DELETE SET NULL
		);

		CREATE TABLE IF NOT EXISTS releases (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			mbid TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS mediums (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			release_id INTEGER NOT NULL REFERENCES releases(id) ON DELETE CASCADE,
			position INTEGER NOT NULL DEFAULT 0,
			name TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS artists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			sort_name TEXT NOT NULL DEFAULT '',
			mbid TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS tracks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			absolute_file_path TEXT NOT NULL UNIQUE,
			file_stem TEXT NOT NULL,
			file_size INTEGER NOT NULL,
			last_write_time INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			name TEXT NOT NULL DEFAULT '',
			track_number INTEGER NOT NULL DEFAULT 0,
			disc_number INTEGER NOT NULL DEFAULT 0,
			year INTEGER NOT NULL DEFAULT 0,
			genre TEXT NOT NULL DEFAULT '',
			mbid TEXT NOT NULL DEFAULT '',
			directory_id INTEGER REFERENCES directories(id) ON DELETE CASCADE,
			medium_id INTEGER REFERENCES mediums(id) ON DELETE SET NULL,
			release_id INTEGER REFERENCES releases(id) ON DELETE SET NULL,
			added_time INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS track_artist_links (
			track_id INTEGER NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
			artist_id INTEGER NOT NULL REFERENCES artists(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			PRIMARY KEY (track_id, artist_id, type)
		);

		CREATE TABLE IF NOT EXISTS track_lyrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			track_id INTEGER REFERENCES tracks(id) ON DELETE SET NULL,
			directory_id INTEGER REFERENCES directories(id) ON DELETE CASCADE,
			absolute_file_path TEXT UNIQUE,
			file_stem TEXT NOT NULL DEFAULT '',
			last_write_time INTEGER NOT NULL DEFAULT 0,
			file_size INTEGER NOT NULL DEFAULT 0,
			language TEXT NOT NULL,
			offset_ms INTEGER NOT NULL DEFAULT 0,
			display_artist TEXT NOT NULL DEFAULT '',
			display_title TEXT NOT NULL DEFAULT '',
			synchronized INTEGER NOT NULL DEFAULT 0,
			lines TEXT NOT NULL DEFAULT '[]'
		);

		CREATE TABLE IF NOT EXISTS playlist_files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			absolute_file_path TEXT NOT NULL UNIQUE,
			file_stem TEXT NOT NULL,
			last_write_time INTEGER NOT NULL,
			file_size INTEGER NOT NULL,
			name TEXT NOT NULL,
			files TEXT NOT NULL DEFAULT '[]',
			directory_id INTEGER REFERENCES directories(id) ON DELETE CASCADE,
			media_library_id INTEGER REFERENCES media_libraries(id) ON DELETE SET NULL
		);

		CREATE TABLE IF NOT EXISTS playlist_file_tracks (
			playlist_file_id INTEGER NOT NULL REFERENCES playlist_files(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			track_id INTEGER NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
			PRIMARY KEY (playlist_file_id, position)
		);

		CREATE TABLE IF NOT EXISTS images (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			absolute_file_path TEXT NOT NULL UNIQUE,
			file_stem TEXT NOT NULL,
			last_write_time INTEGER NOT NULL,
			file_size INTEGER NOT NULL,
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			directory_id INTEGER REFERENCES directories(id) ON DELETE CASCADE,
			release_id INTEGER REFERENCES releases(id) ON DELETE SET NULL,
			medium_id INTEGER REFERENCES mediums(id) ON DELETE SET NULL,
			track_id INTEGER REFERENCES tracks(id) ON DELETE SET NULL,
			artist_id INTEGER REFERENCES artists(id) ON DELETE SET NULL
		);

		CREATE TABLE IF NOT EXISTS artist_infos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			absolute_file_path TEXT NOT NULL UNIQUE,
			last_write_time INTEGER NOT NULL,
			file_size INTEGER NOT NULL,
			name TEXT NOT NULL,
			sort_name TEXT NOT NULL DEFAULT '',
			mbid TEXT NOT NULL DEFAULT '',
			biography TEXT NOT NULL DEFAULT '',
			directory_id INTEGER REFERENCES directories(id) ON DELETE CASCADE,
			artist_id INTEGER REFERENCES artists(id) ON DELETE SET NULL
		);

		CREATE INDEX IF NOT EXISTS idx_directories_parent_id ON directories(parent_id);
		CREATE INDEX IF NOT EXISTS idx_directories_media_library_id ON directories(media_library_id);
		CREATE INDEX IF NOT EXISTS idx_mediums_release_id ON mediums(release_id);
		CREATE INDEX IF NOT EXISTS idx_releases_mbid ON releases(mbid);
		CREATE INDEX IF NOT EXISTS idx_releases_name ON releases(name);
		CREATE INDEX IF NOT EXISTS idx_artists_name ON artists(name);
		CREATE INDEX IF NOT EXISTS idx_artists_mbid ON artists(mbid);
		CREATE INDEX IF NOT EXISTS idx_tracks_directory_id ON tracks(directory_id);
		CREATE INDEX IF NOT EXISTS idx_tracks_file_size ON tracks(file_size);
		CREATE INDEX IF NOT EXISTS idx_tracks_release_id ON tracks(release_id);
		CREATE INDEX IF NOT EXISTS idx_tracks_medium_id ON tracks(medium_id);
		CREATE INDEX IF NOT EXISTS idx_track_artist_links_artist_id ON track_artist_links(artist_id);
		CREATE INDEX IF NOT EXISTS idx_track_lyrics_track_id ON track_lyrics(track_id);
		CREATE INDEX IF NOT EXISTS idx_track_lyrics_directory_id ON track_lyrics(directory_id);
		CREATE INDEX IF NOT EXISTS idx_playlist_files_directory_id ON playlist_files(directory_id);
		CREATE INDEX IF NOT EXISTS idx_playlist_file_tracks_track_id ON playlist_file_tracks(track_id);
		CREATE INDEX IF NOT EXISTS idx_images_directory_id ON images(directory_id);
		CREATE INDEX IF NOT EXISTS idx_artist_infos_directory_id ON artist_infos(directory_id);
		CREATE INDEX IF NOT EXISTS idx_images_release_id ON images(release_id);
		CREATE INDEX IF NOT EXISTS idx_images_track_id ON images(track_id);
		CREATE INDEX IF NOT EXISTS idx_images_artist_id ON images(artist_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// Read runs fn inside a read transaction.
func (s *SqliteStore) Read(ctx context.Context, fn func(tx music.ReadTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// Write runs fn inside a write transaction. Only one write transaction is open
// at any time.
func (s *SqliteStore) Write(ctx context.Context, fn func(tx music.WriteTx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin write transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit write transaction: %w", err)
	}
	return nil
}

// Analyze runs ANALYZE so the planner picks up the new data distribution.
func (s *SqliteStore) Analyze(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	start := time.Now()
	if _, err := s.db.ExecContext(ctx, "ANALYZE"); err != nil {
		return fmt.Errorf("failed to analyze database: %w", err)
	}
	slog.Debug("SqliteStore.Analyze: done", "duration", time.Since(start).String())
	return nil
}

// Vacuum runs VACUUM to compact the database file.
func (s *SqliteStore) Vacuum(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	start := time.Now()
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	slog.Debug("SqliteStore.Vacuum: done", "duration", time.Since(start).String())
	return nil
}

// sqliteTx implements both music.ReadTx and music.WriteTx on top of a sql.Tx.
type sqliteTx struct {
	ctx        context.Context
	tx         *sql.Tx
	savepoints int
}

var _ music.WriteTx = (*sqliteTx)(nil)

func (t *sqliteTx) exec(query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(t.ctx, query, args...)
}

func (t *sqliteTx) query(query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(t.ctx, query, args...)
}

func (t *sqliteTx) queryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(t.ctx, query, args...)
}

func (t *sqliteTx) queryIDs(query string, args ...any) ([]int64, error) {
	rows, err := t.query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// removeIDs deletes the rows of table whose id is in ids.
func (t *sqliteTx) removeIDs(table string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", table, placeholders(len(ids)))
	_, err := t.exec(query, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("failed to remove from %s: %w", table, err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// nullID maps the zero ID onto SQL NULL.
func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// nullString maps the empty string onto SQL NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// pathRange returns the bounds of every path located below root, suitable for
// an index friendly "path >= lower AND path < upper" condition.
func pathRange(root string) (string, string) {
	lower := strings.TrimSuffix(root, "/") + "/"
	upper := strings.TrimSuffix(lower, "/") + "0"
	return lower, upper
}

var fileTables = map[music.FileKind]string{
	music.FileKindTrack:      "tracks",
	music.FileKindLyrics:     "track_lyrics",
	music.FileKindPlayList:   "playlist_files",
	music.FileKindImage:      "images",
	music.FileKindArtistInfo: "artist_infos",
}

func fileTable(kind music.FileKind) (string, error) {
	table, ok := fileTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown file kind %q", kind)
	}
	return table, nil
}
