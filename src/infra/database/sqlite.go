package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/contre95/soulfetch/src/music"
	"github.com/mattn/go-sqlite3"
)

const artistSeparator = "\x1f"

const lockBackoff = 50 * time.Millisecond

// trackColumns is the projection shared by every track query. Album names are
// joined, artist ids are folded into one column.
var trackColumns = []string{
	"t.id",
	"t.name",
	"COALESCE(t.album_id, '')",
	"COALESCE(al.name, '')",
	"COALESCE(t.download_status, '')",
	"COALESCE((SELECT group_concat(x.artist_id, char(31)) FROM artist_tracks x WHERE x.track_id = t.id), '')",
}

// SqliteCatalog is a SQLite implementation of the music.Catalog interface.
type SqliteCatalog struct {
	path    string
	retries int

	mu sync.RWMutex // guards db while reconnecting
	db *sql.DB

	writeMu sync.Mutex
}

// NewSqliteCatalog opens the catalog at path and creates the schema if needed.
// retries is how many times a statement is retried on a fresh connection after
// a connection-level failure.
func NewSqliteCatalog(path string, retries int) (*SqliteCatalog, error) {
	if retries < 0 {
		retries = 0
	}
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create catalog schema: %w", err)
	}
	slog.Info("Catalog opened", "path", path, "retries", retries)
	return &SqliteCatalog{path: path, retries: retries, db: db}, nil
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to catalog %s: %w", path, err)
	}
	return db, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS artists (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS albums (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tracks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			album_id TEXT,
			download_status TEXT NOT NULL DEFAULT 'not_downloaded',
			FOREIGN KEY (album_id) REFERENCES albums(id)
		);

		CREATE TABLE IF NOT EXISTS artist_tracks (
			artist_id TEXT NOT NULL,
			track_id TEXT NOT NULL,
			PRIMARY KEY (artist_id, track_id),
			FOREIGN KEY (artist_id) REFERENCES artists(id),
			FOREIGN KEY (track_id) REFERENCES tracks(id)
		);

		CREATE INDEX IF NOT EXISTS idx_artist_tracks_track ON artist_tracks(track_id);
		CREATE INDEX IF NOT EXISTS idx_tracks_status ON tracks(download_status);
	`)
	return err
}

// Close closes the underlying database handle.
func (d *SqliteCatalog) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.Close()
}

func (d *SqliteCatalog) handle() *sql.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}

// reconnect replaces a handle that failed with a fresh one. Concurrent callers
// that saw the same broken handle only reopen it once.
func (d *SqliteCatalog) reconnect(broken *sql.DB) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db != broken {
		return nil
	}
	db, err := open(d.path)
	if err != nil {
		return err
	}
	broken.Close()
	d.db = db
	return nil
}

// withRetry runs fn and retries it up to d.retries times. Lock contention is
// retried on the same handle after a short pause. Connection failures reopen
// the database first.
func (d *SqliteCatalog) withRetry(ctx context.Context, op string, fn func(db *sql.DB) error) error {
	var err error
	for attempt := 0; attempt <= d.retries; attempt++ {
		db := d.handle()
		err = fn(db)
		if err == nil || ctx.Err() != nil {
			return err
		}
		switch {
		case isLockError(err):
			slog.Debug("Catalog is locked, retrying", "op", op, "attempt", attempt+1, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt+1) * lockBackoff):
			}
		case isConnectionError(err):
			slog.Warn("Catalog connection error, reconnecting", "op", op, "attempt", attempt+1, "error", err)
			if rerr := d.reconnect(db); rerr != nil {
				slog.Error("Catalog reconnect failed", "op", op, "error", rerr)
			}
		default:
			return err
		}
	}
	return err
}

// isLockError reports whether another connection holds the database lock.
func isLockError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrCantOpen, sqlite3.ErrIoErr:
			return true
		}
	}
	return strings.Contains(err.Error(), "database is closed")
}

// GetArtist looks the artist up by id first and then by a name substring.
func (d *SqliteCatalog) GetArtist(ctx context.Context, ref string) (*music.Artist, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}

	byID := sq.Select("id", "name").From("artists").Where(sq.Eq{"id": ref}).Limit(1)
	artist, err := d.queryArtist(ctx, byID)
	if err != nil || artist != nil {
		return artist, err
	}

	byName := sq.Select("id", "name").From("artists").
		Where(sq.Like{"name": "%" + ref + "%"}).
		OrderBy("rowid").
		Limit(1)
	return d.queryArtist(ctx, byName)
}

func (d *SqliteCatalog) queryArtist(ctx context.Context, query sq.SelectBuilder) (*music.Artist, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var artist *music.Artist
	err = d.withRetry(ctx, "GetArtist", func(db *sql.DB) error {
		a := &music.Artist{}
		err := db.QueryRowContext(ctx, stmt, args...).Scan(&a.ID, &a.Name)
		if errors.Is(err, sql.ErrNoRows) {
			artist = nil
			return nil
		}
		if err != nil {
			return err
		}
		artist = a
		return nil
	})
	if err != nil {
		slog.Error("GetArtist: query failed", "error", err)
		return nil, err
	}
	return artist, nil
}

// GetArtistTracks returns the tracks linked to an artist in insertion order.
func (d *SqliteCatalog) GetArtistTracks(ctx context.Context, artistID string) ([]*music.Track, error) {
	stmt, args, err := sq.Select(trackColumns...).
		From("tracks t").
		Join("artist_tracks atr ON atr.track_id = t.id").
		LeftJoin("albums al ON al.id = t.album_id").
		Where(sq.Eq{"atr.artist_id": artistID}).
		OrderBy("t.rowid").
		ToSql()
	if err != nil {
		return nil, err
	}

	var tracks []*music.Track
	err = d.withRetry(ctx, "GetArtistTracks", func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, stmt, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		tracks = tracks[:0]
		for rows.Next() {
			track, err := scanTrack(rows)
			if err != nil {
				return err
			}
			tracks = append(tracks, track)
		}
		return rows.Err()
	})
	if err != nil {
		slog.Error("GetArtistTracks: query failed", "error", err, "artistID", artistID)
		return nil, err
	}
	return tracks, nil
}

// GetTrack returns a single track or (nil, nil) when it does not exist.
func (d *SqliteCatalog) GetTrack(ctx context.Context, id string) (*music.Track, error) {
	stmt, args, err := sq.Select(trackColumns...).
		From("tracks t").
		LeftJoin("albums al ON al.id = t.album_id").
		Where(sq.Eq{"t.id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var track *music.Track
	err = d.withRetry(ctx, "GetTrack", func(db *sql.DB) error {
		t, err := scanTrack(db.QueryRowContext(ctx, stmt, args...))
		if errors.Is(err, sql.ErrNoRows) {
			track = nil
			return nil
		}
		if err != nil {
			return err
		}
		track = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return track, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrack(row scanner) (*music.Track, error) {
	var status, artistIDs string
	track := &music.Track{}
	if err := row.Scan(&track.ID, &track.Name, &track.AlbumID, &track.AlbumName, &status, &artistIDs); err != nil {
		return nil, err
	}
	track.DownloadStatus = music.ParseDownloadStatus(status)
	if artistIDs != "" {
		track.ArtistIDs = strings.Split(artistIDs, artistSeparator)
	}
	return track, nil
}

// GetArtistProgress counts an artist's tracks and how many are available.
func (d *SqliteCatalog) GetArtistProgress(ctx context.Context, artistID string) (music.ArtistProgress, error) {
	stmt, args, err := sq.Select(
		"COUNT(*)",
		"COALESCE(SUM(CASE WHEN t.download_status = 'available' THEN 1 ELSE 0 END), 0)",
	).
		From("tracks t").
		Join("artist_tracks atr ON atr.track_id = t.id").
		Where(sq.Eq{"atr.artist_id": artistID}).
		ToSql()
	if err != nil {
		return music.ArtistProgress{}, err
	}

	var progress music.ArtistProgress
	err = d.withRetry(ctx, "GetArtistProgress", func(db *sql.DB) error {
		return db.QueryRowContext(ctx, stmt, args...).Scan(&progress.Total, &progress.Available)
	})
	return progress, err
}

// UpdateTrackStatus writes a single status transition.
func (d *SqliteCatalog) UpdateTrackStatus(ctx context.Context, trackID string, status music.DownloadStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", music.ErrInvalidStatus, status)
	}
	stmt, args, err := sq.Update("tracks").
		Set("download_status", string(status)).
		Where(sq.Eq{"id": trackID}).
		ToSql()
	if err != nil {
		return err
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	var affected int64
	err = d.withRetry(ctx, "UpdateTrackStatus", func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, stmt, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		slog.Error("UpdateTrackStatus: update failed", "error", err, "trackID", trackID, "status", status)
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", music.ErrTrackNotFound, trackID)
	}
	slog.Debug("UpdateTrackStatus: status updated", "trackID", trackID, "status", status)
	return nil
}

// GetStatusDistribution counts tracks per download status. Unknown stored
// values are counted as not downloaded.
func (d *SqliteCatalog) GetStatusDistribution(ctx context.Context) (map[music.DownloadStatus]int, error) {
	stmt, args, err := sq.Select("COALESCE(download_status, '')", "COUNT(*)").
		From("tracks").
		GroupBy("download_status").
		ToSql()
	if err != nil {
		return nil, err
	}

	distribution := make(map[music.DownloadStatus]int)
	err = d.withRetry(ctx, "GetStatusDistribution", func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, stmt, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		clear(distribution)
		for rows.Next() {
			var status string
			var count int
			if err := rows.Scan(&status, &count); err != nil {
				return err
			}
			distribution[music.ParseDownloadStatus(status)] += count
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return distribution, nil
}

// AddArtist inserts an artist, replacing any artist with the same id.
func (d *SqliteCatalog) AddArtist(ctx context.Context, artist *music.Artist) error {
	if err := artist.Validate(); err != nil {
		slog.Error("AddArtist: validation failed", "error", err, "artistID", artist.ID)
		return err
	}
	return d.exec(ctx, "AddArtist", sq.Insert("artists").Options("OR REPLACE").
		Columns("id", "name").
		Values(artist.ID, artist.Name))
}

// AddAlbum inserts an album, replacing any album with the same id.
func (d *SqliteCatalog) AddAlbum(ctx context.Context, album *music.Album) error {
	if strings.TrimSpace(album.ID) == "" {
		return fmt.Errorf("album id cannot be empty")
	}
	return d.exec(ctx, "AddAlbum", sq.Insert("albums").Options("OR REPLACE").
		Columns("id", "name").
		Values(album.ID, album.Name))
}

// AddTrack inserts a track and links it to its artists.
func (d *SqliteCatalog) AddTrack(ctx context.Context, track *music.Track) error {
	if err := track.Validate(); err != nil {
		slog.Error("AddTrack: validation failed", "error", err, "trackID", track.ID)
		return err
	}
	status := track.DownloadStatus
	if status == "" {
		status = music.StatusNotDownloaded
	}
	album := sql.NullString{String: track.AlbumID, Valid: track.AlbumID != ""}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	return d.withRetry(ctx, "AddTrack", func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, args, err := sq.Insert("tracks").
			Columns("id", "name", "album_id", "download_status").
			Values(track.ID, track.Name, album, string(status)).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return err
		}

		for _, artistID := range track.ArtistIDs {
			stmt, args, err := sq.Insert("artist_tracks").
				Columns("artist_id", "track_id").
				Values(artistID, track.ID).
				ToSql()
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func (d *SqliteCatalog) exec(ctx context.Context, op string, query sq.InsertBuilder) error {
	stmt, args, err := query.ToSql()
	if err != nil {
		return err
	}
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	err = d.withRetry(ctx, op, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, stmt, args...)
		return err
	})
	if err != nil {
		slog.Error(op+": insert failed", "error", err)
	}
	return err
}
