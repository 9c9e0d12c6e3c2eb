// Package index keeps a queryable SQLite record of every capture.
package index

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/hmgle/sockcap/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS captures(
	id            TEXT NOT NULL PRIMARY KEY,
	session_id    TEXT NOT NULL,
	timestamp     DATETIME NOT NULL,
	remote_addr   TEXT NOT NULL,
	bytes_read    INTEGER NOT NULL,
	end_reason    TEXT NOT NULL,
	snapshot_path TEXT NOT NULL,
	image_path    TEXT NOT NULL DEFAULT '',
	image_type    TEXT NOT NULL DEFAULT '',
	response_size INTEGER NOT NULL,
	duration_ms   INTEGER NOT NULL
)`

// Entry is one row of the captures table
type Entry struct {
	ID           string    `db:"id"`
	SessionID    string    `db:"session_id"`
	Timestamp    time.Time `db:"timestamp"`
	RemoteAddr   string    `db:"remote_addr"`
	BytesRead    int       `db:"bytes_read"`
	EndReason    string    `db:"end_reason"`
	SnapshotPath string    `db:"snapshot_path"`
	ImagePath    string    `db:"image_path"`
	ImageType    string    `db:"image_type"`
	ResponseSize int       `db:"response_size"`
	DurationMS   int64     `db:"duration_ms"`
}

type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the index database at path.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, errors.Wrap(err, "index: opening db")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "index: ping db")
	}

	// sqlite allows one writer; the capture loop is sequential anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "index: creating captures table")
	}

	return &Store{db: db}, nil
}

// Record stores rec. A record with an existing id replaces the old row.
func (s *Store) Record(ctx context.Context, rec *logger.CaptureRecord) error {
	e := Entry{
		ID:           rec.ID,
		SessionID:    rec.SessionID,
		Timestamp:    rec.Timestamp.UTC(),
		RemoteAddr:   rec.RemoteAddr,
		BytesRead:    rec.BytesRead,
		EndReason:    rec.EndReason,
		SnapshotPath: rec.SnapshotPath,
		ImagePath:    rec.ImagePath,
		ImageType:    rec.ImageType,
		ResponseSize: rec.ResponseSize,
		DurationMS:   rec.Duration.Milliseconds(),
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO captures(
			id, session_id, timestamp, remote_addr, bytes_read, end_reason,
			snapshot_path, image_path, image_type, response_size, duration_ms
		) VALUES(
			:id, :session_id, :timestamp, :remote_addr, :bytes_read, :end_reason,
			:snapshot_path, :image_path, :image_type, :response_size, :duration_ms
		)`, e)
	if err != nil {
		return errors.Wrap(err, "index: inserting capture")
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	var entries []Entry
	err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM captures ORDER BY timestamp DESC, rowid DESC LIMIT ?", n)
	if err != nil {
		return nil, errors.Wrap(err, "index: listing captures")
	}
	return entries, nil
}

// WithImages returns every entry that produced an image, newest first.
func (s *Store) WithImages(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM captures WHERE image_path != '' ORDER BY timestamp DESC, rowid DESC")
	if err != nil {
		return nil, errors.Wrap(err, "index: listing image captures")
	}
	return entries, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
