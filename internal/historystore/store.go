// Package historystore persists the set of (name, checksum, date) triples
// that have already been downloaded and verified, so a later run can skip
// them. It owns its database connection as a single actor goroutine: all
// operations are serialized internally, so callers on any number of
// goroutines can call Exists/Insert without additional locking.
package historystore

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// TimeLayout is the on-disk format for a record's date column.
const TimeLayout = "2006-01-02 15:04:05"

// Record is the persisted identity of a previously downloaded image.
type Record struct {
	Name     string
	Checksum string
	Date     time.Time
}

type request struct {
	record   Record
	isInsert bool
	reply    chan response
}

type response struct {
	exists bool
	err    error
}

// Store is the actor owning the sqlite connection. Zero value is not
// usable; create one with Open.
type Store struct {
	requests chan request
	done     chan struct{}
}

// Open expands environment variables and a leading "~" in path, opens (or
// creates) the sqlite file there, migrates the schema, and starts the
// owning actor goroutine. Open returns any failure as an error for the
// caller to handle; MustOpen is the variant that logs and exits the
// process instead.
func Open(path string) (*Store, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expanding history store path %q: %w", path, err)
	}

	dir := filepath.Dir(expanded)

	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("creating history store directory %q: %w", dir, err)
	}

	db, err := sql.Open("sqlite", expanded)
	if err != nil {
		return nil, fmt.Errorf("opening history store %q: %w", expanded, err)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to history store %q: %w", expanded, err)
	}

	err = migrate(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating history store %q: %w", expanded, err)
	}

	s := &Store{
		requests: make(chan request),
		done:     make(chan struct{}),
	}

	go s.run(db)

	return s, nil
}

// MustOpen is Open, except it logs and exits the process on failure, as
// open/migration failures are fatal per the error taxonomy (ConfigError /
// StoreError).
func MustOpen(path string) *Store {
	s, err := Open(path)
	if err != nil {
		slog.Error("failed to open history store", "path", path, "error", err)
		os.Exit(1)
	}

	return s
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS images (
		name TEXT NOT NULL,
		checksum TEXT NOT NULL,
		date TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating images table: %w", err)
	}

	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS index_name_checksum_date
		ON images(name, checksum, date)`)
	if err != nil {
		return fmt.Errorf("creating unique index: %w", err)
	}

	return nil
}

// run is the single goroutine that owns db for the lifetime of the Store.
func (s *Store) run(db *sql.DB) {
	defer db.Close()
	defer close(s.done)

	for req := range s.requests {
		if req.isInsert {
			req.reply <- response{err: insert(db, req.record)}
			continue
		}

		exists, err := exists(db, req.record)
		req.reply <- response{exists: exists, err: err}
	}
}

// Exists reports whether a row matches name, checksum, and date exactly.
// Per the error taxonomy, any query error degrades to "not in history"
// (false) rather than propagating, so the caller re-downloads instead of
// erroneously skipping an image.
func (s *Store) Exists(name, checksum string, date time.Time) bool {
	reply := make(chan response, 1)
	s.requests <- request{
		record: Record{Name: name, Checksum: checksum, Date: date},
		reply:  reply,
	}

	result := <-reply
	if result.err != nil {
		slog.Warn("history store query failed, treating as not found", "name", name, "error", result.err)
		return false
	}

	return result.exists
}

// Insert records one successfully verified image. Duplicate inserts are
// silently ignored by the unique index.
func (s *Store) Insert(name, checksum string, date time.Time) error {
	reply := make(chan response, 1)
	s.requests <- request{
		record:   Record{Name: name, Checksum: checksum, Date: date},
		isInsert: true,
		reply:    reply,
	}

	result := <-reply

	return result.err
}

// Close stops the actor goroutine and closes the underlying connection.
func (s *Store) Close() {
	close(s.requests)
	<-s.done
}

func exists(db *sql.DB, record Record) (bool, error) {
	row := db.QueryRow(
		`SELECT 1 FROM images WHERE name = ? AND checksum = ? AND date = ? LIMIT 1`,
		record.Name, record.Checksum, record.Date.Format(TimeLayout),
	)

	var found int
	err := row.Scan(&found)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func insert(db *sql.DB, record Record) error {
	_, err := db.Exec(
		`INSERT OR IGNORE INTO images (name, checksum, date) VALUES (?, ?, ?)`,
		record.Name, record.Checksum, record.Date.Format(TimeLayout),
	)

	return err
}

// expandPath expands "~" and environment variables in path, the way the
// original Rust implementation used shellexpand::full.
func expandPath(path string) (string, error) {
	expanded := os.ExpandEnv(path)

	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}

		expanded = filepath.Join(home, strings.TrimPrefix(expanded, "~"))
	}

	return expanded, nil
}
