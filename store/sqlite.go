package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLite is a Store persisted in a SQLite database file.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the cache database at path. The parent
// directory is created if needed.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: writers serialize anyway and the pragma below is
	// per connection.
	db.SetMaxOpenConns(1)

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS methods (
		key TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		data BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened cache %s", path)
	return &SQLite{db: db, path: path}, nil
}

func (s *SQLite) Get(ctx context.Context, key Key) (*Entry, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM methods WHERE key = ?", key.String()).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying method: %w", err)
	}
	e, err := UnmarshalEntry(data)
	if err != nil {
		// A row we cannot decode is treated as a miss and overwritten on
		// the next Put.
		log.Warningf("%s: discarding cache entry %s: %s", s.path, key, err)
		return nil, ErrNotFound
	}
	return e, nil
}

func (s *SQLite) Put(ctx context.Context, key Key, e *Entry) error {
	data, err := MarshalEntry(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO methods (key, run_id, data) VALUES (?, ?, ?)",
		key.String(), e.RunID, data,
	)
	if err != nil {
		return fmt.Errorf("saving method: %w", err)
	}
	return nil
}

func (s *SQLite) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM methods").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting methods: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}
