package keystore

import (
	"database/sql"
	"errors"
	"fmt"

	"ceased/internal/ceased"
	"ceased/internal/keystore/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore keeps keys in a single-table SQLite database. It trades the
// simple file layout of FilesystemStore for cheap existence checks and a
// single artifact to back up.
type SQLiteStore struct {
	db *sql.DB
}

var _ ceased.KeyStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a key store database at path and brings
// its schema up to date. path can be ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := openConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating key store: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// openConnection opens and configures a SQLite database connection with
// appropriate PRAGMAs. path can be a file path or ":memory:".
func openConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

func (s *SQLiteStore) Get(name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM keys WHERE name = ?", name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ceased.ErrKeyNotFound, name)
		}
		return nil, fmt.Errorf("reading key %s: %w", name, err)
	}
	return data, nil
}

func (s *SQLiteStore) Set(name string, key []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO keys (name, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		name, key,
	)
	if err != nil {
		return fmt.Errorf("writing key %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(name string) error {
	res, err := s.db.Exec("DELETE FROM keys WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting key %s: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting key %s: %w", name, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ceased.ErrKeyNotFound, name)
	}
	return nil
}

func (s *SQLiteStore) Names() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM keys ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning key name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	return names, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
