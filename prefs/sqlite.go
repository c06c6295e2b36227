package prefs

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// SQLite is a Store backed by a single sqlite table. Unlike File, it can be
// written by multiple processes without losing concurrent updates to
// different keys.
type SQLite struct {
	db  *sql.DB
	log zerolog.Logger
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string, log zerolog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open preferences database: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS prefs (
		key   TEXT PRIMARY KEY NOT NULL,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize preferences database: %w", err)
	}
	return &SQLite{db: db, log: log}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) get(key string) (string, bool) {
	var value string
	if err := s.db.QueryRow(`SELECT value FROM prefs WHERE key = ?`, key).Scan(&value); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to read preference")
		}
		return "", false
	}
	return value, true
}

func (s *SQLite) put(key, value string) error {
	if _, err := s.db.Exec(`INSERT INTO prefs (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value); err != nil {
		return fmt.Errorf("write preference %q: %w", key, err)
	}
	return nil
}

func (s *SQLite) String(key, def string) string {
	if v, ok := s.get(key); ok {
		return v
	}
	return def
}

func (s *SQLite) Int(key string, def int) int {
	if v, ok := s.get(key); ok {
		return asInt(v, def)
	}
	return def
}

func (s *SQLite) Bool(key string, def bool) bool {
	if v, ok := s.get(key); ok {
		return asBool(v, def)
	}
	return def
}

func (s *SQLite) PutString(key, value string) error {
	return s.put(key, value)
}

func (s *SQLite) PutInt(key string, value int) error {
	return s.put(key, strconv.Itoa(value))
}

func (s *SQLite) PutBool(key string, value bool) error {
	return s.put(key, strconv.FormatBool(value))
}
