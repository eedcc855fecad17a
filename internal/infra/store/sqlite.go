package store

import (
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const settingsTable = `
  create table if not exists settings (
    key text primary key,
    value text not null
  );`

// SQLite keeps records in a key/value table.
type SQLite struct {
	db *sqlx.DB
}

// NewSQLite opens (or creates) the database at path and makes sure the
// settings table exists.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("settings database path is empty")
	}
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	// sqlite serializes writers anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(settingsTable); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create settings table")
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Read(key string) (string, bool, error) {
	var value string
	err := s.db.Get(&value, `select value from settings where key = ?;`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to read %s", key)
	}
	return value, true, nil
}

func (s *SQLite) Write(key, value string) error {
	query := `
      insert into settings (key, value)
      values (?, ?)
      on conflict(key) do update
         set value = excluded.value;`

	if _, err := s.db.Exec(query, key, value); err != nil {
		return errors.Wrapf(err, "failed to write %s", key)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
