package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS slots (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);`

// sqliteSlot keeps the snapshot as one row of the slots table
type sqliteSlot struct {
	db  *sql.DB
	key string
}

// NewSQLiteSlot opens the sqlite database file at path
func NewSQLiteSlot(path, key string) (Slot, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create directory", goerr.V("path", path))
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite db", goerr.V("path", path))
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to ping sqlite db", goerr.V("path", path))
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to initialize schema")
	}

	return &sqliteSlot{db: db, key: key}, nil
}

func (s *sqliteSlot) Get(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM slots WHERE key = ?", s.key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read slot", goerr.V("key", s.key))
	}
	return data, nil
}

func (s *sqliteSlot) Set(ctx context.Context, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO slots (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.key, data, time.Now().UnixMilli())
	if err != nil {
		return goerr.Wrap(err, "failed to write slot", goerr.V("key", s.key))
	}
	return nil
}

func (s *sqliteSlot) Close() error {
	return s.db.Close()
}
