package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MKhiriev/cloudsync/internal/logger"
)

const createKVTable = `
CREATE TABLE IF NOT EXISTS kv (
    key   TEXT PRIMARY KEY,
    value BLOB NOT NULL
);`

type sqliteStore struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewSQLite opens (creating if necessary) the sqlite database at dsn and
// returns a StateStore backed by a single kv table. WAL mode keeps the
// synchronous per-mutation writes cheap enough for buffer persistence.
func NewSQLite(ctx context.Context, dsn string, log *logger.Logger) (StateStore, error) {
	if dsn == "" {
		return nil, errors.New("empty sqlite dsn")
	}

	if err := createLocalDBFileIfNotExists(dsn); err != nil {
		log.Err(err).Str("func", "NewSQLite").Msg("error creating database file")
		return nil, err
	}

	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite state store: %w", err)
	}
	if err = conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite state store: %w", err)
	}
	if _, err = conn.ExecContext(ctx, createKVTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}

	log.Debug().Str("func", "NewSQLite").Str("dsn", dsn).Msg("state store opened")
	return &sqliteStore{db: conn, logger: log}, nil
}

func (s *sqliteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *sqliteStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying database. The StateStore interface does
// not expose Close; the daemon reaches it through io.Closer on shutdown.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func createLocalDBFileIfNotExists(dbFile string) error {
	if _, err := os.Stat(dbFile); os.IsNotExist(err) {
		f, err := os.Create(dbFile)
		if err != nil {
			return fmt.Errorf("error creating DB file: %w", err)
		}
		f.Close()
	}
	return nil
}
