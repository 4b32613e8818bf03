package persist

import (
	"context"
	"database/sql"
	"sync"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db   *sql.DB
	once sync.Once
}

var _ Store = (*sqliteStore)(nil)

// NewSQLiteStore returns a Store backed by SQLite (pure Go, no CGO).
// If dbPath is empty or ":memory:", an in-memory database is used.
func NewSQLiteStore(ctx context.Context, dbPath string) (Store, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "persist: open sqlite")
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "persist: enable wal")
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		record BLOB NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "persist: create table")
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Save(ctx context.Context, rec Record) error {
	buf, err := encode(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, record, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET record = excluded.record, expires_at = excluded.expires_at`,
		rec.Key, buf, rec.ExpiresAt,
	)
	return errors.Wrapf(err, "persist: save %q", rec.Key)
}

func (s *sqliteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	return errors.Wrapf(err, "persist: delete %q", key)
}

func (s *sqliteStore) Load(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, record FROM cache_entries`)
	if err != nil {
		return nil, errors.Wrap(err, "persist: query records")
	}

	var (
		records []Record
		corrupt []string
		failed  loadErrors
	)
	for rows.Next() {
		var key string
		var buf []byte
		if err := rows.Scan(&key, &buf); err != nil {
			failed.add(errors.Wrap(err, "persist: scan"))
			continue
		}
		rec, err := decode(buf)
		if err != nil {
			failed.add(errors.Wrapf(err, "persist: %q", key))
			corrupt = append(corrupt, key)
			continue
		}
		records = append(records, rec)
	}
	iterErr := rows.Err()
	rows.Close()
	if iterErr != nil {
		return records, errors.Wrap(iterErr, "persist: iterate records")
	}
	// the cursor must be closed first, an in-memory database has one connection
	for _, key := range corrupt {
		if err := s.Delete(ctx, key); err != nil {
			failed.add(err)
		}
	}
	return records, failed.err()
}

func (s *sqliteStore) Close() error {
	var err error
	s.once.Do(func() {
		err = s.db.Close()
	})
	return err
}
