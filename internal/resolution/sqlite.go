package resolution

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS resolution_decisions (
	key        TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	target_row INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// SQLiteStore keeps decisions in a SQLite table. The whole table is read at
// open and rewritten in one transaction on each Put.
type SQLiteStore struct {
	db        *sql.DB
	decisions map[Key]Decision
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "sqlite: create directory")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteMigration); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: migrate")
	}

	s := &SQLiteStore{db: db, decisions: make(map[Key]Decision)}
	if err := s.load(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key, kind, target_row FROM resolution_decisions`)
	if err != nil {
		return eris.Wrap(err, "sqlite: query decisions")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var (
			raw string
			d   Decision
		)
		if err := rows.Scan(&raw, &d.Kind, &d.TargetRow); err != nil {
			return eris.Wrap(err, "sqlite: scan decision")
		}
		key, err := ParseKey(raw)
		if err != nil || !d.Kind.Valid() {
			zap.L().Debug("sqlite: skipping decision", zap.String("key", raw))
			continue
		}
		s.decisions[key] = d
	}
	return eris.Wrap(rows.Err(), "sqlite: iterate decisions")
}

func (s *SQLiteStore) Get(key Key) (Decision, bool) {
	d, ok := s.decisions[key]
	return d, ok
}

func (s *SQLiteStore) Put(ctx context.Context, key Key, d Decision) error {
	s.decisions[key] = d

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM resolution_decisions`); err != nil {
		return eris.Wrap(err, "sqlite: clear decisions")
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO resolution_decisions (key, kind, target_row) VALUES (?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for k, dec := range s.decisions {
		if _, err := stmt.ExecContext(ctx, k.String(), string(dec.Kind), dec.TargetRow); err != nil {
			return eris.Wrapf(err, "sqlite: insert decision %s", k)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit decisions")
}

func (s *SQLiteStore) Len() int { return len(s.decisions) }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
