package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the registry in a SQLite table (modernc.org/sqlite, CGO-free).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at dsn ("sqlite://" prefix optional) and ensures the schema.
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	dsn = strings.TrimSpace(dsn)
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}
	if dsn == "" {
		return nil, errors.New("empty sqlite path")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// single writer; busy timeout covers a second pivbatch invocation
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=3000;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS instances(
		key TEXT PRIMARY KEY,
		pid INTEGER NOT NULL,
		bpass TEXT NOT NULL,
		name TEXT NOT NULL,
		final_num INTEGER NOT NULL,
		b_savefolder_pass TEXT NOT NULL,
		start_unix INTEGER NOT NULL DEFAULT 0
	);`)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context) (Instances, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, pid, bpass, name, final_num, b_savefolder_pass, start_unix FROM instances`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer func() { _ = rows.Close() }()
	in := Instances{}
	for rows.Next() {
		var k string
		var r Record
		if err := rows.Scan(&k, &r.PID, &r.Source, &r.Name, &r.FinalNum, &r.Destination, &r.StartUnix); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		in[k] = r
	}
	return in, rows.Err()
}

// Save replaces the table contents in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, in Instances) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM instances`); err != nil {
		return err
	}
	for _, k := range in.Keys() {
		r := in[k]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO instances(key, pid, bpass, name, final_num, b_savefolder_pass, start_unix)
			VALUES(?, ?, ?, ?, ?, ?, ?);`,
			k, r.PID, r.Source, r.Name, r.FinalNum, r.Destination, r.StartUnix); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
