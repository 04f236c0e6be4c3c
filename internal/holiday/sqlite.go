package holiday

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	logx "schedkit/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// SQLite is a calendar persisted in a SQLite table. Reads are served from an
// in-memory snapshot taken at open time; Add and Remove write through.
type SQLite struct {
	*Static

	db  *sql.DB
	log logx.Logger
}

// OpenSQLite opens (or creates) the database at cfg.Path and loads every row.
func OpenSQLite(ctx context.Context, cfg Config, log logx.Logger) (*SQLite, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("holiday: sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")

	s := &SQLite{Static: NewStatic(cfg.weekdays()...), db: db, log: log}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("holiday calendar opened", logx.String("path", path), logx.Int("holidays", s.Len()))
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *SQLite) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT date, name FROM holidays`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var raw, name string
		if err := rows.Scan(&raw, &name); err != nil {
			return err
		}
		d, err := ParseDate(raw)
		if err != nil {
			s.log.Warn("skipping malformed holiday row", logx.String("date", raw), logx.Err(err))
			continue
		}
		s.Static.Add(d, name)
	}
	return rows.Err()
}

// Add stores a holiday in the database and the snapshot.
func (s *SQLite) Add(ctx context.Context, d Date, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO holidays(date, name) VALUES(?, ?)
		 ON CONFLICT(date) DO UPDATE SET name = excluded.name`,
		d.String(), strings.TrimSpace(name),
	)
	if err != nil {
		return err
	}
	s.Static.Add(d, name)
	return nil
}

// Remove deletes a holiday from the database and the snapshot.
func (s *SQLite) Remove(ctx context.Context, d Date) (string, bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM holidays WHERE date = ?`, d.String())
	if err != nil {
		return "", false, err
	}
	name, ok := s.Static.Remove(d)
	if n, _ := res.RowsAffected(); n > 0 {
		ok = true
	}
	return name, ok, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
