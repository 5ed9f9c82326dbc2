package authority

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists the authoritative state: the global quota, quick-task
// entries and intention timers. Every mutation is written synchronously
// so a process crash loses nothing.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the state database at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS quota (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  value INTEGER NOT NULL CHECK (value >= 0)
);
CREATE TABLE IF NOT EXISTS entries (
  app TEXT PRIMARY KEY,
  phase TEXT NOT NULL,
  expires_at_ms INTEGER NOT NULL DEFAULT 0,
  created_at_ms INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS intentions (
  app TEXT PRIMARY KEY,
  expires_at_ms INTEGER NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Quota returns the persisted quota, or (found=false) when never set.
func (s *Store) Quota(ctx context.Context) (int, bool, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT value FROM quota WHERE id = 1`).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read quota: %w", err)
	}
	return v, true, nil
}

// SetQuota writes the quota value.
func (s *Store) SetQuota(ctx context.Context, value int) error {
	if value < 0 {
		return fmt.Errorf("quota must be non-negative, got %d", value)
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO quota (id, value) VALUES (1, ?)
ON CONFLICT(id) DO UPDATE SET value = excluded.value`, value)
	if err != nil {
		return fmt.Errorf("write quota: %w", err)
	}
	return nil
}

// SaveEntry upserts a quick-task entry.
func (s *Store) SaveEntry(ctx context.Context, e Entry) error {
	var expires int64
	if !e.ExpiresAt.IsZero() {
		expires = e.ExpiresAt.UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO entries (app, phase, expires_at_ms, created_at_ms) VALUES (?, ?, ?, ?)
ON CONFLICT(app) DO UPDATE SET
  phase = excluded.phase,
  expires_at_ms = excluded.expires_at_ms`,
		e.App, string(e.Phase), expires, e.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save entry %s: %w", e.App, err)
	}
	return nil
}

// DeleteEntry removes a quick-task entry.
func (s *Store) DeleteEntry(ctx context.Context, app string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE app = ?`, app); err != nil {
		return fmt.Errorf("delete entry %s: %w", app, err)
	}
	return nil
}

// Entries loads all quick-task entries.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT app, phase, expires_at_ms, created_at_ms FROM entries`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			phase   string
			expires int64
			created int64
		)
		if err := rows.Scan(&e.App, &phase, &expires, &created); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Phase = Phase(phase)
		if expires > 0 {
			e.ExpiresAt = time.UnixMilli(expires)
		}
		e.CreatedAt = time.UnixMilli(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveIntention upserts an intention timer expiry.
func (s *Store) SaveIntention(ctx context.Context, app string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO intentions (app, expires_at_ms) VALUES (?, ?)
ON CONFLICT(app) DO UPDATE SET expires_at_ms = excluded.expires_at_ms`,
		app, expiresAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save intention %s: %w", app, err)
	}
	return nil
}

// DeleteIntention removes an intention timer.
func (s *Store) DeleteIntention(ctx context.Context, app string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM intentions WHERE app = ?`, app); err != nil {
		return fmt.Errorf("delete intention %s: %w", app, err)
	}
	return nil
}

// Intentions loads all intention timers.
func (s *Store) Intentions(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT app, expires_at_ms FROM intentions`)
	if err != nil {
		return nil, fmt.Errorf("list intentions: %w", err)
	}
	defer rows.Close()

	intentions := make(map[string]time.Time)
	for rows.Next() {
		var (
			app     string
			expires int64
		)
		if err := rows.Scan(&app, &expires); err != nil {
			return nil, fmt.Errorf("scan intention: %w", err)
		}
		intentions[app] = time.UnixMilli(expires)
	}
	return intentions, rows.Err()
}
