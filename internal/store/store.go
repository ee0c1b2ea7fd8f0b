// Package store is the durable backing for settings, the run ledger, the
// audit log, and the structured event log (spec.md §4.B). It is sqlite-
// backed (modernc.org/sqlite, pure Go) because the durable artifact the
// spec names is a single file (luffybot.sqlite3), not a server database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// Store is the concurrency-safe handle to the durable backing. Reads are
// safe from any goroutine; writes are serialized through writeMu, mirroring
// spec.md's "concurrent reads safe; writes serialized per row key" — sqlite
// itself only supports one writer at a time, so a single mutex is the
// simplest implementation that honors that contract without starving reads.
type Store struct {
	db   *sql.DB
	path string

	writeMu sync.Mutex

	settingsMu    sync.RWMutex
	settingsCache map[string]string

	logDir string
}

// Open creates (if absent) and opens the sqlite-backed store at path,
// running idempotent schema initialization and loading the settings cache.
func Open(ctx context.Context, path, serverLogDir string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite: one writer; avoids SQLITE_BUSY under load

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}

	s := &Store{db: db, path: path, settingsCache: make(map[string]string), logDir: serverLogDir}

	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.loadSettingsCache(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: schema init: %w", err)
		}
	}
	return nil
}

// SeedDefaults inserts every (key, value) in defaults that is not already
// present, without overwriting an existing setting — spec.md's "first-run
// initialization seeds all known settings to their defaults without
// overwriting existing values".
func (s *Store) SeedDefaults(ctx context.Context, defaults map[string]string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for k, v := range defaults {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`, k, v); err != nil {
			return fmt.Errorf("store: seed default %s: %w", k, err)
		}
	}
	return s.loadSettingsCache(ctx)
}

func (s *Store) loadSettingsCache(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return fmt.Errorf("store: load settings cache: %w", err)
	}
	defer rows.Close()

	cache := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("store: scan setting: %w", err)
		}
		cache[k] = v
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.settingsMu.Lock()
	s.settingsCache = cache
	s.settingsMu.Unlock()
	return nil
}

// GetSetting returns the cached value for key, or fallback if unset.
func (s *Store) GetSetting(key, fallback string) string {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	if v, ok := s.settingsCache[key]; ok {
		return v
	}
	return fallback
}

// SetSetting writes key through to the database and then to the cache.
func (s *Store) SetSetting(key, value string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value); err != nil {
		return fmt.Errorf("store: set setting %s: %w", key, err)
	}

	s.settingsMu.Lock()
	s.settingsCache[key] = value
	s.settingsMu.Unlock()
	return nil
}

// InsertRun inserts a new ledger row with status=running and returns its
// strictly increasing id.
func (s *Store) InsertRun(ctx context.Context, f InsertRunFields) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO script_runs
			(script_key, requester_id, requester_tag, public_request, command_json, status, started_at, log_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ScriptKey, f.RequesterID, f.RequesterTag, boolToInt(f.PublicRequest), f.CommandJSON,
		string(StatusRunning), f.StartedAt.UTC().Format(time.RFC3339Nano), f.LogPath)
	if err != nil {
		return 0, fmt.Errorf("store: insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert run: last insert id: %w", err)
	}
	return id, nil
}

// ErrAlreadyFinalized is returned by FinalizeRun when runId's row already
// carries a terminal status.
var ErrAlreadyFinalized = errors.New("store: run already finalized")

// FinalizeRun updates runId's row to a terminal status exactly once;
// calling it twice on the same id returns ErrAlreadyFinalized.
func (s *Store) FinalizeRun(ctx context.Context, runID int64, status RunStatus, rc *int, note string, endedAt time.Time, durationSeconds float64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE script_runs
		SET status = ?, return_code = ?, note = ?, ended_at = ?, duration_seconds = ?
		WHERE id = ? AND status = ?`,
		string(status), rc, truncate(note, 2000), endedAt.UTC().Format(time.RFC3339Nano), durationSeconds,
		runID, string(StatusRunning))
	if err != nil {
		return fmt.Errorf("store: finalize run %d: %w", runID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: finalize run %d: %w", runID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: run %d", ErrAlreadyFinalized, runID)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the sqlite file backing this store.
func (s *Store) Path() string { return s.path }
