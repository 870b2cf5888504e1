// Package cache provides the persistent sanitize ledger. The ledger
// records the outcome of each sanitize pass keyed by document path,
// input digest, and option fingerprint, so repeated batch runs can
// skip documents whose sanitized output is already on disk.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/texforge/nbprep/internal/sqlite"
)

// schemaVersion is stored in PRAGMA user_version for migrations.
const schemaVersion = 1

// Entry is one recorded sanitize outcome.
type Entry struct {
	Path         string    `json:"path"`
	InputDigest  string    `json:"input_digest"`
	Fingerprint  string    `json:"fingerprint"`
	OutputDigest string    `json:"output_digest"`
	Changed      bool      `json:"changed"`
	SanitizedAt  time.Time `json:"sanitized_at"`
	RunID        string    `json:"run_id"`
}

// Stats contains ledger statistics.
type Stats struct {
	Entries   int64  `json:"entries"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Driver    string `json:"driver"`
}

// Ledger is a SQLite-backed record of sanitize outcomes.
type Ledger struct {
	db   *sql.DB
	path string

	mu     sync.Mutex
	hits   int64
	misses int64
}

// DefaultPath returns the per-user ledger location.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user cache dir: %w", err)
	}
	return filepath.Join(dir, "nbprep", "ledger.db"), nil
}

// Open opens (creating if necessary) the ledger at the given path.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	// WAL lets concurrent batch workers read while one writes.
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Ledger{db: db, path: path}, nil
}

// migrate checks the schema version and creates tables if they don't exist.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version > schemaVersion {
		return fmt.Errorf("ledger schema version %d is newer than supported version %d", version, schemaVersion)
	}

	if version == schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	createDocuments := `
	CREATE TABLE IF NOT EXISTS documents (
		path                TEXT NOT NULL,
		input_digest        TEXT NOT NULL,
		options_fingerprint TEXT NOT NULL,
		output_digest       TEXT NOT NULL,
		changed             INTEGER NOT NULL,
		sanitized_at        INTEGER NOT NULL,
		run_id              TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (path, input_digest, options_fingerprint)
	);
	`
	if _, err := tx.Exec(createDocuments); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Lookup returns the recorded entry for the given key, or ok=false if
// no matching sanitize outcome has been recorded.
func (l *Ledger) Lookup(path, inputDigest, fingerprint string) (*Entry, bool, error) {
	var (
		entry       Entry
		changed     int
		sanitizedAt int64
	)
	err := l.db.QueryRow(`
		SELECT output_digest, changed, sanitized_at, run_id
		FROM documents
		WHERE path = ? AND input_digest = ? AND options_fingerprint = ?
	`, path, inputDigest, fingerprint).Scan(&entry.OutputDigest, &changed, &sanitizedAt, &entry.RunID)

	if err == sql.ErrNoRows {
		l.mu.Lock()
		l.misses++
		l.mu.Unlock()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query ledger: %w", err)
	}

	entry.Path = path
	entry.InputDigest = inputDigest
	entry.Fingerprint = fingerprint
	entry.Changed = changed != 0
	entry.SanitizedAt = time.Unix(sanitizedAt, 0).UTC()

	l.mu.Lock()
	l.hits++
	l.mu.Unlock()
	return &entry, true, nil
}

// Record upserts a sanitize outcome.
func (l *Ledger) Record(e Entry) error {
	changed := 0
	if e.Changed {
		changed = 1
	}
	sanitizedAt := e.SanitizedAt
	if sanitizedAt.IsZero() {
		sanitizedAt = time.Now()
	}

	_, err := l.db.Exec(`
		INSERT INTO documents (path, input_digest, options_fingerprint, output_digest, changed, sanitized_at, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, input_digest, options_fingerprint) DO UPDATE SET
			output_digest = excluded.output_digest,
			changed = excluded.changed,
			sanitized_at = excluded.sanitized_at,
			run_id = excluded.run_id
	`, e.Path, e.InputDigest, e.Fingerprint, e.OutputDigest, changed, sanitizedAt.Unix(), e.RunID)

	if err != nil {
		return fmt.Errorf("failed to record entry: %w", err)
	}

	return nil
}

// Stats returns ledger statistics, including in-process hit counters.
func (l *Ledger) Stats() (Stats, error) {
	var entries int64
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&entries); err != nil {
		return Stats{}, fmt.Errorf("failed to count entries: %w", err)
	}

	var size int64
	if info, err := os.Stat(l.path); err == nil {
		size = info.Size()
	}

	l.mu.Lock()
	hits, misses := l.hits, l.misses
	l.mu.Unlock()

	return Stats{
		Entries:   entries,
		Hits:      hits,
		Misses:    misses,
		Path:      l.path,
		SizeBytes: size,
		Driver:    sqlite.DriverType(),
	}, nil
}

// Clear removes all recorded entries and returns how many were removed.
func (l *Ledger) Clear() (int64, error) {
	result, err := l.db.Exec(`DELETE FROM documents`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear ledger: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return removed, nil
}

// Path returns the filesystem location of the ledger database.
func (l *Ledger) Path() string {
	return l.path
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
