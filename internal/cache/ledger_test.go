package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/texforge/nbprep/internal/sqlite"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()

	path := filepath.Join(t.TempDir(), "nbprep", "ledger.db")
	ledger, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })

	return ledger
}

func TestOpenCreatesSchema(t *testing.T) {
	ledger := testLedger(t)

	var version int
	if err := ledger.db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		t.Fatalf("failed to read user_version: %v", err)
	}
	if version != schemaVersion {
		t.Errorf("expected schema version %d, got %d", schemaVersion, version)
	}
}

func TestLookupMiss(t *testing.T) {
	ledger := testLedger(t)

	entry, ok, err := ledger.Lookup("missing.ipynb", "abc", "def")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected lookup miss")
	}
	if entry != nil {
		t.Errorf("expected nil entry on miss, got %+v", entry)
	}

	stats, err := ledger.Stats()
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
}

func TestRecordAndLookup(t *testing.T) {
	ledger := testLedger(t)

	want := Entry{
		Path:         "notebook.ipynb",
		InputDigest:  "in-digest",
		Fingerprint:  "fp",
		OutputDigest: "out-digest",
		Changed:      true,
		SanitizedAt:  time.Now(),
		RunID:        "run-1",
	}
	if err := ledger.Record(want); err != nil {
		t.Fatalf("failed to record: %v", err)
	}

	got, ok, err := ledger.Lookup(want.Path, want.InputDigest, want.Fingerprint)
	if err != nil {
		t.Fatalf("failed to lookup: %v", err)
	}
	if !ok {
		t.Fatal("expected lookup hit")
	}

	if got.OutputDigest != want.OutputDigest {
		t.Errorf("output digest mismatch: got %s, want %s", got.OutputDigest, want.OutputDigest)
	}
	if got.Changed != want.Changed {
		t.Errorf("changed mismatch: got %v, want %v", got.Changed, want.Changed)
	}
	if got.RunID != want.RunID {
		t.Errorf("run ID mismatch: got %s, want %s", got.RunID, want.RunID)
	}
	if got.SanitizedAt.Unix() != want.SanitizedAt.Unix() {
		t.Errorf("sanitized_at mismatch: got %v, want %v", got.SanitizedAt, want.SanitizedAt)
	}

	stats, err := ledger.Stats()
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
}

func TestRecordUpsert(t *testing.T) {
	ledger := testLedger(t)

	entry := Entry{
		Path:         "notebook.ipynb",
		InputDigest:  "in",
		Fingerprint:  "fp",
		OutputDigest: "first",
	}
	if err := ledger.Record(entry); err != nil {
		t.Fatalf("failed to record first: %v", err)
	}

	entry.OutputDigest = "second"
	entry.RunID = "run-2"
	if err := ledger.Record(entry); err != nil {
		t.Fatalf("failed to record second: %v", err)
	}

	got, ok, err := ledger.Lookup(entry.Path, entry.InputDigest, entry.Fingerprint)
	if err != nil {
		t.Fatalf("failed to lookup: %v", err)
	}
	if !ok {
		t.Fatal("expected lookup hit")
	}
	if got.OutputDigest != "second" {
		t.Errorf("expected upserted output digest 'second', got %s", got.OutputDigest)
	}
	if got.RunID != "run-2" {
		t.Errorf("expected upserted run ID 'run-2', got %s", got.RunID)
	}

	stats, err := ledger.Stats()
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry after upsert, got %d", stats.Entries)
	}
}

func TestClear(t *testing.T) {
	ledger := testLedger(t)

	for _, fp := range []string{"fp-1", "fp-2"} {
		err := ledger.Record(Entry{
			Path:         "notebook.ipynb",
			InputDigest:  "in",
			Fingerprint:  fp,
			OutputDigest: "out",
		})
		if err != nil {
			t.Fatalf("failed to record: %v", err)
		}
	}

	removed, err := ledger.Clear()
	if err != nil {
		t.Fatalf("failed to clear: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed entries, got %d", removed)
	}

	stats, err := ledger.Stats()
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if stats.Entries != 0 {
		t.Errorf("expected empty ledger after clear, got %d entries", stats.Entries)
	}
}

func TestStats(t *testing.T) {
	ledger := testLedger(t)

	err := ledger.Record(Entry{
		Path:         "a.ipynb",
		InputDigest:  "in",
		Fingerprint:  "fp",
		OutputDigest: "out",
	})
	if err != nil {
		t.Fatalf("failed to record: %v", err)
	}

	stats, err := ledger.Stats()
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry, got %d", stats.Entries)
	}
	if stats.Path != ledger.Path() {
		t.Errorf("path mismatch: got %s, want %s", stats.Path, ledger.Path())
	}
	if stats.Driver != sqlite.DriverType() {
		t.Errorf("driver mismatch: got %s, want %s", stats.Driver, sqlite.DriverType())
	}
	if stats.SizeBytes == 0 {
		t.Error("expected non-zero database size")
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	ledger, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	err = ledger.Record(Entry{
		Path:         "persist.ipynb",
		InputDigest:  "in",
		Fingerprint:  "fp",
		OutputDigest: "out",
	})
	if err != nil {
		t.Fatalf("failed to record: %v", err)
	}
	if err := ledger.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("failed to reopen ledger: %v", err)
	}
	defer reopened.Close()

	_, ok, err := reopened.Lookup("persist.ipynb", "in", "fp")
	if err != nil {
		t.Fatalf("failed to lookup: %v", err)
	}
	if !ok {
		t.Error("expected entry to survive reopen")
	}
}

func TestSchemaVersionTooNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	db, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("failed to open raw database: %v", err)
	}
	if _, err := db.Exec(`PRAGMA user_version = 99`); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	db.Close()

	if _, err := Open(path); err == nil {
		t.Error("expected error for newer schema version")
	}
}
