package db

import (
	"path/filepath"
	"testing"
)

func TestMigrations(t *testing.T) {
	db := setupTestDB(t)

	version, dirty, err := db.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("MigrateVersion() = %d, %v; want 2, false", version, dirty)
	}

	if err := db.MigrateDown(); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	if version, _, _ = db.MigrateVersion(); version != 1 {
		t.Errorf("version after down = %d, want 1", version)
	}
	if _, err := db.GetAllSites(); err == nil {
		t.Error("expected query on active column to fail at version 1")
	}

	if err := db.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if version, _, _ = db.MigrateVersion(); version != 2 {
		t.Errorf("version after up = %d, want 2", version)
	}
}

func TestNewDB_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	first, err := NewDB(path)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	if err := first.CreateSite(newTestSite("kept")); err != nil {
		t.Fatalf("CreateSite failed: %v", err)
	}
	first.Close()

	second, err := NewDB(path)
	if err != nil {
		t.Fatalf("NewDB (reopen) failed: %v", err)
	}
	defer second.Close()
	if _, err := second.GetSiteByName("kept"); err != nil {
		t.Errorf("GetSiteByName after reopen: %v", err)
	}
	if second.Path() != path {
		t.Errorf("Path() = %q, want %q", second.Path(), path)
	}
}

func TestPragmasApplied(t *testing.T) {
	db := setupTestDB(t)

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}

	var busyTimeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatalf("Failed to query busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Errorf("Expected busy_timeout=5000, got %d", busyTimeout)
	}
}
