package sqlite

import (
	"path/filepath"
	"testing"
)

func TestDriverInfo(t *testing.T) {
	info := GetInfo()

	if info.DriverName != DriverName() {
		t.Errorf("DriverName mismatch: info=%s, func=%s", info.DriverName, DriverName())
	}
	if info.DriverType != DriverType() {
		t.Errorf("DriverType mismatch: info=%s, func=%s", info.DriverType, DriverType())
	}
	if info.IsCGO != IsCGO() {
		t.Errorf("IsCGO mismatch: info=%v, func=%v", info.IsCGO, IsCGO())
	}
	if info.Package == "" {
		t.Error("Package should not be empty")
	}

	switch info.DriverType {
	case "purego":
		if info.IsCGO || info.DriverName != "sqlite" {
			t.Errorf("purego driver misreported: %+v", info)
		}
	case "cgo":
		if !info.IsCGO || info.DriverName != "sqlite3" {
			t.Errorf("cgo driver misreported: %+v", info)
		}
	default:
		t.Errorf("unknown driver type: %s", info.DriverType)
	}
}

func TestOpenAndReadOnly(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "table.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE ranges (lo INTEGER, hi INTEGER, replacement TEXT)`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO ranges VALUES (?, ?, ?)`, 0x2026, 0x2026, "..."); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	db.Close()

	ro, err := OpenReadOnly(dbPath)
	if err != nil {
		t.Fatalf("failed to open read-only: %v", err)
	}
	defer ro.Close()

	var repl string
	if err := ro.QueryRow(`SELECT replacement FROM ranges WHERE lo = ?`, 0x2026).Scan(&repl); err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if repl != "..." {
		t.Errorf("replacement = %q, want %q", repl, "...")
	}

	if _, err := ro.Exec(`INSERT INTO ranges VALUES (1, 1, 'x')`); err == nil {
		t.Error("write succeeded on read-only database")
	}
}
