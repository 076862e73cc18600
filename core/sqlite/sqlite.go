// Package sqlite opens SQLite databases through whichever driver the build
// selected.
//
// Build modes:
//   - Default: pure Go modernc.org/sqlite, no CGO required.
//   - -tags cgo_sqlite (CGO_ENABLED=1): mattn/go-sqlite3.
//
// Always open databases with Open so the matching driver name is used.
package sqlite

import (
	"database/sql"
	"fmt"
)

// DriverName returns the database/sql driver name in use.
func DriverName() string {
	return driverName
}

// DriverType returns "cgo" or "purego".
func DriverType() string {
	return driverType
}

// IsCGO reports whether the CGO driver is linked in.
func IsCGO() bool {
	return driverType == "cgo"
}

// Open opens the database at dsn.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dsn, err)
	}
	return db, nil
}

// OpenReadOnly opens the database file at path read-only.
func OpenReadOnly(path string) (*sql.DB, error) {
	return Open("file:" + path + "?mode=ro")
}

// Info describes the linked driver.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns the linked driver's description.
func GetInfo() Info {
	return Info{
		DriverName: DriverName(),
		DriverType: DriverType(),
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
