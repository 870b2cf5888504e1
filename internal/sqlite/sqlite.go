// Package sqlite selects the SQLite driver backing the sanitize ledger.
//
// The default build uses the pure Go modernc.org/sqlite driver so nbprep
// cross-compiles without a C toolchain. Building with CGO_ENABLED=1 and
// -tags cgo_sqlite swaps in mattn/go-sqlite3 instead. The registered
// driver name differs between the two, so callers must go through Open
// rather than sql.Open.
package sqlite

import (
	"database/sql"
)

// DriverName returns the name the active driver registered with database/sql.
func DriverName() string {
	return driverName
}

// DriverType identifies the active implementation: "purego" for
// modernc.org/sqlite, "cgo" for mattn/go-sqlite3.
func DriverType() string {
	return driverType
}

// IsCGO reports whether the CGO driver is compiled in.
func IsCGO() bool {
	return driverType == "cgo"
}

// Open opens a SQLite database with the driver selected at build time.
func Open(dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}
