//go:build cgo_sqlite

// Built with CGO_ENABLED=1 -tags cgo_sqlite.
package sqlite

import (
	_ "github.com/mattn/go-sqlite3" // CGO SQLite driver
)

const (
	driverName = "sqlite3"
	driverType = "cgo"
)
