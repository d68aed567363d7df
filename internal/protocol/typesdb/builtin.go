package typesdb

import (
	_ "embed"
	"strings"
)

//go:embed types.db
var builtinTypes string

// Builtin returns a DB loaded with the embedded collectd type definitions.
func Builtin() *DB {
	db := New()
	// reading from a string cannot fail
	_ = db.LoadBuiltin()
	return db
}

// LoadBuiltin merges the embedded definitions into db.
func (db *DB) LoadBuiltin() error {
	return db.load("builtin", strings.NewReader(builtinTypes))
}
