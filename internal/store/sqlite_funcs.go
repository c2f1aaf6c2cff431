package store

import (
	"database/sql/driver"
	"strings"

	"modernc.org/sqlite"
)

// sqliteLower is registered on every sqlite connection. The built-in LOWER
// only folds ASCII, so case-insensitive matching of non-ASCII text needs it.
const sqliteLower = "unicode_lower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(sqliteLower, 1, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		switch v := args[0].(type) {
		case string:
			return strings.ToLower(v), nil
		case []byte:
			return strings.ToLower(string(v)), nil
		default:
			return v, nil
		}
	})
}

// Lower wraps expr in the dialect's Unicode-aware lowercase function, so it
// folds case the same way strings.ToLower does.
func (d *DB) Lower(expr string) string {
	if d.Driver == DriverSQLite {
		return sqliteLower + "(" + expr + ")"
	}
	return "LOWER(" + expr + ")"
}
