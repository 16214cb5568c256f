package repository

import (
	"database/sql"
	"testing"
)

// SharedTestDB exposes the migrated container database to the external test package.
func SharedTestDB() *sql.DB { return testDB }

// ResetTables empties every table between tests.
func ResetTables(t *testing.T) { resetTables(t) }
