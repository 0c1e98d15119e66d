package testsupport

import (
	"database/sql"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteMemoryDSN returns a shared-cache in-memory DSN unique to the test,
// so parallel tests never see each other's tables.
func SQLiteMemoryDSN(t testing.TB) string {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return "file:" + name + "?mode=memory&cache=shared"
}

// NewSQLiteMemoryDB opens the in-memory database for the test and closes it
// on cleanup.
func NewSQLiteMemoryDB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", SQLiteMemoryDSN(t))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
