package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/driftworks/agentd/internal/state"
)

// OpenTestDB opens a throwaway session database under the test's temp
// directory. The connection is closed via t.Cleanup.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "agentd-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}
