package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Open prepares the session database at path and applies the schema.
// Pragmas ride on the DSN so every pooled connection gets them, not
// just the first one handed out. Sessions are append-heavy and read
// concurrently by the event feed, hence WAL.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	dsn := "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := migrate(db, schemaSQL); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// migrate executes the schema statement by statement. The schema
// contains no string literals, so splitting on ";" is safe.
func migrate(db *sql.DB, schema string) error {
	for _, raw := range strings.Split(schema, ";") {
		stmt := strings.TrimSpace(raw)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w (statement=%q)", err, stmt)
		}
	}
	return nil
}
