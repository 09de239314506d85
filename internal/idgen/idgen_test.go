package idgen_test

import (
	"database/sql"
	"strings"
	"testing"

	"github.com/driftworks/agentd/internal/idgen"
	"github.com/driftworks/agentd/internal/testutil"
)

func TestNewIsUnique(t *testing.T) {
	a, b := idgen.New(), idgen.New()
	if a == b {
		t.Fatalf("expected distinct ids, got %s twice", a)
	}
	if len(a) != 36 {
		t.Fatalf("unexpected id format %q", a)
	}
}

func TestSessionID_FirstSession(t *testing.T) {
	db := testutil.OpenTestDB(t)
	got := idgen.SessionID(db, "codeact")
	if got != "codeact-1" {
		t.Fatalf("expected codeact-1, got %s", got)
	}
}

func TestSessionID_Increments(t *testing.T) {
	db := testutil.OpenTestDB(t)
	insertSession(t, db, "codeact-1")
	got := idgen.SessionID(db, "codeact")
	if got != "codeact-2" {
		t.Fatalf("expected codeact-2, got %s", got)
	}
}

func TestSessionID_MultiplePrefixes(t *testing.T) {
	db := testutil.OpenTestDB(t)
	insertSession(t, db, "codeact-1")

	got := idgen.SessionID(db, "browsing")
	if got != "browsing-1" {
		t.Fatalf("expected browsing-1, got %s", got)
	}

	got = idgen.SessionID(db, "codeact")
	if got != "codeact-2" {
		t.Fatalf("expected codeact-2, got %s", got)
	}
}

func insertSession(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO sessions (id, agent, task, state, iteration, created_at, updated_at)
		VALUES (?, 'CodeActAgent', 'task', 'INIT', 0, '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`, id)
	if err != nil {
		t.Fatalf("insert session: %v", err)
	}
}

func TestValidateSessionID(t *testing.T) {
	valid := []string{
		"a",
		"fix-the-tests",
		"my-session-123",
		"a1",
		"abc",
		"a-b-c",
	}
	for _, id := range valid {
		if err := idgen.ValidateSessionID(id); err != nil {
			t.Errorf("expected %q to be valid, got error: %v", id, err)
		}
	}

	invalid := []string{
		"",
		"-start-dash",
		"end-dash-",
		"1starts-with-digit",
		"UPPERCASE",
		"has spaces",
		"has_underscore",
		"has.dot",
		strings.Repeat("a", 65),
	}
	for _, id := range invalid {
		if err := idgen.ValidateSessionID(id); err == nil {
			t.Errorf("expected %q to be invalid, got nil error", id)
		}
	}
}
