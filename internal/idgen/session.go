package idgen

import (
	"database/sql"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

var sessionIDPattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// New returns a time-ordered session identifier. UUIDv7 keeps session
// rows roughly insertion-ordered in the store; on the rare generation
// failure a random v4 is good enough.
func New() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// ValidateSessionID checks that id is a valid user-provided session ID.
// Rules: lowercase letters, digits, and dashes; must start with a letter and
// end with a letter or digit; max 64 characters.
func ValidateSessionID(id string) error {
	if len(id) > 64 {
		return fmt.Errorf("session id too long (max 64 characters)")
	}
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("session id %q is invalid: must match %s", id, sessionIDPattern.String())
	}
	return nil
}

// SessionID generates a human-readable session ID like "codeact-1",
// "codeact-2". It queries the database for the highest existing sequence
// number with the given prefix and returns prefix-(max+1).
func SessionID(db *sql.DB, prefix string) string {
	var maxN sql.NullInt64
	// SUBSTR offset is 1-based: skip prefix + dash
	offset := len(prefix) + 2
	err := db.QueryRow(
		`SELECT MAX(CAST(SUBSTR(id, ?) AS INTEGER)) FROM sessions WHERE id LIKE ?`,
		offset, prefix+"-%",
	).Scan(&maxN)
	if err != nil || !maxN.Valid {
		return fmt.Sprintf("%s-%d", prefix, 1)
	}
	return fmt.Sprintf("%s-%d", prefix, maxN.Int64+1)
}
