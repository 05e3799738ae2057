package store

import (
	"path/filepath"
	"testing"
	"time"
)

// createTestStore opens a journal in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testEpoch = time.Date(2026, 1, 2, 3, 4, 5, 600_000_000, time.UTC)

// createTestEntry builds an exchange with the given identity.
func createTestEntry(session string, seq int64, command, errorCode string) Entry {
	return Entry{
		SessionID: session,
		Seq:       seq,
		Command:   command,
		Request:   command + ";",
		Response:  "ok",
		ErrorCode: errorCode,
		StartedAt: testEpoch.Add(time.Duration(seq) * time.Second),
		Duration:  1500 * time.Microsecond,
	}
}

func indexNames(t *testing.T, s *Store, table string) []string {
	t.Helper()
	rows, err := s.db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("query indexes: %v", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			t.Fatalf("scan index: %v", err)
		}
		names = append(names, n)
	}
	return names
}
