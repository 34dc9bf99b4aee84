package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/reflred/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession writes a session record and returns it.
func createTestSession(t *testing.T, s *Store, id string, seq int64) Session {
	t.Helper()
	sess := Session{ID: id, Name: "test", StartedSeq: seq, CreatedAt: "2026-01-01T00:00:00Z"}
	if err := s.WriteSession(context.Background(), sess); err != nil {
		t.Fatalf("WriteSession() failed: %v", err)
	}
	return sess
}

// createTestEvent builds an event with a content-addressed ID.
func createTestEvent(t *testing.T, sessionID string, seq int64, kind string, run ir.RunKey) Event {
	t.Helper()
	ev, err := NewEvent(sessionID, seq, kind, run, map[string]string{"source": string(run) + ".yaml"})
	if err != nil {
		t.Fatalf("NewEvent() failed: %v", err)
	}
	return ev
}

// verifyPragma checks that a pragma is set to the expected value.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
