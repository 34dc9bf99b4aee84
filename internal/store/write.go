package store

import (
	"context"
	"fmt"

	"github.com/roach88/reflred/internal/ir"
)

// Session is one journaled reduction session.
type Session struct {
	ID         string
	Name       string
	StartedSeq int64

	// CreatedAt is informational only. Ordering uses StartedSeq.
	CreatedAt string
}

// Event is one journaled session event.
type Event struct {
	ID        string
	SessionID string
	Seq       int64
	Kind      string
	Run       ir.RunKey
	Detail    map[string]string
}

// NewEvent builds an event with its content-addressed ID.
func NewEvent(sessionID string, seq int64, kind string, run ir.RunKey, detail map[string]string) (Event, error) {
	id, err := ir.EventID(sessionID, kind, run, seq, detail)
	if err != nil {
		return Event{}, fmt.Errorf("new event: %w", err)
	}
	return Event{
		ID:        id,
		SessionID: sessionID,
		Seq:       seq,
		Kind:      kind,
		Run:       run,
		Detail:    detail,
	}, nil
}

// WriteSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) WriteSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, started_seq, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, sess.ID, sess.Name, sess.StartedSeq, sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteEvent appends an event. Duplicate IDs are silently ignored.
//
// Note: The session referenced by SessionID must exist (foreign key constraint).
func (s *Store) WriteEvent(ctx context.Context, ev Event) error {
	detailJSON, err := marshalDetail(ev.Detail)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, session_id, seq, kind, run_key, detail)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, ev.ID, ev.SessionID, ev.Seq, ev.Kind, string(ev.Run), detailJSON)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// WriteCurve stores a composite curve. A later write for the same session
// and label replaces the earlier one.
func (s *Store) WriteCurve(ctx context.Context, sessionID, label string, seq int64, c ir.Curve) error {
	q, r, dr, err := marshalCurve(c)
	if err != nil {
		return fmt.Errorf("write curve %s: %w", label, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO curves (session_id, label, seq, q, r, dr)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, label) DO UPDATE SET
			seq = excluded.seq, q = excluded.q, r = excluded.r, dr = excluded.dr
	`, sessionID, label, seq, q, r, dr)
	if err != nil {
		return fmt.Errorf("write curve %s: %w", label, err)
	}
	return nil
}
