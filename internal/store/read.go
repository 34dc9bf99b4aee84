package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/reflred/internal/ir"
)

// ReadSessions returns every session ordered by started_seq.
// Returns an empty slice (not nil) when the journal is empty.
func (s *Store) ReadSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, started_seq, created_at
		FROM sessions
		ORDER BY started_seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Name, &sess.StartedSeq, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadEvents returns the events of one session, or of all sessions when
// sessionID is empty, in deterministic order: ORDER BY seq ASC, id ASC.
func (s *Store) ReadEvents(ctx context.Context, sessionID string) ([]Event, error) {
	query := `
		SELECT id, session_id, seq, kind, run_key, detail
		FROM events
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`
	var args []any
	if sessionID != "" {
		query = `
		SELECT id, session_id, seq, kind, run_key, detail
		FROM events
		WHERE session_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`
		args = append(args, sessionID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadCurves returns the composite curves of a session keyed by label.
func (s *Store) ReadCurves(ctx context.Context, sessionID string) (map[string]ir.Curve, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, q, r, dr
		FROM curves
		WHERE session_id = ?
		ORDER BY label COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query curves: %w", err)
	}
	defer rows.Close()

	curves := make(map[string]ir.Curve)
	for rows.Next() {
		var label, q, r, dr string
		if err := rows.Scan(&label, &q, &r, &dr); err != nil {
			return nil, fmt.Errorf("scan curve: %w", err)
		}
		c, err := unmarshalCurve(q, r, dr)
		if err != nil {
			return nil, fmt.Errorf("curve %s: %w", label, err)
		}
		curves[label] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate curves: %w", err)
	}
	return curves, nil
}

// MaxSeq returns the highest seq in the journal, or 0 when it is empty.
// Sessions resume their logical clock from here.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM (
			SELECT seq FROM events
			UNION ALL SELECT started_seq FROM sessions
			UNION ALL SELECT seq FROM curves
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq.Int64, nil
}

func scanEvent(rows *sql.Rows) (Event, error) {
	var ev Event
	var run, detail string
	if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Seq, &ev.Kind, &run, &detail); err != nil {
		return Event{}, fmt.Errorf("scan event: %w", err)
	}
	ev.Run = ir.RunKey(run)

	d, err := unmarshalDetail(detail)
	if err != nil {
		return Event{}, err
	}
	ev.Detail = d
	return ev, nil
}
