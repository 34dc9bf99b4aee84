package session

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/roach88/reflred/internal/ir"
	"github.com/roach88/reflred/internal/store"
)

// Journal receives the session's event log. *store.Store implements it.
type Journal interface {
	WriteSession(ctx context.Context, sess store.Session) error
	WriteEvent(ctx context.Context, ev store.Event) error
	WriteCurve(ctx context.Context, sessionID, label string, seq int64, c ir.Curve) error
}

// seqSource is implemented by journals that can report their highest seq.
type seqSource interface {
	MaxSeq(ctx context.Context) (int64, error)
}

// Event kinds written to the journal.
const (
	EventLoad              = "load"
	EventLoadFailed        = "load_failed"
	EventMatch             = "match"
	EventMatchNotFound     = "match_not_found"
	EventReduce            = "reduce"
	EventReduceFailed      = "reduce_failed"
	EventAddReduction      = "add_reduction"
	EventRejected          = "congruency_rejected"
	EventAddDirectBeam     = "add_direct_beam"
	EventRemoveDirectBeam  = "remove_direct_beam"
	EventClearDirectBeams  = "clear_direct_beams"
	EventConfigure         = "configure"
	EventTrim              = "trim"
	EventTrimOverlaps      = "trim_overlaps"
	EventStitch            = "stitch"
	EventStitchFailed      = "stitch_failed"
	EventMerge             = "merge"
	EventAsymmetryFallback = "asymmetry_fallback"
	EventManifest          = "manifest"
)

// begin writes the session record before the first journaled event.
func (s *Session) begin(ctx context.Context) bool {
	if s.journal == nil {
		return false
	}
	if s.started {
		return true
	}
	sess := store.Session{
		ID:         s.id,
		Name:       s.name,
		StartedSeq: s.clock.Next(),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.journal.WriteSession(ctx, sess); err != nil {
		slog.Warn("Journal write failed", "session", s.id, "error", err)
		return false
	}
	s.started = true
	return true
}

// record appends one event. Failures are logged and swallowed.
func (s *Session) record(ctx context.Context, kind string, run ir.RunKey, detail map[string]string) {
	if !s.begin(ctx) {
		s.clock.Next()
		return
	}
	ev, err := store.NewEvent(s.id, s.clock.Next(), kind, run, detail)
	if err == nil {
		err = s.journal.WriteEvent(ctx, ev)
	}
	if err != nil {
		slog.Warn("Journal write failed", "session", s.id, "kind", kind, "run", run, "error", err)
	}
}

// recordCurves stores the composite curves in label order.
func (s *Session) recordCurves(ctx context.Context, curves map[string]ir.Curve) {
	if !s.begin(ctx) {
		return
	}
	for _, label := range slices.Sorted(maps.Keys(curves)) {
		if err := s.journal.WriteCurve(ctx, s.id, label, s.clock.Next(), curves[label]); err != nil {
			slog.Warn("Journal write failed", "session", s.id, "curve", label, "error", err)
		}
	}
}
