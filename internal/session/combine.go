package session

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strconv"

	"github.com/roach88/reflred/internal/ir"
	"github.com/roach88/reflred/internal/stitch"
)

// stitchState is the state label stitching works on: the active channel
// when the reduction list has it, else the list's first state.
func (s *Session) stitchState() string {
	if slices.Contains(s.reductionStates, s.activeChannel) {
		return s.activeChannel
	}
	if len(s.reductionStates) > 0 {
		return s.reductionStates[0]
	}
	return s.activeChannel
}

// TrimOverlaps sets each listed run's trailing cut so it ends where the
// next run begins. With fewer than two runs it logs and does nothing.
func (s *Session) TrimOverlaps() error {
	state := s.stitchState()
	err := stitch.TrimOverlaps(s.ReductionList(), state)
	if ir.StitchReason(err) == ir.ReasonTooFewRuns {
		slog.Error("You need to have at least two datasets in the reduction list", "runs", len(s.reduction))
		return nil
	}
	if err != nil {
		return err
	}

	detail := map[string]string{"state": state}
	for _, run := range s.ReductionList() {
		detail[string(run.Key())] = strconv.Itoa(run.CutLastN)
	}
	s.record(context.Background(), EventTrimOverlaps, "", detail)
	return nil
}

// StitchDataSets determines the scale factor of every listed run.
// With normalizeToUnity the plateau below qCutoff of the first run is
// scaled to 1.
func (s *Session) StitchDataSets(normalizeToUnity bool, qCutoff float64) error {
	state := s.stitchState()
	if err := s.stitcher.ScaleFactors(s.ReductionList(), state, normalizeToUnity, qCutoff); err != nil {
		slog.Error("Could not stitch data sets", "state", state, "error", err)
		s.record(context.Background(), EventStitchFailed, "", map[string]string{
			"state":  state,
			"reason": ir.StitchReason(err),
			"error":  err.Error(),
		})
		return err
	}

	detail := map[string]string{"state": state}
	for _, run := range s.ReductionList() {
		detail[string(run.Key())] = strconv.FormatFloat(run.ScalingFactor, 'g', -1, 64)
	}
	s.record(context.Background(), EventStitch, "", detail)
	return nil
}

// MergeDataSets merges every state of the reduction list onto the
// configured Q grid, replacing the composite curves. With asymmetry set the
// spin asymmetry is added when it can be computed.
func (s *Session) MergeDataSets(asymmetry bool) map[string]ir.Curve {
	grid := stitch.Grid{QMin: s.cfg.QMin, Step: s.cfg.QStep}
	s.composite = stitch.Merge(s.ReductionList(), s.reductionStates, grid)
	if asymmetry {
		s.Asymmetry()
	}

	s.record(context.Background(), EventMerge, "", map[string]string{
		"runs":   strconv.Itoa(len(s.reduction)),
		"labels": strconv.Itoa(len(s.composite)),
	})
	s.recordCurves(context.Background(), s.composite)
	return s.CompositeCurves()
}

// DetermineAsymmetryStates returns the plus and minus states used for the
// spin asymmetry. A positional guess (first and last state) is logged.
func (s *Session) DetermineAsymmetryStates() (plus, minus string) {
	plus, minus, fallback := stitch.DetermineAsymmetryStates(s.reductionStates, s.channelLabel)
	if fallback {
		slog.Warn("Could not identify polarization states, using first and last",
			"plus", plus, "minus", minus, "states", s.reductionStates)
		s.record(context.Background(), EventAsymmetryFallback, "", map[string]string{
			"plus":  plus,
			"minus": minus,
		})
	}
	return plus, minus
}

// channelLabel returns the polarization label of a state, taken from the
// active run when it has the state, else from the first listed run.
func (s *Session) channelLabel(state string) string {
	runs := s.ReductionList()
	if active := s.Active(); active != nil {
		runs = append([]*ir.Run{active}, runs...)
	}
	for _, run := range runs {
		if ch, ok := run.Channel(state); ok {
			return ch.Label
		}
	}
	return ""
}

// Asymmetry computes the spin asymmetry of the merged curves and stores it
// under stitch.AsymmetryLabel. It reports false when either state has no
// merged curve.
func (s *Session) Asymmetry() bool {
	plus, minus := s.DetermineAsymmetryStates()
	sa, ok := stitch.Asymmetry(s.composite, plus, minus)
	if !ok {
		return false
	}
	s.composite[stitch.AsymmetryLabel] = sa
	return true
}

// CompositeCurves returns a copy of the merged curves keyed by state label,
// plus "SA" when the asymmetry was computed.
func (s *Session) CompositeCurves() map[string]ir.Curve {
	return maps.Clone(s.composite)
}
