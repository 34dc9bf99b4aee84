package stitch

import (
	"fmt"
	"sort"

	"github.com/roach88/reflred/internal/ir"
)

// TrimOverlaps sets CutLastN on every run but the last so that a run's data
// ends where the next run's data (after its own leading cut) begins.
//
// For each consecutive pair (cur, next) the threshold is next.Q[next.CutFirstN].
// If cur has a point with Q >= threshold, cur.CutLastN becomes the number of
// points from that index to the end. Otherwise cur is left untouched.
// Pairs where either run lacks the state, or next's cut consumes all of its
// points, are skipped.
//
// Returns a TOO_FEW_RUNS stitch error for fewer than two runs.
func TrimOverlaps(runs []*ir.Run, state string) error {
	if len(runs) < 2 {
		return ir.NewStitchError(ir.ReasonTooFewRuns,
			fmt.Sprintf("need at least two runs to trim overlaps, have %d", len(runs)))
	}
	for i := 0; i < len(runs)-1; i++ {
		cur, ok := runs[i].Channel(state)
		if !ok || cur.IsEmpty() {
			continue
		}
		next, ok := runs[i+1].Channel(state)
		if !ok {
			continue
		}
		start := runs[i+1].CutFirstN
		if start < 0 || start >= next.Len() {
			continue
		}
		threshold := next.Q[start]

		idx := sort.SearchFloat64s(cur.Q, threshold)
		if idx < cur.Len() {
			runs[i].CutLastN = cur.Len() - idx
		}
	}
	return nil
}
