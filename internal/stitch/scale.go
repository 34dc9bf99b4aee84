package stitch

import (
	"fmt"
	"math"

	"github.com/roach88/reflred/internal/ir"
)

// Stitcher determines per-run scale factors for a Q-ordered run list.
// Implementations store the result in each run's ScalingFactor and
// ScalingError.
//
// Errors must distinguish NO_OVERLAP (adjacent runs share no Q range) from
// PLATEAU (the low-Q plateau cannot be normalized) using ir.NewStitchError.
type Stitcher interface {
	ScaleFactors(runs []*ir.Run, state string, normalizeToUnity bool, qCutoff float64) error
}

// SmartStitcher scales each run onto its lower-Q neighbor.
//
// Scale determination uses each run's data with only the leading cut
// applied: trailing cuts exist to drop overlap for merging, and the overlap
// is exactly what the scale is measured on.
type SmartStitcher struct{}

var _ Stitcher = SmartStitcher{}

// ScaleFactors implements Stitcher.
//
// The first run is normalized so that the mean reflectivity below qCutoff
// is 1 (when normalizeToUnity), otherwise it keeps its current factor. Each
// following run i gets
//
//	scale_i = Σ prev(q_j) / Σ R_i(q_j)
//
// over the points q_j of run i inside the overlap, where prev is the scaled
// curve of run i-1 linearly interpolated at q_j.
func (SmartStitcher) ScaleFactors(runs []*ir.Run, state string, normalizeToUnity bool, qCutoff float64) error {
	if len(runs) == 0 {
		return ir.NewStitchError(ir.ReasonTooFewRuns, "no runs to stitch")
	}

	first, err := stitchData(runs[0], state)
	if err != nil {
		return err
	}
	if normalizeToUnity {
		factor, factorErr, err := plateauFactor(first, qCutoff)
		if err != nil {
			return err
		}
		runs[0].ScalingFactor = factor
		runs[0].ScalingError = factorErr
	} else if runs[0].ScalingFactor == 0 {
		runs[0].ScalingFactor = 1
	}
	prev := first.Scale(runs[0].ScalingFactor, runs[0].ScalingError)

	for i := 1; i < len(runs); i++ {
		cur, err := stitchData(runs[i], state)
		if err != nil {
			return err
		}
		factor, factorErr, err := overlapFactor(prev, cur)
		if err != nil {
			return &ir.Error{
				Code:    ir.ErrCodeStitch,
				Reason:  ir.ReasonNoOverlap,
				Message: fmt.Sprintf("between %s and %s: %s", runs[i-1].Key(), runs[i].Key(), err),
				Run:     string(runs[i].Key()),
			}
		}
		runs[i].ScalingFactor = factor
		runs[i].ScalingError = factorErr
		prev = cur.Scale(factor, factorErr)
	}
	return nil
}

func stitchData(run *ir.Run, state string) (ir.Curve, error) {
	ch, ok := run.Channel(state)
	if !ok {
		return ir.Curve{}, &ir.Error{
			Code:    ir.ErrCodeStitch,
			Reason:  ir.ReasonNoOverlap,
			Message: fmt.Sprintf("run has no %s data", state),
			Run:     string(run.Key()),
		}
	}
	return ch.Curve.Cut(run.CutFirstN, 0), nil
}

// plateauFactor returns 1/mean(R) over points with Q < qCutoff.
func plateauFactor(c ir.Curve, qCutoff float64) (float64, float64, error) {
	var sum, sumErr2 float64
	n := 0
	for i, q := range c.Q {
		if q < qCutoff {
			sum += c.R[i]
			sumErr2 += c.DR[i] * c.DR[i]
			n++
		}
	}
	if n == 0 {
		return 0, 0, ir.NewStitchError(ir.ReasonPlateau,
			fmt.Sprintf("no points below q cutoff %g", qCutoff))
	}
	mean := sum / float64(n)
	if mean <= 0 {
		return 0, 0, ir.NewStitchError(ir.ReasonPlateau,
			fmt.Sprintf("plateau signal is not positive (mean %g)", mean))
	}
	meanErr := math.Sqrt(sumErr2) / float64(n)
	return 1 / mean, meanErr / (mean * mean), nil
}

// overlapFactor returns the factor that scales cur onto prev over their
// common Q range.
func overlapFactor(prev, cur ir.Curve) (float64, float64, error) {
	if prev.IsEmpty() || cur.IsEmpty() {
		return 0, 0, fmt.Errorf("empty curve")
	}
	lo := math.Max(prev.Q[0], cur.Q[0])
	hi := math.Min(prev.Q[prev.Len()-1], cur.Q[cur.Len()-1])
	if lo > hi {
		return 0, 0, fmt.Errorf("no overlap in q: [%g, %g] and [%g, %g]",
			prev.Q[0], prev.Q[prev.Len()-1], cur.Q[0], cur.Q[cur.Len()-1])
	}

	var sumPrev, sumCur, errPrev2, errCur2 float64
	n := 0
	for j, q := range cur.Q {
		if q < lo || q > hi {
			continue
		}
		r, dr := interpolate(prev, q)
		sumPrev += r
		errPrev2 += dr * dr
		sumCur += cur.R[j]
		errCur2 += cur.DR[j] * cur.DR[j]
		n++
	}
	if n == 0 {
		return 0, 0, fmt.Errorf("no points in overlap [%g, %g]", lo, hi)
	}
	if sumPrev <= 0 || sumCur <= 0 {
		return 0, 0, fmt.Errorf("degenerate overlap signal")
	}
	factor := sumPrev / sumCur
	factorErr := factor * math.Sqrt(errPrev2/(sumPrev*sumPrev)+errCur2/(sumCur*sumCur))
	return factor, factorErr, nil
}

// interpolate evaluates c at q by linear interpolation. q must lie within
// the curve's range.
func interpolate(c ir.Curve, q float64) (float64, float64) {
	n := c.Len()
	if q <= c.Q[0] {
		return c.R[0], c.DR[0]
	}
	if q >= c.Q[n-1] {
		return c.R[n-1], c.DR[n-1]
	}
	k := 0
	for k+1 < n && c.Q[k+1] < q {
		k++
	}
	q0, q1 := c.Q[k], c.Q[k+1]
	if q1 == q0 {
		return c.R[k], c.DR[k]
	}
	w := (q - q0) / (q1 - q0)
	return c.R[k] + w*(c.R[k+1]-c.R[k]), c.DR[k] + w*(c.DR[k+1]-c.DR[k])
}

// Scaled returns the run's curve for state with its cuts and scale factor
// applied. With trailing false only the leading cut is applied.
func Scaled(run *ir.Run, state string, trailing bool) (ir.Curve, bool) {
	ch, ok := run.Channel(state)
	if !ok {
		return ir.Curve{}, false
	}
	last := 0
	if trailing {
		last = run.CutLastN
	}
	factor := run.ScalingFactor
	if factor == 0 {
		factor = 1
	}
	return ch.Curve.Cut(run.CutFirstN, last).Scale(factor, run.ScalingError), true
}
