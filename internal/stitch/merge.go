package stitch

import (
	"math"
	"sort"

	"github.com/roach88/reflred/internal/ir"
)

// Default rebinning parameters.
const (
	DefaultQMin  = 0.001
	DefaultQStep = -0.01
)

// Grid describes the Q binning used by Merge.
//
// A positive Step gives linear bins of that width starting at QMin. A
// negative Step gives geometric bins whose edges grow by a factor of
// 1+|Step|. A zero Step disables rebinning: points are only concatenated
// and sorted.
type Grid struct {
	QMin float64
	Step float64
}

// DefaultGrid returns the grid used when the configuration leaves the
// merge parameters unset.
func DefaultGrid() Grid {
	return Grid{QMin: DefaultQMin, Step: DefaultQStep}
}

// bin returns the bin index of q and whether q lies on the grid.
func (g Grid) bin(q float64) (int, bool) {
	if q < g.QMin {
		return 0, false
	}
	if g.Step > 0 {
		return int(math.Floor((q - g.QMin) / g.Step)), true
	}
	if g.QMin <= 0 {
		return 0, false
	}
	return int(math.Floor(math.Log(q/g.QMin) / math.Log1p(-g.Step))), true
}

// center returns the Q value reported for bin k.
func (g Grid) center(k int) float64 {
	if g.Step > 0 {
		return g.QMin + (float64(k)+0.5)*g.Step
	}
	return g.QMin * math.Pow(1-g.Step, float64(k)+0.5)
}

type point struct {
	q, r, dr float64
}

// Merge builds one composite curve per state from the runs' trimmed and
// scaled data. States absent from every run are omitted from the result.
func Merge(runs []*ir.Run, states []string, grid Grid) map[string]ir.Curve {
	merged := make(map[string]ir.Curve, len(states))
	for _, state := range states {
		var points []point
		for _, run := range runs {
			c, ok := Scaled(run, state, true)
			if !ok {
				continue
			}
			for i := range c.Q {
				points = append(points, point{c.Q[i], c.R[i], c.DR[i]})
			}
		}
		if len(points) == 0 {
			continue
		}
		sort.SliceStable(points, func(i, j int) bool { return points[i].q < points[j].q })
		merged[state] = rebin(points, grid)
	}
	return merged
}

func rebin(points []point, grid Grid) ir.Curve {
	var out ir.Curve
	if grid.Step == 0 {
		for _, p := range points {
			out.Q = append(out.Q, p.q)
			out.R = append(out.R, p.r)
			out.DR = append(out.DR, p.dr)
		}
		return out
	}

	// points are sorted, so bins arrive in ascending order.
	var group []point
	current := 0
	flush := func() {
		if len(group) == 0 {
			return
		}
		r, dr := combine(group)
		out.Q = append(out.Q, grid.center(current))
		out.R = append(out.R, r)
		out.DR = append(out.DR, dr)
		group = group[:0]
	}
	for _, p := range points {
		k, ok := grid.bin(p.q)
		if !ok {
			continue
		}
		if len(group) > 0 && k != current {
			flush()
		}
		current = k
		group = append(group, p)
	}
	flush()
	return out
}

// combine averages the points of one bin with inverse-variance weights.
// Bins holding a point without uncertainty fall back to the plain mean.
func combine(group []point) (float64, float64) {
	weighted := true
	for _, p := range group {
		if p.dr <= 0 {
			weighted = false
			break
		}
	}
	if weighted {
		var sumW, sumWR float64
		for _, p := range group {
			w := 1 / (p.dr * p.dr)
			sumW += w
			sumWR += w * p.r
		}
		return sumWR / sumW, 1 / math.Sqrt(sumW)
	}
	var sumR, sumDR2 float64
	for _, p := range group {
		sumR += p.r
		sumDR2 += p.dr * p.dr
	}
	n := float64(len(group))
	return sumR / n, math.Sqrt(sumDR2) / n
}
