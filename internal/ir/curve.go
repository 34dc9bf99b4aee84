package ir

import (
	"fmt"
	"math"
)

// Curve is a reflectivity curve R(Q) with uncertainties DR.
// All three slices have equal length.
type Curve struct {
	Q  []float64 `json:"q"`
	R  []float64 `json:"r"`
	DR []float64 `json:"dr"`
}

// Len returns the number of points.
func (c Curve) Len() int {
	return len(c.Q)
}

// IsEmpty reports whether the curve has no points.
func (c Curve) IsEmpty() bool {
	return len(c.Q) == 0
}

// Validate checks the equal-length and non-decreasing Q invariants.
func (c Curve) Validate() error {
	if len(c.R) != len(c.Q) || len(c.DR) != len(c.Q) {
		return fmt.Errorf("curve arrays differ in length: q=%d r=%d dr=%d", len(c.Q), len(c.R), len(c.DR))
	}
	for i := 1; i < len(c.Q); i++ {
		if c.Q[i] < c.Q[i-1] {
			return fmt.Errorf("q decreases at index %d (%g < %g)", i, c.Q[i], c.Q[i-1])
		}
	}
	return nil
}

// Cut drops first points from the start and last points from the end.
// Cuts that overlap return an empty curve.
func (c Curve) Cut(first, last int) Curve {
	first = max(first, 0)
	last = max(last, 0)
	end := len(c.Q) - last
	if first >= end {
		return Curve{}
	}
	return Curve{
		Q:  c.Q[first:end:end],
		R:  c.R[first:end:end],
		DR: c.DR[first:end:end],
	}
}

// Scale multiplies R by factor and propagates the factor's own error.
func (c Curve) Scale(factor, factorErr float64) Curve {
	out := Curve{
		Q:  append([]float64(nil), c.Q...),
		R:  make([]float64, len(c.R)),
		DR: make([]float64, len(c.DR)),
	}
	for i := range c.R {
		out.R[i] = c.R[i] * factor
		out.DR[i] = math.Sqrt(math.Pow(c.DR[i]*factor, 2) + math.Pow(c.R[i]*factorErr, 2))
	}
	return out
}

// Range returns the minimum and maximum Q. ok is false for an empty curve.
func (c Curve) Range() (qMin, qMax float64, ok bool) {
	if len(c.Q) == 0 {
		return 0, 0, false
	}
	qMin, qMax = c.Q[0], c.Q[0]
	for _, q := range c.Q[1:] {
		qMin = math.Min(qMin, q)
		qMax = math.Max(qMax, q)
	}
	return qMin, qMax, true
}

// OffSpecData is the derived off-specular map of one channel.
// Its contents are produced and interpreted by the off-specular transform.
type OffSpecData struct {
	Qx        []float64 `json:"qx"`
	Qz        []float64 `json:"qz"`
	Intensity []float64 `json:"intensity"`
}

// GISANSData is the derived GISANS point cloud of one channel.
type GISANSData struct {
	Qy        []float64 `json:"qy"`
	Qz        []float64 `json:"qz"`
	Lambda    []float64 `json:"lambda"`
	Intensity []float64 `json:"intensity"`
}

// GISANSGrid is a rebinned GISANS map for one polarization state.
// Intensity is indexed [qz][qy].
type GISANSGrid struct {
	Qy        []float64   `json:"qy"`
	Qz        []float64   `json:"qz"`
	Intensity [][]float64 `json:"intensity"`
}
