// Package transform holds the numeric transforms a session applies to a
// loaded channel: specular reflectivity, off-specular maps and GISANS.
//
// The implementations here are reference transforms. They normalize the
// loader's counts by the direct beam and keep the bookkeeping (sorting,
// error propagation, failure reporting) a real instrument backend must also
// honor; they make no claim of physical accuracy.
package transform

import (
	"fmt"
	"math"
	"sort"

	"github.com/roach88/reflred/internal/config"
	"github.com/roach88/reflred/internal/ir"
)

// Reflectivity computes the specular curve of a channel.
// db is nil when the run has no normalization.
type Reflectivity interface {
	Reduce(ch, db *ir.CrossSectionChannel, cfg config.Configuration) (ir.Curve, error)
}

// OffSpecular computes the off-specular map of a channel.
type OffSpecular interface {
	Reduce(ch, db *ir.CrossSectionChannel, cfg config.Configuration) (*ir.OffSpecData, error)
}

// GISANS computes and rebins grazing-incidence small-angle data.
type GISANS interface {
	Reduce(ch, db *ir.CrossSectionChannel, cfg config.Configuration) (*ir.GISANSData, error)
	Rebin(runs []*ir.Run, state string, opts config.GISANSOptions) (ir.GISANSGrid, error)
}

// Set bundles the transforms a session uses.
type Set struct {
	Reflectivity Reflectivity
	OffSpecular  OffSpecular
	GISANS       GISANS
}

// Default returns the reference transforms.
func Default() Set {
	return Set{
		Reflectivity: Specular{},
		OffSpecular:  OffSpecularMap{},
		GISANS:       GISANSMap{},
	}
}

// normalized returns the channel's raw counts sorted by Q and divided by
// the direct beam's integrated counts.
func normalized(ch, db *ir.CrossSectionChannel) (ir.Curve, error) {
	if ch.LambdaCenter <= 0 {
		return ir.Curve{}, ir.NewReductionError(ch.Name,
			fmt.Sprintf("missing wavelength metadata (lambda_center=%g)", ch.LambdaCenter))
	}
	raw := ch.Raw
	if len(raw.R) != len(raw.Q) || len(raw.DR) != len(raw.Q) {
		return ir.Curve{}, ir.NewReductionError(ch.Name,
			fmt.Sprintf("raw arrays differ in length: q=%d counts=%d errors=%d", len(raw.Q), len(raw.R), len(raw.DR)))
	}

	scale, scaleErr := 1.0, 0.0
	if db != nil {
		var total, varTotal float64
		for i := range db.Raw.R {
			total += db.Raw.R[i]
			if i < len(db.Raw.DR) {
				varTotal += db.Raw.DR[i] * db.Raw.DR[i]
			}
		}
		if total <= 0 {
			return ir.Curve{}, ir.NewReductionError(ch.Name,
				fmt.Sprintf("direct beam %s has no counts", db.Name))
		}
		scale = 1 / total
		scaleErr = math.Sqrt(varTotal) / (total * total)
	}

	order := make([]int, raw.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return raw.Q[order[a]] < raw.Q[order[b]] })

	out := ir.Curve{
		Q:  make([]float64, len(order)),
		R:  make([]float64, len(order)),
		DR: make([]float64, len(order)),
	}
	for i, j := range order {
		c, e := raw.R[j], raw.DR[j]
		out.Q[i] = raw.Q[j]
		out.R[i] = c * scale
		out.DR[i] = math.Hypot(e*scale, c*scaleErr)
	}
	return out, nil
}
