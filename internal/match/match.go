// Package match selects the direct-beam run used to normalize a scattering run.
//
// Matching is a pure function of the scattering channel and the candidate
// list. It runs in two tiers:
//
//  1. Geometry: wavelength centers AND all three slit widths differ by less
//     than the tolerance.
//  2. Wavelength only: used when no candidate passes tier 1, because slit
//     logs are sometimes missing or noisy.
//
// Within the winning tier the candidate nearest in run number wins; ties go
// to the first candidate in list order. Consumers must check Result.Tier
// before assuming a slit-verified match.
package match

import (
	"math"

	"github.com/roach88/reflred/internal/ir"
)

// DefaultTolerance is the default geometry tolerance.
const DefaultTolerance = 0.05

// Tier identifies which predicate accepted a match.
type Tier int

const (
	// TierNone means no candidate matched.
	TierNone Tier = iota
	// TierGeometry means wavelength and slits matched.
	TierGeometry
	// TierWavelength means only the wavelength matched.
	TierWavelength
)

// String returns the tier name used in logs and metrics labels.
func (t Tier) String() string {
	switch t {
	case TierGeometry:
		return "geometry"
	case TierWavelength:
		return "wavelength"
	default:
		return "none"
	}
}

// Candidate is one run offered to the matcher: its run number and the
// channel whose geometry is compared.
type Candidate struct {
	Run     ir.RunNumbers
	Channel *ir.CrossSectionChannel
}

// Result is the selected direct beam.
type Result struct {
	Candidate
	Tier     Tier
	Distance int
}

// Compatible reports whether a direct-beam channel is compatible with a
// scattering channel. With skipSlits only the wavelength is compared.
func Compatible(scattering, directBeam *ir.CrossSectionChannel, tolerance float64, skipSlits bool) bool {
	if math.Abs(scattering.LambdaCenter-directBeam.LambdaCenter) >= tolerance {
		return false
	}
	if skipSlits {
		return true
	}
	return math.Abs(scattering.Slit1Width-directBeam.Slit1Width) < tolerance &&
		math.Abs(scattering.Slit2Width-directBeam.Slit2Width) < tolerance &&
		math.Abs(scattering.Slit3Width-directBeam.Slit3Width) < tolerance
}

// Best returns the best direct beam for the scattering candidate.
// ok is false when no candidate matches either tier. Candidates without a
// channel are skipped.
func Best(scattering Candidate, candidates []Candidate, tolerance float64) (Result, bool) {
	if scattering.Channel == nil {
		return Result{}, false
	}
	if res, ok := nearest(scattering, candidates, tolerance, false); ok {
		res.Tier = TierGeometry
		return res, true
	}
	if res, ok := nearest(scattering, candidates, tolerance, true); ok {
		res.Tier = TierWavelength
		return res, true
	}
	return Result{}, false
}

// nearest scans candidates in order and keeps the first one with the
// strictly smallest run-number distance.
func nearest(scattering Candidate, candidates []Candidate, tolerance float64, skipSlits bool) (Result, bool) {
	var best Result
	found := false
	number := scattering.Run.First()
	for _, c := range candidates {
		if c.Channel == nil {
			continue
		}
		if !Compatible(scattering.Channel, c.Channel, tolerance, skipSlits) {
			continue
		}
		d := abs(c.Run.First() - number)
		if !found || d < best.Distance {
			best = Result{Candidate: c, Distance: d}
			found = true
		}
	}
	return best, found
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
