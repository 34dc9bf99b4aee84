// Package stitch combines per-run reflectivity curves into one composite curve.
//
// The package has two halves:
//
// StitchEngine (trim.go, scale.go):
//   - TrimOverlaps removes Q-overlap between consecutive runs of a
//     Q-ordered reduction list, always cutting the lower-Q member of a pair.
//   - A Stitcher determines per-run multiplicative scale factors from the
//     overlapping regions, optionally normalizing the low-Q plateau to unity.
//
// MergeEngine (merge.go, asymmetry.go):
//   - Merge resamples the trimmed, scaled curves of each state onto a common
//     linear or geometric Q grid.
//   - DetermineAsymmetryStates and Asymmetry derive the "SA" channel.
//
// All functions operate on the order they are given. Callers own ordering:
// the session keeps its reduction list ascending by minimum Q.
package stitch
