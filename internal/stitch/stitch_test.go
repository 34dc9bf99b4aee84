package stitch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reflred/internal/ir"
)

const state = "Off_Off"

func curve(q, r []float64) ir.Curve {
	dr := make([]float64, len(q))
	for i := range dr {
		dr[i] = 0.01
	}
	return ir.Curve{Q: q, R: r, DR: dr}
}

func run(number int, c ir.Curve) *ir.Run {
	return ir.NewRun(ir.NewRunNumbers(number), ir.NewFilePath(""), &ir.CrossSectionChannel{Name: state, Curve: c})
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func TestTrimOverlaps_CutsLowerRunAtNextStart(t *testing.T) {
	a := run(1, curve([]float64{0.01, 0.02, 0.03, 0.04, 0.05}, ones(5)))
	b := run(2, curve([]float64{0.03, 0.04, 0.05, 0.06}, ones(4)))

	require.NoError(t, TrimOverlaps([]*ir.Run{a, b}, state))

	assert.Equal(t, 3, a.CutLastN, "points with q >= 0.03")
	assert.Equal(t, 0, b.CutLastN, "last run is never trimmed")
}

func TestTrimOverlaps_RespectsLeadingCutOfNextRun(t *testing.T) {
	a := run(1, curve([]float64{0.01, 0.02, 0.03, 0.04, 0.05}, ones(5)))
	b := run(2, curve([]float64{0.03, 0.04, 0.05, 0.06}, ones(4)))
	b.CutFirstN = 1

	require.NoError(t, TrimOverlaps([]*ir.Run{a, b}, state))
	assert.Equal(t, 2, a.CutLastN)
}

func TestTrimOverlaps_NoOverlapLeavesRunUntouched(t *testing.T) {
	a := run(1, curve([]float64{0.01, 0.02}, ones(2)))
	a.CutLastN = 0
	b := run(2, curve([]float64{0.05, 0.06}, ones(2)))

	require.NoError(t, TrimOverlaps([]*ir.Run{a, b}, state))
	assert.Equal(t, 0, a.CutLastN)
}

func TestTrimOverlaps_TooFewRuns(t *testing.T) {
	err := TrimOverlaps([]*ir.Run{run(1, curve([]float64{0.01}, ones(1)))}, state)

	require.Error(t, err)
	assert.True(t, ir.IsStitchError(err))
	assert.Equal(t, ir.ReasonTooFewRuns, ir.StitchReason(err))
}

func TestSmartStitcher_NormalizesPlateauAndMatchesOverlap(t *testing.T) {
	a := run(1, curve(
		[]float64{0.005, 0.008, 0.02, 0.03, 0.04},
		[]float64{2, 2, 1, 0.5, 0.25}))
	b := run(2, curve(
		[]float64{0.03, 0.04, 0.05},
		[]float64{0.5, 0.25, 0.125}))

	err := SmartStitcher{}.ScaleFactors([]*ir.Run{a, b}, state, true, 0.01)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, a.ScalingFactor, 1e-12)
	// a scaled: 0.25, 0.125 at the overlap; b raw: 0.5, 0.25.
	assert.InDelta(t, 0.5, b.ScalingFactor, 1e-12)
	assert.Greater(t, b.ScalingError, 0.0)
}

func TestSmartStitcher_KeepsFirstFactorWithoutNormalization(t *testing.T) {
	a := run(1, curve([]float64{0.01, 0.02}, []float64{4, 2}))
	b := run(2, curve([]float64{0.02, 0.03}, []float64{1, 0.5}))

	require.NoError(t, SmartStitcher{}.ScaleFactors([]*ir.Run{a, b}, state, false, 0.01))

	assert.Equal(t, 1.0, a.ScalingFactor)
	assert.InDelta(t, 2.0, b.ScalingFactor, 1e-12)
}

func TestSmartStitcher_PlateauAndOverlapErrorsAreDistinct(t *testing.T) {
	a := run(1, curve([]float64{0.02, 0.03}, ones(2)))
	b := run(2, curve([]float64{0.03, 0.04}, ones(2)))

	err := SmartStitcher{}.ScaleFactors([]*ir.Run{a, b}, state, true, 0.01)
	require.Error(t, err)
	assert.Equal(t, ir.ReasonPlateau, ir.StitchReason(err))

	c := run(3, curve([]float64{0.1, 0.2}, ones(2)))
	err = SmartStitcher{}.ScaleFactors([]*ir.Run{a, c}, state, false, 0.01)
	require.Error(t, err)
	assert.Equal(t, ir.ReasonNoOverlap, ir.StitchReason(err))
	assert.Contains(t, err.Error(), "3")
}

func TestSmartStitcher_IgnoresTrailingCut(t *testing.T) {
	a := run(1, curve([]float64{0.01, 0.02, 0.03}, []float64{1, 1, 1}))
	b := run(2, curve([]float64{0.02, 0.03, 0.04}, []float64{0.5, 0.5, 0.5}))
	a.CutLastN = 2

	require.NoError(t, SmartStitcher{}.ScaleFactors([]*ir.Run{a, b}, state, false, 0.01))
	assert.InDelta(t, 2.0, b.ScalingFactor, 1e-12)
}

func TestScaled_AppliesCutsAndFactor(t *testing.T) {
	a := run(1, curve([]float64{1, 2, 3, 4}, []float64{1, 2, 3, 4}))
	a.CutFirstN = 1
	a.CutLastN = 1
	a.ScalingFactor = 10

	c, ok := Scaled(a, state, true)
	require.True(t, ok)
	assert.Equal(t, []float64{2, 3}, c.Q)
	assert.Equal(t, []float64{20, 30}, c.R)

	c, ok = Scaled(a, state, false)
	require.True(t, ok)
	assert.Equal(t, []float64{2, 3, 4}, c.Q)

	_, ok = Scaled(a, "On_On", true)
	assert.False(t, ok)
}
