package stitch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reflred/internal/ir"
)

func TestMerge_ConcatenatesTrimmedScaledData(t *testing.T) {
	a := run(1, curve([]float64{1, 2, 3}, []float64{1, 1, 1}))
	a.CutLastN = 1
	b := run(2, curve([]float64{3, 4}, []float64{1, 1}))
	b.ScalingFactor = 2

	merged := Merge([]*ir.Run{a, b}, []string{state, "On_On"}, Grid{})

	require.Contains(t, merged, state)
	assert.NotContains(t, merged, "On_On", "states without data are omitted")
	assert.Equal(t, []float64{1, 2, 3, 4}, merged[state].Q)
	assert.Equal(t, []float64{1, 1, 2, 2}, merged[state].R)
}

func TestMerge_LinearBinsUseInverseVarianceWeights(t *testing.T) {
	c := ir.Curve{
		Q:  []float64{0.01, 0.02, 0.15},
		R:  []float64{1, 3, 5},
		DR: []float64{0.1, 0.1, 0.2},
	}
	merged := Merge([]*ir.Run{run(1, c)}, []string{state}, Grid{QMin: 0, Step: 0.1})

	out := merged[state]
	require.Equal(t, 2, out.Len())
	assert.InDelta(t, 0.05, out.Q[0], 1e-12)
	assert.InDelta(t, 2.0, out.R[0], 1e-12)
	assert.InDelta(t, 1/math.Sqrt(200), out.DR[0], 1e-12)
	assert.InDelta(t, 0.15, out.Q[1], 1e-12)
	assert.InDelta(t, 5.0, out.R[1], 1e-12)
}

func TestMerge_PlainMeanWhenUncertaintyMissing(t *testing.T) {
	c := ir.Curve{
		Q:  []float64{0.01, 0.02},
		R:  []float64{1, 3},
		DR: []float64{0, 0.1},
	}
	merged := Merge([]*ir.Run{run(1, c)}, []string{state}, Grid{QMin: 0, Step: 0.1})

	assert.InDelta(t, 2.0, merged[state].R[0], 1e-12)
}

func TestMerge_GeometricGridIsSharedAcrossStates(t *testing.T) {
	plus := ir.NewRun(ir.NewRunNumbers(1), ir.NewFilePath(""),
		&ir.CrossSectionChannel{Name: "Off_Off", Curve: curve([]float64{0.0105, 0.02, 0.031}, ones(3))},
		&ir.CrossSectionChannel{Name: "On_On", Curve: curve([]float64{0.01051, 0.0201, 0.0312}, ones(3))},
	)

	merged := Merge([]*ir.Run{plus}, []string{"Off_Off", "On_On"}, DefaultGrid())

	require.Equal(t, merged["Off_Off"].Q, merged["On_On"].Q)
	q := merged["Off_Off"].Q
	for i := 1; i < len(q); i++ {
		assert.Greater(t, q[i], q[i-1])
	}
	assert.Empty(t, Merge([]*ir.Run{run(1, curve([]float64{0.0005}, ones(1)))}, []string{state}, DefaultGrid())[state].Q,
		"points below q min are dropped")
}

func TestAsymmetry_FullPolarization(t *testing.T) {
	q := []float64{0.01, 0.02, 0.03}
	plus := ir.Curve{Q: q, R: []float64{1, 1, 1}, DR: []float64{0.1, 0.1, 0.1}}
	minus := ir.Curve{Q: q, R: []float64{0, 0, 0}, DR: []float64{0.1, 0.1, 0.1}}

	sa, ok := Asymmetry(map[string]ir.Curve{"Off_Off": plus, "On_On": minus}, "Off_Off", "On_On")

	require.True(t, ok)
	assert.Equal(t, q, sa.Q)
	assert.Equal(t, []float64{1, 1, 1}, sa.R)
	assert.InDeltaSlice(t, []float64{0.2, 0.2, 0.2}, sa.DR, 1e-12)
}

func TestAsymmetry_DropsZeroSumAndUnsharedPoints(t *testing.T) {
	plus := ir.Curve{Q: []float64{0.01, 0.02, 0.03}, R: []float64{0, 3, 2}, DR: []float64{0, 0, 0}}
	minus := ir.Curve{Q: []float64{0.01, 0.03, 0.04}, R: []float64{0, 2, 1}, DR: []float64{0, 0, 0}}

	sa := asymmetry(plus, minus)

	assert.Equal(t, []float64{0.03}, sa.Q)
	assert.Equal(t, []float64{0}, sa.R)
}

func TestAsymmetry_MissingState(t *testing.T) {
	_, ok := Asymmetry(map[string]ir.Curve{"Off_Off": {}}, "Off_Off", "On_On")
	assert.False(t, ok)
}

func TestDetermineAsymmetryStates(t *testing.T) {
	labels := map[string]string{"A": "+-", "B": "--", "C": "++"}
	labelOf := func(s string) string { return labels[s] }

	tests := []struct {
		name     string
		states   []string
		labelOf  func(string) string
		plus     string
		minus    string
		fallback bool
	}{
		{"canonical pair", []string{"Off_Off", "On_On"}, nil, "Off_Off", "On_On", false},
		{"off state second", []string{"On_On", "off-off"}, nil, "off-off", "On_On", false},
		{"no off state", []string{"On_Off", "Off_On"}, nil, "On_Off", "Off_On", true},
		{"four states", []string{"On_On", "On_Off", "Off_On", "Off_Off"}, nil, "Off_Off", "On_On", false},
		{"polarization labels", []string{"A", "B", "C"}, labelOf, "C", "B", false},
		{"positional", []string{"A", "B", "C"}, nil, "A", "C", true},
		{"single", []string{"Off_Off"}, nil, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plus, minus, fallback := DetermineAsymmetryStates(tt.states, tt.labelOf)
			assert.Equal(t, tt.plus, plus)
			assert.Equal(t, tt.minus, minus)
			assert.Equal(t, tt.fallback, fallback)
		})
	}
}
