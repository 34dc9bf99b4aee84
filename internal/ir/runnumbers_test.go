package ir

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunNumbers_SortsAndDeduplicates(t *testing.T) {
	assert.Equal(t, RunNumbers{123}, NewRunNumbers(123))
	assert.Equal(t, RunNumbers{123, 125, 126}, NewRunNumbers(123, 126, 125, 126))
	assert.Nil(t, NewRunNumbers())
}

func TestParseRunNumbers(t *testing.T) {
	tests := []struct {
		expr string
		want RunNumbers
	}{
		{"123", RunNumbers{123}},
		{"7:10+3:5+1", RunNumbers{1, 3, 4, 5, 7, 8, 9, 10}},
		{"7:10 + 3:5 + 1", RunNumbers{1, 3, 4, 5, 7, 8, 9, 10}},
		{"5+5", RunNumbers{5}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseRunNumbers(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRunNumbers_Invalid(t *testing.T) {
	for _, expr := range []string{"", "abc", "1++2", "10:7", "3:x", "-4"} {
		_, err := ParseRunNumbers(expr)
		assert.Error(t, err, "expr %q", expr)
	}
}

func TestParseRunNumbers_BoundsExpansion(t *testing.T) {
	got, err := ParseRunNumbers(fmt.Sprintf("1:%d", MaxExpandedRuns))
	require.NoError(t, err)
	assert.Len(t, got, MaxExpandedRuns)

	_, err = ParseRunNumbers("1:2000000000")
	assert.ErrorContains(t, err, "expands to more than")

	_, err = ParseRunNumbers(fmt.Sprintf("1:%d + 20000", MaxExpandedRuns))
	require.NoError(t, err)
	_, err = ParseRunNumbers(fmt.Sprintf("5 + 100:%d", 100+MaxExpandedRuns-1))
	assert.ErrorContains(t, err, "expands to more than")
}

func TestRunNumbers_Forms(t *testing.T) {
	runs := NewRunNumbers(7, 8, 9, 10, 3, 4, 5, 1)

	assert.Equal(t, "1+3+4+5+7+8+9+10", runs.Long())
	assert.Equal(t, "1+3:5+7:10", runs.Short())
	assert.Equal(t, RunKey("1+3+4+5+7+8+9+10"), runs.Key())
	assert.Equal(t, 1, runs.First())
}

func TestRunNumbers_Statement(t *testing.T) {
	assert.Equal(t, "7", NewRunNumbers(7).Statement())
	assert.Equal(t, "7 and 8", NewRunNumbers(7, 8).Statement())
	assert.Equal(t, "7, 8, and 9", NewRunNumbers(7, 8, 9).Statement())
	assert.Equal(t, "", RunNumbers(nil).Statement())
}

func TestRunNumbers_Union(t *testing.T) {
	a := NewRunNumbers(1, 3)
	b := NewRunNumbers(2, 3)
	assert.Equal(t, RunNumbers{1, 2, 3}, a.Union(b))
	assert.Equal(t, RunNumbers{1, 3}, a, "union must not mutate receiver")
}

func TestRunNumbers_Equal(t *testing.T) {
	assert.True(t, NewRunNumbers(1, 2).Equal(NewRunNumbers(2, 1)))
	assert.False(t, NewRunNumbers(1).Equal(NewRunNumbers(1, 2)))
	assert.True(t, RunNumbers(nil).IsZero())
}
