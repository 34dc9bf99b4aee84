package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reflred/internal/config"
	"github.com/roach88/reflred/internal/ir"
)

func writeRun(t *testing.T, dir, name string, rf *RunFile) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, WriteRunFile(path, rf))
	return path
}

func sample(run int, lambda float64, counts ...float64) *RunFile {
	q := make([]float64, len(counts))
	for i := range q {
		q[i] = 0.01 * float64(i+1)
	}
	return &RunFile{
		Run: run,
		CrossSections: []CrossSectionFile{
			{Name: "Off_Off", Label: "++", LambdaCenter: lambda, Slits: []float64{0.6, 0.4, 0.4}, Q: q, Counts: counts},
			{Name: "On_On", Label: "--", LambdaCenter: lambda, Slits: []float64{0.6, 0.4, 0.4}, Q: q, Counts: counts},
		},
	}
}

func TestLoad_BuildsRunFromFile(t *testing.T) {
	path := writeRun(t, t.TempDir(), "REF_M_24945.yaml", sample(0, 4.25, 100, 400))

	run, err := New().Load(context.Background(), path, config.Default())
	require.NoError(t, err)

	assert.Equal(t, ir.RunNumbers{24945}, run.Numbers, "number derived from file name")
	assert.Equal(t, []string{"Off_Off", "On_On"}, run.Labels())

	ch, ok := run.Channel("Off_Off")
	require.True(t, ok)
	assert.Equal(t, "++", ch.Label)
	assert.Equal(t, [3]float64{0.6, 0.4, 0.4}, ch.Slits())
	assert.Equal(t, []float64{100, 400}, ch.Raw.R)
	assert.Equal(t, []float64{10, 20}, ch.Raw.DR, "errors default to sqrt(counts)")
	assert.True(t, ch.IsEmpty(), "reflectivity is computed by the session")
}

func TestLoad_ExplicitRunNumberWins(t *testing.T) {
	path := writeRun(t, t.TempDir(), "REF_M_1.yaml", sample(42, 4.25, 1))

	run, err := New().Load(context.Background(), path, config.Default())
	require.NoError(t, err)
	assert.Equal(t, ir.RunKey("42"), run.Key())
}

func TestLoad_MissingFileIsLoadError(t *testing.T) {
	_, err := New().Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"), config.Default())

	require.Error(t, err)
	assert.True(t, ir.IsLoadError(err))
}

func TestLoad_RejectsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"unknown.yaml":   "run: 1\ncross_section: []\n",
		"empty.yaml":     "run: 1\ncross_sections: []\n",
		"ragged.yaml":    "cross_sections:\n  - name: A\n    q: [0.1, 0.2]\n    counts: [1]\n",
		"slits.yaml":     "cross_sections:\n  - name: A\n    slits: [1, 2]\n    q: [0.1]\n    counts: [1]\n",
		"duplicate.yaml": "cross_sections:\n  - name: A\n    q: [0.1]\n    counts: [1]\n  - name: A\n    q: [0.1]\n    counts: [1]\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			_, err := New().Load(context.Background(), path, config.Default())
			assert.True(t, ir.IsLoadError(err), "got %v", err)
		})
	}
}

func TestLoad_FiltersStatesBelowMinCounts(t *testing.T) {
	rf := sample(7, 4.25, 100, 100)
	rf.CrossSections[1].Counts = []float64{1, 2}
	path := writeRun(t, t.TempDir(), "run.yaml", rf)

	cfg := config.Default()
	cfg.MinCounts = 50
	run, err := New().Load(context.Background(), path, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"Off_Off"}, run.Labels())

	cfg.MinCounts = 1000
	_, err = New().Load(context.Background(), path, cfg)
	assert.True(t, ir.IsLoadError(err))
}

func TestLoad_CanceledContext(t *testing.T) {
	path := writeRun(t, t.TempDir(), "run.yaml", sample(1, 4.25, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Load(ctx, path, config.Default())
	assert.True(t, ir.IsLoadError(err))
}

func TestLoadMerge_SumsCounts(t *testing.T) {
	dir := t.TempDir()
	a := writeRun(t, dir, "REF_M_11.yaml", sample(11, 4.25, 9, 16))
	b := writeRun(t, dir, "REF_M_10.yaml", sample(10, 4.25, 16, 9))

	run, err := New().LoadMerge(context.Background(), []string{a, b}, config.Default())
	require.NoError(t, err)

	assert.Equal(t, ir.RunKey("10+11"), run.Key())
	assert.True(t, run.Path.IsComposite())
	assert.Equal(t, b+"+"+a, run.Path.String(), "paths are sorted")

	ch, ok := run.Channel("On_On")
	require.True(t, ok)
	assert.Equal(t, []float64{25, 25}, ch.Raw.R)
	assert.InDeltaSlice(t, []float64{5, 5}, ch.Raw.DR, 1e-12)
}

func TestLoadMerge_NeedsTwoSources(t *testing.T) {
	_, err := New().LoadMerge(context.Background(), []string{"one.yaml"}, config.Default())

	require.Error(t, err)
	assert.True(t, ir.IsUnsupported(err))
}

func TestLoadMerge_FailsWhenAnyComponentFails(t *testing.T) {
	dir := t.TempDir()
	a := writeRun(t, dir, "a.yaml", sample(1, 4.25, 1))

	_, err := New().LoadMerge(context.Background(), []string{a, filepath.Join(dir, "missing.yaml")}, config.Default())
	assert.True(t, ir.IsLoadError(err))
}

func TestLoadMerge_RejectsMismatchedStates(t *testing.T) {
	dir := t.TempDir()
	other := sample(2, 4.25, 1, 1)
	other.CrossSections = other.CrossSections[:1]
	a := writeRun(t, dir, "a.yaml", sample(1, 4.25, 1, 1))
	b := writeRun(t, dir, "b.yaml", other)

	_, err := New().LoadMerge(context.Background(), []string{a, b}, config.Default())
	assert.True(t, ir.IsLoadError(err))
}

func TestCheckFilesForMerging(t *testing.T) {
	a := sample(1, 4.25, 1)
	b := sample(2, 4.26, 1)
	assert.Empty(t, CheckFilesForMerging([]*RunFile{a, b}, 0.05))

	c := sample(3, 5.0, 1)
	c.CrossSections[0].Slits = []float64{0.6, 0.9, 0.4}
	problems := CheckFilesForMerging([]*RunFile{a, c}, 0.05)
	require.Len(t, problems, 3)
	assert.Contains(t, problems[0], "differ above tolerance")
	assert.Contains(t, problems[1], "slit 2")
}
