package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reflred/internal/ir"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()

	require.NoError(t, Validate(cfg))
	assert.Equal(t, 0.05, cfg.Tolerance)
	assert.Equal(t, 50, cfg.MaxCache)
	assert.Equal(t, 0.001, cfg.QMin)
	assert.Equal(t, -0.01, cfg.QStep)
	assert.True(t, cfg.MatchDirectBeam)
	assert.True(t, cfg.NormalizeToUnity)
}

func TestValidate_RejectsOutOfRangeValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Configuration)
	}{
		{"zero tolerance", func(c *Configuration) { c.Tolerance = 0 }},
		{"zero step", func(c *Configuration) { c.QStep = 0 }},
		{"zero cache", func(c *Configuration) { c.MaxCache = 0 }},
		{"negative cut", func(c *Configuration) { c.CutFirstN = -1 }},
		{"non-positive q min", func(c *Configuration) { c.QMin = 0 }},
		{"inverted wavelength band", func(c *Configuration) { c.GISANS.WLMax = c.GISANS.WLMin }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestValidate_AcceptsNormalization(t *testing.T) {
	cfg := Default().WithNormalization(ir.NewRunNumbers(24940))
	assert.NoError(t, Validate(cfg))
}

func TestFromFile_YAMLOverlaysDefaults(t *testing.T) {
	path := writeFile(t, "reduce.yaml", `
tolerance: 0.1
normalization: [24940]
gisans:
  qy_npts: 20
`)

	cfg, err := FromFile(path, Default())
	require.NoError(t, err)

	assert.Equal(t, 0.1, cfg.Tolerance)
	assert.Equal(t, ir.RunNumbers{24940}, cfg.Normalization)
	assert.Equal(t, 20, cfg.GISANS.QyNPts)
	assert.Equal(t, 100.0, cfg.GISANS.WLMax)
	assert.Equal(t, 50, cfg.MaxCache)
}

func TestFromFile_YAMLRejectsUnknownFields(t *testing.T) {
	path := writeFile(t, "reduce.yml", "tolerence: 0.1\n")

	_, err := FromFile(path, Default())
	assert.Error(t, err)
}

func TestFromFile_CUE(t *testing.T) {
	path := writeFile(t, "reduce.cue", `
q_step: 0.002
cut_first_n_points: 3
match_direct_beam: false
`)

	cfg, err := FromFile(path, Default())
	require.NoError(t, err)

	assert.Equal(t, 0.002, cfg.QStep)
	assert.Equal(t, 3, cfg.CutFirstN)
	assert.False(t, cfg.MatchDirectBeam)
	assert.Equal(t, 0.05, cfg.Tolerance)
}

func TestFromFile_CUERejectsUnknownAndMistypedFields(t *testing.T) {
	_, err := FromFile(writeFile(t, "a.cue", "bogus: 1\n"), Default())
	assert.Error(t, err)

	_, err = FromFile(writeFile(t, "b.cue", `max_cache: "many"`+"\n"), Default())
	assert.Error(t, err)
}

func TestFromFile_Errors(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "missing.yaml"), Default())
	assert.Error(t, err)

	_, err = FromFile(writeFile(t, "reduce.toml", "x = 1\n"), Default())
	assert.ErrorContains(t, err, "unsupported extension")
}

func TestApplyEnv_OverridesWithPrefix(t *testing.T) {
	cfg := Default()

	err := ApplyEnv(&cfg, map[string]string{
		"REFLRED_TOLERANCE":      "0.2",
		"REFLRED_MAX_CACHE":      "10",
		"REFLRED_GISANS_QZ_NPTS": "7",
		"TOLERANCE":              "9",
	})
	require.NoError(t, err)

	assert.Equal(t, 0.2, cfg.Tolerance)
	assert.Equal(t, 10, cfg.MaxCache)
	assert.Equal(t, 7, cfg.GISANS.QzNPts)
	assert.Equal(t, -0.01, cfg.QStep)
}

func TestApplyEnv_InvalidValue(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(&cfg, map[string]string{"REFLRED_MAX_CACHE": "lots"})
	assert.ErrorContains(t, err, "parse env")
}

func TestLoad_ValidatesResult(t *testing.T) {
	path := writeFile(t, "bad.yaml", "q_step: 0\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid configuration")
}
