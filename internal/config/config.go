// Package config holds the reduction configuration value object.
//
// A Configuration is resolved in three layers:
//
//  1. Default() values
//  2. an optional file (.cue, .yaml or .yml)
//  3. REFLRED_* environment variables
//
// The result is validated against the embedded CUE schema (schema.cue).
// There is no global instance: sessions and transforms receive the value
// explicitly on every call.
package config

import (
	"fmt"

	"github.com/roach88/reflred/internal/ir"
)

// Defaults.
const (
	DefaultTolerance     = 0.05
	DefaultQCutoff       = 0.01
	DefaultQMin          = 0.001
	DefaultQStep         = -0.01
	DefaultMaxCache      = 50
	DefaultTrimThreshold = 0.05
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "REFLRED_"

// Configuration controls loading, matching, reduction and merging.
type Configuration struct {
	// Tolerance is the direct-beam geometry tolerance.
	Tolerance float64 `json:"tolerance" yaml:"tolerance" env:"TOLERANCE"`

	// MatchDirectBeam enables automatic direct-beam assignment on load
	// when Normalization is empty.
	MatchDirectBeam bool `json:"match_direct_beam" yaml:"match_direct_beam" env:"MATCH_DIRECT_BEAM"`

	// Normalization names the direct beam to use. Empty means auto/none.
	Normalization ir.RunNumbers `json:"normalization" yaml:"normalization"`

	CutFirstN int `json:"cut_first_n_points" yaml:"cut_first_n_points" env:"CUT_FIRST_N_POINTS"`
	CutLastN  int `json:"cut_last_n_points" yaml:"cut_last_n_points" env:"CUT_LAST_N_POINTS"`

	NormalizeToUnity bool    `json:"normalize_to_unity" yaml:"normalize_to_unity" env:"NORMALIZE_TO_UNITY"`
	QCutoff          float64 `json:"q_cutoff" yaml:"q_cutoff" env:"Q_CUTOFF"`

	// QMin and QStep define the merge grid. A negative step is a relative
	// (geometric) bin width.
	QMin  float64 `json:"q_min" yaml:"q_min" env:"Q_MIN"`
	QStep float64 `json:"q_step" yaml:"q_step" env:"Q_STEP"`

	MaxCache int `json:"max_cache" yaml:"max_cache" env:"MAX_CACHE"`

	// MinCounts drops loaded cross-sections with fewer total counts.
	MinCounts float64 `json:"min_counts" yaml:"min_counts" env:"MIN_COUNTS"`

	// TrimThreshold is the fraction of the direct-beam maximum kept by
	// automatic trimming.
	TrimThreshold float64 `json:"trim_threshold" yaml:"trim_threshold" env:"TRIM_THRESHOLD"`

	GISANS GISANSOptions `json:"gisans" yaml:"gisans" envPrefix:"GISANS_"`
}

// GISANSOptions controls GISANS rebinning.
type GISANSOptions struct {
	WLMin  float64 `json:"wl_min" yaml:"wl_min" env:"WL_MIN"`
	WLMax  float64 `json:"wl_max" yaml:"wl_max" env:"WL_MAX"`
	QyNPts int     `json:"qy_npts" yaml:"qy_npts" env:"QY_NPTS"`
	QzNPts int     `json:"qz_npts" yaml:"qz_npts" env:"QZ_NPTS"`
}

// Default returns the built-in configuration.
func Default() Configuration {
	return Configuration{
		Tolerance:        DefaultTolerance,
		MatchDirectBeam:  true,
		NormalizeToUnity: true,
		QCutoff:          DefaultQCutoff,
		QMin:             DefaultQMin,
		QStep:            DefaultQStep,
		MaxCache:         DefaultMaxCache,
		TrimThreshold:    DefaultTrimThreshold,
		GISANS: GISANSOptions{
			WLMin:  0,
			WLMax:  100,
			QyNPts: 50,
			QzNPts: 50,
		},
	}
}

// Load resolves a configuration from defaults, the optional file at path
// and the process environment, then validates it.
func Load(path string) (Configuration, error) {
	cfg := Default()
	if path != "" {
		var err error
		cfg, err = FromFile(path, cfg)
		if err != nil {
			return Configuration{}, err
		}
	}
	if err := ApplyEnv(&cfg, nil); err != nil {
		return Configuration{}, err
	}
	if err := Validate(cfg); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}

// WithNormalization returns a copy of cfg with the given direct beam.
func (c Configuration) WithNormalization(n ir.RunNumbers) Configuration {
	c.Normalization = append(ir.RunNumbers(nil), n...)
	return c
}

// String summarizes the settings that affect a reduction.
func (c Configuration) String() string {
	return fmt.Sprintf("tolerance=%g normalization=%s cuts=%d/%d q_min=%g q_step=%g",
		c.Tolerance, c.Normalization, c.CutFirstN, c.CutLastN, c.QMin, c.QStep)
}
