// Package manifest reads reduction manifests.
//
// A manifest is the saved form of a reduction: the direct beams to load
// into the normalization list, then the data runs (single or merged) with
// their per-run settings. Loading a manifest into a session reproduces
// the reduction.
//
//	name: sample-a
//	direct_beams:
//	  - path: REF_M_24940.yaml
//	data:
//	  - path: REF_M_24945.yaml
//	    cut_first_n_points: 2
//	  - paths: [REF_M_24946.yaml, REF_M_24947.yaml]
//	    normalization: [24940]
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/reflred/internal/config"
	"github.com/roach88/reflred/internal/ir"
)

// manifestValidate is the validator instance for manifests.
var manifestValidate *validator.Validate

func init() {
	v, err := newValidator()
	if err != nil {
		panic(err)
	}
	manifestValidate = v
}

func newValidator() (*validator.Validate, error) {
	v := validator.New()
	if err := v.RegisterValidation("runfile", validateRunFile); err != nil {
		return nil, fmt.Errorf("register runfile validation: %w", err)
	}
	return v, nil
}

// validateRunFile accepts paths with a .yaml or .yml extension.
func validateRunFile(fl validator.FieldLevel) bool {
	ext := strings.ToLower(filepath.Ext(fl.Field().String()))
	return ext == ".yaml" || ext == ".yml"
}

// Manifest describes a complete reduction.
type Manifest struct {
	// Name identifies the reduction in logs and the journal.
	Name string `yaml:"name" validate:"required"`

	Description string `yaml:"description,omitempty"`

	// DirectBeams are loaded first, into the normalization list.
	DirectBeams []Entry `yaml:"direct_beams,omitempty" validate:"dive"`

	// Data are loaded after the direct beams, into the reduction list.
	Data []Entry `yaml:"data" validate:"required,min=1,dive"`
}

// Entry is one run to load: a single path or a merged set of paths.
type Entry struct {
	Path  string   `yaml:"path,omitempty" validate:"required_without=Paths,excluded_with=Paths,omitempty,runfile"`
	Paths []string `yaml:"paths,omitempty,flow" validate:"omitempty,min=2,dive,required,runfile"`

	// Normalization overrides direct-beam matching for this run.
	Normalization ir.RunNumbers `yaml:"normalization,omitempty,flow" validate:"omitempty,dive,gt=0"`

	CutFirstN *int `yaml:"cut_first_n_points,omitempty" validate:"omitempty,gte=0"`
	CutLastN  *int `yaml:"cut_last_n_points,omitempty" validate:"omitempty,gte=0"`
}

// IsMerge reports whether the entry names several files.
func (e Entry) IsMerge() bool {
	return len(e.Paths) > 0
}

// Sources returns the entry's file paths.
func (e Entry) Sources() []string {
	if e.IsMerge() {
		return e.Paths
	}
	return []string{e.Path}
}

// Source returns the entry's identity as a single path string; merged
// entries use the '+'-joined sorted form.
func (e Entry) Source() string {
	return ir.NewFilePath(e.Sources()...).String()
}

// Apply overlays the entry's settings onto cfg.
func (e Entry) Apply(cfg config.Configuration) config.Configuration {
	if len(e.Normalization) > 0 {
		cfg = cfg.WithNormalization(e.Normalization)
	}
	if e.CutFirstN != nil {
		cfg.CutFirstN = *e.CutFirstN
	}
	if e.CutLastN != nil {
		cfg.CutLastN = *e.CutLastN
	}
	return cfg
}

// Load reads and validates a manifest. Relative run paths are resolved
// against the manifest's directory. Files are not required to exist:
// a missing run is reported when the session loads it.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := manifestValidate.Struct(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	m.resolve(filepath.Dir(path))
	return &m, nil
}

func (m *Manifest) resolve(base string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for _, entries := range [][]Entry{m.DirectBeams, m.Data} {
		for i := range entries {
			entries[i].Path = resolve(entries[i].Path)
			for j := range entries[i].Paths {
				entries[i].Paths[j] = resolve(entries[i].Paths[j])
			}
		}
	}
}
