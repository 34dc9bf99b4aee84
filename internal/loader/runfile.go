package loader

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RunFile is the on-disk layout of one measurement.
//
//	run: 24945
//	direct_beam: false
//	cross_sections:
//	  - name: Off_Off
//	    label: "++"
//	    lambda_center: 4.25
//	    slits: [0.6, 0.4, 0.4]
//	    q: [0.010, 0.012]
//	    counts: [1000, 900]
//	    errors: [31.6, 30.0]
type RunFile struct {
	// Run is the run number. Zero means "derive from the file name".
	Run int `yaml:"run,omitempty"`

	DirectBeam bool `yaml:"direct_beam"`

	CrossSections []CrossSectionFile `yaml:"cross_sections"`
}

// CrossSectionFile is one polarization state of a RunFile.
type CrossSectionFile struct {
	Name         string    `yaml:"name"`
	Label        string    `yaml:"label,omitempty"`
	LambdaCenter float64   `yaml:"lambda_center"`
	Slits        []float64 `yaml:"slits,flow"`
	Q            []float64 `yaml:"q,flow"`
	Counts       []float64 `yaml:"counts,flow"`

	// Errors defaults to sqrt(counts) when omitted.
	Errors []float64 `yaml:"errors,omitempty,flow"`
}

// ReadRunFile reads and parses a run file. Unknown fields are rejected.
func ReadRunFile(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	var rf RunFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&rf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := rf.validate(); err != nil {
		return nil, fmt.Errorf("invalid run file: %w", err)
	}
	return &rf, nil
}

// WriteRunFile writes rf to path.
func WriteRunFile(path string, rf *RunFile) error {
	data, err := yaml.Marshal(rf)
	if err != nil {
		return fmt.Errorf("failed to encode run file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run file: %w", err)
	}
	return nil
}

func (rf *RunFile) validate() error {
	if len(rf.CrossSections) == 0 {
		return fmt.Errorf("no cross_sections")
	}
	seen := make(map[string]bool, len(rf.CrossSections))
	for i, cs := range rf.CrossSections {
		if cs.Name == "" {
			return fmt.Errorf("cross_sections[%d]: name is required", i)
		}
		if seen[cs.Name] {
			return fmt.Errorf("cross_sections[%d]: duplicate name %q", i, cs.Name)
		}
		seen[cs.Name] = true
		if len(cs.Counts) != len(cs.Q) {
			return fmt.Errorf("%s: counts has %d points, q has %d", cs.Name, len(cs.Counts), len(cs.Q))
		}
		if len(cs.Errors) != 0 && len(cs.Errors) != len(cs.Q) {
			return fmt.Errorf("%s: errors has %d points, q has %d", cs.Name, len(cs.Errors), len(cs.Q))
		}
		if len(cs.Slits) != 0 && len(cs.Slits) != 3 {
			return fmt.Errorf("%s: slits needs 3 widths, got %d", cs.Name, len(cs.Slits))
		}
	}
	return nil
}

// crossSection returns the named state or nil.
func (rf *RunFile) crossSection(name string) *CrossSectionFile {
	for i := range rf.CrossSections {
		if rf.CrossSections[i].Name == name {
			return &rf.CrossSections[i]
		}
	}
	return nil
}
