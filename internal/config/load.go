package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource []byte

// schema compiles the embedded schema in ctx and returns #Configuration.
func schema(ctx *cue.Context) (cue.Value, error) {
	v := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compile schema: %w", err)
	}
	return v.LookupPath(cue.ParsePath("#Configuration")), nil
}

// FromFile overlays the file at path onto base. The format is chosen by
// extension: .cue, .yaml or .yml. Unknown fields are rejected.
func FromFile(path string, base Configuration) (Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Configuration{}, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return fromCUE(path, data, base)
	case ".yaml", ".yml":
		return fromYAML(path, data, base)
	default:
		return Configuration{}, fmt.Errorf("config %s: unsupported extension %q", path, filepath.Ext(path))
	}
}

func fromCUE(path string, data []byte, base Configuration) (Configuration, error) {
	ctx := cuecontext.New()
	def, err := schema(ctx)
	if err != nil {
		return Configuration{}, err
	}

	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return Configuration{}, fmt.Errorf("config %s: %w", path, err)
	}
	// Partial files are fine here; closedness and types are checked, full
	// concreteness is checked by Validate.
	if err := def.Unify(v).Validate(); err != nil {
		return Configuration{}, fmt.Errorf("config %s: %w", path, err)
	}

	raw, err := v.MarshalJSON()
	if err != nil {
		return Configuration{}, fmt.Errorf("config %s: %w", path, err)
	}
	cfg := base
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Configuration{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func fromYAML(path string, data []byte, base Configuration) (Configuration, error) {
	cfg := base
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Configuration{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays REFLRED_* variables onto cfg. A nil environ reads the
// process environment.
func ApplyEnv(cfg *Configuration, environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix, Environment: environ}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks cfg against the embedded schema.
func Validate(cfg Configuration) error {
	ctx := cuecontext.New()
	def, err := schema(ctx)
	if err != nil {
		return err
	}
	v := ctx.Encode(cfg)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
