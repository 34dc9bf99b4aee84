package testutil

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/roach88/reflred/internal/config"
	"github.com/roach88/reflred/internal/ir"
)

// Loader is a scripted loader. Each source maps to a builder called on
// every load, so a forced reload yields a fresh run.
//
// Unknown sources fail with a LOAD_ERROR wrapping fs.ErrNotExist.
type Loader struct {
	builders map[string]func() *ir.Run
	failures map[string]error

	// Calls counts loads per source (merged loads under their joined key).
	Calls map[string]int
}

// NewLoader creates an empty scripted loader.
func NewLoader() *Loader {
	return &Loader{
		builders: make(map[string]func() *ir.Run),
		failures: make(map[string]error),
		Calls:    make(map[string]int),
	}
}

// Add registers the builder for source.
func (l *Loader) Add(source string, build func() *ir.Run) *Loader {
	l.builders[source] = build
	return l
}

// Fail makes every load of source fail with err.
func (l *Loader) Fail(source string, err error) *Loader {
	l.failures[source] = err
	return l
}

// Load implements session.Loader.
func (l *Loader) Load(ctx context.Context, source string, _ config.Configuration) (*ir.Run, error) {
	return l.load(ctx, source)
}

// LoadMerge implements session.Loader. The builder is looked up under the
// '+'-joined sorted source list.
func (l *Loader) LoadMerge(ctx context.Context, sources []string, _ config.Configuration) (*ir.Run, error) {
	if len(sources) < 2 {
		return nil, ir.NewUnsupportedError(fmt.Sprintf("merged load needs at least two sources, have %d", len(sources)))
	}
	return l.load(ctx, ir.NewFilePath(sources...).String())
}

func (l *Loader) load(ctx context.Context, source string) (*ir.Run, error) {
	l.Calls[source]++
	if err := ctx.Err(); err != nil {
		return nil, ir.NewLoadError(source, err)
	}
	if err, ok := l.failures[source]; ok {
		return nil, ir.NewLoadError(source, err)
	}
	build, ok := l.builders[source]
	if !ok {
		return nil, ir.NewLoadError(source, fmt.Errorf("open %s: %w", source, fs.ErrNotExist))
	}
	return build(), nil
}
