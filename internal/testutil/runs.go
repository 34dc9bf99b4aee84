// Package testutil provides run builders and a scripted loader for tests.
package testutil

import (
	"fmt"
	"math"

	"github.com/roach88/reflred/internal/ir"
)

// Geometry defaults used by Channel.
const (
	DefaultLambda = 4.25
	DefaultSlit   = 0.4
)

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

// Constant returns n copies of v.
func Constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Channel builds a channel whose raw counts are counts at q, with
// sqrt(counts) errors and the default geometry.
func Channel(name string, q, counts []float64) *ir.CrossSectionChannel {
	errs := make([]float64, len(counts))
	for i, c := range counts {
		errs[i] = math.Sqrt(math.Max(c, 0))
	}
	return &ir.CrossSectionChannel{
		Name:         name,
		LambdaCenter: DefaultLambda,
		Slit1Width:   DefaultSlit,
		Slit2Width:   DefaultSlit,
		Slit3Width:   DefaultSlit,
		Raw: ir.Curve{
			Q:  append([]float64(nil), q...),
			R:  append([]float64(nil), counts...),
			DR: errs,
		},
	}
}

// WithGeometry sets the channel's wavelength and slits and returns it.
func WithGeometry(ch *ir.CrossSectionChannel, lambda, s1, s2, s3 float64) *ir.CrossSectionChannel {
	ch.LambdaCenter = lambda
	ch.Slit1Width, ch.Slit2Width, ch.Slit3Width = s1, s2, s3
	return ch
}

// WithLabel sets the channel's polarization label and returns it.
func WithLabel(ch *ir.CrossSectionChannel, label string) *ir.CrossSectionChannel {
	ch.Label = label
	return ch
}

// Path returns the conventional source path of a run number.
func Path(number int) string {
	return fmt.Sprintf("data/REF_M_%d.yaml", number)
}

// Run builds a run with the given number and channels.
func Run(number int, channels ...*ir.CrossSectionChannel) *ir.Run {
	return ir.NewRun(ir.NewRunNumbers(number), ir.NewFilePath(Path(number)), channels...)
}

// DirectBeam builds a single-channel direct-beam run.
func DirectBeam(number int, lambda float64, slits [3]float64) *ir.Run {
	ch := Channel("Off_Off", Linspace(0, 0.01, 5), []float64{10, 100, 100, 100, 10})
	ch.IsDirectBeam = true
	WithGeometry(ch, lambda, slits[0], slits[1], slits[2])
	return Run(number, ch)
}

// Specular builds a scattering run with one channel per state, each
// covering [qMin, qMax] with n points of constant counts.
func Specular(number int, qMin, qMax float64, n int, counts float64, states ...string) *ir.Run {
	if len(states) == 0 {
		states = []string{"Off_Off"}
	}
	run := Run(number)
	for _, state := range states {
		run.AddChannel(Channel(state, Linspace(qMin, qMax, n), Constant(counts, n)))
	}
	return run
}
