package ir

import (
	"fmt"
	"math"
	"slices"

	"golang.org/x/text/unicode/norm"
)

// RunKey is the explicit identity of a Run inside a session.
// It is the long run-number form, e.g. "24945" or "24945+24946".
type RunKey string

// Parameter names accepted by Run.SetParameter.
const (
	ParamNormalization = "normalization"
	ParamCutFirstN     = "cut_first_n_points"
	ParamCutLastN      = "cut_last_n_points"
	ParamScalingFactor = "scaling_factor"
)

// CrossSectionChannel holds the data of one polarization state of a run.
//
// The embedded Curve is the reduced reflectivity. Raw holds the counts the
// loader produced and is the input of every reflectivity transform.
type CrossSectionChannel struct {
	Curve

	// Name is the state label, e.g. "Off_Off".
	Name string `json:"name"`

	// Label is the polarization label ("++", "--", "+-", "-+") when the
	// instrument logs define it, empty otherwise.
	Label string `json:"label,omitempty"`

	Raw Curve `json:"raw"`

	LambdaCenter float64 `json:"lambda_center"`
	Slit1Width   float64 `json:"slit1_width"`
	Slit2Width   float64 `json:"slit2_width"`
	Slit3Width   float64 `json:"slit3_width"`
	IsDirectBeam bool    `json:"is_direct_beam"`

	OffSpec *OffSpecData `json:"off_spec,omitempty"`
	GISANS  *GISANSData  `json:"gisans,omitempty"`
}

// Slits returns the three slit widths in beam order.
func (c *CrossSectionChannel) Slits() [3]float64 {
	return [3]float64{c.Slit1Width, c.Slit2Width, c.Slit3Width}
}

// Reflectivity returns the reduced curve.
func (c *CrossSectionChannel) Reflectivity() Curve {
	return c.Curve
}

// SetReflectivity replaces the reduced curve.
func (c *CrossSectionChannel) SetReflectivity(curve Curve) {
	c.Curve = curve
}

// Run is one measurement (or a declared merge of several) at a fixed
// instrument configuration.
//
// Identity (Numbers, Path) never changes after load. The remaining fields are
// mutated in place when configuration changes.
type Run struct {
	Numbers RunNumbers
	Path    FilePath

	// CrossSections maps state label to channel. Order keeps the loader's
	// label order, which decides the default active channel.
	CrossSections map[string]*CrossSectionChannel
	Order         []string

	// Normalization is the identity of the direct beam used to normalize
	// this run. Empty means none.
	Normalization RunNumbers

	CutFirstN int
	CutLastN  int

	ScalingFactor float64
	ScalingError  float64

	qRange *[2]float64
}

// NewRun creates a run and registers channels in the given order.
// Channel names are NFC normalized.
func NewRun(numbers RunNumbers, path FilePath, channels ...*CrossSectionChannel) *Run {
	r := &Run{
		Numbers:       numbers,
		Path:          path,
		CrossSections: make(map[string]*CrossSectionChannel, len(channels)),
		ScalingFactor: 1,
	}
	for _, ch := range channels {
		r.AddChannel(ch)
	}
	return r
}

// AddChannel appends a channel, replacing any channel with the same name.
func (r *Run) AddChannel(ch *CrossSectionChannel) {
	ch.Name = norm.NFC.String(ch.Name)
	if _, exists := r.CrossSections[ch.Name]; !exists {
		r.Order = append(r.Order, ch.Name)
	}
	r.CrossSections[ch.Name] = ch
	r.qRange = nil
}

// Key returns the run's identity key. Runs without numbers fall back to
// their source path.
func (r *Run) Key() RunKey {
	if len(r.Numbers) == 0 {
		return RunKey(r.Path.String())
	}
	return r.Numbers.Key()
}

// Number returns the run number used for nearest-run comparisons.
func (r *Run) Number() int {
	return r.Numbers.First()
}

// Labels returns the state labels in loader order.
func (r *Run) Labels() []string {
	return slices.Clone(r.Order)
}

// HasStates reports whether the run exposes exactly the given state labels,
// regardless of order.
func (r *Run) HasStates(states []string) bool {
	if len(states) != len(r.CrossSections) {
		return false
	}
	for _, s := range states {
		if _, ok := r.CrossSections[s]; !ok {
			return false
		}
	}
	return true
}

// Channel returns the channel for a state label.
func (r *Run) Channel(state string) (*CrossSectionChannel, bool) {
	ch, ok := r.CrossSections[state]
	return ch, ok
}

// FirstChannel returns the first channel in loader order.
func (r *Run) FirstChannel() (*CrossSectionChannel, bool) {
	if len(r.Order) == 0 {
		return nil, false
	}
	return r.CrossSections[r.Order[0]], true
}

// Channels returns the channels in loader order.
func (r *Run) Channels() []*CrossSectionChannel {
	out := make([]*CrossSectionChannel, 0, len(r.Order))
	for _, name := range r.Order {
		out = append(out, r.CrossSections[name])
	}
	return out
}

// QRange returns the Q range covered by the run's reduced data, falling back
// to raw data for channels not yet reduced. The result is cached until
// InvalidateQRange is called.
func (r *Run) QRange() (qMin, qMax float64) {
	if r.qRange != nil {
		return r.qRange[0], r.qRange[1]
	}
	qMin, qMax = math.Inf(1), math.Inf(-1)
	for _, ch := range r.CrossSections {
		c := ch.Curve
		if c.IsEmpty() {
			c = ch.Raw
		}
		if lo, hi, ok := c.Range(); ok {
			qMin = math.Min(qMin, lo)
			qMax = math.Max(qMax, hi)
		}
	}
	if math.IsInf(qMin, 1) {
		qMin, qMax = 0, 0
	}
	r.qRange = &[2]float64{qMin, qMax}
	return qMin, qMax
}

// InvalidateQRange drops the cached Q range.
func (r *Run) InvalidateQRange() {
	r.qRange = nil
}

// SetParameter updates a per-run reduction parameter. It returns true when
// the stored value changed.
func (r *Run) SetParameter(name string, value any) (bool, error) {
	switch name {
	case ParamNormalization:
		var numbers RunNumbers
		switch v := value.(type) {
		case RunNumbers:
			numbers = v
		case int:
			numbers = NewRunNumbers(v)
		case nil:
		default:
			return false, fmt.Errorf("parameter %s: unsupported value type %T", name, value)
		}
		changed := !r.Normalization.Equal(numbers)
		r.Normalization = numbers
		return changed, nil
	case ParamCutFirstN, ParamCutLastN:
		n, ok := value.(int)
		if !ok || n < 0 {
			return false, fmt.Errorf("parameter %s: want non-negative int, got %v", name, value)
		}
		target := &r.CutFirstN
		if name == ParamCutLastN {
			target = &r.CutLastN
		}
		changed := *target != n
		*target = n
		return changed, nil
	case ParamScalingFactor:
		f, ok := value.(float64)
		if !ok {
			return false, fmt.Errorf("parameter %s: want float64, got %T", name, value)
		}
		changed := r.ScalingFactor != f
		r.ScalingFactor = f
		return changed, nil
	default:
		return false, fmt.Errorf("unknown parameter %q", name)
	}
}
