package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/roach88/reflred/internal/config"
	"github.com/roach88/reflred/internal/ir"
	"github.com/roach88/reflred/internal/match"
)

// Reduction kinds used in metrics labels and journal details.
const (
	KindSpecular    = "specular"
	KindOffSpecular = "offspec"
	KindGISANS      = "gisans"
)

// CalculateOptions selects what CalculateReflectivity computes.
type CalculateOptions struct {
	// ActiveOnly reduces only the active channel. It applies to the active
	// run; other runs are always reduced whole.
	ActiveOnly bool

	// OffSpecular computes the off-specular maps instead of the specular
	// curves.
	OffSpecular bool

	// Config replaces the session configuration for this calculation.
	Config *config.Configuration
}

// BatchResult is the outcome of one run in a batch operation.
type BatchResult struct {
	Run ir.RunKey
	Err error
}

// FindBestDirectBeam picks the direct beam for the active run's active
// channel and stores it as the run's normalization.
func (s *Session) FindBestDirectBeam() (ir.RunNumbers, bool) {
	return s.findBestDirectBeam(s.cfg.Tolerance)
}

func (s *Session) findBestDirectBeam(tolerance float64) (ir.RunNumbers, bool) {
	run := s.Active()
	ch := s.ActiveChannel()
	if run == nil || ch == nil {
		return nil, false
	}

	candidates := make([]match.Candidate, 0, len(s.directBeams))
	for _, key := range s.directBeams {
		if key == s.active {
			continue
		}
		db := s.arena[key]
		first, _ := db.FirstChannel()
		candidates = append(candidates, match.Candidate{Run: db.Numbers, Channel: first})
	}

	res, ok := match.Best(match.Candidate{Run: run.Numbers, Channel: ch}, candidates, tolerance)
	if !ok {
		err := ir.NewMatchNotFoundError(s.active)
		slog.Info("No direct beam within tolerance", "run", s.active, "tolerance", tolerance, "error", err)
		s.record(context.Background(), EventMatchNotFound, s.active, nil)
		return nil, false
	}
	if res.Tier == match.TierWavelength {
		slog.Warn("Direct beam matched on wavelength only", "run", s.active, "direct_beam", res.Run.Long())
	}

	s.metrics.Match(res.Tier.String())
	if _, err := run.SetParameter(ir.ParamNormalization, slices.Clone(res.Run)); err != nil {
		slog.Error("Could not set normalization", "run", s.active, "error", err)
		return nil, false
	}
	s.record(context.Background(), EventMatch, s.active, map[string]string{
		"direct_beam": res.Run.Long(),
		"tier":        res.Tier.String(),
	})
	return res.Run, true
}

// FindDirectBeamForRun returns the direct-beam channel normalizing run, or
// nil when the run has no normalization or its direct beam is not listed.
func (s *Session) FindDirectBeamForRun(run *ir.Run) *ir.CrossSectionChannel {
	if _, ok := run.FirstChannel(); !ok {
		slog.Error("No data available to find a direct beam for", "run", run.Key())
		return nil
	}
	return s.directBeam(run.Normalization)
}

// FindDirectBeamForChannel returns the direct-beam channel for a channel
// normalized by the given direct-beam identity.
func (s *Session) FindDirectBeamForChannel(ch *ir.CrossSectionChannel, normalization ir.RunNumbers) *ir.CrossSectionChannel {
	if ch == nil {
		return nil
	}
	return s.directBeam(normalization)
}

func (s *Session) directBeam(normalization ir.RunNumbers) *ir.CrossSectionChannel {
	if len(normalization) == 0 {
		return nil
	}
	for _, key := range s.directBeams {
		db := s.arena[key]
		if !db.Numbers.Equal(normalization) {
			continue
		}
		first, ok := db.FirstChannel()
		if !ok {
			continue
		}
		if len(db.Order) > 1 {
			slog.Warn("More than one cross-section for the direct beam, using the first one",
				"direct_beam", key, "cross_section", first.Name)
		}
		return first
	}
	slog.Error("The specified direct beam is not available: skipping", "direct_beam", normalization.Long())
	return nil
}

// CalculateReflectivity reduces the run stored under key with its direct
// beam, if any.
func (s *Session) CalculateReflectivity(key ir.RunKey, opts CalculateOptions) error {
	run := s.arena[key]
	if run == nil {
		return ir.NewReductionError(string(key), "run is not loaded")
	}
	db := s.FindDirectBeamForRun(run)
	cfg := s.cfg
	if opts.Config != nil {
		cfg = *opts.Config
	}

	kind := KindSpecular
	if opts.OffSpecular {
		kind = KindOffSpecular
	}
	channels := run.Channels()
	if opts.ActiveOnly && !opts.OffSpecular && key == s.active {
		if ch := s.ActiveChannel(); ch != nil {
			channels = []*ir.CrossSectionChannel{ch}
		}
	}

	for _, ch := range channels {
		var err error
		if opts.OffSpecular {
			var data *ir.OffSpecData
			data, err = s.transforms.OffSpecular.Reduce(ch, db, cfg)
			if err == nil {
				ch.OffSpec = data
			}
		} else {
			var curve ir.Curve
			curve, err = s.transforms.Reflectivity.Reduce(ch, db, cfg)
			if err == nil {
				ch.SetReflectivity(curve)
			}
		}
		s.metrics.Reduction(kind, err)
		if err != nil {
			s.record(context.Background(), EventReduceFailed, key, map[string]string{
				"kind":  kind,
				"state": ch.Name,
				"error": err.Error(),
			})
			return fmt.Errorf("%s reduction of %s: %w", kind, ch.Name, err)
		}
	}
	run.InvalidateQRange()

	s.record(context.Background(), EventReduce, key, map[string]string{
		"kind":          kind,
		"normalization": run.Normalization.Long(),
		"channels":      strconv.Itoa(len(channels)),
	})
	return nil
}

// CalculateGISANS computes the GISANS data of every channel of the run
// stored under key. A direct beam is required.
func (s *Session) CalculateGISANS(key ir.RunKey) error {
	run := s.arena[key]
	if run == nil {
		return ir.NewReductionError(string(key), "run is not loaded")
	}
	db := s.FindDirectBeamForRun(run)
	if db == nil {
		err := ir.NewReductionError(string(key), "please select a direct beam data set for your data")
		s.metrics.Reduction(KindGISANS, err)
		return err
	}

	for _, ch := range run.Channels() {
		data, err := s.transforms.GISANS.Reduce(ch, db, s.cfg)
		s.metrics.Reduction(KindGISANS, err)
		if err != nil {
			s.record(context.Background(), EventReduceFailed, key, map[string]string{
				"kind":  KindGISANS,
				"state": ch.Name,
				"error": err.Error(),
			})
			return fmt.Errorf("gisans reduction of %s: %w", ch.Name, err)
		}
		ch.GISANS = data
	}
	s.record(context.Background(), EventReduce, key, map[string]string{
		"kind":          KindGISANS,
		"normalization": run.Normalization.Long(),
	})
	return nil
}

// ReduceOffSpec recomputes the off-specular maps of the whole reduction
// list. A failing run is logged and reported; the batch continues.
func (s *Session) ReduceOffSpec(progress Progress) []BatchResult {
	return s.batch("Reducing off-specular...", progress, func(key ir.RunKey) error {
		return s.CalculateReflectivity(key, CalculateOptions{OffSpecular: true})
	})
}

// ReduceGISANS recomputes the GISANS data of the whole reduction list.
func (s *Session) ReduceGISANS(progress Progress) []BatchResult {
	return s.batch("Reducing GISANS...", progress, s.CalculateGISANS)
}

func (s *Session) batch(message string, progress Progress, fn func(ir.RunKey) error) []BatchResult {
	keys := slices.Clone(s.reduction)
	results := make([]BatchResult, 0, len(keys))
	progress.report(1, message)
	for i, key := range keys {
		err := fn(key)
		if err != nil {
			slog.Error("Could not compute reduction", "run", key, "error", err)
		}
		results = append(results, BatchResult{Run: key, Err: err})
		progress.report(100*float64(i+1)/float64(len(keys)), "")
	}
	progress.report(100, "Done")
	return results
}

// RebinGISANS merges the GISANS data of the reduction list for one
// polarization state onto a regular grid.
func (s *Session) RebinGISANS(state string, opts config.GISANSOptions) (ir.GISANSGrid, error) {
	return s.transforms.GISANS.Rebin(s.ReductionList(), state, opts)
}

// IsOffSpecAvailable reports whether every channel of every listed run has
// off-specular data.
func (s *Session) IsOffSpecAvailable() bool {
	for _, run := range s.ReductionList() {
		for _, ch := range run.Channels() {
			if ch.OffSpec == nil {
				return false
			}
		}
	}
	return true
}

// IsGISANSAvailable reports whether GISANS data exists for every channel of
// the active run, or of every listed run when activeOnly is false.
func (s *Session) IsGISANSAvailable(activeOnly bool) bool {
	runs := s.ReductionList()
	if activeOnly {
		run := s.Active()
		if run == nil {
			return false
		}
		runs = []*ir.Run{run}
	}
	for _, run := range runs {
		for _, ch := range run.Channels() {
			if ch.GISANS == nil {
				return false
			}
		}
	}
	return true
}

// TrimValues cuts the active run to the points where its direct beam is at
// least cfg.TrimThreshold of the beam's maximum. It returns the new cuts.
func (s *Session) TrimValues() (first, last int, ok bool) {
	run := s.Active()
	ch := s.ActiveChannel()
	if run == nil || ch == nil || ch.Curve.IsEmpty() || len(run.Normalization) == 0 {
		return 0, 0, false
	}
	db := s.FindDirectBeamForChannel(ch, run.Normalization)
	if db == nil {
		return 0, 0, false
	}
	r := db.R
	if len(r) == 0 {
		r = db.Raw.R
	}
	if len(r) == 0 {
		return 0, 0, false
	}

	threshold := slices.Max(r) * s.cfg.TrimThreshold
	lo, hi := -1, -1
	for i, v := range r {
		if v >= threshold {
			if lo < 0 {
				lo = i
			}
			hi = i
		}
	}
	first, last = lo, len(r)-hi-1

	run.CutFirstN = first
	run.CutLastN = last
	s.record(context.Background(), EventTrim, s.active, map[string]string{
		"cut_first_n_points": strconv.Itoa(first),
		"cut_last_n_points":  strconv.Itoa(last),
	})
	return first, last, true
}

// UpdateConfiguration applies cfg's cuts and normalization to the run
// stored under key, or to the active run when key is empty. Cuts and
// normalization are per run, so every channel of the run is affected.
// It reports whether anything changed; the caller decides whether to
// recompute the reflectivity.
func (s *Session) UpdateConfiguration(cfg config.Configuration, key ir.RunKey) bool {
	if key == "" {
		key = s.active
	}
	run := s.arena[key]
	if run == nil {
		return false
	}

	changed := false
	for _, p := range []struct {
		name  string
		value any
	}{
		{ir.ParamNormalization, slices.Clone(cfg.Normalization)},
		{ir.ParamCutFirstN, cfg.CutFirstN},
		{ir.ParamCutLastN, cfg.CutLastN},
	} {
		c, err := run.SetParameter(p.name, p.value)
		if err != nil {
			slog.Error("Could not update configuration", "run", key, "parameter", p.name, "error", err)
			continue
		}
		changed = changed || c
	}
	if changed {
		s.record(context.Background(), EventConfigure, key, map[string]string{
			"normalization":      run.Normalization.Long(),
			"cut_first_n_points": strconv.Itoa(run.CutFirstN),
			"cut_last_n_points":  strconv.Itoa(run.CutLastN),
		})
	}
	return changed
}
