package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"

	"github.com/roach88/reflred/internal/config"
	"github.com/roach88/reflred/internal/ir"
	"github.com/roach88/reflred/internal/manifest"
)

// Load makes source the active run.
//
// A cached source is reused unless force is set; the second return value
// reports a cache hit. A forced reload replaces the run and puts it back at
// the list positions the old run occupied.
//
// Fresh runs take their cuts and normalization from cfg, and their first
// reflectivity calculation uses cfg. Later calculations, stitching and
// merging use the session configuration. With no
// normalization and cfg.MatchDirectBeam set, the best direct beam is
// assigned automatically. A reflectivity failure is logged and journaled
// but does not fail the load.
func (s *Session) Load(ctx context.Context, source string, cfg config.Configuration, force bool, progress Progress) (bool, error) {
	return s.load(ctx, source, cfg, force, progress, func(ctx context.Context) (*ir.Run, error) {
		return s.loader.Load(ctx, source, cfg)
	})
}

// LoadMerge loads several sources as one summed run. The cache key is the
// '+'-joined sorted source list.
func (s *Session) LoadMerge(ctx context.Context, sources []string, cfg config.Configuration, force bool, progress Progress) (bool, error) {
	if len(sources) < 2 {
		return false, ir.NewUnsupportedError(
			fmt.Sprintf("merged load needs at least two sources, have %d", len(sources)))
	}
	source := ir.NewFilePath(sources...).String()
	return s.load(ctx, source, cfg, force, progress, func(ctx context.Context) (*ir.Run, error) {
		return s.loader.LoadMerge(ctx, sources, cfg)
	})
}

func (s *Session) load(
	ctx context.Context,
	source string,
	cfg config.Configuration,
	force bool,
	progress Progress,
	fetch func(context.Context) (*ir.Run, error),
) (bool, error) {
	cachedKey, hit := s.cache.Get(source)
	s.metrics.CacheLookup(hit)
	if hit && !force {
		s.setActive(cachedKey)
		progress.report(100, "Done")
		s.record(ctx, EventLoad, cachedKey, map[string]string{"source": source, "cached": "true"})
		return true, nil
	}

	progress.report(10, "Loading data...")
	run, err := fetch(ctx)
	if err != nil {
		if !ir.IsLoadError(err) && !ir.IsUnsupported(err) {
			err = ir.NewLoadError(source, err)
		}
		slog.Error("Could not load data", "source", source, "error", err)
		s.record(ctx, EventLoadFailed, "", map[string]string{"source": source, "error": err.Error()})
		return false, err
	}

	// A forced reload takes over the old run's list slots.
	reductionIdx, directBeamIdx := -1, -1
	if hit {
		reductionIdx = slices.Index(s.reduction, cachedKey)
		directBeamIdx = slices.Index(s.directBeams, cachedKey)
		s.cache.Remove(source)
		if reductionIdx >= 0 {
			s.reduction = slices.Delete(s.reduction, reductionIdx, reductionIdx+1)
		}
		if directBeamIdx >= 0 {
			s.directBeams = slices.Delete(s.directBeams, directBeamIdx, directBeamIdx+1)
		}
	}

	key := run.Key()
	replaced := !(hit && cachedKey == key) && s.listed(key)
	if replaced {
		slog.Warn("Load replaces a listed run", "run", key, "source", source)
	}
	s.arena[key] = run
	s.setActive(key)
	if hit && cachedKey != key {
		s.prune(cachedKey)
	}

	run.CutFirstN = cfg.CutFirstN
	run.CutLastN = cfg.CutLastN
	slog.Info("Direct beam from configuration", "run", key, "normalization", cfg.Normalization.Long())
	if len(cfg.Normalization) > 0 {
		run.Normalization = slices.Clone(cfg.Normalization)
	} else if cfg.MatchDirectBeam {
		s.findBestDirectBeam(cfg.Tolerance)
	}

	// A run appears at most once per list: if the new key is already
	// listed elsewhere, that slot stands and the remembered one is dropped.
	if reductionIdx >= 0 && !slices.Contains(s.reduction, key) {
		s.reduction = slices.Insert(s.reduction, min(reductionIdx, len(s.reduction)), key)
	}
	if directBeamIdx >= 0 && !slices.Contains(s.directBeams, key) {
		s.directBeams = slices.Insert(s.directBeams, min(directBeamIdx, len(s.directBeams)), key)
	}

	progress.report(80, "Calculating...")
	if err := s.CalculateReflectivity(key, CalculateOptions{Config: &cfg}); err != nil {
		slog.Error("Reflectivity calculation failed", "run", key, "source", source, "error", err)
	}

	s.cache.Put(source, key)
	progress.report(100, "Done")
	detail := map[string]string{
		"source":      source,
		"cached":      "false",
		"fingerprint": ir.SourceFingerprint(run.Path),
	}
	if replaced {
		detail["replaced"] = "true"
	}
	s.record(ctx, EventLoad, key, detail)
	return false, nil
}

// listed reports whether key is in the reduction or direct-beam list.
func (s *Session) listed(key ir.RunKey) bool {
	return slices.Contains(s.reduction, key) || slices.Contains(s.directBeams, key)
}

// Report summarizes a manifest load.
type Report struct {
	// DirectBeams and Data list the runs added to each list, in manifest order.
	DirectBeams []ir.RunKey
	Data        []ir.RunKey

	// Missing lists sources that do not exist.
	Missing []string

	// Rejected lists data runs whose cross-sections did not match the
	// reduction list.
	Rejected []ir.RunKey

	// Failed lists the remaining load failures.
	Failed []BatchResult
}

// LoadManifest loads every direct beam of m into the direct-beam list and
// then every data run into the reduction list. Missing or unreadable runs
// are reported and skipped; only context cancellation stops the load.
func (s *Session) LoadManifest(ctx context.Context, m *manifest.Manifest, progress Progress) (Report, error) {
	var report Report
	total := len(m.DirectBeams) + len(m.Data)
	done := 0
	if s.name == "" {
		s.name = m.Name
	}
	s.record(ctx, EventManifest, "", map[string]string{
		"name":         m.Name,
		"direct_beams": strconv.Itoa(len(m.DirectBeams)),
		"data":         strconv.Itoa(len(m.Data)),
	})

	step := func(message string) {
		done++
		progress.report(100*float64(done)/float64(total), message)
	}

	for _, entry := range m.DirectBeams {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		key, ok := s.loadEntry(ctx, entry, &report)
		if ok {
			s.AddActiveToNormalization()
			report.DirectBeams = append(report.DirectBeams, key)
		}
		step(entry.Source())
	}

	for _, entry := range m.Data {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		key, ok := s.loadEntry(ctx, entry, &report)
		if ok {
			if s.AddActiveToReduction() {
				report.Data = append(report.Data, key)
			} else {
				report.Rejected = append(report.Rejected, key)
			}
		}
		step(entry.Source())
	}

	progress.report(100, "Done")
	return report, nil
}

// loadEntry loads one manifest entry. A cached run gets the entry's
// settings applied and its reflectivity recomputed.
func (s *Session) loadEntry(ctx context.Context, entry manifest.Entry, report *Report) (ir.RunKey, bool) {
	cfg := entry.Apply(s.cfg)
	var (
		fromCache bool
		err       error
	)
	if entry.IsMerge() {
		fromCache, err = s.LoadMerge(ctx, entry.Paths, cfg, false, nil)
	} else {
		fromCache, err = s.Load(ctx, entry.Path, cfg, false, nil)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Error("File does not exist", "source", entry.Source())
			report.Missing = append(report.Missing, entry.Source())
		} else {
			report.Failed = append(report.Failed, BatchResult{Run: ir.RunKey(entry.Source()), Err: err})
		}
		return "", false
	}

	if fromCache && len(cfg.Normalization) == 0 && cfg.MatchDirectBeam {
		// keep the direct beam matched when the run was first loaded
		cfg = cfg.WithNormalization(s.Active().Normalization)
	}
	if fromCache && s.UpdateConfiguration(cfg, s.active) {
		if err := s.CalculateReflectivity(s.active, CalculateOptions{}); err != nil {
			slog.Error("Reflectivity calculation failed", "run", s.active, "error", err)
		}
	}
	return s.active, true
}
