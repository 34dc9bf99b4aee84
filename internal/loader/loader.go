// Package loader turns run files into ir.Run values.
//
// The YAML run-file format (see RunFile) stands in for an instrument's
// event files. A Loader reads one file per Load call, or several files
// whose counts are summed for LoadMerge. Merged component files are read
// concurrently but LoadMerge returns only once every read completes.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/reflred/internal/config"
	"github.com/roach88/reflred/internal/ir"
)

// YAMLLoader loads RunFile documents from the local filesystem.
type YAMLLoader struct{}

// New returns a YAMLLoader.
func New() *YAMLLoader {
	return &YAMLLoader{}
}

// Load reads a single run file. All failures are LoadErrors.
func (l *YAMLLoader) Load(ctx context.Context, source string, cfg config.Configuration) (*ir.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, ir.NewLoadError(source, err)
	}
	rf, err := ReadRunFile(source)
	if err != nil {
		return nil, ir.NewLoadError(source, err)
	}

	path := ir.NewFilePath(source)
	numbers := path.RunNumbers()
	if rf.Run > 0 {
		numbers = ir.NewRunNumbers(rf.Run)
	}
	return buildRun(numbers, path, rf, cfg)
}

// LoadMerge reads every source and sums their counts into one run whose
// identity is the union of the components' run numbers.
//
// Fewer than two sources is an UNSUPPORTED_OPERATION error. Components
// must share the same states and Q points; geometry differences above
// cfg.Tolerance are logged but do not fail the merge.
func (l *YAMLLoader) LoadMerge(ctx context.Context, sources []string, cfg config.Configuration) (*ir.Run, error) {
	if len(sources) < 2 {
		return nil, ir.NewUnsupportedError(
			fmt.Sprintf("merged load needs at least two sources, have %d", len(sources)))
	}

	files := make([]*RunFile, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, source := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return ir.NewLoadError(source, err)
			}
			rf, err := ReadRunFile(source)
			if err != nil {
				return ir.NewLoadError(source, err)
			}
			files[i] = rf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	path := ir.NewFilePath(sources...)
	for _, problem := range CheckFilesForMerging(files, cfg.Tolerance) {
		slog.Warn("Merging incongruent files", "path", path.String(), "problem", problem)
	}

	merged, err := sumFiles(files)
	if err != nil {
		return nil, ir.NewLoadError(path.String(), err)
	}

	var numbers ir.RunNumbers
	for i, rf := range files {
		n := ir.NewFilePath(sources[i]).RunNumbers()
		if rf.Run > 0 {
			n = ir.NewRunNumbers(rf.Run)
		}
		numbers = numbers.Union(n)
	}
	return buildRun(numbers, path, merged, cfg)
}

// CheckFilesForMerging compares every file's geometry with the first one
// and describes each state whose wavelength or slits differ above
// tolerance. An empty result means the files are congruent.
func CheckFilesForMerging(files []*RunFile, tolerance float64) []string {
	if len(files) < 2 {
		return nil
	}
	var problems []string
	ref := files[0]
	for i, rf := range files[1:] {
		for _, cs := range rf.CrossSections {
			base := ref.crossSection(cs.Name)
			if base == nil {
				continue
			}
			if math.Abs(cs.LambdaCenter-base.LambdaCenter) > tolerance {
				problems = append(problems, fmt.Sprintf("file %d %s: wavelength values differ above tolerance (%g vs %g)",
					i+1, cs.Name, cs.LambdaCenter, base.LambdaCenter))
			}
			for k := 0; k < len(cs.Slits) && k < len(base.Slits); k++ {
				if math.Abs(cs.Slits[k]-base.Slits[k]) > tolerance {
					problems = append(problems, fmt.Sprintf("file %d %s: slit %d widths differ above tolerance (%g vs %g)",
						i+1, cs.Name, k+1, cs.Slits[k], base.Slits[k]))
				}
			}
		}
	}
	return problems
}

// sumFiles adds the counts of files point by point. Errors add in
// quadrature. Geometry is taken from the first file.
func sumFiles(files []*RunFile) (*RunFile, error) {
	first := files[0]
	out := &RunFile{DirectBeam: first.DirectBeam}
	for _, cs := range first.CrossSections {
		sum := cs
		sum.Q = append([]float64(nil), cs.Q...)
		sum.Counts = append([]float64(nil), cs.Counts...)
		sum.Errors = make([]float64, len(cs.Q))
		for k := range sum.Errors {
			e := countError(cs, k)
			sum.Errors[k] = e * e
		}

		for i, rf := range files[1:] {
			other := rf.crossSection(cs.Name)
			if other == nil {
				return nil, fmt.Errorf("file %d has no %s cross-section", i+1, cs.Name)
			}
			if len(other.Q) != len(cs.Q) {
				return nil, fmt.Errorf("file %d %s: %d points, expected %d", i+1, cs.Name, len(other.Q), len(cs.Q))
			}
			for k := range other.Counts {
				sum.Counts[k] += other.Counts[k]
				e := countError(*other, k)
				sum.Errors[k] += e * e
			}
		}
		for k := range sum.Errors {
			sum.Errors[k] = math.Sqrt(sum.Errors[k])
		}
		out.CrossSections = append(out.CrossSections, sum)
	}
	for i, rf := range files[1:] {
		if len(rf.CrossSections) != len(first.CrossSections) {
			return nil, fmt.Errorf("file %d has %d cross-sections, expected %d",
				i+1, len(rf.CrossSections), len(first.CrossSections))
		}
	}
	return out, nil
}

func countError(cs CrossSectionFile, k int) float64 {
	if len(cs.Errors) > k {
		return cs.Errors[k]
	}
	return math.Sqrt(math.Max(cs.Counts[k], 0))
}

func buildRun(numbers ir.RunNumbers, path ir.FilePath, rf *RunFile, cfg config.Configuration) (*ir.Run, error) {
	run := ir.NewRun(numbers, path)
	for _, cs := range rf.CrossSections {
		var total float64
		for _, c := range cs.Counts {
			total += c
		}
		if total < cfg.MinCounts {
			slog.Info("Skipping cross-section below minimum counts",
				"path", path.String(), "state", cs.Name, "counts", total, "min_counts", cfg.MinCounts)
			continue
		}

		errs := make([]float64, len(cs.Q))
		for k := range errs {
			errs[k] = countError(cs, k)
		}
		ch := &ir.CrossSectionChannel{
			Name:         cs.Name,
			Label:        cs.Label,
			LambdaCenter: cs.LambdaCenter,
			IsDirectBeam: rf.DirectBeam,
			Raw: ir.Curve{
				Q:  append([]float64(nil), cs.Q...),
				R:  append([]float64(nil), cs.Counts...),
				DR: errs,
			},
		}
		if len(cs.Slits) == 3 {
			ch.Slit1Width, ch.Slit2Width, ch.Slit3Width = cs.Slits[0], cs.Slits[1], cs.Slits[2]
		}
		run.AddChannel(ch)
	}
	if len(run.Order) == 0 {
		return nil, ir.NewLoadError(path.String(), fmt.Errorf("no cross-section has at least %g counts", cfg.MinCounts))
	}
	return run, nil
}
