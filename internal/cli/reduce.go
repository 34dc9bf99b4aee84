package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/reflred/internal/ir"
	"github.com/roach88/reflred/internal/session"
)

// ReduceOptions holds flags for the reduce command.
type ReduceOptions struct {
	*RootOptions
	workspaceOptions
	NoAsymmetry bool
	Metrics     bool
}

// ReducedRun describes one run of the reduction list after stitching.
type ReducedRun struct {
	Run           string  `json:"run"`
	Source        string  `json:"source"`
	Normalization string  `json:"normalization,omitempty"`
	CutFirstN     int     `json:"cut_first_n_points"`
	CutLastN      int     `json:"cut_last_n_points"`
	ScalingFactor float64 `json:"scaling_factor"`
	ScalingError  float64 `json:"scaling_error"`
}

// FailedRun is a manifest entry that could not be loaded.
type FailedRun struct {
	Run   string `json:"run"`
	Error string `json:"error"`
}

// CurveResult is one composite curve.
type CurveResult struct {
	Label string    `json:"label"`
	Q     []float64 `json:"q"`
	R     []float64 `json:"r"`
	DR    []float64 `json:"dr"`
}

// ReduceResult holds the outcome of a reduction.
type ReduceResult struct {
	Name        string        `json:"name"`
	Session     string        `json:"session"`
	DirectBeams []string      `json:"direct_beams"`
	Runs        []ReducedRun  `json:"runs"`
	Missing     []string      `json:"missing,omitempty"`
	Rejected    []string      `json:"rejected,omitempty"`
	Failed      []FailedRun   `json:"failed,omitempty"`
	Curves      []CurveResult `json:"curves"`
}

// NewReduceCommand creates the reduce command.
func NewReduceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReduceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reduce <manifest>",
		Short: "Reduce, stitch and merge the runs of a manifest",
		Long: `Load the direct beams and data runs named by a manifest, trim the
overlap between neighboring runs, stitch them onto a common scale and
merge every polarization state onto the configured Q grid.

The spin asymmetry (SA) is added when two polarization states can be
identified.

Exit codes:
  0 - Reduction complete
  1 - Reduction failed (no data loaded, stitching failed, etc.)
  2 - Command error (invalid manifest or configuration, etc.)

Examples:
  reflred reduce film.yaml
  reflred reduce film.yaml --config reduction.cue --db ./reflred.db
  reflred reduce film.yaml --format json --no-asymmetry`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Manifest = args[0]
			return runReduce(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "configuration file (.cue, .yaml or .yml)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (optional)")
	cmd.Flags().BoolVar(&opts.NoAsymmetry, "no-asymmetry", false, "skip the spin asymmetry")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print session metrics to stderr")

	return cmd
}

func runReduce(opts *ReduceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	setupLogging(cmd.ErrOrStderr(), opts.Verbose)
	f := newFormatter(cmd, opts.RootOptions)

	w, err := openWorkspace(opts.workspaceOptions)
	if err != nil {
		return err
	}
	defer w.Close()
	s := w.session

	report, err := s.LoadManifest(ctx, w.manifest, func(value float64, message string) {
		f.VerboseLog("[%3.0f%%] %s", value, message)
	})
	if err != nil {
		return WrapExitError(ExitFailure, "reduction interrupted", err)
	}
	if len(report.Data) == 0 {
		return NewExitError(ExitFailure, "no data runs could be loaded")
	}

	if err := s.TrimOverlaps(); err != nil {
		return WrapExitError(ExitFailure, "failed to trim overlaps", err)
	}
	cfg := s.Config()
	if err := s.StitchDataSets(cfg.NormalizeToUnity, cfg.QCutoff); err != nil {
		return WrapExitError(ExitFailure, "failed to stitch runs", err)
	}
	curves := s.MergeDataSets(!opts.NoAsymmetry)

	result := newReduceResult(w, report, curves)
	if opts.Format == "json" {
		err = f.Success(result)
	} else {
		err = writeReduceText(f.Writer, result)
	}
	if err != nil {
		return err
	}

	if opts.Metrics {
		return w.metrics.WriteText(f.GetErrWriter())
	}
	return nil
}

func newReduceResult(w *workspace, report session.Report, curves map[string]ir.Curve) ReduceResult {
	s := w.session
	result := ReduceResult{
		Name:        w.manifest.Name,
		Session:     s.ID(),
		DirectBeams: keyStrings(report.DirectBeams),
		Missing:     report.Missing,
		Rejected:    keyStrings(report.Rejected),
	}
	for _, run := range s.ReductionList() {
		result.Runs = append(result.Runs, ReducedRun{
			Run:           string(run.Key()),
			Source:        run.Path.String(),
			Normalization: run.Normalization.String(),
			CutFirstN:     run.CutFirstN,
			CutLastN:      run.CutLastN,
			ScalingFactor: run.ScalingFactor,
			ScalingError:  run.ScalingError,
		})
	}
	for _, failed := range report.Failed {
		result.Failed = append(result.Failed, FailedRun{Run: string(failed.Run), Error: failed.Err.Error()})
	}
	for _, label := range slices.Sorted(maps.Keys(curves)) {
		c := curves[label]
		result.Curves = append(result.Curves, CurveResult{Label: label, Q: c.Q, R: c.R, DR: c.DR})
	}
	return result
}

func keyStrings(keys []ir.RunKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// writeReduceText writes the reduction summary followed by every curve.
func writeReduceText(w io.Writer, result ReduceResult) error {
	fmt.Fprintf(w, "Reduction: %s\n", result.Name)
	fmt.Fprintf(w, "Direct beams: %s\n", orDash(strings.Join(result.DirectBeams, ", ")))
	fmt.Fprintln(w, "Runs:")
	for _, run := range result.Runs {
		fmt.Fprintf(w, "  %s  normalization=%s  cuts=%d/%d  scale=%.4g\n",
			run.Run, orDash(run.Normalization), run.CutFirstN, run.CutLastN, run.ScalingFactor)
	}
	if len(result.Missing) > 0 {
		fmt.Fprintf(w, "Missing: %s\n", strings.Join(result.Missing, ", "))
	}
	if len(result.Rejected) > 0 {
		fmt.Fprintf(w, "Rejected: %s\n", strings.Join(result.Rejected, ", "))
	}
	for _, failed := range result.Failed {
		fmt.Fprintf(w, "Failed: %s (%s)\n", failed.Run, failed.Error)
	}

	for _, c := range result.Curves {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s (%d points)\n", c.Label, len(c.Q))
		fmt.Fprintf(w, "  %-10s%-10s%s\n", "q", "R", "dR")
		for i := range c.Q {
			if _, err := fmt.Fprintf(w, "  %-10.4g%-10.4g%.4g\n", c.Q[i], c.R[i], c.DR[i]); err != nil {
				return err
			}
		}
	}
	return nil
}
