package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/reflred/internal/ir"
	"github.com/roach88/reflred/internal/match"
	"github.com/roach88/reflred/internal/session"
)

// MatchOptions holds flags for the match command.
type MatchOptions struct {
	*RootOptions
	workspaceOptions
}

// TierManual marks a normalization set by the manifest rather than chosen
// by the matcher.
const TierManual = "manual"

// MatchEntry is the direct beam assigned to one data run.
type MatchEntry struct {
	Run        string `json:"run"`
	DirectBeam string `json:"direct_beam,omitempty"`
	Tier       string `json:"tier"`
}

// MatchResult lists the direct-beam assignment of every data run.
type MatchResult struct {
	Name        string       `json:"name"`
	DirectBeams []string     `json:"direct_beams"`
	Matches     []MatchEntry `json:"matches"`
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "match <manifest>",
		Short: "Show the direct beam chosen for each data run",
		Long: `Load a manifest and report which direct beam normalizes each data
run, and how it was chosen:

  geometry    - wavelength and slit widths within tolerance
  wavelength  - only the wavelength within tolerance
  manual      - set explicitly by the manifest
  none        - no compatible direct beam

Examples:
  reflred match film.yaml
  reflred match film.yaml --config reduction.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Manifest = args[0]
			return runMatch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "configuration file (.cue, .yaml or .yml)")

	return cmd
}

func runMatch(opts *MatchOptions, cmd *cobra.Command) error {
	setupLogging(cmd.ErrOrStderr(), opts.Verbose)
	f := newFormatter(cmd, opts.RootOptions)

	w, err := openWorkspace(opts.workspaceOptions)
	if err != nil {
		return err
	}
	defer w.Close()

	report, err := w.session.LoadManifest(cmd.Context(), w.manifest, nil)
	if err != nil {
		return WrapExitError(ExitFailure, "matching interrupted", err)
	}

	result := MatchResult{
		Name:        w.manifest.Name,
		DirectBeams: keyStrings(report.DirectBeams),
		Matches:     []MatchEntry{},
	}
	for _, key := range slices.Concat(report.Data, report.Rejected) {
		run := w.session.Run(key)
		if run == nil {
			continue
		}
		result.Matches = append(result.Matches, MatchEntry{
			Run:        string(key),
			DirectBeam: run.Normalization.String(),
			Tier:       matchTier(w.session, run),
		})
	}

	if opts.Format == "json" {
		return f.Success(result)
	}
	return writeMatchText(f.Writer, result)
}

// matchTier reports how run's normalization relates to the best
// candidate in the direct-beam list.
func matchTier(s *session.Session, run *ir.Run) string {
	if run.Normalization.IsZero() {
		return match.TierNone.String()
	}
	ch, ok := run.FirstChannel()
	if !ok {
		return TierManual
	}
	var candidates []match.Candidate
	for _, db := range s.DirectBeamList() {
		dbCh, ok := db.FirstChannel()
		if !ok {
			continue
		}
		candidates = append(candidates, match.Candidate{Run: db.Numbers, Channel: dbCh})
	}
	best, ok := match.Best(match.Candidate{Run: run.Numbers, Channel: ch}, candidates, s.Config().Tolerance)
	if !ok || !best.Run.Equal(run.Normalization) {
		return TierManual
	}
	return best.Tier.String()
}

func writeMatchText(w io.Writer, result MatchResult) error {
	fmt.Fprintf(w, "Direct-beam matches: %s\n", result.Name)
	for _, m := range result.Matches {
		if _, err := fmt.Fprintf(w, "  %s  direct_beam=%s  tier=%s\n", m.Run, orDash(m.DirectBeam), m.Tier); err != nil {
			return err
		}
	}
	return nil
}
