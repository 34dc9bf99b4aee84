package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/reflred/internal/ir"
)

// RunsEntry is one parsed run-number expression.
type RunsEntry struct {
	Expression string `json:"expression"`
	Numbers    []int  `json:"numbers"`
	Short      string `json:"short"`
	Long       string `json:"long"`
	Statement  string `json:"statement"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs <expression>...",
		Short: "Expand run-number expressions",
		Long: `Parse run-number expressions and print their short, long and
English forms.

Terms are joined by '+'; each term is a run number or an inclusive range.

Examples:
  reflred runs 24945
  reflred runs "7:10+3:5+1"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(rootOpts, cmd, args)
		},
	}
	return cmd
}

func runRuns(opts *RootOptions, cmd *cobra.Command, exprs []string) error {
	f := newFormatter(cmd, opts)

	entries := make([]RunsEntry, 0, len(exprs))
	for _, expr := range exprs {
		numbers, err := ir.ParseRunNumbers(expr)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid run expression", err)
		}
		entries = append(entries, RunsEntry{
			Expression: expr,
			Numbers:    numbers,
			Short:      numbers.Short(),
			Long:       numbers.Long(),
			Statement:  numbers.Statement(),
		})
	}

	if opts.Format == "json" {
		return f.Success(entries)
	}
	return writeRunsText(f.Writer, entries)
}

func writeRunsText(w io.Writer, entries []RunsEntry) error {
	for _, e := range entries {
		fmt.Fprintln(w, e.Expression)
		fmt.Fprintf(w, "  short:     %s\n", e.Short)
		fmt.Fprintf(w, "  long:      %s\n", e.Long)
		if _, err := fmt.Fprintf(w, "  statement: %s\n", e.Statement); err != nil {
			return err
		}
	}
	return nil
}
