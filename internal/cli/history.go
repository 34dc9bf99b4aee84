package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/reflred/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
}

// HistoryEvent is one journaled event.
type HistoryEvent struct {
	Seq    int64             `json:"seq"`
	Kind   string            `json:"kind"`
	Run    string            `json:"run,omitempty"`
	Detail map[string]string `json:"detail,omitempty"`
}

// HistorySession is one journaled session with its events and the labels
// of its stored composite curves.
type HistorySession struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	StartedSeq int64          `json:"started_seq"`
	CreatedAt  string         `json:"created_at"`
	Events     []HistoryEvent `json:"events"`
	Curves     []string       `json:"curves"`
}

// HistoryResult holds the journal contents.
type HistoryResult struct {
	Sessions []HistorySession `json:"sessions"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled reduction sessions",
		Long: `Print the sessions recorded in a journal, in the order they started,
with every event and the labels of the stored composite curves.

Exit codes:
  0 - Success
  2 - Command error (database not found, unknown session, etc.)

Examples:
  reflred history --db ./reflred.db
  reflred history --db ./reflred.db --session 01890a5d-ac96-774b-bcce-b302099a8057
  reflred history --db ./reflred.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "show specific session only")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	f := newFormatter(cmd, opts.RootOptions)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	sessions, err := st.ReadSessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read sessions", err)
	}
	if opts.Session != "" {
		sessions = slices.DeleteFunc(sessions, func(s store.Session) bool { return s.ID != opts.Session })
		if len(sessions) == 0 {
			return NewExitError(ExitCommandError, fmt.Sprintf("session %s not found", opts.Session))
		}
	}

	result := HistoryResult{Sessions: make([]HistorySession, 0, len(sessions))}
	for _, sess := range sessions {
		hs, err := readHistorySession(ctx, st, sess)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read session %s", sess.ID), err)
		}
		result.Sessions = append(result.Sessions, hs)
	}

	if opts.Format == "json" {
		return f.Success(result)
	}
	return writeHistoryText(f.Writer, result)
}

func readHistorySession(ctx context.Context, st *store.Store, sess store.Session) (HistorySession, error) {
	events, err := st.ReadEvents(ctx, sess.ID)
	if err != nil {
		return HistorySession{}, err
	}
	curves, err := st.ReadCurves(ctx, sess.ID)
	if err != nil {
		return HistorySession{}, err
	}

	hs := HistorySession{
		ID:         sess.ID,
		Name:       sess.Name,
		StartedSeq: sess.StartedSeq,
		CreatedAt:  sess.CreatedAt,
		Events:     make([]HistoryEvent, 0, len(events)),
		Curves:     slices.Sorted(maps.Keys(curves)),
	}
	for _, ev := range events {
		hs.Events = append(hs.Events, HistoryEvent{
			Seq:    ev.Seq,
			Kind:   ev.Kind,
			Run:    string(ev.Run),
			Detail: ev.Detail,
		})
	}
	return hs, nil
}

func writeHistoryText(w io.Writer, result HistoryResult) error {
	if len(result.Sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found in journal.")
		return err
	}

	for i, sess := range result.Sessions {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if sess.Name != "" {
			fmt.Fprintf(w, "Session %s (%s)\n", sess.ID, sess.Name)
		} else {
			fmt.Fprintf(w, "Session %s\n", sess.ID)
		}
		for _, ev := range sess.Events {
			line := fmt.Sprintf("  %d  %s", ev.Seq, ev.Kind)
			if ev.Run != "" {
				line += "  run=" + ev.Run
			}
			if len(ev.Detail) > 0 {
				line += "  " + formatDetail(ev.Detail)
			}
			fmt.Fprintln(w, line)
		}
		if len(sess.Curves) > 0 {
			if _, err := fmt.Fprintf(w, "  curves: %s\n", strings.Join(sess.Curves, ", ")); err != nil {
				return err
			}
		}
	}
	return nil
}

// formatDetail renders event detail as space-separated key=value pairs in
// key order.
func formatDetail(detail map[string]string) string {
	parts := make([]string, 0, len(detail))
	for _, k := range slices.Sorted(maps.Keys(detail)) {
		parts = append(parts, k+"="+detail[k])
	}
	return strings.Join(parts, " ")
}
