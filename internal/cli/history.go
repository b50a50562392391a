package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/viniciuscfreitas/gtdflow/internal/history"
	"github.com/viniciuscfreitas/gtdflow/internal/record"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	var kindFlag, id string
	var undoable bool
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent actions, newest first",
		Long: `Show the actions recorded within the history window, newest first.

With --undoable, list only actions that can still be undone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)

			var filter history.Filter
			if kindFlag != "" {
				kind, err := parseKind(kindFlag, false)
				if err != nil {
					return usageError(f, err)
				}
				filter.Kind = kind
			}
			filter.ID = id

			a, err := opts.open(cmd, f)
			if err != nil {
				return err
			}
			defer a.Close()

			var entries []record.HistoryEntry
			if undoable {
				entries, err = a.Ledger.UndoableActions(cmd.Context(), limit)
			} else {
				entries, err = a.Ledger.RecentHistory(cmd.Context(), filter)
				if err == nil && limit > 0 && len(entries) > limit {
					entries = entries[:limit]
				}
			}
			if err != nil {
				return f.Fail("history failed", err)
			}

			return f.Result(nonNil(entries), func(w io.Writer) {
				for _, e := range entries {
					mark := " "
					if e.Undoable() {
						mark = "*"
					}
					fmt.Fprintf(w, "%s %s  %s  %-13s %s\n", mark, e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Action, e.Description)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&kindFlag, "kind", "k", "", "only entries for this record kind (ignored with --undoable)")
	cmd.Flags().StringVar(&id, "id", "", "only entries for this record (ignored with --undoable)")
	cmd.Flags().BoolVar(&undoable, "undoable", false, "only actions that can still be undone")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of entries (0 = all)")
	return cmd
}

// NewUndoCommand creates the undo command.
func NewUndoCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <history-id>",
		Short: "Undo a recorded action",
		Long: `Undo a recorded action by restoring the state captured before it.
Each action can be undone once.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)

			a, err := opts.open(cmd, f)
			if err != nil {
				return err
			}
			defer a.Close()

			e, err := a.Engine.Undo(cmd.Context(), args[0])
			if err != nil {
				return f.Fail("undo failed", err)
			}

			return f.Result(e, func(w io.Writer) {
				fmt.Fprintf(w, "Undid %s: %s\n", e.ID, e.Description)
			})
		},
	}
}
