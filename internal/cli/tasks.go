package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/viniciuscfreitas/gtdflow/internal/engine"
	"github.com/viniciuscfreitas/gtdflow/internal/record"
)

// taskFlags are the task attributes shared by capture and process.
type taskFlags struct {
	notes    string
	context  string
	area     string
	due      string
	effort   string
	estimate int
	labels   []string
}

func (tf *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&tf.notes, "notes", "", "free-form notes")
	cmd.Flags().StringVar(&tf.context, "context", "", "situational context (e.g. @home, work)")
	cmd.Flags().StringVar(&tf.area, "area", "", "area of responsibility")
	cmd.Flags().StringVar(&tf.due, "due", "", "due date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&tf.effort, "effort", "", "effort (low|medium|high)")
	cmd.Flags().IntVar(&tf.estimate, "estimate", 0, "estimated minutes")
	cmd.Flags().StringSliceVar(&tf.labels, "label", nil, "label (repeatable)")
}

// NewCaptureCommand creates the capture command.
func NewCaptureCommand(opts *RootOptions) *cobra.Command {
	var tf taskFlags

	cmd := &cobra.Command{
		Use:   "capture <title>",
		Short: "Capture a new item into the inbox",
		Long: `Capture a new item into the GTD inbox.

Inbox items are not actionable and never appear in the Eisenhower matrix
until they are processed.

Example:
  gtdflow capture "Call vendor about invoice" --context work`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)

			due, err := parseDate(tf.due)
			if err != nil {
				return usageError(f, err)
			}
			effort, err := parseEffort(tf.effort)
			if err != nil {
				return usageError(f, err)
			}

			a, err := opts.open(cmd, f)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.Engine.Capture(cmd.Context(), record.TriageTask{
				Title:           strings.Join(args, " "),
				Notes:           tf.notes,
				Context:         tf.context,
				Area:            tf.area,
				DueAt:           due,
				Effort:          effort,
				EstimateMinutes: tf.estimate,
				Labels:          tf.labels,
			})
			if err != nil {
				return f.Fail("capture failed", err)
			}

			return f.Result(t, func(w io.Writer) {
				fmt.Fprintf(w, "Captured %s: %s\n", t.ID, t.Title)
			})
		},
	}

	tf.register(cmd)
	return cmd
}

// processView is the JSON shape of a processed inbox item.
type processView struct {
	Task           record.TriageTask     `json:"task"`
	Classification engine.Classification `json:"classification"`
	Quadrant       *record.QuadrantTask  `json:"quadrant,omitempty"`
}

// NewProcessCommand creates the process command.
func NewProcessCommand(opts *RootOptions) *cobra.Command {
	var tf taskFlags
	var delegate string

	cmd := &cobra.Command{
		Use:   "process <id>",
		Short: "Turn an inbox item into an actionable step",
		Long: `Process an inbox item: fill in its details and classify it.

Items that land in the delegation quadrant become "waiting", everything else
becomes "next". With engine.auto_import enabled the item is imported into
the Eisenhower matrix immediately.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)

			due, err := parseDate(tf.due)
			if err != nil {
				return usageError(f, err)
			}
			effort, err := parseEffort(tf.effort)
			if err != nil {
				return usageError(f, err)
			}

			a, err := opts.open(cmd, f)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			t, c, err := a.Engine.ProcessInboxItem(ctx, args[0], engine.Processing{
				Notes:           tf.notes,
				Context:         tf.context,
				Area:            tf.area,
				DueAt:           due,
				Effort:          effort,
				EstimateMinutes: tf.estimate,
				DelegatedTo:     delegate,
				Labels:          tf.labels,
			})
			if err != nil {
				return f.Fail("process failed", err)
			}

			view := processView{Task: t, Classification: c}
			if q, ok, err := a.Engine.PairedQuadrant(ctx, t.ID); err == nil && ok {
				view.Quadrant = &q
			}

			return f.Result(view, func(w io.Writer) {
				fmt.Fprintf(w, "Processed %s as %s (%s, urgency %d, importance %d)\n",
					t.ID, t.Kind, c.Quadrant, c.Urgency, c.Importance)
				if view.Quadrant != nil {
					fmt.Fprintf(w, "Imported as eisenhower task %s\n", view.Quadrant.ID)
				}
			})
		},
	}

	tf.register(cmd)
	cmd.Flags().StringVar(&delegate, "delegate", "", "person the item is delegated to")
	return cmd
}

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	var kindFlag string
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records of one kind",
		Long: `List records of one kind: gtd, eisenhower, focus or objective.

Completed tasks, finished sessions and closed objectives are hidden unless
--all is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)

			kind, err := parseKind(kindFlag, false)
			if err != nil {
				return usageError(f, err)
			}

			a, err := opts.open(cmd, f)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			switch kind {
			case record.KindTriage:
				items, err := a.Stores.Triage.Find(ctx, func(t record.TriageTask) bool {
					return all || !t.IsCompleted()
				})
				if err != nil {
					return f.Fail("list failed", err)
				}
				return f.Result(nonNil(items), func(w io.Writer) {
					for _, t := range items {
						fmt.Fprintf(w, "%s  %-9s %-9s %s%s\n", t.ID, t.Kind, t.Status, t.Title, suffix(t.Context))
					}
				})
			case record.KindQuadrant:
				items, err := a.Stores.Quadrant.Find(ctx, func(q record.QuadrantTask) bool {
					return all || !q.IsCompleted()
				})
				if err != nil {
					return f.Fail("list failed", err)
				}
				return f.Result(nonNil(items), func(w io.Writer) {
					for _, q := range items {
						fmt.Fprintf(w, "%s  %-24s u%d/i%d %-11s %s\n", q.ID, q.Quadrant, q.Urgency, q.Importance, q.Status, q.Title)
					}
				})
			case record.KindFocus:
				items, err := a.Stores.Focus.Find(ctx, func(s record.FocusSession) bool {
					return all || s.IsRunning()
				})
				if err != nil {
					return f.Fail("list failed", err)
				}
				return f.Result(nonNil(items), func(w io.Writer) {
					for _, s := range items {
						fmt.Fprintf(w, "%s  %-11s %3dm started %s%s\n", s.ID, s.Status, s.PlannedMinutes, formatDate(s.StartedAt), suffix(s.TaskID))
					}
				})
			default:
				items, err := a.Stores.Objective.Find(ctx, func(o record.Objective) bool {
					return all || o.Status == record.ObjectiveActive
				})
				if err != nil {
					return f.Fail("list failed", err)
				}
				return f.Result(nonNil(items), func(w io.Writer) {
					for _, o := range items {
						fmt.Fprintf(w, "%s  %3d%% %-9s %s\n", o.ID, o.Progress, o.Status, o.Title)
					}
				})
			}
		},
	}

	cmd.Flags().StringVarP(&kindFlag, "kind", "k", "gtd", "record kind (gtd|eisenhower|focus|objective)")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include completed and closed records")
	return cmd
}

// completeView is the JSON shape of a completion change.
type completeView struct {
	Triage    *record.TriageTask    `json:"gtd,omitempty"`
	Quadrant  *record.QuadrantTask  `json:"eisenhower,omitempty"`
	Changed   bool                  `json:"changed"`
	Sessions  []record.FocusSession `json:"sessions,omitempty"`
	HistoryID string                `json:"history_id,omitempty"`
}

// NewCompleteCommand creates the complete command.
func NewCompleteCommand(opts *RootOptions) *cobra.Command {
	var kindFlag string
	var reopen bool

	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete a task and its pair",
		Long: `Mark a task completed. The paired record in the other view is
completed too, and active focus sessions on either are finalized.

Use --undo-completion to reopen a completed task.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)

			kind, err := parseKind(kindFlag, true)
			if err != nil {
				return usageError(f, err)
			}

			a, err := opts.open(cmd, f)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Engine.CompleteTask(cmd.Context(), args[0], kind, !reopen)
			if err != nil {
				return f.Fail("complete failed", err)
			}

			view := completeView{
				Triage:   res.Triage,
				Quadrant: res.Quadrant,
				Changed:  res.Changed,
				Sessions: res.Sessions,
			}
			if res.Entry != nil {
				view.HistoryID = res.Entry.ID
			}
			if res.PairErr != nil {
				f.Warn("pair not updated: %v", res.PairErr)
			}

			verb := "Completed"
			if reopen {
				verb = "Reopened"
			}
			return f.Result(view, func(w io.Writer) {
				if !res.Changed {
					fmt.Fprintf(w, "%s %s: nothing to do\n", kind, args[0])
					return
				}
				fmt.Fprintf(w, "%s %s %s\n", verb, kind, args[0])
				if kind == record.KindTriage && res.Quadrant != nil {
					fmt.Fprintf(w, "  pair: eisenhower %s (%s)\n", res.Quadrant.ID, res.Quadrant.Status)
				}
				if kind == record.KindQuadrant && res.Triage != nil {
					fmt.Fprintf(w, "  pair: gtd %s (%s)\n", res.Triage.ID, res.Triage.Status)
				}
				if n := len(res.Sessions); n > 0 {
					fmt.Fprintf(w, "  finalized %d focus session(s)\n", n)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&kindFlag, "kind", "k", "gtd", "task kind (gtd|eisenhower)")
	cmd.Flags().BoolVar(&reopen, "undo-completion", false, "reopen instead of complete")
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(opts *RootOptions) *cobra.Command {
	var kindFlag string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task and its pair",
		Long: `Delete a task. The paired record in the other view is deleted too
and focus sessions on either are interrupted. Both deletions are undoable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)

			kind, err := parseKind(kindFlag, true)
			if err != nil {
				return usageError(f, err)
			}

			a, err := opts.open(cmd, f)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Engine.DeleteTask(cmd.Context(), args[0], kind)
			if err != nil {
				return f.Fail("delete failed", err)
			}

			if res.PairErr != nil {
				f.Warn("pair not deleted: %v", res.PairErr)
			}
			return f.Result(res, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted %s %s\n", res.Kind, res.ID)
				if res.PairID != "" {
					fmt.Fprintf(w, "  pair: %s %s\n", res.PairKind, res.PairID)
				}
				if n := len(res.Interrupted); n > 0 {
					fmt.Fprintf(w, "  interrupted %d focus session(s)\n", n)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&kindFlag, "kind", "k", "gtd", "task kind (gtd|eisenhower)")
	return cmd
}

// NewImportCommand creates the import command.
func NewImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import actionable GTD items into the Eisenhower matrix",
		Long: `Create an Eisenhower task for every active next or waiting item that
has none yet. Running it again imports nothing new.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)

			a, err := opts.open(cmd, f)
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.Engine.AutoImport(cmd.Context())
			if err != nil {
				return f.Fail("import failed", err)
			}

			return f.Result(nonNil(created), func(w io.Writer) {
				fmt.Fprintf(w, "Imported %d task(s)\n", len(created))
				for _, q := range created {
					fmt.Fprintf(w, "  %s  %-24s %s\n", q.ID, q.Quadrant, q.Title)
				}
			})
		},
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func suffix(s string) string {
	if s == "" {
		return ""
	}
	return "  " + s
}
