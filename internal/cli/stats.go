package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/viniciuscfreitas/gtdflow/internal/record"
	"github.com/viniciuscfreitas/gtdflow/internal/stats"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show completion counts, streak and objective progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)

			a, err := opts.open(cmd, f)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.Stats.Summary(cmd.Context(), a.Clock.Now())
			if err != nil {
				return f.Fail("stats failed", err)
			}

			return f.Result(s, func(w io.Writer) {
				fmt.Fprintf(w, "Completed today:      %d\n", s.CompletedToday)
				fmt.Fprintf(w, "Completed this week:  %d\n", s.CompletedThisWeek)
				fmt.Fprintf(w, "Completed total:      %d\n", s.CompletedTotal)
				fmt.Fprintf(w, "Streak:               %d day(s)\n", s.Streak)
				fmt.Fprintf(w, "Active objectives:    %d (%.0f%% average)\n", s.ActiveObjectives, s.ObjectiveProgress)
				fmt.Fprintf(w, "Active focus:         %d\n", s.ActiveFocusSessions)

				quadrants := make([]string, 0, len(s.OpenByQuadrant))
				for q := range s.OpenByQuadrant {
					quadrants = append(quadrants, string(q))
				}
				sort.Strings(quadrants)
				for _, q := range quadrants {
					fmt.Fprintf(w, "Open %-24s %d\n", q+":", s.OpenByQuadrant[record.Quadrant(q)])
				}
			})
		},
	}
}

// NewSuggestCommand creates the suggest command.
func NewSuggestCommand(opts *RootOptions) *cobra.Command {
	var contextFlag, quadrantFlag, effortFlag string
	var limit int

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest what to work on next",
		Long: `Rank open tasks for the current situation. Tasks matching the given
context, quadrant and effort come first, then the most recently created.
Without --effort the time of day decides.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)

			quadrant, err := parseQuadrant(quadrantFlag)
			if err != nil {
				return usageError(f, err)
			}
			effort, err := parseEffort(effortFlag)
			if err != nil {
				return usageError(f, err)
			}

			a, err := opts.open(cmd, f)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.Stats.Suggest(cmd.Context(), stats.Criteria{
				Context:  contextFlag,
				Quadrant: quadrant,
				Effort:   effort,
				Now:      a.Clock.Now(),
				Limit:    limit,
			})
			if err != nil {
				return f.Fail("suggest failed", err)
			}

			return f.Result(list, func(w io.Writer) {
				if len(list) == 0 {
					fmt.Fprintln(w, "Nothing to suggest")
					return
				}
				for i, s := range list {
					fmt.Fprintf(w, "%d. %s  %s (%s)%s\n", i+1, s.ID, s.Title, s.Quadrant, suffix(s.Context))
				}
			})
		},
	}

	cmd.Flags().StringVar(&contextFlag, "context", "", "current context (e.g. @home)")
	cmd.Flags().StringVar(&quadrantFlag, "quadrant", "", "preferred quadrant")
	cmd.Flags().StringVar(&effortFlag, "effort", "", "available effort (low|medium|high)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of suggestions (0 = configured default)")
	return cmd
}
