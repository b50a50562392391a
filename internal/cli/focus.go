package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/viniciuscfreitas/gtdflow/internal/engine"
)

// NewFocusCommand creates the focus command group.
func NewFocusCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "focus",
		Short: "Start and stop focus sessions",
	}
	cmd.AddCommand(newFocusStartCommand(opts))
	cmd.AddCommand(newFocusStopCommand(opts))
	return cmd
}

func newFocusStartCommand(opts *RootOptions) *cobra.Command {
	var minutes int

	cmd := &cobra.Command{
		Use:   "start [task-id]",
		Short: "Start a focus session, optionally on a task",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)

			var taskID string
			if len(args) == 1 {
				taskID = args[0]
			}

			a, err := opts.open(cmd, f)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.Engine.StartFocus(cmd.Context(), taskID, minutes)
			if err != nil {
				return f.Fail("focus start failed", err)
			}

			return f.Result(s, func(w io.Writer) {
				fmt.Fprintf(w, "Started focus session %s (%d minutes)%s\n", s.ID, s.PlannedMinutes, suffix(s.TaskID))
			})
		},
	}

	cmd.Flags().IntVarP(&minutes, "minutes", "m", engine.DefaultFocusMinutes, "planned length in minutes")
	return cmd
}

func newFocusStopCommand(opts *RootOptions) *cobra.Command {
	var interrupted bool

	cmd := &cobra.Command{
		Use:   "stop <session-id>",
		Short: "Stop a running focus session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)

			a, err := opts.open(cmd, f)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.Engine.StopFocus(cmd.Context(), args[0], interrupted)
			if err != nil {
				return f.Fail("focus stop failed", err)
			}

			return f.Result(s, func(w io.Writer) {
				fmt.Fprintf(w, "Focus session %s %s\n", s.ID, s.Status)
			})
		},
	}

	cmd.Flags().BoolVar(&interrupted, "interrupted", false, "record the session as interrupted")
	return cmd
}

// NewObjectiveCommand creates the objective command group.
func NewObjectiveCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "objective",
		Short: "Track longer-running objectives",
	}
	cmd.AddCommand(newObjectiveAddCommand(opts))
	cmd.AddCommand(newObjectiveProgressCommand(opts))
	return cmd
}

func newObjectiveAddCommand(opts *RootOptions) *cobra.Command {
	var description, target string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add an objective",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)

			targetAt, err := parseDate(target)
			if err != nil {
				return usageError(f, err)
			}

			a, err := opts.open(cmd, f)
			if err != nil {
				return err
			}
			defer a.Close()

			o, err := a.Engine.AddObjective(cmd.Context(), strings.Join(args, " "), description, targetAt)
			if err != nil {
				return f.Fail("objective add failed", err)
			}

			return f.Result(o, func(w io.Writer) {
				fmt.Fprintf(w, "Added objective %s: %s\n", o.ID, o.Title)
			})
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "longer description")
	cmd.Flags().StringVar(&target, "target", "", "target date (YYYY-MM-DD or RFC 3339)")
	return cmd
}

func newObjectiveProgressCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <id> <percent>",
		Short: "Set the progress of an objective",
		Long: `Set the progress of an objective in percent. Values are clamped to
0..100; reaching 100 marks the objective achieved.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)

			progress, err := strconv.Atoi(strings.TrimSuffix(args[1], "%"))
			if err != nil {
				return usageError(f, fmt.Errorf("invalid percent %q", args[1]))
			}

			a, err := opts.open(cmd, f)
			if err != nil {
				return err
			}
			defer a.Close()

			o, err := a.Engine.SetObjectiveProgress(cmd.Context(), args[0], progress)
			if err != nil {
				return f.Fail("objective progress failed", err)
			}

			return f.Result(o, func(w io.Writer) {
				fmt.Fprintf(w, "Objective %s at %d%% (%s)\n", o.ID, o.Progress, o.Status)
			})
		},
	}
}
