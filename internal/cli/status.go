package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/viniciuscfreitas/gtdflow/internal/app"
)

// statusView is the JSON shape of the status command.
type statusView struct {
	Database    string           `json:"database"`
	Collections []app.Collection `json:"collections"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the database and what it holds",
		Long: `Show the database path and, for every stored collection, how many
records it holds and how many times it has been written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)

			a, err := opts.open(cmd, f)
			if err != nil {
				return err
			}
			defer a.Close()

			cols, err := a.Collections(cmd.Context())
			if err != nil {
				return f.Fail("status failed", err)
			}
			view := statusView{Database: a.Config.Database, Collections: nonNil(cols)}

			return f.Result(view, func(w io.Writer) {
				fmt.Fprintf(w, "Database: %s\n", view.Database)
				if len(cols) == 0 {
					fmt.Fprintln(w, "No collections written yet")
					return
				}
				for _, c := range cols {
					fmt.Fprintf(w, "  %-16s %4d record(s)  revision %d\n", c.Key, c.Records, c.Revision)
				}
			})
		},
	}
}
