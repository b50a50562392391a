package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/viniciuscfreitas/gtdflow/internal/app"
	"github.com/viniciuscfreitas/gtdflow/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Database   string // overrides config database when set
	ConfigPath string

	// AppOptions are appended when opening the app. Tests use them to pin
	// the clock and ID generator.
	AppOptions []app.Option
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the gtdflow CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gtdflow",
		Short: "gtdflow - inbox, quadrants and focus in one store",
		Long: "Capture work into a GTD inbox, let actionable items flow into an " +
			"Eisenhower matrix, and keep both views in sync with undoable history.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config file (default ~/.gtdflow/config.yaml)")

	// Add subcommands
	cmd.AddCommand(NewCaptureCommand(opts))
	cmd.AddCommand(NewProcessCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewCompleteCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewFocusCommand(opts))
	cmd.AddCommand(NewObjectiveCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewUndoCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewSuggestCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// open loads configuration, applies flag overrides, installs the logger and
// opens the app. The caller must Close the returned app.
func (o *RootOptions) open(cmd *cobra.Command, f *OutputFormatter) (*app.App, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, f.Fail("failed to load config", err)
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}

	logger, err := newLogger(cfg, o.Verbose, cmd.ErrOrStderr())
	if err != nil {
		return nil, f.Fail("invalid config", err)
	}
	slog.SetDefault(logger)

	f.VerboseLog("Opening database: %s", cfg.Database)

	appOpts := append([]app.Option{app.WithLogger(logger)}, o.AppOptions...)
	a, err := app.Open(cfg, appOpts...)
	if err != nil {
		return nil, f.Fail("failed to open database", err)
	}
	return a, nil
}

// newLogger returns a text logger on w at the configured level, or Debug
// when verbose.
func newLogger(cfg *config.Config, verbose bool, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}
