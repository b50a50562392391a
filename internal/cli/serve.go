package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/viniciuscfreitas/gtdflow/internal/api"
)

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API over HTTP",
		Long: `Serve every gtdflow operation as JSON under /api.

The server holds the database lock until it stops, so other gtdflow
commands against the same database fail while it runs.

Example:
  gtdflow serve --addr 127.0.0.1:7420`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)

			a, err := opts.open(cmd, f)
			if err != nil {
				return err
			}
			defer a.Close()

			if !opts.Verbose {
				gin.SetMode(gin.ReleaseMode)
			}
			if addr == "" {
				addr = a.Config.API.Addr
			}

			// Set up context with signal handling
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan) // Prevent signal handler leak

			go func() {
				select {
				case sig := <-sigChan:
					slog.Info("received signal, shutting down", "signal", sig)
					cancel()
				case <-ctx.Done():
					// Parent context cancelled (e.g., from test)
				}
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s/api\n", addr)
			fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

			if err := api.NewServer(a).Run(ctx, addr); err != nil {
				return f.Fail("server error", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config api.addr)")
	return cmd
}
