package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/viniciuscfreitas/gtdflow/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Command failures have already been reported by the formatter;
		// flag and argument errors have not.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
