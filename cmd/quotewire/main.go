package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/quotewire/quotewire/internal/cli"
)

func main() {
	// Diagnostics go to stderr so JSON output on stdout stays parseable.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
