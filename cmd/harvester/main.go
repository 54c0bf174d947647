// Command harvester is the trend harvester's single binary: a cobra CLI
// exposing the one-shot/looped single-platform run, the always-on scheduler
// plus admin HTTP surface, and the offline retry-queue worker as
// subcommands sharing one configuration and wiring layer.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trendloom/harvester/internal/config"
)

// Exit codes, per the CLI contract: 0 success, 1 runtime error, 2
// configuration error, 3 proxies required but unavailable.
const (
	exitOK               = 0
	exitRuntimeError     = 1
	exitConfigError      = 2
	exitProxyUnavailable = 3
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "harvester: configuration error:", err)
		os.Exit(exitConfigError)
	}

	root := &cobra.Command{
		Use:           "harvester",
		Short:         "Multi-platform social trend harvester",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(cfg))
	root.AddCommand(newSchedulerCmd(cfg))
	root.AddCommand(newWorkerCmd(cfg))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "harvester:", err)
		os.Exit(exitCodeFor(err))
	}
}
