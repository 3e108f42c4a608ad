// playgroundd is the playground agent control-plane daemon. It owns the
// tool runtime (plan gate, failure breaker, result cache, batch
// coordinator) and exposes it to the chat transport over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	root := &cobra.Command{
		Use:   "playgroundd",
		Short: "Hathor playground agent control plane",
		Long: `playgroundd governs how the playground agent executes tools:
plan-gated admission, per-call failure breaking, result caching,
and batch coordination, with the sandbox service doing the actual work.`,
		SilenceUsage: true,
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newVersionCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("playgroundd %s (%s)\n", version, commit)
		},
	}
}
