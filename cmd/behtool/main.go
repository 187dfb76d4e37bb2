// behtool works with behavior catalog files: linting, statistics,
// graph rendering, HTML docs, and use-case search.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	// JSON switches report-style subcommands to JSON output.
	JSON bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "behtool",
		Short:        "Work with behavior files",
		Long:         "behtool lints, summarizes, graphs, and documents behavior files.",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "emit JSON instead of text")

	cmd.AddCommand(newLintCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))
	cmd.AddCommand(newGraphCommand())
	cmd.AddCommand(newDocCommand())
	cmd.AddCommand(newSuggestCommand(opts))

	return cmd
}
