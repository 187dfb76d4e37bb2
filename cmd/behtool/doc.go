package main

import (
	"fmt"
	"io"
	"os"

	"github.com/Comcast/bearings/core"
	"github.com/Comcast/bearings/tools"
	"github.com/spf13/cobra"
)

func newDocCommand() *cobra.Command {
	var (
		outfile string
		css     []string
		graph   bool
	)

	cmd := &cobra.Command{
		Use:          "doc FILE",
		Short:        "Render a behavior as an HTML page",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadFile(args[0])
			if err != nil {
				return err
			}
			if errs := core.Validate(b); 0 < len(errs) {
				return fmt.Errorf("%s does not validate: %s", b.Name, errs[0])
			}

			var w io.Writer = cmd.OutOrStdout()
			if "" != outfile {
				f, err := os.Create(outfile)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			return tools.RenderBehaviorPage(b, w, css, graph)
		},
	}

	cmd.Flags().StringVar(&outfile, "out", "", "output filename (default stdout)")
	cmd.Flags().StringSliceVar(&css, "css", nil, "CSS links for the page")
	cmd.Flags().BoolVar(&graph, "graph", false, "embed a Mermaid graph")

	return cmd
}
