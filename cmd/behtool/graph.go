package main

import (
	"fmt"
	"io"
	"os"

	"github.com/Comcast/bearings/tools"
	"github.com/spf13/cobra"
)

func newGraphCommand() *cobra.Command {
	var (
		format  string
		outfile string
		current string
		png     string
		guards  bool
	)

	cmd := &cobra.Command{
		Use:          "graph FILE",
		Short:        "Render a behavior's machine as a graph",
		Long:         "Render a behavior's machine in Graphviz dot or Mermaid syntax.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadFile(args[0])
			if err != nil {
				return err
			}

			if "" != png {
				filename, err := tools.PNG(b, png, current)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", filename)
				return nil
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

			switch format {
			case "dot":
				return tools.Dot(b, w, current)
			case "mermaid":
				return tools.Mermaid(b, w, &tools.MermaidOpts{
					ShowGuards: guards,
					FinalFill:  "#bcf2db",
				})
			default:
				return fmt.Errorf("unknown format \"%s\"", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "dot", "dot or mermaid")
	cmd.Flags().StringVar(&outfile, "out", "", "output filename (default stdout)")
	cmd.Flags().StringVar(&current, "current", "", "state to highlight")
	cmd.Flags().StringVar(&png, "png", "", "write BASENAME.dot and BASENAME.png (needs graphviz)")
	cmd.Flags().BoolVar(&guards, "guards", true, "show guards on mermaid edges")

	return cmd
}
