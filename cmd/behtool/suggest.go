package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Comcast/bearings/registry"
	"github.com/spf13/cobra"
)

func newSuggestCommand(opts *rootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:          "suggest TEXT ...",
		Short:        "Find behaviors suggested for a use case",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			bs, err := loadPath(dir)
			if err != nil {
				return err
			}
			reg := registry.NewBuilder().Add(bs...).Build()

			out := cmd.OutOrStdout()
			found := reg.FindForUseCase(strings.Join(args, " "))

			if opts.JSON {
				names := make([]string, 0, len(found))
				for _, b := range found {
					names = append(names, b.Name)
				}
				bs, err := json.MarshalIndent(names, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\n", bs)
				return nil
			}

			if 0 == len(found) {
				fmt.Fprintf(out, "no behaviors suggested\n")
				return nil
			}
			for _, b := range found {
				fmt.Fprintf(out, "%s (%s): %s\n",
					b.Name, b.Category, strings.Join(b.SuggestedFor, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "catalog", ".", "behavior file or directory to search")

	return cmd
}
