/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Comcast/bearings/registry"
	"github.com/Comcast/bearings/tools"
	"github.com/spf13/cobra"
)

func newStatsCommand(opts *rootOptions) *cobra.Command {
	var detail bool

	cmd := &cobra.Command{
		Use:          "stats FILE_OR_DIR ...",
		Short:        "Summarize behavior files",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.OutOrStdout(), opts, args, detail)
		},
	}

	cmd.Flags().BoolVar(&detail, "detail", false, "per-behavior analysis")

	return cmd
}

func runStats(out io.Writer, opts *rootOptions, paths []string, detail bool) error {
	bs, err := loadPaths(paths)
	if err != nil {
		return err
	}

	reg := registry.NewBuilder().Add(bs...).Build()
	stats := reg.Stats()

	var analyses []*tools.Analysis
	if detail {
		for _, b := range reg.All() {
			analyses = append(analyses, tools.Analyze(b))
		}
	}

	if opts.JSON {
		var doc interface{} = stats
		if detail {
			doc = map[string]interface{}{
				"stats":     stats,
				"behaviors": analyses,
			}
		}
		bs, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", bs)
		return nil
	}

	fmt.Fprintf(out, "behaviors:   %d\n", stats.Behaviors)
	if 0 < stats.Rejected {
		fmt.Fprintf(out, "rejected:    %d\n", stats.Rejected)
	}
	fmt.Fprintf(out, "categories:  %s\n", categoryLine(stats.ByCategory))
	fmt.Fprintf(out, "states:      %d\n", stats.States)
	fmt.Fprintf(out, "events:      %d\n", stats.Events)
	fmt.Fprintf(out, "transitions: %d\n", stats.Transitions)
	fmt.Fprintf(out, "entities:    %d\n", stats.Entities)
	fmt.Fprintf(out, "ticks:       %d\n", stats.Ticks)

	for _, a := range analyses {
		fmt.Fprintf(out, "\n%s: states=%d events=%d transitions=%d guards=%d effects=%d ticks=%d\n",
			a.Behavior, a.States, a.Events, a.Transitions, a.Guards, a.Effects, a.Ticks)
		if 0 < len(a.Terminal) {
			fmt.Fprintf(out, "  terminal:      %s\n", strings.Join(a.Terminal, ", "))
		}
		if 0 < len(a.Unreachable) {
			fmt.Fprintf(out, "  unreachable:   %s\n", strings.Join(a.Unreachable, ", "))
		}
		if 0 < len(a.UnusedEvents) {
			fmt.Fprintf(out, "  unused events: %s\n", strings.Join(a.UnusedEvents, ", "))
		}
		if 0 < len(a.Ops) {
			fmt.Fprintf(out, "  ops:           %s\n", strings.Join(a.Ops, ", "))
		}
	}

	return nil
}

func categoryLine(byCategory map[string]int) string {
	if 0 == len(byCategory) {
		return "none"
	}
	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	parts := make([]string, 0, len(categories))
	for _, category := range categories {
		parts = append(parts, fmt.Sprintf("%s=%d", category, byCategory[category]))
	}
	return strings.Join(parts, " ")
}
