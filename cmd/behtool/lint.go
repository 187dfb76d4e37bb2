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

	"github.com/Comcast/bearings/affinity"
	"github.com/Comcast/bearings/core"
	"github.com/Comcast/bearings/registry"
	"github.com/spf13/cobra"
)

// A lintReport is what the lint subcommand found.  Problems are
// validation errors; warnings are affinity mismatches between a
// behavior's events and the components it's suggested for.
type lintReport struct {
	Checked  int                 `json:"checked"`
	Problems map[string][]string `json:"problems,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
}

func newLintCommand(opts *rootOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:          "lint FILE_OR_DIR ...",
		Short:        "Validate behavior files",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(cmd.OutOrStdout(), opts, args, strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")

	return cmd
}

func runLint(out io.Writer, opts *rootOptions, paths []string, strict bool) error {
	bs, err := loadPaths(paths)
	if err != nil {
		return err
	}

	reg := registry.NewBuilder().Add(bs...).Build()

	report := &lintReport{
		Checked:  len(bs),
		Problems: make(map[string][]string),
	}
	for name, errs := range reg.Rejected() {
		for _, err := range errs {
			report.Problems[name] = append(report.Problems[name], err.Error())
		}
	}
	for _, b := range reg.All() {
		report.Warnings = append(report.Warnings, affinityWarnings(b)...)
	}

	if opts.JSON {
		if 0 == len(report.Problems) {
			report.Problems = nil
		}
		bs, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", bs)
	} else {
		names := make([]string, 0, len(report.Problems))
		for name := range report.Problems {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for _, problem := range report.Problems[name] {
				fmt.Fprintf(out, "error %s: %s\n", name, problem)
			}
		}
		for _, warning := range report.Warnings {
			fmt.Fprintf(out, "warning %s\n", warning)
		}
		fmt.Fprintf(out, "checked %d behavior(s): %d problem(s), %d warning(s)\n",
			report.Checked, len(report.Problems), len(report.Warnings))
	}

	if 0 < len(report.Problems) {
		return fmt.Errorf("%d behavior(s) failed validation", len(report.Problems))
	}
	if strict && 0 < len(report.Warnings) {
		return fmt.Errorf("%d warning(s)", len(report.Warnings))
	}

	return nil
}

// affinityWarnings checks a behavior's events against the default
// action-affinity matrix for each component the behavior is
// suggested for.
func affinityWarnings(b *core.Behavior) []string {
	if b.Machine == nil || 0 == len(b.SuggestedFor) {
		return nil
	}
	actions := make([]affinity.Action, 0, len(b.Machine.Events))
	for _, event := range b.Machine.Events {
		actions = append(actions, affinity.Action{Event: event})
	}
	matrix := affinity.Default()
	var acc []string
	for _, component := range b.SuggestedFor {
		for _, v := range matrix.ValidateActions(actions, component) {
			acc = append(acc, fmt.Sprintf("%s: %s", b.Name, v.Error()))
		}
	}
	return acc
}
