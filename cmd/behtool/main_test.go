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
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// run executes the tool with the given args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := bytes.NewBuffer(nil)
	cmd := newRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(bytes.NewBuffer(nil))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLintCatalog(t *testing.T) {
	out, err := run(t, "lint", "testdata/catalog")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "checked 2 behavior(s): 0 problem(s), 1 warning(s)") {
		t.Fatalf("unexpected summary: %s", out)
	}
	want := `warning std/Grid: action "SAVE" is not valid for component "entity-table" ` +
		`(valid actions: VIEW, EDIT, DELETE, SELECT, SORT, PAGE)`
	if !strings.Contains(out, want) {
		t.Fatalf("missing affinity warning: %s", out)
	}
}

func TestLintStrict(t *testing.T) {
	if _, err := run(t, "lint", "--strict", "testdata/catalog"); err == nil {
		t.Fatal("expected warnings to fail the strict lint")
	}
}

func TestLintImpureGuard(t *testing.T) {
	out, err := run(t, "lint", "testdata/impure.yaml")
	if err == nil {
		t.Fatal("expected a validation failure")
	}
	if !strings.Contains(out, "error std/Impure") {
		t.Fatalf("missing problem line: %s", out)
	}
	if !strings.Contains(out, `calls effect operator "notify"`) {
		t.Fatalf("missing guard purity message: %s", out)
	}
}

func TestLintInline(t *testing.T) {
	out, err := run(t, "lint", "testdata/inline/pinger.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "checked 1 behavior(s): 0 problem(s), 0 warning(s)") {
		t.Fatalf("inline expansion came out wrong: %s", out)
	}
}

func TestLintJSON(t *testing.T) {
	out, err := run(t, "lint", "--json", "testdata/catalog")
	if err != nil {
		t.Fatal(err)
	}
	var report lintReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatal(err)
	}
	if report.Checked != 2 {
		t.Fatal(report.Checked)
	}
	if len(report.Warnings) != 1 {
		t.Fatal(report.Warnings)
	}
}

func TestStats(t *testing.T) {
	out, err := run(t, "stats", "testdata/catalog")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"behaviors:   2",
		"categories:  data=1 interaction=1",
		"states:      3",
		"events:      4",
		"transitions: 5",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
}

func TestStatsDetail(t *testing.T) {
	out, err := run(t, "stats", "--detail", "testdata/catalog")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "std/Grid: states=1 events=3 transitions=3 guards=0 effects=3 ticks=0") {
		t.Fatalf("missing analysis line: %s", out)
	}
	if !strings.Contains(out, "ops:           persist, render") {
		t.Fatalf("missing ops line: %s", out)
	}
}

func TestStatsJSON(t *testing.T) {
	out, err := run(t, "stats", "--json", "testdata/catalog")
	if err != nil {
		t.Fatal(err)
	}
	var stats struct {
		Behaviors   int `json:"behaviors"`
		Transitions int `json:"transitions"`
	}
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Behaviors != 2 || stats.Transitions != 5 {
		t.Fatalf("bad stats: %#v", stats)
	}
}

func TestGraphDot(t *testing.T) {
	out, err := run(t, "graph", "testdata/catalog/toggle.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "digraph G {") {
		t.Fatalf("not dot: %s", out)
	}
	if !strings.Contains(out, `"Off" -> "On"`) {
		t.Fatalf("missing edge: %s", out)
	}
}

func TestGraphMermaid(t *testing.T) {
	out, err := run(t, "graph", "--format", "mermaid", "testdata/catalog/toggle.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "graph TB") {
		t.Fatalf("not mermaid: %s", out)
	}
	if !strings.Contains(out, `n1(("Off"))`) {
		t.Fatalf("missing initial node: %s", out)
	}
}

func TestGraphBadFormat(t *testing.T) {
	if _, err := run(t, "graph", "--format", "svg", "testdata/catalog/toggle.yaml"); err == nil {
		t.Fatal("expected an unknown format error")
	}
}

func TestDoc(t *testing.T) {
	out, err := run(t, "doc", "--graph", "--css", "behavior.css", "testdata/catalog/toggle.yaml")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"<title>std/Toggle</title>",
		`<link href="behavior.css" rel="stylesheet">`,
		`<div class="mermaid">`,
		"</html>",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
}

func TestDocInvalid(t *testing.T) {
	if _, err := run(t, "doc", "testdata/impure.yaml"); err == nil {
		t.Fatal("expected the doc command to refuse an invalid behavior")
	}
}

func TestSuggest(t *testing.T) {
	out, err := run(t, "suggest", "--catalog", "testdata/catalog", "toggle", "button")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "std/Toggle (interaction): button, switch") {
		t.Fatalf("missing suggestion: %s", out)
	}
}

func TestSuggestNone(t *testing.T) {
	out, err := run(t, "suggest", "--catalog", "testdata/catalog", "spreadsheet", "pivot")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "no behaviors suggested") {
		t.Fatalf("unexpected: %s", out)
	}
}
