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

package tools

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Comcast/bearings/core"
)

// MermaidOpts control Mermaid rendering.
type MermaidOpts struct {
	// ShowGuards labels guarded edges with the guard expression.
	ShowGuards bool `json:"showGuards"`

	// FinalFill is the fill color for final states.
	FinalFill string `json:"finalFill,omitempty"`
}

// Mermaid makes a Mermaid (https://mermaidjs.github.io/) input file
// for the behavior's machine.  Node ids follow state declaration
// order, so the output is stable across runs.
func Mermaid(b *core.Behavior, w io.Writer, opts *MermaidOpts) error {
	if opts == nil {
		opts = &MermaidOpts{
			ShowGuards: true,
			FinalFill:  "#bcf2db",
		}
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "graph TB\n")

	m := b.Machine
	if m == nil {
		return bw.Flush()
	}

	nids := make(map[string]string, len(m.States)+1)
	num := 0
	nid := func(name string) string {
		if id, have := nids[name]; have {
			return id
		}
		num++
		id := fmt.Sprintf("n%d", num)
		nids[name] = id
		return id
	}

	initial := m.InitialState()
	for _, s := range m.States {
		id := nid(s.Name)
		switch {
		case s.Name == initial:
			fmt.Fprintf(bw, "  %s((\"%s\"))\n", id, s.Name)
		case s.Final:
			fmt.Fprintf(bw, "  %s[\"%s\"]\n", id, s.Name)
			if opts.FinalFill != "" {
				fmt.Fprintf(bw, "  style %s fill:%s\n", id, opts.FinalFill)
			}
		default:
			fmt.Fprintf(bw, "  %s(\"%s\")\n", id, s.Name)
		}
	}

	for _, t := range m.Transitions {
		if t.From.Matches(core.Anywhere) {
			fmt.Fprintf(bw, "  %s{{\"*\"}}\n", nid(core.Anywhere))
			break
		}
	}

	n := len(m.Transitions)
	for i, t := range m.Transitions {
		label := fmt.Sprintf("%d/%d %s", i+1, n, t.Event)
		if opts.ShowGuards && t.Guard != nil {
			js := compactJS(core.Print(t.Guard))
			label += " " + strings.Replace(js, `"`, `'`, -1)
		}
		for _, from := range t.From {
			to := t.To
			if to == "" {
				to = from
			}
			fmt.Fprintf(bw, "  %s -- \"%s\" --> %s\n", nid(from), label, nid(to))
		}
	}

	return bw.Flush()
}

// compactJS is json.Marshal without HTML escaping, which would mangle
// operators like "<".
func compactJS(x interface{}) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(x); err != nil {
		return err.Error()
	}
	return strings.TrimRight(buf.String(), "\n")
}
