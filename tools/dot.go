package tools

// dot -Tpng g.dot > g.png

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/Comcast/bearings/core"

	"gopkg.in/yaml.v2"
)

// Dot writes a Graphviz dot file for the behavior's machine.  States
// come out in declaration order and transitions in priority order, so
// the output is stable across runs.
//
// The optional current argument names a state to highlight, as from a
// running instance's snapshot.
func Dot(b *core.Behavior, w io.Writer, current string) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "digraph G {\n")
	fmt.Fprintf(bw, "  graph [label=<%s>, labelloc=\"t\", ordering=out, rankdir=TB, nodesep=0.3, ranksep=0.6]\n",
		escapeHTML(b.Name))
	fmt.Fprintf(bw, "  node [shape=\"record\" style=\"rounded,filled\"]\n")
	fmt.Fprintf(bw, "  edge [fontsize=\"12\"]\n")

	m := b.Machine
	if m == nil {
		fmt.Fprintf(bw, "}\n")
		return bw.Flush()
	}

	initial := m.InitialState()
	for _, s := range m.States {
		style := "rounded,filled"
		if s.Name == initial {
			style += ",bold"
		}
		if s.Final {
			style += ",dashed"
		}
		color, fill := "black", "#99ddc8"
		if s.Name == current {
			color, fill = "red", "#f98b8b"
		}
		fmt.Fprintf(bw, "  %q [style=\"%s\", color=\"%s\", fillcolor=\"%s\", label=<%s>]\n",
			s.Name, style, color, fill, escapeHTML(s.Name))
	}

	for _, t := range m.Transitions {
		if t.From.Matches(core.Anywhere) {
			fmt.Fprintf(bw, "  \"*\" [shape=\"circle\", style=\"dashed\", color=\"black\", fillcolor=\"white\", label=<*>]\n")
			break
		}
	}

	n := len(m.Transitions)
	for i, t := range m.Transitions {
		label := fmt.Sprintf("%d/%d %s", i+1, n, escapeHTML(t.Event))
		if t.Guard != nil {
			label += `<FONT POINT-SIZE="8"><BR ALIGN="LEFT"/>` +
				yamlLabel(core.Print(t.Guard)) + `<BR ALIGN="LEFT"/></FONT>`
		}
		if 0 < len(t.Effects) {
			effects := make([]interface{}, len(t.Effects))
			for j, e := range t.Effects {
				effects[j] = core.Print(e)
			}
			label += `<FONT POINT-SIZE="6"><BR ALIGN="LEFT"/>` +
				yamlLabel(effects) + `<BR ALIGN="LEFT"/></FONT>`
		}
		for _, from := range t.From {
			to := t.To
			if to == "" {
				to = from
			}
			fmt.Fprintf(bw, "  %q -> %q [label=<%s>]\n", from, to, label)
		}
	}

	fmt.Fprintf(bw, "}\n")
	return bw.Flush()
}

// PNG renders the behavior's machine to basename.png via the dot
// program, leaving basename.dot behind.
func PNG(b *core.Behavior, basename, current string) (string, error) {
	dotname := basename + ".dot"
	pngname := basename + ".png"

	f, err := os.Create(dotname)
	if err != nil {
		return pngname, err
	}
	if err := Dot(b, f, current); err != nil {
		f.Close()
		return pngname, err
	}
	if err := f.Close(); err != nil {
		return pngname, err
	}
	cmd := "dot -Tpng " + dotname + " > " + pngname
	if err := exec.Command("bash", "-c", cmd).Run(); err != nil {
		return pngname, err
	}
	return pngname, nil
}

// yamlLabel renders an S-expression as YAML for use inside an
// HTML-like dot label.
func yamlLabel(x interface{}) string {
	bs, err := yaml.Marshal(x)
	if err != nil {
		bs = []byte(err.Error())
	}
	s := strings.TrimRight(string(bs), "\n")
	return strings.Replace(escapeHTML(s), "\n", `<BR ALIGN="LEFT"/>`, -1)
}

func escapeHTML(s string) string {
	s = strings.Replace(s, "&", "&amp;", -1)
	s = strings.Replace(s, "<", "&lt;", -1)
	s = strings.Replace(s, ">", "&gt;", -1)
	return s
}
