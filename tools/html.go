package tools

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Comcast/bearings/catalog"
	"github.com/Comcast/bearings/core"
	. "github.com/Comcast/bearings/util/testutil"

	md "github.com/russross/blackfriday/v2"
)

// RenderBehaviorHTML writes an HTML fragment describing the behavior:
// its doc, config schema, entities, machine, and ticks.  Config rows
// come out in sorted order; everything else follows declaration
// order.
func RenderBehaviorHTML(b *core.Behavior, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	if b.Doc != "" {
		f(`<div class="behaviorDoc doc">%s</div>`, md.Run([]byte(b.Doc)))
	}

	f(`<div class="meta"><code>%s</code> <span class="category">%s</span></div>`, b.Name, b.Category)
	if 0 < len(b.SuggestedFor) {
		f(`<div class="suggestedFor">suggested for: %s</div>`, strings.Join(b.SuggestedFor, ", "))
	}
	if 0 < len(b.Listens) {
		f(`<div class="listens">listens: %s</div>`, strings.Join(b.Listens, ", "))
	}

	if 0 < len(b.Config) {
		names := make([]string, 0, len(b.Config))
		for name := range b.Config {
			names = append(names, name)
		}
		sort.Strings(names)
		f(`<div class="config"><table>`)
		f(`<tr><th>config</th><th>type</th><th>required</th><th>default</th></tr>`)
		for _, name := range names {
			field := b.Config[name]
			f(`<tr><td>%s</td><td>%s</td><td>%v</td><td><code>%s</code></td></tr>`,
				name, field.Type, field.Required, JS(field.Default))
		}
		f(`</table></div>`)
	}

	for _, e := range b.Entities {
		label := e.Name
		if e.Singleton {
			label += " (singleton)"
		}
		f(`<div class="entity"><table>`)
		f(`<tr><th colspan="3">%s</th></tr>`, label)
		for _, field := range e.Fields {
			f(`<tr><td>%s</td><td>%s</td><td><code>%s</code></td></tr>`,
				field.Name, field.Type, JS(field.Default))
		}
		f(`</table></div>`)
	}

	if m := b.Machine; m != nil {
		initial := m.InitialState()
		f(`<div class="machine">`)
		f(`<div class="states">`)
		for _, s := range m.States {
			classes := "stateName"
			if s.Name == initial {
				classes += " initial"
			}
			if s.Final {
				classes += " final"
			}
			f(`<span id="%s" class="%s">%s</span>`, s.Name, classes, s.Name)
		}
		f(`</div>`)
		if 0 < len(m.Events) {
			f(`<div class="events">events: %s</div>`, strings.Join(m.Events, ", "))
		}
		if 0 < len(m.Transitions) {
			f(`<div class="transitions"><table>`)
			for i, t := range m.Transitions {
				f(`<tr><td><div class="transitionNum">%d</div></td><td>`, i+1)
				f(`<table>`)
				f(`<tr><td>from</td><td>%s</td></tr>`, strings.Join(t.From, ", "))
				f(`<tr><td>event</td><td><code>%s</code></td></tr>`, t.Event)
				if t.Guard != nil {
					f(`<tr><td>guard</td><td><code>%s</code></td></tr>`, JS(core.Print(t.Guard)))
				}
				if t.To != "" {
					f(`<tr><td>target</td><td><a href="#%s"><code>%s</code></a></td></tr>`, t.To, t.To)
				}
				for _, e := range t.Effects {
					f(`<tr><td>effect</td><td><code>%s</code></td></tr>`, JS(core.Print(e)))
				}
				if t.Doc != "" {
					f(`<tr><td>doc</td><td><div class="transitionDoc doc">%s</div></td></tr>`, md.Run([]byte(t.Doc)))
				}
				f(`</table>`)
				f(`</td></tr>`)
			}
			f(`</table></div>`)
		}
		f(`</div>`)
	}

	if 0 < len(b.InitialEffects) {
		f(`<div class="initialEffects"><table>`)
		for _, e := range b.InitialEffects {
			f(`<tr><td>initial effect</td><td><code>%s</code></td></tr>`, JS(core.Print(e)))
		}
		f(`</table></div>`)
	}

	if 0 < len(b.Ticks) {
		f(`<div class="ticks"><table>`)
		for _, tick := range b.Ticks {
			schedule := tick.Every.String()
			switch {
			case tick.Frame:
				schedule = "frame"
			case tick.Cron != "":
				schedule = tick.Cron
			}
			f(`<tr><td>%s</td><td><code>%s</code></td></tr>`, tick.Name, schedule)
		}
		f(`</table></div>`)
	}

	return nil
}

// RenderBehaviorPage writes a complete HTML page for the behavior.
// With includeGraph, the page embeds the Mermaid rendering of the
// machine.
func RenderBehaviorPage(b *core.Behavior, out io.Writer, cssFiles []string, includeGraph bool) error {
	if cssFiles == nil {
		cssFiles = []string{"/static/behavior-html.css"}
	}

	fmt.Fprintf(out, `<!DOCTYPE html>
<meta charset="utf-8">
<html>
  <head>
  <title>%s</title>
`, b.Name)

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", cssFile)
	}

	if includeGraph {
		fmt.Fprintf(out, `  <script src="https://cdn.jsdelivr.net/npm/mermaid/dist/mermaid.min.js"></script>
  <script>mermaid.initialize({startOnLoad:true});</script>
`)
	}

	fmt.Fprintf(out, `  </head>
  <body>
    <h1>%s</h1>
`, b.Name)

	if includeGraph {
		fmt.Fprintf(out, "<div class=\"mermaid\">\n")
		if err := Mermaid(b, out, nil); err != nil {
			return err
		}
		fmt.Fprintf(out, "</div>\n")
	}

	if err := RenderBehaviorHTML(b, out); err != nil {
		return err
	}

	fmt.Fprintf(out, `  </body>
</html>
`)

	return nil
}

// ReadAndRenderBehaviorPage reads a behavior file, checks it, and
// renders the page.
func ReadAndRenderBehaviorPage(filename string, cssFiles []string, out io.Writer, includeGraph bool) error {
	b, err := catalog.ReadFile(filename)
	if err != nil {
		return err
	}
	if errs := core.Validate(b); 0 < len(errs) {
		return fmt.Errorf("%s does not validate: %s", b.Name, errs[0])
	}
	return RenderBehaviorPage(b, out, cssFiles, includeGraph)
}
