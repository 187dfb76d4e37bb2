package tools

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

func TestRenderBehaviorHTMLGate(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderBehaviorHTML(gateBehavior(), &buf); err != nil {
		t.Fatal(err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"))
	g.Assert(t, "gate-html", buf.Bytes())
}

func TestRenderBehaviorPage(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderBehaviorPage(gateBehavior(), &buf, []string{"behavior.css"}, true); err != nil {
		t.Fatal(err)
	}

	s := buf.String()
	for _, want := range []string{
		"<!DOCTYPE html>",
		"<title>std/Gate</title>",
		`<link href="behavior.css" rel="stylesheet">`,
		`<div class="mermaid">`,
		"graph TB",
		"</html>",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %q in:\n%s", want, s)
		}
	}
}

func TestReadAndRenderBehaviorPage(t *testing.T) {
	var buf bytes.Buffer
	if err := ReadAndRenderBehaviorPage("testdata/toggle.yaml", nil, &buf, false); err != nil {
		t.Fatal(err)
	}

	s := buf.String()
	for _, want := range []string{
		"<title>std/Toggle</title>",
		"<code>FLIP</code>",
		`<a href="#On"><code>On</code></a>`,
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %q in:\n%s", want, s)
		}
	}
}

func TestReadAndRenderBehaviorPageBadFile(t *testing.T) {
	var buf bytes.Buffer
	if err := ReadAndRenderBehaviorPage("testdata/no-such.yaml", nil, &buf, false); err == nil {
		t.Fatal("expected an error")
	}
}
