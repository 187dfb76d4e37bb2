package tools

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Comcast/bearings/core"
	"github.com/sebdah/goldie/v2"
)

func TestDotGate(t *testing.T) {
	var buf bytes.Buffer
	if err := Dot(gateBehavior(), &buf, ""); err != nil {
		t.Fatal(err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"))
	g.Assert(t, "gate-dot", buf.Bytes())
}

func TestDotToggle(t *testing.T) {
	var buf bytes.Buffer
	if err := Dot(core.ToggleBehavior(), &buf, "On"); err != nil {
		t.Fatal(err)
	}

	s := buf.String()
	for _, want := range []string{
		"digraph G {",
		`"Off" -> "On"`,
		`"On" -> "Off"`,
		`fillcolor="#f98b8b"`,
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %q in:\n%s", want, s)
		}
	}
	if !strings.HasSuffix(s, "}\n") {
		t.Fatalf("unterminated:\n%s", s)
	}
}

func TestDotNoMachine(t *testing.T) {
	var buf bytes.Buffer
	b := &core.Behavior{Name: "std/Inert", Category: "system"}
	if err := Dot(b, &buf, ""); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(buf.String(), "}\n") {
		t.Fatalf("unterminated:\n%s", buf.String())
	}
}
