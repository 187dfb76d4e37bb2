package tools

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/Comcast/bearings/core"
	"github.com/sebdah/goldie/v2"
)

func TestAnalyzeGate(t *testing.T) {
	a := Analyze(gateBehavior())

	js, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		t.Fatal(err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"))
	g.Assert(t, "gate-analysis", js)
}

func TestAnalyzeToggle(t *testing.T) {
	a := Analyze(core.ToggleBehavior())

	if 0 < len(a.Unreachable) {
		t.Fatalf("unreachable: %v", a.Unreachable)
	}
	if 0 < len(a.Terminal) {
		t.Fatalf("terminal: %v", a.Terminal)
	}
	if 0 < len(a.UnusedEvents) {
		t.Fatalf("unused events: %v", a.UnusedEvents)
	}
	want := []string{"+", "set"}
	if !reflect.DeepEqual(a.Ops, want) {
		t.Fatalf("ops: got %v, want %v", a.Ops, want)
	}
}

func TestAnalyzeUnreachable(t *testing.T) {
	b := core.ToggleBehavior()
	b.Machine.States = append(b.Machine.States, &core.StateSpec{Name: "Limbo"})

	a := Analyze(b)

	if !reflect.DeepEqual(a.Unreachable, []string{"Limbo"}) {
		t.Fatalf("unreachable: %v", a.Unreachable)
	}
	if !reflect.DeepEqual(a.Terminal, []string{"Limbo"}) {
		t.Fatalf("terminal: %v", a.Terminal)
	}
}

func TestAnalyzeNoMachine(t *testing.T) {
	b := &core.Behavior{Name: "std/Inert", Category: "system"}

	a := Analyze(b)

	if a.States != 0 || a.Transitions != 0 {
		t.Fatalf("got %#v", a)
	}
}
