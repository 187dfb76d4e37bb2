package tools

import (
	"github.com/Comcast/bearings/core"
)

// gateBehavior covers the rendering cases: a guard, effects, a
// self-loop, a wildcard source, a final state, and an event nothing
// consumes.
func gateBehavior() *core.Behavior {
	return &core.Behavior{
		Name:         "std/Gate",
		Category:     "interaction",
		Doc:          "Opens when armed, locks from anywhere.",
		SuggestedFor: []string{"door", "modal"},
		Config: map[string]*core.ConfigField{
			"armed": {Type: "boolean", Default: true, Doc: "Openable at all."},
		},
		Entities: []*core.DataEntity{
			{
				Name: "gate",
				Fields: []*core.FieldSpec{
					{Name: "opens", Type: "number", Default: float64(0)},
				},
			},
		},
		Machine: &core.Machine{
			Initial: "Closed",
			States: []*core.StateSpec{
				{Name: "Closed", Initial: true},
				{Name: "Open"},
				{Name: "Locked", Final: true},
			},
			Events: []string{"OPEN", "CLOSE", "LOCK", "RESET"},
			Transitions: []*core.Transition{
				{
					From:  core.StateSet{"Closed"},
					To:    "Open",
					Event: "OPEN",
					Guard: core.MustParseJSON(`["and", "@config.armed", ["defined", "@payload.by"]]`),
					Effects: []core.Expr{
						core.MustParseJSON(`["set", "@entity.opens", 1]`),
					},
				},
				{
					From:  core.StateSet{"Open"},
					To:    "Closed",
					Event: "CLOSE",
				},
				{
					From:  core.StateSet{"Open"},
					Event: "OPEN",
					Effects: []core.Expr{
						core.MustParseJSON(`["notify", "warning", "already open"]`),
					},
				},
				{
					From:  core.StateSet{core.Anywhere},
					To:    "Locked",
					Event: "LOCK",
				},
			},
		},
	}
}
