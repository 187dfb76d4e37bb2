package core

// ToggleBehavior makes an example Behavior that's useful to have
// around: two states, one event, and a flip counter.
//
// See https://en.wikipedia.org/wiki/Finite-state_machine.
func ToggleBehavior() *Behavior {
	return &Behavior{
		Name:     "std/Toggle",
		Category: "interaction",
		Doc:      "Two states and an event that moves between them.",
		SuggestedFor: []string{
			"button", "switch", "checkbox",
		},
		Entities: []*DataEntity{
			{
				Name: "toggle",
				Fields: []*FieldSpec{
					{Name: "flips", Type: "number", Default: float64(0)},
				},
			},
		},
		Machine: &Machine{
			Initial: "Off",
			States: []*StateSpec{
				{Name: "Off", Initial: true},
				{Name: "On"},
			},
			Events: []string{"FLIP"},
			Transitions: []*Transition{
				{
					From:  StateSet{"Off"},
					To:    "On",
					Event: "FLIP",
					Effects: []Expr{
						MustParseJSON(`["set", "@entity.flips", ["+", "@entity.flips", 1]]`),
					},
				},
				{
					From:  StateSet{"On"},
					To:    "Off",
					Event: "FLIP",
					Effects: []Expr{
						MustParseJSON(`["set", "@entity.flips", ["+", "@entity.flips", 1]]`),
					},
				},
			},
		},
	}
}
