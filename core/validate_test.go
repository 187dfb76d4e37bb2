package core

import (
	"errors"
	"strings"
	"testing"
)

func validBehavior() *Behavior {
	return &Behavior{
		Name:     "std/Sample",
		Category: "interaction",
		Config: map[string]*ConfigField{
			"limit": {Type: "number", Default: float64(10)},
			"mode":  {Type: "string", Required: true, Enum: []interface{}{"strict", "loose"}},
		},
		Entities: []*DataEntity{
			{Name: "sample", Fields: []*FieldSpec{{Name: "n", Type: "number", Default: float64(0)}}},
		},
		Machine: &Machine{
			Initial: "Idle",
			States:  []*StateSpec{{Name: "Idle", Initial: true}, {Name: "Busy"}},
			Events:  []string{"GO", "STOP"},
			Transitions: []*Transition{
				{From: StateSet{"Idle"}, To: "Busy", Event: "GO",
					Guard: MustParseJSON(`["<", "@entity.n", "@config.limit"]`)},
				{From: StateSet{"Busy"}, To: "Idle", Event: "STOP"},
			},
		},
	}
}

func TestValidateClean(t *testing.T) {
	if errs := Validate(validBehavior()); len(errs) != 0 {
		t.Fatal(errs)
	}
	if errs := Validate(ToggleBehavior()); len(errs) != 0 {
		t.Fatal(errs)
	}
}

func TestValidateStructure(t *testing.T) {
	t.Run("name", func(t *testing.T) {
		b := validBehavior()
		b.Name = ""
		errs := ValidateStructure(b)
		var bad *BadName
		if !hasError(errs, &bad) {
			t.Fatal(errs)
		}

		b.Name = "Sample"
		errs = ValidateStructure(b)
		if !hasError(errs, &bad) {
			t.Fatal(errs)
		}
	})

	t.Run("category", func(t *testing.T) {
		b := validBehavior()
		b.Category = "sparkles"
		errs := ValidateStructure(b)
		var bad *BadCategory
		if !hasError(errs, &bad) {
			t.Fatal(errs)
		}
		if !strings.Contains(bad.Error(), "interaction") {
			t.Fatal(bad.Error())
		}
	})

	t.Run("noStates", func(t *testing.T) {
		b := validBehavior()
		b.Machine.States = nil
		errs := ValidateStructure(b)
		var bad *NoStates
		if !hasError(errs, &bad) {
			t.Fatal(errs)
		}
	})

	t.Run("initialMissing", func(t *testing.T) {
		b := validBehavior()
		b.Machine.Initial = ""
		b.Machine.States[0].Initial = false
		errs := ValidateStructure(b)
		var bad *BadInitial
		if !hasError(errs, &bad) {
			t.Fatal(errs)
		}
	})

	t.Run("initialUndeclared", func(t *testing.T) {
		b := validBehavior()
		b.Machine.Initial = "Nowhere"
		errs := ValidateStructure(b)
		var bad *BadInitial
		if !hasError(errs, &bad) {
			t.Fatal(errs)
		}
	})

	t.Run("initialConflict", func(t *testing.T) {
		b := validBehavior()
		b.Machine.States[1].Initial = true
		errs := ValidateStructure(b)
		var bad *BadInitial
		if !hasError(errs, &bad) {
			t.Fatal(errs)
		}
	})

	t.Run("initialFlagOnly", func(t *testing.T) {
		b := validBehavior()
		b.Machine.Initial = ""
		if errs := ValidateStructure(b); len(errs) != 0 {
			t.Fatal(errs)
		}
		if b.Machine.InitialState() != "Idle" {
			t.Fatal(b.Machine.InitialState())
		}
	})

	t.Run("dups", func(t *testing.T) {
		b := validBehavior()
		b.Machine.States = append(b.Machine.States, &StateSpec{Name: "Idle"})
		b.Machine.Events = append(b.Machine.Events, "GO")
		b.Entities = append(b.Entities, &DataEntity{Name: "sample"})
		errs := ValidateStructure(b)
		var dupState *DupState
		var dupEvent *DupEvent
		var dupEntity *DupEntity
		if !hasError(errs, &dupState) || !hasError(errs, &dupEvent) || !hasError(errs, &dupEntity) {
			t.Fatal(errs)
		}
	})

	t.Run("configFieldType", func(t *testing.T) {
		b := validBehavior()
		b.Config["weird"] = &ConfigField{Type: "tuple"}
		errs := ValidateStructure(b)
		var bad *BadConfig
		if !hasError(errs, &bad) {
			t.Fatal(errs)
		}
	})
}

func TestValidateEvents(t *testing.T) {
	b := validBehavior()
	b.Machine.Transitions = append(b.Machine.Transitions, &Transition{
		From: StateSet{"Idle"}, To: "Busy", Event: "MYSTERY",
	})
	errs := ValidateEvents(b)
	if len(errs) != 1 {
		t.Fatal(errs)
	}
	var bad *UndeclaredEvent
	if !errors.As(errs[0], &bad) {
		t.Fatal(errs[0])
	}
	if bad.Event != "MYSTERY" || bad.Transition != 2 {
		t.Fatalf("got %#v", bad)
	}
}

func TestValidateStates(t *testing.T) {
	b := validBehavior()
	b.Machine.Transitions = append(b.Machine.Transitions,
		&Transition{From: StateSet{"Nowhere"}, To: "Busy", Event: "GO"},
		&Transition{From: StateSet{"Idle"}, To: "Elsewhere", Event: "GO"},
		&Transition{From: StateSet{Anywhere}, Event: "STOP"},
	)
	errs := ValidateStates(b)
	if len(errs) != 2 {
		t.Fatal(errs)
	}
}

func TestValidateGuards(t *testing.T) {
	b := validBehavior()
	b.Machine.Transitions[0].Guard = MustParseJSON(`["and", true, ["emit", "SNEAKY"]]`)
	errs := ValidateGuards(b)
	if len(errs) != 1 {
		t.Fatal(errs)
	}
	var impure *ImpureGuard
	if !errors.As(errs[0], &impure) {
		t.Fatal(errs[0])
	}
	if impure.Op != "emit" || !strings.Contains(impure.Where, "transition 0") {
		t.Fatalf("got %#v", impure)
	}

	b = validBehavior()
	b.Ticks = []*Tick{
		{Name: "spawn", Guard: MustParseJSON(`["set", "@entity.n", 0]`)},
	}
	errs = ValidateGuards(b)
	if len(errs) != 1 {
		t.Fatal(errs)
	}
}

func TestValidateConfig(t *testing.T) {
	b := validBehavior()

	t.Run("defaultsApply", func(t *testing.T) {
		resolved, errs := b.ValidateConfig(map[string]interface{}{"mode": "strict"})
		if len(errs) != 0 {
			t.Fatal(errs)
		}
		if resolved["limit"] != float64(10) || resolved["mode"] != "strict" {
			t.Fatalf("got %#v", resolved)
		}
	})

	t.Run("requiredMissing", func(t *testing.T) {
		_, errs := b.ValidateConfig(nil)
		var missing *MissingConfig
		if !hasError(errs, &missing) {
			t.Fatal(errs)
		}
		if missing.Field != "mode" {
			t.Fatal(missing.Field)
		}
	})

	t.Run("wrongType", func(t *testing.T) {
		_, errs := b.ValidateConfig(map[string]interface{}{"mode": "strict", "limit": "ten"})
		var bad *BadConfig
		if !hasError(errs, &bad) {
			t.Fatal(errs)
		}
	})

	t.Run("enum", func(t *testing.T) {
		_, errs := b.ValidateConfig(map[string]interface{}{"mode": "medium"})
		var bad *BadConfig
		if !hasError(errs, &bad) {
			t.Fatal(errs)
		}
	})

	t.Run("unknownField", func(t *testing.T) {
		_, errs := b.ValidateConfig(map[string]interface{}{"mode": "strict", "nope": 1})
		var unknown *UnknownConfig
		if !hasError(errs, &unknown) {
			t.Fatal(errs)
		}
	})
}

// hasError reports whether any of errs satisfies errors.As for
// target, which must be a pointer to an error type.
func hasError(errs []error, target interface{}) bool {
	for _, err := range errs {
		if errors.As(err, target) {
			return true
		}
	}
	return false
}
