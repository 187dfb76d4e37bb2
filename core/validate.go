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

package core

import (
	"fmt"
	"sort"
	"strings"
)

// Validate runs all the static validators: structure, events,
// states, and guards.  A registry runs these before admitting a
// behavior.
func Validate(b *Behavior) []error {
	var errs []error
	errs = append(errs, ValidateStructure(b)...)
	errs = append(errs, ValidateEvents(b)...)
	errs = append(errs, ValidateStates(b)...)
	errs = append(errs, ValidateGuards(b)...)
	return errs
}

// ValidateStructure checks a behavior's basic shape: a namespaced
// name, a known category, no duplicate declarations, a resolvable
// initial state, and known config field types.
func ValidateStructure(b *Behavior) []error {
	var errs []error

	switch {
	case b.Name == "":
		errs = append(errs, &BadName{Reason: "missing"})
	case !strings.HasPrefix(b.Name, "std/"):
		errs = append(errs, &BadName{Name: b.Name, Reason: `must begin with "std/"`})
	case len(b.Name) == len("std/"):
		errs = append(errs, &BadName{Name: b.Name, Reason: "empty after namespace"})
	}

	if b.Category == "" || !KnownCategory(b.Category) {
		errs = append(errs, &BadCategory{Behavior: b.Name, Category: b.Category})
	}

	seenEntities := make(map[string]bool, len(b.Entities))
	for _, ent := range b.Entities {
		if seenEntities[ent.Name] {
			errs = append(errs, &DupEntity{Behavior: b.Name, Entity: ent.Name})
		}
		seenEntities[ent.Name] = true
	}

	names := make([]string, 0, len(b.Config))
	for name := range b.Config {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch b.Config[name].Type {
		case "", "any", "string", "number", "boolean", "object", "array":
		default:
			errs = append(errs, &BadConfig{
				Behavior: b.Name,
				Field:    name,
				Want:     `a known type ("string", "number", "boolean", "object", "array", "any")`,
				Got:      b.Config[name].Type,
			})
		}
	}

	if b.Machine == nil {
		return errs
	}
	m := b.Machine

	if len(m.States) == 0 {
		errs = append(errs, &NoStates{Behavior: b.Name})
		return errs
	}

	seenStates := make(map[string]bool, len(m.States))
	flagged := []string{}
	for _, s := range m.States {
		if seenStates[s.Name] {
			errs = append(errs, &DupState{Behavior: b.Name, State: s.Name})
		}
		seenStates[s.Name] = true
		if s.Initial {
			flagged = append(flagged, s.Name)
		}
	}

	switch initial := m.InitialState(); {
	case initial == "" && len(flagged) == 0:
		errs = append(errs, &BadInitial{Behavior: b.Name, Reason: "missing"})
	case m.Initial == "" && 1 < len(flagged):
		errs = append(errs, &BadInitial{Behavior: b.Name, Reason: "flagged on more than one state"})
	case !seenStates[initial]:
		errs = append(errs, &BadInitial{Behavior: b.Name, Initial: initial, Reason: "isn't a declared state"})
	}
	if m.Initial != "" {
		for _, name := range flagged {
			if name != m.Initial {
				errs = append(errs, &BadInitial{
					Behavior: b.Name,
					Initial:  name,
					Reason:   `conflicts with declared initial "` + m.Initial + `"`,
				})
			}
		}
	}

	seenEvents := make(map[string]bool, len(m.Events))
	for _, k := range m.Events {
		if seenEvents[k] {
			errs = append(errs, &DupEvent{Behavior: b.Name, Event: k})
		}
		seenEvents[k] = true
	}

	return errs
}

// ValidateEvents checks that every transition consumes a declared
// event.
func ValidateEvents(b *Behavior) []error {
	if b.Machine == nil {
		return nil
	}
	var errs []error
	for i, t := range b.Machine.Transitions {
		if !b.Machine.HasEvent(t.Event) {
			errs = append(errs, &UndeclaredEvent{Behavior: b.Name, Event: t.Event, Transition: i})
		}
	}
	return errs
}

// ValidateStates checks that every transition's source and target
// states are declared.
func ValidateStates(b *Behavior) []error {
	if b.Machine == nil {
		return nil
	}
	var errs []error
	for i, t := range b.Machine.Transitions {
		for _, from := range t.From {
			if from == Anywhere {
				continue
			}
			if !b.Machine.HasState(from) {
				errs = append(errs, &UndeclaredState{Behavior: b.Name, State: from, Role: "leaves", Transition: i})
			}
		}
		if t.To != "" && !b.Machine.HasState(t.To) {
			errs = append(errs, &UndeclaredState{Behavior: b.Name, State: t.To, Role: "targets", Transition: i})
		}
	}
	return errs
}

// ValidateGuards checks that guards are pure: a guard calling an
// effect operator is rejected here, before the behavior ever runs.
// The evaluator also refuses at runtime; see EffectInGuard.
func ValidateGuards(b *Behavior) []error {
	var errs []error
	if b.Machine != nil {
		for i, t := range b.Machine.Transitions {
			where := fmt.Sprintf("transition %d (%s)", i, t.Event)
			errs = append(errs, impureCalls(b.Name, t.Guard, where)...)
		}
	}
	for _, tick := range b.Ticks {
		errs = append(errs, impureCalls(b.Name, tick.Guard, `tick "`+tick.Name+`"`)...)
	}
	return errs
}

func impureCalls(behavior string, guard Expr, where string) []error {
	if guard == nil {
		return nil
	}
	var errs []error
	walkCalls(guard, func(c Call) {
		if IsEffectOp(c.Op) {
			errs = append(errs, &ImpureGuard{Behavior: behavior, Op: c.Op, Where: where})
		}
	})
	return errs
}

// ValidateConfig checks activation config against the behavior's
// config schema and applies defaults.  The resolved config is
// returned even when errors are reported.
func (b *Behavior) ValidateConfig(raw map[string]interface{}) (map[string]interface{}, []error) {
	resolved := make(map[string]interface{}, len(b.Config))
	var errs []error

	names := make([]string, 0, len(b.Config))
	for name := range b.Config {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f := b.Config[name]
		v, have := raw[name]
		if !have {
			if f.Default != nil {
				resolved[name] = f.Default
			} else if f.Required {
				errs = append(errs, &MissingConfig{Behavior: b.Name, Field: name})
			}
			continue
		}
		if !configType(f.Type, v) {
			errs = append(errs, &BadConfig{Behavior: b.Name, Field: name, Want: f.Type, Got: v})
			continue
		}
		if 0 < len(f.Enum) && !enumHas(f.Enum, v) {
			errs = append(errs, &BadConfig{Behavior: b.Name, Field: name, Want: "one of its enum values", Got: v})
			continue
		}
		resolved[name] = v
	}

	given := make([]string, 0, len(raw))
	for name := range raw {
		given = append(given, name)
	}
	sort.Strings(given)
	for _, name := range given {
		if _, have := b.Config[name]; !have {
			errs = append(errs, &UnknownConfig{Behavior: b.Name, Field: name})
		}
	}

	return resolved, errs
}

func configType(want string, v interface{}) bool {
	switch want {
	case "string":
		_, is := v.(string)
		return is
	case "number":
		_, is := asNumber(v)
		return is
	case "boolean":
		_, is := v.(bool)
		return is
	case "object":
		_, is := v.(map[string]interface{})
		return is
	case "array":
		_, is := v.([]interface{})
		return is
	}
	return true
}

func enumHas(enum []interface{}, v interface{}) bool {
	for _, e := range enum {
		if equalValues(e, v) {
			return true
		}
	}
	return false
}
