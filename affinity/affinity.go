/* Copyright 2019 Comcast Cable Communications Management, LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package affinity checks that actions attached to a rendered
// component make sense for that component type: a SAVE action on a
// read-only table is an authoring mistake worth catching before
// runtime.
//
// The check is advisory and open-world.  Unknown components allow
// everything, and an event a component's rule doesn't mention is
// allowed.  Only an event in a rule's Invalid list is a Violation.
package affinity

import "strings"

// Action is an event binding attached to a rendered component.
type Action struct {
	Event string `json:"event"`
	Label string `json:"label,omitempty"`
}

// Rule lists the events that do and don't belong on one component
// type.  Valid is ordered; its order appears in Violation messages.
type Rule struct {
	Valid   []string `json:"valid"`
	Invalid []string `json:"invalid"`
}

// Matrix maps a component type to its Rule.
type Matrix map[string]*Rule

// Default returns the standard component rules.
func Default() Matrix {
	return Matrix{
		"entity-table": {
			Valid:   []string{"VIEW", "EDIT", "DELETE", "SELECT", "SORT", "PAGE"},
			Invalid: []string{"SAVE", "SUBMIT", "RESET"},
		},
		"form": {
			Valid:   []string{"SAVE", "SUBMIT", "CANCEL", "RESET", "VALIDATE"},
			Invalid: []string{"SORT", "PAGE", "SELECT"},
		},
		"list": {
			Valid:   []string{"VIEW", "SELECT", "FILTER", "SORT", "PAGE"},
			Invalid: []string{"SAVE", "SUBMIT", "VALIDATE"},
		},
		"card": {
			Valid:   []string{"VIEW", "EDIT", "DELETE", "EXPAND"},
			Invalid: []string{"SORT", "PAGE", "SELECT"},
		},
		"modal": {
			Valid:   []string{"CONFIRM", "CANCEL", "CLOSE"},
			Invalid: []string{"SORT", "PAGE", "NAVIGATE"},
		},
		"toggle": {
			Valid:   []string{"FLIP", "ENABLE", "DISABLE"},
			Invalid: []string{"SAVE", "SUBMIT", "SORT", "PAGE"},
		},
		"button": {
			Valid:   []string{"CLICK", "SUBMIT", "CONFIRM"},
			Invalid: []string{"SORT", "SELECT", "PAGE"},
		},
	}
}

// With returns a copy of the matrix with the given component's rule
// replaced (or added).  The receiver is not modified.
func (m Matrix) With(component string, rule *Rule) Matrix {
	next := make(Matrix, len(m)+1)
	for c, r := range m {
		next[c] = r
	}
	next[component] = rule
	return next
}

// IsActionValid reports whether the event belongs on the component.
// Unknown components allow everything.
func (m Matrix) IsActionValid(event, component string) bool {
	rule, have := m[component]
	if !have {
		return true
	}
	for _, v := range rule.Valid {
		if v == event {
			return true
		}
	}
	for _, iv := range rule.Invalid {
		if iv == event {
			return false
		}
	}
	return true
}

// ValidateActions checks each action against the component's rule and
// returns one Violation per action whose event the rule lists as
// Invalid.
func (m Matrix) ValidateActions(actions []Action, component string) []*Violation {
	rule, have := m[component]
	if !have {
		return nil
	}
	var violations []*Violation
	for _, a := range actions {
		if m.IsActionValid(a.Event, component) {
			continue
		}
		violations = append(violations, &Violation{
			Action:    a.Event,
			Component: component,
			Valid:     rule.Valid,
		})
	}
	return violations
}

// Violation is an action attached to a component that can't use it.
type Violation struct {
	Action    string
	Component string

	// Valid lists the component's allowed events, in rule order.
	Valid []string
}

func (v *Violation) Error() string {
	return "action \"" + v.Action + "\" is not valid for component \"" +
		v.Component + "\" (valid actions: " + strings.Join(v.Valid, ", ") + ")"
}
