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

package tools

import (
	"sort"

	"github.com/Comcast/bearings/core"
)

// Analysis summarizes the shape of a behavior.  The validators catch
// outright errors; Analysis reports structure that is legal but worth
// a look: dead states, declared events nothing consumes, and the
// operators the behavior calls.
type Analysis struct {
	Behavior string `json:"behavior"`

	States      int `json:"states"`
	Events      int `json:"events"`
	Transitions int `json:"transitions"`
	Guards      int `json:"guards"`
	Effects     int `json:"effects"`
	Ticks       int `json:"ticks"`

	// Terminal states have no transition to a different state.
	Terminal []string `json:"terminal,omitempty"`

	// Unreachable states cannot be entered from the initial state.
	Unreachable []string `json:"unreachable,omitempty"`

	// UnusedEvents are declared but trigger no transition.
	UnusedEvents []string `json:"unusedEvents,omitempty"`

	// Ops names every operator called by a guard, effect, or tick.
	Ops []string `json:"ops,omitempty"`
}

// Analyze inspects a behavior's machine, ticks, and initial effects.
func Analyze(b *core.Behavior) *Analysis {
	a := &Analysis{
		Behavior: b.Name,
		Ticks:    len(b.Ticks),
	}

	ops := make(map[string]bool)
	for _, e := range b.InitialEffects {
		a.Effects++
		opsIn(e, ops)
	}
	for _, tick := range b.Ticks {
		if tick.Guard != nil {
			a.Guards++
			opsIn(tick.Guard, ops)
		}
		for _, e := range tick.Effects {
			a.Effects++
			opsIn(e, ops)
		}
	}

	if m := b.Machine; m != nil {
		a.States = len(m.States)
		a.Events = len(m.Events)
		a.Transitions = len(m.Transitions)

		used := make(map[string]bool, len(m.Events))
		for _, t := range m.Transitions {
			used[t.Event] = true
			if t.Guard != nil {
				a.Guards++
				opsIn(t.Guard, ops)
			}
			for _, e := range t.Effects {
				a.Effects++
				opsIn(e, ops)
			}
		}
		for _, key := range m.Events {
			if !used[key] {
				a.UnusedEvents = append(a.UnusedEvents, key)
			}
		}
		sort.Strings(a.UnusedEvents)

		reached := reachable(m)
		for _, s := range m.States {
			if !reached[s.Name] {
				a.Unreachable = append(a.Unreachable, s.Name)
			}
			if terminal(m, s.Name) {
				a.Terminal = append(a.Terminal, s.Name)
			}
		}
		sort.Strings(a.Unreachable)
		sort.Strings(a.Terminal)
	}

	a.Ops = make([]string, 0, len(ops))
	for name := range ops {
		a.Ops = append(a.Ops, name)
	}
	sort.Strings(a.Ops)

	return a
}

// reachable walks transitions from the initial state.  A transition
// with an empty target changes nothing, so it adds no edges.
func reachable(m *core.Machine) map[string]bool {
	seen := make(map[string]bool, len(m.States))
	start := m.InitialState()
	if start == "" {
		return seen
	}
	seen[start] = true
	queue := []string{start}
	for 0 < len(queue) {
		at := queue[0]
		queue = queue[1:]
		for _, t := range m.Transitions {
			if t.To == "" || seen[t.To] || !t.From.Matches(at) {
				continue
			}
			seen[t.To] = true
			queue = append(queue, t.To)
		}
	}
	return seen
}

// terminal reports whether no transition leaves the named state for a
// different one.
func terminal(m *core.Machine, name string) bool {
	for _, t := range m.Transitions {
		if t.From.Matches(name) && t.To != "" && t.To != name {
			return false
		}
	}
	return true
}

func opsIn(e core.Expr, acc map[string]bool) {
	c, is := e.(core.Call)
	if !is {
		return
	}
	acc[c.Op] = true
	for _, a := range c.Args {
		opsIn(a, acc)
	}
}
