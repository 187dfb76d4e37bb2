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

// Package registry indexes behaviors by name and category.
//
// A Registry is immutable once built.  The Builder validates each
// behavior on the way in; a behavior with validation errors is
// excluded (with its errors recorded) without aborting the rest of
// the load.
package registry

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/Comcast/bearings/core"
)

// SuggestionDistance is the maximum Levenshtein distance for "did
// you mean" suggestions.
const SuggestionDistance = 3

// Unknown is returned by ValidateReference for a name that isn't
// registered.
type Unknown struct {
	Name string

	// Suggestions holds registered names within SuggestionDistance,
	// nearest first.
	Suggestions []string
}

func (e *Unknown) Error() string {
	msg := "unknown behavior \"" + e.Name + "\""
	if 0 < len(e.Suggestions) {
		msg += " (did you mean \"" + strings.Join(e.Suggestions, "\", \"") + "\"?)"
	}
	return msg
}

// Builder accumulates behaviors for a Registry.
type Builder struct {
	behaviors []*core.Behavior
	rejected  map[string][]error
}

func NewBuilder() *Builder {
	return &Builder{
		rejected: make(map[string][]error),
	}
}

// Add validates the given behaviors and admits the well-formed ones.
// A behavior that fails validation, or that reuses a name already
// admitted, is recorded in Rejected instead.
func (b *Builder) Add(behaviors ...*core.Behavior) *Builder {
	for _, beh := range behaviors {
		if errs := core.Validate(beh); 0 < len(errs) {
			b.rejected[beh.Name] = append(b.rejected[beh.Name], errs...)
			continue
		}
		if b.has(beh.Name) {
			b.rejected[beh.Name] = append(b.rejected[beh.Name],
				&core.BadName{Name: beh.Name, Reason: "already registered"})
			continue
		}
		b.behaviors = append(b.behaviors, beh)
	}
	return b
}

func (b *Builder) has(name string) bool {
	for _, beh := range b.behaviors {
		if beh.Name == name {
			return true
		}
	}
	return false
}

// Build freezes the accumulated behaviors into a Registry.
func (b *Builder) Build() *Registry {
	r := &Registry{
		byName:     make(map[string]*core.Behavior, len(b.behaviors)),
		byCategory: make(map[string][]*core.Behavior),
		rejected:   make(map[string][]error, len(b.rejected)),
	}
	for _, beh := range b.behaviors {
		r.byName[beh.Name] = beh
		r.names = append(r.names, beh.Name)
		r.byCategory[beh.Category] = append(r.byCategory[beh.Category], beh)
	}
	sort.Strings(r.names)
	for name, errs := range b.rejected {
		r.rejected[name] = errs
	}
	return r
}

// Registry is an immutable index of behaviors.
type Registry struct {
	byName     map[string]*core.Behavior
	names      []string
	byCategory map[string][]*core.Behavior
	rejected   map[string][]error
}

// Get returns the named behavior.
func (r *Registry) Get(name string) (*core.Behavior, bool) {
	b, have := r.byName[name]
	return b, have
}

func (r *Registry) Has(name string) bool {
	_, have := r.byName[name]
	return have
}

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// All returns every registered behavior, ordered by name.
func (r *Registry) All() []*core.Behavior {
	bs := make([]*core.Behavior, 0, len(r.names))
	for _, name := range r.names {
		bs = append(bs, r.byName[name])
	}
	return bs
}

// ListByCategory returns the behaviors in the given category,
// ordered by name.
func (r *Registry) ListByCategory(category string) []*core.Behavior {
	bs := make([]*core.Behavior, len(r.byCategory[category]))
	copy(bs, r.byCategory[category])
	sort.Slice(bs, func(i, j int) bool {
		return bs[i].Name < bs[j].Name
	})
	return bs
}

// Rejected reports the behaviors the Builder excluded, by name.
func (r *Registry) Rejected() map[string][]error {
	m := make(map[string][]error, len(r.rejected))
	for name, errs := range r.rejected {
		m[name] = errs
	}
	return m
}

// FindForUseCase matches free text against each behavior's
// SuggestedFor hints.  Matching is case-insensitive containment in
// either direction, so "toggle button" finds a behavior suggested
// for "button".
func (r *Registry) FindForUseCase(text string) []*core.Behavior {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil
	}
	var found []*core.Behavior
	for _, name := range r.names {
		b := r.byName[name]
		for _, hint := range b.SuggestedFor {
			hint = strings.ToLower(hint)
			if strings.Contains(text, hint) || strings.Contains(hint, text) {
				found = append(found, b)
				break
			}
		}
	}
	return found
}

// ValidateReference checks that a name refers to a registered
// behavior.  A malformed name gets a *core.BadName.  A well-formed
// unknown name gets an *Unknown carrying nearby registered names as
// suggestions.
func (r *Registry) ValidateReference(name string) error {
	if name == "" {
		return &core.BadName{Name: name, Reason: "empty"}
	}
	if !strings.Contains(name, "/") {
		return &core.BadName{Name: name, Reason: "missing namespace (want \"ns/Name\")"}
	}
	if r.Has(name) {
		return nil
	}
	return &Unknown{
		Name:        name,
		Suggestions: r.suggest(name),
	}
}

func (r *Registry) suggest(name string) []string {
	type scored struct {
		name string
		d    int
	}
	var near []scored
	for _, candidate := range r.names {
		d := levenshtein.ComputeDistance(name, candidate)
		if d <= SuggestionDistance {
			near = append(near, scored{candidate, d})
		}
	}
	sort.Slice(near, func(i, j int) bool {
		if near[i].d != near[j].d {
			return near[i].d < near[j].d
		}
		return near[i].name < near[j].name
	})
	names := make([]string, len(near))
	for i, s := range near {
		names[i] = s.name
	}
	return names
}

// Stats summarizes a Registry.
type Stats struct {
	Behaviors  int            `json:"behaviors"`
	ByCategory map[string]int `json:"byCategory"`

	States      int `json:"states"`
	Events      int `json:"events"`
	Transitions int `json:"transitions"`
	Entities    int `json:"entities"`
	Ticks       int `json:"ticks"`

	Rejected int `json:"rejected,omitempty"`
}

func (r *Registry) Stats() *Stats {
	s := &Stats{
		Behaviors:  len(r.names),
		ByCategory: make(map[string]int),
		Rejected:   len(r.rejected),
	}
	for _, name := range r.names {
		b := r.byName[name]
		s.ByCategory[b.Category]++
		s.Entities += len(b.Entities)
		s.Ticks += len(b.Ticks)
		if b.Machine == nil {
			continue
		}
		s.States += len(b.Machine.States)
		s.Events += len(b.Machine.Events)
		s.Transitions += len(b.Machine.Transitions)
	}
	return s
}
