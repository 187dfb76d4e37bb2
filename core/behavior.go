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
	"time"
)

// Categories are the known behavior categories, in canonical order.
var Categories = []string{
	"data",
	"interaction",
	"navigation",
	"feedback",
	"game",
	"system",
}

// KnownCategory reports whether cat is one of Categories.
func KnownCategory(cat string) bool {
	for _, c := range Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// Behavior is a single reusable interaction pattern: a state machine
// over declared events, the data entities the machine reads and
// writes, a config schema for activation-time parameters, and the
// effects to run when transitions fire.
//
// A Behavior is pure data.  Dispatch gives it life.
type Behavior struct {
	// Name identifies the behavior in its catalog, e.g. "std/Toggle".
	Name string

	// Category is one of Categories.
	Category string

	// Doc is optional commentary for humans.
	Doc string

	// SuggestedFor names component types this behavior usually
	// attaches to.  Advisory only.
	SuggestedFor []string

	// Config declares the activation-time parameters.
	Config map[string]*ConfigField

	// Entities declares the data this behavior reads and writes.
	// The first entity is primary: bare "@entity.field" references
	// resolve against it.
	Entities []*DataEntity

	// Machine is the behavior's state machine.  A Behavior without
	// a Machine consumes no events.
	Machine *Machine

	// InitialEffects run once at activation.
	InitialEffects []Expr

	// Ticks run effects on a schedule instead of on an event.
	Ticks []*Tick

	// Listens names event keys this behavior consumes from other
	// behaviors on the same subject.
	Listens []string
}

// Primary returns the name of the behavior's primary entity, or ""
// when the behavior declares no entities.
func (b *Behavior) Primary() string {
	if len(b.Entities) == 0 {
		return ""
	}
	return b.Entities[0].Name
}

// Entity returns the named entity declaration, or nil.
func (b *Behavior) Entity(name string) *DataEntity {
	for _, ent := range b.Entities {
		if ent.Name == name {
			return ent
		}
	}
	return nil
}

// ListensTo reports whether the behavior consumes the given foreign
// event key.
func (b *Behavior) ListensTo(key string) bool {
	for _, k := range b.Listens {
		if k == key {
			return true
		}
	}
	return false
}

// ConfigField is one entry in a behavior's config schema.
type ConfigField struct {
	// Type is "string", "number", "boolean", "object", "array", or
	// "any".
	Type string

	// Required means activation must provide the field when there
	// is no Default.
	Required bool

	// Default is used when activation omits the field.
	Default interface{}

	// Enum, when non-empty, restricts the field to these values.
	Enum []interface{}

	// Doc is optional commentary for humans.
	Doc string
}

// DataEntity declares data a behavior reads and writes.
type DataEntity struct {
	Name string

	// Singleton means all instances on a subject share one copy.
	Singleton bool

	Fields []*FieldSpec
}

// FieldSpec declares one field of a data entity.
type FieldSpec struct {
	Name    string
	Type    string
	Default interface{}
}

// Machine is a behavior's state machine: declared states and events,
// and ordered transitions.
type Machine struct {
	// Initial names the starting state.  When empty, the state
	// flagged Initial is used instead.
	Initial string

	States []*StateSpec

	// Events declares the keys this machine consumes.  An emitted
	// event joins the pending queue of the current dispatch only
	// when its key is declared here.
	Events []string

	// Transitions are tried in order; the first eligible one wins.
	Transitions []*Transition
}

// StateSpec declares one state.
type StateSpec struct {
	Name    string
	Initial bool
	Final   bool
}

// InitialState returns the machine's starting state name: Initial if
// set, otherwise the first state flagged Initial, otherwise "".
func (m *Machine) InitialState() string {
	if m.Initial != "" {
		return m.Initial
	}
	for _, s := range m.States {
		if s.Initial {
			return s.Name
		}
	}
	return ""
}

// HasState reports whether the machine declares the named state.
func (m *Machine) HasState(name string) bool {
	for _, s := range m.States {
		if s.Name == name {
			return true
		}
	}
	return false
}

// HasEvent reports whether the machine declares the given event key.
func (m *Machine) HasEvent(key string) bool {
	for _, k := range m.Events {
		if k == key {
			return true
		}
	}
	return false
}

// Anywhere as a transition source matches every state.
const Anywhere = "*"

// StateSet names the states a transition leaves from: one name,
// several, or Anywhere.
type StateSet []string

// Matches reports whether the set includes the named state.
func (ss StateSet) Matches(state string) bool {
	for _, s := range ss {
		if s == Anywhere || s == state {
			return true
		}
	}
	return false
}

// Transition is one edge of a Machine.
type Transition struct {
	// From names the source states.
	From StateSet

	// To names the target state.  Empty means stay put: the
	// transition's effects run without a state change.
	To string

	// Event is the key that triggers this transition.
	Event string

	// Guard, when non-nil, must evaluate truthy for the transition
	// to be eligible.  Guards are pure: see ValidateGuards.
	Guard Expr

	// Effects run in order after the state change.
	Effects []Expr

	// Doc is optional commentary for humans.
	Doc string
}

// Tick runs effects on a schedule instead of on an event.
type Tick struct {
	Name string

	// Every is the period.  Zero means use Frame or Cron.
	Every time.Duration

	// Frame means run at the host's frame rate.
	Frame bool

	// Cron is a standard cron schedule.
	Cron string

	// Guard, when non-nil, must evaluate truthy for the tick's
	// effects to run.
	Guard Expr

	Effects []Expr
}
