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

// Package harness runs scripted scenarios against a troupe of
// behavior instances and records every effect they produce.
//
// A Scenario names a cast of instances and a sequence of steps.  Each
// step sends one event and says what must hold afterward.  Run
// reports expectation misses in Result.Failures; Golden additionally
// compares the recorded effect trace against a golden file.
package harness

import (
	"context"
	"sync"

	"github.com/Comcast/bearings/core"
)

// Effect is one recorded side effect.
type Effect struct {
	// Kind is "render", "notify", or "navigate".
	Kind string `json:"kind"`

	Slot      string                 `json:"slot,omitempty"`
	Component string                 `json:"component,omitempty"`
	Props     map[string]interface{} `json:"props,omitempty"`

	Level   string      `json:"level,omitempty"`
	Message string      `json:"message,omitempty"`
	Action  interface{} `json:"action,omitempty"`

	Path   string                 `json:"path,omitempty"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// Slot is the current rendering of one named slot.
type Slot struct {
	Component string                 `json:"component"`
	Props     map[string]interface{} `json:"props,omitempty"`
}

// Recorder implements the render, notify, and navigate sinks and
// remembers everything that arrives, in order.  Safe for concurrent
// use; tick and delayed effects arrive from timer goroutines.
type Recorder struct {
	sync.Mutex

	effects []Effect
	slots   map[string]*Slot
}

func NewRecorder() *Recorder {
	return &Recorder{
		effects: make([]Effect, 0, 16),
		slots:   make(map[string]*Slot),
	}
}

// Sinks points the host sink surfaces at the recorder.  The timer
// sink is left nil; a troupe supplies its own.
func (r *Recorder) Sinks() core.Sinks {
	return core.Sinks{
		Render:   r,
		Notify:   r,
		Navigate: r,
	}
}

func (r *Recorder) Render(ctx context.Context, slot, component string, props map[string]interface{}) error {
	r.Lock()
	defer r.Unlock()

	r.effects = append(r.effects, Effect{
		Kind:      "render",
		Slot:      slot,
		Component: component,
		Props:     props,
	})
	if props == nil {
		delete(r.slots, slot)
		return nil
	}
	r.slots[slot] = &Slot{Component: component, Props: props}
	return nil
}

func (r *Recorder) Notify(ctx context.Context, level, message string, action interface{}) error {
	r.Lock()
	defer r.Unlock()

	r.effects = append(r.effects, Effect{
		Kind:    "notify",
		Level:   level,
		Message: message,
		Action:  action,
	})
	return nil
}

func (r *Recorder) Navigate(ctx context.Context, path string, params map[string]interface{}) error {
	r.Lock()
	defer r.Unlock()

	r.effects = append(r.effects, Effect{
		Kind:   "navigate",
		Path:   path,
		Params: params,
	})
	return nil
}

// Effects copies the recorded effects in arrival order.
func (r *Recorder) Effects() []Effect {
	r.Lock()
	defer r.Unlock()

	acc := make([]Effect, len(r.effects))
	copy(acc, r.effects)
	return acc
}

// Slots copies the current slot states.
func (r *Recorder) Slots() map[string]*Slot {
	r.Lock()
	defer r.Unlock()

	acc := make(map[string]*Slot, len(r.slots))
	for name, s := range r.slots {
		cp := *s
		acc[name] = &cp
	}
	return acc
}

// Slot returns the current rendering of the named slot.
func (r *Recorder) Slot(name string) (*Slot, bool) {
	r.Lock()
	defer r.Unlock()

	s, have := r.slots[name]
	if !have {
		return nil, false
	}
	cp := *s
	return &cp, true
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.Lock()
	defer r.Unlock()

	r.effects = r.effects[:0]
	r.slots = make(map[string]*Slot)
}
