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
	"context"
	"errors"
	"time"
)

// State is one instance's runtime state: the machine's current state
// name, the activation config, and the instance's entity data.
type State struct {
	Current string `json:"state"`

	Config map[string]interface{} `json:"config,omitempty"`

	// Entities maps entity name to field values.
	Entities map[string]map[string]interface{} `json:"entities,omitempty"`
}

// NewState makes an instance state for the behavior: the machine's
// initial state, with entity fields populated from their declared
// defaults.  The config should already be resolved; see
// ValidateConfig.
func (b *Behavior) NewState(config map[string]interface{}) *State {
	st := &State{
		Config:   config,
		Entities: make(map[string]map[string]interface{}, len(b.Entities)),
	}
	if b.Machine != nil {
		st.Current = b.Machine.InitialState()
	}
	for _, ent := range b.Entities {
		fields := make(map[string]interface{}, len(ent.Fields))
		for _, f := range ent.Fields {
			fields[f.Name] = f.Default
		}
		st.Entities[ent.Name] = fields
	}
	return st
}

// Copy copies the state.  Entity field maps are copied; field values
// are shared.
func (s *State) Copy() *State {
	acc := &State{
		Current:  s.Current,
		Config:   s.Config,
		Entities: make(map[string]map[string]interface{}, len(s.Entities)),
	}
	for name, fields := range s.Entities {
		cp := make(map[string]interface{}, len(fields))
		for f, v := range fields {
			cp[f] = v
		}
		acc.Entities[name] = cp
	}
	return acc
}

// Event is what dispatch consumes: a key and an optional payload.
type Event struct {
	Key     string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// Runtime is what a Behavior needs at dispatch time: the operator
// registry, the host's sinks, an optional entity store, and a clock.
//
// A Runtime is shared across instances and dispatches.
type Runtime struct {
	Ops   *Ops
	Sinks Sinks
	Store EntityStore

	// Now, when non-nil, replaces time.Now.  Useful in tests.
	Now func() time.Time
}

// NewRuntime returns a Runtime with the standard operators, the real
// clock, and no sinks.
func NewRuntime() *Runtime {
	return &Runtime{Ops: NewOps()}
}

func (rt *Runtime) now() time.Time {
	if rt != nil && rt.Now != nil {
		return rt.Now()
	}
	return time.Now()
}

func (rt *Runtime) ops() *Ops {
	if rt == nil || rt.Ops == nil {
		return standardOps
	}
	return rt.Ops
}

// Control limits a dispatch.
type Control struct {
	// Limit is the maximum number of hops in one cascade.  An event
	// that would exceed the limit stops the cascade with Limited.
	Limit int `json:"limit"`
}

// DefaultControl is the default Control.
var DefaultControl = &Control{
	Limit: 100,
}

// StopReason says why a cascade stopped.
type StopReason int

const (
	// Drained means the pending queue emptied normally.
	Drained StopReason = iota

	// Limited means Control.Limit stopped the cascade.
	Limited

	// Faulted means an engine fault stopped the cascade.  Effects
	// applied before the fault stay applied.
	Faulted
)

func (r StopReason) String() string {
	switch r {
	case Drained:
		return "drained"
	case Limited:
		return "limited"
	case Faulted:
		return "faulted"
	}
	return "unknown"
}

func (r StopReason) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

func (r *StopReason) UnmarshalJSON(bs []byte) error {
	switch string(bs) {
	case `"drained"`:
		*r = Drained
	case `"limited"`:
		*r = Limited
	case `"faulted"`:
		*r = Faulted
	default:
		return errors.New("unknown StopReason " + string(bs))
	}
	return nil
}

// Hop records the handling of one event within a cascade.
type Hop struct {
	Event Event  `json:"consumed"`
	From  string `json:"from"`
	To    string `json:"to"`

	// Matched is false when no transition was eligible.  Such a hop
	// is a recorded no-op: the state and entities are untouched.
	Matched bool `json:"matched"`

	// Emitted are the events this hop's effects emitted, in order.
	Emitted []Event `json:"emitted,omitempty"`
}

// Cascade is the trace of one dispatch: the hops in the order they
// ran, everything they emitted, and why processing stopped.
type Cascade struct {
	Hops []*Hop `json:"hops"`

	// Emitted collects every emitted event in order, whether or not
	// the machine consumed it locally.  Hosts route these to other
	// instances that listen for them.
	Emitted []Event `json:"emitted,omitempty"`

	StoppedBecause StopReason `json:"stoppedBecause"`

	// Fault is the engine fault that stopped the cascade, if any.
	Fault error  `json:"-"`
	Err    string `json:"err,omitempty"`
}

func (c *Cascade) fault(err error) {
	c.StoppedBecause = Faulted
	c.Fault = err
	c.Err = err.Error()
}

// Dispatch consumes one event: find the first eligible transition in
// declaration order, move to its target state, and run its effects in
// order.  Events emitted by effects that the machine declares join a
// FIFO queue, and the queue is drained before Dispatch returns.
//
// An event with no eligible transition is a recorded no-op, not an
// error.  An engine fault stops the cascade; effects applied before
// the fault stay applied.  Dispatch itself only returns an error on
// misuse (nil state).
//
// The mutations to st are in place.
func (b *Behavior) Dispatch(ctx context.Context, st *State, ev Event, rt *Runtime, ctl *Control) (*Cascade, error) {
	if st == nil {
		return nil, errors.New("nil state")
	}
	if rt == nil {
		rt = NewRuntime()
	}
	if ctl == nil {
		ctl = DefaultControl
	}
	c := &Cascade{
		Hops:           make([]*Hop, 0, 4),
		StoppedBecause: Drained,
	}
	b.drain(ctx, st, []Event{ev}, c, rt, ctl)
	return c, nil
}

// RunEffects runs an effect list outside of event dispatch: initial
// effects at activation, and tick effects on schedule.  Events the
// effects emit cascade exactly as in Dispatch.
func (b *Behavior) RunEffects(ctx context.Context, st *State, effects []Expr, rt *Runtime, ctl *Control) (*Cascade, error) {
	if st == nil {
		return nil, errors.New("nil state")
	}
	if rt == nil {
		rt = NewRuntime()
	}
	if ctl == nil {
		ctl = DefaultControl
	}
	c := &Cascade{
		StoppedBecause: Drained,
	}
	pending := make([]Event, 0, 4)
	emit := func(e Event) {
		c.Emitted = append(c.Emitted, e)
		if b.Machine != nil && b.Machine.HasEvent(e.Key) {
			pending = append(pending, e)
		}
	}
	if err := b.runEffects(ctx, st, effects, nil, rt, emit); err != nil {
		c.fault(err)
		return c, nil
	}
	b.drain(ctx, st, pending, c, rt, ctl)
	return c, nil
}

// drain processes pending events FIFO until the queue empties, the
// hop limit trips, or an effect faults.
func (b *Behavior) drain(ctx context.Context, st *State, pending []Event, c *Cascade, rt *Runtime, ctl *Control) {
	for 0 < len(pending) {
		if ctl.Limit <= len(c.Hops) {
			c.StoppedBecause = Limited
			return
		}
		ev := pending[0]
		pending = pending[1:]

		hop := &Hop{
			Event: ev,
			From:  st.Current,
			To:    st.Current,
		}
		c.Hops = append(c.Hops, hop)

		t, err := b.eligible(ctx, st, ev, rt)
		if err != nil {
			c.fault(err)
			return
		}
		if t == nil {
			continue
		}
		hop.Matched = true
		if t.To != "" {
			st.Current = t.To
			hop.To = t.To
		}

		emit := func(e Event) {
			hop.Emitted = append(hop.Emitted, e)
			c.Emitted = append(c.Emitted, e)
			if b.Machine.HasEvent(e.Key) {
				pending = append(pending, e)
			}
		}
		if err := b.runEffects(ctx, st, t.Effects, ev.Payload, rt, emit); err != nil {
			c.fault(err)
			return
		}
	}
	c.StoppedBecause = Drained
}

// eligible finds the first transition, in declaration order, that
// leaves the current state on this event with a truthy guard.
func (b *Behavior) eligible(ctx context.Context, st *State, ev Event, rt *Runtime) (*Transition, error) {
	if b.Machine == nil {
		return nil, nil
	}
	for _, t := range b.Machine.Transitions {
		if t.Event != ev.Key {
			continue
		}
		if !t.From.Matches(st.Current) {
			continue
		}
		if t.Guard == nil {
			return t, nil
		}
		v, err := Eval(ctx, t.Guard, b.GuardEnv(st, ev.Payload, rt))
		if err != nil {
			return nil, err
		}
		if Truthy(v) {
			return t, nil
		}
	}
	return nil, nil
}

func (b *Behavior) runEffects(ctx context.Context, st *State, effects []Expr, payload interface{}, rt *Runtime, emit func(Event)) error {
	if len(effects) == 0 {
		return nil
	}
	env := b.newEnv(st, payload, rt)
	env.emit = emit
	for _, e := range effects {
		if _, err := Eval(ctx, e, env); err != nil {
			return err
		}
	}
	return nil
}
